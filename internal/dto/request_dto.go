package dto

import "encoding/json"

// AttemptAnswersDTO carries answers keyed by question id. Values keep the
// per-type student answer shape the evaluator expects (string, array, map or
// number) and are stored verbatim for audit.
type AttemptAnswersDTO struct {
	Answers map[uint]json.RawMessage `json:"answers" binding:"required"`
}

// AttachmentDTO is a pointer to an uploaded file; storage itself lives
// outside this service.
type AttachmentDTO struct {
	FileName string `json:"file_name" binding:"required"`
	URL      string `json:"url" binding:"required"`
}

// TaskSubmitDTO is the student payload for a task submission. Answer keys are
// sub-question ids, or "text" for the single free-text answer of tasks
// without sub-questions.
type TaskSubmitDTO struct {
	Answers     map[string]json.RawMessage `json:"answers" binding:"required"`
	Attachments []AttachmentDTO            `json:"attachments,omitempty" binding:"omitempty,dive"`
}
