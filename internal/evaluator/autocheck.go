package evaluator

import (
	"encoding/json"
	"fmt"
)

// AutoCheckQuestion is one auto-gradable rule inside a task's check config.
// ID refers to a task sub-question, or "text" for the single free-text answer.
type AutoCheckQuestion struct {
	ID     string          `json:"id"`
	Type   QuestionType    `json:"type"`
	Key    json.RawMessage `json:"key"`
	Points float64         `json:"points"`
}

// AutoCheckConfig is the validated form of a task's auto_check_config column.
// It is parsed and checked when the task is authored; tasks with a malformed
// config are rejected up front.
type AutoCheckConfig struct {
	Questions []AutoCheckQuestion `json:"questions"`
}

// ParseAutoCheck validates raw config. A nil/empty raw value means the task
// has no auto-check and is graded manually; that returns (nil, nil).
func ParseAutoCheck(raw []byte) (*AutoCheckConfig, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var cfg AutoCheckConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing auto-check config: %w", err)
	}
	if len(cfg.Questions) == 0 {
		return nil, fmt.Errorf("auto-check config has no questions")
	}
	seen := make(map[string]struct{}, len(cfg.Questions))
	for i, q := range cfg.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("auto-check question %d has no id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("auto-check question id %q repeated", q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Points <= 0 {
			return nil, fmt.Errorf("auto-check question %q must have positive points", q.ID)
		}
		if _, err := ParseKey(q.Type, q.Key); err != nil {
			return nil, fmt.Errorf("auto-check question %q: %w", q.ID, err)
		}
	}
	return &cfg, nil
}
