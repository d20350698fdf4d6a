package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/evaluator"
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/notify"
	"github.com/nvkhoa/eduassess/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TestAttemptService orchestrates a student's timed run through a test:
// start, save progress, submit, and the lazy/periodic timeout path. Scoring
// is delegated to the evaluator and ScoringService; eligibility to the
// PolicyService.
type TestAttemptService interface {
	StartAttempt(testID uint, studentID string) (*dto.TestAttemptDTO, error)
	// SaveAnswers persists the student's current answers server-side while the
	// attempt is active. These are what a timeout scores; client-reported
	// elapsed time is never trusted.
	SaveAnswers(attemptID uint, studentID string, req dto.AttemptAnswersDTO) (*dto.TestAttemptDTO, error)
	// SubmitAttempt scores and finalizes the attempt. Idempotent: a duplicate
	// call on a terminal attempt returns the stored result unchanged.
	SubmitAttempt(attemptID uint, studentID string, req dto.AttemptAnswersDTO) (*dto.TestAttemptDTO, error)
	GetAttempt(attemptID uint, studentID string) (*dto.TestAttemptDTO, error)
	GetAttemptsForTest(testID uint, studentID string) (*dto.TestAttemptListDTO, error)
	// SweepExpiredAttempts times out every overdue in-progress attempt. Run
	// periodically as a low-frequency job; returns how many were closed.
	SweepExpiredAttempts() (int, error)
}

type testAttemptService struct {
	testRepo     repository.TestRepository
	questionRepo repository.QuestionRepository
	attemptRepo  repository.TestAttemptRepository
	engine       *evaluator.Engine
	scoring      ScoringService
	policy       PolicyService
	notifier     notify.Notifier
	now          func() time.Time
}

func NewTestAttemptService(
	testRepo repository.TestRepository,
	questionRepo repository.QuestionRepository,
	attemptRepo repository.TestAttemptRepository,
	engine *evaluator.Engine,
	scoring ScoringService,
	policy PolicyService,
	notifier notify.Notifier,
) TestAttemptService {
	return &testAttemptService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		engine:       engine,
		scoring:      scoring,
		policy:       policy,
		notifier:     notifier,
		now:          time.Now,
	}
}

func (s *testAttemptService) StartAttempt(testID uint, studentID string) (*dto.TestAttemptDTO, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("test", testID)
		}
		return nil, err
	}

	active, err := s.attemptRepo.FindActiveByTestAndStudent(testID, studentID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if !s.expired(active, test) {
			return nil, NewStateError("attempt %d for test %d is still in progress", active.ID, testID)
		}
		// Lazy timeout detection on read: close the stale attempt, then the
		// start is judged against the updated attempt count. The active-attempt
		// query returns a bare row; the saved answers have to be reloaded or
		// the timeout would score nothing.
		stale, err := s.attemptRepo.FindByIDWithAnswers(active.ID)
		if err != nil {
			return nil, err
		}
		if _, err := s.timeOut(stale, test); err != nil {
			return nil, err
		}
	}

	used, err := s.attemptRepo.CountTerminalByTestAndStudent(testID, studentID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.EnsureCanStartTest(test, int(used)); err != nil {
		return nil, err
	}

	attempt := &model.TestAttempt{
		TestID:        testID,
		StudentID:     studentID,
		AttemptNumber: int(used) + 1,
		Status:        model.AttemptInProgress,
		StartedAt:     s.now(),
	}
	if err := s.attemptRepo.Create(attempt); err != nil {
		// The unique (test, student, attempt_number) index is the backstop for
		// racing starts; losing that race is a conflict, not a server fault.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewStateError("attempt %d for test %d already exists", attempt.AttemptNumber, testID)
		}
		log.Error().Err(err).Uint("testID", testID).Str("studentID", studentID).Msg("StartAttempt: failed to create attempt")
		return nil, err
	}

	log.Info().Uint("attemptID", attempt.ID).Uint("testID", testID).Str("studentID", studentID).
		Int("attemptNumber", attempt.AttemptNumber).Msg("Attempt started")
	return s.buildAttemptDTO(attempt, test), nil
}

func (s *testAttemptService) SaveAnswers(attemptID uint, studentID string, req dto.AttemptAnswersDTO) (*dto.TestAttemptDTO, error) {
	attempt, err := s.findOwnedAttempt(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Terminal() {
		return nil, NewStateError("attempt %d is already %s", attemptID, attempt.Status)
	}

	test, err := s.testRepo.FindByIDWithQuestions(attempt.TestID)
	if err != nil {
		return nil, err
	}
	if s.expired(attempt, test) {
		if _, err := s.timeOut(attempt, test); err != nil {
			return nil, err
		}
		return nil, NewStateError("attempt %d timed out", attemptID)
	}

	answers := s.collectAnswers(test, req.Answers)
	saved, err := s.attemptRepo.SaveAnswers(attempt.ID, answers)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, NewStateError("attempt %d is no longer active", attemptID)
	}

	attempt.Answers = answers
	return s.buildAttemptDTO(attempt, test), nil
}

func (s *testAttemptService) SubmitAttempt(attemptID uint, studentID string, req dto.AttemptAnswersDTO) (*dto.TestAttemptDTO, error) {
	attempt, err := s.findOwnedAttempt(attemptID, studentID)
	if err != nil {
		return nil, err
	}

	test, err := s.testRepo.FindByIDWithQuestions(attempt.TestID)
	if err != nil {
		return nil, err
	}

	// Duplicate submit (e.g. a network retry): hand back the stored result,
	// never re-score.
	if attempt.Status.Terminal() {
		return s.buildAttemptDTO(attempt, test), nil
	}

	if s.expired(attempt, test) {
		// Too late: the submission window closed. Score whatever was last
		// persisted server-side, not the late payload.
		return s.timeOut(attempt, test)
	}

	now := s.now()
	merged := s.mergeAnswers(attempt.Answers, req.Answers)
	scored, score, allAuto := s.scoreAttempt(test, merged)

	attempt.Status = model.AttemptGraded
	if !allAuto {
		attempt.Status = model.AttemptSubmitted // terminal, pending manual review
	}
	attempt.SubmittedAt = &now
	attempt.TimeTakenSeconds = int(now.Sub(attempt.StartedAt).Seconds())
	attempt.Score = &score

	applied, err := s.attemptRepo.Finalize(attempt, scored)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("SubmitAttempt: failed to finalize attempt")
		return nil, err
	}
	if !applied {
		// A concurrent submit won the compare-and-swap; return its result.
		stored, err := s.attemptRepo.FindByIDWithAnswers(attemptID)
		if err != nil {
			return nil, err
		}
		return s.buildAttemptDTO(stored, test), nil
	}
	attempt.Answers = scored

	log.Info().Uint("attemptID", attemptID).Float64("score", score).Str("status", string(attempt.Status)).
		Msg("Attempt submitted and scored")
	s.notifier.Publish(notify.Event{
		EventType:   notify.EventSubmissionCreated,
		StudentID:   studentID,
		RelatedID:   attemptID,
		RelatedType: "test_attempt",
	})
	if attempt.Status == model.AttemptGraded {
		s.notifier.Publish(notify.Event{
			EventType:   notify.EventSubmissionGraded,
			StudentID:   studentID,
			RelatedID:   attemptID,
			RelatedType: "test_attempt",
		})
	}
	return s.buildAttemptDTO(attempt, test), nil
}

func (s *testAttemptService) GetAttempt(attemptID uint, studentID string) (*dto.TestAttemptDTO, error) {
	attempt, err := s.findOwnedAttempt(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	test, err := s.testRepo.FindByIDWithQuestions(attempt.TestID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptInProgress && s.expired(attempt, test) {
		return s.timeOut(attempt, test)
	}
	return s.buildAttemptDTO(attempt, test), nil
}

func (s *testAttemptService) GetAttemptsForTest(testID uint, studentID string) (*dto.TestAttemptListDTO, error) {
	test, err := s.testRepo.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("test", testID)
		}
		return nil, err
	}

	attempts, err := s.attemptRepo.FindAllByTestAndStudent(testID, studentID)
	if err != nil {
		return nil, err
	}

	resp := &dto.TestAttemptListDTO{Attempts: make([]dto.TestAttemptDTO, 0, len(attempts))}
	terminal := 0
	for i := range attempts {
		attempt := &attempts[i]
		if attempt.Status == model.AttemptInProgress && s.expired(attempt, test) {
			full, err := s.attemptRepo.FindByIDWithAnswers(attempt.ID)
			if err != nil {
				return nil, err
			}
			if _, err := s.timeOut(full, test); err != nil {
				return nil, err
			}
			*attempt = *full
		}
		if attempt.Status.Terminal() {
			terminal++
			if attempt.Score != nil && (resp.BestScore == nil || *attempt.Score > *resp.BestScore) {
				best := *attempt.Score
				resp.BestScore = &best
			}
		}
		resp.Attempts = append(resp.Attempts, *s.buildAttemptDTO(attempt, test))
	}
	resp.AttemptsRemaining = s.policy.AttemptsRemaining(test.MaxAttempts, terminal)
	return resp, nil
}

func (s *testAttemptService) SweepExpiredAttempts() (int, error) {
	attempts, err := s.attemptRepo.FindAllInProgress()
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range attempts {
		attempt := &attempts[i]
		if !s.expired(attempt, &attempt.Test) {
			continue
		}
		full, err := s.attemptRepo.FindByIDWithAnswers(attempt.ID)
		if err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Sweep: failed to load attempt, skipping")
			continue
		}
		if _, err := s.timeOut(full, &attempt.Test); err != nil {
			log.Error().Err(err).Uint("attemptID", attempt.ID).Msg("Sweep: failed to time out attempt")
			continue
		}
		closed++
	}
	if closed > 0 {
		log.Info().Int("closed", closed).Msg("Timeout sweep closed expired attempts")
	}
	return closed, nil
}

// --- internals ---

func (s *testAttemptService) findOwnedAttempt(attemptID uint, studentID string) (*model.TestAttempt, error) {
	attempt, err := s.attemptRepo.FindByIDWithAnswers(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("attempt", attemptID)
		}
		return nil, err
	}
	// Another student's attempt is indistinguishable from a missing one.
	if attempt.StudentID != studentID {
		return nil, NewNotFoundError("attempt", attemptID)
	}
	return attempt, nil
}

func (s *testAttemptService) expired(attempt *model.TestAttempt, test *model.Test) bool {
	if attempt.Status != model.AttemptInProgress || test.TimeLimitMinutes <= 0 {
		return false
	}
	deadline := attempt.StartedAt.Add(time.Duration(test.TimeLimitMinutes) * time.Minute)
	return s.now().After(deadline)
}

// timeOut closes an expired attempt, scoring the answers last persisted
// server-side. The attempt's Answers must be loaded.
func (s *testAttemptService) timeOut(attempt *model.TestAttempt, test *model.Test) (*dto.TestAttemptDTO, error) {
	if len(test.Questions) == 0 {
		questions, err := s.questionRepo.FindByTestID(test.ID)
		if err != nil {
			return nil, err
		}
		loaded := *test
		loaded.Questions = questions
		test = &loaded
	}

	stored := make(map[uint]json.RawMessage, len(attempt.Answers))
	for _, a := range attempt.Answers {
		stored[a.QuestionID] = json.RawMessage(a.Answer)
	}
	scored, score, _ := s.scoreAttempt(test, stored)

	deadline := attempt.StartedAt.Add(time.Duration(test.TimeLimitMinutes) * time.Minute)
	attempt.Status = model.AttemptTimedOut
	attempt.SubmittedAt = &deadline
	attempt.TimeTakenSeconds = test.TimeLimitMinutes * 60
	attempt.Score = &score

	applied, err := s.attemptRepo.Finalize(attempt, scored)
	if err != nil {
		return nil, err
	}
	if !applied {
		latest, err := s.attemptRepo.FindByIDWithAnswers(attempt.ID)
		if err != nil {
			return nil, err
		}
		*attempt = *latest
		return s.buildAttemptDTO(attempt, test), nil
	}
	attempt.Answers = scored

	log.Info().Uint("attemptID", attempt.ID).Float64("score", score).Msg("Attempt timed out")
	return s.buildAttemptDTO(attempt, test), nil
}

// collectAnswers keeps only answers for questions that belong to the test;
// anything else is logged and dropped, matching the isolation rule that one
// bad datum never blocks a submission.
func (s *testAttemptService) collectAnswers(test *model.Test, answers map[uint]json.RawMessage) []model.AttemptAnswer {
	known := make(map[uint]model.Question, len(test.Questions))
	for _, q := range test.Questions {
		known[q.ID] = q
	}
	out := make([]model.AttemptAnswer, 0, len(answers))
	for _, q := range test.Questions {
		raw, ok := answers[q.ID]
		if !ok {
			continue
		}
		out = append(out, model.AttemptAnswer{
			QuestionID:     q.ID,
			Answer:         datatypes.JSON(raw),
			PointsPossible: q.Points,
		})
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			log.Warn().Uint("questionID", id).Uint("testID", test.ID).
				Msg("SaveAnswers: answer for a question not in this test, dropped")
		}
	}
	return out
}

func (s *testAttemptService) mergeAnswers(persisted []model.AttemptAnswer, incoming map[uint]json.RawMessage) map[uint]json.RawMessage {
	merged := make(map[uint]json.RawMessage, len(persisted)+len(incoming))
	for _, a := range persisted {
		merged[a.QuestionID] = json.RawMessage(a.Answer)
	}
	for id, raw := range incoming {
		merged[id] = raw
	}
	return merged
}

// scoreAttempt evaluates every question of the test against the answer map
// and aggregates the percentage score. allAuto is false when the test carries
// a question type the evaluator does not recognize; such attempts stay
// SUBMITTED for manual review instead of jumping to GRADED.
func (s *testAttemptService) scoreAttempt(test *model.Test, answers map[uint]json.RawMessage) ([]model.AttemptAnswer, float64, bool) {
	scored := make([]model.AttemptAnswer, 0, len(test.Questions))
	results := make([]evaluator.Result, 0, len(test.Questions))
	allAuto := true

	for _, q := range test.Questions {
		qt := evaluator.QuestionType(q.Type)
		if !qt.Valid() {
			allAuto = false
		}
		res := s.engine.Evaluate(evaluator.Spec{
			QuestionID: q.ID,
			Type:       qt,
			Key:        []byte(q.AnswerKey),
			Points:     q.Points,
		}, answers[q.ID])
		results = append(results, res)

		isCorrect := res.IsCorrect
		scored = append(scored, model.AttemptAnswer{
			QuestionID:     q.ID,
			Answer:         datatypes.JSON(answers[q.ID]),
			IsCorrect:      &isCorrect,
			PointsEarned:   res.PointsEarned,
			PointsPossible: res.PointsPossible,
		})
	}
	return scored, s.scoring.Aggregate(results), allAuto
}

func (s *testAttemptService) buildAttemptDTO(attempt *model.TestAttempt, test *model.Test) *dto.TestAttemptDTO {
	resp := &dto.TestAttemptDTO{
		ID:               attempt.ID,
		TestID:           attempt.TestID,
		StudentID:        attempt.StudentID,
		AttemptNumber:    attempt.AttemptNumber,
		Status:           string(attempt.Status),
		StartedAt:        attempt.StartedAt,
		SubmittedAt:      attempt.SubmittedAt,
		TimeTakenSeconds: attempt.TimeTakenSeconds,
		Score:            attempt.Score,
	}
	if test != nil {
		resp.TestTitle = test.Title
		if attempt.Score != nil && attempt.Status.Terminal() {
			passed := s.scoring.Passed(*attempt.Score, test.PassingScore)
			resp.Passed = &passed
		}
	}
	resp.Answers = make([]dto.AttemptAnswerDTO, 0, len(attempt.Answers))
	for _, a := range attempt.Answers {
		resp.Answers = append(resp.Answers, dto.AttemptAnswerDTO{
			QuestionID:     a.QuestionID,
			Answer:         json.RawMessage(a.Answer),
			IsCorrect:      a.IsCorrect,
			PointsEarned:   a.PointsEarned,
			PointsPossible: a.PointsPossible,
		})
	}
	return resp
}
