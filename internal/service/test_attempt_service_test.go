package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nvkhoa/eduassess/internal/dto"
	"github.com/nvkhoa/eduassess/internal/evaluator"
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/notify"
	"gorm.io/datatypes"
)

type attemptFixture struct {
	svc      *testAttemptService
	tests    *fakeTestRepo
	attempts *fakeAttemptRepo
	notifier *recordingNotifier
	clock    time.Time
}

func newAttemptFixture(t *testing.T, tests ...*model.Test) *attemptFixture {
	t.Helper()
	f := &attemptFixture{
		tests:    newFakeTestRepo(tests...),
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.attempts = newFakeAttemptRepo(f.tests)
	f.svc = &testAttemptService{
		testRepo:     f.tests,
		questionRepo: &fakeQuestionRepo{tests: f.tests},
		attemptRepo:  f.attempts,
		engine:       evaluator.NewEngine(),
		scoring:      NewScoringService(),
		policy:       NewPolicyService(),
		notifier:     f.notifier,
		now:          func() time.Time { return f.clock },
	}
	return f
}

func (f *attemptFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func timedTest() *model.Test {
	return &model.Test{
		ID:               1,
		Title:            "Algebra basics",
		Status:           model.TestPublished,
		TimeLimitMinutes: 30,
		PassingScore:     70,
		Questions: []model.Question{
			{ID: 101, TestID: 1, Type: "single_choice", AnswerKey: datatypes.JSON(`{"option_id":"b"}`), Points: 5, OrderInTest: 1},
			{ID: 102, TestID: 1, Type: "numeric", AnswerKey: datatypes.JSON(`{"value":12,"tolerance":0}`), Points: 5, OrderInTest: 2},
		},
	}
}

func rawAnswers(pairs map[uint]string) map[uint]json.RawMessage {
	out := make(map[uint]json.RawMessage, len(pairs))
	for id, raw := range pairs {
		out[id] = json.RawMessage(raw)
	}
	return out
}

func TestStartAttempt(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	attempt, err := f.svc.StartAttempt(1, "s1")
	if err != nil {
		t.Fatalf("StartAttempt() = %v", err)
	}
	if attempt.AttemptNumber != 1 || attempt.Status != string(model.AttemptInProgress) {
		t.Errorf("got attempt=%d status=%s, want 1/in_progress", attempt.AttemptNumber, attempt.Status)
	}
	if !attempt.StartedAt.Equal(f.clock) {
		t.Errorf("StartedAt = %v, want %v", attempt.StartedAt, f.clock)
	}
}

func TestStartAttemptUnknownTest(t *testing.T) {
	f := newAttemptFixture(t)

	_, err := f.svc.StartAttempt(99, "s1")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("StartAttempt(unknown test) = %v, want NotFoundError", err)
	}
}

func TestStartAttemptUnpublishedTest(t *testing.T) {
	draft := timedTest()
	draft.Status = model.TestDraft
	f := newAttemptFixture(t, draft)

	_, err := f.svc.StartAttempt(1, "s1")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("StartAttempt(draft test) = %v, want PolicyError", err)
	}
}

func TestStartAttemptWhileActive(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	if _, err := f.svc.StartAttempt(1, "s1"); err != nil {
		t.Fatalf("first StartAttempt() = %v", err)
	}
	_, err := f.svc.StartAttempt(1, "s1")
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second StartAttempt() = %v, want StateError", err)
	}
}

func TestStartAttemptCapReached(t *testing.T) {
	capped := timedTest()
	capped.MaxAttempts = intPtr(1)
	f := newAttemptFixture(t, capped)

	first, err := f.svc.StartAttempt(1, "s1")
	if err != nil {
		t.Fatalf("StartAttempt() = %v", err)
	}
	if _, err := f.svc.SubmitAttempt(first.ID, "s1", dto.AttemptAnswersDTO{}); err != nil {
		t.Fatalf("SubmitAttempt() = %v", err)
	}

	_, err = f.svc.StartAttempt(1, "s1")
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("StartAttempt over cap = %v, want PolicyError", err)
	}
}

func TestStartAttemptClosesStaleAttempt(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	first, err := f.svc.StartAttempt(1, "s1")
	if err != nil {
		t.Fatalf("StartAttempt() = %v", err)
	}
	if _, err := f.svc.SaveAnswers(first.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`}),
	}); err != nil {
		t.Fatalf("SaveAnswers() = %v", err)
	}
	f.advance(31 * time.Minute)

	second, err := f.svc.StartAttempt(1, "s1")
	if err != nil {
		t.Fatalf("StartAttempt after expiry = %v", err)
	}
	if second.AttemptNumber != 2 {
		t.Errorf("AttemptNumber = %d, want 2", second.AttemptNumber)
	}
	stale := f.attempts.attempts[first.ID]
	if stale.Status != model.AttemptTimedOut {
		t.Errorf("stale attempt status = %s, want timed_out", stale.Status)
	}
	// The timeout scores the answers persisted before the deadline; the
	// active-attempt lookup alone does not carry them.
	if stale.Score == nil || *stale.Score != 50 {
		t.Errorf("stale attempt score = %v, want 50", stale.Score)
	}
	if len(stale.Answers) != 1 || string(stale.Answers[0].Answer) != `"b"` {
		t.Errorf("stale attempt answers = %+v, want the saved payload kept", stale.Answers)
	}
}

func TestStartAttemptDuplicateOrdinalIsConflict(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	// A terminal attempt already owns the ordinal the next start would take,
	// as after losing a race against a concurrent start that finished first.
	f.attempts.attempts[7] = model.TestAttempt{
		ID:            7,
		TestID:        1,
		StudentID:     "s1",
		AttemptNumber: 2,
		Status:        model.AttemptGraded,
		StartedAt:     f.clock,
	}

	_, err := f.svc.StartAttempt(1, "s1")
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("StartAttempt on taken ordinal = %v, want StateError", err)
	}
}

func TestSubmitAttemptScoresAnswers(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	f.advance(10 * time.Minute)

	result, err := f.svc.SubmitAttempt(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`, 102: `11`}),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt() = %v", err)
	}
	if result.Status != string(model.AttemptGraded) {
		t.Errorf("Status = %s, want graded", result.Status)
	}
	if result.Score == nil || *result.Score != 50 {
		t.Errorf("Score = %v, want 50", result.Score)
	}
	if result.Passed == nil || *result.Passed {
		t.Errorf("Passed = %v, want false (threshold 70)", result.Passed)
	}
	if result.TimeTakenSeconds != 600 {
		t.Errorf("TimeTakenSeconds = %d, want 600", result.TimeTakenSeconds)
	}
	if got := len(f.notifier.eventsOfType(notify.EventSubmissionGraded)); got != 1 {
		t.Errorf("graded events = %d, want 1", got)
	}
}

func TestSubmitAttemptIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	first, err := f.svc.SubmitAttempt(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`, 102: `12`}),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt() = %v", err)
	}

	// A retry with different answers must not re-score.
	second, err := f.svc.SubmitAttempt(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"a"`, 102: `0`}),
	})
	if err != nil {
		t.Fatalf("duplicate SubmitAttempt() = %v", err)
	}
	if *second.Score != *first.Score || second.Status != first.Status {
		t.Errorf("duplicate submit changed result: %v/%s vs %v/%s",
			*second.Score, second.Status, *first.Score, first.Status)
	}
	if got := len(f.notifier.eventsOfType(notify.EventSubmissionCreated)); got != 1 {
		t.Errorf("created events = %d, want 1", got)
	}
}

func TestSubmitAttemptAfterDeadlineScoresSavedAnswers(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	if _, err := f.svc.SaveAnswers(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`}),
	}); err != nil {
		t.Fatalf("SaveAnswers() = %v", err)
	}

	f.advance(31 * time.Minute)

	// The late payload has both answers right; only the saved one counts.
	result, err := f.svc.SubmitAttempt(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`, 102: `12`}),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt() = %v", err)
	}
	if result.Status != string(model.AttemptTimedOut) {
		t.Errorf("Status = %s, want timed_out", result.Status)
	}
	if result.Score == nil || *result.Score != 50 {
		t.Errorf("Score = %v, want 50 from saved answers only", result.Score)
	}
	if result.TimeTakenSeconds != 30*60 {
		t.Errorf("TimeTakenSeconds = %d, want the full time limit", result.TimeTakenSeconds)
	}
}

func TestSaveAnswersAfterDeadline(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	f.advance(31 * time.Minute)

	_, err := f.svc.SaveAnswers(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`}),
	})
	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("SaveAnswers after deadline = %v, want StateError", err)
	}
	stored := f.attempts.attempts[started.ID]
	if stored.Status != model.AttemptTimedOut {
		t.Errorf("attempt status = %s, want timed_out", stored.Status)
	}
}

func TestSaveAnswersDropsUnknownQuestions(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	result, err := f.svc.SaveAnswers(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`, 999: `"stray"`}),
	})
	if err != nil {
		t.Fatalf("SaveAnswers() = %v", err)
	}
	if len(result.Answers) != 1 || result.Answers[0].QuestionID != 101 {
		t.Errorf("saved answers = %+v, want only question 101", result.Answers)
	}
}

func TestSubmitAttemptUnrecognizedTypeStaysSubmitted(t *testing.T) {
	mixed := timedTest()
	mixed.Questions = append(mixed.Questions, model.Question{
		ID: 103, TestID: 1, Type: "essay", AnswerKey: datatypes.JSON(`{}`), Points: 10, OrderInTest: 3,
	})
	f := newAttemptFixture(t, mixed)

	started, _ := f.svc.StartAttempt(1, "s1")
	result, err := f.svc.SubmitAttempt(started.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`, 102: `12`, 103: `"long text"`}),
	})
	if err != nil {
		t.Fatalf("SubmitAttempt() = %v", err)
	}
	if result.Status != string(model.AttemptSubmitted) {
		t.Errorf("Status = %s, want submitted pending manual review", result.Status)
	}
	if got := len(f.notifier.eventsOfType(notify.EventSubmissionGraded)); got != 0 {
		t.Errorf("graded events = %d, want 0", got)
	}
}

func TestGetAttemptOwnership(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	_, err := f.svc.GetAttempt(started.ID, "someone-else")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("GetAttempt by another student = %v, want NotFoundError", err)
	}
}

func TestGetAttemptLazyTimeout(t *testing.T) {
	f := newAttemptFixture(t, timedTest())

	started, _ := f.svc.StartAttempt(1, "s1")
	f.advance(31 * time.Minute)

	result, err := f.svc.GetAttempt(started.ID, "s1")
	if err != nil {
		t.Fatalf("GetAttempt() = %v", err)
	}
	if result.Status != string(model.AttemptTimedOut) {
		t.Errorf("Status = %s, want timed_out", result.Status)
	}
}

func TestGetAttemptsForTest(t *testing.T) {
	capped := timedTest()
	capped.MaxAttempts = intPtr(3)
	f := newAttemptFixture(t, capped)

	a1, _ := f.svc.StartAttempt(1, "s1")
	f.svc.SubmitAttempt(a1.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`}),
	})
	a2, _ := f.svc.StartAttempt(1, "s1")
	f.svc.SubmitAttempt(a2.ID, "s1", dto.AttemptAnswersDTO{
		Answers: rawAnswers(map[uint]string{101: `"b"`, 102: `12`}),
	})

	list, err := f.svc.GetAttemptsForTest(1, "s1")
	if err != nil {
		t.Fatalf("GetAttemptsForTest() = %v", err)
	}
	if len(list.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(list.Attempts))
	}
	if list.BestScore == nil || *list.BestScore != 100 {
		t.Errorf("BestScore = %v, want 100", list.BestScore)
	}
	if list.AttemptsRemaining == nil || *list.AttemptsRemaining != 1 {
		t.Errorf("AttemptsRemaining = %v, want 1", list.AttemptsRemaining)
	}
}

func TestSweepExpiredAttempts(t *testing.T) {
	untimed := &model.Test{
		ID: 2, Title: "Untimed quiz", Status: model.TestPublished,
		Questions: []model.Question{
			{ID: 201, TestID: 2, Type: "true_false", AnswerKey: datatypes.JSON(`{"option_id":"true"}`), Points: 1, OrderInTest: 1},
		},
	}
	f := newAttemptFixture(t, timedTest(), untimed)

	expired, _ := f.svc.StartAttempt(1, "s1")
	f.svc.StartAttempt(2, "s1") // no time limit, never expires
	f.advance(31 * time.Minute)
	fresh, _ := f.svc.StartAttempt(1, "s2")

	closed, err := f.svc.SweepExpiredAttempts()
	if err != nil {
		t.Fatalf("SweepExpiredAttempts() = %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
	if got := f.attempts.attempts[expired.ID].Status; got != model.AttemptTimedOut {
		t.Errorf("expired attempt status = %s, want timed_out", got)
	}
	if got := f.attempts.attempts[fresh.ID].Status; got != model.AttemptInProgress {
		t.Errorf("fresh attempt status = %s, want in_progress", got)
	}
}
