package service

// In-memory repository fakes. They mimic the persistence contracts the
// services rely on, including the status-predicate compare-and-swap of
// Finalize and ApplyGrade, so the state machines can be tested without a
// database.

import (
	"github.com/nvkhoa/eduassess/internal/model"
	"github.com/nvkhoa/eduassess/internal/notify"
	"github.com/nvkhoa/eduassess/internal/repository"
	"gorm.io/gorm"
)

type fakeTestRepo struct {
	tests map[uint]*model.Test
}

func newFakeTestRepo(tests ...*model.Test) *fakeTestRepo {
	r := &fakeTestRepo{tests: make(map[uint]*model.Test)}
	for _, t := range tests {
		r.tests[t.ID] = t
	}
	return r
}

func (r *fakeTestRepo) Create(test *model.Test) error {
	r.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	t, ok := r.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTestRepo) FindByIDWithQuestions(id uint) (*model.Test, error) {
	return r.FindByID(id)
}

func (r *fakeTestRepo) FindAllWithQuestionCount() ([]repository.TestWithQuestionCount, error) {
	out := make([]repository.TestWithQuestionCount, 0, len(r.tests))
	for _, t := range r.tests {
		out = append(out, repository.TestWithQuestionCount{Test: *t, QuestionCount: len(t.Questions)})
	}
	return out, nil
}

type fakeQuestionRepo struct {
	tests *fakeTestRepo
}

func (r *fakeQuestionRepo) FindByID(id uint) (*model.Question, error) {
	for _, t := range r.tests.tests {
		for i := range t.Questions {
			if t.Questions[i].ID == id {
				q := t.Questions[i]
				return &q, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeQuestionRepo) FindByTestID(testID uint) ([]model.Question, error) {
	t, ok := r.tests.tests[testID]
	if !ok {
		return nil, nil
	}
	return t.Questions, nil
}

type fakeAttemptRepo struct {
	attempts map[uint]model.TestAttempt
	tests    *fakeTestRepo // for the Test preload of FindAllInProgress
	nextID   uint
}

func newFakeAttemptRepo(tests *fakeTestRepo) *fakeAttemptRepo {
	return &fakeAttemptRepo{attempts: make(map[uint]model.TestAttempt), tests: tests, nextID: 1}
}

func (r *fakeAttemptRepo) Create(attempt *model.TestAttempt) error {
	for _, a := range r.attempts {
		if a.TestID == attempt.TestID && a.StudentID == attempt.StudentID && a.AttemptNumber == attempt.AttemptNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	attempt.ID = r.nextID
	r.nextID++
	r.attempts[attempt.ID] = *attempt
	return nil
}

// bare returns the row the way the real queries without an Answers preload do.
func bare(a model.TestAttempt) model.TestAttempt {
	a.Answers = nil
	return a
}

func (r *fakeAttemptRepo) FindByID(id uint) (*model.TestAttempt, error) {
	a, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := bare(a)
	return &copied, nil
}

func (r *fakeAttemptRepo) FindByIDWithAnswers(id uint) (*model.TestAttempt, error) {
	a, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := a
	return &copied, nil
}

func (r *fakeAttemptRepo) FindAllByTestAndStudent(testID uint, studentID string) ([]model.TestAttempt, error) {
	var out []model.TestAttempt
	for _, n := range r.orderedIDs() {
		a := r.attempts[n]
		if a.TestID == testID && a.StudentID == studentID {
			out = append(out, bare(a))
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) FindActiveByTestAndStudent(testID uint, studentID string) (*model.TestAttempt, error) {
	for _, a := range r.attempts {
		if a.TestID == testID && a.StudentID == studentID && a.Status == model.AttemptInProgress {
			copied := bare(a)
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAttemptRepo) CountTerminalByTestAndStudent(testID uint, studentID string) (int64, error) {
	var count int64
	for _, a := range r.attempts {
		if a.TestID == testID && a.StudentID == studentID && a.Status != model.AttemptInProgress {
			count++
		}
	}
	return count, nil
}

func (r *fakeAttemptRepo) FindAllInProgress() ([]model.TestAttempt, error) {
	var out []model.TestAttempt
	for _, n := range r.orderedIDs() {
		a := r.attempts[n]
		if a.Status != model.AttemptInProgress {
			continue
		}
		if t, ok := r.tests.tests[a.TestID]; ok {
			a.Test = *t
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAttemptRepo) SaveAnswers(attemptID uint, answers []model.AttemptAnswer) (bool, error) {
	stored, ok := r.attempts[attemptID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != model.AttemptInProgress {
		return false, nil
	}
	stored.Answers = answers
	r.attempts[attemptID] = stored
	return true, nil
}

func (r *fakeAttemptRepo) Finalize(attempt *model.TestAttempt, answers []model.AttemptAnswer) (bool, error) {
	stored, ok := r.attempts[attempt.ID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != model.AttemptInProgress {
		return false, nil
	}
	stored.Status = attempt.Status
	stored.Score = attempt.Score
	stored.SubmittedAt = attempt.SubmittedAt
	stored.TimeTakenSeconds = attempt.TimeTakenSeconds
	stored.Answers = answers
	r.attempts[attempt.ID] = stored
	return true, nil
}

func (r *fakeAttemptRepo) orderedIDs() []uint {
	out := make([]uint, 0, len(r.attempts))
	for id := uint(1); id < r.nextID; id++ {
		if _, ok := r.attempts[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

type fakeTaskRepo struct {
	tasks map[uint]*model.Task
}

func newFakeTaskRepo(tasks ...*model.Task) *fakeTaskRepo {
	r := &fakeTaskRepo{tasks: make(map[uint]*model.Task)}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeTaskRepo) Create(task *model.Task) error {
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) FindByID(id uint) (*model.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *t
	return &copied, nil
}

type fakeSubmissionRepo struct {
	submissions map[uint]model.TaskSubmission
	tasks       *fakeTaskRepo
	nextID      uint
}

func newFakeSubmissionRepo(tasks *fakeTaskRepo) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: make(map[uint]model.TaskSubmission), tasks: tasks, nextID: 1}
}

func (r *fakeSubmissionRepo) Create(submission *model.TaskSubmission) error {
	submission.ID = r.nextID
	r.nextID++
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) FindByID(id uint) (*model.TaskSubmission, error) {
	s, ok := r.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *fakeSubmissionRepo) FindByIDWithTask(id uint) (*model.TaskSubmission, error) {
	s, err := r.FindByID(id)
	if err != nil {
		return nil, err
	}
	if t, ok := r.tasks.tasks[s.TaskID]; ok {
		s.Task = *t
	}
	return s, nil
}

func (r *fakeSubmissionRepo) FindAllByTaskAndStudent(taskID uint, studentID string) ([]model.TaskSubmission, error) {
	var out []model.TaskSubmission
	for id := uint(1); id < r.nextID; id++ {
		s, ok := r.submissions[id]
		if ok && s.TaskID == taskID && s.StudentID == studentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) CountByTaskAndStudent(taskID uint, studentID string) (int64, error) {
	var count int64
	for _, s := range r.submissions {
		if s.TaskID == taskID && s.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeSubmissionRepo) ApplyGrade(submission *model.TaskSubmission) (bool, error) {
	stored, ok := r.submissions[submission.ID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != model.SubmissionSubmitted {
		return false, nil
	}
	stored.Status = model.SubmissionGraded
	stored.Score = submission.Score
	stored.FinalScore = submission.FinalScore
	stored.GradedAt = submission.GradedAt
	stored.GraderID = submission.GraderID
	stored.Feedback = submission.Feedback
	r.submissions[submission.ID] = stored
	return true, nil
}

type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Publish(event notify.Event) {
	n.events = append(n.events, event)
}

func (n *recordingNotifier) eventsOfType(eventType string) []notify.Event {
	var out []notify.Event
	for _, e := range n.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
