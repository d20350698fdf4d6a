package repository

import (
	"testing"
	"time"

	"github.com/nvkhoa/eduassess/internal/model"
	"gorm.io/datatypes"
)

func createSubmission(t *testing.T, repo TaskSubmissionRepository, taskID uint, studentID string, number int) *model.TaskSubmission {
	t.Helper()
	submission := &model.TaskSubmission{
		TaskID:        taskID,
		StudentID:     studentID,
		AttemptNumber: number,
		Answers:       datatypes.JSON(`{"text":"my answer"}`),
		Status:        model.SubmissionSubmitted,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := repo.Create(submission); err != nil {
		t.Fatalf("create submission: %v", err)
	}
	return submission
}

func TestApplyGradeIsCompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewTaskSubmissionRepository(db)

	task := &model.Task{Title: "Essay", MaxScore: 100}
	if err := tasks.Create(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	submission := createSubmission(t, repo, task.ID, "s1", 1)

	score, final := 85.0, 85.0
	now := time.Now().UTC()
	grader := "prof"
	submission.Score = &score
	submission.FinalScore = &final
	submission.GradedAt = &now
	submission.GraderID = &grader
	submission.Feedback = "Solid."

	applied, err := repo.ApplyGrade(submission)
	if err != nil {
		t.Fatalf("ApplyGrade() = %v", err)
	}
	if !applied {
		t.Fatal("first grade not applied")
	}

	applied, err = repo.ApplyGrade(submission)
	if err != nil {
		t.Fatalf("second ApplyGrade() = %v", err)
	}
	if applied {
		t.Fatal("second grade applied; the status predicate failed")
	}

	stored, err := repo.FindByIDWithTask(submission.ID)
	if err != nil {
		t.Fatalf("FindByIDWithTask() = %v", err)
	}
	if stored.Status != model.SubmissionGraded || stored.Score == nil || *stored.Score != 85 {
		t.Errorf("stored = %s/%v, want graded/85", stored.Status, stored.Score)
	}
	if stored.Task.MaxScore != 100 {
		t.Error("task not preloaded")
	}
}

func TestSubmissionQueries(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewTaskSubmissionRepository(db)

	task := &model.Task{Title: "Essay", MaxScore: 100}
	if err := tasks.Create(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	createSubmission(t, repo, task.ID, "s1", 1)
	createSubmission(t, repo, task.ID, "s1", 2)
	createSubmission(t, repo, task.ID, "s2", 1)

	count, err := repo.CountByTaskAndStudent(task.ID, "s1")
	if err != nil {
		t.Fatalf("CountByTaskAndStudent() = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	all, err := repo.FindAllByTaskAndStudent(task.ID, "s1")
	if err != nil {
		t.Fatalf("FindAllByTaskAndStudent() = %v", err)
	}
	if len(all) != 2 || all[0].AttemptNumber != 1 || all[1].AttemptNumber != 2 {
		t.Errorf("submissions = %+v, want numbers 1,2 in order", all)
	}
}

func TestSubmissionOrdinalIsUnique(t *testing.T) {
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewTaskSubmissionRepository(db)

	task := &model.Task{Title: "Essay", MaxScore: 100}
	if err := tasks.Create(task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	createSubmission(t, repo, task.ID, "s1", 1)

	dup := &model.TaskSubmission{
		TaskID:        task.ID,
		StudentID:     "s1",
		AttemptNumber: 1,
		Status:        model.SubmissionSubmitted,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := repo.Create(dup); err == nil {
		t.Fatal("duplicate (task, student, attempt_number) accepted")
	}
}
