package service

import (
	"time"

	"github.com/nvkhoa/eduassess/internal/model"
)

// PolicyService is the single source of truth for attempt caps and deadline
// status. Both the eligibility checks and the "attempts remaining" numbers
// shown to students come from here, so they can never disagree.
type PolicyService interface {
	// AttemptsRemaining returns how many attempts are left given the cap and
	// how many were already used. nil means unlimited; never negative.
	AttemptsRemaining(maxAttempts *int, used int) *int
	// EnsureCanStartTest rejects starting an attempt on an unpublished test or
	// with the attempt cap reached.
	EnsureCanStartTest(test *model.Test, usedAttempts int) error
	// EnsureCanSubmitTask rejects a submission that is past a hard deadline or
	// over the task's attempt cap.
	EnsureCanSubmitTask(task *model.Task, usedAttempts int, now time.Time) error
	// IsLate reports whether now is past the deadline. No deadline, never late.
	IsLate(dueAt *time.Time, now time.Time) bool
}

type policyService struct{}

func NewPolicyService() PolicyService {
	return &policyService{}
}

func (p *policyService) AttemptsRemaining(maxAttempts *int, used int) *int {
	if maxAttempts == nil {
		return nil
	}
	remaining := *maxAttempts - used
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

func (p *policyService) EnsureCanStartTest(test *model.Test, usedAttempts int) error {
	if test.Status != model.TestPublished {
		return NewPolicyError("test %d is not published", test.ID)
	}
	if remaining := p.AttemptsRemaining(test.MaxAttempts, usedAttempts); remaining != nil && *remaining == 0 {
		return NewPolicyError("no attempts remaining for test %d", test.ID)
	}
	return nil
}

func (p *policyService) EnsureCanSubmitTask(task *model.Task, usedAttempts int, now time.Time) error {
	if task.IsPastDue(now) && !task.AllowLateSubmissions {
		return NewPolicyError("task %d is closed: deadline passed and late submissions are not allowed", task.ID)
	}
	if remaining := p.AttemptsRemaining(task.MaxAttempts, usedAttempts); remaining != nil && *remaining == 0 {
		return NewPolicyError("no attempts remaining for task %d", task.ID)
	}
	return nil
}

func (p *policyService) IsLate(dueAt *time.Time, now time.Time) bool {
	return dueAt != nil && now.After(*dueAt)
}
