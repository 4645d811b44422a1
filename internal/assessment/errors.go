package assessment

import "errors"

var (
	ErrTestNotFound    = errors.New("test not found")
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptOpen: the partial unique index caught a concurrent start.
	ErrAttemptOpen = errors.New("attempt already open")
)

type DenyReason string

const (
	ReasonExhausted     DenyReason = "exhausted"
	ReasonAlreadyPassed DenyReason = "already_passed"
	ReasonNotScheduled  DenyReason = "not_scheduled"
)

// AttemptDenied is a policy denial, not a failure: surfaced to the student
// as a message.
type AttemptDenied struct {
	Reason DenyReason
}

func (e *AttemptDenied) Error() string { return "attempt denied: " + string(e.Reason) }
