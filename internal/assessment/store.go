package assessment

import "context"

type AttemptListOpts struct {
	TestID string // filter by test
	UserID string // filter by student
	Open   *bool  // true: in-progress only, false: submitted only
	Limit  int
	Offset int
}

type Store interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error) // full, incl. correct flags

	// StartAttempt checks eligibility, consumes an attempt slot and freezes
	// the snapshot, all in one transaction. Denials come back as
	// *AttemptDenied; a concurrent double-start as ErrAttemptOpen.
	StartAttempt(ctx context.Context, testID, userID string) (ResultTest, error)

	// Submit applies the selected live-answer IDs to the snapshot, scores it
	// and closes the attempt. Submitting a closed attempt returns the stored
	// result unchanged.
	Submit(ctx context.Context, attemptID string, answerIDs []string) (ResultTest, error)

	GetAttempt(ctx context.Context, id string) (ResultTest, error)         // header only
	GetAttemptSnapshot(ctx context.Context, id string) (ResultTest, error) // with questions
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]ResultTest, error)
}
