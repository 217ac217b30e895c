package sendq

import "context"

// FailureAction defines how a failed send should be handled.
type FailureAction int

const (
	// FailureRetry requeues the message as pending; it becomes terminally
	// failed once the store's attempt limit is reached.
	FailureRetry FailureAction = iota
	// FailurePermanent marks the message as failed immediately.
	FailurePermanent
)

// FailureClassifier decides whether a send failure is retryable.
type FailureClassifier func(ctx context.Context, msg Message, err error) FailureAction

func defaultFailureClassifier(context.Context, Message, error) FailureAction {
	return FailureRetry
}

// FailureHandler is called when sending a message returns an error.
type FailureHandler func(ctx context.Context, msg Message, err error)
