package sendq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReadScope is a read-capability transaction handle.
type ReadScope interface {
	// Thread returns the thread with the given ID, or ErrThreadNotFound.
	Thread(ctx context.Context, id uuid.UUID) (Thread, error)
	// Message returns the message with the given ID including its attachment
	// references, or ErrMessageNotFound.
	Message(ctx context.Context, id uuid.UUID) (Message, error)
}

// WriteScope is a write-capability transaction handle. Handles are not
// re-entrant across capability levels: a read scope is never upgraded in
// place, and a write scope must not be used after its transaction ends.
type WriteScope interface {
	ReadScope

	// InsertMessage persists a message record with its state tag.
	InsertMessage(ctx context.Context, msg Message) error
	// InsertAttachment persists an attachment owned by a message.
	InsertAttachment(ctx context.Context, att Attachment) error
	// SetThreadVisibility updates the thread's whitelist state.
	SetThreadVisibility(ctx context.Context, id uuid.UUID, v Visibility) error
	// SetThreadTimer applies a disappearing-message timer to the thread.
	SetThreadTimer(ctx context.Context, id uuid.UUID, timer time.Duration) error
	// DeleteAllContent removes every message and attachment across all threads.
	DeleteAllContent(ctx context.Context) error
}

// Storage grants scoped transactions with commit-on-nil and rollback-on-error
// semantics. At most one write transaction is active per store.
type Storage interface {
	// View runs fn inside a read-only transaction.
	View(ctx context.Context, fn func(ReadScope) error) error
	// Update runs fn inside a write transaction, committing when fn returns
	// nil and rolling back otherwise.
	Update(ctx context.Context, fn func(WriteScope) error) error
}

// AttachmentStore turns compose-time handles into persisted attachment
// references. It owns the byte loading; the pipeline persists the returned
// reference inside the enqueue transaction.
type AttachmentStore interface {
	// Resolve validates the handle and returns a persisted reference with its
	// content loaded. Validation failures wrap ErrAttachmentInvalid.
	Resolve(ctx context.Context, h AttachmentHandle) (Attachment, error)
}

// SendQueue is the scheduler's view of the store.
type SendQueue interface {
	// Claim atomically flips up to limit pending messages to StateSending and
	// returns them, oldest first. Returns ErrNoMessages when nothing is pending.
	Claim(ctx context.Context, limit int) ([]Message, error)
	// MarkSent marks claimed messages as sent. Terminal.
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	// Requeue records retryable failures: each message returns to StatePending
	// with an incremented attempt count, or becomes StateFailed once the
	// store's attempt limit is reached.
	Requeue(ctx context.Context, failures []Failure) error
	// MarkFailed records non-retryable failures. Terminal.
	MarkFailed(ctx context.Context, failures []Failure) error
}

// PendingCounter optionally reports the number of pending messages.
type PendingCounter interface {
	// PendingCount returns the current number of pending messages.
	PendingCount(ctx context.Context) (int, error)
}

// StaleReleaser optionally recovers messages stuck in StateSending after a
// crash by returning claims older than the given age to StatePending.
type StaleReleaser interface {
	// ReleaseStale requeues stale claims and returns how many were released.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)
}
