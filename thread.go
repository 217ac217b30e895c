package sendq

import (
	"time"

	"github.com/google/uuid"
)

// ThreadKind distinguishes direct conversations from groups.
type ThreadKind int8

const (
	// ThreadDirect is a one-recipient conversation.
	ThreadDirect ThreadKind = iota
	// ThreadGroup is a conversation with a membership set.
	ThreadGroup
)

// Visibility is the sender's whitelist state for a thread.
type Visibility int8

const (
	// VisibilityNone means the thread has no visibility record yet.
	VisibilityNone Visibility = 0
	// VisibilityRequest means the other party initiated contact and the local
	// user has not yet responded.
	VisibilityRequest Visibility = 1
	// VisibilityVisible means the thread is in the sender's whitelist.
	VisibilityVisible Visibility = 2
)

// Thread is the destination conversation. The pipeline reads it and mutates
// only its visibility and disappearing-message timer; the conversation store
// owns everything else.
type Thread struct {
	ID            uuid.UUID
	Kind          ThreadKind
	Visibility    Visibility
	Timer         *time.Duration
	PendingDelete bool
}
