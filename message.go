package sendq

import (
	"time"

	"github.com/google/uuid"
)

// SendState is the persisted lifecycle tag of an outgoing message.
type SendState int16

const (
	// StatePending indicates the message is durably queued and ready to send.
	// It is set atomically with record creation; a message never exists
	// without it and is never queued without existing on disk.
	StatePending SendState = 0
	// StateSending indicates the message is claimed by exactly one scheduler worker.
	StateSending SendState = 1
	// StateSent indicates the message was transmitted successfully. Terminal.
	StateSent SendState = 2
	// StateFailed indicates the message exhausted its attempts or failed
	// non-retryably. Terminal.
	StateFailed SendState = -1
)

// String returns the state name for logs.
func (s SendState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is a persisted outgoing message. It belongs to exactly one thread
// and owns its attachments exclusively. The content fields are copies of the
// resolved draft, not live references to compose state.
type Message struct {
	ID          uuid.UUID
	ThreadID    uuid.UUID
	Body        *Body
	Attachments []Attachment
	QuotedReply *QuotedReply
	LinkPreview *LinkPreviewDraft
	Sticker     *Sticker
	State       SendState
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
}

// Failure captures a send error for a claimed message.
type Failure struct {
	ID  uuid.UUID
	Err error
}
