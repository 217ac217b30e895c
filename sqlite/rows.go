package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/murmurchat/sendq"
)

type threadRow struct {
	ID            uuid.UUID     `db:"id"`
	Kind          int8          `db:"kind"`
	Visibility    int8          `db:"visibility"`
	TimerNS       sql.NullInt64 `db:"timer_ns"`
	PendingDelete bool          `db:"pending_delete"`
	CreatedAt     time.Time     `db:"created_at"`
}

func (r threadRow) toDomain() sendq.Thread {
	thread := sendq.Thread{
		ID:            r.ID,
		Kind:          sendq.ThreadKind(r.Kind),
		Visibility:    sendq.Visibility(r.Visibility),
		PendingDelete: r.PendingDelete,
	}
	if r.TimerNS.Valid {
		timer := time.Duration(r.TimerNS.Int64)
		thread.Timer = &timer
	}

	return thread
}

type messageRow struct {
	ID        uuid.UUID      `db:"id"`
	ThreadID  uuid.UUID      `db:"thread_id"`
	Body      []byte         `db:"body"`
	Quote     []byte         `db:"quote"`
	Preview   []byte         `db:"preview"`
	Sticker   []byte         `db:"sticker"`
	State     int16          `db:"state"`
	Attempts  int            `db:"attempts"`
	LastError sql.NullString `db:"last_error"`
	CreatedAt time.Time      `db:"created_at"`
	SentAt    sql.NullTime   `db:"sent_at"`
	ClaimedAt sql.NullInt64  `db:"claimed_at"`
}

func (r messageRow) toDomain() (sendq.Message, error) {
	msg := sendq.Message{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		State:     sendq.SendState(r.State),
		Attempts:  r.Attempts,
		LastError: r.LastError.String,
		CreatedAt: r.CreatedAt,
	}
	if r.SentAt.Valid {
		sentAt := r.SentAt.Time
		msg.SentAt = &sentAt
	}
	if err := unmarshalColumn(r.Body, &msg.Body); err != nil {
		return sendq.Message{}, fmt.Errorf("sendq sqlite: decode body: %w", err)
	}
	if err := unmarshalColumn(r.Quote, &msg.QuotedReply); err != nil {
		return sendq.Message{}, fmt.Errorf("sendq sqlite: decode quote: %w", err)
	}
	if err := unmarshalColumn(r.Preview, &msg.LinkPreview); err != nil {
		return sendq.Message{}, fmt.Errorf("sendq sqlite: decode preview: %w", err)
	}
	if err := unmarshalColumn(r.Sticker, &msg.Sticker); err != nil {
		return sendq.Message{}, fmt.Errorf("sendq sqlite: decode sticker: %w", err)
	}

	return msg, nil
}

type attachmentRow struct {
	ID          uuid.UUID `db:"id"`
	MessageID   uuid.UUID `db:"message_id"`
	FileName    string    `db:"file_name"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	Data        []byte    `db:"data"`
}

func (r attachmentRow) toDomain() sendq.Attachment {
	return sendq.Attachment{
		ID:          r.ID,
		MessageID:   r.MessageID,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		Size:        r.Size,
		Data:        r.Data,
	}
}

// marshalColumn encodes an optional content field as JSON, mapping nil
// pointers to NULL.
func marshalColumn[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return string(encoded), nil
}

func unmarshalColumn[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		*dst = nil

		return nil
	}
	value := new(T)
	if err := json.Unmarshal(data, value); err != nil {
		return err
	}
	*dst = value

	return nil
}
