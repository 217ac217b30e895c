package sendq

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Pipeline is the durable enqueue service. It is constructed with explicit
// collaborators and is safe for concurrent use; concurrent enqueues serialize
// through the storage layer's single-writer transaction discipline.
type Pipeline struct {
	storage     Storage
	attachments AttachmentStore
	cfg         PipelineConfig
}

// NewPipeline constructs a Pipeline with defaults and optional settings.
func NewPipeline(storage Storage, opts ...PipelineOption) *Pipeline {
	if storage == nil {
		panic("sendq: nil Storage")
	}

	var cfg PipelineConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Pipeline{
		storage:     storage,
		attachments: cfg.Attachments,
		cfg:         cfg,
	}
}

// Enqueue durably persists the draft as a pending message for the thread and
// returns only after the record exists on disk. When the ambient scope carries
// write capability the message composes with the caller's transaction;
// otherwise a new, independent write transaction is opened (scopes are never
// upgraded in place). The scope may be nil.
func (p *Pipeline) Enqueue(ctx context.Context, draft Draft, threadID uuid.UUID, scope ReadScope) (Message, error) {
	if w, ok := scope.(WriteScope); ok {
		return p.CreateUnsent(ctx, draft, threadID, w)
	}

	// Fail on compose input before opening a transaction.
	if err := draft.Validate(); err != nil {
		return Message{}, err
	}

	var msg Message
	err := p.storage.Update(ctx, func(w WriteScope) error {
		created, err := p.createUnsent(ctx, draft, threadID, w)
		if err != nil {
			return err
		}
		msg = created

		return nil
	})
	if err != nil {
		return Message{}, err
	}

	return msg, nil
}

// CreateUnsent persists the draft as a pending message inside the caller's
// write transaction, so creation can compose with other writes. On error no
// record survives: the caller's transaction must roll back.
func (p *Pipeline) CreateUnsent(ctx context.Context, draft Draft, threadID uuid.UUID, w WriteScope) (Message, error) {
	if w == nil {
		return Message{}, ErrWriteScopeRequired
	}
	if err := draft.Validate(); err != nil {
		return Message{}, err
	}

	return p.createUnsent(ctx, draft, threadID, w)
}

// EnqueueInstalledSticker resolves a sticker draft from an installed pack and
// enqueues it in its own write transaction.
func (p *Pipeline) EnqueueInstalledSticker(ctx context.Context, ref StickerRef, threadID uuid.UUID) (Message, error) {
	draft, err := ResolveInstalledSticker(ref)
	if err != nil {
		return Message{}, err
	}

	return p.Enqueue(ctx, draft, threadID, nil)
}

// EnqueueStickerPayload resolves a sticker draft carrying raw bytes for an
// uninstalled pack and enqueues it in its own write transaction.
func (p *Pipeline) EnqueueStickerPayload(ctx context.Context, meta StickerMetadata, data []byte, threadID uuid.UUID) (Message, error) {
	draft, err := ResolveStickerPayload(meta, data)
	if err != nil {
		return Message{}, err
	}

	return p.Enqueue(ctx, draft, threadID, nil)
}

func (p *Pipeline) createUnsent(ctx context.Context, draft Draft, threadID uuid.UUID, w WriteScope) (Message, error) {
	thread, err := w.Thread(ctx, threadID)
	if err != nil {
		return Message{}, err
	}
	if thread.PendingDelete {
		return Message{}, ErrThreadClosed
	}

	id, err := p.cfg.Generator.New()
	if err != nil {
		return Message{}, fmt.Errorf("%w: generate id: %v", ErrCreation, err)
	}

	msg := Message{
		ID:          id,
		ThreadID:    threadID,
		Body:        draft.Body,
		QuotedReply: draft.QuotedReply,
		LinkPreview: draft.LinkPreview,
		Sticker:     draft.Sticker,
		State:       StatePending,
		CreatedAt:   p.cfg.Clock.Now(),
	}
	if err := w.InsertMessage(ctx, msg); err != nil {
		return Message{}, err
	}

	// Attachments are validated lazily here, at persistence time.
	for _, handle := range draft.Attachments {
		att, err := p.attachments.Resolve(ctx, handle)
		if err != nil {
			return Message{}, err
		}
		att.ID, err = p.cfg.Generator.New()
		if err != nil {
			return Message{}, fmt.Errorf("%w: generate id: %v", ErrCreation, err)
		}
		att.MessageID = msg.ID
		if err := w.InsertAttachment(ctx, att); err != nil {
			return Message{}, err
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	// The first outbound-initiating action reveals the thread, in the same
	// transaction as the message itself.
	if _, err := p.promote(ctx, thread, w); err != nil {
		return Message{}, err
	}

	p.cfg.Metrics.AddEnqueued(1)
	p.cfg.Logger.Debug("message enqueued", "message", msg.ID, "thread", threadID, "state", msg.State.String())

	return msg, nil
}

// PromoteThreadVisibility adds the thread to the sender's whitelist iff it has
// no visibility record or is an unconfirmed request from the other party, and
// applies the default disappearing-message timer unless the thread already has
// an explicit one. It reports whether a promotion occurred. Callers must
// invoke it for every outbound-initiating action on a thread, not only sends;
// a nil scope acquires a short-lived write transaction internally.
func (p *Pipeline) PromoteThreadVisibility(ctx context.Context, threadID uuid.UUID, w WriteScope) (bool, error) {
	if w != nil {
		thread, err := w.Thread(ctx, threadID)
		if err != nil {
			return false, err
		}

		return p.promote(ctx, thread, w)
	}

	var promoted bool
	err := p.storage.Update(ctx, func(w WriteScope) error {
		thread, err := w.Thread(ctx, threadID)
		if err != nil {
			return err
		}
		promoted, err = p.promote(ctx, thread, w)

		return err
	})
	if err != nil {
		return false, err
	}

	return promoted, nil
}

func (p *Pipeline) promote(ctx context.Context, thread Thread, w WriteScope) (bool, error) {
	if thread.Visibility != VisibilityNone && thread.Visibility != VisibilityRequest {
		return false, nil
	}

	if err := w.SetThreadVisibility(ctx, thread.ID, VisibilityVisible); err != nil {
		return false, err
	}
	if thread.Timer == nil && p.cfg.DefaultTimer > 0 {
		if err := w.SetThreadTimer(ctx, thread.ID, p.cfg.DefaultTimer); err != nil {
			return false, err
		}
	}

	p.cfg.Logger.Info("thread promoted to whitelist", "thread", thread.ID)

	return true, nil
}

// Message looks up a persisted message and its current send state.
func (p *Pipeline) Message(ctx context.Context, id uuid.UUID) (Message, error) {
	var msg Message
	err := p.storage.View(ctx, func(r ReadScope) error {
		found, err := r.Message(ctx, id)
		if err != nil {
			return err
		}
		msg = found

		return nil
	})
	if err != nil {
		return Message{}, err
	}

	return msg, nil
}

// DeleteAllContent irreversibly removes every persisted message and attachment
// across all threads, regardless of send state. Callers must serialize it
// against active sends; an in-flight send whose message was purged resolves as
// a terminal failure.
func (p *Pipeline) DeleteAllContent(ctx context.Context) error {
	err := p.storage.Update(ctx, func(w WriteScope) error {
		return w.DeleteAllContent(ctx)
	})
	if err != nil {
		return err
	}

	p.cfg.Logger.Warn("all message content deleted")

	return nil
}
