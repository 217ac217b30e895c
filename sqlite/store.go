package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/murmurchat/sendq"
)

const defaultDSNParams = "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"

var messageColumns = []string{
	"id", "thread_id", "body", "quote", "preview", "sticker",
	"state", "attempts", "last_error", "created_at", "sent_at", "claimed_at",
}

// Store is a SQLite-backed implementation of the pipeline's storage
// collaborators. A single Store owns the write path: all write transactions
// serialize through an internal mutex.
type Store struct {
	db      *sqlx.DB
	cfg     Config
	writeMu sync.Mutex
}

var (
	_ sendq.Storage        = (*Store)(nil)
	_ sendq.SendQueue      = (*Store)(nil)
	_ sendq.PendingCounter = (*Store)(nil)
	_ sendq.StaleReleaser  = (*Store)(nil)
)

// Open opens (creating if needed) a SQLite database at path and returns a
// store over it. Foreign keys, a busy timeout and WAL journaling are enabled
// unless the path already carries DSN parameters.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	dsn := path
	if !strings.Contains(path, "?") {
		dsn = path + "?" + defaultDSNParams
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sendq sqlite: open %s: %w", path, err)
	}

	return NewStore(db, opts...)
}

// NewStore wraps an existing database handle.
func NewStore(db *sqlx.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{db: db, cfg: cfg.withDefaults()}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn inside a read transaction. Read capability is enforced by the
// scope type: the handle exposes no writes.
func (s *Store) View(ctx context.Context, fn func(sendq.ReadScope) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sendq sqlite: begin read tx failed: %w", err)
	}

	if err := fn(readScope{tx: tx}); err != nil {
		return errors.Join(err, rollback(tx))
	}

	return tx.Commit()
}

// Update runs fn inside the store's single write transaction, committing when
// fn returns nil and rolling back otherwise.
func (s *Store) Update(ctx context.Context, fn func(sendq.WriteScope) error) error {
	return s.write(ctx, func(tx *sqlx.Tx) error {
		return fn(writeScope{readScope: readScope{tx: tx}, store: s})
	})
}

func (s *Store) write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sendq sqlite: begin write tx failed: %w", err)
	}

	if err := fn(tx); err != nil {
		return errors.Join(err, rollback(tx))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sendq sqlite: commit failed: %w", err)
	}

	return nil
}

func rollback(tx *sqlx.Tx) error {
	err := tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}

// UpsertThread creates or refreshes a thread record in its own write
// transaction. Thread lifecycle belongs to the conversation store; this is the
// hook it uses to keep the pipeline's view current.
func (s *Store) UpsertThread(ctx context.Context, thread sendq.Thread) error {
	return s.write(ctx, func(tx *sqlx.Tx) error {
		return upsertThread(ctx, tx, thread)
	})
}

func upsertThread(ctx context.Context, tx *sqlx.Tx, thread sendq.Thread) error {
	var timer any
	if thread.Timer != nil {
		timer = int64(*thread.Timer)
	}

	query, args, err := sq.Insert("threads").
		Columns("id", "kind", "visibility", "timer_ns", "pending_delete").
		Values(thread.ID, thread.Kind, thread.Visibility, timer, thread.PendingDelete).
		Suffix("ON CONFLICT (id) DO UPDATE SET kind = excluded.kind, visibility = excluded.visibility, timer_ns = excluded.timer_ns, pending_delete = excluded.pending_delete").
		ToSql()
	if err != nil {
		return fmt.Errorf("sendq sqlite: build upsert thread: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sendq sqlite: upsert thread failed: %w", err)
	}

	return nil
}

type readScope struct {
	tx *sqlx.Tx
}

// Thread implements sendq.ReadScope.
func (r readScope) Thread(ctx context.Context, id uuid.UUID) (sendq.Thread, error) {
	query, args, err := sq.Select("id", "kind", "visibility", "timer_ns", "pending_delete", "created_at").
		From("threads").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return sendq.Thread{}, fmt.Errorf("sendq sqlite: build thread query: %w", err)
	}

	var row threadRow
	if err := r.tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sendq.Thread{}, sendq.ErrThreadNotFound
		}

		return sendq.Thread{}, fmt.Errorf("sendq sqlite: get thread failed: %w", err)
	}

	return row.toDomain(), nil
}

// Message implements sendq.ReadScope.
func (r readScope) Message(ctx context.Context, id uuid.UUID) (sendq.Message, error) {
	query, args, err := sq.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return sendq.Message{}, fmt.Errorf("sendq sqlite: build message query: %w", err)
	}

	var row messageRow
	if err := r.tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sendq.Message{}, sendq.ErrMessageNotFound
		}

		return sendq.Message{}, fmt.Errorf("sendq sqlite: get message failed: %w", err)
	}

	msg, err := row.toDomain()
	if err != nil {
		return sendq.Message{}, err
	}
	msg.Attachments, err = loadAttachments(ctx, r.tx, msg.ID)
	if err != nil {
		return sendq.Message{}, err
	}

	return msg, nil
}

func loadAttachments(ctx context.Context, tx *sqlx.Tx, messageID uuid.UUID) ([]sendq.Attachment, error) {
	query, args, err := sq.Select("id", "message_id", "file_name", "content_type", "size", "data").
		From("attachments").
		Where(sq.Eq{"message_id": messageID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sendq sqlite: build attachments query: %w", err)
	}

	var rows []attachmentRow
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sendq sqlite: load attachments failed: %w", err)
	}

	attachments := make([]sendq.Attachment, 0, len(rows))
	for _, row := range rows {
		attachments = append(attachments, row.toDomain())
	}

	return attachments, nil
}

type writeScope struct {
	readScope
	store *Store
}

// InsertMessage implements sendq.WriteScope.
func (w writeScope) InsertMessage(ctx context.Context, msg sendq.Message) error {
	body, err := marshalColumn(msg.Body)
	if err != nil {
		return fmt.Errorf("sendq sqlite: encode body: %w", err)
	}
	quote, err := marshalColumn(msg.QuotedReply)
	if err != nil {
		return fmt.Errorf("sendq sqlite: encode quote: %w", err)
	}
	preview, err := marshalColumn(msg.LinkPreview)
	if err != nil {
		return fmt.Errorf("sendq sqlite: encode preview: %w", err)
	}
	sticker, err := marshalColumn(msg.Sticker)
	if err != nil {
		return fmt.Errorf("sendq sqlite: encode sticker: %w", err)
	}

	query, args, err := sq.Insert("messages").
		Columns("id", "thread_id", "body", "quote", "preview", "sticker", "state", "attempts", "created_at").
		Values(msg.ID, msg.ThreadID, body, quote, preview, sticker, msg.State, msg.Attempts, msg.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sendq sqlite: build insert message: %w", err)
	}

	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sendq sqlite: insert message failed: %w", err)
	}

	return nil
}

// InsertAttachment implements sendq.WriteScope.
func (w writeScope) InsertAttachment(ctx context.Context, att sendq.Attachment) error {
	query, args, err := sq.Insert("attachments").
		Columns("id", "message_id", "file_name", "content_type", "size", "data").
		Values(att.ID, att.MessageID, att.FileName, att.ContentType, att.Size, att.Data).
		ToSql()
	if err != nil {
		return fmt.Errorf("sendq sqlite: build insert attachment: %w", err)
	}

	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sendq sqlite: insert attachment failed: %w", err)
	}

	return nil
}

// SetThreadVisibility implements sendq.WriteScope.
func (w writeScope) SetThreadVisibility(ctx context.Context, id uuid.UUID, v sendq.Visibility) error {
	query, args, err := sq.Update("threads").
		Set("visibility", v).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("sendq sqlite: build visibility update: %w", err)
	}

	result, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sendq sqlite: set visibility failed: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sendq.ErrThreadNotFound
	}

	return nil
}

// SetThreadTimer implements sendq.WriteScope.
func (w writeScope) SetThreadTimer(ctx context.Context, id uuid.UUID, timer time.Duration) error {
	query, args, err := sq.Update("threads").
		Set("timer_ns", int64(timer)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("sendq sqlite: build timer update: %w", err)
	}

	result, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sendq sqlite: set timer failed: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sendq.ErrThreadNotFound
	}

	return nil
}

// UpsertThread creates or refreshes a thread inside the caller's write scope.
func (w writeScope) UpsertThread(ctx context.Context, thread sendq.Thread) error {
	return upsertThread(ctx, w.tx, thread)
}

// DeleteAllContent implements sendq.WriteScope. Attachments go first so the
// messages delete cannot orphan them.
func (w writeScope) DeleteAllContent(ctx context.Context) error {
	if _, err := w.tx.ExecContext(ctx, "DELETE FROM attachments"); err != nil {
		return fmt.Errorf("sendq sqlite: delete attachments failed: %w", err)
	}
	if _, err := w.tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return fmt.Errorf("sendq sqlite: delete messages failed: %w", err)
	}

	return nil
}
