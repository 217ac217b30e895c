package sqlite

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/murmurchat/sendq"
)

const maxErrorLen = 1024

const requeueQuery = `UPDATE messages
SET attempts = attempts + 1,
    last_error = ?,
    claimed_at = NULL,
    state = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END
WHERE id = ? AND state = ?`

const failQuery = `UPDATE messages
SET attempts = attempts + 1,
    last_error = ?,
    claimed_at = NULL,
    state = ?
WHERE id = ? AND state = ?`

// Claim implements sendq.SendQueue. It flips up to limit pending messages to
// StateSending inside one write transaction, so exactly one worker owns each
// claimed message. Messages come back oldest first (IDs are time-ordered).
func (s *Store) Claim(ctx context.Context, limit int) ([]sendq.Message, error) {
	if limit <= 0 {
		return nil, sendq.ErrInvalidBatchSize
	}

	var claimed []sendq.Message
	err := s.write(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sq.Select(messageColumns...).
			From("messages").
			Where(sq.Eq{"state": sendq.StatePending}).
			OrderBy("id ASC").
			Limit(uint64(limit)).
			ToSql()
		if err != nil {
			return fmt.Errorf("sendq sqlite: build claim query: %w", err)
		}

		var rows []messageRow
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return fmt.Errorf("sendq sqlite: claim select failed: %w", err)
		}
		if len(rows) == 0 {
			return sendq.ErrNoMessages
		}

		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		update, updateArgs, err := sq.Update("messages").
			Set("state", sendq.StateSending).
			Set("claimed_at", s.cfg.Clock.Now().UnixNano()).
			Where(sq.Eq{"id": ids}).
			ToSql()
		if err != nil {
			return fmt.Errorf("sendq sqlite: build claim update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, update, updateArgs...); err != nil {
			return fmt.Errorf("sendq sqlite: claim update failed: %w", err)
		}

		claimed = make([]sendq.Message, 0, len(rows))
		for _, row := range rows {
			msg, err := row.toDomain()
			if err != nil {
				return err
			}
			msg.State = sendq.StateSending
			msg.Attachments, err = loadAttachments(ctx, tx, msg.ID)
			if err != nil {
				return err
			}
			claimed = append(claimed, msg)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// MarkSent implements sendq.SendQueue. Marking a message that was purged
// mid-send is a no-op.
func (s *Store) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sq.Update("messages").
			Set("state", sendq.StateSent).
			Set("sent_at", s.cfg.Clock.Now()).
			Set("claimed_at", nil).
			Set("last_error", nil).
			Where(sq.Eq{"id": ids}).
			ToSql()
		if err != nil {
			return fmt.Errorf("sendq sqlite: build sent update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sendq sqlite: sent update failed: %w", err)
		}

		return nil
	})
}

// Requeue implements sendq.SendQueue: each failure returns the message to
// StatePending with an incremented attempt count, or to StateFailed once the
// attempt limit is reached. Only claimed messages move; a row that already
// reached a terminal state stays there.
func (s *Store) Requeue(ctx context.Context, failures []sendq.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *sqlx.Tx) error {
		for _, failure := range failures {
			_, err := tx.ExecContext(
				ctx,
				requeueQuery,
				truncateError(failure.Err),
				s.cfg.MaxAttempts,
				sendq.StateFailed,
				sendq.StatePending,
				failure.ID,
				sendq.StateSending,
			)
			if err != nil {
				return fmt.Errorf("sendq sqlite: requeue failed: %w", err)
			}
		}

		return nil
	})
}

// MarkFailed implements sendq.SendQueue with an immediate terminal failure.
// Rows already in a terminal state are left untouched.
func (s *Store) MarkFailed(ctx context.Context, failures []sendq.Failure) error {
	if len(failures) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *sqlx.Tx) error {
		for _, failure := range failures {
			_, err := tx.ExecContext(
				ctx,
				failQuery,
				truncateError(failure.Err),
				sendq.StateFailed,
				failure.ID,
				sendq.StateSending,
			)
			if err != nil {
				return fmt.Errorf("sendq sqlite: fail update failed: %w", err)
			}
		}

		return nil
	})
}

// PendingCount implements sendq.PendingCounter.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM messages WHERE state = ?", sendq.StatePending)
	if err != nil {
		return 0, fmt.Errorf("sendq sqlite: pending count failed: %w", err)
	}

	return count, nil
}

// ReleaseStale implements sendq.StaleReleaser: claims older than olderThan
// return to StatePending so a crashed worker cannot strand messages.
func (s *Store) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.cfg.Clock.Now().Add(-olderThan).UnixNano()

	var released int
	err := s.write(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sq.Update("messages").
			Set("state", sendq.StatePending).
			Set("claimed_at", nil).
			Where(sq.Eq{"state": sendq.StateSending}).
			Where(sq.LtOrEq{"claimed_at": cutoff}).
			ToSql()
		if err != nil {
			return fmt.Errorf("sendq sqlite: build stale release: %w", err)
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("sendq sqlite: stale release failed: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sendq sqlite: stale release rows: %w", err)
		}
		released = int(affected)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return released, nil
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if utf8.RuneCountInString(msg) <= maxErrorLen {
		return msg
	}

	runes := []rune(msg)

	return string(runes[:maxErrorLen])
}
