package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/sendq"
	"github.com/murmurchat/sendq/sqlite"
)

func newTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sendq.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	require.NoError(t, store.Migrate(context.Background()))

	return store
}

func newID(t *testing.T) uuid.UUID {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return id
}

func seedThread(t *testing.T, store *sqlite.Store, thread sendq.Thread) {
	t.Helper()

	require.NoError(t, store.UpsertThread(context.Background(), thread))
}

func seedMessage(t *testing.T, store *sqlite.Store, msg sendq.Message) {
	t.Helper()

	err := store.Update(context.Background(), func(w sendq.WriteScope) error {
		return w.InsertMessage(context.Background(), msg)
	})
	require.NoError(t, err)
}

func readMessage(t *testing.T, store *sqlite.Store, id uuid.UUID) (sendq.Message, error) {
	t.Helper()

	var msg sendq.Message
	err := store.View(context.Background(), func(r sendq.ReadScope) error {
		var viewErr error
		msg, viewErr = r.Message(context.Background(), id)

		return viewErr
	})

	return msg, err
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("")
	require.ErrorIs(t, err, sqlite.ErrPathRequired)
}

func TestThreadRoundtrip(t *testing.T) {
	store := newTestStore(t)
	timer := 24 * time.Hour
	thread := sendq.Thread{
		ID:         newID(t),
		Kind:       sendq.ThreadGroup,
		Visibility: sendq.VisibilityRequest,
		Timer:      &timer,
	}
	seedThread(t, store, thread)

	var got sendq.Thread
	err := store.View(context.Background(), func(r sendq.ReadScope) error {
		var viewErr error
		got, viewErr = r.Thread(context.Background(), thread.ID)

		return viewErr
	})
	require.NoError(t, err)
	require.Equal(t, thread.ID, got.ID)
	require.Equal(t, sendq.ThreadGroup, got.Kind)
	require.Equal(t, sendq.VisibilityRequest, got.Visibility)
	require.NotNil(t, got.Timer)
	require.Equal(t, timer, *got.Timer)
	require.False(t, got.PendingDelete)
}

func TestThreadNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.View(context.Background(), func(r sendq.ReadScope) error {
		_, viewErr := r.Thread(context.Background(), newID(t))

		return viewErr
	})
	require.ErrorIs(t, err, sendq.ErrThreadNotFound)
}

func TestMessageRoundtrip(t *testing.T) {
	store := newTestStore(t)
	thread := sendq.Thread{ID: newID(t), Visibility: sendq.VisibilityVisible}
	seedThread(t, store, thread)

	msg := sendq.Message{
		ID:       newID(t),
		ThreadID: thread.ID,
		Body: &sendq.Body{
			Text: "hello @ana",
			Ranges: []sendq.BodyRange{
				{Start: 6, Length: 4, Kind: sendq.RangeMention, Mention: "ana"},
			},
		},
		QuotedReply: &sendq.QuotedReply{MessageID: newID(t), Author: "bob", Excerpt: "earlier"},
		LinkPreview: &sendq.LinkPreviewDraft{URL: "https://example.com", Title: "Example"},
		State:       sendq.StatePending,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	attachment := sendq.Attachment{
		ID:          newID(t),
		MessageID:   msg.ID,
		FileName:    "pic.png",
		ContentType: "image/png",
		Size:        3,
		Data:        []byte{1, 2, 3},
	}
	err := store.Update(context.Background(), func(w sendq.WriteScope) error {
		if err := w.InsertMessage(context.Background(), msg); err != nil {
			return err
		}

		return w.InsertAttachment(context.Background(), attachment)
	})
	require.NoError(t, err)

	got, err := readMessage(t, store, msg.ID)
	require.NoError(t, err)
	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, thread.ID, got.ThreadID)
	require.NotNil(t, got.Body)
	require.Equal(t, "hello @ana", got.Body.Text)
	require.Len(t, got.Body.Ranges, 1)
	require.Equal(t, sendq.RangeMention, got.Body.Ranges[0].Kind)
	require.Equal(t, msg.QuotedReply.MessageID, got.QuotedReply.MessageID)
	require.Equal(t, "https://example.com", got.LinkPreview.URL)
	require.Nil(t, got.Sticker)
	require.Equal(t, sendq.StatePending, got.State)
	require.Nil(t, got.SentAt)
	require.Len(t, got.Attachments, 1)
	require.Equal(t, attachment.Data, got.Attachments[0].Data)
	require.Equal(t, "image/png", got.Attachments[0].ContentType)
}

func TestStickerRoundtrip(t *testing.T) {
	store := newTestStore(t)
	thread := sendq.Thread{ID: newID(t), Visibility: sendq.VisibilityVisible}
	seedThread(t, store, thread)

	msg := sendq.Message{
		ID:       newID(t),
		ThreadID: thread.ID,
		Sticker: &sendq.Sticker{
			Metadata: &sendq.StickerMetadata{
				PackID:      "pack-1",
				StickerID:   4,
				ContentType: "image/webp",
				ByteLength:  2,
			},
			Data: []byte{9, 9},
		},
		State:     sendq.StatePending,
		CreatedAt: time.Now().UTC(),
	}
	seedMessage(t, store, msg)

	got, err := readMessage(t, store, msg.ID)
	require.NoError(t, err)
	require.Nil(t, got.Body)
	require.NotNil(t, got.Sticker)
	require.NotNil(t, got.Sticker.Metadata)
	require.Equal(t, "pack-1", got.Sticker.Metadata.PackID)
	require.Equal(t, []byte{9, 9}, got.Sticker.Data)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	thread := sendq.Thread{ID: newID(t), Visibility: sendq.VisibilityVisible}
	seedThread(t, store, thread)

	msgID := newID(t)
	boom := errors.New("boom")
	err := store.Update(context.Background(), func(w sendq.WriteScope) error {
		insertErr := w.InsertMessage(context.Background(), sendq.Message{
			ID:        msgID,
			ThreadID:  thread.ID,
			Body:      &sendq.Body{Text: "never lands"},
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, insertErr)

		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = readMessage(t, store, msgID)
	require.ErrorIs(t, err, sendq.ErrMessageNotFound)
}

func TestSetThreadVisibilityUnknownThread(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), func(w sendq.WriteScope) error {
		return w.SetThreadVisibility(context.Background(), newID(t), sendq.VisibilityVisible)
	})
	require.ErrorIs(t, err, sendq.ErrThreadNotFound)
}

func TestDeleteAllContentKeepsThreads(t *testing.T) {
	store := newTestStore(t)
	thread := sendq.Thread{ID: newID(t), Visibility: sendq.VisibilityVisible}
	seedThread(t, store, thread)

	msg := sendq.Message{
		ID:        newID(t),
		ThreadID:  thread.ID,
		Body:      &sendq.Body{Text: "to purge"},
		CreatedAt: time.Now().UTC(),
	}
	attachment := sendq.Attachment{
		ID:          newID(t),
		MessageID:   msg.ID,
		ContentType: "image/png",
		Size:        1,
		Data:        []byte{1},
	}
	err := store.Update(context.Background(), func(w sendq.WriteScope) error {
		if err := w.InsertMessage(context.Background(), msg); err != nil {
			return err
		}
		if err := w.InsertAttachment(context.Background(), attachment); err != nil {
			return err
		}

		return nil
	})
	require.NoError(t, err)

	err = store.Update(context.Background(), func(w sendq.WriteScope) error {
		return w.DeleteAllContent(context.Background())
	})
	require.NoError(t, err)

	_, err = readMessage(t, store, msg.ID)
	require.ErrorIs(t, err, sendq.ErrMessageNotFound)

	err = store.View(context.Background(), func(r sendq.ReadScope) error {
		_, viewErr := r.Thread(context.Background(), thread.ID)

		return viewErr
	})
	require.NoError(t, err)
}

func TestPipelineOverStore(t *testing.T) {
	store := newTestStore(t)
	thread := sendq.Thread{ID: newID(t), Visibility: sendq.VisibilityRequest}
	seedThread(t, store, thread)

	pipeline := sendq.NewPipeline(store, sendq.WithDefaultTimer(time.Hour))
	draft := sendq.Draft{Body: &sendq.Body{Text: "hello"}}

	first, err := pipeline.Enqueue(context.Background(), draft, thread.ID, nil)
	require.NoError(t, err)
	require.Equal(t, sendq.StatePending, first.State)

	second, err := pipeline.Enqueue(context.Background(), draft, thread.ID, nil)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	var got sendq.Thread
	err = store.View(context.Background(), func(r sendq.ReadScope) error {
		var viewErr error
		got, viewErr = r.Thread(context.Background(), thread.ID)

		return viewErr
	})
	require.NoError(t, err)
	require.Equal(t, sendq.VisibilityVisible, got.Visibility)
	require.NotNil(t, got.Timer)
	require.Equal(t, time.Hour, *got.Timer)

	require.NoError(t, pipeline.DeleteAllContent(context.Background()))
	_, err = pipeline.Message(context.Background(), first.ID)
	require.ErrorIs(t, err, sendq.ErrMessageNotFound)
}
