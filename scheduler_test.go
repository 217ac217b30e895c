package sendq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeQueue struct {
	mu       sync.Mutex
	batches  [][]Message
	claims   int
	sent     []uuid.UUID
	requeued []Failure
	failed   []Failure
	pending  int
	released int
}

func (q *fakeQueue) Claim(_ context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, ErrInvalidBatchSize
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claims >= len(q.batches) {
		return nil, ErrNoMessages
	}
	batch := q.batches[q.claims]
	q.claims++

	return batch, nil
}

func (q *fakeQueue) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, ids...)

	return nil
}

func (q *fakeQueue) Requeue(ctx context.Context, failures []Failure) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requeued = append(q.requeued, failures...)

	return nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, failures []Failure) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, failures...)

	return nil
}

func (q *fakeQueue) PendingCount(context.Context) (int, error) {
	return q.pending, nil
}

func (q *fakeQueue) ReleaseStale(context.Context, time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.released++

	return 1, nil
}

type captureMetrics struct {
	mu      sync.Mutex
	sent    int
	retries int
	failed  int
	pending int
}

func (m *captureMetrics) AddEnqueued(int) {}

func (m *captureMetrics) AddSent(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent += count
}

func (m *captureMetrics) AddRetries(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries += count
}

func (m *captureMetrics) AddFailed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed += count
}

func (m *captureMetrics) ObserveBatchDuration(time.Duration) {}

func (m *captureMetrics) SetPending(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = count
}

func testMessage() Message {
	return Message{ID: uuid.New(), ThreadID: uuid.New(), State: StateSending}
}

func TestProcessOnceMarksSent(t *testing.T) {
	first := testMessage()
	second := testMessage()
	queue := &fakeQueue{batches: [][]Message{{first, second}}}
	metrics := &captureMetrics{}
	scheduler := NewScheduler(queue, TransportFunc(func(context.Context, Message) error {
		return nil
	}), WithSchedulerMetrics(metrics))

	processed, err := scheduler.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !processed {
		t.Fatalf("expected a processed batch")
	}
	if len(queue.sent) != 2 {
		t.Fatalf("expected 2 sent, got %d", len(queue.sent))
	}
	if metrics.sent != 2 {
		t.Fatalf("expected sent metric 2, got %d", metrics.sent)
	}
}

func TestProcessOnceNoMessages(t *testing.T) {
	queue := &fakeQueue{}
	scheduler := NewScheduler(queue, TransportFunc(func(context.Context, Message) error {
		return nil
	}))

	processed, err := scheduler.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed {
		t.Fatalf("expected no batch")
	}
}

func TestProcessOnceRetriesFailuresByDefault(t *testing.T) {
	ok := testMessage()
	bad := testMessage()
	queue := &fakeQueue{batches: [][]Message{{ok, bad}}}
	sendErr := errors.New("transport down")
	scheduler := NewScheduler(queue, TransportFunc(func(_ context.Context, msg Message) error {
		if msg.ID == bad.ID {
			return sendErr
		}

		return nil
	}))

	if _, err := scheduler.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(queue.sent) != 1 || queue.sent[0] != ok.ID {
		t.Fatalf("expected only the good message sent")
	}
	if len(queue.requeued) != 1 || queue.requeued[0].ID != bad.ID {
		t.Fatalf("expected the bad message requeued")
	}
	if !errors.Is(queue.requeued[0].Err, sendErr) {
		t.Fatalf("expected failure cause recorded")
	}
}

func TestProcessOncePermanentFailure(t *testing.T) {
	bad := testMessage()
	queue := &fakeQueue{batches: [][]Message{{bad}}}
	var handled int
	scheduler := NewScheduler(queue,
		TransportFunc(func(context.Context, Message) error {
			return errors.New("rejected")
		}),
		WithFailureClassifier(func(context.Context, Message, error) FailureAction {
			return FailurePermanent
		}),
		WithErrorHandler(func(context.Context, Message, error) {
			handled++
		}),
	)

	if _, err := scheduler.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(queue.failed) != 1 || queue.failed[0].ID != bad.ID {
		t.Fatalf("expected terminal failure")
	}
	if len(queue.requeued) != 0 {
		t.Fatalf("expected no requeue")
	}
	if handled != 1 {
		t.Fatalf("expected error handler invoked once, got %d", handled)
	}
}

func TestIdleUpkeepSamplesPendingAndReleasesStale(t *testing.T) {
	queue := &fakeQueue{pending: 7}
	metrics := &captureMetrics{}
	scheduler := NewScheduler(queue,
		TransportFunc(func(context.Context, Message) error { return nil }),
		WithSchedulerMetrics(metrics),
		WithPendingInterval(time.Minute),
		WithStaleAfter(time.Minute),
	)

	if _, err := scheduler.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if metrics.pending != 7 {
		t.Fatalf("expected pending gauge 7, got %d", metrics.pending)
	}
	if queue.released != 1 {
		t.Fatalf("expected one stale release, got %d", queue.released)
	}

	// A second idle poll inside the interval must not sample again.
	if _, err := scheduler.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if queue.released != 1 {
		t.Fatalf("expected release throttled by interval")
	}
}

func TestCancellationMidBatchRequeuesClaimedRemainder(t *testing.T) {
	batch := []Message{testMessage(), testMessage(), testMessage()}
	queue := &fakeQueue{batches: [][]Message{batch}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler := NewScheduler(queue, TransportFunc(func(sendCtx context.Context, _ Message) error {
		cancel()

		return sendCtx.Err()
	}))

	_, err := scheduler.ProcessOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(queue.sent) != 0 {
		t.Fatalf("expected nothing sent, got %d", len(queue.sent))
	}
	// The requeue must land despite the canceled context, or the whole
	// claimed batch would be stranded in StateSending.
	if len(queue.requeued) != len(batch) {
		t.Fatalf("expected %d requeued, got %d", len(batch), len(queue.requeued))
	}
	for i, failure := range queue.requeued {
		if failure.ID != batch[i].ID {
			t.Fatalf("requeued[%d] = %s, want %s", i, failure.ID, batch[i].ID)
		}
	}
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	queue := &fakeQueue{batches: [][]Message{{testMessage()}}}
	scheduler := NewScheduler(queue, TransportFunc(func(context.Context, Message) error {
		panic("boom")
	}))

	err := scheduler.Run(context.Background())
	if !errors.Is(err, ErrWorkerPanic) {
		t.Fatalf("expected ErrWorkerPanic, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	queue := &fakeQueue{}
	scheduler := NewScheduler(queue,
		TransportFunc(func(context.Context, Message) error { return nil }),
		WithPollInterval(time.Millisecond),
		WithWorkers(2),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- scheduler.Run(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
