package sendq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler polls a SendQueue for pending messages and hands each claimed
// message to a Transport. Exactly one worker owns a claimed message.
type Scheduler struct {
	queue     SendQueue
	transport Transport
	cfg       SchedulerConfig

	upkeepMu   sync.Mutex
	pendingAt  time.Time
	releasedAt time.Time
}

type batchOutcome struct {
	sent   []Message
	retry  []Failure
	failed []Failure
}

// NewScheduler constructs a Scheduler with defaults and optional settings.
func NewScheduler(queue SendQueue, transport Transport, opts ...SchedulerOption) *Scheduler {
	if queue == nil {
		panic("sendq: nil SendQueue")
	}
	if transport == nil {
		panic("sendq: nil Transport")
	}

	var cfg SchedulerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	return &Scheduler{
		queue:     queue,
		transport: transport,
		cfg:       cfg,
	}
}

// Run starts the polling loop with the configured number of workers and
// blocks until the context is canceled or a worker fails.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, s.cfg.Workers)
	var wg sync.WaitGroup

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("%w: %v", ErrWorkerPanic, rec)
					s.cfg.Logger.Error("send worker panic", "worker", workerID, "panic", rec)
					errCh <- err
					cancel()
				}
			}()

			if err := s.runWorker(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.cfg.Logger.Error("send worker error", "worker", workerID, "err", err)
				errCh <- err
				cancel()
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// ProcessOnce claims and processes a single batch. It reports whether any
// messages were claimed.
func (s *Scheduler) ProcessOnce(ctx context.Context) (bool, error) {
	batch, err := s.queue.Claim(ctx, s.cfg.BatchSize)
	if err != nil {
		if errors.Is(err, ErrNoMessages) {
			s.idleUpkeep(ctx)

			return false, nil
		}

		return false, err
	}

	if err := s.processBatch(ctx, batch); err != nil {
		return false, err
	}

	return true, nil
}

func (s *Scheduler) runWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := s.queue.Claim(ctx, s.cfg.BatchSize)
		if err != nil {
			if errors.Is(err, ErrNoMessages) {
				s.idleUpkeep(ctx)
				if sleepErr := s.sleep(ctx, s.cfg.PollInterval); sleepErr != nil {
					return sleepErr
				}

				continue
			}

			return err
		}

		if err := s.processBatch(ctx, batch); err != nil {
			return err
		}
	}
}

func (s *Scheduler) processBatch(ctx context.Context, batch []Message) error {
	start := time.Now()
	defer func() {
		s.cfg.Metrics.ObserveBatchDuration(time.Since(start))
	}()

	outcome, err := s.collectBatchResults(ctx, batch)
	applyErr := s.applyBatchResults(ctx, outcome)

	return errors.Join(err, applyErr)
}

func (s *Scheduler) collectBatchResults(ctx context.Context, batch []Message) (batchOutcome, error) {
	outcome := batchOutcome{
		sent:   make([]Message, 0, len(batch)),
		retry:  make([]Failure, 0),
		failed: make([]Failure, 0),
	}
	for i := range batch {
		msg := batch[i]
		sendCtx := ctx
		cancel := func() {}
		if s.cfg.SendTimeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
		}
		err := s.transport.Send(sendCtx, msg)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				// Interrupted mid-batch: requeue the claimed remainder so a
				// crash or shutdown cannot strand messages in StateSending.
				outcome.retry = append(outcome.retry, Failure{ID: msg.ID, Err: ctx.Err()})
				for _, rest := range batch[i+1:] {
					outcome.retry = append(outcome.retry, Failure{ID: rest.ID, Err: ctx.Err()})
				}

				return outcome, ctx.Err()
			}
			s.recordFailure(ctx, msg, err, &outcome)

			continue
		}
		outcome.sent = append(outcome.sent, msg)
	}

	return outcome, nil
}

func (s *Scheduler) recordFailure(ctx context.Context, msg Message, err error, outcome *batchOutcome) {
	if s.cfg.ErrorHandler != nil {
		s.cfg.ErrorHandler(ctx, msg, err)
	}

	action := s.cfg.FailureClassifier(ctx, msg, err)
	if action == FailurePermanent {
		outcome.failed = append(outcome.failed, Failure{ID: msg.ID, Err: err})

		return
	}
	outcome.retry = append(outcome.retry, Failure{ID: msg.ID, Err: err})
}

func (s *Scheduler) applyBatchResults(ctx context.Context, outcome batchOutcome) error {
	// The batch may have been interrupted; its results must still land or
	// claimed messages stay stranded in StateSending.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}

	if len(outcome.sent) > 0 {
		ids := make([]uuid.UUID, 0, len(outcome.sent))
		for _, msg := range outcome.sent {
			ids = append(ids, msg.ID)
		}
		if err := s.queue.MarkSent(ctx, ids); err != nil {
			return fmt.Errorf("sendq: mark sent failed: %w", err)
		}
	}
	if len(outcome.retry) > 0 {
		if err := s.queue.Requeue(ctx, outcome.retry); err != nil {
			return fmt.Errorf("sendq: requeue failed: %w", err)
		}
	}
	if len(outcome.failed) > 0 {
		if err := s.queue.MarkFailed(ctx, outcome.failed); err != nil {
			return fmt.Errorf("sendq: mark failed failed: %w", err)
		}
	}

	s.cfg.Metrics.AddSent(len(outcome.sent))
	s.cfg.Metrics.AddRetries(len(outcome.retry))
	s.cfg.Metrics.AddFailed(len(outcome.failed))

	return nil
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// idleUpkeep samples the pending gauge and releases stale claims, each at
// most once per configured interval.
func (s *Scheduler) idleUpkeep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.maybeRecordPending(ctx)
	s.maybeReleaseStale(ctx)
}

func (s *Scheduler) maybeRecordPending(ctx context.Context) {
	counter, ok := s.queue.(PendingCounter)
	if !ok {
		return
	}
	if s.cfg.PendingInterval <= 0 {
		return
	}
	if !s.upkeepDue(&s.pendingAt, s.cfg.PendingInterval) {
		return
	}

	count, err := counter.PendingCount(ctx)
	if err != nil {
		s.cfg.Logger.Warn("pending count failed", "err", err)

		return
	}

	s.cfg.Metrics.SetPending(count)
}

func (s *Scheduler) maybeReleaseStale(ctx context.Context) {
	releaser, ok := s.queue.(StaleReleaser)
	if !ok {
		return
	}
	if s.cfg.StaleAfter <= 0 {
		return
	}
	if !s.upkeepDue(&s.releasedAt, s.cfg.StaleAfter) {
		return
	}

	released, err := releaser.ReleaseStale(ctx, s.cfg.StaleAfter)
	if err != nil {
		s.cfg.Logger.Warn("stale claim release failed", "err", err)

		return
	}
	if released > 0 {
		s.cfg.Logger.Info("released stale claims", "count", released)
	}
}

func (s *Scheduler) upkeepDue(last *time.Time, interval time.Duration) bool {
	now := s.cfg.Clock.Now()
	s.upkeepMu.Lock()
	defer s.upkeepMu.Unlock()

	if !last.IsZero() && now.Before(last.Add(interval)) {
		return false
	}
	*last = now

	return true
}
