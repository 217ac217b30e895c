package sendq

import "time"

const (
	defaultBatchSize    = 25
	defaultPollInterval = 250 * time.Millisecond
	defaultWorkers      = 1
)

// SchedulerConfig defines how the Scheduler claims and sends messages.
type SchedulerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	Workers           int
	SendTimeout       time.Duration
	StaleAfter        time.Duration
	PendingInterval   time.Duration
	Clock             Clock
	Logger            Logger
	Metrics           Metrics
	ErrorHandler      FailureHandler
	FailureClassifier FailureClassifier
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.FailureClassifier == nil {
		c.FailureClassifier = defaultFailureClassifier
	}

	return c
}

// SchedulerOption configures Scheduler behavior.
type SchedulerOption func(*SchedulerConfig)

// WithBatchSize sets the number of messages claimed per batch.
func WithBatchSize(size int) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.BatchSize = size
	}
}

// WithPollInterval sets the delay between empty polls.
func WithPollInterval(interval time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.PollInterval = interval
	}
}

// WithWorkers sets the number of concurrent send workers.
func WithWorkers(count int) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.Workers = count
	}
}

// WithSendTimeout sets a per-message transport timeout.
func WithSendTimeout(timeout time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.SendTimeout = timeout
	}
}

// WithStaleAfter enables recovery of messages stuck in StateSending for
// longer than the given window, for queues that support it. Zero disables
// recovery; it is disabled by default.
func WithStaleAfter(window time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.StaleAfter = window
	}
}

// WithPendingInterval sets the minimum interval between pending count
// samples. Zero keeps sampling disabled, which is the default.
func WithPendingInterval(interval time.Duration) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.PendingInterval = interval
	}
}

// WithSchedulerClock sets the scheduler clock.
func WithSchedulerClock(clock Clock) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.Clock = clock
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger Logger) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.Logger = logger
	}
}

// WithSchedulerMetrics sets the scheduler metrics recorder.
func WithSchedulerMetrics(metrics Metrics) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.Metrics = metrics
	}
}

// WithErrorHandler registers a callback for send failures.
func WithErrorHandler(handler FailureHandler) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.ErrorHandler = handler
	}
}

// WithFailureClassifier sets the classifier deciding retry versus permanent
// failure.
func WithFailureClassifier(classifier FailureClassifier) SchedulerOption {
	return func(c *SchedulerConfig) {
		c.FailureClassifier = classifier
	}
}
