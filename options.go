package sendq

import "time"

// PipelineConfig defines pipeline behavior.
type PipelineConfig struct {
	Attachments  AttachmentStore
	Clock        Clock
	Logger       Logger
	Metrics      Metrics
	Generator    IDGenerator
	DefaultTimer time.Duration
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.Attachments == nil {
		c.Attachments = FileAttachments{}
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
	if c.Generator == nil {
		c.Generator = UUIDv7Generator{}
	}

	return c
}

// PipelineOption configures Pipeline behavior.
type PipelineOption func(*PipelineConfig)

// WithAttachmentStore sets the attachment subsystem collaborator.
func WithAttachmentStore(store AttachmentStore) PipelineOption {
	return func(c *PipelineConfig) {
		c.Attachments = store
	}
}

// WithPipelineClock sets the pipeline clock.
func WithPipelineClock(clock Clock) PipelineOption {
	return func(c *PipelineConfig) {
		c.Clock = clock
	}
}

// WithPipelineLogger sets the pipeline logger.
func WithPipelineLogger(logger Logger) PipelineOption {
	return func(c *PipelineConfig) {
		c.Logger = logger
	}
}

// WithPipelineMetrics sets the pipeline metrics recorder.
func WithPipelineMetrics(metrics Metrics) PipelineOption {
	return func(c *PipelineConfig) {
		c.Metrics = metrics
	}
}

// WithIDGenerator sets the message ID generator.
func WithIDGenerator(gen IDGenerator) PipelineOption {
	return func(c *PipelineConfig) {
		c.Generator = gen
	}
}

// WithDefaultTimer sets the sender's default disappearing-message timer,
// applied to a thread on visibility promotion when the thread has no explicit
// timer of its own. Zero disables the default.
func WithDefaultTimer(timer time.Duration) PipelineOption {
	return func(c *PipelineConfig) {
		c.DefaultTimer = timer
	}
}
