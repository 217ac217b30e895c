package sendq

import "time"

// Metrics captures pipeline and scheduler telemetry.
type Metrics interface {
	// AddEnqueued increments the count of durably enqueued messages.
	AddEnqueued(count int)
	// AddSent increments the count of successfully sent messages.
	AddSent(count int)
	// AddRetries increments the count of messages requeued after a failure.
	AddRetries(count int)
	// AddFailed increments the count of terminally failed messages.
	AddFailed(count int)
	// ObserveBatchDuration records the time to process a claimed batch.
	ObserveBatchDuration(duration time.Duration)
	// SetPending updates the current pending message count.
	SetPending(count int)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// AddEnqueued implements Metrics.
func (NopMetrics) AddEnqueued(int) {}

// AddSent implements Metrics.
func (NopMetrics) AddSent(int) {}

// AddRetries implements Metrics.
func (NopMetrics) AddRetries(int) {}

// AddFailed implements Metrics.
func (NopMetrics) AddFailed(int) {}

// ObserveBatchDuration implements Metrics.
func (NopMetrics) ObserveBatchDuration(time.Duration) {}

// SetPending implements Metrics.
func (NopMetrics) SetPending(int) {}
