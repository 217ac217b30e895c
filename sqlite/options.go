package sqlite

import "github.com/murmurchat/sendq"

const defaultMaxAttempts = 5

// Config defines store behavior.
type Config struct {
	MaxAttempts int
	Clock       sendq.Clock
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Clock == nil {
		c.Clock = sendq.SystemClock{}
	}

	return c
}

// Option configures the store.
type Option func(*Config)

// WithMaxAttempts sets the retry limit before a requeued message is marked failed.
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		c.MaxAttempts = attempts
	}
}

// WithClock sets the time source used by the store.
func WithClock(clock sendq.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}
