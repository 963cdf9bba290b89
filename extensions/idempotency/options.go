package idempotency

import "time"

// config holds the configuration for Service.
type config struct {
	ttl          time.Duration
	store        ConfirmStore
	keyGenerator KeyGenerator
}

// Option configures a Service.
type Option func(*config)

// WithTTL sets how long settled outcomes are replayable.
//
// Only applies when using the default InMemoryStore.
//
// Default: 10 minutes
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithStore sets a custom ConfirmStore implementation.
// When specified, WithTTL is ignored.
func WithStore(store ConfirmStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithKeyGenerator sets a custom key derivation function.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) {
		c.keyGenerator = gen
	}
}
