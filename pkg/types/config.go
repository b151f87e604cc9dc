package types

import (
	"fmt"
	"time"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultLockTimeout    = 10 * time.Second
	DefaultFlushInterval  = 5 * time.Second
	DefaultFlushBatchSize = 100
	DefaultSlidingExpiry  = 10 * time.Minute
)

// Config holds the database-wide options passed to simpledb.Open.
type Config struct {
	// DataDir is the root under which table files are stored.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// LockTimeout bounds the wait for a table write lock.
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout"`

	// FlushInterval is the period of the lazy-write flusher. A negative value
	// disables the timer; lazy tables then flush on batch size, Flush or
	// Close only.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`

	// FlushBatchSize flushes a lazy table once that many mutations are
	// pending.
	FlushBatchSize int `json:"flush_batch_size" yaml:"flush_batch_size"`

	// SlidingExpiry is the idle window of sliding-memory tables that do not
	// set their own.
	SlidingExpiry time.Duration `json:"sliding_expiry" yaml:"sliding_expiry"`

	// Now is the clock used for timestamps and cache expiry. Nil means
	// time.Now.
	Now func() time.Time `json:"-" yaml:"-"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.LockTimeout == 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FlushBatchSize == 0 {
		c.FlushBatchSize = DefaultFlushBatchSize
	}
	if c.SlidingExpiry == 0 {
		c.SlidingExpiry = DefaultSlidingExpiry
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Validate checks that the Config is well-formed. Errors wrap
// ErrInvalidConfig.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory must not be empty", ErrInvalidConfig)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("%w: lock timeout must not be negative", ErrInvalidConfig)
	}
	if c.FlushBatchSize < 0 {
		return fmt.Errorf("%w: flush batch size must not be negative", ErrInvalidConfig)
	}
	if c.SlidingExpiry < 0 {
		return fmt.Errorf("%w: sliding expiry must not be negative", ErrInvalidConfig)
	}
	return nil
}
