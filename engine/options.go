package engine

import (
	"go.uber.org/zap"

	"github.com/flashgrid/rowdb/cipher"
)

// Option configures a DB at Create/Open time, following the teacher's
// functional-options pattern (segmentmanager.DiskSegmentManagerOption).
type Option func(*config)

type config struct {
	autoFlush          bool
	autoCleanThreshold int
	logger             *zap.Logger
	cipher             cipher.Cipher
	readOnly           bool
	explicitReadOnly   bool // true only when the caller passed WithReadOnly(true); distinguishes caller intent from Open's implicit read-only-until-Upgrade lock on older-major files.
}

func defaultConfig() *config {
	return &config{
		autoFlush:          false,
		autoCleanThreshold: -1, // negative disables auto-clean
		logger:             zap.NewNop(),
		cipher:             cipher.Nop(),
		readOnly:           false,
	}
}

// WithAutoFlush makes every mutating call invoke Flush before returning,
// per spec.md §5's "auto_flush=true calls flush after every mutation".
func WithAutoFlush(enabled bool) Option {
	return func(c *config) { c.autoFlush = enabled }
}

// WithAutoCleanThreshold triggers Clean automatically once NumDeleted
// exceeds threshold after a mutation. A negative threshold disables
// auto-clean (the default).
func WithAutoCleanThreshold(threshold int) Option {
	return func(c *config) { c.autoCleanThreshold = threshold }
}

// WithLogger injects a structured logger for table lifecycle events
// (create, open) and compaction. A nil logger is replaced with
// zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	}
}

// WithCipher sets the per-record encryption envelope collaborator. A nil
// cipher is replaced with cipher.Nop().
func WithCipher(c2 cipher.Cipher) Option {
	return func(c *config) {
		if c2 == nil {
			c2 = cipher.Nop()
		}
		c.cipher = c2
	}
}

// WithReadOnly opens the database in read-only mode: every mutating
// operation returns DatabaseReadOnlyMode without touching the backing
// store.
func WithReadOnly(readOnly bool) Option {
	return func(c *config) {
		c.readOnly = readOnly
		c.explicitReadOnly = readOnly
	}
}

func applyOptions(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}
