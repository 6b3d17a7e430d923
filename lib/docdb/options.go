package docdb

import (
	"time"

	"github.com/roberthgnz/lsdb/lib/lockmgr"
)

const (
	defaultLockTimeout  = 5 * time.Second
	defaultLockInterval = 5 * time.Millisecond
)

type options struct {
	idGen        IDGenerator
	locker       lockmgr.ILockManager
	lockTimeout  time.Duration
	lockInterval time.Duration
}

// Option configures a Database at Open
type Option func(*options)

// WithIDGenerator replaces the random id generator, mainly for deterministic tests
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		o.idGen = gen
	}
}

// WithLocker serializes mutations across handles sharing the database name.
// Every mutation takes the lock "lsdb/lock/<name>" (waiting at most timeout), reloads the database,
// applies the change, persists it and releases the lock. The lock is leased for timeout,
// so a handle that dies while holding it blocks the others for at most that long.
func WithLocker(lm lockmgr.ILockManager, timeout time.Duration) Option {
	return func(o *options) {
		o.locker = lm
		if timeout > 0 {
			o.lockTimeout = timeout
		}
	}
}

func defaultOptions() *options {
	return &options{
		idGen:        NewID,
		lockTimeout:  defaultLockTimeout,
		lockInterval: defaultLockInterval,
	}
}
