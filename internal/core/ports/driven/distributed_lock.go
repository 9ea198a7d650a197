package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates housekeeping across worker instances.
type DistributedLock interface {
	// Acquire attempts to take a named lock for ttl.
	// Returns false without error when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release is best-effort and safe to call on a lock that has expired
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy
	Ping(ctx context.Context) error
}
