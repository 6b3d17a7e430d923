package lockmgr

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// generateOwnerID creates a new random owner ID
func generateOwnerID() ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return []byte(id.String()), nil
}

// Acquire polls lm every interval until the lock for key is acquired (for lease) or ctx is done.
func Acquire(ctx context.Context, lm ILockManager, key string, lease, interval time.Duration) ([]byte, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, ownerID, err := lm.AcquireLock(key, lease)
		if err != nil {
			return nil, err
		}
		if ok {
			return ownerID, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
