package ports

import (
	"context"
	"time"
)

// ThrottleStore counts hits per key inside a fixed window, backing the
// per-IP mint and login throttles. Implementations must be safe for
// concurrent use across service instances.
type ThrottleStore interface {
	// Hit increments the counter for key, starting the window on first hit,
	// and returns the count including this hit.
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
}
