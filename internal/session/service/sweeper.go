package service

import (
	"context"
	"log"
	"time"
)

// Purger removes expired sessions. Implemented by *Store.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Sweep calls PurgeExpired once immediately and then every interval until ctx is done. Errors are logged
// and the next tick retries; a failed sweep leaves expired records in place, which reads already ignore.
func Sweep(ctx context.Context, p Purger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		sweepOnce(ctx, p)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepOnce(ctx context.Context, p Purger) {
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("session: sweep failed: %v", err)
		}
		return
	}
	if n > 0 {
		log.Printf("session: swept %d expired sessions", n)
	}
}
