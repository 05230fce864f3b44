package jobs

import (
	"context"
	"log"
	"time"

	"fileconverter/storage"
)

// Retention periodically reclaims input and output blobs older than
// the retention window. It never consults job state: an artifact a
// caller has not yet downloaded may be deleted once the window passes,
// which is the deliberate bounded-retention trade-off. Result lookups
// after that legitimately report not-found.
type Retention struct {
	blobs    storage.Storage
	window   time.Duration
	interval time.Duration
}

func NewRetention(blobs storage.Storage, window, interval time.Duration) *Retention {
	return &Retention{blobs: blobs, window: window, interval: interval}
}

// Run sweeps on a fixed period until the context is canceled.
func (r *Retention) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("[Retention] Starting sweep loop (window %s, every %s)", r.window, r.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[Retention] Shutting down")
			return
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				log.Printf("[Retention] Sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce deletes expired blobs from both storage areas and returns
// the total deletion count. Running it twice back to back deletes
// nothing on the second pass unless files aged into eligibility in
// between.
func (r *Retention) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	for _, area := range []string{storage.AreaInput, storage.AreaOutput} {
		deleted, err := r.blobs.Sweep(ctx, area, r.window)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted > 0 {
			log.Printf("[Retention] Deleted %d expired blobs from %s", deleted, area)
		}
	}

	if usage, err := r.blobs.Usage(ctx); err == nil {
		log.Printf("[Retention] Sweep complete: %d deleted, %d files / %d bytes remaining",
			total, usage.FileCount, usage.Bytes)
	}
	return total, nil
}
