package service

import (
	"context"
	"log"
	"time"
)

// SweepStore is the slice of the store the sweeper needs: a candidate
// scan and a per-reservation expire that is atomic and re-checks its
// guards, so a stale candidate or a redundant sweeper pass is a no-op.
type SweepStore interface {
	ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]uint64, error)
	ExpireReservation(ctx context.Context, reservationID uint64, now time.Time) (bool, error)
}

// Sweeper is the background task that reclaims abandoned holds.  One
// sweeper runs per process; running more than one across processes is
// safe because every expire is individually guarded.  The loop stops
// only on context cancellation and always finishes the batch it is
// working on first.
type Sweeper struct {
	store     SweepStore
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewSweeper builds a Sweeper ticking at the given interval and
// processing at most batchSize candidates per pass.
func NewSweeper(store SweepStore, interval time.Duration, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes the sweep loop until ctx is cancelled.  Each pass runs
// under its own detached timeout rather than ctx, so a shutdown signal
// arriving mid-batch lets the batch complete instead of aborting its
// transactions halfway.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("sweeper: started, interval=%s batch=%d", s.interval, s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped")
			return
		case <-ticker.C:
			batchCtx, cancel := context.WithTimeout(context.Background(), s.interval)
			n := s.SweepOnce(batchCtx)
			cancel()
			if n > 0 {
				log.Printf("sweeper: expired %d reservations", n)
			}
		}
	}
}

// SweepOnce performs a single pass: select the pending reservations
// whose TTL has elapsed, then expire each in its own transaction.  A
// failure on one candidate is logged and the loop proceeds to the next;
// its seats simply stay held until a later pass.  Returns the number of
// reservations actually expired.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := s.now()
	ids, err := s.store.ExpiredCandidates(ctx, now, s.batchSize)
	if err != nil {
		log.Printf("sweeper: candidate scan failed: %v", err)
		return 0
	}
	expired := 0
	for _, id := range ids {
		done, err := s.store.ExpireReservation(ctx, id, now)
		if err != nil {
			log.Printf("sweeper: expire reservation %d failed: %v", id, err)
			continue
		}
		if done {
			expired++
		}
	}
	return expired
}
