// Package sweep holds the expiration sweeper: the periodic pass that
// reclaims expired shares, orphaned blobs and stale tombstones.
package sweep

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/marianozunino/vanish/internal/blob"
	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/index"
	"github.com/marianozunino/vanish/internal/model"
)

// ErrSweepInProgress is returned by RunSweepOnce when another pass is
// already running. Overlapping passes are refused, not queued.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Sweeper periodically deletes expired shares and their blobs. Every pass
// is stateless and idempotent; a failed pass simply retries on the next
// tick.
type Sweeper struct {
	cfg       *config.Config
	blobs     blob.Store
	index     *index.Index
	retention time.Duration

	running  sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a sweeper over the given stores
func New(cfg *config.Config, blobs blob.Store, ix *index.Index) *Sweeper {
	return &Sweeper{
		cfg:       cfg,
		blobs:     blobs,
		index:     ix,
		retention: cfg.Retention(),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic sweeping process
func (s *Sweeper) Start() {
	go func() {
		if err := s.RunSweepOnce(context.Background()); err != nil {
			log.Printf("Warning: Initial sweep failed: %v", err)
		}

		ticker := time.NewTicker(s.cfg.SweepIntervalDuration())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.RunSweepOnce(context.Background()); err != nil {
					log.Printf("Warning: Sweep failed: %v", err)
				}
			case <-s.stopChan:
				log.Println("Sweeper stopped")
				return
			}
		}
	}()
	log.Printf("Sweeper started, running every %d minutes", s.cfg.SweepInterval)
}

// Stop halts the periodic sweeping process
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunSweepOnce performs a single sweep pass: expired shares, orphaned
// blobs, then stale tombstones. It is the entry point any external
// scheduler can call. Only one pass runs at a time.
func (s *Sweeper) RunSweepOnce(ctx context.Context) error {
	if !s.running.TryLock() {
		return ErrSweepInProgress
	}
	defer s.running.Unlock()

	now := time.Now()

	swept := s.sweepExpired(ctx, now)
	orphans, err := s.sweepOrphans(ctx, now)
	if err != nil {
		return err
	}
	purged := s.purgeTombstones(now)

	log.Printf("Sweep complete: %d expired, %d orphaned blobs, %d tombstones purged",
		swept, orphans, purged)
	return nil
}

// sweepExpired deletes the blob and then marks the record for every
// active share past its expiry. Blob first: a crash mid-pass leaves an
// orphaned blob, never a record pointing at nothing. Per-record failures
// are logged and skipped.
func (s *Sweeper) sweepExpired(ctx context.Context, now time.Time) int {
	expired, err := s.index.Scan(func(r model.ShareRecord) bool {
		return r.Status == model.StatusActive && r.Expired(now)
	})
	if err != nil {
		log.Printf("Error: Failed to scan for expired records: %v", err)
		return 0
	}

	var swept int
	for _, rec := range expired {
		// A missing blob is fine here: lazy deletion or a previous
		// crashed pass may already have removed it.
		if err := s.blobs.Delete(ctx, rec.Token); err != nil {
			log.Printf("Error: Failed to delete blob %q: %v", rec.Token, err)
			continue
		}

		if err := s.index.MarkDeleted(rec.Token); err != nil {
			// The record stays active and points at nothing until the
			// next pass retries. Bounded inconsistency, not hidden.
			log.Printf("Error: Failed to mark %q deleted after blob removal: %v", rec.Token, err)
			continue
		}

		swept++
	}

	return swept
}

// sweepOrphans reconciles blobs that have no active record, the leftover
// of a crash between the upload's blob write and its metadata write.
// Only blobs older than the retention window are touched: anything
// younger may be an upload whose metadata write is still in flight.
func (s *Sweeper) sweepOrphans(ctx context.Context, now time.Time) (int, error) {
	objects, err := s.blobs.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-s.retention)

	var removed int
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}

		rec, err := s.index.Get(obj.Key)
		if err == nil && rec.Status == model.StatusActive {
			continue
		}
		if err != nil && !errors.Is(err, index.ErrRecordNotFound) {
			log.Printf("Error: Failed to check record for blob %q: %v", obj.Key, err)
			continue
		}

		if err := s.blobs.Delete(ctx, obj.Key); err != nil {
			log.Printf("Error: Failed to delete orphaned blob %q: %v", obj.Key, err)
			continue
		}

		log.Printf("Removed orphaned blob %q (age: %v)", obj.Key, now.Sub(obj.ModTime).Round(time.Second))
		removed++
	}

	return removed, nil
}

// purgeTombstones drops deleted records once they are a full retention
// window past expiry. Keeping them that long lets late readers still see
// a clean "expired" rather than "not found".
func (s *Sweeper) purgeTombstones(now time.Time) int {
	cutoff := now.Add(-s.retention)

	stale, err := s.index.Scan(func(r model.ShareRecord) bool {
		return r.Status == model.StatusDeleted && r.ExpiresAt.Before(cutoff)
	})
	if err != nil {
		log.Printf("Error: Failed to scan for stale tombstones: %v", err)
		return 0
	}

	var purged int
	for _, rec := range stale {
		if err := s.index.Purge(rec.Token); err != nil {
			log.Printf("Error: Failed to purge tombstone %q: %v", rec.Token, err)
			continue
		}
		purged++
	}

	return purged
}
