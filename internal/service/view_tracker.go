package service

import (
	"context"
	"sync"
	"time"

	"atelier/internal/middleware"
	"atelier/internal/models"
	"atelier/internal/observability"
	"atelier/internal/repository"
)

// viewKey identifies one (viewer, target) pair in the dedup window.
type viewKey struct {
	kind   models.Kind
	id     uint
	viewer string
}

// ViewTracker counts views at most once per viewer per target within the
// dedup window. The window cache is process-local and in-memory: a restart
// forgets recent views and may double count a handful, which is acceptable
// for an engagement signal. Entries live out their full window; only the
// background sweep removes them.
type ViewTracker struct {
	counters repository.CounterStore
	window   time.Duration
	interval time.Duration

	mu   sync.Mutex
	seen map[viewKey]time.Time

	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewViewTracker creates a view tracker with the given dedup window and
// sweep interval.
func NewViewTracker(counters repository.CounterStore, window, interval time.Duration) *ViewTracker {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ViewTracker{
		counters: counters,
		window:   window,
		interval: interval,
		seen:     make(map[viewKey]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RecordView registers a view of the target by viewerKey and increments the
// stored view_count when this is the first view inside the window. Owners
// viewing their own content never count. The check and the reservation are
// one atomic step under the lock, so concurrent duplicate requests yield a
// single increment.
func (t *ViewTracker) RecordView(ctx context.Context, kind models.Kind, targetID uint, viewerKey string, isOwner bool) error {
	if !kind.Viewable() {
		return models.NewValidationError("invalid view target type")
	}
	if viewerKey == "" {
		observability.ViewsSuppressed.WithLabelValues(string(kind), "no_viewer").Inc()
		return nil
	}
	if isOwner {
		observability.ViewsSuppressed.WithLabelValues(string(kind), "owner").Inc()
		return nil
	}

	key := viewKey{kind: kind, id: targetID, viewer: viewerKey}
	now := time.Now()

	t.mu.Lock()
	if at, ok := t.seen[key]; ok && now.Sub(at) < t.window {
		t.mu.Unlock()
		observability.ViewsSuppressed.WithLabelValues(string(kind), "duplicate").Inc()
		return nil
	}
	t.seen[key] = now
	observability.ViewDedupEntries.Set(float64(len(t.seen)))
	t.mu.Unlock()

	// The adjustment runs outside the lock; a failed write releases the
	// reservation so the view is not silently lost for a whole window.
	if err := t.counters.Adjust(ctx, nil, kind, targetID, models.FieldViewCount, 1); err != nil {
		t.mu.Lock()
		delete(t.seen, key)
		observability.ViewDedupEntries.Set(float64(len(t.seen)))
		t.mu.Unlock()
		return err
	}
	observability.ViewsCounted.WithLabelValues(string(kind)).Inc()
	return nil
}

// Start launches the background sweep that drops entries whose window has
// fully elapsed.
func (t *ViewTracker) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := t.sweepOnce(time.Now()); removed > 0 {
					middleware.Logger.Debug("view dedup sweep", "removed", removed)
				}
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper and waits for it to exit. Stopping a tracker
// that was never started is a no-op.
func (t *ViewTracker) Stop() {
	t.mu.Lock()
	started := t.started
	t.started = false
	t.mu.Unlock()
	if !started {
		return
	}
	close(t.stop)
	<-t.done
}

// sweepOnce removes entries recorded at least a full window before now and
// reports how many were dropped. Entries inside the window always survive.
func (t *ViewTracker) sweepOnce(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, at := range t.seen {
		if now.Sub(at) >= t.window {
			delete(t.seen, key)
			removed++
		}
	}
	observability.ViewDedupEntries.Set(float64(len(t.seen)))
	return removed
}

// entryCount reports the live cache size, for tests.
func (t *ViewTracker) entryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
