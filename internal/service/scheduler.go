package service

import (
	"context"
	"sync"
	"time"

	"github.com/xiaobei/rulesconv/internal/events"
	"github.com/xiaobei/rulesconv/internal/logger"
	"github.com/xiaobei/rulesconv/internal/storage"
)

// pruneFactor is how many cache TTLs a row may go unrefreshed before it is deleted.
const pruneFactor = 7

// RefreshResult is the payload of a cache.refreshed event.
type RefreshResult struct {
	Changed int    `json:"changed"`
	Pruned  int    `json:"pruned"`
	Error   string `json:"error,omitempty"`
}

// Scheduler periodically refreshes cached remote rulesets
type Scheduler struct {
	store   storage.Store
	convert *ConvertService
	bus     *events.Bus

	stopCh   chan struct{}
	running  bool
	interval time.Duration
	lastRun  time.Time
	mu       sync.Mutex
}

// NewScheduler creates a scheduler. bus may be nil.
func NewScheduler(store storage.Store, convert *ConvertService, bus *events.Bus) *Scheduler {
	return &Scheduler{
		store:   store,
		convert: convert,
		bus:     bus,
		stopCh:  make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	settings := s.store.GetSettings()
	if settings.RefreshInterval <= 0 {
		logger.Println("[Scheduler] Scheduled refresh disabled")
		return
	}

	s.interval = time.Duration(settings.RefreshInterval) * time.Minute
	s.running = true
	s.stopCh = make(chan struct{})

	go s.run(s.stopCh, s.interval)
	logger.Printf("[Scheduler] Started, refresh interval: %v", s.interval)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.running = false
	logger.Println("[Scheduler] Stopped")
}

// Restart restarts the scheduler (call after updating settings)
func (s *Scheduler) Restart() {
	s.Stop()
	s.Start()
}

// IsRunning checks if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetInterval gets the refresh interval
func (s *Scheduler) GetInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// GetNextUpdateTime gets the next refresh time
func (s *Scheduler) GetNextUpdateTime() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	base := s.lastRun
	if base.IsZero() {
		base = time.Now()
	}
	next := base.Add(s.interval)
	return &next
}

func (s *Scheduler) run(stopCh chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce refreshes every remote ruleset, prunes stale cache rows and publishes
// the result.
func (s *Scheduler) RunOnce(ctx context.Context) RefreshResult {
	logger.Println("[Scheduler] Starting cache refresh...")

	var result RefreshResult
	changed, err := s.convert.RefreshCache(ctx)
	result.Changed = changed
	if err != nil {
		result.Error = err.Error()
		logger.Warnf("[Scheduler] Refresh finished with errors: %v", err)
	}

	ttl := time.Duration(s.store.GetSettings().CacheTTL) * time.Minute
	if ttl > 0 {
		pruned, err := s.store.DeleteExpiredContent(pruneFactor * ttl)
		if err != nil {
			logger.Warnf("[Scheduler] Failed to prune cache: %v", err)
		}
		result.Pruned = pruned
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	logger.Printf("[Scheduler] Cache refresh completed, changed: %d, pruned: %d", result.Changed, result.Pruned)
	s.bus.Publish(events.CacheRefreshed, result)
	return result
}
