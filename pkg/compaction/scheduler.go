package compaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// MinInterval is the shortest allowed tick period.
const MinInterval = 5 * time.Second

// SchedulerConfig controls the background loop.
type SchedulerConfig struct {
	Interval       time.Duration
	EventThreshold int
	CharThreshold  int
}

// Scheduler periodically compacts every candidate session.
type Scheduler struct {
	store     storage.CompactionStore
	compactor *Compactor
	lease     *Lease
	cfg       SchedulerConfig
	logger    logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler creates a scheduler. lease may be nil.
func NewScheduler(store storage.CompactionStore, compactor *Compactor, lease *Lease, cfg SchedulerConfig, log logger.Logger) *Scheduler {
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	if cfg.EventThreshold <= 0 {
		cfg.EventThreshold = 80
	}
	if cfg.CharThreshold <= 0 {
		cfg.CharThreshold = 24000
	}
	if log == nil {
		log = logger.Global()
	}
	return &Scheduler{
		store:     store,
		compactor: compactor,
		lease:     lease,
		cfg:       cfg,
		logger:    log.With("component", "compaction_scheduler"),
	}
}

// Start launches the loop. It returns immediately; calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	s.logger.Info("compaction scheduler started",
		"interval", s.cfg.Interval.String(),
		"event_threshold", s.cfg.EventThreshold,
		"char_threshold", s.cfg.CharThreshold,
	)
}

// Stop cancels the loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.logger.Info("compaction scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// TickReport summarizes one pass.
type TickReport struct {
	Candidates int
	Compacted  int
	Failed     int
	Skipped    bool
}

// RunOnce performs a single pass over the current candidates. Per-session
// failures are logged and left for the next pass.
func (s *Scheduler) RunOnce(ctx context.Context) TickReport {
	var report TickReport
	if ctx.Err() != nil {
		return report
	}

	if s.lease != nil {
		ok, err := s.lease.Acquire(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "compaction lease unavailable", "error", err)
			report.Skipped = true
			return report
		}
		if !ok {
			s.logger.DebugContext(ctx, "compaction lease held elsewhere")
			report.Skipped = true
			return report
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "compaction lease release failed", "error", err)
			}
		}()
	}

	candidates, err := s.store.CompactionCandidates(ctx, s.cfg.EventThreshold, s.cfg.CharThreshold)
	if err != nil {
		s.logger.ErrorContext(ctx, "listing compaction candidates failed", "error", err)
		return report
	}
	report.Candidates = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		_, err := s.compactor.SummarizeSession(ctx, SessionRequest{
			Namespace: c.Namespace,
			SessionID: c.SessionID,
			ProjectID: c.ProjectID,
		})
		if err != nil {
			report.Failed++
			level := s.logger.WarnContext
			if !errors.Is(err, memory.ErrProviderError) && !errors.Is(err, memory.ErrConflict) && !errors.Is(err, memory.ErrNotFound) {
				level = s.logger.ErrorContext
			}
			level(ctx, "compaction failed for session",
				"namespace", c.Namespace,
				"session_id", c.SessionID,
				"events", c.EventCount,
				"chars", c.CharCount,
				"error", err,
			)
			continue
		}
		report.Compacted++
	}
	return report
}
