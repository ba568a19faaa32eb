package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultSweepInterval = time.Hour

// Sweeper periodically removes bulk markers left behind by callers that
// crashed between Begin and End.
type Sweeper struct {
	registry  *BulkRegistry
	clock     clockwork.Clock
	interval  time.Duration
	staleness time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runsTotal    atomic.Int64
	sweptTotal   atomic.Int64
	failureTotal atomic.Int64
}

type SweeperMetrics struct {
	RunsTotal    int64
	SweptTotal   int64
	FailureTotal int64
}

func NewSweeper(registry *BulkRegistry, clock clockwork.Clock, interval, staleness time.Duration, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{registry: registry, clock: clock, interval: interval, staleness: staleness, logger: logger}
}

func (s *Sweeper) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Sweeper) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	s.runsTotal.Add(1)
	n, err := s.registry.Sweep(ctx, s.staleness)
	if err != nil {
		s.failureTotal.Add(1)
		s.logger.Warn("bulk marker sweep failed", "error", err)
		return 0
	}
	s.sweptTotal.Add(n)
	return n
}

func (s *Sweeper) Metrics() SweeperMetrics {
	return SweeperMetrics{
		RunsTotal:    s.runsTotal.Load(),
		SweptTotal:   s.sweptTotal.Load(),
		FailureTotal: s.failureTotal.Load(),
	}
}
