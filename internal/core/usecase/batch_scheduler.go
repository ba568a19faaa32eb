package usecase

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/atvirokodosprendimai/activitylog/internal/core/domain"
)

const DefaultBatchWindow = 3 * time.Second

// BatchScheduler collects "item added" events per context and fires onExpire
// once the context has been quiet for a full window. Every Add pushes the
// deadline out again.
type BatchScheduler struct {
	clock    clockwork.Clock
	window   time.Duration
	onExpire func(domain.ContextKey)

	batches sync.Map // domain.ContextKey -> *pendingBatch
}

type pendingBatch struct {
	mu       sync.Mutex
	items    []domain.ItemRef
	deadline time.Time
	timer    clockwork.Timer
	gen      uint64
	closed   bool
}

func NewBatchScheduler(clock clockwork.Clock, window time.Duration, onExpire func(domain.ContextKey)) *BatchScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultBatchWindow
	}
	return &BatchScheduler{clock: clock, window: window, onExpire: onExpire}
}

// Add appends item to the context's batch and re-arms its timer.
func (s *BatchScheduler) Add(key domain.ContextKey, item domain.ItemRef) {
	for {
		v, _ := s.batches.LoadOrStore(key, &pendingBatch{})
		b := v.(*pendingBatch)

		b.mu.Lock()
		if b.closed {
			// Lost a race with Drain; the map entry is gone or going.
			b.mu.Unlock()
			s.batches.CompareAndDelete(key, b)
			continue
		}
		b.items = append(b.items, item)
		b.gen++
		gen := b.gen
		if b.timer != nil {
			b.timer.Stop()
		}
		b.deadline = s.clock.Now().Add(s.window)
		b.timer = s.clock.AfterFunc(s.window, func() { s.expire(key, gen) })
		b.mu.Unlock()
		return
	}
}

// Drain removes the context's batch, stops its timer and returns the items.
func (s *BatchScheduler) Drain(key domain.ContextKey) []domain.ItemRef {
	v, ok := s.batches.Load(key)
	if !ok {
		return nil
	}
	b := v.(*pendingBatch)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	s.batches.CompareAndDelete(key, b)

	items := b.items
	b.items = nil
	return items
}

// Deadline returns the pending flush time of a context, if any.
func (s *BatchScheduler) Deadline(key domain.ContextKey) (time.Time, bool) {
	v, ok := s.batches.Load(key)
	if !ok {
		return time.Time{}, false
	}
	b := v.(*pendingBatch)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return time.Time{}, false
	}
	return b.deadline, true
}

func (s *BatchScheduler) Pending(key domain.ContextKey) int {
	v, ok := s.batches.Load(key)
	if !ok {
		return 0
	}
	b := v.(*pendingBatch)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// expire runs on the timer goroutine. It only carries the key and the
// generation it was armed for; batch contents are read at fire time.
func (s *BatchScheduler) expire(key domain.ContextKey, gen uint64) {
	v, ok := s.batches.Load(key)
	if !ok {
		return
	}
	b := v.(*pendingBatch)
	b.mu.Lock()
	stale := b.closed || b.gen != gen
	b.mu.Unlock()
	if stale {
		return
	}
	if s.onExpire != nil {
		s.onExpire(key)
	}
}
