package campaign

import (
	"sync"
	"time"

	"linkforge/internal/logging"
)

// Scheduler owns the delayed cycle continuations, one per campaign id.
// Scheduling a campaign that already has a pending continuation replaces
// it, so a campaign can never have two cycles in flight: the next cycle
// is scheduled only after the previous one finished its persistence step,
// and Cancel removes the pending timer before any restart.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	run func(id string)
	wg  sync.WaitGroup
}

// NewScheduler creates a scheduler that invokes run for each due campaign.
func NewScheduler(run func(id string)) *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		run:    run,
	}
}

// Schedule queues one continuation for the campaign after delay,
// replacing any pending one.
func (s *Scheduler) Schedule(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	logging.SchedulerDebug("campaign %s: next cycle in %v", id, delay)
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.run(id)
}

// Cancel removes the campaign's pending continuation, if any. It does not
// interrupt a cycle that already started running.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
		logging.SchedulerDebug("campaign %s: pending cycle cancelled", id)
	}
}

// Pending reports whether the campaign has a queued continuation.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Stop cancels every pending continuation and waits for running cycles
// to finish. The scheduler accepts no new work afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	logging.Scheduler("scheduler stopped")
}
