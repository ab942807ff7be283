package discovery

import (
	"sync"
	"time"

	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

type timerKind string

const (
	kindWave timerKind = "wave"
	kindHold timerKind = "hold"
)

type timerKey struct {
	kind   timerKind
	rideID uuid.UUID
	wave   int
}

// scheduler is an in-process registry of deferred callbacks keyed by
// (kind, rideID, wave). Scheduling an existing key replaces its timer, so a
// hold fallback re-arming the current wave never leaves two live timers for
// the same key. Handlers re-read ride state before acting, so a timer that
// outlives its ride is harmless.
type scheduler struct {
	mu     sync.Mutex
	timers map[timerKey]*time.Timer
	closed bool
}

func newScheduler() *scheduler {
	return &scheduler{timers: make(map[timerKey]*time.Timer)}
}

func (s *scheduler) schedule(key timerKey, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// stop cancels every pending timer. Used on shutdown; unsettled rides are
// re-armed by Resume on the next start.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
