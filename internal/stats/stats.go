package stats

import (
	"context"
	"sync"
	"time"
)

// EventType classifies replay lifecycle events.
type EventType int

const (
	SessionStarted   EventType = iota // new session created on first join
	SessionCompleted                  // record sequence exhausted
	SessionCancelled                  // all connections detached mid-replay
	SessionFailed                     // record source or detector error
	EventDelivered                    // one prediction fanned out
)

// Event carries one lifecycle notification from the stream core. Purely
// observational; dropping events under load is acceptable.
type Event struct {
	Type   EventType
	Token  string
	Active int // active sessions at event time
}

// Stats are the aggregate counters served at /api/stats.
type Stats struct {
	StartedAt          time.Time `json:"started_at"`
	SessionsStarted    int       `json:"sessions_started"`
	SessionsCompleted  int       `json:"sessions_completed"`
	SessionsCancelled  int       `json:"sessions_cancelled"`
	SessionsFailed     int       `json:"sessions_failed"`
	EventsDelivered    int       `json:"events_delivered"`
	PeakActiveSessions int       `json:"peak_active_sessions"`
}

// Tracker accumulates replay statistics from lifecycle events delivered over
// a channel. The caller must run Run in a goroutine.
type Tracker struct {
	mu     sync.Mutex
	stats  Stats
	events chan Event
}

// NewTracker returns a tracker and the send side of its event channel.
func NewTracker() (*Tracker, chan<- Event) {
	ch := make(chan Event, 256)
	t := &Tracker{
		stats:  Stats{StartedAt: time.Now()},
		events: ch,
	}
	return t, ch
}

// Run processes events until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			t.process(ev)
		}
	}
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Tracker) process(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case SessionStarted:
		t.stats.SessionsStarted++
	case SessionCompleted:
		t.stats.SessionsCompleted++
	case SessionCancelled:
		t.stats.SessionsCancelled++
	case SessionFailed:
		t.stats.SessionsFailed++
	case EventDelivered:
		t.stats.EventsDelivered++
	}

	if ev.Active > t.stats.PeakActiveSessions {
		t.stats.PeakActiveSessions = ev.Active
	}
}
