package stream

import (
	"log"
	"math/rand"
	"time"

	"github.com/fraudstream/backend/internal/fraud"
	"github.com/fraudstream/backend/internal/stats"
)

// run is the replay driver: one goroutine per session, started exactly once
// at session creation. It walks the record sequence in order, scores each
// record, sleeps a random interval, and fans the prediction out to whatever
// connections are attached at delivery time. Cancellation is cooperative,
// checked once per iteration before the fetch.
func (t *Table) run(s *Session) {
	total := t.source.Len()

	for i := 0; i < total; i++ {
		if t.tryCancel(s) {
			return
		}

		rec, err := t.source.At(i)
		var out fraud.Outcome
		if err == nil {
			out, err = t.predictor.Predict(rec)
		}
		if err != nil {
			t.abort(s, err)
			return
		}

		select {
		case <-t.ctx.Done():
			t.shutdown(s)
			return
		case <-time.After(t.delay()):
		}

		t.deliver(s, Event{
			Type: EventPrediction,
			Payload: PredictionPayload{
				TransactionID: rec.TransactionID,
				Amount:        rec.Amount,
				Probability:   out.Probability,
				RiskLevel:     out.RiskLevel,
				Decision:      out.Decision,
				Timestamp:     time.Now().UTC().Format(time.RFC3339),
			},
		})

		if t.cfg.ProgressBatch > 0 && (i+1)%t.cfg.ProgressBatch == 0 {
			log.Printf("session %s: processed %d/%d transactions", s.token, i+1, total)
		}
	}

	t.complete(s, total)
}

// delay draws the inter-record pause uniformly from [MinDelay, MaxDelay].
func (t *Table) delay() time.Duration {
	if t.cfg.MaxDelay <= t.cfg.MinDelay {
		return t.cfg.MinDelay
	}
	return t.cfg.MinDelay + time.Duration(rand.Int63n(int64(t.cfg.MaxDelay-t.cfg.MinDelay)))
}

// deliver snapshots the attached set and advances the cursor under the table
// mutex, then sends outside it. Connections joining or leaving mid-sleep are
// included or excluded based on the set at delivery time.
func (t *Table) deliver(s *Session, ev Event) {
	t.mu.Lock()
	conns := s.conns()
	s.cursor++
	t.mu.Unlock()

	for _, c := range conns {
		c.Send(ev)
	}
	t.notify(stats.EventDelivered, s.token)
}

// tryCancel atomically checks the cancellation flag and, when set, commits
// the Running → Cancelled transition. Checking and committing under one lock
// acquisition means a join can never slip in between observing the flag and
// the session turning terminal.
func (t *Table) tryCancel(s *Session) bool {
	t.mu.Lock()
	if !s.cancelRequested {
		t.mu.Unlock()
		return false
	}
	s.status = Cancelled
	cursor := s.cursor
	t.removeLocked(s)
	t.mu.Unlock()

	log.Printf("session %s: replay cancelled at record %d", s.token, cursor)
	t.notify(stats.SessionCancelled, s.token)
	return true
}

// complete commits Running → Completed after the sequence is exhausted and
// emits exactly one session_ended to the connections attached at that
// moment. The session stays in the table until its last connection leaves.
func (t *Table) complete(s *Session, total int) {
	t.mu.Lock()
	s.status = Completed
	conns := s.conns()
	t.removeLocked(s)
	t.mu.Unlock()

	ended := Event{
		Type: EventSessionEnded,
		Payload: SessionEndedPayload{
			Status:  EndStatusCompleted,
			Total:   total,
			Message: "all transactions processed",
		},
	}
	for _, c := range conns {
		c.Send(ended)
	}

	log.Printf("session %s: replay complete (%d transactions)", s.token, total)
	t.notify(stats.SessionCompleted, s.token)
}

// abort commits Running → Cancelled on a record source or predictor failure.
// One bad record kills the whole replay; skipping would silently corrupt the
// demonstrated sequence. The error is surfaced to the attached set.
func (t *Table) abort(s *Session, err error) {
	t.mu.Lock()
	s.status = Cancelled
	cursor := s.cursor
	conns := s.conns()
	t.removeLocked(s)
	t.mu.Unlock()

	ended := Event{
		Type: EventSessionEnded,
		Payload: SessionEndedPayload{
			Status:  EndStatusError,
			Total:   cursor,
			Message: err.Error(),
		},
	}
	for _, c := range conns {
		c.Send(ended)
	}

	log.Printf("session %s: replay aborted at record %d: %v", s.token, cursor, err)
	t.notify(stats.SessionFailed, s.token)
}

// shutdown tears a session down when the process-wide context is cancelled.
// Clients are going away with the process, so no terminal event is emitted.
func (t *Table) shutdown(s *Session) {
	t.mu.Lock()
	s.status = Cancelled
	for id := range s.attached {
		delete(t.connTokens, id)
		delete(s.attached, id)
	}
	if t.sessions[s.token] == s {
		delete(t.sessions, s.token)
	}
	t.mu.Unlock()
}

// removeLocked drops a terminal session from the table once nothing is
// attached. The identity check guards against removing a fresh session that
// replaced this one under the same token. Caller holds t.mu.
func (t *Table) removeLocked(s *Session) {
	if len(s.attached) == 0 && t.sessions[s.token] == s {
		delete(t.sessions, s.token)
	}
}
