package stream

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fraudstream/backend/internal/fraud"
	"github.com/fraudstream/backend/internal/record"
	"github.com/fraudstream/backend/internal/stats"
)

// Predictor scores one record. Implementations must be safe for concurrent
// use; every session's driver calls it independently.
type Predictor interface {
	Predict(record.Record) (fraud.Outcome, error)
}

// Config bounds the replay driver's pacing.
type Config struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	ProgressBatch int
}

// Table is the process-wide session registry: client token to session, and
// connection ID to token. All structural mutations (create, attach, detach,
// remove) and attached-set reads during fan-out happen under one mutex, so
// concurrent join/leave/complete on a token never interleave partially.
type Table struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	connTokens map[string]string

	source    record.Source
	predictor Predictor
	cfg       Config
	events    chan<- stats.Event // optional; nil disables lifecycle stats
	ctx       context.Context    // bounds every replay driver
}

// NewTable builds the registry. ctx bounds all replay drivers: cancelling it
// stops every running replay at its next delay boundary.
func NewTable(ctx context.Context, source record.Source, predictor Predictor, cfg Config, events chan<- stats.Event) *Table {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Table{
		sessions:   make(map[string]*Session),
		connTokens: make(map[string]string),
		source:     source,
		predictor:  predictor,
		cfg:        cfg,
		events:     events,
		ctx:        ctx,
	}
}

// Join attaches conn to the session owned by token, creating the session and
// starting its replay driver when no live session exists. A session that is
// terminal but not yet removed counts as absent: the token gets a fresh
// replay from record zero. Returns true when a new session was created; the
// gateway uses that to pick the session_started / joined_existing reply.
func (t *Table) Join(conn Conn, token string) (created bool) {
	t.mu.Lock()

	// A connection re-joining under a different token first detaches from
	// its old session, so no session retains a handle that moved on.
	if prev, ok := t.connTokens[conn.ID()]; ok && prev != token {
		t.detachLocked(conn.ID(), prev)
	}

	if s, ok := t.sessions[token]; ok && s.status == Running {
		s.attached[conn.ID()] = conn
		// The flag tracks "attached is empty"; re-attaching clears it, which
		// rescues a session whose last viewer bounced within one delay.
		s.cancelRequested = false
		t.connTokens[conn.ID()] = token
		t.mu.Unlock()
		log.Printf("session %s: connection %s joined existing replay", token, conn.ID())
		return false
	}

	s := &Session{
		token:    token,
		attached: map[string]Conn{conn.ID(): conn},
		status:   Running,
	}
	t.sessions[token] = s
	t.connTokens[conn.ID()] = token
	t.mu.Unlock()

	log.Printf("session %s: replay started for connection %s", token, conn.ID())
	t.notify(stats.SessionStarted, token)
	go t.run(s)
	return true
}

// Leave detaches a connection. Unknown connections are a no-op. When the
// attached set empties, the session is flagged for cancellation and its
// driver stops at the next delay boundary; a session that is already
// terminal is removed from the table immediately.
func (t *Table) Leave(connID string) {
	t.mu.Lock()
	token, ok := t.connTokens[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.connTokens, connID)
	t.detachLocked(connID, token)
	t.mu.Unlock()
}

// detachLocked removes connID from token's session and handles the
// empty-set transition. Caller holds t.mu.
func (t *Table) detachLocked(connID, token string) {
	s, ok := t.sessions[token]
	if !ok {
		return
	}
	delete(s.attached, connID)
	if len(s.attached) > 0 {
		return
	}
	if s.status == Running {
		s.cancelRequested = true
		log.Printf("session %s: last connection detached, cancelling replay", token)
		return
	}
	delete(t.sessions, token)
	log.Printf("session %s: removed after last connection detached", token)
}

// Len reports the number of sessions currently in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// ActiveCount reports sessions that have not reached a terminal status.
func (t *Table) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, s := range t.sessions {
		if !s.status.IsTerminal() {
			count++
		}
	}
	return count
}

// ConnectionCount reports connections currently mapped to a session.
func (t *Table) ConnectionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connTokens)
}

// notify publishes a lifecycle event for the stats tracker. Never blocks;
// stats are observability only. Must not be called with t.mu held.
func (t *Table) notify(typ stats.EventType, token string) {
	if t.events == nil {
		return
	}
	ev := stats.Event{Type: typ, Token: token, Active: t.ActiveCount()}
	select {
	case t.events <- ev:
	default:
	}
}
