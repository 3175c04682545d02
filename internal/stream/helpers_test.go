package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fraudstream/backend/internal/fraud"
	"github.com/fraudstream/backend/internal/record"
)

// fakeConn records every event it is sent.
type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *fakeConn) predictions() []PredictionPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []PredictionPayload
	for _, ev := range c.events {
		if ev.Type == EventPrediction {
			out = append(out, ev.Payload.(PredictionPayload))
		}
	}
	return out
}

func (c *fakeConn) ended() []SessionEndedPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SessionEndedPayload
	for _, ev := range c.events {
		if ev.Type == EventSessionEnded {
			out = append(out, ev.Payload.(SessionEndedPayload))
		}
	}
	return out
}

func (c *fakeConn) predictionCount() int { return len(c.predictions()) }
func (c *fakeConn) endedCount() int      { return len(c.ended()) }

// fakeSource yields n synthetic records; At(failAt) returns an error when
// failAt >= 0.
type fakeSource struct {
	n      int
	failAt int
}

func newFakeSource(n int) *fakeSource {
	return &fakeSource{n: n, failAt: -1}
}

func (s *fakeSource) Len() int { return s.n }

func (s *fakeSource) At(i int) (record.Record, error) {
	if i == s.failAt {
		return record.Record{}, fmt.Errorf("synthetic source failure at %d", i)
	}
	if i < 0 || i >= s.n {
		return record.Record{}, fmt.Errorf("record index %d out of range", i)
	}
	return record.Record{
		TransactionID: fmt.Sprintf("tx-%d", i),
		Amount:        25,
		Fields:        map[string]string{"card1": "1111"},
	}, nil
}

// fakePredictor returns a fixed outcome; records whose TransactionID matches
// failID produce an error.
type fakePredictor struct {
	failID string
}

func (p *fakePredictor) Predict(rec record.Record) (fraud.Outcome, error) {
	if p.failID != "" && rec.TransactionID == p.failID {
		return fraud.Outcome{}, fmt.Errorf("model rejected %s", rec.TransactionID)
	}
	return fraud.Outcome{Probability: 0.1, RiskLevel: fraud.RiskLow, Decision: fraud.DecisionApprove}, nil
}

func fastConfig() Config {
	return Config{MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, ProgressBatch: 1000}
}

func slowConfig() Config {
	return Config{MinDelay: 30 * time.Millisecond, MaxDelay: 40 * time.Millisecond, ProgressBatch: 1000}
}

func newTestTable(n int, cfg Config) *Table {
	return NewTable(context.Background(), newFakeSource(n), &fakePredictor{}, cfg, nil)
}

// predIndex extracts k from a "tx-k" transaction ID.
func predIndex(t *testing.T, p PredictionPayload) int {
	t.Helper()
	k, err := strconv.Atoi(strings.TrimPrefix(p.TransactionID, "tx-"))
	if err != nil {
		t.Fatalf("unexpected transaction id %q", p.TransactionID)
	}
	return k
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
