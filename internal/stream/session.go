package stream

import "encoding/json"

// Status is a session's position in its lifecycle. Both terminal states are
// absorbing: the cursor never advances again and no further record events
// are emitted.
type Status int

const (
	Running Status = iota
	Completed
	Cancelled
)

var statusNames = map[Status]string{
	Running:   "running",
	Completed: "completed",
	Cancelled: "cancelled",
}

var statusFromName = map[string]Status{
	"running":   Running,
	"completed": Completed,
	"cancelled": Cancelled,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

func (s Status) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

// Conn is one live connection able to receive replay events. Send must not
// block; delivery is fire and forget.
type Conn interface {
	ID() string
	Send(Event)
}

// Session owns one replay: the cursor into the record sequence, the set of
// attached connections and the cancellation flag. Every field is guarded by
// the owning Table's mutex; the cursor additionally has a single writer, the
// session's replay driver.
type Session struct {
	token           string
	cursor          int
	attached        map[string]Conn
	cancelRequested bool
	status          Status
}

// conns snapshots the attached set. Caller must hold the table mutex.
func (s *Session) conns() []Conn {
	out := make([]Conn, 0, len(s.attached))
	for _, c := range s.attached {
		out = append(out, c)
	}
	return out
}
