package stream

// EventType names an outbound frame on the wire.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventJoinedExisting EventType = "joined_existing"
	EventPrediction     EventType = "prediction"
	EventSessionEnded   EventType = "session_ended"
	EventError          EventType = "error"
)

// Event is one outbound notification delivered to attached connections.
type Event struct {
	Type    EventType
	Payload any
}

// PredictionPayload is one replayed outcome.
type PredictionPayload struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Probability   float64 `json:"probability"`
	RiskLevel     string  `json:"risk_level"`
	Decision      string  `json:"decision"`
	Timestamp     string  `json:"timestamp"`
}

// session_ended statuses on the wire. Cancellation by detachment has nobody
// left to notify, so it never appears here.
const (
	EndStatusCompleted = "completed"
	EndStatusError     = "error"
)

// SessionEndedPayload is the terminal notification for a replay.
type SessionEndedPayload struct {
	Status  string `json:"status"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ErrorPayload reports a protocol-level error to a single connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
