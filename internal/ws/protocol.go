package ws

import "encoding/json"

// Control message types the client may send over the socket.
const (
	MsgJoin = "join"
)

// Message types the server emits outside the replay event stream.
const (
	MsgConnected = "connected"
)

// Message is the envelope for every frame the server writes.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// inboundMessage defers payload decoding until the type is known.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	Token string `json:"token"`
}

type connectedPayload struct {
	Status string `json:"status"`
}

// joinAckPayload confirms which token a join bound the connection to.
type joinAckPayload struct {
	Token string `json:"token"`
}
