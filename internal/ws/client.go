package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fraudstream/backend/internal/stream"
)

// client wraps one websocket connection behind a buffered outbound queue so
// replay drivers never block on a slow reader.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *client) ID() string { return c.id }

// Send marshals and enqueues one replay event. Never blocks: when the buffer
// is full the frame is dropped and the replay moves on without this client.
func (c *client) Send(ev stream.Event) {
	c.enqueue(Message{Type: string(ev.Type), Payload: ev.Payload})
}

var _ stream.Conn = (*client)(nil)

func (c *client) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws marshal error: %v", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Printf("ws client %s too slow, dropping frame", c.id)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// close stops the write pump. Safe to call repeatedly and concurrently with
// Send; the send channel itself is never closed.
func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}
