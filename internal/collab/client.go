package collab

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"videosync/models"
)

// Client is the outbound side of the transport, used when this process joins
// a hub hosted elsewhere. Updates received from the hub are handed to the
// caller through a handler callback.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// Dial connects to a collaboration hub for the given session.
func Dial(hubURL string, sessionID uuid.UUID) (*Client, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", sessionID.String())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to collaboration hub: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Send emits a local update to the hub. Failures surface to the caller but
// never roll back local state.
func (c *Client) Send(update models.TimelineUpdate) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(update); err != nil {
		return fmt.Errorf("failed to send update: %w", err)
	}
	return nil
}

// Listen blocks, delivering remote updates to handler until the connection
// drops. Run it on its own goroutine.
func (c *Client) Listen(handler func(models.TimelineUpdate)) error {
	for {
		var update models.TimelineUpdate
		if err := c.conn.ReadJSON(&update); err != nil {
			return fmt.Errorf("collaboration connection lost: %w", err)
		}
		handler(update)
	}
}

// Close shuts the connection down.
func (c *Client) Close() error {
	return c.conn.Close()
}
