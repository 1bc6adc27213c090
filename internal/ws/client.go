// Package ws follows remote job events over a WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/morrisclay/sb3pack/internal/model"
)

// Client is a WebSocket client that decodes job events.
type Client struct {
	conn      *websocket.Conn
	url       string
	apiKey    string
	OnEvent   func(model.JobEvent)
	OnError   func(error)
	OnClose   func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection. The connection is closed
// when ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket handshake failed (%d): %w", resp.StatusCode, err)
		}
		return err
	}

	c.conn = conn
	go c.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	return nil
}

// readLoop reads messages from the WebSocket.
func (c *Client) readLoop() {
	defer func() {
		if c.OnClose != nil {
			c.OnClose()
		}
		close(c.done)
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.OnError != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.OnError(err)
			}
			return
		}

		var ev model.JobEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			if c.OnError != nil {
				c.OnError(fmt.Errorf("decoding event: %w", err))
			}
			continue
		}
		if c.OnEvent != nil {
			c.OnEvent(ev)
		}
	}
}

// Close closes the WebSocket connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	var err error
	c.closeOnce.Do(func() {
		// Send close message
		werr := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		if werr == nil {
			// Wait for read loop to finish or timeout
			select {
			case <-c.done:
			case <-time.After(time.Second):
			}
		}
		err = c.conn.Close()
	})
	return err
}

// Done returns a channel that's closed when the connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
