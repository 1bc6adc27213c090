// Package stream follows remote job events over HTTP server-sent events or
// newline-delimited JSON.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/morrisclay/sb3pack/internal/model"
)

// Client is an HTTP streaming client.
type Client struct {
	url        string
	apiKey     string
	OnEvent    func(model.JobEvent)
	OnError    func(error)
	OnClose    func()
	httpClient *http.Client
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewClient creates a new streaming client.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{},
		done:       make(chan struct{}),
	}
}

// Connect starts the streaming connection. Cancelling ctx ends it.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		cancel()
		return err
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	go c.readLoop(ctx, resp)
	return nil
}

// readLoop reads events from the stream.
func (c *Client) readLoop(ctx context.Context, resp *http.Response) {
	defer func() {
		resp.Body.Close()
		if c.OnClose != nil {
			c.OnClose()
		}
		close(c.done)
	}()

	reader := bufio.NewReader(resp.Body)
	var dataBuffer strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// a cancelled context or a clean end of stream is not worth reporting
			if c.OnError != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
				c.OnError(err)
			}
			if dataBuffer.Len() > 0 {
				c.emit(dataBuffer.String())
			} else if tail := strings.TrimSpace(line); strings.HasPrefix(tail, "{") {
				c.emit(tail)
			}
			return
		}

		line = strings.TrimSpace(line)

		// Empty line signals end of an event
		if line == "" {
			if dataBuffer.Len() > 0 {
				c.emit(dataBuffer.String())
				dataBuffer.Reset()
			}
			continue
		}

		// SSE format: "data: {...}"
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimPrefix(line, "data:")
			dataBuffer.WriteString(strings.TrimSpace(data))
		} else if strings.HasPrefix(line, "{") {
			// Plain JSON (newline-delimited)
			c.emit(line)
		}
	}
}

func (c *Client) emit(data string) {
	var ev model.JobEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		if c.OnError != nil {
			c.OnError(fmt.Errorf("decoding event: %w", err))
		}
		return
	}
	if c.OnEvent != nil {
		c.OnEvent(ev)
	}
}

// Close closes the streaming connection.
func (c *Client) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Done returns a channel that's closed when the connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
