package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Backoff constants for log stream reconnection.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2
)

// streamPingWait is how long we wait for a ping from the gateway before
// treating the connection as dead.
const streamPingWait = 90 * time.Second

// streamWriteWait is the time allowed to write a control message.
const streamWriteWait = 10 * time.Second

// calculateBackoff returns the delay for a given reconnect attempt.
func calculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= backoffFactor
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// LogLine is one line of container output from the gateway.
type LogLine struct {
	Stream string `json:"stream"` // stdout or stderr
	Data   string `json:"data"`
	Time   string `json:"time,omitempty"`
}

// StreamContainerLogs follows a container's logs over the gateway's
// websocket endpoint, invoking fn for every line until ctx is cancelled.
// Dropped connections are re-dialed with exponential backoff; this is
// transport plumbing, not a lifecycle-action retry.
func (c *Client) StreamContainerLogs(ctx context.Context, containerID string, fn func(LogLine)) error {
	wsURL, err := c.websocketURL("/containers/" + containerID + "/logs/stream")
	if err != nil {
		return err
	}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			delay := calculateBackoff(attempt)
			attempt++
			c.log.Warn().Str("container", containerID).Err(err).Dur("retry_in", delay).Msg("log stream dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		attempt = 0

		err = c.readLogStream(ctx, conn, fn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug().Str("container", containerID).Err(err).Msg("log stream disconnected, reconnecting")
	}
}

func (c *Client) readLogStream(ctx context.Context, conn *websocket.Conn, fn func(LogLine)) error {
	conn.SetReadDeadline(time.Now().Add(streamPingWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(streamPingWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(streamWriteWait))
	})

	// Close the connection when ctx is cancelled so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var line LogLine
		if err := conn.ReadJSON(&line); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(streamPingWait))
		fn(line)
	}
}

// websocketURL converts the client's HTTP base URL to a ws/wss URL for the
// given path.
func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL: %w", err)
	}
	switch {
	case u.Scheme == "https":
		u.Scheme = "wss"
	case u.Scheme == "http" || u.Scheme == "":
		u.Scheme = "ws"
	case strings.HasPrefix(u.Scheme, "ws"):
		// Already a websocket scheme.
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	return u.String(), nil
}
