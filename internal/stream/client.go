package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/metrics"
)

// client manages a single SSE connection's write operations.
type client struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	limiter *rate.Limiter // bytes per second, nil for unlimited
	ip      string
	logger  *slog.Logger

	messagesSent int64
	bytesSent    int64
}

// sendJSON marshals v as JSON and sends it as an SSE "data:" message.
func (c *client) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.sendRaw(ctx, data)
}

// sendRaw sends pre-marshalled JSON as an SSE "data:" message.
// SSE format: "data: {json}\n\n"
func (c *client) sendRaw(ctx context.Context, data []byte) error {
	if err := c.throttle(ctx, len(data)+8); err != nil {
		return err
	}

	// Extend write deadline before each write to prevent timeout on long-lived connections.
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	c.messagesSent++
	c.bytesSent += int64(n)
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive sends an SSE comment line to keep the connection alive.
// SSE comment format: ":\n\n"
func (c *client) sendKeepalive() error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(30 * time.Second)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	if err := c.rc.Flush(); err != nil {
		return fmt.Errorf("keepalive flush: %w", err)
	}

	c.bytesSent += int64(n)
	metrics.AddStreamBytes(int64(n))
	return nil
}

// throttle waits until n bytes may be written under the bandwidth limit.
// Messages larger than the burst are charged the full burst.
func (c *client) throttle(ctx context.Context, n int) error {
	if c.limiter == nil {
		return nil
	}
	if b := c.limiter.Burst(); n > b {
		n = b
	}
	if err := c.limiter.WaitN(ctx, n); err != nil {
		return fmt.Errorf("bandwidth wait: %w", err)
	}
	return nil
}
