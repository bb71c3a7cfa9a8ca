package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Blood-Moon-Interactive/StarWX/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes to one SSE connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messagesSent int
	bytesSent    int
}

func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
}

// sendJSON writes v as one "data: {json}\n\n" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	c.extendDeadline()

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()

	c.messagesSent++
	c.bytesSent += n
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(n)
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(d time.Duration) error {
	n, err := fmt.Fprintf(c.w, "retry: %d\n\n", d.Milliseconds())
	if err != nil {
		return fmt.Errorf("retry write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += n
	metrics.AddStreamBytes(n)
	return nil
}

// sendKeepalive writes an SSE comment line.
func (c *client) sendKeepalive() error {
	c.extendDeadline()

	n, err := fmt.Fprint(c.w, ":\n\n")
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += n
	metrics.AddStreamBytes(n)
	return nil
}
