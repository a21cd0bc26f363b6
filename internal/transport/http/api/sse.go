package apihttp

import (
	"net/http"
	"strconv"

	"fxagent/internal/logger"
	"fxagent/internal/stream"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// serveStream relays one run as server-sent events. Leaving the request
// cancels the run; the engine then closes the channel without a terminal
// event.
func (h *handlers) serveStream(c *gin.Context, query string) {
	ctx := c.Request.Context()
	events := h.analyzer.Stream(ctx, query)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, ev); err != nil {
				logger.Warnf("sse write run=%s seq=%d: %v", ev.RunID, ev.Seq, err)
				return
			}
		}
	}
}

func writeEvent(w gin.ResponseWriter, ev stream.Event) error {
	err := sse.Encode(w, sse.Event{
		Id:    strconv.FormatInt(ev.Seq, 10),
		Event: string(ev.Type),
		Data:  ev,
	})
	if err != nil {
		return err
	}
	w.Flush()
	return nil
}
