package api

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/seatplan/internal/emergency"
	"go.uber.org/zap"
)

// handleEvents streams the emergency changes of an arrangement as
// server-sent events. Each change carries its 1-based position in the change
// log as the event id, so a reconnecting client resumes with Last-Event-ID
// (or ?after=N) and misses nothing.
func (h *handlers) handleEvents(c *gin.Context) {
	id, ok := arrangementID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	recs, err := h.svc.Changes(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	seen := len(recs)
	if after, ok := resumePoint(c); ok {
		seen = min(after, len(recs))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", "", map[string]any{"arrangement": id, "changes": len(recs)})
	seen = sendChanges(c.Writer, recs, seen)
	c.Writer.Flush()

	ticker := time.NewTicker(h.poll)
	heartbeat := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", "", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			recs, err := h.svc.Changes(ctx, id)
			if err != nil {
				if ctx.Err() == nil {
					h.log.Warn("change stream poll failed", zap.Uint("arrangement", id), zap.Error(err))
				}
				continue
			}
			if len(recs) == seen {
				continue
			}
			seen = sendChanges(c.Writer, recs, seen)
			c.Writer.Flush()
		}
	}
}

func resumePoint(c *gin.Context) (int, bool) {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("after")
	}
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// sendChanges writes recs[seen:] and returns the new count.
func sendChanges(w io.Writer, recs []emergency.Record, seen int) int {
	for i := seen; i < len(recs); i++ {
		writeSSE(w, "change", strconv.Itoa(i+1), recs[i])
	}
	return len(recs)
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event, id string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
