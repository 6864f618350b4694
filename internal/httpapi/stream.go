package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"telehealth-calls/internal/calls"

	"github.com/gin-gonic/gin"
)

const streamHeartbeat = 25 * time.Second

// CallEvents streams call lifecycle events for an appointment as server-sent events.
// The first event is the current status so a client never starts from a blank view.
func (h Handlers) CallEvents(c *gin.Context) {
	if h.Events == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"message": "call events not enabled"})
		return
	}
	appointmentID, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	// Subscribe before reading status so a transition committed in between
	// still reaches the stream.
	sub, cancel, err := h.Events.Subscribe(ctx, appointmentID)
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}
	defer cancel()

	current, err := h.Calls.Status(ctx, appointmentID, caller)
	if err != nil && !errors.Is(err, calls.ErrNoActiveCall) {
		h.fail(c, err, "Server error")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	if current.CallID != 0 {
		c.SSEvent("status", gin.H{"status": statusActive, "call": current})
	} else {
		c.SSEvent("status", gin.H{"status": statusNoActiveCall})
	}
	c.Writer.Flush()

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.Shutdown:
			return false
		case e, open := <-sub:
			if !open {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
