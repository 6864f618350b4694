package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"telehealth-calls/internal/audit"
	"telehealth-calls/internal/auth"
	"telehealth-calls/internal/calls"
	"telehealth-calls/internal/events"
	"telehealth-calls/internal/video"
	"telehealth-calls/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallService is the call session controller as seen by HTTP handlers.
type CallService interface {
	Create(ctx context.Context, appointmentID int64, caller calls.Caller) (calls.Call, error)
	Status(ctx context.Context, appointmentID int64, caller calls.Caller) (calls.Call, error)
	History(ctx context.Context, appointmentID int64, caller calls.Caller) ([]calls.Call, error)
	Join(ctx context.Context, callID int64, caller calls.Caller) (calls.Call, error)
	End(ctx context.Context, callID int64, caller calls.Caller) (calls.Call, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse ids, call the service, map errors to status codes.
type Handlers struct {
	Calls  CallService
	Events events.Bus

	// Shutdown, when closed, ends open call-event streams.
	Shutdown <-chan struct{}
}

const (
	msgNotAuthorized   = "Not authorized for this appointment"
	msgCallNotFound    = "Call not found or not authorized"
	statusActive       = "active"
	statusNoActiveCall = "no-active-call"
)

// CreateRoom starts a video call for an appointment. Doctor only.
func (h Handlers) CreateRoom(c *gin.Context) {
	appointmentID, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	call, err := h.Calls.Create(c.Request.Context(), appointmentID, caller)
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrActiveCallExists):
			body := gin.H{"message": "A call is already active for this appointment"}
			if call.CallID != 0 {
				body["call"] = call
			}
			c.AbortWithStatusJSON(http.StatusConflict, body)
		case errors.Is(err, calls.ErrProvider):
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"message": "Failed to create video room",
				"error":   providerDetail(err),
			})
		default:
			h.fail(c, err, "Failed to create video room")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Video room created successfully", "call": call})
}

// CallStatus reports the appointment's ongoing call, if any.
func (h Handlers) CallStatus(c *gin.Context) {
	appointmentID, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	call, err := h.Calls.Status(c.Request.Context(), appointmentID, caller)
	if errors.Is(err, calls.ErrNoActiveCall) {
		c.JSON(http.StatusOK, gin.H{"status": statusNoActiveCall})
		return
	}
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusActive, "call": call})
}

// CallHistory lists every call of an appointment, newest first.
func (h Handlers) CallHistory(c *gin.Context) {
	appointmentID, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	list, err := h.Calls.History(c.Request.Context(), appointmentID, caller)
	if errors.Is(err, calls.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Appointment not found"})
		return
	}
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list})
}

// JoinCall marks the patient as joined. Patient only.
func (h Handlers) JoinCall(c *gin.Context) {
	callID, ok := pathID(c, "callId", "invalid call id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	call, err := h.Calls.Join(c.Request.Context(), callID, caller)
	if err != nil {
		h.failMutation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined call successfully", "call": call})
}

// EndCall ends an ongoing call for either party.
func (h Handlers) EndCall(c *gin.Context) {
	callID, ok := pathID(c, "callId", "invalid call id")
	if !ok {
		return
	}
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	call, err := h.Calls.End(c.Request.Context(), callID, caller)
	if err != nil {
		h.failMutation(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Call ended successfully", "call": call})
}

// failMutation hides whether a call exists from callers who are not its parties.
func (h Handlers) failMutation(c *gin.Context, err error) {
	if errors.Is(err, calls.ErrNotFound) || errors.Is(err, calls.ErrUnauthorized) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": msgCallNotFound})
		return
	}
	h.fail(c, err, "Server error")
}

func (h Handlers) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
	case errors.Is(err, calls.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": msgNotAuthorized})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Appointment not found"})
	default:
		logger.FromGin(c).Error("call request failed", "path", c.FullPath(), "err", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msg})
	}
}

// providerDetail is what a client may see about a provider failure. The
// provider's own message stays in the server log.
func providerDetail(err error) string {
	var pe *video.ProviderError
	if !errors.As(err, &pe) {
		return "video provider unavailable"
	}
	detail := pe.Provider + " " + pe.Op + " failed"
	if pe.StatusCode != 0 {
		detail += fmt.Sprintf(" (status %d)", pe.StatusCode)
	}
	if pe.Code != "" {
		detail += ": " + pe.Code
	}
	return detail
}

func pathID(c *gin.Context, name, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
		return 0, false
	}
	return id, true
}

func callerFrom(c *gin.Context) (calls.Caller, bool) {
	ctx := c.Request.Context()
	id, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "user required"})
		return calls.Caller{}, false
	}
	role, err := auth.Role(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "role required"})
		return calls.Caller{}, false
	}
	return calls.Caller{ID: id, Role: role}, true
}

// ClientIP makes the resolved client address available to audit records.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
