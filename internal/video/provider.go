package video

import (
	"context"
	"fmt"
	"time"
)

// RoomProvider defines the provider-agnostic interface used by the call controller.
//
// Rules:
// - No provider SDK or REST calls outside video adapters.
// - Adapters never retry; the caller decides.
type RoomProvider interface {
	Name() string
	CreateRoom(ctx context.Context, spec RoomSpec) (Room, error)
	EndRoom(ctx context.Context, name string) error
}

// JoinTokenIssuer is implemented by providers whose rooms admit only holders
// of a signed per-participant token.
type JoinTokenIssuer interface {
	JoinToken(roomName, identity string, ttl time.Duration) (string, error)
}

// RoomSpec describes a room to provision.
type RoomSpec struct {
	Name            string
	MaxParticipants int
	EnableChat      bool
	StartVideoOff   bool
	StartAudioOff   bool
	ExpiresAt       time.Time
}

// Room is the provisioned room identity.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProviderError is returned for any failed provider call, including transport errors.
// StatusCode is 0 when no HTTP response was received.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }
