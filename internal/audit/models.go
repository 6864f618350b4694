package audit

import "time"

// Event is an immutable, append-only audit log record of a call transition.
//
// Invariants:
// - Events are never updated or deleted.
// - appointment_id is required; every call belongs to one appointment.
// - actor and ip capture are best-effort; do not block call flows on audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	Type EventType `json:"type" db:"type"`

	AppointmentID int64 `json:"appointment_id" db:"appointment_id"`
	CallID        int64 `json:"call_id,omitempty" db:"call_id"`

	// ActorID is 0 for system actors such as the reaper.
	ActorID   int64  `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole string `json:"actor_role" db:"actor_role"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallCreated        EventType = "call_created"
	EventTypeCallJoined         EventType = "call_joined"
	EventTypeCallEnded          EventType = "call_ended"
	EventTypeCallExpired        EventType = "call_expired"
	EventTypeRoomTeardownFailed EventType = "room_teardown_failed"
)

// ActorSystem marks events produced by background jobs.
const ActorSystem = "system"
