package calls

import "time"

// Call is one attempt at a video session for an appointment.
//
// Invariants:
// - At most one Call per appointment has Status == StatusOngoing.
// - RoomURL and RoomName never change after creation.
// - Rows are never deleted; ended calls are history.
type Call struct {
	CallID        int64  `json:"call_id" db:"call_id"`
	AppointmentID int64  `json:"appointment_id" db:"appointment_id"`
	RoomURL       string `json:"room_url" db:"room_url"`
	RoomName      string `json:"room_name" db:"room_name"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at" db:"ended_at"`

	Status Status `json:"status" db:"status"`

	StartedByID   int64 `json:"started_by_id" db:"started_by_id"`
	StartedByType Party `json:"started_by_type" db:"started_by_type"`

	DoctorJoined  bool `json:"doctor_joined" db:"doctor_joined"`
	PatientJoined bool `json:"patient_joined" db:"patient_joined"`

	// JoinToken admits the requesting participant to the room on providers
	// that require one. It is minted per response and never stored.
	JoinToken string `json:"join_token,omitempty" db:"-"`
}

type Status string

const (
	// StatusPending is accepted by the schema but never assigned; creation goes straight to ongoing.
	StatusPending Status = "pending"
	StatusOngoing Status = "ongoing"
	StatusEnded   Status = "ended"
)

// Party is the side of an appointment a participant is on.
type Party string

const (
	PartyDoctor  Party = "doctor"
	PartyPatient Party = "patient"
)

// Caller is the authenticated identity invoking a call operation.
type Caller struct {
	ID   int64
	Role string
}

func (c Call) clone() Call {
	if c.EndedAt != nil {
		t := *c.EndedAt
		c.EndedAt = &t
	}
	return c
}
