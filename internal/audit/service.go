package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call transitions for internal review.
// Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AppointmentID <= 0 || e.Type == "" || e.ActorRole == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	return s.repo.Append(ctx, e)
}

// LogCallTransition records a call state change made by actor.
func (s *Service) LogCallTransition(ctx context.Context, typ EventType, appointmentID, callID, actorID int64, actorRole, message string) error {
	return s.Append(ctx, Event{
		Type:          typ,
		AppointmentID: appointmentID,
		CallID:        callID,
		ActorID:       actorID,
		ActorRole:     actorRole,
		Message:       message,
	})
}
