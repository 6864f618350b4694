package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrDuplicateEvent mirrors the primary-key violation PostgresRepo reports when
// an event id is appended twice.
var ErrDuplicateEvent = errors.New("audit: duplicate event id")

// MemoryRepo keeps call audit events in process for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
	ids    map[string]struct{}
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{ids: map[string]struct{}{}} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID != "" {
		if _, dup := r.ids[e.ID]; dup {
			return ErrDuplicateEvent
		}
		r.ids[e.ID] = struct{}{}
	}
	r.events = append(r.events, e)
	return nil
}

// Events returns every event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ForAppointment returns one appointment's trail ordered by CreatedAt, the
// order call_audit_events_appointment_idx serves.
func (r *MemoryRepo) ForAppointment(appointmentID int64) []Event {
	r.mu.Lock()
	var out []Event
	for _, e := range r.events {
		if e.AppointmentID == appointmentID {
			out = append(out, e)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
