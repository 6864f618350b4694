package events

import (
	"context"
	"sync"
	"time"
)

// Event is a call lifecycle notification for one appointment.
// It carries identifiers only; subscribers re-read state through the status endpoint.
type Event struct {
	Type          string    `json:"type"`
	AppointmentID int64     `json:"appointment_id"`
	CallID        int64     `json:"call_id"`
	Status        string    `json:"status"`
	ActorRole     string    `json:"actor_role"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const (
	TypeCallStarted = "call.started"
	TypeCallJoined  = "call.joined"
	TypeCallEnded   = "call.ended"
)

// Bus fans call events out to subscribers of an appointment.
// Publishing is best-effort; a slow subscriber drops events rather than blocking publishers.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context, appointmentID int64) (<-chan Event, func(), error)
}

const subscriberBuffer = 16

// MemoryBus is an in-process Bus for single-instance deployments and tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int64]map[chan Event]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int64]map[chan Event]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[e.AppointmentID] {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, appointmentID int64) (<-chan Event, func(), error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	set, ok := b.subs[appointmentID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[appointmentID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[appointmentID], ch)
			if len(b.subs[appointmentID]) == 0 {
				delete(b.subs, appointmentID)
			}
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Subscribers returns the number of open subscriptions for an appointment.
func (b *MemoryBus) Subscribers(appointmentID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[appointmentID])
}
