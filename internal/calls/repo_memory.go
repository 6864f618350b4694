package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local runs.
// It enforces the one-ongoing-call-per-appointment constraint like the Postgres index does.
type MemoryStore struct {
	mu    sync.Mutex
	seq   int64
	calls []Call
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Insert(ctx context.Context, c Call) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Status == StatusOngoing {
		for _, existing := range s.calls {
			if existing.AppointmentID == c.AppointmentID && existing.Status == StatusOngoing {
				return Call{}, ErrActiveCallExists
			}
		}
	}

	s.seq++
	c.CallID = s.seq
	c = c.clone()
	s.calls = append(s.calls, c)
	return c.clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, callID int64) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(callID)
	if i < 0 {
		return Call{}, ErrNotFound
	}
	return s.calls[i].clone(), nil
}

func (s *MemoryStore) FindActive(ctx context.Context, appointmentID int64) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best  Call
		found bool
	)
	for _, c := range s.calls {
		if c.AppointmentID != appointmentID || c.Status != StatusOngoing {
			continue
		}
		if !found || c.StartedAt.After(best.StartedAt) {
			best, found = c, true
		}
	}
	if !found {
		return Call{}, ErrNoActiveCall
	}
	return best.clone(), nil
}

func (s *MemoryStore) ListByAppointment(ctx context.Context, appointmentID int64) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Call{}
	for _, c := range s.calls {
		if c.AppointmentID == appointmentID {
			out = append(out, c.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].CallID > out[j].CallID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func (s *MemoryStore) MarkPatientJoined(ctx context.Context, callID int64) (Call, error) {
	return s.updateOngoing(callID, func(c *Call) {
		c.PatientJoined = true
	})
}

func (s *MemoryStore) MarkEnded(ctx context.Context, callID int64, at time.Time) (Call, error) {
	return s.updateOngoing(callID, func(c *Call) {
		c.Status = StatusEnded
		c.EndedAt = &at
		c.DoctorJoined = false
		c.PatientJoined = false
	})
}

func (s *MemoryStore) ListStale(ctx context.Context, before time.Time, limit int) ([]Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Call{}
	for _, c := range s.calls {
		if c.Status == StatusOngoing && c.StartedAt.Before(before) {
			out = append(out, c.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) updateOngoing(callID int64, fn func(*Call)) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(callID)
	if i < 0 || s.calls[i].Status != StatusOngoing {
		return Call{}, ErrNotFound
	}
	fn(&s.calls[i])
	s.calls[i] = s.calls[i].clone()
	return s.calls[i].clone(), nil
}

func (s *MemoryStore) indexOf(callID int64) int {
	for i, c := range s.calls {
		if c.CallID == callID {
			return i
		}
	}
	return -1
}
