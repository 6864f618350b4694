package appointments

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory for tests and local runs.
type MemoryDirectory struct {
	mu    sync.RWMutex
	items map[int64]Appointment
}

func NewMemoryDirectory(items ...Appointment) *MemoryDirectory {
	d := &MemoryDirectory{items: make(map[int64]Appointment, len(items))}
	for _, a := range items {
		d.items[a.ID] = a
	}
	return d
}

func (d *MemoryDirectory) Put(a Appointment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[a.ID] = a
}

func (d *MemoryDirectory) Get(ctx context.Context, appointmentID int64) (Appointment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.items[appointmentID]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return a, nil
}
