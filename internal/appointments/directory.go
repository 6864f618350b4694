package appointments

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// Appointment is the booking subsystem's doctor/patient pairing.
// This service reads it to authorize call operations and never mutates it.
type Appointment struct {
	ID        int64 `json:"appointment_id"`
	DoctorID  int64 `json:"doctor_id"`
	PatientID int64 `json:"patient_id"`
}

var ErrNotFound = errors.New("appointment not found")

// Directory resolves appointments by id.
type Directory interface {
	Get(ctx context.Context, appointmentID int64) (Appointment, error)
}

// PostgresDirectory reads the appointments table owned by the booking subsystem.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Get(ctx context.Context, appointmentID int64) (Appointment, error) {
	const q = `
SELECT appointment_id, doctor_id, patient_id
FROM appointments
WHERE appointment_id = $1
`
	var a Appointment
	if err := d.db.QueryRowContext(ctx, q, appointmentID).Scan(&a.ID, &a.DoctorID, &a.PatientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return a, nil
}

// CachedDirectory memoizes successful lookups. Misses and errors always reach
// the underlying directory so a newly booked appointment is visible at once.
type CachedDirectory struct {
	next  Directory
	store *cache.Cache
}

func NewCachedDirectory(next Directory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		store: cache.New(ttl, 2*ttl),
	}
}

func (d *CachedDirectory) Get(ctx context.Context, appointmentID int64) (Appointment, error) {
	key := strconv.FormatInt(appointmentID, 10)
	if v, ok := d.store.Get(key); ok {
		return v.(Appointment), nil
	}

	a, err := d.next.Get(ctx, appointmentID)
	if err != nil {
		return Appointment{}, err
	}
	d.store.SetDefault(key, a)
	return a, nil
}

// Forget drops a cached appointment.
func (d *CachedDirectory) Forget(appointmentID int64) {
	d.store.Delete(strconv.FormatInt(appointmentID, 10))
}
