package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"telehealth-calls/pkg/utils"
)

// Store persists Call records. Every mutation is a single statement filtered
// by status = 'ongoing', so a lost race surfaces as ErrNotFound.
type Store interface {
	// Insert returns ErrActiveCallExists when the appointment already has an ongoing call.
	Insert(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, callID int64) (Call, error)
	// FindActive returns the most recently started ongoing call or ErrNoActiveCall.
	FindActive(ctx context.Context, appointmentID int64) (Call, error)
	ListByAppointment(ctx context.Context, appointmentID int64) ([]Call, error)
	MarkPatientJoined(ctx context.Context, callID int64) (Call, error)
	MarkEnded(ctx context.Context, callID int64, at time.Time) (Call, error)
	// ListStale returns ongoing calls started before the cutoff, oldest first.
	// A limit <= 0 returns all of them.
	ListStale(ctx context.Context, before time.Time, limit int) ([]Call, error)
}

const callColumns = `call_id, appointment_id, room_url, room_name, started_at, ended_at, status,
  started_by_id, started_by_type, doctor_joined, patient_joined`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c         Call
		endedAt   sql.NullTime
		startedBy sql.NullInt64
		starter   sql.NullString
		status    string
	)
	if err := row.Scan(
		&c.CallID,
		&c.AppointmentID,
		&c.RoomURL,
		&c.RoomName,
		&c.StartedAt,
		&endedAt,
		&status,
		&startedBy,
		&starter,
		&c.DoctorJoined,
		&c.PatientJoined,
	); err != nil {
		return Call{}, err
	}
	c.Status = Status(status)
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	c.StartedByID = startedBy.Int64
	c.StartedByType = Party(starter.String)
	return c, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c Call) (Call, error) {
	const q = `
INSERT INTO calls (
  appointment_id, room_url, room_name, started_at, status,
  started_by_id, started_by_type, doctor_joined, patient_joined
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
RETURNING ` + callColumns

	out, err := scanCall(s.db.QueryRowContext(ctx, q,
		c.AppointmentID,
		c.RoomURL,
		c.RoomName,
		c.StartedAt,
		string(c.Status),
		c.StartedByID,
		string(c.StartedByType),
		c.DoctorJoined,
		c.PatientJoined,
	))
	if err != nil {
		if utils.IsUniqueViolation(err, ongoingIndexName) {
			return Call{}, ErrActiveCallExists
		}
		return Call{}, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, callID int64) (Call, error) {
	const q = `SELECT ` + callColumns + `
FROM calls
WHERE call_id = $1
`
	return oneCall(s.db.QueryRowContext(ctx, q, callID), ErrNotFound)
}

func (s *PostgresStore) FindActive(ctx context.Context, appointmentID int64) (Call, error) {
	const q = `SELECT ` + callColumns + `
FROM calls
WHERE appointment_id = $1 AND status = 'ongoing'
ORDER BY started_at DESC
LIMIT 1
`
	return oneCall(s.db.QueryRowContext(ctx, q, appointmentID), ErrNoActiveCall)
}

func (s *PostgresStore) ListByAppointment(ctx context.Context, appointmentID int64) ([]Call, error) {
	const q = `SELECT ` + callColumns + `
FROM calls
WHERE appointment_id = $1
ORDER BY started_at DESC, call_id DESC
`
	return s.list(ctx, q, appointmentID)
}

func (s *PostgresStore) MarkPatientJoined(ctx context.Context, callID int64) (Call, error) {
	const q = `
UPDATE calls
SET patient_joined = true
WHERE call_id = $1 AND status = 'ongoing'
RETURNING ` + callColumns

	return oneCall(s.db.QueryRowContext(ctx, q, callID), ErrNotFound)
}

func (s *PostgresStore) MarkEnded(ctx context.Context, callID int64, at time.Time) (Call, error) {
	const q = `
UPDATE calls
SET status = 'ended', ended_at = $2, doctor_joined = false, patient_joined = false
WHERE call_id = $1 AND status = 'ongoing'
RETURNING ` + callColumns

	return oneCall(s.db.QueryRowContext(ctx, q, callID, at), ErrNotFound)
}

func (s *PostgresStore) ListStale(ctx context.Context, before time.Time, limit int) ([]Call, error) {
	const q = `SELECT ` + callColumns + `
FROM calls
WHERE status = 'ongoing' AND started_at < $1
ORDER BY started_at ASC`
	if limit <= 0 {
		return s.list(ctx, q, before)
	}
	return s.list(ctx, q+`
LIMIT $2`, before, limit)
}

func (s *PostgresStore) list(ctx context.Context, q string, args ...any) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func oneCall(row *sql.Row, notFound error) (Call, error) {
	c, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, notFound
		}
		return Call{}, err
	}
	return c, nil
}
