package calls

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"call_id", "appointment_id", "room_url", "room_name", "started_at", "ended_at", "status",
	"started_by_id", "started_by_type", "doctor_joined", "patient_joined",
}

func callRow(id int64, status string, endedAt any, doctorJoined, patientJoined bool) []driver.Value {
	return []driver.Value{
		id, int64(100), "https://video.example/appointment-100-1", "appointment-100-1",
		baseTime, endedAt, status, int64(7), "doctor", doctorJoined, patientJoined,
	}
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Insert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO calls")).
		WithArgs(int64(100), "https://video.example/appointment-100-1", "appointment-100-1", baseTime,
			"ongoing", int64(7), "doctor", true, false).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(callRow(1, "ongoing", nil, true, false)...))

	got, err := s.Insert(context.Background(), Call{
		AppointmentID: 100,
		RoomURL:       "https://video.example/appointment-100-1",
		RoomName:      "appointment-100-1",
		StartedAt:     baseTime,
		Status:        StatusOngoing,
		StartedByID:   7,
		StartedByType: PartyDoctor,
		DoctorJoined:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CallID)
	assert.Equal(t, StatusOngoing, got.Status)
	assert.Nil(t, got.EndedAt)
	assert.Equal(t, PartyDoctor, got.StartedByType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMapsOngoingIndexViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO calls")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: ongoingIndexName})

	_, err := s.Insert(context.Background(), Call{AppointmentID: 100, Status: StatusOngoing})
	assert.ErrorIs(t, err, ErrActiveCallExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindActive(t *testing.T) {
	s, mock := newMockStore(t)
	query := regexp.QuoteMeta("FROM calls WHERE appointment_id = $1 AND status = 'ongoing' ORDER BY started_at DESC LIMIT 1")

	mock.ExpectQuery(query).WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(callRow(1, "ongoing", nil, true, true)...))
	mock.ExpectQuery(query).WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := s.FindActive(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, got.PatientJoined)

	_, err = s.FindActive(context.Background(), 100)
	assert.ErrorIs(t, err, ErrNoActiveCall)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkEnded(t *testing.T) {
	s, mock := newMockStore(t)
	endedAt := baseTime.Add(15 * time.Minute)
	query := regexp.QuoteMeta("UPDATE calls SET status = 'ended', ended_at = $2, doctor_joined = false, patient_joined = false WHERE call_id = $1 AND status = 'ongoing'")

	mock.ExpectQuery(query).WithArgs(int64(1), endedAt).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(callRow(1, "ended", endedAt, false, false)...))
	mock.ExpectQuery(query).WithArgs(int64(1), endedAt).
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := s.MarkEnded(context.Background(), 1, endedAt)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, endedAt, *got.EndedAt)
	assert.False(t, got.DoctorJoined)

	_, err = s.MarkEnded(context.Background(), 1, endedAt)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPatientJoined(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE calls SET patient_joined = true WHERE call_id = $1 AND status = 'ongoing'")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(callRow(1, "ongoing", nil, true, true)...))

	got, err := s.MarkPatientJoined(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, got.PatientJoined)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStale(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := baseTime.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'ongoing' AND started_at < $1 ORDER BY started_at ASC LIMIT $2")).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(callRow(1, "ongoing", nil, true, false)...).
			AddRow(callRow(2, "ongoing", nil, true, true)...))

	got, err := s.ListStale(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[1].CallID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStaleWithoutLimit(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := baseTime.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'ongoing' AND started_at < $1 ORDER BY started_at ASC") + "$").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(callRow(1, "ongoing", nil, true, false)...).
			AddRow(callRow(2, "ongoing", nil, true, true)...).
			AddRow(callRow(3, "ongoing", nil, true, true)...))

	got, err := s.ListStale(context.Background(), cutoff, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_CreatesPartialUniqueIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE UNIQUE INDEX IF NOT EXISTS calls_one_ongoing_per_appointment ON calls (appointment_id) WHERE status = 'ongoing'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
