package appointments

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDirectory_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := regexp.QuoteMeta(`SELECT appointment_id, doctor_id, patient_id
FROM appointments
WHERE appointment_id = $1`)

	mock.ExpectQuery(query).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"appointment_id", "doctor_id", "patient_id"}).AddRow(100, 7, 42))
	mock.ExpectQuery(query).
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows([]string{"appointment_id", "doctor_id", "patient_id"}))

	d := NewPostgresDirectory(db)

	a, err := d.Get(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, Appointment{ID: 100, DoctorID: 7, PatientID: 42}, a)

	_, err = d.Get(context.Background(), 101)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingDirectory struct {
	calls int
	inner Directory
}

func (c *countingDirectory) Get(ctx context.Context, id int64) (Appointment, error) {
	c.calls++
	return c.inner.Get(ctx, id)
}

func TestCachedDirectory_CachesHitsOnly(t *testing.T) {
	mem := NewMemoryDirectory(Appointment{ID: 100, DoctorID: 7, PatientID: 42})
	counter := &countingDirectory{inner: mem}
	d := NewCachedDirectory(counter, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a, err := d.Get(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(42), a.PatientID)
	}
	assert.Equal(t, 1, counter.calls)

	_, err := d.Get(ctx, 200)
	assert.True(t, errors.Is(err, ErrNotFound))
	mem.Put(Appointment{ID: 200, DoctorID: 8, PatientID: 43})
	a, err := d.Get(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(8), a.DoctorID)
	assert.Equal(t, 3, counter.calls)

	d.Forget(100)
	_, err = d.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, counter.calls)
}
