package calls

import (
	"context"

	"telehealth-calls/pkg/utils"
)

const ongoingIndexName = "calls_one_ongoing_per_appointment"

// The partial unique index is what makes concurrent creates safe; the
// application-level existence check only produces the friendlier error.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS calls (
  call_id         SERIAL PRIMARY KEY,
  appointment_id  INT NOT NULL REFERENCES appointments(appointment_id),
  room_url        TEXT NOT NULL,
  room_name       VARCHAR(255) NOT NULL,
  started_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  ended_at        TIMESTAMPTZ,
  status          VARCHAR(50) NOT NULL DEFAULT 'pending'
                  CHECK (status IN ('pending', 'ongoing', 'ended')),
  started_by_id   INT,
  started_by_type VARCHAR(20),
  doctor_joined   BOOLEAN NOT NULL DEFAULT false,
  patient_joined  BOOLEAN NOT NULL DEFAULT false
);
CREATE UNIQUE INDEX IF NOT EXISTS ` + ongoingIndexName + `
  ON calls (appointment_id) WHERE status = 'ongoing';
CREATE INDEX IF NOT EXISTS calls_appointment_started_idx
  ON calls (appointment_id, started_at DESC);
`

// EnsureSchema creates the calls table and its indexes if missing.
// The appointments table belongs to the booking subsystem and must already exist.
func EnsureSchema(ctx context.Context, db utils.Execer) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}
