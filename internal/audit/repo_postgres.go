package audit

import (
	"context"
	"database/sql"

	"telehealth-calls/pkg/utils"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS call_audit_events (
  id             UUID PRIMARY KEY,
  type           VARCHAR(50) NOT NULL,
  appointment_id INT NOT NULL,
  call_id        INT,
  actor_id       INT,
  actor_role     VARCHAR(20) NOT NULL,
  ip_address     VARCHAR(64),
  message        TEXT,
  metadata       TEXT,
  created_at     TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS call_audit_events_appointment_idx ON call_audit_events (appointment_id, created_at);
`

// PostgresRepo appends audit events to call_audit_events.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the audit table if it does not exist.
func EnsureSchema(ctx context.Context, db utils.Execer) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO call_audit_events (
  id, type, appointment_id, call_id, actor_id, actor_role, ip_address, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.AppointmentID,
		nullInt(e.CallID),
		nullInt(e.ActorID),
		e.ActorRole,
		nullString(e.IPAddress),
		nullString(e.Message),
		nullString(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
