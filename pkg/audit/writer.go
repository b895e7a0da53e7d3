// Package audit is an optional, write-only event trail of completed GSUP
// procedures: never read back by any GSUP handler, and distinct from the
// subscriber routing store. Configuring no DSN yields a no-op Writer, so
// deployments without a database still run the server.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/osmocom-go/hlr-gsup/internal/logger"
)

// Event is one completed (or failed) GSUP procedure, recorded for
// after-the-fact inspection in the audit_events table. Nothing in this
// module reads the table back.
type Event struct {
	Timestamp time.Time
	Peer      string
	IMSI      string
	Procedure string
	Outcome   string
	Detail    string
}

// Writer appends Events to a Postgres table. The zero Writer (nil *sql.DB)
// is a valid no-op sink.
type Writer struct {
	db  *sql.DB
	log *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	peer       TEXT NOT NULL,
	imsi       TEXT NOT NULL,
	procedure  TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_imsi_idx ON audit_events (imsi);
`

// New opens dsn and ensures the audit_events table exists. An empty dsn
// returns a no-op Writer rather than an error.
func New(dsn string, log *logger.Logger) (*Writer, error) {
	if dsn == "" {
		return &Writer{log: log}, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("audit: pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit: applying schema: %w", err)
	}

	return &Writer{db: db, log: log}, nil
}

// Record inserts ev. Failures are logged, not returned, so the audit trail
// never fails a GSUP procedure. The INSERT runs synchronously on the
// caller's goroutine.
func (w *Writer) Record(ctx context.Context, ev Event) {
	if w.db == nil {
		return
	}
	_, err := w.db.ExecContext(ctx,
		`INSERT INTO audit_events (ts, peer, imsi, procedure, outcome, detail) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Timestamp, ev.Peer, ev.IMSI, ev.Procedure, ev.Outcome, ev.Detail)
	if err != nil && w.log != nil {
		w.log.Error("failed to record audit event", err, "procedure", ev.Procedure, "imsi", ev.IMSI)
	}
}

// Close releases the underlying database connection, if any.
func (w *Writer) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}
