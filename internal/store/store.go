// Package store implements the secondary (off-chain) record store on SQLite:
// evidence metadata, custody events, and alerts, with the query and
// aggregation support the ledger cannot provide.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodix/custodix/internal/evidence"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS evidence (
	evidence_id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	custodian TEXT NOT NULL DEFAULT '',
	collector TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	category TEXT,
	description TEXT
);

CREATE TABLE IF NOT EXISTS custody_events (
	evidence_id TEXT NOT NULL,
	action INTEGER NOT NULL,
	actor TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	transfer_target TEXT NOT NULL DEFAULT '',
	notes TEXT,
	prior_fingerprint TEXT,
	new_fingerprint TEXT,
	PRIMARY KEY (evidence_id, action, actor, timestamp, transfer_target)
);

CREATE INDEX IF NOT EXISTS idx_events_evidence ON custody_events(evidence_id, timestamp);

CREATE TABLE IF NOT EXISTS alerts (
	alert_id INTEGER PRIMARY KEY,
	evidence_id TEXT NOT NULL,
	triggered_by TEXT NOT NULL DEFAULT '',
	alert_type INTEGER NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL,
	resolved INTEGER NOT NULL DEFAULT 0,
	resolved_by TEXT,
	resolved_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_alerts_evidence ON alerts(evidence_id);
CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts(resolved);
CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
`

// Store is the SQLite-backed secondary store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the secondary store database.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	// WAL for concurrent readers during sync batches
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("setting WAL mode: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("creating schema: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindEvidence returns one evidence record, or ErrNotFound.
func (s *Store) FindEvidence(ctx context.Context, evidenceID string) (*evidence.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT evidence_id, case_id, fingerprint, custodian, collector, created_at, category, description
		 FROM evidence WHERE evidence_id = ?`, evidenceID)

	var rec evidence.Record
	var category, description sql.NullString
	err := row.Scan(&rec.EvidenceID, &rec.CaseID, &rec.Fingerprint, &rec.Custodian,
		&rec.Collector, &rec.CreatedAt, &category, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: evidence %s", evidence.ErrNotFound, evidenceID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying evidence %s: %w", evidenceID, err)
	}
	rec.Category = category.String
	rec.Description = description.String
	return &rec, nil
}

// UpsertEvidence inserts or replaces one evidence record. Used by the
// ledger-to-secondary backfill path; a fingerprint change on an existing row
// is the caller's responsibility to treat as divergence, never performed
// silently here on ledger-backed rows; the backfill writes the ledger copy.
func (s *Store) UpsertEvidence(ctx context.Context, rec *evidence.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (evidence_id, case_id, fingerprint, custodian, collector, created_at, category, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(evidence_id) DO UPDATE SET
			case_id = excluded.case_id,
			fingerprint = excluded.fingerprint,
			custodian = excluded.custodian,
			collector = excluded.collector,
			created_at = excluded.created_at,
			category = excluded.category,
			description = excluded.description`,
		rec.EvidenceID, rec.CaseID, rec.Fingerprint, rec.Custodian,
		rec.Collector, rec.CreatedAt, rec.Category, rec.Description)
	if err != nil {
		return fmt.Errorf("upserting evidence %s: %w", rec.EvidenceID, err)
	}
	return nil
}

// ListEvidenceIDs returns every known evidence id, in insertion-stable order.
func (s *Store) ListEvidenceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT evidence_id FROM evidence ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing evidence ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning evidence id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertAuditEvent appends one custody event. Re-inserting an event with the
// same composite identity is a no-op, so replaying ledger history is safe.
func (s *Store) InsertAuditEvent(ctx context.Context, ev *evidence.CustodyEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO custody_events
		 (evidence_id, action, actor, timestamp, transfer_target, notes, prior_fingerprint, new_fingerprint)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EvidenceID, int(ev.Action), ev.Actor, ev.Timestamp, ev.TransferTarget,
		ev.Notes, ev.PriorFingerprint, ev.NewFingerprint)
	if err != nil {
		return fmt.Errorf("inserting custody event for %s: %w", ev.EvidenceID, err)
	}
	return nil
}

// FindAuditEvents returns the custody events for one record, newest first.
func (s *Store) FindAuditEvents(ctx context.Context, evidenceID string) ([]evidence.CustodyEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT evidence_id, action, actor, timestamp, transfer_target, notes, prior_fingerprint, new_fingerprint
		 FROM custody_events WHERE evidence_id = ? ORDER BY timestamp DESC, action DESC`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("querying custody events for %s: %w", evidenceID, err)
	}
	defer func() { _ = rows.Close() }()

	var events []evidence.CustodyEvent
	for rows.Next() {
		var ev evidence.CustodyEvent
		var action int
		var notes, prior, next sql.NullString
		if err := rows.Scan(&ev.EvidenceID, &action, &ev.Actor, &ev.Timestamp,
			&ev.TransferTarget, &notes, &prior, &next); err != nil {
			return nil, fmt.Errorf("scanning custody event: %w", err)
		}
		ev.Action = evidence.ActionKind(action)
		ev.Notes = notes.String
		ev.PriorFingerprint = prior.String
		ev.NewFingerprint = next.String
		events = append(events, ev)
	}
	return events, rows.Err()
}
