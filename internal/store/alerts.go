package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodix/custodix/internal/evidence"
)

// AlertFilter narrows FindAlerts results. Zero values mean "any".
type AlertFilter struct {
	EvidenceID string
	Type       *evidence.AlertType
	Unresolved bool
	Limit      int
}

// UpsertAlert inserts or updates one alert keyed by its alert id, as a
// single statement so concurrent sync callers cannot lose updates. The
// resolved flag is monotonic: an upsert never flips a resolved alert back to
// unresolved.
func (s *Store) UpsertAlert(ctx context.Context, a *evidence.Alert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (alert_id, evidence_id, triggered_by, alert_type, message, timestamp, resolved, resolved_by, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(alert_id) DO UPDATE SET
			evidence_id  = excluded.evidence_id,
			triggered_by = excluded.triggered_by,
			alert_type   = excluded.alert_type,
			message      = excluded.message,
			timestamp    = excluded.timestamp,
			resolved     = CASE WHEN alerts.resolved = 1 THEN 1 ELSE excluded.resolved END,
			resolved_by  = CASE WHEN alerts.resolved = 1 THEN alerts.resolved_by ELSE excluded.resolved_by END,
			resolved_at  = CASE WHEN alerts.resolved = 1 THEN alerts.resolved_at ELSE excluded.resolved_at END`,
		a.AlertID, a.EvidenceID, a.TriggeredBy, int(a.Type), a.Message,
		a.Timestamp, boolToInt(a.Resolved), a.ResolvedBy, a.ResolvedAt)
	if err != nil {
		return fmt.Errorf("upserting alert %d: %w", a.AlertID, err)
	}
	return nil
}

// GetAlert returns one alert by id, or ErrNotFound.
func (s *Store) GetAlert(ctx context.Context, alertID int64) (*evidence.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT alert_id, evidence_id, triggered_by, alert_type, message, timestamp, resolved, resolved_by, resolved_at
		 FROM alerts WHERE alert_id = ?`, alertID)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alert %d", evidence.ErrNotFound, alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying alert %d: %w", alertID, err)
	}
	return a, nil
}

// ResolveAlert marks an alert resolved. The conditional update keeps the
// check and the write in one statement, so a concurrent resolve cannot
// produce two winners. Returns ErrNotFound for unknown ids and
// ErrAlreadyResolved when the alert is already resolved.
func (s *Store) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string, resolvedAt int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET resolved = 1, resolved_by = ?, resolved_at = ?
		 WHERE alert_id = ? AND resolved = 0`,
		resolvedBy, resolvedAt, alertID)
	if err != nil {
		return fmt.Errorf("resolving alert %d: %w", alertID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolving alert %d: %w", alertID, err)
	}
	if n > 0 {
		return nil
	}

	// No row updated: either unknown id or already resolved.
	var resolved int
	err = s.db.QueryRowContext(ctx, `SELECT resolved FROM alerts WHERE alert_id = ?`, alertID).Scan(&resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: alert %d", evidence.ErrNotFound, alertID)
	}
	if err != nil {
		return fmt.Errorf("resolving alert %d: %w", alertID, err)
	}
	return fmt.Errorf("%w: alert %d", evidence.ErrAlreadyResolved, alertID)
}

// FindAlerts returns alerts matching the filter, newest first.
func (s *Store) FindAlerts(ctx context.Context, f AlertFilter) ([]evidence.Alert, error) {
	query := `SELECT alert_id, evidence_id, triggered_by, alert_type, message, timestamp, resolved, resolved_by, resolved_at
		 FROM alerts WHERE 1=1`
	var args []any

	if f.EvidenceID != "" {
		query += " AND evidence_id = ?"
		args = append(args, f.EvidenceID)
	}
	if f.Type != nil {
		query += " AND alert_type = ?"
		args = append(args, int(*f.Type))
	}
	if f.Unresolved {
		query += " AND resolved = 0"
	}

	query += " ORDER BY timestamp DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []evidence.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// CountAlerts returns the total and resolved alert counts.
func (s *Store) CountAlerts(ctx context.Context) (total, resolved int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(resolved), 0) FROM alerts`).Scan(&total, &resolved)
	if err != nil {
		return 0, 0, fmt.Errorf("counting alerts: %w", err)
	}
	return total, resolved, nil
}

// CountAlertsSince counts alerts with timestamp >= since.
func (s *Store) CountAlertsSince(ctx context.Context, since int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE timestamp >= ?`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting alerts since %d: %w", since, err)
	}
	return n, nil
}

// AggregateAlertCounts returns per-type alert counts. Types with no alerts
// are absent from the map; zero-filling over the fixed enum is the
// repository's concern.
func (s *Store) AggregateAlertCounts(ctx context.Context) (map[evidence.AlertType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_type, COUNT(*) FROM alerts GROUP BY alert_type`)
	if err != nil {
		return nil, fmt.Errorf("aggregating alert counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[evidence.AlertType]int)
	for rows.Next() {
		var t, n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning alert count: %w", err)
		}
		counts[evidence.AlertType(t)] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*evidence.Alert, error) {
	var a evidence.Alert
	var alertType, resolved int
	var resolvedBy sql.NullString
	var resolvedAt sql.NullInt64
	if err := row.Scan(&a.AlertID, &a.EvidenceID, &a.TriggeredBy, &alertType,
		&a.Message, &a.Timestamp, &resolved, &resolvedBy, &resolvedAt); err != nil {
		return nil, err
	}
	a.Type = evidence.AlertType(alertType)
	a.Resolved = resolved == 1
	a.ResolvedBy = resolvedBy.String
	a.ResolvedAt = resolvedAt.Int64
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
