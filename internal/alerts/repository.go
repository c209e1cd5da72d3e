// Package alerts persists security alerts in the secondary store with
// idempotent upsert semantics, keyed by the ledger-assigned alert id.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/store"
)

// AlertStore is the subset of the secondary store used by the repository.
// Extracted as an interface for testing.
type AlertStore interface {
	UpsertAlert(ctx context.Context, a *evidence.Alert) error
	GetAlert(ctx context.Context, alertID int64) (*evidence.Alert, error)
	ResolveAlert(ctx context.Context, alertID int64, resolvedBy string, resolvedAt int64) error
	FindAlerts(ctx context.Context, f store.AlertFilter) ([]evidence.Alert, error)
	CountAlerts(ctx context.Context) (total, resolved int, err error)
	CountAlertsSince(ctx context.Context, since int64) (int, error)
	AggregateAlertCounts(ctx context.Context) (map[evidence.AlertType]int, error)
}

// Repository provides upsert/resolve/aggregate operations over alerts.
type Repository struct {
	store  AlertStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRepository builds a repository over the given store.
func NewRepository(s AlertStore, logger *slog.Logger) *Repository {
	return &Repository{store: s, logger: logger, now: time.Now}
}

// Statistics summarizes the alert population at one point in time.
type Statistics struct {
	Total      int            `json:"total"`
	Unresolved int            `json:"unresolved"`
	Resolved   int            `json:"resolved"`
	Last24h    int            `json:"last_24h"`
	Last7d     int            `json:"last_7d"`
	ByType     map[string]int `json:"by_type"`
}

// BulkResult reports per-item outcomes of a BulkUpsert.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// Upsert inserts or updates one alert, atomically.
func (r *Repository) Upsert(ctx context.Context, a *evidence.Alert) error {
	if err := r.store.UpsertAlert(ctx, a); err != nil {
		return fmt.Errorf("alert upsert: %w", err)
	}
	return nil
}

// BulkUpsert applies each alert independently; one failure never aborts the
// batch.
func (r *Repository) BulkUpsert(ctx context.Context, batch []evidence.Alert) *BulkResult {
	res := &BulkResult{}
	for i := range batch {
		if err := r.store.UpsertAlert(ctx, &batch[i]); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("alert %d: %w", batch[i].AlertID, err))
			r.logger.Warn("bulk alert upsert item failed", "alert_id", batch[i].AlertID, "error", err)
			continue
		}
		res.Succeeded++
	}
	return res
}

// Resolve marks an alert resolved by the given principal. Resolving an
// already-resolved alert fails with ErrAlreadyResolved; resolution is
// monotonic and resolvedAt is never restamped.
func (r *Repository) Resolve(ctx context.Context, alertID int64, resolvedBy string) error {
	return r.store.ResolveAlert(ctx, alertID, resolvedBy, r.now().Unix())
}

// Get returns one alert by id.
func (r *Repository) Get(ctx context.Context, alertID int64) (*evidence.Alert, error) {
	return r.store.GetAlert(ctx, alertID)
}

// List returns alerts matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f store.AlertFilter) ([]evidence.Alert, error) {
	return r.store.FindAlerts(ctx, f)
}

// Statistics aggregates counts as of now: totals, the 24h and 7d windows
// (inclusive), and a per-type breakdown zero-filled over the fixed enum.
func (r *Repository) Statistics(ctx context.Context, now time.Time) (*Statistics, error) {
	total, resolved, err := r.store.CountAlerts(ctx)
	if err != nil {
		return nil, err
	}
	last24h, err := r.store.CountAlertsSince(ctx, now.Add(-24*time.Hour).Unix())
	if err != nil {
		return nil, err
	}
	last7d, err := r.store.CountAlertsSince(ctx, now.Add(-7*24*time.Hour).Unix())
	if err != nil {
		return nil, err
	}
	counts, err := r.store.AggregateAlertCounts(ctx)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int, len(evidence.AlertTypes()))
	for _, t := range evidence.AlertTypes() {
		byType[t.String()] = counts[t]
	}

	return &Statistics{
		Total:      total,
		Unresolved: total - resolved,
		Resolved:   resolved,
		Last24h:    last24h,
		Last7d:     last7d,
		ByType:     byType,
	}, nil
}

// NewProvisional builds an alert with a locally generated negative id, for
// alerts that could not be raised on the ledger. The id stays negative until
// reconciliation replaces it with a ledger-assigned one.
func NewProvisional(evidenceID string, alertType evidence.AlertType, triggeredBy, message string, now time.Time) evidence.Alert {
	id := int64(uuid.New().ID())
	if id == 0 {
		id = 1
	}
	return evidence.Alert{
		AlertID:     -id,
		EvidenceID:  evidenceID,
		TriggeredBy: triggeredBy,
		Type:        alertType,
		Message:     message,
		Timestamp:   now.Unix(),
	}
}
