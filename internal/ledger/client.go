// Package ledger defines the client contract for the authoritative custody
// ledger (the on-chain evidence log) and an HTTP implementation that talks
// to a contract bridge service. The ledger is an external collaborator: this
// package maps its native shapes onto the canonical evidence types and its
// failures onto the shared error taxonomy: implementations return
// structured errors, never free-text codes for the caller to parse.
package ledger

import (
	"context"
	"fmt"

	"github.com/custodix/custodix/internal/evidence"
)

// Receipt acknowledges a ledger write.
type Receipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	// AlertID is set on RaiseAlert receipts: the ledger-assigned alert id,
	// used as the idempotency key for off-chain persistence.
	AlertID int64 `json:"alert_id,omitempty"`
}

// Client is read/write access to the ledger. All errors that discriminate
// outcomes wrap the evidence sentinel errors (ErrNotFound, ErrAlreadyExists,
// ErrUnauthorized, ErrUnavailable).
type Client interface {
	// GetEvidence reads one ledger-backed evidence record.
	GetEvidence(ctx context.Context, evidenceID string) (*evidence.Record, error)

	// RegisterEvidence appends a new evidence registration.
	RegisterEvidence(ctx context.Context, evidenceID, fingerprint, caseID, metadata string) (*Receipt, error)

	// GetAuditTrail reads the full custody event sequence for one record.
	GetAuditTrail(ctx context.Context, evidenceID string) ([]evidence.CustodyEvent, error)

	// RaiseAlert appends a security alert; the receipt carries the assigned
	// alert id.
	RaiseAlert(ctx context.Context, evidenceID string, alertType evidence.AlertType, message string) (*Receipt, error)

	// GetAlert reads one alert by index; TotalAlerts bounds enumeration.
	GetAlert(ctx context.Context, index int64) (*evidence.Alert, error)
	TotalAlerts(ctx context.Context) (int64, error)

	// ResolveAlert marks a ledger alert resolved.
	ResolveAlert(ctx context.Context, alertID int64) error
}

// ListAlerts enumerates every ledger alert via GetAlert/TotalAlerts. Used by
// reconciliation tooling; indexes that fail to decode abort the listing so a
// partial view is never mistaken for the full one.
func ListAlerts(ctx context.Context, c Client) ([]evidence.Alert, error) {
	total, err := c.TotalAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting ledger alerts: %w", err)
	}
	alerts := make([]evidence.Alert, 0, total)
	for i := int64(0); i < total; i++ {
		a, err := c.GetAlert(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("reading ledger alert %d: %w", i, err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, nil
}
