package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodix/custodix/internal/evidence"
)

// Fake is an in-memory Client for tests, mirroring the bridge contract
// (including the error taxonomy) without a network.
type Fake struct {
	mu      sync.Mutex
	records map[string]evidence.Record
	trails  map[string][]evidence.CustodyEvent
	alerts  []evidence.Alert

	// Err, when set, is returned by every call (simulates an unreachable
	// ledger).
	Err error

	// RegisterHook, when set, runs before each RegisterEvidence and may
	// inject a per-record failure.
	RegisterHook func(evidenceID string) error

	// RegisterCalls records the order of RegisterEvidence invocations.
	RegisterCalls []string
}

// NewFake returns an empty fake ledger.
func NewFake() *Fake {
	return &Fake{
		records: make(map[string]evidence.Record),
		trails:  make(map[string][]evidence.CustodyEvent),
	}
}

// Seed inserts a record without going through RegisterEvidence.
func (f *Fake) Seed(rec evidence.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.EvidenceID] = rec
}

// SeedTrail sets the native event sequence for one record.
func (f *Fake) SeedTrail(evidenceID string, events []evidence.CustodyEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trails[evidenceID] = events
}

// GetEvidence implements Client.
func (f *Fake) GetEvidence(_ context.Context, evidenceID string) (*evidence.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	rec, ok := f.records[evidenceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", evidence.ErrNotFound, evidenceID)
	}
	return &rec, nil
}

// RegisterEvidence implements Client.
func (f *Fake) RegisterEvidence(_ context.Context, evidenceID, fingerprint, caseID, _ string) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.RegisterCalls = append(f.RegisterCalls, evidenceID)
	if f.RegisterHook != nil {
		if err := f.RegisterHook(evidenceID); err != nil {
			return nil, err
		}
	}
	if _, ok := f.records[evidenceID]; ok {
		return nil, fmt.Errorf("%w: %s", evidence.ErrAlreadyExists, evidenceID)
	}
	f.records[evidenceID] = evidence.Record{
		EvidenceID:  evidenceID,
		Fingerprint: fingerprint,
		CaseID:      caseID,
	}
	return &Receipt{TxHash: "0xfake-" + evidenceID}, nil
}

// GetAuditTrail implements Client.
func (f *Fake) GetAuditTrail(_ context.Context, evidenceID string) ([]evidence.CustodyEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]evidence.CustodyEvent(nil), f.trails[evidenceID]...), nil
}

// RaiseAlert implements Client. Alert ids are assigned sequentially from 1.
func (f *Fake) RaiseAlert(_ context.Context, evidenceID string, alertType evidence.AlertType, message string) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	id := int64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, evidence.Alert{
		AlertID:    id,
		EvidenceID: evidenceID,
		Type:       alertType,
		Message:    message,
	})
	return &Receipt{TxHash: fmt.Sprintf("0xalert-%d", id), AlertID: id}, nil
}

// GetAlert implements Client.
func (f *Fake) GetAlert(_ context.Context, index int64) (*evidence.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if index < 0 || index >= int64(len(f.alerts)) {
		return nil, fmt.Errorf("%w: alert index %d", evidence.ErrNotFound, index)
	}
	a := f.alerts[index]
	return &a, nil
}

// TotalAlerts implements Client.
func (f *Fake) TotalAlerts(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return int64(len(f.alerts)), nil
}

// ResolveAlert implements Client.
func (f *Fake) ResolveAlert(_ context.Context, alertID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := range f.alerts {
		if f.alerts[i].AlertID == alertID {
			f.alerts[i].Resolved = true
			return nil
		}
	}
	return fmt.Errorf("%w: alert %d", evidence.ErrNotFound, alertID)
}

// Alerts returns a copy of the raised alerts, in raise order.
func (f *Fake) Alerts() []evidence.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]evidence.Alert(nil), f.alerts...)
}
