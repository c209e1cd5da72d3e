package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/custodix/custodix/internal/evidence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEvidenceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &evidence.Record{
		EvidenceID:  "EV-1",
		CaseID:      "CASE-1",
		Fingerprint: "aa11",
		Custodian:   "0xcustodian",
		Collector:   "0xcollector",
		CreatedAt:   1700000000,
		Category:    "disk-image",
		Description: "seized laptop drive",
	}
	if err := s.UpsertEvidence(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindEvidence(ctx, "EV-1")
	if err != nil {
		t.Fatal(err)
	}
	if *got != *rec {
		t.Errorf("got %+v, want %+v", got, rec)
	}

	// Upsert replaces in place
	rec.Custodian = "0xnew"
	if err := s.UpsertEvidence(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _ = s.FindEvidence(ctx, "EV-1")
	if got.Custodian != "0xnew" {
		t.Errorf("custodian = %s after upsert", got.Custodian)
	}

	ids, err := s.ListEvidenceIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "EV-1" {
		t.Errorf("ids = %v", ids)
	}
}

func TestFindEvidenceNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindEvidence(context.Background(), "missing")
	if !errors.Is(err, evidence.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAuditEventsDedupOnInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := evidence.CustodyEvent{
		EvidenceID: "EV-1",
		Action:     evidence.ActionAccessed,
		Actor:      "0xa",
		Timestamp:  1700000100,
	}
	if err := s.InsertAuditEvent(ctx, &ev); err != nil {
		t.Fatal(err)
	}
	// Replaying the same physical event is a no-op
	if err := s.InsertAuditEvent(ctx, &ev); err != nil {
		t.Fatal(err)
	}

	later := ev
	later.Timestamp = 1700000200
	if err := s.InsertAuditEvent(ctx, &later); err != nil {
		t.Fatal(err)
	}

	events, err := s.FindAuditEvents(ctx, "EV-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// Newest first
	if events[0].Timestamp != 1700000200 {
		t.Errorf("first event timestamp = %d", events[0].Timestamp)
	}
}

func TestUpsertAlertIsAtomicAndMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &evidence.Alert{
		AlertID:    10,
		EvidenceID: "EV-1",
		Type:       evidence.AlertTamperingDetected,
		Message:    "first",
		Timestamp:  1700000000,
	}
	if err := s.UpsertAlert(ctx, a); err != nil {
		t.Fatal(err)
	}

	// Same key updates descriptive fields in place
	a.Message = "updated"
	if err := s.UpsertAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAlert(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got.Message != "updated" {
		t.Errorf("message = %q", got.Message)
	}

	// Resolve, then verify an unresolved upsert cannot flip it back
	if err := s.ResolveAlert(ctx, 10, "0xadmin", 1700001000); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetAlert(ctx, 10)
	if !got.Resolved || got.ResolvedBy != "0xadmin" || got.ResolvedAt != 1700001000 {
		t.Errorf("resolution regressed: %+v", got)
	}
}

func TestResolveAlertOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAlert(ctx, &evidence.Alert{AlertID: 1, EvidenceID: "EV-1", Type: evidence.AlertOther, Timestamp: 1}); err != nil {
		t.Fatal(err)
	}

	if err := s.ResolveAlert(ctx, 1, "0xa", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.ResolveAlert(ctx, 1, "0xb", 200); !errors.Is(err, evidence.ErrAlreadyResolved) {
		t.Errorf("second resolve error = %v, want ErrAlreadyResolved", err)
	}
	got, _ := s.GetAlert(ctx, 1)
	if got.ResolvedAt != 100 || got.ResolvedBy != "0xa" {
		t.Errorf("resolution restamped: %+v", got)
	}

	if err := s.ResolveAlert(ctx, 999, "0xa", 100); !errors.Is(err, evidence.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
}

func TestFindAlertsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tampering := evidence.AlertTamperingDetected
	seed := []evidence.Alert{
		{AlertID: 1, EvidenceID: "EV-1", Type: evidence.AlertTamperingDetected, Timestamp: 100},
		{AlertID: 2, EvidenceID: "EV-1", Type: evidence.AlertSuspiciousActivity, Timestamp: 200},
		{AlertID: 3, EvidenceID: "EV-2", Type: evidence.AlertTamperingDetected, Timestamp: 300, Resolved: true, ResolvedBy: "0xa", ResolvedAt: 301},
	}
	for i := range seed {
		if err := s.UpsertAlert(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	byEvidence, err := s.FindAlerts(ctx, AlertFilter{EvidenceID: "EV-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byEvidence) != 2 || byEvidence[0].AlertID != 2 {
		t.Errorf("EV-1 alerts = %+v", byEvidence)
	}

	byType, err := s.FindAlerts(ctx, AlertFilter{Type: &tampering})
	if err != nil {
		t.Fatal(err)
	}
	if len(byType) != 2 {
		t.Errorf("got %d tampering alerts, want 2", len(byType))
	}

	unresolved, err := s.FindAlerts(ctx, AlertFilter{Unresolved: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 2 {
		t.Errorf("got %d unresolved, want 2", len(unresolved))
	}

	counts, err := s.AggregateAlertCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[evidence.AlertTamperingDetected] != 2 || counts[evidence.AlertSuspiciousActivity] != 1 {
		t.Errorf("counts = %v", counts)
	}

	total, resolved, err := s.CountAlerts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || resolved != 1 {
		t.Errorf("total=%d resolved=%d", total, resolved)
	}

	since, err := s.CountAlertsSince(ctx, 200)
	if err != nil {
		t.Fatal(err)
	}
	if since != 2 {
		t.Errorf("since 200 = %d, want 2 (window is inclusive)", since)
	}
}

func TestProvisionalAlertIDsCoexist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertAlert(ctx, &evidence.Alert{AlertID: -12345, EvidenceID: "EV-1", Type: evidence.AlertTamperingDetected, Timestamp: 1}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAlert(ctx, -12345)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Provisional() {
		t.Error("provisional id lost")
	}
}
