package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodix/custodix/internal/config"
	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/ledger"
	"github.com/custodix/custodix/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Fake) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Store.Path = filepath.Join(t.TempDir(), "engine.db")
	cfg.Sync.DelayMs = 1

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	fake := ledger.NewFake()
	e, err := New(cfg, logger, &Options{Ledger: fake})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, fake
}

func rapidTrail(evidenceID string) []evidence.CustodyEvent {
	return []evidence.CustodyEvent{
		{EvidenceID: evidenceID, Action: evidence.ActionAccessed, Actor: "0xa", Timestamp: 1120},
		{EvidenceID: evidenceID, Action: evidence.ActionAccessed, Actor: "0xa", Timestamp: 1060},
		{EvidenceID: evidenceID, Action: evidence.ActionAccessed, Actor: "0xa", Timestamp: 1000},
	}
}

func TestInspectRaisesAndPersistsAlert(t *testing.T) {
	e, fake := newTestEngine(t)
	ctx := context.Background()

	fake.SeedTrail("EV-1", rapidTrail("EV-1"))

	insp, err := e.Inspect(ctx, "EV-1")
	require.NoError(t, err)
	assert.True(t, insp.Verdict.Suspicious)
	require.NotNil(t, insp.Alert)
	assert.Equal(t, evidence.AlertSuspiciousActivity, insp.Alert.Type)

	raised := fake.Alerts()
	require.Len(t, raised, 1)
	assert.Equal(t, raised[0].AlertID, insp.Alert.AlertID, "persisted under the ledger-assigned id")

	listed, err := e.Alerts(ctx, store.AlertFilter{EvidenceID: "EV-1"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "anomaly-detector", listed[0].TriggeredBy)
}

func TestInspectCleanTrailRaisesNothing(t *testing.T) {
	e, fake := newTestEngine(t)

	fake.SeedTrail("EV-1", []evidence.CustodyEvent{
		{EvidenceID: "EV-1", Action: evidence.ActionCollected, Actor: "0xa", Timestamp: 1000},
	})

	insp, err := e.Inspect(context.Background(), "EV-1")
	require.NoError(t, err)
	assert.False(t, insp.Verdict.Suspicious)
	assert.Nil(t, insp.Alert)
	assert.Empty(t, fake.Alerts())
}

func TestApplyDetectionTakesEffect(t *testing.T) {
	e, fake := newTestEngine(t)
	ctx := context.Background()

	fake.SeedTrail("EV-1", rapidTrail("EV-1"))

	// Raise the run threshold past the trail length; the same trail is now
	// clean.
	dc := config.Defaults().Detection
	dc.RapidRun = 4
	e.ApplyDetection(dc)

	insp, err := e.Inspect(ctx, "EV-1")
	require.NoError(t, err)
	assert.False(t, insp.Verdict.Suspicious)
}

func TestResolveAlertFlowsThroughBothStores(t *testing.T) {
	e, fake := newTestEngine(t)
	ctx := context.Background()

	fake.SeedTrail("EV-1", rapidTrail("EV-1"))
	insp, err := e.Inspect(ctx, "EV-1")
	require.NoError(t, err)
	require.NotNil(t, insp.Alert)

	require.NoError(t, e.ResolveAlert(ctx, insp.Alert.AlertID, "0xadmin"))
	assert.True(t, fake.Alerts()[0].Resolved, "ledger side resolved")

	err = e.ResolveAlert(ctx, insp.Alert.AlertID, "0xadmin")
	assert.ErrorIs(t, err, evidence.ErrAlreadyResolved)

	stats, err := e.AlertStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
}
