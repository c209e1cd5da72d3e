// Package syncer reconciles the secondary store against the authoritative
// ledger: it detects evidence records the ledger does not know about and
// replays their registration, one at a time, with a local sync-status cache
// to avoid redundant ledger reads.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/ledger"
	"github.com/custodix/custodix/internal/metrics"
)

// DefaultDelay is the mandatory pause between two ledger registrations in a
// batch; the ledger sequences transactions per principal.
const DefaultDelay = 500 * time.Millisecond

// SecondarySource is the evidence read capability of the secondary store.
type SecondarySource interface {
	ListEvidenceIDs(ctx context.Context) ([]string, error)
	FindEvidence(ctx context.Context, evidenceID string) (*evidence.Record, error)
}

// Outcome classifies one sync attempt.
type Outcome string

const (
	OutcomeAlreadySynced Outcome = "already_synced"
	OutcomeSynced        Outcome = "synced"
	OutcomeUnauthorized  Outcome = "unauthorized"
	OutcomeFailed        Outcome = "failed"
)

// Progress is one incremental batch update, emitted per item in enumeration
// order.
type Progress struct {
	Current    int
	Total      int
	EvidenceID string
	Outcome    Outcome
	Err        error
}

// ItemError records one failed batch item.
type ItemError struct {
	EvidenceID string
	Err        error
}

// Report summarizes a batch.
type Report struct {
	Succeeded int
	Failed    int
	Errors    []ItemError
	// Aborted is set when the batch stopped early: cancellation or the
	// systemic unauthorized failure. Already-applied syncs are never rolled
	// back.
	Aborted bool
}

// Engine is the reconciliation sync engine.
type Engine struct {
	store   SecondarySource
	ledger  ledger.Client
	cache   StatusCache
	delay   time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine builds a sync engine. delay <= 0 uses DefaultDelay.
func NewEngine(store SecondarySource, ledgerClient ledger.Client, cache StatusCache, delay time.Duration, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Engine{
		store:   store,
		ledger:  ledgerClient,
		cache:   cache,
		delay:   delay,
		logger:  logger,
		metrics: m,
	}
}

// Cache exposes the status cache so the verification backfill path can mark
// ledger-confirmed records without a sync call.
func (e *Engine) Cache() StatusCache {
	return e.cache
}

// DetectDivergence returns the evidence ids present in the secondary store
// but absent from the ledger, in enumeration order. The cache only ever
// skips re-checking records already confirmed synced within the TTL; a
// candidate determination always comes from a real ledger read.
func (e *Engine) DetectDivergence(ctx context.Context) ([]string, error) {
	if e.ledger == nil {
		return nil, fmt.Errorf("%w: no ledger configured", evidence.ErrUnavailable)
	}

	ids, err := e.store.ListEvidenceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing secondary evidence: %w", err)
	}

	var candidates []string
	for _, id := range ids {
		st, err := e.cache.Get(ctx, id)
		if err != nil {
			e.logger.Warn("sync cache read failed", "evidence_id", id, "error", err)
		}
		if st != nil && st.Synced {
			continue
		}

		_, err = e.ledger.GetEvidence(ctx, id)
		switch {
		case err == nil:
			if cerr := e.cache.MarkSynced(ctx, id); cerr != nil {
				e.logger.Warn("sync cache update failed", "evidence_id", id, "error", cerr)
			}
		case errors.Is(err, evidence.ErrNotFound):
			candidates = append(candidates, id)
		default:
			// Could not determine; do not guess divergence from an
			// infrastructure failure.
			e.logger.Warn("ledger check failed, skipping record", "evidence_id", id, "error", err)
		}
	}
	return candidates, nil
}

// SyncOne replays one record's registration onto the ledger. A ledger-side
// "already exists" is an idempotent success.
func (e *Engine) SyncOne(ctx context.Context, evidenceID string) (Outcome, error) {
	if e.ledger == nil {
		return OutcomeFailed, fmt.Errorf("%w: no ledger configured", evidence.ErrUnavailable)
	}

	rec, err := e.store.FindEvidence(ctx, evidenceID)
	if err != nil {
		e.metrics.ObserveSyncOutcome(string(OutcomeFailed))
		return OutcomeFailed, fmt.Errorf("reading secondary record: %w", err)
	}

	receipt, err := e.ledger.RegisterEvidence(ctx, rec.EvidenceID, rec.Fingerprint, rec.CaseID, metadataEnvelope(rec))
	switch {
	case err == nil:
		e.markSynced(ctx, evidenceID)
		e.metrics.ObserveSyncOutcome(string(OutcomeSynced))
		e.logger.Info("evidence registered on ledger", "evidence_id", evidenceID, "tx", receipt.TxHash)
		return OutcomeSynced, nil

	case errors.Is(err, evidence.ErrAlreadyExists):
		e.markSynced(ctx, evidenceID)
		e.metrics.ObserveSyncOutcome(string(OutcomeAlreadySynced))
		return OutcomeAlreadySynced, nil

	case errors.Is(err, evidence.ErrUnauthorized):
		e.metrics.ObserveSyncOutcome(string(OutcomeUnauthorized))
		return OutcomeUnauthorized, fmt.Errorf(
			"ledger rejected the calling principal, administrative registration required: %w", err)

	default:
		e.metrics.ObserveSyncOutcome(string(OutcomeFailed))
		return OutcomeFailed, fmt.Errorf("ledger registration: %w", err)
	}
}

// SyncAll replays every divergent record sequentially, pausing between
// items, reporting progress per item, and honoring cancellation between
// items (never mid-ledger-call). Per-item failures are isolated, except the
// unauthorized rejection: that is systemic, so the batch stops immediately
// and remaining items are left unattempted.
func (e *Engine) SyncAll(ctx context.Context, progress func(Progress)) (*Report, error) {
	candidates, err := e.DetectDivergence(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	total := len(candidates)
	for i, id := range candidates {
		if i > 0 {
			select {
			case <-ctx.Done():
				report.Aborted = true
				return report, ctx.Err()
			case <-time.After(e.delay):
			}
		} else if ctx.Err() != nil {
			report.Aborted = true
			return report, ctx.Err()
		}

		outcome, err := e.SyncOne(ctx, id)
		if progress != nil {
			progress(Progress{Current: i + 1, Total: total, EvidenceID: id, Outcome: outcome, Err: err})
		}

		switch outcome {
		case OutcomeSynced, OutcomeAlreadySynced:
			report.Succeeded++
		case OutcomeUnauthorized:
			report.Failed++
			report.Errors = append(report.Errors, ItemError{EvidenceID: id, Err: err})
			report.Aborted = true
			return report, err
		default:
			report.Failed++
			report.Errors = append(report.Errors, ItemError{EvidenceID: id, Err: err})
			e.logger.Warn("sync item failed", "evidence_id", id, "error", err)
		}
	}
	return report, nil
}

// MarkSynced records a ledger-confirmed record in the cache. Used by the
// verification backfill path.
func (e *Engine) MarkSynced(ctx context.Context, evidenceID string) {
	e.markSynced(ctx, evidenceID)
}

func (e *Engine) markSynced(ctx context.Context, evidenceID string) {
	if err := e.cache.MarkSynced(ctx, evidenceID); err != nil {
		e.logger.Warn("sync cache update failed", "evidence_id", evidenceID, "error", err)
	}
}

func metadataEnvelope(rec *evidence.Record) string {
	env, err := json.Marshal(map[string]any{
		"collector":   rec.Collector,
		"custodian":   rec.Custodian,
		"created_at":  rec.CreatedAt,
		"category":    rec.Category,
		"description": rec.Description,
	})
	if err != nil {
		return "{}"
	}
	return string(env)
}
