// Package trail aggregates custody history from the secondary store and the
// ledger into one chronologically ordered, deduplicated sequence.
package trail

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/ledger"
)

// SecondarySource is the audit-event read capability of the secondary store.
type SecondarySource interface {
	FindAuditEvents(ctx context.Context, evidenceID string) ([]evidence.CustodyEvent, error)
}

// Source names which side(s) answered a trail query.
type Source string

const (
	SourceSecondary Source = "secondary"
	SourceLedger    Source = "ledger"
	SourceBoth      Source = "secondary+ledger"
)

// Aggregator merges custody events from both sources. The secondary store is
// the default source; the ledger fills in when the secondary read fails or
// returns nothing, or augments it when AugmentFromLedger is set.
type Aggregator struct {
	secondary SecondarySource
	ledger    ledger.Client // nil when no ledger is configured
	logger    *slog.Logger

	// AugmentFromLedger merges the ledger trail into every read instead of
	// using it only as a fallback. Dedup makes this safe when the same
	// physical event is visible from both sides.
	AugmentFromLedger bool
}

// NewAggregator builds an aggregator. ledgerClient may be nil.
func NewAggregator(secondary SecondarySource, ledgerClient ledger.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{secondary: secondary, ledger: ledgerClient, logger: logger}
}

// Trail is the aggregated result with its provenance.
type Trail struct {
	Events []evidence.CustodyEvent
	Source Source
}

// Get returns the deduplicated custody trail for one record, newest first.
// Output is deterministic regardless of which source(s) answered or in what
// order: dedup by composite key, then a stable descending sort on timestamp
// with ties broken by action ordinal. No cursor state is kept between calls.
func (a *Aggregator) Get(ctx context.Context, evidenceID string) (*Trail, error) {
	var events []evidence.CustodyEvent
	var source Source

	secondaryEvents, secErr := a.secondary.FindAuditEvents(ctx, evidenceID)
	if secErr != nil {
		a.logger.Warn("secondary trail read failed", "evidence_id", evidenceID, "error", secErr)
	} else if len(secondaryEvents) > 0 {
		events = secondaryEvents
		source = SourceSecondary
	}

	needLedger := secErr != nil || len(secondaryEvents) == 0 || a.AugmentFromLedger
	if needLedger && a.ledger != nil {
		ledgerEvents, err := a.ledger.GetAuditTrail(ctx, evidenceID)
		switch {
		case err != nil && len(events) == 0:
			if secErr != nil {
				return nil, fmt.Errorf("%w: secondary and ledger trail reads both failed for %s (ledger: %v)",
					evidence.ErrUnavailable, evidenceID, err)
			}
			return nil, fmt.Errorf("ledger trail for %s: %w", evidenceID, err)
		case err != nil:
			a.logger.Warn("ledger trail read failed, using secondary only", "evidence_id", evidenceID, "error", err)
		case len(events) == 0:
			events = ledgerEvents
			source = SourceLedger
		case len(ledgerEvents) > 0:
			events = append(events, ledgerEvents...)
			source = SourceBoth
		}
	} else if secErr != nil && a.ledger == nil {
		return nil, fmt.Errorf("%w: secondary trail read failed for %s and no ledger is configured: %v",
			evidence.ErrUnavailable, evidenceID, secErr)
	}

	return &Trail{Events: normalize(events), Source: source}, nil
}

// normalize deduplicates by composite key and applies the deterministic
// ordering contract.
func normalize(events []evidence.CustodyEvent) []evidence.CustodyEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]evidence.CustodyEvent, 0, len(events))
	for _, ev := range events {
		key := ev.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Action < out[j].Action
	})
	return out
}
