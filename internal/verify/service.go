// Package verify implements evidence fingerprint verification against the
// secondary store with fallback to the authoritative ledger, including
// tamper alerting and the ledger-to-secondary backfill side effect.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodix/custodix/internal/alerts"
	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/fingerprint"
	"github.com/custodix/custodix/internal/ledger"
	"github.com/custodix/custodix/internal/metrics"
	"github.com/custodix/custodix/internal/syncer"
)

// Source names which side answered a verification.
type Source string

const (
	SourceSecondary Source = "secondary"
	SourceLedger    Source = "ledger"
	SourceNone      Source = "none"
)

// displayLen is how many fingerprint characters alert messages carry.
const displayLen = 12

// Result is the outcome of one verification. The three caller-visible
// shapes are: verified; found but mismatched (Mismatch); and not found in
// either source (NotFound). Infrastructure failures are returned as errors
// wrapping ErrUnavailable instead, because "could not determine" must never
// read as "determined to be invalid".
type Result struct {
	Verified bool   `json:"verified"`
	Source   Source `json:"source"`
	Mismatch bool   `json:"mismatch"`
	NotFound bool   `json:"not_found"`

	RegisteredFingerprint string `json:"registered_fingerprint,omitempty"`
	CurrentFingerprint    string `json:"current_fingerprint,omitempty"`
	Collector             string `json:"collector,omitempty"`
	CaseID                string `json:"case_id,omitempty"`
	CreatedAt             int64  `json:"created_at,omitempty"`

	// Message explains which source answered and why, for forensic
	// provenance.
	Message string `json:"message"`
}

// SecondarySource is the evidence capability of the secondary store used by
// the service.
type SecondarySource interface {
	FindEvidence(ctx context.Context, evidenceID string) (*evidence.Record, error)
	UpsertEvidence(ctx context.Context, rec *evidence.Record) error
}

// Service verifies computed fingerprints against registered ones.
type Service struct {
	store   SecondarySource
	ledger  ledger.Client // nil when no ledger is configured
	alerts  *alerts.Repository
	syncer  *syncer.Engine // nil disables the backfill side effect
	logger  *slog.Logger
	metrics *metrics.Metrics

	// TriggeredBy is the principal recorded on alerts this service raises.
	TriggeredBy string

	// BackfillTimeout bounds the detached backfill write.
	BackfillTimeout time.Duration

	now func() time.Time
	wg  sync.WaitGroup
}

// NewService builds a verification service. ledgerClient and syncEngine may
// be nil.
func NewService(store SecondarySource, ledgerClient ledger.Client, alertRepo *alerts.Repository, syncEngine *syncer.Engine, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:           store,
		ledger:          ledgerClient,
		alerts:          alertRepo,
		syncer:          syncEngine,
		logger:          logger,
		metrics:         m,
		TriggeredBy:     "verification-service",
		BackfillTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

// Verify compares a computed fingerprint against the registered one for
// evidenceID. The secondary store answers first; the ledger is the fallback
// when the record is absent there or the store is unreachable. A ledger hit
// triggers a best-effort asynchronous backfill of the secondary store that
// never blocks the response. A mismatch raises a TAMPERING_DETECTED alert,
// but alert-channel failures never change the result: it reflects file
// state, not alerting state.
func (s *Service) Verify(ctx context.Context, evidenceID, computedFingerprint string) (*Result, error) {
	rec, secErr := s.store.FindEvidence(ctx, evidenceID)
	if secErr == nil {
		res := s.compare(ctx, rec, computedFingerprint, SourceSecondary)
		return res, nil
	}

	secondaryMissing := errors.Is(secErr, evidence.ErrNotFound)
	if !secondaryMissing {
		s.logger.Warn("secondary store read failed, trying ledger", "evidence_id", evidenceID, "error", secErr)
	}

	if s.ledger == nil {
		if secondaryMissing {
			return s.notFound(evidenceID), nil
		}
		s.metrics.ObserveVerification("unavailable", string(SourceNone))
		return nil, fmt.Errorf("%w: secondary store failed and no ledger is configured: %v", evidence.ErrUnavailable, secErr)
	}

	rec, ledgerErr := s.ledger.GetEvidence(ctx, evidenceID)
	switch {
	case ledgerErr == nil:
		res := s.compare(ctx, rec, computedFingerprint, SourceLedger)
		s.backfill(rec)
		return res, nil

	case errors.Is(ledgerErr, evidence.ErrNotFound):
		if secondaryMissing {
			return s.notFound(evidenceID), nil
		}
		// The ledger says no, but the secondary store never answered; a
		// secondary-only record could still exist.
		s.metrics.ObserveVerification("unavailable", string(SourceNone))
		return nil, fmt.Errorf("%w: record absent from ledger and secondary store unreachable: %v",
			evidence.ErrUnavailable, secErr)

	default:
		s.metrics.ObserveVerification("unavailable", string(SourceNone))
		if secondaryMissing {
			return nil, fmt.Errorf("%w: record absent from secondary store and ledger unreachable: %v",
				evidence.ErrUnavailable, ledgerErr)
		}
		return nil, fmt.Errorf("%w: both sources unreachable (secondary: %v, ledger: %v)",
			evidence.ErrUnavailable, secErr, ledgerErr)
	}
}

// Wait blocks until detached backfill writes finish. Called on shutdown and
// by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) compare(ctx context.Context, rec *evidence.Record, computed string, source Source) *Result {
	res := &Result{
		Source:                source,
		RegisteredFingerprint: rec.Fingerprint,
		CurrentFingerprint:    computed,
		Collector:             rec.Collector,
		CaseID:                rec.CaseID,
		CreatedAt:             rec.CreatedAt,
	}

	if fingerprint.Compare(rec.Fingerprint, computed) {
		res.Verified = true
		res.Message = fmt.Sprintf("fingerprint matches record registered in %s source", source)
		s.metrics.ObserveVerification("verified", string(source))
		return res
	}

	res.Mismatch = true
	res.Message = fmt.Sprintf("fingerprint mismatch against %s source: registered %s, computed %s",
		source, fingerprint.Truncate(rec.Fingerprint, displayLen), fingerprint.Truncate(computed, displayLen))
	s.metrics.ObserveVerification("mismatch", string(source))
	s.metrics.ObserveMismatch()

	s.raiseTamperAlert(ctx, rec.EvidenceID, rec.Fingerprint, computed)
	return res
}

func (s *Service) notFound(evidenceID string) *Result {
	s.metrics.ObserveVerification("not_found", string(SourceNone))
	return &Result{
		Source:   SourceNone,
		NotFound: true,
		Message:  fmt.Sprintf("evidence %s not found in secondary store or ledger", evidenceID),
	}
}

// raiseTamperAlert records the mismatch on the ledger and mirrors the alert
// into the secondary store. Every failure here is logged and swallowed.
func (s *Service) raiseTamperAlert(ctx context.Context, evidenceID, registered, computed string) {
	msg := fmt.Sprintf("fingerprint mismatch for %s: registered %s, computed %s",
		evidenceID, fingerprint.Truncate(registered, displayLen), fingerprint.Truncate(computed, displayLen))

	alert := alerts.NewProvisional(evidenceID, evidence.AlertTamperingDetected, s.TriggeredBy, msg, s.now())

	if s.ledger != nil {
		receipt, err := s.ledger.RaiseAlert(ctx, evidenceID, evidence.AlertTamperingDetected, msg)
		if err != nil {
			s.logger.Error("ledger alert raise failed, persisting provisional alert",
				"evidence_id", evidenceID, "error", err)
		} else {
			alert.AlertID = receipt.AlertID
		}
	}

	s.metrics.ObserveAlertRaised(evidence.AlertTamperingDetected.String())

	if s.alerts == nil {
		return
	}
	if err := s.alerts.Upsert(ctx, &alert); err != nil {
		s.logger.Error("tamper alert persistence failed", "evidence_id", evidenceID, "error", err)
	}
}

// backfill copies a ledger-confirmed record into the secondary store and
// marks the sync cache, detached from the request.
func (s *Service) backfill(rec *evidence.Record) {
	recCopy := *rec
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.BackfillTimeout)
		defer cancel()

		if err := s.store.UpsertEvidence(ctx, &recCopy); err != nil {
			s.logger.Warn("secondary backfill failed", "evidence_id", recCopy.EvidenceID, "error", err)
			return
		}
		if s.syncer != nil {
			s.syncer.MarkSynced(ctx, recCopy.EvidenceID)
		}
		s.logger.Info("backfilled ledger record into secondary store", "evidence_id", recCopy.EvidenceID)
	}()
}
