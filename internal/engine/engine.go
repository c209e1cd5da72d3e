// Package engine wires the integrity components together and exposes the
// surface consumed by the CRUD/UI layer: verification, audit trails,
// reconciliation, anomaly inspection, and alert management.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/custodix/custodix/internal/alerts"
	"github.com/custodix/custodix/internal/anomaly"
	"github.com/custodix/custodix/internal/config"
	"github.com/custodix/custodix/internal/evidence"
	"github.com/custodix/custodix/internal/fingerprint"
	"github.com/custodix/custodix/internal/ledger"
	"github.com/custodix/custodix/internal/metrics"
	"github.com/custodix/custodix/internal/store"
	"github.com/custodix/custodix/internal/syncer"
	"github.com/custodix/custodix/internal/trail"
	"github.com/custodix/custodix/internal/verify"
)

// Options overrides engine construction, mainly for tests.
type Options struct {
	// Ledger replaces the bridge client built from config.
	Ledger ledger.Client
	// Registry receives the engine metrics; defaults to a fresh registry.
	Registry prometheus.Registerer
}

// Engine is the assembled integrity engine.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	store      *store.Store
	ledger     ledger.Client
	alertRepo  *alerts.Repository
	verifier   *verify.Service
	aggregator *trail.Aggregator
	syncer     *syncer.Engine
	metrics    *metrics.Metrics

	mu       sync.RWMutex
	detector *anomaly.Detector

	redisClient *redis.Client
}

// New builds an engine from config. opts may be nil.
func New(cfg *config.Config, logger *slog.Logger, opts *Options) (*Engine, error) {
	if opts == nil {
		opts = &Options{}
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}

	ledgerClient := opts.Ledger
	if ledgerClient == nil && cfg.Ledger.Enabled {
		ledgerClient = ledger.NewHTTPClient(cfg.Ledger.BridgeURL, &http.Client{
			Timeout: time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second,
		})
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := metrics.New(registry)

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		ledger:  ledgerClient,
		metrics: m,
	}

	var cache syncer.StatusCache
	if cfg.Cache.Backend == "redis" {
		e.redisClient = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		cache = syncer.NewRedisCache(e.redisClient, cfg.CacheTTL())
	} else {
		cache = syncer.NewMemoryCache(cfg.CacheTTL())
	}

	e.alertRepo = alerts.NewRepository(st, logger)
	e.syncer = syncer.NewEngine(st, ledgerClient, cache, cfg.SyncDelay(), logger, m)
	e.verifier = verify.NewService(st, ledgerClient, e.alertRepo, e.syncer, logger, m)
	e.aggregator = trail.NewAggregator(st, ledgerClient, logger)
	e.detector = anomaly.NewDetector(detectionConfig(cfg.Detection))

	return e, nil
}

// Close flushes background work and releases resources.
func (e *Engine) Close() error {
	e.verifier.Wait()
	if e.redisClient != nil {
		if err := e.redisClient.Close(); err != nil {
			e.logger.Warn("closing redis client", "error", err)
		}
	}
	return e.store.Close()
}

// ApplyDetection swaps in new anomaly thresholds, e.g. on a config reload.
func (e *Engine) ApplyDetection(dc config.DetectionConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detector = anomaly.NewDetector(detectionConfig(dc))
}

// Verify checks a computed fingerprint for one evidence record.
func (e *Engine) Verify(ctx context.Context, evidenceID, computedFingerprint string) (*verify.Result, error) {
	return e.verifier.Verify(ctx, evidenceID, computedFingerprint)
}

// VerifyFile fingerprints the file at path and verifies it.
func (e *Engine) VerifyFile(ctx context.Context, evidenceID, path string) (*verify.Result, error) {
	fp, err := fingerprint.ComputeFile(path)
	if err != nil {
		return nil, err
	}
	return e.verifier.Verify(ctx, evidenceID, fp)
}

// AuditTrail returns the aggregated custody trail, newest first.
func (e *Engine) AuditTrail(ctx context.Context, evidenceID string) (*trail.Trail, error) {
	return e.aggregator.Get(ctx, evidenceID)
}

// Inspection is the result of an anomaly scan over one record's trail.
type Inspection struct {
	Trail   *trail.Trail
	Verdict anomaly.Verdict
	// Alert is the persisted alert when the verdict is suspicious.
	Alert *evidence.Alert
}

// Inspect scans the custody trail for suspicious patterns. A positive
// verdict raises a SUSPICIOUS_ACTIVITY alert on the ledger and mirrors it
// into the secondary store; alert-channel failures are logged, and the
// verdict stands either way.
func (e *Engine) Inspect(ctx context.Context, evidenceID string) (*Inspection, error) {
	tr, err := e.aggregator.Get(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	detector := e.detector
	e.mu.RUnlock()

	verdict := detector.Evaluate(tr.Events)
	insp := &Inspection{Trail: tr, Verdict: verdict}
	if !verdict.Suspicious {
		return insp, nil
	}

	msg := fmt.Sprintf("%s for evidence %s (rule %s)", verdict.Reason, evidenceID, verdict.Rule)
	alert := alerts.NewProvisional(evidenceID, evidence.AlertSuspiciousActivity, "anomaly-detector", msg, time.Now())

	if e.ledger != nil {
		receipt, err := e.ledger.RaiseAlert(ctx, evidenceID, evidence.AlertSuspiciousActivity, msg)
		if err != nil {
			e.logger.Error("ledger alert raise failed, persisting provisional alert",
				"evidence_id", evidenceID, "error", err)
		} else {
			alert.AlertID = receipt.AlertID
		}
	}
	e.metrics.ObserveAlertRaised(evidence.AlertSuspiciousActivity.String())

	if err := e.alertRepo.Upsert(ctx, &alert); err != nil {
		e.logger.Error("suspicion alert persistence failed", "evidence_id", evidenceID, "error", err)
	} else {
		insp.Alert = &alert
	}
	return insp, nil
}

// DetectDivergence lists evidence known to the secondary store but absent
// from the ledger.
func (e *Engine) DetectDivergence(ctx context.Context) ([]string, error) {
	return e.syncer.DetectDivergence(ctx)
}

// SyncOne replays a single record's registration onto the ledger.
func (e *Engine) SyncOne(ctx context.Context, evidenceID string) (syncer.Outcome, error) {
	return e.syncer.SyncOne(ctx, evidenceID)
}

// SyncAll reconciles every divergent record, reporting progress per item.
func (e *Engine) SyncAll(ctx context.Context, progress func(syncer.Progress)) (*syncer.Report, error) {
	return e.syncer.SyncAll(ctx, progress)
}

// AlertStatistics aggregates the alert population as of now.
func (e *Engine) AlertStatistics(ctx context.Context) (*alerts.Statistics, error) {
	return e.alertRepo.Statistics(ctx, time.Now())
}

// Alerts lists alerts from the secondary store.
func (e *Engine) Alerts(ctx context.Context, f store.AlertFilter) ([]evidence.Alert, error) {
	return e.alertRepo.List(ctx, f)
}

// ResolveAlert marks an alert resolved. The ledger resolution is best
// effort; the secondary store enforces the monotonic resolved flag and is
// the source of truth for the outcome. Provisional alerts have no ledger
// counterpart to resolve.
func (e *Engine) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error {
	if e.ledger != nil && alertID >= 0 {
		if err := e.ledger.ResolveAlert(ctx, alertID); err != nil && !errors.Is(err, evidence.ErrNotFound) {
			e.logger.Warn("ledger alert resolution failed", "alert_id", alertID, "error", err)
		}
	}
	return e.alertRepo.Resolve(ctx, alertID, resolvedBy)
}

func detectionConfig(dc config.DetectionConfig) anomaly.Config {
	return anomaly.Config{
		WindowSize:        dc.WindowSize,
		RapidRun:          dc.RapidRun,
		RapidDelta:        time.Duration(dc.RapidDeltaSeconds) * time.Second,
		ModificationLimit: dc.ModificationLimit,
	}
}
