// Package anomaly scans custody trails for suspicious access patterns. The
// rule set is deliberately small and explainable: every verdict names the
// rule that produced it, so forensic reviewers can trace it.
package anomaly

import (
	"time"

	"github.com/custodix/custodix/internal/evidence"
)

// Rule identifiers carried on positive verdicts.
const (
	RuleRapidAccess          = "rapid-access"
	RuleRepeatedModification = "repeated-modification"
)

// Config holds the detection thresholds. Defaults preserve the established
// behavior; deployments may tune them via configuration.
type Config struct {
	// WindowSize is how many of the most recent events the rapid-access rule
	// inspects.
	WindowSize int
	// RapidRun is the number of consecutive events, each within RapidDelta
	// of the previous one, that triggers the rapid-access rule.
	RapidRun int
	// RapidDelta is the maximum gap between two events for them to count as
	// part of a rapid run.
	RapidDelta time.Duration
	// ModificationLimit is the MODIFIED-event count that triggers the
	// repeated-modification rule.
	ModificationLimit int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		WindowSize:        5,
		RapidRun:          3,
		RapidDelta:        300 * time.Second,
		ModificationLimit: 3,
	}
}

// Verdict is the outcome of evaluating one trail.
type Verdict struct {
	Suspicious bool   `json:"suspicious"`
	Rule       string `json:"rule,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Detector applies the fixed rule set.
type Detector struct {
	cfg Config
}

// NewDetector builds a detector; zero-valued config fields fall back to the
// defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.RapidRun <= 0 {
		cfg.RapidRun = def.RapidRun
	}
	if cfg.RapidDelta <= 0 {
		cfg.RapidDelta = def.RapidDelta
	}
	if cfg.ModificationLimit <= 0 {
		cfg.ModificationLimit = def.ModificationLimit
	}
	return &Detector{cfg: cfg}
}

// Evaluate applies the rules in order to a newest-first trail; the first
// match wins.
func (d *Detector) Evaluate(trail []evidence.CustodyEvent) Verdict {
	if v := d.rapidAccess(trail); v.Suspicious {
		return v
	}
	if v := d.repeatedModification(trail); v.Suspicious {
		return v
	}
	return Verdict{}
}

// rapidAccess looks for a run of RapidRun consecutive events inside the
// most recent WindowSize events where every adjacent gap is under
// RapidDelta. Two rapid gaps separated by a quiet period do not count: the
// run resets on the first slow gap.
func (d *Detector) rapidAccess(trail []evidence.CustodyEvent) Verdict {
	window := trail
	if len(window) > d.cfg.WindowSize {
		window = window[:d.cfg.WindowSize]
	}

	maxDelta := int64(d.cfg.RapidDelta / time.Second)
	run := 1
	for i := 0; i+1 < len(window); i++ {
		delta := window[i].Timestamp - window[i+1].Timestamp
		if delta < 0 {
			delta = -delta
		}
		if delta < maxDelta {
			run++
			if run >= d.cfg.RapidRun {
				return Verdict{
					Suspicious: true,
					Rule:       RuleRapidAccess,
					Reason:     "rapid consecutive access attempts detected",
				}
			}
		} else {
			run = 1
		}
	}
	return Verdict{}
}

// repeatedModification counts MODIFIED events over the whole trail.
func (d *Detector) repeatedModification(trail []evidence.CustodyEvent) Verdict {
	modified := 0
	for _, ev := range trail {
		if ev.Action == evidence.ActionModified {
			modified++
			if modified >= d.cfg.ModificationLimit {
				return Verdict{
					Suspicious: true,
					Rule:       RuleRepeatedModification,
					Reason:     "multiple modification attempts detected",
				}
			}
		}
	}
	return Verdict{}
}
