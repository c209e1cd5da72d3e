// Package evidence defines the canonical records shared by every component:
// evidence metadata, custody events, alerts, and the error taxonomy used to
// discriminate ledger and store failures.
package evidence

import (
	"fmt"
	"strconv"
)

// ActionKind identifies one custody action. The ordinal values are part of
// the ledger contract (the chain stores actions as small integers), so the
// order of these constants must never change.
type ActionKind int

const (
	ActionCollected ActionKind = iota
	ActionUploaded
	ActionAccessed
	ActionTransferred
	ActionAnalyzed
	ActionVerified
	ActionModified
)

var actionNames = [...]string{
	ActionCollected:   "COLLECTED",
	ActionUploaded:    "UPLOADED",
	ActionAccessed:    "ACCESSED",
	ActionTransferred: "TRANSFERRED",
	ActionAnalyzed:    "ANALYZED",
	ActionVerified:    "VERIFIED",
	ActionModified:    "MODIFIED",
}

func (a ActionKind) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "UNKNOWN(" + strconv.Itoa(int(a)) + ")"
	}
	return actionNames[a]
}

// Valid reports whether the ordinal is inside the fixed action set.
func (a ActionKind) Valid() bool {
	return a >= 0 && int(a) < len(actionNames)
}

// ActionFromOrdinal maps a ledger-native action code to an ActionKind.
func ActionFromOrdinal(ordinal int) (ActionKind, error) {
	a := ActionKind(ordinal)
	if !a.Valid() {
		return 0, fmt.Errorf("action ordinal %d outside known set", ordinal)
	}
	return a, nil
}

// AlertType classifies a security alert. Ordinals mirror the ledger's alert
// type codes.
type AlertType int

const (
	AlertUnauthorizedAccess AlertType = iota
	AlertTamperingDetected
	AlertSuspiciousActivity
	AlertOther
)

var alertTypeNames = [...]string{
	AlertUnauthorizedAccess: "UNAUTHORIZED_ACCESS",
	AlertTamperingDetected:  "TAMPERING_DETECTED",
	AlertSuspiciousActivity: "SUSPICIOUS_ACTIVITY",
	AlertOther:              "OTHER",
}

func (t AlertType) String() string {
	if t < 0 || int(t) >= len(alertTypeNames) {
		return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
	}
	return alertTypeNames[t]
}

// Valid reports whether the ordinal is inside the fixed alert type set.
func (t AlertType) Valid() bool {
	return t >= 0 && int(t) < len(alertTypeNames)
}

// AlertTypeFromOrdinal maps a ledger-native alert type code to an AlertType.
func AlertTypeFromOrdinal(ordinal int) (AlertType, error) {
	t := AlertType(ordinal)
	if !t.Valid() {
		return 0, fmt.Errorf("alert type ordinal %d outside known set", ordinal)
	}
	return t, nil
}

// AlertTypes returns the full fixed enum, in ordinal order. Used for
// zero-filled breakdowns.
func AlertTypes() []AlertType {
	return []AlertType{AlertUnauthorizedAccess, AlertTamperingDetected, AlertSuspiciousActivity, AlertOther}
}

// Record is one piece of registered evidence. Fingerprint is a hex-encoded
// content hash and is immutable once the record is ledger-backed; the
// secondary copy must match the ledger copy byte-for-byte whenever both
// exist.
type Record struct {
	EvidenceID  string `json:"evidence_id"`
	CaseID      string `json:"case_id"`
	Fingerprint string `json:"fingerprint"`
	Custodian   string `json:"custodian"`
	Collector   string `json:"collector"`
	CreatedAt   int64  `json:"created_at"` // unix seconds
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// CustodyEvent is one append-only audit entry for a piece of evidence.
type CustodyEvent struct {
	EvidenceID       string     `json:"evidence_id"`
	Action           ActionKind `json:"action"`
	Actor            string     `json:"actor"`
	Timestamp        int64      `json:"timestamp"` // unix seconds
	TransferTarget   string     `json:"transfer_target,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	PriorFingerprint string     `json:"prior_fingerprint,omitempty"`
	NewFingerprint   string     `json:"new_fingerprint,omitempty"`
}

// DedupKey returns the composite identity used to deduplicate events that
// are visible from both the ledger and the secondary store.
func (e CustodyEvent) DedupKey() string {
	return e.EvidenceID + "|" + strconv.Itoa(int(e.Action)) + "|" + e.Actor + "|" +
		strconv.FormatInt(e.Timestamp, 10) + "|" + e.TransferTarget
}

// Alert is one security alert. AlertID is assigned by the ledger when the
// alert is raised there; alerts that never reached the ledger carry a
// negative provisional id until reconciled.
type Alert struct {
	AlertID     int64     `json:"alert_id"`
	EvidenceID  string    `json:"evidence_id"`
	TriggeredBy string    `json:"triggered_by"`
	Type        AlertType `json:"alert_type"`
	Message     string    `json:"message"`
	Timestamp   int64     `json:"timestamp"` // unix seconds
	Resolved    bool      `json:"resolved"`
	ResolvedBy  string    `json:"resolved_by,omitempty"`
	ResolvedAt  int64     `json:"resolved_at,omitempty"`
}

// Provisional reports whether the alert still carries a locally generated id.
func (a Alert) Provisional() bool {
	return a.AlertID < 0
}
