package evidence

import (
	"errors"
	"testing"
)

func TestActionOrdinalsAreFixed(t *testing.T) {
	// The ledger stores these as small integers; the mapping is part of the
	// wire contract.
	want := map[ActionKind]int{
		ActionCollected:   0,
		ActionUploaded:    1,
		ActionAccessed:    2,
		ActionTransferred: 3,
		ActionAnalyzed:    4,
		ActionVerified:    5,
		ActionModified:    6,
	}
	for kind, ordinal := range want {
		if int(kind) != ordinal {
			t.Errorf("%s ordinal = %d, want %d", kind, int(kind), ordinal)
		}
		parsed, err := ActionFromOrdinal(ordinal)
		if err != nil {
			t.Errorf("ActionFromOrdinal(%d): %v", ordinal, err)
		}
		if parsed != kind {
			t.Errorf("ActionFromOrdinal(%d) = %s, want %s", ordinal, parsed, kind)
		}
	}

	if _, err := ActionFromOrdinal(7); err == nil {
		t.Error("ordinal 7 should be rejected")
	}
	if _, err := ActionFromOrdinal(-1); err == nil {
		t.Error("ordinal -1 should be rejected")
	}
}

func TestAlertTypeOrdinals(t *testing.T) {
	if int(AlertUnauthorizedAccess) != 0 || int(AlertTamperingDetected) != 1 ||
		int(AlertSuspiciousActivity) != 2 || int(AlertOther) != 3 {
		t.Error("alert type ordinals drifted from the ledger contract")
	}
	if got := AlertTamperingDetected.String(); got != "TAMPERING_DETECTED" {
		t.Errorf("String = %q", got)
	}
	if len(AlertTypes()) != 4 {
		t.Errorf("AlertTypes() = %d entries, want 4", len(AlertTypes()))
	}
}

func TestDedupKey(t *testing.T) {
	base := CustodyEvent{
		EvidenceID: "EV-1",
		Action:     ActionAccessed,
		Actor:      "0xabc",
		Timestamp:  1700000000,
	}

	same := base
	same.Notes = "different notes do not affect identity"
	if base.DedupKey() != same.DedupKey() {
		t.Error("notes changed the dedup key")
	}

	other := base
	other.TransferTarget = "0xdef"
	if base.DedupKey() == other.DedupKey() {
		t.Error("transfer target should be part of the dedup key")
	}
}

func TestProvisional(t *testing.T) {
	if (Alert{AlertID: 42}).Provisional() {
		t.Error("ledger-assigned id flagged provisional")
	}
	if !(Alert{AlertID: -7}).Provisional() {
		t.Error("negative id not flagged provisional")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrAlreadyExists, ErrUnauthorized, ErrAlreadyResolved, ErrUnavailable}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
