package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodix/custodix/internal/evidence"
)

func TestHTTPClientGetEvidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/evidence/EV-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(evidence.Record{
			EvidenceID:  "EV-1",
			CaseID:      "CASE-9",
			Fingerprint: "aabbcc",
			Collector:   "0xcollector",
			CreatedAt:   1700000000,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	rec, err := c.GetEvidence(context.Background(), "EV-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.CaseID != "CASE-9" || rec.Fingerprint != "aabbcc" {
		t.Errorf("record = %+v", rec)
	}
}

func TestHTTPClientErrorCodeMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"structured not_found", http.StatusNotFound, `{"error":"not_found","message":"no such evidence"}`, evidence.ErrNotFound},
		{"structured already_exists", http.StatusConflict, `{"error":"already_exists","message":"dup"}`, evidence.ErrAlreadyExists},
		{"structured unauthorized", http.StatusForbidden, `{"error":"unauthorized","message":"unknown principal"}`, evidence.ErrUnauthorized},
		{"bare 404", http.StatusNotFound, ``, evidence.ErrNotFound},
		{"bare 409", http.StatusConflict, ``, evidence.ErrAlreadyExists},
		{"bare 403", http.StatusForbidden, ``, evidence.ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ``, evidence.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, nil)
			_, err := c.GetEvidence(context.Background(), "EV-X")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPClientUnreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", nil)
	_, err := c.GetEvidence(context.Background(), "EV-1")
	if !errors.Is(err, evidence.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestHTTPClientGetAuditTrailOrdinals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"action":2,"actor":"0xa","timestamp":1700000100},
			{"action":3,"actor":"0xa","timestamp":1700000200,"transfer_target":"0xb"}
		]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	events, err := c.GetAuditTrail(context.Background(), "EV-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Action != evidence.ActionAccessed {
		t.Errorf("event 0 action = %s", events[0].Action)
	}
	if events[1].Action != evidence.ActionTransferred || events[1].TransferTarget != "0xb" {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[0].EvidenceID != "EV-1" {
		t.Error("evidence id not stamped onto converted events")
	}
}

func TestHTTPClientGetAuditTrailRejectsUnknownOrdinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"action":99,"actor":"0xa","timestamp":1}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	if _, err := c.GetAuditTrail(context.Background(), "EV-1"); err == nil {
		t.Error("unknown ordinal should fail the read")
	}
}

func TestHTTPClientRaiseAlert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["alert_type"].(float64) != 1 {
			t.Errorf("alert_type = %v, want 1", body["alert_type"])
		}
		_ = json.NewEncoder(w).Encode(Receipt{TxHash: "0x123", AlertID: 7})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	receipt, err := c.RaiseAlert(context.Background(), "EV-1", evidence.AlertTamperingDetected, "mismatch")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.AlertID != 7 {
		t.Errorf("alert id = %d, want 7", receipt.AlertID)
	}
}

func TestListAlerts(t *testing.T) {
	fake := NewFake()
	for i := 0; i < 3; i++ {
		if _, err := fake.RaiseAlert(context.Background(), "EV-1", evidence.AlertOther, "x"); err != nil {
			t.Fatal(err)
		}
	}

	alerts, err := ListAlerts(context.Background(), fake)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}
	if alerts[0].AlertID != 1 || alerts[2].AlertID != 3 {
		t.Errorf("alert ids = %d..%d", alerts[0].AlertID, alerts[2].AlertID)
	}
}
