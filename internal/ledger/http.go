package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/custodix/custodix/internal/evidence"
)

// HTTPClient talks to a contract bridge service over JSON/HTTP. The bridge
// wraps the smart contract and reports failures with machine-readable codes
// in the response body:
//
//	{"error": "not_found" | "already_exists" | "unauthorized", "message": "..."}
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a bridge client. If client is nil, http.DefaultClient
// is used.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type bridgeError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

type bridgeEvent struct {
	Action           int    `json:"action"`
	Actor            string `json:"actor"`
	Timestamp        int64  `json:"timestamp"`
	TransferTarget   string `json:"transfer_target,omitempty"`
	Notes            string `json:"notes,omitempty"`
	PriorFingerprint string `json:"prior_fingerprint,omitempty"`
	NewFingerprint   string `json:"new_fingerprint,omitempty"`
}

type bridgeAlert struct {
	AlertID     int64  `json:"alert_id"`
	EvidenceID  string `json:"evidence_id"`
	TriggeredBy string `json:"triggered_by"`
	AlertType   int    `json:"alert_type"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
	Resolved    bool   `json:"resolved"`
	ResolvedBy  string `json:"resolved_by,omitempty"`
	ResolvedAt  int64  `json:"resolved_at,omitempty"`
}

// GetEvidence implements Client.
func (c *HTTPClient) GetEvidence(ctx context.Context, evidenceID string) (*evidence.Record, error) {
	var rec evidence.Record
	if err := c.do(ctx, http.MethodGet, "/v1/evidence/"+url.PathEscape(evidenceID), nil, &rec); err != nil {
		return nil, fmt.Errorf("ledger evidence %s: %w", evidenceID, err)
	}
	return &rec, nil
}

// RegisterEvidence implements Client.
func (c *HTTPClient) RegisterEvidence(ctx context.Context, evidenceID, fingerprint, caseID, metadata string) (*Receipt, error) {
	body := map[string]string{
		"evidence_id": evidenceID,
		"fingerprint": fingerprint,
		"case_id":     caseID,
		"metadata":    metadata,
	}
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/evidence", body, &receipt); err != nil {
		return nil, fmt.Errorf("ledger register %s: %w", evidenceID, err)
	}
	return &receipt, nil
}

// GetAuditTrail implements Client. Bridge events carry ledger-native action
// ordinals; unknown ordinals fail the whole read rather than being dropped.
func (c *HTTPClient) GetAuditTrail(ctx context.Context, evidenceID string) ([]evidence.CustodyEvent, error) {
	var native []bridgeEvent
	if err := c.do(ctx, http.MethodGet, "/v1/evidence/"+url.PathEscape(evidenceID)+"/trail", nil, &native); err != nil {
		return nil, fmt.Errorf("ledger trail %s: %w", evidenceID, err)
	}
	events := make([]evidence.CustodyEvent, 0, len(native))
	for _, n := range native {
		action, err := evidence.ActionFromOrdinal(n.Action)
		if err != nil {
			return nil, fmt.Errorf("ledger trail %s: %w", evidenceID, err)
		}
		events = append(events, evidence.CustodyEvent{
			EvidenceID:       evidenceID,
			Action:           action,
			Actor:            n.Actor,
			Timestamp:        n.Timestamp,
			TransferTarget:   n.TransferTarget,
			Notes:            n.Notes,
			PriorFingerprint: n.PriorFingerprint,
			NewFingerprint:   n.NewFingerprint,
		})
	}
	return events, nil
}

// RaiseAlert implements Client.
func (c *HTTPClient) RaiseAlert(ctx context.Context, evidenceID string, alertType evidence.AlertType, message string) (*Receipt, error) {
	body := map[string]any{
		"evidence_id": evidenceID,
		"alert_type":  int(alertType),
		"message":     message,
	}
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/alerts", body, &receipt); err != nil {
		return nil, fmt.Errorf("ledger raise alert for %s: %w", evidenceID, err)
	}
	return &receipt, nil
}

// GetAlert implements Client.
func (c *HTTPClient) GetAlert(ctx context.Context, index int64) (*evidence.Alert, error) {
	var native bridgeAlert
	if err := c.do(ctx, http.MethodGet, "/v1/alerts/"+strconv.FormatInt(index, 10), nil, &native); err != nil {
		return nil, fmt.Errorf("ledger alert %d: %w", index, err)
	}
	alertType, err := evidence.AlertTypeFromOrdinal(native.AlertType)
	if err != nil {
		return nil, fmt.Errorf("ledger alert %d: %w", index, err)
	}
	return &evidence.Alert{
		AlertID:     native.AlertID,
		EvidenceID:  native.EvidenceID,
		TriggeredBy: native.TriggeredBy,
		Type:        alertType,
		Message:     native.Message,
		Timestamp:   native.Timestamp,
		Resolved:    native.Resolved,
		ResolvedBy:  native.ResolvedBy,
		ResolvedAt:  native.ResolvedAt,
	}, nil
}

// TotalAlerts implements Client.
func (c *HTTPClient) TotalAlerts(ctx context.Context) (int64, error) {
	var out struct {
		Total int64 `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/alerts/count", nil, &out); err != nil {
		return 0, fmt.Errorf("ledger alert count: %w", err)
	}
	return out.Total, nil
}

// ResolveAlert implements Client.
func (c *HTTPClient) ResolveAlert(ctx context.Context, alertID int64) error {
	if err := c.do(ctx, http.MethodPost, "/v1/alerts/"+strconv.FormatInt(alertID, 10)+"/resolve", nil, nil); err != nil {
		return fmt.Errorf("ledger resolve alert %d: %w", alertID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", evidence.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", evidence.ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		return c.decodeError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// decodeError maps bridge error codes onto the sentinel taxonomy. The HTTP
// status is a fallback when the body carries no code.
func (c *HTTPClient) decodeError(status int, body []byte) error {
	var be bridgeError
	_ = json.Unmarshal(body, &be)

	switch be.Code {
	case "not_found":
		return fmt.Errorf("%w: %s", evidence.ErrNotFound, be.Message)
	case "already_exists":
		return fmt.Errorf("%w: %s", evidence.ErrAlreadyExists, be.Message)
	case "unauthorized":
		return fmt.Errorf("%w: %s", evidence.ErrUnauthorized, be.Message)
	}

	switch status {
	case http.StatusNotFound:
		return evidence.ErrNotFound
	case http.StatusConflict:
		return evidence.ErrAlreadyExists
	case http.StatusForbidden, http.StatusUnauthorized:
		return evidence.ErrUnauthorized
	}
	return fmt.Errorf("%w: bridge returned status %d", evidence.ErrUnavailable, status)
}
