// Package payment wraps the external payment gateway.  The gateway is a
// collaborator outside the booking core's transaction boundary: the
// coordinator charges before opening its finalize transaction and
// refunds on a best-effort basis, so this package only needs a thin
// JSON-over-HTTP client and a typed decline.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrDeclined is returned when the gateway rejects a charge.  A decline
// is an expected outcome, not an internal failure: the reservation stays
// PENDING and the customer may retry until the hold TTL elapses.
var ErrDeclined = errors.New("payment declined")

// ChargeResult is the gateway's answer to a successful charge.
type ChargeResult struct {
	TransactionID string    `json:"transaction_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// RefundResult is the gateway's answer to a successful refund.
type RefundResult struct {
	TransactionID string `json:"transaction_id"`
}

// Gateway is the collaborator contract the coordinator charges and
// refunds through.  Implementations must treat declines as ErrDeclined
// and reserve plain errors for transport or gateway failures.
type Gateway interface {
	Charge(ctx context.Context, amountCents uint32, method, instrument string) (*ChargeResult, error)
	Refund(ctx context.Context, transactionID string) (*RefundResult, error)
}

// HTTPGateway talks to the gateway over JSON HTTP.  The base URL comes
// from configuration; requests inherit the caller's context so a
// cancelled booking request does not leave a charge in flight longer
// than necessary.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway returns an HTTPGateway for the given base URL.
func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Charge posts a charge request.  HTTP 402 from the gateway maps to
// ErrDeclined; any other non-200 status is an internal failure.
func (g *HTTPGateway) Charge(ctx context.Context, amountCents uint32, method, instrument string) (*ChargeResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount_cents": amountCents,
		"method":       method,
		"instrument":   instrument,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusPaymentRequired {
		return nil, ErrDeclined
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway: charge returned status %d", resp.StatusCode)
	}
	var result ChargeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Refund posts a refund request for a prior charge.
func (g *HTTPGateway) Refund(ctx context.Context, transactionID string) (*RefundResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"transaction_id": transactionID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway: refund returned status %d", resp.StatusCode)
	}
	var result RefundResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
