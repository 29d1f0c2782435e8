package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/uniedit/checkout/internal/domain/payment"
)

// HTTP asks a remote authorization service for each decision.
type HTTP struct {
	endpoint string
	client   *http.Client
}

// NewHTTP creates a gateway posting to endpoint.
func NewHTTP(endpoint string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{endpoint: endpoint, client: client}
}

// Name returns the gateway name.
func (g *HTTP) Name() string {
	return "http"
}

// Authorize posts the request as JSON and decodes the decision. Any non-2xx
// status is an error.
func (g *HTTP) Authorize(ctx context.Context, req payment.AuthorizationRequest) (*payment.Authorization, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode authorization request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build authorization request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.TransactionID.String())

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("authorization request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("authorization service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var auth payment.Authorization
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("decode authorization: %w", err)
	}
	return &auth, nil
}
