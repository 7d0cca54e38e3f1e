package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/khakanhyder/schedule-pro-web-app-sub005/pkg/logging"
)

var paymentsTracer = otel.Tracer("schedulepro.internal.payments")

// Intent is the provider's payment intent handle. ClientSecret is handed to
// the external card SDK; PaymentIntentID is the support reference.
type Intent struct {
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// IntentRequest is the payment-intent creation payload.
type IntentRequest struct {
	ServiceID     string  `json:"serviceId"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerName  string  `json:"customerName"`
	TipPercentage float64 `json:"tipPercentage"`
}

// IntentCreator creates payment intents. Satisfied by IntentClient and by
// test stubs.
type IntentCreator interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// IntentClient talks to the payment-intent creation endpoint. No charge
// occurs at intent creation, so a failed call is always safe to retry.
type IntentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewIntentClient creates a client against the payments API.
func NewIntentClient(baseURL string, logger *logging.Logger) *IntentClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &IntentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (c *IntentClient) WithBaseURL(baseURL string) *IntentClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *IntentClient) WithHTTPClient(hc *http.Client) *IntentClient {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// CreateIntent posts the intent request and parses the provider handle.
func (c *IntentClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_intent")
	defer span.End()
	span.SetAttributes(attribute.String("schedulepro.service_id", req.ServiceID))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payments: encode intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/create-payment-intent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payments: build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("payment intent creation failed",
			"status", resp.StatusCode,
			"body", string(raw),
		)
		return nil, fmt.Errorf("payments: create intent: unexpected status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("payments: decode intent response: %w", err)
	}
	if intent.ClientSecret == "" || intent.PaymentIntentID == "" {
		return nil, fmt.Errorf("payments: intent response missing client secret or id")
	}

	c.logger.Info("payment intent created",
		"payment_intent_id", intent.PaymentIntentID,
		"amount", intent.Amount,
	)
	return &intent, nil
}
