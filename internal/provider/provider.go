// Package provider wraps the external money-movement provider's transfer
// API. The engine treats the boundary as "at-most-once creation,
// at-least-once notification": a creation call either returns a transfer id
// or fails without side effects, and state notifications may arrive late,
// duplicated, or out of order.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Transfer states reported by the provider, via webhook or polling.
// Unknown states are tolerated and treated as still processing.
const (
	StateProcessing          = "processing"
	StateOutgoingPaymentSent = "outgoing_payment_sent"
	StateFundsRefunded       = "funds_refunded"
	StateBouncedBack         = "bounced_back"
	StateCancelled           = "cancelled"
)

// Disposition classifies a provider state for the settlement state machine.
type Disposition int

const (
	// DispositionPending means the transfer is still in flight.
	DispositionPending Disposition = iota
	// DispositionSucceeded means funds reached the recipient.
	DispositionSucceeded
	// DispositionFailed means the transfer terminally failed.
	DispositionFailed
	// DispositionCancelled means the transfer was cancelled provider-side
	// before funds moved.
	DispositionCancelled
)

// Classify maps a provider state string onto a disposition. Unknown states
// classify as pending; reconciliation will keep polling them.
func Classify(state string) Disposition {
	switch state {
	case StateOutgoingPaymentSent:
		return DispositionSucceeded
	case StateFundsRefunded, StateBouncedBack:
		return DispositionFailed
	case StateCancelled:
		return DispositionCancelled
	default:
		return DispositionPending
	}
}

// CreateTransferRequest is the outbound transfer creation payload.
type CreateTransferRequest struct {
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	RecipientID string `json:"recipientId"`
	// Reference is the caller-supplied idempotency reference; resubmitting
	// the same reference must not create a second transfer.
	Reference string `json:"reference"`
}

// Transfer is the provider's view of a money movement.
type Transfer struct {
	ID           string `json:"id"`
	CurrentState string `json:"current_state"`
}

// WebhookEvent is the inbound notification payload. Unknown event types are
// ignored and logged, never errors.
type WebhookEvent struct {
	EventType    string `json:"event_type"`
	ResourceID   string `json:"resource_id"`
	CurrentState string `json:"current_state"`
}

// EventTypeTransferStateChange is the only event type the engine acts on.
const EventTypeTransferStateChange = "transfers#state-change"

// Client is the provider operations the engine depends on. The HTTP client
// satisfies it in production; tests substitute a fake.
type Client interface {
	CreateTransfer(ctx context.Context, req CreateTransferRequest) (Transfer, error)
	GetTransfer(ctx context.Context, transferID string) (Transfer, error)
}

// HTTPClient calls the provider's REST API with bounded request timeouts and
// a small number of immediate retries for network-level failures only.
// Business-logic failures (4xx) are never retried.
type HTTPClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	maxRetries uint64
}

// NewHTTPClient creates a provider client. timeout bounds each individual
// request; longer-horizon convergence is the reconciliation scheduler's job.
func NewHTTPClient(baseURL, apiToken string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 2,
	}
}

// apiError is a non-2xx provider response. It is permanent from the retry
// loop's point of view.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.status, e.body)
}

// IsPermanent reports whether err is a provider business failure rather than
// a transport failure.
func IsPermanent(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr)
}

// CreateTransfer asks the provider to create a transfer. On success the
// returned transfer id is the key all later notifications use.
func (c *HTTPClient) CreateTransfer(ctx context.Context, req CreateTransferRequest) (Transfer, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Transfer{}, fmt.Errorf("failed to encode transfer request: %w", err)
	}

	var transfer Transfer
	err = c.doWithRetry(ctx, func(ctx context.Context) error {
		return c.call(ctx, http.MethodPost, "/v1/transfers", bytes.NewReader(payload), &transfer)
	})
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

// GetTransfer fetches the current state of a transfer, used by the
// reconciliation path when webhooks were missed.
func (c *HTTPClient) GetTransfer(ctx context.Context, transferID string) (Transfer, error) {
	var transfer Transfer
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		return c.call(ctx, http.MethodGet, "/v1/transfers/"+transferID, nil, &transfer)
	})
	if err != nil {
		return Transfer{}, err
	}
	return transfer, nil
}

// doWithRetry retries f immediately (constant short backoff) for network
// errors only. API errors pass through unretried.
func (c *HTTPClient) doWithRetry(ctx context.Context, f func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewConstant(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := f(ctx)
		if err == nil {
			return nil
		}
		if isNetworkError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{status: resp.StatusCode, body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}
