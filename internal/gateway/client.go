// Package gateway is the HTTP client for the backend's order and payment endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/auth"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/metrics"
)

const (
	createOrderPath         = "/paypal/create-order"
	captureOrderPath        = "/paypal/capture-order"
	statusPathFormat        = "/orders/%s/status"
	defaultTimeout          = 15 * time.Second
	responseBodyLimit int64 = 1 << 20
	errorBodyLogLimit       = 512

	opCreateOrder  = "create_order"
	opCaptureOrder = "capture_order"
	opGetStatus    = "get_status"
)

const idempotencyKeyHeader = "Idempotency-Key"

var errBaseURLRequired = errors.New("backend base url is required")

type idempotencyKeyCtx struct{}

// WithIdempotencyKey makes CreateOrder send key as its Idempotency-Key. One
// checkout attempt uses one key, so a replayed create opens at most one order.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func idempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// Client talks to the backend that fronts the payment provider.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	credentials auth.CredentialSource
	logger      *logger.Logger
	metrics     *metrics.CheckoutMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCredentials sets where the bearer credential comes from.
func WithCredentials(source auth.CredentialSource) Option {
	return func(c *Client) {
		if source != nil {
			c.credentials = source
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logger = logg
	}
}

func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}

	client := &Client{
		baseURL:     trimmed,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		credentials: auth.ContextSource{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type createOrderRequest struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
	ID      string `json:"id"`
}

// CreateOrder asks the backend to open a provider order for money.
func (c *Client) CreateOrder(ctx context.Context, money payment.Money) (string, error) {
	if err := money.Validate(); err != nil {
		return "", err
	}
	body, err := c.do(ctx, opCreateOrder, http.MethodPost, createOrderPath, createOrderRequest{
		Value:    money.String(),
		Currency: money.Currency.String(),
	})
	if err != nil {
		return "", err
	}

	var resp createOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", rejectedError(opCreateOrder, http.StatusOK, nil, fmt.Errorf("decode response: %w", err))
	}
	orderID := strings.TrimSpace(resp.OrderID)
	if orderID == "" {
		orderID = strings.TrimSpace(resp.ID)
	}
	if orderID == "" {
		return "", rejectedError(opCreateOrder, http.StatusOK, nil, errors.New("response carried no order id"))
	}
	return orderID, nil
}

// CaptureResult is the backend's answer to a capture. Raw is opaque beyond status.
type CaptureResult struct {
	Status    enums.OrderStatus
	RawStatus string
	Raw       json.RawMessage
}

type captureOrderRequest struct {
	OrderID string `json:"orderId"`
}

// CaptureOrder forwards one approval to the backend. The backend owns
// idempotency, so callers must invoke it once per approval event.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	body, err := c.do(ctx, opCaptureOrder, http.MethodPost, captureOrderPath, captureOrderRequest{OrderID: orderID})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status string          `json:"status"`
		Raw    json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rejectedError(opCaptureOrder, http.StatusOK, nil, fmt.Errorf("decode response: %w", err))
	}
	rawStatus := resp.Status
	if rawStatus == "" && len(resp.Raw) > 0 {
		var nested struct {
			Status string `json:"status"`
		}
		if json.Unmarshal(resp.Raw, &nested) == nil {
			rawStatus = nested.Status
		}
	}
	return &CaptureResult{
		Status:    normalizeStatus(rawStatus),
		RawStatus: rawStatus,
		Raw:       json.RawMessage(body),
	}, nil
}

// StatusResponse is a read-only snapshot of an order.
type StatusResponse struct {
	OrderID   string
	Status    enums.OrderStatus
	RawStatus string
	Amount    *decimal.Decimal
	Currency  string
	Timestamp *time.Time
}

type statusResponse struct {
	OrderID   string           `json:"orderId"`
	Status    string           `json:"status"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	Timestamp json.RawMessage  `json:"timestamp,omitempty"`
}

// GetStatus fetches the current order status. It has no side effects.
func (c *Client) GetStatus(ctx context.Context, orderID string) (*StatusResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	path := fmt.Sprintf(statusPathFormat, url.PathEscape(orderID))
	body, err := c.do(ctx, opGetStatus, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rejectedError(opGetStatus, http.StatusOK, nil, fmt.Errorf("decode response: %w", err))
	}
	if resp.OrderID == "" {
		resp.OrderID = orderID
	}
	return &StatusResponse{
		OrderID:   resp.OrderID,
		Status:    normalizeStatus(resp.Status),
		RawStatus: resp.Status,
		Amount:    resp.Amount,
		Currency:  resp.Currency,
		Timestamp: parseTimestamp(resp.Timestamp),
	}, nil
}

// parseTimestamp accepts RFC 3339 strings and epoch milliseconds. Anything
// else is dropped; the timestamp is informational.
func parseTimestamp(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return &ts
		}
		return nil
	}
	var millis int64
	if json.Unmarshal(raw, &millis) == nil && millis > 0 {
		ts := time.UnixMilli(millis).UTC()
		return &ts
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, networkError(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if op == opCreateOrder {
		if key := idempotencyKeyFrom(ctx); key != "" {
			req.Header.Set(idempotencyKeyHeader, key)
		}
	}
	c.authorize(ctx, req)

	c.log(ctx, "request", op, map[string]any{"method": method, "path": path})
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "network_error", start)
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return nil, networkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		c.observe(op, "network_error", start)
		c.log(ctx, "error", op, map[string]any{"error": err.Error(), "status": resp.StatusCode})
		return nil, networkError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.observe(op, "rejected", start)
		gwErr := rejectedError(op, resp.StatusCode, body, errors.New(http.StatusText(resp.StatusCode)))
		c.log(ctx, "error", op, map[string]any{
			"error":         gwErr.Error(),
			"status":        resp.StatusCode,
			"provider_code": gwErr.ProviderCode,
			"body":          truncate(redactBody(body), errorBodyLogLimit),
		})
		return nil, gwErr
	}

	c.observe(op, "ok", start)
	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode, "duration_ms": time.Since(start).Milliseconds()})
	return body, nil
}

// authorize attaches the session credential when one exists. A failing
// credential source is treated as no credential.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.credentials == nil {
		return
	}
	token, err := c.credentials.BearerToken(ctx)
	if err != nil {
		c.log(ctx, "warn", "credentials", map[string]any{"error": err.Error()})
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) observe(op, result string, start time.Time) {
	c.metrics.ObserveGateway(op, result, time.Since(start))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, "gateway."+op, errors.New(fmt.Sprint(fields["error"])))
	case "warn":
		c.logger.Warn(ctx, "gateway."+op)
	default:
		c.logger.Debug(ctx, "gateway."+phase)
	}
}

var sensitiveKeys = []string{"token", "authorization", "secret", "email", "phone", "payer", "card", "address", "name"}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

// redactBody masks sensitive top-level keys of a JSON error body before it is logged.
func redactBody(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "[unparsed body]"
	}
	for k, v := range fields {
		fields[k] = redact(k, v)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return "[unparsed body]"
	}
	return string(out)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
