package openpix

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

	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.openpix.com.br"
	chargePath                  = "api/v1/charge"
	responseBodyReadLimit int64 = 1024

	SplitTypePartner = "SPLIT_PARTNER"
)

var errAppIDRequired = errors.New("openpix app id is required")

// Client wraps the OpenPix charge API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
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

// WithBaseURL overrides the OpenPix API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the OpenPix client given the platform AppID.
func NewClient(appID string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(appID)
	if trimmed == "" {
		return nil, errAppIDRequired
	}

	client := &Client{
		appID:      trimmed,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Split routes part of a charge to a partner PIX key.
type Split struct {
	PixKey    string `json:"pixKey"`
	Value     int64  `json:"value"`
	SplitType string `json:"splitType"`
}

// ChargeRequest is the payload of POST /api/v1/charge. Values are in cents.
type ChargeRequest struct {
	CorrelationID string  `json:"correlationID"`
	Value         int64   `json:"value"`
	Comment       string  `json:"comment,omitempty"`
	ExpiresIn     int64   `json:"expiresIn,omitempty"`
	Splits        []Split `json:"splits,omitempty"`
}

// Charge is the charge object returned by OpenPix.
type Charge struct {
	Status         string `json:"status"`
	Value          int64  `json:"value"`
	CorrelationID  string `json:"correlationID"`
	TransactionID  string `json:"transactionID"`
	BRCode         string `json:"brCode"`
	QRCodeImage    string `json:"qrCodeImage"`
	PaymentLinkURL string `json:"paymentLinkUrl"`
	GlobalID       string `json:"globalID"`
	ExpiresDate    string `json:"expiresDate"`
}

// ExpiresAt parses ExpiresDate, returning nil when absent or malformed.
func (c Charge) ExpiresAt() *time.Time {
	if strings.TrimSpace(c.ExpiresDate) == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, c.ExpiresDate)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

type chargeEnvelope struct {
	Charge Charge `json:"charge"`
}

// CreateCharge creates a PIX charge and returns the provider's view of it.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, json.RawMessage, error) {
	if strings.TrimSpace(req.CorrelationID) == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "correlation id is required")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal openpix charge")
	}
	return c.doCharge(ctx, http.MethodPost, c.buildURL(chargePath), payload, "create charge")
}

// GetCharge fetches a charge by correlation id or global id.
func (c *Client) GetCharge(ctx context.Context, id string) (*Charge, json.RawMessage, error) {
	return c.doCharge(ctx, http.MethodGet, c.chargeURL(id), nil, "get charge")
}

// DeleteCharge removes an ACTIVE charge so it can no longer be paid.
func (c *Client) DeleteCharge(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.chargeURL(id), nil, "delete charge")
	return err
}

func (c *Client) doCharge(ctx context.Context, method, target string, payload []byte, op string) (*Charge, json.RawMessage, error) {
	body, err := c.do(ctx, method, target, payload, op)
	if err != nil {
		return nil, nil, err
	}
	var envelope chargeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode openpix "+op+" response")
	}
	return &envelope.Charge, body, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, op string) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "openpix client not configured")
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build openpix "+op+" request")
	}
	httpReq.Header.Set("Authorization", c.appID)
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute openpix "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"openpix "+op+" failed",
		).WithDetails(map[string]any{"provider_status": resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read openpix "+op+" response")
	}
	return body, nil
}

func (c *Client) chargeURL(id string) string {
	return c.buildURL(chargePath + "/" + url.PathEscape(strings.TrimSpace(id)))
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
