package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"staypay/internal/app/policies"
	domainpayments "staypay/internal/domain/payments"
)

const (
	DefaultBaseURL = "https://api.chapa.co"
	DefaultTimeout = 10 * time.Second

	statusSuccess   = "success"
	maxResponseBody = 1 << 20
)

// Client speaks the Chapa transaction API. Every call is bounded by Timeout and
// a timeout is reported as a network failure.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

type customization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type initializeRequest struct {
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	Email         string        `json:"email,omitempty"`
	FirstName     string        `json:"first_name,omitempty"`
	LastName      string        `json:"last_name,omitempty"`
	TxRef         string        `json:"tx_ref"`
	CallbackURL   string        `json:"callback_url,omitempty"`
	ReturnURL     string        `json:"return_url,omitempty"`
	Customization customization `json:"customization"`
}

// envelope is the common response shape. Message is a string on success and
// may be an object of field errors on validation failures.
type envelope struct {
	Status  *string         `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	CheckoutURL string `json:"checkout_url"`
}

type verifyData struct {
	Status   *string `json:"status"`
	TxRef    string  `json:"tx_ref"`
	Currency string  `json:"currency"`
}

func (c *Client) InitializeTransaction(ctx context.Context, req policies.InitializeRequest) (policies.InitializeResult, error) {
	const op = "initialize"
	payload := initializeRequest{
		Amount:      req.Amount.String(),
		Currency:    req.Amount.Currency,
		Email:       req.Payer.Email,
		FirstName:   req.Payer.FirstName,
		LastName:    req.Payer.LastName,
		TxRef:       string(req.Reference),
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Customization: customization{
			Title:       req.Title,
			Description: req.Description,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return policies.InitializeResult{}, &policies.GatewayError{Kind: policies.GatewayRemoteRejected, Op: op, Message: "encode request", Err: err}
	}

	env, _, err := c.do(ctx, op, http.MethodPost, "/v1/transaction/initialize", body, string(req.Reference))
	if err != nil {
		return policies.InitializeResult{}, err
	}
	var data initializeData
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return policies.InitializeResult{}, malformed(op, "data missing", nil)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return policies.InitializeResult{}, malformed(op, "data", err)
	}
	checkout := strings.TrimSpace(data.CheckoutURL)
	if checkout == "" {
		return policies.InitializeResult{}, malformed(op, "checkout_url missing", nil)
	}
	if _, err := url.ParseRequestURI(checkout); err != nil {
		return policies.InitializeResult{}, malformed(op, "checkout_url", err)
	}
	return policies.InitializeResult{CheckoutURL: checkout}, nil
}

// VerifyTransaction reports data.status when the gateway sends it and falls back
// to the envelope status otherwise.
func (c *Client) VerifyTransaction(ctx context.Context, ref domainpayments.Reference) (policies.VerifyResult, error) {
	const op = "verify"
	if strings.TrimSpace(string(ref)) == "" {
		return policies.VerifyResult{}, &policies.GatewayError{Kind: policies.GatewayRemoteRejected, Op: op, Message: "empty reference"}
	}
	env, raw, err := c.do(ctx, op, http.MethodGet, "/v1/transaction/verify/"+url.PathEscape(string(ref)), nil, string(ref))
	if err != nil {
		return policies.VerifyResult{}, err
	}
	remote := domainpayments.RemoteStatus(strings.ToLower(*env.Status))
	if len(env.Data) > 0 && string(env.Data) != "null" {
		var data verifyData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return policies.VerifyResult{}, malformed(op, "data", err)
		}
		if data.Status != nil {
			remote = domainpayments.RemoteStatus(strings.ToLower(strings.TrimSpace(*data.Status)))
		}
		if data.TxRef != "" && data.TxRef != string(ref) {
			return policies.VerifyResult{}, malformed(op, fmt.Sprintf("tx_ref mismatch: %q", data.TxRef), nil)
		}
	}
	return policies.VerifyResult{RemoteStatus: remote, Raw: raw}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, ref string) (envelope, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return envelope{}, nil, &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		var netErr net.Error
		msg := "gateway unavailable"
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			msg = "gateway timeout"
		}
		gerr := &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Op: op, Message: msg, Err: err}
		c.logCall(op, ref, 0, started, gerr)
		return envelope{}, nil, gerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		gerr := &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Op: op, Message: "read response", Err: err}
		c.logCall(op, ref, resp.StatusCode, started, gerr)
		return envelope{}, nil, gerr
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		gerr := &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Op: op, Message: fmt.Sprintf("gateway returned %d", resp.StatusCode)}
		c.logCall(op, ref, resp.StatusCode, started, gerr)
		return envelope{}, nil, gerr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		gerr := malformed(op, fmt.Sprintf("status %d body", resp.StatusCode), err)
		c.logCall(op, ref, resp.StatusCode, started, gerr)
		return envelope{}, nil, gerr
	}
	if env.Status == nil || strings.TrimSpace(*env.Status) == "" {
		gerr := malformed(op, "status missing", nil)
		c.logCall(op, ref, resp.StatusCode, started, gerr)
		return envelope{}, nil, gerr
	}
	if resp.StatusCode >= http.StatusBadRequest || (op == "initialize" && !strings.EqualFold(*env.Status, statusSuccess)) {
		gerr := &policies.GatewayError{Kind: policies.GatewayRemoteRejected, Op: op, Message: messageText(env.Message)}
		c.logCall(op, ref, resp.StatusCode, started, gerr)
		return envelope{}, nil, gerr
	}
	c.logCall(op, ref, resp.StatusCode, started, nil)
	return env, raw, nil
}

func (c *Client) logCall(op, ref string, status int, started time.Time, err error) {
	if c.Logger == nil {
		return
	}
	if err != nil {
		c.Logger.Warn("chapa call failed", "op", op, "tx_ref", ref, "http_status", status, "duration", time.Since(started), "error", err)
		return
	}
	c.Logger.Info("chapa call", "op", op, "tx_ref", ref, "http_status", status, "duration", time.Since(started))
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func malformed(op, msg string, err error) *policies.GatewayError {
	return &policies.GatewayError{Kind: policies.GatewayMalformedResponse, Op: op, Message: msg, Err: err}
}

func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

var _ policies.PaymentGateway = (*Client)(nil)
