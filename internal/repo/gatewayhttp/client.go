package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client talks to the mobile-money gateway.
type Client struct {
	baseURL     string
	apiKey      string
	accountID   string
	callbackURL string
	httpClient  *http.Client
}

type RequestError struct {
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	default:
		return e.Op
	}
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type Options struct {
	BaseURL     string
	APIKey      string
	AccountID   string
	CallbackURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

func NewClient(opts Options) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(opts.BaseURL)
	if trimmedBaseURL == "" {
		return nil, &RequestError{
			Op:  "create gateway client",
			Err: errors.New("gateway base url is empty"),
		}
	}

	parsed, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, &RequestError{Op: "parse gateway url", Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &RequestError{
			Op:  "validate gateway url",
			Err: fmt.Errorf("invalid gateway url: %s", trimmedBaseURL),
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(trimmedBaseURL, "/"),
		apiKey:      strings.TrimSpace(opts.APIKey),
		accountID:   strings.TrimSpace(opts.AccountID),
		callbackURL: strings.TrimSpace(opts.CallbackURL),
		httpClient:  httpClient,
	}, nil
}

// IsRetryable reports whether a failed call may be repeated.
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Retryable
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

type InitiateRequest struct {
	Phone       string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

type InitiateResult struct {
	CheckoutID string
	MerchantID string
	Message    string
}

type initiatePayload struct {
	AccountID   string      `json:"account_id"`
	Phone       string      `json:"phone"`
	Amount      json.Number `json:"amount"`
	Reference   string      `json:"reference"`
	Description string      `json:"description"`
	CallbackURL string      `json:"callback_url"`
}

type initiateResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
	Message           string `json:"message"`
}

// Initiate asks the gateway to push a charge prompt to the payer's phone.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	var resp initiateResponse
	err := c.doJSON(ctx, "/payments/initiate", initiatePayload{
		AccountID:   c.accountID,
		Phone:       req.Phone,
		Amount:      json.Number(req.Amount.String()),
		Reference:   req.Reference,
		Description: req.Description,
		CallbackURL: c.callbackURL,
	}, &resp)
	if err != nil {
		return InitiateResult{}, err
	}

	if !resp.Success || strings.TrimSpace(resp.CheckoutRequestID) == "" {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = "gateway rejected initiation"
		}
		return InitiateResult{}, &RequestError{
			Op:  "initiate payment",
			Err: errors.New(msg),
		}
	}

	return InitiateResult{
		CheckoutID: resp.CheckoutRequestID,
		MerchantID: resp.MerchantRequestID,
		Message:    resp.Message,
	}, nil
}

type StatusResult struct {
	Status          string
	TransactionCode string
}

type statusPayload struct {
	CheckoutRequestID string `json:"checkout_request_id"`
}

type statusResponse struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	TransactionCode string `json:"transaction_code"`
}

// Status queries the current state of a checkout.
func (c *Client) Status(ctx context.Context, checkoutID string) (StatusResult, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return StatusResult{}, &RequestError{
			Op:  "query payment status",
			Err: errors.New("checkout id is required"),
		}
	}

	var resp statusResponse
	if err := c.doJSON(ctx, "/payments/status", statusPayload{CheckoutRequestID: checkoutID}, &resp); err != nil {
		return StatusResult{}, err
	}
	if !resp.Success {
		return StatusResult{}, &RequestError{
			Op:        "query payment status",
			Retryable: true,
			Err:       errors.New("gateway reported unsuccessful status query"),
		}
	}

	return StatusResult{
		Status:          resp.Status,
		TransactionCode: resp.TransactionCode,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, path string, requestBody any, responseBody any) error {
	if c == nil || c.httpClient == nil {
		return &RequestError{
			Op:  "do json request",
			Err: errors.New("gateway client is not initialized"),
		}
	}

	payload, err := json.Marshal(requestBody)
	if err != nil {
		return &RequestError{Op: "marshal request body", Err: err}
	}

	statusCode, responseBytes, err := c.do(ctx, path, payload)
	if err != nil {
		return err
	}
	if len(responseBytes) == 0 {
		return &RequestError{
			Op:         "decode http response",
			StatusCode: statusCode,
			Err:        errors.New("empty response body"),
		}
	}

	if err := json.Unmarshal(responseBytes, responseBody); err != nil {
		return &RequestError{
			Op:         "decode http response",
			StatusCode: statusCode,
			Err:        err,
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, &RequestError{Op: "create http request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &RequestError{
			Op:        "execute http request",
			Retryable: isRetryableNetworkError(err),
			Err:       err,
		}
	}
	defer resp.Body.Close()

	responseBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if readErr != nil {
		return resp.StatusCode, nil, &RequestError{
			Op:         "read http response",
			StatusCode: resp.StatusCode,
			Retryable:  true,
			Err:        readErr,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := strings.TrimSpace(string(responseBytes))
		if errMessage == "" {
			errMessage = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, responseBytes, &RequestError{
			Op:         "unexpected http status",
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Err:        errors.New(errMessage),
		}
	}

	return resp.StatusCode, responseBytes, nil
}

func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
