package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

const (
	paypalSandboxURL = "https://api-m.sandbox.paypal.com"
	paypalLiveURL    = "https://api-m.paypal.com"
)

// PayPalClient uses the PayPal REST v1 payments API (create → approve → execute).
type PayPalClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	logger       *logging.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient returns nil when credentials are missing.
func NewPayPalClient(clientID, clientSecret, mode string, logger *logging.Logger) *PayPalClient {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := paypalSandboxURL
	if strings.EqualFold(mode, "live") {
		baseURL = paypalLiveURL
	}
	return &PayPalClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
	}
}

// WithBaseURL overrides the API host (tests point it at httptest).
func (c *PayPalClient) WithBaseURL(baseURL string) *PayPalClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: token request build: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("paypal: token status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("paypal: token decode: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("paypal: empty access token")
	}

	c.accessToken = payload.AccessToken
	// Обновляем токен за минуту до истечения.
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (c *PayPalClient) do(ctx context.Context, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("paypal: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("paypal: request build: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var pe paypalError
		_ = json.NewDecoder(resp.Body).Decode(&pe)
		return fmt.Errorf("paypal: status %d: %s %s", resp.StatusCode, pe.Name, pe.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal: decode: %w", err)
	}
	return nil
}

func (c *PayPalClient) CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: paypal client not configured", calendar.ErrExternalRail)
	}

	body := map[string]any{
		"intent": "sale",
		"payer":  map[string]any{"payment_method": "paypal"},
		"redirect_urls": map[string]any{
			"return_url": req.ReturnURL,
			"cancel_url": req.CancelURL,
		},
		"transactions": []map[string]any{{
			"amount": map[string]any{
				"total":    calendar.FormatCents(req.AmountCents),
				"currency": req.Currency,
			},
			"description": req.Description,
			"custom":      req.BookingID.String(),
		}},
	}

	var resp struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := c.do(ctx, "/v1/payments/payment", body, &resp); err != nil {
		c.logger.Error("paypal create payment failed", "error", err, "booking_id", req.BookingID)
		return nil, fmt.Errorf("%w: %v", calendar.ErrExternalRail, err)
	}

	p := &Payment{ID: resp.ID}
	for _, l := range resp.Links {
		if l.Rel == "approval_url" {
			p.ApprovalURL = l.Href
		}
	}
	if p.ID == "" || p.ApprovalURL == "" {
		return nil, fmt.Errorf("%w: paypal response missing id or approval_url", calendar.ErrExternalRail)
	}

	c.logger.Info("paypal payment created", "payment_id", p.ID, "booking_id", req.BookingID)
	return p, nil
}

func (c *PayPalClient) ExecutePayment(ctx context.Context, paymentID, payerID string) error {
	if c == nil {
		return fmt.Errorf("%w: paypal client not configured", calendar.ErrExternalRail)
	}

	var resp struct {
		State string `json:"state"`
	}
	path := "/v1/payments/payment/" + url.PathEscape(paymentID) + "/execute"
	if err := c.do(ctx, path, map[string]string{"payer_id": payerID}, &resp); err != nil {
		c.logger.Error("paypal execute payment failed", "error", err, "payment_id", paymentID)
		return fmt.Errorf("%w: %v", calendar.ErrExternalRail, err)
	}
	if resp.State != "approved" {
		return fmt.Errorf("%w: paypal payment %s state %q", calendar.ErrExternalRail, paymentID, resp.State)
	}

	c.logger.Info("paypal payment executed", "payment_id", paymentID)
	return nil
}

var _ Rail = (*PayPalClient)(nil)
