package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/realtravo/realtravo-sub000/internal/config"
)

var (
	ErrUnavailable = errors.New("mpesa gateway unavailable")
	ErrRateLimited = errors.New("mpesa gateway rate limited")
)

// Client talks to the Daraja API. Tokens are cached until shortly before
// expiry; Daraja tokens last one hour.
type Client struct {
	cfg  config.MpesaConfig
	http *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.MpesaConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrUnavailable, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnavailable)
	}

	c.token = body.AccessToken
	c.tokenExpiry = time.Now().Add(50 * time.Minute)
	return c.token, nil
}

// STKPush initiates a PIN prompt on the payer's phone. Confirmation arrives
// later on the callback URL.
func (c *Client) STKPush(ctx context.Context, in STKPushRequest) (STKPushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return STKPushResponse{}, err
	}

	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))

	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount,
		"PartyA":            in.Phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  in.AccountReference,
		"TransactionDesc":   in.Description,
	}

	var out STKPushResponse
	if err := c.post(ctx, token, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return STKPushResponse{}, err
	}
	if out.ResponseCode != "0" {
		return STKPushResponse{}, fmt.Errorf("%w: stk push rejected: %s", ErrUnavailable, out.ResponseDescription)
	}
	return out, nil
}

// STKQuery asks Daraja for the outcome of a push. This is a paid, rate-limited
// endpoint; callers must back off on ErrRateLimited.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (STKQueryResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return STKQueryResponse{}, err
	}

	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))

	payload := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}

	var out STKQueryResponse
	if err := c.post(ctx, token, "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		return STKQueryResponse{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, token, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		// Daraja wraps request errors in an errorMessage envelope.
		var e struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		_ = json.Unmarshal(body, &e)
		if strings.Contains(strings.ToLower(e.ErrorMessage), "spike arrest") {
			return ErrRateLimited
		}
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, e.ErrorMessage)
	}

	return json.Unmarshal(body, out)
}

// NormalizePhone converts 07XX/+2547XX/7XX forms to 2547XXXXXXXX.
func NormalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	p = strings.ReplaceAll(p, " ", "")
	switch {
	case strings.HasPrefix(p, "254"):
		return p
	case strings.HasPrefix(p, "0"):
		return "254" + p[1:]
	case strings.HasPrefix(p, "7") || strings.HasPrefix(p, "1"):
		return "254" + p
	}
	return p
}
