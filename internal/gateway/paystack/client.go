package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrUnavailable = errors.New("paystack gateway unavailable")
	ErrRateLimited = errors.New("paystack gateway rate limited")
)

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secretKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// InitializeTransaction obtains an access code for the inline popup. Amount is
// in minor units (kobo/cents).
func (c *Client) InitializeTransaction(ctx context.Context, in InitializeRequest) (InitializeData, error) {
	var out struct {
		envelope
		Data InitializeData `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", in, &out); err != nil {
		return InitializeData{}, err
	}
	if !out.Status {
		return InitializeData{}, fmt.Errorf("%w: initialize: %s", ErrUnavailable, out.Message)
	}
	return out.Data, nil
}

// VerifyTransaction re-queries the charge outcome server-side. Client-reported
// success is advisory only; this is the source of truth.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (VerifyData, error) {
	var out struct {
		envelope
		Data VerifyData `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return VerifyData{}, err
	}
	if !out.Status {
		return VerifyData{}, fmt.Errorf("%w: verify: %s", ErrUnavailable, out.Message)
	}
	return out.Data, nil
}

func (c *Client) CreateTransferRecipient(ctx context.Context, in RecipientRequest) (RecipientData, error) {
	var out struct {
		envelope
		Data RecipientData `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", in, &out); err != nil {
		return RecipientData{}, err
	}
	if !out.Status {
		return RecipientData{}, fmt.Errorf("%w: transferrecipient: %s", ErrUnavailable, out.Message)
	}
	return out.Data, nil
}

func (c *Client) InitiateTransfer(ctx context.Context, in TransferRequest) (TransferData, error) {
	if in.Source == "" {
		in.Source = "balance"
	}
	var out struct {
		envelope
		Data TransferData `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/transfer", in, &out); err != nil {
		return TransferData{}, err
	}
	if !out.Status {
		return TransferData{}, fmt.Errorf("%w: transfer: %s", ErrUnavailable, out.Message)
	}
	return out.Data, nil
}

// FetchTransfer looks up a transfer by code, used by the reconciliation sweep
// for payouts stuck in processing.
func (c *Client) FetchTransfer(ctx context.Context, transferCode string) (TransferData, error) {
	var out struct {
		envelope
		Data TransferData `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/transfer/"+transferCode, nil, &out); err != nil {
		return TransferData{}, err
	}
	if !out.Status {
		return TransferData{}, fmt.Errorf("%w: fetch transfer: %s", ErrUnavailable, out.Message)
	}
	return out.Data, nil
}

// VerifySignature checks the x-paystack-signature header: hex HMAC-SHA512 of
// the raw body under the secret key.
func (c *Client) VerifySignature(signature string, body []byte) bool {
	return VerifySignature(c.secret, signature, body)
}

func VerifySignature(secret, signature string, body []byte) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Signature computes the webhook signature, used by the mock callback tool.
func Signature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
