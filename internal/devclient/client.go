package devclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client drives the development endpoints of a running cash machine.
type Client struct {
	Base string
	HTTP *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

type RegisterReq struct {
	Number     string `json:"number"`
	PIN        int    `json:"pin"`
	AccountID  string `json:"account_id"`
	ExpiryYYMM string `json:"expiry_yymm"`
}

type createAccountReq struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// CreateAccount opens a ledger account and returns its id.
func (c *Client) CreateAccount(ctx context.Context, balance int64, currency string) (string, error) {
	var account struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/accounts", createAccountReq{Balance: balance, Currency: currency}, &account); err != nil {
		return "", fmt.Errorf("create account: %w", err)
	}
	return account.ID, nil
}

func (c *Client) RegisterCard(ctx context.Context, req RegisterReq) error {
	if err := c.post(ctx, "/cards/register", req, nil); err != nil {
		return fmt.Errorf("register card: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
