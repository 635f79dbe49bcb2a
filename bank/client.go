package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	atmmodels "github.com/alovak/atm-playground/atm/models"
	"github.com/sony/gobreaker"
)

// Client talks to a remote ledger over its HTTP API. Start and charge go
// through a circuit breaker; commit and abort always reach the ledger so a
// started transaction can be terminated.
type Client struct {
	Base    string
	HTTP    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		Base: strings.TrimRight(base, "/"),
		HTTP: hc,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "bank-ledger",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// business rejections say nothing about ledger health
			IsSuccessful: func(err error) bool {
				var se *statusError
				return err == nil || (errors.As(err, &se) && se.status < http.StatusInternalServerError)
			},
		}),
	}
}

// statusError is a non 2xx answer from the ledger.
type statusError struct {
	status int
	body   errorResponse
	err    error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger status=%d: %s", e.status, strings.TrimSpace(e.body.Error))
}

func (e *statusError) Unwrap() error { return e.err }

var codeErrors = func() map[string]error {
	m := make(map[string]error, len(errorCodes))
	for _, ec := range errorCodes {
		m[ec.code] = ec.err
	}
	return m
}()

func (c *Client) StartTransaction(ctx context.Context, token atmmodels.AuthenticationToken) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, token, "start", nil)
	})
	return err
}

func (c *Client) Charge(ctx context.Context, token atmmodels.AuthenticationToken, money atmmodels.Money) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, token, "charge", money)
	})
	return err
}

func (c *Client) Commit(ctx context.Context, token atmmodels.AuthenticationToken) error {
	return c.post(ctx, token, "commit", nil)
}

func (c *Client) Abort(ctx context.Context, token atmmodels.AuthenticationToken) error {
	return c.post(ctx, token, "abort", nil)
}

func (c *Client) post(ctx context.Context, token atmmodels.AuthenticationToken, op string, payload any) error {
	target := fmt.Sprintf("%s/transactions/%s/%s/%s", c.Base, url.PathEscape(token.UserID), strconv.Itoa(token.AuthorizationCode), op)

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	se := &statusError{status: resp.StatusCode}
	b, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(b, &se.body) != nil {
		se.body.Error = string(b)
	}
	se.err = codeErrors[se.body.Code]
	return fmt.Errorf("%s: %w", op, se)
}
