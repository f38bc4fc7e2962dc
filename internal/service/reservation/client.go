package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhouzirui/hotel-checkin/backend/internal/model/reservation"
)

var (
	// ErrNoAccount 身份无法解析到预订系统中的账号
	ErrNoAccount = errors.New("no account for identity")
)

// Client calls the external reservation system. The core never persists
// reservation data; responses are only held for the lifetime of one
// orchestration.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a reservation API client. token is attached as a bearer
// credential when non-empty.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// LookupByEmail fetches the reservation list for a recognized guest.
// A 404 from the upstream means the identity has no resolvable account.
func (c *Client) LookupByEmail(ctx context.Context, email string) ([]reservation.Reservation, error) {
	if email == "" {
		return nil, ErrNoAccount
	}

	endpoint := c.baseURL + "/api/reservations/guest/" + url.PathEscape(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request failed: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reservation lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoAccount
	default:
		return nil, fmt.Errorf("reservation lookup returned %d: %s", resp.StatusCode, readMessage(resp))
	}

	var list []reservation.Reservation
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode reservation list failed: %w", err)
	}
	return list, nil
}

// CheckIn submits a check-in for the reservation on behalf of the guest.
func (c *Client) CheckIn(ctx context.Context, reservationID, email string) error {
	return c.submit(ctx, "/api/reservations/checkin", reservationID, email)
}

// CheckOut submits a check-out for the reservation on behalf of the guest.
func (c *Client) CheckOut(ctx context.Context, reservationID, email string) error {
	return c.submit(ctx, "/api/reservations/checkout", reservationID, email)
}

func (c *Client) submit(ctx context.Context, path, reservationID, email string) error {
	payload, err := json.Marshal(map[string]string{
		"reservation_id": reservationID,
		"email":          email,
	})
	if err != nil {
		return fmt.Errorf("encode request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reservation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("reservation system rejected the request: %s", readMessage(resp))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// readMessage extracts the upstream failure message, falling back to the
// HTTP status text.
func readMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		return body.Message
	}
	return http.StatusText(resp.StatusCode)
}
