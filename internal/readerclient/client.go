// Package readerclient talks to the ledger API the way the card reader does.
// It backs the tap command used to simulate the reader on a bench.
package readerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kantinpay/kantin/ledger/models"
)

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

// TapReply is what the ledger answers to a tap.
type TapReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Card    *struct {
		UID     string `json:"uid"`
		Name    string `json:"name"`
		Balance int64  `json:"balance"`
	} `json:"card,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Tap reports a card UID. An unregistered card is not an error: Success is false.
func (c *Client) Tap(ctx context.Context, uid string) (TapReply, error) {
	var reply TapReply
	err := c.post(ctx, "/api/card-tap", models.TapRequest{UID: uid}, &reply)
	return reply, err
}

// Pending returns the kiosk's pending slot.
func (c *Client) Pending(ctx context.Context) (models.Pending, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/api/pending", nil)
	if err != nil {
		return models.Pending{}, err
	}
	var p models.Pending
	if err := c.do(req, &p); err != nil {
		return models.Pending{}, fmt.Errorf("pending: %w", err)
	}
	return p, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, out); err != nil {
		return fmt.Errorf("%s: %w", strings.TrimPrefix(path, "/api/"), err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
