// Package submit posts export envelopes to the remote collection endpoint
// (a spreadsheet-backed web app that files submissions per student).
// Gathering happens before submission, so a failed request leaves local
// state untouched.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aburossi/textboxv2/internal/model"
)

// ErrNotConfigured signals a missing submission endpoint. Configuration
// errors are reported before any gathering or network work.
var ErrNotConfigured = errors.New("submission endpoint not configured")

const statusSuccess = "success"

type Client struct {
	url string
	hc  *http.Client
}

// New creates a submission client for the given endpoint URL. An empty URL
// produces a client that fails every Submit with ErrNotConfigured.
func New(url string) *Client {
	return &Client{
		url: url,
		hc:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Submit posts the envelope as a JSON body and decodes the endpoint's
// response. A non-2xx status or a response status other than "success" is an
// error carrying the server's message.
func (c *Client) Submit(ctx context.Context, env *model.ExportEnvelope) (*model.SubmitResult, error) {
	if c.url == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send submission: %w", err)
	}
	defer resp.Body.Close()

	var result model.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || result.Status != statusSuccess {
		msg := result.Message
		if msg == "" {
			msg = "unknown server error"
		}
		return nil, fmt.Errorf("submission rejected (HTTP %d): %s", resp.StatusCode, msg)
	}
	return &result, nil
}
