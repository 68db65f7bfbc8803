// Package vision calls the image analysis service to caption avatar images.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrUnavailable means the call could not be made at all (network error,
	// timeout, no endpoint configured).
	ErrUnavailable = errors.New("analysis service unreachable")
	// ErrRejected means the service answered but with a non-success status or
	// a response carrying no caption.
	ErrRejected = errors.New("analysis service error")
)

// analyzeResult is the caption envelope returned by the service.
type analyzeResult struct {
	Description struct {
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
}

// Client calls the captioning endpoint with raw image bytes.
type Client struct {
	HTTP     *http.Client
	Endpoint string
	APIKey   string
}

// Describe submits the image and returns the first caption.
func (c *Client) Describe(ctx context.Context, image []byte) (string, error) {
	if c.Endpoint == "" {
		return "", fmt.Errorf("no endpoint configured: %w", ErrUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("build request: %v: %w", err, ErrUnavailable)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.APIKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("call analysis service: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d: %w", resp.StatusCode, ErrRejected)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %v: %w", err, ErrUnavailable)
	}
	var res analyzeResult
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("malformed response: %v: %w", err, ErrRejected)
	}
	if len(res.Description.Captions) == 0 || res.Description.Captions[0].Text == "" {
		return "", fmt.Errorf("no caption in response: %w", ErrRejected)
	}
	return res.Description.Captions[0].Text, nil
}
