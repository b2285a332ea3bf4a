package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls POST {baseURL}/analyze.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client; a non-positive timeout means ten seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.baseURL + "/analyze"
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Sentiment string `json:"sentiment"`
	InputText string `json:"input_text"`
}

// Analyze validates text and, only if it passes, sends it to the endpoint.
func (c *Client) Analyze(ctx context.Context, text string) (Result, error) {
	if c == nil || c.client == nil {
		return Result{}, errors.New("sentiment client not configured")
	}
	text, err := ValidateText(text)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return Result{}, err
	}
	endpoint := c.Endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	var body analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	label, err := ParseLabel(body.Sentiment)
	if err != nil {
		return Result{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	inputText := body.InputText
	if inputText == "" {
		inputText = text
	}
	return Result{Sentiment: label, InputText: inputText}, nil
}
