// Package telegram is a hand-rolled Bot API client: message delivery
// with outcome classification and chunking, plus long polling for the
// admin command surface.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/svodkanews/svodka/internal/logger"
	"github.com/svodkanews/svodka/internal/retry"
)

const apiBase = "https://api.telegram.org"

// RateLimitedError is a 429 with the wait Telegram suggested.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("telegram: rate limited, retry after %s", e.RetryAfter)
}

func (e RateLimitedError) RetryDelay() time.Duration { return e.RetryAfter }

// TransientError covers 5xx and network-level failures; worth retrying.
type TransientError struct {
	Status int
	Cause  error
}

func (e TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("telegram: transient failure: %v", e.Cause)
	}
	return fmt.Sprintf("telegram: transient failure: status %d", e.Status)
}

func (e TransientError) Unwrap() error { return e.Cause }

// PermanentError covers bad request / forbidden; retrying cannot help.
type PermanentError struct {
	Status      int
	Description string
}

func (e PermanentError) Error() string {
	return fmt.Sprintf("telegram: permanent failure: status %d: %s", e.Status, e.Description)
}

type Client struct {
	token    string
	baseURL  string
	client   *http.Client
	poller   *http.Client
	retryCfg retry.Config
}

func NewClient(token string, attempts int, delay time.Duration) *Client {
	return &Client{
		token:   token,
		baseURL: apiBase,
		client:  &http.Client{Timeout: 30 * time.Second},
		// Long polling holds the connection for the full poll timeout, so
		// the poll client carries no fixed deadline; GetUpdates bounds each
		// request through its context instead.
		poller: &http.Client{},
		retryCfg: retry.Config{
			MaxAttempts: attempts,
			Delay:       delay,
			Backoff:     true,
		},
	}
}

// apiResponse is the envelope every Bot API call returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *responseParams `json:"parameters"`
	Result      json.RawMessage `json:"result"`
}

type responseParams struct {
	RetryAfter int `json:"retry_after"`
}

// SendText performs a single sendMessage attempt and classifies the
// outcome: nil on success, RateLimitedError, TransientError or
// PermanentError otherwise.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	_, err := c.call(ctx, c.client, "sendMessage", payload)
	return err
}

// DeliveryReport is the structured outcome of one digest delivery.
type DeliveryReport struct {
	Chunks       int
	Sent         int
	FailedChunks []int // 1-based chunk indices that exhausted retries
}

func (r DeliveryReport) Success() bool { return r.Sent == r.Chunks }

// SendDigest chunks the body at paragraph boundaries and sends the
// pieces in order. Each chunk retries independently; a permanently
// failed chunk is recorded and the rest are still attempted.
func (c *Client) SendDigest(ctx context.Context, chatID, title, body string) DeliveryReport {
	chunks := ChunkBody(body, MaxMessageRunes)
	total := len(chunks)
	report := DeliveryReport{Chunks: total}

	for idx, chunk := range chunks {
		header := title
		if idx > 0 {
			header = fmt.Sprintf("%s (продолжение %d/%d)", title, idx+1, total)
		}
		text := header + "\n\n" + chunk

		err := retry.WithRetry(ctx, c.retryCfg, func() error {
			sendErr := c.SendText(ctx, chatID, text)
			var perm PermanentError
			if errors.As(sendErr, &perm) {
				return retry.Permanent{Err: sendErr}
			}
			return sendErr
		})
		if err != nil {
			logger.Error("chunk delivery failed", "chunk", idx+1, "total", total, "err", err)
			report.FailedChunks = append(report.FailedChunks, idx+1)
			continue
		}
		report.Sent++
	}
	return report
}

// Update / Message mirror the small slice of the Bot API the admin
// surface needs.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type User struct {
	ID int64 `json:"id"`
}

type Chat struct {
	ID int64 `json:"id"`
}

// GetUpdates long-polls for incoming messages after the given offset.
// The request deadline sits above the poll timeout so an idle poll is a
// normal empty response, not a client-side timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()
	result, err := c.call(ctx, c.poller, "getUpdates", payload)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, httpClient *http.Client, method string, payload map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, TransientError{Cause: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", "err", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransientError{Cause: err}
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, TransientError{Status: resp.StatusCode, Cause: err}
	}
	if parsed.OK {
		return parsed.Result, nil
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := time.Second
		if parsed.Parameters != nil && parsed.Parameters.RetryAfter > 0 {
			wait = time.Duration(parsed.Parameters.RetryAfter) * time.Second
		}
		return nil, RateLimitedError{RetryAfter: wait}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		return nil, PermanentError{Status: resp.StatusCode, Description: parsed.Description}
	default:
		return nil, TransientError{Status: resp.StatusCode}
	}
}
