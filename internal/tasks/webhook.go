package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/delayq/pkg/logger"
	"github.com/dmitrymomot/delayq/pkg/queue"
)

// WebhookName is the name the webhook task is registered under.
const WebhookName = "webhook"

const defaultWebhookTimeout = 10 * time.Second

var (
	ErrInvalidWebhook = errors.New("tasks: invalid webhook")
	ErrWebhookStatus  = errors.New("tasks: webhook returned an error status")
)

// WebhookPayload is the data of a webhook job.
type WebhookPayload struct {
	Headers map[string]string `json:"headers,omitempty"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// Webhook sends an HTTP request. Any 2xx response deletes the job; other
// statuses and transport errors release it for another attempt.
type Webhook struct {
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates the webhook task. A nil client gets a 10 second timeout.
func NewWebhook(client *http.Client, l *slog.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	if l == nil {
		l = logger.NewNope()
	}
	return &Webhook{client: client, logger: l}
}

func (t *Webhook) Name() string { return WebhookName }

func (t *Webhook) Handle(ctx context.Context, p WebhookPayload) error {
	req, err := t.request(ctx, p)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: %d", ErrWebhookStatus, req.Method, p.URL, resp.StatusCode)
	}
	return nil
}

// Failed logs the webhook that could not be delivered.
func (t *Webhook) Failed(ctx context.Context, p WebhookPayload) error {
	attrs := []slog.Attr{slog.String("url", p.URL)}
	if job, ok := queue.JobFromContext(ctx); ok {
		attrs = append(attrs, slog.String("job_id", job.ID()), slog.Uint64("attempts", uint64(job.Attempts())))
	}
	t.logger.LogAttrs(ctx, slog.LevelError, "webhook delivery abandoned", attrs...)
	return nil
}

func (t *Webhook) request(ctx context.Context, p WebhookPayload) (*http.Request, error) {
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q", ErrInvalidWebhook, p.URL)
	}

	method := p.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if len(p.Body) > 0 {
		body = bytes.NewReader(p.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	if job, ok := queue.JobFromContext(ctx); ok {
		req.Header.Set("X-Delayq-Job-Id", job.ID())
		req.Header.Set("X-Delayq-Attempt", fmt.Sprint(job.Attempts()))
	}
	return req, nil
}
