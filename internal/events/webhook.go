package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/user-management-api/internal/models"
	"github.com/noah-isme/user-management-api/pkg/middleware/requestid"
)

// WebhookPath is appended to the workflow base URL.
const WebhookPath = "/webhook/user-events"

// WebhookNotifier posts events to the external workflow automation endpoint.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
}

// NewWebhookNotifier builds a notifier targeting baseURL + WebhookPath.
func NewWebhookNotifier(baseURL string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		endpoint: strings.TrimRight(baseURL, "/") + WebhookPath,
		client:   &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the full webhook URL.
func (n *WebhookNotifier) Endpoint() string {
	return n.endpoint
}

// Publish POSTs the event as JSON. Any non-2xx response is an error so the queue retries.
func (n *WebhookNotifier) Publish(ctx context.Context, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", event.Topic)
	req.Header.Set("X-Event-ID", event.ID)
	if event.RequestID != "" {
		req.Header.Set(requestid.HeaderKey, event.RequestID)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
