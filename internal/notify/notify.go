package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Event types.
const (
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
	EventStageCompleted = "stage_completed"
	EventTest           = "test"
)

// Event represents a notification to be sent to a webhook.
type Event struct {
	Type         string                 `json:"event"`
	Project      string                 `json:"project"`
	Stage        string                 `json:"stage,omitempty"`
	FilesWritten int                    `json:"files_written"`
	Message      string                 `json:"message"`
	Timestamp    time.Time              `json:"timestamp"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// Send POSTs the event as JSON to webhookURL with a 5s timeout.
// Returns nil if webhookURL is empty (notifications disabled).
func Send(ctx context.Context, webhookURL string, event Event) error {
	if webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("notify: webhook request failed", "url", webhookURL, "error", err)
		return fmt.Errorf("notify: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.Error("notify: webhook returned error", "url", webhookURL, "status", resp.StatusCode)
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}

	return nil
}
