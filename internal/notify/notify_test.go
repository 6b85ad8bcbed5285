package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEventSerialization(t *testing.T) {
	t.Run("marshals all fields", func(t *testing.T) {
		event := Event{
			Type:         EventStageCompleted,
			Project:      "my-project",
			Stage:        "developer",
			FilesWritten: 7,
			Message:      "developer stage wrote 7 files",
			Timestamp:    time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
			Details: map[string]interface{}{
				"rejected": float64(1),
			},
		}

		data, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}

		var got map[string]interface{}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}

		if got["event"] != "stage_completed" {
			t.Errorf("event = %q", got["event"])
		}
		if got["stage"] != "developer" {
			t.Errorf("stage = %q", got["stage"])
		}
		if got["files_written"] != float64(7) {
			t.Errorf("files_written = %v", got["files_written"])
		}
		if got["project"] != "my-project" {
			t.Errorf("project = %q", got["project"])
		}

		details, ok := got["details"].(map[string]interface{})
		if !ok {
			t.Fatalf("details not a map: %T", got["details"])
		}
		if details["rejected"] != float64(1) {
			t.Errorf("details.rejected = %v", details["rejected"])
		}
	})

	t.Run("omits empty stage and details", func(t *testing.T) {
		data, err := json.Marshal(Event{Type: EventRunCompleted, Project: "proj", Timestamp: time.Now()})
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}

		var got map[string]interface{}
		_ = json.Unmarshal(data, &got)

		if _, ok := got["details"]; ok {
			t.Error("details should be omitted when nil")
		}
		if _, ok := got["stage"]; ok {
			t.Error("stage should be omitted when empty")
		}
	})
}

func TestSend(t *testing.T) {
	t.Run("posts JSON to webhook", func(t *testing.T) {
		var received Event
		var contentType string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &received)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		event := Event{
			Type:         EventRunCompleted,
			Project:      "test-proj",
			FilesWritten: 12,
			Message:      "run completed",
			Timestamp:    time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		}

		if err := Send(context.Background(), srv.URL, event); err != nil {
			t.Fatalf("Send: %v", err)
		}

		if contentType != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", contentType)
		}
		if received.Type != EventRunCompleted {
			t.Errorf("received Type = %q", received.Type)
		}
		if received.FilesWritten != 12 {
			t.Errorf("received FilesWritten = %d", received.FilesWritten)
		}
		if received.Project != "test-proj" {
			t.Errorf("received Project = %q", received.Project)
		}
	})

	t.Run("returns nil when webhook URL is empty", func(t *testing.T) {
		if err := Send(context.Background(), "", Event{Type: EventRunCompleted}); err != nil {
			t.Errorf("expected nil, got: %v", err)
		}
	})

	t.Run("returns error on HTTP failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := Send(context.Background(), srv.URL, Event{Type: EventRunFailed})
		if err == nil {
			t.Fatal("expected error for 500 response")
		}
		if got := err.Error(); got != "notify: webhook returned status 500" {
			t.Errorf("error = %q", got)
		}
	})

	t.Run("returns error on connection failure", func(t *testing.T) {
		if err := Send(context.Background(), "http://127.0.0.1:1", Event{Type: EventRunFailed}); err == nil {
			t.Fatal("expected error for connection refused")
		}
	})
}
