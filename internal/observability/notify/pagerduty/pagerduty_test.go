package pagerduty

import (
	"strings"
	"testing"
	"time"

	"github.com/quorumworks/tallyd/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when routing key missing")
	}
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{
		RoutingKey: "key",
		Source:     "",
		Component:  "",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := notify.JobFailurePayload{
		JobID:        "job-123",
		Operation:    "tally",
		ElectionID:   "election-7",
		Error:        "boom",
		ErrorClass:   "err_class",
		FailedChunks: 2,
		TotalChunks:  10,
	}
	event := client.buildEvent(payload)

	payloadSection, ok := event["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload section")
	}
	if payloadSection["severity"] != notify.SeverityCritical {
		t.Fatalf("expected default severity, got %v", payloadSection["severity"])
	}
	if payloadSection["source"] != "tallyd" {
		t.Fatalf("expected default source, got %v", payloadSection["source"])
	}
	if payloadSection["component"] != "tallyd" {
		t.Fatalf("expected default component, got %v", payloadSection["component"])
	}

	custom, ok := payloadSection["custom_details"].(map[string]any)
	if !ok {
		t.Fatalf("expected custom details")
	}

	required := []string{
		"job_id", "operation", "election_id", "error", "error_class",
		"failed_chunks", "total_chunks",
	}
	for _, key := range required {
		if _, exists := custom[key]; !exists {
			t.Fatalf("expected key %s in custom details", key)
		}
	}

	dedup, _ := event["dedup_key"].(string)
	if !strings.Contains(dedup, "job-123") {
		t.Fatalf("expected dedup key to reference job id, got %s", dedup)
	}
}

func TestBuildEventOmitsCountsWithoutTotals(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.JobFailurePayload{JobID: "job-1"})
	payloadSection := event["payload"].(map[string]any)
	custom := payloadSection["custom_details"].(map[string]any)

	if _, exists := custom["failed_chunks"]; exists {
		t.Fatal("expected failed_chunks to be omitted when totals are unknown")
	}
}
