package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWithFieldsUsesGlobalLogger(t *testing.T) {
	InitGlobalLogger(LevelInfo, FormatJSON)
	var buf bytes.Buffer
	GetGlobalLogger().SetOutput(&buf)

	WithFields(map[string]interface{}{
		"circuitBreaker": "chain",
		"state":          "open",
	}).Warn("Circuit breaker opened due to failures")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log entry, got %q: %v", buf.String(), err)
	}
	if entry.Fields["circuitBreaker"] != "chain" {
		t.Errorf("Expected circuitBreaker field 'chain', got %v", entry.Fields["circuitBreaker"])
	}
	if entry.Fields["state"] != "open" {
		t.Errorf("Expected state field 'open', got %v", entry.Fields["state"])
	}
	if entry.Message != "Circuit breaker opened due to failures" {
		t.Errorf("Unexpected message %q", entry.Message)
	}
}
