package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "inquiry", " WARNING ")

	logger.Info("hidden")
	logger.Warn("flow_answer_rejected", "question_id", "Q9")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON entry, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "flow_answer_rejected" || entry["service"] != "inquiry" || entry["question_id"] != "Q9" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestJSONLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "api", "info")

	logger.Info("bootstrap_config",
		"openai_api_key", "sk-secret",
		"postgres_dsn", "postgres://inquiry:hunter2@db:5432/inquiry?sslmode=disable",
		"nats_url", "nats://localhost:4222",
		"provider", "openai",
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["openai_api_key"] != "***" {
		t.Fatalf("expected api key to be masked, got %v", entry["openai_api_key"])
	}
	dsn, _ := entry["postgres_dsn"].(string)
	if strings.Contains(dsn, "hunter2") || !strings.Contains(dsn, "@db:5432/inquiry") {
		t.Fatalf("expected dsn password to be masked, got %q", dsn)
	}
	if entry["nats_url"] != "nats://localhost:4222" || entry["provider"] != "openai" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
