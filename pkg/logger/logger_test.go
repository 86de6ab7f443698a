package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNamedLoggerTagsComponent(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	log.Logger.SetOutput(&buf)

	log.Named("market").WithField("listing_id", 7).Info("listed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["component"] != "market" {
		t.Fatalf("expected component field, got %v", entry)
	}
	if entry["msg"] != "listed" {
		t.Fatalf("unexpected message: %v", entry["msg"])
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	log := New(LoggingConfig{Level: "loud"})
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %s", log.Logger.GetLevel())
	}
}
