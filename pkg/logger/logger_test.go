package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json"})
	if log.Logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.Logger.GetLevel())
	}
	if _, ok := log.Logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", log.Logger.Formatter)
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New(LoggingConfig{Level: "loud"})
	if log.Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback, got %s", log.Logger.GetLevel())
	}
}

func TestNamedAddsComponentField(t *testing.T) {
	var buf bytes.Buffer
	log := New(LoggingConfig{Format: "json"}).Named("challenges")
	log.Logger.SetOutput(&buf)

	log.WithField("challenge_id", 7).Info("challenge created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["component"] != "challenges" {
		t.Fatalf("expected component field, got %v", entry)
	}
	if entry["challenge_id"] != float64(7) {
		t.Fatalf("expected challenge_id field, got %v", entry)
	}
}
