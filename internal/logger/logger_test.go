package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(zap.NewNop())

	Info("roster loaded", LoggerOptions{Key: "batch", Data: "CS"}, LoggerOptions{Key: "students", Data: 3})
	Warning("comparison failed", LoggerOptions{Key: "error", Data: errors.New("throttled")})
	Error("report upload failed")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel || entries[2].Level != zap.ErrorLevel {
		t.Errorf("unexpected levels: %v %v %v", entries[0].Level, entries[1].Level, entries[2].Level)
	}

	ctx := entries[0].ContextMap()
	if ctx["batch"] != "CS" {
		t.Errorf("batch field = %v", ctx["batch"])
	}
	if ctx["students"] != int64(3) {
		t.Errorf("students field = %v (%T)", ctx["students"], ctx["students"])
	}
	if entries[1].ContextMap()["error"] != "throttled" {
		t.Errorf("error field = %v", entries[1].ContextMap()["error"])
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init("loud", false); err == nil {
		t.Error("expected error for invalid level")
	}
}
