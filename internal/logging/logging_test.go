package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("gate")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("check passed", KeyCheck, "power")

	out := buf.String()
	if !strings.Contains(out, "msg=\"check passed\"") {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=gate") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "check=power") {
		t.Fatalf("expected check field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("workflow")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be suppressed at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestInitJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)
	defer Init("text", "info", nil)

	L("store").Info("counter updated", "count", 2)

	out := buf.String()
	if !strings.Contains(out, `"component":"store"`) {
		t.Fatalf("expected JSON component field, got: %s", out)
	}
	if !strings.Contains(out, `"count":2`) {
		t.Fatalf("expected JSON count field, got: %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("nonsense") != parseLevel("info") {
		t.Fatal("unknown level should default to info")
	}
}
