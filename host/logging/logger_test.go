package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if parseLevel(name) == nil {
			t.Errorf("parseLevel(%q) = nil", name)
		}
	}
	if parseLevel("loud") != nil {
		t.Error("unknown level parsed")
	}
}

func TestModuleLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Initialize(Config{Level: "warn", Modules: map[string]string{"monitor": "debug"}})
	defer Initialize(Config{})

	GetLogger("monitor").Debug("frame", "seq", 3)
	GetLogger("simulate").Info("hidden")
	GetLogger("simulate").Warn("shown")

	out := buf.String()
	t.Logf("log output:\n%s", out)
	if !strings.Contains(out, "module=monitor") || !strings.Contains(out, "seq=3") {
		t.Error("module debug line missing")
	}
	if strings.Contains(out, "hidden") {
		t.Error("info line logged below the global warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line missing")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Initialize(Config{Format: "json"})
	defer Initialize(Config{})

	GetLogger("cli").Info("started")
	if !strings.Contains(buf.String(), `"module":"cli"`) {
		t.Errorf("json output = %q", buf.String())
	}
}
