package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"ceeval-hq/verdict/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "json", cfg: Config{Level: "info", Format: "json"}},
		{name: "text", cfg: Config{Level: "debug", Format: "text"}},
		{name: "defaults", cfg: Config{}},
		{name: "bad level", cfg: Config{Level: "trace"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("log output is not JSON: %v (%s)", err, buf.String())
	}
	return m
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn not logged: %s", buf.String())
	}
}

func TestNew_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithDossierID(context.Background(), "DOS-1")
	ctx = WithRuleCode(ctx, "PRIME_CONSISTENCY")
	logger.With("component", "test").InfoContext(ctx, "evaluated")

	m := decode(t, &buf)
	if m["dossier_id"] != "DOS-1" || m["rule_code"] != "PRIME_CONSISTENCY" || m["component"] != "test" {
		t.Errorf("record = %v", m)
	}
	if _, ok := m["evaluation_id"]; ok {
		t.Error("unset context field logged")
	}
	if DossierID(ctx) != "DOS-1" {
		t.Errorf("DossierID() = %q", DossierID(ctx))
	}
}

func TestNew_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		Writer:    &buf,
		RedactPII: true,
		RedactPatterns: []config.RedactPattern{
			{Name: "siren", Pattern: `\b\d{9}\b`, Replacement: "SIREN"},
			{Name: "broken", Pattern: "("},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("value",
		"actual", "contact: jean.dupont@example.fr",
		"phone", "06 12 34 56 78",
		"iban", "FR76 3000 6000 0112 3456 7890 189",
		"siren", "732829320",
		"git_token", "ghp_abcdef",
		"surface", 80.5,
	)

	m := decode(t, &buf)
	if strings.Contains(buf.String(), "jean.dupont") {
		t.Errorf("email not redacted: %v", m["actual"])
	}
	if m["phone"] == "06 12 34 56 78" {
		t.Errorf("phone not redacted")
	}
	if m["iban"] != "IBAN ***" {
		t.Errorf("iban = %v", m["iban"])
	}
	if m["siren"] != "SIREN" {
		t.Errorf("custom pattern not applied: %v", m["siren"])
	}
	if m["git_token"] != "***" {
		t.Errorf("sensitive key not masked: %v", m["git_token"])
	}
	if m["surface"] != 80.5 {
		t.Errorf("numeric value altered: %v", m["surface"])
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warning", "error", ""} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q) error = %v", s, err)
		}
	}
}
