package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ceeval-hq/verdict/pkg/config"
	"ceeval-hq/verdict/pkg/telemetry"
)

func TestServe_DryRun(t *testing.T) {
	out, err := execute(t, "serve", "--catalog", "testdata/catalog", "--dry-run")
	if err != nil {
		t.Fatalf("serve --dry-run error = %v", err)
	}
	if !strings.Contains(out, "configuration valid") || !strings.Contains(out, "2 rules") {
		t.Errorf("output = %q", out)
	}
}

func TestEvaluateDir(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Path = "testdata/catalog"
	cfg.Storage.Backend = "memory"
	tel, err := telemetry.New(cfg.Telemetry, buildInfo(), io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, tel)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close(ctx)
	a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	for _, name := range []string{"approved.yaml", "review.yaml"} {
		data, err := os.ReadFile(filepath.Join("testdata/dossiers", name))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("documents: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := evaluateDir(ctx, a, dir); err != nil {
		t.Fatalf("evaluateDir() error = %v", err)
	}
	ids, err := a.results.Dossiers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("stored dossiers = %v, want the two valid files", ids)
	}
}
