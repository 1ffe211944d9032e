package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandgraal/retro-games-sub003/internal/cli"
	"github.com/sandgraal/retro-games-sub003/internal/db"
	"github.com/sandgraal/retro-games-sub003/internal/store"
)

// Tests in this file set process environment and run sequentially.

func setServiceEnv(t *testing.T) (dataDir, ledgerPath string) {
	t.Helper()
	dataDir = filepath.Join(t.TempDir(), "data")
	ledgerPath = filepath.Join(t.TempDir(), "runs.db")
	t.Setenv(cli.EnvFileVar, "")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CATALOG_DATA_DIR", dataDir)
	t.Setenv("CATALOG_LEDGER_DSN", ledgerPath)
	return dataDir, ledgerPath
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunRejectsBadUsage(t *testing.T) {
	cases := map[string][]string{
		"port zero":       {"--once", "--port", "0"},
		"port too large":  {"--serve", "--port", "70000"},
		"unknown flag":    {"--bogus"},
		"unknown command": {"explode"},
		"stray argument":  {"--once", "extra"},
	}
	for name, args := range cases {
		if code := Run(args); code != 2 {
			t.Fatalf("%s: expected exit 2, got %d", name, code)
		}
	}
}

func TestRunHelp(t *testing.T) {
	for _, args := range [][]string{{"help"}, {"--help"}, {"validate-config", "-h"}} {
		if code := Run(args); code != 0 {
			t.Fatalf("%v: expected exit 0, got %d", args, code)
		}
	}
}

func TestRunOnceIngestsAndRecordsRun(t *testing.T) {
	dataDir, ledgerPath := setServiceEnv(t)
	cfgPath := writeFile(t, "ingest.yaml", `
fuzzyThreshold: 0.82
sources:
  - name: seed
    records:
      - title: Chrono Trigger
        platform: SNES
      - title: Chrono Triger
        platform: Super Famicom
`)

	envPath := filepath.Join(t.TempDir(), "missing.env")
	if code := Run([]string{"--once", "--config", cfgPath, "--env", envPath}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	st, err := store.Open(dataDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	state, err := st.LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(state.Records) != 1 {
		t.Fatalf("expected spelling variants to merge, got %d entries", len(state.Records))
	}
	names, err := st.ListSnapshots()
	if err != nil || len(names) != 1 {
		t.Fatalf("expected one snapshot, got %v (%v)", names, err)
	}

	pool, err := db.Open(context.Background(), db.Options{DSN: ledgerPath, LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer pool.Close()
	runs, err := pool.RecentRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "completed" || runs[0].Fetched != 2 || runs[0].Merged != 1 {
		t.Fatalf("unexpected ledger rows: %+v", runs)
	}
}

func TestRunFailsOnInvalidConfig(t *testing.T) {
	setServiceEnv(t)
	cfgPath := writeFile(t, "ingest.json", `{"fuzzyThreshold": 2}`)

	if code := Run([]string{"--once", "--config", cfgPath, "--env", filepath.Join(t.TempDir(), "x.env")}); code != 1 {
		t.Fatalf("expected exit 1 for invalid config, got %d", code)
	}
	if code := Run([]string{"--once", "--config", filepath.Join(t.TempDir(), "absent.json"), "--env", filepath.Join(t.TempDir(), "x.env")}); code != 1 {
		t.Fatalf("expected exit 1 for missing config, got %d", code)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := writeFile(t, "ok.json", `{"scheduleMinutes": 60, "sources": [{"name": "igdb", "url": "https://api.example.com/games"}]}`)
	invalid := writeFile(t, "bad.json", `{"sources": [{"name": "a"}, {"name": "a"}]}`)

	if code := Run([]string{"validate-config", "--config", valid}); code != 0 {
		t.Fatalf("expected valid config to exit 0, got %d", code)
	}
	if code := Run([]string{"validate-config", "--config", invalid}); code != 1 {
		t.Fatalf("expected duplicate source names to exit 1, got %d", code)
	}
	if code := Run([]string{"validate-config"}); code != 2 {
		t.Fatalf("expected missing --config to exit 2, got %d", code)
	}
}
