package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/serpcmp/internal/config"
)

func fakeSerpAPI(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kw := r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"organic_results":[
			{"position":1,"title":"Shared","link":"https://shared.example"},
			{"position":2,"title":%q,"link":"https://%s.example"}]}`, kw, kw)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCompareCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	ts := fakeSerpAPI(t)
	t.Setenv("SERPCMP_BASE_URL", ts.URL)
	t.Setenv("SERPCMP_API_KEY", "secret")
	t.Setenv("SERPCMP_CACHE_TTL", "0s")
	db := filepath.Join(t.TempDir(), "runs.jsonl")
	t.Setenv("SERPCMP_STORAGE_BACKEND", "json")
	t.Setenv("SERPCMP_STORAGE_DSN", db)

	out, err := execute(t, "compare", "--query", "shoes,fr,desktop,fr", "--query", "boots,en,mobile,us", "--num", "5", "--format", "json")
	if err != nil {
		t.Fatalf("compare failed: %v\n%s", err, out)
	}

	var run struct {
		ResultCount int `json:"result_count"`
		Comparison  struct {
			Percentage float64 `json:"similarity_percentage"`
		} `json:"comparison"`
	}
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("expected JSON output: %v\n%s", err, out)
	}
	if run.Comparison.Percentage != 50 || run.ResultCount != 5 {
		t.Errorf("unexpected run %+v", run)
	}

	out, err = execute(t, "report")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(out, "Runs:           1") || !strings.Contains(out, "shoes: 1") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestCompareCommand_MissingCredential(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERPCMP_BASE_URL", fakeSerpAPI(t).URL)

	if _, err := execute(t, "compare", "--query", "shoes"); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestCompareCommand_BadInput(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := execute(t, "compare"); err == nil {
		t.Error("expected error without queries")
	}
	if _, err := execute(t, "compare", "--query", "a,b,tablet"); err == nil {
		t.Error("expected error for an unknown device")
	}
	if _, err := execute(t, "compare", "--query", "a", "--num", "0"); err == nil {
		t.Error("expected error for a zero result count")
	}
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{config.BackendSQLite, config.BackendJSON, config.BackendCSV} {
		b, err := openBackend(config.StorageConfig{Backend: backend, DSN: filepath.Join(dir, "snap."+backend)})
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if b == nil {
			t.Fatalf("%s: expected a backend", backend)
		}
		b.Close()
	}

	b, err := openBackend(config.StorageConfig{Backend: config.BackendNone})
	if err != nil || b != nil {
		t.Errorf("expected no backend for none, got %v, %v", b, err)
	}
	if _, err := openBackend(config.StorageConfig{Backend: "redis", DSN: "x"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
