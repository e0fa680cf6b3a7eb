package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"checkloader/internal/clock"
	"checkloader/internal/config"
)

type fakeService struct {
	mu      sync.Mutex
	created []string
	deleted string
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			f.created = append(f.created, r.PostForm.Get("name"))
			_, _ = io.WriteString(w, `{"check":{"id":`+strconv.Itoa(len(f.created))+`}}`)
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"checks":[{"id":3,"name":"/us","hostname":"shop.example.com","tags":[{"name":"health"},{"name":"priority-low"}]}]}`)
		case http.MethodDelete:
			f.deleted = r.URL.Query().Get("delcheckids")
			_, _ = io.WriteString(w, `{"message":"ok"}`)
		}
	})
}

func newTestService(t *testing.T, serverURL, answer string) (*Service, *bytes.Buffer, string) {
	t.Helper()

	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte("test-token\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	checksPath := filepath.Join(dir, "checks.yaml")
	if err := os.WriteFile(checksPath, []byte(runnerDoc), 0o600); err != nil {
		t.Fatalf("write checks: %v", err)
	}

	cfg, err := config.LoadSnapshot(config.ConfigSource{})
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg, err = config.ApplyOverrides(cfg, config.Overrides{APIBaseURL: serverURL, TokenFile: tokenPath})
	if err != nil {
		t.Fatalf("apply overrides: %v", err)
	}

	var out bytes.Buffer
	clk := clock.Fixed(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	return NewService(cfg, nil, clk, strings.NewReader(answer+"\n"), &out), &out, checksPath
}

func TestServiceGenerateAndDump(t *testing.T) {
	t.Parallel()

	service, out, checksPath := newTestService(t, "https://unused.example.com", "")
	if service.RunID() != "20240101_12000000" {
		t.Fatalf("unexpected run id %q", service.RunID())
	}
	if err := service.Run(context.Background(), Options{ChecksFile: checksPath, Dump: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "------------------------------\nhealth\n") {
		t.Fatalf("dump missing check banner:\n%s", out.String())
	}
	if strings.Count(out.String(), "-> https://shop.example.com/") != 3 {
		t.Fatalf("expected 3 blueprints in dump:\n%s", out.String())
	}
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()

	fake := &fakeService{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service, out, checksPath := newTestService(t, server.URL, "y")
	if err := service.Run(context.Background(), Options{ChecksFile: checksPath, Sites: "sho*", Create: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.created) != 3 || fake.created[0] != "/us" {
		t.Fatalf("unexpected created checks %v", fake.created)
	}
	if !strings.Contains(out.String(), "CREATE the above checks") {
		t.Fatalf("create prompt missing: %q", out.String())
	}
}

func TestServiceCreateFilteredSiteGeneratesNothing(t *testing.T) {
	t.Parallel()

	fake := &fakeService{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service, _, checksPath := newTestService(t, server.URL, "y")
	if err := service.Run(context.Background(), Options{ChecksFile: checksPath, Sites: "blog", Create: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.created) != 0 {
		t.Fatalf("filtered site must create nothing, got %v", fake.created)
	}
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	fake := &fakeService{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service, _, _ := newTestService(t, server.URL, "y")
	err := service.Run(context.Background(), Options{Delete: true, CheckNames: "health", TagQualifiers: "priority-low"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fake.deleted != "3" {
		t.Fatalf("unexpected delcheckids %q", fake.deleted)
	}
}

func TestServiceDeleteRejectsCheckNamePattern(t *testing.T) {
	t.Parallel()

	fake := &fakeService{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service, _, _ := newTestService(t, server.URL, "y")
	err := service.Run(context.Background(), Options{Delete: true, CheckNames: "heal*"})
	if err == nil || !strings.Contains(err.Error(), "heal*") {
		t.Fatalf("expected pattern rejection, got %v", err)
	}
	if fake.deleted != "" {
		t.Fatalf("nothing may be deleted, got %q", fake.deleted)
	}
}

func TestServiceMissingTokenFails(t *testing.T) {
	t.Parallel()

	service, _, checksPath := newTestService(t, "https://unused.example.com", "y")
	service.cfg.API.TokenFile = filepath.Join(t.TempDir(), "missing")
	if err := service.Run(context.Background(), Options{ChecksFile: checksPath, Create: true}); err == nil {
		t.Fatalf("expected token error")
	}
}

func TestServiceShowLedger(t *testing.T) {
	t.Parallel()

	service, out, _ := newTestService(t, "https://unused.example.com", "")
	if err := service.Run(context.Background(), Options{ShowLedger: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "CHECK ID") {
		t.Fatalf("expected ledger table header:\n%s", out.String())
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := splitList(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split %v", got)
	}
	if splitList("  ") != nil {
		t.Fatalf("blank input must yield nil")
	}
}
