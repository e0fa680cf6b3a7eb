package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const checksDoc = `
defaults:
  intervalMinutes: 5
  timeoutMs: 30000
  notifyAfterFailures: 2
  notifyAgainEvery: 0
  notifyWhenBackUp: true
  priority: low
  regions: [NA]
  teamIds: []
  userIds: []
  integrationIds: []
  customMessage: null
sites:
  shop:
    rootUrl: https://shop.example.com
    pathParts:
      region:
        us: {}
    checks:
      health:
        forEach:
          region: {}
`

func TestRunExitCodes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	checksPath := filepath.Join(dir, "checks.yaml")
	if err := os.WriteFile(checksPath, []byte(checksDoc), 0o600); err != nil {
		t.Fatalf("write checks: %v", err)
	}

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "help", args: []string{"-h"}, code: 0},
		{name: "unknown flag", args: []string{"--nope"}, code: 2},
		{name: "create and delete", args: []string{"-x", "-D", "-q", "a"}, code: 2},
		{name: "delete without filters", args: []string{"-D"}, code: 2},
		{name: "delete with check name glob", args: []string{"-D", "-c", "prod-*"}, code: 2},
		{name: "both config sources", args: []string{"--config-file", "a.toml", "--config-dir", "d"}, code: 2},
		{name: "bad dump format", args: []string{"-f", checksPath, "--dump-format", "xml"}, code: 2},
		{name: "missing checks file", args: []string{"-f", filepath.Join(dir, "missing.yaml")}, code: 1},
		{name: "dump", args: []string{"-f", checksPath, "-d", "-l", "ERROR"}, code: 0},
	}
	for _, tc := range tests {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), tc.args, strings.NewReader(""), &stdout, &stderr)
		if code != tc.code {
			t.Fatalf("%s: exit code %d want %d (stderr=%q)", tc.name, code, tc.code, stderr.String())
		}
	}
}

func TestRunDumpWritesChecksAndLogsToFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	checksPath := filepath.Join(dir, "checks.yaml")
	if err := os.WriteFile(checksPath, []byte(checksDoc), 0o600); err != nil {
		t.Fatalf("write checks: %v", err)
	}
	logPath := filepath.Join(dir, "run.log")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--checks-config-file", checksPath, "--dump-generated-checks", "--log-file", logPath}, strings.NewReader(""), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d stderr=%q", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "-> https://shop.example.com/us") {
		t.Fatalf("dump missing from stdout: %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "level=") {
		t.Fatalf("logs must go to the file only: %q", stdout.String())
	}
	body, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(body), "finished run") {
		t.Fatalf("log file missing finished line: %q", body)
	}
}
