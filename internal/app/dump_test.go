package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"checkloader/internal/config"
	"checkloader/internal/ledger"
)

func TestDumpSummaryBannerPerCheck(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := Dump(&out, generate(t), config.DumpFormatSummary); err != nil {
		t.Fatalf("dump: %v", err)
	}
	rendered := out.String()
	if !strings.Contains(rendered, "------------------------------\nhealth\n------------------------------\n") {
		t.Fatalf("missing banner in %q", rendered)
	}
	if got := strings.Count(rendered, "\t[NA] -> https://shop.example.com/"); got != 3 {
		t.Fatalf("expected 3 summary lines, got %d in %q", got, rendered)
	}
}

func TestDumpTable(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := Dump(&out, generate(t), config.DumpFormatTable); err != nil {
		t.Fatalf("dump: %v", err)
	}
	rendered := out.String()
	for _, want := range []string{"SITE", "/us", "/eu", "/ap", "priority-low", "TOTAL"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in table:\n%s", want, rendered)
		}
	}
}

func TestDumpJSONOneDocumentPerBlueprint(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := Dump(&out, generate(t), config.DumpFormatJSON); err != nil {
		t.Fatalf("dump: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 json lines, got %d", len(lines))
	}
	var decoded struct {
		Path string   `json:"path"`
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Path != "/us" || len(decoded.Tags) != 5 {
		t.Fatalf("unexpected first blueprint %+v", decoded)
	}
}

func TestDumpRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	if err := Dump(&bytes.Buffer{}, generate(t), "yaml"); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestWriteLedger(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := WriteLedger(&out, []ledger.Entry{{
		RunID:     runID,
		Site:      "shop",
		CheckName: "health",
		Name:      "/us",
		CheckID:   77,
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("write ledger: %v", err)
	}
	for _, want := range []string{runID, "/us", "77", "2024-01-01 12:00:00"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in:\n%s", want, out.String())
		}
	}
}
