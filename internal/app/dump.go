package app

import (
	"fmt"
	"io"
	"strings"

	"checkloader/internal/config"
	"checkloader/internal/engine"
	"checkloader/internal/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
)

const banner = "------------------------------"

// Dump writes generated blueprints in the configured format.
// Params: destination, expansion result, and dump format.
// Returns: write or encode error.
func Dump(w io.Writer, result *engine.Result, format string) error {
	switch format {
	case config.DumpFormatSummary, "":
		return dumpSummary(w, result)
	case config.DumpFormatTable:
		return dumpTable(w, result)
	case config.DumpFormatJSON:
		return dumpJSON(w, result)
	default:
		return fmt.Errorf("unsupported dump format %q", format)
	}
}

// dumpSummary prints one banner per check followed by tab-indented summaries.
func dumpSummary(w io.Writer, result *engine.Result) error {
	var out strings.Builder
	for _, group := range result.Groups() {
		out.WriteString("\n")
		out.WriteString(banner + "\n" + group.Check + "\n" + banner + "\n")
		for _, item := range group.Blueprints {
			out.WriteString("\t" + item.Summary() + "\n")
		}
		out.WriteString("\n")
	}
	_, err := io.WriteString(w, out.String())
	return err
}

func dumpTable(w io.Writer, result *engine.Result) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Site", "Check", "Name", "Base URL", "Every", "Timeout", "Priority", "Regions", "Tags"})
	for _, group := range result.Groups() {
		for _, item := range group.Blueprints {
			t.AppendRow(table.Row{
				group.Site,
				group.Check,
				item.Name(),
				item.BaseURL,
				fmt.Sprintf("%dm", item.IntervalMinutes),
				fmt.Sprintf("%dms", item.TimeoutMs),
				item.Priority,
				strings.Join(item.Regions, ","),
				strings.Join(item.Tags, ","),
			})
		}
	}
	t.AppendFooter(table.Row{"", "", "Total", result.Len()})
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

func dumpJSON(w io.Writer, result *engine.Result) error {
	for _, item := range result.All() {
		raw, err := item.JSON()
		if err != nil {
			return fmt.Errorf("encode blueprint %q: %w", item.Name(), err)
		}
		if _, err := w.Write(append(raw, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// WriteLedger renders ledger entries as a table.
func WriteLedger(w io.Writer, entries []ledger.Entry) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Site", "Check", "Name", "Check ID", "Created"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.RunID,
			entry.Site,
			entry.CheckName,
			entry.Name,
			entry.CheckID,
			entry.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}
