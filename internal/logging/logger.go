package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"checkloader/internal/config"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBlue    = "\x1b[34m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiCyan    = "\x1b[36m"
	ansiRed     = "\x1b[31m"
	ansiGray    = "\x1b[90m"
	ansiMagenta = "\x1b[35m"
)

// tokenRules are highlighted in console lines; earlier rules win when matches start together.
var tokenRules = []struct {
	pattern *regexp.Regexp
	color   string
}{
	{pattern: regexp.MustCompile(`"[^"\n]*"`), color: ansiGreen},
	{pattern: regexp.MustCompile(`\bhttps?://[^\s"]+`), color: ansiCyan},
	{pattern: regexp.MustCompile(`\b\d{8}_\d{6}_?\d{2}\b`), color: ansiMagenta},
	{pattern: regexp.MustCompile(`\b\d+(?:\.\d+)?\b`), color: ansiYellow},
}

// New builds a logger for configured sinks and returns a cleanup function.
// Params: cfg contains console/file sink settings.
// Returns: slog logger, cleanup callback, and setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds a logger whose console sink writes to stdout.
// Colors are used only when stdout is a terminal.
// Params: sink settings and console destination.
// Returns: slog logger, cleanup callback, and setup error.
func NewWithWriter(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		closers  []io.Closer
	)

	if cfg.Console.Enabled {
		handler, err := buildConsoleHandler(cfg.Console, stdout)
		if err != nil {
			return nil, nil, fmt.Errorf("build console handler: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.File.Enabled {
		handler, closer, err := buildFileHandler(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("build file handler: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, closer)
	}

	if len(handlers) == 0 {
		return nil, nil, fmt.Errorf("no log sinks enabled")
	}

	closeFn := func() {
		for _, closer := range closers {
			_ = closer.Close()
		}
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn, nil
	}

	return slog.New(teeHandler{handlers: handlers}), closeFn, nil
}

// IsTerminal reports whether writer is an interactive terminal.
// Params: candidate writer.
// Returns: true for TTY-backed files.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// buildConsoleHandler creates the console sink; console lines carry no timestamp.
// Params: sink level and format; dst is the console writer.
// Returns: slog handler or error.
func buildConsoleHandler(sink config.LogSinkConfig, dst io.Writer) (slog.Handler, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, err
	}
	if sink.Format == "line" && IsTerminal(dst) {
		dst = &colorLineWriter{dst: dst}
	}
	return newHandler("console", sink.Format, dst, &slog.HandlerOptions{Level: level, ReplaceAttr: dropTime})
}

// buildFileHandler creates the file sink; the file is truncated so each run starts fresh.
func buildFileHandler(sink config.LogSinkConfig) (slog.Handler, io.Closer, error) {
	level, err := parseLevel(sink.Level)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(sink.Path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open file %q: %w", sink.Path, err)
	}
	handler, err := newHandler("file", sink.Format, file, &slog.HandlerOptions{Level: level, ReplaceAttr: utcTime})
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return handler, file, nil
}

func newHandler(sinkName, format string, w io.Writer, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch format {
	case "line":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported %s format %q", sinkName, format)
	}
}

func dropTime(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return attr
}

func utcTime(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
		return slog.Time(slog.TimeKey, attr.Value.Time().UTC().Truncate(time.Millisecond))
	}
	return attr
}

// levelNames maps configured level names to slog levels; panic sits above error.
var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"panic": slog.LevelError + 4,
}

func parseLevel(value string) (slog.Level, error) {
	level, ok := levelNames[strings.TrimSpace(strings.ToLower(value))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", value)
	}
	return level, nil
}

// teeHandler writes each record to every sink that accepts its level.
type teeHandler struct {
	handlers []slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range t.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range t.handlers {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) derive(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make([]slog.Handler, len(t.handlers))
	for i, handler := range t.handlers {
		next[i] = fn(handler)
	}
	return teeHandler{handlers: next}
}

// colorLineWriter tints console lines by level and highlights tokens inside them.
type colorLineWriter struct {
	dst io.Writer
}

// Write reports len(payload) on success so slog never sees a short write from added escapes.
func (w *colorLineWriter) Write(payload []byte) (int, error) {
	line := string(payload)
	tone := levelColor(line)
	if tone == "" {
		return w.dst.Write(payload)
	}
	if _, err := io.WriteString(w.dst, tone+highlightLineTokens(line, tone)+ansiReset); err != nil {
		return 0, err
	}
	return len(payload), nil
}

var levelTones = []struct {
	marker string
	color  string
}{
	{marker: "level=DEBUG", color: ansiGray},
	{marker: "level=INFO", color: ansiBlue},
	{marker: "level=WARN", color: ansiYellow},
	{marker: "level=ERROR", color: ansiRed},
}

func levelColor(line string) string {
	for _, tone := range levelTones {
		if strings.Contains(line, tone.marker) {
			return tone.color
		}
	}
	return ""
}

type colorRegion struct {
	start    int
	end      int
	color    string
	priority int
}

// highlightLineTokens colors quoted strings, URLs, run identifiers, and numbers.
// Params: rendered line and base color restored after each token.
// Returns: line text with ANSI token highlights.
func highlightLineTokens(line, baseColor string) string {
	regions := collectColorRegions(line)
	if len(regions) == 0 {
		return line
	}

	var builder strings.Builder
	builder.Grow(len(line) + len(regions)*12)

	cursor := 0
	for _, region := range regions {
		builder.WriteString(line[cursor:region.start])
		builder.WriteString(region.color)
		builder.WriteString(line[region.start:region.end])
		builder.WriteString(ansiReset)
		builder.WriteString(baseColor)
		cursor = region.end
	}

	builder.WriteString(line[cursor:])
	return builder.String()
}

// collectColorRegions returns non-overlapping token regions ordered by position.
// At equal start the earlier rule wins, then the longer match.
func collectColorRegions(line string) []colorRegion {
	var candidates []colorRegion
	for priority, rule := range tokenRules {
		for _, pair := range rule.pattern.FindAllStringIndex(line, -1) {
			candidates = append(candidates, colorRegion{start: pair[0], end: pair[1], color: rule.color, priority: priority})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.start != b.start {
			return a.start < b.start
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.end > b.end
	})

	out := candidates[:0]
	cursor := 0
	for _, region := range candidates {
		if region.start < cursor || region.start >= region.end {
			continue
		}
		out = append(out, region)
		cursor = region.end
	}
	return out
}
