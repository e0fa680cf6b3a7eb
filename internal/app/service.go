package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"checkloader/internal/checkconfig"
	"checkloader/internal/clock"
	"checkloader/internal/config"
	"checkloader/internal/engine"
	"checkloader/internal/events"
	"checkloader/internal/ledger"
	"checkloader/internal/notify"
	"checkloader/internal/pingdom"
	"checkloader/internal/selector"
)

// Options selects what one invocation does.
// Params: checks file, comma-separated filters, and action switches.
// Returns: run plan for Service.Run.
type Options struct {
	ChecksFile    string
	Sites         string
	CheckNames    string
	TagQualifiers string
	Dump          bool
	Create        bool
	Delete        bool
	ShowLedger    bool
}

// Service composes runtime dependencies for one invocation.
type Service struct {
	cfg    config.Config
	logger *slog.Logger
	clock  clock.Clock
	runID  string
	in     io.Reader
	out    io.Writer

	newTransport func(config.APIConfig, *slog.Logger) (Transport, error)
}

// NewService builds service for a loaded config.
// Params: validated config, logger, clock, and terminal streams.
// Returns: service with a run identifier taken from the clock.
func NewService(cfg config.Config, logger *slog.Logger, clk clock.Clock, in io.Reader, out io.Writer) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		clock:  clk,
		runID:  clock.NewRunID(clk),
		in:     in,
		out:    out,
		newTransport: func(api config.APIConfig, logger *slog.Logger) (Transport, error) {
			return pingdom.NewClientFromConfig(api, logger)
		},
	}
}

// RunID returns the identifier tagged onto every check of this invocation.
func (s *Service) RunID() string {
	return s.runID
}

// Run executes the selected action: show ledger, delete, or generate with optional dump and create.
// Params: context and run options.
// Returns: first run error.
func (s *Service) Run(ctx context.Context, opts Options) error {
	defer s.logger.Debug("finished run", "identifier", s.runID)

	if opts.ShowLedger {
		store, err := ledger.Open(s.cfg.Ledger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer closeQuietly(s.logger, "ledger", store)
		return NewRunner(Deps{RunID: s.runID, Logger: s.logger, Clock: s.clock, Ledger: store, Out: s.out}).ShowLedger(ctx, "")
	}

	if opts.Delete {
		if pattern, ok := selector.HasPattern(opts.CheckNames); ok {
			return fmt.Errorf("delete takes literal check names, got pattern %q", pattern)
		}
	}

	var result *engine.Result
	if !opts.Delete {
		var err error
		result, err = s.Generate(opts)
		if err != nil {
			return err
		}
		if opts.Dump {
			if err := Dump(s.out, result, s.cfg.Dump.Format); err != nil {
				return fmt.Errorf("dump generated checks: %w", err)
			}
		} else {
			s.logger.Debug("NOTE! To see generated checks pass --dump-generated-checks")
		}
		if !opts.Create {
			return nil
		}
	}

	runner, cleanup, err := s.buildRunner()
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.Delete {
		_, err = runner.Delete(ctx, splitList(opts.CheckNames), splitList(opts.TagQualifiers))
		return err
	}
	_, err = runner.Create(ctx, result)
	return err
}

// Generate loads the checks file and expands it under the site/check filters.
// Params: run options with checks file and filters.
// Returns: expansion result or load/expand error.
func (s *Service) Generate(opts Options) (*engine.Result, error) {
	filter, err := selector.NewFilter(opts.Sites, opts.CheckNames)
	if err != nil {
		return nil, err
	}
	doc, err := checkconfig.Load(opts.ChecksFile)
	if err != nil {
		return nil, err
	}
	result, err := engine.NewExpander(s.logger, s.runID, filter).Expand(doc)
	if err != nil {
		return nil, fmt.Errorf("generate checks: %w", err)
	}
	return result, nil
}

// buildRunner opens transport, events, and report dispatch for a create or delete run.
func (s *Service) buildRunner() (*Runner, func(), error) {
	transport, err := s.newTransport(s.cfg.API, s.logger)
	if err != nil {
		return nil, nil, err
	}
	dispatcher, err := notify.NewDispatcher(s.cfg.Notify, s.logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(s.cfg.Ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	publisher, err := events.Open(s.cfg.Events)
	if err != nil {
		closeQuietly(s.logger, "ledger", store)
		return nil, nil, fmt.Errorf("open events: %w", err)
	}

	runner := NewRunner(Deps{
		RunID:       s.runID,
		Logger:      s.logger,
		Clock:       s.clock,
		Transport:   transport,
		Ledger:      store,
		Events:      publisher,
		Reporter:    dispatcher,
		Prompter:    NewLinePrompter(s.in, s.out),
		Out:         s.out,
		Concurrency: s.cfg.Create.Concurrency,
		AssumeYes:   s.cfg.Create.AssumeYes,
	})
	cleanup := func() {
		closeQuietly(s.logger, "events", publisher)
		closeQuietly(s.logger, "ledger", store)
	}
	return runner, cleanup, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func closeQuietly(logger *slog.Logger, name string, closer io.Closer) {
	if err := closer.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("close failed", "component", name, "error", err.Error())
	}
}
