package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"checkloader/internal/app"
	"checkloader/internal/clock"
	"checkloader/internal/config"
	"checkloader/internal/logging"
	"checkloader/internal/selector"
)

const defaultChecksFile = "checkconfigs.yaml"

// cliArgs holds parsed command-line values.
type cliArgs struct {
	checksFile    string
	sites         string
	checkNames    string
	apiBaseURL    string
	tokenFile     string
	dump          bool
	dumpFormat    string
	create        bool
	deleteChecks  bool
	tagQualifiers string
	logLevel      string
	logFile       string
	configFile    string
	configDir     string
	assumeYes     bool
	concurrency   int
	showLedger    bool
}

// main generates checks from a declaration file and optionally creates or deletes them.
// Params: CLI flags.
// Returns: process exit code by parse/config/run result.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses args, loads config, and executes one invocation.
// Returns: 2 for usage and config errors, 1 for run failures, 0 otherwise.
func run(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	args, err := parseArgs(argv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 2
	}

	source, err := config.FromCLI(args.configFile, args.configDir)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 2
	}
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "config load failed:", err.Error())
		return 2
	}
	cfg, err = config.ApplyOverrides(cfg, config.Overrides{
		APIBaseURL:  args.apiBaseURL,
		TokenFile:   args.tokenFile,
		LogLevel:    args.logLevel,
		LogFile:     args.logFile,
		DumpFormat:  args.dumpFormat,
		Concurrency: args.concurrency,
		AssumeYes:   args.assumeYes,
	})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "config override failed:", err.Error())
		return 2
	}

	logger, closeLog, err := logging.NewWithWriter(cfg.Log, stdout)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "logger init failed:", err.Error())
		return 2
	}
	defer closeLog()

	service := app.NewService(cfg, logger, clock.RealClock{}, stdin, stdout)
	err = service.Run(ctx, app.Options{
		ChecksFile:    args.checksFile,
		Sites:         args.sites,
		CheckNames:    args.checkNames,
		TagQualifiers: args.tagQualifiers,
		Dump:          args.dump,
		Create:        args.create,
		Delete:        args.deleteChecks,
		ShowLedger:    args.showLedger,
	})
	if err != nil {
		logger.Error("run failed", "run_id", service.RunID(), "error", err.Error())
		return 1
	}
	return 0
}

// parseArgs defines short and long flag aliases and validates action combinations.
func parseArgs(argv []string, stderr io.Writer) (cliArgs, error) {
	var args cliArgs
	fs := flag.NewFlagSet("checkloader", flag.ContinueOnError)
	fs.SetOutput(stderr)

	stringFlag := func(target *string, short, long, value, usage string) {
		fs.StringVar(target, long, value, usage)
		if short != "" {
			fs.StringVar(target, short, value, usage+" (shorthand)")
		}
	}
	boolFlag := func(target *bool, short, long, usage string) {
		fs.BoolVar(target, long, false, usage)
		if short != "" {
			fs.BoolVar(target, short, false, usage+" (shorthand)")
		}
	}

	stringFlag(&args.checksFile, "f", "checks-config-file", defaultChecksFile, "path to the YAML checks declaration file")
	stringFlag(&args.sites, "s", "sites", "", "comma-separated site names or globs to generate, default all")
	stringFlag(&args.checkNames, "c", "check-names", "", "comma-separated check names or globs; with -D, literal check names only (matched as tags)")
	stringFlag(&args.apiBaseURL, "u", "pingdom-api-base-url", "", "monitoring API base URL including version")
	stringFlag(&args.tokenFile, "t", "pingdom-api-token-file", "", "path to file holding the API bearer token")
	boolFlag(&args.dump, "d", "dump-generated-checks", "print generated checks")
	stringFlag(&args.dumpFormat, "", "dump-format", "", "dump format: summary, table, or json")
	boolFlag(&args.create, "x", "create-in-pingdom", "create generated checks at the monitoring service")
	boolFlag(&args.deleteChecks, "D", "delete-in-pingdom", "delete checks matching -c names and -q tag qualifiers")
	stringFlag(&args.tagQualifiers, "q", "delete-tag-qualifiers", "", "comma-separated tags that every deleted check must carry")
	stringFlag(&args.logLevel, "l", "log-level", "", "log level: DEBUG, INFO, WARNING, ERROR")
	stringFlag(&args.logFile, "b", "log-file", "", "write logs to this file instead of stdout")
	stringFlag(&args.configFile, "", "config-file", "", "path to one TOML config file")
	stringFlag(&args.configDir, "", "config-dir", "", "path to directory with TOML config fragments")
	boolFlag(&args.assumeYes, "", "yes", "skip confirmation prompts")
	fs.IntVar(&args.concurrency, "create-concurrency", 0, "number of concurrent create requests")
	boolFlag(&args.showLedger, "", "show-ledger", "print checks recorded in the ledger and exit")

	if err := fs.Parse(argv); err != nil {
		return cliArgs{}, err
	}
	if fs.NArg() > 0 {
		return cliArgs{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if args.create && args.deleteChecks {
		return cliArgs{}, errors.New("--create-in-pingdom and --delete-in-pingdom are mutually exclusive")
	}
	if args.deleteChecks && args.checkNames == "" && args.tagQualifiers == "" {
		return cliArgs{}, errors.New("--delete-in-pingdom requires --check-names or --delete-tag-qualifiers")
	}
	if args.deleteChecks {
		if pattern, ok := selector.HasPattern(args.checkNames); ok {
			return cliArgs{}, fmt.Errorf("--check-names with --delete-in-pingdom takes literal check names, got pattern %q", pattern)
		}
	}
	if args.concurrency < 0 {
		return cliArgs{}, errors.New("--create-concurrency must be >=0")
	}
	return args, nil
}
