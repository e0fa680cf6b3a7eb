package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"checkloader/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultAPIBaseURL        = "https://api.pingdom.com/api/3.1"
	defaultUserAgent         = "checkloader/1.0.0"
	defaultAPITimeoutSec     = 30
	defaultCreateConcurrency = 1
	maxCreateConcurrency     = 32
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultLedgerBucket      = "checkloader_ledger"
	defaultEventsStream      = "CHECKLOADER_EVENTS"
	defaultEventsSubject     = "checkloader.events"
	defaultNATSTimeoutSec    = 5

	// NotifyChannelTelegram identifies Telegram transport.
	NotifyChannelTelegram = "telegram"
	// NotifyChannelHTTP identifies generic HTTP transport.
	NotifyChannelHTTP = "http"
	// NotifyChannelMattermost identifies Mattermost transport.
	NotifyChannelMattermost = "mattermost"

	// DumpFormatSummary prints one banner per check and one summary line per blueprint.
	DumpFormatSummary = "summary"
	// DumpFormatTable prints blueprints as a table.
	DumpFormatTable = "table"
	// DumpFormatJSON prints one JSON document per blueprint.
	DumpFormatJSON = "json"
)

var (
	notifyChannelOrder = []string{
		NotifyChannelTelegram,
		NotifyChannelHTTP,
		NotifyChannelMattermost,
	}
	notifyChannelRegistry = map[string]notifyChannelDescriptor{
		NotifyChannelTelegram: {
			enabled:  func(cfg NotifyConfig) bool { return cfg.Telegram.Enabled },
			retry:    func(cfg NotifyConfig) Retry { return cfg.Telegram.Retry },
			template: func(cfg NotifyConfig) string { return cfg.Telegram.Template },
		},
		NotifyChannelHTTP: {
			enabled:  func(cfg NotifyConfig) bool { return cfg.HTTP.Enabled },
			retry:    func(cfg NotifyConfig) Retry { return cfg.HTTP.Retry },
			template: func(cfg NotifyConfig) string { return cfg.HTTP.Template },
		},
		NotifyChannelMattermost: {
			enabled:  func(cfg NotifyConfig) bool { return cfg.Mattermost.Enabled },
			retry:    func(cfg NotifyConfig) Retry { return cfg.Mattermost.Retry },
			template: func(cfg NotifyConfig) string { return cfg.Mattermost.Template },
		},
	}
	kvBucketPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	streamNamePattern = regexp.MustCompile(`^[^.*>\s]+$`)
)

// notifyChannelDescriptor stores generic accessors for one report transport.
// Params: config readers for enabled/retry/template fields.
// Returns: channel metadata used by generic helpers.
type notifyChannelDescriptor struct {
	enabled  func(NotifyConfig) bool
	retry    func(NotifyConfig) Retry
	template func(NotifyConfig) string
}

// Config holds runtime settings of one checkloader invocation.
// Params: TOML sections from file, merged directory snapshot, or pure defaults.
// Returns: validated runtime configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Log    LogConfig    `toml:"log"`
	Create CreateConfig `toml:"create"`
	Dump   DumpConfig   `toml:"dump"`
	Notify NotifyConfig `toml:"notify"`
	Ledger LedgerConfig `toml:"ledger"`
	Events EventsConfig `toml:"events"`
}

// APIConfig defines the monitoring service endpoint.
// Params: base URL inclusive of version, token file, user agent, timeout, and retry policy.
// Returns: transport settings.
type APIConfig struct {
	BaseURL    string `toml:"base_url"`
	TokenFile  string `toml:"token_file"`
	UserAgent  string `toml:"user_agent"`
	TimeoutSec int    `toml:"timeout_sec"`
	Retry      Retry  `toml:"retry"`
}

// Retry configures outbound request retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy shared by API and report channels.
type Retry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// CreateConfig controls check creation.
// Params: number of concurrent create requests and confirmation bypass.
// Returns: create step settings.
type CreateConfig struct {
	Concurrency int  `toml:"concurrency"`
	AssumeYes   bool `toml:"assume_yes"`
}

// DumpConfig selects generated-check dump rendering.
type DumpConfig struct {
	Format string `toml:"format"`
}

// NotifyConfig groups run report channels.
// Params: per-channel transport settings and failure-only toggle.
// Returns: report dispatch controls.
type NotifyConfig struct {
	OnlyFailures bool               `toml:"only_failures"`
	Telegram     TelegramNotifier   `toml:"telegram"`
	HTTP         HTTPNotifier       `toml:"http"`
	Mattermost   MattermostNotifier `toml:"mattermost"`
}

// TelegramNotifier defines Telegram channel settings.
// Params: enabled flag, bot token, chat ID, API base URL, retry policy, and message template.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"`
	Retry    Retry  `toml:"retry"`
	Template string `toml:"template"`
}

// HTTPNotifier defines generic outbound HTTP report endpoint.
// Params: URL, method, timeout, optional static headers, retry policy, and message template.
// Returns: HTTP report sender configuration.
type HTTPNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Retry      Retry             `toml:"retry"`
	Template   string            `toml:"template"`
}

// MattermostNotifier defines Mattermost API channel settings.
// Params: enabled flag, API base URL, bot token, channel id, retry policy, and message template.
// Returns: Mattermost sender configuration.
type MattermostNotifier struct {
	Enabled    bool   `toml:"enabled"`
	BaseURL    string `toml:"base_url"`
	BotToken   string `toml:"bot_token"`
	ChannelID  string `toml:"channel_id"`
	TimeoutSec int    `toml:"timeout_sec"`
	Retry      Retry  `toml:"retry"`
	Template   string `toml:"template"`
}

// LedgerConfig defines the created-check ledger backend.
// Params: enable flag, NATS URLs, KV bucket, and connect timeout.
// Returns: ledger settings; disabled ledger keeps records in memory.
type LedgerConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        []string `toml:"url"`
	Bucket     string   `toml:"bucket"`
	TimeoutSec int      `toml:"timeout_sec"`
}

// EventsConfig defines lifecycle event publishing.
// Params: enable flag, NATS URLs, stream, subject, and timeout.
// Returns: publisher settings.
type EventsConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        []string `toml:"url"`
	Stream     string   `toml:"stream"`
	Subject    string   `toml:"subject"`
	TimeoutSec int      `toml:"timeout_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ConfigSource describes file or directory config source.
// Params: at most one of file path or directory path; both empty means defaults only.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// Empty reports whether no config source was given.
func (s ConfigSource) Empty() bool {
	return s.File == "" && s.Dir == ""
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}
	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file, directory, or defaults-only mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	switch {
	case src.File != "":
		cfg, err = loadFile(src.File)
	case src.Dir != "":
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Overrides carries command-line values that take precedence over file settings.
// Params: zero fields leave the snapshot value untouched.
// Returns: override set for ApplyOverrides.
type Overrides struct {
	APIBaseURL  string
	TokenFile   string
	LogLevel    string
	LogFile     string
	DumpFormat  string
	Concurrency int
	AssumeYes   bool
}

// ApplyOverrides applies command-line values on top of a loaded snapshot.
// A log file override moves logging from the console to that file.
// Params: validated snapshot and command-line overrides.
// Returns: re-validated config or validation error.
func ApplyOverrides(cfg Config, o Overrides) (Config, error) {
	if value := strings.TrimSpace(o.APIBaseURL); value != "" {
		cfg.API.BaseURL = strings.TrimRight(value, "/")
	}
	if value := strings.TrimSpace(o.TokenFile); value != "" {
		cfg.API.TokenFile = value
	}
	if value := strings.TrimSpace(o.LogLevel); value != "" {
		level := NormalizeLogLevel(value)
		cfg.Log.Console.Level = level
		cfg.Log.File.Level = level
	}
	if value := strings.TrimSpace(o.LogFile); value != "" {
		cfg.Log.File.Enabled = true
		cfg.Log.File.Path = value
		cfg.Log.Console.Enabled = false
	}
	if value := strings.TrimSpace(o.DumpFormat); value != "" {
		cfg.Dump.Format = strings.ToLower(value)
	}
	if o.Concurrency > 0 {
		cfg.Create.Concurrency = o.Concurrency
	}
	if o.AssumeYes {
		cfg.Create.AssumeYes = true
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configMergeHints carries explicit bool-presence markers used for directory overlays.
// Params: sparse fields decoded from one TOML fragment.
// Returns: merge behavior hints for zero-value bool overrides.
type configMergeHints struct {
	API    apiMergeHints    `toml:"api"`
	Create createMergeHints `toml:"create"`
	Notify notifyMergeHints `toml:"notify"`
	Ledger enabledHint      `toml:"ledger"`
	Events enabledHint      `toml:"events"`
}

type apiMergeHints struct {
	Retry enabledHint `toml:"retry"`
}

type createMergeHints struct {
	AssumeYes *bool `toml:"assume_yes"`
}

// notifyMergeHints tracks explicit bool fields in notify section.
// Params: sparse notify values decoded from one TOML fragment.
// Returns: bool-presence markers for merge logic.
type notifyMergeHints struct {
	OnlyFailures *bool       `toml:"only_failures"`
	Telegram     enabledHint `toml:"telegram"`
	HTTP         enabledHint `toml:"http"`
	Mattermost   enabledHint `toml:"mattermost"`
}

// enabledHint tracks an explicit enabled flag in one section.
type enabledHint struct {
	Enabled *bool `toml:"enabled"`
}

// hasExplicitBool reports whether notify fragment contains explicit bool keys.
// Params: notify merge hints from one TOML fragment.
// Returns: true when at least one bool was explicitly set.
func (h notifyMergeHints) hasExplicitBool() bool {
	return h.OnlyFailures != nil ||
		h.Telegram.Enabled != nil ||
		h.HTTP.Enabled != nil ||
		h.Mattermost.Enabled != nil
}

// decodeFile reads one TOML file.
// Params: file path to config fragment.
// Returns: decoded config plus explicit-bool hints for overlay merge.
func decodeFile(path string) (Config, configMergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var hints configMergeHints
	if err := toml.Unmarshal(body, &hints); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode merge hints %q: %w", path, err)
	}
	return cfg, hints, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	cfg, _, err := decodeFile(path)
	return cfg, err
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := decodeFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination.
// Params: destination config, next fragment, and its bool hints.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints configMergeHints) {
	mergeAPIConfig(&dst.API, src.API, hints.API)
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if src.Create.Concurrency != 0 {
		dst.Create.Concurrency = src.Create.Concurrency
	}
	applyBoolMerge(&dst.Create.AssumeYes, src.Create.AssumeYes, hints.Create.AssumeYes)
	if strings.TrimSpace(src.Dump.Format) != "" {
		dst.Dump.Format = src.Dump.Format
	}
	if hasNotifyConfig(src.Notify) || hints.Notify.hasExplicitBool() {
		mergeNotifyConfig(&dst.Notify, src.Notify, hints.Notify)
	}
	mergeLedgerConfig(&dst.Ledger, src.Ledger, hints.Ledger)
	mergeEventsConfig(&dst.Events, src.Events, hints.Events)
}

func mergeAPIConfig(dst *APIConfig, src APIConfig, hints apiMergeHints) {
	if strings.TrimSpace(src.BaseURL) != "" {
		dst.BaseURL = src.BaseURL
	}
	if strings.TrimSpace(src.TokenFile) != "" {
		dst.TokenFile = src.TokenFile
	}
	if strings.TrimSpace(src.UserAgent) != "" {
		dst.UserAgent = src.UserAgent
	}
	if src.TimeoutSec != 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
	if src.Retry != (Retry{}) {
		dst.Retry = src.Retry
	}
	applyBoolMerge(&dst.Retry.Enabled, src.Retry.Enabled, hints.Retry.Enabled)
}

// mergeNotifyConfig overlays notify fragment into destination preserving existing sibling fields.
// Params: destination notify config and fragment from one source file.
// Returns: merged notify config side-effect in dst.
func mergeNotifyConfig(dst *NotifyConfig, src NotifyConfig, hints notifyMergeHints) {
	applyBoolMerge(&dst.OnlyFailures, src.OnlyFailures, hints.OnlyFailures)
	mergeTelegramNotifier(&dst.Telegram, src.Telegram, hints.Telegram)
	mergeHTTPNotifier(&dst.HTTP, src.HTTP, hints.HTTP)
	mergeMattermostNotifier(&dst.Mattermost, src.Mattermost, hints.Mattermost)
}

// mergeTelegramNotifier overlays telegram transport config preserving other notify fields.
// Params: destination telegram config and source fragment.
// Returns: merged telegram configuration side-effect in dst.
func mergeTelegramNotifier(dst *TelegramNotifier, src TelegramNotifier, hints enabledHint) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if strings.TrimSpace(src.BotToken) != "" {
		dst.BotToken = src.BotToken
	}
	if strings.TrimSpace(src.ChatID) != "" {
		dst.ChatID = src.ChatID
	}
	if strings.TrimSpace(src.APIBase) != "" {
		dst.APIBase = src.APIBase
	}
	if src.Retry != (Retry{}) {
		dst.Retry = src.Retry
	}
	if strings.TrimSpace(src.Template) != "" {
		dst.Template = src.Template
	}
}

// mergeHTTPNotifier overlays HTTP transport config preserving other notify fields.
// Params: destination http config and source fragment.
// Returns: merged http configuration side-effect in dst.
func mergeHTTPNotifier(dst *HTTPNotifier, src HTTPNotifier, hints enabledHint) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if strings.TrimSpace(src.URL) != "" {
		dst.URL = src.URL
	}
	if strings.TrimSpace(src.Method) != "" {
		dst.Method = src.Method
	}
	if src.TimeoutSec != 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
	if len(src.Headers) > 0 {
		if dst.Headers == nil {
			dst.Headers = make(map[string]string, len(src.Headers))
		}
		for key, value := range src.Headers {
			dst.Headers[key] = value
		}
	}
	if src.Retry != (Retry{}) {
		dst.Retry = src.Retry
	}
	if strings.TrimSpace(src.Template) != "" {
		dst.Template = src.Template
	}
}

// mergeMattermostNotifier overlays mattermost transport config preserving other notify fields.
// Params: destination mattermost config and source fragment.
// Returns: merged mattermost configuration side-effect in dst.
func mergeMattermostNotifier(dst *MattermostNotifier, src MattermostNotifier, hints enabledHint) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if strings.TrimSpace(src.BaseURL) != "" {
		dst.BaseURL = src.BaseURL
	}
	if strings.TrimSpace(src.BotToken) != "" {
		dst.BotToken = src.BotToken
	}
	if strings.TrimSpace(src.ChannelID) != "" {
		dst.ChannelID = src.ChannelID
	}
	if src.TimeoutSec != 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
	if src.Retry != (Retry{}) {
		dst.Retry = src.Retry
	}
	if strings.TrimSpace(src.Template) != "" {
		dst.Template = src.Template
	}
}

func mergeLedgerConfig(dst *LedgerConfig, src LedgerConfig, hints enabledHint) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if len(src.URL) > 0 {
		dst.URL = append([]string(nil), src.URL...)
	}
	if strings.TrimSpace(src.Bucket) != "" {
		dst.Bucket = src.Bucket
	}
	if src.TimeoutSec != 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
}

func mergeEventsConfig(dst *EventsConfig, src EventsConfig, hints enabledHint) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if len(src.URL) > 0 {
		dst.URL = append([]string(nil), src.URL...)
	}
	if strings.TrimSpace(src.Stream) != "" {
		dst.Stream = src.Stream
	}
	if strings.TrimSpace(src.Subject) != "" {
		dst.Subject = src.Subject
	}
	if src.TimeoutSec != 0 {
		dst.TimeoutSec = src.TimeoutSec
	}
}

// applyBoolMerge updates bool field using explicit marker when present.
// Params: destination bool pointer, decoded value, and explicit marker.
// Returns: merged bool side-effect in dst.
func applyBoolMerge(dst *bool, value bool, explicit *bool) {
	if explicit != nil {
		*dst = *explicit
		return
	}
	if value {
		*dst = true
	}
}

// hasNotifyConfig reports whether notify fragment carries non-bool values.
func hasNotifyConfig(cfg NotifyConfig) bool {
	return cfg.OnlyFailures ||
		cfg.Telegram != (TelegramNotifier{}) ||
		!isZeroHTTPNotifier(cfg.HTTP) ||
		cfg.Mattermost != (MattermostNotifier{})
}

func isZeroHTTPNotifier(cfg HTTPNotifier) bool {
	return !cfg.Enabled &&
		cfg.URL == "" &&
		cfg.Method == "" &&
		cfg.TimeoutSec == 0 &&
		len(cfg.Headers) == 0 &&
		cfg.Retry == (Retry{}) &&
		cfg.Template == ""
}

// applyDefaults fills omitted config fields with safe defaults.
// Params: cfg pointer to decoded snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		cfg.API.BaseURL = defaultAPIBaseURL
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if strings.TrimSpace(cfg.API.UserAgent) == "" {
		cfg.API.UserAgent = defaultUserAgent
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = defaultAPITimeoutSec
	}
	fillRetryDefaults(&cfg.API.Retry)

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "debug"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "debug"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "line"
	}
	cfg.Log.Console.Level = NormalizeLogLevel(cfg.Log.Console.Level)
	cfg.Log.File.Level = NormalizeLogLevel(cfg.Log.File.Level)
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if cfg.Create.Concurrency <= 0 {
		cfg.Create.Concurrency = defaultCreateConcurrency
	}
	if strings.TrimSpace(cfg.Dump.Format) == "" {
		cfg.Dump.Format = DumpFormatSummary
	}
	cfg.Dump.Format = strings.ToLower(strings.TrimSpace(cfg.Dump.Format))

	if cfg.Notify.Telegram.APIBase == "" {
		cfg.Notify.Telegram.APIBase = "https://api.telegram.org"
	}
	fillRetryDefaults(&cfg.Notify.Telegram.Retry)
	if cfg.Notify.HTTP.Method == "" {
		cfg.Notify.HTTP.Method = "POST"
	}
	if cfg.Notify.HTTP.TimeoutSec <= 0 {
		cfg.Notify.HTTP.TimeoutSec = 10
	}
	fillRetryDefaults(&cfg.Notify.HTTP.Retry)
	if cfg.Notify.Mattermost.TimeoutSec <= 0 {
		cfg.Notify.Mattermost.TimeoutSec = 10
	}
	fillRetryDefaults(&cfg.Notify.Mattermost.Retry)

	cfg.Ledger.URL = normalizeNATSURLs(cfg.Ledger.URL)
	if len(cfg.Ledger.URL) == 0 {
		cfg.Ledger.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Ledger.Bucket) == "" {
		cfg.Ledger.Bucket = defaultLedgerBucket
	}
	if cfg.Ledger.TimeoutSec <= 0 {
		cfg.Ledger.TimeoutSec = defaultNATSTimeoutSec
	}

	cfg.Events.URL = normalizeNATSURLs(cfg.Events.URL)
	if len(cfg.Events.URL) == 0 {
		cfg.Events.URL = append([]string(nil), cfg.Ledger.URL...)
	}
	if strings.TrimSpace(cfg.Events.Stream) == "" {
		cfg.Events.Stream = defaultEventsStream
	}
	if strings.TrimSpace(cfg.Events.Subject) == "" {
		cfg.Events.Subject = defaultEventsSubject
	}
	if cfg.Events.TimeoutSec <= 0 {
		cfg.Events.TimeoutSec = defaultNATSTimeoutSec
	}
}

// fillRetryDefaults normalizes retry policy fields.
// Params: retry policy pointer.
// Returns: policy defaults applied in place.
func fillRetryDefaults(retry *Retry) {
	if retry == nil {
		return
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = 500
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = 60000
	}
}

// validateConfig validates full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if err := validateBaseURL("api.base_url", cfg.API.BaseURL); err != nil {
		return err
	}
	if cfg.API.TimeoutSec <= 0 {
		return errors.New("api.timeout_sec must be >0")
	}
	if err := validateRetry("api.retry", cfg.API.Retry); err != nil {
		return err
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	if cfg.Create.Concurrency <= 0 || cfg.Create.Concurrency > maxCreateConcurrency {
		return fmt.Errorf("create.concurrency must be in range 1..%d", maxCreateConcurrency)
	}
	switch cfg.Dump.Format {
	case DumpFormatSummary, DumpFormatTable, DumpFormatJSON:
	default:
		return fmt.Errorf("dump.format has unsupported value %q", cfg.Dump.Format)
	}

	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when notify.telegram.enabled=true")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when notify.telegram.enabled=true")
		}
	}
	if cfg.Notify.HTTP.Enabled {
		if err := validateBaseURL("notify.http.url", cfg.Notify.HTTP.URL); err != nil {
			return err
		}
	}
	if cfg.Notify.Mattermost.Enabled {
		if strings.TrimSpace(cfg.Notify.Mattermost.BaseURL) == "" {
			return errors.New("notify.mattermost.base_url is required when notify.mattermost.enabled=true")
		}
		if strings.TrimSpace(cfg.Notify.Mattermost.BotToken) == "" {
			return errors.New("notify.mattermost.bot_token is required when notify.mattermost.enabled=true")
		}
		if strings.TrimSpace(cfg.Notify.Mattermost.ChannelID) == "" {
			return errors.New("notify.mattermost.channel_id is required when notify.mattermost.enabled=true")
		}
	}
	for _, channel := range notifyChannelOrder {
		if !NotifyChannelEnabled(cfg.Notify, channel) {
			continue
		}
		path := "notify." + channel
		if err := validateRetry(path+".retry", NotifyChannelRetry(cfg.Notify, channel)); err != nil {
			return err
		}
		if body := NotifyChannelTemplate(cfg.Notify, channel); strings.TrimSpace(body) != "" {
			if err := validateMessageTemplate(path+".template", body); err != nil {
				return err
			}
		}
	}

	if cfg.Ledger.Enabled {
		if err := validateNATSURLs("ledger.url", cfg.Ledger.URL); err != nil {
			return err
		}
		if !kvBucketPattern.MatchString(cfg.Ledger.Bucket) {
			return fmt.Errorf("ledger.bucket has unsupported value %q", cfg.Ledger.Bucket)
		}
	}
	if cfg.Events.Enabled {
		if err := validateNATSURLs("events.url", cfg.Events.URL); err != nil {
			return err
		}
		if !streamNamePattern.MatchString(cfg.Events.Stream) {
			return fmt.Errorf("events.stream has unsupported value %q", cfg.Events.Stream)
		}
		if strings.ContainsAny(cfg.Events.Subject, " *>") || strings.TrimSpace(cfg.Events.Subject) == "" {
			return fmt.Errorf("events.subject has unsupported value %q", cfg.Events.Subject)
		}
	}
	return nil
}

func validateBaseURL(path, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", path)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", path)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", path)
	}
	return nil
}

func validateRetry(path string, retry Retry) error {
	if !retry.Enabled {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(retry.Backoff)) {
	case "exponential", "constant":
	default:
		return fmt.Errorf("%s.backoff has unsupported value %q", path, retry.Backoff)
	}
	if retry.MaxAttempts < 0 {
		return fmt.Errorf("%s.max_attempts must be >=0", path)
	}
	if retry.MaxMS < retry.InitialMS {
		return fmt.Errorf("%s.max_ms must be >= initial_ms", path)
	}
	return nil
}

func validateNATSURLs(path string, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%s is required", path)
	}
	for i, item := range urls {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%s[%d] is empty", path, i)
		}
	}
	return nil
}

// normalizeNATSURLs trims and drops empty NATS URLs.
// Params: raw URL list.
// Returns: cleaned list.
func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, item := range urls {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// NormalizeLogLevel maps level names to sink level keys.
// Params: raw level such as DEBUG, info, WARNING, or CRITICAL.
// Returns: lowercase level accepted by the logging package.
func NormalizeLogLevel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "warning":
		return "warn"
	case "critical", "fatal":
		return "error"
	default:
		return normalized
	}
}

// NormalizeNotifyChannel canonicalizes notify channel keys.
// Params: raw channel name from config.
// Returns: normalized lowercase channel key.
func NormalizeNotifyChannel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NotifyChannelNames returns deterministic list of supported channel keys.
// Params: none.
// Returns: ordered channel key list.
func NotifyChannelNames() []string {
	out := make([]string, len(notifyChannelOrder))
	copy(out, notifyChannelOrder)
	return out
}

// IsSupportedNotifyChannel reports whether channel key is supported.
func IsSupportedNotifyChannel(channel string) bool {
	_, exists := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	return exists
}

// NotifyChannelEnabled checks if channel transport is enabled.
// Params: notify config and channel key.
// Returns: true when corresponding transport section is enabled.
func NotifyChannelEnabled(cfg NotifyConfig, channel string) bool {
	descriptor, ok := notifyChannelDescriptorByName(channel)
	if !ok || descriptor.enabled == nil {
		return false
	}
	return descriptor.enabled(cfg)
}

// NotifyChannelRetry returns retry policy for one channel.
// Params: notify config and channel key.
// Returns: retry policy for channel transport.
func NotifyChannelRetry(cfg NotifyConfig, channel string) Retry {
	descriptor, ok := notifyChannelDescriptorByName(channel)
	if !ok || descriptor.retry == nil {
		return Retry{}
	}
	return descriptor.retry(cfg)
}

// NotifyChannelTemplate returns the configured message template for one channel.
// Params: notify config and channel key.
// Returns: template body or empty string for the built-in template.
func NotifyChannelTemplate(cfg NotifyConfig, channel string) string {
	descriptor, ok := notifyChannelDescriptorByName(channel)
	if !ok || descriptor.template == nil {
		return ""
	}
	return descriptor.template(cfg)
}

func notifyChannelDescriptorByName(channel string) (notifyChannelDescriptor, bool) {
	descriptor, exists := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	return descriptor, exists
}

// validateMessageTemplate parses one text template and checks it is non-empty.
// Params: field path and template body.
// Returns: parse/empty error.
func validateMessageTemplate(path, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return fmt.Errorf("%s is required", path)
	}
	if _, err := templatefmt.ParseReportTemplate(path, trimmed); err != nil {
		return fmt.Errorf("%s is invalid: %w", path, err)
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error", "panic":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}
