package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/template"
	"time"

	"checkloader/internal/config"
	"checkloader/internal/retry"
	"checkloader/internal/templatefmt"
)

// Report actions.
const (
	ActionCreate = "create"
	ActionDelete = "delete"
)

// DefaultTemplate renders a report when a channel has no template configured.
const DefaultTemplate = `checkloader {{ .Action }} run {{ .RunID }}: created={{ comma .Created }} failed={{ comma .Failed }} deleted={{ comma .Deleted }} in {{ fmtDuration .Duration }}`

// Report summarizes one create or delete run for outbound channels.
// Params: run identity, action, counters, affected check names, and timing.
// Returns: template data and HTTP channel payload.
type Report struct {
	RunID     string        `json:"run_id"`
	Action    string        `json:"action"`
	Created   int           `json:"created"`
	Failed    int           `json:"failed"`
	Deleted   int           `json:"deleted"`
	Checks    []string      `json:"checks"`
	Errors    []string      `json:"errors,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Channel   string        `json:"channel"`
	Message   string        `json:"message"`
}

// HasFailures reports whether any check operation failed.
func (r Report) HasFailures() bool {
	return r.Failed > 0 || len(r.Errors) > 0
}

// SendResult identifies the delivered message when the channel returns an id.
type SendResult struct {
	MessageID   int
	ExternalRef string
}

// ChannelSender sends one rendered report to one channel.
// Params: context and report with Message set.
// Returns: channel send metadata and transport error when send fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, report Report) (SendResult, error)
}

// Dispatcher delivers run reports with per-channel retries and templates.
type Dispatcher struct {
	senders      map[string]ChannelSender
	channels     []string
	retries      map[string]config.Retry
	templates    map[string]*template.Template
	onlyFailures bool
	logger       *slog.Logger
}

// NewDispatcher builds report dispatcher from enabled channels.
// Params: notify config and optional logger.
// Returns: dispatcher or template parse error.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		senders:      make(map[string]ChannelSender),
		retries:      make(map[string]config.Retry),
		templates:    make(map[string]*template.Template),
		onlyFailures: cfg.OnlyFailures,
		logger:       logger,
	}
	for _, channel := range config.NotifyChannelNames() {
		if !config.NotifyChannelEnabled(cfg, channel) {
			continue
		}
		factory, ok := senderFactories[channel]
		if !ok {
			continue
		}
		sender := factory(cfg)
		body := config.NotifyChannelTemplate(cfg, channel)
		if strings.TrimSpace(body) == "" {
			body = DefaultTemplate
		}
		compiled, err := templatefmt.ParseReportTemplate("notify."+channel+".template", body)
		if err != nil {
			return nil, fmt.Errorf("parse notify.%s.template: %w", channel, err)
		}
		d.register(sender, config.NotifyChannelRetry(cfg, channel), compiled)
	}
	return d, nil
}

// register adds one sender under its channel key.
func (d *Dispatcher) register(sender ChannelSender, policy config.Retry, compiled *template.Template) {
	channel := sender.Channel()
	d.senders[channel] = sender
	d.retries[channel] = policy
	d.templates[channel] = compiled
	d.channels = d.channels[:0]
	for name := range d.senders {
		d.channels = append(d.channels, name)
	}
	sort.Strings(d.channels)
}

// senderFactories builds the sender of each supported channel from the notify config.
var senderFactories = map[string]func(config.NotifyConfig) ChannelSender{
	config.NotifyChannelTelegram:   func(cfg config.NotifyConfig) ChannelSender { return NewTelegramSender(cfg.Telegram) },
	config.NotifyChannelHTTP:       func(cfg config.NotifyConfig) ChannelSender { return NewHTTPSender(cfg.HTTP) },
	config.NotifyChannelMattermost: func(cfg config.NotifyConfig) ChannelSender { return NewMattermostSender(cfg.Mattermost) },
}

// Channels lists registered channels in name order.
func (d *Dispatcher) Channels() []string {
	return append([]string(nil), d.channels...)
}

// Dispatch sends the report to every configured channel.
// With only_failures set, reports without failures are skipped.
// Params: context and report.
// Returns: joined channel errors; nil when all channels succeed.
func (d *Dispatcher) Dispatch(ctx context.Context, report Report) error {
	if d == nil || len(d.channels) == 0 {
		return nil
	}
	if d.onlyFailures && !report.HasFailures() {
		return nil
	}
	var errs []error
	for _, channel := range d.channels {
		if _, err := d.Send(ctx, channel, report); err != nil {
			if d.logger != nil {
				d.logger.Error("run report delivery failed", "channel", channel, "run_id", report.RunID, "error", err.Error())
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send renders and sends one report to one channel with its retry policy.
// Params: destination channel and report.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) Send(ctx context.Context, channel string, report Report) (SendResult, error) {
	sender, ok := d.senders[channel]
	if !ok {
		return SendResult{}, fmt.Errorf("notify channel %q is not configured", channel)
	}

	rendered := report
	rendered.Channel = channel
	message, err := renderMessage(d.templates[channel], rendered)
	if err != nil {
		return SendResult{}, err
	}
	rendered.Message = message

	var result SendResult
	err = retry.Do(ctx, d.retries[channel], d.logger, "notify "+channel, func(ctx context.Context) error {
		var sendErr error
		result, sendErr = sender.Send(ctx, rendered)
		return sendErr
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("channel %s: %w", channel, err)
	}
	return result, nil
}

// renderMessage executes the channel template against the report.
func renderMessage(tmpl *template.Template, report Report) (string, error) {
	if tmpl == nil {
		return "", fmt.Errorf("notify template for channel %q is not configured", report.Channel)
	}
	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, report); err != nil {
		return "", fmt.Errorf("render notify template for channel %q: %w", report.Channel, err)
	}
	return rendered.String(), nil
}
