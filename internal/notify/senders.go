package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"checkloader/internal/config"
	"checkloader/internal/permanent"

	tgbot "github.com/go-telegram/bot"
)

const (
	maxErrorBody       = 512
	defaultSendTimeout = 10 * time.Second
)

// TelegramSender posts reports as plain-text bot messages.
// Check names carry slashes and underscores, so no parse mode is used.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates Telegram sender.
// Params: Telegram notifier config.
// Returns: sender; configuration problems surface as permanent errors on Send.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{chatID: telegramChatID(cfg.ChatID)}
	switch {
	case strings.TrimSpace(cfg.BotToken) == "":
		sender.initErr = errors.New("telegram bot_token is required")
	case strings.TrimSpace(cfg.ChatID) == "":
		sender.initErr = errors.New("telegram chat_id is required")
	default:
		sender.client, sender.initErr = tgbot.New(
			cfg.BotToken,
			tgbot.WithSkipGetMe(),
			tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
		)
		if sender.initErr != nil {
			sender.initErr = fmt.Errorf("init telegram bot: %w", sender.initErr)
		}
	}
	return sender
}

func (s *TelegramSender) Channel() string {
	return config.NotifyChannelTelegram
}

// Send posts report.Message to the configured chat.
func (s *TelegramSender) Send(ctx context.Context, report Report) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, permanent.Mark(s.initErr)
	}
	message, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: s.chatID, Text: report.Message})
	if err != nil {
		return SendResult{}, fmt.Errorf("telegram send: %w", err)
	}
	if message == nil || message.ID <= 0 {
		return SendResult{}, errors.New("telegram send returned no message id")
	}
	return SendResult{MessageID: message.ID}, nil
}

// telegramChatID keeps @channel names as strings and sends numeric ids as int64.
func telegramChatID(raw string) any {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	return raw
}

// HTTPSender delivers the full report as JSON to a webhook.
type HTTPSender struct {
	cfg    config.HTTPNotifier
	client *http.Client
}

// NewHTTPSender creates generic webhook sender.
func NewHTTPSender(cfg config.HTTPNotifier) *HTTPSender {
	return &HTTPSender{cfg: cfg, client: &http.Client{Timeout: sendTimeout(cfg.TimeoutSec)}}
}

func (s *HTTPSender) Channel() string {
	return config.NotifyChannelHTTP
}

// Send issues the configured method (POST by default) with the report body and extra headers.
func (s *HTTPSender) Send(ctx context.Context, report Report) (SendResult, error) {
	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	err := sendJSON(ctx, s.client, "http notify", method, s.cfg.URL, s.cfg.Headers, report, nil)
	return SendResult{}, err
}

// MattermostSender creates posts through the Mattermost v4 API with a bot token.
type MattermostSender struct {
	cfg    config.MattermostNotifier
	client *http.Client
}

// NewMattermostSender creates Mattermost sender.
func NewMattermostSender(cfg config.MattermostNotifier) *MattermostSender {
	return &MattermostSender{cfg: cfg, client: &http.Client{Timeout: sendTimeout(cfg.TimeoutSec)}}
}

func (s *MattermostSender) Channel() string {
	return config.NotifyChannelMattermost
}

// Send posts report.Message to the configured channel.
// Returns: created post id as external ref.
func (s *MattermostSender) Send(ctx context.Context, report Report) (SendResult, error) {
	post := struct {
		ChannelID string `json:"channel_id"`
		Message   string `json:"message"`
	}{ChannelID: strings.TrimSpace(s.cfg.ChannelID), Message: report.Message}
	var created struct {
		ID string `json:"id"`
	}

	endpoint := strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/") + "/api/v4/posts"
	headers := map[string]string{"Authorization": "Bearer " + strings.TrimSpace(s.cfg.BotToken)}
	if err := sendJSON(ctx, s.client, "mattermost", http.MethodPost, endpoint, headers, post, &created); err != nil {
		return SendResult{}, err
	}
	if strings.TrimSpace(created.ID) == "" {
		return SendResult{}, errors.New("mattermost response missing id")
	}
	return SendResult{ExternalRef: created.ID}, nil
}

// sendJSON encodes payload, sends it, and decodes a 2xx response into out when out is non-nil.
// Encoding and request construction failures are permanent; non-2xx statuses are classified
// by permanent.FromStatus.
func sendJSON(ctx context.Context, client *http.Client, op, method, endpoint string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return permanent.Mark(fmt.Errorf("encode %s payload: %w", op, err))
	}
	request, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return permanent.Mark(fmt.Errorf("build %s request: %w", op, err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("%s send: %w", op, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		return permanent.FromStatus(op, response.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func sendTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultSendTimeout
	}
	return time.Duration(seconds) * time.Second
}
