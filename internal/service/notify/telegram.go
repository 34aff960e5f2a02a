package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"FxPipe/internal/domain/models"
	xhttp "FxPipe/pkg/http"
)

const DefaultTelegramURL = "https://api.telegram.org"

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BaseURL  string
	BotToken string
	ChatID   string
}

// Telegram posts the text alert through the Bot API.
type Telegram struct {
	cfg  TelegramConfig
	http *xhttp.Client
}

func NewTelegram(cfg TelegramConfig, client *xhttp.Client) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTelegramURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Telegram{cfg: cfg, http: client}
}

func (t *Telegram) Name() models.Channel { return models.ChannelTelegram }

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

func (t *Telegram) Send(ctx context.Context, ev models.NotificationEvent) error {
	if t.cfg.BotToken == "" || t.cfg.ChatID == "" {
		return errTelegramConfig
	}
	err := t.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken),
		Body: telegramMessage{
			ChatID:                t.cfg.ChatID,
			Text:                  FormatText(ev.Payload),
			DisableWebPagePreview: true,
		},
	}, nil)
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("Telegram error: %d", se.StatusCode)
	}
	return err
}
