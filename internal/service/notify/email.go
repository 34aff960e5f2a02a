package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"FxPipe/internal/domain/models"
	xhttp "FxPipe/pkg/http"
)

const DefaultResendURL = "https://api.resend.com"

// EmailConfig holds Resend credentials and addresses.
type EmailConfig struct {
	BaseURL string
	APIKey  string
	From    string
	To      string
}

// Email sends HTML plus text mail through Resend.
type Email struct {
	cfg  EmailConfig
	http *xhttp.Client
}

func NewEmail(cfg EmailConfig, client *xhttp.Client) *Email {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultResendURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Email{cfg: cfg, http: client}
}

func (e *Email) Name() models.Channel { return models.ChannelEmail }

type resendEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

func (e *Email) Send(ctx context.Context, ev models.NotificationEvent) error {
	if e.cfg.APIKey == "" || e.cfg.From == "" || e.cfg.To == "" {
		return errResendConfig
	}
	subject := ev.Payload.Title
	if subject == "" {
		subject = "Trade Alert"
	}
	err := e.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     e.cfg.BaseURL + "/emails",
		Headers: map[string]string{"Authorization": "Bearer " + e.cfg.APIKey},
		Body: resendEmail{
			From:    e.cfg.From,
			To:      e.cfg.To,
			Subject: subject,
			HTML:    FormatHTML(ev.Payload),
			Text:    FormatText(ev.Payload),
		},
	}, nil)
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("Resend error: %d", se.StatusCode)
	}
	return err
}
