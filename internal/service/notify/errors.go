package notify

import "FxPipe/internal/domain/models"

// configError carries the operator-facing message and matches
// models.ErrChannelNotConfigured.
type configError string

func (e configError) Error() string { return string(e) }

func (e configError) Is(target error) bool { return target == models.ErrChannelNotConfigured }

const (
	errTelegramConfig configError = "Missing Telegram config"
	errResendConfig   configError = "Missing Resend config"
	errVAPIDConfig    configError = "Missing VAPID config"
)
