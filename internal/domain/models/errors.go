package models

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicate            = errors.New("duplicate")
	ErrMissingAccount       = errors.New("Missing account_state")
	ErrMissingInstruments   = errors.New("Missing instruments")
	ErrMissingAPIKey        = errors.New("Missing TWELVE_DATA_API_KEY")
	ErrChannelNotConfigured = errors.New("channel not configured")
)
