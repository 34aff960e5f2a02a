package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"FxPipe/internal/domain/models"
	xhttp "FxPipe/pkg/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

var alert = models.NotificationEvent{
	ID: "ev1",
	Payload: models.AlertPayload{
		Title: "TRADE ALERT: EURUSD H1 BUY", Symbol: "EURUSD", TF: "H1", Side: "BUY",
		Entry: 1.102, SL: 1.0988, TP1: 1.11, RR: 2.5, Lots: 0.25,
		ExpiresAt: "2024-03-01T16:00:00Z", URL: "https://app.example/signals/s1",
	},
}

func TestFormatText(t *testing.T) {
	got := FormatText(alert.Payload)
	want := strings.Join([]string{
		"TRADE ALERT: EURUSD H1 BUY",
		"Symbol: EURUSD",
		"Side: BUY",
		"Entry: 1.102",
		"SL: 1.0988",
		"TP: 1.11",
		"RR: 2.5",
		"Lots: 0.25",
		"Expires: 2024-03-01T16:00:00Z",
		"Link: https://app.example/signals/s1",
	}, "\n")
	if got != want {
		t.Fatalf("FormatText:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatHTMLEscapes(t *testing.T) {
	p := alert.Payload
	p.Title = "<b>x</b>"
	if h := FormatHTML(p); strings.Contains(h, "<b>x</b>") || !strings.Contains(h, "Open dashboard") {
		t.Fatalf("unexpected html %s", h)
	}
}

func TestTelegramSend(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{BaseURL: srv.URL, BotToken: "TOKEN", ChatID: "42"}, xhttp.NewClient())
	if err := tg.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}
	if body["chat_id"] != "42" || body["disable_web_page_preview"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestTelegramHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{BaseURL: srv.URL, BotToken: "T", ChatID: "1"}, xhttp.NewClient())
	err := tg.Send(context.Background(), alert)
	if err == nil || err.Error() != "Telegram error: 403" {
		t.Fatalf("err = %v, want Telegram error: 403", err)
	}
}

func TestMissingConfig(t *testing.T) {
	chans := []interface {
		Send(context.Context, models.NotificationEvent) error
	}{
		NewTelegram(TelegramConfig{}, xhttp.NewClient()),
		NewEmail(EmailConfig{APIKey: "k"}, xhttp.NewClient()),
		NewPush(PushConfig{}, nil, nil),
	}
	wants := []string{"Missing Telegram config", "Missing Resend config", "Missing VAPID config"}
	for i, c := range chans {
		err := c.Send(context.Background(), alert)
		if err == nil || err.Error() != wants[i] || !errors.Is(err, models.ErrChannelNotConfigured) {
			t.Fatalf("channel %d err = %v, want %q", i, err, wants[i])
		}
	}
}

func TestEmailSend(t *testing.T) {
	var auth string
	var got resendEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	}))
	defer srv.Close()

	e := NewEmail(EmailConfig{BaseURL: srv.URL, APIKey: "re_key", From: "a@x", To: "b@x"}, xhttp.NewClient())
	ev := alert
	ev.Payload.Title = ""
	if err := e.Send(context.Background(), ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer re_key" {
		t.Fatalf("auth = %q", auth)
	}
	if got.Subject != "Trade Alert" || got.Text == "" || got.HTML == "" {
		t.Fatalf("unexpected email %+v", got)
	}
}

type subs []models.PushSubscription

func (s subs) PushSubscriptions(context.Context) ([]models.PushSubscription, error) { return s, nil }

func fakeSend(status int, calls *int32, lastMsg *[]byte) sendFunc {
	return func(_ context.Context, msg []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		atomic.AddInt32(calls, 1)
		*lastMsg = msg
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
}

func TestPushFanOut(t *testing.T) {
	cfg := PushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", Subject: "mailto:ops@example.com", Concurrency: 1}
	var calls int32
	var msg []byte
	p := NewPush(cfg, subs{{Endpoint: "https://a"}, {Endpoint: "https://b"}}, nil)
	p.send = fakeSend(http.StatusCreated, &calls, &msg)

	if err := p.Send(context.Background(), alert); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	var pm pushMessage
	_ = json.Unmarshal(msg, &pm)
	if pm.Body != "EURUSD BUY @ 1.102" || pm.URL != alert.Payload.URL {
		t.Fatalf("unexpected push payload %+v", pm)
	}
}

func TestPushFailsWhenAnyEndpointFails(t *testing.T) {
	cfg := PushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", Subject: "mailto:ops@example.com"}
	var calls int32
	var msg []byte
	p := NewPush(cfg, subs{{Endpoint: "https://gone"}}, nil)
	p.send = fakeSend(http.StatusGone, &calls, &msg)
	if err := p.Send(context.Background(), alert); err == nil {
		t.Fatalf("expected failure on 410")
	}
}

func TestPushNoSubscriptions(t *testing.T) {
	cfg := PushConfig{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", Subject: "mailto:ops@example.com"}
	if err := NewPush(cfg, subs{}, nil).Send(context.Background(), alert); err != nil {
		t.Fatalf("no subscriptions should count as sent, got %v", err)
	}
}
