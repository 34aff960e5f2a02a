package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"FxPipe/internal/domain/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"
)

// PushConfig holds VAPID credentials.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	Concurrency     int
}

// SubscriptionSource lists registered browser endpoints.
type SubscriptionSource interface {
	PushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
}

type sendFunc func(ctx context.Context, msg []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Push fans one web-push notification out to every subscription. The
// channel fails if any endpoint fails; no subscriptions counts as sent.
type Push struct {
	cfg    PushConfig
	subs   SubscriptionSource
	client *http.Client
	send   sendFunc
}

func NewPush(cfg PushConfig, subs SubscriptionSource, client *http.Client) *Push {
	if cfg.TTL <= 0 {
		cfg.TTL = 3600
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Push{cfg: cfg, subs: subs, client: client, send: webpush.SendNotificationWithContext}
}

func (p *Push) Name() models.Channel { return models.ChannelPush }

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

func (p *Push) Send(ctx context.Context, ev models.NotificationEvent) error {
	if p.cfg.VAPIDPublicKey == "" || p.cfg.VAPIDPrivateKey == "" || p.cfg.Subject == "" {
		return errVAPIDConfig
	}
	subs, err := p.subs.PushSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	msg, err := json.Marshal(pushMessage{
		Title: ev.Payload.Title,
		Body:  PushBody(ev.Payload),
		URL:   ev.Payload.URL,
	})
	if err != nil {
		return err
	}

	opts := &webpush.Options{
		Subscriber:      p.cfg.Subject,
		VAPIDPublicKey:  p.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: p.cfg.VAPIDPrivateKey,
		TTL:             p.cfg.TTL,
	}
	if p.client != nil {
		opts.HTTPClient = p.client
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, s := range subs {
		sub := &webpush.Subscription{
			Endpoint: s.Endpoint,
			Keys:     webpush.Keys{Auth: s.Auth, P256dh: s.P256dh},
		}
		g.Go(func() error {
			resp, err := p.send(gctx, msg, sub, opts)
			if err != nil {
				return fmt.Errorf("push %s: %w", sub.Endpoint, err)
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			if resp.StatusCode >= 300 {
				return fmt.Errorf("push %s: HTTP %d", sub.Endpoint, resp.StatusCode)
			}
			return nil
		})
	}
	return g.Wait()
}
