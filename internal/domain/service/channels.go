package service

import (
	"context"

	"FxPipe/internal/domain/models"
)

// Channel delivers one alert over one medium.
type Channel interface {
	Name() models.Channel
	Send(ctx context.Context, ev models.NotificationEvent) error
}

// Registry maps channel names to implementations. Channels are iterated in
// models.AllChannels order; a name without an implementation is skipped.
type Registry struct {
	channels map[models.Channel]Channel
}

func NewRegistry(chs ...Channel) *Registry {
	r := &Registry{channels: make(map[models.Channel]Channel, len(chs))}
	for _, c := range chs {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Channel) { r.channels[c.Name()] = c }

func (r *Registry) Get(name models.Channel) (Channel, bool) {
	c, ok := r.channels[name]
	return c, ok
}

// Ordered returns the registered channels in delivery order.
func (r *Registry) Ordered() []Channel {
	out := make([]Channel, 0, len(r.channels))
	for _, name := range models.AllChannels() {
		if c, ok := r.channels[name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RateSource converts between currencies. Pairs are "QUOTE/ACCOUNT".
type RateSource interface {
	Rate(ctx context.Context, pair string) (float64, error)
}
