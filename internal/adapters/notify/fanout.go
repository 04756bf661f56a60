// Package notify combines notifiers and counts what they broadcast.
package notify

import (
	"context"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fanout forwards each event to every target in order.
type Fanout struct {
	targets []domain.Notifier
	sent    *prometheus.CounterVec
}

var _ domain.Notifier = (*Fanout)(nil)

// NewFanout registers notifications_sent_total on reg. Nil targets are
// skipped so optional transports can be passed unconditionally.
func NewFanout(reg prometheus.Registerer, targets ...domain.Notifier) *Fanout {
	f := &Fanout{
		sent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Change notifications broadcast, by channel.",
		}, []string{"channel"}),
	}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

func (f *Fanout) Notify(ctx context.Context, event domain.Event) {
	for _, t := range f.targets {
		t.Notify(ctx, event)
	}
	f.sent.WithLabelValues(event.Channel).Inc()
}
