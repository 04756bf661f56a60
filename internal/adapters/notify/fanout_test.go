package notify

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type collector struct{ events []domain.Event }

func (c *collector) Notify(_ context.Context, e domain.Event) { c.events = append(c.events, e) }

func TestFanoutDeliversAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, b := &collector{}, &collector{}
	f := NewFanout(reg, a, nil, b)

	ctx := context.Background()
	f.Notify(ctx, domain.Event{Channel: domain.ChannelComment})
	f.Notify(ctx, domain.Event{Channel: domain.ChannelComment})
	f.Notify(ctx, domain.Event{Channel: domain.ChannelDashboard})

	assert.Len(t, a.events, 3)
	assert.Len(t, b.events, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.sent.WithLabelValues(domain.ChannelComment)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.sent.WithLabelValues(domain.ChannelDashboard)))
}
