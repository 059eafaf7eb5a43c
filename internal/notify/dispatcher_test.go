package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/klear-exec/internal/execution"
	"github.com/ksred/klear-exec/internal/instrument"
	"github.com/ksred/klear-exec/internal/metrics"
	"github.com/ksred/klear-exec/internal/orders"
)

func newReport(t *testing.T) *execution.Report {
	t.Helper()
	stock, err := instrument.NewStock("ABC", instrument.Nasdaq(), instrument.USD())
	require.NoError(t, err)
	o, err := orders.NewMarketOrder(7, stock, orders.Short, 100)
	require.NoError(t, err)
	r, err := execution.NewReport(o, nil)
	require.NoError(t, err)
	return r
}

type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) OrderExecuted(n execution.Notification) {
	c.mu.Lock()
	c.ids = append(c.ids, n.Source())
	c.mu.Unlock()
}

func (c *collector) sources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(16, m)
	c := &collector{}
	d.Subscribe(c)

	r := newReport(t)
	for _, src := range []string{"a", "b", "c"} {
		require.NoError(t, d.Publish(execution.NewNotification(src, r)))
	}
	d.Close()

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not drain")
	}

	assert.Equal(t, []string{"a", "b", "c"}, c.sources())
	assert.Equal(t, float64(3), testutil.ToFloat64(m.NotificationsDelivered))
	assert.ErrorIs(t, d.Publish(execution.NewNotification("late", r)), ErrClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(1, m)
	r := newReport(t)

	require.NoError(t, d.Publish(execution.NewNotification("a", r)))
	assert.ErrorIs(t, d.Publish(execution.NewNotification("b", r)), ErrQueueFull)

	d.OrderExecuted(execution.NewNotification("c", r))
	assert.Equal(t, uint64(2), d.Dropped())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.NotificationsDropped))
}

func TestDispatcherSurvivesPanickingListener(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(4, m)
	c := &collector{}
	d.Subscribe(execution.ListenerFunc(func(execution.Notification) { panic("boom") }))
	d.Subscribe(c)

	r := newReport(t)
	require.NoError(t, d.Publish(execution.NewNotification("a", r)))
	require.NoError(t, d.Publish(execution.NewNotification("b", r)))
	d.Close()
	d.Run(context.Background())

	assert.Equal(t, []string{"a", "b"}, c.sources())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ListenerPanics))
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher(4, nil)
	first, second := &collector{}, &collector{}
	unsubscribe := d.Subscribe(first)
	d.Subscribe(second)
	unsubscribe()

	require.NoError(t, d.Publish(execution.NewNotification("a", newReport(t))))
	d.Close()
	d.Run(context.Background())

	assert.Empty(t, first.sources())
	assert.Equal(t, []string{"a"}, second.sources())
}

func TestRunStopsOnCancel(t *testing.T) {
	d := NewDispatcher(4, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReportRecordThroughDispatcher(t *testing.T) {
	d := NewDispatcher(4, nil)
	var got []int64
	d.Subscribe(execution.ListenerFunc(func(n execution.Notification) {
		got = append(got, n.Report().TotalSize())
	}))
	d.Subscribe(LogListener())

	r := newReport(t)
	f, err := execution.NewFill(orders.Short, 40, decimal.RequireFromString("9.75"), time.Now())
	require.NoError(t, err)

	_, err = r.Record("broker", d, f)
	require.NoError(t, err)
	_, err = r.Record("broker", d, f, f)
	require.NoError(t, err)
	d.Close()
	d.Run(context.Background())

	assert.Equal(t, []int64{40, 120}, got)
}
