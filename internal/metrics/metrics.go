package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the execution service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated          prometheus.Counter
	StatusChanges          *prometheus.CounterVec
	FillsRecorded          *prometheus.CounterVec
	FilledQuantity         *prometheus.CounterVec
	NotificationsDelivered prometheus.Counter
	NotificationsDropped   prometheus.Counter
	ListenerPanics         prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "orders_created_total",
			Help:      "Orders accepted by the execution service.",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "order_status_changes_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
		FillsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "fills_recorded_total",
			Help:      "Fills appended to execution reports.",
		}, []string{"direction"}),
		FilledQuantity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "filled_quantity_total",
			Help:      "Units filled across all orders.",
		}, []string{"direction"}),
		NotificationsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "notifications_delivered_total",
			Help:      "Order executed notifications handed to subscribers.",
		}),
		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "notifications_dropped_total",
			Help:      "Order executed notifications dropped on a full queue.",
		}),
		ListenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "klear_exec",
			Name:      "listener_panics_total",
			Help:      "Subscriber panics recovered by the dispatcher.",
		}),
	}

	m.registry.MustRegister(
		m.OrdersCreated,
		m.StatusChanges,
		m.FillsRecorded,
		m.FilledQuantity,
		m.NotificationsDelivered,
		m.NotificationsDropped,
		m.ListenerPanics,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
