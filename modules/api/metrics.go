package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeliveryStats reports broadcast delivery counters.
type DeliveryStats interface {
	Stats() (delivered, dropped uint64)
}

// newMetricsRegistry builds a registry with gauges that read live chat
// state on every scrape. stats may be nil.
func newMetricsRegistry(rooms RoomService, conns Connections, stats DeliveryStats) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "chat_connections",
				Help: "Number of open realtime connections.",
			},
			func() float64 { return float64(conns.Count()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "chat_active_rooms",
				Help: "Number of rooms held by the registry.",
			},
			func() float64 { return float64(rooms.ActiveRooms()) },
		),
	)

	if stats != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(
				prometheus.CounterOpts{
					Name: "chat_broadcast_delivered_total",
					Help: "Payloads queued to subscribers.",
				},
				func() float64 {
					delivered, _ := stats.Stats()
					return float64(delivered)
				},
			),
			prometheus.NewCounterFunc(
				prometheus.CounterOpts{
					Name: "chat_broadcast_dropped_total",
					Help: "Payloads dropped because a subscriber queue was full.",
				},
				func() float64 {
					_, dropped := stats.Stats()
					return float64(dropped)
				},
			),
		)
	}

	return reg
}

// metricsHandler serves reg in the Prometheus text format.
func metricsHandler(reg *prometheus.Registry) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
