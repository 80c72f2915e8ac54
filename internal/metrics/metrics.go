// Package metrics exposes Prometheus collectors for the reservation core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_operations_total",
			Help: "Reservation core operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ticketsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_total",
			Help: "Tickets debited by reservations and credited by cancellations",
		},
		[]string{"direction"},
	)

	txDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_tx_duration_seconds",
			Help:    "Duration of reservation core transactions including lock waits",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)
)

// ObserveOperation records the outcome and duration of one core operation.
func ObserveOperation(operation, outcome string, d time.Duration) {
	operations.WithLabelValues(operation, outcome).Inc()
	txDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// TicketsDebited counts tickets taken from match pools.
func TicketsDebited(n int) { ticketsMoved.WithLabelValues("debit").Add(float64(n)) }

// TicketsCredited counts tickets returned to match pools.
func TicketsCredited(n int) { ticketsMoved.WithLabelValues("credit").Add(float64(n)) }
