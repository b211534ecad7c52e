package usecase

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts handshakes and moves. A nil *Metrics records nothing.
type Metrics struct {
	handshakes *prometheus.CounterVec
	moves      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickeyhellman_handshakes_total",
				Help: "Handshake steps by step and result",
			},
			[]string{"step", "result"},
		),
		moves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickeyhellman_moves_total",
				Help: "place_piece calls by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(metrics.handshakes, metrics.moves)

	return metrics
}

func (that *Metrics) handshake(step string, err error) {
	if that == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	that.handshakes.WithLabelValues(step, result).Inc()
}

func (that *Metrics) move(outcome string) {
	if that == nil {
		return
	}

	that.moves.WithLabelValues(outcome).Inc()
}
