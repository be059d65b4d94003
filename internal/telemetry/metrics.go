package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"groupquiz/internal/domain"
	"groupquiz/internal/event"
)

var (
	// ActiveSessions tracks sessions currently held by the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groupquiz_active_sessions",
		Help: "Number of live quiz sessions.",
	})

	// AnswersTotal counts private answers by outcome.
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupquiz_answers_total",
		Help: "Private answers received, labelled by outcome.",
	}, []string{"outcome"})

	roundsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupquiz_rounds_closed_total",
		Help: "Question rounds scored and closed.",
	})

	quizzesFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupquiz_quizzes_finished_total",
		Help: "Quizzes reaching a terminal state, labelled by outcome.",
	}, []string{"outcome"})
)

// ObserveBus keeps the lifecycle counters in step with quiz events.
func ObserveBus(b *event.Bus) {
	b.Subscribe(domain.EventNameRoundClosed, func(context.Context, event.Event) error {
		roundsClosedTotal.Inc()
		return nil
	})
	b.Subscribe(domain.EventNameQuizFinished, func(context.Context, event.Event) error {
		quizzesFinishedTotal.WithLabelValues("finished").Inc()
		return nil
	})
	b.Subscribe(domain.EventNameQuizCancelled, func(context.Context, event.Event) error {
		quizzesFinishedTotal.WithLabelValues("cancelled").Inc()
		return nil
	})
}
