package services

import (
	"context"

	"bridge-backend/internal/events"
	"bridge-backend/internal/metrics"
)

// transferOutcomes event name -> bridge_transfers_total outcome label
var transferOutcomes = map[string]string{
	"TransferInitiated": "created",
	"TransferConfirmed": "confirmed",
	"TransferCompleted": "completed",
	"TransferCancelled": "cancelled",
	"TransferFailed":    "failed",
}

// MetricsService counts emitted events
type MetricsService struct{}

func NewMetricsService() *MetricsService {
	return &MetricsService{}
}

func (s *MetricsService) Handle(_ context.Context, env *events.Envelope) {
	metrics.EventsEmitted.WithLabelValues(env.Name).Inc()
	if outcome, ok := transferOutcomes[env.Name]; ok {
		metrics.TransfersTotal.WithLabelValues(outcome).Inc()
	}
}
