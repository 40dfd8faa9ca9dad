package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. Used when no brokers are configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "notify").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) {
	p.logger.Info().
		Str("event_type", ev.EventType).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("doctor_id", ev.DoctorID.String()).
		Str("patient_id", ev.PatientID.String()).
		Time("instant", ev.Instant).
		Str("new_status", ev.NewStatus).
		Str("actor_id", ev.ActorID).
		Msg("appointment event")
}
