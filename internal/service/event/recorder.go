package event

import (
	"context"
	"encoding/json"

	"github.com/medgate/records-api/internal/model"
	"github.com/medgate/records-api/internal/repository"
	"github.com/medgate/records-api/pkg/logger"
)

// Event types emitted on entity mutations.
const (
	TypePatientCreated     = "patient.created"
	TypePatientUpdated     = "patient.updated"
	TypePatientDeleted     = "patient.deleted"
	TypeAppointmentCreated = "appointment.created"
	TypeAppointmentUpdated = "appointment.updated"
	TypeAppointmentDeleted = "appointment.deleted"
	TypeRecordCreated      = "medical_record.created"
	TypeRecordUpdated      = "medical_record.updated"
	TypeRecordDeleted      = "medical_record.deleted"
	TypeUserDeleted        = "user.deleted"
)

// Recorder enqueues change events into the outbox. Failures are logged
// and swallowed: a broker or outbox outage never fails the request
// that produced the change.
type Recorder struct {
	outbox repository.OutboxRepository
	logger *logger.Logger
}

func NewRecorder(outbox repository.OutboxRepository, logger *logger.Logger) *Recorder {
	return &Recorder{outbox: outbox, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, eventType string, payload interface{}) {
	if r == nil || r.outbox == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error(err, "Failed to marshal outbox payload", "event_type", eventType)
		return
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}
	if err := r.outbox.Create(ctx, event); err != nil {
		r.logger.Error(err, "Failed to enqueue outbox event", "event_type", eventType)
	}
}
