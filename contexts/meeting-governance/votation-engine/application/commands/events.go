package commands

import (
	"context"
	"encoding/json"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/ports"
)

func newEngineEnvelope(
	eventID string,
	eventType string,
	propositionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Partitioned by proposition so listeners see the rounds of one question
	// in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    ports.SourceService,
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "proposition_id",
		PartitionKey:     propositionID,
		Data:             payload,
	}, nil
}

func (uc EngineUseCase) appendEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	eventType string,
	propositionID string,
	occurredAt time.Time,
	data map[string]any,
) error {
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newEngineEnvelope(eventID, eventType, propositionID, occurredAt, data)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, envelope)
}
