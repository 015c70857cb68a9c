package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

var errRelayPublisherMissing = errors.New("outbox relay requires a publisher")

// OutboxRelay forwards committed engine events to the broadcast bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce publishes a bounded batch of pending outbox rows in sequence order
// and marks each row published only after the bus accepted it. It stops at
// the first failure so no later event of the same proposition overtakes it.
func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(r.Logger)
	if r.Publisher == nil {
		return 0, errRelayPublisherMissing
	}
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("votation outbox list failed",
			"event", "votation_outbox_list_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}
	if len(pending) == 0 {
		logger.Debug("votation outbox relay found no pending rows",
			"event", "votation_outbox_relay_noop",
			"module", application.ModuleName,
			"layer", "worker",
			"batch_size", limit,
		)
		return 0, nil
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	published := 0
	var lastSequence int64
	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			logger.Error("votation outbox decode failed",
				"event", "votation_outbox_decode_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"sequence", row.Sequence,
				"error", err.Error(),
			)
			return published, err
		}
		topic := event.EventType
		if topic == "" {
			topic = row.EventType
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("votation outbox publish failed",
				"event", "votation_outbox_publish_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"sequence", row.Sequence,
				"proposition_id", row.PartitionKey,
				"event_type", event.EventType,
				"error", err.Error(),
			)
			return published, err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			logger.Error("votation outbox mark published failed",
				"event", "votation_outbox_mark_published_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return published, err
		}
		published++
		lastSequence = row.Sequence
	}

	logger.Info("votation outbox relay cycle completed",
		"event", "votation_outbox_relay_completed",
		"module", application.ModuleName,
		"layer", "worker",
		"published_count", published,
		"last_sequence", lastSequence,
	)
	return published, nil
}
