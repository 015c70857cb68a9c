package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/application/votations"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

const defaultCatalogCG = "votation-engine-catalog-cg"

// CatalogConsumer closes open votations when the catalog ends a meeting or
// withdraws a proposition, and announces every closed round on the bus.
type CatalogConsumer struct {
	Subscriber    ports.EventSubscriber
	Store         ports.Store
	Votations     votations.StateMachine
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c CatalogConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("catalog consumer disabled by configuration",
			"event", "votation_catalog_consumer_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultCatalogCG
	}
	subscriptions := []struct {
		topic   string
		handler func(context.Context, ports.EventEnvelope) error
	}{
		{topic: ports.TopicMeetingEnded, handler: c.HandleMeetingEnded},
		{topic: ports.TopicPropositionWithdrawn, handler: c.HandlePropositionWithdrawn},
	}
	for _, sub := range subscriptions {
		if err := c.Subscriber.Subscribe(ctx, sub.topic, group, sub.handler); err != nil {
			logger.Error("catalog consumer subscribe failed",
				"event", "votation_catalog_consumer_subscribe_failed",
				"module", application.ModuleName,
				"layer", "worker",
				"topic", sub.topic,
				"consumer_group", group,
				"error", err.Error(),
			)
			return err
		}
	}
	logger.Info("catalog consumer subscriptions active",
		"event", "votation_catalog_consumer_started",
		"module", application.ModuleName,
		"layer", "worker",
		"consumer_group", group,
	)
	return nil
}

func (c CatalogConsumer) HandleMeetingEnded(ctx context.Context, event ports.EventEnvelope) error {
	var payload struct {
		MeetingID string `json:"meeting_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return c.rejectPayload(event, err.Error())
	}
	meetingID := strings.TrimSpace(payload.MeetingID)
	if meetingID == "" {
		return c.rejectPayload(event, "meeting_id is required")
	}
	return c.closeRounds(ctx, event, "meeting_ended", func(ctx context.Context, repos ports.Repositories) ([]entities.Votation, error) {
		return c.Votations.CloseMeeting(ctx, repos, meetingID)
	})
}

func (c CatalogConsumer) HandlePropositionWithdrawn(ctx context.Context, event ports.EventEnvelope) error {
	var payload struct {
		PropositionID string `json:"proposition_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return c.rejectPayload(event, err.Error())
	}
	propositionID := strings.TrimSpace(payload.PropositionID)
	if propositionID == "" {
		return c.rejectPayload(event, "proposition_id is required")
	}
	return c.closeRounds(ctx, event, "proposition_withdrawn", func(ctx context.Context, repos ports.Repositories) ([]entities.Votation, error) {
		return c.Votations.CloseProposition(ctx, repos, propositionID)
	})
}

// closeRounds reserves the event id and applies the transition in the same
// transaction, so a failed attempt is retried on redelivery.
func (c CatalogConsumer) closeRounds(
	ctx context.Context,
	event ports.EventEnvelope,
	reason string,
	transition func(context.Context, ports.Repositories) ([]entities.Votation, error),
) error {
	logger := application.ResolveLogger(c.Logger)
	now := c.now()
	replayed := false
	closedCount := 0
	err := c.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		alreadyProcessed, err := repos.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(c.dedupTTL()))
		if err != nil {
			return err
		}
		if alreadyProcessed {
			replayed = true
			return nil
		}
		closed, err := transition(ctx, repos)
		if err != nil {
			return err
		}
		for _, votation := range closed {
			eventID, err := c.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			envelope, err := newWorkerEnvelope(
				eventID,
				ports.EventVotationClosed,
				votation.PropositionID,
				"proposition_id",
				now,
				map[string]any{
					"meeting_id":     votation.MeetingID,
					"proposition_id": votation.PropositionID,
					"votation_id":    votation.VotationID,
					"reason":         reason,
					"closed_at_utc":  now.Format(time.RFC3339Nano),
				},
			)
			if err != nil {
				return err
			}
			if err := repos.AppendOutbox(ctx, envelope); err != nil {
				return err
			}
		}
		closedCount = len(closed)
		return nil
	})
	if err != nil {
		logger.Error("catalog event handling failed",
			"event", "votation_catalog_event_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return err
	}
	if replayed {
		logger.Debug("catalog event replay skipped",
			"event", "votation_catalog_event_replayed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}
	logger.Info("catalog event consumed",
		"event", "votation_catalog_event_consumed",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"closed_votations", closedCount,
	)
	return nil
}

// rejectPayload fails the event before its id is reserved, so a corrected
// redelivery under the same id is still processed.
func (c CatalogConsumer) rejectPayload(event ports.EventEnvelope, reason string) error {
	application.ResolveLogger(c.Logger).Error("catalog event payload rejected",
		"event", "votation_catalog_event_rejected",
		"module", application.ModuleName,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"reason", reason,
	)
	return fmt.Errorf("%w: %s", domainerrors.ErrInvalidInput, reason)
}

func (c CatalogConsumer) now() time.Time {
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	return now
}

func (c CatalogConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}
