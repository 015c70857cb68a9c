package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/adapters/memory"
	"quorum/contexts/meeting-governance/votation-engine/application/votations"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type stubSubscriber struct {
	handlers map[string]func(context.Context, ports.EventEnvelope) error
	groups   map[string]string
}

func (s *stubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	consumerGroup string,
	handler func(context.Context, ports.EventEnvelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, ports.EventEnvelope) error{}
		s.groups = map[string]string{}
	}
	s.handlers[topic] = handler
	s.groups[topic] = consumerGroup
	return nil
}

type recordingPublisher struct {
	topics []string
	events []ports.EventEnvelope
	failAt int
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.failAt > 0 && len(p.events)+1 == p.failAt {
		return errors.New("bus unavailable")
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func seedOpenRounds(t *testing.T, store *memory.Store, now time.Time) {
	t.Helper()
	rounds := []entities.Votation{
		{VotationID: "votation-a", MeetingID: "meeting-1", PropositionID: "prop-1", StartedAt: now.Add(-time.Hour), Open: true},
		{VotationID: "votation-b", MeetingID: "meeting-1", PropositionID: "prop-2", StartedAt: now.Add(-time.Hour), Open: true},
		{VotationID: "votation-c", MeetingID: "meeting-2", PropositionID: "prop-3", StartedAt: now.Add(-time.Hour), Open: true},
	}
	for _, round := range rounds {
		if err := store.CreateVotation(context.Background(), round); err != nil {
			t.Fatalf("seed votation %s failed: %v", round.VotationID, err)
		}
	}
}

func newCatalogConsumer(store *memory.Store, sub *stubSubscriber, now time.Time) CatalogConsumer {
	clock := fixedClock{now: now}
	return CatalogConsumer{
		Subscriber: sub,
		Store:      store,
		Votations:  votations.StateMachine{Clock: clock, IDGen: store},
		Clock:      clock,
		IDGen:      store,
	}
}

func TestCatalogConsumerClosesRoundsOfEndedMeeting(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	store := memory.NewStore()
	seedOpenRounds(t, store, now)
	sub := &stubSubscriber{}
	consumer := newCatalogConsumer(store, sub, now)

	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start catalog consumer failed: %v", err)
	}
	handler := sub.handlers[ports.TopicMeetingEnded]
	if handler == nil {
		t.Fatalf("expected meeting.ended handler registration")
	}
	if sub.groups[ports.TopicMeetingEnded] != defaultCatalogCG {
		t.Fatalf("expected default consumer group, got %q", sub.groups[ports.TopicMeetingEnded])
	}

	payload, _ := json.Marshal(map[string]any{"meeting_id": "meeting-1"})
	event := ports.EventEnvelope{EventID: "evt-meeting-ended-1", EventType: ports.TopicMeetingEnded, Data: payload}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("meeting.ended handler failed: %v", err)
	}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("replayed meeting.ended handler failed: %v", err)
	}

	for _, id := range []string{"votation-a", "votation-b"} {
		votation, err := store.GetVotation(context.Background(), id)
		if err != nil {
			t.Fatalf("load %s failed: %v", id, err)
		}
		if votation.Open || votation.EndedAt == nil || !votation.EndedAt.Equal(now) {
			t.Fatalf("expected %s closed at %s, got %+v", id, now, votation)
		}
		if votation.Overwritten {
			t.Fatalf("expected %s closed, not overwritten", id)
		}
	}
	other, err := store.GetVotation(context.Background(), "votation-c")
	if err != nil || !other.Open {
		t.Fatalf("expected votation of another meeting to stay open, got %+v err=%v", other, err)
	}

	closedEvents := 0
	for _, message := range store.Snapshot().Outbox {
		if message.EventType == ports.EventVotationClosed {
			closedEvents++
		}
	}
	if closedEvents != 2 {
		t.Fatalf("expected two votation.closed events despite the replay, got %d", closedEvents)
	}
}

func TestCatalogConsumerRejectsReusedEventID(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	store := memory.NewStore()
	seedOpenRounds(t, store, now)
	consumer := newCatalogConsumer(store, &stubSubscriber{}, now)

	first, _ := json.Marshal(map[string]any{"proposition_id": "prop-3"})
	if err := consumer.HandlePropositionWithdrawn(context.Background(), ports.EventEnvelope{
		EventID: "evt-withdrawn-1",
		Data:    first,
	}); err != nil {
		t.Fatalf("proposition.withdrawn handler failed: %v", err)
	}
	votation, err := store.GetVotation(context.Background(), "votation-c")
	if err != nil || votation.Open {
		t.Fatalf("expected withdrawn proposition round to close, got %+v err=%v", votation, err)
	}

	second, _ := json.Marshal(map[string]any{"proposition_id": "prop-1"})
	err = consumer.HandlePropositionWithdrawn(context.Background(), ports.EventEnvelope{
		EventID: "evt-withdrawn-1",
		Data:    second,
	})
	if !errors.Is(err, domainerrors.ErrEventConflict) {
		t.Fatalf("expected event conflict for reused id, got %v", err)
	}
	untouched, err := store.GetVotation(context.Background(), "votation-a")
	if err != nil || !untouched.Open {
		t.Fatalf("expected conflicting event to change nothing, got %+v err=%v", untouched, err)
	}
}

func TestCatalogConsumerRejectsMalformedPayload(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	store := memory.NewStore()
	consumer := newCatalogConsumer(store, &stubSubscriber{}, now)
	ctx := context.Background()

	err := consumer.HandleMeetingEnded(ctx, ports.EventEnvelope{
		EventID: "evt-bad",
		Data:    []byte(`{"meeting_id":`),
	})
	if !errors.Is(err, domainerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for truncated payload, got %v", err)
	}
	if err := consumer.HandleMeetingEnded(ctx, ports.EventEnvelope{EventID: "evt-blank", Data: []byte(`{}`)}); !errors.Is(err, domainerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for blank meeting id, got %v", err)
	}
	if err := consumer.HandlePropositionWithdrawn(ctx, ports.EventEnvelope{EventID: "evt-blank-prop", Data: []byte(`{"proposition_id":"  "}`)}); !errors.Is(err, domainerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for blank proposition id, got %v", err)
	}

	seedOpenRounds(t, store, now)
	fixed, _ := json.Marshal(map[string]any{"meeting_id": "meeting-1"})
	if err := consumer.HandleMeetingEnded(ctx, ports.EventEnvelope{EventID: "evt-blank", Data: fixed}); err != nil {
		t.Fatalf("expected corrected redelivery to be processed, got %v", err)
	}
	votation, err := store.GetVotation(ctx, "votation-a")
	if err != nil || votation.Open {
		t.Fatalf("expected corrected redelivery to close the round, got %+v err=%v", votation, err)
	}
}

func TestCatalogConsumerDisabledSkipsSubscriptions(t *testing.T) {
	sub := &stubSubscriber{}
	consumer := CatalogConsumer{Subscriber: sub, Disabled: true}
	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("start disabled consumer failed: %v", err)
	}
	if len(sub.handlers) != 0 {
		t.Fatalf("expected no subscriptions, got %d", len(sub.handlers))
	}
}

func TestOutboxRelayPublishesInOrderAndMarksRows(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, item := range []struct{ id, eventType string }{
		{"evt-1", ports.EventPropositionVoteOpened},
		{"evt-2", ports.EventVoteCast},
		{"evt-3", ports.EventPropositionVoteStopped},
	} {
		if err := store.AppendOutbox(ctx, ports.EventEnvelope{EventID: item.id, EventType: item.eventType}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}

	publisher := &recordingPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, BatchSize: 2}
	published, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected batch of two, got %d", published)
	}
	published, err = relay.RunOnce(ctx)
	if err != nil || published != 1 {
		t.Fatalf("expected remaining row to publish, got %d err=%v", published, err)
	}
	want := []string{ports.EventPropositionVoteOpened, ports.EventVoteCast, ports.EventPropositionVoteStopped}
	for i, topic := range want {
		if publisher.topics[i] != topic {
			t.Fatalf("expected topic %s at %d, got %s", topic, i, publisher.topics[i])
		}
	}
	if publisher.events[1].EventID != "evt-2" {
		t.Fatalf("expected decoded envelope, got %+v", publisher.events[1])
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected empty outbox, got %d err=%v", len(pending), err)
	}
	published, err = relay.RunOnce(ctx)
	if err != nil || published != 0 {
		t.Fatalf("expected idle cycle, got %d err=%v", published, err)
	}
}

func TestOutboxRelayStopsAtFirstPublishFailure(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		if err := store.AppendOutbox(ctx, ports.EventEnvelope{EventID: id, EventType: ports.EventVoteCast}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}
	relay := OutboxRelay{Outbox: store, Publisher: &recordingPublisher{failAt: 2}}
	published, err := relay.RunOnce(ctx)
	if err == nil || published != 1 {
		t.Fatalf("expected failure after one row, got %d err=%v", published, err)
	}
	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-2" {
		t.Fatalf("expected evt-2 to be retried first, got %+v", pending)
	}
}

func TestOutboxRelayRequiresPublisher(t *testing.T) {
	relay := OutboxRelay{Outbox: memory.NewStore()}
	if _, err := relay.RunOnce(context.Background()); !errors.Is(err, errRelayPublisherMissing) {
		t.Fatalf("expected missing publisher error, got %v", err)
	}
}
