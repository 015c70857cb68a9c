package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

func seededStore(t *testing.T) (*Store, entities.Votation) {
	t.Helper()
	store := NewStore()
	store.SetMeeting(entities.Meeting{MeetingID: "meeting-1", Name: "Annual assembly"})
	store.SetProposition(entities.Proposition{
		PropositionID: "prop-1",
		MeetingID:     "meeting-1",
		Question:      "Approve the budget?",
		Options: []entities.VoteOption{
			{VoteOptionID: "no", Label: "No", Position: 2},
			{VoteOptionID: "yes", Label: "Yes", Position: 1},
		},
	})
	store.SetIdentity(entities.AdmissionIdentity{IdentityID: "identity-1", MeetingID: "meeting-1", Code: "ABC123"})

	votation := entities.Votation{
		VotationID:    "votation-1",
		MeetingID:     "meeting-1",
		PropositionID: "prop-1",
		StartedAt:     time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC),
		Open:          true,
	}
	if err := store.CreateVotation(context.Background(), votation); err != nil {
		t.Fatalf("create votation failed: %v", err)
	}
	return store, votation
}

func TestSetPropositionOrdersOptionsByPosition(t *testing.T) {
	store, _ := seededStore(t)
	proposition, err := store.GetProposition(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("get proposition failed: %v", err)
	}
	if len(proposition.Options) != 2 || proposition.Options[0].VoteOptionID != "yes" {
		t.Fatalf("expected options ordered by position, got %+v", proposition.Options)
	}
	if proposition.Options[1].PropositionID != "prop-1" {
		t.Fatalf("expected option to carry proposition id, got %q", proposition.Options[1].PropositionID)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store, votation := seededStore(t)
	rollback := errors.New("rollback")

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.CreateBallot(ctx, entities.Ballot{
			BallotID:     "ballot-1",
			IdentityID:   "identity-1",
			VotationID:   votation.VotationID,
			VoteOptionID: "yes",
			CastAt:       votation.StartedAt.Add(time.Minute),
		}); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if _, err := store.GetBallot(context.Background(), "ballot-1"); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected ballot to be rolled back, got %v", err)
	}
}

func TestWithinTxRejectsCancelledContext(t *testing.T) {
	store, _ := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := store.WithinTx(ctx, func(context.Context, ports.Repositories) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancelled context to skip the transaction, got err=%v called=%v", err, called)
	}
}

func TestCreateVotationRejectsSecondOpenRoundForPair(t *testing.T) {
	store, votation := seededStore(t)
	second := votation
	second.VotationID = "votation-2"
	second.StartedAt = votation.StartedAt.Add(time.Minute)
	if err := store.CreateVotation(context.Background(), second); !errors.Is(err, domainerrors.ErrVotationAlreadyOpen) {
		t.Fatalf("expected already open error, got %v", err)
	}

	closed := second
	closed.Open = false
	if err := store.CreateVotation(context.Background(), closed); err != nil {
		t.Fatalf("expected closed round to be accepted, got %v", err)
	}
}

func TestListOpenVotationsByPropositionSkipsOverwritten(t *testing.T) {
	store, votation := seededStore(t)
	votation.Overwrite(votation.StartedAt.Add(time.Minute))
	if err := store.SaveVotation(context.Background(), votation); err != nil {
		t.Fatalf("save votation failed: %v", err)
	}
	open, err := store.ListOpenVotationsByProposition(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("list open votations failed: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open votations, got %d", len(open))
	}
	history, err := store.ListVotationsByProposition(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("list votations failed: %v", err)
	}
	if len(history) != 1 || history[0].Status() != entities.VotationStatusOverwritten {
		t.Fatalf("expected overwritten round in history, got %+v", history)
	}
}

func TestCreateBallotRejectsDuplicateIdentity(t *testing.T) {
	store, votation := seededStore(t)
	ballot := entities.Ballot{
		BallotID:     "ballot-1",
		IdentityID:   "identity-1",
		VotationID:   votation.VotationID,
		VoteOptionID: "yes",
		CastAt:       votation.StartedAt.Add(time.Minute),
	}
	if err := store.CreateBallot(context.Background(), ballot); err != nil {
		t.Fatalf("create ballot failed: %v", err)
	}
	ballot.BallotID = "ballot-2"
	if err := store.CreateBallot(context.Background(), ballot); !errors.Is(err, domainerrors.ErrDuplicateBallot) {
		t.Fatalf("expected duplicate ballot error, got %v", err)
	}
}

func TestDeleteBallotRemovesVoteAndAudit(t *testing.T) {
	store, votation := seededStore(t)
	ctx := context.Background()
	if err := store.CreateBallot(ctx, entities.Ballot{
		BallotID:     "ballot-1",
		IdentityID:   "identity-1",
		VotationID:   votation.VotationID,
		VoteOptionID: "yes",
		CastAt:       votation.StartedAt.Add(time.Minute),
	}); err != nil {
		t.Fatalf("create ballot failed: %v", err)
	}
	if err := store.CreateVote(ctx, entities.Vote{VoteID: "vote-1", BallotID: "ballot-1"}); err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	if err := store.SaveAuditEvent(ctx, entities.AuditableEvent{
		AuditEventID: "audit-1",
		VoteID:       "vote-1",
		EventType:    entities.AuditEventCast,
	}); err != nil {
		t.Fatalf("save audit failed: %v", err)
	}

	if err := store.DeleteBallot(ctx, "ballot-1"); err != nil {
		t.Fatalf("delete ballot failed: %v", err)
	}
	snapshot := store.Snapshot()
	if len(snapshot.Ballots) != 0 || len(snapshot.Votes) != 0 || len(snapshot.AuditEvents) != 0 {
		t.Fatalf("expected cascade delete, got ballots=%d votes=%d audits=%d",
			len(snapshot.Ballots), len(snapshot.Votes), len(snapshot.AuditEvents))
	}
	if _, found, _ := store.FindBallot(ctx, "identity-1", votation.VotationID); found {
		t.Fatalf("expected identity to be free to vote again")
	}
	if err := store.DeleteBallot(ctx, "ballot-1"); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected ballot not found on second delete, got %v", err)
	}
}

func TestOutboxPendingOrderAndPublish(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	occurred := time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"evt-3", "evt-1", "evt-2"} {
		if err := store.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:    id,
			EventType:  "vote.cast",
			OccurredAt: occurred,
		}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}

	pending, err := store.ListPendingOutbox(ctx, 2)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-3" || pending[1].OutboxID != "evt-1" {
		t.Fatalf("expected insertion order evt-3, evt-1, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(ctx, "evt-3", occurred); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected evt-3 to leave the pending list, got %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "missing", occurred); err == nil {
		t.Fatalf("expected error when marking an unknown row")
	}
}

func TestAppendOutboxIsIdempotentPerEventID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	envelope := ports.EventEnvelope{EventID: "evt-1", EventType: "vote.cast"}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("replayed append failed: %v", err)
	}
	envelope.EventType = "vote.changed"
	if err := store.AppendOutbox(ctx, envelope); !errors.Is(err, domainerrors.ErrEventConflict) {
		t.Fatalf("expected event conflict, got %v", err)
	}
	if got := len(store.Snapshot().Outbox); got != 1 {
		t.Fatalf("expected one outbox row, got %d", got)
	}
}

func TestReserveEventDeduplicatesByPayloadHash(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour)

	replayed, err := store.ReserveEvent(ctx, "evt-1", "hash-a", expires)
	if err != nil || replayed {
		t.Fatalf("expected first reservation, got replayed=%v err=%v", replayed, err)
	}
	replayed, err = store.ReserveEvent(ctx, "evt-1", "hash-a", expires)
	if err != nil || !replayed {
		t.Fatalf("expected replay detection, got replayed=%v err=%v", replayed, err)
	}
	if _, err := store.ReserveEvent(ctx, "evt-1", "hash-b", expires); !errors.Is(err, domainerrors.ErrEventConflict) {
		t.Fatalf("expected conflict for reused event id, got %v", err)
	}

	expired := time.Now().UTC().Add(-time.Minute)
	if _, err := store.ReserveEvent(ctx, "evt-2", "hash-a", expired); err != nil {
		t.Fatalf("reserve evt-2 failed: %v", err)
	}
	replayed, err = store.ReserveEvent(ctx, "evt-2", "hash-b", expires)
	if err != nil || replayed {
		t.Fatalf("expected expired reservation to be replaced, got replayed=%v err=%v", replayed, err)
	}
}
