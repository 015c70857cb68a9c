package postgresadapter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testStart = time.Date(2026, time.August, 12, 18, 30, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "votation.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	repo := NewRepository(db, nil)
	ctx := context.Background()
	if err := repo.UpsertMeeting(ctx, entities.Meeting{MeetingID: "meeting-1", Name: "Annual assembly"}); err != nil {
		t.Fatalf("upsert meeting failed: %v", err)
	}
	if err := repo.UpsertProposition(ctx, entities.Proposition{
		PropositionID: "prop-1",
		MeetingID:     "meeting-1",
		Question:      "Approve the merger?",
		Options: []entities.VoteOption{
			{VoteOptionID: "no", Label: "No", Position: 2},
			{VoteOptionID: "yes", Label: "Yes", Position: 1},
		},
	}); err != nil {
		t.Fatalf("upsert proposition failed: %v", err)
	}
	if err := repo.CreateIdentity(ctx, entities.AdmissionIdentity{
		IdentityID: "identity-1",
		MeetingID:  "meeting-1",
		Code:       "ABC123",
		CreatedAt:  testStart,
	}); err != nil {
		t.Fatalf("create identity failed: %v", err)
	}
	return repo
}

func createOpenVotation(t *testing.T, repo *Repository, id string, startedAt time.Time) entities.Votation {
	t.Helper()
	votation := entities.Votation{
		VotationID:    id,
		MeetingID:     "meeting-1",
		PropositionID: "prop-1",
		StartedAt:     startedAt,
		Open:          true,
	}
	if err := repo.CreateVotation(context.Background(), votation); err != nil {
		t.Fatalf("create votation %s failed: %v", id, err)
	}
	return votation
}

func TestRepositoryPropositionOptionsInPositionOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	proposition, err := repo.GetProposition(ctx, "prop-1")
	if err != nil {
		t.Fatalf("get proposition failed: %v", err)
	}
	if len(proposition.Options) != 2 || proposition.Options[0].VoteOptionID != "yes" {
		t.Fatalf("expected yes first, got %+v", proposition.Options)
	}

	if err := repo.UpsertProposition(ctx, entities.Proposition{
		PropositionID: "prop-1",
		MeetingID:     "meeting-1",
		Question:      "Approve the merger?",
		Options:       []entities.VoteOption{{VoteOptionID: "abstain", Label: "Abstain", Position: 1}},
	}); err != nil {
		t.Fatalf("re-upsert proposition failed: %v", err)
	}
	proposition, err = repo.GetProposition(ctx, "prop-1")
	if err != nil {
		t.Fatalf("get proposition failed: %v", err)
	}
	if len(proposition.Options) != 1 || proposition.Options[0].VoteOptionID != "abstain" {
		t.Fatalf("expected options to be replaced, got %+v", proposition.Options)
	}
	if _, err := repo.GetProposition(ctx, "prop-9"); !errors.Is(err, domainerrors.ErrPropositionNotFound) {
		t.Fatalf("expected proposition not found, got %v", err)
	}
}

func TestRepositoryBallotsReferenceExistingOptions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	votation := createOpenVotation(t, repo, "votation-1", testStart)

	if err := repo.CreateBallot(ctx, entities.Ballot{
		BallotID:     "ballot-ghost",
		IdentityID:   "identity-1",
		VotationID:   votation.VotationID,
		VoteOptionID: "maybe",
		CastAt:       testStart,
	}); err == nil {
		t.Fatalf("expected ballot with unknown option to be rejected")
	}
	if err := repo.CreateBallot(ctx, entities.Ballot{
		BallotID:     "ballot-1",
		IdentityID:   "identity-1",
		VotationID:   votation.VotationID,
		VoteOptionID: "yes",
		CastAt:       testStart,
	}); err != nil {
		t.Fatalf("create ballot failed: %v", err)
	}

	relabelled := entities.Proposition{
		PropositionID: "prop-1",
		MeetingID:     "meeting-1",
		Question:      "Approve the merger?",
		Options: []entities.VoteOption{
			{VoteOptionID: "yes", Label: "In favour", Position: 1},
			{VoteOptionID: "no", Label: "Against", Position: 2},
		},
	}
	if err := repo.UpsertProposition(ctx, relabelled); err != nil {
		t.Fatalf("re-upsert with same options failed: %v", err)
	}
	proposition, err := repo.GetProposition(ctx, "prop-1")
	if err != nil || proposition.Options[0].Label != "In favour" {
		t.Fatalf("expected relabelled options, got %+v err=%v", proposition.Options, err)
	}

	relabelled.Options = relabelled.Options[1:]
	if err := repo.UpsertProposition(ctx, relabelled); err == nil {
		t.Fatalf("expected dropping an option with ballots to fail")
	}
	if _, found, err := repo.FindBallot(ctx, "identity-1", votation.VotationID); err != nil || !found {
		t.Fatalf("expected ballot to survive, found=%v err=%v", found, err)
	}
}

func TestRepositoryAllowsOneOpenVotationPerPair(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	first := createOpenVotation(t, repo, "votation-1", testStart)

	second := first
	second.VotationID = "votation-2"
	second.StartedAt = testStart.Add(time.Minute)
	if err := repo.CreateVotation(ctx, second); !errors.Is(err, domainerrors.ErrVotationAlreadyOpen) {
		t.Fatalf("expected already open error, got %v", err)
	}

	first.Overwrite(testStart.Add(2 * time.Minute))
	if err := repo.SaveVotation(ctx, first); err != nil {
		t.Fatalf("save votation failed: %v", err)
	}
	if err := repo.CreateVotation(ctx, second); err != nil {
		t.Fatalf("expected new round after overwrite, got %v", err)
	}

	open, err := repo.ListOpenVotationsByProposition(ctx, "prop-1")
	if err != nil {
		t.Fatalf("list open votations failed: %v", err)
	}
	if len(open) != 1 || open[0].VotationID != "votation-2" {
		t.Fatalf("expected only votation-2 open, got %+v", open)
	}

	history, err := repo.ListVotationsByProposition(ctx, "prop-1")
	if err != nil {
		t.Fatalf("list votations failed: %v", err)
	}
	if len(history) != 2 || history[0].VotationID != "votation-2" {
		t.Fatalf("expected latest round first, got %+v", history)
	}
	if !history[1].Overwritten || history[1].EndedAt == nil {
		t.Fatalf("expected first round overwritten with an end time, got %+v", history[1])
	}
}

func TestRepositoryBallotLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	votation := createOpenVotation(t, repo, "votation-1", testStart)

	ballot := entities.Ballot{
		BallotID:     "ballot-1",
		IdentityID:   "identity-1",
		VotationID:   votation.VotationID,
		VoteOptionID: "yes",
		CastAt:       testStart.Add(time.Minute),
	}
	if err := repo.CreateBallot(ctx, ballot); err != nil {
		t.Fatalf("create ballot failed: %v", err)
	}
	duplicate := ballot
	duplicate.BallotID = "ballot-2"
	if err := repo.CreateBallot(ctx, duplicate); !errors.Is(err, domainerrors.ErrDuplicateBallot) {
		t.Fatalf("expected duplicate ballot error, got %v", err)
	}
	if err := repo.CreateVote(ctx, entities.Vote{VoteID: "vote-1", BallotID: "ballot-1", CreatedAt: ballot.CastAt}); err != nil {
		t.Fatalf("create vote failed: %v", err)
	}

	for _, eventType := range []entities.AuditEventType{entities.AuditEventCast, entities.AuditEventChanged} {
		if err := repo.SaveAuditEvent(ctx, entities.AuditableEvent{
			AuditEventID: "audit-1",
			VoteID:       "vote-1",
			EventType:    eventType,
			Metadata:     `{"vote_option_id":"yes"}`,
			OccurredAt:   testStart.Add(2 * time.Minute),
		}); err != nil {
			t.Fatalf("save audit %s failed: %v", eventType, err)
		}
	}
	audit, found, err := repo.GetAuditEventByVote(ctx, "vote-1")
	if err != nil || !found {
		t.Fatalf("expected audit record, found=%v err=%v", found, err)
	}
	if audit.EventType != entities.AuditEventChanged {
		t.Fatalf("expected audit record to be replaced, got %s", audit.EventType)
	}

	ballot.VoteOptionID = "no"
	if err := repo.UpdateBallot(ctx, ballot); err != nil {
		t.Fatalf("update ballot failed: %v", err)
	}
	stored, found, err := repo.FindBallot(ctx, "identity-1", votation.VotationID)
	if err != nil || !found || stored.VoteOptionID != "no" {
		t.Fatalf("expected updated ballot, got %+v found=%v err=%v", stored, found, err)
	}

	if err := repo.DeleteBallot(ctx, "ballot-1"); err != nil {
		t.Fatalf("delete ballot failed: %v", err)
	}
	if _, found, _ := repo.GetAuditEventByVote(ctx, "vote-1"); found {
		t.Fatalf("expected audit record to be deleted with the ballot")
	}
	if _, err := repo.GetVoteByBallot(ctx, "ballot-1"); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected vote to be deleted with the ballot, got %v", err)
	}
	if err := repo.DeleteBallot(ctx, "ballot-1"); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected ballot not found, got %v", err)
	}
}

func TestRepositoryWithinTxRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	votation := createOpenVotation(t, repo, "votation-1", testStart)
	rollback := errors.New("abort")

	err := repo.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.CreateBallot(ctx, entities.Ballot{
			BallotID:     "ballot-1",
			IdentityID:   "identity-1",
			VotationID:   votation.VotationID,
			VoteOptionID: "yes",
			CastAt:       testStart.Add(time.Minute),
		}); err != nil {
			return err
		}
		if err := repos.MarkIdentityUsed(ctx, "identity-1"); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if _, err := repo.GetBallot(ctx, "ballot-1"); !errors.Is(err, domainerrors.ErrBallotNotFound) {
		t.Fatalf("expected ballot to be rolled back, got %v", err)
	}
	identity, err := repo.GetIdentityByCode(ctx, "ABC123")
	if err != nil || identity.Used {
		t.Fatalf("expected identity to stay unused, got %+v err=%v", identity, err)
	}
}

func TestRepositoryOutboxAndEventDedup(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// Same timestamp and ids sorting against insertion order: only the
	// sequence keeps them in commit order.
	for _, id := range []string{"evt-2", "evt-1"} {
		if err := repo.AppendOutbox(ctx, ports.EventEnvelope{
			EventID:    id,
			EventType:  ports.EventVoteCast,
			OccurredAt: testStart,
		}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}
	if err := repo.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:    "evt-1",
		EventType:  ports.EventVoteCast,
		OccurredAt: testStart,
	}); err != nil {
		t.Fatalf("expected identical append to be accepted, got %v", err)
	}
	if err := repo.AppendOutbox(ctx, ports.EventEnvelope{
		EventID:    "evt-2",
		EventType:  ports.EventVoteChanged,
		OccurredAt: testStart,
	}); !errors.Is(err, domainerrors.ErrEventConflict) {
		t.Fatalf("expected event conflict, got %v", err)
	}

	pending, err := repo.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "evt-2" || pending[1].OutboxID != "evt-1" {
		t.Fatalf("expected evt-2 then evt-1, got %+v", pending)
	}
	if pending[0].Sequence >= pending[1].Sequence {
		t.Fatalf("expected ascending sequence, got %d then %d", pending[0].Sequence, pending[1].Sequence)
	}
	if err := repo.MarkOutboxPublished(ctx, "evt-2", testStart.Add(time.Minute)); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = repo.ListPendingOutbox(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].OutboxID != "evt-1" {
		t.Fatalf("expected only evt-1 pending, got %+v err=%v", pending, err)
	}

	expires := time.Now().UTC().Add(time.Hour)
	replayed, err := repo.ReserveEvent(ctx, "catalog-1", "hash-a", expires)
	if err != nil || replayed {
		t.Fatalf("expected first reservation, got replayed=%v err=%v", replayed, err)
	}
	replayed, err = repo.ReserveEvent(ctx, "catalog-1", "hash-a", expires)
	if err != nil || !replayed {
		t.Fatalf("expected replay, got replayed=%v err=%v", replayed, err)
	}
	if _, err := repo.ReserveEvent(ctx, "catalog-1", "hash-b", expires); !errors.Is(err, domainerrors.ErrEventConflict) {
		t.Fatalf("expected event conflict, got %v", err)
	}
}
