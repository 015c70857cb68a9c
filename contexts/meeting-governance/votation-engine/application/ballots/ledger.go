package ballots

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/application/audit"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

const (
	manualCodePrefix         = "manual-"
	defaultManualBallotLimit = 10000
)

// Ledger keeps at most one ballot per identity per votation. Every method
// expects to run inside the caller's transaction.
type Ledger struct {
	Audit audit.Trail
	Clock ports.Clock
	IDGen ports.IDGenerator
	// ManualBallotLimit caps the ballots one manual batch may add.
	ManualBallotLimit int
	Logger            *slog.Logger
}

type CastOutcome struct {
	Ballot   entities.Ballot
	Vote     entities.Vote
	Votation entities.Votation
	Option   entities.VoteOption
	Action   entities.CastAction
}

type RevokeOutcome struct {
	Ballot   entities.Ballot
	Vote     entities.Vote
	Votation entities.Votation
}

type ManualOutcome struct {
	Votation       entities.Votation
	Total          int
	CountsByOption map[string]int
	RecordedAt     time.Time
}

// Cast records the identity's choice. A second cast by the same identity
// rewrites the existing ballot instead of adding one.
func (l Ledger) Cast(
	ctx context.Context,
	repos ports.Repositories,
	identity entities.AdmissionIdentity,
	votationID string,
	voteOptionID string,
) (CastOutcome, error) {
	logger := application.ResolveLogger(l.Logger)
	voteOptionID = strings.TrimSpace(voteOptionID)
	if voteOptionID == "" {
		return CastOutcome{}, domainerrors.ErrInvalidInput
	}
	votation, err := repos.LockVotation(ctx, votationID)
	if err != nil {
		return CastOutcome{}, err
	}
	if !votation.Open {
		return CastOutcome{}, domainerrors.ErrNoOpenVotation
	}
	option, err := l.resolveOption(ctx, repos, votation, voteOptionID)
	if err != nil {
		return CastOutcome{}, err
	}

	now := l.now()
	if !identity.Test {
		existing, found, err := repos.FindBallot(ctx, identity.IdentityID, votation.VotationID)
		if err != nil {
			return CastOutcome{}, err
		}
		if found {
			previousOptionID := existing.VoteOptionID
			existing.VoteOptionID = option.VoteOptionID
			existing.CastAt = now
			if err := repos.UpdateBallot(ctx, existing); err != nil {
				return CastOutcome{}, err
			}
			vote, err := repos.GetVoteByBallot(ctx, existing.BallotID)
			if err != nil {
				return CastOutcome{}, err
			}
			if _, err := l.Audit.Record(ctx, repos, vote.VoteID, entities.AuditEventChanged, map[string]any{
				"vote_option_id":          option.VoteOptionID,
				"previous_vote_option_id": previousOptionID,
			}); err != nil {
				return CastOutcome{}, err
			}
			logger.Info("ballot updated",
				"event", "votation_ballot_updated",
				"module", application.ModuleName,
				"layer", "application",
				"ballot_id", existing.BallotID,
				"votation_id", votation.VotationID,
			)
			return CastOutcome{
				Ballot:   existing,
				Vote:     vote,
				Votation: votation,
				Option:   option,
				Action:   entities.CastActionUpdated,
			}, nil
		}
	}

	ballot, vote, err := l.insert(ctx, repos, identity.IdentityID, votation.VotationID, option.VoteOptionID, now)
	if err != nil {
		return CastOutcome{}, err
	}
	if !identity.Used {
		if err := repos.MarkIdentityUsed(ctx, identity.IdentityID); err != nil {
			return CastOutcome{}, err
		}
	}
	if _, err := l.Audit.Record(ctx, repos, vote.VoteID, entities.AuditEventCast, map[string]any{
		"vote_option_id": option.VoteOptionID,
	}); err != nil {
		return CastOutcome{}, err
	}
	logger.Info("ballot created",
		"event", "votation_ballot_created",
		"module", application.ModuleName,
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"votation_id", votation.VotationID,
		"test_identity", identity.Test,
	)
	return CastOutcome{
		Ballot:   ballot,
		Vote:     vote,
		Votation: votation,
		Option:   option,
		Action:   entities.CastActionCreated,
	}, nil
}

// Revoke deletes a ballot of an open votation. The revoked marker is written
// first and disappears with the ballot's cascade.
func (l Ledger) Revoke(ctx context.Context, repos ports.Repositories, ballotID string) (RevokeOutcome, error) {
	ballotID = strings.TrimSpace(ballotID)
	if ballotID == "" {
		return RevokeOutcome{}, domainerrors.ErrInvalidInput
	}
	ballot, err := repos.GetBallot(ctx, ballotID)
	if err != nil {
		return RevokeOutcome{}, err
	}
	votation, err := repos.LockVotation(ctx, ballot.VotationID)
	if err != nil {
		return RevokeOutcome{}, err
	}
	if !votation.Open {
		application.ResolveLogger(l.Logger).Warn("ballot revoke rejected on closed votation",
			"event", "votation_ballot_revoke_closed",
			"module", application.ModuleName,
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"votation_id", votation.VotationID,
		)
		return RevokeOutcome{}, domainerrors.ErrVotationClosed
	}
	vote, err := repos.GetVoteByBallot(ctx, ballot.BallotID)
	if err != nil {
		return RevokeOutcome{}, err
	}
	if _, err := l.Audit.Record(ctx, repos, vote.VoteID, entities.AuditEventRevoked, map[string]any{
		"vote_option_id": ballot.VoteOptionID,
	}); err != nil {
		return RevokeOutcome{}, err
	}
	if err := repos.DeleteBallot(ctx, ballot.BallotID); err != nil {
		return RevokeOutcome{}, err
	}
	application.ResolveLogger(l.Logger).Info("ballot revoked",
		"event", "votation_ballot_revoked",
		"module", application.ModuleName,
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"votation_id", votation.VotationID,
	)
	return RevokeOutcome{Ballot: ballot, Vote: vote, Votation: votation}, nil
}

// ManualInsert adds paper ballots, one placeholder identity per ballot.
// The batch is validated completely before anything is written.
func (l Ledger) ManualInsert(
	ctx context.Context,
	repos ports.Repositories,
	votationID string,
	counts map[string]int,
	notes string,
) (ManualOutcome, error) {
	votation, err := repos.LockVotation(ctx, strings.TrimSpace(votationID))
	if err != nil {
		return ManualOutcome{}, err
	}
	if !votation.Open {
		return ManualOutcome{}, domainerrors.ErrNoOpenVotation
	}
	proposition, err := repos.GetProposition(ctx, votation.PropositionID)
	if err != nil {
		return ManualOutcome{}, err
	}

	optionIDs := make([]string, 0, len(counts))
	total := 0
	for optionID, count := range counts {
		if _, ok := proposition.Option(optionID); !ok {
			return ManualOutcome{}, domainerrors.ErrVoteOptionNotInProposal
		}
		if count < 0 {
			return ManualOutcome{}, domainerrors.ErrNegativeBallotCount
		}
		if count == 0 {
			continue
		}
		if count > l.manualBallotLimit() || total+count > l.manualBallotLimit() {
			return ManualOutcome{}, domainerrors.ErrManualBallotLimit
		}
		optionIDs = append(optionIDs, optionID)
		total += count
	}
	if total == 0 {
		return ManualOutcome{}, domainerrors.ErrEmptyManualBallots
	}
	sort.Strings(optionIDs)

	now := l.now()
	notes = strings.TrimSpace(notes)
	added := make(map[string]int, len(optionIDs))
	for _, optionID := range optionIDs {
		for i := 0; i < counts[optionID]; i++ {
			identity, err := l.placeholderIdentity(ctx, votation.MeetingID, now)
			if err != nil {
				return ManualOutcome{}, err
			}
			if err := repos.CreateIdentity(ctx, identity); err != nil {
				return ManualOutcome{}, err
			}
			_, vote, err := l.insert(ctx, repos, identity.IdentityID, votation.VotationID, optionID, now)
			if err != nil {
				return ManualOutcome{}, err
			}
			if _, err := l.Audit.Record(ctx, repos, vote.VoteID, entities.AuditEventManualBallotAdded, map[string]any{
				"vote_option_id": optionID,
				"notes":          notes,
			}); err != nil {
				return ManualOutcome{}, err
			}
			added[optionID]++
		}
	}
	return ManualOutcome{
		Votation:       votation,
		Total:          total,
		CountsByOption: added,
		RecordedAt:     now,
	}, nil
}

func (l Ledger) resolveOption(
	ctx context.Context,
	repos ports.Repositories,
	votation entities.Votation,
	voteOptionID string,
) (entities.VoteOption, error) {
	proposition, err := repos.GetProposition(ctx, votation.PropositionID)
	if err != nil {
		return entities.VoteOption{}, err
	}
	option, ok := proposition.Option(voteOptionID)
	if !ok {
		return entities.VoteOption{}, domainerrors.ErrVoteOptionNotInProposal
	}
	return option, nil
}

func (l Ledger) insert(
	ctx context.Context,
	repos ports.Repositories,
	identityID string,
	votationID string,
	voteOptionID string,
	now time.Time,
) (entities.Ballot, entities.Vote, error) {
	ballotID, err := l.IDGen.NewID(ctx)
	if err != nil {
		return entities.Ballot{}, entities.Vote{}, err
	}
	voteID, err := l.IDGen.NewID(ctx)
	if err != nil {
		return entities.Ballot{}, entities.Vote{}, err
	}
	ballot := entities.Ballot{
		BallotID:     ballotID,
		IdentityID:   identityID,
		VotationID:   votationID,
		VoteOptionID: voteOptionID,
		CastAt:       now,
	}
	if err := repos.CreateBallot(ctx, ballot); err != nil {
		return entities.Ballot{}, entities.Vote{}, err
	}
	vote := entities.Vote{
		VoteID:    voteID,
		BallotID:  ballotID,
		CreatedAt: now,
	}
	if err := repos.CreateVote(ctx, vote); err != nil {
		return entities.Ballot{}, entities.Vote{}, err
	}
	return ballot, vote, nil
}

func (l Ledger) placeholderIdentity(
	ctx context.Context,
	meetingID string,
	now time.Time,
) (entities.AdmissionIdentity, error) {
	identityID, err := l.IDGen.NewID(ctx)
	if err != nil {
		return entities.AdmissionIdentity{}, err
	}
	return entities.AdmissionIdentity{
		IdentityID: identityID,
		MeetingID:  meetingID,
		Code:       manualCodePrefix + identityID,
		Used:       true,
		Manual:     true,
		CreatedAt:  now,
	}, nil
}

func (l Ledger) now() time.Time {
	if l.Clock != nil {
		return l.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func (l Ledger) manualBallotLimit() int {
	if l.ManualBallotLimit <= 0 {
		return defaultManualBallotLimit
	}
	return l.ManualBallotLimit
}
