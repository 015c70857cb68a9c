package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/application/audit"
	"quorum/contexts/meeting-governance/votation-engine/application/ballots"
	"quorum/contexts/meeting-governance/votation-engine/application/tickets"
	"quorum/contexts/meeting-governance/votation-engine/application/votations"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

const defaultCastRetryLimit = 3

type StartVotationResult struct {
	VotationID    string
	MeetingID     string
	PropositionID string
	StartedAtUTC  time.Time
	Open          bool
}

type StopVotationResult struct {
	VotationID    string
	MeetingID     string
	PropositionID string
	StartedAtUTC  time.Time
	EndedAtUTC    time.Time
	Open          bool
}

type CastVoteCommand struct {
	MeetingID     string
	PropositionID string
	VoteOptionID  string
	Code          string
}

type CastVoteResult struct {
	BallotID     string
	VoteID       string
	VotationID   string
	VoteOptionID string
	Action       entities.CastAction
}

type RevokeVoteResult struct {
	BallotID   string
	VotationID string
}

type RevoteResult struct {
	PropositionID        string
	ClosedVotationsCount int
	ClosedVotationIDs    []string
	LatestVotationID     string
	LatestOpen           bool
	LatestStartedAtUTC   *time.Time
}

type ManualBallotsCommand struct {
	VotationID   string
	OptionCounts map[string]int
	Notes        string
}

type ManualBallotResult struct {
	VotationID        string
	TotalBallotsAdded int
	CountsByOption    map[string]int
	RecordedAtUTC     time.Time
}

// EngineUseCase is the write side of the votation engine. Each command runs
// its components inside one transaction together with the outbox rows of the
// events it emits, so events are only published for committed changes.
type EngineUseCase struct {
	Store          ports.Store
	Tickets        tickets.Resolver
	Votations      votations.StateMachine
	Ballots        ballots.Ledger
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	CastRetryLimit int
	Logger         *slog.Logger
}

func (uc EngineUseCase) StartVotation(ctx context.Context, meetingID string, propositionID string) (StartVotationResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	var votation entities.Votation
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		started, err := uc.Votations.Start(ctx, repos, meetingID, propositionID)
		if err != nil {
			return err
		}
		votation = started
		return uc.appendEvent(ctx, repos, ports.EventPropositionVoteOpened, started.PropositionID, started.StartedAt, map[string]any{
			"meeting_id":     started.MeetingID,
			"proposition_id": started.PropositionID,
			"votation_id":    started.VotationID,
		})
	})
	if err != nil {
		return StartVotationResult{}, uc.fail(logger, "votation_start_failed", err,
			"meeting_id", strings.TrimSpace(meetingID),
			"proposition_id", strings.TrimSpace(propositionID),
		)
	}
	return StartVotationResult{
		VotationID:    votation.VotationID,
		MeetingID:     votation.MeetingID,
		PropositionID: votation.PropositionID,
		StartedAtUTC:  votation.StartedAt.UTC(),
		Open:          votation.Open,
	}, nil
}

func (uc EngineUseCase) StopVotation(ctx context.Context, propositionID string) (StopVotationResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	var votation entities.Votation
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		stopped, err := uc.Votations.Stop(ctx, repos, propositionID)
		if err != nil {
			return err
		}
		votation = stopped
		return uc.appendEvent(ctx, repos, ports.EventPropositionVoteStopped, stopped.PropositionID, *stopped.EndedAt, map[string]any{
			"meeting_id":     stopped.MeetingID,
			"proposition_id": stopped.PropositionID,
			"votation_id":    stopped.VotationID,
			"stopped_at_utc": stopped.EndedAt.UTC().Format(time.RFC3339Nano),
		})
	})
	if err != nil {
		return StopVotationResult{}, uc.fail(logger, "votation_stop_failed", err,
			"proposition_id", strings.TrimSpace(propositionID),
		)
	}
	return StopVotationResult{
		VotationID:    votation.VotationID,
		MeetingID:     votation.MeetingID,
		PropositionID: votation.PropositionID,
		StartedAtUTC:  votation.StartedAt.UTC(),
		EndedAtUTC:    votation.EndedAt.UTC(),
		Open:          votation.Open,
	}, nil
}

// CastVote records a ballot for the ticket in the proposition's open
// votation. A concurrent first cast by the same ticket surfaces as a
// duplicate-ballot violation; the command is retried and then takes the
// update path.
func (uc EngineUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	limit := uc.CastRetryLimit
	if limit <= 0 {
		limit = defaultCastRetryLimit
	}

	var (
		outcome ballots.CastOutcome
		err     error
	)
	for attempt := 1; ; attempt++ {
		outcome, err = uc.castOnce(ctx, cmd)
		if err == nil || !errors.Is(err, domainerrors.ErrDuplicateBallot) || attempt >= limit {
			break
		}
		logger.Warn("vote cast raced with another cast, retrying",
			"event", "votation_cast_retry",
			"module", application.ModuleName,
			"layer", "application",
			"proposition_id", strings.TrimSpace(cmd.PropositionID),
			"attempt", attempt,
		)
	}
	if err != nil {
		return CastVoteResult{}, uc.fail(logger, "votation_cast_failed", err,
			"meeting_id", strings.TrimSpace(cmd.MeetingID),
			"proposition_id", strings.TrimSpace(cmd.PropositionID),
			"vote_option_id", strings.TrimSpace(cmd.VoteOptionID),
		)
	}
	return CastVoteResult{
		BallotID:     outcome.Ballot.BallotID,
		VoteID:       outcome.Vote.VoteID,
		VotationID:   outcome.Votation.VotationID,
		VoteOptionID: outcome.Ballot.VoteOptionID,
		Action:       outcome.Action,
	}, nil
}

func (uc EngineUseCase) castOnce(ctx context.Context, cmd CastVoteCommand) (ballots.CastOutcome, error) {
	meetingID := strings.TrimSpace(cmd.MeetingID)
	propositionID := strings.TrimSpace(cmd.PropositionID)
	if meetingID == "" || propositionID == "" {
		return ballots.CastOutcome{}, domainerrors.ErrInvalidInput
	}

	var outcome ballots.CastOutcome
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		identity, err := uc.Tickets.Resolve(ctx, repos, cmd.Code, meetingID, tickets.ModeCast)
		if err != nil {
			return err
		}
		open, err := repos.ListOpenVotationsByPair(ctx, meetingID, propositionID)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return domainerrors.ErrNoOpenVotation
		}
		latest := open[0]
		for _, item := range open[1:] {
			if item.Later(latest) {
				latest = item
			}
		}

		cast, err := uc.Ballots.Cast(ctx, repos, identity, latest.VotationID, cmd.VoteOptionID)
		if err != nil {
			return err
		}
		outcome = cast
		eventType := ports.EventVoteCast
		if cast.Action == entities.CastActionUpdated {
			eventType = ports.EventVoteChanged
		}
		return uc.appendEvent(ctx, repos, eventType, cast.Votation.PropositionID, cast.Ballot.CastAt, map[string]any{
			"meeting_id":     cast.Votation.MeetingID,
			"proposition_id": cast.Votation.PropositionID,
			"votation_id":    cast.Votation.VotationID,
			"ballot_id":      cast.Ballot.BallotID,
			"vote_id":        cast.Vote.VoteID,
		})
	})
	return outcome, err
}

// RevokeVote deletes a ballot of an open votation. The vote.revoked outbox
// row outlives the ballot's cascading audit record.
func (uc EngineUseCase) RevokeVote(ctx context.Context, ballotID string) (RevokeVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	var outcome ballots.RevokeOutcome
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		revoked, err := uc.Ballots.Revoke(ctx, repos, ballotID)
		if err != nil {
			return err
		}
		outcome = revoked
		return uc.appendEvent(ctx, repos, ports.EventVoteRevoked, revoked.Votation.PropositionID, uc.now(), map[string]any{
			"meeting_id":     revoked.Votation.MeetingID,
			"proposition_id": revoked.Votation.PropositionID,
			"votation_id":    revoked.Votation.VotationID,
			"ballot_id":      revoked.Ballot.BallotID,
			"vote_id":        revoked.Vote.VoteID,
		})
	})
	if err != nil {
		return RevokeVoteResult{}, uc.fail(logger, "votation_revoke_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return RevokeVoteResult{
		BallotID:   outcome.Ballot.BallotID,
		VotationID: outcome.Votation.VotationID,
	}, nil
}

func (uc EngineUseCase) StartRevote(ctx context.Context, propositionID string) (RevoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	var outcome votations.RevoteOutcome
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		revote, err := uc.Votations.Revote(ctx, repos, propositionID)
		if err != nil {
			return err
		}
		outcome = revote
		if len(revote.Closed) == 0 {
			return nil
		}
		closedIDs := make([]string, 0, len(revote.Closed))
		for _, item := range revote.Closed {
			closedIDs = append(closedIDs, item.VotationID)
		}
		return uc.appendEvent(ctx, repos, ports.EventRevoteStarted, strings.TrimSpace(propositionID), uc.now(), map[string]any{
			"proposition_id":      strings.TrimSpace(propositionID),
			"closed_count":        len(revote.Closed),
			"closed_votation_ids": closedIDs,
			"latest_votation_id":  revote.Latest.VotationID,
		})
	})
	if err != nil {
		return RevoteResult{}, uc.fail(logger, "votation_revote_failed", err,
			"proposition_id", strings.TrimSpace(propositionID),
		)
	}

	result := RevoteResult{
		PropositionID:        strings.TrimSpace(propositionID),
		ClosedVotationsCount: len(outcome.Closed),
		ClosedVotationIDs:    make([]string, 0, len(outcome.Closed)),
	}
	for _, item := range outcome.Closed {
		result.ClosedVotationIDs = append(result.ClosedVotationIDs, item.VotationID)
	}
	if outcome.Found {
		startedAt := outcome.Latest.StartedAt.UTC()
		result.LatestVotationID = outcome.Latest.VotationID
		result.LatestOpen = outcome.Latest.Open
		result.LatestStartedAtUTC = &startedAt
	}
	return result, nil
}

func (uc EngineUseCase) AddManualBallots(ctx context.Context, cmd ManualBallotsCommand) (ManualBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	var outcome ballots.ManualOutcome
	err := uc.Store.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		added, err := uc.Ballots.ManualInsert(ctx, repos, cmd.VotationID, cmd.OptionCounts, cmd.Notes)
		if err != nil {
			return err
		}
		outcome = added
		return uc.appendEvent(ctx, repos, ports.EventManualBallotsAdded, added.Votation.PropositionID, added.RecordedAt, map[string]any{
			"meeting_id":       added.Votation.MeetingID,
			"proposition_id":   added.Votation.PropositionID,
			"votation_id":      added.Votation.VotationID,
			"total":            added.Total,
			"counts_by_option": added.CountsByOption,
		})
	})
	if err != nil {
		return ManualBallotResult{}, uc.fail(logger, "votation_manual_ballots_failed", err,
			"votation_id", strings.TrimSpace(cmd.VotationID),
		)
	}

	uc.Ballots.Audit.Summarize(audit.ManualSummary{
		VotationID:     outcome.Votation.VotationID,
		Total:          outcome.Total,
		CountsByOption: outcome.CountsByOption,
		Notes:          cmd.Notes,
		RecordedAt:     outcome.RecordedAt,
	})
	return ManualBallotResult{
		VotationID:        outcome.Votation.VotationID,
		TotalBallotsAdded: outcome.Total,
		CountsByOption:    outcome.CountsByOption,
		RecordedAtUTC:     outcome.RecordedAt.UTC(),
	}, nil
}

// fail keeps domain errors as they are and wraps everything else in
// ErrInternal after logging it.
func (uc EngineUseCase) fail(logger *slog.Logger, event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "application",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	if domainerrors.IsDomain(err) {
		logger.Warn("votation command rejected", fields...)
		return err
	}
	logger.Error("votation command failed", fields...)
	return fmt.Errorf("%w: %w", domainerrors.ErrInternal, err)
}

func (uc EngineUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
