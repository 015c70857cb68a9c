package queries

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/application/tickets"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

type TallyUseCase struct {
	Repos   ports.Repositories
	Tickets tickets.Resolver
	Logger  *slog.Logger
}

// Results counts the ballots of a votation per option. Options without
// ballots are reported with a zero count.
func (uc TallyUseCase) Results(ctx context.Context, votationID string) (entities.VotationResults, error) {
	results, err := uc.results(ctx, strings.TrimSpace(votationID))
	if err != nil {
		return entities.VotationResults{}, uc.fail("votation_results_failed", err, "votation_id", votationID)
	}
	return results, nil
}

func (uc TallyUseCase) results(ctx context.Context, votationID string) (entities.VotationResults, error) {
	votation, err := uc.Repos.GetVotation(ctx, votationID)
	if err != nil {
		return entities.VotationResults{}, err
	}
	proposition, err := uc.Repos.GetProposition(ctx, votation.PropositionID)
	if err != nil {
		return entities.VotationResults{}, err
	}
	ballots, err := uc.Repos.ListBallotsByVotation(ctx, votation.VotationID)
	if err != nil {
		return entities.VotationResults{}, err
	}
	results := tally(votation, proposition, ballots)
	application.ResolveLogger(uc.Logger).Debug("votation results computed",
		"event", "votation_results_computed",
		"module", application.ModuleName,
		"layer", "application",
		"votation_id", votation.VotationID,
		"total_votes", results.TotalVotes,
	)
	return results, nil
}

// CheckIfVoted reports the identity's current ballot regardless of whether
// the votation is still open.
func (uc TallyUseCase) CheckIfVoted(ctx context.Context, code string, votationID string) (entities.VoteCheck, error) {
	check, err := uc.checkIfVoted(ctx, code, strings.TrimSpace(votationID))
	if err != nil {
		return entities.VoteCheck{}, uc.fail("votation_vote_check_failed", err, "votation_id", votationID)
	}
	return check, nil
}

func (uc TallyUseCase) checkIfVoted(ctx context.Context, code string, votationID string) (entities.VoteCheck, error) {
	votation, err := uc.Repos.GetVotation(ctx, votationID)
	if err != nil {
		return entities.VoteCheck{}, err
	}
	identity, err := uc.Tickets.Resolve(ctx, uc.Repos, code, votation.MeetingID, tickets.ModeCheck)
	if err != nil {
		return entities.VoteCheck{}, err
	}
	if identity.Test {
		return entities.VoteCheck{}, nil
	}
	ballot, found, err := uc.Repos.FindBallot(ctx, identity.IdentityID, votation.VotationID)
	if err != nil {
		return entities.VoteCheck{}, err
	}
	if !found {
		return entities.VoteCheck{}, nil
	}
	check := entities.VoteCheck{
		HasVoted:     true,
		BallotID:     ballot.BallotID,
		VoteOptionID: ballot.VoteOptionID,
	}
	castAt := ballot.CastAt.UTC()
	check.CastAt = &castAt
	proposition, err := uc.Repos.GetProposition(ctx, votation.PropositionID)
	if err != nil {
		return entities.VoteCheck{}, err
	}
	if option, ok := proposition.Option(ballot.VoteOptionID); ok {
		check.VoteOptionLabel = option.Label
	}
	return check, nil
}

// ListVotations returns every round of a proposition, latest first.
func (uc TallyUseCase) ListVotations(ctx context.Context, propositionID string) ([]entities.Votation, error) {
	items, err := uc.listVotations(ctx, propositionID)
	if err != nil {
		return nil, uc.fail("votation_list_failed", err, "proposition_id", propositionID)
	}
	return items, nil
}

func (uc TallyUseCase) listVotations(ctx context.Context, propositionID string) ([]entities.Votation, error) {
	propositionID = strings.TrimSpace(propositionID)
	if propositionID == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if _, err := uc.Repos.GetProposition(ctx, propositionID); err != nil {
		return nil, err
	}
	items, err := uc.Repos.ListVotationsByProposition(ctx, propositionID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Later(items[j])
	})
	return items, nil
}

// LatestVotation returns the most recent round of a proposition, open or not.
func (uc TallyUseCase) LatestVotation(ctx context.Context, propositionID string) (entities.Votation, error) {
	items, err := uc.listVotations(ctx, propositionID)
	if err == nil && len(items) == 0 {
		err = domainerrors.ErrVotationNotFound
	}
	if err != nil {
		return entities.Votation{}, uc.fail("votation_latest_failed", err, "proposition_id", propositionID)
	}
	return items[0], nil
}

// fail passes domain errors through and hides storage failures behind
// ErrInternal, logging the cause.
func (uc TallyUseCase) fail(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", application.ModuleName,
		"layer", "application",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	logger := application.ResolveLogger(uc.Logger)
	if domainerrors.IsDomain(err) {
		logger.Debug("votation query rejected", fields...)
		return err
	}
	logger.Error("votation query failed", fields...)
	return fmt.Errorf("%w: %w", domainerrors.ErrInternal, err)
}

func tally(
	votation entities.Votation,
	proposition entities.Proposition,
	ballots []entities.Ballot,
) entities.VotationResults {
	options := make([]entities.OptionTally, 0, len(proposition.Options))
	index := make(map[string]int, len(proposition.Options))
	for _, option := range proposition.Options {
		index[option.VoteOptionID] = len(options)
		options = append(options, entities.OptionTally{
			VoteOptionID: option.VoteOptionID,
			Label:        option.Label,
			Position:     option.Position,
		})
	}

	total := 0
	for _, ballot := range ballots {
		position, ok := index[ballot.VoteOptionID]
		if !ok {
			continue
		}
		options[position].Count++
		total++
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Position < options[j].Position
	})

	return entities.VotationResults{
		VotationID:    votation.VotationID,
		MeetingID:     votation.MeetingID,
		PropositionID: votation.PropositionID,
		Question:      proposition.Question,
		TotalVotes:    total,
		Options:       options,
		Open:          votation.Open,
		Overwritten:   votation.Overwritten,
		StartedAt:     votation.StartedAt,
		EndedAt:       votation.EndedAt,
	}
}
