package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/application/commands"
	"quorum/contexts/meeting-governance/votation-engine/application/queries"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	httptransport "quorum/contexts/meeting-governance/votation-engine/transport/http"
)

type Handler struct {
	Engine commands.EngineUseCase
	Tally  queries.TallyUseCase
	Logger *slog.Logger
}

func (h Handler) StartVotationHandler(ctx context.Context, meetingID string, propositionID string) (httptransport.VotationResponse, error) {
	result, err := h.Engine.StartVotation(ctx, meetingID, propositionID)
	if err != nil {
		return httptransport.VotationResponse{}, err
	}
	return httptransport.VotationResponse{
		VotationID:    result.VotationID,
		MeetingID:     result.MeetingID,
		PropositionID: result.PropositionID,
		Status:        string(entities.VotationStatusOpen),
		Open:          result.Open,
		StartedAtUTC:  formatTime(result.StartedAtUTC),
	}, nil
}

func (h Handler) StopVotationHandler(ctx context.Context, propositionID string) (httptransport.VotationResponse, error) {
	result, err := h.Engine.StopVotation(ctx, propositionID)
	if err != nil {
		return httptransport.VotationResponse{}, err
	}
	return httptransport.VotationResponse{
		VotationID:    result.VotationID,
		MeetingID:     result.MeetingID,
		PropositionID: result.PropositionID,
		Status:        string(entities.VotationStatusClosed),
		Open:          result.Open,
		StartedAtUTC:  formatTime(result.StartedAtUTC),
		EndedAtUTC:    formatTime(result.EndedAtUTC),
	}, nil
}

func (h Handler) RevoteHandler(ctx context.Context, propositionID string) (httptransport.RevoteResponse, error) {
	result, err := h.Engine.StartRevote(ctx, propositionID)
	if err != nil {
		return httptransport.RevoteResponse{}, err
	}
	resp := httptransport.RevoteResponse{
		PropositionID:        result.PropositionID,
		ClosedVotationsCount: result.ClosedVotationsCount,
		ClosedVotationIDs:    result.ClosedVotationIDs,
		LatestVotationID:     result.LatestVotationID,
		LatestOpen:           result.LatestOpen,
	}
	if result.LatestStartedAtUTC != nil {
		resp.LatestStartedAtUTC = formatTime(*result.LatestStartedAtUTC)
	}
	return resp, nil
}

func (h Handler) ListVotationsHandler(ctx context.Context, propositionID string) (httptransport.VotationListResponse, error) {
	items, err := h.Tally.ListVotations(ctx, propositionID)
	if err != nil {
		return httptransport.VotationListResponse{}, err
	}
	resp := httptransport.VotationListResponse{
		PropositionID: propositionID,
		Items:         make([]httptransport.VotationResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, mapVotation(item))
	}
	return resp, nil
}

func (h Handler) LatestVotationHandler(ctx context.Context, propositionID string) (httptransport.VotationResponse, error) {
	votation, err := h.Tally.LatestVotation(ctx, propositionID)
	if err != nil {
		return httptransport.VotationResponse{}, err
	}
	return mapVotation(votation), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	code string,
	meetingID string,
	propositionID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Engine.CastVote(ctx, commands.CastVoteCommand{
		MeetingID:     meetingID,
		PropositionID: propositionID,
		VoteOptionID:  req.VoteOptionID,
		Code:          code,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		BallotID:     result.BallotID,
		VoteID:       result.VoteID,
		VotationID:   result.VotationID,
		VoteOptionID: result.VoteOptionID,
		Action:       string(result.Action),
	}, nil
}

func (h Handler) CheckVoteHandler(ctx context.Context, code string, votationID string) (httptransport.VoteCheckResponse, error) {
	check, err := h.Tally.CheckIfVoted(ctx, code, votationID)
	if err != nil {
		return httptransport.VoteCheckResponse{}, err
	}
	resp := httptransport.VoteCheckResponse{
		HasVoted:        check.HasVoted,
		BallotID:        check.BallotID,
		VoteOptionID:    check.VoteOptionID,
		VoteOptionLabel: check.VoteOptionLabel,
	}
	if check.CastAt != nil {
		resp.CastAtUTC = formatTime(*check.CastAt)
	}
	return resp, nil
}

func (h Handler) ResultsHandler(ctx context.Context, votationID string) (httptransport.VotationResultsResponse, error) {
	results, err := h.Tally.Results(ctx, votationID)
	if err != nil {
		return httptransport.VotationResultsResponse{}, err
	}
	resp := httptransport.VotationResultsResponse{
		VotationID:    results.VotationID,
		MeetingID:     results.MeetingID,
		PropositionID: results.PropositionID,
		Question:      results.Question,
		TotalVotes:    results.TotalVotes,
		Options:       make([]httptransport.OptionResultItem, 0, len(results.Options)),
		Open:          results.Open,
		Overwritten:   results.Overwritten,
		StartedAtUTC:  formatTime(results.StartedAt),
	}
	if results.EndedAt != nil {
		resp.EndedAtUTC = formatTime(*results.EndedAt)
	}
	for _, option := range results.Options {
		resp.Options = append(resp.Options, httptransport.OptionResultItem{
			VoteOptionID: option.VoteOptionID,
			Label:        option.Label,
			Position:     option.Position,
			Count:        option.Count,
		})
	}
	return resp, nil
}

func (h Handler) RevokeVoteHandler(ctx context.Context, ballotID string) (httptransport.RevokeVoteResponse, error) {
	result, err := h.Engine.RevokeVote(ctx, ballotID)
	if err != nil {
		return httptransport.RevokeVoteResponse{}, err
	}
	return httptransport.RevokeVoteResponse{
		BallotID:   result.BallotID,
		VotationID: result.VotationID,
		Revoked:    true,
	}, nil
}

func (h Handler) ManualBallotsHandler(
	ctx context.Context,
	votationID string,
	req httptransport.ManualBallotsRequest,
) (httptransport.ManualBallotsResponse, error) {
	result, err := h.Engine.AddManualBallots(ctx, commands.ManualBallotsCommand{
		VotationID:   votationID,
		OptionCounts: req.OptionCounts,
		Notes:        req.Notes,
	})
	if err != nil {
		return httptransport.ManualBallotsResponse{}, err
	}
	return httptransport.ManualBallotsResponse{
		VotationID:        result.VotationID,
		TotalBallotsAdded: result.TotalBallotsAdded,
		CountsByOption:    result.CountsByOption,
		RecordedAtUTC:     formatTime(result.RecordedAtUTC),
	}, nil
}

func mapVotation(votation entities.Votation) httptransport.VotationResponse {
	resp := httptransport.VotationResponse{
		VotationID:    votation.VotationID,
		MeetingID:     votation.MeetingID,
		PropositionID: votation.PropositionID,
		Status:        string(votation.Status()),
		Open:          votation.Open,
		Overwritten:   votation.Overwritten,
		StartedAtUTC:  formatTime(votation.StartedAt),
	}
	if votation.EndedAt != nil {
		resp.EndedAtUTC = formatTime(*votation.EndedAt)
	}
	return resp
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
