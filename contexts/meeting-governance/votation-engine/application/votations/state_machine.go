package votations

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

// StateMachine owns the Open -> Closed and Open -> Overwritten transitions
// of votations. Every method expects to run inside the caller's transaction.
type StateMachine struct {
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// RevoteOutcome reports the rounds a revote closed and the latest round of
// the proposition, if any.
type RevoteOutcome struct {
	Closed []entities.Votation
	Latest entities.Votation
	Found  bool
}

func (m StateMachine) Start(
	ctx context.Context,
	repos ports.Repositories,
	meetingID string,
	propositionID string,
) (entities.Votation, error) {
	logger := application.ResolveLogger(m.Logger)
	meetingID = strings.TrimSpace(meetingID)
	propositionID = strings.TrimSpace(propositionID)
	if meetingID == "" || propositionID == "" {
		return entities.Votation{}, domainerrors.ErrInvalidInput
	}
	if _, err := repos.GetMeeting(ctx, meetingID); err != nil {
		return entities.Votation{}, err
	}
	proposition, err := repos.GetProposition(ctx, propositionID)
	if err != nil {
		return entities.Votation{}, err
	}
	if proposition.MeetingID != meetingID {
		logger.Warn("votation start rejected, proposition belongs to another meeting",
			"event", "votation_start_wrong_meeting",
			"module", application.ModuleName,
			"layer", "application",
			"meeting_id", meetingID,
			"proposition_id", propositionID,
			"proposition_meeting_id", proposition.MeetingID,
		)
		return entities.Votation{}, domainerrors.ErrPropositionNotInMeeting
	}

	open, err := repos.ListOpenVotationsByPair(ctx, meetingID, propositionID)
	if err != nil {
		return entities.Votation{}, err
	}
	if len(open) > 0 {
		logger.Warn("votation start rejected, round already open",
			"event", "votation_start_conflict",
			"module", application.ModuleName,
			"layer", "application",
			"meeting_id", meetingID,
			"proposition_id", propositionID,
			"open_votation_id", open[0].VotationID,
		)
		return entities.Votation{}, domainerrors.ErrVotationAlreadyOpen
	}

	now := m.now()
	votationID, err := m.IDGen.NewID(ctx)
	if err != nil {
		return entities.Votation{}, err
	}
	votation := entities.Votation{
		VotationID:    votationID,
		MeetingID:     meetingID,
		PropositionID: propositionID,
		StartedAt:     now,
		Open:          true,
	}
	if err := repos.CreateVotation(ctx, votation); err != nil {
		return entities.Votation{}, err
	}
	logger.Info("votation started",
		"event", "votation_started",
		"module", application.ModuleName,
		"layer", "application",
		"votation_id", votation.VotationID,
		"meeting_id", meetingID,
		"proposition_id", propositionID,
	)
	return votation, nil
}

func (m StateMachine) Stop(
	ctx context.Context,
	repos ports.Repositories,
	propositionID string,
) (entities.Votation, error) {
	propositionID = strings.TrimSpace(propositionID)
	if propositionID == "" {
		return entities.Votation{}, domainerrors.ErrInvalidInput
	}
	open, err := repos.ListOpenVotationsByProposition(ctx, propositionID)
	if err != nil {
		return entities.Votation{}, err
	}
	if len(open) == 0 {
		return entities.Votation{}, domainerrors.ErrOpenVotationNotFound
	}
	sortLatestFirst(open)

	votation, err := repos.LockVotation(ctx, open[0].VotationID)
	if err != nil {
		return entities.Votation{}, err
	}
	if !votation.Open {
		return entities.Votation{}, domainerrors.ErrOpenVotationNotFound
	}
	votation.Close(m.now())
	if err := repos.SaveVotation(ctx, votation); err != nil {
		return entities.Votation{}, err
	}
	application.ResolveLogger(m.Logger).Info("votation stopped",
		"event", "votation_stopped",
		"module", application.ModuleName,
		"layer", "application",
		"votation_id", votation.VotationID,
		"meeting_id", votation.MeetingID,
		"proposition_id", votation.PropositionID,
	)
	return votation, nil
}

// Revote supersedes every open round of the proposition. It succeeds with
// nothing closed when no round is open.
func (m StateMachine) Revote(
	ctx context.Context,
	repos ports.Repositories,
	propositionID string,
) (RevoteOutcome, error) {
	propositionID = strings.TrimSpace(propositionID)
	if propositionID == "" {
		return RevoteOutcome{}, domainerrors.ErrInvalidInput
	}
	if _, err := repos.GetProposition(ctx, propositionID); err != nil {
		return RevoteOutcome{}, err
	}
	open, err := repos.ListOpenVotationsByProposition(ctx, propositionID)
	if err != nil {
		return RevoteOutcome{}, err
	}
	closed, err := m.overwrite(ctx, repos, open, m.now())
	if err != nil {
		return RevoteOutcome{}, err
	}

	outcome := RevoteOutcome{Closed: closed}
	history, err := repos.ListVotationsByProposition(ctx, propositionID)
	if err != nil {
		return RevoteOutcome{}, err
	}
	if len(history) > 0 {
		sortLatestFirst(history)
		outcome.Latest = history[0]
		outcome.Found = true
	}
	application.ResolveLogger(m.Logger).Info("votation revote prepared",
		"event", "votation_revote_prepared",
		"module", application.ModuleName,
		"layer", "application",
		"proposition_id", propositionID,
		"closed_count", len(closed),
	)
	return outcome, nil
}

// CloseMeeting closes every open round of a meeting that has ended.
func (m StateMachine) CloseMeeting(
	ctx context.Context,
	repos ports.Repositories,
	meetingID string,
) ([]entities.Votation, error) {
	open, err := repos.ListOpenVotationsByMeeting(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return nil, err
	}
	return m.closeAll(ctx, repos, open)
}

// CloseProposition closes every open round of a withdrawn proposition. The
// catalog entry may already be gone, so it is not looked up.
func (m StateMachine) CloseProposition(
	ctx context.Context,
	repos ports.Repositories,
	propositionID string,
) ([]entities.Votation, error) {
	open, err := repos.ListOpenVotationsByProposition(ctx, strings.TrimSpace(propositionID))
	if err != nil {
		return nil, err
	}
	return m.closeAll(ctx, repos, open)
}

func (m StateMachine) closeAll(
	ctx context.Context,
	repos ports.Repositories,
	open []entities.Votation,
) ([]entities.Votation, error) {
	now := m.now()
	closed := make([]entities.Votation, 0, len(open))
	for _, item := range open {
		votation, err := repos.LockVotation(ctx, item.VotationID)
		if err != nil {
			return nil, err
		}
		if !votation.Open {
			continue
		}
		votation.Close(now)
		if err := repos.SaveVotation(ctx, votation); err != nil {
			return nil, err
		}
		closed = append(closed, votation)
	}
	return closed, nil
}

func (m StateMachine) overwrite(
	ctx context.Context,
	repos ports.Repositories,
	open []entities.Votation,
	now time.Time,
) ([]entities.Votation, error) {
	closed := make([]entities.Votation, 0, len(open))
	for _, item := range open {
		votation, err := repos.LockVotation(ctx, item.VotationID)
		if err != nil {
			return nil, err
		}
		if !votation.Open || votation.Overwritten {
			continue
		}
		votation.Overwrite(now)
		if err := repos.SaveVotation(ctx, votation); err != nil {
			return nil, err
		}
		application.ResolveLogger(m.Logger).Info("votation overwritten",
			"event", "votation_overwritten",
			"module", application.ModuleName,
			"layer", "application",
			"votation_id", votation.VotationID,
			"proposition_id", votation.PropositionID,
		)
		closed = append(closed, votation)
	}
	return closed, nil
}

func (m StateMachine) now() time.Time {
	if m.Clock != nil {
		return m.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func sortLatestFirst(items []entities.Votation) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Later(items[j])
	})
}
