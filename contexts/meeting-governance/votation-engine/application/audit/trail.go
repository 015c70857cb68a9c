package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

// Trail keeps the last lifecycle marker of every vote. Records are rewritten
// in place, so only the most recent transition of a ballot survives.
type Trail struct {
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

// ManualSummary describes one batch of paper ballots.
type ManualSummary struct {
	VotationID     string
	Total          int
	CountsByOption map[string]int
	Notes          string
	RecordedAt     time.Time
}

// Record attaches eventType to the vote, replacing the previous marker.
func (t Trail) Record(
	ctx context.Context,
	audits ports.AuditRepository,
	voteID string,
	eventType entities.AuditEventType,
	metadata map[string]any,
) (entities.AuditableEvent, error) {
	now := t.now()
	event, found, err := audits.GetAuditEventByVote(ctx, voteID)
	if err != nil {
		return entities.AuditableEvent{}, err
	}
	if !found {
		eventID, err := t.IDGen.NewID(ctx)
		if err != nil {
			return entities.AuditableEvent{}, err
		}
		event = entities.AuditableEvent{
			AuditEventID: eventID,
			VoteID:       voteID,
		}
	}
	encoded, err := encodeMetadata(metadata)
	if err != nil {
		return entities.AuditableEvent{}, err
	}
	event.EventType = eventType
	event.Metadata = encoded
	event.OccurredAt = now
	if err := audits.SaveAuditEvent(ctx, event); err != nil {
		return entities.AuditableEvent{}, err
	}
	application.ResolveLogger(t.Logger).Debug("vote audit recorded",
		"event", "votation_audit_recorded",
		"module", application.ModuleName,
		"layer", "application",
		"vote_id", voteID,
		"audit_event_type", string(eventType),
	)
	return event, nil
}

// Summarize logs one aggregate line per manual batch. It is not persisted;
// each manual ballot carries its own audit record.
func (t Trail) Summarize(summary ManualSummary) {
	options := make([]string, 0, len(summary.CountsByOption))
	for optionID := range summary.CountsByOption {
		options = append(options, optionID)
	}
	sort.Strings(options)
	breakdown := make([]any, 0, len(options))
	for _, optionID := range options {
		breakdown = append(breakdown, slog.Int(optionID, summary.CountsByOption[optionID]))
	}
	application.ResolveLogger(t.Logger).Info("manual ballots recorded",
		"event", "votation_manual_ballots_recorded",
		"module", application.ModuleName,
		"layer", "application",
		"votation_id", summary.VotationID,
		"total", summary.Total,
		"notes", strings.TrimSpace(summary.Notes),
		"recorded_at", summary.RecordedAt.Format(time.RFC3339),
		slog.Group("counts_by_option", breakdown...),
	)
}

func (t Trail) now() time.Time {
	if t.Clock != nil {
		return t.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

func encodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
