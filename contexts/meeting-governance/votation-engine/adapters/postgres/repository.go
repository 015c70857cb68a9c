package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
	"quorum/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// WithinTx runs fn inside one database transaction. The repositories handed
// to fn are bound to that transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Repository{db: tx, logger: r.logger})
	})
}

// UpsertMeeting writes a catalog meeting. The engine never calls it; catalog
// sync jobs and tests do.
func (r *Repository) UpsertMeeting(ctx context.Context, meeting entities.Meeting) error {
	row := meetingModel{
		ID:   strings.TrimSpace(meeting.MeetingID),
		Name: strings.TrimSpace(meeting.Name),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&row).Error; err != nil {
		return r.logError("votation_repo_upsert_meeting_failed", err, "meeting_id", row.ID)
	}
	return nil
}

// UpsertProposition writes a proposition and replaces its vote options.
func (r *Repository) UpsertProposition(ctx context.Context, proposition entities.Proposition) error {
	propositionID := strings.TrimSpace(proposition.PropositionID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := propositionModel{
			ID:        propositionID,
			MeetingID: strings.TrimSpace(proposition.MeetingID),
			Question:  strings.TrimSpace(proposition.Question),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"meeting_id", "question"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		// Options are upserted by id so ballots keep their option reference.
		// Dropping an option that already holds ballots fails on the foreign key.
		keep := make([]string, 0, len(proposition.Options))
		options := make([]voteOptionModel, 0, len(proposition.Options))
		for _, option := range proposition.Options {
			optionID := strings.TrimSpace(option.VoteOptionID)
			keep = append(keep, optionID)
			options = append(options, voteOptionModel{
				ID:            optionID,
				PropositionID: propositionID,
				Label:         strings.TrimSpace(option.Label),
				Position:      option.Position,
			})
		}
		stale := tx.Where("proposition_id = ?", propositionID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := stale.Delete(&voteOptionModel{}).Error; err != nil {
			return err
		}
		if len(options) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"proposition_id", "label", "position"}),
		}).Create(&options).Error
	})
	if err != nil {
		return r.logError("votation_repo_upsert_proposition_failed", err, "proposition_id", propositionID)
	}
	return nil
}

func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (entities.Meeting, error) {
	var row meetingModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(meetingID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Meeting{}, domainerrors.ErrMeetingNotFound
		}
		return entities.Meeting{}, r.logError("votation_repo_get_meeting_failed", err,
			"meeting_id", strings.TrimSpace(meetingID),
		)
	}
	return entities.Meeting{MeetingID: row.ID, Name: row.Name}, nil
}

func (r *Repository) GetProposition(ctx context.Context, propositionID string) (entities.Proposition, error) {
	var row propositionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(propositionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposition{}, domainerrors.ErrPropositionNotFound
		}
		return entities.Proposition{}, r.logError("votation_repo_get_proposition_failed", err,
			"proposition_id", strings.TrimSpace(propositionID),
		)
	}
	var options []voteOptionModel
	if err := r.db.WithContext(ctx).
		Where("proposition_id = ?", row.ID).
		Order("position ASC").
		Order("id ASC").
		Find(&options).Error; err != nil {
		return entities.Proposition{}, r.logError("votation_repo_list_vote_options_failed", err,
			"proposition_id", row.ID,
		)
	}
	proposition := entities.Proposition{
		PropositionID: row.ID,
		MeetingID:     row.MeetingID,
		Question:      row.Question,
		Options:       make([]entities.VoteOption, 0, len(options)),
	}
	for _, option := range options {
		proposition.Options = append(proposition.Options, option.toEntity())
	}
	return proposition, nil
}

func (r *Repository) GetIdentity(ctx context.Context, identityID string) (entities.AdmissionIdentity, error) {
	return r.getIdentity(ctx, "id = ?", identityID, "votation_repo_get_identity_failed")
}

func (r *Repository) GetIdentityByCode(ctx context.Context, code string) (entities.AdmissionIdentity, error) {
	return r.getIdentity(ctx, "code = ?", code, "votation_repo_get_identity_by_code_failed")
}

func (r *Repository) getIdentity(ctx context.Context, query string, value string, failureEvent string) (entities.AdmissionIdentity, error) {
	var row identityModel
	err := r.db.WithContext(ctx).
		Where(query, strings.TrimSpace(value)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.AdmissionIdentity{}, domainerrors.ErrIdentityNotFound
		}
		return entities.AdmissionIdentity{}, r.logError(failureEvent, err)
	}
	return row.toEntity(), nil
}

func (r *Repository) CreateIdentity(ctx context.Context, identity entities.AdmissionIdentity) error {
	row := identityModelFromEntity(identity)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrInvalidInput
		}
		return r.logError("votation_repo_create_identity_failed", err,
			"identity_id", row.ID,
			"meeting_id", row.MeetingID,
		)
	}
	return nil
}

func (r *Repository) MarkIdentityUsed(ctx context.Context, identityID string) error {
	result := r.db.WithContext(ctx).
		Model(&identityModel{}).
		Where("id = ?", strings.TrimSpace(identityID)).
		Update("used", true)
	if result.Error != nil {
		return r.logError("votation_repo_mark_identity_used_failed", result.Error,
			"identity_id", strings.TrimSpace(identityID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrIdentityNotFound
	}
	return nil
}

func (r *Repository) CreateVotation(ctx context.Context, votation entities.Votation) error {
	row := votationModelFromEntity(votation)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrVotationAlreadyOpen
		}
		return r.logError("votation_repo_create_votation_failed", err,
			"votation_id", row.ID,
			"meeting_id", row.MeetingID,
			"proposition_id", row.PropositionID,
		)
	}
	return nil
}

func (r *Repository) SaveVotation(ctx context.Context, votation entities.Votation) error {
	row := votationModelFromEntity(votation)
	result := r.db.WithContext(ctx).
		Model(&votationModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"ended_at":    row.EndedAt,
			"open":        row.Open,
			"overwritten": row.Overwritten,
		})
	if result.Error != nil {
		return r.logError("votation_repo_save_votation_failed", result.Error, "votation_id", row.ID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVotationNotFound
	}
	return nil
}

func (r *Repository) GetVotation(ctx context.Context, votationID string) (entities.Votation, error) {
	return r.getVotation(r.db.WithContext(ctx), votationID)
}

func (r *Repository) LockVotation(ctx context.Context, votationID string) (entities.Votation, error) {
	tx := r.db.WithContext(ctx)
	// SQLite serializes writers per database and has no row locks.
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.getVotation(tx, votationID)
}

func (r *Repository) getVotation(tx *gorm.DB, votationID string) (entities.Votation, error) {
	var row votationModel
	err := tx.
		Where("id = ?", strings.TrimSpace(votationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Votation{}, domainerrors.ErrVotationNotFound
		}
		return entities.Votation{}, r.logError("votation_repo_get_votation_failed", err,
			"votation_id", strings.TrimSpace(votationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListOpenVotationsByPair(ctx context.Context, meetingID string, propositionID string) ([]entities.Votation, error) {
	return r.listVotations(ctx, "votation_repo_list_open_votations_by_pair_failed",
		r.db.WithContext(ctx).
			Where("meeting_id = ?", strings.TrimSpace(meetingID)).
			Where("proposition_id = ?", strings.TrimSpace(propositionID)).
			Where("open = ?", true),
	)
}

func (r *Repository) ListOpenVotationsByProposition(ctx context.Context, propositionID string) ([]entities.Votation, error) {
	return r.listVotations(ctx, "votation_repo_list_open_votations_by_proposition_failed",
		r.db.WithContext(ctx).
			Where("proposition_id = ?", strings.TrimSpace(propositionID)).
			Where("open = ?", true).
			Where("overwritten = ?", false),
	)
}

func (r *Repository) ListOpenVotationsByMeeting(ctx context.Context, meetingID string) ([]entities.Votation, error) {
	return r.listVotations(ctx, "votation_repo_list_open_votations_by_meeting_failed",
		r.db.WithContext(ctx).
			Where("meeting_id = ?", strings.TrimSpace(meetingID)).
			Where("open = ?", true),
	)
}

func (r *Repository) ListVotationsByProposition(ctx context.Context, propositionID string) ([]entities.Votation, error) {
	return r.listVotations(ctx, "votation_repo_list_votations_by_proposition_failed",
		r.db.WithContext(ctx).
			Where("proposition_id = ?", strings.TrimSpace(propositionID)),
	)
}

// listVotations orders rows latest first. NULL ordering differs between
// drivers, so the tie-break on ended_at happens in Go.
func (r *Repository) listVotations(_ context.Context, failureEvent string, tx *gorm.DB) ([]entities.Votation, error) {
	var rows []votationModel
	if err := tx.Order("started_at DESC").Find(&rows).Error; err != nil {
		return nil, r.logError(failureEvent, err)
	}
	items := make([]entities.Votation, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Later(items[j])
	})
	return items, nil
}

func (r *Repository) CreateBallot(ctx context.Context, ballot entities.Ballot) error {
	row := ballotModelFromEntity(ballot)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateBallot
		}
		return r.logError("votation_repo_create_ballot_failed", err,
			"ballot_id", row.ID,
			"votation_id", row.VotationID,
		)
	}
	return nil
}

func (r *Repository) UpdateBallot(ctx context.Context, ballot entities.Ballot) error {
	row := ballotModelFromEntity(ballot)
	result := r.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"vote_option_id": row.VoteOptionID,
			"cast_at":        row.CastAt,
		})
	if result.Error != nil {
		return r.logError("votation_repo_update_ballot_failed", result.Error, "ballot_id", row.ID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrBallotNotFound
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(ballotID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrBallotNotFound
		}
		return entities.Ballot{}, r.logError("votation_repo_get_ballot_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) FindBallot(ctx context.Context, identityID string, votationID string) (entities.Ballot, bool, error) {
	var row ballotModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", strings.TrimSpace(identityID)).
		Where("votation_id = ?", strings.TrimSpace(votationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, false, nil
		}
		return entities.Ballot{}, false, r.logError("votation_repo_find_ballot_failed", err,
			"identity_id", strings.TrimSpace(identityID),
			"votation_id", strings.TrimSpace(votationID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListBallotsByVotation(ctx context.Context, votationID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("votation_id = ?", strings.TrimSpace(votationID)).
		Order("cast_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("votation_repo_list_ballots_failed", err,
			"votation_id", strings.TrimSpace(votationID),
		)
	}
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// DeleteBallot removes the audit record, the vote and the ballot in that
// order. Callers run it inside WithinTx.
func (r *Repository) DeleteBallot(ctx context.Context, ballotID string) error {
	ballotID = strings.TrimSpace(ballotID)
	tx := r.db.WithContext(ctx)
	votes := tx.Model(&voteModel{}).Select("id").Where("ballot_id = ?", ballotID)
	if err := tx.Where("vote_id IN (?)", votes).Delete(&auditEventModel{}).Error; err != nil {
		return r.logError("votation_repo_delete_ballot_audit_failed", err, "ballot_id", ballotID)
	}
	if err := tx.Where("ballot_id = ?", ballotID).Delete(&voteModel{}).Error; err != nil {
		return r.logError("votation_repo_delete_ballot_vote_failed", err, "ballot_id", ballotID)
	}
	result := tx.Where("id = ?", ballotID).Delete(&ballotModel{})
	if result.Error != nil {
		return r.logError("votation_repo_delete_ballot_failed", result.Error, "ballot_id", ballotID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrBallotNotFound
	}
	return nil
}

func (r *Repository) CreateVote(ctx context.Context, vote entities.Vote) error {
	row := voteModel{
		ID:        strings.TrimSpace(vote.VoteID),
		BallotID:  strings.TrimSpace(vote.BallotID),
		CreatedAt: vote.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateBallot
		}
		return r.logError("votation_repo_create_vote_failed", err,
			"vote_id", row.ID,
			"ballot_id", row.BallotID,
		)
	}
	return nil
}

func (r *Repository) GetVoteByBallot(ctx context.Context, ballotID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("ballot_id = ?", strings.TrimSpace(ballotID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrBallotNotFound
		}
		return entities.Vote{}, r.logError("votation_repo_get_vote_by_ballot_failed", err,
			"ballot_id", strings.TrimSpace(ballotID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveAuditEvent(ctx context.Context, event entities.AuditableEvent) error {
	row := auditEventModel{
		ID:         strings.TrimSpace(event.AuditEventID),
		VoteID:     strings.TrimSpace(event.VoteID),
		EventType:  string(event.EventType),
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt.UTC(),
	}
	if row.OccurredAt.IsZero() {
		row.OccurredAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vote_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"event_type":  row.EventType,
			"metadata":    row.Metadata,
			"occurred_at": row.OccurredAt,
		}),
	}).Omit(clause.Associations).Create(&row)
	if create.Error != nil {
		return r.logError("votation_repo_save_audit_event_failed", create.Error,
			"audit_event_id", row.ID,
			"vote_id", row.VoteID,
		)
	}
	return nil
}

func (r *Repository) GetAuditEventByVote(ctx context.Context, voteID string) (entities.AuditableEvent, bool, error) {
	var row auditEventModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.AuditableEvent{}, false, nil
		}
		return entities.AuditableEvent{}, false, r.logError("votation_repo_get_audit_event_failed", err,
			"vote_id", strings.TrimSpace(voteID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("votation_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("votation_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("votation_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrEventConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("votation_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			Sequence:     row.Sequence,
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("votation_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrEventConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	now := time.Now().UTC()
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: now,
	}
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", row.EventID).
		Where("expires_at < ?", now).
		Delete(&eventDedupModel{}).Error; err != nil {
		return false, r.logError("votation_repo_reserve_event_expire_failed", err,
			"event_id", row.EventID,
		)
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("votation_repo_reserve_event_failed", create.Error,
			"event_id", row.EventID,
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("votation_repo_reserve_event_load_existing_failed", err,
			"event_id", row.EventID,
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrEventConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "meeting-governance/votation-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("votation repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var _ ports.Store = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
