package postgresadapter

import (
	"strings"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
)

type meetingModel struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (meetingModel) TableName() string {
	return "meetings"
}

type propositionModel struct {
	ID        string `gorm:"column:id;primaryKey"`
	MeetingID string `gorm:"column:meeting_id;index"`
	Question  string `gorm:"column:question"`
}

func (propositionModel) TableName() string {
	return "propositions"
}

type voteOptionModel struct {
	ID            string `gorm:"column:id;primaryKey"`
	PropositionID string `gorm:"column:proposition_id;index"`
	Label         string `gorm:"column:label"`
	Position      int    `gorm:"column:position"`
}

func (voteOptionModel) TableName() string {
	return "vote_options"
}

func (m voteOptionModel) toEntity() entities.VoteOption {
	return entities.VoteOption{
		VoteOptionID:  m.ID,
		PropositionID: m.PropositionID,
		Label:         m.Label,
		Position:      m.Position,
	}
}

type votationModel struct {
	ID            string     `gorm:"column:id;primaryKey"`
	MeetingID     string     `gorm:"column:meeting_id;index:idx_votations_pair"`
	PropositionID string     `gorm:"column:proposition_id;index:idx_votations_pair;index"`
	StartedAt     time.Time  `gorm:"column:started_at"`
	EndedAt       *time.Time `gorm:"column:ended_at"`
	Open          bool       `gorm:"column:open"`
	Overwritten   bool       `gorm:"column:overwritten"`
}

func (votationModel) TableName() string {
	return "votations"
}

func votationModelFromEntity(votation entities.Votation) votationModel {
	row := votationModel{
		ID:            strings.TrimSpace(votation.VotationID),
		MeetingID:     strings.TrimSpace(votation.MeetingID),
		PropositionID: strings.TrimSpace(votation.PropositionID),
		StartedAt:     votation.StartedAt.UTC(),
		EndedAt:       normalizeOptionalTime(votation.EndedAt),
		Open:          votation.Open,
		Overwritten:   votation.Overwritten,
	}
	if row.StartedAt.IsZero() {
		row.StartedAt = time.Now().UTC()
	}
	return row
}

func (m votationModel) toEntity() entities.Votation {
	return entities.Votation{
		VotationID:    m.ID,
		MeetingID:     m.MeetingID,
		PropositionID: m.PropositionID,
		StartedAt:     m.StartedAt.UTC(),
		EndedAt:       normalizeOptionalTime(m.EndedAt),
		Open:          m.Open,
		Overwritten:   m.Overwritten,
	}
}

type identityModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	MeetingID string    `gorm:"column:meeting_id;index"`
	Code      string    `gorm:"column:code;uniqueIndex:ux_admission_identities_code"`
	Used      bool      `gorm:"column:used"`
	Test      bool      `gorm:"column:test"`
	Manual    bool      `gorm:"column:manual"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (identityModel) TableName() string {
	return "admission_identities"
}

func identityModelFromEntity(identity entities.AdmissionIdentity) identityModel {
	row := identityModel{
		ID:        strings.TrimSpace(identity.IdentityID),
		MeetingID: strings.TrimSpace(identity.MeetingID),
		Code:      strings.TrimSpace(identity.Code),
		Used:      identity.Used,
		Test:      identity.Test,
		Manual:    identity.Manual,
		CreatedAt: identity.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m identityModel) toEntity() entities.AdmissionIdentity {
	return entities.AdmissionIdentity{
		IdentityID: m.ID,
		MeetingID:  m.MeetingID,
		Code:       m.Code,
		Used:       m.Used,
		Test:       m.Test,
		Manual:     m.Manual,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type ballotModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	IdentityID   string    `gorm:"column:identity_id;uniqueIndex:ux_ballots_identity_votation,priority:1"`
	VotationID   string    `gorm:"column:votation_id;uniqueIndex:ux_ballots_identity_votation,priority:2;index"`
	VoteOptionID string    `gorm:"column:vote_option_id;index"`
	CastAt       time.Time `gorm:"column:cast_at"`

	Identity   identityModel   `gorm:"foreignKey:IdentityID;references:ID;constraint:OnDelete:CASCADE"`
	Votation   votationModel   `gorm:"foreignKey:VotationID;references:ID;constraint:OnDelete:CASCADE"`
	VoteOption voteOptionModel `gorm:"foreignKey:VoteOptionID;references:ID;constraint:OnDelete:RESTRICT"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot) ballotModel {
	row := ballotModel{
		ID:           strings.TrimSpace(ballot.BallotID),
		IdentityID:   strings.TrimSpace(ballot.IdentityID),
		VotationID:   strings.TrimSpace(ballot.VotationID),
		VoteOptionID: strings.TrimSpace(ballot.VoteOptionID),
		CastAt:       ballot.CastAt.UTC(),
	}
	if row.CastAt.IsZero() {
		row.CastAt = time.Now().UTC()
	}
	return row
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		BallotID:     m.ID,
		IdentityID:   m.IdentityID,
		VotationID:   m.VotationID,
		VoteOptionID: m.VoteOptionID,
		CastAt:       m.CastAt.UTC(),
	}
}

type voteModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	BallotID  string    `gorm:"column:ballot_id;uniqueIndex:ux_votes_ballot"`
	CreatedAt time.Time `gorm:"column:created_at"`

	Ballot ballotModel `gorm:"foreignKey:BallotID;references:ID;constraint:OnDelete:CASCADE"`
}

func (voteModel) TableName() string {
	return "votes"
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:    m.ID,
		BallotID:  m.BallotID,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type auditEventModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	VoteID     string    `gorm:"column:vote_id;uniqueIndex:ux_auditable_events_vote"`
	EventType  string    `gorm:"column:event_type"`
	Metadata   string    `gorm:"column:metadata"`
	OccurredAt time.Time `gorm:"column:occurred_at"`

	Vote voteModel `gorm:"foreignKey:VoteID;references:ID;constraint:OnDelete:CASCADE"`
}

func (auditEventModel) TableName() string {
	return "auditable_events"
}

func (m auditEventModel) toEntity() entities.AuditableEvent {
	return entities.AuditableEvent{
		AuditEventID: m.ID,
		VoteID:       m.VoteID,
		EventType:    entities.AuditEventType(m.EventType),
		Metadata:     m.Metadata,
		OccurredAt:   m.OccurredAt.UTC(),
	}
}

// outboxModel rows are relayed by sequence. Several events written by one
// command share created_at, so the timestamp alone cannot order them.
type outboxModel struct {
	Sequence     int64      `gorm:"column:sequence;primaryKey;autoIncrement"`
	OutboxID     string     `gorm:"column:outbox_id;uniqueIndex:ux_votation_outbox_id"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key;index"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index:idx_votation_outbox_pending"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "votation_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "votation_event_dedup"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	normalized := value.UTC()
	return &normalized
}
