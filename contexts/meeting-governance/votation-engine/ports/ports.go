package ports

import (
	"context"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	"quorum/internal/shared/events"
	"quorum/internal/shared/outbox"
)

type EventEnvelope = events.Envelope

type OutboxMessage = outbox.Message

type CatalogReader interface {
	GetMeeting(ctx context.Context, meetingID string) (entities.Meeting, error)
	// GetProposition returns the proposition with its options ordered by position.
	GetProposition(ctx context.Context, propositionID string) (entities.Proposition, error)
}

type IdentityRepository interface {
	GetIdentity(ctx context.Context, identityID string) (entities.AdmissionIdentity, error)
	GetIdentityByCode(ctx context.Context, code string) (entities.AdmissionIdentity, error)
	CreateIdentity(ctx context.Context, identity entities.AdmissionIdentity) error
	MarkIdentityUsed(ctx context.Context, identityID string) error
}

type VotationRepository interface {
	// CreateVotation returns ErrVotationAlreadyOpen when the store already
	// holds an open votation for the same (meeting, proposition).
	CreateVotation(ctx context.Context, votation entities.Votation) error
	SaveVotation(ctx context.Context, votation entities.Votation) error
	GetVotation(ctx context.Context, votationID string) (entities.Votation, error)
	// LockVotation reads the votation and holds it against concurrent
	// writers until the surrounding transaction ends.
	LockVotation(ctx context.Context, votationID string) (entities.Votation, error)
	ListOpenVotationsByPair(ctx context.Context, meetingID string, propositionID string) ([]entities.Votation, error)
	ListOpenVotationsByProposition(ctx context.Context, propositionID string) ([]entities.Votation, error)
	ListOpenVotationsByMeeting(ctx context.Context, meetingID string) ([]entities.Votation, error)
	// ListVotationsByProposition returns every round, latest first.
	ListVotationsByProposition(ctx context.Context, propositionID string) ([]entities.Votation, error)
}

type BallotRepository interface {
	// CreateBallot returns ErrDuplicateBallot when the identity already holds
	// a ballot in the votation.
	CreateBallot(ctx context.Context, ballot entities.Ballot) error
	UpdateBallot(ctx context.Context, ballot entities.Ballot) error
	GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
	FindBallot(ctx context.Context, identityID string, votationID string) (entities.Ballot, bool, error)
	ListBallotsByVotation(ctx context.Context, votationID string) ([]entities.Ballot, error)
	// DeleteBallot removes the ballot together with its vote and audit record.
	DeleteBallot(ctx context.Context, ballotID string) error
	CreateVote(ctx context.Context, vote entities.Vote) error
	GetVoteByBallot(ctx context.Context, ballotID string) (entities.Vote, error)
}

type AuditRepository interface {
	// SaveAuditEvent writes the single audit record of a vote, replacing the
	// previous one.
	SaveAuditEvent(ctx context.Context, event entities.AuditableEvent) error
	GetAuditEventByVote(ctx context.Context, voteID string) (entities.AuditableEvent, bool, error)
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// Repositories is the transaction-scoped view every engine component works
// against.
type Repositories interface {
	CatalogReader
	IdentityRepository
	VotationRepository
	BallotRepository
	AuditRepository
	OutboxWriter
	EventDedupStore
}

type UnitOfWork interface {
	// WithinTx runs fn atomically. Any error returned by fn rolls back every
	// write made through the supplied repositories.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type Store interface {
	Repositories
	UnitOfWork
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventDedupStore interface {
	// ReserveEvent records eventID and reports whether it was already
	// processed with the same payload hash.
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
