package entities

import "time"

type AuditEventType string

const (
	AuditEventCast              AuditEventType = "cast"
	AuditEventChanged           AuditEventType = "changed"
	AuditEventRevoked           AuditEventType = "revoked"
	AuditEventManualBallotAdded AuditEventType = "manual_ballot_added"
)

// AuditableEvent is the last lifecycle marker of a vote. It is rewritten in
// place on every transition, so it holds one event per vote, not a history.
type AuditableEvent struct {
	AuditEventID string
	VoteID       string
	EventType    AuditEventType
	Metadata     string
	OccurredAt   time.Time
}
