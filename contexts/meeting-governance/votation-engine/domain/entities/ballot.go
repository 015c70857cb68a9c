package entities

import "time"

// AdmissionIdentity is the ticket a voter presents. Test identities are
// synthesized per request; manual identities back paper ballots.
type AdmissionIdentity struct {
	IdentityID string
	MeetingID  string
	Code       string
	Used       bool
	Test       bool
	Manual     bool
	CreatedAt  time.Time
}

// Ballot is the current choice of one identity within one votation. The pair
// (IdentityID, VotationID) is unique.
type Ballot struct {
	BallotID     string
	IdentityID   string
	VotationID   string
	VoteOptionID string
	CastAt       time.Time
}

// Vote anchors the audit record of a ballot.
type Vote struct {
	VoteID    string
	BallotID  string
	CreatedAt time.Time
}

type CastAction string

const (
	CastActionCreated CastAction = "created"
	CastActionUpdated CastAction = "updated"
)
