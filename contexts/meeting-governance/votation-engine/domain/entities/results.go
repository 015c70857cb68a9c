package entities

import "time"

type OptionTally struct {
	VoteOptionID string
	Label        string
	Position     int
	Count        int
}

type VotationResults struct {
	VotationID    string
	MeetingID     string
	PropositionID string
	Question      string
	TotalVotes    int
	Options       []OptionTally
	Open          bool
	Overwritten   bool
	StartedAt     time.Time
	EndedAt       *time.Time
}

type VoteCheck struct {
	HasVoted        bool
	BallotID        string
	VoteOptionID    string
	VoteOptionLabel string
	CastAt          *time.Time
}
