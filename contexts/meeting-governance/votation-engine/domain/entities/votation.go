package entities

import "time"

type VotationStatus string

const (
	VotationStatusOpen        VotationStatus = "open"
	VotationStatusClosed      VotationStatus = "closed"
	VotationStatusOverwritten VotationStatus = "overwritten"
)

// Votation is one timed voting round on a proposition within a meeting.
// Overwritten implies closed; both are terminal.
type Votation struct {
	VotationID    string
	MeetingID     string
	PropositionID string
	StartedAt     time.Time
	EndedAt       *time.Time
	Open          bool
	Overwritten   bool
}

func (v Votation) Status() VotationStatus {
	switch {
	case v.Overwritten:
		return VotationStatusOverwritten
	case v.Open:
		return VotationStatusOpen
	default:
		return VotationStatusClosed
	}
}

// Close ends the round at endedAt. Closing an already closed votation keeps
// its original end time.
func (v *Votation) Close(endedAt time.Time) {
	v.Open = false
	if v.EndedAt == nil {
		ended := endedAt.UTC()
		v.EndedAt = &ended
	}
}

// Overwrite closes the round because a newer round superseded it.
func (v *Votation) Overwrite(endedAt time.Time) {
	v.Close(endedAt)
	v.Overwritten = true
}

// Later reports whether v sorts before other in "latest first" order:
// started_at descending, then ended_at descending with open rounds first.
func (v Votation) Later(other Votation) bool {
	if !v.StartedAt.Equal(other.StartedAt) {
		return v.StartedAt.After(other.StartedAt)
	}
	switch {
	case v.EndedAt == nil && other.EndedAt == nil:
		return v.VotationID > other.VotationID
	case v.EndedAt == nil:
		return true
	case other.EndedAt == nil:
		return false
	case !v.EndedAt.Equal(*other.EndedAt):
		return v.EndedAt.After(*other.EndedAt)
	default:
		return v.VotationID > other.VotationID
	}
}
