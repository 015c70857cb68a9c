package entities

// Meeting, Proposition and VoteOption are owned by the catalog; the engine
// only reads them.
type Meeting struct {
	MeetingID string
	Name      string
}

type VoteOption struct {
	VoteOptionID  string
	PropositionID string
	Label         string
	Position      int
}

type Proposition struct {
	PropositionID string
	MeetingID     string
	Question      string
	Options       []VoteOption
}

func (p Proposition) Option(voteOptionID string) (VoteOption, bool) {
	for _, option := range p.Options {
		if option.VoteOptionID == voteOptionID {
			return option, true
		}
	}
	return VoteOption{}, false
}
