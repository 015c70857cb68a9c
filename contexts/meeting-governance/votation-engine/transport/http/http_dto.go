package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type VotationResponse struct {
	VotationID    string `json:"votation_id"`
	MeetingID     string `json:"meeting_id"`
	PropositionID string `json:"proposition_id"`
	Status        string `json:"status"`
	Open          bool   `json:"open"`
	Overwritten   bool   `json:"overwritten"`
	StartedAtUTC  string `json:"started_at_utc"`
	EndedAtUTC    string `json:"ended_at_utc,omitempty"`
}

type VotationListResponse struct {
	PropositionID string             `json:"proposition_id"`
	Items         []VotationResponse `json:"items"`
}

type RevoteResponse struct {
	PropositionID        string   `json:"proposition_id"`
	ClosedVotationsCount int      `json:"closed_votations_count"`
	ClosedVotationIDs    []string `json:"closed_votation_ids"`
	LatestVotationID     string   `json:"latest_votation_id,omitempty"`
	LatestOpen           bool     `json:"latest_open"`
	LatestStartedAtUTC   string   `json:"latest_started_at_utc,omitempty"`
}

type CastVoteRequest struct {
	VoteOptionID string `json:"vote_option_id"`
}

type CastVoteResponse struct {
	BallotID     string `json:"ballot_id"`
	VoteID       string `json:"vote_id"`
	VotationID   string `json:"votation_id"`
	VoteOptionID string `json:"vote_option_id"`
	Action       string `json:"action"`
}

type RevokeVoteResponse struct {
	BallotID   string `json:"ballot_id"`
	VotationID string `json:"votation_id"`
	Revoked    bool   `json:"revoked"`
}

type VoteCheckResponse struct {
	HasVoted        bool   `json:"has_voted"`
	BallotID        string `json:"ballot_id,omitempty"`
	VoteOptionID    string `json:"vote_option_id,omitempty"`
	VoteOptionLabel string `json:"vote_option_label,omitempty"`
	CastAtUTC       string `json:"cast_at_utc,omitempty"`
}

type OptionResultItem struct {
	VoteOptionID string `json:"vote_option_id"`
	Label        string `json:"label"`
	Position     int    `json:"position"`
	Count        int    `json:"count"`
}

type VotationResultsResponse struct {
	VotationID    string             `json:"votation_id"`
	MeetingID     string             `json:"meeting_id"`
	PropositionID string             `json:"proposition_id"`
	Question      string             `json:"question"`
	TotalVotes    int                `json:"total_votes"`
	Options       []OptionResultItem `json:"options"`
	Open          bool               `json:"open"`
	Overwritten   bool               `json:"overwritten"`
	StartedAtUTC  string             `json:"started_at_utc"`
	EndedAtUTC    string             `json:"ended_at_utc,omitempty"`
}

type ManualBallotsRequest struct {
	OptionCounts map[string]int `json:"option_counts"`
	Notes        string         `json:"notes,omitempty"`
}

type ManualBallotsResponse struct {
	VotationID        string         `json:"votation_id"`
	TotalBallotsAdded int            `json:"total_ballots_added"`
	CountsByOption    map[string]int `json:"counts_by_option"`
	RecordedAtUTC     string         `json:"recorded_at_utc"`
}
