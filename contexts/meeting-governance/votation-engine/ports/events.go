package ports

// Broadcast event types. The relay publishes each outbox row on the topic
// named after its event type.
const (
	EventPropositionVoteOpened  = "proposition.vote_opened"
	EventPropositionVoteStopped = "proposition.vote_stopped"
	EventVoteCast               = "vote.cast"
	EventVoteChanged            = "vote.changed"
	EventVoteRevoked            = "vote.revoked"
	EventRevoteStarted          = "votation.revote_started"
	EventManualBallotsAdded     = "votation.manual_ballots_added"
	EventVotationClosed         = "votation.closed"
)

// Catalog lifecycle topics consumed by the engine.
const (
	TopicMeetingEnded         = "meeting.ended"
	TopicPropositionWithdrawn = "proposition.withdrawn"
)

const SourceService = "votation-engine"
