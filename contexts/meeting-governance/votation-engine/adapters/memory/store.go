package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-process implementation of every engine port. Transactions
// work on a copy of the state that replaces the live state only on success,
// and hold the write lock for their whole duration.
type Store struct {
	mu sync.RWMutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) SetMeeting(meeting entities.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.meetings[strings.TrimSpace(meeting.MeetingID)] = meeting
}

func (s *Store) SetProposition(proposition entities.Proposition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	options := append([]entities.VoteOption(nil), proposition.Options...)
	for i := range options {
		options[i].PropositionID = proposition.PropositionID
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Position < options[j].Position
	})
	proposition.Options = options
	s.st.propositions[strings.TrimSpace(proposition.PropositionID)] = proposition
}

func (s *Store) SetIdentity(identity entities.AdmissionIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.identities[identity.IdentityID] = identity
	s.st.identityCodes[identity.Code] = identity.IdentityID
}

// Snapshot returns copies of the persisted rows, for assertions in tests and
// diagnostics.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := Snapshot{
		Votations:   make([]entities.Votation, 0, len(s.st.votations)),
		Ballots:     make([]entities.Ballot, 0, len(s.st.ballots)),
		Votes:       make([]entities.Vote, 0, len(s.st.votes)),
		AuditEvents: make([]entities.AuditableEvent, 0, len(s.st.audits)),
		Identities:  make([]entities.AdmissionIdentity, 0, len(s.st.identities)),
	}
	for _, item := range s.st.votations {
		snapshot.Votations = append(snapshot.Votations, item)
	}
	for _, item := range s.st.ballots {
		snapshot.Ballots = append(snapshot.Ballots, item)
	}
	for _, item := range s.st.votes {
		snapshot.Votes = append(snapshot.Votes, item)
	}
	for _, item := range s.st.audits {
		snapshot.AuditEvents = append(snapshot.AuditEvents, item)
	}
	for _, item := range s.st.identities {
		snapshot.Identities = append(snapshot.Identities, item)
	}
	for _, record := range s.st.sortedOutbox() {
		snapshot.Outbox = append(snapshot.Outbox, record.message)
	}
	return snapshot
}

type Snapshot struct {
	Votations   []entities.Votation
	Ballots     []entities.Ballot
	Votes       []entities.Vote
	AuditEvents []entities.AuditableEvent
	Identities  []entities.AdmissionIdentity
	Outbox      []ports.OutboxMessage
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	working := s.st.clone()
	if err := fn(ctx, working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) GetMeeting(ctx context.Context, meetingID string) (entities.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetMeeting(ctx, meetingID)
}

func (s *Store) GetProposition(ctx context.Context, propositionID string) (entities.Proposition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetProposition(ctx, propositionID)
}

func (s *Store) GetIdentity(ctx context.Context, identityID string) (entities.AdmissionIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetIdentity(ctx, identityID)
}

func (s *Store) GetIdentityByCode(ctx context.Context, code string) (entities.AdmissionIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetIdentityByCode(ctx, code)
}

func (s *Store) CreateIdentity(ctx context.Context, identity entities.AdmissionIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateIdentity(ctx, identity)
}

func (s *Store) MarkIdentityUsed(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkIdentityUsed(ctx, identityID)
}

func (s *Store) CreateVotation(ctx context.Context, votation entities.Votation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateVotation(ctx, votation)
}

func (s *Store) SaveVotation(ctx context.Context, votation entities.Votation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SaveVotation(ctx, votation)
}

func (s *Store) GetVotation(ctx context.Context, votationID string) (entities.Votation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetVotation(ctx, votationID)
}

func (s *Store) LockVotation(ctx context.Context, votationID string) (entities.Votation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.LockVotation(ctx, votationID)
}

func (s *Store) ListOpenVotationsByPair(ctx context.Context, meetingID string, propositionID string) ([]entities.Votation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListOpenVotationsByPair(ctx, meetingID, propositionID)
}

func (s *Store) ListOpenVotationsByProposition(ctx context.Context, propositionID string) ([]entities.Votation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListOpenVotationsByProposition(ctx, propositionID)
}

func (s *Store) ListOpenVotationsByMeeting(ctx context.Context, meetingID string) ([]entities.Votation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListOpenVotationsByMeeting(ctx, meetingID)
}

func (s *Store) ListVotationsByProposition(ctx context.Context, propositionID string) ([]entities.Votation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListVotationsByProposition(ctx, propositionID)
}

func (s *Store) CreateBallot(ctx context.Context, ballot entities.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateBallot(ctx, ballot)
}

func (s *Store) UpdateBallot(ctx context.Context, ballot entities.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateBallot(ctx, ballot)
}

func (s *Store) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetBallot(ctx, ballotID)
}

func (s *Store) FindBallot(ctx context.Context, identityID string, votationID string) (entities.Ballot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.FindBallot(ctx, identityID, votationID)
}

func (s *Store) ListBallotsByVotation(ctx context.Context, votationID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.ListBallotsByVotation(ctx, votationID)
}

func (s *Store) DeleteBallot(ctx context.Context, ballotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteBallot(ctx, ballotID)
}

func (s *Store) CreateVote(ctx context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateVote(ctx, vote)
}

func (s *Store) GetVoteByBallot(ctx context.Context, ballotID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetVoteByBallot(ctx, ballotID)
}

func (s *Store) SaveAuditEvent(ctx context.Context, event entities.AuditableEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SaveAuditEvent(ctx, event)
}

func (s *Store) GetAuditEventByVote(ctx context.Context, voteID string) (entities.AuditableEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.GetAuditEventByVote(ctx, voteID)
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AppendOutbox(ctx, envelope)
}

func (s *Store) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ReserveEvent(ctx, eventID, payloadHash, expiresAt)
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.st.sortedOutbox() {
		if row.published {
			continue
		}
		items = append(items, row.message)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.st.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrEventConflict
	}
	row.published = true
	s.st.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type state struct {
	meetings      map[string]entities.Meeting
	propositions  map[string]entities.Proposition
	identities    map[string]entities.AdmissionIdentity
	identityCodes map[string]string
	votations     map[string]entities.Votation
	ballots       map[string]entities.Ballot
	ballotKeys    map[string]string
	votes         map[string]entities.Vote
	votesByBallot map[string]string
	audits        map[string]entities.AuditableEvent
	outbox        map[string]outboxRecord
	outboxSeq     int64
	eventDedup    map[string]dedupRecord
}

func newState() *state {
	return &state{
		meetings:      make(map[string]entities.Meeting),
		propositions:  make(map[string]entities.Proposition),
		identities:    make(map[string]entities.AdmissionIdentity),
		identityCodes: make(map[string]string),
		votations:     make(map[string]entities.Votation),
		ballots:       make(map[string]entities.Ballot),
		ballotKeys:    make(map[string]string),
		votes:         make(map[string]entities.Vote),
		votesByBallot: make(map[string]string),
		audits:        make(map[string]entities.AuditableEvent),
		outbox:        make(map[string]outboxRecord),
		eventDedup:    make(map[string]dedupRecord),
	}
}

func (st *state) clone() *state {
	return &state{
		meetings:      cloneMap(st.meetings),
		propositions:  cloneMap(st.propositions),
		identities:    cloneMap(st.identities),
		identityCodes: cloneMap(st.identityCodes),
		votations:     cloneMap(st.votations),
		ballots:       cloneMap(st.ballots),
		ballotKeys:    cloneMap(st.ballotKeys),
		votes:         cloneMap(st.votes),
		votesByBallot: cloneMap(st.votesByBallot),
		audits:        cloneMap(st.audits),
		outbox:        cloneMap(st.outbox),
		outboxSeq:     st.outboxSeq,
		eventDedup:    cloneMap(st.eventDedup),
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func (st *state) GetMeeting(_ context.Context, meetingID string) (entities.Meeting, error) {
	meeting, ok := st.meetings[strings.TrimSpace(meetingID)]
	if !ok {
		return entities.Meeting{}, domainerrors.ErrMeetingNotFound
	}
	return meeting, nil
}

func (st *state) GetProposition(_ context.Context, propositionID string) (entities.Proposition, error) {
	proposition, ok := st.propositions[strings.TrimSpace(propositionID)]
	if !ok {
		return entities.Proposition{}, domainerrors.ErrPropositionNotFound
	}
	proposition.Options = append([]entities.VoteOption(nil), proposition.Options...)
	return proposition, nil
}

func (st *state) GetIdentity(_ context.Context, identityID string) (entities.AdmissionIdentity, error) {
	identity, ok := st.identities[strings.TrimSpace(identityID)]
	if !ok {
		return entities.AdmissionIdentity{}, domainerrors.ErrIdentityNotFound
	}
	return identity, nil
}

func (st *state) GetIdentityByCode(_ context.Context, code string) (entities.AdmissionIdentity, error) {
	identityID, ok := st.identityCodes[strings.TrimSpace(code)]
	if !ok {
		return entities.AdmissionIdentity{}, domainerrors.ErrIdentityNotFound
	}
	return st.identities[identityID], nil
}

func (st *state) CreateIdentity(_ context.Context, identity entities.AdmissionIdentity) error {
	if _, exists := st.identityCodes[identity.Code]; exists {
		return domainerrors.ErrInvalidInput
	}
	st.identities[identity.IdentityID] = identity
	st.identityCodes[identity.Code] = identity.IdentityID
	return nil
}

func (st *state) MarkIdentityUsed(_ context.Context, identityID string) error {
	identity, ok := st.identities[strings.TrimSpace(identityID)]
	if !ok {
		return domainerrors.ErrIdentityNotFound
	}
	identity.Used = true
	st.identities[identity.IdentityID] = identity
	return nil
}

func (st *state) CreateVotation(_ context.Context, votation entities.Votation) error {
	if votation.Open {
		for _, existing := range st.votations {
			if existing.Open &&
				existing.MeetingID == votation.MeetingID &&
				existing.PropositionID == votation.PropositionID {
				return domainerrors.ErrVotationAlreadyOpen
			}
		}
	}
	st.votations[votation.VotationID] = votation
	return nil
}

func (st *state) SaveVotation(_ context.Context, votation entities.Votation) error {
	if _, ok := st.votations[votation.VotationID]; !ok {
		return domainerrors.ErrVotationNotFound
	}
	st.votations[votation.VotationID] = votation
	return nil
}

func (st *state) GetVotation(_ context.Context, votationID string) (entities.Votation, error) {
	votation, ok := st.votations[strings.TrimSpace(votationID)]
	if !ok {
		return entities.Votation{}, domainerrors.ErrVotationNotFound
	}
	return votation, nil
}

func (st *state) LockVotation(ctx context.Context, votationID string) (entities.Votation, error) {
	// Transactions already hold the store's write lock.
	return st.GetVotation(ctx, votationID)
}

func (st *state) ListOpenVotationsByPair(_ context.Context, meetingID string, propositionID string) ([]entities.Votation, error) {
	return st.filterVotations(func(v entities.Votation) bool {
		return v.Open && v.MeetingID == strings.TrimSpace(meetingID) && v.PropositionID == strings.TrimSpace(propositionID)
	}), nil
}

func (st *state) ListOpenVotationsByProposition(_ context.Context, propositionID string) ([]entities.Votation, error) {
	return st.filterVotations(func(v entities.Votation) bool {
		return v.Open && !v.Overwritten && v.PropositionID == strings.TrimSpace(propositionID)
	}), nil
}

func (st *state) ListOpenVotationsByMeeting(_ context.Context, meetingID string) ([]entities.Votation, error) {
	return st.filterVotations(func(v entities.Votation) bool {
		return v.Open && v.MeetingID == strings.TrimSpace(meetingID)
	}), nil
}

func (st *state) ListVotationsByProposition(_ context.Context, propositionID string) ([]entities.Votation, error) {
	return st.filterVotations(func(v entities.Votation) bool {
		return v.PropositionID == strings.TrimSpace(propositionID)
	}), nil
}

func (st *state) filterVotations(match func(entities.Votation) bool) []entities.Votation {
	items := make([]entities.Votation, 0)
	for _, votation := range st.votations {
		if match(votation) {
			items = append(items, votation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Later(items[j])
	})
	return items
}

func (st *state) CreateBallot(_ context.Context, ballot entities.Ballot) error {
	key := ballotKey(ballot.IdentityID, ballot.VotationID)
	if _, exists := st.ballotKeys[key]; exists {
		return domainerrors.ErrDuplicateBallot
	}
	if _, ok := st.votations[ballot.VotationID]; !ok {
		return domainerrors.ErrVotationNotFound
	}
	st.ballots[ballot.BallotID] = ballot
	st.ballotKeys[key] = ballot.BallotID
	return nil
}

func (st *state) UpdateBallot(_ context.Context, ballot entities.Ballot) error {
	if _, ok := st.ballots[ballot.BallotID]; !ok {
		return domainerrors.ErrBallotNotFound
	}
	st.ballots[ballot.BallotID] = ballot
	return nil
}

func (st *state) GetBallot(_ context.Context, ballotID string) (entities.Ballot, error) {
	ballot, ok := st.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	return ballot, nil
}

func (st *state) FindBallot(_ context.Context, identityID string, votationID string) (entities.Ballot, bool, error) {
	ballotID, ok := st.ballotKeys[ballotKey(identityID, votationID)]
	if !ok {
		return entities.Ballot{}, false, nil
	}
	return st.ballots[ballotID], true, nil
}

func (st *state) ListBallotsByVotation(_ context.Context, votationID string) ([]entities.Ballot, error) {
	items := make([]entities.Ballot, 0)
	for _, ballot := range st.ballots {
		if ballot.VotationID == strings.TrimSpace(votationID) {
			items = append(items, ballot)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].BallotID < items[j].BallotID
		}
		return items[i].CastAt.Before(items[j].CastAt)
	})
	return items, nil
}

func (st *state) DeleteBallot(_ context.Context, ballotID string) error {
	ballot, ok := st.ballots[strings.TrimSpace(ballotID)]
	if !ok {
		return domainerrors.ErrBallotNotFound
	}
	if voteID, ok := st.votesByBallot[ballot.BallotID]; ok {
		delete(st.audits, voteID)
		delete(st.votes, voteID)
		delete(st.votesByBallot, ballot.BallotID)
	}
	delete(st.ballotKeys, ballotKey(ballot.IdentityID, ballot.VotationID))
	delete(st.ballots, ballot.BallotID)
	return nil
}

func (st *state) CreateVote(_ context.Context, vote entities.Vote) error {
	if _, ok := st.ballots[vote.BallotID]; !ok {
		return domainerrors.ErrBallotNotFound
	}
	if _, exists := st.votesByBallot[vote.BallotID]; exists {
		return domainerrors.ErrDuplicateBallot
	}
	st.votes[vote.VoteID] = vote
	st.votesByBallot[vote.BallotID] = vote.VoteID
	return nil
}

func (st *state) GetVoteByBallot(_ context.Context, ballotID string) (entities.Vote, error) {
	voteID, ok := st.votesByBallot[strings.TrimSpace(ballotID)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrBallotNotFound
	}
	return st.votes[voteID], nil
}

func (st *state) SaveAuditEvent(_ context.Context, event entities.AuditableEvent) error {
	if _, ok := st.votes[event.VoteID]; !ok {
		return domainerrors.ErrBallotNotFound
	}
	st.audits[event.VoteID] = event
	return nil
}

func (st *state) GetAuditEventByVote(_ context.Context, voteID string) (entities.AuditableEvent, bool, error) {
	event, ok := st.audits[strings.TrimSpace(voteID)]
	return event, ok, nil
}

func (st *state) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := st.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrEventConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	st.outboxSeq++
	st.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			Sequence:     st.outboxSeq,
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (st *state) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	key := strings.TrimSpace(eventID)
	existing, ok := st.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(st.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrEventConflict
			}
			return true, nil
		}
	}

	st.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

// sortedOutbox orders rows by insertion, which is commit order for this store.
func (st *state) sortedOutbox() []outboxRecord {
	items := make([]outboxRecord, 0, len(st.outbox))
	for _, row := range st.outbox {
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].message.Sequence < items[j].message.Sequence
	})
	return items
}

func ballotKey(identityID string, votationID string) string {
	return strings.TrimSpace(identityID) + "|" + strings.TrimSpace(votationID)
}

var _ ports.Store = (*Store)(nil)
var _ ports.Repositories = (*state)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
