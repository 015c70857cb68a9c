package errors

import "errors"

// Kinds. Every domain error unwraps to exactly one of them, so callers can
// branch on the kind or on the specific sentinel.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal failure")
)

var (
	ErrMeetingNotFound      = newError(ErrNotFound, "meeting not found")
	ErrPropositionNotFound  = newError(ErrNotFound, "proposition not found")
	ErrVotationNotFound     = newError(ErrNotFound, "votation not found")
	ErrOpenVotationNotFound = newError(ErrNotFound, "no open votation for proposition")
	ErrBallotNotFound       = newError(ErrNotFound, "ballot not found")
	ErrIdentityNotFound     = newError(ErrNotFound, "admission ticket not found")

	ErrVotationAlreadyOpen = newError(ErrConflict, "an open votation already exists for this proposition")
	ErrNoOpenVotation      = newError(ErrConflict, "no open votation")
	ErrVotationClosed      = newError(ErrConflict, "cannot revoke from a closed votation")
	ErrDuplicateBallot     = newError(ErrConflict, "ballot already exists for ticket in votation")
	ErrEventConflict       = newError(ErrConflict, "event id reused with a different payload")

	ErrInvalidInput            = newError(ErrInvalidArgument, "invalid votation input")
	ErrWrongMeeting            = newError(ErrInvalidArgument, "admission ticket belongs to another meeting")
	ErrPropositionNotInMeeting = newError(ErrInvalidArgument, "proposition belongs to another meeting")
	ErrVoteOptionNotInProposal = newError(ErrInvalidArgument, "vote option does not belong to proposition")
	ErrNegativeBallotCount     = newError(ErrInvalidArgument, "manual ballot count must not be negative")
	ErrEmptyManualBallots      = newError(ErrInvalidArgument, "at least one manual ballot is required")
	ErrManualBallotLimit       = newError(ErrInvalidArgument, "manual ballot batch exceeds the configured limit")
)

type domainError struct {
	kind    error
	message string
}

func newError(kind error, message string) error {
	return &domainError{kind: kind, message: message}
}

func (e *domainError) Error() string {
	return e.message
}

func (e *domainError) Unwrap() error {
	return e.kind
}

// IsDomain reports whether err carries one of the public kinds.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidArgument)
}
