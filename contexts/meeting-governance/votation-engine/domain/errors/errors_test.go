package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorsUnwrapToKind(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{ErrVotationNotFound, ErrNotFound},
		{ErrBallotNotFound, ErrNotFound},
		{ErrVotationAlreadyOpen, ErrConflict},
		{ErrVotationClosed, ErrConflict},
		{ErrNoOpenVotation, ErrConflict},
		{ErrWrongMeeting, ErrInvalidArgument},
		{ErrVoteOptionNotInProposal, ErrInvalidArgument},
		{ErrNegativeBallotCount, ErrInvalidArgument},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.kind) {
			t.Fatalf("expected %q to unwrap to %q", tc.err, tc.kind)
		}
		if !IsDomain(tc.err) {
			t.Fatalf("expected %q to be a domain error", tc.err)
		}
	}
}

func TestIsDomainRejectsInternalFailures(t *testing.T) {
	wrapped := fmt.Errorf("%w: %w", ErrInternal, errors.New("disk full"))
	if IsDomain(wrapped) {
		t.Fatalf("expected internal failure not to be a domain error")
	}
	if IsDomain(errors.New("boom")) {
		t.Fatalf("expected plain error not to be a domain error")
	}
	if !IsDomain(fmt.Errorf("load: %w", ErrVotationNotFound)) {
		t.Fatalf("expected wrapped domain error to keep its kind")
	}
}
