package tickets

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "quorum/contexts/meeting-governance/votation-engine/application"
	"quorum/contexts/meeting-governance/votation-engine/domain/entities"
	domainerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	"quorum/contexts/meeting-governance/votation-engine/ports"
)

// TestCode is the reserved access code that yields a fresh throwaway
// identity on every call.
const TestCode = "test"

const testCodePrefix = "test-"

type Mode int

const (
	// ModeCast persists a synthesized test identity through the caller's
	// transaction before the ballot is written.
	ModeCast Mode = iota
	// ModeCheck persists a synthesized test identity on its own, the first
	// time it is queried.
	ModeCheck
)

// Resolver maps presented access codes to admission identities.
type Resolver struct {
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func IsTestCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), TestCode)
}

func (r Resolver) Resolve(
	ctx context.Context,
	identities ports.IdentityRepository,
	code string,
	meetingID string,
	mode Mode,
) (entities.AdmissionIdentity, error) {
	code = strings.TrimSpace(code)
	meetingID = strings.TrimSpace(meetingID)
	if code == "" {
		return entities.AdmissionIdentity{}, domainerrors.ErrInvalidInput
	}
	if IsTestCode(code) {
		return r.synthesize(ctx, identities, meetingID, mode)
	}

	identity, err := identities.GetIdentityByCode(ctx, code)
	if err != nil {
		return entities.AdmissionIdentity{}, err
	}
	if meetingID != "" && identity.MeetingID != meetingID {
		application.ResolveLogger(r.Logger).Warn("admission ticket presented to another meeting",
			"event", "votation_ticket_wrong_meeting",
			"module", application.ModuleName,
			"layer", "application",
			"identity_id", identity.IdentityID,
			"meeting_id", meetingID,
		)
		return entities.AdmissionIdentity{}, domainerrors.ErrWrongMeeting
	}
	return identity, nil
}

func (r Resolver) synthesize(
	ctx context.Context,
	identities ports.IdentityRepository,
	meetingID string,
	mode Mode,
) (entities.AdmissionIdentity, error) {
	identityID, err := r.IDGen.NewID(ctx)
	if err != nil {
		return entities.AdmissionIdentity{}, err
	}
	suffix, err := r.IDGen.NewID(ctx)
	if err != nil {
		return entities.AdmissionIdentity{}, err
	}
	identity := entities.AdmissionIdentity{
		IdentityID: identityID,
		MeetingID:  meetingID,
		Code:       testCodePrefix + suffix,
		Used:       false,
		Test:       true,
		CreatedAt:  r.now(),
	}
	if err := identities.CreateIdentity(ctx, identity); err != nil {
		return entities.AdmissionIdentity{}, err
	}

	flow := "cast"
	if mode == ModeCheck {
		flow = "check"
	}
	application.ResolveLogger(r.Logger).Info("test admission identity created",
		"event", "votation_test_identity_created",
		"module", application.ModuleName,
		"layer", "application",
		"identity_id", identity.IdentityID,
		"meeting_id", identity.MeetingID,
		"flow", flow,
	)
	return identity, nil
}

func (r Resolver) now() time.Time {
	if r.Clock != nil {
		return r.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
