package domain

import (
	"strings"

	"github.com/google/uuid"
)

type VotingStatus string

const (
	VoteUndefined    VotingStatus = "undefined"
	VoteAccepted     VotingStatus = "accepted"
	VoteDeclined     VotingStatus = "declined"
	VoteQuestionable VotingStatus = "questionable"
)

func ParseVotingStatus(s string) VotingStatus {
	switch VotingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case VoteAccepted:
		return VoteAccepted
	case VoteDeclined:
		return VoteDeclined
	case VoteQuestionable:
		return VoteQuestionable
	default:
		return VoteUndefined
	}
}

func (s VotingStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

func (s *VotingStatus) UnmarshalText(b []byte) error {
	*s = ParseVotingStatus(string(b))
	return nil
}

// Voting is owned by its participant and must reference a suggested date of
// the same appointment.
type Voting struct {
	ID              uuid.UUID    `json:"id"`
	CustomerID      uuid.UUID    `json:"customer_id"`
	AppointmentID   uuid.UUID    `json:"appointment_id"`
	ParticipantID   uuid.UUID    `json:"participant_id"`
	SuggestedDateID uuid.UUID    `json:"suggested_date_id"`
	Status          VotingStatus `json:"status"`
}
