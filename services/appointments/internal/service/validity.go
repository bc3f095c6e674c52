package service

import (
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
)

// ParticipantsAreValid requires every nested voting to name a suggested date.
// Participants themselves may be new.
func ParticipantsAreValid(participants []domain.Participant) bool {
	for _, p := range participants {
		for _, v := range p.Votings {
			if v.SuggestedDateID == uuid.Nil {
				return false
			}
		}
	}
	return true
}

func ParticipantToDeleteIsValid(p *domain.Participant) bool {
	return p != nil && qualified(p.ID, p.CustomerID, p.AppointmentID)
}

func SuggestedDateToDeleteIsValid(s *domain.SuggestedDate) bool {
	return s != nil && qualified(s.ID, s.CustomerID, s.AppointmentID)
}

func qualified(ids ...uuid.UUID) bool {
	for _, id := range ids {
		if id == uuid.Nil {
			return false
		}
	}
	return true
}
