package service

import (
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/google/uuid"
)

// StampAppointment writes the owning customer id, the appointment id and the
// parent ids into every node of the tree. A voting always takes the id of the
// participant or suggested date it is nested under.
func StampAppointment(a *domain.Appointment, customerID uuid.UUID) {
	a.CustomerID = customerID
	StampSuggestedDates(a.SuggestedDates, customerID, a.ID)
	StampParticipants(a.Participants, customerID, a.ID)
}

func StampSuggestedDates(dates []domain.SuggestedDate, customerID, appointmentID uuid.UUID) {
	for i := range dates {
		d := &dates[i]
		d.CustomerID = customerID
		d.AppointmentID = appointmentID
		for j := range d.Votings {
			v := &d.Votings[j]
			v.CustomerID = customerID
			v.AppointmentID = appointmentID
			v.SuggestedDateID = d.ID
		}
	}
}

func StampParticipants(participants []domain.Participant, customerID, appointmentID uuid.UUID) {
	for i := range participants {
		p := &participants[i]
		p.CustomerID = customerID
		p.AppointmentID = appointmentID
		for j := range p.Votings {
			v := &p.Votings[j]
			v.CustomerID = customerID
			v.AppointmentID = appointmentID
			v.ParticipantID = p.ID
		}
	}
}
