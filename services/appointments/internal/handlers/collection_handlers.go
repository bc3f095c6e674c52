package handlers

import (
	"net/http"

	"github.com/diagnosis/terminfinder/pkg/response"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/service"
)

func (h *Handlers) GetParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.svc.GetParticipants(r.Context(), customerID(r), appointmentID(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get participants")
		return
	}
	if participants == nil {
		response.NotFound(w, "Appointment not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, participants)
}

// SaveParticipants upserts participants with their votings.
func (h *Handlers) SaveParticipants(w http.ResponseWriter, r *http.Request) {
	var participants []domain.Participant
	if !decodeJSON(w, r, &participants) {
		return
	}
	if !service.ParticipantsAreValid(participants) {
		response.WriteError(w, http.StatusBadRequest, "Votings must reference a suggested date", response.CodeInvalidEntries)
		return
	}

	saved, err := h.svc.SaveParticipants(r.Context(), customerID(r), appointmentID(r), participants)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save participants")
		return
	}
	if saved == nil {
		response.NotFound(w, "Appointment not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, saved)
}

func (h *Handlers) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "participantID")
	if !ok {
		return
	}
	p := &domain.Participant{ID: id, CustomerID: customerID(r), AppointmentID: appointmentID(r)}
	if !service.ParticipantToDeleteIsValid(p) {
		response.BadRequest(w, "Invalid participant")
		return
	}

	deleted, err := h.svc.DeleteParticipant(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete participant")
		return
	}
	if !deleted {
		response.NotFound(w, "Participant not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetSuggestedDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.GetSuggestedDates(r.Context(), customerID(r), appointmentID(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get suggested dates")
		return
	}
	if dates == nil {
		response.NotFound(w, "Appointment not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, dates)
}

func (h *Handlers) SaveSuggestedDates(w http.ResponseWriter, r *http.Request) {
	var dates []domain.SuggestedDate
	if !decodeJSON(w, r, &dates) {
		return
	}

	saved, err := h.svc.SaveSuggestedDates(r.Context(), customerID(r), appointmentID(r), dates)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save suggested dates")
		return
	}
	if saved == nil {
		response.NotFound(w, "Appointment not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, saved)
}

func (h *Handlers) DeleteSuggestedDate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "suggestedDateID")
	if !ok {
		return
	}
	d := &domain.SuggestedDate{ID: id, CustomerID: customerID(r), AppointmentID: appointmentID(r)}
	if !service.SuggestedDateToDeleteIsValid(d) {
		response.BadRequest(w, "Invalid suggested date")
		return
	}

	deleted, err := h.svc.DeleteSuggestedDate(r.Context(), d)
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete suggested date")
		return
	}
	if !deleted {
		response.NotFound(w, "Suggested date not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deleteSuggestedDatesResponse struct {
	Deleted int `json:"deleted"`
}

// DeleteSuggestedDates removes the listed suggested dates in one transaction.
func (h *Handlers) DeleteSuggestedDates(w http.ResponseWriter, r *http.Request) {
	var dates []domain.SuggestedDate
	if !decodeJSON(w, r, &dates) {
		return
	}
	if len(dates) == 0 {
		response.BadRequest(w, "No suggested dates given")
		return
	}
	cid, aid := customerID(r), appointmentID(r)
	for i := range dates {
		dates[i].CustomerID, dates[i].AppointmentID = cid, aid
		if !service.SuggestedDateToDeleteIsValid(&dates[i]) {
			response.WriteError(w, http.StatusBadRequest, "Every suggested date needs an id", response.CodeInvalidEntries)
			return
		}
	}

	n, err := h.svc.DeleteSuggestedDates(r.Context(), cid, aid, dates)
	if err != nil {
		writeServiceError(w, r, err, "Failed to delete suggested dates")
		return
	}
	response.WriteJSON(w, http.StatusOK, deleteSuggestedDatesResponse{Deleted: n})
}
