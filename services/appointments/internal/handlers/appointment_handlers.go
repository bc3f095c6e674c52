package handlers

import (
	"net/http"
	"time"

	"github.com/diagnosis/terminfinder/pkg/auth"
	"github.com/diagnosis/terminfinder/pkg/logger"
	"github.com/diagnosis/terminfinder/pkg/response"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type protectionResponse struct {
	Protected bool `json:"protected"`
}

type verifyRequest struct {
	Password string `json:"password"`
}

type verifyResponse struct {
	Valid       bool   `json:"valid"`
	AccessToken string `json:"access_token,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// GetCustomer confirms the customer exists; RequireCustomer did the work.
func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"customer_id": customerID(r).String()})
}

// SaveAppointment creates an appointment from a body without id and updates
// the appointment named by id and admin_id otherwise.
func (h *Handlers) SaveAppointment(w http.ResponseWriter, r *http.Request) {
	var a domain.Appointment
	if !decodeJSON(w, r, &a) {
		return
	}
	cid := customerID(r)

	created := domain.IsNew(a.ID)
	if !created {
		exists, err := h.svc.AppointmentExistsWithAdmin(r.Context(), cid, a.ID, a.AdminID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to check appointment")
			return
		}
		if !exists {
			response.NotFound(w, "Appointment not found")
			return
		}
		if !h.authorize(w, r, h.adminGate(cid, a.AdminID)) {
			return
		}
	}
	if !service.ParticipantsAreValid(a.Participants) {
		response.WriteError(w, http.StatusBadRequest, "Votings must reference a suggested date", response.CodeInvalidEntries)
		return
	}

	saved, err := h.svc.SaveAppointment(r.Context(), cid, &a)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save appointment")
		return
	}
	if saved == nil {
		response.NotFound(w, "Appointment not found")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.WriteJSON(w, status, saved)
}

// GetAppointment never exposes the admin id.
func (h *Handlers) GetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAppointment(r.Context(), customerID(r), appointmentID(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get appointment")
		return
	}
	if a == nil {
		response.NotFound(w, "Appointment not found")
		return
	}
	a.AdminID = uuid.Nil
	response.WriteJSON(w, http.StatusOK, a)
}

func (h *Handlers) GetAppointmentByAdmin(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAppointmentByAdmin(r.Context(), customerID(r), adminID(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get appointment")
		return
	}
	if a == nil {
		response.NotFound(w, "Appointment not found")
		return
	}
	response.WriteJSON(w, http.StatusOK, a)
}

func (h *Handlers) GetProtection(w http.ResponseWriter, r *http.Request) {
	protected, err := h.svc.IsProtected(r.Context(), customerID(r), appointmentID(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to check protection")
		return
	}
	response.WriteJSON(w, http.StatusOK, protectionResponse{Protected: protected})
}

func (h *Handlers) GetAdminProtection(w http.ResponseWriter, r *http.Request) {
	protected, err := h.svc.IsProtectedByAdmin(r.Context(), customerID(r), adminID(r))
	if err != nil {
		writeServiceError(w, r, err, "Failed to check protection")
		return
	}
	response.WriteJSON(w, http.StatusOK, protectionResponse{Protected: protected})
}

func (h *Handlers) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cid, aid := customerID(r), appointmentID(r)
	ok, err := h.svc.VerifySecret(r.Context(), cid, aid, req.Password)
	h.writeVerification(w, r, ok, err, aid, auth.ScopeAppointment)
}

func (h *Handlers) VerifyAdminPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cid, adm := customerID(r), adminID(r)
	ok, err := h.svc.VerifySecretByAdmin(r.Context(), cid, adm, req.Password)
	h.writeVerification(w, r, ok, err, adm, auth.ScopeAdmin)
}

// writeVerification answers a verification attempt, attaching an access
// token for the verified appointment on success.
func (h *Handlers) writeVerification(w http.ResponseWriter, r *http.Request, ok bool, err error, subject uuid.UUID, scope string) {
	if err != nil {
		writeServiceError(w, r, err, "Failed to verify password")
		return
	}
	if !ok {
		logger.WarnContext(r.Context(), "Password verification failed", "scope", scope)
		response.WriteJSON(w, http.StatusOK, verifyResponse{Valid: false})
		return
	}

	token, err := auth.NewAccessToken(customerID(r).String(), subject.String(), scope, h.auth.JWTSecret, h.auth.AccessTokenTTL)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to issue access token", "error", err)
		response.InternalError(w, "Failed to issue access token")
		return
	}
	response.WriteJSON(w, http.StatusOK, verifyResponse{
		Valid:       true,
		AccessToken: token,
		ExpiresIn:   int(h.auth.AccessTokenTTL / time.Second),
	})
}

// SetStatus answers 409 when the transition is not allowed; the route
// middleware already answered 404 for an unknown admin id.
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	status := domain.ParseAppointmentStatus(chi.URLParam(r, "status"))

	a, err := h.svc.SetStatus(r.Context(), customerID(r), adminID(r), status)
	if err != nil {
		writeServiceError(w, r, err, "Failed to set status")
		return
	}
	if a == nil {
		exists, err := h.svc.AppointmentExistsByAdmin(r.Context(), customerID(r), adminID(r))
		if err == nil && !exists {
			response.NotFound(w, "Appointment not found")
			return
		}
		response.Conflict(w, "Status transition not allowed")
		return
	}
	response.WriteJSON(w, http.StatusOK, a)
}
