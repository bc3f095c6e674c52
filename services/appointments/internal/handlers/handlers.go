package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/terminfinder/pkg/auth"
	"github.com/diagnosis/terminfinder/pkg/config"
	"github.com/diagnosis/terminfinder/pkg/logger"
	"github.com/diagnosis/terminfinder/pkg/ratelimit"
	"github.com/diagnosis/terminfinder/pkg/response"
	"github.com/diagnosis/terminfinder/services/appointments/internal/domain"
	"github.com/diagnosis/terminfinder/services/appointments/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PasswordHeader carries the plaintext password of a protected appointment.
const PasswordHeader = "X-Appointment-Password"

type ctxKey int

const (
	customerKey ctxKey = iota
	appointmentKey
	adminKey
)

type Handlers struct {
	svc         service.AppointmentService
	auth        config.AuthConfig
	verifyLimit func(http.Handler) http.Handler
}

// New wires the handlers. verifyLimit throttles password verification and
// may be nil.
func New(svc service.AppointmentService, authCfg config.AuthConfig, verifyLimit func(http.Handler) http.Handler) *Handlers {
	if verifyLimit == nil {
		verifyLimit = func(next http.Handler) http.Handler { return next }
	}
	return &Handlers{svc: svc, auth: authCfg, verifyLimit: verifyLimit}
}

func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/customers/{customerID}", func(r chi.Router) {
		r.Use(h.RequireCustomer)
		r.Get("/", h.GetCustomer)
		r.Post("/appointments", h.SaveAppointment)

		r.Route("/appointments/{appointmentID}", func(r chi.Router) {
			r.Use(h.RequireAppointment)
			r.Get("/protection", h.GetProtection)
			r.With(h.verifyLimit).Post("/verify", h.VerifyPassword)

			r.Group(func(r chi.Router) {
				r.Use(h.RequirePassword)
				r.Get("/", h.GetAppointment)
				r.Get("/participants", h.GetParticipants)
				r.Put("/participants", h.SaveParticipants)
				r.Delete("/participants/{participantID}", h.DeleteParticipant)
				r.Get("/suggested-dates", h.GetSuggestedDates)
				r.Put("/suggested-dates", h.SaveSuggestedDates)
				r.Delete("/suggested-dates", h.DeleteSuggestedDates)
				r.Delete("/suggested-dates/{suggestedDateID}", h.DeleteSuggestedDate)
			})
		})

		r.Route("/admin/{adminID}", func(r chi.Router) {
			r.Use(h.RequireAdminAppointment)
			r.Get("/protection", h.GetAdminProtection)
			r.With(h.verifyLimit).Post("/verify", h.VerifyAdminPassword)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdminPassword)
				r.Get("/", h.GetAppointmentByAdmin)
				r.Put("/status/{status}", h.SetStatus)
			})
		})
	})

	return r
}

// VerifyRateLimitKeys limits verification attempts per client and per
// appointment.
func VerifyRateLimitKeys(r *http.Request) []string {
	keys := []string{"ip:" + ratelimit.ClientIP(r)}
	if id := chi.URLParam(r, "appointmentID"); id != "" {
		keys = append(keys, "appointment:"+id)
	}
	if id := chi.URLParam(r, "adminID"); id != "" {
		keys = append(keys, "admin:"+id)
	}
	return keys
}

// Middleware resolving the customer of the route
func (h *Handlers) RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID, ok := parseID(w, r, "customerID")
		if !ok {
			return
		}
		exists, err := h.svc.CustomerExists(r.Context(), customerID)
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to check customer", "error", err)
			response.InternalError(w, "Failed to check customer")
			return
		}
		if !exists {
			response.NotFound(w, "Customer not found")
			return
		}

		ctx := context.WithValue(r.Context(), customerKey, customerID)
		ctx = context.WithValue(ctx, logger.CustomerIDKey, customerID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Middleware resolving a visible appointment by id
func (h *Handlers) RequireAppointment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := parseID(w, r, "appointmentID")
		if !ok {
			return
		}
		exists, err := h.svc.AppointmentExists(r.Context(), customerID(r), appointmentID)
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to check appointment", "error", err)
			response.InternalError(w, "Failed to check appointment")
			return
		}
		if !exists {
			response.NotFound(w, "Appointment not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), appointmentKey, appointmentID)))
	})
}

// Middleware resolving a visible appointment by admin id
func (h *Handlers) RequireAdminAppointment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminID, ok := parseID(w, r, "adminID")
		if !ok {
			return
		}
		exists, err := h.svc.AppointmentExistsByAdmin(r.Context(), customerID(r), adminID)
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to check appointment", "error", err)
			response.InternalError(w, "Failed to check appointment")
			return
		}
		if !exists {
			response.NotFound(w, "Appointment not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, adminID)))
	})
}

// Middleware for protected appointments addressed by id
func (h *Handlers) RequirePassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid, aid := customerID(r), appointmentID(r)
		if !h.authorize(w, r, gate{
			subject: aid,
			scope:   auth.ScopeAppointment,
			protected: func(ctx context.Context) (bool, error) {
				return h.svc.IsProtected(ctx, cid, aid)
			},
			verify: func(ctx context.Context, candidate string) (bool, error) {
				return h.svc.VerifySecret(ctx, cid, aid, candidate)
			},
		}) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Middleware for protected appointments addressed by admin id
func (h *Handlers) RequireAdminPassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authorize(w, r, h.adminGate(customerID(r), adminID(r))) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) adminGate(cid, adminID uuid.UUID) gate {
	return gate{
		subject: adminID,
		scope:   auth.ScopeAdmin,
		protected: func(ctx context.Context) (bool, error) {
			return h.svc.IsProtectedByAdmin(ctx, cid, adminID)
		},
		verify: func(ctx context.Context, candidate string) (bool, error) {
			return h.svc.VerifySecretByAdmin(ctx, cid, adminID, candidate)
		},
	}
}

// gate describes how one appointment is unlocked.
type gate struct {
	subject   uuid.UUID
	scope     string
	protected func(ctx context.Context) (bool, error)
	verify    func(ctx context.Context, candidate string) (bool, error)
}

// authorize lets the request through when the appointment is unprotected, or
// when it carries a token for the appointment or its password. It writes the
// error response otherwise.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request, g gate) bool {
	ctx := r.Context()

	protected, err := g.protected(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		response.NotFound(w, "Appointment not found")
		return false
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check protection", "error", err)
		response.InternalError(w, "Failed to check protection")
		return false
	}
	if !protected {
		return true
	}

	if token := bearerToken(r); token != "" {
		claims, err := auth.Parse(token, h.auth.JWTSecret)
		if err == nil && claims.Grants(customerID(r).String(), g.subject.String(), g.scope) {
			return true
		}
	}

	candidate := r.Header.Get(PasswordHeader)
	if candidate == "" {
		response.Unauthorized(w, "Appointment is password protected")
		return false
	}
	ok, err := g.verify(ctx, candidate)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to verify password", "error", err)
		response.InternalError(w, "Failed to verify password")
		return false
	}
	if !ok {
		response.WriteError(w, http.StatusUnauthorized, "Wrong password", response.CodeWrongPassword)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil || id == uuid.Nil {
		response.BadRequest(w, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func customerID(r *http.Request) uuid.UUID    { return idFrom(r, customerKey) }
func appointmentID(r *http.Request) uuid.UUID { return idFrom(r, appointmentKey) }
func adminID(r *http.Request) uuid.UUID       { return idFrom(r, adminKey) }

func idFrom(r *http.Request, key ctxKey) uuid.UUID {
	if id, ok := r.Context().Value(key).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

// writeServiceError maps engine errors onto responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var limitErr *domain.LimitError
	switch {
	case errors.As(err, &limitErr):
		response.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, "Limit exceeded", response.CodeLimitExceeded, string(limitErr.Limit))
	case errors.Is(err, domain.ErrPaused):
		response.Conflict(w, "Appointment is paused")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Appointment not found")
	case errors.Is(err, domain.ErrNotProtected):
		response.WriteError(w, http.StatusBadRequest, "Appointment is not password protected", response.CodeNotProtected)
	default:
		logger.ErrorContext(r.Context(), message, "error", err)
		response.InternalError(w, message)
	}
}
