package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clubdesk/clubdesk/internal/auth"
	"github.com/clubdesk/clubdesk/internal/platform/httpx"
	"github.com/clubdesk/clubdesk/internal/shared"
)

const resetRequestedMessage = "if the account exists and is confirmed, a reset link has been sent"

// Handler wires HTTP endpoints for accounts under /user.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    auth.Gate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate auth.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers account routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.signup)
	r.Get("/confirm/{token}", h.confirm)
	r.Post("/login", h.login)
	r.Post("/request-password-reset", h.requestReset)
	r.Post("/reset-password/{token}", h.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(h.gate.Authenticated())
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(auth.RoleAdmin))
		r.Get("/", h.list)
		r.Patch("/{id}", h.update)
		r.Put("/{id}/password", h.setPassword)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	view, err := h.service.Signup(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.DataBody{
		Message: "user created, check your email to confirm the account",
		Data:    view,
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "email confirmed, you can now log in")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.Authenticate(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) requestReset(w http.ResponseWriter, r *http.Request) {
	var in ResetRequestInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	err := h.service.RequestPasswordReset(r.Context(), in.Email)
	if err != nil && !errors.Is(err, shared.ErrAccountNotEligible) {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, resetRequestedMessage)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in PasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "password reset, you can now log in")
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), ListFilter{
		Username:   q.Get("username"),
		Email:      q.Get("email"),
		Role:       q.Get("role"),
		ListParams: shared.ListParamsFromQuery(q.Get),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "user retrieved", Data: view})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in ProfileUpdate
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	view, err := h.service.UpdateProfile(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "user updated", Data: view})
}

func (h *Handler) setPassword(w http.ResponseWriter, r *http.Request) {
	var in PasswordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.SetPassword(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "password updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "user deleted")
}
