package records

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clubdesk/clubdesk/internal/auth"
	"github.com/clubdesk/clubdesk/internal/platform/httpx"
	"github.com/clubdesk/clubdesk/internal/shared"
)

// Handler serves /record. Reads are public, writes need an admin token.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    auth.Gate
}

func NewHandler(logger *slog.Logger, service *Service, gate auth.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(auth.RoleAdmin))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.service.List(r.Context(), ListFilter{
		Name:       q.Get("name"),
		Position:   q.Get("position"),
		Level:      q.Get("level"),
		ListParams: shared.ListParamsFromQuery(q.Get),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "record retrieved", Data: rec})
}

// create accepts a single object or an array of objects.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if httpx.IsJSONArray(body) {
		var inputs []Input
		if err := json.Unmarshal(body, &inputs); err != nil {
			httpx.RespondError(w, h.logger, fmt.Errorf("%w: %v", httpx.ErrMalformedBody, err))
			return
		}
		if len(inputs) == 0 {
			httpx.RespondError(w, h.logger, shared.ValidationErrors{"body": "at least one record is required"})
			return
		}
		httpx.RespondBulk(w, h.logger, h.service.CreateMany(r.Context(), inputs))
		return
	}

	var in Input
	if err := json.Unmarshal(body, &in); err != nil {
		httpx.RespondError(w, h.logger, fmt.Errorf("%w: %v", httpx.ErrMalformedBody, err))
		return
	}
	rec, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.DataBody{Message: "record created", Data: rec})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var p Patch
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	rec, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "record updated", Data: rec})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "record deleted")
}
