package players

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clubdesk/clubdesk/internal/auth"
	"github.com/clubdesk/clubdesk/internal/platform/httpx"
	"github.com/clubdesk/clubdesk/internal/shared"
)

// Handler serves /clubPlayers. Any signed-in account can read; writes need
// an admin token.
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
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Authenticated())
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(auth.RoleAdmin))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{
		Name:       strings.TrimSpace(q.Get("name")),
		Position:   strings.ToUpper(strings.TrimSpace(q.Get("position"))),
		ListParams: shared.ListParamsFromQuery(q.Get),
	}
	errs := shared.ValidationErrors{}
	f.MinAge = intParam(q.Get("minAge"), "minAge", errs)
	f.MaxAge = intParam(q.Get("maxAge"), "maxAge", errs)
	if err := errs.Err(); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	page, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func intParam(raw, name string, errs shared.ValidationErrors) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.Add(name, "must be an integer")
		return nil
	}
	return &n
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "player retrieved", Data: p})
}

// create accepts a single player or an array of players.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.ReadBody(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if httpx.IsJSONArray(body) {
		var entries []json.RawMessage
		if err := json.Unmarshal(body, &entries); err != nil {
			httpx.RespondError(w, h.logger, fmt.Errorf("%w: %v", httpx.ErrMalformedBody, err))
			return
		}
		if len(entries) == 0 {
			httpx.RespondError(w, h.logger, shared.ValidationErrors{"body": "at least one player is required"})
			return
		}
		httpx.RespondBulk(w, h.logger, h.service.CreateMany(r.Context(), entries))
		return
	}

	d, err := Decode(body)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.Create(r.Context(), d)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, httpx.DataBody{Message: "player created", Data: p})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "player updated", Data: p})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.DataBody{Message: "player deleted", Data: p})
}
