package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/lineup/internal/adapters/repository"
)

// RostersHandler serves confirmed rosters.
type RostersHandler struct {
	deps RosterDependencies
}

// NewRostersHandler creates a new rosters handler.
func NewRostersHandler(deps RosterDependencies) *RostersHandler {
	return &RostersHandler{deps: deps}
}

type teamsResponse struct {
	Teams []string `json:"teams"`
}

// HandleTeams handles GET /teams requests.
func (h *RostersHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.deps.Teams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if teams == nil {
		teams = []string{}
	}
	writeJSON(w, http.StatusOK, teamsResponse{Teams: teams})
}

// HandleRoster handles GET /rosters/{team} requests.
func (h *RostersHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	h.serveRoster(w, r, r.PathValue("team"))
}

// HandleResults handles GET /get-results?team= requests.
func (h *RostersHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	h.serveRoster(w, r, r.URL.Query().Get("team"))
}

func (h *RostersHandler) serveRoster(w http.ResponseWriter, r *http.Request, team string) {
	const op = "api.get_roster"
	team = strings.TrimSpace(team)
	if team == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errors.New("missing team")))
		return
	}
	roster, err := h.deps.Roster(r.Context(), team)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, roster)
	}
}
