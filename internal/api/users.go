package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/user"
)

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	settings, err := s.users.Get(r.Context(), requestUser(r))
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, settings)
}

// handleUserPatch updates the display timezone. The zone must be a real
// IANA name: a typo here would silently push every date key onto the
// local-zone fallback.
func (s *Server) handleUserPatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Timezone == "" {
		writeError(w, 422, "timezone is required")
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, 422, "invalid timezone: "+req.Timezone)
		return
	}

	settings, err := s.users.SetTimezone(r.Context(), requestUser(r), req.Timezone)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, settings)
}

func (s *Server) handleTimezones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"common": user.CommonTimezones})
}
