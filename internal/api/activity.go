package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
)

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	entries, err := s.activity.Recent(r.Context(), requestUser(r), limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, entries)
}

// handleTaskActivity returns the activity history of one task, newest first.
func (s *Server) handleTaskActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	entries, err := s.activity.ByTask(r.Context(), requestUser(r), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, entries)
}

// handleActivityStream pushes the user's new activity entries over SSE,
// fed from the in-process bus. Clients that reconnect pass ?after=<entry id>
// to replay entries they missed before joining the live feed.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}
	userID := requestUser(r)

	// Subscribe before the catch-up query so entries appended in between
	// are not lost; the dedup below drops any that show up in both.
	ch := s.activity.Subscribe()
	defer s.activity.Unsubscribe(ch)

	var missed []activity.Entry
	if after := r.URL.Query().Get("after"); after != "" {
		var err error
		missed, err = s.activity.Since(r.Context(), userID, after, 200)
		if err != nil {
			writeError(w, 500, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	lastID := ""
	for i := range missed {
		writeSSE(w, flusher, &missed[i])
		lastID = missed[i].ID
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-ch:
			if !open {
				return
			}
			if e.UserID != userID || (lastID != "" && e.ID <= lastID) {
				continue
			}
			writeSSE(w, flusher, e)
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, e *activity.Entry) {
	fmt.Fprint(w, "data: ")
	json.NewEncoder(w).Encode(e)
	fmt.Fprint(w, "\n")
	flusher.Flush()
}
