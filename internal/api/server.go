// Package api is the HTTP surface of the task service: task CRUD, user
// settings, derived bucket/calendar views, and the activity stream the
// dashboard listens to.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sabr2007/smart-tasker-bot/internal/auth"
	"github.com/sabr2007/smart-tasker-bot/pkg/activity"
	"github.com/sabr2007/smart-tasker-bot/pkg/task"
	"github.com/sabr2007/smart-tasker-bot/pkg/user"
)

// Server is the HTTP API server.
type Server struct {
	tasks    task.Store
	users    user.Store
	activity *activity.Bus
	sessions *auth.Sessions
	botToken string
	offset   string // default UTC offset for offset-less deadlines
	mux      *http.ServeMux
}

// New creates a new Server.
func New(tasks task.Store, users user.Store, act *activity.Bus, sessions *auth.Sessions, botToken, defaultOffset string) *Server {
	s := &Server{
		tasks:    tasks,
		users:    users,
		activity: act,
		sessions: sessions,
		botToken: botToken,
		offset:   defaultOffset,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Session
	s.mux.HandleFunc("POST /api/auth/session", s.handleSessionCreate)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.withUser(s.handleTaskList))
	s.mux.HandleFunc("POST /api/tasks", s.withUser(s.handleTaskCreate))
	s.mux.HandleFunc("GET /api/tasks/archive", s.withUser(s.handleTaskArchiveList))
	s.mux.HandleFunc("DELETE /api/tasks/archive", s.withUser(s.handleArchiveClear))
	s.mux.HandleFunc("GET /api/tasks/completed", s.withUser(s.handleCompletedList))
	s.mux.HandleFunc("GET /api/tasks/{id}", s.withUser(s.handleTaskGet))
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.withUser(s.handleTaskPatch))
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.withUser(s.handleTaskDelete))
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.withUser(s.handleTaskComplete))
	s.mux.HandleFunc("POST /api/tasks/{id}/reopen", s.withUser(s.handleTaskReopen))
	s.mux.HandleFunc("POST /api/tasks/{id}/archive", s.withUser(s.handleTaskArchive))
	s.mux.HandleFunc("GET /api/tasks/{id}/activity", s.withUser(s.handleTaskActivity))

	// Users
	s.mux.HandleFunc("GET /api/users/me", s.withUser(s.handleUserGet))
	s.mux.HandleFunc("PATCH /api/users/me", s.withUser(s.handleUserPatch))
	s.mux.HandleFunc("GET /api/users/timezones", s.withUser(s.handleTimezones))

	// Derived views
	s.mux.HandleFunc("GET /api/views/buckets", s.withUser(s.handleBuckets))
	s.mux.HandleFunc("GET /api/views/calendar", s.withUser(s.handleCalendar))

	// Activity
	s.mux.HandleFunc("GET /api/activity", s.withUser(s.handleActivityList))
	s.mux.HandleFunc("GET /api/activity/stream", s.withUser(s.handleActivityStream))

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

type ctxKey int

const userIDKey ctxKey = 0

// withUser requires a valid bearer session token and threads the user ID
// through the request context. Fetches and mutations fail identically on a
// missing or bad token.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, 401, "missing bearer token")
			return
		}
		userID, err := s.sessions.Verify(tokenString)
		if err != nil {
			writeError(w, 401, "invalid session token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func requestUser(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}

// handleSessionCreate exchanges verified platform init data for a session
// token the client caches and sends as a bearer header.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"init_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	u, err := auth.VerifyInitData(req.InitData, s.botToken, time.Now())
	if err != nil {
		writeError(w, 401, err.Error())
		return
	}
	token, err := s.sessions.Issue(u.ID, time.Now())
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"token": token, "user_id": u.ID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskCount, _ := s.tasks.Count(ctx)
	activeCount, _ := s.tasks.ActiveCount(ctx)
	activityCount, _ := s.activity.Count(ctx)

	writeJSON(w, 200, map[string]any{
		"tasks":        taskCount,
		"active_tasks": activeCount,
		"activity":     activityCount,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write json", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryLimit reads ?limit and clamps it to 1..200 so it is always safe
// to hand to a SQL LIMIT.
func queryLimit(r *http.Request, defaultVal int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	return limit
}
