package dash

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

func mkTasks(ids ...string) []task.Task {
	out := make([]task.Task, len(ids))
	for i, id := range ids {
		out[i] = task.Task{ID: id, Text: "task " + id, Status: task.StatusActive}
	}
	return out
}

func TestSnapshotApplyCompleteRemovesLocally(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a", "b", "c"))

	m := s.ApplyComplete("b")
	if m.State != MutationPending {
		t.Errorf("state = %s, want pending", m.State)
	}
	got := s.Tasks()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("tasks after optimistic complete = %+v", got)
	}
	if s.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", s.PendingCount())
	}
}

func TestSnapshotRollbackRestoresPreEditState(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a", "b", "c"))

	m := s.ApplyComplete("b")
	if len(s.Tasks()) != 2 {
		t.Fatal("optimistic edit not applied")
	}

	if err := s.Rollback(m); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	got := s.Tasks()
	if len(got) != 3 {
		t.Fatalf("tasks after rollback = %d, want the original 3", len(got))
	}
	if m.State != MutationRolledBack {
		t.Errorf("state = %s", m.State)
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", s.PendingCount())
	}
}

func TestSnapshotCommitInstallsConfirmedList(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a", "b"))

	m := s.ApplyComplete("a")
	confirmed := mkTasks("b", "d") // server knows about d from another device
	if err := s.Commit(m, confirmed); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got := s.Tasks()
	if len(got) != 2 || got[1].ID != "d" {
		t.Errorf("tasks after commit = %+v, want server truth", got)
	}
}

func TestMutationCannotResolveTwice(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a"))

	m := s.ApplyComplete("a")
	if err := s.Commit(m, nil); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Rollback(m); err == nil {
		t.Error("rollback after commit should fail")
	}
	if err := s.Commit(m, nil); err == nil {
		t.Error("double commit should fail")
	}
}

func TestSnapshotApplyReschedule(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a"))

	due := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.ApplyReschedule("a", &due)
	got := s.Tasks()
	if got[0].DueAt == nil || !got[0].DueAt.Equal(due) {
		t.Errorf("due_at = %v", got[0].DueAt)
	}
}

func TestResolveFailedRequestKeepsTaskCount(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a", "b", "c"))

	m := s.ApplyComplete("c")
	err := s.Resolve(m,
		func() error { return errors.New("network down") },
		func() ([]task.Task, error) { t.Fatal("reload must not run after a failed request"); return nil, nil },
	)
	if err == nil {
		t.Fatal("resolve should surface the request error")
	}
	if got := len(s.Tasks()); got != 3 {
		t.Errorf("active tasks = %d after failed complete, want 3", got)
	}
}

func TestResolveSuccessCommitsReload(t *testing.T) {
	s := NewSnapshot()
	s.Replace(mkTasks("a", "b"))

	m := s.ApplyComplete("a")
	err := s.Resolve(m,
		func() error { return nil },
		func() ([]task.Task, error) { return mkTasks("b"), nil },
	)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := s.Tasks(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("tasks = %+v", got)
	}
	if m.State != MutationCommitted {
		t.Errorf("state = %s", m.State)
	}
}

// --- client tests ---

// fakeAPI is a minimal server: /api/auth/session mints tokens and
// /api/tasks requires the freshest one.
type fakeAPI struct {
	sessions int
	current  string
	expire   bool // make previously-issued tokens invalid
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		f.sessions++
		f.current = "tok-" + string(rune('0'+f.sessions))
		json.NewEncoder(w).Encode(map[string]any{"token": f.current, "user_id": 1})
	})
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.current {
			w.WriteHeader(401)
			return
		}
		json.NewEncoder(w).Encode(mkTasks("a"))
	})
	return mux
}

func TestClientCachesSessionToken(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "init-data")
	for i := 0; i < 3; i++ {
		if _, err := c.ActiveTasks(context.Background()); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if api.sessions != 1 {
		t.Errorf("minted %d sessions for 3 requests, want 1", api.sessions)
	}
}

func TestClientDiscardsTokenOn401AndRetries(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "init-data")
	if _, err := c.ActiveTasks(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Server-side expiry: the cached token no longer matches.
	api.current = "rotated"
	if _, err := c.ActiveTasks(context.Background()); err != nil {
		t.Fatalf("request after expiry: %v", err)
	}
	if api.sessions != 2 {
		t.Errorf("minted %d sessions, want 2 (one fresh after the 401)", api.sessions)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/session" {
			json.NewEncoder(w).Encode(map[string]any{"token": "t"})
			return
		}
		http.Error(w, `{"error":"text is required"}`, 422)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "init-data")
	_, err := c.CreateTask(context.Background(), "", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 422 {
		t.Fatalf("err = %v, want APIError 422", err)
	}
}
