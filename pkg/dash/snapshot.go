// Package dash is the dashboard's client-side state: an authenticated API
// client and an optimistic task snapshot. Edits apply to the snapshot
// immediately, then either commit with a server-confirmed reload or roll
// back to the pre-edit state when the request fails.
package dash

import (
	"fmt"
	"sync"
	"time"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

// Snapshot holds the locally-known active task list.
type Snapshot struct {
	mu      sync.Mutex
	tasks   []task.Task
	nextID  int
	pending map[int]*Mutation
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{pending: make(map[int]*Mutation)}
}

// Tasks returns a copy of the current task list.
func (s *Snapshot) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]task.Task(nil), s.tasks...)
}

// Replace installs a server-confirmed task list, dropping nothing: pending
// mutations stay pending and resolve against whatever list is current when
// they commit or roll back.
func (s *Snapshot) Replace(tasks []task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]task.Task(nil), tasks...)
}

// PendingCount returns the number of unresolved mutations.
func (s *Snapshot) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Apply records a mutation and optimistically edits the snapshot through
// fn. The pre-edit list is saved on the returned mutation for rollback.
func (s *Snapshot) Apply(kind, taskID string, fn func(tasks []task.Task) []task.Task) *Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m := &Mutation{
		ID:     s.nextID,
		Kind:   kind,
		TaskID: taskID,
		State:  MutationPending,
		saved:  append([]task.Task(nil), s.tasks...),
	}
	s.tasks = fn(append([]task.Task(nil), s.tasks...))
	s.pending[m.ID] = m
	return m
}

// ApplyComplete optimistically removes a task from the active list.
func (s *Snapshot) ApplyComplete(taskID string) *Mutation {
	return s.Apply("complete", taskID, func(tasks []task.Task) []task.Task {
		out := tasks[:0]
		for _, t := range tasks {
			if t.ID != taskID {
				out = append(out, t)
			}
		}
		return out
	})
}

// ApplyReschedule optimistically moves a task's deadline.
func (s *Snapshot) ApplyReschedule(taskID string, due *time.Time) *Mutation {
	return s.Apply("reschedule", taskID, func(tasks []task.Task) []task.Task {
		for i := range tasks {
			if tasks[i].ID == taskID {
				tasks[i].DueAt = due
			}
		}
		return tasks
	})
}

// Commit resolves a mutation with the server-confirmed task list. The
// confirmed list wins over the optimistic edit wholesale, so a commit
// after a competing edit from another device converges on server truth.
func (s *Snapshot) Commit(m *Mutation, confirmed []task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := m.transition(MutationPending, MutationCommitted); err != nil {
		return err
	}
	delete(s.pending, m.ID)
	s.tasks = append([]task.Task(nil), confirmed...)
	m.saved = nil
	return nil
}

// Rollback restores the pre-edit list after a failed request.
func (s *Snapshot) Rollback(m *Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := m.transition(MutationPending, MutationRolledBack); err != nil {
		return err
	}
	delete(s.pending, m.ID)
	s.tasks = m.saved
	m.saved = nil
	return nil
}

// Resolve runs a mutation's request and settles it: commit with a fresh
// reload on success, rollback on any error.
func (s *Snapshot) Resolve(m *Mutation, request func() error, reload func() ([]task.Task, error)) error {
	if err := request(); err != nil {
		if rbErr := s.Rollback(m); rbErr != nil {
			return fmt.Errorf("rollback after %q: %w", err, rbErr)
		}
		return err
	}
	confirmed, err := reload()
	if err != nil {
		// The mutation itself succeeded; keep the optimistic state and
		// commit against it rather than losing the edit.
		confirmed = s.Tasks()
	}
	return s.Commit(m, confirmed)
}
