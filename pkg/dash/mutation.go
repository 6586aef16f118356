package dash

import (
	"fmt"

	"github.com/sabr2007/smart-tasker-bot/pkg/task"
)

// MutationState is the lifecycle of one optimistic edit.
type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationCommitted  MutationState = "committed"
	MutationRolledBack MutationState = "rolled_back"
)

// IsTerminal reports whether the state is final.
func (s MutationState) IsTerminal() bool {
	return s == MutationCommitted || s == MutationRolledBack
}

// Mutation is one locally-applied edit awaiting server confirmation. It
// carries the snapshot taken before the edit so a rollback is a plain
// restore, not an inverse operation.
type Mutation struct {
	ID     int
	Kind   string // "complete", "reschedule", "create", ...
	TaskID string
	State  MutationState

	saved []task.Task
}

// transition performs a validated state change. The caller supplies the
// expected prior state to make double-resolution bugs observable.
func (m *Mutation) transition(from, to MutationState) error {
	if m.State != from {
		return fmt.Errorf("mutation %d (%s): expected state %s, got %s", m.ID, m.Kind, from, m.State)
	}
	if !allowedTransition(from, to) {
		return fmt.Errorf("mutation %d (%s): disallowed transition %s -> %s", m.ID, m.Kind, from, to)
	}
	m.State = to
	return nil
}

func allowedTransition(from, to MutationState) bool {
	switch from {
	case MutationPending:
		return to == MutationCommitted || to == MutationRolledBack
	default:
		return false
	}
}
