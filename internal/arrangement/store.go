package arrangement

import (
	"github.com/zulandar/seatplan/internal/grid"
)

// MaxHistory bounds the undo stack.
const MaxHistory = 50

// Store is the mutable editing session for one arrangement. Every change is
// recorded so it can be undone; a new change discards the redo stack.
type Store struct {
	state  State
	past   []State
	future []State
}

// New creates an empty store over layout.
func New(layout grid.Layout) *Store {
	return &Store{state: NewState(layout)}
}

// FromState creates a store seeded with s and no history.
func FromState(s State) *Store {
	return &Store{state: s.Clone()}
}

// State returns a copy of the current state.
func (st *Store) State() State {
	return st.state.Clone()
}

// Layout returns a copy of the current layout.
func (st *Store) Layout() grid.Layout {
	return st.state.Layout.Clone()
}

// Assignments returns the current assignments in seat order.
func (st *Store) Assignments() []Assignment {
	return st.state.Assignments()
}

// Len returns the number of occupied seats.
func (st *Store) Len() int {
	return len(st.state.Seats)
}

// At returns the assignment at p.
func (st *Store) At(p grid.Position) (Assignment, bool) {
	return st.state.At(p)
}

// Apply reduces ev into the current state as one undoable step.
func (st *Store) Apply(ev Event) error {
	next, err := Reduce(st.state, ev)
	if err != nil {
		return err
	}
	st.commit(next)
	return nil
}

// Commit replaces the current state with next as one undoable step.
func (st *Store) Commit(next State) {
	st.commit(next.Clone())
}

func (st *Store) commit(next State) {
	st.past = append(st.past, st.state)
	if len(st.past) > MaxHistory {
		st.past = st.past[len(st.past)-MaxHistory:]
	}
	st.future = nil
	st.state = next
}

func (st *Store) Place(a Assignment) error         { return st.Apply(Place{Assignment: a}) }
func (st *Store) Remove(p grid.Position) error      { return st.Apply(Remove{Pos: p}) }
func (st *Store) Move(from, to grid.Position) error { return st.Apply(Move{From: from, To: to}) }
func (st *Store) ToggleRowLeader(p grid.Position) error {
	return st.Apply(ToggleLeader{Pos: p})
}
func (st *Store) Clear() error { return st.Apply(Clear{}) }

// SetLayout replaces the layout and returns the assignments dropped because
// they no longer fit.
func (st *Store) SetLayout(l grid.Layout) ([]Assignment, error) {
	dropped := Dropped(st.state, l)
	if err := st.Apply(SetLayout{Layout: l}); err != nil {
		return nil, err
	}
	return dropped, nil
}

func (st *Store) CanUndo() bool { return len(st.past) > 0 }
func (st *Store) CanRedo() bool { return len(st.future) > 0 }

// Undo reverts the last change. It reports false when there is nothing to undo.
func (st *Store) Undo() bool {
	if len(st.past) == 0 {
		return false
	}
	prev := st.past[len(st.past)-1]
	st.past = st.past[:len(st.past)-1]
	st.future = append(st.future, st.state)
	st.state = prev
	return true
}

// Redo reapplies the last undone change.
func (st *Store) Redo() bool {
	if len(st.future) == 0 {
		return false
	}
	next := st.future[len(st.future)-1]
	st.future = st.future[:len(st.future)-1]
	st.past = append(st.past, st.state)
	st.state = next
	return true
}
