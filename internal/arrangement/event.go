package arrangement

import (
	"fmt"

	"github.com/zulandar/seatplan/internal/grid"
)

// Event is a user edit that Reduce applies to a State.
type Event interface {
	apply(s *State) error
}

// Place seats an assignment at its position. An existing occupant is
// replaced and the member's previous seat, if any, is cleared.
type Place struct {
	Assignment Assignment
}

// Remove clears one seat.
type Remove struct {
	Pos grid.Position
}

// Move relocates the occupant of From to To, swapping with any occupant of To.
type Move struct {
	From, To grid.Position
}

// ToggleLeader flips the row-leader flag of one seat.
type ToggleLeader struct {
	Pos grid.Position
}

// SetLayout replaces the layout and drops seats that fall outside it.
type SetLayout struct {
	Layout grid.Layout
}

// Clear removes every assignment.
type Clear struct{}

// Replace swaps the whole state for another. Engines that compute a full
// seating use it so the result lands as a single undo step.
type Replace struct {
	State State
}

// Reduce applies ev to a copy of s and returns the new state. s is never
// modified.
func Reduce(s State, ev Event) (State, error) {
	next := s.Clone()
	if err := ev.apply(&next); err != nil {
		return s, err
	}
	return next, nil
}

func (e Place) apply(s *State) error {
	a := e.Assignment
	if err := grid.CheckPosition(s.Layout, a.Pos); err != nil {
		return fmt.Errorf("arrangement: place %s: %w", a.MemberID, err)
	}
	if prev, ok := s.Find(a.MemberID); ok && prev.Pos != a.Pos {
		delete(s.Seats, prev.Pos)
	}
	s.Seats[a.Pos] = a
	return nil
}

func (e Remove) apply(s *State) error {
	if _, ok := s.Delete(e.Pos); !ok {
		return fmt.Errorf("arrangement: remove: %w: %s", ErrNotAssigned, e.Pos.Key())
	}
	return nil
}

func (e Move) apply(s *State) error {
	if err := grid.CheckPosition(s.Layout, e.To); err != nil {
		return fmt.Errorf("arrangement: move: %w", err)
	}
	src, ok := s.Seats[e.From]
	if !ok {
		return fmt.Errorf("arrangement: move: %w: %s", ErrNotAssigned, e.From.Key())
	}
	if e.From == e.To {
		return nil
	}
	if dst, taken := s.Seats[e.To]; taken {
		dst.Pos = e.From
		s.Seats[e.From] = dst
	} else {
		delete(s.Seats, e.From)
	}
	src.Pos = e.To
	s.Seats[e.To] = src
	return nil
}

func (e ToggleLeader) apply(s *State) error {
	a, ok := s.Seats[e.Pos]
	if !ok {
		return fmt.Errorf("arrangement: toggle leader: %w: %s", ErrNotAssigned, e.Pos.Key())
	}
	a.IsRowLeader = !a.IsRowLeader
	s.Seats[e.Pos] = a
	return nil
}

func (e SetLayout) apply(s *State) error {
	if err := grid.Validate(e.Layout); err != nil {
		return fmt.Errorf("arrangement: set layout: %w", err)
	}
	for p := range s.Seats {
		if outside(*s, e.Layout, p) {
			delete(s.Seats, p)
		}
	}
	s.Layout = e.Layout.Clone()
	return nil
}

func (Clear) apply(s *State) error {
	s.Seats = make(map[grid.Position]Assignment)
	return nil
}

func (e Replace) apply(s *State) error {
	*s = e.State.Clone()
	if s.Seats == nil {
		s.Seats = make(map[grid.Position]Assignment)
	}
	return nil
}

// Dropped returns the assignments of s that lie outside layout.
func Dropped(s State, layout grid.Layout) []Assignment {
	var out []Assignment
	for _, a := range s.Assignments() {
		if outside(s, layout, a.Pos) {
			out = append(out, a)
		}
	}
	return out
}

// outside reports whether p no longer fits when s takes layout. Capacity
// counts seats, so a row may already extend past its capacity after a
// shrink; that overhang is kept.
func outside(s State, layout grid.Layout, p grid.Position) bool {
	if p.Row < 0 || p.Row >= layout.Rows || p.Col < 0 {
		return true
	}
	overhang := s.Width(p.Row) - s.Layout.Capacity(p.Row)
	return p.Col >= layout.Capacity(p.Row)+overhang
}
