// Package arrangement holds the seat assignments of one arrangement, the
// reducer that mutates them, and the undo/redo store wrapped around it.
package arrangement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

var (
	// ErrZoneViolation means a state breaks part contiguity, left/right
	// ordering or row capacity. Engines must never produce one.
	ErrZoneViolation = errors.New("arrangement: zone violation")
	ErrNotAssigned   = errors.New("arrangement: seat not assigned")
	ErrSeatOccupied  = errors.New("arrangement: seat occupied")
	ErrUnknownMember = errors.New("arrangement: member not seated")
)

// Assignment is one occupied seat.
type Assignment struct {
	MemberID    string
	MemberName  string
	Part        part.Part
	Pos         grid.Position
	IsRowLeader bool
}

// SeatRecord is the at-rest form of an Assignment with 1-based row and col.
type SeatRecord struct {
	MemberID    string    `json:"memberId"`
	MemberName  string    `json:"memberName"`
	Part        part.Part `json:"part"`
	Row         int       `json:"row"`
	Col         int       `json:"col"`
	IsRowLeader bool      `json:"isRowLeader"`
}

// Record converts a to its at-rest form.
func (a Assignment) Record() SeatRecord {
	r := a.Pos.Record()
	return SeatRecord{
		MemberID:    a.MemberID,
		MemberName:  a.MemberName,
		Part:        a.Part,
		Row:         r.Row,
		Col:         r.Col,
		IsRowLeader: a.IsRowLeader,
	}
}

// Assignment converts an at-rest record back to an Assignment.
func (r SeatRecord) Assignment() Assignment {
	return Assignment{
		MemberID:    r.MemberID,
		MemberName:  r.MemberName,
		Part:        r.Part,
		Pos:         grid.FromRecord(grid.Record{Row: r.Row, Col: r.Col}),
		IsRowLeader: r.IsRowLeader,
	}
}

// State is a snapshot of an arrangement: its layout and occupied seats.
// Methods that change a State mutate it in place; use Clone first when the
// original must survive.
type State struct {
	Layout grid.Layout
	Seats  map[grid.Position]Assignment
}

// NewState returns an empty state over layout.
func NewState(layout grid.Layout) State {
	return State{Layout: layout.Clone(), Seats: make(map[grid.Position]Assignment)}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Layout: s.Layout.Clone(), Seats: make(map[grid.Position]Assignment, len(s.Seats))}
	for k, v := range s.Seats {
		out.Seats[k] = v
	}
	return out
}

// At returns the assignment at p.
func (s State) At(p grid.Position) (Assignment, bool) {
	a, ok := s.Seats[p]
	return a, ok
}

// Find returns the seat held by memberID.
func (s State) Find(memberID string) (Assignment, bool) {
	for _, a := range s.Seats {
		if a.MemberID == memberID {
			return a, true
		}
	}
	return Assignment{}, false
}

// Assignments returns every assignment ordered by row, then column.
func (s State) Assignments() []Assignment {
	out := make([]Assignment, 0, len(s.Seats))
	for _, a := range s.Seats {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return grid.Less(out[i].Pos, out[j].Pos) })
	return out
}

// Row returns the assignments in row ordered by column.
func (s State) Row(row int) []Assignment {
	var out []Assignment
	for p, a := range s.Seats {
		if p.Row == row {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Col < out[j].Pos.Col })
	return out
}

// RowCount returns the number of occupied seats in row.
func (s State) RowCount(row int) int {
	n := 0
	for p := range s.Seats {
		if p.Row == row {
			n++
		}
	}
	return n
}

// Width returns the number of columns row spans: its capacity or one past
// its rightmost occupant, whichever is larger.
func (s State) Width(row int) int {
	w := s.Layout.Capacity(row)
	for p := range s.Seats {
		if p.Row == row && p.Col+1 > w {
			w = p.Col + 1
		}
	}
	return w
}

// Set writes a at a.Pos without capacity checks, replacing any occupant.
func (s State) Set(a Assignment) {
	s.Seats[a.Pos] = a
}

// Delete clears p and returns what was there.
func (s State) Delete(p grid.Position) (Assignment, bool) {
	a, ok := s.Seats[p]
	if ok {
		delete(s.Seats, p)
	}
	return a, ok
}

// Shift moves the occupant of from to the empty seat to.
func (s State) Shift(from, to grid.Position) error {
	a, ok := s.Seats[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAssigned, from.Key())
	}
	if _, taken := s.Seats[to]; taken {
		return fmt.Errorf("%w: %s", ErrSeatOccupied, to.Key())
	}
	delete(s.Seats, from)
	a.Pos = to
	s.Seats[to] = a
	return nil
}

// SetCapacity changes the capacity of row.
func (s State) SetCapacity(row, n int) {
	if row < 0 || row >= len(s.Layout.RowCapacities) {
		return
	}
	s.Layout.RowCapacities[row] = n
}

// PartCounts returns the number of seated members of p per row.
func (s State) PartCounts(p part.Part) []int {
	counts := make([]int, s.Layout.Rows)
	for pos, a := range s.Seats {
		if a.Part == p && pos.Row >= 0 && pos.Row < len(counts) {
			counts[pos.Row]++
		}
	}
	return counts
}
