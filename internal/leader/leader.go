// Package leader picks the row-leader seats of an arrangement.
package leader

import (
	"encoding/json"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// Role says how a leader seat was chosen.
type Role string

const (
	// RoleBoundary picks the occupant nearest the left/right divide.
	RoleBoundary Role = "boundary"
	// RoleMiddle picks the middle occupant across several rows.
	RoleMiddle Role = "middle"
)

// Rule selects leaders for one part. A boundary rule yields one candidate per
// row in Rows; a middle rule yields a single candidate spanning all of Rows.
// Rows are 0-based.
type Rule struct {
	Part part.Part
	Role Role
	Rows []int
}

// DefaultRules is the standard roster: three leaders on the left and five on
// the right.
var DefaultRules = []Rule{
	{Part: part.Soprano, Role: RoleBoundary, Rows: []int{0, 2}},
	{Part: part.Tenor, Role: RoleBoundary, Rows: []int{4}},
	{Part: part.Alto, Role: RoleBoundary, Rows: []int{0}},
	{Part: part.Alto, Role: RoleMiddle, Rows: []int{0, 1, 2}},
	{Part: part.Bass, Role: RoleBoundary, Rows: []int{3, 4, 5}},
}

// Candidate is a seat that should carry the row-leader flag.
type Candidate struct {
	Pos  grid.Position
	Part part.Part
	Side part.Side
	Role Role
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	r := c.Pos.Record()
	return json.Marshal(struct {
		Row  int       `json:"row"`
		Col  int       `json:"col"`
		Part part.Part `json:"part"`
		Side part.Side `json:"side"`
		Role Role      `json:"role"`
	}{r.Row, r.Col, c.Part, c.Side, c.Role})
}

// Select returns the leader seats for s under rules. Rows outside the layout
// and rows without the part are skipped. No seat appears twice.
func Select(s arrangement.State, sides part.Table, rules []Rule) []Candidate {
	var out []Candidate
	seen := make(map[grid.Position]bool)
	add := func(pos grid.Position, p part.Part, role Role) {
		if seen[pos] {
			return
		}
		seen[pos] = true
		out = append(out, Candidate{Pos: pos, Part: p, Side: sides.Side(p), Role: role})
	}

	for _, rule := range rules {
		rows := inLayout(rule.Rows, s.Layout.Rows)
		switch rule.Role {
		case RoleBoundary:
			for _, row := range rows {
				if pos, ok := boundary(s, sides, row, rule.Part); ok {
					add(pos, rule.Part, RoleBoundary)
				}
			}
		case RoleMiddle:
			if len(rows) == 0 {
				continue
			}
			positions := arrangement.CollectPartPositions(s, rule.Part, rows)
			if len(positions) == 0 {
				continue
			}
			// ceil(n/2)-1
			idx := (len(positions)+1)/2 - 1
			add(positions[idx], rule.Part, RoleMiddle)
		}
	}
	return out
}

// boundary returns the seat of p closest to the side divide in row.
func boundary(s arrangement.State, sides part.Table, row int, p part.Part) (grid.Position, bool) {
	z, ok := arrangement.PartZone(s, sides, row, p)
	if !ok {
		return grid.Position{}, false
	}
	if z.Side == part.Left {
		return grid.Position{Row: row, Col: z.Last}, true
	}
	return grid.Position{Row: row, Col: z.First}, true
}

func inLayout(rows []int, n int) []int {
	var out []int
	for _, r := range rows {
		if r >= 0 && r < n {
			out = append(out, r)
		}
	}
	return out
}

// Apply clears every leader flag in st and sets it on the candidates, as a
// single undoable change.
func Apply(st *arrangement.Store, cands []Candidate) {
	next := st.State()
	for pos, a := range next.Seats {
		a.IsRowLeader = false
		next.Seats[pos] = a
	}
	for _, c := range cands {
		if a, ok := next.Seats[c.Pos]; ok {
			a.IsRowLeader = true
			next.Seats[c.Pos] = a
		}
	}
	st.Commit(next)
}
