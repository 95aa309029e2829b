package emergency

import (
	"sort"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// autoPlace seats m at the first admissible free seat. Rows already holding
// the part come first, then the part's preferred rows. When no row has a free
// seat, the first row that can grow by one seat at the part's zone edge is
// widened.
func (c *cascade) autoPlace(m Member) (grid.Position, error) {
	rows := c.candidateRows(m.Part)
	for _, row := range rows {
		for _, col := range c.candidateCols(row, m.Part) {
			if c.tryFree(m, grid.Position{Row: row, Col: col}) {
				return grid.Position{Row: row, Col: col}, nil
			}
		}
	}
	for _, row := range rows {
		if pos, ok := c.tryExpand(m, row); ok {
			return pos, nil
		}
	}
	return grid.Position{}, ErrNoAdmissibleSeat
}

func (c *cascade) candidateRows(p part.Part) []int {
	rule := part.Rules(p)
	counts := c.state.PartCounts(p)
	var rows []int
	for r := 0; r < c.state.Layout.Rows; r++ {
		if rule.Allows(r) {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := counts[rows[i]] > 0, counts[rows[j]] > 0
		if pi != pj {
			return pi
		}
		return rule.Rank(rows[i]) < rule.Rank(rows[j])
	})
	return rows
}

// candidateCols lists the seats at the edges of p's zone in row, nearest the
// side divide first. When p is absent, the seats next to the divide are used.
func (c *cascade) candidateCols(row int, p part.Part) []int {
	side := c.sides.Side(p)
	width := c.state.Width(row)
	lastLeft, firstRight := arrangement.DetectPartBoundary(c.state, c.sides, row, width)

	var cols []int
	if z, ok := arrangement.PartZone(c.state, c.sides, row, p); ok {
		if side == part.Left {
			cols = []int{z.Last + 1, z.First - 1}
		} else {
			cols = []int{z.First - 1, z.Last + 1}
		}
	} else if side == part.Left {
		cols = []int{lastLeft + 1}
	} else {
		if firstRight > 0 {
			cols = append(cols, firstRight-1)
		}
		cols = append(cols, width-1, lastLeft+1)
	}

	seen := make(map[int]bool)
	out := cols[:0]
	for _, col := range cols {
		if col < 0 || seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	return out
}

// tryFree seats m at pos when the seat is empty, inside the row's span, and
// the row has spare capacity.
func (c *cascade) tryFree(m Member, pos grid.Position) bool {
	limit := c.state.Width(pos.Row)
	if pos.Col >= limit || pos.Col >= grid.MaxCapacity {
		return false
	}
	if _, taken := c.state.At(pos); taken {
		return false
	}
	if c.state.RowCount(pos.Row)+1 > c.state.Layout.Capacity(pos.Row) {
		return false
	}
	trial := c.state.Clone()
	trial.Set(arrangement.Assignment{MemberID: m.ID, MemberName: m.Name, Part: m.Part, Pos: pos})
	if arrangement.CheckRow(trial, c.sides, pos.Row) != nil {
		return false
	}
	c.state = trial
	c.touched[pos.Row] = true
	p := pos
	c.add(AddStep{MemberID: m.ID, MemberName: m.Name, Part: m.Part, To: &p})
	return true
}

// tryExpand grows row by one seat at the edge of m's zone, pushing the
// members sitting from that seat onward one column over.
func (c *cascade) tryExpand(m Member, row int) (grid.Position, bool) {
	capBefore := c.state.Layout.Capacity(row)
	if capBefore+1 > grid.MaxCapacity {
		return grid.Position{}, false
	}
	side := c.sides.Side(m.Part)
	col := 0
	if z, ok := arrangement.PartZone(c.state, c.sides, row, m.Part); ok {
		col = z.Last + 1
	} else {
		lastLeft, _ := arrangement.DetectPartBoundary(c.state, c.sides, row, c.state.Width(row))
		col = lastLeft + 1
	}

	trial := c.state.Clone()
	// Only the run of occupied seats starting at col has to move.
	var run []arrangement.Assignment
	for next := col; ; next++ {
		o, ok := trial.At(grid.Position{Row: row, Col: next})
		if !ok {
			break
		}
		run = append(run, o)
	}
	var shifts []Step
	for i := len(run) - 1; i >= 0; i-- {
		o := run[i]
		to := grid.Position{Row: row, Col: o.Pos.Col + 1}
		if to.Col >= grid.MaxCapacity {
			return grid.Position{}, false
		}
		if err := trial.Shift(o.Pos, to); err != nil {
			return grid.Position{}, false
		}
		shifts = append(shifts, ShiftStep{MemberID: o.MemberID, MemberName: o.MemberName, Part: o.Part, From: o.Pos, To: to})
	}
	pos := grid.Position{Row: row, Col: col}
	trial.SetCapacity(row, capBefore+1)
	trial.Set(arrangement.Assignment{MemberID: m.ID, MemberName: m.Name, Part: m.Part, Pos: pos})
	if arrangement.CheckRow(trial, c.sides, row) != nil {
		return grid.Position{}, false
	}

	c.state = trial
	c.touched[row] = true
	c.steps = append(c.steps, shifts...)
	c.add(ExpandStep{Row: row, Side: side, Before: capBefore, After: capBefore + 1})
	c.gridChanges = append(c.gridChanges, RowCapacityChange{Row: row, Before: capBefore, After: capBefore + 1})
	c.add(AddStep{MemberID: m.ID, MemberName: m.Name, Part: m.Part, To: &pos})
	return pos, true
}
