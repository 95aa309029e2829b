package arrangement

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// Zone is the contiguous column range a part occupies in one row.
type Zone struct {
	Part  part.Part
	Side  part.Side
	Row   int
	First int
	Last  int
	Count int
}

// DetectPartBoundary scans row from left to right over maxCol columns and
// returns the last column held by a left-side part and the first column held
// by a right-side part. Either is -1 when that side is empty.
func DetectPartBoundary(s State, sides part.Table, row, maxCol int) (lastLeft, firstRight int) {
	lastLeft, firstRight = -1, -1
	for c := 0; c < maxCol; c++ {
		a, ok := s.Seats[grid.Position{Row: row, Col: c}]
		if !ok {
			continue
		}
		if sides.Side(a.Part) == part.Left {
			lastLeft = c
		} else if firstRight == -1 {
			firstRight = c
		}
	}
	return lastLeft, firstRight
}

// CollectPartPositions returns every seat held by p in rows, sorted by row
// then column. A nil rows slice means all rows.
func CollectPartPositions(s State, p part.Part, rows []int) []grid.Position {
	want := make(map[int]bool, len(rows))
	for _, r := range rows {
		want[r] = true
	}
	var out []grid.Position
	for pos, a := range s.Seats {
		if a.Part != p {
			continue
		}
		if rows != nil && !want[pos.Row] {
			continue
		}
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return grid.Less(out[i], out[j]) })
	return out
}

// PartZone returns the zone of p in row. ok is false when p has no seat there.
func PartZone(s State, sides part.Table, row int, p part.Part) (Zone, bool) {
	z := Zone{Part: p, Side: sides.Side(p), Row: row, First: -1, Last: -1}
	for pos, a := range s.Seats {
		if pos.Row != row || a.Part != p {
			continue
		}
		if z.First == -1 || pos.Col < z.First {
			z.First = pos.Col
		}
		if pos.Col > z.Last {
			z.Last = pos.Col
		}
		z.Count++
	}
	return z, z.Count > 0
}

// RowZones returns the zones of every part seated in row, ordered by column.
func RowZones(s State, sides part.Table, row int) []Zone {
	var out []Zone
	for _, p := range part.All {
		if z, ok := PartZone(s, sides, row, p); ok {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].First < out[j].First })
	return out
}

// CheckInvariants verifies that in every row the occupied count fits the
// capacity, every left-side column precedes every right-side column, and no
// part's zone contains another part's seat.
func CheckInvariants(s State, sides part.Table) error {
	var errs []string
	seen := make(map[string]grid.Position, len(s.Seats))
	for pos, a := range s.Seats {
		if a.Pos != pos {
			errs = append(errs, fmt.Sprintf("seat %s holds assignment for %s", pos.Key(), a.Pos.Key()))
		}
		if pos.Row < 0 || pos.Row >= s.Layout.Rows || pos.Col < 0 || pos.Col >= grid.MaxCapacity {
			errs = append(errs, fmt.Sprintf("seat %s is outside the grid", pos.Key()))
		}
		if other, dup := seen[a.MemberID]; dup {
			errs = append(errs, fmt.Sprintf("member %s seated at %s and %s", a.MemberID, other.Key(), pos.Key()))
		}
		seen[a.MemberID] = pos
	}
	for row := 0; row < s.Layout.Rows; row++ {
		errs = append(errs, rowProblems(s, sides, row)...)
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("%w: %s", ErrZoneViolation, strings.Join(errs, "; "))
	}
	return nil
}

// CheckRow applies the per-row checks of CheckInvariants to a single row.
func CheckRow(s State, sides part.Table, row int) error {
	if errs := rowProblems(s, sides, row); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrZoneViolation, strings.Join(errs, "; "))
	}
	return nil
}

func rowProblems(s State, sides part.Table, row int) []string {
	var errs []string
	if n, c := s.RowCount(row), s.Layout.Capacity(row); n > c {
		errs = append(errs, fmt.Sprintf("row %d holds %d members over capacity %d", row+1, n, c))
	}
	maxLeft, minRight := -1, -1
	for _, a := range s.Row(row) {
		if sides.Side(a.Part) == part.Left {
			maxLeft = a.Pos.Col
		} else if minRight == -1 {
			minRight = a.Pos.Col
		}
	}
	if maxLeft != -1 && minRight != -1 && maxLeft > minRight {
		errs = append(errs, fmt.Sprintf("row %d interleaves left and right parts", row+1))
	}
	for _, z := range RowZones(s, sides, row) {
		for c := z.First; c <= z.Last; c++ {
			if a, ok := s.Seats[grid.Position{Row: row, Col: c}]; ok && a.Part != z.Part {
				errs = append(errs, fmt.Sprintf("row %d %s zone contains %s at col %d", row+1, z.Part, a.Part, c+1))
			}
		}
	}
	return errs
}
