package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// Rule says which rows a part fills first and which it may spill into.
// Rows are 0-based; rows beyond the layout are ignored.
type Rule struct {
	Part     part.Part
	Primary  []int
	Overflow []int
}

// DefaultRules puts SOPRANO and ALTO in the front three rows and TENOR and
// BASS behind them. ALTO may spill only into row 4.
var DefaultRules = map[part.Part]Rule{
	part.Soprano: {Part: part.Soprano, Primary: []int{0, 1, 2}, Overflow: []int{3, 4, 5, 6, 7}},
	part.Alto:    {Part: part.Alto, Primary: []int{0, 1, 2}, Overflow: []int{3}},
	part.Tenor:   {Part: part.Tenor, Primary: []int{3, 4, 5, 6, 7}},
	part.Bass:    {Part: part.Bass, Primary: []int{3, 4, 5, 6, 7}},
	part.Special: {Part: part.Special, Primary: []int{0, 1, 2, 3, 4, 5, 6, 7}},
}

// Local is the rule-based recommender.
type Local struct {
	sides part.Table
	rules map[part.Part]Rule
}

// NewLocal creates a Local recommender with DefaultRules.
func NewLocal(sides part.Table) *Local {
	return &Local{sides: sides, rules: DefaultRules}
}

// Recommend seats req.Members. Members with a strong preference are seeded
// into their preferred row first; everyone else fills the remaining row
// quota of their part, shortest singers in front. Within a row a part's
// leader sits in the middle of the part.
func (l *Local) Recommend(_ context.Context, req Request) (Result, error) {
	layout := DistributeRows(len(req.Members))
	if req.Layout != nil {
		layout = req.Layout.Clone()
	}
	if err := grid.Validate(layout); err != nil {
		return Result{}, fmt.Errorf("recommend: %w", err)
	}

	byPart := make(map[part.Part][]Member)
	var unassigned []string
	seen := make(map[string]bool, len(req.Members))
	for _, m := range req.Members {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		if !m.Part.Valid() {
			unassigned = append(unassigned, m.ID)
			continue
		}
		byPart[m.Part] = append(byPart[m.Part], m)
	}

	quota := l.distribute(layout, byPart)
	rows := l.assignRows(layout, byPart, quota, req.Preferences)

	s := arrangement.NewState(layout)
	for r := 0; r < layout.Rows; r++ {
		col := 0
		for _, p := range l.rowOrder(r) {
			for _, m := range arrangeRun(rows[r][p], req.Preferences) {
				s.Set(arrangement.Assignment{MemberID: m.ID, MemberName: m.Name, Part: m.Part, Pos: grid.Position{Row: r, Col: col}})
				col++
			}
		}
	}
	for _, p := range part.All {
		for _, m := range byPart[p] {
			if _, ok := s.Find(m.ID); !ok {
				unassigned = append(unassigned, m.ID)
			}
		}
	}

	metrics := Evaluate(s, req.Members)
	return Result{
		State:        s,
		Metrics:      metrics,
		QualityScore: metrics.QualityScore(),
		Unassigned:   unassigned,
		Source:       SourceLocal,
	}, nil
}

// rowOrder lists the parts of a row from left to right. Front rows run
// SOPRANO, TENOR, ALTO, BASS; back rows put ALTO on the outer right edge.
func (l *Local) rowOrder(row int) []part.Part {
	var left, right []part.Part
	order := []part.Part{part.Soprano, part.Tenor, part.Alto, part.Bass, part.Special}
	if row >= 3 {
		order = []part.Part{part.Soprano, part.Tenor, part.Bass, part.Alto, part.Special}
	}
	for _, p := range order {
		if l.sides.Side(p) == part.Left {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	return append(left, right...)
}

type quotas []map[part.Part]int

func (q quotas) free(layout grid.Layout, row int) int {
	n := layout.Capacity(row)
	for _, c := range q[row] {
		n -= c
	}
	return n
}

func (l *Local) rowsOf(layout grid.Layout, rows []int) []int {
	var out []int
	for _, r := range rows {
		if r < layout.Rows {
			out = append(out, r)
		}
	}
	return out
}

// distribute decides how many members of each part sit in each row. Back
// parts are spread evenly first, then front parts split the front rows by
// the left/right head count, then overflow fills whatever space is left.
func (l *Local) distribute(layout grid.Layout, byPart map[part.Part][]Member) quotas {
	q := make(quotas, layout.Rows)
	for r := range q {
		q[r] = make(map[part.Part]int)
	}
	remaining := make(map[part.Part]int, len(byPart))
	for p, ms := range byPart {
		remaining[p] = len(ms)
	}
	take := func(row int, p part.Part, want int) {
		n := min(want, remaining[p], q.free(layout, row))
		if n > 0 {
			q[row][p] += n
			remaining[p] -= n
		}
	}

	// Back parts, evenly over their primary rows.
	back := l.rowsOf(layout, l.rules[part.Tenor].Primary)
	for i, r := range back {
		total := remaining[part.Tenor] + remaining[part.Bass]
		if total == 0 {
			break
		}
		share := int(math.Ceil(float64(total) / float64(len(back)-i)))
		tenor := int(math.Round(float64(share) * float64(remaining[part.Tenor]) / float64(total)))
		take(r, part.Tenor, tenor)
		take(r, part.Bass, share-tenor)
	}

	// Front parts, split by the left/right head count.
	leftTotal, total := 0, 0
	for p, ms := range byPart {
		total += len(ms)
		if l.sides.Side(p) == part.Left {
			leftTotal += len(ms)
		}
	}
	for _, r := range l.rowsOf(layout, l.rules[part.Soprano].Primary) {
		if total == 0 {
			break
		}
		leftCap := int(math.Round(float64(layout.Capacity(r)) * float64(leftTotal) / float64(total)))
		take(r, part.Soprano, leftCap)
		take(r, part.Alto, layout.Capacity(r)-leftCap)
	}

	// Overflow: SOPRANO from the back row forward, ALTO into its overflow
	// rows, then whatever back parts are left, then SPECIAL.
	sop := l.rowsOf(layout, l.rules[part.Soprano].Overflow)
	for i := len(sop) - 1; i >= 0; i-- {
		take(sop[i], part.Soprano, remaining[part.Soprano])
	}
	for _, p := range []part.Part{part.Alto, part.Tenor, part.Bass, part.Special} {
		rule := l.rules[p]
		for _, r := range l.rowsOf(layout, append(append([]int(nil), rule.Primary...), rule.Overflow...)) {
			take(r, p, remaining[p])
		}
	}
	// Last resort: any free seat in a row the part is not forbidden from.
	for _, p := range part.All {
		zone := part.Rules(p)
		rows := make([]int, 0, layout.Rows)
		for r := 0; r < layout.Rows; r++ {
			if zone.Allows(r) {
				rows = append(rows, r)
			}
		}
		sort.SliceStable(rows, func(i, j int) bool { return zone.Rank(rows[i]) < zone.Rank(rows[j]) })
		for _, r := range rows {
			take(r, p, remaining[p])
		}
	}
	return q
}

// assignRows picks the members for every row quota.
func (l *Local) assignRows(layout grid.Layout, byPart map[part.Part][]Member, q quotas, prefs map[string]Preference) []map[part.Part][]Member {
	rows := make([]map[part.Part][]Member, layout.Rows)
	for r := range rows {
		rows[r] = make(map[part.Part][]Member)
	}
	for _, p := range part.All {
		open := make([]int, layout.Rows)
		for r := range open {
			open[r] = q[r][p]
		}
		var fixed, rest []Member
		for _, m := range byPart[p] {
			if pref, ok := prefs[m.ID]; ok && pref.Strong() {
				fixed = append(fixed, m)
			} else {
				rest = append(rest, m)
			}
		}
		sort.SliceStable(fixed, func(i, j int) bool {
			return prefs[fixed[i].ID].Appearances > prefs[fixed[j].ID].Appearances
		})
		for _, m := range fixed {
			r := prefs[m.ID].PreferredRow
			if r >= 0 && r < layout.Rows && open[r] > 0 {
				rows[r][p] = append(rows[r][p], m)
				open[r]--
				continue
			}
			rest = append(rest, m)
		}
		sort.SliceStable(rest, func(i, j int) bool { return shorter(rest[i], rest[j]) })
		r := 0
		for _, m := range rest {
			for r < layout.Rows && open[r] == 0 {
				r++
			}
			if r == layout.Rows {
				break
			}
			rows[r][p] = append(rows[r][p], m)
			open[r]--
		}
	}
	return rows
}

// shorter orders known heights ascending ahead of unknown ones.
func shorter(a, b Member) bool {
	switch {
	case a.Height == b.Height:
		return a.ID < b.ID
	case a.Height == 0:
		return false
	case b.Height == 0:
		return true
	}
	return a.Height < b.Height
}

// arrangeRun orders one part's members within a row: members with a learned
// column by that column, then the rest, with the first leader moved to the
// middle.
func arrangeRun(ms []Member, prefs map[string]Preference) []Member {
	out := append([]Member(nil), ms...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := prefs[out[i].ID]
		pj, jok := prefs[out[j].ID]
		if iok && pi.Strong() && jok && pj.Strong() {
			return pi.PreferredCol < pj.PreferredCol
		}
		return iok && pi.Strong() && !(jok && pj.Strong())
	})
	mid := (len(out) - 1) / 2
	for i, m := range out {
		if m.IsLeader {
			leader := out[i]
			out = append(out[:i], out[i+1:]...)
			out = append(out[:mid], append([]Member{leader}, out[mid:]...)...)
			break
		}
	}
	return out
}
