// Package pastmap rescales a historical seating onto a new grid and a new
// roster while keeping each part's relative footprint.
package pastmap

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// Reason explains why a member was left unseated.
type Reason string

const (
	// NotInPast: the member's part has no footprint in the history and no
	// default seat was free.
	NotInPast Reason = "not_in_past"
	// OutOfGrid: the part's footprint scales to nothing on the target grid.
	OutOfGrid    Reason = "out_of_grid"
	SeatConflict Reason = "seat_conflict"
	ZoneFull     Reason = "zone_full"
)

// Member is a singer available for the new arrangement.
type Member struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Part part.Part `json:"part"`
}

// Unassigned is a member the mapper could not seat.
type Unassigned struct {
	Member
	Reason Reason `json:"reason"`
}

// Request is the input of Map.
type Request struct {
	Source    arrangement.State
	Available []Member
	// Target is the new grid. Nil reuses the source layout.
	Target *grid.Layout
}

// Result is a partial-success outcome: State holds everyone who was seated and
// Unassigned everyone who was not.
type Result struct {
	State          arrangement.State
	Unassigned     []Unassigned
	MatchedCount   int
	TotalAvailable int
}

type resultJSON struct {
	Seats             []arrangement.SeatRecord `json:"seats"`
	MatchedCount      int                      `json:"matchedCount"`
	TotalAvailable    int                      `json:"totalAvailable"`
	UnassignedMembers []Unassigned             `json:"unassignedMembers"`
	GridLayout        grid.Layout              `json:"gridLayout"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Seats:             []arrangement.SeatRecord{},
		MatchedCount:      r.MatchedCount,
		TotalAvailable:    r.TotalAvailable,
		UnassignedMembers: r.Unassigned,
		GridLayout:        r.State.Layout,
	}
	for _, a := range r.State.Assignments() {
		out.Seats = append(out.Seats, a.Record())
	}
	if out.UnassignedMembers == nil {
		out.UnassignedMembers = []Unassigned{}
	}
	return json.Marshal(out)
}

// Mapper maps historical arrangements. It holds no state between calls, so
// the same Request always produces the same Result.
type Mapper struct {
	sides part.Table
}

// New creates a Mapper using sides for zone detection.
func New(sides part.Table) *Mapper {
	return &Mapper{sides: sides}
}

// span is a run of target columns [start, end) in one row.
type span struct {
	row, start, end int
}

// Map seats req.Available on the target grid. Members seated in the history
// go to the free seat nearest their old relative position inside their
// part's rescaled zone. Everyone else is placed first-fit in that zone.
func (m *Mapper) Map(req Request) (Result, error) {
	target := req.Source.Layout.Clone()
	if req.Target != nil {
		target = req.Target.Clone()
	}
	if err := grid.Validate(target); err != nil {
		return Result{}, fmt.Errorf("pastmap: map: %w", err)
	}

	roster := make(map[string]Member, len(req.Available))
	var order []Member
	for _, mem := range req.Available {
		if _, dup := roster[mem.ID]; dup {
			continue
		}
		roster[mem.ID] = mem
		order = append(order, mem)
	}

	p := &planner{
		src:    req.Source,
		out:    arrangement.NewState(target),
		sides:  m.sides,
		zones:  scaleZones(req.Source, target, m.sides),
		done:   make(map[string]bool, len(order)),
		result: Result{TotalAvailable: len(order)},
	}

	for _, pt := range part.All {
		for _, a := range req.Source.Assignments() {
			mem, ok := roster[a.MemberID]
			if !ok || a.Part != pt || mem.Part != pt {
				continue
			}
			p.placeHistorical(mem, a.Pos)
		}
		for _, mem := range order {
			if mem.Part == pt && !p.done[mem.ID] {
				p.placeNew(mem)
			}
		}
	}
	for _, mem := range order {
		if !p.done[mem.ID] {
			p.unassign(mem, NotInPast)
		}
	}

	p.result.State = p.out
	return p.result, nil
}

type planner struct {
	src    arrangement.State
	out    arrangement.State
	sides  part.Table
	zones  map[part.Part][]span
	done   map[string]bool
	result Result
}

// scaleZones maps every part's per-row column range in src onto target.
// Each target row covers the proportional band of source rows, and a part's
// zone in that row spans everything the part held across the band.
func scaleZones(src arrangement.State, target grid.Layout, sides part.Table) map[part.Part][]span {
	out := make(map[part.Part][]span)
	hr := src.Layout.Rows
	if hr <= 0 || target.Rows <= 0 {
		return out
	}
	for r := 0; r < target.Rows; r++ {
		tw := target.Capacity(r)
		if tw == 0 {
			continue
		}
		lo, hi := r*hr/target.Rows, (r+1)*hr/target.Rows
		if hi <= lo {
			hi = lo + 1
		}
		merged := make(map[part.Part]span)
		var order []part.Part
		for h := lo; h < hi; h++ {
			hw := src.Width(h)
			if hw == 0 {
				continue
			}
			for _, z := range arrangement.RowZones(src, sides, h) {
				start, end := scaleCol(z.First, hw, tw), scaleCol(z.Last+1, hw, tw)
				if end <= start {
					continue
				}
				sp, seen := merged[z.Part]
				if !seen {
					order = append(order, z.Part)
					merged[z.Part] = span{row: r, start: start, end: end}
					continue
				}
				sp.start, sp.end = min(sp.start, start), max(sp.end, end)
				merged[z.Part] = sp
			}
		}
		for _, pt := range order {
			out[pt] = append(out[pt], merged[pt])
		}
	}
	return out
}

func scaleCol(col, from, to int) int {
	return int(math.Floor(float64(col)*float64(to)/float64(from) + 0.5))
}

type candidate struct {
	pos  grid.Position
	dist float64
}

func (p *planner) placeHistorical(mem Member, was grid.Position) {
	spans := p.zones[mem.Part]
	if len(spans) == 0 {
		p.unassign(mem, OutOfGrid)
		return
	}
	hy := (float64(was.Row) + 0.5) / float64(p.src.Layout.Rows)
	hx := (float64(was.Col) + 0.5) / float64(p.src.Width(was.Row))

	var cands []candidate
	for _, sp := range spans {
		tw := float64(p.out.Layout.Capacity(sp.row))
		y := (float64(sp.row) + 0.5) / float64(p.out.Layout.Rows)
		for c := sp.start; c < sp.end; c++ {
			pos := grid.Position{Row: sp.row, Col: c}
			if _, taken := p.out.At(pos); taken {
				continue
			}
			x := (float64(c) + 0.5) / tw
			cands = append(cands, candidate{pos: pos, dist: (y-hy)*(y-hy) + (x-hx)*(x-hx)})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return grid.Less(cands[i].pos, cands[j].pos)
	})
	if len(cands) == 0 {
		p.unassign(mem, ZoneFull)
		return
	}
	for _, c := range cands {
		if p.seat(mem, c.pos) {
			p.result.MatchedCount++
			return
		}
	}
	p.unassign(mem, SeatConflict)
}

func (p *planner) placeNew(mem Member) {
	spans := p.zones[mem.Part]
	fallback := len(spans) == 0
	if fallback {
		spans = p.defaultZone(mem.Part)
	}
	free := false
	for _, sp := range spans {
		for c := sp.start; c < sp.end; c++ {
			pos := grid.Position{Row: sp.row, Col: c}
			if _, taken := p.out.At(pos); taken {
				continue
			}
			free = true
			if p.seat(mem, pos) {
				return
			}
		}
	}
	switch {
	case fallback:
		p.unassign(mem, NotInPast)
	case free:
		p.unassign(mem, SeatConflict)
	default:
		p.unassign(mem, ZoneFull)
	}
}

// defaultZone is the half of each allowed row on the part's side, best
// ranked rows first.
func (p *planner) defaultZone(pt part.Part) []span {
	rule := part.Rules(pt)
	var rows []int
	for r := 0; r < p.out.Layout.Rows; r++ {
		if rule.Allows(r) {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rule.Rank(rows[i]) < rule.Rank(rows[j]) })

	var out []span
	for _, r := range rows {
		w := p.out.Layout.Capacity(r)
		mid := w / 2
		if p.sides.Side(pt) == part.Left {
			out = append(out, span{row: r, start: 0, end: mid})
		} else {
			out = append(out, span{row: r, start: mid, end: w})
		}
	}
	return out
}

// seat places mem at pos when the row stays consistent.
func (p *planner) seat(mem Member, pos grid.Position) bool {
	if p.out.RowCount(pos.Row)+1 > p.out.Layout.Capacity(pos.Row) {
		return false
	}
	p.out.Set(arrangement.Assignment{MemberID: mem.ID, MemberName: mem.Name, Part: mem.Part, Pos: pos})
	if arrangement.CheckRow(p.out, p.sides, pos.Row) != nil {
		p.out.Delete(pos)
		return false
	}
	p.done[mem.ID] = true
	return true
}

func (p *planner) unassign(mem Member, r Reason) {
	p.done[mem.ID] = true
	p.result.Unassigned = append(p.result.Unassigned, Unassigned{Member: mem, Reason: r})
}
