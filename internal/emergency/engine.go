// Package emergency applies last-minute availability changes to a published
// arrangement. Each operation touches only the affected row, and at most one
// neighbouring row, so everyone else keeps their seat.
package emergency

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

var (
	// ErrNoAdmissibleSeat means auto-place found no legal seat and could not
	// create one.
	ErrNoAdmissibleSeat = errors.New("emergency: no admissible seat")
	ErrAlreadySeated    = errors.New("emergency: member already seated")
)

// DefaultCrossRowThreshold is the part-count gap between neighbouring rows
// that must be exceeded before a member is pulled across rows.
const DefaultCrossRowThreshold = 2

// Mode controls what happens around a seat vacated by an unavailable member.
type Mode string

const (
	// LeaveEmpty removes the member and leaves the seat open.
	LeaveEmpty Mode = "LEAVE_EMPTY"
	// AutoPull closes the gap, optionally rebalancing from a neighbouring row.
	AutoPull Mode = "AUTO_PULL"
	// Manual removes the member and shrinks the row; people fix the rest.
	Manual Mode = "MANUAL"
)

// ParseMode converts a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case LeaveEmpty, AutoPull, Manual:
		return m, nil
	}
	return "", fmt.Errorf("emergency: unknown mode %q", s)
}

// PlaceMode controls how a member who became available is seated.
type PlaceMode string

const (
	AutoPlace   PlaceMode = "AUTO_PLACE"
	ManualPlace PlaceMode = "MANUAL"
)

// ParsePlaceMode accepts "auto", "auto_place" or "manual".
func ParsePlaceMode(s string) (PlaceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "auto_place", "":
		return AutoPlace, nil
	case "manual":
		return ManualPlace, nil
	}
	return "", fmt.Errorf("emergency: unknown place mode %q", s)
}

// Options configures an Engine.
type Options struct {
	Sides             part.Table
	Mode              Mode
	CrossRowEnabled   bool
	CrossRowThreshold int
	Now               func() time.Time
	NewID             func() string
}

// DefaultOptions returns auto-pull with cross-row balancing at threshold 2.
func DefaultOptions() Options {
	return Options{
		Sides:             part.DefaultTable(),
		Mode:              AutoPull,
		CrossRowEnabled:   true,
		CrossRowThreshold: DefaultCrossRowThreshold,
	}
}

// Member identifies the singer an operation is about.
type Member struct {
	ID   string
	Name string
	Part part.Part
}

// Result is the outcome of an operation: the next state and its audit record.
// The input state is never modified, so a caller that discards Result has
// changed nothing.
type Result struct {
	State  arrangement.State
	Record Record
}

// Engine runs emergency operations.
type Engine struct {
	opts Options
}

// New creates an Engine, filling unset options with defaults.
func New(opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = AutoPull
	}
	if opts.CrossRowThreshold <= 0 {
		opts.CrossRowThreshold = DefaultCrossRowThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{opts: opts}
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// MarkUnavailable takes memberID off the grid according to the engine mode.
func (e *Engine) MarkUnavailable(s arrangement.State, memberID string) (Result, error) {
	a, ok := s.Find(memberID)
	if !ok {
		return Result{}, fmt.Errorf("emergency: mark %s unavailable: %w", memberID, arrangement.ErrUnknownMember)
	}
	c := newCascade(s, e.opts.Sides)
	row, side := a.Pos.Row, e.opts.Sides.Side(a.Part)

	c.remove(a)
	switch e.opts.Mode {
	case LeaveEmpty:
	case Manual:
		c.shrink(row, side)
	default:
		freed, err := c.pullLeft(row, a.Part, a.Pos.Col)
		if err != nil {
			return Result{}, fmt.Errorf("emergency: mark %s unavailable: %w", memberID, err)
		}
		filled := false
		if e.opts.CrossRowEnabled {
			filled, err = c.crossRowFill(row, a.Part, freed, e.opts.CrossRowThreshold)
			if err != nil {
				return Result{}, fmt.Errorf("emergency: mark %s unavailable: %w", memberID, err)
			}
		}
		if !filled {
			c.shrink(row, side)
		}
	}

	if err := c.verify(s); err != nil {
		return Result{}, fmt.Errorf("emergency: mark %s unavailable: %w", memberID, err)
	}
	from := a.Pos
	rec := e.newRecord(Unavailable, Member{ID: a.MemberID, Name: a.MemberName, Part: a.Part}, string(e.opts.Mode), c)
	rec.RemovedFrom = &from
	return Result{State: c.state, Record: rec}, nil
}

// MarkAvailable seats m. In AutoPlace mode the first admissible seat inside
// the part's zone is used, widening a row when no free seat exists. In
// ManualPlace mode the state is unchanged and only the record is produced.
func (e *Engine) MarkAvailable(s arrangement.State, m Member, mode PlaceMode) (Result, error) {
	if _, ok := s.Find(m.ID); ok {
		return Result{}, fmt.Errorf("emergency: mark %s available: %w", m.ID, ErrAlreadySeated)
	}
	c := newCascade(s, e.opts.Sides)
	if mode == ManualPlace {
		c.add(AddStep{MemberID: m.ID, MemberName: m.Name, Part: m.Part})
		return Result{State: c.state, Record: e.newRecord(Available, m, string(ManualPlace), c)}, nil
	}

	pos, err := c.autoPlace(m)
	if err != nil {
		return Result{}, fmt.Errorf("emergency: mark %s available: %w", m.ID, err)
	}
	if err := c.verify(s); err != nil {
		return Result{}, fmt.Errorf("emergency: mark %s available: %w", m.ID, err)
	}
	rec := e.newRecord(Available, m, string(AutoPlace), c)
	rec.AddedTo = &pos
	return Result{State: c.state, Record: rec}, nil
}

// Commit applies r to st as a single undoable change.
func Commit(st *arrangement.Store, r Result) {
	st.Commit(r.State)
}

func (e *Engine) newRecord(t ChangeType, m Member, mode string, c *cascade) Record {
	return Record{
		ID:               e.opts.NewID(),
		Timestamp:        e.opts.Now().UTC(),
		Type:             t,
		MemberID:         m.ID,
		MemberName:       m.Name,
		Part:             m.Part,
		ProcessMode:      mode,
		Steps:            c.steps,
		MovedMemberCount: c.movedCount(),
		GridChanges:      c.gridChanges,
	}
}

// cascade accumulates the sub-steps of one operation over a private copy of
// the state.
type cascade struct {
	state       arrangement.State
	sides       part.Table
	steps       []Step
	gridChanges []RowCapacityChange
	touched     map[int]bool
}

func newCascade(s arrangement.State, sides part.Table) *cascade {
	return &cascade{state: s.Clone(), sides: sides, touched: make(map[int]bool)}
}

func (c *cascade) add(s Step) {
	c.steps = append(c.steps, s)
}

func (c *cascade) remove(a arrangement.Assignment) {
	c.state.Delete(a.Pos)
	c.touched[a.Pos.Row] = true
	c.add(RemoveStep{MemberID: a.MemberID, MemberName: a.MemberName, Part: a.Part, From: a.Pos})
}

// pullLeft shifts the same-part members right of vacated toward it so the
// part's zone has no gap. It returns the column left free at the end of the
// zone.
func (c *cascade) pullLeft(row int, p part.Part, vacated int) (int, error) {
	target := vacated
	for _, m := range c.state.Row(row) {
		if m.Part != p || m.Pos.Col <= vacated {
			continue
		}
		if m.Pos.Col > target {
			to := grid.Position{Row: row, Col: target}
			if err := c.state.Shift(m.Pos, to); err != nil {
				return 0, err
			}
			c.add(PullLeftStep{MemberID: m.MemberID, MemberName: m.MemberName, Part: m.Part, From: m.Pos, To: to})
		}
		target++
	}
	c.touched[row] = true
	return target, nil
}

// crossRowFill moves one member of p from a neighbouring row into the freed
// seat when that row holds more than threshold extra members of p. The row
// behind wins a tie.
func (c *cascade) crossRowFill(row int, p part.Part, freed, threshold int) (bool, error) {
	counts := c.state.PartCounts(p)
	donor, best := -1, 0
	for _, d := range []int{row + 1, row - 1} {
		if d < 0 || d >= len(counts) {
			continue
		}
		surplus := counts[d] - counts[row]
		if surplus > threshold && surplus > best {
			donor, best = d, surplus
		}
	}
	if donor < 0 {
		return false, nil
	}

	z, ok := arrangement.PartZone(c.state, c.sides, donor, p)
	if !ok {
		return false, nil
	}
	from := grid.Position{Row: donor, Col: z.First}
	if z.Side == part.Left {
		from.Col = z.Last
	}
	to := grid.Position{Row: row, Col: freed}

	trial := c.state.Clone()
	if err := trial.Shift(from, to); err != nil {
		return false, nil
	}
	if arrangement.CheckRow(trial, c.sides, row) != nil {
		return false, nil
	}
	m, _ := c.state.At(from)
	c.state = trial
	c.touched[donor] = true
	c.add(CrossRowFillStep{MemberID: m.MemberID, MemberName: m.MemberName, Part: m.Part, From: from, To: to})

	if _, err := c.pullLeft(donor, p, from.Col); err != nil {
		return false, err
	}
	c.shrink(donor, z.Side)
	return true, nil
}

// shrink lowers row's capacity by one unless that would drop it below the
// number of members still seated.
func (c *cascade) shrink(row int, side part.Side) {
	before := c.state.Layout.Capacity(row)
	if before <= 0 || before-1 < c.state.RowCount(row) {
		return
	}
	c.state.SetCapacity(row, before-1)
	c.touched[row] = true
	c.add(ShrinkStep{Row: row, Side: side, Before: before, After: before - 1})
	c.gridChanges = append(c.gridChanges, RowCapacityChange{Row: row, Before: before, After: before - 1})
}

// verify fails when a touched row that was consistent in before is no longer
// consistent.
func (c *cascade) verify(before arrangement.State) error {
	for row := range c.touched {
		if arrangement.CheckRow(before, c.sides, row) != nil {
			continue
		}
		if err := arrangement.CheckRow(c.state, c.sides, row); err != nil {
			return err
		}
	}
	return nil
}

func (c *cascade) movedCount() int {
	seen := make(map[string]bool)
	for _, s := range c.steps {
		if id, ok := s.Moved(); ok {
			seen[id] = true
		}
	}
	return len(seen)
}
