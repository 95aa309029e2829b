// Package grid models the seating grid: rows of variable capacity drawn
// with an optional zig-zag or per-row horizontal offset.
//
// Rows and columns are 0-based inside the engine. Persisted records and
// API bodies use 1-based numbers; convert with FromRecord and Record.
package grid

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	MinRows     = 4
	MaxRows     = 8
	DefaultRows = 6
	MinCapacity = 0
	MaxCapacity = 20

	// zigzagShift is the visual half-seat shift applied to pattern rows.
	zigzagShift = 0.5
	maxOffset   = 2.0
	offsetStep  = 0.25
)

var (
	// ErrInvalidPosition is returned when a row or column lies outside the layout.
	ErrInvalidPosition = errors.New("grid: invalid position")
	ErrInvalidLayout   = errors.New("grid: invalid layout")
)

// Zigzag selects which rows are shifted by half a seat.
type Zigzag string

const (
	ZigzagNone Zigzag = "none"
	ZigzagEven Zigzag = "even"
	ZigzagOdd  Zigzag = "odd"
)

// Layout is the shape of a seating grid.
type Layout struct {
	Rows          int
	RowCapacities []int
	Zigzag        Zigzag
	// RowOffsets overrides Zigzag for individual rows. Keys are 0-based.
	RowOffsets map[int]float64
	// Recommended is set when the layout came from the row distribution
	// recommender rather than manual editing.
	Recommended bool
}

// DefaultLayout returns a six-row grid with eight seats per row.
func DefaultLayout() Layout {
	caps := make([]int, DefaultRows)
	for i := range caps {
		caps[i] = 8
	}
	return Layout{Rows: DefaultRows, RowCapacities: caps, Zigzag: ZigzagEven}
}

// Clone returns a deep copy of l.
func (l Layout) Clone() Layout {
	out := l
	out.RowCapacities = append([]int(nil), l.RowCapacities...)
	if l.RowOffsets != nil {
		out.RowOffsets = make(map[int]float64, len(l.RowOffsets))
		for k, v := range l.RowOffsets {
			out.RowOffsets[k] = v
		}
	}
	return out
}

// Capacity returns the capacity of row, or 0 when row is out of range.
func (l Layout) Capacity(row int) int {
	if row < 0 || row >= len(l.RowCapacities) {
		return 0
	}
	return l.RowCapacities[row]
}

// TotalSeats sums the capacities of the first Rows rows.
func TotalSeats(l Layout) int {
	total := 0
	for i := 0; i < l.Rows && i < len(l.RowCapacities); i++ {
		total += l.RowCapacities[i]
	}
	return total
}

// MaxRowCapacity returns the widest row's capacity.
func MaxRowCapacity(l Layout) int {
	widest := 0
	for _, c := range l.RowCapacities {
		if c > widest {
			widest = c
		}
	}
	return widest
}

// CheckPosition returns ErrInvalidPosition when p is outside l.
func CheckPosition(l Layout, p Position) error {
	if p.Row < 0 || p.Row >= l.Rows || p.Row >= len(l.RowCapacities) {
		return fmt.Errorf("%w: row %d outside %d rows", ErrInvalidPosition, p.Row+1, l.Rows)
	}
	if p.Col < 0 || p.Col >= l.RowCapacities[p.Row] {
		return fmt.Errorf("%w: col %d outside row %d capacity %d", ErrInvalidPosition, p.Col+1, p.Row+1, l.RowCapacities[p.Row])
	}
	return nil
}

// EffectiveOffset returns the horizontal offset of row in seat units.
func EffectiveOffset(l Layout, row int) (float64, error) {
	if row < 0 || row >= l.Rows {
		return 0, fmt.Errorf("%w: row %d outside %d rows", ErrInvalidPosition, row+1, l.Rows)
	}
	if off, ok := l.RowOffsets[row]; ok {
		return off, nil
	}
	// Parity is judged on the 1-based row number.
	n := row + 1
	switch l.Zigzag {
	case ZigzagEven:
		if n%2 == 0 {
			return zigzagShift, nil
		}
	case ZigzagOdd:
		if n%2 == 1 {
			return zigzagShift, nil
		}
	}
	return 0, nil
}

// VisualCol returns the drawn column of p: its column plus the row offset.
func VisualCol(l Layout, p Position) (float64, error) {
	if err := CheckPosition(l, p); err != nil {
		return 0, err
	}
	off, err := EffectiveOffset(l, p.Row)
	if err != nil {
		return 0, err
	}
	return float64(p.Col) + off, nil
}

// Validate checks l against the grid constraints.
func Validate(l Layout) error {
	var errs []string
	if l.Rows < MinRows || l.Rows > MaxRows {
		errs = append(errs, fmt.Sprintf("rows must be between %d and %d, got %d", MinRows, MaxRows, l.Rows))
	}
	if len(l.RowCapacities) != l.Rows {
		errs = append(errs, fmt.Sprintf("rowCapacities has %d entries, want %d", len(l.RowCapacities), l.Rows))
	}
	for i, c := range l.RowCapacities {
		if c < MinCapacity || c > MaxCapacity {
			errs = append(errs, fmt.Sprintf("row %d capacity must be between %d and %d, got %d", i+1, MinCapacity, MaxCapacity, c))
		}
	}
	switch l.Zigzag {
	case ZigzagNone, ZigzagEven, ZigzagOdd:
	default:
		errs = append(errs, fmt.Sprintf("unknown zigzag pattern %q", l.Zigzag))
	}
	rows := make([]int, 0, len(l.RowOffsets))
	for r := range l.RowOffsets {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	for _, r := range rows {
		v := l.RowOffsets[r]
		if r < 0 || r >= l.Rows {
			errs = append(errs, fmt.Sprintf("row offset for row %d is outside the grid", r+1))
			continue
		}
		if v < -maxOffset || v > maxOffset || math.Mod(v/offsetStep, 1) != 0 {
			errs = append(errs, fmt.Sprintf("row %d offset %.2f must be within ±%.0f in steps of %.2f", r+1, v, maxOffset, offsetStep))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLayout, strings.Join(errs, "; "))
	}
	return nil
}

// AutoDistribute spreads total seats over rows as evenly as possible. The
// remainder goes to the back rows. Each row is clamped to MaxCapacity.
func AutoDistribute(total, rows int) []int {
	if rows <= 0 {
		return nil
	}
	if total < 0 {
		total = 0
	}
	base := total / rows
	rem := total % rows
	caps := make([]int, rows)
	for i := range caps {
		caps[i] = base
		if i >= rows-rem {
			caps[i]++
		}
		if caps[i] > MaxCapacity {
			caps[i] = MaxCapacity
		}
	}
	return caps
}

// Resize returns a copy of l with the given row count. New rows copy the
// capacity of the last existing row; offsets for dropped rows are removed.
func Resize(l Layout, rows int) Layout {
	out := l.Clone()
	last := 0
	if n := len(out.RowCapacities); n > 0 {
		last = out.RowCapacities[n-1]
	}
	if rows < len(out.RowCapacities) {
		out.RowCapacities = out.RowCapacities[:rows]
	}
	for len(out.RowCapacities) < rows {
		out.RowCapacities = append(out.RowCapacities, last)
	}
	for r := range out.RowOffsets {
		if r >= rows {
			delete(out.RowOffsets, r)
		}
	}
	out.Rows = rows
	return out
}

type layoutJSON struct {
	Rows          int                `json:"rows"`
	RowCapacities []int              `json:"rowCapacities"`
	ZigzagPattern Zigzag             `json:"zigzagPattern"`
	RowOffsets    map[string]float64 `json:"rowOffsets,omitempty"`
	IsRecommended bool               `json:"isRecommended,omitempty"`
}

// MarshalJSON writes the at-rest form with 1-based rowOffsets keys.
func (l Layout) MarshalJSON() ([]byte, error) {
	out := layoutJSON{
		Rows:          l.Rows,
		RowCapacities: l.RowCapacities,
		ZigzagPattern: l.Zigzag,
		IsRecommended: l.Recommended,
	}
	if out.RowCapacities == nil {
		out.RowCapacities = []int{}
	}
	if out.ZigzagPattern == "" {
		out.ZigzagPattern = ZigzagNone
	}
	if len(l.RowOffsets) > 0 {
		out.RowOffsets = make(map[string]float64, len(l.RowOffsets))
		for r, v := range l.RowOffsets {
			out.RowOffsets[strconv.Itoa(r+1)] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the at-rest form.
func (l *Layout) UnmarshalJSON(data []byte) error {
	var in layoutJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("grid: decode layout: %w", err)
	}
	*l = Layout{
		Rows:          in.Rows,
		RowCapacities: in.RowCapacities,
		Zigzag:        in.ZigzagPattern,
		Recommended:   in.IsRecommended,
	}
	if l.Zigzag == "" {
		l.Zigzag = ZigzagNone
	}
	if len(in.RowOffsets) > 0 {
		l.RowOffsets = make(map[int]float64, len(in.RowOffsets))
		for k, v := range in.RowOffsets {
			n, err := strconv.Atoi(k)
			if err != nil || n < 1 {
				return fmt.Errorf("grid: decode layout: bad rowOffsets key %q", k)
			}
			l.RowOffsets[n-1] = v
		}
	}
	return nil
}
