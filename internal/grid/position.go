package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a 0-based seat coordinate.
type Position struct {
	Row int
	Col int
}

// Record is a 1-based seat coordinate as stored and exchanged.
type Record struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Record converts p to its 1-based form.
func (p Position) Record() Record {
	return Record{Row: p.Row + 1, Col: p.Col + 1}
}

// FromRecord converts a 1-based record to a Position.
func FromRecord(r Record) Position {
	return Position{Row: r.Row - 1, Col: r.Col - 1}
}

// Key returns the "row-col" key of p in 1-based form.
func (p Position) Key() string {
	return fmt.Sprintf("%d-%d", p.Row+1, p.Col+1)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row+1, p.Col+1)
}

// ParseKey parses a 1-based "row-col" key.
func ParseKey(key string) (Position, error) {
	r, c, ok := strings.Cut(key, "-")
	if !ok {
		return Position{}, fmt.Errorf("grid: malformed seat key %q", key)
	}
	row, err := strconv.Atoi(r)
	if err != nil {
		return Position{}, fmt.Errorf("grid: malformed seat key %q: %w", key, err)
	}
	col, err := strconv.Atoi(c)
	if err != nil {
		return Position{}, fmt.Errorf("grid: malformed seat key %q: %w", key, err)
	}
	if row < 1 || col < 1 {
		return Position{}, fmt.Errorf("grid: seat key %q must be 1-based", key)
	}
	return Position{Row: row - 1, Col: col - 1}, nil
}

// Less orders positions by row, then column.
func Less(a, b Position) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}
