// Package part defines vocal parts, the side of the stage each part sits on,
// and the row rules used when seating a part.
package part

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Part is a vocal section.
type Part string

const (
	Soprano Part = "SOPRANO"
	Alto    Part = "ALTO"
	Tenor   Part = "TENOR"
	Bass    Part = "BASS"
	Special Part = "SPECIAL"
)

// All lists the parts in canonical seating order.
var All = []Part{Soprano, Alto, Tenor, Bass, Special}

// Parse converts a case-insensitive name into a Part.
func Parse(s string) (Part, error) {
	p := Part(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("part: unknown part %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known parts.
func (p Part) Valid() bool {
	switch p {
	case Soprano, Alto, Tenor, Bass, Special:
		return true
	}
	return false
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("part: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Side is the half of the grid a part occupies.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("part: side: %w", err)
	}
	parsed, err := ParseSide(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSide converts "left" or "right" into a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return Left, fmt.Errorf("part: unknown side %q", s)
}

// Table maps every part to its side. The zero value is not usable; start
// from DefaultTable.
type Table struct {
	sides map[Part]Side
}

// defaultSides is the fixed part-to-side mapping. SPECIAL can be moved with
// WithSpecial.
var defaultSides = map[Part]Side{
	Soprano: Left,
	Tenor:   Left,
	Alto:    Right,
	Bass:    Right,
	Special: Right,
}

// DefaultTable returns the standard mapping.
func DefaultTable() Table {
	m := make(map[Part]Side, len(defaultSides))
	for p, s := range defaultSides {
		m[p] = s
	}
	return Table{sides: m}
}

// WithSpecial returns a copy of t with SPECIAL seated on side.
func (t Table) WithSpecial(side Side) Table {
	m := make(map[Part]Side, len(t.sides))
	for p, s := range t.sides {
		m[p] = s
	}
	m[Special] = side
	return Table{sides: m}
}

// Side returns the side for p. Unknown parts are placed on the right.
func (t Table) Side(p Part) Side {
	if t.sides == nil {
		return defaultSides[p]
	}
	s, ok := t.sides[p]
	if !ok {
		return Right
	}
	return s
}

// Parts returns the parts mapped to side, in canonical order.
func (t Table) Parts(side Side) []Part {
	var out []Part
	for _, p := range All {
		if t.Side(p) == side {
			out = append(out, p)
		}
	}
	return out
}
