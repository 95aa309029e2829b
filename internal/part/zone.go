package part

// RowRule describes where a part may sit. Rows are 0-based.
type RowRule struct {
	Part      Part
	Preferred []int // in order of preference
	Forbidden []int
}

// Allows reports whether row is not forbidden for the part.
func (r RowRule) Allows(row int) bool {
	for _, f := range r.Forbidden {
		if f == row {
			return false
		}
	}
	return true
}

// Rank returns the preference index of row, or len(Preferred) when the row is
// not listed.
func (r RowRule) Rank(row int) int {
	for i, p := range r.Preferred {
		if p == row {
			return i
		}
	}
	return len(r.Preferred)
}

var rowRules = map[Part]RowRule{
	Soprano: {Part: Soprano, Preferred: []int{0, 1, 2, 3, 4, 5}},
	Alto:    {Part: Alto, Preferred: []int{0, 1, 2, 3}, Forbidden: []int{4, 5}},
	Tenor:   {Part: Tenor, Preferred: []int{3, 4, 5, 2, 1, 0}},
	Bass:    {Part: Bass, Preferred: []int{3, 4, 5}},
	Special: {Part: Special, Preferred: []int{0, 1, 2, 3, 4, 5}},
}

// Rules returns the row rule for p.
func Rules(p Part) RowRule {
	r, ok := rowRules[p]
	if !ok {
		return RowRule{Part: p}
	}
	return r
}
