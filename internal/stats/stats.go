// Package stats learns each member's habitual seat from past arrangements.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/recommend"
)

// Defaults for Config.
const (
	DefaultMinAppearances  = 3
	DefaultHighConsistency = 0.8
	DefaultColTolerance    = 2
)

// PastSeat is one historical seating of a member.
type PastSeat struct {
	MemberID      string
	ArrangementID uint
	Date          time.Time
	Pos           grid.Position
}

// Config tunes Compute.
type Config struct {
	// MinAppearances is the number of past seatings needed before a member
	// gets a preference at all.
	MinAppearances  int
	HighConsistency float64
	// ColTolerance is how far (in columns) a seating may be from the
	// average column and still count as consistent.
	ColTolerance float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinAppearances:  DefaultMinAppearances,
		HighConsistency: DefaultHighConsistency,
		ColTolerance:    DefaultColTolerance,
	}
}

// Compute derives one preference per member with enough history. The
// preferred row is the most frequent one (earliest seen wins a tie) and the
// preferred column is the rounded average. Results are ordered by
// appearances, most first.
func Compute(history []PastSeat, cfg Config) []recommend.Preference {
	if cfg.MinAppearances <= 0 {
		cfg.MinAppearances = DefaultMinAppearances
	}
	if cfg.HighConsistency <= 0 {
		cfg.HighConsistency = DefaultHighConsistency
	}
	if cfg.ColTolerance < 0 {
		cfg.ColTolerance = DefaultColTolerance
	}

	var order []string
	byMember := make(map[string][]grid.Position)
	for _, h := range history {
		if _, ok := byMember[h.MemberID]; !ok {
			order = append(order, h.MemberID)
		}
		byMember[h.MemberID] = append(byMember[h.MemberID], h.Pos)
	}

	var out []recommend.Preference
	for _, id := range order {
		seats := byMember[id]
		n := len(seats)
		if n < cfg.MinAppearances {
			continue
		}

		counts := make(map[int]int)
		preferredRow, best := seats[0].Row, 0
		colSum := 0
		for _, p := range seats {
			counts[p.Row]++
			colSum += p.Col
		}
		for _, p := range seats {
			if counts[p.Row] > best {
				best = counts[p.Row]
				preferredRow = p.Row
			}
		}

		avg := float64(colSum) / float64(n)
		inRange := 0
		for _, p := range seats {
			if math.Abs(float64(p.Col)-avg) <= cfg.ColTolerance {
				inRange++
			}
		}

		pref := recommend.Preference{
			MemberID:       id,
			PreferredRow:   preferredRow,
			PreferredCol:   int(math.Floor(avg + 0.5)),
			Appearances:    n,
			RowConsistency: float64(best) / float64(n),
			ColConsistency: float64(inRange) / float64(n),
		}
		pref.IsFixed = pref.RowConsistency >= cfg.HighConsistency && pref.ColConsistency >= cfg.HighConsistency
		out = append(out, pref)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Appearances > out[j].Appearances })
	return out
}

// Summary aggregates a Compute result.
type Summary struct {
	Members           int
	Fixed             int
	AvgRowConsistency float64
	AvgColConsistency float64
}

// Summarize counts fixed seats and averages the consistencies.
func Summarize(prefs []recommend.Preference) Summary {
	s := Summary{Members: len(prefs)}
	if len(prefs) == 0 {
		return s
	}
	for _, p := range prefs {
		if p.IsFixed {
			s.Fixed++
		}
		s.AvgRowConsistency += p.RowConsistency
		s.AvgColConsistency += p.ColConsistency
	}
	s.AvgRowConsistency /= float64(len(prefs))
	s.AvgColConsistency /= float64(len(prefs))
	return s
}
