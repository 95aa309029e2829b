package recommend

import (
	"math"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/part"
)

// Evaluate scores a seating of roster.
func Evaluate(s arrangement.State, roster []Member) Metrics {
	info := make(map[string]Member, len(roster))
	for _, m := range roster {
		info[m.ID] = m
	}
	seats := s.Assignments()
	return Metrics{
		PlacementRate:  placementRate(len(seats), len(info)),
		PartBalance:    partBalance(seats),
		HeightOrder:    heightOrder(s, info),
		LeaderPosition: leaderPosition(s, info),
	}
}

func placementRate(placed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(placed) / float64(total)
}

// partBalance is 1 minus the normalized variance of the part sizes.
func partBalance(seats []arrangement.Assignment) float64 {
	if len(seats) == 0 {
		return 0
	}
	counts := make(map[part.Part]int)
	for _, a := range seats {
		counts[a.Part]++
	}
	if len(counts) <= 1 {
		return 1
	}
	avg := float64(len(seats)) / float64(len(counts))
	var variance float64
	for _, c := range counts {
		variance += (float64(c) - avg) * (float64(c) - avg)
	}
	variance /= float64(len(counts))
	return math.Max(0, 1-variance/(avg*avg))
}

// heightOrder averages, over rows with two or more known heights, the best of
// ascending, descending and centre-outward sortedness.
func heightOrder(s arrangement.State, info map[string]Member) float64 {
	var total float64
	rows := 0
	for r := 0; r < s.Layout.Rows; r++ {
		var hs []int
		for _, a := range s.Row(r) {
			if h := info[a.MemberID].Height; h > 0 {
				hs = append(hs, h)
			}
		}
		if len(hs) < 2 {
			continue
		}
		total += math.Max(sortedness(hs, false), math.Max(sortedness(hs, true), centreOut(hs)))
		rows++
	}
	if rows == 0 {
		return 1
	}
	return total / float64(rows)
}

func sortedness(hs []int, desc bool) float64 {
	ok := 0
	for i := 0; i+1 < len(hs); i++ {
		if (!desc && hs[i] <= hs[i+1]) || (desc && hs[i] >= hs[i+1]) {
			ok++
		}
	}
	return float64(ok) / float64(len(hs)-1)
}

// centreOut scores rows that are tallest in the middle.
func centreOut(hs []int) float64 {
	if len(hs) < 3 {
		return 0.5
	}
	c := len(hs) / 2
	ok, pairs := 0, 0
	for i := c; i > 0; i-- {
		if hs[i-1] <= hs[i] {
			ok++
		}
		pairs++
	}
	for i := c; i < len(hs)-1; i++ {
		if hs[i+1] <= hs[i] {
			ok++
		}
		pairs++
	}
	return float64(ok) / float64(pairs)
}

// leaderPosition scores how close each leader sits to the middle of their
// part within the row.
func leaderPosition(s arrangement.State, info map[string]Member) float64 {
	var total float64
	leaders := 0
	for _, a := range s.Assignments() {
		if !info[a.MemberID].IsLeader && !a.IsRowLeader {
			continue
		}
		leaders++
		z, ok := arrangement.PartZone(s, part.DefaultTable(), a.Pos.Row, a.Part)
		half := float64(z.Last-z.First) / 2
		if !ok || half == 0 {
			total++
			continue
		}
		centre := float64(z.First+z.Last) / 2
		total += math.Max(0, 1-math.Abs(float64(a.Pos.Col)-centre)/half)
	}
	if leaders == 0 {
		return 1
	}
	return total / float64(leaders)
}
