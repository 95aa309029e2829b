package recommend

import "github.com/zulandar/seatplan/internal/grid"

// DistributeRows recommends a grid for total singers: five rows up to 55
// singers, six above. Front rows get the extra seats.
func DistributeRows(total int) grid.Layout {
	if total < 0 {
		total = 0
	}
	var caps []int
	if total <= 55 {
		caps = fiveRows(total)
	} else {
		caps = sixRows(total)
	}
	for i, c := range caps {
		switch {
		case c < 0:
			caps[i] = 0
		case c > grid.MaxCapacity:
			caps[i] = grid.MaxCapacity
		}
	}
	return grid.Layout{Rows: len(caps), RowCapacities: caps, Zigzag: grid.ZigzagEven, Recommended: true}
}

func fiveRows(total int) []int {
	b := total / 5
	caps := []int{b + 1, b, b + 1, b, b - 1}
	adjust(caps, total-sum(caps), []int{0, 2, 1, 3, 4}, b-1)
	return caps
}

func sixRows(total int) []int {
	b := total / 6
	caps := []int{b + 2, b + 1, b + 1, b + 1, b - 1, b - 2}
	adjust(caps, total-sum(caps), []int{0, 1, 2, 3, 4, 5}, b-2)
	return caps
}

// adjust spreads diff over caps in priority order, never taking a row below
// floor.
func adjust(caps []int, diff int, priority []int, floor int) {
	for _, row := range priority {
		switch {
		case diff > 0:
			caps[row]++
			diff--
		case diff < 0 && caps[row] > floor:
			caps[row]--
			diff++
		}
	}
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
