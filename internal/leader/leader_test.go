package leader

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// fullState seats six rows of eight: parts split four/four per row, with
// SOPRANO/ALTO in front and TENOR/BASS behind.
func fullState() arrangement.State {
	s := arrangement.NewState(grid.DefaultLayout())
	for row := 0; row < 6; row++ {
		left, right := part.Soprano, part.Alto
		if row >= 3 {
			left, right = part.Tenor, part.Bass
		}
		for col := 0; col < 8; col++ {
			p := left
			if col >= 4 {
				p = right
			}
			id := fmt.Sprintf("%s-%d-%d", p, row, col)
			s.Set(arrangement.Assignment{MemberID: id, Part: p, Pos: grid.Position{Row: row, Col: col}})
		}
	}
	return s
}

func TestSelect_DefaultRoster(t *testing.T) {
	got := Select(fullState(), part.DefaultTable(), DefaultRules)
	want := []Candidate{
		{Pos: grid.Position{Row: 0, Col: 3}, Part: part.Soprano, Side: part.Left, Role: RoleBoundary},
		{Pos: grid.Position{Row: 2, Col: 3}, Part: part.Soprano, Side: part.Left, Role: RoleBoundary},
		{Pos: grid.Position{Row: 4, Col: 3}, Part: part.Tenor, Side: part.Left, Role: RoleBoundary},
		{Pos: grid.Position{Row: 0, Col: 4}, Part: part.Alto, Side: part.Right, Role: RoleBoundary},
		// 12 ALTO seats over rows 1-3: index ceil(12/2)-1 = 5 -> row 2, col 6.
		{Pos: grid.Position{Row: 1, Col: 5}, Part: part.Alto, Side: part.Right, Role: RoleMiddle},
		{Pos: grid.Position{Row: 3, Col: 4}, Part: part.Bass, Side: part.Right, Role: RoleBoundary},
		{Pos: grid.Position{Row: 4, Col: 4}, Part: part.Bass, Side: part.Right, Role: RoleBoundary},
		{Pos: grid.Position{Row: 5, Col: 4}, Part: part.Bass, Side: part.Right, Role: RoleBoundary},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSelect_NoDuplicateSeats(t *testing.T) {
	// A single ALTO in rows 1-3 is both the row-1 boundary and the middle.
	s := arrangement.NewState(grid.DefaultLayout())
	s.Set(arrangement.Assignment{MemberID: "a", Part: part.Alto, Pos: grid.Position{Row: 0, Col: 5}})
	got := Select(s, part.DefaultTable(), DefaultRules)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	seen := map[grid.Position]bool{}
	for _, c := range Select(fullState(), part.DefaultTable(), DefaultRules) {
		if seen[c.Pos] {
			t.Errorf("seat %s selected twice", c.Pos.Key())
		}
		seen[c.Pos] = true
	}
}

func TestSelect_SkipsRowsOutsideLayout(t *testing.T) {
	l := grid.Layout{Rows: 4, RowCapacities: []int{4, 4, 4, 4}, Zigzag: grid.ZigzagNone}
	s := arrangement.NewState(l)
	s.Set(arrangement.Assignment{MemberID: "b", Part: part.Bass, Pos: grid.Position{Row: 3, Col: 3}})
	got := Select(s, part.DefaultTable(), DefaultRules)
	if len(got) != 1 || got[0].Pos.Row != 3 {
		t.Errorf("got %+v, want one BASS leader in row 4", got)
	}
}

func TestSelect_EmptyState(t *testing.T) {
	if got := Select(arrangement.NewState(grid.DefaultLayout()), part.DefaultTable(), DefaultRules); len(got) != 0 {
		t.Errorf("got %d candidates for empty state, want 0", len(got))
	}
}

func TestApply(t *testing.T) {
	st := arrangement.FromState(fullState())
	st.ToggleRowLeader(grid.Position{Row: 5, Col: 0})
	cands := Select(st.State(), part.DefaultTable(), DefaultRules)
	Apply(st, cands)

	leaders := 0
	for _, a := range st.Assignments() {
		if a.IsRowLeader {
			leaders++
		}
	}
	if leaders != len(cands) {
		t.Errorf("leaders = %d, want %d", leaders, len(cands))
	}
	if a, _ := st.At(grid.Position{Row: 5, Col: 0}); a.IsRowLeader {
		t.Error("stale leader flag should be cleared")
	}
}

func TestCandidate_JSONOneBased(t *testing.T) {
	c := Candidate{Pos: grid.Position{Row: 0, Col: 3}, Part: part.Soprano, Side: part.Left, Role: RoleBoundary}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"row":1,"col":4,"part":"SOPRANO","side":"left","role":"boundary"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
