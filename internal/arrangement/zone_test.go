package arrangement

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

func rowOne() State {
	s := NewState(testLayout())
	s.Set(seat("s1", part.Soprano, 0, 0))
	s.Set(seat("s2", part.Soprano, 0, 1))
	s.Set(seat("a1", part.Alto, 0, 2))
	s.Set(seat("a2", part.Alto, 0, 3))
	return s
}

func TestDetectPartBoundary(t *testing.T) {
	s := rowOne()
	lastLeft, firstRight := DetectPartBoundary(s, part.DefaultTable(), 0, 4)
	if lastLeft != 1 || firstRight != 2 {
		t.Errorf("boundary = (%d,%d), want (1,2)", lastLeft, firstRight)
	}
	lastLeft, firstRight = DetectPartBoundary(s, part.DefaultTable(), 1, 4)
	if lastLeft != -1 || firstRight != -1 {
		t.Errorf("empty row boundary = (%d,%d), want (-1,-1)", lastLeft, firstRight)
	}
}

func TestCollectPartPositions(t *testing.T) {
	s := rowOne()
	s.Set(seat("s3", part.Soprano, 2, 0))
	got := CollectPartPositions(s, part.Soprano, []int{0, 2})
	want := []grid.Position{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 2, Col: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if got := CollectPartPositions(s, part.Soprano, []int{2}); len(got) != 1 {
		t.Errorf("row filter: got %d positions, want 1", len(got))
	}
	if got := CollectPartPositions(s, part.Soprano, nil); len(got) != 3 {
		t.Errorf("nil rows: got %d positions, want 3", len(got))
	}
}

func TestPartZone(t *testing.T) {
	z, ok := PartZone(rowOne(), part.DefaultTable(), 0, part.Alto)
	if !ok {
		t.Fatal("expected ALTO zone in row 1")
	}
	want := Zone{Part: part.Alto, Side: part.Right, Row: 0, First: 2, Last: 3, Count: 2}
	if diff := cmp.Diff(want, z); diff != "" {
		t.Errorf("zone mismatch (-want +got):\n%s", diff)
	}
	if _, ok := PartZone(rowOne(), part.DefaultTable(), 0, part.Bass); ok {
		t.Error("BASS should have no zone in row 1")
	}
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s State)
		wantErr bool
	}{
		{"valid", func(s State) {}, false},
		{"gap inside zone is allowed", func(s State) { s.Delete(grid.Position{Row: 0, Col: 1}) }, false},
		{"interleaved", func(s State) {
			s.Delete(grid.Position{Row: 0, Col: 1})
			s.Delete(grid.Position{Row: 0, Col: 2})
			s.Set(seat("a1", part.Alto, 0, 1))
			s.Set(seat("s2", part.Soprano, 0, 2))
		}, true},
		{"over capacity", func(s State) { s.SetCapacity(0, 3) }, true},
		{"foreign seat inside zone", func(s State) {
			s.Delete(grid.Position{Row: 0, Col: 1})
			s.Set(seat("t1", part.Tenor, 0, 1))
			s.Delete(grid.Position{Row: 0, Col: 0})
			s.Set(seat("s1", part.Soprano, 0, 0))
			s.Set(seat("s3", part.Soprano, 1, 0))
			s.Set(seat("t2", part.Tenor, 1, 1))
			s.Set(seat("s4", part.Soprano, 1, 2))
		}, true},
		{"duplicate member", func(s State) { s.Set(seat("s1", part.Soprano, 1, 0)) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := rowOne()
			tt.mutate(s)
			err := CheckInvariants(s, part.DefaultTable())
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckInvariants error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrZoneViolation) {
				t.Errorf("err = %v, want ErrZoneViolation", err)
			}
		})
	}
}

func TestRowZones_Ordered(t *testing.T) {
	zones := RowZones(rowOne(), part.DefaultTable(), 0)
	if len(zones) != 2 || zones[0].Part != part.Soprano || zones[1].Part != part.Alto {
		t.Errorf("zones = %+v, want SOPRANO then ALTO", zones)
	}
}
