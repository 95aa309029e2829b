package emergency

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

var fixedTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func testEngine(mutate func(*Options)) *Engine {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedTime }
	opts.NewID = func() string { return "rec-1" }
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts)
}

func put(s arrangement.State, id string, p part.Part, row, col int) {
	s.Set(arrangement.Assignment{MemberID: id, MemberName: id, Part: p, Pos: grid.Position{Row: row, Col: col}})
}

// rowOneState is the two-row grid with row 1 holding two SOPRANO and two ALTO.
func rowOneState() arrangement.State {
	s := arrangement.NewState(grid.Layout{Rows: 2, RowCapacities: []int{4, 4}, Zigzag: grid.ZigzagNone})
	put(s, "s1", part.Soprano, 0, 0)
	put(s, "s2", part.Soprano, 0, 1)
	put(s, "a1", part.Alto, 0, 2)
	put(s, "a2", part.Alto, 0, 3)
	return s
}

func memberAt(t *testing.T, s arrangement.State, row, col int) string {
	t.Helper()
	a, ok := s.At(grid.Position{Row: row, Col: col})
	if !ok {
		return ""
	}
	return a.MemberID
}

// --- MarkUnavailable tests ---

func TestMarkUnavailable_PullLeftAndShrink(t *testing.T) {
	in := rowOneState()
	res, err := testEngine(nil).MarkUnavailable(in, "s1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	out := res.State

	if got := memberAt(t, out, 0, 0); got != "s2" {
		t.Errorf("row 1 col 1 = %q, want s2", got)
	}
	if got := memberAt(t, out, 0, 1); got != "" {
		t.Errorf("row 1 col 2 = %q, want empty", got)
	}
	if memberAt(t, out, 0, 2) != "a1" || memberAt(t, out, 0, 3) != "a2" {
		t.Error("ALTO positions should be unchanged")
	}
	if out.Layout.RowCapacities[0] != 3 {
		t.Errorf("row 1 capacity = %d, want 3", out.Layout.RowCapacities[0])
	}
	if _, still := in.Find("s1"); !still {
		t.Error("input state was modified")
	}
	if in.Layout.RowCapacities[0] != 4 {
		t.Error("input layout was modified")
	}

	rec := res.Record
	if rec.Type != Unavailable || rec.MemberID != "s1" || rec.ProcessMode != string(AutoPull) {
		t.Errorf("record header = %+v", rec)
	}
	if rec.RemovedFrom == nil || *rec.RemovedFrom != (grid.Position{Row: 0, Col: 0}) {
		t.Errorf("RemovedFrom = %v, want row 1 col 1", rec.RemovedFrom)
	}
	wantSteps := []Step{
		RemoveStep{MemberID: "s1", MemberName: "s1", Part: part.Soprano, From: grid.Position{Row: 0, Col: 0}},
		PullLeftStep{MemberID: "s2", MemberName: "s2", Part: part.Soprano, From: grid.Position{Row: 0, Col: 1}, To: grid.Position{Row: 0, Col: 0}},
		ShrinkStep{Row: 0, Side: part.Left, Before: 4, After: 3},
	}
	if diff := cmp.Diff(wantSteps, rec.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	if rec.MovedMemberCount != 1 {
		t.Errorf("MovedMemberCount = %d, want 1", rec.MovedMemberCount)
	}
	if diff := cmp.Diff([]RowCapacityChange{{Row: 0, Before: 4, After: 3}}, rec.GridChanges); diff != "" {
		t.Errorf("grid changes mismatch (-want +got):\n%s", diff)
	}
	if rec.ID != "rec-1" || !rec.Timestamp.Equal(fixedTime) {
		t.Errorf("record id/time = %s/%s", rec.ID, rec.Timestamp)
	}
	if err := arrangement.CheckInvariants(out, part.DefaultTable()); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestMarkUnavailable_RightSide(t *testing.T) {
	res, err := testEngine(nil).MarkUnavailable(rowOneState(), "a1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	out := res.State
	if memberAt(t, out, 0, 2) != "a2" || memberAt(t, out, 0, 3) != "" {
		t.Error("a2 should be pulled into col 3")
	}
	if memberAt(t, out, 0, 0) != "s1" || memberAt(t, out, 0, 1) != "s2" {
		t.Error("SOPRANO positions should be unchanged")
	}
	last := res.Record.Steps[len(res.Record.Steps)-1]
	if sh, ok := last.(ShrinkStep); !ok || sh.Side != part.Right {
		t.Errorf("last step = %#v, want right-side shrink", last)
	}
}

func TestMarkUnavailable_LastInZone(t *testing.T) {
	res, err := testEngine(nil).MarkUnavailable(rowOneState(), "s2")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	if res.Record.MovedMemberCount != 0 {
		t.Errorf("MovedMemberCount = %d, want 0", res.Record.MovedMemberCount)
	}
	if len(res.Record.Steps) != 2 {
		t.Errorf("steps = %d, want remove + shrink", len(res.Record.Steps))
	}
}

func TestMarkUnavailable_Modes(t *testing.T) {
	tests := []struct {
		mode      Mode
		wantCap   int
		wantCol1  string
		wantSteps []StepKind
	}{
		{LeaveEmpty, 4, "", []StepKind{KindRemove}},
		{Manual, 3, "", []StepKind{KindRemove, KindShrink}},
		{AutoPull, 3, "s2", []StepKind{KindRemove, KindPullLeft, KindShrink}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			e := testEngine(func(o *Options) { o.Mode = tt.mode })
			res, err := e.MarkUnavailable(rowOneState(), "s1")
			if err != nil {
				t.Fatalf("MarkUnavailable: %v", err)
			}
			if got := res.State.Layout.RowCapacities[0]; got != tt.wantCap {
				t.Errorf("capacity = %d, want %d", got, tt.wantCap)
			}
			if got := memberAt(t, res.State, 0, 0); got != tt.wantCol1 {
				t.Errorf("col 1 = %q, want %q", got, tt.wantCol1)
			}
			var kinds []StepKind
			for _, s := range res.Record.Steps {
				kinds = append(kinds, s.Kind())
			}
			if diff := cmp.Diff(tt.wantSteps, kinds); diff != "" {
				t.Errorf("step kinds mismatch (-want +got):\n%s", diff)
			}
			if res.Record.ProcessMode != string(tt.mode) {
				t.Errorf("ProcessMode = %q, want %q", res.Record.ProcessMode, tt.mode)
			}
		})
	}
}

func TestMarkUnavailable_UnknownMember(t *testing.T) {
	_, err := testEngine(nil).MarkUnavailable(rowOneState(), "ghost")
	if !errors.Is(err, arrangement.ErrUnknownMember) {
		t.Errorf("err = %v, want ErrUnknownMember", err)
	}
}

// crossRowState has one SOPRANO pair in row 1 and five SOPRANO in row 2.
func crossRowState() arrangement.State {
	s := arrangement.NewState(grid.Layout{Rows: 4, RowCapacities: []int{6, 6, 6, 6}, Zigzag: grid.ZigzagNone})
	put(s, "s1", part.Soprano, 0, 0)
	put(s, "s2", part.Soprano, 0, 1)
	put(s, "a1", part.Alto, 0, 2)
	put(s, "a2", part.Alto, 0, 3)
	for i := 0; i < 5; i++ {
		put(s, fmt.Sprintf("b%d", i), part.Soprano, 1, i)
	}
	put(s, "a3", part.Alto, 1, 5)
	return s
}

func TestMarkUnavailable_CrossRowFill(t *testing.T) {
	res, err := testEngine(nil).MarkUnavailable(crossRowState(), "s1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	out := res.State
	if memberAt(t, out, 0, 0) != "s2" || memberAt(t, out, 0, 1) != "b4" {
		t.Errorf("row 1 = %q,%q want s2,b4", memberAt(t, out, 0, 0), memberAt(t, out, 0, 1))
	}
	if out.Layout.RowCapacities[0] != 6 {
		t.Errorf("row 1 capacity = %d, want unchanged 6", out.Layout.RowCapacities[0])
	}
	if out.Layout.RowCapacities[1] != 5 {
		t.Errorf("donor row capacity = %d, want 5", out.Layout.RowCapacities[1])
	}
	var kinds []StepKind
	for _, s := range res.Record.Steps {
		kinds = append(kinds, s.Kind())
	}
	want := []StepKind{KindRemove, KindPullLeft, KindCrossRowFill, KindShrink}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("step kinds mismatch (-want +got):\n%s", diff)
	}
	if res.Record.MovedMemberCount != 2 {
		t.Errorf("MovedMemberCount = %d, want 2", res.Record.MovedMemberCount)
	}
	if err := arrangement.CheckInvariants(out, part.DefaultTable()); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestMarkUnavailable_CrossRowDisabledOrBelowThreshold(t *testing.T) {
	off := testEngine(func(o *Options) { o.CrossRowEnabled = false })
	res, err := off.MarkUnavailable(crossRowState(), "s1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	if res.State.Layout.RowCapacities[1] != 6 {
		t.Error("donor row should be untouched when cross-row is disabled")
	}

	high := testEngine(func(o *Options) { o.CrossRowThreshold = 4 })
	res, err = high.MarkUnavailable(crossRowState(), "s1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	if res.State.Layout.RowCapacities[1] != 6 {
		t.Error("donor row should be untouched when the gap does not exceed the threshold")
	}
}

// Removal changes at most two rows, and only members of the removed part.
func TestMarkUnavailable_MinimalDiff(t *testing.T) {
	for _, st := range []arrangement.State{rowOneState(), crossRowState()} {
		for _, a := range st.Assignments() {
			res, err := testEngine(nil).MarkUnavailable(st, a.MemberID)
			if err != nil {
				t.Fatalf("MarkUnavailable(%s): %v", a.MemberID, err)
			}
			changedRows := map[int]bool{}
			for _, before := range st.Assignments() {
				if before.MemberID == a.MemberID {
					continue
				}
				after, ok := res.State.Find(before.MemberID)
				if !ok {
					t.Fatalf("member %s vanished", before.MemberID)
				}
				if after.Pos == before.Pos {
					continue
				}
				changedRows[before.Pos.Row] = true
				changedRows[after.Pos.Row] = true
				if before.Part != a.Part {
					t.Errorf("removing %s moved %s of another part", a.MemberID, before.MemberID)
				}
			}
			if len(changedRows) > 2 {
				t.Errorf("removing %s changed %d rows", a.MemberID, len(changedRows))
			}
			if err := arrangement.CheckInvariants(res.State, part.DefaultTable()); err != nil {
				t.Errorf("removing %s: %v", a.MemberID, err)
			}
		}
	}
}

// --- MarkAvailable tests ---

func TestMarkAvailable_FreeSeatInZone(t *testing.T) {
	s := arrangement.NewState(grid.Layout{Rows: 4, RowCapacities: []int{6, 6, 6, 6}, Zigzag: grid.ZigzagNone})
	put(s, "s1", part.Soprano, 0, 0)
	put(s, "a1", part.Alto, 0, 4)
	res, err := testEngine(nil).MarkAvailable(s, Member{ID: "s2", Name: "Kim", Part: part.Soprano}, AutoPlace)
	if err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	if res.Record.AddedTo == nil || *res.Record.AddedTo != (grid.Position{Row: 0, Col: 1}) {
		t.Errorf("AddedTo = %v, want row 1 col 2", res.Record.AddedTo)
	}
	if res.Record.Type != Available || res.Record.ProcessMode != string(AutoPlace) {
		t.Errorf("record = %+v", res.Record)
	}
	if res.Record.MovedMemberCount != 0 {
		t.Errorf("MovedMemberCount = %d, want 0", res.Record.MovedMemberCount)
	}

	res, err = testEngine(nil).MarkAvailable(s, Member{ID: "a2", Name: "Lee", Part: part.Alto}, AutoPlace)
	if err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	if *res.Record.AddedTo != (grid.Position{Row: 0, Col: 3}) {
		t.Errorf("ALTO AddedTo = %v, want row 1 col 4", res.Record.AddedTo)
	}
}

func TestMarkAvailable_ExpandsRowAfterShrink(t *testing.T) {
	removed, err := testEngine(nil).MarkUnavailable(rowOneState(), "s1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	s := removed.State
	s.SetCapacity(1, 0)

	res, err := testEngine(nil).MarkAvailable(s, Member{ID: "s1", Name: "s1", Part: part.Soprano}, AutoPlace)
	if err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	if *res.Record.AddedTo != (grid.Position{Row: 0, Col: 1}) {
		t.Errorf("AddedTo = %v, want row 1 col 2", res.Record.AddedTo)
	}
	if res.State.Layout.RowCapacities[0] != 4 {
		t.Errorf("capacity = %d, want 4", res.State.Layout.RowCapacities[0])
	}
	var kinds []StepKind
	for _, st := range res.Record.Steps {
		kinds = append(kinds, st.Kind())
	}
	if diff := cmp.Diff([]StepKind{KindExpand, KindAdd}, kinds); diff != "" {
		t.Errorf("step kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkAvailable_ExpandShiftsRightZone(t *testing.T) {
	s := arrangement.NewState(grid.Layout{Rows: 4, RowCapacities: []int{4, 0, 0, 0}, Zigzag: grid.ZigzagNone})
	put(s, "s1", part.Soprano, 0, 0)
	put(s, "s2", part.Soprano, 0, 1)
	put(s, "a1", part.Alto, 0, 2)
	put(s, "a2", part.Alto, 0, 3)

	res, err := testEngine(nil).MarkAvailable(s, Member{ID: "s3", Name: "s3", Part: part.Soprano}, AutoPlace)
	if err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	out := res.State
	got := []string{memberAt(t, out, 0, 0), memberAt(t, out, 0, 1), memberAt(t, out, 0, 2), memberAt(t, out, 0, 3), memberAt(t, out, 0, 4)}
	if diff := cmp.Diff([]string{"s1", "s2", "s3", "a1", "a2"}, got); diff != "" {
		t.Errorf("row 1 mismatch (-want +got):\n%s", diff)
	}
	if out.Layout.RowCapacities[0] != 5 {
		t.Errorf("capacity = %d, want 5", out.Layout.RowCapacities[0])
	}
	if res.Record.MovedMemberCount != 2 {
		t.Errorf("MovedMemberCount = %d, want 2", res.Record.MovedMemberCount)
	}
	if err := arrangement.CheckInvariants(out, part.DefaultTable()); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestMarkAvailable_NoAdmissibleSeat(t *testing.T) {
	caps := []int{20, 20, 20, 20, 20, 20}
	s := arrangement.NewState(grid.Layout{Rows: 6, RowCapacities: caps, Zigzag: grid.ZigzagNone})
	// ALTO may only use rows 1-4, which are full.
	for row := 0; row < 4; row++ {
		for col := 0; col < 20; col++ {
			put(s, fmt.Sprintf("a-%d-%d", row, col), part.Alto, row, col)
		}
	}
	_, err := testEngine(nil).MarkAvailable(s, Member{ID: "new", Name: "new", Part: part.Alto}, AutoPlace)
	if !errors.Is(err, ErrNoAdmissibleSeat) {
		t.Errorf("err = %v, want ErrNoAdmissibleSeat", err)
	}
}

func TestMarkAvailable_Manual(t *testing.T) {
	in := rowOneState()
	res, err := testEngine(nil).MarkAvailable(in, Member{ID: "t1", Name: "Park", Part: part.Tenor}, ManualPlace)
	if err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	if diff := cmp.Diff(in.Assignments(), res.State.Assignments()); diff != "" {
		t.Errorf("manual mode changed seats (-want +got):\n%s", diff)
	}
	if res.Record.AddedTo != nil || res.Record.MovedMemberCount != 0 {
		t.Errorf("record = %+v, want no placement", res.Record)
	}
	if len(res.Record.Steps) != 1 || res.Record.Steps[0].Kind() != KindAdd {
		t.Errorf("steps = %#v, want one ADD", res.Record.Steps)
	}
}

func TestMarkAvailable_AlreadySeated(t *testing.T) {
	_, err := testEngine(nil).MarkAvailable(rowOneState(), Member{ID: "s1", Part: part.Soprano}, AutoPlace)
	if !errors.Is(err, ErrAlreadySeated) {
		t.Errorf("err = %v, want ErrAlreadySeated", err)
	}
}

func TestCommit_SingleUndo(t *testing.T) {
	st := arrangement.FromState(rowOneState())
	res, err := testEngine(nil).MarkUnavailable(st.State(), "s1")
	if err != nil {
		t.Fatalf("MarkUnavailable: %v", err)
	}
	Commit(st, res)
	if st.Len() != 3 {
		t.Fatalf("Len = %d, want 3", st.Len())
	}
	st.Undo()
	if st.Len() != 4 || st.Layout().RowCapacities[0] != 4 {
		t.Error("undo should restore the whole operation")
	}
}

func TestParseModes(t *testing.T) {
	if m, err := ParseMode("auto_pull"); err != nil || m != AutoPull {
		t.Errorf("ParseMode = %q, %v", m, err)
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if m, _ := ParsePlaceMode("manual"); m != ManualPlace {
		t.Errorf("ParsePlaceMode(manual) = %q", m)
	}
	if m, _ := ParsePlaceMode(""); m != AutoPlace {
		t.Errorf("ParsePlaceMode(\"\") = %q", m)
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Options{})
	if e.Options().Mode != AutoPull || e.Options().CrossRowThreshold != DefaultCrossRowThreshold {
		t.Errorf("defaults = %+v", e.Options())
	}
	if e.Options().NewID() == e.Options().NewID() {
		t.Error("default ids should be unique")
	}
}
