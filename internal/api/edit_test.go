package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/seatplan/internal/arrangement"
)

func seatKeys(seats []arrangement.SeatRecord) map[string]string {
	out := make(map[string]string)
	for _, s := range seats {
		out[s.MemberID] = fmt.Sprintf("%d-%d", s.Row, s.Col)
	}
	return out
}

func (f *fixture) version(t *testing.T, id uint) int {
	t.Helper()
	_, meta, err := f.store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return meta.Version
}

func TestEditSeatsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	id := f.seeded(t, false)
	path := fmt.Sprintf("/api/arrangements/%d/seats", id)

	body := fmt.Sprintf(`{"version": %d, "edits": [
		{"op": "move", "seat": "1-1", "to": "2-1"},
		{"op": "remove", "seat": "1-2"},
		{"op": "place", "memberId": "s2", "seat": "3-2"},
		{"op": "leader", "seat": "1-3"}
	]}`, f.version(t, id))
	w := f.do(t, http.MethodPost, path, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got arrangementJSON
	decode(t, w, &got)
	want := map[string]string{"s1": "2-1", "s2": "3-2", "a1": "1-3", "a2": "1-4"}
	if diff := cmp.Diff(want, seatKeys(got.Seats)); diff != "" {
		t.Errorf("seats mismatch (-want +got):\n%s", diff)
	}

	w = f.do(t, http.MethodPost, path, `{"edits": [{"op": "undo"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("undo status = %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &got)
	if got.Seats[0].MemberID != "s1" || got.Seats[0].Row != 1 || got.Seats[0].Col != 1 {
		t.Errorf("after undo first seat = %+v, want s1 at 1-1", got.Seats[0])
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no edits", `{"edits": []}`, http.StatusBadRequest},
		{"unknown op", `{"edits": [{"op": "swap", "seat": "1-1"}]}`, http.StatusBadRequest},
		{"bad seat key", `{"edits": [{"op": "remove", "seat": "front"}]}`, http.StatusBadRequest},
		{"place without member", `{"edits": [{"op": "place", "seat": "2-2"}]}`, http.StatusBadRequest},
		{"off the grid", `{"edits": [{"op": "move", "seat": "1-1", "to": "9-1"}]}`, http.StatusBadRequest},
		{"unknown member", `{"edits": [{"op": "place", "memberId": "zz", "seat": "2-2"}]}`, http.StatusNotFound},
		{"empty seat", `{"edits": [{"op": "remove", "seat": "4-4"}]}`, http.StatusConflict},
		{"stale version", `{"version": 1, "edits": [{"op": "remove", "seat": "1-1"}]}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestEditSeats_ConfirmedIsLocked(t *testing.T) {
	f := newFixture(t, nil)
	id := f.seeded(t, true)
	if _, err := f.store.SetStatus(context.Background(), id, arrangement.StatusConfirmed); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	base := fmt.Sprintf("/api/arrangements/%d", id)

	if w := f.do(t, http.MethodPost, base+"/seats", `{"edits": [{"op": "remove", "seat": "1-1"}]}`); w.Code != http.StatusConflict {
		t.Errorf("seats on confirmed = %d, want 409", w.Code)
	}
	layout := `{"gridLayout": {"rows": 4, "rowCapacities": [4, 4, 4, 4], "zigzagPattern": "none"}}`
	if w := f.do(t, http.MethodPut, base+"/layout", layout); w.Code != http.StatusConflict {
		t.Errorf("layout on confirmed = %d, want 409", w.Code)
	}
}

func TestSetLayoutEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	id := f.seeded(t, false)
	path := fmt.Sprintf("/api/arrangements/%d/layout", id)

	w := f.do(t, http.MethodPut, path, `{"gridLayout": {"rows": 4, "rowCapacities": [3, 4, 4, 4], "zigzagPattern": "even"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Arrangement arrangementJSON          `json:"arrangement"`
		Dropped     []arrangement.SeatRecord `json:"dropped"`
	}
	decode(t, w, &got)
	if len(got.Dropped) != 1 || got.Dropped[0].MemberID != "a2" {
		t.Errorf("dropped = %+v, want a2", got.Dropped)
	}
	if got.Arrangement.GridLayout.Capacity(0) != 3 || len(got.Arrangement.Seats) != 3 {
		t.Errorf("arrangement = %+v", got.Arrangement)
	}

	if w := f.do(t, http.MethodPut, path, `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing layout status = %d, want 400", w.Code)
	}
	bad := `{"gridLayout": {"rows": 2, "rowCapacities": [4, 4], "zigzagPattern": "none"}}`
	if w := f.do(t, http.MethodPut, path, bad); w.Code != http.StatusBadRequest {
		t.Errorf("bad layout status = %d, want 400", w.Code)
	}
}

func TestWorkflowEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	id := f.seeded(t, false)
	path := fmt.Sprintf("/api/arrangements/%d/workflow", id)

	w := f.do(t, http.MethodPost, path, `{"action": "complete", "step": 4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Workflow *arrangement.Workflow `json:"workflow"`
		Version  int                   `json:"version"`
	}
	decode(t, w, &got)
	if got.Workflow == nil || !got.Workflow.IsComplete(arrangement.StepManualFix) {
		t.Errorf("workflow = %+v, want step 4 complete", got.Workflow)
	}
	if got.Version != f.version(t, id) {
		t.Errorf("version = %d, want stored %d", got.Version, f.version(t, id))
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown action", `{"action": "skip", "step": 2}`, http.StatusBadRequest},
		{"missing action", `{"step": 2}`, http.StatusBadRequest},
		{"step out of range", `{"action": "complete", "step": 9}`, http.StatusBadRequest},
		{"locked step", `{"action": "goto", "step": 7}`, http.StatusConflict},
		{"first open step", `{"action": "goto", "step": 1}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.do(t, http.MethodPost, path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestEmergencyPreview(t *testing.T) {
	f := newFixture(t, nil)
	id := f.seeded(t, true)
	base := fmt.Sprintf("/api/arrangements/%d", id)
	before := f.version(t, id)

	w := f.do(t, http.MethodPost, base+"/emergency/unavailable?preview=true", `{"memberId": "s1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got struct {
		Record struct {
			Type     string `json:"type"`
			MemberID string `json:"memberId"`
		} `json:"record"`
		Seats []arrangement.SeatRecord `json:"seats"`
	}
	decode(t, w, &got)
	if got.Record.Type != "UNAVAILABLE" || got.Record.MemberID != "s1" {
		t.Errorf("record = %+v", got.Record)
	}
	if _, seated := seatKeys(got.Seats)["s1"]; seated || len(got.Seats) != 3 {
		t.Errorf("previewed seats = %v, want three without s1", seatKeys(got.Seats))
	}

	if v := f.version(t, id); v != before {
		t.Errorf("version = %d after preview, want %d", v, before)
	}
	w = f.do(t, http.MethodGet, base+"/changes", "")
	if w.Body.String() != "[]" {
		t.Errorf("changes = %s, want none", w.Body.String())
	}

	if w := f.do(t, http.MethodPost, base+"/emergency/available?preview=true", `{"memberId": "s1", "mode": "manual"}`); w.Code != http.StatusConflict {
		t.Errorf("available preview of seated member = %d, want 409", w.Code)
	}
	if w := f.do(t, http.MethodPost, base+"/emergency/unavailable?preview=maybe", `{"memberId": "s1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad preview flag = %d, want 400", w.Code)
	}
}
