package part

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Part
		wantErr bool
	}{
		{"SOPRANO", Soprano, false},
		{"alto", Alto, false},
		{" Tenor ", Tenor, false},
		{"bass", Bass, false},
		{"special", Special, false},
		{"baritone", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultTable_Sides(t *testing.T) {
	tbl := DefaultTable()
	tests := []struct {
		p    Part
		want Side
	}{
		{Soprano, Left},
		{Tenor, Left},
		{Alto, Right},
		{Bass, Right},
		{Special, Right},
	}
	for _, tt := range tests {
		if got := tbl.Side(tt.p); got != tt.want {
			t.Errorf("Side(%s) = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestTable_WithSpecial(t *testing.T) {
	base := DefaultTable()
	left := base.WithSpecial(Left)
	if left.Side(Special) != Left {
		t.Errorf("Side(SPECIAL) = %s, want left", left.Side(Special))
	}
	if base.Side(Special) != Right {
		t.Error("WithSpecial mutated the original table")
	}
}

func TestTable_ZeroValueFallsBackToDefaults(t *testing.T) {
	var tbl Table
	if tbl.Side(Soprano) != Left || tbl.Side(Bass) != Right {
		t.Error("zero-value Table should use the default mapping")
	}
}

func TestTable_Parts(t *testing.T) {
	got := DefaultTable().Parts(Left)
	if len(got) != 2 || got[0] != Soprano || got[1] != Tenor {
		t.Errorf("Parts(left) = %v, want [SOPRANO TENOR]", got)
	}
}

func TestPart_UnmarshalJSON(t *testing.T) {
	var p Part
	if err := json.Unmarshal([]byte(`"alto"`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != Alto {
		t.Errorf("p = %q, want ALTO", p)
	}
	if err := json.Unmarshal([]byte(`"piano"`), &p); err == nil {
		t.Error("expected error for unknown part")
	}
}

func TestSide_JSON(t *testing.T) {
	data, err := json.Marshal(Right)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"right"` {
		t.Errorf("marshal = %s, want \"right\"", data)
	}
	var s Side
	if err := json.Unmarshal([]byte(`"left"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != Left {
		t.Errorf("s = %s, want left", s)
	}
}

func TestRules(t *testing.T) {
	alto := Rules(Alto)
	if alto.Allows(4) || alto.Allows(5) {
		t.Error("ALTO should be forbidden from rows 5-6")
	}
	if !alto.Allows(0) {
		t.Error("ALTO should be allowed in row 1")
	}
	tenor := Rules(Tenor)
	if tenor.Rank(3) != 0 {
		t.Errorf("TENOR Rank(row 4) = %d, want 0", tenor.Rank(3))
	}
	if tenor.Rank(7) != len(tenor.Preferred) {
		t.Errorf("unlisted row rank = %d, want %d", tenor.Rank(7), len(tenor.Preferred))
	}
}
