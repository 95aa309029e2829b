package emergency

import (
	"fmt"

	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// StepKind names the variant of a cascade step.
type StepKind string

const (
	KindRemove       StepKind = "REMOVE"
	KindPullLeft     StepKind = "PULL_LEFT"
	KindShrink       StepKind = "SHRINK"
	KindCrossRowFill StepKind = "CROSS_ROW_FILL"
	KindShift        StepKind = "SHIFT"
	KindExpand       StepKind = "EXPAND"
	KindAdd          StepKind = "ADD"
)

// Step is one sub-change of an emergency operation. The concrete types are
// RemoveStep, PullLeftStep, ShrinkStep, CrossRowFillStep, ShiftStep,
// ExpandStep and AddStep.
type Step interface {
	Kind() StepKind
	Describe() string
	// Moved reports the member relocated by the step, if any.
	Moved() (memberID string, ok bool)
}

// RemoveStep takes a member off the grid.
type RemoveStep struct {
	MemberID   string
	MemberName string
	Part       part.Part
	From       grid.Position
}

// PullLeftStep shifts a same-part neighbour one seat toward a vacated seat.
type PullLeftStep struct {
	MemberID   string
	MemberName string
	Part       part.Part
	From, To   grid.Position
}

// ShrinkStep lowers a row's capacity on one side.
type ShrinkStep struct {
	Row    int
	Side   part.Side
	Before int
	After  int
}

// CrossRowFillStep pulls a same-part member from a neighbouring row into a
// freed seat.
type CrossRowFillStep struct {
	MemberID   string
	MemberName string
	Part       part.Part
	From, To   grid.Position
}

// ShiftStep pushes a member one seat right to open a seat at a zone edge.
type ShiftStep struct {
	MemberID   string
	MemberName string
	Part       part.Part
	From, To   grid.Position
}

// ExpandStep raises a row's capacity on one side.
type ExpandStep struct {
	Row    int
	Side   part.Side
	Before int
	After  int
}

// AddStep seats a member who became available. To is nil when placement was
// left to a person.
type AddStep struct {
	MemberID   string
	MemberName string
	Part       part.Part
	To         *grid.Position
}

func (RemoveStep) Kind() StepKind       { return KindRemove }
func (PullLeftStep) Kind() StepKind     { return KindPullLeft }
func (ShrinkStep) Kind() StepKind       { return KindShrink }
func (CrossRowFillStep) Kind() StepKind { return KindCrossRowFill }
func (ShiftStep) Kind() StepKind        { return KindShift }
func (ExpandStep) Kind() StepKind       { return KindExpand }
func (AddStep) Kind() StepKind          { return KindAdd }

func (s RemoveStep) Moved() (string, bool)       { return "", false }
func (s PullLeftStep) Moved() (string, bool)     { return s.MemberID, true }
func (s ShrinkStep) Moved() (string, bool)       { return "", false }
func (s CrossRowFillStep) Moved() (string, bool) { return s.MemberID, true }
func (s ShiftStep) Moved() (string, bool)        { return s.MemberID, true }
func (s ExpandStep) Moved() (string, bool)       { return "", false }
func (s AddStep) Moved() (string, bool)          { return "", false }

func (s RemoveStep) Describe() string {
	return fmt.Sprintf("%s (%s) removed from row %d seat %d", s.MemberName, s.Part, s.From.Row+1, s.From.Col+1)
}

func (s PullLeftStep) Describe() string {
	return fmt.Sprintf("%s (%s) pulled from seat %d to seat %d in row %d", s.MemberName, s.Part, s.From.Col+1, s.To.Col+1, s.From.Row+1)
}

func (s ShrinkStep) Describe() string {
	return fmt.Sprintf("row %d shrunk on the %s side: %d -> %d seats", s.Row+1, s.Side, s.Before, s.After)
}

func (s CrossRowFillStep) Describe() string {
	return fmt.Sprintf("%s (%s) moved from row %d seat %d to row %d seat %d", s.MemberName, s.Part, s.From.Row+1, s.From.Col+1, s.To.Row+1, s.To.Col+1)
}

func (s ShiftStep) Describe() string {
	return fmt.Sprintf("%s (%s) shifted from seat %d to seat %d in row %d", s.MemberName, s.Part, s.From.Col+1, s.To.Col+1, s.From.Row+1)
}

func (s ExpandStep) Describe() string {
	return fmt.Sprintf("row %d expanded on the %s side: %d -> %d seats", s.Row+1, s.Side, s.Before, s.After)
}

func (s AddStep) Describe() string {
	if s.To == nil {
		return fmt.Sprintf("%s (%s) marked available, awaiting manual placement", s.MemberName, s.Part)
	}
	return fmt.Sprintf("%s (%s) placed at row %d seat %d", s.MemberName, s.Part, s.To.Row+1, s.To.Col+1)
}

// stepJSON is the flat wire form of a Step. Rows and columns are 1-based.
type stepJSON struct {
	Step        int          `json:"step"`
	Type        StepKind     `json:"type"`
	Description string       `json:"description"`
	MemberID    string       `json:"memberId,omitempty"`
	MemberName  string       `json:"memberName,omitempty"`
	Part        part.Part    `json:"part,omitempty"`
	From        *grid.Record `json:"from,omitempty"`
	To          *grid.Record `json:"to,omitempty"`
	Row         int          `json:"row,omitempty"`
	Side        string       `json:"side,omitempty"`
	Before      *int         `json:"before,omitempty"`
	After       *int         `json:"after,omitempty"`
}

func recordOf(p grid.Position) *grid.Record {
	r := p.Record()
	return &r
}

func intPtr(n int) *int { return &n }

func encodeStep(n int, s Step) stepJSON {
	out := stepJSON{Step: n, Type: s.Kind(), Description: s.Describe()}
	switch v := s.(type) {
	case RemoveStep:
		out.MemberID, out.MemberName, out.Part = v.MemberID, v.MemberName, v.Part
		out.From = recordOf(v.From)
	case PullLeftStep:
		out.MemberID, out.MemberName, out.Part = v.MemberID, v.MemberName, v.Part
		out.From, out.To = recordOf(v.From), recordOf(v.To)
	case CrossRowFillStep:
		out.MemberID, out.MemberName, out.Part = v.MemberID, v.MemberName, v.Part
		out.From, out.To = recordOf(v.From), recordOf(v.To)
	case ShiftStep:
		out.MemberID, out.MemberName, out.Part = v.MemberID, v.MemberName, v.Part
		out.From, out.To = recordOf(v.From), recordOf(v.To)
	case ShrinkStep:
		out.Row, out.Side = v.Row+1, v.Side.String()
		out.Before, out.After = intPtr(v.Before), intPtr(v.After)
	case ExpandStep:
		out.Row, out.Side = v.Row+1, v.Side.String()
		out.Before, out.After = intPtr(v.Before), intPtr(v.After)
	case AddStep:
		out.MemberID, out.MemberName, out.Part = v.MemberID, v.MemberName, v.Part
		if v.To != nil {
			out.To = recordOf(*v.To)
		}
	}
	return out
}

func decodeStep(in stepJSON) (Step, error) {
	pos := func(r *grid.Record) grid.Position {
		if r == nil {
			return grid.Position{}
		}
		return grid.FromRecord(*r)
	}
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	switch in.Type {
	case KindRemove:
		return RemoveStep{MemberID: in.MemberID, MemberName: in.MemberName, Part: in.Part, From: pos(in.From)}, nil
	case KindPullLeft:
		return PullLeftStep{MemberID: in.MemberID, MemberName: in.MemberName, Part: in.Part, From: pos(in.From), To: pos(in.To)}, nil
	case KindCrossRowFill:
		return CrossRowFillStep{MemberID: in.MemberID, MemberName: in.MemberName, Part: in.Part, From: pos(in.From), To: pos(in.To)}, nil
	case KindShift:
		return ShiftStep{MemberID: in.MemberID, MemberName: in.MemberName, Part: in.Part, From: pos(in.From), To: pos(in.To)}, nil
	case KindShrink, KindExpand:
		side, err := part.ParseSide(in.Side)
		if err != nil {
			return nil, err
		}
		if in.Type == KindShrink {
			return ShrinkStep{Row: in.Row - 1, Side: side, Before: deref(in.Before), After: deref(in.After)}, nil
		}
		return ExpandStep{Row: in.Row - 1, Side: side, Before: deref(in.Before), After: deref(in.After)}, nil
	case KindAdd:
		step := AddStep{MemberID: in.MemberID, MemberName: in.MemberName, Part: in.Part}
		if in.To != nil {
			p := grid.FromRecord(*in.To)
			step.To = &p
		}
		return step, nil
	}
	return nil, fmt.Errorf("emergency: unknown step type %q", in.Type)
}

// marshalSteps renders steps in their numbered wire form.
func marshalSteps(steps []Step) []stepJSON {
	out := make([]stepJSON, len(steps))
	for i, s := range steps {
		out[i] = encodeStep(i+1, s)
	}
	return out
}

func unmarshalSteps(in []stepJSON) ([]Step, error) {
	out := make([]Step, 0, len(in))
	for _, s := range in {
		step, err := decodeStep(s)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}
