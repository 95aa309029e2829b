// Package recommend builds a complete seating from an empty grid. The local
// heuristic is deterministic; an external service returning the same shape
// can stand in for it.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zulandar/seatplan/internal/arrangement"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// ErrServiceUnavailable is returned by Remote when the external recommender
// cannot produce a result.
var ErrServiceUnavailable = errors.New("recommend: service unavailable")

// Source says which recommender produced a Result.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Member is a singer to be seated.
type Member struct {
	ID   string
	Name string
	Part part.Part
	// Height in cm; 0 means unknown.
	Height     int
	Experience int
	IsLeader   bool
}

// Preference is a member's learned seat. Row and column are 0-based.
type Preference struct {
	MemberID       string
	PreferredRow   int
	PreferredCol   int
	Appearances    int
	RowConsistency float64
	ColConsistency float64
	IsFixed        bool
}

// Strong reports whether the member reliably sits in the same place.
func (p Preference) Strong() bool {
	return p.IsFixed || (p.Appearances >= 3 && p.RowConsistency >= 0.8 && p.ColConsistency >= 0.8)
}

// Request is the input of a recommendation.
type Request struct {
	Members []Member
	// Layout is the grid to fill. Nil lets the recommender pick one with
	// DistributeRows.
	Layout      *grid.Layout
	Preferences map[string]Preference
}

// Recommender produces a seating for a roster.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (Result, error)
}

// Metrics are post-hoc quality scores in [0, 1].
type Metrics struct {
	PlacementRate  float64 `json:"placementRate"`
	PartBalance    float64 `json:"partBalance"`
	HeightOrder    float64 `json:"heightOrder"`
	LeaderPosition float64 `json:"leaderPosition"`
}

// QualityScore blends the metrics: placement 40%, part balance 25%, height
// order 20%, leader position 15%.
func (m Metrics) QualityScore() float64 {
	return m.PlacementRate*0.40 + m.PartBalance*0.25 + m.HeightOrder*0.20 + m.LeaderPosition*0.15
}

// Result is a full seating. Unassigned lists the IDs of members who could
// not be seated.
type Result struct {
	State        arrangement.State
	Metrics      Metrics
	QualityScore float64
	Unassigned   []string
	Source       Source
}

// seatJSON is the wire form of a recommended seat. Row and column are 1-based.
type seatJSON struct {
	MemberID   string    `json:"memberId"`
	MemberName string    `json:"memberName"`
	Row        int       `json:"row"`
	Col        int       `json:"col"`
	Part       part.Part `json:"part"`
}

type resultJSON struct {
	Seats             []seatJSON  `json:"seats"`
	GridLayout        grid.Layout `json:"gridLayout"`
	QualityScore      float64     `json:"qualityScore"`
	Metrics           Metrics     `json:"metrics"`
	UnassignedMembers []string    `json:"unassignedMembers"`
	Source            Source      `json:"source,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Seats:             []seatJSON{},
		GridLayout:        r.State.Layout,
		QualityScore:      r.QualityScore,
		Metrics:           r.Metrics,
		UnassignedMembers: r.Unassigned,
		Source:            r.Source,
	}
	if out.UnassignedMembers == nil {
		out.UnassignedMembers = []string{}
	}
	for _, a := range r.State.Assignments() {
		rec := a.Pos.Record()
		out.Seats = append(out.Seats, seatJSON{MemberID: a.MemberID, MemberName: a.MemberName, Row: rec.Row, Col: rec.Col, Part: a.Part})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a result, rejecting seats outside the grid or seats
// claimed twice.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("recommend: decode result: %w", err)
	}
	s := arrangement.NewState(in.GridLayout)
	for _, seat := range in.Seats {
		pos := grid.FromRecord(grid.Record{Row: seat.Row, Col: seat.Col})
		if pos.Row < 0 || pos.Row >= in.GridLayout.Rows || pos.Col < 0 || pos.Col >= grid.MaxCapacity {
			return fmt.Errorf("recommend: decode result: seat %s: %w", pos.Key(), grid.ErrInvalidPosition)
		}
		if _, taken := s.At(pos); taken {
			return fmt.Errorf("recommend: decode result: seat %s: %w", pos.Key(), arrangement.ErrSeatOccupied)
		}
		s.Set(arrangement.Assignment{MemberID: seat.MemberID, MemberName: seat.MemberName, Part: seat.Part, Pos: pos})
	}
	*r = Result{
		State:        s,
		Metrics:      in.Metrics,
		QualityScore: in.QualityScore,
		Unassigned:   in.UnassignedMembers,
		Source:       in.Source,
	}
	return nil
}
