package emergency

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/part"
)

// ChangeType distinguishes removals from additions.
type ChangeType string

const (
	Unavailable ChangeType = "UNAVAILABLE"
	Available   ChangeType = "AVAILABLE"
)

// RowCapacityChange records a capacity edit made during an operation.
type RowCapacityChange struct {
	Row    int
	Before int
	After  int
}

// Record is the audit entry of one emergency operation. Records are created
// once and never modified.
type Record struct {
	ID          string
	Timestamp   time.Time
	Type        ChangeType
	MemberID    string
	MemberName  string
	Part        part.Part
	ProcessMode string
	RemovedFrom *grid.Position
	AddedTo     *grid.Position
	Steps       []Step
	// MovedMemberCount counts other members whose seat changed.
	MovedMemberCount int
	GridChanges      []RowCapacityChange
}

type recordJSON struct {
	ID               string           `json:"id"`
	Timestamp        time.Time        `json:"timestamp"`
	Type             ChangeType       `json:"type"`
	MemberID         string           `json:"memberId"`
	MemberName       string           `json:"memberName"`
	Part             part.Part        `json:"part"`
	ProcessMode      string           `json:"processMode"`
	RemovedFrom      *grid.Record     `json:"removedFrom,omitempty"`
	AddedTo          *grid.Record     `json:"addedTo,omitempty"`
	CascadeChanges   []stepJSON       `json:"cascadeChanges"`
	MovedMemberCount int              `json:"movedMemberCount"`
	GridChanges      []gridChangeJSON `json:"gridChanges,omitempty"`
}

type gridChangeJSON struct {
	Row    int `json:"row"`
	Before int `json:"before"`
	After  int `json:"after"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:               r.ID,
		Timestamp:        r.Timestamp,
		Type:             r.Type,
		MemberID:         r.MemberID,
		MemberName:       r.MemberName,
		Part:             r.Part,
		ProcessMode:      r.ProcessMode,
		CascadeChanges:   marshalSteps(r.Steps),
		MovedMemberCount: r.MovedMemberCount,
	}
	if r.RemovedFrom != nil {
		out.RemovedFrom = recordOf(*r.RemovedFrom)
	}
	if r.AddedTo != nil {
		out.AddedTo = recordOf(*r.AddedTo)
	}
	for _, g := range r.GridChanges {
		out.GridChanges = append(out.GridChanges, gridChangeJSON{Row: g.Row + 1, Before: g.Before, After: g.After})
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("emergency: decode record: %w", err)
	}
	steps, err := unmarshalSteps(in.CascadeChanges)
	if err != nil {
		return err
	}
	*r = Record{
		ID:               in.ID,
		Timestamp:        in.Timestamp,
		Type:             in.Type,
		MemberID:         in.MemberID,
		MemberName:       in.MemberName,
		Part:             in.Part,
		ProcessMode:      in.ProcessMode,
		Steps:            steps,
		MovedMemberCount: in.MovedMemberCount,
	}
	if in.RemovedFrom != nil {
		p := grid.FromRecord(*in.RemovedFrom)
		r.RemovedFrom = &p
	}
	if in.AddedTo != nil {
		p := grid.FromRecord(*in.AddedTo)
		r.AddedTo = &p
	}
	for _, g := range in.GridChanges {
		r.GridChanges = append(r.GridChanges, RowCapacityChange{Row: g.Row - 1, Before: g.Before, After: g.After})
	}
	return nil
}

// Log is an append-only list of records.
type Log struct {
	mu      sync.Mutex
	records []Record
}

// Append adds r to the log.
func (l *Log) Append(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

// Records returns a copy of the log in insertion order.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	for i, r := range l.records {
		r.Steps = append([]Step(nil), r.Steps...)
		r.GridChanges = append([]RowCapacityChange(nil), r.GridChanges...)
		out[i] = r
	}
	return out
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
