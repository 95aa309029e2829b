package stats

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/zulandar/seatplan/internal/grid"
	"github.com/zulandar/seatplan/internal/recommend"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func seats(id string, pos ...grid.Position) []PastSeat {
	out := make([]PastSeat, len(pos))
	for i, p := range pos {
		out[i] = PastSeat{MemberID: id, ArrangementID: uint(i + 1), Pos: p}
	}
	return out
}

func at(row, col int) grid.Position { return grid.Position{Row: row, Col: col} }

func TestCompute(t *testing.T) {
	var history []PastSeat
	history = append(history, seats("steady", at(0, 3), at(0, 3), at(0, 4), at(0, 3), at(0, 2))...)
	history = append(history, seats("wander", at(0, 0), at(2, 9), at(1, 4), at(2, 1))...)
	history = append(history, seats("new", at(3, 3), at(3, 3))...)

	got := Compute(history, DefaultConfig())
	want := []recommend.Preference{
		{MemberID: "steady", PreferredRow: 0, PreferredCol: 3, Appearances: 5, RowConsistency: 1, ColConsistency: 1, IsFixed: true},
		{MemberID: "wander", PreferredRow: 2, PreferredCol: 4, Appearances: 4, RowConsistency: 0.5, ColConsistency: 0.25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compute mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_RowTieKeepsFirstSeen(t *testing.T) {
	got := Compute(seats("m", at(4, 1), at(2, 1), at(2, 1), at(4, 1)), DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].PreferredRow != 4 {
		t.Errorf("PreferredRow = %d, want 4", got[0].PreferredRow)
	}
	if got[0].IsFixed {
		t.Error("a 50% row consistency should not be fixed")
	}
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	got := Compute(seats("m", at(1, 2), at(1, 3), at(1, 2), at(1, 3)), DefaultConfig())
	if got[0].PreferredCol != 3 {
		t.Errorf("PreferredCol = %d, want 3", got[0].PreferredCol)
	}
}

func TestCompute_CustomThresholds(t *testing.T) {
	history := seats("m", at(1, 1), at(1, 1))
	if got := Compute(history, DefaultConfig()); len(got) != 0 {
		t.Errorf("two appearances produced %d preferences, want 0", len(got))
	}
	got := Compute(history, Config{MinAppearances: 2, HighConsistency: 0.9, ColTolerance: 1})
	if len(got) != 1 || !got[0].IsFixed {
		t.Errorf("got %+v, want one fixed preference", got)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]recommend.Preference{
		{RowConsistency: 1, ColConsistency: 1, IsFixed: true},
		{RowConsistency: 0.5, ColConsistency: 0},
	})
	want := Summary{Members: 2, Fixed: 1, AvgRowConsistency: 0.75, AvgColConsistency: 0.5}
	if diff := cmp.Diff(want, s, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
	if got := Summarize(nil); got != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", got)
	}
}

type fakeRepo struct {
	history  []PastSeat
	loadErr  error
	lookback int
	stored   []recommend.Preference
}

func (f *fakeRepo) RecentSeats(_ context.Context, n int) ([]PastSeat, error) {
	f.lookback = n
	return f.history, f.loadErr
}

func (f *fakeRepo) UpsertStatistics(_ context.Context, prefs []recommend.Preference) error {
	f.stored = prefs
	return nil
}

func TestJob_Run(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	repo := &fakeRepo{history: seats("steady", at(0, 3), at(0, 3), at(0, 3))}
	job := &Job{Repo: repo, Config: DefaultConfig(), Lookback: 12, Log: zap.New(core)}

	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.lookback != 12 {
		t.Errorf("lookback = %d, want 12", repo.lookback)
	}
	if len(repo.stored) != 1 || repo.stored[0].MemberID != "steady" {
		t.Errorf("stored = %+v", repo.stored)
	}
	if sum.Fixed != 1 || math.Abs(sum.AvgRowConsistency-1) > 1e-9 {
		t.Errorf("summary = %+v", sum)
	}
	if logs.FilterMessage("preferred seats recomputed").Len() != 1 {
		t.Errorf("expected a completion log entry, got %v", logs.All())
	}
}

func TestJob_RunLoadError(t *testing.T) {
	boom := errors.New("db down")
	repo := &fakeRepo{loadErr: boom}
	_, err := (&Job{Repo: repo}).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if repo.stored != nil {
		t.Error("nothing should be stored when loading fails")
	}
}

func TestNewScheduler(t *testing.T) {
	job := &Job{Repo: &fakeRepo{}}
	if _, err := NewScheduler("not a cron expr", job, nil); err == nil {
		t.Error("expected error for an invalid expression")
	}
	s, err := NewScheduler("", job, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s, err := NewScheduler("* * * * *", &Job{Repo: &fakeRepo{}}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParser_Default(t *testing.T) {
	sched, err := Parser.Parse(DefaultSchedule)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) // Sunday
	want := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if got := sched.Next(from); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}
