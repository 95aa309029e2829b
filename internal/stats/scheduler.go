package stats

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/seatplan/internal/recommend"
	"go.uber.org/zap"
)

// DefaultSchedule runs the job every Monday at 03:00.
const DefaultSchedule = "0 3 * * 1"

// Parser accepts standard 5-field cron expressions.
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Repository is the storage the job reads history from and writes
// preferences to.
type Repository interface {
	RecentSeats(ctx context.Context, arrangements int) ([]PastSeat, error)
	UpsertStatistics(ctx context.Context, prefs []recommend.Preference) error
}

// Job recomputes preferences from the most recent arrangements.
type Job struct {
	Repo     Repository
	Config   Config
	Lookback int
	Log      *zap.Logger
}

// Run loads the history, computes preferences and stores them.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	log := j.Log
	if log == nil {
		log = zap.NewNop()
	}
	history, err := j.Repo.RecentSeats(ctx, j.Lookback)
	if err != nil {
		return Summary{}, fmt.Errorf("stats: load history: %w", err)
	}
	prefs := Compute(history, j.Config)
	if err := j.Repo.UpsertStatistics(ctx, prefs); err != nil {
		return Summary{}, fmt.Errorf("stats: store preferences: %w", err)
	}
	sum := Summarize(prefs)
	log.Info("preferred seats recomputed",
		zap.Int("seatings", len(history)),
		zap.Int("members", sum.Members),
		zap.Int("fixed", sum.Fixed),
	)
	return sum, nil
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	log  *zap.Logger
}

// NewScheduler registers job under the cron expression spec.
func NewScheduler(spec string, job *Job, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	s := &Scheduler{
		cron: cron.New(cron.WithParser(Parser)),
		job:  job,
		log:  log,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("stats: schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.job.Run(context.Background()); err != nil {
		s.log.Error("scheduled statistics run failed", zap.Error(err))
	}
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for a running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("statistics scheduler started", zap.Time("next", e.Next))
	}
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("statistics scheduler stopped")
}
