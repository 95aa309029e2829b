package recommend

import (
	"context"

	"go.uber.org/zap"
)

// Service prefers the remote recommender and falls back to the local
// heuristic whenever the remote one fails. The fallback is logged, never
// returned as an error.
type Service struct {
	remote Recommender
	local  Recommender
	log    *zap.Logger
}

// NewService creates a Service. remote may be nil for local-only operation.
func NewService(remote, local Recommender, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{remote: remote, local: local, log: log}
}

// Recommend returns the remote result when available and the local one
// otherwise.
func (s *Service) Recommend(ctx context.Context, req Request) (Result, error) {
	if s.remote != nil {
		res, err := s.remote.Recommend(ctx, req)
		if err == nil {
			res.Source = SourceRemote
			return res, nil
		}
		s.log.Warn("remote recommender failed, using local heuristic",
			zap.Int("members", len(req.Members)),
			zap.Error(err),
		)
	}
	res, err := s.local.Recommend(ctx, req)
	if err != nil {
		return Result{}, err
	}
	res.Source = SourceLocal
	s.log.Debug("local recommendation",
		zap.Int("placed", len(res.State.Seats)),
		zap.Int("unassigned", len(res.Unassigned)),
		zap.Float64("quality", res.QualityScore),
	)
	return res, nil
}
