package protocol

import (
	"context"
	"fmt"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/status"
	"go.uber.org/zap"
)

// SeedReport summarizes one Seed run.
type SeedReport struct {
	Scanned int
	Seeded  int
	Failed  int
}

// Seed writes the default status for every user that has none.
//
// Existing values are never overwritten, whatever they are. A failure for
// one user is logged and counted and the walk continues. Errors are
// returned only when users cannot be listed or ctx ends mid-walk; in the
// latter case the report covers the users handled so far.
func (s *Service) Seed(ctx context.Context) (SeedReport, error) {
	var rep SeedReport

	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list user ids: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("ninja status seed interrupted",
				zap.Int("scanned", rep.Scanned),
				zap.Int("remaining", len(ids)-rep.Scanned),
				zap.Error(err))
			return rep, fmt.Errorf("seed interrupted after %d of %d users: %w", rep.Scanned, len(ids), err)
		}
		rep.Scanned++

		v, _, err := s.meta.Get(ctx, id, status.MetaKey)
		if err != nil {
			rep.Failed++
			s.logger.Warn("seed: failed to read ninja status", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		if v != "" {
			continue
		}

		if _, err := s.meta.Set(ctx, id, status.MetaKey, status.Default()); err != nil {
			rep.Failed++
			s.logger.Warn("seed: failed to write ninja status", zap.Int64("user_id", id), zap.Error(err))
			continue
		}
		rep.Seeded++
	}

	s.logger.Info("ninja status seed complete",
		zap.Int("scanned", rep.Scanned),
		zap.Int("seeded", rep.Seeded),
		zap.Int("failed", rep.Failed))
	return rep, nil
}
