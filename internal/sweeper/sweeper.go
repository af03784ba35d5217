// Package sweeper periodically finalizes claims whose voting deadline has
// passed. Finalization is permissionless, so the sweeper is pure operational
// convenience: anything it does, any caller could also do by hand.
package sweeper

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/IronJam11/zk-carbon/internal/registry"
)

const sweeperCaller = "finalization-sweeper"

type Sweeper struct {
	service  *registry.Service
	logger   *zap.Logger
	schedule string
	cron     *cron.Cron
}

func New(service *registry.Service, schedule string, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("finalization sweeper started", zap.String("schedule", s.schedule))
	return nil
}

func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx := context.Background()
	ids, err := s.service.ExpiredActiveClaimIDs(ctx)
	if err != nil {
		s.logger.Error("sweep: list expired claims", zap.Error(err))
		return
	}
	for _, id := range ids {
		result, err := s.service.FinalizeVoting(ctx, sweeperCaller, id)
		if err != nil {
			// Another caller may have finalized the claim between the scan
			// and this call.
			if errors.Is(err, registry.ErrClaimNotActive) {
				continue
			}
			s.logger.Error("sweep: finalize claim", zap.Uint64("claim_id", id), zap.Error(err))
			continue
		}
		s.logger.Info("sweep: claim finalized",
			zap.Uint64("claim_id", id),
			zap.String("status", string(result.Status)))
	}
}
