package scheduler

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/harvest"
	"github.com/trendwatch/trendwatch/internal/models"
	"github.com/trendwatch/trendwatch/internal/orchestrator"
)

// Scheduler drives the periodic harvest and discovery-run jobs from cron
// expressions. A job with an empty expression is disabled.
type Scheduler struct {
	cron      *cron.Cron
	harvester *harvest.Harvester
	scorer    CandidateScorer
	orch      *orchestrator.Orchestrator
	cfg       config.SchedulerConfig
	logger    *slog.Logger
}

// CandidateScorer classifies pending candidates in batches.
type CandidateScorer interface {
	ScorePending(ctx context.Context, limit int) (int, error)
}

// New creates a scheduler. Call Start to register and run the jobs.
func New(harvester *harvest.Harvester, scorer CandidateScorer, orch *orchestrator.Orchestrator, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		harvester: harvester,
		scorer:    scorer,
		orch:      orch,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start validates the configured cron expressions, registers the jobs and
// starts the cron loop. It returns an error if any expression is invalid.
func (s *Scheduler) Start(batchSize int) error {
	if s.cfg.HarvestCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.HarvestCron, func() { s.runHarvest(batchSize) }); err != nil {
			return fmt.Errorf("invalid harvest cron %q: %w", s.cfg.HarvestCron, err)
		}
		s.logger.Info("scheduled harvest job", "cron", s.cfg.HarvestCron)
	}

	if s.cfg.RunCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.RunCron, s.runDiscovery); err != nil {
			return fmt.Errorf("invalid run cron %q: %w", s.cfg.RunCron, err)
		}
		s.logger.Info("scheduled discovery run job", "cron", s.cfg.RunCron)
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runHarvest(batchSize int) {
	ctx := context.Background()

	result, err := s.harvester.Harvest(ctx)
	if err != nil {
		s.logger.Error("scheduled harvest failed", "error", err)
		return
	}

	scored, err := s.scorer.ScorePending(ctx, batchSize)
	if err != nil {
		s.logger.Error("scheduled candidate scoring failed", "error", err)
	}

	s.logger.Info("scheduled harvest finished",
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"scored", scored,
	)
}

func (s *Scheduler) runDiscovery() {
	ctx := context.Background()

	run, err := s.orch.StartRun(ctx, "scheduled", nil, models.RunOptions{})
	if err != nil {
		s.logger.Error("failed to start scheduled run", "error", err)
		return
	}

	s.logger.Info("scheduled run started", "run_id", run.ID, "tasks", run.TaskCounts.Total)

	if err := s.orch.Execute(ctx, run.ID); err != nil {
		s.logger.Error("scheduled run failed", "run_id", run.ID, "error", err)
	}
}
