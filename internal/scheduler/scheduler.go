package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs periodic collection.
type Scheduler struct {
	collector  *Collector
	collectInt time.Duration
	logger     *zap.Logger
	onCollect  func(*Result)
}

// New creates a new scheduler.
func New(collector *Collector, collectInt time.Duration, logger *zap.Logger) *Scheduler {
	if collectInt <= 0 {
		collectInt = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		collector:  collector,
		collectInt: collectInt,
		logger:     logger.Named("scheduler"),
	}
}

// OnCollect registers fn to receive every successful collection result.
func (s *Scheduler) OnCollect(fn func(*Result)) {
	s.onCollect = fn
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.collectInt)
	defer ticker.Stop()

	// Run immediately on start.
	s.logger.Info("initial collection")
	s.collect(ctx)

	s.logger.Info("running", zap.Duration("collect_interval", s.collectInt))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopped")
			return ctx.Err()
		case <-ticker.C:
			s.collect(ctx)
		}
	}
}

func (s *Scheduler) collect(ctx context.Context) {
	start := time.Now()
	res, err := s.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("collection failed", zap.Error(err))
		}
		return
	}

	fields := []zap.Field{
		zap.Duration("took", time.Since(start)),
		zap.Any("counts", res.Counts),
		zap.Int("movers", len(res.Movers)),
	}
	if res.Run != nil {
		fields = append(fields, zap.String("run_id", res.Run.ID))
	}
	if res.Partial != "" {
		fields = append(fields, zap.String("partial_errors", res.Partial))
	}
	s.logger.Info("collection complete", fields...)

	if s.onCollect != nil {
		s.onCollect(res)
	}
}
