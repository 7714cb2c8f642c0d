package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/tennisradar/internal/store"
	"github.com/elonfeng/tennisradar/pkg/alert"
	"github.com/elonfeng/tennisradar/pkg/engine"
	"github.com/elonfeng/tennisradar/pkg/source"
	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// ErrNothingCollected is returned when no source produced a table.
var ErrNothingCollected = errors.New("no tables collected")

// Result describes one collection run.
type Result struct {
	Run    *store.Run     `json:"run"`
	Counts map[string]int `json:"counts"`
	Movers []engine.Row   `json:"movers"`
	// Partial holds per-source failures of a run that still saved data.
	Partial string `json:"partial_errors,omitempty"`

	Tables *tennis.Tables `json:"-"`
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	RequestDelay time.Duration
	DataDir      string // CSV export directory; empty disables export
	MinMovement  int
}

// Collector runs the collection pipeline: fetch, clean, export, persist
// and notify.
type Collector struct {
	sources  []source.Source
	store    store.Store
	alertMgr *alert.Manager
	opts     CollectorOptions
	logger   *zap.Logger
}

// NewCollector creates a collector. store and alertMgr may be nil.
func NewCollector(sources []source.Source, s store.Store, alertMgr *alert.Manager, opts CollectorOptions, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MinMovement <= 0 {
		opts.MinMovement = 5
	}
	return &Collector{
		sources:  sources,
		store:    s,
		alertMgr: alertMgr,
		opts:     opts,
		logger:   logger,
	}
}

// Collect runs every source once. Per-source failures are tolerated as long
// as at least one table was collected; they are recorded on the run.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	tables, collectErr := source.CollectAll(ctx, c.sources, c.opts.RequestDelay, c.logger)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !anyPresent(tables) {
		if collectErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNothingCollected, collectErr)
		}
		return nil, ErrNothingCollected
	}

	tables.Clean()
	res := &Result{Tables: tables, Counts: tables.Counts(), Movers: []engine.Row{}}
	if collectErr != nil {
		res.Partial = collectErr.Error()
	}

	if c.opts.DataDir != "" {
		if err := tables.WriteDir(c.opts.DataDir); err != nil {
			return nil, fmt.Errorf("export csv: %w", err)
		}
		c.logger.Info("exported csv", zap.String("dir", c.opts.DataDir))
	}

	if c.store != nil {
		run, err := c.store.SaveSnapshot(ctx, tables, collectErr)
		if err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		res.Run = run
		c.logger.Info("snapshot saved", zap.String("run_id", run.ID), zap.Int("rankings", run.RankingCount))
	}

	view, err := engine.BuildView(tables)
	if err != nil {
		// Rankings without competitors can still be stored; they just
		// cannot be joined for alerts.
		c.logger.Warn("skipping movers", zap.Error(err))
		return res, nil
	}
	res.Movers = engine.NotableMovers(view, c.opts.MinMovement)
	c.notify(ctx, res)
	return res, nil
}

func (c *Collector) notify(ctx context.Context, res *Result) {
	if len(res.Movers) == 0 || !c.alertMgr.HasNotifiers() {
		return
	}

	n := &alert.Notification{
		Title:  fmt.Sprintf("%d notable ranking movers", len(res.Movers)),
		Body:   fmt.Sprintf("Rankings moved by at least %d places in the latest collection.", c.opts.MinMovement),
		Movers: make([]alert.Mover, 0, len(res.Movers)),
	}
	if res.Run != nil {
		n.RunID = res.Run.ID
	}
	for _, r := range res.Movers {
		n.Movers = append(n.Movers, alert.Mover{
			CompetitorID: r.CompetitorID,
			Name:         display(r.Name),
			Country:      display(r.Country),
			Rank:         r.Rank,
			Movement:     r.Movement,
			Points:       r.Points,
		})
	}

	if err := c.alertMgr.Broadcast(ctx, n); err != nil {
		c.logger.Error("alert broadcast failed", zap.Error(err))
		return
	}
	c.logger.Info("alerted movers", zap.Int("movers", len(n.Movers)))

	if c.store != nil && res.Run != nil {
		if err := c.store.MarkAlerted(ctx, res.Run.ID); err != nil {
			c.logger.Warn("mark alerted failed", zap.String("run_id", res.Run.ID), zap.Error(err))
			return
		}
		res.Run.Alerted = true
	}
}

func anyPresent(t *tennis.Tables) bool {
	for _, name := range tennis.TableNames() {
		if t.Present(name) {
			return true
		}
	}
	return false
}

func display(s *string) string {
	if s == nil || tennis.IsNull(*s) {
		return tennis.NA
	}
	return *s
}
