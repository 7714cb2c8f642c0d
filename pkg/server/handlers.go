package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elonfeng/tennisradar/internal/store"
	"github.com/elonfeng/tennisradar/pkg/engine"
)

var (
	errNoStore     = errors.New("snapshot store not configured")
	errNoCollector = errors.New("collector not configured")
)

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.current()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"snapshot": snap.hash,
		"rows":     len(snap.view),
	})
}

func (s *Server) handleOverview(c *gin.Context) {
	snap, ok := s.view(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kpis":           engine.OverviewOf(snap.tables),
		"top_categories": engine.CompetitionsPerCategory(snap.tables, 3),
		"top_by_points":  engine.TopByPoints(snap.view, s.opts.LeaderboardSize),
	})
}

func (s *Server) handleRankings(c *gin.Context) {
	_, rows, ok := s.filtered(c)
	if !ok {
		return
	}
	limit, ok := s.intQuery(c, "limit", 0)
	if !ok {
		return
	}

	switch sortBy := c.DefaultQuery("sort", "points"); sortBy {
	case "points":
		rows = engine.TopByPoints(rows, limit)
	case "rank":
		rows = engine.TopByRank(rows, limit)
	default:
		s.fail(c, &engine.InvalidFilterError{Param: "sort", Value: sortBy})
		return
	}
	writeList(c, rows)
}

func (s *Server) handleLeaderboards(c *gin.Context) {
	_, rows, ok := s.filtered(c)
	if !ok {
		return
	}
	limit, ok := s.intQuery(c, "limit", s.opts.LeaderboardSize)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"top_by_points":   engine.TopByPoints(rows, limit),
		"top_by_rank":     engine.TopByRank(rows, limit),
		"category_counts": engine.CategoryCompetitionCounts(rows),
		"countries":       engine.CountrySummaries(rows),
		"count":           len(rows),
	})
}

func (s *Server) handleCountries(c *gin.Context) {
	_, rows, ok := s.filtered(c)
	if !ok {
		return
	}
	writeList(c, engine.CountrySummaries(rows))
}

func (s *Server) handleCategories(c *gin.Context) {
	snap, rows, ok := s.filtered(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ranked":       engine.CategoryCompetitionCounts(rows),
		"competitions": engine.CompetitionsPerCategory(snap.tables, 0),
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	snap, ok := s.view(c)
	if !ok {
		return
	}
	p := engine.SearchParams{
		Name:    c.Query("name"),
		Country: c.Query("country"),
	}
	if p.MinRank, ok = s.intQuery(c, "min_rank", 0); !ok {
		return
	}
	if p.MaxRank, ok = s.intQuery(c, "max_rank", 0); !ok {
		return
	}
	if v := c.Query("min_points"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			s.fail(c, &engine.InvalidFilterError{Param: "min_points", Value: v})
			return
		}
		p.MinPoints = f
	}
	writeList(c, engine.Search(snap.view, p))
}

func (s *Server) handlePlayer(c *gin.Context) {
	snap, ok := s.view(c)
	if !ok {
		return
	}
	name := c.Param("name")
	rows := engine.PlayerDetails(snap.view, name)
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "competitor " + strconv.Quote(name) + " not found"})
		return
	}

	resp := gin.H{"data": rows, "count": len(rows)}
	if s.store != nil {
		history, err := s.store.RankingHistory(c.Request.Context(), rows[0].CompetitorID, 0)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp["history"] = history
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnalysis(c *gin.Context) {
	snap, ok := s.view(c)
	if !ok {
		return
	}
	limit, ok := s.intQuery(c, "limit", s.opts.LeaderboardSize)
	if !ok {
		return
	}
	rankings := snap.tables.Rankings
	c.JSON(http.StatusOK, gin.H{
		"correlation": engine.PointsParticipationCorrelation(rankings),
		"quartiles":   engine.PointsQuartiles(rankings),
		"workload":    engine.Workload(rankings, limit),
	})
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoStore.Error()})
		return
	}
	limit, ok := s.intQuery(c, "limit", 50)
	if !ok {
		return
	}
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeList(c, runs)
}

func (s *Server) handleCollect(c *gin.Context) {
	if s.collector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errNoCollector.Error()})
		return
	}
	res, err := s.collector.Collect(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.SetTables(res.Tables)
	c.JSON(http.StatusOK, res)
}

// view returns the current snapshot, answering the request itself when the
// snapshot could not be joined.
func (s *Server) view(c *gin.Context) (*snapshot, bool) {
	snap := s.current()
	if snap.err != nil {
		s.fail(c, snap.err)
		return nil, false
	}
	return snap, true
}

// filtered applies the query filters to the current view. The snapshot is
// returned so a handler reads every table from the same load.
func (s *Server) filtered(c *gin.Context) (*snapshot, []engine.Row, bool) {
	snap, ok := s.view(c)
	if !ok {
		return nil, nil, false
	}
	f, err := s.filterFromQuery(c)
	if err != nil {
		s.fail(c, err)
		return nil, nil, false
	}
	rows, err := engine.ApplyFilters(snap.view, f)
	if err != nil {
		s.fail(c, err)
		return nil, nil, false
	}
	return snap, rows, true
}

// filterFromQuery starts from the configured defaults. "category" may repeat;
// "categories=none" selects nothing and "categories=all" disables the filter.
func (s *Server) filterFromQuery(c *gin.Context) (engine.Filter, error) {
	f := s.opts.Defaults

	if v, ok := c.GetQuery("tier"); ok {
		tier, err := engine.ParseTier(v)
		if err != nil {
			return f, err
		}
		f.Tier = tier
	}
	if v, ok := c.GetQuery("movement"); ok {
		m, err := engine.ParseMovement(v)
		if err != nil {
			return f, err
		}
		f.Movement = m
	}

	switch v := c.Query("categories"); v {
	case "":
		if names := c.QueryArray("category"); len(names) > 0 {
			f.Categories = engine.OnlyCategories(names...)
		}
	case "none":
		f.Categories = engine.OnlyCategories()
	case "all":
		f.Categories = engine.AnyCategory()
	default:
		return f, &engine.InvalidFilterError{Param: "categories", Value: v}
	}
	return f, nil
}

func (s *Server) intQuery(c *gin.Context, name string, def int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		s.fail(c, &engine.InvalidFilterError{Param: name, Value: v})
		return 0, false
	}
	return n, true
}

func (s *Server) fail(c *gin.Context, err error) {
	var (
		filterErr *engine.InvalidFilterError
		schemaErr *engine.SchemaError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &filterErr):
		status = http.StatusBadRequest
	case errors.As(err, &schemaErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeList[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  data,
		"count": len(data),
	})
}
