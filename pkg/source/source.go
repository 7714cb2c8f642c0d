package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/tennisradar/pkg/tennis"
)

// Endpoint is a Sportradar tennis resource path relative to the base URL.
type Endpoint string

const (
	EndpointCompetitions    Endpoint = "competitions.json"
	EndpointComplexes       Endpoint = "complexes.json"
	EndpointDoublesRankings Endpoint = "doubles-competitor-rankings.json"
)

// fixtureName returns the file used when the endpoint is unavailable.
func (e Endpoint) fixtureName() string {
	switch e {
	case EndpointDoublesRankings:
		return "doubles_rankings.json"
	}
	return string(e)
}

// Source is the interface every collector must implement. Collect returns
// the tables it is responsible for; the others stay nil.
type Source interface {
	Name() string
	Collect(ctx context.Context) (*tennis.Tables, error)
}

// All returns the standard collectors in collection order.
func All(client *Client) []Source {
	return []Source{
		NewCompetitions(client),
		NewComplexes(client),
		NewDoublesRankings(client),
	}
}

// CollectAll runs sources in order, pausing delay between requests the way
// the trial API rate limit expects. Failed sources are logged and skipped;
// their errors are joined into the returned error next to the merged tables.
func CollectAll(ctx context.Context, sources []Source, delay time.Duration, logger *zap.Logger) (*tennis.Tables, error) {
	merged := &tennis.Tables{}
	var errs []error

	for i, src := range sources {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return merged, ctx.Err()
			case <-time.After(delay):
			}
		}

		logger.Info("collecting", zap.String("source", src.Name()))
		tables, err := src.Collect(ctx)
		if err != nil {
			logger.Error("collect failed", zap.String("source", src.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		merged.Merge(tables)
		logger.Info("collected", zap.String("source", src.Name()), zap.Any("rows", nonZero(tables.Counts())))
	}

	return merged, errors.Join(errs...)
}

func nonZero(counts map[string]int) map[string]int {
	out := make(map[string]int)
	for k, v := range counts {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}
