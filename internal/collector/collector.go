package collector

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ZA27101977/stocktrader/internal/model"
	"github.com/ZA27101977/stocktrader/internal/timeframe"
)

// SourceSynthetic names the provenance of generated series.
const SourceSynthetic = "synthetic"

// Result is the outcome of Source.Acquire: either a LiveResult or a SimulatedResult.
type Result interface {
	Bars() model.Series
	isResult()
}

// LiveResult carries a series normalized from the upstream provider.
type LiveResult struct {
	Series   model.Series
	Provider string
}

// SimulatedResult carries a generated series and the reason live data was not used.
type SimulatedResult struct {
	Series model.Series
	Cause  error
}

func (r LiveResult) Bars() model.Series      { return r.Series }
func (r SimulatedResult) Bars() model.Series { return r.Series }
func (LiveResult) isResult()                 {}
func (SimulatedResult) isResult()            {}

// Source combines a live Fetcher with the synthetic Generator fallback.
type Source struct {
	Fetcher   Fetcher
	Generator *Generator
	Length    int // synthetic series length
}

// NewSource creates a new Source. A nil fetcher means every request is simulated.
func NewSource(fetcher Fetcher, gen *Generator, length int) *Source {
	if gen == nil {
		gen = NewGenerator()
	}
	if length <= 0 {
		length = DefaultSyntheticLength
	}
	return &Source{Fetcher: fetcher, Generator: gen, Length: length}
}

// Acquire fetches live bars and degrades to a synthetic series on any upstream failure.
// seedPrice anchors the synthetic walk; zero selects the generator default.
func (s *Source) Acquire(ctx context.Context, symbol string, tf timeframe.Timeframe, seedPrice float64) Result {
	if s.Fetcher == nil {
		return s.simulate(symbol, tf, seedPrice, errors.New("no upstream configured"))
	}
	series, err := s.Fetcher.FetchSeries(ctx, symbol, tf)
	if err == nil && len(series) == 0 {
		err = errors.New("empty series")
	}
	if err != nil {
		return s.simulate(symbol, tf, seedPrice, err)
	}
	return LiveResult{Series: series, Provider: s.Fetcher.Name()}
}

func (s *Source) simulate(symbol string, tf timeframe.Timeframe, seedPrice float64, cause error) Result {
	log.Warn().Err(cause).
		Str("symbol", symbol).
		Str("timeframe", string(tf.ID)).
		Msg("live data unavailable, using synthetic series")
	return SimulatedResult{
		Series: s.Generator.Generate(seedPrice, tf, s.Length),
		Cause:  cause,
	}
}
