package pricehistory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stockcast/internal/contracts"
	"github.com/wonny/stockcast/pkg/redis"
)

// Source is an upstream daily price provider (Yahoo chart API)
type Source interface {
	FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PricePoint, error)
}

// Accessor fetches, cleans and caches close-price series
// ⭐ SSOT: 가격 시계열은 이 Accessor를 통해서만 조회
type Accessor struct {
	source Source
	cache  *redis.Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewAccessor creates an accessor; cache may be nil
func NewAccessor(source Source, cache *redis.Cache, ttl time.Duration, log zerolog.Logger) *Accessor {
	return &Accessor{
		source: source,
		cache:  cache,
		ttl:    ttl,
		log:    log.With().Str("component", "pricehistory.accessor").Logger(),
	}
}

// History returns the sorted, de-duplicated closes of ticker in [start, end].
// Upstream failures are wrapped with contracts.ErrUpstreamData.
func (a *Accessor) History(ctx context.Context, ticker string, start, end time.Time) (*contracts.PriceSeries, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%s: end %s before start %s", ticker, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	fetch := func() ([]contracts.PricePoint, error) {
		raw, err := a.source.FetchDaily(ctx, ticker, start, end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", ticker, contracts.ErrUpstreamData, err)
		}
		return Normalize(raw, start, end), nil
	}

	points, err := a.cached(ctx, ticker, start, end, fetch)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w: %w", ticker, contracts.ErrUpstreamData, contracts.ErrNoData)
	}

	return &contracts.PriceSeries{Ticker: ticker, Points: points}, nil
}

// cached runs fetch through the redis cache; a broken cache falls back to fetch
func (a *Accessor) cached(ctx context.Context, ticker string, start, end time.Time, fetch func() ([]contracts.PricePoint, error)) ([]contracts.PricePoint, error) {
	if a.cache == nil || a.ttl <= 0 {
		return fetch()
	}

	var points []contracts.PricePoint
	var fetchErr error
	err := a.cache.GetOrSet(ctx, redis.SeriesKey(ticker, start, end), &points, a.ttl, func() (interface{}, error) {
		p, err := fetch()
		fetchErr = err
		return p, err
	})
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("price cache unavailable, fetching directly")
		return fetch()
	}
	return points, nil
}

// Normalize sorts by date, keeps the last value per date, drops
// non-positive / non-finite closes and points outside [start, end] (by date).
func Normalize(points []contracts.PricePoint, start, end time.Time) []contracts.PricePoint {
	from := contracts.DateOf(start)
	to := contracts.DateOf(end)

	byDate := make(map[time.Time]float64, len(points))
	for _, p := range points {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			continue
		}
		d := contracts.DateOf(p.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		byDate[d] = p.Close
	}

	out := make([]contracts.PricePoint, 0, len(byDate))
	for d, c := range byDate {
		out = append(out, contracts.PricePoint{Date: d, Close: c})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
