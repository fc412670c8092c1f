package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coinpulse/internal/models"
)

// Notices attached to quotes that did not come from a live fetch
const (
	NoticeStale = "stale data"
	NoticeDemo  = "demo data"
)

var (
	ErrUnknownAsset = errors.New("unknown asset")
	ErrNoPrice      = errors.New("upstream quote has no price")
)

// Source tags where a quote came from.
type Source int

const (
	SourceFresh Source = iota // live fetch or unexpired cache entry
	SourceStale               // last known good quote after a failed fetch
	SourceDemo                // static default, nothing ever fetched
)

func (s Source) String() string {
	switch s {
	case SourceFresh:
		return "fresh"
	case SourceStale:
		return "stale"
	case SourceDemo:
		return "demo"
	default:
		return "unknown"
	}
}

// Result is a resolved quote with its provenance.
type Result struct {
	Asset      string
	Quote      models.Quote
	Source     Source
	Cached     bool      // served from the freshness cache without a network call
	Notice     string    // empty for fresh quotes
	CapturedAt time.Time // when the quote was originally fetched, zero for demo data
	FetchErr   error     // the live fetch failure behind a stale or demo result
}

// DataSource is the upstream market data provider.
type DataSource interface {
	FetchCoinData(ctx context.Context, coinID string) (*models.CoinGeckoResponse, error)
	FetchGlobal(ctx context.Context) (*models.GlobalResponse, error)
}

// QuoteStore is satisfied by both cache.Freshness and cache.Fallback.
type QuoteStore interface {
	Get(key string) (models.Entry[models.Quote], bool)
	PutAt(key string, q models.Quote, at time.Time)
}

// Aggregator resolves quotes through the freshness cache, the live
// upstream, the fallback store and finally the static demo quotes.
type Aggregator struct {
	source   DataSource
	fresh    QuoteStore
	fallback QuoteStore
	demo     map[string]models.Quote
	assets   map[string]models.Coin
	logger   *slog.Logger
	now      func() time.Time
}

// NewAggregator creates a new market data aggregator. A nil demo map uses
// models.DefaultDemoQuotes.
func NewAggregator(source DataSource, fresh, fallback QuoteStore, demo map[string]models.Quote, logger *slog.Logger) *Aggregator {
	if demo == nil {
		demo = models.DefaultDemoQuotes()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		source:   source,
		fresh:    fresh,
		fallback: fallback,
		demo:     demo,
		assets:   models.Assets,
		logger:   logger,
		now:      time.Now,
	}
}

// CacheKey is the quote cache key for an asset.
func CacheKey(asset string) string {
	return "quote:" + asset
}

// FetchQuote always yields a renderable quote for a supported asset. The only
// error is ErrUnknownAsset.
func (a *Aggregator) FetchQuote(ctx context.Context, asset string) (Result, error) {
	coin, ok := a.assets[asset]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}
	key := CacheKey(asset)

	if entry, ok := a.fresh.Get(key); ok {
		a.logger.Debug("quote cache hit", "asset", asset, "age", a.now().Sub(entry.CapturedAt))
		return Result{
			Asset:      asset,
			Quote:      entry.Payload,
			Source:     SourceFresh,
			Cached:     true,
			CapturedAt: entry.CapturedAt,
		}, nil
	}

	quote, err := a.fetchLive(ctx, coin)
	if err == nil {
		// both tiers and the result share one capture time
		capturedAt := a.now()
		a.fresh.PutAt(key, quote, capturedAt)
		a.fallback.PutAt(key, quote, capturedAt)
		a.logger.Info("quote fetched", "asset", asset, "source", "coingecko", "status", "success",
			"price", quote.Price, "dominance", quote.Dominance)
		return Result{
			Asset:      asset,
			Quote:      quote,
			Source:     SourceFresh,
			CapturedAt: capturedAt,
		}, nil
	}

	a.logger.Warn("quote fetch failed", "asset", asset, "source", "coingecko", "status", "failed", "error", err)

	if entry, ok := a.fallback.Get(key); ok {
		a.logger.Info("serving last known quote", "asset", asset, "captured_at", entry.CapturedAt)
		return Result{
			Asset:      asset,
			Quote:      entry.Payload,
			Source:     SourceStale,
			Notice:     NoticeStale,
			CapturedAt: entry.CapturedAt,
			FetchErr:   err,
		}, nil
	}

	a.logger.Info("serving demo quote", "asset", asset)
	return Result{
		Asset:    asset,
		Quote:    a.demo[asset],
		Source:   SourceDemo,
		Notice:   NoticeDemo,
		FetchErr: err,
	}, nil
}

// fetchLive issues the coin request, then the global request for dominance.
// Only the first request can fail the fetch.
func (a *Aggregator) fetchLive(ctx context.Context, coin models.Coin) (models.Quote, error) {
	resp, err := a.source.FetchCoinData(ctx, coin.ID)
	if err != nil {
		return models.Quote{}, err
	}

	md := resp.MarketData
	if md.Price.USD <= 0 {
		return models.Quote{}, fmt.Errorf("coin %s: %w", coin.ID, ErrNoPrice)
	}
	quote := models.Quote{
		Name:              resp.Name,
		Symbol:            strings.ToUpper(resp.Symbol),
		Price:             md.Price.USD,
		Change24h:         md.PriceChange24h.USD,
		ChangePct24h:      md.PriceChangePercentage24h,
		MarketCap:         md.MarketCap.USD,
		Volume24h:         md.Volume24h.USD,
		CirculatingSupply: md.CirculatingSupply,
	}

	quote.Dominance = a.dominance(ctx, coin)
	return quote, nil
}

func (a *Aggregator) dominance(ctx context.Context, coin models.Coin) float64 {
	global, err := a.source.FetchGlobal(ctx)
	if err != nil {
		a.logger.Warn("global fetch failed, dominance defaults to 0", "asset", coin.ID, "error", err)
		return 0
	}

	if coin.DominanceKey == "" {
		return 0
	}
	pct, ok := global.Data.MarketCapPercentage[coin.DominanceKey]
	if !ok || pct < 0 || pct > 100 {
		return 0
	}
	return pct
}
