// Package marketdata implements the MarketDataFeed: pull-based
// price/orderbook reads across DEX adapters, each gated by the
// RateGovernor so outbound calls never bypass the shared limiter, plus a
// direct Observe path for folding in prices agents already obtained as
// part of their own executions.
package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/r3e-network/flashcore/internal/errs"
	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/stats"
)

// venuePaceLimit is the minimum spacing between reads to the same venue,
// independent of the shared RateGovernor's daily/per-minute/burst budget.
// It smooths bursts against a single venue's own rate limits rather than
// the RPC endpoint's aggregate quota.
const venuePaceLimit = 200 * time.Millisecond

// Quote is an observed price at a venue for a pair.
type Quote struct {
	Venue     string
	Pair      string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Level is one price/size rung of an order book.
type Level struct {
	Price float64
	Size  float64
}

// OrderBook is a snapshot of one venue/pair's visible liquidity.
type OrderBook struct {
	Venue string
	Pair  string
	Bids  []Level
	Asks  []Level
}

// Adapter fetches quotes and order books from one DEX or venue.
type Adapter interface {
	Name() string
	FetchPrice(ctx context.Context, pair string) (Quote, error)
	FetchOrderBook(ctx context.Context, pair string) (OrderBook, error)
}

const historyDepth = 200

// Feed is the MarketDataFeed: a registry of venue adapters, each call
// gated by the shared RateGovernor at Low priority (market data reads never
// preempt trading/settlement traffic).
type Feed struct {
	governor *ratelimit.Governor
	mu       sync.RWMutex
	adapters map[string]Adapter
	pacers   map[string]*rate.Limiter // venue -> per-venue read pacer
	history  map[string][]float64     // pair -> recent prices, oldest first
	volumes  map[string]float64       // pair -> most recently observed volume
}

// New constructs a Feed with the given adapters, keyed by their Name().
func New(governor *ratelimit.Governor, adapters ...Adapter) *Feed {
	f := &Feed{
		governor: governor,
		adapters: make(map[string]Adapter, len(adapters)),
		pacers:   make(map[string]*rate.Limiter, len(adapters)),
		history:  make(map[string][]float64),
		volumes:  make(map[string]float64),
	}
	for _, a := range adapters {
		f.adapters[a.Name()] = a
	}
	return f
}

func (f *Feed) adapter(venue string) (Adapter, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.adapters[venue]
	if !ok {
		return nil, errs.InvalidParams("unknown venue: " + venue)
	}
	return a, nil
}

// pacer returns the per-venue read limiter, creating one on first use.
func (f *Feed) pacer(venue string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pacers[venue]
	if !ok {
		p = rate.NewLimiter(rate.Every(venuePaceLimit), 1)
		f.pacers[venue] = p
	}
	return p
}

// Price fetches the current price for pair at venue, gated by the
// RateGovernor at Low priority, and records it into the pair's rolling
// history for later volatility/volume aggregation.
func (f *Feed) Price(ctx context.Context, venue, pair string) (Quote, error) {
	a, err := f.adapter(venue)
	if err != nil {
		return Quote{}, err
	}
	if err := f.pacer(venue).Wait(ctx); err != nil {
		return Quote{}, errs.RPCTimeout("fetch_price", err)
	}
	if !f.governor.Check(ratelimit.Low) {
		return Quote{}, errs.RateLimitDenied(ratelimit.Low.String(), "next-window-reset")
	}

	quote, err := a.FetchPrice(ctx, pair)
	f.governor.Record(ratelimit.Low, err == nil)
	if err != nil {
		return Quote{}, errs.RPCTimeout("fetch_price", err)
	}

	f.record(pair, quote.Price, quote.Volume)
	return quote, nil
}

// OrderBook fetches the current order book for pair at venue, gated the
// same way as Price.
func (f *Feed) OrderBook(ctx context.Context, venue, pair string) (OrderBook, error) {
	a, err := f.adapter(venue)
	if err != nil {
		return OrderBook{}, err
	}
	if err := f.pacer(venue).Wait(ctx); err != nil {
		return OrderBook{}, errs.RPCTimeout("fetch_order_book", err)
	}
	if !f.governor.Check(ratelimit.Low) {
		return OrderBook{}, errs.RateLimitDenied(ratelimit.Low.String(), "next-window-reset")
	}

	book, err := a.FetchOrderBook(ctx, pair)
	f.governor.Record(ratelimit.Low, err == nil)
	if err != nil {
		return OrderBook{}, errs.RPCTimeout("fetch_order_book", err)
	}
	return book, nil
}

// Observe folds an already-obtained price/volume reading (e.g. a fill price
// from an agent's own execution) into pair's rolling history, without going
// through the adapter/governor path Price uses for a fresh RPC read.
func (f *Feed) Observe(pair string, price, volume float64) {
	f.record(pair, price, volume)
}

func (f *Feed) record(pair string, price, volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hist := append(f.history[pair], price)
	if len(hist) > historyDepth {
		hist = hist[len(hist)-historyDepth:]
	}
	f.history[pair] = hist
	f.volumes[pair] = volume
}

// Volatility returns the annualized volatility of pair's recorded price
// history, using internal/stats.
func (f *Feed) Volatility(pair string) float64 {
	f.mu.RLock()
	hist := append([]float64(nil), f.history[pair]...)
	f.mu.RUnlock()
	return stats.AnnualizedVolatility(stats.Returns(hist))
}

// PairVolumes returns a snapshot copy of the most recently observed volume
// per pair. The result is a map, so its iteration order is not defined.
func (f *Feed) PairVolumes() map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]float64, len(f.volumes))
	for pair, vol := range f.volumes {
		out[pair] = vol
	}
	return out
}

// Volatilities returns the annualized volatility for every pair with
// recorded history, in a deterministic (sorted by pair) order.
func (f *Feed) Volatilities() []float64 {
	f.mu.RLock()
	pairs := make([]string, 0, len(f.history))
	for pair := range f.history {
		pairs = append(pairs, pair)
	}
	f.mu.RUnlock()
	sort.Strings(pairs)

	out := make([]float64, 0, len(pairs))
	for _, pair := range pairs {
		out = append(out, f.Volatility(pair))
	}
	return out
}
