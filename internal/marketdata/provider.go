// Package marketdata produces market snapshots for catalog instruments.
//
// The shipped provider is synthetic: it stands in for a live feed by deriving
// a baseline price from the instrument identity and applying bounded random
// fluctuation. Generated samples always satisfy high >= max(open, price) and
// low <= min(open, price). A real feed implementation can replace the
// synthetic one behind the same Provider interface; callers must treat fetch
// failure as a first-class error even though the synthetic provider only
// fails on context cancellation.
package marketdata

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/finlens/chartoracle/internal/models"
)

// Provider produces a fresh market snapshot for an instrument.
type Provider interface {
	FetchSnapshot(ctx context.Context, instrument models.Instrument) (models.MarketSnapshot, error)
}

// Baseline prices per instrument class. Unknown instruments fall back to
// defaultBasePrice.
var basePrices = map[string]float64{
	"BTCUSD": 65000,
	"ETHUSD": 3500,
	"XAUUSD": 2300,
	"EURUSD": 1.07,
	"GBPUSD": 1.26,
}

const defaultBasePrice = 100.0

// Near-unity currency pairs move far less than large-value assets.
var forexPairs = map[string]bool{
	"EURUSD": true,
	"GBPUSD": true,
}

// SyntheticProvider generates plausible random market data with simulated
// network latency. It is a pure function of instrument + randomness and holds
// no per-instrument state.
type SyntheticProvider struct {
	latencyMin time.Duration
	latencyMax time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticProvider creates a provider with the given simulated latency
// bounds. Latency of zero disables the delay, which tests rely on.
func NewSyntheticProvider(latencyMin, latencyMax time.Duration) *SyntheticProvider {
	return newSyntheticProvider(latencyMin, latencyMax, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSeededProvider creates a provider with a fixed seed for deterministic
// output in tests.
func NewSeededProvider(latencyMin, latencyMax time.Duration, seed int64) *SyntheticProvider {
	return newSyntheticProvider(latencyMin, latencyMax, rand.New(rand.NewSource(seed)))
}

func newSyntheticProvider(latencyMin, latencyMax time.Duration, rng *rand.Rand) *SyntheticProvider {
	if latencyMax < latencyMin {
		latencyMax = latencyMin
	}
	return &SyntheticProvider{
		latencyMin: latencyMin,
		latencyMax: latencyMax,
		rng:        rng,
	}
}

// FetchSnapshot generates a snapshot for the instrument after a bounded random
// delay. The only failure mode is context cancellation during the delay.
func (p *SyntheticProvider) FetchSnapshot(ctx context.Context, instrument models.Instrument) (models.MarketSnapshot, error) {
	if err := p.sleep(ctx); err != nil {
		return models.MarketSnapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	base, ok := basePrices[instrument.ID]
	if !ok {
		base = defaultBasePrice
	}

	fluctuation := 0.05
	if forexPairs[instrument.ID] {
		fluctuation = 0.005
	}

	price := base * (1 + (p.rng.Float64()-0.5)*fluctuation)
	open := base * (1 + (p.rng.Float64()-0.5)*fluctuation)
	change := price - open
	changePercent := (change / open) * 100

	// High stretches above the session extremes and low below them, so the
	// invariants hold no matter how price and open relate.
	high := math.Max(open, price) * (1 + p.rng.Float64()*0.02)
	low := math.Min(open, price) * (1 - p.rng.Float64()*0.02)
	volume := p.rng.Float64() * 10_000_000

	return models.MarketSnapshot{
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		High:          high,
		Low:           low,
		Volume:        volume,
	}, nil
}

// sleep blocks for a random duration within the latency bounds, honoring
// context cancellation.
func (p *SyntheticProvider) sleep(ctx context.Context) error {
	p.mu.Lock()
	span := p.latencyMax - p.latencyMin
	delay := p.latencyMin
	if span > 0 {
		delay += time.Duration(p.rng.Int63n(int64(span)))
	}
	p.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
