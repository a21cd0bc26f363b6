package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"fxagent/internal/model"
)

// anchors are typical price levels for the synthetic feed.
var anchors = map[string]float64{
	"EUR/USD":   1.0850,
	"GBP/USD":   1.2650,
	"USD/JPY":   148.50,
	"AUD/USD":   0.6550,
	"USD/CHF":   0.8850,
	"USD/CAD":   1.3550,
	"NZD/USD":   0.6050,
	"EUR/GBP":   0.8580,
	"EUR/JPY":   161.20,
	"GBP/JPY":   187.80,
	"XAU/USD":   2350.0,
	"XAG/USD":   28.40,
	"WTI/USD":   78.20,
	"BRENT/USD": 82.10,
	"BTC/USDT":  64000,
	"ETH/USDT":  3200,
	"SOL/USDT":  150,
}

// Synthetic produces a deterministic random walk per instrument and
// interval. Bars end at the last interval boundary before Now.
type Synthetic struct {
	Now func() time.Time
}

func NewSynthetic(now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}
	return &Synthetic{Now: now}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) FetchHistory(ctx context.Context, inst Instrument, interval string, limit int) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, ok := ParseInterval(interval)
	if !ok {
		return nil, fmt.Errorf("invalid interval %q", interval)
	}
	if limit <= 0 {
		limit = 100
	}
	symbol := inst.Symbol()
	if symbol == "" {
		return nil, ErrUnsupported
	}
	price, ok := anchors[symbol]
	if !ok {
		price = 100
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol + "@" + interval))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vol := 0.0015 * math.Sqrt(step.Hours())
	if inst.Category == model.CategoryCrypto {
		vol *= 4
	}
	cycle := 40 + rng.Intn(60)
	end := s.Now().UTC().Truncate(step)
	start := end.Add(-time.Duration(limit) * step)

	out := make([]Candle, 0, limit)
	for i := 0; i < limit; i++ {
		drift := 0.35 * vol * math.Sin(2*math.Pi*float64(i)/float64(cycle))
		ret := drift + vol*rng.NormFloat64()
		open := price
		closePx := open * (1 + ret)
		wick := math.Abs(vol * rng.NormFloat64() * 0.6)
		high := math.Max(open, closePx) * (1 + wick)
		low := math.Min(open, closePx) * (1 - wick)
		openTime := start.Add(time.Duration(i) * step)
		out = append(out, Candle{
			OpenTime:  openTime.UnixMilli(),
			CloseTime: openTime.Add(step).UnixMilli() - 1,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    math.Round(1000 + 500*math.Abs(rng.NormFloat64())),
		})
		price = closePx
	}
	return out, nil
}
