package market

import (
	"context"
	"fmt"
	"time"

	"fxagent/internal/model"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// futuresTickers maps commodity bases to their Yahoo front-month contract.
var futuresTickers = map[string]string{
	"XAU":   "GC=F",
	"XAG":   "SI=F",
	"XPT":   "PL=F",
	"WTI":   "CL=F",
	"BRENT": "BZ=F",
}

// YahooSource reads bars from the Yahoo Finance chart API.
type YahooSource struct {
	now func() time.Time
}

func NewYahooSource(now func() time.Time) *YahooSource {
	if now == nil {
		now = time.Now
	}
	return &YahooSource{now: now}
}

func (y *YahooSource) Name() string { return "yahoo" }

// YahooTicker returns the Yahoo symbol for inst, e.g. EURUSD=X or GC=F.
func YahooTicker(inst Instrument) (string, error) {
	if t, ok := futuresTickers[inst.Base]; ok {
		return t, nil
	}
	switch inst.Category {
	case model.CategoryForex:
		if inst.Quote == "" {
			return "", ErrUnsupported
		}
		return inst.Base + inst.Quote + "=X", nil
	case model.CategoryCrypto:
		quote := inst.Quote
		if quote == "USDT" || quote == "USDC" || quote == "" {
			quote = "USD"
		}
		return inst.Base + "-" + quote, nil
	}
	return "", ErrUnsupported
}

// yahooInterval maps an interval to the nearest Yahoo one plus a resample
// factor for intervals Yahoo does not serve directly.
func yahooInterval(interval string) (datetime.Interval, int, error) {
	switch interval {
	case "1m":
		return datetime.OneMin, 1, nil
	case "5m":
		return datetime.FiveMins, 1, nil
	case "15m":
		return datetime.FifteenMins, 1, nil
	case "30m":
		return datetime.ThirtyMins, 1, nil
	case "1h":
		return datetime.OneHour, 1, nil
	case "2h":
		return datetime.OneHour, 2, nil
	case "4h":
		return datetime.OneHour, 4, nil
	case "1d":
		return datetime.OneDay, 1, nil
	case "1w":
		return datetime.OneDay, 5, nil
	}
	return "", 0, fmt.Errorf("interval %q not supported by yahoo", interval)
}

func (y *YahooSource) FetchHistory(ctx context.Context, inst Instrument, interval string, limit int) ([]Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ticker, err := YahooTicker(inst)
	if err != nil {
		return nil, err
	}
	yi, factor, err := yahooInterval(interval)
	if err != nil {
		return nil, err
	}
	step, _ := ParseInterval(interval)
	if limit <= 0 {
		limit = 100
	}
	end := y.now()
	// forex and futures close on weekends, so ask for extra calendar time
	start := end.Add(-time.Duration(limit) * step * 7 / 4)
	params := &chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: yi,
	}
	iter := chart.Get(params)
	raw := make([]Candle, 0, limit*factor)
	barStep := step / time.Duration(factor)
	for iter.Next() {
		bar := iter.Bar()
		if bar == nil {
			continue
		}
		open := time.Unix(int64(bar.Timestamp), 0)
		raw = append(raw, Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(barStep).UnixMilli() - 1,
			Open:      bar.Open.InexactFloat64(),
			High:      bar.High.InexactFloat64(),
			Low:       bar.Low.InexactFloat64(),
			Close:     bar.Close.InexactFloat64(),
			Volume:    float64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	out := DropUnclosed(Resample(raw, factor), end)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: no bars", ticker)
	}
	return out, nil
}
