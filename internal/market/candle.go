package market

import (
	"strings"
	"time"

	"fxagent/internal/model"
)

// Candle is one OHLCV bar. Times are unix milliseconds.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades,omitempty"`
}

// Instrument identifies what to fetch candles for.
type Instrument struct {
	Base     string
	Quote    string
	Category model.Category
}

func InstrumentOf(qc model.QueryContext) Instrument {
	return Instrument{
		Base:     strings.ToUpper(strings.TrimSpace(qc.Base)),
		Quote:    strings.ToUpper(strings.TrimSpace(qc.Quote)),
		Category: qc.Category,
	}
}

// Symbol is the canonical "BASE/QUOTE" key.
func (i Instrument) Symbol() string {
	if i.Quote == "" {
		return i.Base
	}
	return i.Base + "/" + i.Quote
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs and Lows mirror Closes for the other price fields.
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// ParseInterval converts 15m/1h/4h/1d/1w into a duration.
func ParseInterval(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return 0, false
	}
	n := 0
	for _, ch := range interval[:len(interval)-1] {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	if n <= 0 {
		return 0, false
	}
	unit := map[byte]time.Duration{
		'm': time.Minute,
		'h': time.Hour,
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}[interval[len(interval)-1]]
	if unit == 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// DropUnclosed removes a trailing bar whose close time lies in the future.
func DropUnclosed(candles []Candle, now time.Time) []Candle {
	if len(candles) == 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if last.CloseTime > now.UnixMilli() {
		return candles[:len(candles)-1]
	}
	return candles
}

// Resample merges every factor consecutive bars into one.
func Resample(candles []Candle, factor int) []Candle {
	if factor <= 1 || len(candles) == 0 {
		return candles
	}
	out := make([]Candle, 0, len(candles)/factor+1)
	for start := 0; start < len(candles); start += factor {
		end := start + factor
		if end > len(candles) {
			end = len(candles)
		}
		chunk := candles[start:end]
		agg := Candle{
			OpenTime:  chunk[0].OpenTime,
			CloseTime: chunk[len(chunk)-1].CloseTime,
			Open:      chunk[0].Open,
			High:      chunk[0].High,
			Low:       chunk[0].Low,
			Close:     chunk[len(chunk)-1].Close,
		}
		for _, c := range chunk {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Volume += c.Volume
			agg.Trades += c.Trades
		}
		out = append(out, agg)
	}
	return out
}
