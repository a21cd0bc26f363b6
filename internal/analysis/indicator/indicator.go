package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"fxagent/internal/market"
)

// Settings tunes the indicator periods. Zero values pick the usual defaults.
type Settings struct {
	SMAFast   int
	SMASlow   int
	RSIPeriod int
	BBPeriod  int
	BBDev     float64
	ATRPeriod int
}

func (s Settings) withDefaults() Settings {
	if s.SMAFast <= 0 {
		s.SMAFast = 20
	}
	if s.SMASlow <= 0 {
		s.SMASlow = 50
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.BBPeriod <= 0 {
		s.BBPeriod = 20
	}
	if s.BBDev <= 0 {
		s.BBDev = 2
	}
	if s.ATRPeriod <= 0 {
		s.ATRPeriod = 14
	}
	return s
}

// IndicatorValue holds the latest reading and a coarse state label.
type IndicatorValue struct {
	Latest float64 `json:"latest"`
	State  string  `json:"state,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// Report is the indicator snapshot for one instrument and interval.
type Report struct {
	Count  int                       `json:"count"`
	Close  float64                   `json:"close"`
	Values map[string]IndicatorValue `json:"values"`
}

// MinCandles is the shortest history ComputeAll accepts.
const MinCandles = 35

// ComputeAll runs the indicator set over candles.
func ComputeAll(candles []market.Candle, cfg Settings) (Report, error) {
	cfg = cfg.withDefaults()
	rep := Report{Count: len(candles), Values: make(map[string]IndicatorValue)}
	if len(candles) < MinCandles {
		return rep, fmt.Errorf("need at least %d candles, got %d", MinCandles, len(candles))
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)
	lastClose := closes[len(closes)-1]
	rep.Close = lastClose

	smaFast := lastValid(talib.Sma(closes, cfg.SMAFast))
	smaSlow := lastValid(talib.Sma(closes, min(cfg.SMASlow, len(closes))))
	rep.Values["sma_fast"] = IndicatorValue{
		Latest: round(smaFast),
		State:  relativeState(lastClose, smaFast),
		Note:   fmt.Sprintf("SMA%d vs price", cfg.SMAFast),
	}
	rep.Values["sma_slow"] = IndicatorValue{
		Latest: round(smaSlow),
		State:  relativeState(lastClose, smaSlow),
		Note:   fmt.Sprintf("SMA%d vs price", cfg.SMASlow),
	}

	rsi := lastValid(talib.Rsi(closes, cfg.RSIPeriod))
	rsiState := "neutral"
	switch {
	case rsi >= 70:
		rsiState = "overbought"
	case rsi <= 30:
		rsiState = "oversold"
	}
	rep.Values["rsi"] = IndicatorValue{Latest: round(rsi), State: rsiState, Note: fmt.Sprintf("period=%d", cfg.RSIPeriod)}

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	histVal := lastValid(hist)
	macdState := "flat"
	switch {
	case histVal > 0:
		macdState = "bullish"
	case histVal < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = IndicatorValue{
		Latest: round(lastValid(macd)),
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.6f hist=%.6f", lastValid(signal), histVal),
	}

	upper, middle, lower := talib.BBands(closes, cfg.BBPeriod, cfg.BBDev, cfg.BBDev, talib.SMA)
	up, lo := lastValid(upper), lastValid(lower)
	bbState := "inside"
	switch {
	case lastClose > up:
		bbState = "above_upper"
	case lastClose < lo:
		bbState = "below_lower"
	}
	rep.Values["bb_upper"] = IndicatorValue{Latest: round(up), State: bbState}
	rep.Values["bb_middle"] = IndicatorValue{Latest: round(lastValid(middle))}
	rep.Values["bb_lower"] = IndicatorValue{Latest: round(lo), State: bbState}

	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	rep.Values["stoch_k"] = IndicatorValue{
		Latest: round(lastValid(k)),
		State:  stochasticState(lastValid(k)),
		Note:   fmt.Sprintf("d=%.2f", lastValid(d)),
	}

	atr, err := ComputeATR(candles, cfg.ATRPeriod)
	if err != nil {
		return rep, err
	}
	rep.Values["atr"] = IndicatorValue{Latest: round(atr), State: "volatility", Note: fmt.Sprintf("period=%d", cfg.ATRPeriod)}
	return rep, nil
}

// ComputeATR returns the latest average true range.
func ComputeATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		period = 14
	}
	if len(candles) <= period {
		return 0, fmt.Errorf("atr needs more than %d candles", period)
	}
	atr := lastValid(talib.Atr(market.Highs(candles), market.Lows(candles), market.Closes(candles), period))
	if atr <= 0 {
		return 0, fmt.Errorf("atr series empty")
	}
	return atr, nil
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.0005:
		return "above"
	case price < ref*0.9995:
		return "below"
	default:
		return "touch"
	}
}

func stochasticState(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
