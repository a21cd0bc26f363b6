package pattern

import (
	"fmt"
	"math"
	"strings"

	"fxagent/internal/market"
)

type Result struct {
	PatternSummary string   `json:"pattern_summary"`
	TrendSummary   string   `json:"trend_summary"`
	Bias           string   `json:"bias"`
	Support        float64  `json:"support"`
	Resistance     float64  `json:"resistance"`
	Signals        []string `json:"signals,omitempty"`
}

// Analyze fits a trend line, finds the recent range and looks for a few
// classic shapes in candles.
func Analyze(candles []market.Candle) Result {
	if len(candles) == 0 {
		return Result{PatternSummary: "no candles", TrendSummary: "no trend", Bias: "balanced"}
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	slope, intercept := fitLine(closes)
	res := Result{
		Bias:         classifySlope(slope, mean(closes)),
		TrendSummary: describeTrend(slope, intercept, closes),
	}
	recent := 20
	if recent > len(candles) {
		recent = len(candles)
	}
	res.Support = minOf(lows[len(lows)-recent:])
	res.Resistance = maxOf(highs[len(highs)-recent:])

	signals := make([]string, 0, 4)
	if desc, ok := detectDoubleBottom(lows); ok {
		signals = append(signals, desc)
	}
	if desc, ok := detectDoubleTop(highs); ok {
		signals = append(signals, desc)
	}
	if desc, ok := detectTriangle(highs, lows); ok {
		signals = append(signals, desc)
	}
	if desc, ok := detectCompression(highs, lows); ok {
		signals = append(signals, desc)
	}
	res.Signals = signals
	res.PatternSummary = "no notable pattern"
	if len(signals) > 0 {
		res.PatternSummary = strings.Join(signals, "; ")
	}
	return res
}

func fitLine(series []float64) (slope, intercept float64) {
	if len(series) == 0 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	n := float64(len(series))
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, series[len(series)-1]
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return
}

// classifySlope compares the per-bar slope with the average price so the
// threshold works for EUR/USD and BTC alike.
func classifySlope(slope, avg float64) string {
	if avg == 0 {
		return "balanced"
	}
	rel := slope / avg
	switch {
	case rel > 0.0001:
		return "bullish"
	case rel < -0.0001:
		return "bearish"
	default:
		return "balanced"
	}
}

func describeTrend(slope, intercept float64, closes []float64) string {
	last := closes[len(closes)-1]
	ref := intercept + slope*float64(len(closes)-1)
	if ref == 0 {
		return fmt.Sprintf("regression slope=%.6f", slope)
	}
	return fmt.Sprintf("regression slope=%.6f per bar, close %.2f%% from the fitted line", slope, (last-ref)/ref*100)
}

func detectDoubleBottom(lows []float64) (string, bool) {
	if len(lows) < 20 {
		return "", false
	}
	window := lows[len(lows)/2:]
	min1, idx1 := minWithIndex(window)
	masked := append([]float64{}, window...)
	for i := max(idx1-2, 0); i <= idx1+2 && i < len(masked); i++ {
		masked[i] = math.MaxFloat64
	}
	min2, idx2 := minWithIndex(masked)
	diff := math.Abs(min1-min2) / math.Max(min1, 1e-9)
	if diff <= 0.0015 && idx2 >= 3 {
		return fmt.Sprintf("double bottom, support near %.5f", (min1+min2)/2), true
	}
	return "", false
}

func detectDoubleTop(highs []float64) (string, bool) {
	if len(highs) < 20 {
		return "", false
	}
	window := highs[len(highs)/2:]
	max1, idx1 := maxWithIndex(window)
	masked := append([]float64{}, window...)
	for i := max(idx1-2, 0); i <= idx1+2 && i < len(masked); i++ {
		masked[i] = -math.MaxFloat64
	}
	max2, idx2 := maxWithIndex(masked)
	diff := math.Abs(max1-max2) / math.Max(max1, 1e-9)
	if diff <= 0.0015 && idx2 >= 3 {
		return fmt.Sprintf("double top, resistance near %.5f", (max1+max2)/2), true
	}
	return "", false
}

func detectTriangle(highs, lows []float64) (string, bool) {
	if len(highs) < 30 {
		return "", false
	}
	half := len(highs) / 2
	firstHigh, lastHigh := maxOf(highs[:half]), maxOf(highs[half:])
	firstLow, lastLow := minOf(lows[:half]), minOf(lows[half:])
	if lastHigh < firstHigh && lastLow > firstLow {
		widthDelta := (firstHigh - firstLow) - (lastHigh - lastLow)
		if widthDelta/(firstHigh-firstLow) > 0.3 {
			return "range contracting, possible symmetrical triangle", true
		}
	}
	return "", false
}

func detectCompression(highs, lows []float64) (string, bool) {
	if len(highs) < 40 {
		return "", false
	}
	half := len(highs) / 2
	first := maxOf(highs[:half]) - minOf(lows[:half])
	second := maxOf(highs[half:]) - minOf(lows[half:])
	if first > 0 && second < first*0.65 {
		return "volatility compressing, watch for a breakout", true
	}
	return "", false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	m, _ := minWithIndex(values)
	return m
}

func maxOf(values []float64) float64 {
	m, _ := maxWithIndex(values)
	return m
}

func minWithIndex(values []float64) (float64, int) {
	m := math.MaxFloat64
	idx := -1
	for i, v := range values {
		if v < m {
			m = v
			idx = i
		}
	}
	return m, idx
}

func maxWithIndex(values []float64) (float64, int) {
	m := -math.MaxFloat64
	idx := -1
	for i, v := range values {
		if v > m {
			m = v
			idx = i
		}
	}
	return m, idx
}
