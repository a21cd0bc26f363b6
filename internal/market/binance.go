package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fxagent/internal/model"

	"github.com/adshao/go-binance/v2/futures"
)

const maxBinanceLimit = 1500

// BinanceSource reads USDT-margined futures klines. It only serves crypto.
type BinanceSource struct {
	client *futures.Client
	now    func() time.Time
}

func NewBinanceSource(baseURL string, timeout time.Duration, now func() time.Time) *BinanceSource {
	client := futures.NewClient("", "")
	if u := strings.TrimSpace(baseURL); u != "" {
		client.BaseURL = u
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	if now == nil {
		now = time.Now
	}
	return &BinanceSource{client: client, now: now}
}

func (b *BinanceSource) Name() string { return "binance" }

// BinanceSymbol joins base and quote, mapping a USD quote to USDT.
func BinanceSymbol(inst Instrument) string {
	quote := inst.Quote
	if quote == "" || quote == "USD" {
		quote = "USDT"
	}
	return inst.Base + quote
}

func (b *BinanceSource) FetchHistory(ctx context.Context, inst Instrument, interval string, limit int) ([]Candle, error) {
	if inst.Category != model.CategoryCrypto {
		return nil, ErrUnsupported
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxBinanceLimit {
		limit = maxBinanceLimit
	}
	symbol := BinanceSymbol(inst)
	// one extra bar so dropping the open one still leaves limit bars
	kls, err := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit + 1).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	out = DropUnclosed(out, b.now())
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
