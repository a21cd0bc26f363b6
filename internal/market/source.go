package market

import (
	"context"
	"errors"

	"fxagent/internal/model"
)

// Source fetches recent closed candles for an instrument.
type Source interface {
	Name() string
	FetchHistory(ctx context.Context, inst Instrument, interval string, limit int) ([]Candle, error)
}

var ErrUnsupported = errors.New("instrument not supported by source")

// Router picks a source by instrument category.
type Router struct {
	Default Source
	Crypto  Source
}

func (r Router) Name() string {
	if r.Default == nil {
		return "router"
	}
	return r.Default.Name()
}

func (r Router) FetchHistory(ctx context.Context, inst Instrument, interval string, limit int) ([]Candle, error) {
	src := r.Default
	if inst.Category == model.CategoryCrypto && r.Crypto != nil {
		src = r.Crypto
	}
	if src == nil {
		return nil, errors.New("no market source configured")
	}
	return src.FetchHistory(ctx, inst, interval, limit)
}
