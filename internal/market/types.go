package market

import (
	"context"
	"time"
)

// Granularity is a candle bucket size.
type Granularity string

const (
	FiveMinute Granularity = "FIVE_MINUTE"
	OneHour    Granularity = "ONE_HOUR"
	FourHour   Granularity = "FOUR_HOUR"
	OneDay     Granularity = "ONE_DAY"
	OneWeek    Granularity = "ONE_WEEK"
)

// Seconds returns the bucket size in seconds (0 for unknown).
func (g Granularity) Seconds() int {
	switch g {
	case FiveMinute:
		return 300
	case OneHour:
		return 3600
	case FourHour:
		return 14400
	case OneDay:
		return 86400
	case OneWeek:
		return 604800
	default:
		return 0
	}
}

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is a candle series in ascending time order.
type Series []Candle

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Volume
	}
	return out
}

// Action is a signal direction.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// TradePlan sizes a position from the strategy's risk budget.
type TradePlan struct {
	StopLoss      float64
	PositionUnits float64
	PositionUSD   float64
}

// Signal is one actionable evaluation result.
type Signal struct {
	Product string
	Action  Action
	Price   float64
	TrendUp bool
	Plan    *TradePlan // nil for sells
}

// Feed supplies historical candles for a product. Implemented by the
// exchange client; stubbed in tests.
type Feed interface {
	Candles(ctx context.Context, product string, g Granularity, lookbackDays int) (Series, error)
}
