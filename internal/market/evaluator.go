package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientData means the candle series is too short for the
// strategy's longest indicator; callers skip the product rather than fail
// the scan.
var ErrInsufficientData = errors.New("insufficient candle data")

// Evaluator turns a pair of candle series into at most one signal. It is a
// pure computation: no I/O, no clock, no internal state.
type Evaluator struct {
	p Params
}

func NewEvaluator(p Params) *Evaluator { return &Evaluator{p: p} }

// Evaluate applies the strategy pipeline: trend filter, short/long MA
// crossover, RSI veto, MACD confirmation, and the optional volume-spike
// filter. Buys additionally get an ATR-sized trade plan.
func (e *Evaluator) Evaluate(product string, signal, trend Series) (*Signal, error) {
	p := e.p
	minSignal := maxInt(p.LongPeriod+1, p.MACDSlow+p.MACDSignal, p.RSIPeriod+1, p.ATRPeriod+1, p.VolumeMAPeriod)
	if len(signal) < minSignal {
		return nil, fmt.Errorf("%w: %s signal series has %d candles, need %d", ErrInsufficientData, product, len(signal), minSignal)
	}
	if len(trend) < p.TrendPeriod {
		return nil, fmt.Errorf("%w: %s trend series has %d candles, need %d", ErrInsufficientData, product, len(trend), p.TrendPeriod)
	}

	closes := signal.Closes()
	price := closes[len(closes)-1]

	trendCloses := trend.Closes()
	trendMA := movingAverage(trendCloses, p.TrendIndicator, p.TrendPeriod)
	trendUp := trendCloses[len(trendCloses)-1] > last(trendMA)

	short := movingAverage(closes, p.SignalIndicator, p.ShortPeriod)
	long := movingAverage(closes, p.SignalIndicator, p.LongPeriod)
	crossUp := crossedAbove(short, long)
	crossDown := crossedAbove(long, short)

	rsi := last(talib.Rsi(closes, p.RSIPeriod))
	macd, macdSig, _ := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	macdBull := last(macd) > last(macdSig)

	if p.VolumeFilter && !volumeSpike(signal.Volumes(), p.VolumeMAPeriod, p.VolumeSpike) {
		return nil, nil
	}

	switch {
	case trendUp && crossUp && rsi < p.RSIOverbought && macdBull:
		sig := &Signal{Product: product, Action: Buy, Price: price, TrendUp: true}
		sig.Plan = e.plan(signal, price)
		return sig, nil
	case !trendUp && crossDown && rsi > p.RSIOversold && !macdBull:
		return &Signal{Product: product, Action: Sell, Price: price, TrendUp: false}, nil
	default:
		return nil, nil
	}
}

// plan sizes a buy from the risk budget: stop at price - k*ATR, position
// units chosen so a stop-out loses exactly RiskPerTradePct of the
// hypothetical portfolio.
func (e *Evaluator) plan(signal Series, price float64) *TradePlan {
	p := e.p
	atr := last(talib.Atr(signal.Highs(), signal.Lows(), signal.Closes(), p.ATRPeriod))
	if atr <= 0 || math.IsNaN(atr) {
		return nil
	}
	stop := price - p.ATRStopMultiplier*atr
	perUnit := price - stop
	if stop <= 0 || perUnit <= 0 {
		return nil
	}
	riskUSD := p.PortfolioUSD * p.RiskPerTradePct / 100
	units := riskUSD / perUnit
	return &TradePlan{
		StopLoss:      stop,
		PositionUnits: units,
		PositionUSD:   units * price,
	}
}

func movingAverage(closes []float64, typ IndicatorType, period int) []float64 {
	if typ == SMA {
		return talib.Sma(closes, period)
	}
	return talib.Ema(closes, period)
}

// crossedAbove reports whether a crossed above b on the final bar.
func crossedAbove(a, b []float64) bool {
	n := len(a)
	if n < 2 || len(b) != n {
		return false
	}
	return a[n-2] <= b[n-2] && a[n-1] > b[n-1]
}

func volumeSpike(volumes []float64, period int, mult float64) bool {
	if len(volumes) < period {
		return false
	}
	ma := last(talib.Sma(volumes, period))
	if ma <= 0 || math.IsNaN(ma) {
		return false
	}
	return volumes[len(volumes)-1] > ma*mult
}

func last(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return xs[len(xs)-1]
}

func maxInt(xs ...int) int {
	m := 0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
