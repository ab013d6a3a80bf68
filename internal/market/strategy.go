package market

import (
	"strings"
	"sync"
)

// IndicatorType selects the moving-average family used by a strategy.
type IndicatorType string

const (
	EMA IndicatorType = "EMA"
	SMA IndicatorType = "SMA"
)

// Params holds a strategy's indicator tuning. All periods are in candles of
// the relevant granularity.
type Params struct {
	SignalGranularity Granularity
	TrendGranularity  Granularity
	LookbackDays      int

	TrendIndicator IndicatorType
	TrendPeriod    int

	SignalIndicator IndicatorType
	ShortPeriod     int
	LongPeriod      int

	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	ATRPeriod         int
	ATRStopMultiplier float64
	VolumeFilter      bool
	VolumeMAPeriod    int
	VolumeSpike       float64
	PortfolioUSD      float64
	RiskPerTradePct   float64
}

// Strategy is one independently scheduled scanning configuration. The
// product list is the only mutable part; operators can add/remove products
// at runtime (in-memory only, reset on restart).
type Strategy struct {
	Key         string // day / swing / long
	DisplayName string
	Params      Params

	mu       sync.Mutex
	products []string
}

func (s *Strategy) Products() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.products...)
}

func (s *Strategy) AddProduct(id string) bool {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p == id {
			return false
		}
	}
	s.products = append(s.products, id)
	return true
}

func (s *Strategy) RemoveProduct(id string) bool {
	id = strings.ToUpper(strings.TrimSpace(id))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.products {
		if p == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return true
		}
	}
	return false
}

// StrategyKeys is the fixed set of known strategies, in display order.
var StrategyKeys = []string{"day", "swing", "long"}

// NewStrategy builds a strategy with its built-in parameter table, using
// products from configuration (falling back to the strategy's defaults when
// the list is empty).
func NewStrategy(key string, products []string) *Strategy {
	var s *Strategy
	switch key {
	case "day":
		s = &Strategy{
			Key:         "day",
			DisplayName: "Day Trader",
			Params: Params{
				SignalGranularity: FiveMinute,
				TrendGranularity:  OneHour,
				LookbackDays:      30,
				TrendIndicator:    EMA,
				TrendPeriod:       50,
				SignalIndicator:   EMA,
				ShortPeriod:       9,
				LongPeriod:        21,
				RSIPeriod:         14,
				RSIOverbought:     70,
				RSIOversold:       30,
				MACDFast:          12,
				MACDSlow:          26,
				MACDSignal:        9,
				ATRPeriod:         14,
				ATRStopMultiplier: 2.0,
				VolumeFilter:      true,
				VolumeMAPeriod:    20,
				VolumeSpike:       2.0,
				PortfolioUSD:      100000,
				RiskPerTradePct:   0.5,
			},
			products: []string{"AVAX-USD", "SOL-USD", "ADA-USD", "GRT-USD", "CRV-USD"},
		}
	case "swing":
		s = &Strategy{
			Key:         "swing",
			DisplayName: "Aggressive Swing Trader",
			Params: Params{
				SignalGranularity: FourHour,
				TrendGranularity:  OneDay,
				LookbackDays:      30,
				TrendIndicator:    EMA,
				TrendPeriod:       50,
				SignalIndicator:   EMA,
				ShortPeriod:       20,
				LongPeriod:        50,
				RSIPeriod:         14,
				RSIOverbought:     70,
				RSIOversold:       30,
				MACDFast:          12,
				MACDSlow:          26,
				MACDSignal:        9,
				ATRPeriod:         14,
				ATRStopMultiplier: 2.5,
				VolumeFilter:      true,
				VolumeMAPeriod:    20,
				VolumeSpike:       1.5,
				PortfolioUSD:      100000,
				RiskPerTradePct:   1.0,
			},
			products: []string{"MATIC-USD", "QNT-USD", "LCX-USD"},
		}
	case "long":
		s = &Strategy{
			Key:         "long",
			DisplayName: "Long-Term Investor",
			Params: Params{
				SignalGranularity: OneDay,
				TrendGranularity:  OneWeek,
				LookbackDays:      30,
				TrendIndicator:    SMA,
				TrendPeriod:       30,
				SignalIndicator:   SMA,
				ShortPeriod:       50,
				LongPeriod:        200,
				RSIPeriod:         14,
				RSIOverbought:     70,
				RSIOversold:       30,
				MACDFast:          12,
				MACDSlow:          26,
				MACDSignal:        9,
				ATRPeriod:         14,
				ATRStopMultiplier: 2.5,
				VolumeFilter:      true,
				VolumeMAPeriod:    20,
				VolumeSpike:       1.5,
				PortfolioUSD:      100000,
				RiskPerTradePct:   1.0,
			},
			products: []string{"AVAX-USD", "CHZ-USD", "ICP-USD"},
		}
	default:
		return nil
	}

	if cleaned := cleanProducts(products); len(cleaned) > 0 {
		s.products = cleaned
	}
	return s
}

func cleanProducts(in []string) []string {
	var out []string
	for _, p := range in {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
