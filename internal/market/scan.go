package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"quantbot/internal/storage"
	"quantbot/internal/transport"
)

// Scanner is the Runnable bound to a strategy's worker: fetch candles for
// every product, evaluate, post results to the strategy channel, record
// emitted signals.
type Scanner struct {
	strategy *Strategy
	feed     Feed
	eval     *Evaluator
	adapter  transport.Adapter
	store    storage.Store // nil when persistence is disabled
	log      *slog.Logger

	channelName string

	mu        sync.Mutex
	channelID string // resolved lazily, cached
}

func NewScanner(strategy *Strategy, channelName string, feed Feed, adapter transport.Adapter, store storage.Store, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{
		strategy:    strategy,
		feed:        feed,
		eval:        NewEvaluator(strategy.Params),
		adapter:     adapter,
		store:       store,
		log:         log,
		channelName: channelName,
	}
}

func (s *Scanner) Strategy() *Strategy { return s.strategy }

// Run executes one scan cycle. Per-product failures are collected rather
// than aborting the cycle; the worker logs whatever is returned and carries
// on to the next boundary.
func (s *Scanner) Run(ctx context.Context) error {
	channelID, err := s.channel(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.strategy.Key, err)
	}

	var (
		signals  []Signal
		failures []error
	)
	for _, product := range s.strategy.Products() {
		sig, err := s.scanProduct(ctx, product)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				s.log.Debug("skipping product", slog.String("product", product), slog.Any("err", err))
				continue
			}
			failures = append(failures, err)
			continue
		}
		if sig != nil {
			signals = append(signals, *sig)
		}
	}

	if len(signals) > 0 {
		if _, err := s.adapter.SendText(ctx, channelID, s.formatSignals(signals)); err != nil {
			failures = append(failures, fmt.Errorf("post signals: %w", err))
		}
		s.record(ctx, signals)
	} else if len(failures) == 0 {
		_, _ = s.adapter.SendText(ctx, channelID,
			fmt.Sprintf("📊 %s: no actionable signals", s.strategy.DisplayName))
	}

	if len(failures) > 0 {
		return fmt.Errorf("scan %s: %w", s.strategy.Key, errors.Join(failures...))
	}
	return nil
}

func (s *Scanner) scanProduct(ctx context.Context, product string) (*Signal, error) {
	p := s.strategy.Params
	signalSeries, err := s.feed.Candles(ctx, product, p.SignalGranularity, p.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", product, err)
	}
	trendSeries, err := s.feed.Candles(ctx, product, p.TrendGranularity, p.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", product, err)
	}
	return s.eval.Evaluate(product, signalSeries, trendSeries)
}

func (s *Scanner) channel(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached := s.channelID
	s.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	id, err := s.adapter.ChannelByName(ctx, s.channelName)
	if err != nil {
		return "", fmt.Errorf("resolve channel %q: %w", s.channelName, err)
	}
	s.mu.Lock()
	s.channelID = id
	s.mu.Unlock()
	return id, nil
}

func (s *Scanner) record(ctx context.Context, signals []Signal) {
	if s.store == nil {
		return
	}
	for _, sig := range signals {
		e := storage.SignalEntry{
			At:       time.Now(),
			Strategy: s.strategy.Key,
			Product:  sig.Product,
			Action:   string(sig.Action),
			Price:    sig.Price,
		}
		if sig.Plan != nil {
			e.StopLoss = sig.Plan.StopLoss
			e.PositionUSD = sig.Plan.PositionUSD
			e.PositionUnits = sig.Plan.PositionUnits
		}
		if err := s.store.AppendSignal(ctx, e); err != nil {
			s.log.Warn("signal not recorded",
				slog.String("product", sig.Product),
				slog.Any("err", err))
		}
	}
}

func (s *Scanner) formatSignals(signals []Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚀 **%s** — %d actionable signal(s)\n", s.strategy.DisplayName, len(signals))
	for _, sig := range signals {
		emoji := "🔴"
		trend := "DOWN"
		if sig.Action == Buy {
			emoji = "🟢"
		}
		if sig.TrendUp {
			trend = "UP"
		}
		fmt.Fprintf(&b, "%s **%s** %s @ $%.2f · trend %s\n", emoji, sig.Action, sig.Product, sig.Price, trend)
		if sig.Plan != nil {
			base := sig.Product
			if i := strings.Index(base, "-"); i > 0 {
				base = base[:i]
			}
			fmt.Fprintf(&b, "    stop $%.2f · size %.6f %s ($%.2f)\n",
				sig.Plan.StopLoss, sig.Plan.PositionUnits, base, sig.Plan.PositionUSD)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
