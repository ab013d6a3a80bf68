package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"quantbot/internal/transport"
)

func Stdout() io.Writer { return os.Stdout }

type Config struct {
	Level   string
	Console bool
	File    FileConfig
	Discord DiscordConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

type DiscordConfig struct {
	Enabled    bool
	MinLevel   string
	RatePerSec int
}

type Service struct {
	atomicH *AtomicHandler
	logger  *slog.Logger

	sender transport.Adapter

	mu sync.Mutex

	file *os.File

	// discord sink target + limiter
	channelID string
	limiter   *rate.Limiter
	minLevel  slog.Level
}

func New(cfg Config, sender transport.Adapter) (*Service, *slog.Logger) {
	ah := NewAtomicHandler(slog.NewTextHandler(Stdout(), &slog.HandlerOptions{Level: slog.LevelInfo}))
	svc := &Service{
		atomicH: ah,
		logger:  slog.New(ah),
		sender:  sender,
	}
	svc.Apply(cfg)
	return svc, svc.logger
}

func (s *Service) Logger() *slog.Logger { return s.logger }

// SetDiscordTarget points the Discord sink at a resolved channel. An empty
// ID disables the sink until the next call.
func (s *Service) SetDiscordTarget(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = channelID
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := parseLevel(cfg.Level, slog.LevelInfo)

	var handlers []slog.Handler
	if cfg.Console {
		handlers = append(handlers, slog.NewTextHandler(Stdout(), &slog.HandlerOptions{Level: level}))
	}

	// file handler (close old safely)
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if cfg.File.Enabled && strings.TrimSpace(cfg.File.Path) != "" {
		f, err := os.OpenFile(cfg.File.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			s.file = f
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	if cfg.Discord.Enabled && s.sender != nil {
		s.minLevel = parseLevel(cfg.Discord.MinLevel, slog.LevelWarn)
		rps := cfg.Discord.RatePerSec
		if rps <= 0 {
			rps = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		handlers = append(handlers, &DiscordHandler{svc: s, baseLevel: level})
	}

	if len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(Stdout(), &slog.HandlerOptions{Level: level}))
	}
	s.atomicH.Swap(Fanout(handlers...))
}

func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
}

func parseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return def
	}
}

// ---- Atomic handler (hot swap without replacing slog.Logger) ----

type AtomicHandler struct {
	mu sync.RWMutex
	h  slog.Handler
}

func NewAtomicHandler(h slog.Handler) *AtomicHandler { return &AtomicHandler{h: h} }

func (a *AtomicHandler) Swap(h slog.Handler) {
	a.mu.Lock()
	a.h = h
	a.mu.Unlock()
}

func (a *AtomicHandler) cur() slog.Handler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.h
}

func (a *AtomicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return a.cur().Enabled(ctx, level)
}
func (a *AtomicHandler) Handle(ctx context.Context, r slog.Record) error {
	return a.cur().Handle(ctx, r)
}
func (a *AtomicHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return a.cur().WithAttrs(attrs) }
func (a *AtomicHandler) WithGroup(name string) slog.Handler       { return a.cur().WithGroup(name) }

// ---- Fanout ----

type fanout struct{ hs []slog.Handler }

func Fanout(h ...slog.Handler) slog.Handler { return &fanout{hs: h} }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.hs {
		_ = h.Handle(ctx, r)
	}
	return nil
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler { return f }
func (f *fanout) WithGroup(name string) slog.Handler       { return f }

// ---- Discord sink ----

// DiscordHandler mirrors warnings and errors into an operator channel.
// Rate-limited so a log storm can't flood the channel.
type DiscordHandler struct {
	svc       *Service
	baseLevel slog.Level
}

func (d *DiscordHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= d.baseLevel
}

func (d *DiscordHandler) Handle(ctx context.Context, r slog.Record) error {
	d.svc.mu.Lock()
	channelID := d.svc.channelID
	lim := d.svc.limiter
	min := d.svc.minLevel
	d.svc.mu.Unlock()

	if channelID == "" || d.svc.sender == nil || lim == nil {
		return nil
	}
	if r.Level < min {
		return nil
	}
	if !lim.Allow() {
		return nil
	}

	msg := fmt.Sprintf("[%s] %s", r.Level.String(), r.Message)
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf("\n- %s=%v", a.Key, a.Value.Any())
		return true
	})

	_, _ = d.svc.sender.SendText(ctx, channelID, msg)
	return nil
}

func (d *DiscordHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return d }
func (d *DiscordHandler) WithGroup(name string) slog.Handler       { return d }
