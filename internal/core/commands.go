package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"quantbot/internal/config"
	"quantbot/internal/market"
	"quantbot/internal/purge"
	"quantbot/internal/services/confirm"
	"quantbot/internal/services/schedule"
	"quantbot/internal/storage"
	"quantbot/internal/transport"
)

const confirmEmoji = "✅"

// Router parses owner commands and dispatches them against the worker
// registry. Destructive "now" commands go through the confirmation gate.
type Router struct {
	cfgm     *config.Manager
	registry *schedule.Registry
	gate     *confirm.Gate
	adapter  transport.Adapter
	scanners map[string]*market.Scanner
	store    storage.Store
	log      *slog.Logger
}

func NewRouter(cfgm *config.Manager, registry *schedule.Registry, gate *confirm.Gate,
	adapter transport.Adapter, scanners map[string]*market.Scanner, store storage.Store, log *slog.Logger) *Router {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		cfgm:     cfgm,
		registry: registry,
		gate:     gate,
		adapter:  adapter,
		scanners: scanners,
		store:    store,
		log:      log,
	}
}

// Handle processes one inbound message. Non-commands and non-owners are
// ignored; everything else gets a reply, even on failure.
func (r *Router) Handle(ctx context.Context, msg *transport.Message) {
	if msg == nil || msg.Bot {
		return
	}
	cfg := r.cfgm.Get()
	if cfg == nil {
		return
	}
	prefix := cfg.Discord.Prefix()
	if !strings.HasPrefix(msg.Content, prefix) {
		return
	}
	if !cfg.Discord.IsOwner(msg.AuthorID) {
		r.log.Debug("command from non-owner ignored",
			slog.String("user", msg.AuthorID),
			slog.String("content", msg.Content))
		return
	}

	args := strings.Fields(strings.TrimPrefix(msg.Content, prefix))
	if len(args) == 0 {
		return
	}

	var reply string
	switch args[0] {
	case "help":
		reply = r.help(prefix)
	case "status":
		reply = r.statusAll()
	case "scan":
		reply = r.scan(ctx, msg, args[1:])
	case "purge":
		reply = r.purgeCmd(ctx, msg, args[1:])
	default:
		reply = fmt.Sprintf("Unknown command %q. Try `%shelp`.", args[0], prefix)
	}
	if reply != "" {
		r.reply(ctx, msg, reply)
	}
}

func (r *Router) reply(ctx context.Context, msg *transport.Message, text string) {
	if _, err := r.adapter.SendText(ctx, msg.ChannelID, text); err != nil {
		r.log.Warn("reply not sent", slog.String("channel", msg.ChannelID), slog.Any("err", err))
	}
}

func (r *Router) help(prefix string) string {
	lines := []string{
		"**Commands**",
		fmt.Sprintf("`%sstatus` — every worker's state and next trigger", prefix),
		fmt.Sprintf("`%sscan status|start|stop <strategy|all>`", prefix),
		fmt.Sprintf("`%sscan now <strategy>` — run once (needs confirmation)", prefix),
		fmt.Sprintf("`%sscan products|add|remove <strategy> [product]`", prefix),
		fmt.Sprintf("`%sscan recent <strategy>` — last recorded signals", prefix),
		fmt.Sprintf("`%spurge status|start|stop`", prefix),
		fmt.Sprintf("`%spurge now` — purge immediately (needs confirmation)", prefix),
	}
	return strings.Join(lines, "\n")
}

func (r *Router) statusAll() string {
	entries := r.registry.All()
	if len(entries) == 0 {
		return "No workers configured."
	}
	var b strings.Builder
	b.WriteString("**Workers**\n")
	for _, e := range entries {
		b.WriteString(formatStatus(e.Status))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(st schedule.Status) string {
	switch {
	case st.Manual:
		return fmt.Sprintf("• `%s` — %s (manual-only)", st.Name, st.State)
	case st.State == schedule.StateRunning:
		return fmt.Sprintf("• `%s` — running, every %dh, next in %s",
			st.Name, int(st.Interval.Hours()), st.Remaining.Round(time.Minute))
	default:
		return fmt.Sprintf("• `%s` — stopped (every %dh when running)",
			st.Name, int(st.Interval.Hours()))
	}
}

func (r *Router) scan(ctx context.Context, msg *transport.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: scan status|start|stop|now|products|add|remove|recent"
	}
	switch args[0] {
	case "status":
		return r.statusAll()
	case "start", "stop":
		return r.scanStartStop(ctx, args[0], args[1:])
	case "now":
		if len(args) < 2 {
			return "Usage: scan now <strategy>"
		}
		return r.scanNow(ctx, msg, args[1])
	case "products":
		if len(args) < 2 {
			return "Usage: scan products <strategy>"
		}
		return r.products(args[1])
	case "add", "remove":
		if len(args) < 3 {
			return fmt.Sprintf("Usage: scan %s <strategy> <product>", args[0])
		}
		return r.editProducts(args[0], args[1], args[2])
	case "recent":
		if len(args) < 2 {
			return "Usage: scan recent <strategy>"
		}
		return r.recent(ctx, args[1])
	default:
		return fmt.Sprintf("Unknown scan subcommand %q.", args[0])
	}
}

func (r *Router) scanStartStop(ctx context.Context, verb string, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: scan %s <strategy|all>", verb)
	}
	target := args[0]

	var keys []string
	if target == "all" {
		keys = r.scannerKeys()
	} else {
		if _, ok := r.scanners[target]; !ok {
			return r.unknownStrategy(target)
		}
		keys = []string{target}
	}

	var lines []string
	for _, key := range keys {
		w, err := r.registry.Get(scanWorkerName(key))
		if err != nil {
			lines = append(lines, fmt.Sprintf("• `%s` — not configured", key))
			continue
		}
		if verb == "start" {
			if w.Spec().Manual() {
				lines = append(lines, fmt.Sprintf("• `%s` — manual-only, nothing to start", key))
				continue
			}
			w.Start(ctx)
		} else {
			w.Stop()
		}
		lines = append(lines, formatStatus(w.Status()))
	}
	return strings.Join(lines, "\n")
}

func (r *Router) scanNow(ctx context.Context, msg *transport.Message, key string) string {
	if _, ok := r.scanners[key]; !ok {
		return r.unknownStrategy(key)
	}
	w, err := r.registry.Get(scanWorkerName(key))
	if err != nil {
		return fmt.Sprintf("Strategy `%s` is not configured.", key)
	}
	r.confirmAndRun(ctx, msg, "scan "+key, func(ctx context.Context) error {
		return w.TriggerNow(ctx)
	})
	return ""
}

func (r *Router) products(key string) string {
	sc, ok := r.scanners[key]
	if !ok {
		return r.unknownStrategy(key)
	}
	products := sc.Strategy().Products()
	if len(products) == 0 {
		return fmt.Sprintf("`%s` watches no products.", key)
	}
	return fmt.Sprintf("`%s` watches: %s", key, strings.Join(products, ", "))
}

func (r *Router) editProducts(verb, key, product string) string {
	sc, ok := r.scanners[key]
	if !ok {
		return r.unknownStrategy(key)
	}
	if verb == "add" {
		if !sc.Strategy().AddProduct(product) {
			return fmt.Sprintf("`%s` already watches %s.", key, strings.ToUpper(product))
		}
		return fmt.Sprintf("Added %s to `%s`. (In-memory only; edit the config to persist.)",
			strings.ToUpper(product), key)
	}
	if !sc.Strategy().RemoveProduct(product) {
		return fmt.Sprintf("`%s` does not watch %s.", key, strings.ToUpper(product))
	}
	return fmt.Sprintf("Removed %s from `%s`.", strings.ToUpper(product), key)
}

func (r *Router) recent(ctx context.Context, key string) string {
	if _, ok := r.scanners[key]; !ok {
		return r.unknownStrategy(key)
	}
	if r.store == nil {
		return "Signal history is disabled (no storage configured)."
	}
	entries, err := r.store.RecentSignals(ctx, key, 10)
	if err != nil {
		return "Could not read signal history: " + err.Error()
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No recorded signals for `%s` yet.", key)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d signal(s) for `%s`:\n", len(entries), key)
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s %s %s @ $%.2f\n",
			e.At.Format("2006-01-02 15:04"), e.Action, e.Product, e.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) purgeCmd(ctx context.Context, msg *transport.Message, args []string) string {
	if len(args) == 0 {
		return "Usage: purge status|start|stop|now"
	}
	w, err := r.registry.Get(purgeWorkerName)
	if err != nil {
		return "Purge is not configured (purge.channel is empty)."
	}

	switch args[0] {
	case "status":
		return formatStatus(w.Status())
	case "start":
		if w.Spec().Manual() {
			return "Purge is manual-only (interval_hours: 0); use `purge now`."
		}
		w.Start(ctx)
		return formatStatus(w.Status())
	case "stop":
		w.Stop()
		return formatStatus(w.Status())
	case "now":
		r.confirmAndRun(ctx, msg, "purge", func(ctx context.Context) error {
			return w.TriggerNow(purge.WithActor(ctx, msg.AuthorID))
		})
		return ""
	default:
		return fmt.Sprintf("Unknown purge subcommand %q.", args[0])
	}
}

// confirmAndRun posts a confirmation prompt, waits for the initiator's
// reaction inside the window, and executes the action exactly once. Wrong
// responders are ignored and the wait continues.
func (r *Router) confirmAndRun(ctx context.Context, msg *transport.Message, scope string, action func(ctx context.Context) error) {
	ticket, err := r.gate.Request(ctx, scope, msg.AuthorID, action)
	if err != nil {
		if errors.Is(err, confirm.ErrConfirmationPending) {
			r.reply(ctx, msg, fmt.Sprintf("A confirmation for `%s` is already pending. Answer it or let it expire.", scope))
		} else {
			r.reply(ctx, msg, "Could not start confirmation: "+err.Error())
		}
		return
	}

	ref, err := r.adapter.SendText(ctx, msg.ChannelID,
		fmt.Sprintf("React %s within %d seconds to confirm `%s`.", confirmEmoji, int(confirm.Window.Seconds()), scope))
	if err != nil {
		r.log.Warn("confirmation prompt not sent", slog.Any("err", err))
		return
	}
	_ = r.adapter.AddReaction(ctx, ref, confirmEmoji)

	for {
		wait := time.Until(ticket.Deadline())
		if wait <= 0 {
			wait = time.Millisecond
		}
		reaction, err := r.adapter.AwaitReaction(ctx, ref, confirmEmoji, wait)
		if err != nil {
			r.reply(ctx, msg, fmt.Sprintf("Confirmation for `%s` expired; nothing was done.", scope))
			return
		}

		outcome, actErr := r.gate.Acknowledge(ctx, ticket, reaction.UserID)
		switch outcome {
		case confirm.WrongResponder:
			continue
		case confirm.Executed:
			if actErr != nil {
				r.reply(ctx, msg, fmt.Sprintf("`%s` ran but failed: %v", scope, actErr))
			} else {
				r.reply(ctx, msg, fmt.Sprintf("`%s` done.", scope))
			}
			return
		case confirm.Expired:
			r.reply(ctx, msg, fmt.Sprintf("Confirmation for `%s` expired; nothing was done.", scope))
			return
		default:
			return
		}
	}
}

func (r *Router) scannerKeys() []string {
	keys := make([]string, 0, len(r.scanners))
	for k := range r.scanners {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Router) unknownStrategy(key string) string {
	for _, k := range market.StrategyKeys {
		if k == key {
			return fmt.Sprintf("Strategy `%s` is not set up (no channel configured).", key)
		}
	}
	return fmt.Sprintf("Unknown strategy %q. Configured: %s.", key, strings.Join(r.scannerKeys(), ", "))
}

const purgeWorkerName = "purge"

func scanWorkerName(key string) string { return "scan." + key }
