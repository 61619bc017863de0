// Package ectrol resolves and drives DOM elements of one page context
// through a channel.Channel.
//
//	e := ectrol.New(tab)
//	btn := e.Locate("iframe#checkout |> button.pay")
//	if err := btn.Click(ctx, element.ClickOptions{Timeout: 2 * time.Second}); err != nil { ... }
//	v, ok, err := e.LocalStorage().GetItem(ctx, "session")
//
// The same operations are reachable as uniform requests through Do, which
// backs the MCP tools, the HTTP routes and the playbook runner.
package ectrol

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/ectrol/channel"
	"github.com/hazyhaar/ectrol/element"
	"github.com/hazyhaar/ectrol/gesture"
	"github.com/hazyhaar/ectrol/journal"
	"github.com/hazyhaar/ectrol/kit"
	"github.com/hazyhaar/ectrol/resolver"
	"github.com/hazyhaar/ectrol/storage"
)

// Timing groups the engine-wide delays and the wait strategy.
type Timing struct {
	ClickDelay   time.Duration // settle between pointer down and up (default 10ms)
	PressDelay   time.Duration // key combo hold (default 10ms)
	PollInterval time.Duration // Cooperative strategy only (default 50ms)
	Strategy     resolver.Strategy
}

func (t *Timing) defaults() {
	if t.ClickDelay <= 0 {
		t.ClickDelay = gesture.DefaultDelay
	}
	if t.PressDelay <= 0 {
		t.PressDelay = gesture.DefaultDelay
	}
	if t.PollInterval <= 0 {
		t.PollInterval = resolver.DefaultPollInterval
	}
}

// Ectrol binds one page context to its element handles and storage proxies.
type Ectrol struct {
	ch       channel.Channel
	logger   *slog.Logger
	timing   Timing
	cacheKey string
	platform string
	cadence  gesture.Cadence
	journal  *journal.Store

	local   *storage.Proxy
	session *storage.Proxy
	cfg     element.Config

	endpoint kit.Endpoint
}

// Option configures an Ectrol.
type Option func(*Ectrol)

func WithLogger(l *slog.Logger) Option { return func(e *Ectrol) { e.logger = l } }

func WithTiming(t Timing) Option { return func(e *Ectrol) { e.timing = t } }

// WithCacheKey names the window property holding the page-side
// resolution cache. Default "__ectrol__".
func WithCacheKey(key string) Option { return func(e *Ectrol) { e.cacheKey = key } }

func WithWaitStrategy(s resolver.Strategy) Option {
	return func(e *Ectrol) { e.timing.Strategy = s }
}

// WithJournal records every operation dispatched through Do.
func WithJournal(j *journal.Store) Option { return func(e *Ectrol) { e.journal = j } }

// WithPlatform sets the OS used to resolve ControlOrMeta. Default: the
// host running the controller.
func WithPlatform(goos string) Option { return func(e *Ectrol) { e.platform = goos } }

// WithCadence replaces the human typing cadence used by Type.
func WithCadence(c gesture.Cadence) Option { return func(e *Ectrol) { e.cadence = c } }

// New returns an engine on ch.
func New(ch channel.Channel, opts ...Option) *Ectrol {
	e := &Ectrol{ch: ch, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	e.timing.defaults()

	simOpts := []gesture.Option{gesture.WithLogger(e.logger)}
	if e.platform != "" {
		simOpts = append(simOpts, gesture.WithPlatform(e.platform))
	}
	e.cfg = element.Config{
		Resolver:     resolver.New(e.cacheKey),
		Simulator:    gesture.New(ch, simOpts...),
		Strategy:     e.timing.Strategy,
		PollInterval: e.timing.PollInterval,
		ClickDelay:   e.timing.ClickDelay,
		PressDelay:   e.timing.PressDelay,
		Cadence:      e.cadence,
		Logger:       e.logger,
	}
	e.local = storage.New(ch, storage.Local)
	e.session = storage.New(ch, storage.Session)

	mws := []kit.Middleware{kit.Logging(e.logger, "ectrol")}
	if e.journal != nil {
		mws = append(mws, e.journal.Middleware())
	}
	e.endpoint = kit.Chain(mws[0], mws[1:]...)(e.dispatch)
	return e
}

// Locate returns a handle on the element addressed by sel. It never
// touches the page; an invalid selector yields a permanently absent
// element.
func (e *Ectrol) Locate(sel string) *element.Handle {
	return element.New(e.ch, sel, e.cfg)
}

// LocalStorage proxies the page's localStorage.
func (e *Ectrol) LocalStorage() *storage.Proxy { return e.local }

// SessionStorage proxies the page's sessionStorage.
func (e *Ectrol) SessionStorage() *storage.Proxy { return e.session }

// Journal returns the configured journal, or nil.
func (e *Ectrol) Journal() *journal.Store { return e.journal }

// Timing returns the effective timing.
func (e *Ectrol) Timing() Timing { return e.timing }
