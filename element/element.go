// Package element implements handles on DOM elements addressed by
// frame-crossing selectors.
//
// A Handle never holds a node. Every operation compiles the selector into
// a resolver fragment, composes it with the operation's page script and
// runs the result through the channel in one round trip. Elements that
// are missing, of the wrong kind, or behind an inaccessible frame make the
// operation a silent no-op: BoundingBox returns nil, Exists returns false
// and actions return nil. Only channel faults are errors.
//
// Staleness: the page caches resolutions by selector string. If the page
// replaces a node after it was resolved, later operations on the same
// selector keep acting on the detached node until the document is
// reloaded.
package element

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/ectrol/channel"
	"github.com/hazyhaar/ectrol/gesture"
	"github.com/hazyhaar/ectrol/resolver"
	"github.com/hazyhaar/ectrol/script"
	"github.com/hazyhaar/ectrol/selector"
)

//go:embed scripts/*.js
var scriptFS embed.FS

var (
	bboxTmpl   = load("bbox")
	existsTmpl = load("exists")
	hoverTmpl  = load("hover")
	checkTmpl  = load("check")
	fillTmpl   = load("fill")
	focusTmpl  = load("focus")
	selectTmpl = load("select")
)

func load(name string) *script.Template {
	src, err := scriptFS.ReadFile("scripts/" + name + ".js")
	if err != nil {
		panic(fmt.Sprintf("element: missing script %s: %v", name, err))
	}
	return script.Must(name, string(src))
}

// ErrMalformedResult is returned when the page answers with JSON that does
// not match what the operation expects.
var ErrMalformedResult = errors.New("element: malformed result")

// Config carries what handles built by one engine share.
type Config struct {
	Resolver     *resolver.Resolver
	Simulator    *gesture.Simulator
	Strategy     resolver.Strategy
	PollInterval time.Duration // Cooperative only
	ClickDelay   time.Duration // default settle between pointer down and up
	PressDelay   time.Duration // default hold for key combos
	Cadence      gesture.Cadence
	Logger       *slog.Logger
}

func (c *Config) defaults(ch channel.Channel) {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Resolver == nil {
		c.Resolver = resolver.New("")
	}
	if c.Simulator == nil {
		c.Simulator = gesture.New(ch, gesture.WithLogger(c.Logger))
	}
	if c.PollInterval <= 0 {
		c.PollInterval = resolver.DefaultPollInterval
	}
	if c.ClickDelay <= 0 {
		c.ClickDelay = gesture.DefaultDelay
	}
	if c.PressDelay <= 0 {
		c.PressDelay = gesture.DefaultDelay
	}
	if c.Cadence == nil {
		c.Cadence = gesture.HumanCadence(nil)
	}
}

// Handle addresses one element of one page context.
type Handle struct {
	ch  channel.Channel
	raw string
	sel selector.Selector
	cfg Config

	// notFound is set once and never cleared. A handle built from an
	// invalid selector can never resolve, so it answers without a round trip.
	notFound bool
}

// New returns a handle on raw. An invalid selector yields a handle that
// behaves as a permanently absent element.
func New(ch channel.Channel, raw string, cfg Config) *Handle {
	cfg.defaults(ch)
	h := &Handle{ch: ch, raw: raw, cfg: cfg}
	sel, err := selector.Parse(raw)
	if err != nil {
		cfg.Logger.Debug("element: invalid selector", "selector", raw, "error", err)
		h.notFound = true
		return h
	}
	h.sel = sel
	return h
}

// Selector returns the selector string the handle was built from.
func (h *Handle) Selector() string { return h.raw }

// NotFound reports whether the handle is known to never resolve.
func (h *Handle) NotFound() bool { return h.notFound }

// target returns the resolver fragment an operation should embed. With the
// Cooperative strategy and a positive timeout it first polls from the
// controller; found is false when the element never showed up.
func (h *Handle) target(ctx context.Context, op string, timeout time.Duration) (frag script.Fragment, found bool, err error) {
	if h.cfg.Strategy == resolver.Cooperative && timeout > 0 {
		found, err = resolver.Poll(ctx, timeout, h.cfg.PollInterval, func(ctx context.Context) (bool, error) {
			return h.exists(ctx, op, 0)
		})
		if err != nil || !found {
			return "", false, err
		}
		timeout = 0
	}
	frag, err = h.cfg.Resolver.Fragment(h.sel, timeout)
	if err != nil {
		return "", false, fmt.Errorf("element: %s: %w", op, err)
	}
	return frag, true, nil
}

// run composes tmpl around the element fragment and executes it. found is
// false when the operation ended before reaching the page.
func (h *Handle) run(ctx context.Context, op string, tmpl *script.Template, timeout time.Duration, p script.Params) (json.RawMessage, bool, error) {
	if h.notFound {
		return nil, false, nil
	}
	frag, found, err := h.target(ctx, op, timeout)
	if err != nil || !found {
		return nil, false, err
	}
	if p == nil {
		p = script.Params{}
	}
	p["Target"] = frag

	src, err := tmpl.Render(p)
	if err != nil {
		return nil, false, fmt.Errorf("element: %s: %w", op, err)
	}
	res, err := h.ch.Execute(ctx, src.String())
	if err != nil {
		return nil, false, fmt.Errorf("element: %s: %w", op, err)
	}
	return res, true, nil
}

// act runs a mutating script that answers true when applied.
func (h *Handle) act(ctx context.Context, op string, tmpl *script.Template, timeout time.Duration, p script.Params) error {
	res, reached, err := h.run(ctx, op, tmpl, timeout, p)
	if err != nil {
		return err
	}
	applied := false
	if reached {
		if applied, err = decodeBool(res); err != nil {
			return fmt.Errorf("element: %s: %w", op, err)
		}
	}
	if !applied {
		h.noop(op)
	}
	return nil
}

func (h *Handle) exists(ctx context.Context, op string, timeout time.Duration) (bool, error) {
	frag, err := h.cfg.Resolver.Fragment(h.sel, timeout)
	if err != nil {
		return false, fmt.Errorf("element: %s: %w", op, err)
	}
	src, err := existsTmpl.Render(script.Params{"Target": frag})
	if err != nil {
		return false, fmt.Errorf("element: %s: %w", op, err)
	}
	res, err := h.ch.Execute(ctx, src.String())
	if err != nil {
		return false, fmt.Errorf("element: %s: %w", op, err)
	}
	ok, err := decodeBool(res)
	if err != nil {
		return false, fmt.Errorf("element: %s: %w", op, err)
	}
	return ok, nil
}

func (h *Handle) noop(op string) {
	h.cfg.Logger.Debug("element: no-op", "op", op, "selector", h.raw)
}

func decodeBool(res json.RawMessage) (bool, error) {
	var v *bool
	if err := json.Unmarshal(res, &v); err != nil {
		return false, fmt.Errorf("%w: %s", ErrMalformedResult, truncate(res))
	}
	return v != nil && *v, nil
}

func truncate(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
