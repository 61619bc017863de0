// Package gesture turns high-level gestures into ordered raw input events
// on a channel.Channel.
//
// Every gesture is a fixed sequence: press the modifiers, perform the
// body, release the modifiers. If the channel fails midway the simulator
// releases whatever it already pressed (best effort, errors ignored) and
// returns the original fault, so a broken gesture never leaves a key or
// button stuck down in the page.
package gesture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/ectrol/channel"
)

// DefaultDelay is the settle time between press and release.
const DefaultDelay = 10 * time.Millisecond

// Simulator emits gestures on one channel. It holds no per-gesture state
// and is safe to reuse.
type Simulator struct {
	ch     channel.Channel
	logger *slog.Logger
	goos   string
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used for dropped modifiers and release failures.
func WithLogger(l *slog.Logger) Option { return func(s *Simulator) { s.logger = l } }

// WithPlatform overrides the OS used to resolve ControlOrMeta.
func WithPlatform(goos string) Option { return func(s *Simulator) { s.goos = goos } }

// New returns a Simulator dispatching on ch.
func New(ch channel.Channel, opts ...Option) *Simulator {
	s := &Simulator{ch: ch, logger: slog.Default(), goos: hostOS()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ClickSpec describes a pointer gesture at viewport coordinates.
type ClickSpec struct {
	X, Y      float64
	Button    channel.Button
	Count     int           // repetitions; < 1 means 1
	Settle    time.Duration // between down and up; <= 0 means DefaultDelay
	Modifiers []string      // held for the whole sequence
}

// Click presses the modifiers, performs Count press/release pairs at
// (X, Y), then releases the modifiers. Each pair reports its 1-based
// index as the click count.
func (s *Simulator) Click(ctx context.Context, spec ClickSpec) error {
	count := spec.Count
	if count < 1 {
		count = 1
	}
	settle := spec.Settle
	if settle <= 0 {
		settle = DefaultDelay
	}
	button := spec.Button
	if button == "" {
		button = channel.ButtonLeft
	}

	t := s.track()
	mods := s.modifiers(spec.Modifiers)
	for _, m := range mods {
		if err := t.keyDown(ctx, m); err != nil {
			return t.abort(ctx, "click", err)
		}
	}

	for i := 1; i <= count; i++ {
		down := channel.InputEvent{Type: channel.PointerDown, X: spec.X, Y: spec.Y, Button: button, ClickCount: i}
		if err := t.pointerDown(ctx, down); err != nil {
			return t.abort(ctx, "click", err)
		}
		if err := Sleep(ctx, settle); err != nil {
			return t.abort(ctx, "click", err)
		}
		up := down
		up.Type = channel.PointerUp
		if err := t.pointerUp(ctx, up); err != nil {
			return t.abort(ctx, "click", err)
		}
	}

	for _, m := range mods {
		if err := t.keyUp(ctx, m); err != nil {
			return t.abort(ctx, "click", err)
		}
	}
	return nil
}

// Combo presses every key left to right, holds for hold (DefaultDelay when
// <= 0), then releases every key in the same left-to-right order.
func (s *Simulator) Combo(ctx context.Context, keys []string, hold time.Duration) error {
	if hold <= 0 {
		hold = DefaultDelay
	}
	t := s.track()
	for _, k := range keys {
		if err := t.keyDown(ctx, k); err != nil {
			return t.abort(ctx, "combo", err)
		}
	}
	if err := Sleep(ctx, hold); err != nil {
		return t.abort(ctx, "combo", err)
	}
	for _, k := range keys {
		if err := t.keyUp(ctx, k); err != nil {
			return t.abort(ctx, "combo", err)
		}
	}
	return nil
}

// Type sends one key press per character of text, waiting cadence(i)
// between characters. A nil cadence types without pauses.
func (s *Simulator) Type(ctx context.Context, text string, cadence Cadence) error {
	runes := []rune(text)
	t := s.track()
	for i, r := range runes {
		k := string(r)
		if r == '\n' {
			k = "Enter"
		}
		if err := t.keyDown(ctx, k); err != nil {
			return t.abort(ctx, "type", err)
		}
		if err := t.keyUp(ctx, k); err != nil {
			return t.abort(ctx, "type", err)
		}
		if cadence == nil || i == len(runes)-1 {
			continue
		}
		if err := Sleep(ctx, cadence(i, runes)); err != nil {
			return fmt.Errorf("gesture: type: %w", err)
		}
	}
	return nil
}

func (s *Simulator) modifiers(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		k, ok := ResolveModifier(n, s.goos)
		if !ok {
			s.logger.Debug("gesture: unknown modifier dropped", "modifier", n)
			continue
		}
		out = append(out, k)
	}
	return out
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// tracker remembers what a gesture currently holds down.
type tracker struct {
	s       *Simulator
	keys    []string
	pointer *channel.InputEvent
}

func (s *Simulator) track() *tracker { return &tracker{s: s} }

func (t *tracker) keyDown(ctx context.Context, key string) error {
	if err := t.s.ch.Dispatch(ctx, channel.InputEvent{Type: channel.KeyDown, Key: key}); err != nil {
		return err
	}
	t.keys = append(t.keys, key)
	return nil
}

func (t *tracker) keyUp(ctx context.Context, key string) error {
	if err := t.s.ch.Dispatch(ctx, channel.InputEvent{Type: channel.KeyUp, Key: key}); err != nil {
		return err
	}
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return nil
}

func (t *tracker) pointerDown(ctx context.Context, ev channel.InputEvent) error {
	if err := t.s.ch.Dispatch(ctx, ev); err != nil {
		return err
	}
	t.pointer = &ev
	return nil
}

func (t *tracker) pointerUp(ctx context.Context, ev channel.InputEvent) error {
	if err := t.s.ch.Dispatch(ctx, ev); err != nil {
		return err
	}
	t.pointer = nil
	return nil
}

// abort releases everything still held and returns cause wrapped.
func (t *tracker) abort(ctx context.Context, op string, cause error) error {
	rctx := context.WithoutCancel(ctx)
	if t.pointer != nil {
		up := *t.pointer
		up.Type = channel.PointerUp
		if err := t.s.ch.Dispatch(rctx, up); err != nil {
			t.s.logger.Debug("gesture: release pointer failed", "op", op, "error", err)
		}
	}
	for _, k := range t.keys {
		if err := t.s.ch.Dispatch(rctx, channel.InputEvent{Type: channel.KeyUp, Key: k}); err != nil {
			t.s.logger.Debug("gesture: release key failed", "op", op, "key", k, "error", err)
		}
	}
	return fmt.Errorf("gesture: %s: %w", op, cause)
}
