package element

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/ectrol/channel"
	"github.com/hazyhaar/ectrol/gesture"
	"github.com/hazyhaar/ectrol/resolver"
	"github.com/hazyhaar/ectrol/script"
)

// Rect is the geometry of a resolved element in top-level viewport
// coordinates.
type Rect struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Top     float64 `json:"top"`
	Right   float64 `json:"right"`
	Bottom  float64 `json:"bottom"`
	Left    float64 `json:"left"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
}

// NewRect derives the full geometry from an origin and a size.
func NewRect(x, y, width, height float64) Rect {
	return Rect{
		X: x, Y: y, Width: width, Height: height,
		Top: y, Left: x,
		Right: x + width, Bottom: y + height,
		CenterX: x + width/2, CenterY: y + height/2,
	}
}

// Point is an offset in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClickOptions tune Click and DoubleClick. The zero value is a single
// left click at the element's center.
type ClickOptions struct {
	Button     channel.Button
	ClickCount int
	Delay      time.Duration // between press and release
	Modifiers  []string      // Alt, Control, Meta, Shift, ControlOrMeta
	Position   *Point        // offset from the element's top-left corner
	Timeout    time.Duration
}

type CheckOptions struct {
	Timeout time.Duration
}

type FillOptions struct {
	Timeout time.Duration
}

type FocusOptions struct {
	Timeout time.Duration
}

type PressOptions struct {
	Delay   time.Duration // how long the keys are held
	Timeout time.Duration
}

type SelectOptions struct {
	Timeout time.Duration
}

// TypeOptions tune Type. A nil Cadence uses the engine's cadence.
type TypeOptions struct {
	Timeout time.Duration
	Cadence gesture.Cadence
}

// BoundingBox resolves the element and returns its geometry, or nil when
// it cannot be found within timeout.
func (h *Handle) BoundingBox(ctx context.Context, timeout time.Duration) (*Rect, error) {
	return h.boundingBox(ctx, "bounding_box", timeout)
}

// boundingBox reports faults under op, the operation that asked for the
// geometry.
func (h *Handle) boundingBox(ctx context.Context, op string, timeout time.Duration) (*Rect, error) {
	res, reached, err := h.run(ctx, op, bboxTmpl, timeout, nil)
	if err != nil || !reached {
		return nil, err
	}

	var raw *struct {
		X      *float64 `json:"x"`
		Y      *float64 `json:"y"`
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
	}
	if err := json.Unmarshal(res, &raw); err != nil {
		return nil, fmt.Errorf("element: %s: %w: %s", op, ErrMalformedResult, truncate(res))
	}
	if raw == nil {
		return nil, nil
	}
	if raw.X == nil || raw.Y == nil || raw.Width == nil || raw.Height == nil {
		return nil, fmt.Errorf("element: %s: %w: %s", op, ErrMalformedResult, truncate(res))
	}
	r := NewRect(*raw.X, *raw.Y, *raw.Width, *raw.Height)
	return &r, nil
}

// Exists reports whether the element resolves within timeout.
func (h *Handle) Exists(ctx context.Context, timeout time.Duration) (bool, error) {
	if h.notFound {
		return false, nil
	}
	if h.cfg.Strategy == resolver.Cooperative && timeout > 0 {
		return resolver.Poll(ctx, timeout, h.cfg.PollInterval, func(ctx context.Context) (bool, error) {
			return h.exists(ctx, "exists", 0)
		})
	}
	return h.exists(ctx, "exists", timeout)
}

// Hover dispatches a synthetic mouseover on the element. It does not wait
// for the element and does not move the pointer.
func (h *Handle) Hover(ctx context.Context) error {
	return h.act(ctx, "hover", hoverTmpl, 0, nil)
}

// Click presses and releases a pointer button over the element, by
// default at its center. Modifiers are held across all ClickCount clicks.
func (h *Handle) Click(ctx context.Context, opts ClickOptions) error {
	return h.click(ctx, "click", opts)
}

// DoubleClick is Click with ClickCount forced to 2.
func (h *Handle) DoubleClick(ctx context.Context, opts ClickOptions) error {
	opts.ClickCount = 2
	return h.click(ctx, "dblclick", opts)
}

func (h *Handle) click(ctx context.Context, op string, opts ClickOptions) error {
	rect, err := h.boundingBox(ctx, op, opts.Timeout)
	if err != nil {
		return err
	}
	if rect == nil {
		h.noop(op)
		return nil
	}

	x, y := rect.CenterX, rect.CenterY
	if opts.Position != nil {
		x, y = rect.X+opts.Position.X, rect.Y+opts.Position.Y
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = h.cfg.ClickDelay
	}

	err = h.cfg.Simulator.Click(ctx, gesture.ClickSpec{
		X:         x,
		Y:         y,
		Button:    channel.ParseButton(string(opts.Button)),
		Count:     opts.ClickCount,
		Settle:    delay,
		Modifiers: opts.Modifiers,
	})
	if err != nil {
		return fmt.Errorf("element: %s: %w", op, err)
	}
	return nil
}

// Check ticks a checkbox or selects a radio button and fires change.
func (h *Handle) Check(ctx context.Context, opts CheckOptions) error {
	return h.act(ctx, "check", checkTmpl, opts.Timeout, nil)
}

// Fill focuses a text input, textarea or contenteditable element, sets its
// content to value and fires input.
func (h *Handle) Fill(ctx context.Context, value string, opts FillOptions) error {
	return h.act(ctx, "fill", fillTmpl, opts.Timeout, script.Params{"Value": value})
}

// Focus focuses a text-capable element.
func (h *Handle) Focus(ctx context.Context, opts FocusOptions) error {
	return h.act(ctx, "focus", focusTmpl, opts.Timeout, nil)
}

// Press focuses the element, then presses a key combination such as
// "Control+Shift+A". Keys are sent even when the focus was a no-op.
func (h *Handle) Press(ctx context.Context, combo string, opts PressOptions) error {
	if err := h.Focus(ctx, FocusOptions{Timeout: opts.Timeout}); err != nil {
		return err
	}
	keys := gesture.ParseCombo(combo)
	if len(keys) == 0 {
		return nil
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = h.cfg.PressDelay
	}
	if err := h.cfg.Simulator.Combo(ctx, keys, delay); err != nil {
		return fmt.Errorf("element: press: %w", err)
	}
	return nil
}

// SelectOption picks the option of a select element whose value, or
// failing that whose label, equals value. It fires input then change.
func (h *Handle) SelectOption(ctx context.Context, value string, opts SelectOptions) error {
	return h.act(ctx, "select_option", selectTmpl, opts.Timeout, script.Params{"Value": value})
}

// Type focuses the element and sends one key press per character with a
// human-like pause between characters.
func (h *Handle) Type(ctx context.Context, text string, opts TypeOptions) error {
	if err := h.Focus(ctx, FocusOptions{Timeout: opts.Timeout}); err != nil {
		return err
	}
	cadence := opts.Cadence
	if cadence == nil {
		cadence = h.cfg.Cadence
	}
	if err := h.cfg.Simulator.Type(ctx, text, cadence); err != nil {
		return fmt.Errorf("element: type: %w", err)
	}
	return nil
}
