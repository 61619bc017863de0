// Package channel defines the contract between ectrol and the host page
// context: a script execution path returning JSON-serialised results, and a
// raw input path that bypasses script execution entirely.
//
// Implementations live outside the core (internal/browser adapts a go-rod
// tab, internal/pagesim a goja runtime). Faults reported by an
// implementation are collaborator faults and travel unchanged to callers.
package channel

import (
	"context"
	"encoding/json"
	"errors"
)

// Channel executes scripts in one page context and injects raw input into it.
type Channel interface {
	// Execute evaluates a JavaScript expression in the page and returns its
	// JSON serialisation. undefined and null both come back as "null".
	Execute(ctx context.Context, script string) (json.RawMessage, error)

	// Dispatch delivers one low-level input event through the host's raw
	// input injection facility.
	Dispatch(ctx context.Context, ev InputEvent) error
}

// ErrClosed is returned by implementations whose page context is gone.
var ErrClosed = errors.New("channel: page context closed")

// EventType names a raw input primitive.
type EventType string

const (
	PointerDown EventType = "pointerDown"
	PointerUp   EventType = "pointerUp"
	KeyDown     EventType = "keyDown"
	KeyUp       EventType = "keyUp"
)

// Button is a pointer button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ParseButton maps a user-supplied name onto a Button. Anything unknown,
// including the empty string, is the left button.
func ParseButton(s string) Button {
	switch Button(s) {
	case ButtonRight:
		return ButtonRight
	case ButtonMiddle:
		return ButtonMiddle
	default:
		return ButtonLeft
	}
}

// InputEvent is one raw input event. Pointer events carry coordinates,
// button and click count; key events carry the key name (a DOM key value
// such as "Control", "Enter" or a single character).
type InputEvent struct {
	Type       EventType `json:"type"`
	X          float64   `json:"x,omitempty"`
	Y          float64   `json:"y,omitempty"`
	Button     Button    `json:"button,omitempty"`
	ClickCount int       `json:"click_count,omitempty"`
	Key        string    `json:"key,omitempty"`
}

// IsPointer reports whether the event is a pointer event.
func (e InputEvent) IsPointer() bool {
	return e.Type == PointerDown || e.Type == PointerUp
}
