package ectrol

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/ectrol/channel"
	"github.com/hazyhaar/ectrol/element"
	"github.com/hazyhaar/ectrol/storage"
)

// Operation names accepted by Do.
const (
	OpBoundingBox   = "bounding_box"
	OpExists        = "exists"
	OpHover         = "hover"
	OpClick         = "click"
	OpDoubleClick   = "dblclick"
	OpCheck         = "check"
	OpFill          = "fill"
	OpPress         = "press"
	OpFocus         = "focus"
	OpSelectOption  = "select_option"
	OpType          = "type"
	OpStorageGet    = "storage_get"
	OpStorageSet    = "storage_set"
	OpStorageRemove = "storage_remove"
)

var (
	ErrUnknownOp       = errors.New("ectrol: unknown operation")
	ErrMissingSelector = errors.New("ectrol: selector required")
	ErrMissingKey      = errors.New("ectrol: key required")
)

// Request is the uniform form of every operation. Fields an operation does
// not use are ignored.
type Request struct {
	Op         string         `json:"op" yaml:"op"`
	Selector   string         `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value      string         `json:"value,omitempty" yaml:"value,omitempty"`   // fill, type, select_option, storage_set
	Key        string         `json:"key,omitempty" yaml:"key,omitempty"`       // press combo, storage key
	Area       string         `json:"area,omitempty" yaml:"area,omitempty"`     // local (default) or session
	Timeout    Duration       `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Button     string         `json:"button,omitempty" yaml:"button,omitempty"`
	ClickCount int            `json:"click_count,omitempty" yaml:"click_count,omitempty"`
	Delay      Duration       `json:"delay,omitempty" yaml:"delay,omitempty"`
	Modifiers  []string       `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Position   *element.Point `json:"position,omitempty" yaml:"position,omitempty"`
}

// ActionName implements journal.Action.
func (r *Request) ActionName() string { return r.Op }

// ActionTarget implements journal.Action.
func (r *Request) ActionTarget() string {
	if r.Selector != "" {
		return r.Selector
	}
	return r.Key
}

// Response carries whatever the operation produced.
type Response struct {
	Op     string        `json:"op"`
	Rect   *element.Rect `json:"rect,omitempty"`
	Exists *bool         `json:"exists,omitempty"`
	Value  *string       `json:"value,omitempty"` // storage_get, nil when absent
	Found  *bool         `json:"found,omitempty"` // storage_get
}

// Ops lists the operations Do accepts, in a stable order.
func Ops() []string {
	return []string{
		OpBoundingBox, OpExists, OpHover, OpClick, OpDoubleClick, OpCheck, OpFill,
		OpPress, OpFocus, OpSelectOption, OpType, OpStorageGet, OpStorageSet, OpStorageRemove,
	}
}

func needsSelector(op string) bool {
	switch op {
	case OpStorageGet, OpStorageSet, OpStorageRemove:
		return false
	}
	return true
}

// Do runs one request against the page.
func (e *Ectrol) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := e.endpoint(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resp.(*Response), nil
}

func (e *Ectrol) dispatch(ctx context.Context, in any) (any, error) {
	r := in.(*Request)
	if !knownOp(r.Op) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, r.Op)
	}
	if needsSelector(r.Op) && r.Selector == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSelector, r.Op)
	}

	resp := &Response{Op: r.Op}
	timeout := r.Timeout.Std()

	switch r.Op {
	case OpBoundingBox:
		rect, err := e.Locate(r.Selector).BoundingBox(ctx, timeout)
		if err != nil {
			return nil, err
		}
		resp.Rect = rect
		ok := rect != nil
		resp.Exists = &ok
		return resp, nil

	case OpExists:
		ok, err := e.Locate(r.Selector).Exists(ctx, timeout)
		if err != nil {
			return nil, err
		}
		resp.Exists = &ok
		return resp, nil

	case OpHover:
		return resp, e.Locate(r.Selector).Hover(ctx)

	case OpClick, OpDoubleClick:
		opts := element.ClickOptions{
			Button:     channel.ParseButton(r.Button),
			ClickCount: r.ClickCount,
			Delay:      r.Delay.Std(),
			Modifiers:  r.Modifiers,
			Position:   r.Position,
			Timeout:    timeout,
		}
		h := e.Locate(r.Selector)
		if r.Op == OpDoubleClick {
			return resp, h.DoubleClick(ctx, opts)
		}
		return resp, h.Click(ctx, opts)

	case OpCheck:
		return resp, e.Locate(r.Selector).Check(ctx, element.CheckOptions{Timeout: timeout})

	case OpFill:
		return resp, e.Locate(r.Selector).Fill(ctx, r.Value, element.FillOptions{Timeout: timeout})

	case OpPress:
		combo := r.Key
		if combo == "" {
			combo = r.Value
		}
		return resp, e.Locate(r.Selector).Press(ctx, combo, element.PressOptions{Delay: r.Delay.Std(), Timeout: timeout})

	case OpFocus:
		return resp, e.Locate(r.Selector).Focus(ctx, element.FocusOptions{Timeout: timeout})

	case OpSelectOption:
		return resp, e.Locate(r.Selector).SelectOption(ctx, r.Value, element.SelectOptions{Timeout: timeout})

	case OpType:
		return resp, e.Locate(r.Selector).Type(ctx, r.Value, element.TypeOptions{Timeout: timeout})
	}

	// Storage operations.
	if r.Key == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, r.Op)
	}
	p, err := e.area(r.Area)
	if err != nil {
		return nil, err
	}
	switch r.Op {
	case OpStorageGet:
		v, ok, err := p.GetItem(ctx, r.Key)
		if err != nil {
			return nil, err
		}
		resp.Found = &ok
		if ok {
			resp.Value = &v
		}
		return resp, nil
	case OpStorageSet:
		return resp, p.SetItem(ctx, r.Key, r.Value)
	default:
		return resp, p.RemoveItem(ctx, r.Key)
	}
}

func (e *Ectrol) area(name string) (*storage.Proxy, error) {
	if name == "" {
		return e.local, nil
	}
	a, err := storage.ParseArea(name)
	if err != nil {
		return nil, err
	}
	if a == storage.Session {
		return e.session, nil
	}
	return e.local, nil
}

func knownOp(op string) bool {
	for _, o := range Ops() {
		if o == op {
			return true
		}
	}
	return false
}
