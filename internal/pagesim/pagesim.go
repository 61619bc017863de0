// Package pagesim is an in-process page context for tests. It hosts a small
// scriptable DOM in a goja runtime, evaluates scripts sent through the
// channel.Channel contract exactly as a browser would, and records raw
// input events instead of delivering them.
//
// Fixtures are built in JavaScript with the helpers from dom.js:
//
//	p := pagesim.New()
//	p.MustLoad(`var f = el(document, 'iframe', {id: 'f', rect: {left: 10, top: 20, width: 300, height: 200}});
//	            el(f.contentDocument, 'button', {id: 'btn', rect: {left: 5, top: 5, width: 40, height: 20}});`)
package pagesim

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/hazyhaar/ectrol/channel"
)

//go:embed dom.js
var domJS string

// DOMEvent is a synthetic DOM event dispatched by a page script.
type DOMEvent struct {
	Type       string `json:"type"`
	Target     string `json:"target"`
	Bubbles    bool   `json:"bubbles"`
	Cancelable bool   `json:"cancelable"`
}

// Page implements channel.Channel on top of a goja runtime.
type Page struct {
	mu       sync.Mutex
	vm       *goja.Runtime
	events   []channel.InputEvent
	warnings []string
	scripts  []string

	execErr     error
	dispatchErr error
	dispatchOK  int
	closed      bool
}

var _ channel.Channel = (*Page)(nil)

// New returns a page with an empty document.
func New() *Page {
	p := &Page{vm: goja.New()}

	console := p.vm.NewObject()
	warn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			parts = append(parts, a.String())
		}
		p.warnings = append(p.warnings, strings.Join(parts, " "))
		return goja.Undefined()
	}
	_ = console.Set("warn", warn)
	_ = console.Set("log", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = p.vm.Set("console", console)

	if _, err := p.vm.RunString(domJS); err != nil {
		panic(fmt.Sprintf("pagesim: load dom: %v", err))
	}
	return p
}

// Load runs fixture code in the page.
func (p *Page) Load(src string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.vm.RunString(src); err != nil {
		return fmt.Errorf("pagesim: load: %w", err)
	}
	return nil
}

// MustLoad is Load that panics.
func (p *Page) MustLoad(src string) {
	if err := p.Load(src); err != nil {
		panic(err)
	}
}

// Execute evaluates script as an expression and returns its JSON encoding.
// Cancelling ctx interrupts a running script.
func (p *Page) Execute(ctx context.Context, script string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.closed {
		return nil, channel.ErrClosed
	}
	p.scripts = append(p.scripts, script)
	if p.execErr != nil {
		return nil, p.execErr
	}

	stop := context.AfterFunc(ctx, func() { p.vm.Interrupt(ctx.Err()) })
	defer func() {
		stop()
		p.vm.ClearInterrupt()
	}()

	v, err := p.vm.RunString("JSON.stringify((" + script + "\n))")
	if err != nil {
		return nil, fmt.Errorf("pagesim: execute: %w", err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(v.String()), nil
}

// Dispatch records ev.
func (p *Page) Dispatch(ctx context.Context, ev channel.InputEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return channel.ErrClosed
	}
	if p.dispatchErr != nil {
		if p.dispatchOK <= 0 {
			return p.dispatchErr
		}
		p.dispatchOK--
	}
	p.events = append(p.events, ev)
	return nil
}

// Close detaches the page; Execute and Dispatch then return
// channel.ErrClosed.
func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// FailExecute makes every subsequent Execute return err. nil restores.
func (p *Page) FailExecute(err error) {
	p.mu.Lock()
	p.execErr = err
	p.mu.Unlock()
}

// FailDispatchAfter lets n more events through, then fails every Dispatch
// with err. nil restores.
func (p *Page) FailDispatchAfter(n int, err error) {
	p.mu.Lock()
	p.dispatchErr = err
	p.dispatchOK = n
	p.mu.Unlock()
}

// Events returns the raw input events dispatched so far.
func (p *Page) Events() []channel.InputEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]channel.InputEvent(nil), p.events...)
}

// Scripts returns every script passed to Execute.
func (p *Page) Scripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scripts...)
}

// Warnings returns the console.warn lines printed by page scripts.
func (p *Page) Warnings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.warnings...)
}

// DOMEvents returns the synthetic events page scripts dispatched on elements.
func (p *Page) DOMEvents() []DOMEvent {
	var out []DOMEvent
	if err := p.evalJSON("__domEvents", &out); err != nil {
		panic(err)
	}
	return out
}

// Queries returns how many querySelector calls the page has served.
func (p *Page) Queries() int {
	var n int
	if err := p.evalJSON("__queries", &n); err != nil {
		panic(err)
	}
	return n
}

// Eval evaluates expr and decodes its JSON encoding into out.
func (p *Page) Eval(expr string, out any) error {
	return p.evalJSON(expr, out)
}

func (p *Page) evalJSON(expr string, out any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := p.vm.RunString("JSON.stringify((" + expr + "\n))")
	if err != nil {
		return fmt.Errorf("pagesim: eval: %w", err)
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return json.Unmarshal([]byte("null"), out)
	}
	return json.Unmarshal([]byte(v.String()), out)
}
