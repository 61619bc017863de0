package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/ectrol/channel"
)

// DefaultNavigateTimeout bounds OpenTab's navigation when the caller gives none.
const DefaultNavigateTimeout = 30 * time.Second

// Tab is one Rod page adapted to channel.Channel.
type Tab struct {
	page    *rod.Page
	url     string
	router  *rod.HijackRouter
	manager *Manager

	// Dispatch holds mu so the events of concurrent gestures never interleave.
	mu     sync.Mutex
	closed bool
}

var _ channel.Channel = (*Tab)(nil)

// OpenTab creates a tab on mgr's browser, applies stealth and resource
// blocking, and navigates to pageURL unless it is empty.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, navTimeout time.Duration) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{page: page, url: pageURL, manager: mgr}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router = blockResources(page, mgr.cfg.ResourceBlocking)
	}

	if pageURL == "" {
		return t, nil
	}
	if navTimeout <= 0 {
		navTimeout = DefaultNavigateTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	mgr.cfg.Logger.Info("browser: tab ready", "url", pageURL)
	return t, nil
}

// URL is the address the tab was opened on.
func (t *Tab) URL() string { return t.url }

// Execute evaluates script as an expression in the tab's main frame.
func (t *Tab) Execute(ctx context.Context, script string) (json.RawMessage, error) {
	if t.isClosed() {
		return nil, channel.ErrClosed
	}
	res, err := t.page.Context(ctx).Eval("() => (" + script + "\n)")
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return rawJSON(res.Value), nil
}

func rawJSON(v gson.JSON) json.RawMessage {
	if v.Nil() {
		return json.RawMessage("null")
	}
	return json.RawMessage(v.JSON("", ""))
}

// Dispatch injects ev through the DevTools Input domain.
func (t *Tab) Dispatch(ctx context.Context, ev channel.InputEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return channel.ErrClosed
	}

	var err error
	switch ev.Type {
	case channel.PointerDown, channel.PointerUp:
		err = t.pointer(ev)
	case channel.KeyDown:
		err = t.keyDown(ev.Key)
	case channel.KeyUp:
		err = t.keyUp(ev.Key)
	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}
	if err != nil {
		return fmt.Errorf("browser: dispatch %s: %w", ev.Type, err)
	}
	return nil
}

func (t *Tab) pointer(ev channel.InputEvent) error {
	m := t.page.Mouse
	if err := m.MoveTo(proto.Point{X: ev.X, Y: ev.Y}); err != nil {
		return err
	}
	n := ev.ClickCount
	if n < 1 {
		n = 1
	}
	if ev.Type == channel.PointerDown {
		return m.Down(mouseButton(ev.Button), n)
	}
	return m.Up(mouseButton(ev.Button), n)
}

// keyDown presses keys Rod knows and inserts any other single character
// as text.
func (t *Tab) keyDown(key string) error {
	if k, ok := rodKey(key); ok {
		return t.page.Keyboard.Press(k)
	}
	if len([]rune(key)) == 1 {
		return t.page.InsertText(key)
	}
	t.manager.cfg.Logger.Debug("browser: unmapped key dropped", "key", key)
	return nil
}

func (t *Tab) keyUp(key string) error {
	if k, ok := rodKey(key); ok {
		return t.page.Keyboard.Release(k)
	}
	return nil
}

func (t *Tab) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close stops request interception and closes the tab. Later calls on the
// tab return channel.ErrClosed.
func (t *Tab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}

func mouseButton(b channel.Button) proto.InputMouseButton {
	switch b {
	case channel.ButtonRight:
		return proto.InputMouseButtonRight
	case channel.ButtonMiddle:
		return proto.InputMouseButtonMiddle
	}
	return proto.InputMouseButtonLeft
}
