// Package storage proxies the page's Web Storage areas. A Proxy is
// stateless: every call is exactly one statement executed in the page.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/ectrol/channel"
	"github.com/hazyhaar/ectrol/script"
)

// Area names a Web Storage area.
type Area string

const (
	Local   Area = "localStorage"
	Session Area = "sessionStorage"
)

// ErrUnknownArea is returned by ParseArea.
var ErrUnknownArea = errors.New("storage: unknown area")

// ParseArea accepts "local", "session" or the area's global name.
func ParseArea(s string) (Area, error) {
	switch s {
	case "local", string(Local):
		return Local, nil
	case "session", string(Session):
		return Session, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownArea, s)
}

// Proxy reads and writes one storage area of one page context.
type Proxy struct {
	ch   channel.Channel
	area Area
}

// New returns a proxy on area.
func New(ch channel.Channel, area Area) *Proxy {
	return &Proxy{ch: ch, area: area}
}

// Area returns the proxied area.
func (p *Proxy) Area() Area { return p.area }

// GetItem returns the value stored under key. ok is false when the key is
// absent, which is distinct from an empty value.
func (p *Proxy) GetItem(ctx context.Context, key string) (value string, ok bool, err error) {
	res, err := p.call(ctx, "getItem", key)
	if err != nil {
		return "", false, err
	}
	var v *string
	if err := json.Unmarshal(res, &v); err != nil {
		return "", false, fmt.Errorf("storage: %s.getItem: malformed result: %w", p.area, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// SetItem stores value under key.
func (p *Proxy) SetItem(ctx context.Context, key, value string) error {
	_, err := p.call(ctx, "setItem", key, value)
	return err
}

// RemoveItem deletes key. Removing an absent key is not an error.
func (p *Proxy) RemoveItem(ctx context.Context, key string) error {
	_, err := p.call(ctx, "removeItem", key)
	return err
}

func (p *Proxy) call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	src, err := script.Call(string(p.area), method, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: %s.%s: %w", p.area, method, err)
	}
	res, err := p.ch.Execute(ctx, src.String())
	if err != nil {
		return nil, fmt.Errorf("storage: %s.%s: %w", p.area, method, err)
	}
	return res, nil
}
