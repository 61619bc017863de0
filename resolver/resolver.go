// Package resolver compiles frame-crossing selectors into page scripts.
//
// The compiled fragment evaluates, inside the page, to an entry
// {element, rect} or null. rect.x/rect.y accumulate the top/left offsets of
// every crossed frame, so they are viewport coordinates of the top-level
// document. Successful lookups are memoised in a Map stored on the page
// window under the resolver's cache key; the map lives as long as the
// document and is never evicted from the controller side. A cached entry
// may point at a node the page has since detached.
package resolver

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/hazyhaar/ectrol/script"
	"github.com/hazyhaar/ectrol/selector"
)

//go:embed resolve.js
var resolveJS string

var resolveTmpl = script.Must("resolve", resolveJS)

// DefaultCacheKey is the window property holding the resolution cache.
const DefaultCacheKey = "__ectrol__"

// DefaultPollInterval spaces attempts of the Cooperative strategy.
const DefaultPollInterval = 50 * time.Millisecond

// Strategy selects where waiting for an element happens.
type Strategy int

const (
	// InPage busy-polls inside a single script invocation until the element
	// resolves or the budget elapses. It cannot be interrupted from the
	// controller and blocks the page's main thread while it spins.
	InPage Strategy = iota
	// Cooperative re-runs a zero-timeout lookup from the controller at
	// PollInterval until success, budget exhaustion or ctx cancellation.
	Cooperative
)

func (s Strategy) String() string {
	switch s {
	case InPage:
		return "in_page"
	case Cooperative:
		return "cooperative"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a config value onto a Strategy. Empty means InPage.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "in_page", "inpage":
		return InPage, nil
	case "cooperative":
		return Cooperative, nil
	}
	return InPage, fmt.Errorf("resolver: unknown wait strategy %q", s)
}

// Resolver renders lookup fragments bound to one cache namespace.
type Resolver struct {
	cacheKey string
}

// New returns a Resolver. An empty key selects DefaultCacheKey.
func New(cacheKey string) *Resolver {
	if cacheKey == "" {
		cacheKey = DefaultCacheKey
	}
	return &Resolver{cacheKey: cacheKey}
}

// CacheKey returns the window property used for the cache.
func (r *Resolver) CacheKey() string { return r.cacheKey }

// Fragment compiles sel into an expression yielding {element, rect} or
// null. A positive timeout makes the page busy-poll for at most that long.
func (r *Resolver) Fragment(sel selector.Selector, timeout time.Duration) (script.Fragment, error) {
	if !sel.Valid() {
		return "", selector.ErrEmpty
	}
	ms := timeout.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return resolveTmpl.Render(script.Params{
		"Selector": sel.String(),
		"Segments": sel.Segments(),
		"Timeout":  ms,
		"CacheKey": r.cacheKey,
	})
}

// Poll calls attempt until it reports true, the budget is spent, or ctx
// is done. attempt always runs at least once. Errors from attempt abort
// the loop and are returned as is.
func Poll(ctx context.Context, budget, interval time.Duration, attempt func(context.Context) (bool, error)) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(budget)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := attempt(ctx)
		if err != nil || ok {
			return ok, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
