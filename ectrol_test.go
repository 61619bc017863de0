package ectrol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/ectrol/channel"
	"github.com/hazyhaar/ectrol/dbopen"
	"github.com/hazyhaar/ectrol/element"
	"github.com/hazyhaar/ectrol/gesture"
	"github.com/hazyhaar/ectrol/internal/pagesim"
	"github.com/hazyhaar/ectrol/journal"
	"github.com/hazyhaar/ectrol/kit"
	"github.com/hazyhaar/ectrol/resolver"
	"github.com/hazyhaar/ectrol/storage"
)

const pageFixture = `
	var frame = el(document, 'iframe', {id: 'frame', rect: {left: 100, top: 200, width: 640, height: 480}});
	el(frame.contentDocument, 'button', {id: 'btn', rect: {left: 10, top: 20, width: 100, height: 50}});
	el(document, 'input', {id: 'inputBox', type: 'text', rect: {left: 0, top: 0, width: 200, height: 30}});
	el(document, 'input', {id: 'agree', type: 'checkbox'});
	var sel = el(document, 'select', {id: 'color'});
	el(sel, 'option', {value: 'r', label: 'Red'});
	el(sel, 'option', {value: 'g', label: 'Green'});
`

func testEngine(t *testing.T, opts ...Option) (*Ectrol, *pagesim.Page) {
	t.Helper()
	p := pagesim.New()
	require.NoError(t, p.Load(pageFixture))
	opts = append([]Option{WithPlatform("linux"), WithCadence(gesture.Fixed(0))}, opts...)
	return New(p, opts...), p
}

func TestLocate_ClickThroughFrame(t *testing.T) {
	e, p := testEngine(t)
	require.NoError(t, e.Locate("#frame |> #btn").Click(context.Background(), element.ClickOptions{}))

	evs := p.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, 160.0, evs[0].X)
	assert.Equal(t, 245.0, evs[0].Y)
}

func TestStorageProxies(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	require.NoError(t, e.LocalStorage().SetItem(ctx, "k", "local"))
	require.NoError(t, e.SessionStorage().SetItem(ctx, "k", "session"))

	v, ok, err := e.LocalStorage().GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "local", v)

	v, _, err = e.SessionStorage().GetItem(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "session", v)
}

func TestDo_ElementOps(t *testing.T) {
	e, p := testEngine(t)
	ctx := context.Background()

	resp, err := e.Do(ctx, Request{Op: OpBoundingBox, Selector: "#frame |> #btn"})
	require.NoError(t, err)
	require.NotNil(t, resp.Rect)
	assert.Equal(t, 110.0, resp.Rect.X)
	assert.True(t, *resp.Exists)

	resp, err = e.Do(ctx, Request{Op: OpBoundingBox, Selector: "#nope"})
	require.NoError(t, err)
	assert.Nil(t, resp.Rect)
	assert.False(t, *resp.Exists)

	resp, err = e.Do(ctx, Request{Op: OpExists, Selector: "#inputBox"})
	require.NoError(t, err)
	assert.True(t, *resp.Exists)

	_, err = e.Do(ctx, Request{Op: OpFill, Selector: "#inputBox", Value: "Hello, World!"})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: OpCheck, Selector: "#agree"})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: OpSelectOption, Selector: "#color", Value: "Green"})
	require.NoError(t, err)

	var got []any
	require.NoError(t, p.Eval(`[document.querySelector('#inputBox').value, document.querySelector('#agree').checked, document.querySelector('#color').value]`, &got))
	assert.Equal(t, []any{"Hello, World!", true, "g"}, got)

	_, err = e.Do(ctx, Request{Op: OpPress, Selector: "#inputBox", Key: "Control+a"})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: OpType, Selector: "#inputBox", Value: "ab"})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: OpDoubleClick, Selector: "#inputBox", Modifiers: []string{"Shift"}, Position: &element.Point{X: 1, Y: 2}})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: OpHover, Selector: "#inputBox"})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: OpFocus, Selector: "#inputBox"})
	require.NoError(t, err)

	var keys, pointers int
	for _, ev := range p.Events() {
		if ev.IsPointer() {
			pointers++
			assert.Equal(t, 1.0, ev.X)
			assert.Equal(t, 2.0, ev.Y)
		} else {
			keys++
		}
	}
	assert.Equal(t, 4, pointers)
	// press: 2 down + 2 up, type: 2 x (down+up), dblclick: Shift down/up
	assert.Equal(t, 10, keys)
}

func TestDo_StorageOps(t *testing.T) {
	e, _ := testEngine(t)
	ctx := context.Background()

	resp, err := e.Do(ctx, Request{Op: OpStorageGet, Key: "greeting"})
	require.NoError(t, err)
	assert.False(t, *resp.Found)
	assert.Nil(t, resp.Value)

	_, err = e.Do(ctx, Request{Op: OpStorageSet, Area: "session", Key: "greeting", Value: "hello"})
	require.NoError(t, err)

	resp, err = e.Do(ctx, Request{Op: OpStorageGet, Area: "session", Key: "greeting"})
	require.NoError(t, err)
	assert.True(t, *resp.Found)
	assert.Equal(t, "hello", *resp.Value)

	resp, err = e.Do(ctx, Request{Op: OpStorageGet, Area: "local", Key: "greeting"})
	require.NoError(t, err)
	assert.False(t, *resp.Found)

	_, err = e.Do(ctx, Request{Op: OpStorageRemove, Area: "session", Key: "greeting"})
	require.NoError(t, err)
	resp, err = e.Do(ctx, Request{Op: OpStorageGet, Area: "session", Key: "greeting"})
	require.NoError(t, err)
	assert.False(t, *resp.Found)
}

func TestDo_Validation(t *testing.T) {
	e, p := testEngine(t)
	ctx := context.Background()

	_, err := e.Do(ctx, Request{Op: "teleport", Selector: "#a"})
	require.ErrorIs(t, err, ErrUnknownOp)

	_, err = e.Do(ctx, Request{Op: OpClick})
	require.ErrorIs(t, err, ErrMissingSelector)

	_, err = e.Do(ctx, Request{Op: OpStorageGet})
	require.ErrorIs(t, err, ErrMissingKey)

	_, err = e.Do(ctx, Request{Op: OpStorageGet, Key: "k", Area: "cookies"})
	require.ErrorIs(t, err, storage.ErrUnknownArea)

	assert.Empty(t, p.Scripts())
}

func TestDo_ChannelFault(t *testing.T) {
	e, p := testEngine(t)
	boom := errors.New("renderer crashed")
	p.FailExecute(boom)

	_, err := e.Do(context.Background(), Request{Op: OpExists, Selector: "#inputBox"})
	require.ErrorIs(t, err, boom)
}

func TestDo_Journal(t *testing.T) {
	store := journal.New(dbopen.OpenMemory(t, dbopen.WithSchema(journal.Schema)))
	e, _ := testEngine(t, WithJournal(store))

	ctx := kit.WithRunID(context.Background(), "run_j")
	_, err := e.Do(ctx, Request{Op: OpFill, Selector: "#inputBox", Value: "x"})
	require.NoError(t, err)
	_, err = e.Do(ctx, Request{Op: "nope"})
	require.Error(t, err)

	entries, err := store.Recent(context.Background(), journal.Filter{RunID: "run_j"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	statuses := map[string]string{}
	for _, en := range entries {
		statuses[en.Op] = en.Status
	}
	assert.Equal(t, journal.StatusOK, statuses[OpFill])
	assert.Equal(t, journal.StatusError, statuses["nope"])
}

func TestCooperativeStrategy(t *testing.T) {
	p := pagesim.New()
	p.MustLoad(`appendLater(document.body, document.createElement('button', {id: 'late', rect: {left: 0, top: 0, width: 10, height: 10}}), 30)`)
	e := New(p, WithTiming(Timing{PollInterval: 5 * time.Millisecond}), WithWaitStrategy(resolver.Cooperative))
	assert.Equal(t, resolver.Cooperative, e.Timing().Strategy)

	resp, err := e.Do(context.Background(), Request{Op: OpClick, Selector: "#late", Timeout: Duration(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, OpClick, resp.Op)

	evs := p.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, channel.PointerDown, evs[0].Type)
	assert.Equal(t, 5.0, evs[0].X)
}

func TestCustomCacheKey(t *testing.T) {
	e, p := testEngine(t, WithCacheKey("__custom__"))
	ok, err := e.Locate("#inputBox").Exists(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, ok)

	var isMap bool
	require.NoError(t, p.Eval(`window.__custom__ instanceof Map`, &isMap))
	assert.True(t, isMap)
}
