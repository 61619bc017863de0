package playbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/ectrol"
	"github.com/hazyhaar/ectrol/gesture"
	"github.com/hazyhaar/ectrol/internal/pagesim"
	"github.com/hazyhaar/ectrol/kit"
)

const loginYAML = `
name: login
steps:
  - {op: storage_set, area: local, key: greeting, value: hello}
  - {op: click, selector: "#frame |> #btn", timeout: 2s}
  - {op: fill, selector: "#inputBox", value: "Hello, World!"}
  - {op: exists, selector: "#inputBox", timeout: 100ms, expect: true}
  - {op: storage_get, key: greeting, expect: hello}
`

func newPage(t *testing.T) (*ectrol.Ectrol, *pagesim.Page) {
	t.Helper()
	p := pagesim.New()
	p.MustLoad(`
		var frame = el(document, 'iframe', {id: 'frame', rect: {left: 100, top: 200, width: 640, height: 480}});
		el(frame.contentDocument, 'button', {id: 'btn', rect: {left: 10, top: 20, width: 100, height: 50}});
		el(document, 'input', {id: 'inputBox', type: 'text'});
	`)
	return ectrol.New(p, ectrol.WithPlatform("linux"), ectrol.WithCadence(gesture.Fixed(0))), p
}

func TestParse(t *testing.T) {
	pb, err := Parse([]byte(loginYAML))
	require.NoError(t, err)
	assert.Equal(t, "login", pb.Name)
	require.Len(t, pb.Steps, 5)
	assert.Equal(t, ectrol.OpClick, pb.Steps[1].Op)
	assert.Equal(t, 2*time.Second, pb.Steps[1].Timeout.Std())
	assert.Equal(t, true, pb.Steps[3].Expect)
	assert.Equal(t, "hello", pb.Steps[4].Expect)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("name: empty\n"))
	assert.ErrorIs(t, err, ErrNoSteps)

	_, err = Parse([]byte("steps:\n  - {op: teleport}\n"))
	assert.ErrorIs(t, err, ectrol.ErrUnknownOp)

	_, err = Parse([]byte("steps: [\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loginYAML), 0o644))
	pb, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, pb.Steps, 5)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRun_Login(t *testing.T) {
	e, p := newPage(t)
	pb, err := Parse([]byte(loginYAML))
	require.NoError(t, err)

	rep, err := NewRunner(e, WithIDGenerator(func() string { return "run_test" })).Run(context.Background(), pb)
	require.NoError(t, err)
	assert.Equal(t, "run_test", rep.RunID)
	assert.Zero(t, rep.Failed)
	require.Len(t, rep.Steps, 5)

	evs := p.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, 160.0, evs[0].X)

	var v string
	require.NoError(t, p.Eval(`document.querySelector('#inputBox').value`, &v))
	assert.Equal(t, "Hello, World!", v)
}

func TestRun_ExpectationFails(t *testing.T) {
	e, _ := newPage(t)
	pb, err := Parse([]byte(`
steps:
  - {op: exists, selector: "#missing", expect: true}
  - {op: fill, selector: "#inputBox", value: never}
`))
	require.NoError(t, err)

	rep, err := Run(context.Background(), e, pb)
	require.ErrorIs(t, err, ErrExpectation)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Steps, 1)
	assert.Contains(t, rep.Steps[0].Error, "want true, got false")
}

func TestRun_ContinueOnError(t *testing.T) {
	e, _ := newPage(t)
	pb, err := Parse([]byte(`
steps:
  - {op: storage_get, key: nothing, expect: hello, continue_on_error: true}
  - {op: storage_get, key: nothing, expect: false}
`))
	require.NoError(t, err)

	rep, err := Run(context.Background(), e, pb)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Steps, 2)
	assert.Empty(t, rep.Steps[1].Error)
}

type doerFunc func(ctx context.Context, req ectrol.Request) (*ectrol.Response, error)

func (f doerFunc) Do(ctx context.Context, req ectrol.Request) (*ectrol.Response, error) {
	return f(ctx, req)
}

func TestRun_ContextTagging(t *testing.T) {
	var runIDs, transports, ops []string
	d := doerFunc(func(ctx context.Context, req ectrol.Request) (*ectrol.Response, error) {
		runIDs = append(runIDs, kit.GetRunID(ctx))
		transports = append(transports, kit.GetTransport(ctx))
		ops = append(ops, req.Op)
		if req.Op == ectrol.OpHover {
			return nil, errors.New("channel closed")
		}
		return &ectrol.Response{Op: req.Op}, nil
	})
	pb := &Playbook{Steps: []Step{
		{Request: ectrol.Request{Op: ectrol.OpFocus, Selector: "#a"}},
		{Request: ectrol.Request{Op: ectrol.OpHover, Selector: "#a"}},
		{Request: ectrol.Request{Op: ectrol.OpFocus, Selector: "#b"}},
	}}

	rep, err := Run(context.Background(), d, pb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	assert.Equal(t, []string{ectrol.OpFocus, ectrol.OpHover}, ops)
	assert.Equal(t, []string{"playbook", "playbook"}, transports)
	assert.Equal(t, runIDs[0], runIDs[1])
	assert.Equal(t, rep.RunID, runIDs[0])
	assert.Contains(t, rep.RunID, "run_")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := doerFunc(func(context.Context, ectrol.Request) (*ectrol.Response, error) {
		t.Fatal("no step should run")
		return nil, nil
	})
	_, err := Run(ctx, d, &Playbook{Steps: []Step{{Request: ectrol.Request{Op: ectrol.OpHover, Selector: "#a"}}}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheck_Unsupported(t *testing.T) {
	ok := true
	err := check(Step{Request: ectrol.Request{Op: ectrol.OpExists}, Expect: 3}, &ectrol.Response{Exists: &ok})
	assert.ErrorIs(t, err, ErrExpectation)

	err = check(Step{Request: ectrol.Request{Op: ectrol.OpFill}, Expect: true}, &ectrol.Response{})
	assert.ErrorIs(t, err, ErrExpectation)
}
