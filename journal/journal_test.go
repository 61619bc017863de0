package journal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/ectrol/dbopen"
	"github.com/hazyhaar/ectrol/kit"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return New(db)
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, &Entry{
			Time:     base.Add(time.Duration(i) * time.Second),
			Op:       "click",
			Selector: fmt.Sprintf("#b%d", i),
			RunID:    "run_a",
		}))
	}
	require.NoError(t, s.Record(ctx, &Entry{Time: base.Add(time.Hour), Op: "fill", RunID: "run_b"}))

	all, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "fill", all[0].Op)
	assert.Equal(t, StatusOK, all[0].Status)
	assert.NotEmpty(t, all[0].ID)
	assert.True(t, all[0].Time.Equal(base.Add(time.Hour)))

	runA, err := s.Recent(ctx, Filter{RunID: "run_a", Limit: 2})
	require.NoError(t, err)
	require.Len(t, runA, 2)
	assert.Equal(t, "#b2", runA[0].Selector)
	assert.Equal(t, "#b1", runA[1].Selector)

	fills, err := s.Recent(ctx, Filter{Op: "fill"})
	require.NoError(t, err)
	assert.Len(t, fills, 1)
}

func TestPrune(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, &Entry{Time: base.Add(time.Duration(i) * time.Millisecond), Op: "exists"}))
	}

	n, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := s.Recent(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

type fakeReq struct {
	Op       string `json:"op"`
	Selector string `json:"selector"`
}

func (r fakeReq) ActionName() string   { return r.Op }
func (r fakeReq) ActionTarget() string { return r.Selector }

func TestMiddleware(t *testing.T) {
	s := testStore(t)
	ctx := kit.WithRunID(kit.WithTransport(context.Background(), "playbook"), "run_x")

	ok := s.Middleware()(func(context.Context, any) (any, error) {
		return map[string]bool{"exists": true}, nil
	})
	_, err := ok(ctx, fakeReq{Op: "exists", Selector: "#a"})
	require.NoError(t, err)

	boom := errors.New("renderer gone")
	fail := s.Middleware()(func(context.Context, any) (any, error) { return nil, boom })
	_, err = fail(ctx, fakeReq{Op: "click", Selector: "#b"})
	require.ErrorIs(t, err, boom)

	entries, err := s.Recent(ctx, Filter{RunID: "run_x"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byOp := map[string]*Entry{}
	for _, e := range entries {
		byOp[e.Op] = e
	}
	require.Contains(t, byOp, "exists")
	assert.Equal(t, StatusOK, byOp["exists"].Status)
	assert.Equal(t, "#a", byOp["exists"].Selector)
	assert.Equal(t, "playbook", byOp["exists"].Transport)
	assert.JSONEq(t, `{"exists": true}`, byOp["exists"].Result)
	assert.JSONEq(t, `{"op": "exists", "selector": "#a"}`, byOp["exists"].Params)

	require.Contains(t, byOp, "click")
	assert.Equal(t, StatusError, byOp["click"].Status)
	assert.Equal(t, "renderer gone", byOp["click"].Error)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), &Entry{Op: "hover"}))
	got, err := s.Recent(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "act_", got[0].ID[:4])
}
