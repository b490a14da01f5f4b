package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/forcegraph/internal/cache"
)

// fakeStore implements Store for testing without a real DB.
type fakeStore struct {
	mu       sync.Mutex
	graph    Graph
	loadErr  error
	saveErr  error
	runErr   error
	saved    [][]Position
	runs     []Run
	maxNodes int
	loads    int
}

func (f *fakeStore) LoadGraph(ctx context.Context, maxNodes int) (Graph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxNodes = maxNodes
	f.loads++
	return f.graph, f.loadErr
}

func (f *fakeStore) SavePositions(ctx context.Context, positions []Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, positions)
	return nil
}

func (f *fakeStore) RecordRun(ctx context.Context, run Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return f.runErr
}

func testParams() Params {
	p := DefaultParams()
	p.Iterations = 20
	return p
}

func TestPrecalculateLayoutSavesAndRecords(t *testing.T) {
	store := &fakeStore{graph: ringGraph(10)}
	svc := NewService(store, nil, testParams(), 500)

	require.NoError(t, svc.PrecalculateLayout(context.Background()))

	assert.Equal(t, 500, store.maxNodes)
	require.Len(t, store.saved, 1)
	assert.Len(t, store.saved[0], 10)
	require.Len(t, store.runs, 1)

	run := store.runs[0]
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 10, run.Nodes)
	assert.Equal(t, 10, run.Links)
	assert.Equal(t, 10, run.Saved)
	assert.Equal(t, testParams(), run.Params)
}

func TestPrecalculateLayoutEmptyGraph(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, testParams(), 0)

	require.NoError(t, svc.PrecalculateLayout(context.Background()))
	assert.Empty(t, store.saved)
	assert.Empty(t, store.runs)
}

func TestPrecalculateLayoutErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("load", func(t *testing.T) {
		svc := NewService(&fakeStore{loadErr: boom}, nil, testParams(), 0)
		assert.ErrorIs(t, svc.PrecalculateLayout(context.Background()), boom)
	})

	t.Run("save", func(t *testing.T) {
		store := &fakeStore{graph: ringGraph(4), saveErr: boom}
		svc := NewService(store, nil, testParams(), 0)
		assert.ErrorIs(t, svc.PrecalculateLayout(context.Background()), boom)
		assert.Empty(t, store.runs)
	})

	t.Run("record run is not fatal", func(t *testing.T) {
		store := &fakeStore{graph: ringGraph(4), runErr: boom}
		svc := NewService(store, nil, testParams(), 0)
		assert.NoError(t, svc.PrecalculateLayout(context.Background()))
		assert.Len(t, store.saved, 1)
	})

	t.Run("invalid graph", func(t *testing.T) {
		store := &fakeStore{graph: Graph{Nodes: []Node{{ID: "a"}, {ID: "a"}}}}
		svc := NewService(store, nil, testParams(), 0)
		assert.ErrorIs(t, svc.PrecalculateLayout(context.Background()), ErrInvalidGraph)
	})

	t.Run("no store", func(t *testing.T) {
		svc := NewService(nil, nil, testParams(), 0)
		assert.Error(t, svc.PrecalculateLayout(context.Background()))
	})
}

func TestMovedPositions(t *testing.T) {
	g := Graph{Nodes: []Node{
		{ID: "still", X: 1, Y: 1, HasPos: true},
		{ID: "moved", X: 0, Y: 0, HasPos: true},
		{ID: "new"},
	}}
	positions := []Position{
		{ID: "still", X: 1.05, Y: 1},
		{ID: "moved", X: 3, Y: 4},
		{ID: "new", X: 0, Y: 0},
	}

	got := movedPositions(g, positions, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, "moved", got[0].ID)
	assert.Equal(t, "new", got[1].ID)

	assert.Len(t, movedPositions(g, positions, 0), 3)
}

func TestComputeCached(t *testing.T) {
	c := cache.NewMockCache()
	svc := NewService(nil, c, testParams(), 0)
	g := ringGraph(6)

	first, hit, err := svc.ComputeCached(context.Background(), g, testParams())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(1), c.Stats().Items)

	second, hit, err := svc.ComputeCached(context.Background(), g, testParams())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Positions, second.Positions)
	assert.Equal(t, first.Iterations, second.Iterations)

	// Different params must not share the cached entry.
	p := testParams()
	p.Iterations = 5
	third, hit, err := svc.ComputeCached(context.Background(), g, p)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, third.Iterations)
	assert.Equal(t, int64(2), c.Stats().Items)
}

func TestComputeCachedDropsCorruptEntry(t *testing.T) {
	c := cache.NewMockCache()
	svc := NewService(nil, c, testParams(), 0)
	g := ringGraph(3)

	key, err := cacheKey(g, testParams())
	require.NoError(t, err)
	c.Set(key, []byte("{not json"), 0)

	res, hit, err := svc.ComputeCached(context.Background(), g, testParams())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, res.Positions, 3)
}

func TestComputeCachedWithoutCache(t *testing.T) {
	svc := NewService(nil, nil, testParams(), 0)
	res, hit, err := svc.ComputeCached(context.Background(), ringGraph(3), testParams())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, res.Positions, 3)
}

func TestCacheKeyIsStable(t *testing.T) {
	a, err := cacheKey(ringGraph(5), testParams())
	require.NoError(t, err)
	b, err := cacheKey(ringGraph(5), testParams())
	require.NoError(t, err)
	c, err := cacheKey(ringGraph(6), testParams())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "layout:")
}
