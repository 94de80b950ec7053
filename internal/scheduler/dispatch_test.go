package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/types"
)

type fakeCatalog struct {
	basins []types.RiverBasin
	err    error
}

func (f fakeCatalog) List(context.Context) ([]types.RiverBasin, error) { return f.basins, f.err }

type enqueueCall struct {
	basin      string
	onlyActive bool
	reason     string
	runID      string
}

type fakeEnqueuer struct {
	calls []enqueueCall
	fail  map[string]bool
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, basinCode string, onlyActive bool, reason string) (string, error) {
	runID := types.GetRunID(ctx)
	f.calls = append(f.calls, enqueueCall{basinCode, onlyActive, reason, runID})
	if f.fail[basinCode] {
		return "", errors.New("throttled")
	}
	return runID, nil
}

var testBasins = []types.RiverBasin{
	{ID: 1, Code: "BRANTAS", Name: "Brantas"},
	{ID: 2, Code: "SOLO", Name: "Bengawan Solo"},
	{ID: 3, Code: "CITARUM", Name: "Citarum"},
}

func TestDispatch_AllBasins(t *testing.T) {
	q := &fakeEnqueuer{}
	d := NewBasinDispatcher(fakeCatalog{basins: testBasins}, q, nil)

	res, err := d.Dispatch(context.Background(), DispatchInput{})
	require.NoError(t, err)

	assert.Len(t, res.Enqueued, 3)
	require.Len(t, q.calls, 3)
	seen := map[string]bool{}
	for _, c := range q.calls {
		assert.True(t, c.onlyActive)
		assert.Equal(t, ScheduleReason, c.reason)
		assert.NotEmpty(t, c.runID)
		assert.False(t, seen[c.runID], "each basin gets its own run id")
		seen[c.runID] = true
		assert.Equal(t, c.runID, res.Enqueued[c.basin])
	}
}

func TestDispatch_Subset(t *testing.T) {
	q := &fakeEnqueuer{}
	d := NewBasinDispatcher(fakeCatalog{basins: testBasins}, q, nil)

	res, err := d.Dispatch(context.Background(), DispatchInput{Basins: []string{"SOLO", "MISSING"}, IncludeInactive: true})
	require.NoError(t, err)

	require.Len(t, q.calls, 1)
	assert.Equal(t, "SOLO", q.calls[0].basin)
	assert.False(t, q.calls[0].onlyActive)
	assert.Equal(t, []string{"MISSING"}, res.Skipped)
}

func TestDispatch_ContinuesAfterFailure(t *testing.T) {
	q := &fakeEnqueuer{fail: map[string]bool{"BRANTAS": true}}
	d := NewBasinDispatcher(fakeCatalog{basins: testBasins}, q, nil)

	res, err := d.Dispatch(context.Background(), DispatchInput{})
	require.NoError(t, err)

	assert.Len(t, q.calls, 3)
	assert.Equal(t, []string{"BRANTAS"}, res.Failed)
	assert.Len(t, res.Enqueued, 2)
}

func TestDispatch_CatalogError(t *testing.T) {
	d := NewBasinDispatcher(fakeCatalog{err: errors.New("db down")}, &fakeEnqueuer{}, nil)

	_, err := d.Dispatch(context.Background(), DispatchInput{})
	assert.ErrorContains(t, err, "listing river basins")
}
