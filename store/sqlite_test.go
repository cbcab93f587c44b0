package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/optpricer/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(t *testing.T, command string, kind models.PayoffKind, at time.Time) *Run {
	t.Helper()
	c, err := models.NewContractSpec(kind, 100, 1, models.European)
	require.NoError(t, err)
	m, err := models.NewMarketParameters(100, 0.05, 0, 0.2)
	require.NoError(t, err)

	res := models.PricingResult{
		Price:         10.45,
		StandardError: 0.01,
		Paths:         1000,
		Method:        models.MethodMonteCarlo,
		Greeks:        models.Greeks{models.Delta: 0.63, models.Vega: 37.5},
	}
	run := NewRun(command, c, m, res, 1500*time.Millisecond)
	run.Timestamp = at
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun(t, "price", models.Call, at)
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, at.Equal(got.Timestamp))
	assert.Equal(t, "call", got.Kind)
	assert.Equal(t, "european", got.Exercise)
	assert.Equal(t, 10.45, got.Price)
	assert.Equal(t, 1000, got.Paths)
	assert.Equal(t, run.Greeks, got.Greeks)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)

	t.Run("duplicate id", func(t *testing.T) {
		assert.Error(t, s.SaveRun(ctx, run))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		bad := *run
		bad.ID = ""
		assert.Error(t, s.SaveRun(ctx, &bad))
	})

	t.Run("runs without greeks", func(t *testing.T) {
		bare := sampleRun(t, "implied", models.Put, at)
		bare.Greeks = nil
		require.NoError(t, s.SaveRun(ctx, bare))
		got, err := s.GetRun(ctx, bare.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Greeks)
	})
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	runs := []*Run{
		sampleRun(t, "price", models.Call, base),
		sampleRun(t, "price", models.Put, base.Add(time.Minute)),
		sampleRun(t, "greeks", models.Call, base.Add(2*time.Minute)),
	}
	runs[1].Method = models.MethodFiniteDifference
	for _, r := range runs {
		require.NoError(t, s.SaveRun(ctx, r))
	}

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, runs[2].ID, all[0].ID, "newest first")

	byCommand, err := s.ListRuns(ctx, RunFilter{Command: "price"})
	require.NoError(t, err)
	assert.Len(t, byCommand, 2)

	byMethod, err := s.ListRuns(ctx, RunFilter{Method: models.MethodFiniteDifference})
	require.NoError(t, err)
	require.Len(t, byMethod, 1)
	assert.Equal(t, "put", byMethod[0].Kind)

	byKind, err := s.ListRuns(ctx, RunFilter{Kind: "call", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, runs[2].ID, byKind[0].ID)

	recent, err := s.ListRuns(ctx, RunFilter{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestRunRoundTripProperty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("saved runs read back unchanged", prop.ForAll(
		func(price, delta, strike float64, paths int) bool {
			run := sampleRun(t, "batch", models.Call, time.Now().UTC().Truncate(time.Microsecond))
			run.Price = price
			run.Strike = strike
			run.Paths = paths
			run.Greeks = models.Greeks{models.Delta: delta}
			if err := s.SaveRun(ctx, run); err != nil {
				return false
			}
			got, err := s.GetRun(ctx, run.ID)
			if err != nil {
				return false
			}
			return got.Price == price && got.Strike == strike && got.Paths == paths &&
				got.Greeks[models.Delta] == delta && got.Timestamp.Equal(run.Timestamp)
		},
		gen.Float64Range(0, 1000),
		gen.Float64Range(-1, 1),
		gen.Float64Range(1, 500),
		gen.IntRange(0, 1000000),
	))

	properties.TestingRun(t)
}
