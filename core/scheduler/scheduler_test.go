package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoppsim/hybrid/core/battery"
	"github.com/hoppsim/hybrid/core/dispatch"
	"github.com/hoppsim/hybrid/core/model"
)

func testSpec() model.BatterySpec {
	return model.BatterySpec{
		CapacityKWh:         100,
		ChargeRateKW:        50,
		DischargeRateKW:     50,
		MinSoC:              0.1,
		MaxSoC:              0.9,
		InitialSoC:          0.1,
		ChargeEfficiency:    0.95,
		DischargeEfficiency: 0.95,
	}
}

func testSeries(days int, price func(i int) float64) model.ForecastSeries {
	n := days * 24
	s := model.ForecastSeries{
		Start:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Period:         time.Hour,
		PriceUSDPerKWh: make([]float64, n),
		GenerationKW:   make([]float64, n),
		LoadKW:         make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.PriceUSDPerKWh[i] = price(i)
		s.GenerationKW[i] = 20
		s.LoadKW[i] = 10
	}
	return s
}

func flatPrice(i int) float64 { return 0.10 }

func resolve(t *testing.T, raw map[string]any) dispatch.Options {
	t.Helper()
	opts, err := dispatch.Resolve(raw)
	require.NoError(t, err)
	return opts
}

func TestRun_FlatPricesLeaveBatteryIdle(t *testing.T) {
	opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
	s, err := New(opts, testSpec(), testSeries(3, flatPrice), time.Hour, nil, nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Records, 3*24)
	assert.NotEmpty(t, res.RunID)

	var discharge float64
	for _, rec := range res.Records {
		discharge += rec.DischargeKW
		assert.GreaterOrEqual(t, rec.SoC, 0.1-1e-6)
		assert.LessOrEqual(t, rec.SoC, 0.9+1e-6)
	}
	assert.InDelta(t, 0, discharge, 1e-4)
	assert.InDelta(t, 0, res.Objective, 1e-4)
}

func TestRun_CyclesAreMonotone(t *testing.T) {
	spiky := func(i int) float64 {
		if i%24 < 6 {
			return 0.01
		}
		if i%24 >= 17 && i%24 < 21 {
			return 0.70
		}
		return 0.10
	}
	opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
	s, err := New(opts, testSpec(), testSeries(3, spiky), time.Hour, nil, nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	prev := 0.0
	for i, rec := range res.Records {
		require.GreaterOrEqual(t, rec.Cycles, prev, "record %d", i)
		prev = rec.Cycles
	}
	assert.Equal(t, res.FinalCycles, prev)
	assert.Greater(t, res.FinalCycles, 0.0)
}

func TestRun_IdenticalInputsGiveIdenticalLedgers(t *testing.T) {
	run := func() *Result {
		opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
		s, err := New(opts, testSpec(), testSeries(2, func(i int) float64 {
			if i%24 < 8 {
				return 0.02
			}
			return 0.30
		}), time.Hour, nil, nil)
		require.NoError(t, err)
		res, err := s.Run(context.Background())
		require.NoError(t, err)
		return res
	}

	first := run()
	second := run()
	require.Equal(t, len(first.Records), len(second.Records))
	for i := range first.Records {
		assert.Equal(t, first.Records[i], second.Records[i], "record %d", i)
	}
	assert.Equal(t, first.Objective, second.Objective)
}

func TestRun_FinalWindowIsTruncated(t *testing.T) {
	// 60 periods with roll 24: commits of 24, 24 and a final 12.
	opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
	series := testSeries(3, flatPrice)
	series.PriceUSDPerKWh = series.PriceUSDPerKWh[:60]
	series.GenerationKW = series.GenerationKW[:60]
	series.LoadKW = series.LoadKW[:60]

	s, err := New(opts, testSpec(), series, time.Hour, nil, nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 60)
}

func TestRun_TestYearFlagsTruncateToFiveDays(t *testing.T) {
	opts := resolve(t, map[string]any{
		"battery_dispatch":   "simple",
		"is_test_start_year": true,
	})
	s, err := New(opts, testSpec(), testSeries(10, flatPrice), time.Hour, nil, nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 5*24)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), res.Records[0].Time)

	both := resolve(t, map[string]any{
		"battery_dispatch":   "simple",
		"is_test_start_year": true,
		"is_test_end_year":   true,
	})
	s, err = New(both, testSpec(), testSeries(10, flatPrice), time.Hour, nil, nil)
	require.NoError(t, err)

	res, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 2*5*24)
}

func TestNew_GranularityMismatchFailsFast(t *testing.T) {
	opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
	_, err := New(opts, testSpec(), testSeries(2, flatPrice), 30*time.Minute, nil, nil)

	var gerr *model.GranularityError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, time.Hour, gerr.Series)
	assert.Equal(t, 30*time.Minute, gerr.Configured)
}

// failingFormulation reports every window as infeasible.
type failingFormulation struct{}

func (failingFormulation) Name() dispatch.Variant { return dispatch.VariantConvexLV }

func (failingFormulation) Build(w model.DispatchWindow, _ *battery.State, _ dispatch.Options) (*dispatch.Problem, error) {
	return &dispatch.Problem{Window: w}, nil
}

func (failingFormulation) Solve(p *dispatch.Problem) (dispatch.Solution, error) {
	return dispatch.Solution{Status: dispatch.StatusInfeasible}, &dispatch.InfeasibleError{
		WindowStart: p.Window.Start,
		WindowEnd:   p.Window.End(),
		Status:      dispatch.StatusInfeasible,
	}
}

func TestRun_AbortPolicyHaltsWithWindowRange(t *testing.T) {
	opts := resolve(t, map[string]any{
		"battery_dispatch":  "simple",
		"infeasible_policy": "abort",
	})
	series := testSeries(2, flatPrice)
	s, err := New(opts, testSpec(), series, time.Hour, nil, nil)
	require.NoError(t, err)
	s.form = failingFormulation{}

	_, err = s.Run(context.Background())
	var infErr *dispatch.InfeasibleError
	require.ErrorAs(t, err, &infErr)
	assert.Equal(t, series.Start, infErr.WindowStart)
	assert.Equal(t, series.Start.Add(48*time.Hour), infErr.WindowEnd)
	assert.Equal(t, dispatch.StatusInfeasible, infErr.Status)
}

func TestRun_HeuristicFallbackKeepsRunAlive(t *testing.T) {
	opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
	s, err := New(opts, testSpec(), testSeries(3, flatPrice), time.Hour, nil, nil)
	require.NoError(t, err)
	s.form = failingFormulation{}

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 3*24)
	assert.Equal(t, 3, res.Infeasible)
	assert.Equal(t, 3, res.Fallbacks)
}

func TestRun_RetrySimplePolicyResolvesWindow(t *testing.T) {
	opts := resolve(t, map[string]any{
		"battery_dispatch":  "simple",
		"infeasible_policy": "retry_simple",
	})
	s, err := New(opts, testSpec(), testSeries(2, flatPrice), time.Hour, nil, nil)
	require.NoError(t, err)
	s.form = failingFormulation{}

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 2*24)
	assert.Equal(t, 2, res.Fallbacks)
	// Every window solved twice: the failing attempt plus the retry.
	assert.Equal(t, 4, res.Solves)
}

func TestRun_CancelledContextStopsBetweenWindows(t *testing.T) {
	opts := resolve(t, map[string]any{"battery_dispatch": "simple"})
	s, err := New(opts, testSpec(), testSeries(3, flatPrice), time.Hour, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ClusteredExpandsExemplarDays(t *testing.T) {
	opts := resolve(t, map[string]any{
		"battery_dispatch": "simple",
		"use_clustering":   true,
		"n_clusters":       2,
	})
	// Two repeating day shapes so the exemplars are distinct.
	price := func(i int) float64 {
		if (i/24)%2 == 0 {
			return 0.05
		}
		return 0.40
	}
	s, err := New(opts, testSpec(), testSeries(4, price), time.Hour, nil, nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Records, 4*24)
	// Only the exemplar windows were solved, not all four days.
	assert.Equal(t, 2, res.Solves)
}
