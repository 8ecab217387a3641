package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoppsim/hybrid/core/model"
)

// shapedSeries builds days whose daily mean price follows shape.
func shapedSeries(shape []float64) model.ForecastSeries {
	n := len(shape) * 24
	s := model.ForecastSeries{
		Start:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Period:         time.Hour,
		PriceUSDPerKWh: make([]float64, n),
		GenerationKW:   make([]float64, n),
		LoadKW:         make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.PriceUSDPerKWh[i] = shape[i/24]
		s.GenerationKW[i] = 20
		s.LoadKW[i] = 10
	}
	return s
}

func TestSelect_GroupsSimilarDays(t *testing.T) {
	series := shapedSeries([]float64{0.05, 0.40, 0.05, 0.40, 0.05, 0.40})

	ex, err := KMedoids{}.Select(series, Config{NClusters: 2})
	require.NoError(t, err)

	require.Len(t, ex.Days, 2)
	require.Len(t, ex.Assignment, 6)

	// Days with the same shape land in the same cluster.
	assert.Equal(t, ex.Assignment[0], ex.Assignment[2])
	assert.Equal(t, ex.Assignment[0], ex.Assignment[4])
	assert.Equal(t, ex.Assignment[1], ex.Assignment[3])
	assert.NotEqual(t, ex.Assignment[0], ex.Assignment[1])
}

func TestSelect_WeightsSumToOne(t *testing.T) {
	series := shapedSeries([]float64{0.05, 0.40, 0.05, 0.40, 0.05, 0.40, 0.05, 0.05})

	ex, err := KMedoids{}.Select(series, Config{NClusters: 3})
	require.NoError(t, err)

	var total float64
	for _, w := range ex.Weights {
		total += w
	}
	assert.InDelta(t, 1, total, 1e-9)
	for day, c := range ex.Assignment {
		assert.GreaterOrEqual(t, c, 0, "day %d", day)
		assert.Less(t, c, len(ex.Days), "day %d", day)
	}
}

func TestSelect_ClampsClusterCountToDays(t *testing.T) {
	series := shapedSeries([]float64{0.05, 0.40, 0.20})

	ex, err := KMedoids{}.Select(series, Config{NClusters: 30})
	require.NoError(t, err)
	assert.Len(t, ex.Days, 3)
}

func TestSelect_Deterministic(t *testing.T) {
	series := shapedSeries([]float64{0.05, 0.40, 0.10, 0.35, 0.07, 0.42, 0.11})

	first, err := KMedoids{}.Select(series, Config{NClusters: 3})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := KMedoids{}.Select(series, Config{NClusters: 3})
		require.NoError(t, err)
		assert.Equal(t, first.Days, again.Days)
		assert.Equal(t, first.Assignment, again.Assignment)
	}
}

func TestSelect_RejectsShortSeries(t *testing.T) {
	series := shapedSeries([]float64{0.05})
	series.PriceUSDPerKWh = series.PriceUSDPerKWh[:12]
	series.GenerationKW = series.GenerationKW[:12]
	series.LoadKW = series.LoadKW[:12]

	_, err := KMedoids{}.Select(series, Config{NClusters: 2})
	assert.Error(t, err)

	_, err = KMedoids{}.Select(shapedSeries([]float64{0.05, 0.10}), Config{NClusters: 0})
	assert.Error(t, err)
}

func TestSelect_DivisionsShapeFeatures(t *testing.T) {
	// Two days with the same daily mean but opposite intra-day shapes only
	// separate when the day is split into divisions.
	series := shapedSeries([]float64{0.10, 0.10, 0.10, 0.10})
	for i := 0; i < 12; i++ {
		series.PriceUSDPerKWh[0*24+i] = 0.01 // day 0: cheap morning
		series.PriceUSDPerKWh[0*24+12+i] = 0.19
		series.PriceUSDPerKWh[1*24+i] = 0.19 // day 1: cheap evening
		series.PriceUSDPerKWh[1*24+12+i] = 0.01
		series.PriceUSDPerKWh[2*24+i] = 0.01
		series.PriceUSDPerKWh[2*24+12+i] = 0.19
		series.PriceUSDPerKWh[3*24+i] = 0.19
		series.PriceUSDPerKWh[3*24+12+i] = 0.01
	}

	ex, err := KMedoids{}.Select(series, Config{
		NClusters: 2,
		Divisions: map[string]int{MetricPrice: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, ex.Assignment[0], ex.Assignment[2])
	assert.Equal(t, ex.Assignment[1], ex.Assignment[3])
	assert.NotEqual(t, ex.Assignment[0], ex.Assignment[1])
}
