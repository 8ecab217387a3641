package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlySeries(n int) ForecastSeries {
	s := ForecastSeries{
		Start:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Period:         time.Hour,
		PriceUSDPerKWh: make([]float64, n),
		GenerationKW:   make([]float64, n),
		LoadKW:         make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.PriceUSDPerKWh[i] = 0.10
		s.GenerationKW[i] = 20
		s.LoadKW[i] = 10
	}
	return s
}

func TestSeries_Validate(t *testing.T) {
	s := hourlySeries(24)
	require.NoError(t, s.Validate())

	s.GenerationKW = s.GenerationKW[:23]
	assert.Error(t, s.Validate())

	empty := ForecastSeries{Period: time.Hour}
	assert.Error(t, empty.Validate())

	noPeriod := hourlySeries(24)
	noPeriod.Period = 0
	assert.Error(t, noPeriod.Validate())
}

func TestSeries_CheckGranularity(t *testing.T) {
	s := hourlySeries(24)
	require.NoError(t, s.CheckGranularity(time.Hour))

	err := s.CheckGranularity(30 * time.Minute)
	var gerr *GranularityError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, time.Hour, gerr.Series)
	assert.Equal(t, 30*time.Minute, gerr.Configured)
}

func TestSeries_PeriodsPerDay(t *testing.T) {
	assert.Equal(t, 24, hourlySeries(48).PeriodsPerDay())

	half := hourlySeries(48)
	half.Period = 30 * time.Minute
	assert.Equal(t, 48, half.PeriodsPerDay())
}

func TestSeries_WindowTruncatesAtEnd(t *testing.T) {
	s := hourlySeries(30)

	w, err := s.Window(0, 48)
	require.NoError(t, err)
	assert.Equal(t, 30, w.Len())

	w, err = s.Window(24, 48)
	require.NoError(t, err)
	assert.Equal(t, 6, w.Len())
	assert.Equal(t, s.Timestamp(24), w.Start)
	assert.Equal(t, s.Timestamp(30), w.End())
}

func TestSeries_WindowAnchorOutOfRange(t *testing.T) {
	s := hourlySeries(24)

	_, err := s.Window(24, 1)
	assert.Error(t, err)
	_, err = s.Window(-1, 1)
	assert.Error(t, err)

	var gerr *GranularityError
	assert.False(t, errors.As(err, &gerr))
}
