package model

import (
	"fmt"
	"time"
)

// ForecastSeries holds the exogenous inputs driving a simulation run:
// an electricity price signal, a renewable generation forecast and a
// load forecast, aligned on a fixed period length.
type ForecastSeries struct {
	Start  time.Time
	Period time.Duration

	PriceUSDPerKWh []float64
	GenerationKW   []float64
	LoadKW         []float64
}

// Len returns the number of periods in the series.
func (s ForecastSeries) Len() int { return len(s.PriceUSDPerKWh) }

// Validate checks that the three series are aligned and the period is usable.
func (s ForecastSeries) Validate() error {
	if s.Period <= 0 {
		return fmt.Errorf("series period must be positive, got %v", s.Period)
	}
	n := len(s.PriceUSDPerKWh)
	if len(s.GenerationKW) != n || len(s.LoadKW) != n {
		return fmt.Errorf("series length mismatch: price=%d generation=%d load=%d",
			n, len(s.GenerationKW), len(s.LoadKW))
	}
	if n == 0 {
		return fmt.Errorf("series is empty")
	}
	return nil
}

// CheckGranularity verifies the series resolution matches the configured
// simulation period. A mismatch is fatal before any window is built.
func (s ForecastSeries) CheckGranularity(period time.Duration) error {
	if s.Period != period {
		return &GranularityError{Series: s.Period, Configured: period}
	}
	return nil
}

// PeriodsPerDay returns the number of periods covering 24 hours.
func (s ForecastSeries) PeriodsPerDay() int {
	return int((24 * time.Hour) / s.Period)
}

// Timestamp returns the start time of period i.
func (s ForecastSeries) Timestamp(i int) time.Time {
	return s.Start.Add(time.Duration(i) * s.Period)
}

// Window slices a look-ahead window of at most n periods anchored at index
// start. The window is truncated at the end of the series rather than
// reading past it.
func (s ForecastSeries) Window(start, n int) (DispatchWindow, error) {
	if start < 0 || start >= s.Len() {
		return DispatchWindow{}, fmt.Errorf("window anchor %d out of range [0,%d)", start, s.Len())
	}
	end := start + n
	if end > s.Len() {
		end = s.Len()
	}
	return DispatchWindow{
		Anchor:         start,
		Start:          s.Timestamp(start),
		Period:         s.Period,
		PriceUSDPerKWh: s.PriceUSDPerKWh[start:end],
		GenerationKW:   s.GenerationKW[start:end],
		LoadKW:         s.LoadKW[start:end],
	}, nil
}

// DispatchWindow is an immutable slice of the forecast series handed to a
// formulation for one solve. It is regenerated on every roll.
type DispatchWindow struct {
	Anchor int
	Start  time.Time
	Period time.Duration

	PriceUSDPerKWh []float64
	GenerationKW   []float64
	LoadKW         []float64
}

// Len returns the number of periods in the window.
func (w DispatchWindow) Len() int { return len(w.PriceUSDPerKWh) }

// PeriodHours returns the duration of one period in hours.
func (w DispatchWindow) PeriodHours() float64 { return w.Period.Hours() }

// End returns the timestamp just past the last period of the window.
func (w DispatchWindow) End() time.Time {
	return w.Start.Add(time.Duration(w.Len()) * w.Period)
}

// GranularityError reports a resolution mismatch between the exogenous
// series and the configured simulation period.
type GranularityError struct {
	Series     time.Duration
	Configured time.Duration
}

func (e *GranularityError) Error() string {
	return fmt.Sprintf("series granularity %v does not match configured period %v", e.Series, e.Configured)
}
