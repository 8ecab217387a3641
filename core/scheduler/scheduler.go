// Package scheduler drives the rolling-horizon simulation: it repeatedly
// builds a look-ahead window, solves the configured dispatch formulation,
// commits the leading roll-forward prefix of the solution to the battery
// ledger and advances the clock until the series is exhausted.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoppsim/hybrid/core/battery"
	"github.com/hoppsim/hybrid/core/cluster"
	"github.com/hoppsim/hybrid/core/dispatch"
	"github.com/hoppsim/hybrid/core/logger"
	"github.com/hoppsim/hybrid/core/metrics"
	"github.com/hoppsim/hybrid/core/model"
)

// phase enumerates the scheduler state machine.
type phase int

const (
	phaseInitializing phase = iota
	phaseWindowReady
	phaseSolving
	phaseCommitting
	phaseAdvancing
	phaseDone
)

// testDays is the truncated horizon used by the start/end-of-year test
// flags.
const testDays = 5

// Record is one committed period of the output ledger.
type Record struct {
	Time        time.Time `json:"time"`
	ChargeKW    float64   `json:"charge_kw"`
	DischargeKW float64   `json:"discharge_kw"`
	SoC         float64   `json:"soc"`
	Cycles      float64   `json:"cycles"`
}

// Result is the full-horizon output of one simulation run.
type Result struct {
	RunID   string
	Records []Record

	Objective   float64
	Solves      int
	Infeasible  int
	Fallbacks   int
	FinalSoC    float64
	FinalCycles float64
}

// Scheduler owns the battery ledger for the duration of a run. Solves are
// strictly sequential; a single instance must not be shared across
// goroutines.
type Scheduler struct {
	opts   dispatch.Options
	series model.ForecastSeries
	state  *battery.State

	form     dispatch.Formulation
	fallback dispatch.Formulation
	selector cluster.Selector

	log  logger.Logger
	sink metrics.Sink
}

// New validates the inputs and builds a scheduler. The series granularity
// is checked against period up front so a mismatch fails before any window
// is built.
func New(opts dispatch.Options, spec model.BatterySpec, series model.ForecastSeries, period time.Duration, log logger.Logger, sink metrics.Sink) (*Scheduler, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("battery spec: %w", err)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("forecast series: %w", err)
	}
	if err := series.CheckGranularity(period); err != nil {
		return nil, err
	}

	form, err := dispatch.New(opts)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}

	return &Scheduler{
		opts:     opts,
		series:   series,
		state:    battery.NewState(spec, nil),
		form:     form,
		fallback: &dispatch.HeuristicFormulation{},
		selector: cluster.KMedoids{},
		log:      log,
		sink:     sink,
	}, nil
}

// SetSelector overrides the exemplar-day selector used when clustering is
// enabled.
func (s *Scheduler) SetSelector(sel cluster.Selector) { s.selector = sel }

// Run executes the simulation to completion. The context is checked
// between windows; a solve in flight is never interrupted (the solver
// timeout bounds it instead).
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	s.log.Infof("run %s: variant=%s look_ahead=%d roll=%d periods=%d",
		res.RunID, s.form.Name(), s.opts.NLookAheadPeriods, s.opts.NRollPeriods, s.series.Len())

	if s.opts.UseClustering {
		return s.runClustered(ctx, res)
	}

	for _, seg := range s.segments() {
		if err := s.runSegment(ctx, res, seg.start, seg.end); err != nil {
			return nil, err
		}
	}

	s.finish(res)
	return res, nil
}

type segment struct{ start, end int }

// segments returns the period ranges to simulate: the full series, or
// truncated 5-day slices when the start/end-of-year test flags are set.
func (s *Scheduler) segments() []segment {
	n := s.series.Len()
	if !s.opts.IsTestStartYear && !s.opts.IsTestEndYear {
		return []segment{{0, n}}
	}
	testLen := testDays * s.series.PeriodsPerDay()
	if testLen > n {
		testLen = n
	}
	var segs []segment
	if s.opts.IsTestStartYear {
		segs = append(segs, segment{0, testLen})
	}
	if s.opts.IsTestEndYear {
		segs = append(segs, segment{n - testLen, n})
	}
	return segs
}

// runSegment advances the state machine over [start, end).
func (s *Scheduler) runSegment(ctx context.Context, res *Result, start, end int) error {
	cursor := start
	st := phaseWindowReady

	var (
		window model.DispatchWindow
		sol    dispatch.Solution
	)

	for st != phaseDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch st {
		case phaseWindowReady:
			w, err := s.series.Window(cursor, s.opts.NLookAheadPeriods)
			if err != nil {
				return err
			}
			window = w
			st = phaseSolving

		case phaseSolving:
			solved, err := s.solve(window, res)
			if err != nil {
				return err
			}
			sol = solved
			st = phaseCommitting

		case phaseCommitting:
			nCommit := s.opts.NRollPeriods
			if remaining := end - cursor; nCommit > remaining {
				nCommit = remaining
			}
			if nCommit > window.Len() {
				nCommit = window.Len()
			}
			if err := s.commit(res, window, sol, nCommit); err != nil {
				return err
			}
			st = phaseAdvancing

		case phaseAdvancing:
			cursor += s.opts.NRollPeriods
			if cursor >= end {
				st = phaseDone
			} else {
				st = phaseWindowReady
			}
		}
	}
	return nil
}

// solve invokes the configured formulation and applies the infeasible
// fallback policy on failure. The chosen fallback is always logged, never
// silent.
func (s *Scheduler) solve(window model.DispatchWindow, res *Result) (dispatch.Solution, error) {
	sol, err := s.runFormulation(s.form, window, res)
	if err == nil {
		return sol, nil
	}

	var infErr *dispatch.InfeasibleError
	if !errors.As(err, &infErr) {
		return dispatch.Solution{}, err
	}
	res.Infeasible++

	switch s.opts.InfeasiblePolicy {
	case dispatch.FallbackAbort:
		s.log.Errorf("window [%s, %s) %s: aborting run",
			infErr.WindowStart.Format(time.RFC3339), infErr.WindowEnd.Format(time.RFC3339), infErr.Status)
		return dispatch.Solution{}, err

	case dispatch.FallbackRetrySimple:
		s.log.Warnf("window [%s, %s) %s: retrying with simple formulation",
			infErr.WindowStart.Format(time.RFC3339), infErr.WindowEnd.Format(time.RFC3339), infErr.Status)
		res.Fallbacks++
		retry, retryErr := s.runFormulation(&dispatch.SimpleFormulation{}, window, res)
		if retryErr != nil {
			return dispatch.Solution{}, fmt.Errorf("simple retry failed: %w", retryErr)
		}
		return retry, nil

	default: // dispatch.FallbackHeuristic
		s.log.Warnf("window [%s, %s) %s: substituting heuristic decision",
			infErr.WindowStart.Format(time.RFC3339), infErr.WindowEnd.Format(time.RFC3339), infErr.Status)
		res.Fallbacks++
		return s.runFormulation(s.fallback, window, res)
	}
}

func (s *Scheduler) runFormulation(f dispatch.Formulation, window model.DispatchWindow, res *Result) (dispatch.Solution, error) {
	p, err := f.Build(window, s.state, s.opts)
	if err != nil {
		return dispatch.Solution{}, fmt.Errorf("build %s: %w", f.Name(), err)
	}
	start := time.Now()
	sol, err := f.Solve(p)
	res.Solves++
	if recErr := s.sink.RecordSolve(metrics.SolveEvent{
		Variant:     string(f.Name()),
		Status:      string(sol.Status),
		Duration:    time.Since(start),
		WindowStart: window.Start,
	}); recErr != nil {
		s.log.Errorf("metrics solve: %v", recErr)
	}
	return sol, err
}

// commit writes the leading nCommit periods of the solution into the
// battery ledger and the output records; the rest of the window is
// discarded and re-solved on the next roll.
func (s *Scheduler) commit(res *Result, window model.DispatchWindow, sol dispatch.Solution, nCommit int) error {
	charge := sol.ChargeKW[:nCommit]
	discharge := sol.DischargeKW[:nCommit]
	if err := s.state.Commit(charge, discharge, window.PeriodHours()); err != nil {
		return err
	}

	events := make([]metrics.CommitEvent, 0, nCommit)
	for i := 0; i < nCommit; i++ {
		rec := Record{
			Time:        window.Start.Add(time.Duration(i) * window.Period),
			ChargeKW:    charge[i],
			DischargeKW: discharge[i],
			SoC:         sol.SoC[i],
			Cycles:      s.state.Cycles,
		}
		res.Records = append(res.Records, rec)
		res.Objective += window.PriceUSDPerKWh[i] * (discharge[i] - charge[i]) * window.PeriodHours()
		events = append(events, metrics.CommitEvent{
			Time:        rec.Time,
			ChargeKW:    rec.ChargeKW,
			DischargeKW: rec.DischargeKW,
			SoC:         rec.SoC,
			Cycles:      rec.Cycles,
		})
	}
	if err := s.sink.RecordCommit(events); err != nil {
		s.log.Errorf("metrics commit: %v", err)
	}
	return nil
}

// runClustered solves only exemplar-day windows and expands the committed
// decisions over the year by cluster membership. The expanded SoC
// trajectory is approximate by construction and should be validated
// against a full run.
func (s *Scheduler) runClustered(ctx context.Context, res *Result) (*Result, error) {
	perDay := s.series.PeriodsPerDay()
	ex, err := s.selector.Select(s.series, cluster.Config{
		NClusters: s.opts.NClusters,
		Weights:   s.opts.ClusteringWeights,
		Divisions: s.opts.ClusteringDivisions,
	})
	if err != nil {
		return nil, fmt.Errorf("exemplar selection: %w", err)
	}
	s.log.Infof("clustering: %d exemplar days for %d days", len(ex.Days), len(ex.Assignment))

	exemplar := make(map[int]dispatch.Solution, len(ex.Days))
	for _, day := range ex.Days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window, err := s.series.Window(day*perDay, s.opts.NLookAheadPeriods)
		if err != nil {
			return nil, err
		}
		sol, err := s.solve(window, res)
		if err != nil {
			return nil, err
		}
		exemplar[day] = sol
	}

	for day, c := range ex.Assignment {
		sol := exemplar[ex.Days[c]]
		window, err := s.series.Window(day*perDay, perDay)
		if err != nil {
			return nil, err
		}
		nCommit := perDay
		if nCommit > window.Len() || nCommit > len(sol.ChargeKW) {
			nCommit = min(window.Len(), len(sol.ChargeKW))
		}
		if err := s.commit(res, window, sol, nCommit); err != nil {
			return nil, err
		}
	}

	s.finish(res)
	return res, nil
}

func (s *Scheduler) finish(res *Result) {
	res.FinalSoC = s.state.SoC
	res.FinalCycles = s.state.Cycles
	s.log.Infof("run %s done: %d records, %d solves, %d infeasible, objective %.2f",
		res.RunID, len(res.Records), res.Solves, res.Infeasible, res.Objective)
}
