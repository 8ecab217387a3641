package dispatch

import (
	"time"
)

// Variant identifies one of the interchangeable battery dispatch
// formulations.
type Variant string

const (
	VariantSimple            Variant = "simple"
	VariantOneCycleHeuristic Variant = "one_cycle_heuristic"
	VariantHeuristic         Variant = "heuristic"
	VariantNonConvexLV       Variant = "non_convex_LV"
	VariantConvexLV          Variant = "convex_LV"
)

// IsHeuristic reports whether the variant is rule-based rather than
// optimization-based.
func (v Variant) IsHeuristic() bool {
	return v == VariantHeuristic || v == VariantOneCycleHeuristic
}

// Solver identifies the MILP backend used by optimization variants.
type Solver string

const (
	SolverGLPK Solver = "glpk"
	SolverCBC  Solver = "cbc"
)

// FallbackPolicy selects the scheduler's reaction to an infeasible window.
type FallbackPolicy string

const (
	FallbackAbort       FallbackPolicy = "abort"
	FallbackHeuristic   FallbackPolicy = "heuristic"
	FallbackRetrySimple FallbackPolicy = "retry_simple"
)

// Heuristic variants always plan exactly one day ahead and roll a full day.
const oneDayPeriods = 24

// Options is the validated, immutable dispatch configuration.
type Options struct {
	Solver        Solver
	SolverTimeout time.Duration

	BatteryDispatch       Variant
	GridCharging          bool
	IncludeLifecycleCount bool

	NLookAheadPeriods int
	NRollPeriods      int

	LogName string

	IsTestStartYear bool
	IsTestEndYear   bool

	UseClustering       bool
	NClusters           int
	ClusteringWeights   map[string]float64
	ClusteringDivisions map[string]int

	InfeasiblePolicy FallbackPolicy
}

func defaultOptions() Options {
	return Options{
		Solver:                SolverGLPK,
		SolverTimeout:         10 * time.Second,
		BatteryDispatch:       VariantSimple,
		GridCharging:          true,
		IncludeLifecycleCount: true,
		NLookAheadPeriods:     48,
		NRollPeriods:          24,
		UseClustering:         false,
		NClusters:             30,
		InfeasiblePolicy:      FallbackHeuristic,
	}
}

// Resolve validates a raw option map against the fixed schema and produces
// an Options value. Unknown keys and type-mismatched values are rejected
// with a ConfigurationError. Selecting a heuristic variant overrides the
// roll and look-ahead lengths to one day of periods, superseding any user
// supplied values; this is a documented special case, not an error.
func Resolve(raw map[string]any) (Options, error) {
	opts := defaultOptions()

	for key, value := range raw {
		if err := applyOption(&opts, key, value); err != nil {
			return Options{}, err
		}
	}

	switch opts.BatteryDispatch {
	case VariantSimple, VariantConvexLV, VariantNonConvexLV,
		VariantHeuristic, VariantOneCycleHeuristic:
	default:
		return Options{}, &UnsupportedFormulationError{Variant: string(opts.BatteryDispatch)}
	}

	if opts.BatteryDispatch.IsHeuristic() {
		opts.NRollPeriods = oneDayPeriods
		opts.NLookAheadPeriods = oneDayPeriods
	}

	if opts.NLookAheadPeriods < opts.NRollPeriods {
		return Options{}, &ConfigurationError{
			Key:    "n_look_ahead_periods",
			Value:  opts.NLookAheadPeriods,
			Reason: "look-ahead window must be at least as long as the roll step",
		}
	}
	if opts.NRollPeriods <= 0 {
		return Options{}, &ConfigurationError{
			Key:    "n_roll_periods",
			Value:  opts.NRollPeriods,
			Reason: "roll step must be positive",
		}
	}

	switch opts.Solver {
	case SolverGLPK, SolverCBC:
	default:
		return Options{}, &ConfigurationError{
			Key:    "solver",
			Value:  string(opts.Solver),
			Reason: "unknown solver backend",
		}
	}

	switch opts.InfeasiblePolicy {
	case FallbackAbort, FallbackHeuristic, FallbackRetrySimple:
	default:
		return Options{}, &ConfigurationError{
			Key:    "infeasible_policy",
			Value:  string(opts.InfeasiblePolicy),
			Reason: "unknown infeasible fallback policy",
		}
	}

	return opts, nil
}

func applyOption(opts *Options, key string, value any) error {
	switch key {
	case "solver":
		s, ok := value.(string)
		if !ok {
			return typeError(key, value, "string")
		}
		opts.Solver = Solver(s)
	case "cbc_timeout":
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value, "int")
		}
		opts.SolverTimeout = time.Duration(n) * time.Second
	case "battery_dispatch":
		s, ok := value.(string)
		if !ok {
			return typeError(key, value, "string")
		}
		opts.BatteryDispatch = Variant(s)
	case "grid_charging":
		b, ok := value.(bool)
		if !ok {
			return typeError(key, value, "bool")
		}
		opts.GridCharging = b
	case "include_lifecycle_count":
		b, ok := value.(bool)
		if !ok {
			return typeError(key, value, "bool")
		}
		opts.IncludeLifecycleCount = b
	case "n_look_ahead_periods":
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value, "int")
		}
		opts.NLookAheadPeriods = n
	case "n_roll_periods":
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value, "int")
		}
		opts.NRollPeriods = n
	case "log_name":
		s, ok := value.(string)
		if !ok {
			return typeError(key, value, "string")
		}
		opts.LogName = s
	case "is_test_start_year":
		b, ok := value.(bool)
		if !ok {
			return typeError(key, value, "bool")
		}
		opts.IsTestStartYear = b
	case "is_test_end_year":
		b, ok := value.(bool)
		if !ok {
			return typeError(key, value, "bool")
		}
		opts.IsTestEndYear = b
	case "use_clustering":
		b, ok := value.(bool)
		if !ok {
			return typeError(key, value, "bool")
		}
		opts.UseClustering = b
	case "n_clusters":
		n, ok := asInt(value)
		if !ok {
			return typeError(key, value, "int")
		}
		opts.NClusters = n
	case "clustering_weights":
		m, ok := asFloatMap(value)
		if !ok {
			return typeError(key, value, "map of string to float")
		}
		opts.ClusteringWeights = m
	case "clustering_divisions":
		m, ok := asIntMap(value)
		if !ok {
			return typeError(key, value, "map of string to int")
		}
		opts.ClusteringDivisions = m
	case "infeasible_policy":
		s, ok := value.(string)
		if !ok {
			return typeError(key, value, "string")
		}
		opts.InfeasiblePolicy = FallbackPolicy(s)
	default:
		return &ConfigurationError{Key: key, Reason: "unknown dispatch option"}
	}
	return nil
}

func typeError(key string, value any, want string) error {
	return &ConfigurationError{Key: key, Value: value, Reason: "expected " + want}
}

// asInt accepts native ints as well as the float64 values produced by JSON
// decoding, as long as they carry no fractional part.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asFloatMap(v any) (map[string]float64, bool) {
	raw, ok := v.(map[string]any)
	if !ok {
		if m, ok := v.(map[string]float64); ok {
			return m, true
		}
		return nil, false
	}
	out := make(map[string]float64, len(raw))
	for k, val := range raw {
		f, ok := asFloat(val)
		if !ok {
			return nil, false
		}
		out[k] = f
	}
	return out, true
}

func asIntMap(v any) (map[string]int, bool) {
	raw, ok := v.(map[string]any)
	if !ok {
		if m, ok := v.(map[string]int); ok {
			return m, true
		}
		return nil, false
	}
	out := make(map[string]int, len(raw))
	for k, val := range raw {
		n, ok := asInt(val)
		if !ok {
			return nil, false
		}
		out[k] = n
	}
	return out, true
}
