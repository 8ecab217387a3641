// Package cluster reduces a full year of periods to a small set of
// representative exemplar days. The scheduler solves only exemplar-day
// windows and expands the committed decisions back over the year by
// cluster membership, trading accuracy for solve count.
package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/hoppsim/hybrid/core/model"
)

// Metric names accepted in the weight and division maps.
const (
	MetricPrice      = "price"
	MetricGeneration = "generation"
	MetricLoad       = "load"
)

// Config carries the clustering parameters from the dispatch options.
type Config struct {
	NClusters int
	// Weights scales each classification metric's contribution; missing
	// metrics default to 1.
	Weights map[string]float64
	// Divisions sets the number of intra-day averaging segments per
	// metric; missing metrics default to 1.
	Divisions map[string]int
}

// Exemplars is the reduction result: the exemplar day indices, the share
// of the year each one represents and the day-to-exemplar assignment.
type Exemplars struct {
	Days       []int
	Weights    []float64
	Assignment []int
}

// Selector chooses exemplar days for a full-year series.
type Selector interface {
	Select(series model.ForecastSeries, cfg Config) (Exemplars, error)
}

// KMedoids is the default selector: deterministic k-medoids over weighted
// per-day metric vectors. Medoid initialization is farthest-point from the
// most central day, so identical inputs always produce identical exemplars.
type KMedoids struct{}

// Select partitions the whole days of the series into cfg.NClusters groups
// and returns each group's medoid as its exemplar.
func (KMedoids) Select(series model.ForecastSeries, cfg Config) (Exemplars, error) {
	perDay := series.PeriodsPerDay()
	if perDay <= 0 {
		return Exemplars{}, fmt.Errorf("series period %v does not divide a day", series.Period)
	}
	nDays := series.Len() / perDay
	if nDays == 0 {
		return Exemplars{}, fmt.Errorf("series shorter than one day")
	}
	k := cfg.NClusters
	if k <= 0 {
		return Exemplars{}, fmt.Errorf("n_clusters must be positive, got %d", k)
	}
	if k > nDays {
		k = nDays
	}

	features := dayFeatures(series, nDays, perDay, cfg)

	medoids := initialMedoids(features, k)
	assignment := make([]int, nDays)
	for iter := 0; iter < 100; iter++ {
		assign(features, medoids, assignment)
		if !updateMedoids(features, medoids, assignment) {
			break
		}
	}
	assign(features, medoids, assignment)

	weights := make([]float64, k)
	for _, c := range assignment {
		weights[c] += 1 / float64(nDays)
	}
	return Exemplars{Days: medoids, Weights: weights, Assignment: assignment}, nil
}

// dayFeatures builds one weighted feature vector per day: each metric is
// averaged over its configured number of intra-day divisions.
func dayFeatures(series model.ForecastSeries, nDays, perDay int, cfg Config) [][]float64 {
	metrics := []struct {
		name string
		data []float64
	}{
		{MetricPrice, series.PriceUSDPerKWh},
		{MetricGeneration, series.GenerationKW},
		{MetricLoad, series.LoadKW},
	}

	features := make([][]float64, nDays)
	for d := 0; d < nDays; d++ {
		var vec []float64
		for _, m := range metrics {
			weight := 1.0
			if w, ok := cfg.Weights[m.name]; ok {
				weight = w
			}
			divisions := 1
			if dv, ok := cfg.Divisions[m.name]; ok && dv > 0 {
				divisions = dv
			}
			if divisions > perDay {
				divisions = perDay
			}
			day := m.data[d*perDay : (d+1)*perDay]
			segLen := perDay / divisions
			for s := 0; s < divisions; s++ {
				seg := day[s*segLen : (s+1)*segLen]
				vec = append(vec, weight*floats.Sum(seg)/float64(len(seg)))
			}
		}
		features[d] = vec
	}
	return features
}

// initialMedoids seeds with the most central day, then repeatedly adds the
// day farthest from all chosen medoids.
func initialMedoids(features [][]float64, k int) []int {
	n := len(features)

	center := 0
	best := math.Inf(1)
	for i := 0; i < n; i++ {
		var total float64
		for j := 0; j < n; j++ {
			total += floats.Distance(features[i], features[j], 2)
		}
		if total < best {
			best = total
			center = i
		}
	}

	medoids := []int{center}
	for len(medoids) < k {
		far := -1
		farDist := -1.0
		for i := 0; i < n; i++ {
			d := math.Inf(1)
			for _, m := range medoids {
				if dist := floats.Distance(features[i], features[m], 2); dist < d {
					d = dist
				}
			}
			if d > farDist {
				farDist = d
				far = i
			}
		}
		medoids = append(medoids, far)
	}
	return medoids
}

func assign(features [][]float64, medoids []int, assignment []int) {
	for i := range features {
		best := 0
		bestDist := math.Inf(1)
		for c, m := range medoids {
			if d := floats.Distance(features[i], features[m], 2); d < bestDist {
				bestDist = d
				best = c
			}
		}
		assignment[i] = best
	}
}

// updateMedoids recomputes each cluster's medoid and reports whether any
// of them moved.
func updateMedoids(features [][]float64, medoids []int, assignment []int) bool {
	changed := false
	for c := range medoids {
		best := medoids[c]
		bestCost := math.Inf(1)
		for i, ci := range assignment {
			if ci != c {
				continue
			}
			var cost float64
			for j, cj := range assignment {
				if cj == c {
					cost += floats.Distance(features[i], features[j], 2)
				}
			}
			if cost < bestCost {
				bestCost = cost
				best = i
			}
		}
		if best != medoids[c] {
			medoids[c] = best
			changed = true
		}
	}
	return changed
}
