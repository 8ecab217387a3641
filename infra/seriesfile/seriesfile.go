// Package seriesfile loads exogenous forecast series from CSV files.
// Expected layout: a header row, then one row per period with columns
// time (RFC3339), price_usd_per_kwh, generation_kw, load_kw.
package seriesfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/hoppsim/hybrid/core/model"
)

// Load reads a forecast series from the given path. The period length is
// inferred from the first two timestamps and every subsequent row must
// keep the same spacing.
func Load(path string) (model.ForecastSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.ForecastSeries{}, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a forecast series from r.
func Read(r io.Reader) (model.ForecastSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4

	header, err := cr.Read()
	if err != nil {
		return model.ForecastSeries{}, fmt.Errorf("read header: %w", err)
	}
	if header[0] != "time" {
		return model.ForecastSeries{}, fmt.Errorf("unexpected header %v", header)
	}

	var (
		series model.ForecastSeries
		prev   time.Time
		row    = 1
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.ForecastSeries{}, fmt.Errorf("row %d: %w", row, err)
		}
		row++

		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return model.ForecastSeries{}, fmt.Errorf("row %d time: %w", row, err)
		}
		vals := make([]float64, 3)
		for i, cell := range rec[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return model.ForecastSeries{}, fmt.Errorf("row %d column %q: %w", row, header[i+1], err)
			}
			vals[i] = v
		}

		if series.Len() == 0 {
			series.Start = ts
		} else if series.Len() == 1 {
			series.Period = ts.Sub(prev)
		} else if ts.Sub(prev) != series.Period {
			return model.ForecastSeries{}, fmt.Errorf("row %d: irregular spacing %v, expected %v", row, ts.Sub(prev), series.Period)
		}
		prev = ts

		series.PriceUSDPerKWh = append(series.PriceUSDPerKWh, vals[0])
		series.GenerationKW = append(series.GenerationKW, vals[1])
		series.LoadKW = append(series.LoadKW, vals[2])
	}

	if err := series.Validate(); err != nil {
		return model.ForecastSeries{}, err
	}
	return series, nil
}
