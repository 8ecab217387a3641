// Package export serializes the committed decision ledger for downstream
// financial and energy aggregation tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/hoppsim/hybrid/core/scheduler"
)

// WriteJSON writes the ledger to w in JSON format.
func WriteJSON(w io.Writer, records []scheduler.Record) error {
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes the ledger to w in CSV format.
func WriteCSV(w io.Writer, records []scheduler.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "charge_kw", "discharge_kw", "soc", "cycles"}); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Time.Format(time.RFC3339),
			strconv.FormatFloat(r.ChargeKW, 'f', -1, 64),
			strconv.FormatFloat(r.DischargeKW, 'f', -1, 64),
			strconv.FormatFloat(r.SoC, 'f', -1, 64),
			strconv.FormatFloat(r.Cycles, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
