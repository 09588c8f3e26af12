// Package export renders dispense logs and sales as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/vending/core/dispense/logging"
	corestore "github.com/kilianp07/vending/core/store"
)

// WriteJSON writes v to w as JSON.
func WriteJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// WriteLogsCSV writes one row per dispensed item of each record.
func WriteLogsCSV(w io.Writer, recs []logging.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "order_id", "item_id", "shelf", "quantity", "status"}); err != nil {
		return err
	}
	for _, r := range recs {
		for _, it := range r.Result.Items {
			rec := []string{
				r.Timestamp.UTC().Format(time.RFC3339),
				r.OrderID,
				strconv.Itoa(it.ItemID),
				it.Shelf.String(),
				strconv.Itoa(it.Quantity),
				string(it.Status),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSalesCSV writes the sales ledger.
func WriteSalesCSV(w io.Writer, sales []corestore.Sale) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "product_id", "quantity", "created_at"}); err != nil {
		return err
	}
	for _, s := range sales {
		rec := []string{
			strconv.Itoa(s.ID),
			strconv.Itoa(s.ProductID),
			strconv.Itoa(s.Quantity),
			s.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
