package orders

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/vending/core/dispense/logging"
	"github.com/kilianp07/vending/pkg/export"
)

// NewLogHandler exposes dispense logs via GET /api/orders/logs.
// Supported filters: start and end (RFC3339), order_id and item_id.
// format=csv switches to one CSV row per item.
func NewLogHandler(store logging.LogStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := logging.LogQuery{OrderID: r.URL.Query().Get("order_id")}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := r.URL.Query().Get("item_id"); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid item_id", http.StatusBadRequest)
				return
			}
			q.ItemID = id
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			if err := export.WriteLogsCSV(w, records); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := export.WriteJSON(w, records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
