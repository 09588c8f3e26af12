package orders

import (
	"context"
	"net/http"
	"time"

	"github.com/kilianp07/vending/api/respond"
	corestore "github.com/kilianp07/vending/core/store"
	"github.com/kilianp07/vending/pkg/export"
)

// SalesLister reads the sales ledger.
type SalesLister interface {
	ListSales(ctx context.Context, since time.Time) ([]corestore.Sale, error)
}

// NewSalesHandler serves GET /api/sales?since=<RFC3339>[&format=csv].
func NewSalesHandler(s SalesLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respond.Error(w, http.StatusBadRequest, "invalid since: "+err.Error())
				return
			}
			since = t
		}
		sales, err := s.ListSales(r.Context(), since)
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sales == nil {
			sales = []corestore.Sale{}
		}
		if r.URL.Query().Get("format") == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			if err := export.WriteSalesCSV(w, sales); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		respond.JSON(w, http.StatusOK, sales)
	})
}

// SalesReport reads the ledger and the catalogue.
type SalesReport interface {
	SalesLister
	ListProducts(ctx context.Context) ([]corestore.Product, error)
}

// NewSalesChartHandler serves GET /api/sales/chart as an HTML bar chart.
func NewSalesChartHandler(s SalesReport) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respond.Error(w, http.StatusBadRequest, "invalid since: "+err.Error())
				return
			}
			since = t
		}
		sales, err := s.ListSales(r.Context(), since)
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		products, err := s.ListProducts(r.Context())
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := export.WriteSalesChart(w, sales, products); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
