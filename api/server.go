// Package api assembles the HTTP surface of the vending service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/vending/api/admin"
	"github.com/kilianp07/vending/api/orders"
	"github.com/kilianp07/vending/api/products"
	"github.com/kilianp07/vending/api/shelves"
	"github.com/kilianp07/vending/api/stream"
	"github.com/kilianp07/vending/auth"
	"github.com/kilianp07/vending/core/dispense/logging"
	"github.com/kilianp07/vending/core/logger"
	"github.com/kilianp07/vending/core/model"
	corestore "github.com/kilianp07/vending/core/store"
	"github.com/kilianp07/vending/internal/eventbus"
)

// Engine is the part of the dispense engine the API drives.
type Engine interface {
	orders.Dispenser
	shelves.HealthSource
}

// Deps are the collaborators of the HTTP handlers. Stats, Logs and
// Gatherer are optional.
type Deps struct {
	Store    corestore.Store
	Engine   Engine
	Auth     *auth.Service
	Bus      *eventbus.TypedBus[model.StatusEvent]
	Stats    shelves.StatsSource
	Logs     logging.LogStore
	Gatherer prometheus.Gatherer
	ImageDir string
	Log      logger.Logger
}

// NewHandler returns the routed API.
func NewHandler(d Deps) http.Handler {
	mux := http.NewServeMux()
	guard := d.Auth.RequireAdmin

	p := products.NewHandler(d.Store, d.ImageDir, d.Log)
	mux.HandleFunc("GET /api/products", p.List)
	mux.Handle("PUT /api/products/{id}", guard(http.HandlerFunc(p.Update)))
	mux.Handle("POST /api/products/{id}/image", guard(http.HandlerFunc(p.UploadImage)))
	mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(http.Dir(d.ImageDir))))

	mux.Handle("POST /api/order", orders.NewOrderHandler(d.Store, d.Engine, d.Log))
	mux.Handle("GET /api/sales", guard(orders.NewSalesHandler(d.Store)))
	mux.Handle("GET /api/sales/chart", guard(orders.NewSalesChartHandler(d.Store)))
	if d.Logs != nil {
		mux.Handle("GET /api/orders/logs", guard(orders.NewLogHandler(d.Logs)))
	}

	a := admin.NewHandler(d.Auth, d.Log)
	mux.HandleFunc("POST /api/login", a.Login)
	mux.Handle("PUT /api/admin", guard(http.HandlerFunc(a.Update)))

	mux.Handle("GET /api/esp32-status", shelves.NewLinkHandler(d.Engine))
	mux.Handle("GET /api/shelves", shelves.NewStatusHandler(d.Engine, d.Stats))

	if d.Bus != nil {
		mux.Handle("GET /ws", stream.NewHandler(d.Bus, d.Log))
	}
	g := d.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return cors(mux)
}

// cors allows the kiosk frontend to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Id")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve runs an HTTP server on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("http server shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("http server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
