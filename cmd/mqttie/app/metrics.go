package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 5 * time.Second

func newMetricsRouter(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)
	return r
}

// serveMetrics serves the client metrics until ctx is done. It is a no-op
// unless a metrics address is configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.opts.MetricsAddr == "" || a.registry == nil {
		return
	}
	srv := &http.Server{
		Addr:              a.opts.MetricsAddr,
		Handler:           newMetricsRouter(a.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Infof("serving metrics on http://%s/metrics", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf("metrics server: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), metricsShutdownTimeout,
		)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
