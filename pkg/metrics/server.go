package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/pkg/health"
)

// NewMux routes /metrics to g and, when checker is not nil, the liveness and
// readiness probes. The root path lists the mounted endpoints.
func NewMux(g prometheus.Gatherer, checker *health.Checker) *http.ServeMux {
	mux := http.NewServeMux()
	endpoints := []string{"/metrics"}
	mux.Handle("GET /metrics", Handler(g))
	if checker != nil {
		mux.HandleFunc("GET /health/live", checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
		endpoints = append(endpoints, "/health/live", "/health/ready")
	}

	var links strings.Builder
	for _, e := range endpoints {
		fmt.Fprintf(&links, `<li><a href="%s">%s</a></li>`, e, e)
	}
	index := `<html><body><h1>Record Linkage</h1><ul>` + links.String() + `</ul></body></html>`
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, index)
	})
	return mux
}

// StartServer serves NewMux on port in the background until the returned
// shutdown function is called.
func StartServer(port int, g prometheus.Gatherer, checker *health.Checker) (shutdown func(context.Context) error) {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewMux(g, checker),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("status server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
		}
	}()

	return server.Shutdown
}
