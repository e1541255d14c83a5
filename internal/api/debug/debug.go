// Package debug provides the daemon's debug endpoints.
package debug

import (
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/arl/statsviz"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/taskpulse/pkg/metrics"
)

// Mux registers the pprof, expvar and statsviz routes plus the Prometheus
// /metrics handler for g. It is served on its own port so none of it is
// exposed by the presentation API.
func Mux(g prometheus.Gatherer) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	if err := statsviz.Register(mux); err != nil {
		return nil, fmt.Errorf("registering statsviz: %w", err)
	}

	mux.Handle("/metrics", metrics.Handler(g))

	return mux, nil
}
