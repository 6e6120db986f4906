package main

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/Bren2010/kamui/api"
	"github.com/Bren2010/kamui/oracle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Version   = "dev"
	GoVersion = runtime.Version()
)

// metricsServer registers every collector and returns the server exposing
// them, along with the pprof endpoints.
func metricsServer(addr string, m *api.Metrics, prover *oracle.Prover) (*http.Server, error) {
	reg := prometheus.NewRegistry()

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "A metric with a constant '1' value labeled by version, and goversion.",
		},
		[]string{"version", "goversion"},
	)
	buildInfo.WithLabelValues(Version, GoVersion).Set(1)

	cs := []prometheus.Collector{
		buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if prover != nil {
		cs = append(cs,
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "fulfillments",
				Help: "Number of randomness requests fulfilled by the in-process oracle.",
			}, func() float64 { return float64(prover.Fulfilled()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: "fulfillment_failures",
				Help: "Number of fulfillment attempts rejected by the ledger.",
			}, func() float64 { return float64(prover.Failed()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "pending_requests",
				Help: "Number of randomness requests waiting to be fulfilled.",
			}, func() float64 { return float64(prover.Pending()) }),
		)
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	if err := m.Register(reg); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/" {
			fmt.Fprintln(rw, "Hi, I'm a kamui metrics and debugging server!")
		} else {
			rw.WriteHeader(404)
			fmt.Fprintln(rw, "404 not found")
		}
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/debug/version", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintf(w, "Version: %s, GoVersion: %s", Version, GoVersion)
	})

	return &http.Server{Addr: addr, Handler: mux}, nil
}
