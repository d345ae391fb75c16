/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package metrics exposes the process's own activity as Prometheus
// counters: tests started and finished, by outcome, and bytes moved in
// each direction. It is purely observational and never feeds back into
// the measurement loop itself.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	testsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qperf_tests_started_total",
			Help: "Tests begun, by test name and role (client/server).",
		},
		[]string{"test", "role"},
	)
	testsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qperf_tests_finished_total",
			Help: "Tests completed, by test name, role, and outcome (ok/failed).",
		},
		[]string{"test", "role", "outcome"},
	)
	bytesTransferred = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qperf_bytes_total",
			Help: "Bytes moved by completed tests, by test name and direction (send/recv).",
		},
		[]string{"test", "direction"},
	)
)

func init() {
	prometheus.MustRegister(testsStarted, testsFinished, bytesTransferred)
}

// TestStarted records the start of one test run.
func TestStarted(testName, role string) {
	testsStarted.WithLabelValues(testName, role).Inc()
}

// TestFinished records one test's completion and the bytes it moved in
// each direction.
func TestFinished(testName, role string, successful bool, sendBytes, recvBytes uint64) {
	outcome := "ok"
	if !successful {
		outcome = "failed"
	}
	testsFinished.WithLabelValues(testName, role, outcome).Inc()
	bytesTransferred.WithLabelValues(testName, "send").Add(float64(sendBytes))
	bytesTransferred.WithLabelValues(testName, "recv").Add(float64(recvBytes))
}

// ServeDebug exposes /metrics on addr until ctx is cancelled. A
// zero-value addr ("") means metrics exposition is disabled; ServeDebug
// is then a no-op that returns immediately.
func ServeDebug(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("metrics endpoint listening", "addr", addr)

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: %w", err)
		}
		return nil
	}
}
