/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

package control

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mark-e-deyoung/qperf/internal/metrics"
	"github.com/mark-e-deyoung/qperf/internal/netchan"
	"github.com/mark-e-deyoung/qperf/internal/render"
	"github.com/mark-e-deyoung/qperf/internal/session"
	"github.com/mark-e-deyoung/qperf/internal/testreg"
	"github.com/mark-e-deyoung/qperf/internal/wire"
)

// ClientConfig bundles the client tunables that are not per-test
// parameters: the server to dial, the port to dial it on, how long to
// keep retrying a connection before giving up, and whether to drive a
// live progress bar during the measurement window.
type ClientConfig struct {
	ServerHost  string
	ListenPort  int
	WaitSeconds int
	Progress    bool
}

// RunClient looks up testName, applies the client lifecycle defaults,
// lets configure apply any argv-derived overrides, connects to the
// server (retrying for WaitSeconds if requested), sends the request, and
// runs the test's client body.
func RunClient(cfg ClientConfig, reg *testreg.Registry, testName string, v render.Verbosity, configure func(*session.Context)) (*session.Context, error) {
	idx, entry, ok := reg.ByName(testName)
	if !ok {
		return nil, fmt.Errorf("unknown test %q", testName)
	}

	ctx := session.NewContext(false, v)
	ctx.TestName = testName
	ctx.Registry.ClearInuse()

	ctx.SetDefaultU64("timeout", 5)
	if !ctx.IsSetAny("no_msgs") {
		ctx.SetDefaultU64("time", 2)
	}
	ctx.UseBoth("affinity")
	ctx.UseBoth("time")

	if configure != nil {
		configure(ctx)
	}

	ctx.Req.VerMaj, ctx.Req.VerMin, ctx.Req.VerInc = VerMaj, VerMin, VerInc
	ctx.Req.ReqIndex = uint32(idx)

	if err := setAffinity(ctx.Req.Affinity); err != nil {
		return ctx, err
	}

	fmt.Println(testName)

	conn, err := dialWithRetry(cfg.ServerHost, cfg.ListenPort, cfg.WaitSeconds, ctx)
	if err != nil {
		return ctx, err
	}
	defer conn.Close()
	ctx.Conn = conn

	deadline := time.Now().Add(time.Duration(ctx.Req.Timeout) * time.Second)
	if err := netchan.Send(conn, "request", wire.EncodeReq(ctx.Req), deadline); err != nil {
		return ctx, err
	}

	ctx.Successful = true
	metrics.TestStarted(testName, "client")

	stopProgress := func() {}
	if cfg.Progress && isTerminal(os.Stdout) {
		stopProgress = runProgressBar(ctx)
	}

	if err := entry.Client(ctx); err != nil {
		slog.Warn("test failed", "test", testName, "err", err)
		ctx.Successful = false
	}
	ctx.Finisher.StopTiming()
	stopProgress()
	metrics.TestFinished(testName, "client", ctx.Successful, ctx.LStat.S.NoBytes, ctx.LStat.R.NoBytes)

	if ctx.Successful {
		ctx.RenderResults()
		ctx.Show.PlaceShow(os.Stdout)
	}

	for _, w := range ctx.Registry.WarnUnused(testName) {
		fmt.Fprintf(os.Stderr, "%s set but not used in test %s\n", w.Name, testName)
	}

	return ctx, nil
}

// isTerminal reports whether f looks like an interactive character
// device rather than a pipe or regular file.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// runProgressBar drives an indeterminate schollz/progressbar/v3 spinner,
// keyed off the running total of bytes sent and received, for the
// duration of one measurement window. The returned func stops the bar;
// call it once the test body returns.
func runProgressBar(ctx *session.Context) func() {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(ctx.TestName),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSpinnerType(14),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bar.Set64(int64(ctx.LStat.S.NoBytes + ctx.LStat.R.NoBytes))
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}

// dialWithRetry dials host:port once, and if it fails and waitSeconds > 0,
// retries once a second until it succeeds, waitSeconds elapses, or the
// Context's Finisher has already latched (the alarm expiring mid-retry).
func dialWithRetry(host string, port int, waitSeconds int, ctx *session.Context) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	giveUp := time.Now().Add(time.Duration(waitSeconds) * time.Second)

	for {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			return conn, nil
		}
		if waitSeconds <= 0 || ctx.Finisher.Finished() > 0 || time.Now().After(giveUp) {
			return nil, fmt.Errorf("%w: connect to %s: %v", ErrSystem, addr, err)
		}
		time.Sleep(time.Second)
	}
}
