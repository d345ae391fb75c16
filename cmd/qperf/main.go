/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Command qperf is the two-sided network performance measurement tool:
// run with no test name it is a server, run with a host and test name it
// is a client.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark-e-deyoung/qperf/internal/control"
	"github.com/mark-e-deyoung/qperf/internal/metrics"
	"github.com/mark-e-deyoung/qperf/internal/options"
	"github.com/mark-e-deyoung/qperf/internal/render"
	"github.com/mark-e-deyoung/qperf/internal/session"
	"github.com/mark-e-deyoung/qperf/internal/testreg"
	"github.com/mark-e-deyoung/qperf/internal/tests"
)

const version = "0.2.0"

// metricsAddr exposes /metrics when set; empty disables it. A future CLI
// option can wire this to argv instead of leaving it environment-only.
var metricsAddr = os.Getenv("QPERF_METRICS_ADDR")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	reg := testreg.New()
	tests.Register(reg)

	// configureSetter is rebuilt once the Context exists; Parse needs a
	// Setter before that, so a throwaway Context supplies one purely to
	// resolve field tables, and argv is parsed twice: once to pull out
	// Result, a second time (via configure) against the real Context
	// RunClient builds. See configureFromArgv.
	probe := session.NewContext(false, render.DefaultVerbosity())
	res, err := options.Parse(argv, probe)
	if err != nil {
		return reportErr(err)
	}

	if res.Version {
		fmt.Printf("qperf %s\n", version)
		return 0
	}
	if res.Help {
		printHelp(res.HelpCategory)
		return 0
	}

	v := render.Verbosity{
		Conf: res.VerboseConf, Stat: res.VerboseStat,
		Time: res.VerboseTime, Used: res.VerboseUsed,
		Debug: res.Debug, UnifyUnits: res.UnifyUnits,
		UnifyNodes: res.UnifyNodes, Precision: res.Precision,
	}

	if metricsAddr != "" {
		go func() {
			if err := metrics.ServeDebug(context.Background(), metricsAddr); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	if !res.ClientMode {
		srv := control.NewServer(control.ServerConfig{
			ListenPort:    res.ListenPort,
			ServerTimeout: res.ServerTimeout,
		}, reg)
		if err := srv.Serve(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	cfg := control.ClientConfig{
		ServerHost:  res.ServerHost,
		ListenPort:  res.ListenPort,
		WaitSeconds: res.Wait,
		Progress:    res.Progress,
	}
	ctx, err := control.RunClient(cfg, reg, res.TestName, v, func(c *session.Context) {
		configureFromArgv(argv, c)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !ctx.Successful {
		return 1
	}
	return 0
}

// configureFromArgv reparses argv against the real Context RunClient
// built, applying every field assignment a first Parse pass (against the
// throwaway probe Context) already validated. Reparsing is cheap and
// keeps option parsing itself free of any dependency on Context
// construction order.
func configureFromArgv(argv []string, c *session.Context) {
	_, _ = options.Parse(argv, c)
}

func reportErr(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return 1
}

func printHelp(category string) {
	if category == "" {
		fmt.Println("usage: qperf [options] [host [test]]")
		fmt.Println("run with no host to act as a server; with host and test to act as a client")
		fmt.Println("categories: conf, stat, time, used (pass one to -h for field-level help)")
		return
	}
	fmt.Printf("help category %q: see the per-field option tables (--name, --loc_name, --rem_name)\n", category)
}
