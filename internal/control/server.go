/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

package control

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/alitto/pond"

	"github.com/mark-e-deyoung/qperf/internal/metrics"
	"github.com/mark-e-deyoung/qperf/internal/netchan"
	"github.com/mark-e-deyoung/qperf/internal/render"
	"github.com/mark-e-deyoung/qperf/internal/session"
	"github.com/mark-e-deyoung/qperf/internal/testreg"
	"github.com/mark-e-deyoung/qperf/internal/wire"
)

// ServerConfig bundles the server tunables that never travel on the wire.
type ServerConfig struct {
	ListenPort    int
	ServerTimeout int
}

// Server accepts connections serially and submits each negotiated test to
// a single-worker pool. The pool stands in for the fork-per-connection
// model this protocol was designed around: each submitted job gets its
// own freshly built Context, so no state is shared between tests, and the
// pool size bounds how many tests can ever run at once.
type Server struct {
	cfg  ServerConfig
	reg  *testreg.Registry
	pool *pond.WorkerPool
}

// NewServer builds a Server bound to cfg and dispatching through reg.
func NewServer(cfg ServerConfig, reg *testreg.Registry) *Server {
	return &Server{cfg: cfg, reg: reg, pool: pond.New(1, 1, pond.MinWorkers(1))}
}

// Serve listens on all interfaces at cfg.ListenPort and accepts
// connections until the listener fails.
func (s *Server) Serve() error {
	addr := fmt.Sprintf(":%d", s.cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: listen on %s: %v", ErrSystem, addr, err)
	}
	defer ln.Close()
	defer s.pool.StopAndWait()

	slog.Info("qperf server listening", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("%w: accept: %v", ErrSystem, err)
		}
		s.pool.Submit(func() {
			s.handle(conn)
		})
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	ctx := session.NewContext(true, render.DefaultVerbosity())
	deadline := time.Now().Add(time.Duration(s.cfg.ServerTimeout) * time.Second)

	buf := make([]byte, wire.ReqSize)
	if err := netchan.Recv(conn, "request", buf, deadline, "client"); err != nil {
		slog.Warn("request not received", "err", err)
		return
	}
	req, err := wire.DecodeReq(buf)
	if err != nil {
		slog.Warn("request decode failed", "err", err)
		return
	}
	ctx.Req = req

	if msg, mismatched := checkVersion(req.VerMaj, req.VerMin, req.VerInc); mismatched {
		slog.Warn(msg)
		return
	}

	entry, ok := s.reg.ByIndex(int(req.ReqIndex))
	if !ok {
		slog.Warn("bad req_index", "req_index", req.ReqIndex)
		return
	}
	ctx.TestName = entry.Name
	ctx.Conn = conn

	if err := setAffinity(req.Affinity); err != nil {
		slog.Error("set affinity failed", "err", err)
		return
	}

	ctx.Reset()
	ctx.Successful = true
	metrics.TestStarted(entry.Name, "server")
	if err := entry.Server(ctx); err != nil {
		slog.Warn("test failed", "test", entry.Name, "err", err)
		ctx.Successful = false
	}
	ctx.Finisher.StopTiming()
	metrics.TestFinished(entry.Name, "server", ctx.Successful, ctx.LStat.S.NoBytes, ctx.LStat.R.NoBytes)
}
