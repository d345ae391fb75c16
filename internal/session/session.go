/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package session defines Context, the single per-test state bundle a
// client or server test body, the control protocol, and the timer
// goroutine all share by reference instead of through process-global
// variables.
package session

import (
	"fmt"
	"net"
	"runtime"

	"github.com/mark-e-deyoung/qperf/internal/options"
	"github.com/mark-e-deyoung/qperf/internal/params"
	"github.com/mark-e-deyoung/qperf/internal/render"
	"github.com/mark-e-deyoung/qperf/internal/stats"
	"github.com/mark-e-deyoung/qperf/internal/timing"
	"github.com/mark-e-deyoung/qperf/internal/wire"
)

// FieldIndex names one field's local and remote registry slots.
type FieldIndex struct {
	Loc, Rem int
}

// Context bundles everything a single client or server test run touches:
// the negotiated request and its remote mirror, both statistics
// snapshots, the derived results, the timing/finish latch, and the
// output queue.
type Context struct {
	Registry *params.Registry
	Fields   map[string]FieldIndex

	Req  *wire.Req
	RReq *wire.Req

	LStat *wire.Stat
	RStat *wire.Stat
	Res   stats.RES

	Sampler  *timing.Sampler
	Finisher *timing.Finisher
	Show     *render.Renderer

	Conn net.Conn

	IsServer   bool
	TestName   string
	ExitStatus int
	Successful bool
}

// NewContext builds a Context whose registry's local and remote cells are
// wired to Req and RReq respectively, two per options.FieldOrder entry in
// that slice's declaration order.
func NewContext(isServer bool, v render.Verbosity) *Context {
	c := &Context{
		Registry: params.New(),
		Fields:   make(map[string]FieldIndex, len(options.FieldOrder)),
		Req:      &wire.Req{},
		RReq:     &wire.Req{},
		LStat:    &wire.Stat{},
		RStat:    &wire.Stat{},
		Sampler:  timing.NewSampler(),
		Show:     render.New(v),
		IsServer: isServer,
	}
	c.Finisher = timing.NewFinisher(c.Sampler, &c.LStat.TimeE)
	c.LStat.NoTicks = c.Sampler.NoTicks()
	c.RStat.NoTicks = c.Sampler.NoTicks()
	c.LStat.NoCpus = uint32(runtime.NumCPU())

	for _, f := range options.FieldOrder {
		loc := registerField(c.Registry, f, c.Req)
		rem := registerField(c.Registry, f, c.RReq)
		c.Fields[f.Name] = FieldIndex{Loc: loc, Rem: rem}
	}
	return c
}

func registerField(r *params.Registry, f options.FieldSpec, req *wire.Req) int {
	switch f.Name {
	case "access_recv":
		return r.AddLong(func() uint64 { return uint64(req.AccessRecv) }, func(v uint64) { req.AccessRecv = uint8(v) })
	case "affinity":
		return r.AddLong(func() uint64 { return uint64(req.Affinity) }, func(v uint64) { req.Affinity = uint32(v) })
	case "flip":
		return r.AddLong(func() uint64 { return uint64(req.Flip) }, func(v uint64) { req.Flip = uint8(v) })
	case "msg_size":
		return r.AddSize(func() uint64 { return uint64(req.MsgSize) }, func(v uint64) { req.MsgSize = uint32(v) })
	case "mtu_size":
		return r.AddSize(func() uint64 { return uint64(req.MtuSize) }, func(v uint64) { req.MtuSize = uint32(v) })
	case "no_msgs":
		return r.AddLong(func() uint64 { return req.NoMsgs }, func(v uint64) { req.NoMsgs = v })
	case "poll_mode":
		return r.AddLong(func() uint64 { return uint64(req.PollMode) }, func(v uint64) { req.PollMode = uint8(v) })
	case "port":
		return r.AddLong(func() uint64 { return uint64(req.Port) }, func(v uint64) { req.Port = uint32(v) })
	case "rd_atomic":
		return r.AddLong(func() uint64 { return uint64(req.RdAtomic) }, func(v uint64) { req.RdAtomic = uint32(v) })
	case "sock_buf_size":
		return r.AddSize(func() uint64 { return uint64(req.SockBufSize) }, func(v uint64) { req.SockBufSize = uint32(v) })
	case "time":
		return r.AddTime(func() uint64 { return uint64(req.Time) }, func(v uint64) { req.Time = uint32(v) })
	case "timeout":
		return r.AddTime(func() uint64 { return uint64(req.Timeout) }, func(v uint64) { req.Timeout = uint32(v) })
	case "id":
		return r.AddString(
			func() string { return cstring(req.Id[:]) },
			func(s string) error {
				if len(s) > wire.STRSIZE-1 {
					return fmt.Errorf("id: value longer than %d bytes", wire.STRSIZE-1)
				}
				var buf [wire.STRSIZE]byte
				copy(buf[:], s)
				req.Id = buf
				return nil
			},
		)
	default:
		panic(fmt.Sprintf("internal error: unregistered field %q", f.Name))
	}
}

func cstring(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// SetU64 implements options.Setter for a single side of field.
func (c *Context) SetU64(field string, side options.Side, v uint64) error {
	fi, ok := c.Fields[field]
	if !ok {
		return fmt.Errorf("internal error: unknown field %q", field)
	}
	if side == options.Remote {
		c.Registry.SetpU32(fi.Rem, field, v)
	} else {
		c.Registry.SetpU32(fi.Loc, field, v)
	}
	return nil
}

// SetStr implements options.Setter for a single side of field.
func (c *Context) SetStr(field string, side options.Side, s string) error {
	fi, ok := c.Fields[field]
	if !ok {
		return fmt.Errorf("internal error: unknown field %q", field)
	}
	if side == options.Remote {
		return c.Registry.SetpStr(fi.Rem, field, s)
	}
	return c.Registry.SetpStr(fi.Loc, field, s)
}

// Use implements options.Setter.
func (c *Context) Use(field string, side options.Side) {
	fi, ok := c.Fields[field]
	if !ok {
		return
	}
	if side == options.Remote {
		c.Registry.ParUse(fi.Rem)
	} else {
		c.Registry.ParUse(fi.Loc)
	}
}

// SetDefaultU64 silently writes both sides of field without touching
// set/used bookkeeping, for the defaults the client lifecycle applies
// before argv overrides are parsed.
func (c *Context) SetDefaultU64(field string, v uint64) {
	fi := c.Fields[field]
	c.Registry.SetvU32(fi.Loc, v)
	c.Registry.SetvU32(fi.Rem, v)
}

// UseBoth marks both sides of field used and in-use.
func (c *Context) UseBoth(field string) {
	fi := c.Fields[field]
	c.Registry.ParUse(fi.Loc)
	c.Registry.ParUse(fi.Rem)
}

// IsSetAny reports whether either side of field has been explicitly set.
func (c *Context) IsSetAny(field string) bool {
	fi := c.Fields[field]
	return c.Registry.ParIsSet(fi.Loc) || c.Registry.ParIsSet(fi.Rem)
}

// ValueU64 reads the local-side numeric value of field.
func (c *Context) ValueU64(field string) uint64 {
	return c.Registry.ValueU64(c.Fields[field].Loc)
}

// RenderResults pushes the standard result table into c.Show: the
// always-shown headline numbers (bandwidths, message rate, latency),
// the optional per-byte costs behind the stat gate, then the raw
// counters and CPU breakdown behind the stat/time verbosity gates, and
// finally an echo of the request parameters behind the conf/used gates.
func (c *Context) RenderResults() {
	c.Show.ViewStrn('a', "", "test", c.TestName)
	c.Show.ViewBand('a', "", "send_bw", c.Res.SendBW)
	c.Show.ViewBand('a', "", "recv_bw", c.Res.RecvBW)
	c.Show.ViewRate('a', "", "msg_rate", c.Res.MsgRate)
	if c.Res.Latency > 0 {
		c.Show.ViewTime('a', "", "latency", c.Res.Latency)
	}
	if c.Res.HasSendCost {
		c.Show.ViewCost('s', "", "send_cost", c.Res.SendCost)
	}
	if c.Res.HasRecvCost {
		c.Show.ViewCost('s', "", "recv_cost", c.Res.RecvCost)
	}

	c.renderTraffic()

	c.Show.ViewSize('c', "", "msg_size", uint64(c.Req.MsgSize))
	c.Show.ViewTime('c', "", "time", float64(c.Req.Time))
	c.Show.ViewLong('u', "", "affinity", float64(c.Req.Affinity))
}

// renderTraffic pushes the byte/message/error counters and the CPU
// breakdown. With UnifyNodes unset and traffic unambiguously
// one-directional (one side only sent, the other only received), it
// collapses the loc/rem axis into send_/recv_ labels instead of the
// loc_/rem_ split, mirroring qperf's srmode switch in show_rest.
func (c *Context) renderTraffic() {
	ls, lr := c.LStat.S.NoBytes, c.LStat.R.NoBytes
	rs, rr := c.RStat.S.NoBytes, c.RStat.R.NoBytes

	if !c.Show.V.UnifyNodes {
		switch {
		case ls > 0 && rs == 0 && rr > 0 && lr == 0:
			c.renderSendRecv(c.LStat.S, c.RStat.R, c.Res.L, c.Res.R)
			return
		case rs > 0 && ls == 0 && lr > 0 && rr == 0:
			c.renderSendRecv(c.RStat.S, c.LStat.R, c.Res.R, c.Res.L)
			return
		}
	}

	c.Show.ViewSize('s', "loc_", "send_bytes", c.LStat.S.NoBytes)
	c.Show.ViewSize('s', "loc_", "recv_bytes", c.LStat.R.NoBytes)
	c.Show.ViewLong('s', "loc_", "send_msgs", float64(c.LStat.S.NoMsgs))
	c.Show.ViewLong('s', "loc_", "recv_msgs", float64(c.LStat.R.NoMsgs))
	c.Show.ViewLong('S', "loc_", "recv_errs", float64(c.LStat.R.NoErrs))
	c.Show.ViewSize('s', "rem_", "send_bytes", c.RStat.S.NoBytes)
	c.Show.ViewSize('s', "rem_", "recv_bytes", c.RStat.R.NoBytes)

	c.Show.ViewTime('t', "loc_", "cpu_time", c.Res.L.TimeCPU)
	c.Show.ViewCpus('t', "loc_", "cpu_user", c.Res.L.CPUUser)
	c.Show.ViewCpus('t', "loc_", "cpu_kernel", c.Res.L.CPUKernel)
	c.Show.ViewCpus('T', "loc_", "cpu_idle", c.Res.L.CPUIdle)
	c.Show.ViewCpus('T', "rem_", "cpu_total", c.Res.R.CPUTotal)
}

// renderSendRecv pushes one srmode-collapsed view: sendS/sendRes describe
// the side that sent, recvR/recvRes the side that received.
func (c *Context) renderSendRecv(sendS, recvR wire.UStat, sendRes, recvRes stats.RESN) {
	c.Show.ViewSize('s', "", "send_bytes", sendS.NoBytes)
	c.Show.ViewLong('s', "", "send_msgs", float64(sendS.NoMsgs))
	c.Show.ViewLong('S', "", "send_errs", float64(sendS.NoErrs))
	c.Show.ViewSize('s', "", "recv_bytes", recvR.NoBytes)
	c.Show.ViewLong('s', "", "recv_msgs", float64(recvR.NoMsgs))
	c.Show.ViewLong('S', "", "recv_errs", float64(recvR.NoErrs))

	c.Show.ViewTime('t', "", "send_cpu_time", sendRes.TimeCPU)
	c.Show.ViewCpus('t', "", "send_cpus_used", sendRes.CPUTotal)
	c.Show.ViewTime('t', "", "recv_cpu_time", recvRes.TimeCPU)
	c.Show.ViewCpus('T', "", "recv_cpus_used", recvRes.CPUTotal)
}

// Reset reinitializes LStat from a zero IStat template and clears the
// Finished/Successful state, matching the per-test reinit every new
// connection gets on the server.
func (c *Context) Reset() {
	*c.LStat = wire.Stat{NoTicks: c.Sampler.NoTicks(), NoCpus: uint32(runtime.NumCPU())}
	c.Finisher = timing.NewFinisher(c.Sampler, &c.LStat.TimeE)
	c.Successful = false
}
