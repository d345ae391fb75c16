/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package stats implements the statistics-aggregation and result-derivation
// engine: converting per-side byte/message/error counters plus CPU tick
// deltas into bandwidth, message rate, latency, per-byte cost, and CPU
// utilization.
package stats

import "github.com/mark-e-deyoung/qperf/internal/wire"

// RESN holds one side's derived results.
type RESN struct {
	TimeReal  float64
	TimeCPU   float64
	CPUUser   float64
	CPUIntr   float64
	CPUIdle   float64
	CPUKernel float64
	CPUIOWait float64
	CPUTotal  float64
}

// RES is the full derived-result set for one test.
type RES struct {
	L, R        RESN
	Latency     float64
	MsgRate     float64
	SendBW      float64
	RecvBW      float64
	SendCost    float64
	HasSendCost bool
	RecvCost    float64
	HasRecvCost bool
}

// CrossAdd folds each side's reported remote counters into the other
// side's local counters: LStat.s +=
// RStat.rem_s, LStat.r += RStat.rem_r, and symmetrically.
func CrossAdd(lstat, rstat *wire.Stat) {
	addUStat(&lstat.S, &rstat.RemS)
	addUStat(&lstat.R, &rstat.RemR)
	addUStat(&rstat.S, &lstat.RemS)
	addUStat(&rstat.R, &lstat.RemR)
}

func addUStat(dst, src *wire.UStat) {
	dst.NoBytes += src.NoBytes
	dst.NoMsgs += src.NoMsgs
	dst.NoErrs += src.NoErrs
}

// DeriveRESN computes one side's RESN from its CLOCK deltas. All fields
// are zero if the real-time delta or the tick frequency is zero.
func DeriveRESN(s *wire.Stat) RESN {
	var out RESN
	deltaReal := float64(s.TimeE[wire.REAL] - s.TimeS[wire.REAL])
	if deltaReal == 0 || s.NoTicks == 0 {
		return out
	}
	t := float64(s.NoTicks)

	delta := func(col int) float64 {
		return float64(s.TimeE[col] - s.TimeS[col])
	}

	out.TimeReal = deltaReal / t

	var cpuSum float64
	for i := 0; i < wire.T_N; i++ {
		if i == wire.REAL || i == wire.IDLE {
			continue
		}
		cpuSum += delta(i)
	}
	out.TimeCPU = cpuSum / t

	out.CPUUser = (delta(wire.USER) + delta(wire.NICE)) / deltaReal
	out.CPUIntr = (delta(wire.IRQ) + delta(wire.SOFTIRQ)) / deltaReal
	out.CPUKernel = (delta(wire.KERNEL) + delta(wire.STEAL)) / deltaReal
	out.CPUIOWait = delta(wire.IOWAIT) / deltaReal
	out.CPUIdle = delta(wire.IDLE) / deltaReal
	out.CPUTotal = out.CPUUser + out.CPUIntr + out.CPUKernel + out.CPUIOWait

	return out
}

// Derive computes the full RES from the (already cross-added) local and
// remote stats.
func Derive(lstat, rstat *wire.Stat) RES {
	var res RES
	res.L = DeriveRESN(lstat)
	res.R = DeriveRESN(rstat)

	totalRecvMsgs := lstat.R.NoMsgs + rstat.R.NoMsgs
	if totalRecvMsgs > 0 {
		res.Latency = res.L.TimeReal / float64(totalRecvMsgs)
	}

	locT := res.L.TimeReal
	remT := res.R.TimeReal
	midT := (locT + remT) / 2

	res.MsgRate = midCounter(float64(lstat.R.NoMsgs), float64(rstat.R.NoMsgs), locT, remT, midT)
	res.SendBW = midCounter(float64(lstat.S.NoBytes), float64(rstat.S.NoBytes), locT, remT, midT)
	res.RecvBW = midCounter(float64(lstat.R.NoBytes), float64(rstat.R.NoBytes), locT, remT, midT)

	// Costs: seconds per gigabyte, only when traffic is unambiguously
	// unidirectional.
	locSends, remSends := lstat.S.NoBytes > 0, rstat.S.NoBytes > 0
	locRecvs, remRecvs := lstat.R.NoBytes > 0, rstat.R.NoBytes > 0

	if locSends && !locRecvs && !remSends {
		res.SendCost = res.L.TimeCPU * 1e9 / float64(lstat.S.NoBytes)
		res.HasSendCost = true
	} else if remSends && !remRecvs && !locSends {
		res.SendCost = res.R.TimeCPU * 1e9 / float64(rstat.S.NoBytes)
		res.HasSendCost = true
	}

	if locRecvs && !locSends && !remRecvs {
		res.RecvCost = res.L.TimeCPU * 1e9 / float64(lstat.R.NoBytes)
		res.HasRecvCost = true
	} else if remRecvs && !remSends && !locRecvs {
		res.RecvCost = res.R.TimeCPU * 1e9 / float64(rstat.R.NoBytes)
		res.HasRecvCost = true
	}

	return res
}

// midCounter implements the "if one side's counter is zero, divide the
// other side's counter by that side's time; otherwise divide the sum by
// midT" rule shared by msg_rate, send_bw, and recv_bw.
func midCounter(loc, rem, locT, remT, midT float64) float64 {
	switch {
	case rem == 0 && loc == 0:
		return 0
	case rem == 0:
		if locT == 0 {
			return 0
		}
		return loc / locT
	case loc == 0:
		if remT == 0 {
			return 0
		}
		return rem / remT
	default:
		if midT == 0 {
			return 0
		}
		return (loc + rem) / midT
	}
}
