/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package timing implements monotonic interval timing, per-CPU tick
// sampling, and the Finished latch that gates time_e capture and
// terminates test loops.
package timing

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/mark-e-deyoung/qperf/internal/wire"
	"github.com/shirou/gopsutil/v3/cpu"
	sysconf "github.com/tklauser/go-sysconf"
)

// clkTck returns the host's clock ticks per second (SC_CLK_TCK), falling
// back to the conventional Linux default of 100 if the lookup fails.
func clkTck() float64 {
	if v, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && v > 0 {
		return float64(v)
	}
	return 100
}

// Sampler fills CLOCK vectors. Column 0 (REAL) is this sampler's own
// elapsed-time tick counter; columns 1..T_N-1 come from the host's
// aggregate CPU time sample (gopsutil's parse of /proc/stat's "cpu "
// line), converted to ticks using the same clock frequency so both halves
// of the vector share units.
type Sampler struct {
	tck      float64
	start    time.Time
	now      func() time.Time
	cpuTimes func() (cpu.TimesStat, error)
}

// NewSampler builds a Sampler whose REAL column is relative to the moment
// of construction.
func NewSampler() *Sampler {
	return &Sampler{
		tck:      clkTck(),
		start:    time.Now(),
		now:      time.Now,
		cpuTimes: defaultCPUTimes,
	}
}

func defaultCPUTimes() (cpu.TimesStat, error) {
	ts, err := cpu.Times(false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(ts) == 0 {
		return cpu.TimesStat{}, errors.New("timing: host reported no aggregate cpu time sample")
	}
	return ts[0], nil
}

// NoTicks reports the tick frequency this sampler's columns are expressed
// in, for use as STAT.no_ticks.
func (s *Sampler) NoTicks() uint64 {
	return uint64(s.tck)
}

// GetTimes samples wall-clock and per-category CPU tick counts into a
// CLOCK vector.
func (s *Sampler) GetTimes() (wire.Clock, error) {
	var c wire.Clock
	c[wire.REAL] = uint64(s.now().Sub(s.start).Seconds() * s.tck)

	t, err := s.cpuTimes()
	if err != nil {
		return c, err
	}
	c[wire.USER] = toTicks(t.User, s.tck)
	c[wire.NICE] = toTicks(t.Nice, s.tck)
	c[wire.KERNEL] = toTicks(t.System, s.tck)
	c[wire.IDLE] = toTicks(t.Idle, s.tck)
	c[wire.IOWAIT] = toTicks(t.Iowait, s.tck)
	c[wire.IRQ] = toTicks(t.Irq, s.tck)
	c[wire.SOFTIRQ] = toTicks(t.Softirq, s.tck)
	c[wire.STEAL] = toTicks(t.Steal, s.tck)
	return c, nil
}

func toTicks(seconds, tck float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds * tck)
}

// Finisher latches a test's end-of-run time_e sample exactly once, on
// whichever of a duration timer or an explicit SetFinished call comes
// first. A repeating interrupt-driven timer isn't needed here: every
// blocking call in internal/netchan is already bounded by its own
// deadline, so a single one-shot timer that fires SetFinished once is
// sufficient, test loops poll Finished() each iteration and stop
// promptly once it is nonzero.
type Finisher struct {
	timeE    *wire.Clock
	sampler  *Sampler
	finished uint32
	latched  uint32
	timer    *time.Timer
}

// NewFinisher builds a Finisher that latches into timeE on its first
// SetFinished call.
func NewFinisher(sampler *Sampler, timeE *wire.Clock) *Finisher {
	return &Finisher{sampler: sampler, timeE: timeE}
}

// SetFinished atomically increments the Finished counter; iff this is the
// 0->1 transition, it samples time_e. Safe to call concurrently.
func (f *Finisher) SetFinished() {
	atomic.AddUint32(&f.finished, 1)
	if atomic.CompareAndSwapUint32(&f.latched, 0, 1) {
		if c, err := f.sampler.GetTimes(); err == nil && f.timeE != nil {
			*f.timeE = c
		}
	}
}

// Finished reports the monotonic counter's current value.
func (f *Finisher) Finished() uint32 {
	return atomic.LoadUint32(&f.finished)
}

// StartTiming arms the test's runtime bound: if seconds > 0, SetFinished
// fires once the duration elapses.
func (f *Finisher) StartTiming(seconds uint32) {
	if seconds > 0 {
		f.timer = time.AfterFunc(time.Duration(seconds)*time.Second, f.SetFinished)
	}
}

// StopTiming calls SetFinished (in case the test ended before its
// deadline) and disarms the timer.
func (f *Finisher) StopTiming() {
	f.SetFinished()
	if f.timer != nil {
		f.timer.Stop()
	}
}
