package stats

import (
	"testing"

	"github.com/mark-e-deyoung/qperf/internal/wire"
)

func TestCrossAdd(t *testing.T) {
	lstat := &wire.Stat{S: wire.UStat{NoBytes: 1000, NoMsgs: 10}}
	rstat := &wire.Stat{RemS: wire.UStat{NoBytes: 1000, NoMsgs: 10}}

	CrossAdd(lstat, rstat)

	if lstat.S.NoBytes != 2000 || lstat.S.NoMsgs != 20 {
		t.Fatalf("lstat.S = %+v, want bytes=2000 msgs=20", lstat.S)
	}
}

func TestDeriveRESNZeroWhenNoDelta(t *testing.T) {
	s := &wire.Stat{NoTicks: 100}
	r := DeriveRESN(s)
	if r.TimeReal != 0 || r.CPUTotal != 0 {
		t.Fatalf("expected zero RESN, got %+v", r)
	}
}

func TestDeriveRESNBasic(t *testing.T) {
	s := &wire.Stat{NoTicks: 100}
	s.TimeS = wire.Clock{0, 0, 0, 0, 0, 0, 0, 0, 0}
	s.TimeE = wire.Clock{1000, 200, 0, 100, 600, 50, 25, 25, 0}
	r := DeriveRESN(s)
	if r.TimeReal != 10 {
		t.Fatalf("TimeReal = %v, want 10", r.TimeReal)
	}
	wantCPU := (200.0 + 100 + 50 + 25 + 25) / 100
	if r.TimeCPU != wantCPU {
		t.Fatalf("TimeCPU = %v, want %v", r.TimeCPU, wantCPU)
	}
	if r.CPUIdle != 600.0/1000.0 {
		t.Fatalf("CPUIdle = %v, want %v", r.CPUIdle, 0.6)
	}
}

func TestDeriveLatencyAndRates(t *testing.T) {
	lstat := &wire.Stat{NoTicks: 100}
	lstat.TimeS = wire.Clock{}
	lstat.TimeE = wire.Clock{1000}
	lstat.R = wire.UStat{NoMsgs: 100, NoBytes: 100000}
	lstat.S = wire.UStat{}

	rstat := &wire.Stat{NoTicks: 100}
	rstat.TimeS = wire.Clock{}
	rstat.TimeE = wire.Clock{1000}
	rstat.R = wire.UStat{}
	rstat.S = wire.UStat{}

	res := Derive(lstat, rstat)
	if res.Latency == 0 {
		t.Fatalf("expected nonzero latency")
	}
	if res.RecvBW == 0 {
		t.Fatalf("expected nonzero recv bandwidth")
	}
}

func TestDeriveSendCostUnidirectional(t *testing.T) {
	lstat := &wire.Stat{NoTicks: 100}
	lstat.TimeS = wire.Clock{}
	lstat.TimeE = wire.Clock{1000, 500}
	lstat.S = wire.UStat{NoBytes: 1 << 30}

	rstat := &wire.Stat{NoTicks: 100}
	rstat.TimeS = wire.Clock{}
	rstat.TimeE = wire.Clock{1000}

	res := Derive(lstat, rstat)
	if !res.HasSendCost {
		t.Fatalf("expected send cost to be computed")
	}
	if res.HasRecvCost {
		t.Fatalf("expected no recv cost")
	}
}
