package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mark-e-deyoung/qperf/internal/options"
	"github.com/mark-e-deyoung/qperf/internal/render"
)

func TestFieldRegistrationCoversAllFields(t *testing.T) {
	c := NewContext(false, render.DefaultVerbosity())
	if len(c.Fields) != len(options.FieldOrder) {
		t.Fatalf("got %d fields, want %d", len(c.Fields), len(options.FieldOrder))
	}
	if c.Registry.Len() != 2*len(options.FieldOrder) {
		t.Fatalf("registry has %d entries, want %d", c.Registry.Len(), 2*len(options.FieldOrder))
	}
}

func TestSetU64BothSidesIndependent(t *testing.T) {
	c := NewContext(false, render.DefaultVerbosity())
	if err := c.SetU64("msg_size", options.Local, 1024); err != nil {
		t.Fatalf("SetU64 local: %v", err)
	}
	if err := c.SetU64("msg_size", options.Remote, 2048); err != nil {
		t.Fatalf("SetU64 remote: %v", err)
	}
	if c.Req.MsgSize != 1024 {
		t.Fatalf("Req.MsgSize = %d, want 1024", c.Req.MsgSize)
	}
	if c.RReq.MsgSize != 2048 {
		t.Fatalf("RReq.MsgSize = %d, want 2048", c.RReq.MsgSize)
	}
}

func TestSetStrRoundTripsThroughFixedBuffer(t *testing.T) {
	c := NewContext(false, render.DefaultVerbosity())
	if err := c.SetStr("id", options.Local, "hello"); err != nil {
		t.Fatalf("SetStr: %v", err)
	}
	if got := c.Registry.ValueStr(c.Fields["id"].Loc); got != "hello" {
		t.Fatalf("id = %q, want hello", got)
	}
}

func TestSetStrRejectsOversizedId(t *testing.T) {
	c := NewContext(false, render.DefaultVerbosity())
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	if err := c.SetStr("id", options.Local, string(long)); err == nil {
		t.Fatalf("expected oversized id to be rejected")
	}
}

func TestIsSetAnyAndUseBoth(t *testing.T) {
	c := NewContext(false, render.DefaultVerbosity())
	if c.IsSetAny("time") {
		t.Fatalf("time should not be set yet")
	}
	c.SetDefaultU64("time", 2)
	if c.IsSetAny("time") {
		t.Fatalf("SetDefaultU64 must not mark Set")
	}
	c.UseBoth("time")
	fi := c.Fields["time"]
	if !c.Registry.Par(fi.Loc).Used || !c.Registry.Par(fi.Rem).Used {
		t.Fatalf("expected both sides marked used")
	}
}

func TestRenderTrafficCollapsesToSendRecvWhenUnidirectional(t *testing.T) {
	v := render.DefaultVerbosity()
	v.Stat = 1
	c := NewContext(false, v)
	c.LStat.S.NoBytes = 1000
	c.RStat.R.NoBytes = 1000

	c.renderTraffic()
	var buf bytes.Buffer
	c.Show.PlaceShow(&buf)
	got := buf.String()
	if !strings.Contains(got, "send_bytes") || !strings.Contains(got, "recv_bytes") {
		t.Fatalf("expected send_bytes/recv_bytes labels, got %q", got)
	}
	if strings.Contains(got, "loc_") || strings.Contains(got, "rem_") {
		t.Fatalf("expected loc_/rem_ collapsed away, got %q", got)
	}
}

func TestRenderTrafficKeepsLocRemWhenUnifyNodesSet(t *testing.T) {
	v := render.DefaultVerbosity()
	v.Stat = 1
	v.UnifyNodes = true
	c := NewContext(false, v)
	c.LStat.S.NoBytes = 1000
	c.RStat.R.NoBytes = 1000

	c.renderTraffic()
	var buf bytes.Buffer
	c.Show.PlaceShow(&buf)
	got := buf.String()
	if !strings.Contains(got, "loc_send_bytes") || !strings.Contains(got, "rem_recv_bytes") {
		t.Fatalf("expected loc_/rem_ labels preserved under UnifyNodes, got %q", got)
	}
}

func TestResetReinitializesLStat(t *testing.T) {
	c := NewContext(true, render.DefaultVerbosity())
	c.LStat.S.NoBytes = 999
	c.Successful = true
	c.Reset()
	if c.LStat.S.NoBytes != 0 {
		t.Fatalf("expected LStat reinitialized, got NoBytes=%d", c.LStat.S.NoBytes)
	}
	if c.Successful {
		t.Fatalf("expected Successful cleared")
	}
}
