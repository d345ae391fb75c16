package tests

import (
	"net"
	"testing"
	"time"

	"github.com/mark-e-deyoung/qperf/internal/render"
	"github.com/mark-e-deyoung/qperf/internal/session"
)

func newPairedContexts(t *testing.T) (client, server *session.Context, clientConn, serverConn net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	client = session.NewContext(false, render.DefaultVerbosity())
	server = session.NewContext(true, render.DefaultVerbosity())
	client.Req.Timeout, server.Req.Timeout = 5, 5
	client.Conn, server.Conn = a, b
	return client, server, a, b
}

func stopAfter(ctx *session.Context, d time.Duration) {
	go func() {
		time.Sleep(d)
		ctx.Finisher.SetFinished()
	}()
}

func TestTCPBandwidthRoundTrip(t *testing.T) {
	client, server, a, b := newPairedContexts(t)
	defer a.Close()
	defer b.Close()
	client.Req.MsgSize, server.Req.MsgSize = 256, 256
	client.Successful, server.Successful = true, true

	stopAfter(client, 40*time.Millisecond)
	stopAfter(server, 60*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- TCPBandwidthServer(server) }()

	if err := TCPBandwidthClient(client); err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}

	if client.LStat.S.NoBytes == 0 {
		t.Fatalf("expected client to report bytes sent")
	}
	if server.LStat.R.NoErrs != 0 {
		t.Fatalf("server reported %d pattern errors, want 0", server.LStat.R.NoErrs)
	}
	if client.RStat.R.NoBytes == 0 {
		t.Fatalf("expected client to have received server's reported receive count")
	}
}

func TestTCPLatencyRoundTrip(t *testing.T) {
	client, server, a, b := newPairedContexts(t)
	defer a.Close()
	defer b.Close()
	client.Req.MsgSize, server.Req.MsgSize = 64, 64

	stopAfter(client, 60*time.Millisecond)
	stopAfter(server, 80*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- TCPLatencyServer(server) }()

	if err := TCPLatencyClient(client); err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}

	if client.Req.NoMsgs == 0 {
		t.Fatalf("expected at least one completed round trip")
	}
	if client.LStat.R.NoErrs != 0 {
		t.Fatalf("client reported %d echo mismatches, want 0", client.LStat.R.NoErrs)
	}
}

func TestSeqTrackerInOrder(t *testing.T) {
	var tr seqTracker
	tr.first = true
	for i := uint64(0); i < 5; i++ {
		if dropped := tr.observe(i); dropped != 0 {
			t.Fatalf("seq %d: got %d dropped, want 0", i, dropped)
		}
	}
}

func TestSeqTrackerDetectsGap(t *testing.T) {
	tr := seqTracker{first: true}
	tr.observe(0)
	tr.observe(1)
	if dropped := tr.observe(5); dropped != 3 {
		t.Fatalf("got %d dropped, want 3 (seq 2,3,4 missing)", dropped)
	}
}

func TestSeqTrackerDetectsReorder(t *testing.T) {
	tr := seqTracker{first: true}
	tr.observe(0)
	tr.observe(5)
	if dropped := tr.observe(2); dropped != 1 {
		t.Fatalf("late/duplicate seq 2: got %d dropped, want 1", dropped)
	}
}

func TestFillAndVerifyPatternRoundTrip(t *testing.T) {
	buf := make([]byte, 300)
	fillPattern(buf, 1000)
	if bad := verifyPattern(buf, len(buf), 1000); bad != 0 {
		t.Fatalf("got %d mismatches against the buffer's own pattern, want 0", bad)
	}
	buf[150] ^= 0xFF
	if bad := verifyPattern(buf, len(buf), 1000); bad != 1 {
		t.Fatalf("got %d mismatches after corrupting one byte, want 1", bad)
	}
}

func TestMsgSizeDefault(t *testing.T) {
	ctx := session.NewContext(false, render.DefaultVerbosity())
	if got := msgSize(ctx); got != defaultMsgSize {
		t.Fatalf("got %d, want default %d", got, defaultMsgSize)
	}
	ctx.Req.MsgSize = 4096
	if got := msgSize(ctx); got != 4096 {
		t.Fatalf("got %d, want 4096", got)
	}
}
