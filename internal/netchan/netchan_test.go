package netchan

import (
	"net"
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	payload := []byte("SyN\x00")
	errCh := make(chan error, 1)
	go func() {
		errCh <- Send(a, "sync", payload, time.Now().Add(time.Second))
	}()

	got := make([]byte, len(payload))
	if err := Recv(b, "sync", got, time.Now().Add(time.Second), "client"); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestRecvDeadlineEnforced(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	start := time.Now()
	buf := make([]byte, 64)
	err := Recv(b, "stat", buf, start.Add(300*time.Millisecond), "server")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed < 250*time.Millisecond || elapsed > 1500*time.Millisecond {
		t.Fatalf("deadline not enforced promptly: elapsed=%v", elapsed)
	}
}

func TestRecvPeerGoneReportsNotResponding(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	a.Close()

	buf := make([]byte, 8)
	err := Recv(b, "stat", buf, time.Now().Add(time.Second), "server")
	if err == nil {
		t.Fatalf("expected error when peer closed the connection")
	}
}
