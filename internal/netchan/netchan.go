/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package netchan implements the deadline-bound messaging channel used for
// every control-plane exchange: request send, sync, and statistics
// exchange. Go's net.Conn already multiplexes through the runtime's
// netpoller, so SetDeadline plus Read/Write gives nonblocking,
// timeout-bounded I/O for free; this package's job is just to produce a
// consistent failure vocabulary ("timed out", "<peer> not responding") on
// top of that.
package netchan

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Send writes buf to conn in full before deadline, identifying the
// payload as item in any error message.
func Send(conn net.Conn, item string, buf []byte, deadline time.Time) error {
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return fmt.Errorf("failed to send %s: timed out", item)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to send %s: %w", item, err)
	}
	total := 0
	for total < len(buf) {
		n, err := conn.Write(buf[total:])
		total += n
		if err != nil {
			return fmt.Errorf("failed to send %s: %s", item, classify(err))
		}
	}
	return nil
}

// Recv reads exactly len(buf) bytes from conn before deadline,
// identifying the payload as item and the far side as peerRole ("client"
// or "server") in any error message.
func Recv(conn net.Conn, item string, buf []byte, deadline time.Time, peerRole string) error {
	if !deadline.IsZero() && !time.Now().Before(deadline) {
		return fmt.Errorf("failed to receive %s: timed out", item)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("failed to receive %s: %w", item, err)
	}
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if n == 0 && err == nil {
			return fmt.Errorf("failed to receive %s: %s not responding", item, peerRole)
		}
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to receive %s: %s not responding", item, peerRole)
			}
			return fmt.Errorf("failed to receive %s: %s", item, classify(err))
		}
	}
	return nil
}

// classify renders a net error as "timed out" on deadline expiry, or the
// OS-provided message otherwise.
func classify(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timed out"
	}
	return err.Error()
}
