/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package tests implements the concrete client/server bodies a
// testreg.Registry entry dispatches to: two TCP tests and two UDP tests,
// each driving the negotiation protocol in internal/control around its
// own measurement loop.
package tests

import (
	"net"

	"github.com/mark-e-deyoung/qperf/internal/session"
	"github.com/mark-e-deyoung/qperf/internal/testreg"
)

// defaultMsgSize is used when a test's msg_size parameter was left at its
// zero value by both sides.
const defaultMsgSize = 64 * 1024

// msgSize returns ctx.Req.MsgSize, or defaultMsgSize if it is unset.
func msgSize(ctx *session.Context) int {
	if ctx.Req.MsgSize == 0 {
		return defaultMsgSize
	}
	return int(ctx.Req.MsgSize)
}

// fillPattern writes a repeating byte ramp starting at offset:
// buf[i] = byte(offset+i).
func fillPattern(buf []byte, offset uint64) {
	v := byte(offset % 256)
	for i := range buf {
		buf[i] = v
		v++
	}
}

// verifyPattern reports how many bytes of buf[:n] break the ramp
// fillPattern wrote, starting from the same offset.
func verifyPattern(buf []byte, n int, offset uint64) uint64 {
	v := byte(offset % 256)
	var bad uint64
	for i := 0; i < n; i++ {
		if buf[i] != v {
			bad++
		}
		v++
	}
	return bad
}

// readFull reads exactly len(buf) bytes from conn, tolerating the
// intermediate short reads a stream socket is free to return.
func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Register adds all four bodies to reg in declaration order and returns
// their assigned indices, keyed by name.
func Register(reg *testreg.Registry) map[string]int {
	idx := make(map[string]int, 4)
	idx["tcp_bw"] = reg.Register("tcp_bw", TCPBandwidthClient, TCPBandwidthServer)
	idx["tcp_lat"] = reg.Register("tcp_lat", TCPLatencyClient, TCPLatencyServer)
	idx["udp_bw"] = reg.Register("udp_bw", UDPBandwidthClient, UDPBandwidthServer)
	idx["udp_lat"] = reg.Register("udp_lat", UDPLatencyClient, UDPLatencyServer)
	return idx
}
