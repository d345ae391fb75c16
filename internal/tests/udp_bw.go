/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

package tests

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/mark-e-deyoung/qperf/internal/control"
	"github.com/mark-e-deyoung/qperf/internal/session"
)

// defaultUDPPort is used for the data socket when neither side set port,
// kept off the control port (options.DefaultListenPort) so the two never
// collide on one host.
const defaultUDPPort = 19766

// seqHeaderSize is the 8-byte big-endian sequence number every UDP test
// datagram leads with.
const seqHeaderSize = 8

func udpPort(ctx *session.Context) int {
	if ctx.Req.Port != 0 {
		return int(ctx.Req.Port)
	}
	return defaultUDPPort
}

func remoteHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// seqTracker detects gaps and reorderings in a monotonically-intended
// sequence number stream.
type seqTracker struct {
	highest uint64
	first   bool
}

// observe folds one received sequence number into the tracker and
// returns how many packets it now believes were dropped because of it:
// a forward gap counts every skipped number, a number at or behind the
// high-water mark counts one (an out-of-order or duplicate delivery).
func (t *seqTracker) observe(seq uint64) uint64 {
	if t.first {
		t.first = false
		t.highest = seq
		return 0
	}
	if seq > t.highest {
		gap := seq - t.highest - 1
		t.highest = seq
		return gap
	}
	return 1
}

func udpPayloadSize(ctx *session.Context) int {
	n := int(ctx.Req.MtuSize)
	if n <= seqHeaderSize {
		n = 1024
	}
	return n
}

// UDPBandwidthClient streams one-directional UDP datagrams, each mtu_size
// bytes with a leading sequence number, until the test's Finisher latches.
func UDPBandwidthClient(ctx *session.Context) error {
	ctx.UseBoth("mtu_size")
	ctx.UseBoth("port")
	if err := control.Synchronize(ctx, ctx.Conn, true); err != nil {
		return err
	}

	raddr := &net.UDPAddr{IP: net.ParseIP(remoteHost(ctx.Conn)), Port: udpPort(ctx)}
	sock, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	defer sock.Close()

	buf := make([]byte, udpPayloadSize(ctx))
	var seq uint64
	for ctx.Finisher.Finished() == 0 {
		binary.BigEndian.PutUint64(buf[:seqHeaderSize], seq)
		sock.SetWriteDeadline(time.Now().Add(pollInterval))
		n, err := sock.Write(buf)
		seq++
		ctx.LStat.S.NoBytes += uint64(n)
		ctx.LStat.S.NoMsgs++
		if err != nil && !isTimeout(err) {
			break
		}
	}

	control.ExchangeResults(ctx, ctx.Conn, true)
	control.FinalizeStats(ctx)
	return nil
}

// UDPBandwidthServer receives the client's datagram stream on its own UDP
// socket bound to port, tracking gaps in the sequence number and folding
// drops into no_errs.
func UDPBandwidthServer(ctx *session.Context) error {
	if err := control.Synchronize(ctx, ctx.Conn, false); err != nil {
		return err
	}

	laddr := &net.UDPAddr{Port: udpPort(ctx)}
	sock, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	defer sock.Close()

	buf := make([]byte, udpPayloadSize(ctx))
	tr := seqTracker{first: true}
	for ctx.Finisher.Finished() == 0 {
		sock.SetReadDeadline(time.Now().Add(pollInterval))
		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		if n >= seqHeaderSize {
			seq := binary.BigEndian.Uint64(buf[:seqHeaderSize])
			ctx.LStat.R.NoErrs += tr.observe(seq)
		}
		ctx.LStat.R.NoBytes += uint64(n)
		ctx.LStat.R.NoMsgs++
	}

	control.ExchangeResults(ctx, ctx.Conn, false)
	return nil
}
