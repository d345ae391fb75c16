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

// UDPLatencyClient is the UDP ping-pong variant of TCPLatencyClient: each
// round sends one datagram and waits for the server's echo, retrying on a
// short timeout so an occasional dropped datagram doesn't stall the loop.
func UDPLatencyClient(ctx *session.Context) error {
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

	out := make([]byte, udpPayloadSize(ctx))
	in := make([]byte, udpPayloadSize(ctx))
	var seq uint64
	for ctx.Finisher.Finished() == 0 {
		binary.BigEndian.PutUint64(out[:seqHeaderSize], seq)
		sock.SetWriteDeadline(time.Now().Add(pollInterval))
		if _, err := sock.Write(out); err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		ctx.LStat.S.NoBytes += uint64(len(out))
		ctx.LStat.S.NoMsgs++

		sock.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := sock.Read(in)
		if err != nil {
			if isTimeout(err) {
				ctx.LStat.R.NoErrs++
				continue
			}
			break
		}
		if n < seqHeaderSize || binary.BigEndian.Uint64(in[:seqHeaderSize]) != seq {
			ctx.LStat.R.NoErrs++
		}
		ctx.LStat.R.NoBytes += uint64(n)
		ctx.LStat.R.NoMsgs++
		seq++
	}
	ctx.Req.NoMsgs = seq

	control.ExchangeResults(ctx, ctx.Conn, true)
	control.FinalizeStats(ctx)
	return nil
}

// UDPLatencyServer echoes every datagram it receives back to its sender
// until the test's Finisher latches.
func UDPLatencyServer(ctx *session.Context) error {
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
	for ctx.Finisher.Finished() == 0 {
		sock.SetReadDeadline(time.Now().Add(pollInterval))
		n, from, err := sock.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		ctx.LStat.R.NoBytes += uint64(n)
		ctx.LStat.R.NoMsgs++

		sock.SetWriteDeadline(time.Now().Add(pollInterval))
		if _, err := sock.WriteToUDP(buf[:n], from); err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		ctx.LStat.S.NoBytes += uint64(n)
		ctx.LStat.S.NoMsgs++
	}

	control.ExchangeResults(ctx, ctx.Conn, false)
	return nil
}
