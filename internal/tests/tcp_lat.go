/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

package tests

import (
	"time"

	"github.com/mark-e-deyoung/qperf/internal/control"
	"github.com/mark-e-deyoung/qperf/internal/session"
)

// TCPLatencyClient ping-pongs a msg_size-byte message, counting each
// completed round trip into no_msgs. Each outgoing message carries the
// same byte-ramp pattern a bandwidth test writes, so a corrupted echo is
// still detectable even though this test measures round-trip time.
func TCPLatencyClient(ctx *session.Context) error {
	ctx.UseBoth("msg_size")
	if err := control.Synchronize(ctx, ctx.Conn, true); err != nil {
		return err
	}

	out := make([]byte, msgSize(ctx))
	in := make([]byte, msgSize(ctx))
	var round uint64
	for ctx.Finisher.Finished() == 0 {
		fillPattern(out, round)
		ctx.Conn.SetWriteDeadline(time.Now().Add(pollInterval))
		if _, err := ctx.Conn.Write(out); err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		ctx.Conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := readFull(ctx.Conn, in)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		ctx.LStat.R.NoErrs += verifyPattern(in, n, round)
		ctx.LStat.S.NoBytes += uint64(len(out))
		ctx.LStat.R.NoBytes += uint64(n)
		ctx.LStat.R.NoMsgs++
		round++
	}
	ctx.Req.NoMsgs = round

	control.ExchangeResults(ctx, ctx.Conn, true)
	control.FinalizeStats(ctx)
	return nil
}

// TCPLatencyServer echoes every message it reads back to the client
// unmodified until the test's Finisher latches.
func TCPLatencyServer(ctx *session.Context) error {
	if err := control.Synchronize(ctx, ctx.Conn, false); err != nil {
		return err
	}

	buf := make([]byte, msgSize(ctx))
	for ctx.Finisher.Finished() == 0 {
		ctx.Conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := readFull(ctx.Conn, buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			break
		}
		ctx.LStat.R.NoBytes += uint64(n)
		ctx.LStat.R.NoMsgs++

		ctx.Conn.SetWriteDeadline(time.Now().Add(pollInterval))
		if _, err := ctx.Conn.Write(buf[:n]); err != nil {
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
