/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

package tests

import (
	"net"
	"time"

	"github.com/mark-e-deyoung/qperf/internal/control"
	"github.com/mark-e-deyoung/qperf/internal/session"
)

// pollInterval bounds how long a read/write deadline is allowed to block
// before a test loop rechecks ctx.Finisher.Finished().
const pollInterval = 500 * time.Millisecond

// TCPBandwidthClient streams msg_size-byte buffers over the control
// connection until the test's Finisher latches.
func TCPBandwidthClient(ctx *session.Context) error {
	ctx.UseBoth("msg_size")
	if err := control.Synchronize(ctx, ctx.Conn, true); err != nil {
		return err
	}

	buf := make([]byte, msgSize(ctx))
	var sent uint64
	for ctx.Finisher.Finished() == 0 {
		fillPattern(buf, sent)
		ctx.Conn.SetWriteDeadline(time.Now().Add(pollInterval))
		n, err := ctx.Conn.Write(buf)
		sent += uint64(n)
		ctx.LStat.S.NoBytes += uint64(n)
		if n == len(buf) {
			ctx.LStat.S.NoMsgs++
		}
		if err != nil && !isTimeout(err) {
			break
		}
	}

	control.ExchangeResults(ctx, ctx.Conn, true)
	control.FinalizeStats(ctx)
	return nil
}

// TCPBandwidthServer reads and verifies the client's byte ramp until the
// test's Finisher latches, counting total bytes and messages received.
func TCPBandwidthServer(ctx *session.Context) error {
	if err := control.Synchronize(ctx, ctx.Conn, false); err != nil {
		return err
	}

	buf := make([]byte, msgSize(ctx))
	var recvd uint64
	for ctx.Finisher.Finished() == 0 {
		ctx.Conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := ctx.Conn.Read(buf)
		if n > 0 {
			ctx.LStat.R.NoErrs += verifyPattern(buf, n, recvd)
			recvd += uint64(n)
			ctx.LStat.R.NoBytes += uint64(n)
			ctx.LStat.R.NoMsgs++
		}
		if err != nil && !isTimeout(err) {
			break
		}
	}

	control.ExchangeResults(ctx, ctx.Conn, false)
	return nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
