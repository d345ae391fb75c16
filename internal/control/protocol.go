/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package control implements the client and server halves of the
// negotiation protocol: version gate, request send, sync exchange, and
// results exchange.
package control

import (
	"errors"
	"fmt"
	"net"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/mark-e-deyoung/qperf/internal/netchan"
	"github.com/mark-e-deyoung/qperf/internal/session"
	"github.com/mark-e-deyoung/qperf/internal/stats"
	"github.com/mark-e-deyoung/qperf/internal/wire"
)

// Own protocol version. Incremental (VerInc) differences are tolerated;
// only a (VerMaj, VerMin) mismatch triggers the upgrade gate.
const (
	VerMaj = 0
	VerMin = 2
	VerInc = 0
)

// ErrProtocol marks a negotiation-level failure: version mismatch, bad
// req_index, sync content mismatch.
var ErrProtocol = errors.New("control: protocol error")

// ErrSystem marks an OS-facing failure: listen, dial, affinity.
var ErrSystem = errors.New("control: system error")

var syncMagic = [4]byte{'S', 'y', 'N', 0}

func versionString(maj, min, inc uint8) string {
	return fmt.Sprintf("%d.%d.%d", maj, min, inc)
}

// checkVersion compares a peer's version triple against our own. It
// returns a human-readable upgrade message and true when the (maj, min)
// pair differs; incremental differences alone are not a mismatch.
func checkVersion(peerMaj, peerMin, peerInc uint8) (msg string, mismatched bool) {
	ownMM, err := goversion.NewVersion(fmt.Sprintf("%d.%d.0", VerMaj, VerMin))
	if err != nil {
		panic("internal error: own version string is invalid: " + err.Error())
	}
	peerMM, err := goversion.NewVersion(fmt.Sprintf("%d.%d.0", peerMaj, peerMin))
	if err != nil {
		return fmt.Sprintf("upgrade client from %s to %s", versionString(peerMaj, peerMin, peerInc), versionString(VerMaj, VerMin, VerInc)), true
	}
	if ownMM.Equal(peerMM) {
		return "", false
	}
	own := versionString(VerMaj, VerMin, VerInc)
	peer := versionString(peerMaj, peerMin, peerInc)
	if peerMM.LessThan(ownMM) {
		return fmt.Sprintf("upgrade client from %s to %s", peer, own), true
	}
	return fmt.Sprintf("upgrade server from %s to %s", own, peer), true
}

func sendSync(conn net.Conn, deadline time.Time) error {
	return netchan.Send(conn, "sync", syncMagic[:], deadline)
}

func recvSync(conn net.Conn, deadline time.Time, peerRole string) error {
	buf := make([]byte, len(syncMagic))
	if err := netchan.Recv(conn, "sync", buf, deadline, peerRole); err != nil {
		return err
	}
	if string(buf) != string(syncMagic[:]) {
		return fmt.Errorf("%w: sync mismatch: got %q", ErrProtocol, buf)
	}
	return nil
}

// Synchronize runs the client-sends-first / server-receives-first sync
// exchange and, on success, arms the test's runtime bound.
func Synchronize(ctx *session.Context, conn net.Conn, isClient bool) error {
	ctx.UseBoth("timeout")
	deadline := time.Now().Add(time.Duration(ctx.Req.Timeout) * time.Second)
	peerRole := "server"
	if !isClient {
		peerRole = "client"
	}

	var err error
	if isClient {
		if err = sendSync(conn, deadline); err == nil {
			err = recvSync(conn, deadline, peerRole)
		}
	} else {
		if err = recvSync(conn, deadline, peerRole); err == nil {
			err = sendSync(conn, deadline)
		}
	}
	if err != nil {
		return err
	}
	if c, serr := ctx.Sampler.GetTimes(); serr == nil {
		ctx.LStat.TimeS = c
	}
	ctx.Finisher.StartTiming(ctx.Req.Time)
	return nil
}

// ExchangeResults runs exchange_results: guarded by ctx.Successful, the
// client receives STAT into RStat then sends a sync, the server encodes
// LStat, sends it, then receives a sync. Both sides land in
// ctx.Successful reflecting whether the exchange itself completed.
func ExchangeResults(ctx *session.Context, conn net.Conn, isClient bool) {
	if !ctx.Successful {
		return
	}
	deadline := time.Now().Add(time.Duration(ctx.Req.Timeout) * time.Second)

	var err error
	if isClient {
		err = recvStat(ctx, conn, deadline, "server")
		if err == nil {
			err = sendSync(conn, deadline)
		}
	} else {
		err = sendStat(ctx, conn, deadline)
		if err == nil {
			err = recvSync(conn, deadline, "client")
		}
	}
	ctx.Successful = err == nil
}

func sendStat(ctx *session.Context, conn net.Conn, deadline time.Time) error {
	return netchan.Send(conn, "stat", wire.EncodeStat(ctx.LStat), deadline)
}

func recvStat(ctx *session.Context, conn net.Conn, deadline time.Time, peerRole string) error {
	buf := make([]byte, wire.StatSize)
	if err := netchan.Recv(conn, "stat", buf, deadline, peerRole); err != nil {
		return err
	}
	s, err := wire.DecodeStat(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	ctx.RStat = s
	return nil
}

// FinalizeStats folds the peer's reported counters into ctx.LStat/RStat
// and computes ctx.Res, ready for rendering.
func FinalizeStats(ctx *session.Context) {
	stats.CrossAdd(ctx.LStat, ctx.RStat)
	ctx.Res = stats.Derive(ctx.LStat, ctx.RStat)
}
