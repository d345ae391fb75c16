/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package wire implements the fixed-layout, little-endian, length-prefix-free
// binary schema shared by the qperf client and server: the negotiation
// request (Req) and the two statistics records (UStat, Stat).
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// STRSIZE bounds the fixed ASCII id buffer carried in every Req.
const STRSIZE = 64

// T_N is the number of columns in a CLOCK vector: REAL followed by the
// eight /proc/stat "cpu " columns this tool samples.
const T_N = 9

// CLOCK column indices, in the fixed order the wire schema and the
// statistics engine both depend on.
const (
	REAL = iota
	USER
	NICE
	KERNEL
	IDLE
	IOWAIT
	IRQ
	SOFTIRQ
	STEAL
)

// Clock is a T_N-column tick vector: one REAL sample plus the eight
// /proc/stat columns, in T_N order.
type Clock [T_N]uint64

// Req is the versioned negotiation record the client sends the server to
// pick a test and carry every per-test parameter. Field order here is the
// fixed wire order and must never change without a version bump.
type Req struct {
	VerMaj      uint8
	VerMin      uint8
	VerInc      uint8
	ReqIndex    uint32
	Flip        uint8
	AccessRecv  uint8
	Affinity    uint32
	PollMode    uint8
	Port        uint32
	RdAtomic    uint32
	Timeout     uint32
	MsgSize     uint32
	MtuSize     uint32
	NoMsgs      uint64
	SockBufSize uint32
	Time        uint32
	Id          [STRSIZE]byte
}

// UStat is a unidirectional counter set: bytes, messages, and errors seen
// by one side of one direction of a test.
type UStat struct {
	NoBytes uint64
	NoMsgs  uint64
	NoErrs  uint64
}

// Stat is the full statistics snapshot one side sends the other after a
// test completes: tick vectors plus four USTATs (local sends/receives, and
// what the peer says it sent/received).
type Stat struct {
	NoCpus  uint32
	NoTicks uint64
	MaxCqes uint32
	TimeS   Clock
	TimeE   Clock
	S       UStat
	R       UStat
	RemS    UStat
	RemR    UStat
}

// ReqSize is the exact encoded length of a Req, fixed regardless of host
// word size.
const ReqSize = 1 + 1 + 1 + 4 + 1 + 1 + 4 + 1 + 4 + 4 + 4 + 4 + 4 + 8 + 4 + 4 + STRSIZE

// StatSize is the exact encoded length of a Stat.
const StatSize = 4 + 8 + 4 + T_N*8 + T_N*8 + 3*8*4

// UStatSize is the exact encoded length of a UStat.
const UStatSize = 8 + 8 + 8

// EncodeReq renders r into its exact-length wire form.
func EncodeReq(r *Req) []byte {
	buf := make([]byte, 0, ReqSize)
	buf = append(buf, r.VerMaj, r.VerMin, r.VerInc)
	buf = appendU32(buf, r.ReqIndex)
	buf = append(buf, r.Flip, r.AccessRecv)
	buf = appendU32(buf, r.Affinity)
	buf = append(buf, r.PollMode)
	buf = appendU32(buf, r.Port)
	buf = appendU32(buf, r.RdAtomic)
	buf = appendU32(buf, r.Timeout)
	buf = appendU32(buf, r.MsgSize)
	buf = appendU32(buf, r.MtuSize)
	buf = appendU64(buf, r.NoMsgs)
	buf = appendU32(buf, r.SockBufSize)
	buf = appendU32(buf, r.Time)
	buf = append(buf, r.Id[:]...)
	if len(buf) != ReqSize {
		panic(fmt.Sprintf("internal error: encoded Req length %d != ReqSize %d", len(buf), ReqSize))
	}
	return buf
}

// DecodeReq is the inverse of EncodeReq; it consumes exactly ReqSize bytes.
func DecodeReq(b []byte) (*Req, error) {
	if len(b) != ReqSize {
		return nil, fmt.Errorf("wire: short Req buffer: got %d bytes, want %d", len(b), ReqSize)
	}
	r := &Req{}
	rd := bytes.NewReader(b)
	r.VerMaj, _ = rd.ReadByte()
	r.VerMin, _ = rd.ReadByte()
	r.VerInc, _ = rd.ReadByte()
	r.ReqIndex = readU32(rd)
	r.Flip, _ = rd.ReadByte()
	r.AccessRecv, _ = rd.ReadByte()
	r.Affinity = readU32(rd)
	r.PollMode, _ = rd.ReadByte()
	r.Port = readU32(rd)
	r.RdAtomic = readU32(rd)
	r.Timeout = readU32(rd)
	r.MsgSize = readU32(rd)
	r.MtuSize = readU32(rd)
	r.NoMsgs = readU64(rd)
	r.SockBufSize = readU32(rd)
	r.Time = readU32(rd)
	rd.Read(r.Id[:])
	return r, nil
}

// EncodeUStat renders u into its exact-length wire form.
func EncodeUStat(u *UStat) []byte {
	buf := make([]byte, 0, UStatSize)
	buf = appendU64(buf, u.NoBytes)
	buf = appendU64(buf, u.NoMsgs)
	buf = appendU64(buf, u.NoErrs)
	return buf
}

// DecodeUStat is the inverse of EncodeUStat.
func DecodeUStat(b []byte) (*UStat, error) {
	if len(b) != UStatSize {
		return nil, fmt.Errorf("wire: short UStat buffer: got %d bytes, want %d", len(b), UStatSize)
	}
	rd := bytes.NewReader(b)
	return &UStat{
		NoBytes: readU64(rd),
		NoMsgs:  readU64(rd),
		NoErrs:  readU64(rd),
	}, nil
}

// EncodeStat renders s into its exact-length wire form: no_cpus, no_ticks,
// max_cqes, time_s[0..T_N-1], time_e[0..T_N-1], then s, r, rem_s, rem_r.
func EncodeStat(s *Stat) []byte {
	buf := make([]byte, 0, StatSize)
	buf = appendU32(buf, s.NoCpus)
	buf = appendU64(buf, s.NoTicks)
	buf = appendU32(buf, s.MaxCqes)
	for _, v := range s.TimeS {
		buf = appendU64(buf, v)
	}
	for _, v := range s.TimeE {
		buf = appendU64(buf, v)
	}
	buf = append(buf, EncodeUStat(&s.S)...)
	buf = append(buf, EncodeUStat(&s.R)...)
	buf = append(buf, EncodeUStat(&s.RemS)...)
	buf = append(buf, EncodeUStat(&s.RemR)...)
	if len(buf) != StatSize {
		panic(fmt.Sprintf("internal error: encoded Stat length %d != StatSize %d", len(buf), StatSize))
	}
	return buf
}

// DecodeStat is the inverse of EncodeStat.
func DecodeStat(b []byte) (*Stat, error) {
	if len(b) != StatSize {
		return nil, fmt.Errorf("wire: short Stat buffer: got %d bytes, want %d", len(b), StatSize)
	}
	rd := bytes.NewReader(b)
	s := &Stat{}
	s.NoCpus = readU32(rd)
	s.NoTicks = readU64(rd)
	s.MaxCqes = readU32(rd)
	for i := range s.TimeS {
		s.TimeS[i] = readU64(rd)
	}
	for i := range s.TimeE {
		s.TimeE[i] = readU64(rd)
	}
	ustatBuf := make([]byte, UStatSize)
	for _, dst := range []*UStat{&s.S, &s.R, &s.RemS, &s.RemR} {
		rd.Read(ustatBuf)
		u, err := DecodeUStat(ustatBuf)
		if err != nil {
			return nil, err
		}
		*dst = *u
	}
	return s, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readU32(rd *bytes.Reader) uint32 {
	var tmp [4]byte
	rd.Read(tmp[:])
	return binary.LittleEndian.Uint32(tmp[:])
}

func readU64(rd *bytes.Reader) uint64 {
	var tmp [8]byte
	rd.Read(tmp[:])
	return binary.LittleEndian.Uint64(tmp[:])
}
