package wire

import (
	"bytes"
	"testing"
)

func sampleReq() *Req {
	r := &Req{
		VerMaj:      0,
		VerMin:      2,
		VerInc:      0,
		ReqIndex:    7,
		Flip:        1,
		AccessRecv:  0,
		Affinity:    0,
		PollMode:    0,
		Port:        19765,
		RdAtomic:    0,
		Timeout:     5,
		MsgSize:     65536,
		MtuSize:     1500,
		NoMsgs:      0,
		SockBufSize: 0,
		Time:        10,
	}
	copy(r.Id[:], "hello")
	return r
}

func TestReqRoundTrip(t *testing.T) {
	r := sampleReq()
	enc := EncodeReq(r)
	if len(enc) != ReqSize {
		t.Fatalf("encoded length = %d, want %d", len(enc), ReqSize)
	}
	got, err := DecodeReq(enc)
	if err != nil {
		t.Fatalf("DecodeReq: %v", err)
	}
	if *got != *r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestReqEncodeBufferRoundTrip(t *testing.T) {
	r := sampleReq()
	b := EncodeReq(r)
	got, err := DecodeReq(b)
	if err != nil {
		t.Fatalf("DecodeReq: %v", err)
	}
	b2 := EncodeReq(got)
	if !bytes.Equal(b, b2) {
		t.Fatalf("encode(decode(b)) != b")
	}
}

func TestMsgSizeLittleEndianWord(t *testing.T) {
	r := sampleReq()
	enc := EncodeReq(r)
	// Offset of MsgSize: VerMaj,VerMin,VerInc(3) + ReqIndex(4) + Flip,AccessRecv(2)
	// + Affinity(4) + PollMode(1) + Port(4) + RdAtomic(4) + Timeout(4) = 26
	off := 3 + 4 + 2 + 4 + 1 + 4 + 4 + 4
	word := enc[off : off+4]
	want := []byte{0x00, 0x00, 0x01, 0x00}
	if !bytes.Equal(word, want) {
		t.Fatalf("msg_size LE word = % x, want % x", word, want)
	}
}

func TestUStatRoundTrip(t *testing.T) {
	u := &UStat{NoBytes: 12345, NoMsgs: 42, NoErrs: 1}
	enc := EncodeUStat(u)
	if len(enc) != UStatSize {
		t.Fatalf("encoded length = %d, want %d", len(enc), UStatSize)
	}
	got, err := DecodeUStat(enc)
	if err != nil {
		t.Fatalf("DecodeUStat: %v", err)
	}
	if *got != *u {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, u)
	}
}

func TestStatRoundTrip(t *testing.T) {
	s := &Stat{
		NoCpus:  4,
		NoTicks: 100,
		MaxCqes: 0,
		S:       UStat{NoBytes: 1000, NoMsgs: 10},
		R:       UStat{NoBytes: 2000, NoMsgs: 20},
		RemS:    UStat{NoBytes: 3000, NoMsgs: 30},
		RemR:    UStat{NoBytes: 4000, NoMsgs: 40},
	}
	for i := 0; i < T_N; i++ {
		s.TimeS[i] = uint64(i)
		s.TimeE[i] = uint64(i * 2)
	}
	enc := EncodeStat(s)
	if len(enc) != StatSize {
		t.Fatalf("encoded length = %d, want %d", len(enc), StatSize)
	}
	got, err := DecodeStat(enc)
	if err != nil {
		t.Fatalf("DecodeStat: %v", err)
	}
	if *got != *s {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, s)
	}
}

func TestLittleEndianByteExact(t *testing.T) {
	r := &Req{ReqIndex: 0x01020304}
	enc := EncodeReq(r)
	off := 3
	got := enc[off : off+4]
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("req_index LE bytes = % x, want % x", got, want)
	}
}
