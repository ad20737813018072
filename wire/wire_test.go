package wire

import "testing"

func TestRoundTrip(t *testing.T) {
	hdr := Header{GroupID: 0x1234, SrcID: 0xFF03, DestID: 0x0003, SeqNum: 0x42}
	cases := []Frame{
		{Header: withType(hdr, PingReq)},
		{Header: withType(hdr, PingResp), SystemState: 0xAB, VoltageMV: 3720},
		{Header: withType(hdr, RangeTrigger), TargetNodeID: 0x0003},
		{Header: withType(hdr, RangePoll)},
		{Header: withType(hdr, RangeResp)},
		{
			Header:    withType(hdr, RangeFinal),
			PollTxTS:  0xFFFFFFFE,
			RespRxTS:  0x00000001,
			FinalTxTS: 0x80000000,
		},
		{
			Header:       withType(hdr, RangeReport),
			NodeAID:      0xFF03,
			NodeBID:      0x0003,
			DistanceCM:   234,
			RSSICentiDBM: -9764,
		},
	}
	for _, want := range cases {
		t.Run(want.MsgType.String(), func(t *testing.T) {
			buf, err := Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			total, ok := FrameLength(want.MsgType)
			if !ok {
				t.Fatalf("FrameLength: unknown type %v", want.MsgType)
			}
			if len(buf)+CRCSize != total {
				t.Fatalf("len(buf)=%d, FrameLength=%d", len(buf), total)
			}
			got, err := Decode(buf, total)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != want {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
			}
		})
	}
}

func withType(h Header, t MsgType) Header {
	h.MsgType = t
	return h
}

func TestDecodeBadLength(t *testing.T) {
	hdr := Header{GroupID: 1, SrcID: 2, DestID: 3, MsgType: PingResp}
	buf, err := Encode(Frame{Header: hdr, SystemState: 1, VoltageMV: 2})
	if err != nil {
		t.Fatal(err)
	}
	total, _ := FrameLength(PingResp)
	if _, err := Decode(buf, total+1); err != ErrBadLength {
		t.Fatalf("got %v, want ErrBadLength (one byte long)", err)
	}
	if _, err := Decode(buf, total-1); err != ErrBadLength {
		t.Fatalf("got %v, want ErrBadLength (one byte short)", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	buf := make([]byte, HeaderSize)
	EncodeHeader(buf, Header{MsgType: 0x7F})
	if _, err := Decode(buf, HeaderSize+CRCSize); err != ErrUnknownType {
		t.Fatalf("got %v, want ErrUnknownType", err)
	}
}

func TestFrameLengthTable(t *testing.T) {
	want := map[MsgType]int{
		PingReq:      10,
		PingResp:     13,
		RangeTrigger: 12,
		RangePoll:    10,
		RangeResp:    10,
		RangeFinal:   22,
		RangeReport:  18,
	}
	for typ, n := range want {
		got, ok := FrameLength(typ)
		if !ok || got != n {
			t.Errorf("FrameLength(%v) = %d, %v; want %d, true", typ, got, ok, n)
		}
	}
}
