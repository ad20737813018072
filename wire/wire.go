// Package wire implements the on-the-wire layout of the UWB ranging
// protocol: the common header shared by every message and the seven
// message payloads that follow it. Encoding and decoding is explicit
// and little-endian throughout; nothing relies on struct layout.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size in bytes of the common header.
const HeaderSize = 8

// CRCSize is the size in bytes of the trailing frame-check-sequence
// slot. It is written by the transceiver hardware on transmit and
// consumed by it on receive; software never reads or writes it.
const CRCSize = 2

// MsgType identifies the payload layout that follows the header.
type MsgType uint8

const (
	PingReq      MsgType = 0x01
	PingResp     MsgType = 0x02
	RangeTrigger MsgType = 0x11
	RangePoll    MsgType = 0x12
	RangeResp    MsgType = 0x13
	RangeFinal   MsgType = 0x14
	RangeReport  MsgType = 0x15
)

func (t MsgType) String() string {
	switch t {
	case PingReq:
		return "PING_REQ"
	case PingResp:
		return "PING_RESP"
	case RangeTrigger:
		return "RANGE_TRIGGER"
	case RangePoll:
		return "RANGE_POLL"
	case RangeResp:
		return "RANGE_RESP"
	case RangeFinal:
		return "RANGE_FINAL"
	case RangeReport:
		return "RANGE_REPORT"
	default:
		return fmt.Sprintf("MsgType(0x%02x)", uint8(t))
	}
}

// Broadcast is the destination address meaning "every node in the
// group".
const Broadcast uint16 = 0xFFFF

// Header is the 8-byte common header prefixing every frame.
type Header struct {
	GroupID uint16
	SrcID   uint16
	DestID  uint16
	SeqNum  uint8
	MsgType MsgType
}

// payloadLen maps a message type to the size in bytes of its payload,
// not counting the header or the trailing CRC slot.
var payloadLen = map[MsgType]int{
	PingReq:      0,
	PingResp:     3, // system_state:u8, voltage_mv:u16
	RangeTrigger: 2, // target_node_id:u16
	RangePoll:    0,
	RangeResp:    0,
	RangeFinal:   12, // poll_tx_ts,resp_rx_ts,final_tx_ts: u32 each
	RangeReport:  8,  // node_a_id,node_b_id:u16, distance_cm:u16, rssi_centi_dbm:i16
}

// FrameLength returns the total on-air length of a frame of the given
// message type: header + payload + the 2-byte hardware CRC slot. The
// second return value is false for an unknown message type.
func FrameLength(t MsgType) (int, bool) {
	n, ok := payloadLen[t]
	if !ok {
		return 0, false
	}
	return HeaderSize + n + CRCSize, true
}

// ErrBadLength is returned by Decode when the supplied length doesn't
// match the table entry for the frame's message type.
var ErrBadLength = errors.New("wire: bad length for message type")

// ErrUnknownType is returned when the message type discriminator
// doesn't match any known message.
var ErrUnknownType = errors.New("wire: unknown message type")

// Frame is a flattened union of every message's fields. Only the
// fields relevant to Header.MsgType are meaningful; the rest are
// zero.
type Frame struct {
	Header

	// PING_RESP
	SystemState uint8
	VoltageMV   uint16

	// RANGE_TRIGGER
	TargetNodeID uint16

	// RANGE_FINAL
	PollTxTS  uint32
	RespRxTS  uint32
	FinalTxTS uint32

	// RANGE_REPORT
	NodeAID      uint16
	NodeBID      uint16
	DistanceCM   uint16
	RSSICentiDBM int16
}

// EncodeHeader writes h into the first HeaderSize bytes of buf, which
// must be at least HeaderSize bytes long.
func EncodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.GroupID)
	binary.LittleEndian.PutUint16(buf[2:4], h.SrcID)
	binary.LittleEndian.PutUint16(buf[4:6], h.DestID)
	buf[6] = h.SeqNum
	buf[7] = byte(h.MsgType)
}

// DecodeHeader reads the common header out of buf without validating
// length or payload. It is cheap enough to call before a full
// Validate+Decode so the frame validator can reject frames without
// paying for a full decode.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrBadLength
	}
	return Header{
		GroupID: binary.LittleEndian.Uint16(buf[0:2]),
		SrcID:   binary.LittleEndian.Uint16(buf[2:4]),
		DestID:  binary.LittleEndian.Uint16(buf[4:6]),
		SeqNum:  buf[6],
		MsgType: MsgType(buf[7]),
	}, nil
}

// Encode serialises f into a freshly allocated buffer of exactly
// HeaderSize+payload bytes (the CRC slot is not included: it belongs
// to the transceiver's TX FIFO accounting, not to the software
// buffer — see FrameLength for the on-air length used to program the
// radio).
func Encode(f Frame) ([]byte, error) {
	n, ok := payloadLen[f.MsgType]
	if !ok {
		return nil, ErrUnknownType
	}
	buf := make([]byte, HeaderSize+n)
	EncodeHeader(buf, f.Header)
	p := buf[HeaderSize:]
	switch f.MsgType {
	case PingReq, RangePoll, RangeResp:
	case PingResp:
		p[0] = f.SystemState
		binary.LittleEndian.PutUint16(p[1:3], f.VoltageMV)
	case RangeTrigger:
		binary.LittleEndian.PutUint16(p[0:2], f.TargetNodeID)
	case RangeFinal:
		binary.LittleEndian.PutUint32(p[0:4], f.PollTxTS)
		binary.LittleEndian.PutUint32(p[4:8], f.RespRxTS)
		binary.LittleEndian.PutUint32(p[8:12], f.FinalTxTS)
	case RangeReport:
		binary.LittleEndian.PutUint16(p[0:2], f.NodeAID)
		binary.LittleEndian.PutUint16(p[2:4], f.NodeBID)
		binary.LittleEndian.PutUint16(p[4:6], f.DistanceCM)
		binary.LittleEndian.PutUint16(p[6:8], uint16(f.RSSICentiDBM))
	default:
		return nil, ErrUnknownType
	}
	return buf, nil
}

// Decode parses a frame out of buf. totalLen is the on-air byte count
// as reported by the radio (header + payload + the 2-byte CRC slot);
// it may be larger than len(buf) when the caller has already trimmed
// the CRC bytes off the buffer it read from the FIFO, so Decode
// accepts both and only requires that buf itself hold at least the
// header+payload prefix for the decoded type.
func Decode(buf []byte, totalLen int) (Frame, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	want, ok := FrameLength(h.MsgType)
	if !ok {
		return Frame{}, ErrUnknownType
	}
	if totalLen != want {
		return Frame{}, ErrBadLength
	}
	n := payloadLen[h.MsgType]
	if len(buf) < HeaderSize+n {
		return Frame{}, ErrBadLength
	}
	p := buf[HeaderSize : HeaderSize+n]
	f := Frame{Header: h}
	switch h.MsgType {
	case PingReq, RangePoll, RangeResp:
	case PingResp:
		f.SystemState = p[0]
		f.VoltageMV = binary.LittleEndian.Uint16(p[1:3])
	case RangeTrigger:
		f.TargetNodeID = binary.LittleEndian.Uint16(p[0:2])
	case RangeFinal:
		f.PollTxTS = binary.LittleEndian.Uint32(p[0:4])
		f.RespRxTS = binary.LittleEndian.Uint32(p[4:8])
		f.FinalTxTS = binary.LittleEndian.Uint32(p[8:12])
	case RangeReport:
		f.NodeAID = binary.LittleEndian.Uint16(p[0:2])
		f.NodeBID = binary.LittleEndian.Uint16(p[2:4])
		f.DistanceCM = binary.LittleEndian.Uint16(p[4:6])
		f.RSSICentiDBM = int16(binary.LittleEndian.Uint16(p[6:8]))
	default:
		return Frame{}, ErrUnknownType
	}
	return f, nil
}

// MaxFrameSize is the largest buffer Encode can ever produce, useful
// for sizing a reusable transmit scratch buffer.
const MaxFrameSize = HeaderSize + 12
