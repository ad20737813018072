// Package frame validates inbound frames against the local identity
// and the protocol state before the ranging engine acts on them. It
// knows nothing about the state machine's transitions, only which
// message types each state is willing to accept, so it stays a leaf
// package that the engine depends on rather than the reverse.
package frame

import "dwrange.dev/wire"

// State is the protocol state machine's current state. It lives here,
// not in package ranging, because the validator needs it for the
// acceptance table and nothing about the table depends on the engine
// itself; package ranging re-exports these constants.
type State uint8

const (
	Idle State = iota
	WaitPingResp
	WaitRangeResp
	WaitRangeFinal
	// WaitRangeReport is reserved for a future controller-observed
	// variant of the exchange; the implemented flow never enters it.
	WaitRangeReport
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case WaitPingResp:
		return "WAIT_PING_RESP"
	case WaitRangeResp:
		return "WAIT_RANGE_RESP"
	case WaitRangeFinal:
		return "WAIT_RANGE_FINAL"
	case WaitRangeReport:
		return "WAIT_RANGE_REPORT"
	default:
		return "UNKNOWN_STATE"
	}
}

// acceptable maps a state to the set of message types it will accept
// from the validator. Anything else is rejected regardless of group,
// destination or length.
var acceptable = map[State]map[wire.MsgType]bool{
	Idle: {
		wire.PingReq:      true,
		wire.RangeTrigger: true,
		wire.RangePoll:    true,
		wire.RangeReport:  true,
	},
	WaitPingResp:    {wire.PingResp: true},
	WaitRangeResp:   {wire.RangeResp: true},
	WaitRangeFinal:  {wire.RangeFinal: true},
	WaitRangeReport: {wire.RangeReport: true},
}

// Config is the local identity the validator checks inbound frames
// against.
type Config struct {
	GroupID uint16
	NodeID  uint16
}

// Validate runs the four-part acceptance test against an inbound
// frame's header: group match, destination match (unicast to us or
// broadcast), length-per-type, and state x message-type acceptance.
// totalLen is the on-air length reported by the radio, including the
// trailing CRC bytes; it is checked against wire.FrameLength without
// requiring the payload to be decoded first.
//
// Rejection is silent to the sending peer. The caller is expected to
// report the rejection to its observer and leave state unchanged, per
// the protocol's validator contract.
func Validate(cfg Config, h wire.Header, totalLen int, s State) error {
	if h.GroupID != cfg.GroupID {
		return ErrWrongGroup
	}
	if h.DestID != cfg.NodeID && h.DestID != wire.Broadcast {
		return ErrWrongDest
	}
	want, ok := wire.FrameLength(h.MsgType)
	if !ok {
		return ErrUnknownType
	}
	if totalLen != want {
		return ErrWrongLength
	}
	if !acceptable[s][h.MsgType] {
		return ErrUnexpectedType
	}
	return nil
}
