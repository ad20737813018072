package ranging

import "dwrange.dev/wire"

// SendPingReq issues a PING_REQ to dest and returns with the engine in
// WaitPingResp; the PING_RESP or the RX timeout arrives later through
// the driver callbacks. It fails immediately with ErrBusy if the
// engine is not idle.
func (e *Engine) SendPingReq(dest uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return ErrBusy
	}
	f := wire.Frame{Header: e.header(dest, wire.PingReq)}
	if err := e.transmit(f, TxFlags{ResponseExpected: true}, 0, e.cfg.PingRXTimeoutUUS); err != nil {
		return err
	}
	e.state = WaitPingResp
	return nil
}

// SendRangeTrigger starts a DS-TWR round between initiatorID and
// responderID. If this node is the initiator, it begins the exchange
// directly by sending RANGE_POLL to responderID; otherwise it sends a
// RANGE_TRIGGER to initiatorID and remains idle, since the controller
// itself takes no further part in the exchange. Fails immediately
// with ErrBusy if the engine is not idle.
func (e *Engine) SendRangeTrigger(initiatorID, responderID uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return ErrBusy
	}
	if initiatorID == e.cfg.NodeID {
		return e.beginRangePoll(responderID)
	}
	f := wire.Frame{
		Header:       e.header(initiatorID, wire.RangeTrigger),
		TargetNodeID: responderID,
	}
	if err := e.transmit(f, TxFlags{ResponseExpected: true}, 0, 0); err != nil {
		return err
	}
	return nil
}

// beginRangePoll sends RANGE_POLL to responderID and transitions to
// WaitRangeResp. Caller must hold e.mu.
func (e *Engine) beginRangePoll(responderID uint16) error {
	f := wire.Frame{Header: e.header(responderID, wire.RangePoll)}
	if err := e.transmit(f, TxFlags{ResponseExpected: true}, 0, e.cfg.RangeRespRXTimeoutUUS); err != nil {
		return err
	}
	e.state = WaitRangeResp
	return nil
}
