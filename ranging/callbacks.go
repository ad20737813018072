package ranging

import (
	"math"

	"dwrange.dev/dwtime"
	"dwrange.dev/frame"
	"dwrange.dev/wire"
)

// OnRXOK is the driver callback for a successfully received frame.
// buf is the header+payload bytes (the hardware CRC trailer is never
// included); totalLen is the on-air length the radio reported,
// including those two CRC bytes.
func (e *Engine) OnRXOK(buf []byte, totalLen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := wire.DecodeHeader(buf)
	if err != nil {
		e.notify(InvalidFrameReceived)
		e.rearmOnReject()
		return
	}
	cfg := frame.Config{GroupID: e.cfg.GroupID, NodeID: e.cfg.NodeID}
	if err := frame.Validate(cfg, h, totalLen, e.state); err != nil {
		e.notify(InvalidFrameReceived)
		e.rearmOnReject()
		return
	}
	f, err := wire.Decode(buf, totalLen)
	if err != nil {
		// Unreachable once the validator has passed: it already
		// checked the exact length for this message type.
		e.notify(InvalidFrameReceived)
		e.rearmOnReject()
		return
	}

	switch f.MsgType {
	case wire.PingReq:
		e.handlePingReq(f)
	case wire.PingResp:
		e.handlePingResp(f)
	case wire.RangeTrigger:
		e.handleRangeTrigger(f)
	case wire.RangePoll:
		e.handleRangePoll(f)
	case wire.RangeResp:
		e.handleRangeResp(f)
	case wire.RangeFinal:
		e.handleRangeFinal(f)
	case wire.RangeReport:
		e.handleRangeReport(f)
	}
}

// rearmOnReject forces the radio back to open-ended receive after a
// validator rejection, without touching the current state: a frame
// rejected because it didn't match the state's acceptance table must
// leave that state's own wait condition alone; the next matching
// frame or the original timeout will still apply, except that the
// timeout itself has now been cleared by this re-arm (see DESIGN.md).
func (e *Engine) rearmOnReject() {
	e.driver.ForceTRXOff()
	e.driver.RXReset()
	e.driver.SetRXTimeout(0)
	e.driver.RXEnable(true)
}

// OnRXTimeout is the driver callback for an RX timeout expiring
// without a matching frame.
func (e *Engine) OnRXTimeout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case WaitPingResp:
		e.notify(PingRespTimeout)
	case WaitRangeResp:
		e.notify(RangeRespTimeout)
	case WaitRangeFinal:
		e.notify(RangeFinalTimeout)
	case WaitRangeReport:
		e.notify(RangeReportTimeout)
	default:
		e.notify(UnknownFrameTimeout)
	}
	e.state = Idle
	e.rearmContinuousRX()
}

// OnRXError is the driver callback for a PHY/SFD/checksum failure.
// Per the error-handling design, a radio error in a waiting state is
// treated identically to that state's timeout.
func (e *Engine) OnRXError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case WaitPingResp:
		e.notify(PingRespTimeout)
	case WaitRangeResp:
		e.notify(RangeRespTimeout)
	case WaitRangeFinal:
		e.notify(RangeFinalTimeout)
	case WaitRangeReport:
		e.notify(RangeReportTimeout)
	default:
		e.notify(UnknownFrameError)
	}
	e.state = Idle
	e.rearmContinuousRX()
}

// OnTXDone is the driver callback for a completed transmit. It is a
// required dispatch target but a no-op for every message type in this
// protocol: the hardware's own response-expected bit already
// sequences RX-after-TX, and every timestamp the engine needs is read
// lazily, at the point it's used, rather than captured here.
func (e *Engine) OnTXDone() {}

func (e *Engine) handlePingReq(f wire.Frame) {
	sysState := e.clock.NowMS()
	voltage, err := e.battery.VoltageMV()
	if err != nil {
		voltage = 0
	}
	resp := wire.Frame{
		Header:      e.header(f.SrcID, wire.PingResp),
		SystemState: uint8(sysState),
		VoltageMV:   voltage,
	}
	if err := e.transmit(resp, TxFlags{ResponseExpected: true}, 0, 0); err != nil {
		return
	}
}

func (e *Engine) handlePingResp(f wire.Frame) {
	e.ping = PingResult{
		Received:     true,
		TimestampMS:  e.clock.NowMS(),
		RemoteNodeID: f.SrcID,
		SystemState:  f.SystemState,
		VoltageMV:    f.VoltageMV,
	}
	e.state = Idle
	e.rearmContinuousRX()
}

func (e *Engine) handleRangeTrigger(f wire.Frame) {
	if err := e.beginRangePoll(f.TargetNodeID); err != nil {
		return
	}
}

func (e *Engine) handleRangePoll(f wire.Frame) {
	e.savedPollRxTS = e.driver.ReadRXTimestamp()
	scheduled := dwtime.ScheduleTXAt(e.savedPollRxTS, e.cfg.RangeRespTXDelayUUS)
	resp := wire.Frame{Header: e.header(f.SrcID, wire.RangeResp)}
	if err := e.transmit(resp, TxFlags{Delayed: true, ResponseExpected: true}, scheduled, e.cfg.RangeFinalRXTimeoutUUS); err != nil {
		return
	}
	e.state = WaitRangeFinal
}

func (e *Engine) handleRangeResp(f wire.Frame) {
	pollTxTS := e.driver.ReadTXTimestamp()
	respRxTS := e.driver.ReadRXTimestamp()
	scheduled := dwtime.ScheduleTXAt(respRxTS, e.cfg.RangeFinalTXDelayUUS)
	predictedFinalTxTS := dwtime.PredictedTXTimestamp(scheduled, dwtime.TxAntennaDelay)

	final := wire.Frame{
		Header:    e.header(f.SrcID, wire.RangeFinal),
		PollTxTS:  uint32(pollTxTS),
		RespRxTS:  uint32(respRxTS),
		FinalTxTS: uint32(predictedFinalTxTS),
	}
	if err := e.transmit(final, TxFlags{Delayed: true}, scheduled, 0); err != nil {
		return
	}
	e.state = Idle
	e.rearmContinuousRX()
}

func (e *Engine) handleRangeFinal(f wire.Frame) {
	pollRX := e.savedPollRxTS
	respTX := e.driver.ReadTXTimestamp()
	finalRX := e.driver.ReadRXTimestamp()

	distance := dwtime.DistanceFromDSTWR(
		uint64(f.PollTxTS), uint64(f.RespRxTS), uint64(f.FinalTxTS),
		pollRX, respTX, finalRX,
	)
	diag := e.driver.ReadDiagnostics()
	rssi := dwtime.RSSIDBm(diag.CIRPower, diag.PreambleAccCount)

	now := e.clock.NowMS()
	e.rangeFinal = RangeFinalResult{
		Received:    true,
		TimestampMS: now,
		NodeAID:     f.SrcID,
		NodeBID:     e.cfg.NodeID,
		DistanceM:   distance,
		RSSIDBm:     rssi,
	}

	report := wire.Frame{
		Header:       e.header(wire.Broadcast, wire.RangeReport),
		NodeAID:      f.SrcID,
		NodeBID:      e.cfg.NodeID,
		DistanceCM:   metresToCM(distance),
		RSSICentiDBM: dbmToCentiDBm(rssi),
	}
	if err := e.transmit(report, TxFlags{ResponseExpected: true}, 0, 0); err != nil {
		e.state = Idle
		return
	}
	e.state = Idle
}

func (e *Engine) handleRangeReport(f wire.Frame) {
	e.rangeReport = RangeReportResult{
		Received:    true,
		TimestampMS: e.clock.NowMS(),
		NodeAID:     f.NodeAID,
		NodeBID:     f.NodeBID,
		DistanceM:   float64(f.DistanceCM) / 100,
		RSSIDBm:     float64(f.RSSICentiDBM) / 100,
	}
	e.rearmContinuousRX()
}

const maxUint16 = 1<<16 - 1

func metresToCM(m float64) uint16 {
	cm := math.Trunc(m * 100)
	if cm < 0 {
		return 0
	}
	if cm > maxUint16 {
		return maxUint16
	}
	return uint16(cm)
}

func dbmToCentiDBm(dbm float64) int16 {
	c := math.Round(dbm * 100)
	if c < math.MinInt16 {
		return math.MinInt16
	}
	if c > math.MaxInt16 {
		return math.MaxInt16
	}
	return int16(c)
}
