// Package ranging implements the protocol state machine: the ping and
// DS-TWR message exchanges, delayed-transmit scheduling, and
// publication of ranging results. It is single-instance per node and
// advances only from the four driver callbacks (OnRXOK, OnRXTimeout,
// OnRXError, OnTXDone); user-level sends may be called from any
// goroutine but only succeed while the engine is idle.
package ranging

import (
	"errors"
	"sync"

	"dwrange.dev/battery"
	"dwrange.dev/frame"
	"dwrange.dev/wire"
)

// State re-exports package frame's state enum: the frame validator
// needs it for the acceptance table and must not depend on this
// package, so frame owns the definition.
type State = frame.State

const (
	Idle            = frame.Idle
	WaitPingResp    = frame.WaitPingResp
	WaitRangeResp   = frame.WaitRangeResp
	WaitRangeFinal  = frame.WaitRangeFinal
	WaitRangeReport = frame.WaitRangeReport
)

// Clock supplies the millisecond tick the engine stamps onto result
// slots and PING_RESP's system_state field.
type Clock interface {
	NowMS() uint32
}

// Config holds the per-node identity and the protocol's tunable
// timeouts and delays, all expressed in UWB microseconds (uus).
type Config struct {
	GroupID uint16
	NodeID  uint16

	// PingRXTimeoutUUS bounds how long the initiator waits for
	// PING_RESP.
	PingRXTimeoutUUS uint32
	// RangeRespRXTimeoutUUS bounds how long the initiator (A) waits
	// for RANGE_RESP after sending RANGE_POLL.
	RangeRespRXTimeoutUUS uint32
	// RangeFinalRXTimeoutUUS bounds how long the responder (B) waits
	// for RANGE_FINAL after its delayed RANGE_RESP transmit.
	RangeFinalRXTimeoutUUS uint32
	// RangeRespTXDelayUUS is how long after receiving RANGE_POLL the
	// responder schedules its RANGE_RESP transmit.
	RangeRespTXDelayUUS uint32
	// RangeFinalTXDelayUUS is how long after receiving RANGE_RESP the
	// initiator schedules its RANGE_FINAL transmit. Not specified
	// numerically by name elsewhere; this engine uses the same
	// default as RangeRespTXDelayUUS (see DESIGN.md).
	RangeFinalTXDelayUUS uint32
}

// DefaultConfig returns the timeouts and delays named in the protocol
// description, for the given identity.
func DefaultConfig(groupID, nodeID uint16) Config {
	return Config{
		GroupID:                groupID,
		NodeID:                 nodeID,
		PingRXTimeoutUUS:       30_000,
		RangeRespRXTimeoutUUS:  30_000,
		RangeFinalRXTimeoutUUS: 30_000,
		RangeRespTXDelayUUS:    5_000,
		RangeFinalTXDelayUUS:   5_000,
	}
}

// ErrBusy is returned by a Send* method when the engine is not idle.
var ErrBusy = errors.New("ranging: engine busy")

// Engine is the single protocol-state-machine instance for one node.
// Every exported method is safe to call from any goroutine; the
// engine's own state, result slots, and sequence counter are guarded
// by one mutex rather than the torn-read tolerance the original
// single-core firmware relied on (see DESIGN.md).
type Engine struct {
	driver  Driver
	clock   Clock
	battery battery.Sampler

	mu       sync.Mutex
	cfg      Config
	state    State
	seq      uint8
	observer Observer

	// savedPollRxTS is the RANGE_POLL receive timestamp, read once in
	// handleRangePoll and used by handleRangeFinal. It is captured
	// eagerly because the RX timestamp register is overwritten by the
	// next receive, which is RANGE_FINAL itself.
	savedPollRxTS uint64

	ping        PingResult
	rangeFinal  RangeFinalResult
	rangeReport RangeReportResult
}

// New constructs an idle engine against the given driver, clock, and
// battery sampler.
func New(d Driver, clock Clock, bat battery.Sampler, cfg Config) *Engine {
	return &Engine{
		driver:  d,
		clock:   clock,
		battery: bat,
		cfg:     cfg,
		state:   Idle,
	}
}

// SetObserver installs fn as the engine's event observer, replacing
// any previous one. fn must not call back into the engine.
func (e *Engine) SetObserver(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

// SetIdentity updates the group and node id frames are validated and
// addressed against. Safe to call from UI context at any time;
// concurrent exchanges use whichever identity was current when each
// frame was built or validated.
func (e *Engine) SetIdentity(groupID, nodeID uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.GroupID = groupID
	e.cfg.NodeID = nodeID
}

// State returns the engine's current protocol state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PingResult returns the most recently published ping result.
func (e *Engine) PingResult() PingResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ping
}

// RangeFinalResult returns the most recently published range-final
// result.
func (e *Engine) RangeFinalResult() RangeFinalResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rangeFinal
}

// RangeReportResult returns the most recently published range-report
// result.
func (e *Engine) RangeReportResult() RangeReportResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rangeReport
}

func (e *Engine) notify(kind EventKind) {
	if e.observer != nil {
		e.observer(kind)
	}
}

func (e *Engine) nextSeq() uint8 {
	s := e.seq
	e.seq++
	return s
}

func (e *Engine) header(dest uint16, mt wire.MsgType) wire.Header {
	return wire.Header{
		GroupID: e.cfg.GroupID,
		SrcID:   e.cfg.NodeID,
		DestID:  dest,
		SeqNum:  e.nextSeq(),
		MsgType: mt,
	}
}

// rearmContinuousRX forces the receiver off and back on with no
// timeout, the state every protocol-ending transition must leave the
// radio in.
func (e *Engine) rearmContinuousRX() {
	e.driver.ForceTRXOff()
	e.driver.RXReset()
	e.driver.SetRXTimeout(0)
	e.driver.RXEnable(true)
}

// transmit encodes and arms f for transmission. delayedWord is only
// used when flags.Delayed is set. rxTimeoutUUS is programmed before
// StartTX so that, when flags.ResponseExpected is set, the
// auto-armed receive inherits it.
func (e *Engine) transmit(f wire.Frame, flags TxFlags, delayedWord uint32, rxTimeoutUUS uint32) error {
	buf, err := wire.Encode(f)
	if err != nil {
		return err
	}
	if err := e.driver.WriteTX(buf); err != nil {
		return err
	}
	total, ok := wire.FrameLength(f.MsgType)
	if !ok {
		return wire.ErrUnknownType
	}
	rangingMode := f.MsgType == wire.RangePoll || f.MsgType == wire.RangeResp || f.MsgType == wire.RangeFinal
	if err := e.driver.SetTXFrameControl(total, rangingMode); err != nil {
		return err
	}
	if flags.Delayed {
		e.driver.SetDelayedTXTime(delayedWord)
	}
	e.driver.SetRXAfterTXDelay(0)
	e.driver.SetRXTimeout(rxTimeoutUUS)
	if err := e.driver.StartTX(flags); err != nil {
		// Tie-break: a transmit that fails to arm returns the
		// machine to IDLE with the receiver force-reset to
		// open-ended receive. No retry is attempted at this layer.
		e.state = Idle
		e.rearmContinuousRX()
		return err
	}
	return nil
}
