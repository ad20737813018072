// Package console implements the line-oriented operator command port:
// ping and trigger commands in, newline-delimited JSON result events
// out, over any io.Reader/io.Writer pair. cmd/uwbnode wires it to the
// board's serial port, which cmd/rangetool relays to a host terminal;
// tests wire it to in-memory pipes.
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dwrange.dev/ranging"
)

// Clock supplies the millisecond tick used to detect freshly published
// results. It is the same contract ranging.Clock uses.
type Clock interface {
	NowMS() uint32
}

// Engine is the subset of *ranging.Engine the console drives. Only
// the command and result-polling surface is needed, not the driver
// callbacks.
type Engine interface {
	SendPingReq(dest uint16) error
	SendRangeTrigger(initiatorID, responderID uint16) error
	PingResult() ranging.PingResult
	RangeFinalResult() ranging.RangeFinalResult
	RangeReportResult() ranging.RangeReportResult
}

// Console reads commands from an input stream and writes result
// events to an output stream as they're published, independent of
// which command (if any) caused them: a node that never issues a
// trigger itself still reports range_report broadcasts it overhears.
type Console struct {
	engine Engine
	clock  Clock
	out    io.Writer

	pollInterval time.Duration

	lastPing   uint32
	lastFinal  uint32
	lastReport uint32
	seenPing   bool
	seenFinal  bool
	seenReport bool
}

// New returns a Console driving engine, polling for fresh results at
// the default interval.
func New(engine Engine, clock Clock, out io.Writer) *Console {
	return &Console{
		engine:       engine,
		clock:        clock,
		out:          out,
		pollInterval: 5 * time.Millisecond,
	}
}

// SetPollInterval overrides the default result-polling interval; tests
// use a short one to keep runs fast.
func (c *Console) SetPollInterval(d time.Duration) {
	c.pollInterval = d
}

// Run reads newline-terminated commands from in until it reaches EOF
// or stop is closed, dispatching each to the engine and emitting any
// results it produces via poll. It also polls for
// results published by commands from other operators or overheard
// broadcasts, so it should be run continuously for the lifetime of
// the node's console session.
func (c *Console) Run(in io.Reader, stop <-chan struct{}) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(in)
		for s.Scan() {
			lines <- s.Text()
		}
	}()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			c.dispatch(line)
			c.poll()
		case <-ticker.C:
			c.poll()
		}
	}
}

// dispatch parses and executes a single command line. Unrecognised
// commands and malformed arguments are ignored, matching the
// protocol's fail-silently-advisory design: a typo at the console is
// not a protocol event.
func (c *Console) dispatch(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "ping":
		if len(fields) != 2 {
			return
		}
		id, ok := parseNodeID(fields[1])
		if !ok {
			return
		}
		c.engine.SendPingReq(id)
	case "trigger":
		if len(fields) != 3 {
			return
		}
		initiator, ok1 := parseNodeID(fields[1])
		responder, ok2 := parseNodeID(fields[2])
		if !ok1 || !ok2 {
			return
		}
		c.engine.SendRangeTrigger(initiator, responder)
	}
}

// parseNodeID parses a node id with base auto-detection: a "0x"
// prefix selects hex, a bare leading zero selects octal, otherwise
// decimal, per strconv.ParseInt base 0.
func parseNodeID(s string) (uint16, bool) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil || v < 0 || v > 0xFFFF {
		return 0, false
	}
	return uint16(v), true
}

// poll checks all three result slots and emits a JSON event line for
// any that carry a newer timestamp than the last one reported.
func (c *Console) poll() {
	if p := c.engine.PingResult(); p.Received && (!c.seenPing || p.TimestampMS != c.lastPing) {
		c.seenPing = true
		c.lastPing = p.TimestampMS
		c.emit(pingRespEvent{
			Event:       "ping_resp",
			NodeID:      p.RemoteNodeID,
			SystemState: p.SystemState,
			VoltageMV:   p.VoltageMV,
		})
	}
	if f := c.engine.RangeFinalResult(); f.Received && (!c.seenFinal || f.TimestampMS != c.lastFinal) {
		c.seenFinal = true
		c.lastFinal = f.TimestampMS
		c.emit(rangeEvent{
			Event:     "range_final",
			NodeAID:   f.NodeAID,
			NodeBID:   f.NodeBID,
			DistanceM: f.DistanceM,
			RSSIDBm:   f.RSSIDBm,
		})
	}
	if r := c.engine.RangeReportResult(); r.Received && (!c.seenReport || r.TimestampMS != c.lastReport) {
		c.seenReport = true
		c.lastReport = r.TimestampMS
		c.emit(rangeEvent{
			Event:     "range_report",
			NodeAID:   r.NodeAID,
			NodeBID:   r.NodeBID,
			DistanceM: r.DistanceM,
			RSSIDBm:   r.RSSIDBm,
		})
	}
}

type pingRespEvent struct {
	Event       string `json:"event"`
	NodeID      uint16 `json:"node_id"`
	SystemState uint8  `json:"system_state"`
	VoltageMV   uint16 `json:"voltage_mv"`
}

type rangeEvent struct {
	Event     string  `json:"event"`
	NodeAID   uint16  `json:"node_a_id"`
	NodeBID   uint16  `json:"node_b_id"`
	DistanceM float64 `json:"distance_m"`
	RSSIDBm   float64 `json:"rssi_dbm"`
}

func (c *Console) emit(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		// Unreachable: every event type above marshals cleanly.
		fmt.Fprintf(c.out, "{\"event\":\"encode_error\",\"error\":%q}\n", err)
		return
	}
	c.out.Write(data)
	c.out.Write([]byte{'\n'})
}
