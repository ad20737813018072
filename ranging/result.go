package ranging

// EventKind enumerates the protocol-level events an Observer can
// receive. None of them carry data beyond the kind itself; the
// associated result, if any, is already in the relevant result slot
// by the time the observer is invoked.
type EventKind int

const (
	PingRespTimeout EventKind = iota
	RangeRespTimeout
	RangeFinalTimeout
	// RangeReportTimeout is reserved: WaitRangeReport is never
	// entered by this engine, so this event is currently unreachable.
	RangeReportTimeout
	UnknownFrameTimeout
	UnknownFrameError
	InvalidFrameReceived
)

func (e EventKind) String() string {
	switch e {
	case PingRespTimeout:
		return "PingRespTimeout"
	case RangeRespTimeout:
		return "RangeRespTimeout"
	case RangeFinalTimeout:
		return "RangeFinalTimeout"
	case RangeReportTimeout:
		return "RangeReportTimeout"
	case UnknownFrameTimeout:
		return "UnknownFrameTimeout"
	case UnknownFrameError:
		return "UnknownFrameError"
	case InvalidFrameReceived:
		return "InvalidFrameReceived"
	default:
		return "UnknownEvent"
	}
}

// Observer receives protocol-level events. It must not block or call
// back into the engine; the engine invokes it while holding its own
// lock.
type Observer func(EventKind)

// freshWindowMS is the age, in milliseconds, past which a result slot
// is considered stale by Fresh. It mirrors the UI contract's
// now_ms-result_ts < 500 freshness check.
const freshWindowMS = 500

// PingResult is the outcome of the most recent send_ping_req.
type PingResult struct {
	Received     bool
	TimestampMS  uint32
	RemoteNodeID uint16
	SystemState  uint8
	VoltageMV    uint16
}

// Fresh reports whether the result was published within the last
// 500ms of nowMS.
func (r PingResult) Fresh(nowMS uint32) bool {
	return r.Received && nowMS-r.TimestampMS < freshWindowMS
}

// RangeFinalResult is the outcome of a DS-TWR exchange this node
// completed as the responder (node B).
type RangeFinalResult struct {
	Received    bool
	TimestampMS uint32
	NodeAID     uint16
	NodeBID     uint16
	DistanceM   float64
	RSSIDBm     float64
}

func (r RangeFinalResult) Fresh(nowMS uint32) bool {
	return r.Received && nowMS-r.TimestampMS < freshWindowMS
}

// RangeReportResult is the outcome of overhearing a broadcast
// RANGE_REPORT, decoded verbatim from the wire.
type RangeReportResult struct {
	Received    bool
	TimestampMS uint32
	NodeAID     uint16
	NodeBID     uint16
	DistanceM   float64
	RSSIDBm     float64
}

func (r RangeReportResult) Fresh(nowMS uint32) bool {
	return r.Received && nowMS-r.TimestampMS < freshWindowMS
}
