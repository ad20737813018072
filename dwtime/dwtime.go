// Package dwtime implements the 40-bit device-time-unit arithmetic
// used to schedule delayed transmits and to turn a set of exchanged
// timestamps into a distance and a received-signal-strength estimate.
//
// The transceiver's free-running counter wraps at 40 bits; every
// operation here treats it as modular and relies on Go's unsigned
// integer wraparound rather than a bignum type.
package dwtime

import "math"

const (
	// UUSToDTU is the number of device time units in one UWB
	// microsecond, the radio's scheduling unit.
	UUSToDTU = 65536

	// DTUToSeconds converts a device time unit count to seconds:
	// 1 / (499.2 MHz carrier x 128).
	DTUToSeconds = 1.0 / (499.2e6 * 128)

	// SpeedOfLightMPerS is the speed of light in metres per second
	// used to turn a time-of-flight into a distance.
	SpeedOfLightMPerS = 299702547.0

	// dtuMask is the 40-bit wraparound mask of the free-running
	// counter.
	dtuMask = (uint64(1) << 40) - 1
)

// TxAntennaDelay is the transmit-antenna calibration delay, in device
// time units, added to a scheduled transmit time to predict the
// actual on-air timestamp. It is specific to the antenna and cabling
// of a given board and must be calibrated per device; this is a
// reasonable default for a small ceramic chip antenna.
//
// tunable: recalibrate per board revision.
const TxAntennaDelay = 16436

// rssiCorrection is the empirical gain-compensation factor applied
// above -88 dBm at 64 MHz PRF. Cited from Decawave application note
// APS006 rather than derived; tunable per radio revision.
//
// tunable: re-derive if the PRF or chip revision changes.
const rssiCorrection = 1.1667

// ScheduleTXAt produces the delayed-TX programming word the
// transceiver accepts: the upper 32 bits of the 40-bit time baseRxTS
// plus delayUUS microseconds.
func ScheduleTXAt(baseRxTS uint64, delayUUS uint32) uint32 {
	t := (baseRxTS&dtuMask + uint64(delayUUS)*UUSToDTU) & dtuMask
	return uint32(t >> 8)
}

// PredictedTXTimestamp computes the actual on-air transmit timestamp
// that a scheduled transmit (as produced by ScheduleTXAt) will carry,
// accounting for the antenna delay. The low bit of the scheduled word
// is cleared because the transceiver rounds delayed-TX times down to
// an even boundary.
func PredictedTXTimestamp(scheduled uint32, txAntennaDelay uint32) uint64 {
	return (uint64(scheduled&0xFFFFFFFE) << 8) + uint64(txAntennaDelay)
}

// DistanceFromDSTWR implements Decawave double-sided two-way ranging
// from the six timestamps exchanged by a POLL/RESP/FINAL round:
//
//	poll_tx, resp_rx, final_tx — read by the initiator
//	poll_rx, resp_tx, final_rx — read by the responder
//
// Every difference is computed modulo 2^32 (the wire-transmitted
// timestamps are already 32-bit, and the hardware's own round-trip
// registers wrap at 32 bits too), so the result stays correct across
// a 32-bit wraparound between POLL and FINAL. A negative time-of-
// flight, which indicates degenerate geometry or clock noise rather
// than a real measurement, is clamped to a distance of 0.
func DistanceFromDSTWR(pollTX, respRX, finalTX, pollRX, respTX, finalRX uint64) float64 {
	ra := float64(uint32(respRX - pollTX))
	rb := float64(uint32(finalRX - respTX))
	da := float64(uint32(finalTX - respRX))
	db := float64(uint32(respTX - pollRX))

	denom := ra + rb + da + db
	if denom == 0 {
		return 0
	}
	tofDTU := (ra*rb - da*db) / denom
	if tofDTU < 0 {
		return 0
	}
	tofSec := tofDTU * DTUToSeconds
	return tofSec * SpeedOfLightMPerS
}

// RSSIDBm estimates received signal strength in dBm from the channel
// impulse response peak power and the preamble accumulation count, at
// 64 MHz PRF, per the Decawave DW1000 user manual formula. Above
// -88 dBm the result is skewed by accumulator saturation and gets an
// empirical gain correction.
func RSSIDBm(cirPower, preambleAccCount uint32) float64 {
	if preambleAccCount == 0 {
		return math.Inf(-1)
	}
	n := float64(preambleAccCount)
	raw := 10*math.Log10(float64(cirPower)*131072/(n*n)) - 121.74
	if raw > -88 {
		raw += (raw + 88) * rssiCorrection
	}
	return raw
}
