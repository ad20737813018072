package ranging

// TxFlags selects how a transmit is armed. Delayed means the radio
// waits for the time programmed by SetDelayedTXTime rather than
// transmitting immediately; ResponseExpected means the radio
// auto-enters receive as soon as the transmit completes, using
// whatever RX timeout was last programmed.
type TxFlags struct {
	Delayed          bool
	ResponseExpected bool
}

// Diagnostics is the pair of channel-impulse-response registers the
// signal-strength estimate is derived from.
type Diagnostics struct {
	CIRPower         uint32
	PreambleAccCount uint32
}

// Driver is the capability the protocol engine needs from a UWB
// transceiver. It says nothing about register layout or bus
// transport; driver/dw1000 implements it against real hardware, and
// SimDriver implements it in memory for tests.
type Driver interface {
	// WriteTX loads buf into the transmit FIFO.
	WriteTX(buf []byte) error
	// SetTXFrameControl programs the total on-air frame length
	// (including the CRC trailer) and whether ranging mode is
	// enabled for this frame.
	SetTXFrameControl(totalLen int, rangingMode bool) error
	// StartTX arms the transmit with the given flags. On success the
	// frame in the FIFO goes on air (immediately, or at the
	// previously programmed delayed time).
	StartTX(flags TxFlags) error
	// SetDelayedTXTime programs the time word a subsequent delayed
	// StartTX will fire at.
	SetDelayedTXTime(word uint32)
	// SetRXAfterTXDelay programs the delay, in UWB microseconds,
	// before receive starts after a ResponseExpected transmit
	// completes. 0 means immediately.
	SetRXAfterTXDelay(uus uint32)
	// SetRXTimeout programs the receive timeout in UWB microseconds;
	// 0 disables the timeout (continuous receive).
	SetRXTimeout(uus uint32)
	// RXEnable turns the receiver on outside of a TX/RX sequence,
	// immediately if immediate is true.
	RXEnable(immediate bool) error
	// ForceTRXOff aborts any in-progress transmit or receive.
	ForceTRXOff()
	// RXReset clears receiver state left over from an aborted or
	// errored reception.
	RXReset()
	// ReadTXTimestamp materialises the 40-bit timestamp of the most
	// recent transmit.
	ReadTXTimestamp() uint64
	// ReadRXTimestamp materialises the 40-bit timestamp of the most
	// recent receive.
	ReadRXTimestamp() uint64
	// ReadDiagnostics reads the channel-impulse-response registers
	// left over from the most recent receive.
	ReadDiagnostics() Diagnostics
}

// Callbacks is the protocol engine's interrupt-service dispatch
// target. A driver's ISR entry point decodes the interrupt cause and
// invokes exactly one of these per interrupt.
type Callbacks interface {
	// OnRXOK is called with the received header+payload bytes (the
	// hardware CRC trailer is not included) and the on-air length the
	// radio reported, including those CRC bytes.
	OnRXOK(buf []byte, totalLen int)
	OnRXTimeout()
	OnRXError(err error)
	OnTXDone()
}
