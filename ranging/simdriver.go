package ranging

import "sync"

// pendingFrame is one frame in flight between two linked SimDrivers.
type pendingFrame struct {
	buf      []byte
	totalLen int
}

// SimDriver is an in-memory Driver double for tests, modeled on the
// teacher's driver/mjolnir software simulator: two SimDrivers can be
// linked with LinkSimDrivers so that a StartTX on one queues the
// frame for delivery to the other's DeliverNext, letting a test
// single-step a two-node exchange without any real timing.
//
// Every register read SimDriver exposes to the engine (timestamps,
// diagnostics) is whatever the test last set on NextTXTimestamp /
// NextRXTimestamp / NextDiagnostics; SimDriver never generates these
// values itself; it exists to seed exact seeded-scenario inputs, not
// to model real radio timing.
type SimDriver struct {
	mu sync.Mutex

	cb   Callbacks
	peer *SimDriver

	pendingTX      []byte
	pendingTXTotal int
	pendingRanging bool

	inbox []pendingFrame

	NextTXTimestamp uint64
	NextRXTimestamp uint64
	NextDiagnostics Diagnostics

	LastDelayedWord  uint32
	LastRXTimeoutUUS uint32
	StartTXCalls     int
	RXEnableCalls    int
	ForceOffCalls    int

	// txInFlight and txResponseExpected track the most recent StartTX
	// until the next RX event clears it, modeling the hardware's own
	// auto-RX-after-TX sequencing. A ForceTRXOff call while a
	// response-expected transmit is still in flight mirrors the
	// register-level bug of writing TRXOFF to SYS_CTRL right after
	// TXSTRT: on real hardware it aborts the transmit before it goes
	// on air. AbortedInFlightTX counts those calls so a regression is
	// a test failure instead of a silent no-op.
	txInFlight         bool
	txResponseExpected bool
	AbortedInFlightTX  int
}

// NewSimDriver returns an unlinked SimDriver with no peer.
func NewSimDriver() *SimDriver {
	return &SimDriver{}
}

// SetCallbacks installs the engine this driver delivers interrupts
// to. Engines and SimDrivers are constructed separately, so this
// breaks the otherwise-circular New(driver) / driver.SetCallbacks(engine)
// initialization order.
func (d *SimDriver) SetCallbacks(cb Callbacks) {
	d.cb = cb
}

// LinkSimDrivers connects a and b so that each delivers its
// transmits into the other's inbox.
func LinkSimDrivers(a, b *SimDriver) {
	a.peer = b
	b.peer = a
}

func (d *SimDriver) WriteTX(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingTX = append(d.pendingTX[:0], buf...)
	return nil
}

func (d *SimDriver) SetTXFrameControl(totalLen int, rangingMode bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingTXTotal = totalLen
	d.pendingRanging = rangingMode
	return nil
}

// StartTX queues the pending frame for the linked peer, if any. It
// never invokes any callback synchronously; a test (or a production
// event loop, for the real driver) drives delivery and interrupt
// dispatch as a separate step, so that two engines exchanging frames
// never reenter each other's locks.
func (d *SimDriver) StartTX(flags TxFlags) error {
	d.mu.Lock()
	d.StartTXCalls++
	d.txInFlight = true
	d.txResponseExpected = flags.ResponseExpected
	buf := append([]byte(nil), d.pendingTX...)
	total := d.pendingTXTotal
	peer := d.peer
	d.mu.Unlock()

	if peer != nil {
		peer.mu.Lock()
		peer.inbox = append(peer.inbox, pendingFrame{buf: buf, totalLen: total})
		peer.mu.Unlock()
	}
	return nil
}

func (d *SimDriver) SetDelayedTXTime(word uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastDelayedWord = word
}

func (d *SimDriver) SetRXAfterTXDelay(uus uint32) {}

func (d *SimDriver) SetRXTimeout(uus uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastRXTimeoutUUS = uus
}

func (d *SimDriver) RXEnable(immediate bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RXEnableCalls++
	return nil
}

func (d *SimDriver) ForceTRXOff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ForceOffCalls++
	if d.txInFlight && d.txResponseExpected {
		d.AbortedInFlightTX++
	}
	d.txInFlight = false
}

func (d *SimDriver) RXReset() {}

func (d *SimDriver) ReadTXTimestamp() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.NextTXTimestamp
}

func (d *SimDriver) ReadRXTimestamp() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.NextRXTimestamp
}

func (d *SimDriver) ReadDiagnostics() Diagnostics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.NextDiagnostics
}

// FireRXOK delivers buf/totalLen directly to the installed callbacks,
// bypassing any peer link. Used by single-engine unit tests that
// craft a specific inbound frame.
func (d *SimDriver) FireRXOK(buf []byte, totalLen int) {
	d.mu.Lock()
	d.txInFlight = false
	d.mu.Unlock()
	d.cb.OnRXOK(buf, totalLen)
}

func (d *SimDriver) FireRXTimeout() {
	d.mu.Lock()
	d.txInFlight = false
	d.mu.Unlock()
	d.cb.OnRXTimeout()
}

func (d *SimDriver) FireRXError(err error) {
	d.mu.Lock()
	d.txInFlight = false
	d.mu.Unlock()
	d.cb.OnRXError(err)
}

func (d *SimDriver) FireTXDone() {
	d.cb.OnTXDone()
}

// DeliverNext pops the oldest frame queued by a peer's StartTX and
// dispatches it through OnRXOK. It reports false if the inbox was
// empty.
func (d *SimDriver) DeliverNext() bool {
	d.mu.Lock()
	if len(d.inbox) == 0 {
		d.mu.Unlock()
		return false
	}
	f := d.inbox[0]
	d.inbox = d.inbox[1:]
	d.txInFlight = false
	d.mu.Unlock()
	d.cb.OnRXOK(f.buf, f.totalLen)
	return true
}
