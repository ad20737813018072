package dw1000

import (
	"encoding/binary"
	"errors"
	"testing"

	"dwrange.dev/ranging"
)

// fakeTransport is a register file backed by a map, keyed by (id,
// sub), for exercising Device's logic without real SPI hardware.
type fakeTransport struct {
	regs map[uint32][]byte
	err  error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{regs: map[uint32][]byte{}}
}

func key(id byte, sub uint16) uint32 {
	return uint32(id)<<16 | uint32(sub)
}

func (t *fakeTransport) set(id byte, sub uint16, buf []byte) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	t.regs[key(id, sub)] = cp
}

func (t *fakeTransport) readReg(id byte, sub uint16, buf []byte) error {
	if t.err != nil {
		return t.err
	}
	v, ok := t.regs[key(id, sub)]
	if !ok {
		v = make([]byte, len(buf))
	}
	copy(buf, v)
	return nil
}

func (t *fakeTransport) writeReg(id byte, sub uint16, buf []byte) error {
	if t.err != nil {
		return t.err
	}
	if id == regSYS_STATUS {
		// Mimic the real part's write-1-to-clear convention: writing
		// a bit clears it rather than setting it.
		cur := t.regs[key(id, sub)]
		if cur == nil {
			cur = make([]byte, len(buf))
		}
		cleared := make([]byte, len(buf))
		for i := range buf {
			var c byte
			if i < len(cur) {
				c = cur[i]
			}
			cleared[i] = c &^ buf[i]
		}
		t.regs[key(id, sub)] = cleared
		return nil
	}
	t.set(id, sub, buf)
	return nil
}

func newTestDevice() (*Device, *fakeTransport) {
	ft := newFakeTransport()
	idBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(idBuf, devID)
	ft.set(regDEV_ID, 0, idBuf)
	return &Device{t: ft}, ft
}

func TestConfigureRejectsWrongDevID(t *testing.T) {
	ft := newFakeTransport()
	ft.set(regDEV_ID, 0, []byte{0, 0, 0, 0})
	d := &Device{t: ft}
	if err := d.Configure(16436); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Configure = %v, want ErrNotFound", err)
	}
}

func TestConfigureAcceptsDevID(t *testing.T) {
	d, _ := newTestDevice()
	if err := d.Configure(16436); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if d.txAntennaDelay != 16436 {
		t.Fatalf("txAntennaDelay = %d, want 16436", d.txAntennaDelay)
	}
}

func TestReadWriteTimestampsRoundtrip(t *testing.T) {
	d, ft := newTestDevice()
	want := uint64(0x1234567890)
	buf := make([]byte, 5)
	for i := range buf {
		buf[i] = byte(want >> (8 * i))
	}
	ft.set(regRX_TIME, 0, buf)
	if got := d.ReadRXTimestamp(); got != want {
		t.Errorf("ReadRXTimestamp = %#x, want %#x", got, want)
	}
	ft.set(regTX_TIME, 0, buf)
	if got := d.ReadTXTimestamp(); got != want {
		t.Errorf("ReadTXTimestamp = %#x, want %#x", got, want)
	}
}

type callbackSpy struct {
	rxOK      []byte
	rxOKLen   int
	rxTimeout bool
	rxErr     error
	txDone    bool
}

func (c *callbackSpy) OnRXOK(buf []byte, totalLen int) {
	c.rxOK = append([]byte{}, buf...)
	c.rxOKLen = totalLen
}
func (c *callbackSpy) OnRXTimeout()     { c.rxTimeout = true }
func (c *callbackSpy) OnRXError(err error) { c.rxErr = err }
func (c *callbackSpy) OnTXDone()        { c.txDone = true }

func setStatus(ft *fakeTransport, bits uint64) {
	buf := make([]byte, 5)
	for i := range buf {
		buf[i] = byte(bits >> (8 * i))
	}
	ft.set(regSYS_STATUS, 0, buf)
}

func TestServiceInterruptTXDone(t *testing.T) {
	d, ft := newTestDevice()
	cb := &callbackSpy{}
	d.SetCallbacks(cb)
	setStatus(ft, statusTXFRS)

	d.ServiceInterrupt()

	if !cb.txDone {
		t.Fatal("OnTXDone not called")
	}
	if got := ft.regs[key(regSYS_STATUS, 0)]; !allZero(got) {
		t.Errorf("status not cleared: %v", got)
	}
}

func TestServiceInterruptRXOK(t *testing.T) {
	d, ft := newTestDevice()
	cb := &callbackSpy{}
	d.SetCallbacks(cb)
	setStatus(ft, statusRXFCG)

	payload := []byte{1, 2, 3, 4}
	finfo := make([]byte, 4)
	// The reported on-air length includes the 2-byte CRC trailer.
	binary.LittleEndian.PutUint32(finfo, uint32(len(payload)+2))
	ft.set(regRX_FINFO, 0, finfo)
	ft.set(regRX_BUFFER, 0, payload)

	d.ServiceInterrupt()

	if cb.rxOKLen != len(payload)+2 {
		t.Fatalf("rxOKLen = %d, want %d", cb.rxOKLen, len(payload)+2)
	}
	if string(cb.rxOK) != string(payload) {
		t.Fatalf("rxOK = %v, want %v", cb.rxOK, payload)
	}
}

func TestServiceInterruptRXTimeout(t *testing.T) {
	d, ft := newTestDevice()
	cb := &callbackSpy{}
	d.SetCallbacks(cb)
	setStatus(ft, statusRXRFTO)

	d.ServiceInterrupt()

	if !cb.rxTimeout {
		t.Fatal("OnRXTimeout not called")
	}
}

func TestServiceInterruptRXError(t *testing.T) {
	d, ft := newTestDevice()
	cb := &callbackSpy{}
	d.SetCallbacks(cb)
	setStatus(ft, statusRXFCE)

	d.ServiceInterrupt()

	if cb.rxErr == nil {
		t.Fatal("OnRXError not called")
	}
}

func TestStartTXFlagsSetControlBits(t *testing.T) {
	d, ft := newTestDevice()
	if err := d.StartTX(ranging.TxFlags{Delayed: true, ResponseExpected: true}); err != nil {
		t.Fatalf("StartTX: %v", err)
	}
	got := binary.LittleEndian.Uint16(ft.regs[key(regSYS_CTRL, 0)])
	want := uint16(ctrlTXSTRT | ctrlTXDLYS | ctrlWAIT4RX)
	if got != want {
		t.Errorf("SYS_CTRL = %#x, want %#x", got, want)
	}
}

func TestSpiHeaderNoSubAddress(t *testing.T) {
	h := spiHeader(0x0F, 0, false)
	if len(h) != 1 || h[0] != 0x0F {
		t.Fatalf("spiHeader = %v, want [0x0F]", h)
	}
	h = spiHeader(0x0F, 0, true)
	if len(h) != 1 || h[0] != 0x8F {
		t.Fatalf("spiHeader(write) = %v, want [0x8F]", h)
	}
}

func TestSpiHeaderShortSubAddress(t *testing.T) {
	h := spiHeader(0x0F, 0x10, false)
	if len(h) != 2 || h[0] != (0x0F|0x40) || h[1] != 0x10 {
		t.Fatalf("spiHeader = %v", h)
	}
}

func TestSpiHeaderExtendedSubAddress(t *testing.T) {
	h := spiHeader(0x0F, 0x100, true)
	if len(h) != 3 {
		t.Fatalf("spiHeader len = %d, want 3", len(h))
	}
	if h[0] != (0x0F | 0x40 | 0x80) {
		t.Fatalf("spiHeader[0] = %#x", h[0])
	}
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
