//go:build tinygo

package dw1000

import "machine"

// spiTransport frames DW1000 register accesses over a TinyGo
// machine.SPI bus, toggling chip select around each transaction the
// way st25r3916 and ap33772s toggle their own bus's addressing.
type spiTransport struct {
	bus machine.SPI
	cs  machine.Pin
}

func (t *spiTransport) readReg(id byte, sub uint16, buf []byte) error {
	header := spiHeader(id, sub, false)
	t.cs.Low()
	defer t.cs.High()
	for _, b := range header {
		if _, err := t.bus.Transfer(b); err != nil {
			return err
		}
	}
	for i := range buf {
		v, err := t.bus.Transfer(0)
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}

func (t *spiTransport) writeReg(id byte, sub uint16, buf []byte) error {
	header := spiHeader(id, sub, true)
	t.cs.Low()
	defer t.cs.High()
	for _, b := range header {
		if _, err := t.bus.Transfer(b); err != nil {
			return err
		}
	}
	for _, b := range buf {
		if _, err := t.bus.Transfer(b); err != nil {
			return err
		}
	}
	return nil
}

// SPIDevice is a DW1000 reachable over a TinyGo SPI bus, with its
// chip-select, reset, and interrupt-request pins driven directly.
type SPIDevice struct {
	Device
	cs  machine.Pin
	rst machine.Pin
	irq machine.Pin
}

// NewSPI constructs an unconfigured SPIDevice. Call Configure before
// use.
func NewSPI(bus machine.SPI, cs, rst, irq machine.Pin) *SPIDevice {
	return &SPIDevice{
		Device: Device{t: &spiTransport{bus: bus, cs: cs}},
		cs:     cs,
		rst:    rst,
		irq:    irq,
	}
}

// Configure resets the part over the RST pin, verifies the device ID,
// and arms the IRQ pin to call signal on every rising edge. signal is
// expected to be a loop.Loop.Signal closure: the ISR itself does no
// register I/O, only a non-blocking wakeup of task-level code that
// will later call ServiceInterrupt.
func (d *SPIDevice) Configure(txAntennaDelay uint16, signal func()) error {
	d.cs.High()
	d.rst.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.rst.Low()
	d.rst.High()
	d.irq.Configure(machine.PinConfig{Mode: machine.PinInput})
	if err := d.irq.SetInterrupt(machine.PinRising, func(machine.Pin) {
		signal()
	}); err != nil {
		return err
	}
	return d.Device.Configure(txAntennaDelay)
}
