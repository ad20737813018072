//go:build !tinygo

package dw1000

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// spiTransport frames DW1000 register accesses over a periph.io SPI
// connection. Unlike the TinyGo transport it doesn't toggle chip
// select itself: spi.Conn.Tx already wraps each transaction in its
// own CS assertion.
type spiTransport struct {
	conn spi.Conn
}

func (t *spiTransport) readReg(id byte, sub uint16, buf []byte) error {
	header := spiHeader(id, sub, false)
	w := make([]byte, len(header)+len(buf))
	copy(w, header)
	r := make([]byte, len(w))
	if err := t.conn.Tx(w, r); err != nil {
		return err
	}
	copy(buf, r[len(header):])
	return nil
}

func (t *spiTransport) writeReg(id byte, sub uint16, buf []byte) error {
	header := spiHeader(id, sub, true)
	w := make([]byte, len(header)+len(buf))
	copy(w, header)
	copy(w[len(header):], buf)
	return t.conn.Tx(w, nil)
}

// SPIDevice is a DW1000 reachable over a Linux SPI bus, with its
// reset and interrupt-request lines driven through periph.io's gpio
// registry.
type SPIDevice struct {
	Device
	port spi.PortCloser
	rst  gpio.PinOut
	irq  gpio.PinIn
}

// Open finds the first available SPI port and wires rst and irq as
// the DW1000's reset and interrupt-request lines.
func Open(rst, irq gpio.PinIO) (*SPIDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("dw1000: %w", err)
	}
	p, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("dw1000: %w", err)
	}
	c, err := p.Connect(8*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("dw1000: %w", err)
	}
	if err := rst.Out(gpio.High); err != nil {
		p.Close()
		return nil, fmt.Errorf("dw1000: %w", err)
	}
	if err := irq.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		p.Close()
		return nil, fmt.Errorf("dw1000: %w", err)
	}
	return &SPIDevice{
		Device: Device{t: &spiTransport{conn: c}},
		port:   p,
		rst:    rst,
		irq:    irq,
	}, nil
}

// Close halts the IRQ pin, which unblocks the watcher goroutine
// started by Configure, and releases the underlying SPI port.
func (d *SPIDevice) Close() error {
	d.irq.Halt()
	return d.port.Close()
}

// Configure pulses the RST line, verifies the device ID, and starts a
// goroutine that waits on the IRQ pin's rising edge and calls signal
// on each one. signal is expected to be a loop.Loop.Signal closure:
// the watcher itself does no register I/O, only a non-blocking
// wakeup of task-level code that will later call ServiceInterrupt.
func (d *SPIDevice) Configure(txAntennaDelay uint16, signal func()) error {
	d.rst.Out(gpio.Low)
	d.rst.Out(gpio.High)
	if err := d.Device.Configure(txAntennaDelay); err != nil {
		return err
	}
	go func() {
		for d.irq.WaitForEdge(-1) {
			signal()
		}
	}()
	return nil
}
