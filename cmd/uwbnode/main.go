//go:build tinygo

// command uwbnode is the firmware entry point for a battery-powered
// UWB ranging node: it wires a DW1000 transceiver to the protocol
// engine and exposes the operator console over the board's USB CDC
// UART.
package main

import (
	"fmt"
	"log"
	"machine"
	"time"

	"dwrange.dev/battery"
	"dwrange.dev/console"
	"dwrange.dev/driver/dw1000"
	"dwrange.dev/identity"
	"dwrange.dev/loop"
	"dwrange.dev/ranging"
)

const (
	DW_CS  = machine.GPIO17
	DW_RST = machine.GPIO20
	DW_IRQ = machine.GPIO21

	DW_SCK = machine.GPIO18
	DW_SDO = machine.GPIO19
	DW_SDI = machine.GPIO16
)

// txAntennaDelay is the per-board calibration value handed to the
// radio's Configure. It equals dwtime.TxAntennaDelay, the value the
// engine adds when predicting a scheduled transmit's on-air timestamp.
const txAntennaDelay = 16436

type msClock struct{ start time.Time }

func (c msClock) NowMS() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(machine.Serial, "uwbnode: %v\r\n", err)
		for {
			time.Sleep(time.Second)
		}
	}
}

func run() error {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	store := identity.OpenOTPStore()
	id, err := identity.Open(store)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	groupID, err := id.GroupID()
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	nodeID, err := id.NodeID()
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	if err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 8_000_000,
		SCK:       DW_SCK,
		SDO:       DW_SDO,
		SDI:       DW_SDI,
		Mode:      0,
	}); err != nil {
		return fmt.Errorf("spi: %w", err)
	}

	radio := dw1000.NewSPI(machine.SPI0, DW_CS, DW_RST, DW_IRQ)
	clock := msClock{start: time.Now()}
	engine := ranging.New(radio, clock, battery.Fixed(0), ranging.DefaultConfig(groupID, nodeID))
	radio.SetCallbacks(engine)

	logger := loop.NewLogger(log.New(machine.Serial, "uwbnode: ", 0))
	engine.SetObserver(func(k ranging.EventKind) { logger.Printf("event: %s", k) })

	l := loop.New(radio)
	if err := radio.Configure(txAntennaDelay, l.Signal); err != nil {
		return fmt.Errorf("dw1000: %w", err)
	}
	quit := make(chan struct{})
	go l.Run(quit)
	go logger.Run(quit)

	c := console.New(engine, clock, machine.Serial)
	c.Run(machine.Serial, quit)
	return nil
}
