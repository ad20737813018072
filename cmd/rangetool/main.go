//go:build !tinygo

// command rangetool is the host-side operator tool for a UWB ranging
// node: it opens the node's serial console and relays stdin/stdout to
// it, so the ping/trigger command grammar and JSON event stream can be
// driven from a terminal or scripted from another process.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/tarm/serial"
)

var (
	device = flag.String("device", "", "serial device (default: platform-specific autodetect)")
	baud   = flag.Int("baud", 115200, "serial baud rate")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rangetool: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	port, err := openPort(*device, *baud)
	if err != nil {
		return err
	}
	defer port.Close()

	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, port)
		errc <- err
	}()
	go func() {
		_, err := io.Copy(port, os.Stdin)
		errc <- err
	}()
	return <-errc
}

// openPort opens dev, or tries the platform's usual default device
// names when dev is empty.
func openPort(dev string, baud int) (io.ReadWriteCloser, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyACM0", "/dev/ttyUSB0")
		case "darwin":
			devices = append(devices, "/dev/tty.usbmodem0")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: baud}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
