// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spi provides the SPI bus implementation for the MFRC522
package spi

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// Default SPI settings. The MFRC522 accepts up to 10MHz; 4MHz keeps
	// margin for jumper wires.
	defaultFreq = 4 * physic.MegaHertz
	mode        = spi.Mode0 // CPOL=0, CPHA=0, MSB first
	bitsPerWord = 8

	// NRSTPD must stay low for at least 100ns; the oscillator needs about
	// 37.74us to start after it goes high
	resetPulse  = time.Millisecond
	resetSettle = 50 * time.Millisecond
)

type config struct {
	resetPin  gpio.PinIO
	sleep     func(time.Duration)
	resetName string
	freq      physic.Frequency
	skipReset bool
}

// Option configures a Bus
type Option func(*config) error

// WithFrequency sets the SPI clock
func WithFrequency(freq physic.Frequency) Option {
	return func(c *config) error {
		if freq <= 0 {
			return fmt.Errorf("%w: SPI frequency %s", mfrc522.ErrInvalidParameter, freq)
		}
		c.freq = freq
		return nil
	}
}

// WithResetPin drives the chip's NRSTPD line from the named GPIO
// (for example "GPIO25"). The pin is pulsed low when the bus opens.
func WithResetPin(name string) Option {
	return func(c *config) error {
		c.resetName = name
		return nil
	}
}

// WithResetPinIO is WithResetPin for an already resolved pin
func WithResetPinIO(pin gpio.PinIO) Option {
	return func(c *config) error {
		if pin == nil {
			return fmt.Errorf("%w: nil reset pin", mfrc522.ErrInvalidParameter)
		}
		c.resetPin = pin
		return nil
	}
}

// WithoutInitialReset keeps the reset pin high without pulsing it on open
func WithoutInitialReset() Option {
	return func(c *config) error {
		c.skipReset = true
		return nil
	}
}

// Bus implements the mfrc522.Bus contract over a periph.io SPI port.
//
// A failed exchange is logged and remembered: IsReady reports false from then
// on and Err returns the failure. The register layer above has no error path,
// so callers check IsReady (the polling loop does so on every tick).
type Bus struct {
	port     spi.PortCloser
	conn     spi.Conn
	reset    gpio.PinIO
	err      error
	sleep    func(time.Duration)
	portName string
	mu       syncutil.Mutex
	closed   bool
}

// New opens the SPI port (empty name selects the first one) and connects at
// 4MHz, mode 0, 8 bits per word.
func New(portName string, opts ...Option) (*Bus, error) {
	cfg := &config{
		freq:  defaultFreq,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	bus, err := newBus(port, portName, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return bus, nil
}

// newBus connects an already opened port
func newBus(port spi.PortCloser, portName string, cfg *config) (*Bus, error) {
	conn, err := port.Connect(cfg.freq, mode, bitsPerWord)
	if err != nil {
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	if portName == "" {
		portName = port.String()
	}

	bus := &Bus{
		port:     port,
		conn:     conn,
		portName: portName,
		sleep:    cfg.sleep,
		reset:    cfg.resetPin,
	}

	if bus.reset == nil && cfg.resetName != "" {
		pin := gpioreg.ByName(cfg.resetName)
		if pin == nil {
			return nil, fmt.Errorf("%w: reset pin %s not found", mfrc522.ErrInvalidParameter, cfg.resetName)
		}
		bus.reset = pin
	}

	if bus.reset != nil {
		if cfg.skipReset {
			if err := bus.reset.Out(gpio.High); err != nil {
				return nil, fmt.Errorf("failed to release reset pin: %w", err)
			}
		} else if err := bus.HardReset(); err != nil {
			return nil, err
		}
	}

	mfrc522.Debugf("SPI bus %s connected at %s", portName, cfg.freq)
	return bus, nil
}

// Transceive performs one full-duplex exchange. On failure it returns zeroes
// and the bus stops being ready.
func (b *Bus) Transceive(tx []byte) []byte {
	rx := make([]byte, len(tx))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		if b.err == nil {
			b.err = mfrc522.NewTransportClosedError("Transceive", b.portName)
		}
		return rx
	}
	if b.err != nil {
		return rx
	}

	if err := b.conn.Tx(tx, rx); err != nil {
		b.err = mfrc522.NewTransportWriteError("Transceive", b.portName, err)
		mfrc522.Debugf("SPI exchange % X failed: %v", tx, err)
		clear(rx)
	}
	return rx
}

// IsReady reports whether the port is open and no exchange has failed
func (b *Bus) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.err == nil
}

// Err returns the error that made the bus not ready, if any
func (b *Bus) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// ClearError makes a bus that saw a transient failure ready again
func (b *Bus) ClearError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.err = nil
	}
}

// HardReset pulses the reset pin low. It is a no-op without a reset pin.
func (b *Bus) HardReset() error {
	if b.reset == nil {
		return nil
	}
	if err := b.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to assert reset pin: %w", err)
	}
	b.sleep(resetPulse)
	if err := b.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to release reset pin: %w", err)
	}
	b.sleep(resetSettle)
	return nil
}

// String returns the port name
func (b *Bus) String() string {
	return b.portName
}

// Close closes the SPI port. The reset pin is left high.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}
