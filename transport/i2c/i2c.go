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

// Package i2c provides the I2C bus implementation for the MFRC522
package i2c

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/ZaparooProject/go-mfrc522/transport/internal/regio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the 7-bit address with EA low and ADR_0..ADR_5 at
	// 0b101000, the wiring used by most breakout boards
	DefaultAddress uint16 = 0x28

	// Fast mode. The chip also supports 3.4MHz high-speed mode, which few
	// host controllers do.
	defaultSpeed = 400 * physic.KiloHertz
)

type config struct {
	speed physic.Frequency
	addr  uint16
}

// Option configures a Bus
type Option func(*config) error

// WithAddress overrides the 7-bit device address
func WithAddress(addr uint16) Option {
	return func(c *config) error {
		if addr == 0 || addr > 0x7F {
			return fmt.Errorf("%w: I2C address 0x%X", mfrc522.ErrInvalidParameter, addr)
		}
		c.addr = addr
		return nil
	}
}

// WithSpeed sets the bus clock
func WithSpeed(speed physic.Frequency) Option {
	return func(c *config) error {
		if speed <= 0 {
			return fmt.Errorf("%w: I2C speed %s", mfrc522.ErrInvalidParameter, speed)
		}
		c.speed = speed
		return nil
	}
}

// ParsePath splits a detection path such as "/dev/i2c-1:0x28" into the bus
// name and address. A bare bus name yields DefaultAddress.
func ParsePath(path string) (busName string, addr uint16, err error) {
	busName, suffix, found := strings.Cut(path, ":")
	if !found {
		return busName, DefaultAddress, nil
	}
	value, err := strconv.ParseUint(suffix, 0, 7)
	if err != nil || value == 0 {
		return "", 0, fmt.Errorf("%w: I2C address %q", mfrc522.ErrInvalidParameter, suffix)
	}
	return busName, uint16(value), nil
}

// Bus implements the mfrc522.Bus contract over periph.io I2C. Register
// accesses map onto I2C transactions: a write sends the register address
// followed by data, a read writes the address and reads back with a repeated
// start.
//
// Failures are sticky in the same way as for the SPI bus.
type Bus struct {
	dev     *i2c.Dev
	closer  func() error
	err     error
	busName string
	mu      syncutil.Mutex
	closed  bool
}

// New opens the I2C bus named by path. An address in path (see ParsePath)
// is overridden by WithAddress.
func New(path string, opts ...Option) (*Bus, error) {
	busName, addr, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{addr: addr, speed: defaultSpeed}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bc, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	// not every adapter can change speed, the default still works
	_ = bc.SetSpeed(cfg.speed)

	b := newBus(bc, path, cfg.addr)
	b.closer = bc.Close
	return b, nil
}

func newBus(bus i2c.Bus, name string, addr uint16) *Bus {
	if name == "" {
		name = bus.String()
	}
	mfrc522.Debugf("I2C bus %s using address 0x%02X", name, addr)
	return &Bus{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		busName: name,
	}
}

// ReadRegister reads len(buf) values from reg
func (b *Bus) ReadRegister(reg mfrc522.Register, buf []byte) error {
	if err := b.dev.Tx([]byte{byte(reg) & 0x3F}, buf); err != nil {
		return fmt.Errorf("I2C read failed: %w", err)
	}
	return nil
}

// WriteRegister writes data to reg in one transaction
func (b *Bus) WriteRegister(reg mfrc522.Register, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, byte(reg)&0x3F)
	w = append(w, data...)
	if err := b.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("I2C write failed: %w", err)
	}
	return nil
}

// Transceive performs the register accesses encoded in tx
func (b *Bus) Transceive(tx []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		if b.err == nil {
			b.err = mfrc522.NewTransportClosedError("Transceive", b.busName)
		}
		return make([]byte, len(tx))
	}
	if b.err != nil {
		return make([]byte, len(tx))
	}

	rx, err := regio.Exchange(b, tx)
	if err != nil {
		b.err = mfrc522.NewTransportWriteError("Transceive", b.busName, err)
		mfrc522.Debugf("I2C exchange % X failed: %v", tx, err)
	}
	return rx
}

// IsReady reports whether the bus is open and no transaction has failed
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

// String returns the bus path
func (b *Bus) String() string {
	return b.busName
}

// Close releases the I2C bus file descriptor
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.closer == nil {
		return nil
	}
	if err := b.closer(); err != nil {
		return fmt.Errorf("failed to close I2C bus: %w", err)
	}
	return nil
}
