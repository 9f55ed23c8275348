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

// Package uart provides the UART bus implementation for the MFRC522
package uart

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/ZaparooProject/go-mfrc522/transport/internal/regio"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the rate SerialSpeedReg selects after reset
	DefaultBaudRate = 9600

	readTimeout = 50 * time.Millisecond

	// empty reads tolerated while waiting for one byte
	maxEmptyReads = 3

	readFlag = 0x80
)

type config struct {
	baud int
}

// Option configures a Bus
type Option func(*config) error

// WithBaudRate sets the host side baud rate. It must match SerialSpeedReg.
func WithBaudRate(baud int) Option {
	return func(c *config) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate %d", mfrc522.ErrInvalidParameter, baud)
		}
		c.baud = baud
		return nil
	}
}

// Bus implements the mfrc522.Bus contract over a serial port.
//
// Each register byte is one exchange: a read sends the address with bit 7 set
// and receives the value, a write sends address and value and receives the
// address back. Failures are sticky in the same way as for the SPI bus.
type Bus struct {
	port     serial.Port
	err      error
	portName string
	mu       syncutil.Mutex
	closed   bool
}

// New opens portName at 8N1
func New(portName string, opts ...Option) (*Bus, error) {
	cfg := &config{baud: DefaultBaudRate}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	bus, err := newBus(port, portName)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return bus, nil
}

func newBus(port serial.Port, portName string) (*Bus, error) {
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("failed to flush UART input: %w", err)
	}
	mfrc522.Debugf("UART bus %s opened", portName)
	return &Bus{port: port, portName: portName}, nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for written bytes to leave the port, retrying on EINTR
func (b *Bus) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := b.port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
			continue
		}

		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

func (b *Bus) write(data []byte, operation string) error {
	n, err := b.port.Write(data)
	if err != nil {
		return fmt.Errorf("UART %s write failed: %w", operation, err)
	}
	if n != len(data) {
		return fmt.Errorf("UART %s wrote %d of %d bytes", operation, n, len(data))
	}
	return b.drainWithRetry(operation)
}

// readByte waits for one byte from the chip
func (b *Bus) readByte(operation string) (byte, error) {
	var buf [1]byte
	for range maxEmptyReads {
		n, err := b.port.Read(buf[:])
		if err != nil {
			return 0, fmt.Errorf("UART %s read failed: %w", operation, err)
		}
		if n == 1 {
			return buf[0], nil
		}
	}
	return 0, mfrc522.NewTimeoutError(operation, b.portName)
}

// ReadRegister reads len(buf) values from reg
func (b *Bus) ReadRegister(reg mfrc522.Register, buf []byte) error {
	addr := readFlag | byte(reg)&0x3F
	for i := range buf {
		if err := b.write([]byte{addr}, "read address"); err != nil {
			return err
		}
		value, err := b.readByte("read value")
		if err != nil {
			return err
		}
		buf[i] = value
	}
	return nil
}

// WriteRegister writes each byte of data to reg
func (b *Bus) WriteRegister(reg mfrc522.Register, data []byte) error {
	addr := byte(reg) & 0x3F
	for _, value := range data {
		if err := b.write([]byte{addr, value}, "write"); err != nil {
			return err
		}
		echo, err := b.readByte("write echo")
		if err != nil {
			return err
		}
		if echo != addr {
			return fmt.Errorf("UART write to %s echoed 0x%02X", reg, echo)
		}
	}
	return nil
}

// Transceive performs the register accesses encoded in tx
func (b *Bus) Transceive(tx []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		if b.err == nil {
			b.err = mfrc522.NewTransportClosedError("Transceive", b.portName)
		}
		return make([]byte, len(tx))
	}
	if b.err != nil {
		return make([]byte, len(tx))
	}

	rx, err := regio.Exchange(b, tx)
	if err != nil {
		b.err = mfrc522.NewTransportWriteError("Transceive", b.portName, err)
		mfrc522.Debugf("UART exchange % X failed: %v", tx, err)
		// a late byte would shift every later reply
		_ = b.port.ResetInputBuffer()
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

// String returns the port name
func (b *Bus) String() string {
	return b.portName
}

// Close closes the serial port
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}
