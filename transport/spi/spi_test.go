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

package spi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	errPortClosed = errors.New("port is closed")
	errBusFault   = errors.New("spi: bus fault")
)

// MockSPIConn implements spi.Conn backed by a VirtualMFRC522
type MockSPIConn struct {
	sim    *virt.VirtualMFRC522
	failOn int
	txs    int
	closed bool
}

var _ spi.Conn = (*MockSPIConn)(nil)

func (m *MockSPIConn) Tx(w, r []byte) error {
	if m.closed {
		return errPortClosed
	}
	m.txs++
	if m.failOn > 0 && m.txs >= m.failOn {
		return errBusFault
	}
	copy(r, m.sim.Transceive(w))
	return nil
}

func (*MockSPIConn) Duplex() conn.Duplex {
	return conn.Full
}

func (*MockSPIConn) String() string {
	return "MockSPIConn"
}

func (*MockSPIConn) TxPackets(_ []spi.Packet) error {
	return errors.New("TxPackets not implemented in mock")
}

// MockSPIPort implements spi.PortCloser
type MockSPIPort struct {
	conn       *MockSPIConn
	connectErr error
	closeErr   error
	freq       physic.Frequency
	mode       spi.Mode
	bits       int
	closed     bool
}

var _ spi.PortCloser = (*MockSPIPort)(nil)

func NewMockSPIPort(sim *virt.VirtualMFRC522) *MockSPIPort {
	return &MockSPIPort{conn: &MockSPIConn{sim: sim}}
}

func (m *MockSPIPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	m.freq, m.mode, m.bits = f, mode, bits
	return m.conn, nil
}

func (m *MockSPIPort) Close() error {
	m.closed = true
	m.conn.closed = true
	return m.closeErr
}

func (*MockSPIPort) String() string {
	return "SPI0.0"
}

func (*MockSPIPort) LimitSpeed(_ physic.Frequency) error {
	return nil
}

// levelPin records every level driven onto a gpiotest.Pin
type levelPin struct {
	*gpiotest.Pin
	levels []gpio.Level
	mu     sync.Mutex
}

func (p *levelPin) Out(l gpio.Level) error {
	p.mu.Lock()
	p.levels = append(p.levels, l)
	p.mu.Unlock()
	return p.Pin.Out(l)
}

func (p *levelPin) Levels() []gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gpio.Level(nil), p.levels...)
}

func newTestConfig(opts ...Option) *config {
	cfg := &config{freq: defaultFreq, sleep: func(time.Duration) {}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			panic(err)
		}
	}
	return cfg
}

func newTestBus(t *testing.T, opts ...Option) (*Bus, *MockSPIPort, *virt.VirtualMFRC522) {
	t.Helper()
	sim := virt.NewVirtualMFRC522()
	port := NewMockSPIPort(sim)
	bus, err := newBus(port, "", newTestConfig(opts...))
	require.NoError(t, err)
	return bus, port, sim
}

func TestNewBus_ConnectSettings(t *testing.T) {
	t.Parallel()

	bus, port, _ := newTestBus(t)

	assert.Equal(t, 4*physic.MegaHertz, port.freq)
	assert.Equal(t, spi.Mode0, port.mode)
	assert.Equal(t, 8, port.bits)
	assert.Equal(t, "SPI0.0", bus.String(), "port name falls back to the port")
	assert.True(t, bus.IsReady())
	require.NoError(t, bus.Err())
}

func TestNewBus_CustomFrequency(t *testing.T) {
	t.Parallel()

	_, port, _ := newTestBus(t, WithFrequency(physic.MegaHertz))

	assert.Equal(t, physic.MegaHertz, port.freq)
}

func TestNewBus_ConnectError(t *testing.T) {
	t.Parallel()

	port := NewMockSPIPort(virt.NewVirtualMFRC522())
	port.connectErr = errors.New("mode not supported")

	_, err := newBus(port, "/dev/spidev0.0", newTestConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect SPI")
}

func TestOptions_Invalid(t *testing.T) {
	t.Parallel()

	cfg := &config{}
	require.ErrorIs(t, WithFrequency(0)(cfg), mfrc522.ErrInvalidParameter)
	require.ErrorIs(t, WithResetPinIO(nil)(cfg), mfrc522.ErrInvalidParameter)
}

func TestNewBus_UnknownResetPin(t *testing.T) {
	t.Parallel()

	port := NewMockSPIPort(virt.NewVirtualMFRC522())

	_, err := newBus(port, "", newTestConfig(WithResetPin("NO_SUCH_PIN_4711")))

	require.ErrorIs(t, err, mfrc522.ErrInvalidParameter)
}

func TestTransceive_RegisterAccess(t *testing.T) {
	t.Parallel()

	bus, _, sim := newTestBus(t)

	// write ModeReg then read it and VersionReg back in one exchange
	bus.Transceive([]byte{mfrc522.EncodeAddress(mfrc522.ModeReg, false), 0x3D})
	rx := bus.Transceive([]byte{
		mfrc522.EncodeAddress(mfrc522.ModeReg, true),
		mfrc522.EncodeAddress(mfrc522.VersionReg, true),
		0x00,
	})

	assert.Equal(t, byte(0x3D), sim.Register(byte(mfrc522.ModeReg)))
	assert.Equal(t, []byte{0x00, 0x3D, virt.DefaultVersion}, rx)
}

func TestTransceive_DrivesDevice(t *testing.T) {
	t.Parallel()

	bus, _, sim := newTestBus(t)
	sim.PlaceCard(virt.NewVirtualCard(virt.TestMIFARE1KUID))

	device, err := mfrc522.New(bus, mfrc522.WithSleep(func(time.Duration) {}))
	require.NoError(t, err)
	require.NoError(t, device.Init(context.Background()))

	version, err := device.Version()
	require.NoError(t, err)
	assert.Equal(t, mfrc522.VersionV2, version)

	uid, err := device.Check()
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF", uid.String())
	assert.Equal(t, "SPI0.0", device.Config().Name)
}

func TestTransceive_ErrorIsSticky(t *testing.T) {
	t.Parallel()

	bus, port, _ := newTestBus(t)
	port.conn.failOn = 2

	rx := bus.Transceive([]byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})
	assert.Equal(t, byte(virt.DefaultVersion), rx[1])

	rx = bus.Transceive([]byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})
	assert.Equal(t, []byte{0x00, 0x00}, rx, "failed exchange reads as zeroes")
	assert.False(t, bus.IsReady())

	err := bus.Err()
	require.ErrorIs(t, err, mfrc522.ErrTransportWrite)
	require.ErrorIs(t, err, errBusFault)

	port.conn.failOn = 0
	bus.Transceive([]byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})
	assert.Equal(t, 2, port.conn.txs, "no traffic while the bus is faulted")

	bus.ClearError()
	assert.True(t, bus.IsReady())
	rx = bus.Transceive([]byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})
	assert.Equal(t, byte(virt.DefaultVersion), rx[1])
}

func TestClose(t *testing.T) {
	t.Parallel()

	bus, port, _ := newTestBus(t)

	require.NoError(t, bus.Close())
	assert.True(t, port.closed)
	assert.False(t, bus.IsReady())
	require.NoError(t, bus.Close(), "second close is a no-op")

	rx := bus.Transceive([]byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})
	assert.Equal(t, []byte{0x00, 0x00}, rx)
	require.ErrorIs(t, bus.Err(), mfrc522.ErrTransportClosed)

	bus.ClearError()
	assert.False(t, bus.IsReady(), "a closed bus stays closed")
}

func TestClose_Error(t *testing.T) {
	t.Parallel()

	bus, port, _ := newTestBus(t)
	port.closeErr = errPortClosed

	err := bus.Close()

	require.ErrorIs(t, err, errPortClosed)
	assert.Contains(t, err.Error(), "SPI close failed")
}

func TestResetPin_PulsedOnOpen(t *testing.T) {
	t.Parallel()

	pin := &levelPin{Pin: &gpiotest.Pin{N: "GPIO25"}}
	var slept []time.Duration
	cfg := newTestConfig(WithResetPinIO(pin))
	cfg.sleep = func(d time.Duration) { slept = append(slept, d) }

	bus, err := newBus(NewMockSPIPort(virt.NewVirtualMFRC522()), "spi0", cfg)
	require.NoError(t, err)

	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, pin.Levels())
	assert.Equal(t, gpio.High, pin.Read())
	assert.Equal(t, []time.Duration{resetPulse, resetSettle}, slept)

	require.NoError(t, bus.HardReset())
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High, gpio.Low, gpio.High}, pin.Levels())
}

func TestResetPin_WithoutInitialReset(t *testing.T) {
	t.Parallel()

	pin := &levelPin{Pin: &gpiotest.Pin{N: "GPIO25"}}

	newTestBus(t, WithResetPinIO(pin), WithoutInitialReset())

	assert.Equal(t, []gpio.Level{gpio.High}, pin.Levels())
}

func TestHardReset_NoPin(t *testing.T) {
	t.Parallel()

	bus, _, _ := newTestBus(t)

	require.NoError(t, bus.HardReset())
}
