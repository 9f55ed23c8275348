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

package mfrc522

import (
	"context"
	"fmt"
	"time"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Sleep blocks for the given duration. Tests replace it to run timeouts
	// without wall-clock waits.
	Sleep func(time.Duration)
	// AntennaGain is written to RFCfgReg during Init when non-nil
	AntennaGain *AntennaGain
	// Name identifies the bus in errors and traces
	Name string
	// ResetDelay is the fixed wait after a soft reset
	ResetDelay time.Duration
	// PollDelay is the pause between two ComIrqReg reads
	PollDelay time.Duration
	// PollBudget is the number of ComIrqReg reads before a command times out
	PollBudget int
	// TraceSize is the number of register transactions kept for error traces
	// (0 disables tracing)
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration.
// The poll budget and delay bound a command to roughly 20ms.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Sleep:      time.Sleep,
		Name:       "mfrc522",
		ResetDelay: 50 * time.Millisecond,
		PollDelay:  10 * time.Microsecond,
		PollBudget: defaultPollBudget,
		TraceSize:  32,
	}
}

// Device represents an MFRC522 reader chip on a Bus.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine. The Device assumes it is the only user of its Bus.
type Device struct {
	bus    Bus
	config *DeviceConfig
	trace  *TraceBuffer
}

// New creates a new MFRC522 device on the given bus. The chip is not touched
// until Init is called.
func New(bus Bus, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: nil bus", ErrInvalidParameter)
	}

	device := &Device{
		bus:    bus,
		config: DefaultDeviceConfig(),
	}
	if named, ok := bus.(fmt.Stringer); ok {
		device.config.Name = named.String()
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if device.config.TraceSize > 0 {
		device.trace = NewTraceBuffer(device.config.Name, device.config.TraceSize)
	}

	return device, nil
}

// Bus returns the underlying bus
func (d *Device) Bus() Bus {
	return d.bus
}

// Config returns the device configuration
func (d *Device) Config() *DeviceConfig {
	return d.config
}

// Init resets the chip, programs its timer and transmitter, and turns the
// antenna on. It fails only when the bus is not ready; register writes are
// not verified.
func (d *Device) Init(ctx context.Context) error {
	if !d.bus.IsReady() {
		return NewTransportNotReadyError("Init", d.config.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	d.Reset()

	// Timer: TAuto with ~2kHz clock and 30 ticks reload, used by the chip to
	// flag a no-tag timeout through TimerIRq
	d.WriteRegister(TModeReg, tModeAuto)
	d.WriteRegister(TPrescalerReg, tPrescalerLow)
	d.WriteRegister(TReloadRegL, tReloadLow)
	d.WriteRegister(TReloadRegH, tReloadHigh)
	d.WriteRegister(TxASKReg, txASKForce100)
	d.WriteRegister(ModeReg, modeCRCPreset)

	if d.config.AntennaGain != nil {
		d.SetAntennaGain(*d.config.AntennaGain)
	}

	d.AntennaOn()
	Debugf("MFRC522 init done on %s", d.config.Name)
	return nil
}

// Reset issues a soft reset and waits the fixed settle delay
func (d *Device) Reset() {
	d.WriteRegister(CommandReg, byte(CommandResetPhase))
	d.config.Sleep(d.config.ResetDelay)
}

// AntennaOn enables both antenna drivers if neither is enabled
func (d *Device) AntennaOn() {
	if d.ReadRegister(TxControlReg)&antennaOn == 0 {
		d.SetBits(TxControlReg, antennaOn)
	}
}

// AntennaOff disables both antenna drivers
func (d *Device) AntennaOff() {
	d.ClearBits(TxControlReg, antennaOn)
}

// AntennaGain is the receiver gain field of RFCfgReg
type AntennaGain byte

// Receiver gains (RFCfgReg RxGain)
const (
	AntennaGain18dB AntennaGain = 0x00
	AntennaGain23dB AntennaGain = 0x10
	AntennaGain33dB AntennaGain = 0x40
	AntennaGain38dB AntennaGain = 0x50
	AntennaGain43dB AntennaGain = 0x60
	AntennaGain48dB AntennaGain = 0x70
)

// SetAntennaGain programs the receiver gain
func (d *Device) SetAntennaGain(gain AntennaGain) {
	d.ClearBits(RFCfgReg, rxGainMask)
	d.SetBits(RFCfgReg, byte(gain)&rxGainMask)
}

// AntennaGain returns the receiver gain currently programmed
func (d *Device) AntennaGain() AntennaGain {
	return AntennaGain(d.ReadRegister(RFCfgReg) & rxGainMask)
}

// traceTX records a register write if tracing is enabled
func (d *Device) traceTX(data []byte, note string) {
	if d.trace != nil {
		d.trace.RecordTX(data, note)
	}
}

// traceRX records a register read if tracing is enabled
func (d *Device) traceRX(data []byte, note string) {
	if d.trace != nil {
		d.trace.RecordRX(data, note)
	}
}

// wrapTrace attaches the current trace to err
func (d *Device) wrapTrace(err error) error {
	if d.trace == nil {
		return err
	}
	return d.trace.WrapError(err)
}
