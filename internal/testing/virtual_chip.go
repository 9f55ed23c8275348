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

// Package testing provides test utilities including a register-level MFRC522
// simulator.
//
// The VirtualMFRC522 type implements the Bus contract (Transceive/IsReady) and
// simulates the chip's SPI register interface as described in the MFRC522
// datasheet section 8.1.2, with enough of the command processor (section 10)
// and the ISO 14443-3 card side to run REQA, anticollision and HLTA.
package testing

import (
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// Register addresses used by the simulator (datasheet section 9.2)
const (
	regCommand    = 0x01
	regComIEn     = 0x02
	regComIrq     = 0x04
	regDivIrq     = 0x05
	regError      = 0x06
	regFIFOData   = 0x09
	regFIFOLevel  = 0x0A
	regControl    = 0x0C
	regBitFraming = 0x0D
	regMode       = 0x11
	regTxControl  = 0x14
	regRFCfg      = 0x26
	regVersion    = 0x37
)

// PCD commands (datasheet section 10.3)
const (
	cmdIdle       = 0x00
	cmdTransceive = 0x0C
	cmdSoftReset  = 0x0F
)

// ComIrqReg bits
const (
	irqSet1    = 0x80
	irqTx      = 0x40
	irqRx      = 0x20
	irqIdle    = 0x10
	irqErr     = 0x02
	irqTimer   = 0x01
	startSend  = 0x80
	flushFIFO  = 0x80
	bufferOvfl = 0x10
)

// chipFIFOSize is the real FIFO depth of the MFRC522
const chipFIFOSize = 64

// DefaultVersion is the VersionReg value of a genuine MFRC522 v2.0
const DefaultVersion = 0x92

// VirtualMFRC522 simulates an MFRC522 at the SPI register level.
// It is safe for concurrent use, but like the real chip it expects a single
// bus master.
type VirtualMFRC522 struct {
	card              *VirtualCard
	fifoLevelOverride *byte
	lastBitsOverride  *byte
	fifo              []byte
	exchanges         [][]byte
	regs              [64]byte
	reads             [64]int
	writes            [64]int
	mu                syncutil.Mutex
	version           byte
	errorFlags        byte
	transactions      int
	stuckIRQ          bool
	notReady          bool
}

// NewVirtualMFRC522 creates a simulator with power-on register values and no
// card in the field.
func NewVirtualMFRC522() *VirtualMFRC522 {
	v := &VirtualMFRC522{version: DefaultVersion}
	v.softReset()
	return v
}

// Transceive implements the full-duplex SPI exchange.
// In write mode every byte after the address is written to the same register.
// In read mode byte i of the answer holds the register addressed by byte i-1.
func (v *VirtualMFRC522) Transceive(tx []byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.transactions++
	rx := make([]byte, len(tx))
	if len(tx) == 0 {
		return rx
	}

	if tx[0]&0x80 == 0 {
		reg := decodeAddress(tx[0])
		for _, value := range tx[1:] {
			v.writeRegister(reg, value)
		}
		return rx
	}

	for i := 1; i < len(tx); i++ {
		rx[i] = v.readRegister(decodeAddress(tx[i-1]))
	}
	return rx
}

// IsReady reports whether the simulated bus is up
func (v *VirtualMFRC522) IsReady() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.notReady
}

// SetReady changes what IsReady reports
func (v *VirtualMFRC522) SetReady(ready bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notReady = !ready
}

// PlaceCard puts a card in the RF field, replacing any other
func (v *VirtualMFRC522) PlaceCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if card != nil {
		card.reset()
	}
	v.card = card
}

// RemoveCard takes the card out of the field
func (v *VirtualMFRC522) RemoveCard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.card = nil
}

// SetVersion sets the value returned by VersionReg
func (v *VirtualMFRC522) SetVersion(version byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.version = version
	v.regs[regVersion] = version
}

// SetStuckIRQ makes ComIrqReg read as zero so no command ever completes
func (v *VirtualMFRC522) SetStuckIRQ(stuck bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stuckIRQ = stuck
}

// InjectErrorFlags makes every following exchange complete with flags set in
// ErrorReg. Zero disables the injection.
func (v *VirtualMFRC522) InjectErrorFlags(flags byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorFlags = flags
}

// OverrideFIFOLevel forces the value read from FIFOLevelReg
func (v *VirtualMFRC522) OverrideFIFOLevel(level byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fifoLevelOverride = &level
}

// OverrideLastBits forces the RxLastBits field of ControlReg
func (v *VirtualMFRC522) OverrideLastBits(bits byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bits &= 0x07
	v.lastBitsOverride = &bits
}

// ClearOverrides removes FIFO level and RxLastBits overrides
func (v *VirtualMFRC522) ClearOverrides() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fifoLevelOverride = nil
	v.lastBitsOverride = nil
}

// Register returns the raw value of reg without side effects
func (v *VirtualMFRC522) Register(reg byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs[reg&0x3F]
}

// SetRegister sets the raw value of reg without side effects
func (v *VirtualMFRC522) SetRegister(reg, value byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regs[reg&0x3F] = value
}

// ReadCount returns how many times reg was read over the bus
func (v *VirtualMFRC522) ReadCount(reg byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reads[reg&0x3F]
}

// WriteCount returns how many times reg was written over the bus
func (v *VirtualMFRC522) WriteCount(reg byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writes[reg&0x3F]
}

// Transactions returns the number of bus exchanges seen
func (v *VirtualMFRC522) Transactions() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transactions
}

// Exchanges returns every frame sent over the air, in order
func (v *VirtualMFRC522) Exchanges() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.exchanges))
	for i, frame := range v.exchanges {
		out[i] = append([]byte(nil), frame...)
	}
	return out
}

// FIFO returns a copy of the FIFO contents
func (v *VirtualMFRC522) FIFO() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.fifo...)
}

// ResetCounters clears read/write counters and the exchange log
func (v *VirtualMFRC522) ResetCounters() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reads = [64]int{}
	v.writes = [64]int{}
	v.transactions = 0
	v.exchanges = nil
}

func decodeAddress(b byte) byte {
	return (b >> 1) & 0x3F
}

// softReset loads power-on values (datasheet section 9.3)
func (v *VirtualMFRC522) softReset() {
	v.regs = [64]byte{}
	v.regs[regCommand] = 0x20
	v.regs[regComIEn] = 0x80
	v.regs[regComIrq] = 0x14
	v.regs[regControl] = 0x10
	v.regs[regMode] = 0x3F
	v.regs[regTxControl] = 0x80
	v.regs[regRFCfg] = 0x48
	v.regs[regVersion] = v.version
	v.fifo = v.fifo[:0]
}

func (v *VirtualMFRC522) writeRegister(reg, value byte) {
	v.writes[reg]++

	switch reg {
	case regCommand:
		v.startCommand(value)
	case regComIrq, regDivIrq:
		if value&irqSet1 != 0 {
			v.regs[reg] |= value &^ irqSet1
		} else {
			v.regs[reg] &^= value
		}
	case regFIFOLevel:
		if value&flushFIFO != 0 {
			v.fifo = v.fifo[:0]
			v.regs[regError] &^= bufferOvfl
		}
	case regFIFOData:
		if len(v.fifo) >= chipFIFOSize {
			v.regs[regError] |= bufferOvfl
			return
		}
		v.fifo = append(v.fifo, value)
	case regBitFraming:
		v.regs[reg] = value
		if value&startSend != 0 && v.regs[regCommand]&0x0F == cmdTransceive {
			v.transceive()
		}
	case regVersion:
		// read-only
	default:
		v.regs[reg] = value
	}
}

func (v *VirtualMFRC522) readRegister(reg byte) byte {
	v.reads[reg]++

	switch reg {
	case regComIrq:
		if v.stuckIRQ {
			return 0x00
		}
		return v.regs[reg]
	case regFIFOData:
		if len(v.fifo) == 0 {
			return 0x00
		}
		b := v.fifo[0]
		v.fifo = v.fifo[1:]
		return b
	case regFIFOLevel:
		if v.fifoLevelOverride != nil {
			return *v.fifoLevelOverride
		}
		return byte(len(v.fifo))
	case regControl:
		if v.lastBitsOverride != nil {
			return v.regs[reg]&^0x07 | *v.lastBitsOverride
		}
		return v.regs[reg]
	default:
		return v.regs[reg]
	}
}

func (v *VirtualMFRC522) startCommand(value byte) {
	cmd := value & 0x0F
	// keep RcvOff and PowerDown bits
	v.regs[regCommand] = value&0x30 | cmd

	switch cmd {
	case cmdSoftReset:
		v.softReset()
	case cmdIdle:
	case cmdTransceive:
		v.regs[regError] = 0
	default:
		// Commands without an RF exchange finish at once
		v.regs[regError] = 0
		v.regs[regComIrq] |= irqIdle
		v.regs[regCommand] = value & 0x30
	}
}

// transceive sends the FIFO over the air and loads the card's answer
func (v *VirtualMFRC522) transceive() {
	frame := append([]byte(nil), v.fifo...)
	v.fifo = v.fifo[:0]
	v.exchanges = append(v.exchanges, frame)
	v.regs[regComIrq] |= irqTx

	txLastBits := v.regs[regBitFraming] & 0x07

	if v.errorFlags != 0 {
		v.regs[regError] |= v.errorFlags
		v.regs[regComIrq] |= irqRx | irqIdle | irqErr
		if v.card == nil {
			v.regs[regComIrq] |= irqTimer
		}
		return
	}

	if v.card == nil || v.regs[regTxControl]&0x03 == 0 {
		v.regs[regComIrq] |= irqTimer
		return
	}

	answer := v.card.respond(frame, txLastBits)
	if answer == nil {
		v.regs[regComIrq] |= irqTimer
		return
	}

	v.fifo = append(v.fifo, answer...)
	v.regs[regControl] &^= 0x07
	v.regs[regComIrq] |= irqRx | irqIdle
}
