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

import "fmt"

// Register is an MFRC522 register address in the range 0x00..0x3F.
type Register uint8

// Register addresses from the MFRC522 datasheet, section 9.2
const (
	// Command and status
	CommandReg    Register = 0x01
	ComIEnReg     Register = 0x02
	DivIEnReg     Register = 0x03
	ComIrqReg     Register = 0x04
	DivIrqReg     Register = 0x05
	ErrorReg      Register = 0x06
	Status1Reg    Register = 0x07
	Status2Reg    Register = 0x08
	FIFODataReg   Register = 0x09
	FIFOLevelReg  Register = 0x0A
	WaterLevelReg Register = 0x0B
	ControlReg    Register = 0x0C
	BitFramingReg Register = 0x0D
	CollReg       Register = 0x0E

	// Command configuration
	ModeReg      Register = 0x11
	TxModeReg    Register = 0x12
	RxModeReg    Register = 0x13
	TxControlReg Register = 0x14
	TxASKReg     Register = 0x15

	// Configuration
	CRCResultRegM Register = 0x21
	CRCResultRegL Register = 0x22
	RFCfgReg      Register = 0x26
	TModeReg      Register = 0x2A
	TPrescalerReg Register = 0x2B
	TReloadRegH   Register = 0x2C
	TReloadRegL   Register = 0x2D

	// Test registers
	VersionReg Register = 0x37
)

// MaxRegister is the highest addressable register.
const MaxRegister Register = 0x3F

var registerNames = map[Register]string{
	CommandReg:    "CommandReg",
	ComIEnReg:     "ComIEnReg",
	DivIEnReg:     "DivIEnReg",
	ComIrqReg:     "ComIrqReg",
	DivIrqReg:     "DivIrqReg",
	ErrorReg:      "ErrorReg",
	Status1Reg:    "Status1Reg",
	Status2Reg:    "Status2Reg",
	FIFODataReg:   "FIFODataReg",
	FIFOLevelReg:  "FIFOLevelReg",
	WaterLevelReg: "WaterLevelReg",
	ControlReg:    "ControlReg",
	BitFramingReg: "BitFramingReg",
	CollReg:       "CollReg",
	ModeReg:       "ModeReg",
	TxModeReg:     "TxModeReg",
	RxModeReg:     "RxModeReg",
	TxControlReg:  "TxControlReg",
	TxASKReg:      "TxASKReg",
	CRCResultRegM: "CRCResultRegM",
	CRCResultRegL: "CRCResultRegL",
	RFCfgReg:      "RFCfgReg",
	TModeReg:      "TModeReg",
	TPrescalerReg: "TPrescalerReg",
	TReloadRegH:   "TReloadRegH",
	TReloadRegL:   "TReloadRegL",
	VersionReg:    "VersionReg",
}

// String returns the datasheet name of the register
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reg(0x%02X)", uint8(r))
}

// Command is a PCD command written to CommandReg.
type Command uint8

// PCD commands
const (
	CommandIdle         Command = 0x00
	CommandCalcCRC      Command = 0x03
	CommandTransmit     Command = 0x04
	CommandReceive      Command = 0x08
	CommandTransceive   Command = 0x0C
	CommandAuthenticate Command = 0x0E
	CommandResetPhase   Command = 0x0F
)

// String returns a human-readable command name
func (c Command) String() string {
	switch c {
	case CommandIdle:
		return "Idle"
	case CommandCalcCRC:
		return "CalcCRC"
	case CommandTransmit:
		return "Transmit"
	case CommandReceive:
		return "Receive"
	case CommandTransceive:
		return "Transceive"
	case CommandAuthenticate:
		return "MFAuthent"
	case CommandResetPhase:
		return "SoftReset"
	default:
		return fmt.Sprintf("Command(0x%02X)", uint8(c))
	}
}

// PICC commands sent over the air through the FIFO
const (
	piccRequestIdle   = 0x26 // REQA, 7-bit short frame
	piccWakeUp        = 0x52 // WUPA, 7-bit short frame
	piccAnticollCL1   = 0x93
	piccAnticollNVB   = 0x20 // two bytes sent, no UID bits known
	piccHalt          = 0x50
	shortFrameBits    = 0x07
	atqaBits          = 0x10
	fifoSize          = 16
	defaultPollBudget = 2000
)

// Register bits
const (
	comIEnIRqInv = 0x80 // ComIEnReg: IRQ pin inverted / global enable
	comIrqSet1   = 0x80 // ComIrqReg: set/clear marker bit
	comIrqTimer  = 0x01 // ComIrqReg: TimerIRq
	fifoFlush    = 0x80 // FIFOLevelReg: FlushBuffer
	startSend    = 0x80 // BitFramingReg: StartSend
	rxLastBits   = 0x07 // ControlReg: RxLastBits
	antennaOn    = 0x03 // TxControlReg: Tx1RFEn | Tx2RFEn
	errorMask    = 0x1B // ErrorReg: BufferOvfl | CollErr | ParityErr | ProtocolErr
	rxGainMask   = 0x70 // RFCfgReg: RxGain
)

// IRQ masks per command: ComIEnReg value and the completion bits to wait for
const (
	authIRqEn         = 0x12
	authWaitIRq       = 0x10
	transceiveIRqEn   = 0x77
	transceiveWaitIRq = 0x30
)

// Timer and transmitter setup written by Init
const (
	tModeAuto     = 0x8D // TAuto, prescaler high nibble 0xD
	tPrescalerLow = 0x3E // 6.78MHz / (2*0xD3E+1) ~ 2kHz timer clock
	tReloadLow    = 30   // ~15ms no-tag timeout
	tReloadHigh   = 0
	txASKForce100 = 0x40
	modeCRCPreset = 0x3D // MSBFirst off, TxWaitRF, CRC preset 0x6363
)

// irqMasks returns the interrupt enable mask and the completion bits for cmd
func irqMasks(cmd Command) (irqEn, waitIRq byte) {
	switch cmd {
	case CommandAuthenticate:
		return authIRqEn, authWaitIRq
	case CommandTransceive:
		return transceiveIRqEn, transceiveWaitIRq
	default:
		return 0x00, 0x00
	}
}
