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

// Bus is the synchronous serial link to the MFRC522.
// The SPI implementation lives in transport/spi; tests use the virtual chip
// from internal/testing.
//
// The Device assumes exclusive ownership of the Bus. Register read-modify-write
// sequences are not atomic, so no other component may issue transactions on
// the same Bus while a Device is using it.
type Bus interface {
	// Transceive performs one full-duplex exchange. The returned slice has the
	// same length as tx.
	Transceive(tx []byte) []byte

	// IsReady reports whether the bus can carry transactions
	IsReady() bool
}

// EncodeAddress returns the SPI address byte for reg.
// Bits 1-6 carry the address, bit 0 is always clear and bit 7 selects read mode.
func EncodeAddress(reg Register, read bool) byte {
	addr := (byte(reg) << 1) & 0x7E
	if read {
		addr |= 0x80
	}
	return addr
}

// WriteRegister writes value to reg
func (d *Device) WriteRegister(reg Register, value byte) {
	tx := [2]byte{EncodeAddress(reg, false), value}
	d.bus.Transceive(tx[:])
	d.traceTX(tx[:], reg.String())
}

// ReadRegister returns the current value of reg
func (d *Device) ReadRegister(reg Register) byte {
	tx := [2]byte{EncodeAddress(reg, true), 0x00}
	rx := d.bus.Transceive(tx[:])
	var value byte
	if len(rx) > 1 {
		value = rx[1]
	}
	d.traceRX([]byte{tx[0], value}, reg.String())
	return value
}

// SetBits sets mask in reg without disturbing the other bits.
// The read-modify-write is not atomic.
func (d *Device) SetBits(reg Register, mask byte) {
	d.WriteRegister(reg, d.ReadRegister(reg)|mask)
}

// ClearBits clears mask in reg without disturbing the other bits
func (d *Device) ClearBits(reg Register, mask byte) {
	d.WriteRegister(reg, d.ReadRegister(reg)&^mask)
}
