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

// Package regio turns the SPI-framed exchanges issued by mfrc522.Device into
// plain register accesses for the I2C and UART transports.
package regio

import (
	"fmt"

	"github.com/ZaparooProject/go-mfrc522"
)

// Port performs register accesses on an interface that addresses registers
// directly. Multi-byte calls stay on the same register, which is how the
// FIFO is filled and drained.
type Port interface {
	ReadRegister(reg mfrc522.Register, buf []byte) error
	WriteRegister(reg mfrc522.Register, data []byte) error
}

// DecodeAddress reverses mfrc522.EncodeAddress
func DecodeAddress(b byte) (reg mfrc522.Register, read bool) {
	return mfrc522.Register((b >> 1) & 0x3F), b&0x80 != 0
}

// Exchange performs tx on port and returns what an SPI slave would have
// clocked back. A write is the address byte followed by data for that
// register. A read lists one address byte per value wanted and ends with a
// dummy byte; value i lands at rx[i+1].
func Exchange(port Port, tx []byte) ([]byte, error) {
	rx := make([]byte, len(tx))
	if len(tx) < 2 {
		return rx, nil
	}

	reg, read := DecodeAddress(tx[0])
	if !read {
		if err := port.WriteRegister(reg, tx[1:]); err != nil {
			return rx, fmt.Errorf("write %s: %w", reg, err)
		}
		return rx, nil
	}

	// runs of the same address become one multi-byte read
	start := 0
	for start < len(tx)-1 {
		reg, _ = DecodeAddress(tx[start])
		end := start + 1
		for end < len(tx)-1 && tx[end] == tx[start] {
			end++
		}
		if err := port.ReadRegister(reg, rx[start+1:end+1]); err != nil {
			clear(rx)
			return rx, fmt.Errorf("read %s: %w", reg, err)
		}
		start = end
	}
	return rx, nil
}
