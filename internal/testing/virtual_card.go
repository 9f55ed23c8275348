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

package testing

import (
	"encoding/hex"
	"strings"
)

// ISO 14443-3 card states relevant to REQA/WUPA/HLTA
const (
	cardIdle = iota
	cardReady
	cardHalt
)

// PICC frames understood by the virtual card
const (
	piccREQA       = 0x26
	piccWUPA       = 0x52
	piccSelCL1     = 0x93
	piccNVBAnticol = 0x20
	piccHLTA       = 0x50
)

// VirtualCard represents a simulated ISO 14443-A card with a 4-byte UID
type VirtualCard struct {
	// ATQA is returned for REQA/WUPA, two bytes on a real card
	ATQA []byte
	// UID is the 4-byte identifier
	UID [4]byte
	// CorruptBCC makes anticollision return a wrong check byte
	CorruptBCC bool
	state      int
}

// NewVirtualCard creates a virtual MIFARE Classic style card
func NewVirtualCard(uid [4]byte) *VirtualCard {
	return &VirtualCard{
		UID:  uid,
		ATQA: BuildATQA(),
	}
}

// BCC returns the check byte the card sends after its UID
func (c *VirtualCard) BCC() byte {
	bcc := c.UID[0] ^ c.UID[1] ^ c.UID[2] ^ c.UID[3]
	if c.CorruptBCC {
		bcc ^= 0xFF
	}
	return bcc
}

// UIDString returns the UID as upper-case hex
func (c *VirtualCard) UIDString() string {
	return strings.ToUpper(hex.EncodeToString(c.UID[:]))
}

// Halted reports whether the card accepted a HLTA
func (c *VirtualCard) Halted() bool {
	return c.state == cardHalt
}

// respond returns the card's answer to frame, or nil when it stays silent.
// txLastBits is the number of valid bits in the last byte (0 = 8).
func (c *VirtualCard) respond(frame []byte, txLastBits byte) []byte {
	switch {
	case len(frame) == 1 && txLastBits == 7 && frame[0] == piccREQA:
		if c.state == cardHalt {
			return nil
		}
		c.state = cardReady
		return append([]byte(nil), c.ATQA...)

	case len(frame) == 1 && txLastBits == 7 && frame[0] == piccWUPA:
		c.state = cardReady
		return append([]byte(nil), c.ATQA...)

	case len(frame) == 2 && frame[0] == piccSelCL1 && frame[1] == piccNVBAnticol:
		if c.state != cardReady {
			return nil
		}
		return []byte{c.UID[0], c.UID[1], c.UID[2], c.UID[3], c.BCC()}

	case len(frame) == 4 && frame[0] == piccHLTA && frame[1] == 0x00:
		// HLTA with CRC_A appended
		c.state = cardHalt
		return nil

	default:
		// Unknown frames and HLTA without CRC are ignored
		return nil
	}
}

// reset puts the card back in IDLE, as when it re-enters the field
func (c *VirtualCard) reset() {
	c.state = cardIdle
}
