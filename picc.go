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
	"encoding/hex"
	"fmt"
	"strings"
)

// UIDLength is the size of a cascade level 1 UID including its check byte
const UIDLength = 5

// UID is a 4-byte card identifier followed by its BCC check byte
type UID [UIDLength]byte

// NewUID builds a UID from an identifier, computing the check byte
func NewUID(id [4]byte) UID {
	return UID{id[0], id[1], id[2], id[3], id[0] ^ id[1] ^ id[2] ^ id[3]}
}

// Valid reports whether the check byte is the XOR of the identifier bytes
func (u UID) Valid() bool {
	return u[0]^u[1]^u[2]^u[3] == u[4]
}

// ID returns the identifier without the check byte
func (u UID) ID() [4]byte {
	return [4]byte{u[0], u[1], u[2], u[3]}
}

// String returns the identifier as upper-case hex, without the check byte
func (u UID) String() string {
	return strings.ToUpper(hex.EncodeToString(u[:4]))
}

// Request selects the short frame used to activate cards
type Request byte

const (
	// RequestIdle (REQA) only wakes cards in the IDLE state
	RequestIdle Request = piccRequestIdle
	// RequestWakeUp (WUPA) also wakes cards that were halted
	RequestWakeUp Request = piccWakeUp
)

// Check looks for a card with REQA and reads its UID through cascade level 1
// anticollision. The returned UID is always Valid when err is nil.
//
// An empty field fails with ErrNoTagDetected. A card that answers REQA with
// anything but a 16-bit ATQA fails with ErrShortResponse. A UID whose check
// byte does not match fails with ErrChecksumMismatch.
func (d *Device) Check() (UID, error) {
	return d.CheckWith(RequestIdle)
}

// CheckWith is Check with an explicit activation frame
func (d *Device) CheckWith(req Request) (UID, error) {
	var uid UID

	if !d.bus.IsReady() {
		return uid, NewTransportNotReadyError("Check", d.config.Name)
	}
	if err := d.request(req); err != nil {
		return uid, err
	}

	d.WriteRegister(BitFramingReg, 0x00)
	resp, err := d.Execute(CommandTransceive, []byte{piccAnticollCL1, piccAnticollNVB})
	if err != nil {
		return uid, err
	}
	if resp.Status == StatusNoTag {
		return uid, ErrNoTagDetected
	}

	if len(resp.Data) < UIDLength {
		return uid, fmt.Errorf("%w: anticollision returned %d bytes", ErrShortResponse, len(resp.Data))
	}

	copy(uid[:], resp.Data)
	if !uid.Valid() {
		Debugf("anticollision returned %X with bad check byte", uid[:])
		return UID{}, fmt.Errorf("%w: got %X", ErrChecksumMismatch, uid[:])
	}

	Debugf("card %s detected", uid)
	return uid, nil
}

// request sends the 7-bit activation frame and validates the ATQA length
func (d *Device) request(req Request) error {
	d.WriteRegister(BitFramingReg, shortFrameBits)

	resp, err := d.Execute(CommandTransceive, []byte{byte(req)})
	if err != nil {
		return err
	}
	if resp.Status == StatusNoTag {
		return ErrNoTagDetected
	}
	if resp.Bits != atqaBits {
		return fmt.Errorf("%w: %s answered with %d bits", ErrShortResponse, requestName(req), resp.Bits)
	}
	return nil
}

func requestName(req Request) string {
	if req == RequestWakeUp {
		return "WUPA"
	}
	return "REQA"
}

// Halt sends HLTA to the selected card and ignores the outcome.
//
// The frame is sent without its CRC_A, so compliant cards do not act on it.
// The polling loop does not depend on the card being halted.
func (d *Device) Halt() {
	_, err := d.Execute(CommandTransceive, []byte{piccHalt, 0x00})
	if err != nil {
		Debugf("halt: %v", err)
	}
}
