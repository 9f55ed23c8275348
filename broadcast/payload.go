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

// Package broadcast builds the 7-byte presence payload published by the
// reader and decodes it on the receiving side.
package broadcast

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// CompanyID is the Bluetooth SIG company identifier reserved for testing
	CompanyID uint16 = 0xFFFF

	// PayloadSize is the full payload length including the company ID
	PayloadSize = 7

	statusOffset = 2
	idOffset     = 3
)

// ErrMalformedPayload is returned for manufacturer data that is not a
// presence payload
var ErrMalformedPayload = errors.New("malformed presence payload")

// Payload is the broadcast layout: company ID (2 bytes, little endian),
// status (0 absent, 1 present), then the 4 identifier bytes or zeroes.
type Payload [PayloadSize]byte

// NewPayload returns an Absent payload
func NewPayload() Payload {
	return Payload{byte(CompanyID & 0xFF), byte(CompanyID >> 8)}
}

// Apply writes the presence status and identifier. id is ignored when
// present is false.
func (p *Payload) Apply(present bool, id *[4]byte) {
	if present && id != nil {
		p[statusOffset] = 0x01
		copy(p[idOffset:], id[:])
		return
	}
	p[statusOffset] = 0x00
	clear(p[idOffset:])
}

// Present reports the status byte
func (p Payload) Present() bool {
	return p[statusOffset] == 0x01
}

// ID returns the identifier bytes and whether a card is present
func (p Payload) ID() ([4]byte, bool) {
	var id [4]byte
	copy(id[:], p[idOffset:])
	return id, p.Present()
}

// IDString returns the identifier as upper-case hex, or "" when absent
func (p Payload) IDString() string {
	id, ok := p.ID()
	if !ok {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// Bytes returns a copy of the full payload
func (p Payload) Bytes() []byte {
	return append([]byte(nil), p[:]...)
}

// ManufacturerData returns the bytes after the company ID, the form BLE
// stacks take and deliver manufacturer-specific data in
func (p Payload) ManufacturerData() []byte {
	return append([]byte(nil), p[statusOffset:]...)
}

// DecodeManufacturerData parses the data following the company ID
func DecodeManufacturerData(data []byte) (Payload, error) {
	if len(data) != PayloadSize-statusOffset {
		return Payload{}, fmt.Errorf("%w: %d bytes", ErrMalformedPayload, len(data))
	}
	if data[0] > 0x01 {
		return Payload{}, fmt.Errorf("%w: status 0x%02X", ErrMalformedPayload, data[0])
	}
	p := NewPayload()
	copy(p[statusOffset:], data)
	return p, nil
}

func (p Payload) String() string {
	if !p.Present() {
		return "absent"
	}
	return "present " + p.IDString()
}
