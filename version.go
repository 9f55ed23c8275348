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

// ChipVersion is the content of VersionReg
type ChipVersion byte

// Known VersionReg values
const (
	VersionV1          ChipVersion = 0x91
	VersionV2          ChipVersion = 0x92
	VersionFM17522     ChipVersion = 0x88
	VersionCounterfeit ChipVersion = 0x12
)

// String returns a human-readable chip name
func (v ChipVersion) String() string {
	switch v {
	case VersionV1:
		return "MFRC522 v1.0"
	case VersionV2:
		return "MFRC522 v2.0"
	case VersionFM17522:
		return "FM17522 clone"
	case VersionCounterfeit:
		return "MFRC522 counterfeit"
	default:
		return fmt.Sprintf("unknown (0x%02X)", byte(v))
	}
}

// Known reports whether v is one of the recognised chip versions
func (v ChipVersion) Known() bool {
	switch v {
	case VersionV1, VersionV2, VersionFM17522, VersionCounterfeit:
		return true
	default:
		return false
	}
}

// Version reads VersionReg. An unrecognised value is returned together with
// ErrUnknownVersion; 0x00 and 0xFF usually mean nothing is wired to the bus.
func (d *Device) Version() (ChipVersion, error) {
	if !d.bus.IsReady() {
		return 0, NewTransportNotReadyError("Version", d.config.Name)
	}
	v := ChipVersion(d.ReadRegister(VersionReg))
	if !v.Known() {
		return v, fmt.Errorf("%w: 0x%02X", ErrUnknownVersion, byte(v))
	}
	return v, nil
}
