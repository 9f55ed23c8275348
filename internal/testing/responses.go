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

// Sample UIDs for tests
var (
	// TestCardUID is the UID used by the presence tracking examples
	TestCardUID = [4]byte{0x11, 0x22, 0x33, 0x44}

	// TestMIFARE1KUID is a sample MIFARE Classic 1K UID
	TestMIFARE1KUID = [4]byte{0xDE, 0xAD, 0xBE, 0xEF}

	// TestZeroUID XORs to a zero check byte
	TestZeroUID = [4]byte{0x00, 0x00, 0x00, 0x00}
)

// BuildAnticollisionResponse returns the 5-byte answer a card gives to
// SEL CL1 with NVB 0x20
func BuildAnticollisionResponse(uid [4]byte) []byte {
	return []byte{uid[0], uid[1], uid[2], uid[3], uid[0] ^ uid[1] ^ uid[2] ^ uid[3]}
}

// BuildATQA returns the ATQA of a MIFARE Classic 1K
func BuildATQA() []byte {
	return []byte{0x04, 0x00}
}

// EncodeWrite builds the two-byte SPI frame that writes value to reg
func EncodeWrite(reg, value byte) []byte {
	return []byte{(reg << 1) & 0x7E, value}
}

// EncodeRead builds the two-byte SPI frame that reads reg
func EncodeRead(reg byte) []byte {
	return []byte{(reg<<1)&0x7E | 0x80, 0x00}
}
