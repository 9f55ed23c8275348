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

package regio

import (
	"errors"
	"testing"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type access struct {
	data []byte
	reg  mfrc522.Register
	read bool
	n    int
}

type fakePort struct {
	values map[mfrc522.Register]byte
	err    error
	log    []access
}

func newFakePort() *fakePort {
	return &fakePort{values: make(map[mfrc522.Register]byte)}
}

func (p *fakePort) ReadRegister(reg mfrc522.Register, buf []byte) error {
	p.log = append(p.log, access{reg: reg, read: true, n: len(buf)})
	if p.err != nil {
		return p.err
	}
	for i := range buf {
		buf[i] = p.values[reg] + byte(i)
	}
	return nil
}

func (p *fakePort) WriteRegister(reg mfrc522.Register, data []byte) error {
	p.log = append(p.log, access{reg: reg, data: append([]byte(nil), data...)})
	if p.err != nil {
		return p.err
	}
	p.values[reg] = data[len(data)-1]
	return nil
}

func TestDecodeAddress(t *testing.T) {
	t.Parallel()

	for reg := mfrc522.Register(0); reg <= 0x3F; reg++ {
		got, read := DecodeAddress(mfrc522.EncodeAddress(reg, true))
		assert.Equal(t, reg, got)
		assert.True(t, read)

		got, read = DecodeAddress(mfrc522.EncodeAddress(reg, false))
		assert.Equal(t, reg, got)
		assert.False(t, read)
	}
}

func TestExchange_Write(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	tx := []byte{mfrc522.EncodeAddress(mfrc522.FIFODataReg, false), 0x93, 0x20}

	rx, err := Exchange(port, tx)

	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, rx)
	require.Len(t, port.log, 1)
	assert.Equal(t, mfrc522.FIFODataReg, port.log[0].reg)
	assert.Equal(t, []byte{0x93, 0x20}, port.log[0].data)
}

func TestExchange_SingleRead(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	port.values[mfrc522.VersionReg] = 0x92

	rx, err := Exchange(port, []byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})

	require.NoError(t, err)
	assert.Equal(t, byte(0x92), rx[1])
}

func TestExchange_GroupsRepeatedReads(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	port.values[mfrc522.FIFODataReg] = 0x10
	port.values[mfrc522.ErrorReg] = 0x40
	fifo := mfrc522.EncodeAddress(mfrc522.FIFODataReg, true)
	errReg := mfrc522.EncodeAddress(mfrc522.ErrorReg, true)

	rx, err := Exchange(port, []byte{fifo, fifo, fifo, errReg, 0x00})

	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x10, 0x11, 0x12, 0x40}, rx)
	require.Len(t, port.log, 2)
	assert.Equal(t, 3, port.log[0].n)
	assert.Equal(t, mfrc522.ErrorReg, port.log[1].reg)
	assert.Equal(t, 1, port.log[1].n)
}

func TestExchange_Errors(t *testing.T) {
	t.Parallel()

	port := newFakePort()
	port.values[mfrc522.VersionReg] = 0x92
	port.err = errors.New("bus stuck")

	rx, err := Exchange(port, []byte{mfrc522.EncodeAddress(mfrc522.VersionReg, true), 0x00})
	require.ErrorIs(t, err, port.err)
	assert.Contains(t, err.Error(), "read VersionReg")
	assert.Equal(t, []byte{0, 0}, rx)

	_, err = Exchange(port, []byte{mfrc522.EncodeAddress(mfrc522.CommandReg, false), 0x0F})
	require.ErrorIs(t, err, port.err)
	assert.Contains(t, err.Error(), "write CommandReg")
}

func TestExchange_ShortFrame(t *testing.T) {
	t.Parallel()

	port := newFakePort()

	rx, err := Exchange(port, []byte{0x80})

	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, rx)
	assert.Empty(t, port.log)
}
