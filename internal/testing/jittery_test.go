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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitteryBus_PassThroughWithoutNoise(t *testing.T) {
	t.Parallel()

	sim := NewVirtualMFRC522()
	bus := NewJitteryBus(sim, JitterConfig{Seed: 12345})

	bus.Transceive(EncodeWrite(regMode, 0x3D))
	rx := bus.Transceive(EncodeRead(regMode))

	assert.Equal(t, byte(0x3D), rx[1])
	assert.Equal(t, 0, bus.Flips())
	assert.True(t, bus.IsReady())
}

func TestJitteryBus_CorruptsReads(t *testing.T) {
	t.Parallel()

	sim := NewVirtualMFRC522()
	bus := NewJitteryBus(sim, JitterConfig{Seed: 42, FlipProbability: 1})

	bus.Transceive(EncodeWrite(regMode, 0x3D))
	rx := bus.Transceive(EncodeRead(regMode))

	assert.NotEqual(t, byte(0x3D), rx[1])
	assert.Equal(t, 1, bus.Flips())
	assert.Equal(t, byte(0x3D), sim.Register(regMode), "writes are not corrupted")
}

func TestJitteryBus_OnlyFIFO(t *testing.T) {
	t.Parallel()

	sim := NewVirtualMFRC522()
	bus := NewJitteryBus(sim, JitterConfig{Seed: 7, FlipProbability: 1, OnlyFIFO: true})

	bus.Transceive(EncodeWrite(regMode, 0x3D))
	bus.Transceive(EncodeWrite(regFIFOData, 0xAA))

	assert.Equal(t, byte(0x3D), bus.Transceive(EncodeRead(regMode))[1])
	assert.NotEqual(t, byte(0xAA), bus.Transceive(EncodeRead(regFIFOData))[1])
}

func TestJitteryBus_Reproducible(t *testing.T) {
	t.Parallel()

	run := func() []byte {
		sim := NewVirtualMFRC522()
		bus := NewJitteryBus(sim, JitterConfig{Seed: 99, FlipProbability: 0.5})
		out := make([]byte, 0, 32)
		for i := 0; i < 32; i++ {
			sim.SetRegister(regMode, byte(i))
			out = append(out, bus.Transceive(EncodeRead(regMode))[1])
		}
		return out
	}

	first := run()
	require.Len(t, first, 32)
	assert.Equal(t, first, run())
}

func TestRecordingBus(t *testing.T) {
	t.Parallel()

	sim := NewVirtualMFRC522()
	bus := NewRecordingBus(sim)

	bus.Transceive(EncodeWrite(regMode, 0x3D))
	bus.Transceive(EncodeWrite(regMode, 0x3F))
	bus.Transceive(EncodeRead(regMode))

	log := bus.Log()
	require.Len(t, log, 3)
	assert.Equal(t, byte(regMode), log[0].Register())
	assert.False(t, log[0].IsRead())
	assert.True(t, log[2].IsRead())
	assert.Equal(t, byte(0x3F), log[2].RX[1])

	assert.Equal(t, []byte{0x3D, 0x3F}, bus.Writes(regMode))
	assert.Equal(t, 1, bus.CountReads(regMode))

	bus.ClearLog()
	assert.Empty(t, bus.Log())
}
