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
	"math/rand/v2"
	"time"
)

// Bus is the register bus contract shared with the mfrc522 package
type Bus interface {
	Transceive(tx []byte) []byte
	IsReady() bool
}

// JitterConfig configures the behavior of JitteryBus.
type JitterConfig struct {
	// MaxLatency is the upper bound of a random delay added to each exchange
	MaxLatency time.Duration
	// FlipProbability is the chance, per received data byte, that one bit is
	// flipped (0..1)
	FlipProbability float64
	// Seed makes the noise reproducible; 0 picks a random seed
	Seed uint64
	// OnlyFIFO restricts corruption to FIFODataReg reads, which models noise
	// on the RF side rather than on the SPI wires
	OnlyFIFO bool
}

// DefaultJitterConfig returns a configuration that corrupts about one FIFO
// byte in ten.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		FlipProbability: 0.1,
		OnlyFIFO:        true,
	}
}

// JitteryBus wraps a Bus and corrupts read data at random to simulate a noisy
// link. Writes pass through untouched.
//
// It is useful for checking that integrity checks (UID check byte, ErrorReg)
// hold up under realistic corruption.
type JitteryBus struct {
	backend Bus
	rng     *rand.Rand
	config  JitterConfig
	flips   int
}

// NewJitteryBus wraps backend with jitter simulation.
func NewJitteryBus(backend Bus, config JitterConfig) *JitteryBus {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}

	return &JitteryBus{
		backend: backend,
		config:  config,
		rng:     rng,
	}
}

// Transceive forwards tx and may flip one bit in each data byte of the answer
func (j *JitteryBus) Transceive(tx []byte) []byte {
	if j.config.MaxLatency > 0 {
		if delay := time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)); delay > 0 {
			time.Sleep(delay)
		}
	}

	rx := j.backend.Transceive(tx)
	if len(tx) == 0 || tx[0]&0x80 == 0 {
		return rx
	}
	if j.config.OnlyFIFO && decodeAddress(tx[0]) != regFIFOData {
		return rx
	}

	for i := 1; i < len(rx); i++ {
		if j.rng.Float64() < j.config.FlipProbability {
			rx[i] ^= 1 << j.rng.IntN(8)
			j.flips++
		}
	}
	return rx
}

// IsReady forwards to the backend
func (j *JitteryBus) IsReady() bool {
	return j.backend.IsReady()
}

// Flips returns how many bits were corrupted so far
func (j *JitteryBus) Flips() int {
	return j.flips
}
