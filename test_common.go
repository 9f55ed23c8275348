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

//go:build !prod

package mfrc522

import (
	"context"
	"testing"
	"time"

	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/require"
)

// noSleep replaces time.Sleep so timeouts run without wall-clock waits
func noSleep(time.Duration) {}

// newTestDevice creates an initialised device on a virtual MFRC522 with the
// antenna on and no card in the field.
func newTestDevice(t *testing.T, opts ...Option) (*Device, *virt.VirtualMFRC522) {
	t.Helper()

	sim := virt.NewVirtualMFRC522()
	device, err := New(sim, append([]Option{WithSleep(noSleep)}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, device.Init(context.Background()))
	sim.ResetCounters()
	return device, sim
}

// newTestDeviceWithCard is newTestDevice with a card carrying uid in the field
func newTestDeviceWithCard(t *testing.T, uid [4]byte) (*Device, *virt.VirtualMFRC522, *virt.VirtualCard) {
	t.Helper()

	device, sim := newTestDevice(t)
	card := virt.NewVirtualCard(uid)
	sim.PlaceCard(card)
	return device, sim, card
}
