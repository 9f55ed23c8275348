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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		value   byte
		unknown bool
	}{
		{name: "V1", value: 0x91, want: "MFRC522 v1.0"},
		{name: "V2", value: 0x92, want: "MFRC522 v2.0"},
		{name: "Clone", value: 0x88, want: "FM17522 clone"},
		{name: "Counterfeit", value: 0x12, want: "MFRC522 counterfeit"},
		{name: "NothingWired", value: 0x00, want: "unknown (0x00)", unknown: true},
		{name: "FloatingBus", value: 0xFF, want: "unknown (0xFF)", unknown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, sim := newTestDevice(t)
			sim.SetVersion(tt.value)

			version, err := device.Version()

			assert.Equal(t, ChipVersion(tt.value), version)
			assert.Equal(t, tt.want, version.String())
			if tt.unknown {
				require.ErrorIs(t, err, ErrUnknownVersion)
				assert.False(t, version.Known())
				return
			}
			require.NoError(t, err)
			assert.True(t, version.Known())
		})
	}
}

func TestVersion_NotReady(t *testing.T) {
	t.Parallel()

	device, sim := newTestDevice(t)
	sim.SetReady(false)

	_, err := device.Version()

	require.ErrorIs(t, err, ErrTransportNotReady)
}
