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
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// TransactionLogEntry records one bus exchange
type TransactionLogEntry struct {
	Timestamp time.Time
	TX        []byte
	RX        []byte
}

// Register returns the register addressed by the exchange
func (e TransactionLogEntry) Register() byte {
	if len(e.TX) == 0 {
		return 0
	}
	return decodeAddress(e.TX[0])
}

// IsRead reports whether the exchange was a register read
func (e TransactionLogEntry) IsRead() bool {
	return len(e.TX) > 0 && e.TX[0]&0x80 != 0
}

// RecordingBus wraps a Bus and logs every exchange for test verification.
type RecordingBus struct {
	backend Bus
	log     []TransactionLogEntry
	mu      syncutil.Mutex
}

// NewRecordingBus creates a logging wrapper around backend
func NewRecordingBus(backend Bus) *RecordingBus {
	return &RecordingBus{
		backend: backend,
		log:     make([]TransactionLogEntry, 0),
	}
}

// Transceive forwards tx to the backend and records both directions
func (r *RecordingBus) Transceive(tx []byte) []byte {
	rx := r.backend.Transceive(tx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, TransactionLogEntry{
		TX:        append([]byte(nil), tx...),
		RX:        append([]byte(nil), rx...),
		Timestamp: time.Now(),
	})
	return rx
}

// IsReady forwards to the backend
func (r *RecordingBus) IsReady() bool {
	return r.backend.IsReady()
}

// Log returns a copy of the exchange log
func (r *RecordingBus) Log() []TransactionLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransactionLogEntry, len(r.log))
	copy(out, r.log)
	return out
}

// ClearLog empties the exchange log
func (r *RecordingBus) ClearLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = make([]TransactionLogEntry, 0)
}

// Writes returns the values written to reg, in order
func (r *RecordingBus) Writes(reg byte) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []byte
	for _, entry := range r.log {
		if !entry.IsRead() && entry.Register() == reg {
			values = append(values, entry.TX[1:]...)
		}
	}
	return values
}

// CountReads returns how many times reg was read
func (r *RecordingBus) CountReads(reg byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, entry := range r.log {
		if entry.IsRead() && entry.Register() == reg {
			count++
		}
	}
	return count
}
