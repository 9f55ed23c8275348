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

package broadcast

import "github.com/ZaparooProject/go-mfrc522/internal/syncutil"

// Update is one call recorded by Recorder
type Update struct {
	ID      *[4]byte
	Present bool
}

// Recorder is a Broadcaster that keeps every update and the resulting payload
// in memory. Useful for dry runs without a radio.
type Recorder struct {
	// Err, when set, is returned from every Update after recording it
	Err     error
	updates []Update
	payload Payload
	mu      syncutil.Mutex
}

// NewRecorder returns a Recorder holding an Absent payload
func NewRecorder() *Recorder {
	return &Recorder{payload: NewPayload()}
}

// Update records the call and applies it to the payload
func (r *Recorder) Update(present bool, id *[4]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idCopy *[4]byte
	if id != nil {
		c := *id
		idCopy = &c
	}
	r.updates = append(r.updates, Update{Present: present, ID: idCopy})
	r.payload.Apply(present, id)
	return r.Err
}

// Updates returns the recorded calls in order
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

// Payload returns the current payload
func (r *Recorder) Payload() Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payload
}
