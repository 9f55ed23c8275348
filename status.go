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

import "errors"

// Status is the outcome of a protocol operation
type Status int

const (
	// StatusOK means the exchange completed and the data is valid
	StatusOK Status = iota
	// StatusNoTag means the chip flagged its no-tag timer
	StatusNoTag
	// StatusError means the exchange failed (timeout, chip fault, bad checksum
	// or unexpected response)
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoTag:
		return "NoTag"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// StatusOf collapses an operation error to its outcome
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNoTagDetected):
		return StatusNoTag
	default:
		return StatusError
	}
}
