//go:build deadlock

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

// Package syncutil provides the mutex types used across the module.
// This file is compiled when building with -tags=deadlock and reports lock
// cycles and locks held longer than DeadlockTimeout.
package syncutil

import (
	"os"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockTimeout is how long a lock may be waited on before go-deadlock
// reports it. A tracker tick holds no lock across a full command poll, so
// anything near this is a bug. Override with MFRC522_DEADLOCK_TIMEOUT.
const DeadlockTimeout = 10 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = DeadlockTimeout
	if v := os.Getenv("MFRC522_DEADLOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			deadlock.Opts.DeadlockTimeout = d
		}
	}
}

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}

// Enabled reports whether deadlock detection is compiled in
const Enabled = true
