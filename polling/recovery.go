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

package polling

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// DeviceRecoverer brings the reader back after sleep/wake or a bus failure
type DeviceRecoverer interface {
	// AttemptRecovery tries to recover the device.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error

	// GetReader returns the current reader (may change after reconnection)
	GetReader() Reader
}

// ReopenFunc opens the bus again and returns an initialized device
type ReopenFunc func(ctx context.Context) (*mfrc522.Device, error)

// DefaultRecoverer implements a tiered recovery strategy:
// 1. Re-run Init on the existing device and confirm VersionReg answers
// 2. Full reconnection via user-provided reopen function
type DefaultRecoverer struct {
	device      *mfrc522.Device
	reopenFunc  ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer with tiered recovery strategy.
// If reopenFunc is nil, only re-initialization will be attempted.
func NewDefaultRecoverer(
	device *mfrc522.Device,
	reopenFunc ReopenFunc,
	backoff time.Duration,
	maxAttempts int,
) *DefaultRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &DefaultRecoverer{
		device:      device,
		reopenFunc:  reopenFunc,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// AttemptRecovery implements tiered recovery
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		// Tier 1: reprogram the chip over the same bus
		err := reinit(ctx, r.device)
		if err == nil {
			mfrc522.Debugf("recovery: re-initialized %s", r.device.Config().Name)
			return nil
		}
		lastErr = err

		// Tier 2: full reconnection (if reopenFunc provided)
		if r.reopenFunc != nil {
			newDevice, reopenErr := r.reopenFunc(ctx)
			if reopenErr == nil {
				r.device = newDevice
				mfrc522.Debugf("recovery: reopened %s", newDevice.Config().Name)
				return nil
			}
			lastErr = reopenErr
		}
		mfrc522.Debugf("recovery attempt %d/%d failed: %v", attempt+1, r.maxAttempts, lastErr)
	}

	return fmt.Errorf("recovery failed after %d attempts: %w", r.maxAttempts, lastErr)
}

func reinit(ctx context.Context, device *mfrc522.Device) error {
	if err := device.Init(ctx); err != nil {
		return err
	}
	_, err := device.Version()
	return err
}

// GetReader returns the current device.
// This may return a different device after a successful reconnection.
func (r *DefaultRecoverer) GetReader() Reader {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}
