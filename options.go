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
	"fmt"
	"time"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithSleep replaces the blocking sleep used for the reset delay and the
// completion poll
func WithSleep(sleep func(time.Duration)) Option {
	return func(d *Device) error {
		if sleep == nil {
			return fmt.Errorf("%w: nil sleep function", ErrInvalidParameter)
		}
		d.config.Sleep = sleep
		return nil
	}
}

// WithPollBudget sets how many ComIrqReg reads a command may take
func WithPollBudget(reads int) Option {
	return func(d *Device) error {
		if reads <= 0 {
			return fmt.Errorf("%w: poll budget must be positive, got %d", ErrInvalidParameter, reads)
		}
		d.config.PollBudget = reads
		return nil
	}
}

// WithPollDelay sets the pause between ComIrqReg reads
func WithPollDelay(delay time.Duration) Option {
	return func(d *Device) error {
		if delay < 0 {
			return fmt.Errorf("%w: negative poll delay", ErrInvalidParameter)
		}
		d.config.PollDelay = delay
		return nil
	}
}

// WithResetDelay sets the wait after a soft reset
func WithResetDelay(delay time.Duration) Option {
	return func(d *Device) error {
		if delay < 0 {
			return fmt.Errorf("%w: negative reset delay", ErrInvalidParameter)
		}
		d.config.ResetDelay = delay
		return nil
	}
}

// WithAntennaGain programs the receiver gain during Init
func WithAntennaGain(gain AntennaGain) Option {
	return func(d *Device) error {
		if byte(gain)&^rxGainMask != 0 {
			return fmt.Errorf("%w: antenna gain 0x%02X", ErrInvalidParameter, byte(gain))
		}
		d.config.AntennaGain = &gain
		return nil
	}
}

// WithName sets the name used in errors and traces
func WithName(name string) Option {
	return func(d *Device) error {
		d.config.Name = name
		return nil
	}
}

// WithTraceSize sets how many register transactions are kept for error
// traces. Zero disables tracing.
func WithTraceSize(entries int) Option {
	return func(d *Device) error {
		if entries < 0 {
			return fmt.Errorf("%w: negative trace size", ErrInvalidParameter)
		}
		d.config.TraceSize = entries
		return nil
	}
}
