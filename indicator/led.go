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

// Package indicator drives the status LED that flips on every detected card
package indicator

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when the named GPIO does not exist
var ErrPinNotFound = errors.New("gpio pin not found")

// LED is an output pin toggled once per detection
type LED struct {
	pin   gpio.PinIO
	mu    syncutil.Mutex
	level gpio.Level
}

// New opens the named GPIO (for example "GPIO17") as an LED that starts lit
func New(pinName string) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, pinName)
	}
	return NewPin(pin, gpio.High)
}

// NewPin wraps an already resolved pin and drives it to initial
func NewPin(pin gpio.PinIO, initial gpio.Level) (*LED, error) {
	if err := pin.Out(initial); err != nil {
		return nil, fmt.Errorf("failed to drive %s: %w", pin, err)
	}
	return &LED{pin: pin, level: initial}, nil
}

// Toggle inverts the LED
func (l *LED) Toggle() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := !l.level
	if err := l.pin.Out(next); err != nil {
		return fmt.Errorf("failed to toggle %s: %w", l.pin, err)
	}
	l.level = next
	return nil
}

// Off drives the LED low
func (l *LED) Off() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to turn off %s: %w", l.pin, err)
	}
	l.level = gpio.Low
	return nil
}

// Level returns the level last driven
func (l *LED) Level() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Nop is an indicator for headless readers
type Nop struct{}

// Toggle does nothing
func (Nop) Toggle() error { return nil }

// Off does nothing
func (Nop) Off() error { return nil }
