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

// Package polling tracks whether a card is held to the reader and tells a
// broadcaster about every change.
package polling

import (
	"context"
	"errors"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// Reader is the part of mfrc522.Device the tracker drives
type Reader interface {
	Check() (mfrc522.UID, error)
	Halt()
}

// Broadcaster publishes presence changes. id is nil when present is false.
type Broadcaster interface {
	Update(present bool, id *[4]byte) error
}

// Indicator is toggled once per detected card
type Indicator interface {
	Toggle() error
}

// Metrics counts tracker activity
type Metrics struct {
	LastDetection     time.Time
	Checks            uint64
	Detections        uint64
	Removals          uint64
	NoTag             uint64
	Errors            uint64
	BroadcastFailures uint64
	Recoveries        uint64
}

// Tracker polls a Reader and reports presence changes exactly once each.
//
// A new Present(uid) is broadcast when the field was Absent or held a
// different card; Absent is broadcast only after a Present. Repeated reads
// of the same card and repeated empty checks are silent.
type Tracker struct {
	reader         Reader
	broadcaster    Broadcaster
	indicator      Indicator
	recoverer      DeviceRecoverer
	config         *Config
	onCardDetected func(uid mfrc522.UID)
	onCardRemoved  func()
	now            func() time.Time
	lastPoll       time.Time
	state          State
	metrics        Metrics
	mu             syncutil.RWMutex
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithIndicator toggles ind on every detection
func WithIndicator(ind Indicator) TrackerOption {
	return func(t *Tracker) {
		t.indicator = ind
	}
}

// WithRecoverer lets Run re-initialize the reader after sleep or a bus failure
func WithRecoverer(r DeviceRecoverer) TrackerOption {
	return func(t *Tracker) {
		t.recoverer = r
	}
}

// NewTracker creates a tracker in the Absent state
func NewTracker(reader Reader, broadcaster Broadcaster, config *Config, opts ...TrackerOption) (*Tracker, error) {
	if reader == nil || broadcaster == nil {
		return nil, errors.New("tracker needs a reader and a broadcaster")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}

	t := &Tracker{
		reader:      reader,
		broadcaster: broadcaster,
		config:      config,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SetOnCardDetected sets the callback for when a new card is broadcast.
func (t *Tracker) SetOnCardDetected(callback func(mfrc522.UID)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCardDetected = callback
}

// SetOnCardRemoved sets the callback for when removal is broadcast.
func (t *Tracker) SetOnCardRemoved(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCardRemoved = callback
}

// State returns the current presence state
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Metrics returns a snapshot of the counters
func (t *Tracker) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

// Step runs one presence check. The returned status is the outcome of the
// check. A non-nil error means the transport is gone and further steps are
// pointless until it is recovered; every other failure is absorbed.
func (t *Tracker) Step() (mfrc522.Status, error) {
	uid, err := t.reader.Check()
	status := mfrc522.StatusOf(err)

	t.mu.Lock()
	t.metrics.Checks++
	switch status {
	case mfrc522.StatusOK:
	case mfrc522.StatusNoTag:
		t.metrics.NoTag++
	default:
		t.metrics.Errors++
	}
	t.mu.Unlock()

	if status == mfrc522.StatusOK {
		t.cardSeen(uid)
		t.reader.Halt()
		return status, nil
	}

	if status == mfrc522.StatusError {
		mfrc522.Debugf("check failed: %v", err)
	}
	t.cardGone()

	if mfrc522.IsFatal(err) {
		return status, err
	}
	return status, nil
}

func (t *Tracker) cardSeen(uid mfrc522.UID) {
	t.mu.Lock()
	if t.state.Same(uid) {
		t.mu.Unlock()
		return
	}
	t.state = Present(uid)
	t.metrics.Detections++
	t.metrics.LastDetection = t.now()
	callback := t.onCardDetected
	t.mu.Unlock()

	mfrc522.Debugf("card %s present", uid)
	if t.indicator != nil {
		if err := t.indicator.Toggle(); err != nil {
			mfrc522.Debugf("indicator toggle failed: %v", err)
		}
	}

	id := uid.ID()
	t.notify(true, &id)
	if callback != nil {
		callback(uid)
	}
}

func (t *Tracker) cardGone() {
	t.mu.Lock()
	if !t.state.IsPresent() {
		t.mu.Unlock()
		return
	}
	t.state = Absent()
	t.metrics.Removals++
	callback := t.onCardRemoved
	t.mu.Unlock()

	mfrc522.Debugln("card removed")
	t.notify(false, nil)
	if callback != nil {
		callback()
	}
}

func (t *Tracker) notify(present bool, id *[4]byte) {
	if err := t.broadcaster.Update(present, id); err != nil {
		mfrc522.Debugf("broadcast failed: %v", err)
		t.mu.Lock()
		t.metrics.BroadcastFailures++
		t.mu.Unlock()
	}
}

// Run checks immediately and then once per PollInterval until ctx is done.
//
// With a recoverer, a dead transport or a detected host sleep triggers
// recovery; Run returns the recovery error if that fails. Without one, a dead
// transport ends Run with the transport error.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	t.lastPoll = t.now()
	for {
		if err := t.tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) tick(ctx context.Context) error {
	now := t.now()
	elapsed := now.Sub(t.lastPoll)
	t.lastPoll = now

	if t.recoverer != nil && t.config.SleepRecovery.DetectSleep(elapsed, t.config.PollInterval) {
		mfrc522.Debugf("poll gap of %v, re-initializing reader", elapsed)
		if err := t.recover(ctx); err != nil {
			return err
		}
	}

	_, err := t.Step()
	if err == nil {
		return nil
	}
	if t.recoverer == nil {
		return err
	}
	return t.recover(ctx)
}

func (t *Tracker) recover(ctx context.Context) error {
	if err := t.recoverer.AttemptRecovery(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	t.metrics.Recoveries++
	t.mu.Unlock()
	t.reader = t.recoverer.GetReader()
	return nil
}
