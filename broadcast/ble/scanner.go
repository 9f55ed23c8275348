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

package ble

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-mfrc522/broadcast"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"tinygo.org/x/bluetooth"
)

// DefaultDebounceWindow suppresses repeats of the same UID
const DefaultDebounceWindow = 5 * time.Second

// pruned once the debounce table grows past this
const maxTracked = 256

// Scan is one debounced card sighting
type Scan struct {
	Time    time.Time
	UID     string
	Address string
	RSSI    int16
}

// scanAdapter is the subset of *bluetooth.Adapter used here
type scanAdapter interface {
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// Scanner listens for reader advertisements and reports each present UID at
// most once per debounce window. Absent payloads are ignored.
type Scanner struct {
	adapter  scanAdapter
	logger   *slog.Logger
	lastSeen map[string]time.Time
	now      func() time.Time
	name     string
	window   time.Duration
	mu       syncutil.Mutex
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithReaderName filters advertisements by local name (DefaultLocalName)
func WithReaderName(name string) ScannerOption {
	return func(s *Scanner) {
		s.name = name
	}
}

// WithDebounceWindow overrides DefaultDebounceWindow
func WithDebounceWindow(window time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.window = window
	}
}

// WithScanLogger sets the logger, slog.Default() otherwise
func WithScanLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner enables the adapter for scanning
func NewScanner(adapter *bluetooth.Adapter, opts ...ScannerOption) (_ *Scanner, err error) {
	defer deferWrap(&err)

	if adapter == nil {
		return nil, errNilAdapter
	}
	if err = adapter.Enable(); err != nil {
		return nil, err
	}
	return newScanner(adapter, opts...), nil
}

func newScanner(adapter scanAdapter, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		adapter:  adapter,
		name:     DefaultLocalName,
		window:   DefaultDebounceWindow,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans until ctx is done, calling handler for every debounced sighting.
// handler runs on the BLE stack's callback goroutine.
func (s *Scanner) Run(ctx context.Context, handler func(Scan)) (err error) {
	defer deferWrap(&err)

	if err = ctx.Err(); err != nil {
		return err
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			if stopErr := s.adapter.StopScan(); stopErr != nil {
				s.logger.WarnContext(ctx, "stop scan failed", slog.Any("error", stopErr))
			}
		case <-stopped:
		}
	}()

	err = s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		scan, ok := s.observe(result.LocalName(), result.ManufacturerData(), result.RSSI, result.Address.String())
		if ok {
			handler(scan)
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// observe filters and debounces one advertisement
func (s *Scanner) observe(
	name string,
	elements []bluetooth.ManufacturerDataElement,
	rssi int16,
	address string,
) (Scan, bool) {
	if name != s.name {
		return Scan{}, false
	}

	for _, element := range elements {
		if element.CompanyID != broadcast.CompanyID {
			continue
		}
		payload, err := broadcast.DecodeManufacturerData(element.Data)
		if err != nil {
			s.logger.Debug("ignoring advertisement", slog.String("address", address), slog.Any("error", err))
			return Scan{}, false
		}
		if !payload.Present() {
			return Scan{}, false
		}
		return s.debounce(Scan{
			UID:     payload.IDString(),
			RSSI:    rssi,
			Address: address,
			Time:    s.now(),
		})
	}
	return Scan{}, false
}

func (s *Scanner) debounce(scan Scan) (Scan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, seen := s.lastSeen[scan.UID]; seen && scan.Time.Sub(last) < s.window {
		return Scan{}, false
	}
	s.lastSeen[scan.UID] = scan.Time

	if len(s.lastSeen) > maxTracked {
		for uid, last := range s.lastSeen {
			if scan.Time.Sub(last) >= s.window {
				delete(s.lastSeen, uid)
			}
		}
	}
	return scan, true
}
