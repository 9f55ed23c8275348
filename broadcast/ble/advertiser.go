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
	"errors"
	"log/slog"
	"time"

	"github.com/ZaparooProject/go-mfrc522/broadcast"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"tinygo.org/x/bluetooth"
)

const (
	// DefaultLocalName is the advertised complete local name
	DefaultLocalName = "RFID_Reader"

	// advertising interval, matching the BLE fast advertising range
	defaultInterval = 100 * time.Millisecond
)

var errNilAdapter = errors.New("nil bluetooth adapter")

// advertisement is the subset of *bluetooth.Advertisement used here
type advertisement interface {
	Configure(options bluetooth.AdvertisementOptions) error
	Start() error
	Stop() error
}

// Advertiser is a polling.Broadcaster that re-publishes the presence payload
// as manufacturer data on every update
type Advertiser struct {
	adv      advertisement
	logger   *slog.Logger
	name     string
	interval time.Duration
	payload  broadcast.Payload
	mu       syncutil.Mutex
	started  bool
}

// AdvertiserOption configures an Advertiser
type AdvertiserOption func(*Advertiser)

// WithLocalName overrides DefaultLocalName
func WithLocalName(name string) AdvertiserOption {
	return func(a *Advertiser) {
		a.name = name
	}
}

// WithInterval sets the advertising interval
func WithInterval(interval time.Duration) AdvertiserOption {
	return func(a *Advertiser) {
		a.interval = interval
	}
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(logger *slog.Logger) AdvertiserOption {
	return func(a *Advertiser) {
		a.logger = logger
	}
}

// NewAdvertiser enables the adapter and starts advertising an Absent payload
func NewAdvertiser(adapter *bluetooth.Adapter, opts ...AdvertiserOption) (_ *Advertiser, err error) {
	defer deferWrap(&err)

	if adapter == nil {
		return nil, errNilAdapter
	}
	if err = adapter.Enable(); err != nil {
		return nil, err
	}
	return newAdvertiser(adapter.DefaultAdvertisement(), opts...)
}

func newAdvertiser(adv advertisement, opts ...AdvertiserOption) (*Advertiser, error) {
	a := &Advertiser{
		adv:      adv,
		name:     DefaultLocalName,
		interval: defaultInterval,
		payload:  broadcast.NewPayload(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.publish(); err != nil {
		return nil, err
	}
	return a, nil
}

// Update applies the presence change and re-publishes the advertisement
func (a *Advertiser) Update(present bool, id *[4]byte) (err error) {
	defer deferWrap(&err)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.payload.Apply(present, id)
	return a.publish()
}

// Payload returns the payload currently being advertised
func (a *Advertiser) Payload() broadcast.Payload {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.payload
}

// Stop stops advertising
func (a *Advertiser) Stop() (err error) {
	defer deferWrap(&err)

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false
	return a.adv.Stop()
}

// publish restarts the advertisement with the current payload. BlueZ cannot
// change a registered advertisement in place, so it is stopped first.
func (a *Advertiser) publish() (err error) {
	defer catchPanic("advertisement configure", &err)

	if a.started {
		if err = a.adv.Stop(); err != nil {
			return err
		}
		a.started = false
	}

	err = a.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName: a.name,
		Interval:  bluetooth.NewDuration(a.interval),
		ManufacturerData: []bluetooth.ManufacturerDataElement{{
			CompanyID: broadcast.CompanyID,
			Data:      a.payload.ManufacturerData(),
		}},
	})
	if err != nil {
		return err
	}
	if err = a.adv.Start(); err != nil {
		return err
	}
	a.started = true

	a.logger.Debug("advertising",
		slog.String("name", a.name),
		slog.String("company", formatCompanyID(broadcast.CompanyID)),
		logHex("data", a.payload.ManufacturerData()))
	return nil
}
