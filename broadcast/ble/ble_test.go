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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522/broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

type fakeAdvertisement struct {
	configureErr error
	startErr     error
	panicOn      int
	configs      []bluetooth.AdvertisementOptions
	calls        []string
	running      bool
}

func (f *fakeAdvertisement) Configure(options bluetooth.AdvertisementOptions) error {
	f.calls = append(f.calls, "configure")
	if f.panicOn > 0 && len(f.configs)+1 == f.panicOn {
		panic("advertisement already configured")
	}
	if f.configureErr != nil {
		return f.configureErr
	}
	f.configs = append(f.configs, options)
	return nil
}

func (f *fakeAdvertisement) Start() error {
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeAdvertisement) Stop() error {
	f.calls = append(f.calls, "stop")
	f.running = false
	return nil
}

func (f *fakeAdvertisement) last() bluetooth.AdvertisementOptions {
	return f.configs[len(f.configs)-1]
}

func TestNewAdvertiser_StartsAbsent(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertisement{}

	a, err := newAdvertiser(adv)
	require.NoError(t, err)

	assert.Equal(t, []string{"configure", "start"}, adv.calls)
	assert.True(t, adv.running)
	opts := adv.last()
	assert.Equal(t, "RFID_Reader", opts.LocalName)
	assert.Equal(t, bluetooth.NewDuration(100*time.Millisecond), opts.Interval)
	require.Len(t, opts.ManufacturerData, 1)
	assert.Equal(t, uint16(0xFFFF), opts.ManufacturerData[0].CompanyID)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00}, opts.ManufacturerData[0].Data)
	assert.False(t, a.Payload().Present())
}

func TestAdvertiser_Update(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertisement{}
	a, err := newAdvertiser(adv, WithLocalName("door"), WithInterval(time.Second))
	require.NoError(t, err)

	id := [4]byte{0x11, 0x22, 0x33, 0x44}
	require.NoError(t, a.Update(true, &id))

	assert.Equal(t, []string{"configure", "start", "stop", "configure", "start"}, adv.calls)
	opts := adv.last()
	assert.Equal(t, "door", opts.LocalName)
	assert.Equal(t, bluetooth.NewDuration(time.Second), opts.Interval)
	assert.Equal(t, []byte{0x01, 0x11, 0x22, 0x33, 0x44}, opts.ManufacturerData[0].Data)
	assert.Equal(t, "present 11223344", a.Payload().String())

	require.NoError(t, a.Update(false, nil))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00}, adv.last().ManufacturerData[0].Data)
}

func TestAdvertiser_UpdateErrors(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertisement{}
	a, err := newAdvertiser(adv)
	require.NoError(t, err)

	adv.startErr = errors.New("bluez: not permitted")
	id := [4]byte{0x11, 0x22, 0x33, 0x44}
	err = a.Update(true, &id)

	require.ErrorIs(t, err, adv.startErr)
	assert.True(t, a.Payload().Present(), "payload kept for the next publish")

	adv.startErr = nil
	require.NoError(t, a.Update(true, &id))
	assert.True(t, adv.running)
}

func TestAdvertiser_ConfigurePanicBecomesError(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertisement{panicOn: 2}
	a, err := newAdvertiser(adv)
	require.NoError(t, err)

	err = a.Update(false, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "advertisement configure panicked")
}

func TestNewAdvertiser_ConfigureError(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertisement{configureErr: errors.New("too long")}

	_, err := newAdvertiser(adv)

	require.Error(t, err)
	assert.NotContains(t, adv.calls, "start")
}

func TestNewAdvertiser_NilAdapter(t *testing.T) {
	t.Parallel()

	_, err := NewAdvertiser(nil)
	require.ErrorIs(t, err, errNilAdapter)

	_, err = NewScanner(nil)
	require.ErrorIs(t, err, errNilAdapter)
}

func TestAdvertiser_Stop(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertisement{}
	a, err := newAdvertiser(adv)
	require.NoError(t, err)

	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
	assert.Equal(t, []string{"configure", "start", "stop"}, adv.calls)
	assert.False(t, adv.running)
}

func mfg(data ...byte) []bluetooth.ManufacturerDataElement {
	return []bluetooth.ManufacturerDataElement{{CompanyID: broadcast.CompanyID, Data: data}}
}

func TestScanner_Observe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		advName  string
		elements []bluetooth.ManufacturerDataElement
		want     string
		ok       bool
	}{
		{name: "Present", advName: "RFID_Reader", elements: mfg(0x01, 0xDE, 0xAD, 0xBE, 0xEF), want: "DEADBEEF", ok: true},
		{name: "Absent", advName: "RFID_Reader", elements: mfg(0x00, 0x00, 0x00, 0x00, 0x00)},
		{name: "OtherName", advName: "Headphones", elements: mfg(0x01, 0xDE, 0xAD, 0xBE, 0xEF)},
		{name: "Malformed", advName: "RFID_Reader", elements: mfg(0x01, 0xDE)},
		{
			name:    "OtherCompany",
			advName: "RFID_Reader",
			elements: []bluetooth.ManufacturerDataElement{
				{CompanyID: 0x004C, Data: []byte{0x01, 0xDE, 0xAD, 0xBE, 0xEF}},
			},
		},
		{
			name:    "SecondElement",
			advName: "RFID_Reader",
			elements: append([]bluetooth.ManufacturerDataElement{{CompanyID: 0x004C, Data: []byte{0x02}}},
				mfg(0x01, 0x11, 0x22, 0x33, 0x44)...),
			want: "11223344",
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newScanner(&fakeScanAdapter{})
			scan, ok := s.observe(tt.advName, tt.elements, -61, "AA:BB:CC:DD:EE:FF")

			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, scan.UID)
				assert.Equal(t, int16(-61), scan.RSSI)
				assert.Equal(t, "AA:BB:CC:DD:EE:FF", scan.Address)
			}
		})
	}
}

func TestScanner_Debounce(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s := newScanner(&fakeScanAdapter{}, WithReaderName("door"))
	s.now = func() time.Time { return clock }

	seen := func(data ...byte) bool {
		_, ok := s.observe("door", mfg(data...), -50, "addr")
		return ok
	}

	assert.True(t, seen(0x01, 0x11, 0x22, 0x33, 0x44))
	clock = clock.Add(time.Second)
	assert.False(t, seen(0x01, 0x11, 0x22, 0x33, 0x44), "repeat within window")
	assert.True(t, seen(0x01, 0xDE, 0xAD, 0xBE, 0xEF), "other UID unaffected")
	clock = clock.Add(4 * time.Second)
	assert.True(t, seen(0x01, 0x11, 0x22, 0x33, 0x44), "window elapsed")
}

func TestScanner_DebounceTablePruned(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s := newScanner(&fakeScanAdapter{}, WithDebounceWindow(time.Second))
	s.now = func() time.Time { return clock }

	for i := range maxTracked + 1 {
		_, ok := s.observe(DefaultLocalName, mfg(0x01, 0x00, 0x00, byte(i>>8), byte(i)), -50, "addr")
		require.True(t, ok)
	}
	clock = clock.Add(2 * time.Second)
	_, ok := s.observe(DefaultLocalName, mfg(0x01, 0xFF, 0xFF, 0xFF, 0xFF), -50, "addr")
	require.True(t, ok)

	assert.Len(t, s.lastSeen, 1)
}

type fakeScanAdapter struct {
	stop    chan struct{}
	scanErr error
	once    sync.Once
}

func (f *fakeScanAdapter) Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	<-f.stop
	return nil
}

func (f *fakeScanAdapter) StopScan() error {
	f.once.Do(func() { close(f.stop) })
	return nil
}

func TestScanner_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	adapter := &fakeScanAdapter{stop: make(chan struct{})}
	s := newScanner(adapter)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func(Scan) {}) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScanner_RunScanError(t *testing.T) {
	t.Parallel()

	scanErr := errors.New("adapter busy")
	s := newScanner(&fakeScanAdapter{scanErr: scanErr})

	err := s.Run(context.Background(), func(Scan) {})

	require.ErrorIs(t, err, scanErr)
}
