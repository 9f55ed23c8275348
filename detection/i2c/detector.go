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

// Package i2c detects MFRC522 readers on Linux I2C buses
package i2c

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/i2c"
)

const (
	envDevice = "MFRC522_I2C_DEVICE"

	probeTimeout = time.Second
)

// candidateAddresses covers the EA-high range, where ADR_0..ADR_2 select
// one of eight addresses above 0x28
var candidateAddresses = []uint16{0x28, 0x29, 0x2A, 0x2B, 0x2C, 0x2D, 0x2E, 0x2F}

// ProbeFunc reads VersionReg from the chip at addr on busName
type ProbeFunc func(ctx context.Context, busName string, addr uint16) (mfrc522.ChipVersion, error)

type detector struct {
	probe       ProbeFunc
	globPattern string
	addresses   []uint16
}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{
		probe:       probeI2CDevice,
		globPattern: "/dev/i2c-*",
		addresses:   candidateAddresses,
	}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect searches for MFRC522 readers on I2C buses. Paths carry the address,
// as in "/dev/i2c-1:0x28", which transport/i2c accepts directly.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	var devices []detection.DeviceInfo

	if env := os.Getenv(envDevice); env != "" {
		busName, addr, err := i2c.ParsePath(env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envDevice, err)
		}
		if device, ok := d.check(ctx, busName, addr, opts); ok {
			device.Name = "I2C device from environment"
			devices = append(devices, device)
		}
	}

	if runtime.GOOS == "linux" {
		for _, busName := range globBuses(d.globPattern) {
			found, err := d.scanBus(ctx, busName, opts)
			devices = append(devices, found...)
			if err != nil {
				return devices, err
			}
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return deduplicate(devices), nil
}

// scanBus checks every candidate address on one bus. Passive mode reports
// the bus once at the default address without touching it.
func (d *detector) scanBus(
	ctx context.Context,
	busName string,
	opts *detection.Options,
) ([]detection.DeviceInfo, error) {
	if opts.Mode == detection.Passive {
		if device, ok := d.check(ctx, busName, i2c.DefaultAddress, opts); ok {
			return []detection.DeviceInfo{device}, nil
		}
		return nil, nil
	}

	var devices []detection.DeviceInfo
	for _, addr := range d.addresses {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}
		if device, ok := d.check(ctx, busName, addr, opts); ok {
			devices = append(devices, device)
		}
	}
	return devices, nil
}

// check builds the DeviceInfo for one address and probes it unless passive
func (d *detector) check(
	ctx context.Context,
	busName string,
	addr uint16,
	opts *detection.Options,
) (detection.DeviceInfo, bool) {
	path := fmt.Sprintf("%s:0x%02X", busName, addr)
	device := detection.DeviceInfo{
		Transport:  "i2c",
		Path:       path,
		Name:       fmt.Sprintf("I2C device at %s", path),
		Confidence: detection.Low,
		Metadata:   map[string]string{"address": fmt.Sprintf("0x%02X", addr)},
	}

	if detection.IsPathIgnored(path, opts.IgnorePaths) || detection.IsPathIgnored(busName, opts.IgnorePaths) {
		return device, false
	}
	if opts.Mode == detection.Passive {
		return device, true
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// an empty address NACKs, which surfaces as a bus error here
	version, err := d.probe(probeCtx, busName, addr)
	switch {
	case err == nil:
		device.Confidence = detection.High
	case errors.Is(err, mfrc522.ErrUnknownVersion) && version != 0x00 && version != 0xFF:
		device.Confidence = detection.Medium
	default:
		return device, false
	}
	device.Metadata["version"] = version.String()
	return device, true
}

func globBuses(pattern string) []string {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var buses []string
	for _, path := range matches {
		if _, err := os.Stat(path); err == nil {
			buses = append(buses, path)
		}
	}
	return buses
}

func deduplicate(devices []detection.DeviceInfo) []detection.DeviceInfo {
	seen := make(map[string]bool)
	var unique []detection.DeviceInfo
	for _, device := range devices {
		if seen[device.Path] {
			continue
		}
		seen[device.Path] = true
		unique = append(unique, device)
	}
	return unique
}

// probeI2CDevice opens the bus at addr and reads VersionReg
func probeI2CDevice(ctx context.Context, busName string, addr uint16) (mfrc522.ChipVersion, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	bus, err := i2c.New(busName, i2c.WithAddress(addr))
	if err != nil {
		return 0, err
	}
	defer func() { _ = bus.Close() }()

	device, err := mfrc522.New(bus)
	if err != nil {
		return 0, err
	}
	version, err := device.Version()
	if busErr := bus.Err(); busErr != nil {
		return 0, busErr
	}
	return version, err
}
