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

// Package spi detects MFRC522 readers on Linux spidev buses
package spi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
)

const (
	envDevice   = "MFRC522_SPI_DEVICE"
	envResetPin = "MFRC522_RESET_PIN"

	probeTimeout = 2 * time.Second
)

// Config represents SPI device configuration
type Config struct {
	// Additional metadata
	Metadata map[string]string `json:"metadata,omitempty"`
	// Device path (e.g., "/dev/spidev0.0")
	Device string `json:"device"`
	// Human-readable name
	Name string `json:"name,omitempty"`
	// GPIO driving NRSTPD (e.g., "GPIO25")
	ResetPin string `json:"reset_pin,omitempty"`
}

// ProbeFunc reads VersionReg from the reader described by config
type ProbeFunc func(ctx context.Context, config Config) (mfrc522.ChipVersion, error)

// detector implements the Detector interface for SPI devices
type detector struct {
	probe       ProbeFunc
	configPaths []string
	globPattern string
}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{
		probe:       probeSPIDevice,
		configPaths: defaultConfigPaths(),
		globPattern: "/dev/spidev*",
	}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

func defaultConfigPaths() []string {
	return []string{
		"mfrc522-spi.json",
		".mfrc522-spi.json",
		filepath.Join(os.Getenv("HOME"), ".config", "mfrc522", "spi.json"),
		"/etc/mfrc522/spi.json",
	}
}

// gatherConfigs collects SPI configurations from all sources
func (d *detector) gatherConfigs() []Config {
	var configs []Config

	configs = append(configs, loadConfigFile(d.configPaths)...)

	if envConfig := loadEnvConfig(); envConfig != nil {
		configs = append(configs, *envConfig)
	}

	if runtime.GOOS == "linux" && d.globPattern != "" {
		configs = append(configs, globSPIDevices(d.globPattern)...)
	}

	return deduplicateConfigs(configs)
}

// createDeviceInfo creates a DeviceInfo from a Config
func createDeviceInfo(config Config) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "spi",
		Path:       config.Device,
		Name:       config.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}

	for k, v := range config.Metadata {
		device.Metadata[k] = v
	}
	if config.ResetPin != "" {
		device.Metadata["reset_pin"] = config.ResetPin
	}
	if device.Name == "" {
		device.Name = fmt.Sprintf("SPI device at %s", config.Device)
	}

	return device
}

// Detect searches for MFRC522 readers on SPI buses
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	configs := d.gatherConfigs()
	if len(configs) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo

	for _, config := range configs {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(config.Device, opts.IgnorePaths) {
			continue
		}

		device := createDeviceInfo(config)
		if d.probeAndUpdateDevice(ctx, config, &device, opts) {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// probeAndUpdateDevice reads VersionReg and grades the answer. Every spidev
// node answers something, so 0x00 and 0xFF are treated as nothing attached.
func (d *detector) probeAndUpdateDevice(
	ctx context.Context,
	config Config,
	device *detection.DeviceInfo,
	opts *detection.Options,
) bool {
	if opts.Mode == detection.Passive {
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	version, err := d.probe(probeCtx, config)
	switch {
	case err == nil:
		device.Confidence = detection.High
	case errors.Is(err, mfrc522.ErrUnknownVersion) && version != 0x00 && version != 0xFF:
		device.Confidence = detection.Medium
	default:
		mfrc522.Debugf("spi probe %s: %v", config.Device, err)
		return false
	}

	device.Metadata["version"] = version.String()
	return true
}

// loadConfigFile loads SPI configurations from the first readable JSON file.
// A file may hold a list of configs or a single one.
func loadConfigFile(paths []string) []Config {
	for _, path := range paths {
		// #nosec G304 -- fixed list of locations
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var configs []Config
		if err := json.Unmarshal(data, &configs); err != nil {
			var config Config
			if err := json.Unmarshal(data, &config); err == nil && config.Device != "" {
				return []Config{config}
			}
			continue
		}
		return configs
	}
	return nil
}

// loadEnvConfig loads SPI configuration from environment variables
func loadEnvConfig() *Config {
	device := os.Getenv(envDevice)
	if device == "" {
		return nil
	}
	return &Config{
		Device:   device,
		Name:     "SPI device from environment",
		ResetPin: os.Getenv(envResetPin),
	}
}

// globSPIDevices lists accessible spidev nodes
func globSPIDevices(pattern string) []Config {
	var configs []Config

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return configs
	}
	for _, path := range matches {
		if _, err := os.Stat(path); err == nil {
			configs = append(configs, Config{
				Device: path,
				Name:   fmt.Sprintf("SPI device %s", filepath.Base(path)),
			})
		}
	}
	return configs
}

// deduplicateConfigs keeps the first config per device path
func deduplicateConfigs(configs []Config) []Config {
	seen := make(map[string]bool)
	var unique []Config

	for _, config := range configs {
		if config.Device == "" || seen[config.Device] {
			continue
		}
		seen[config.Device] = true
		unique = append(unique, config)
	}
	return unique
}

// probeSPIDevice opens the port and reads VersionReg without resetting the chip
func probeSPIDevice(ctx context.Context, config Config) (mfrc522.ChipVersion, error) {
	opts := []spi.Option{spi.WithoutInitialReset()}
	if config.ResetPin != "" {
		opts = append(opts, spi.WithResetPin(config.ResetPin))
	}

	bus, err := spi.New(config.Device, opts...)
	if err != nil {
		return 0, err
	}
	defer func() { _ = bus.Close() }()

	return probeBus(ctx, bus)
}

// probeBus reads VersionReg over an open bus
func probeBus(ctx context.Context, bus mfrc522.Bus) (mfrc522.ChipVersion, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	device, err := mfrc522.New(bus)
	if err != nil {
		return 0, err
	}
	return device.Version()
}
