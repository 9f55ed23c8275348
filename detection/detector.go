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

// Package detection finds MFRC522 readers attached to the host
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode represents the level of invasiveness for device detection
type Mode int

const (
	// Passive mode only lists candidate device nodes
	Passive Mode = iota
	// Safe mode opens each candidate and reads VersionReg
	Safe
)

// Confidence represents the confidence level of device detection
type Confidence int

const (
	// Low confidence - a bus node exists, nothing answered yet
	Low Confidence = iota
	// Medium confidence - something answered with an unknown version
	Medium
	// High confidence - VersionReg matched a known MFRC522 or clone
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo represents a detected reader
type DeviceInfo struct {
	// Additional metadata (e.g. "version", "reset_pin")
	Metadata map[string]string
	// Transport type, "spi"
	Transport string
	// Connection path (e.g., "/dev/spidev0.0")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options configures the detection behavior
type Options struct {
	// Device paths to explicitly ignore (e.g., ["/dev/spidev0.1"])
	IgnorePaths []string
	// Which transports to check (empty = all)
	Transports []string
	// Cache TTL duration
	CacheTTL time.Duration
	// Maximum time to wait for detection
	Timeout time.Duration
	// Detection invasiveness level
	Mode Mode
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector interface for transport-specific device detection
type Detector interface {
	// Detect searches for devices using the given options
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport returns the transport type this detector handles
	Transport() string
}

// Errors
var (
	// ErrNoDevicesFound indicates no readers were detected
	ErrNoDevicesFound = errors.New("no MFRC522 devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

// registry holds all registered detectors
var registry []Detector

// RegisterDetector adds a detector to the registry
func RegisterDetector(d Detector) {
	registry = append(registry, d)
}

// getDetectors returns detectors filtered by transport types
func getDetectors(detectors []Detector, transports []string) []Detector {
	if len(transports) == 0 {
		return detectors
	}

	var filtered []Detector
	for _, d := range detectors {
		for _, t := range transports {
			if d.Transport() == t {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs every registered detector in parallel
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return detectWith(ctx, registry, opts)
}

func detectWith(ctx context.Context, all []Detector, opts *Options) ([]DeviceInfo, error) {
	detectors := getDetectors(all, opts.Transports)
	if len(detectors) == 0 {
		return nil, errors.New("no detectors available for specified transports")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, detector := range detectors {
		go func(d Detector) {
			results <- runSingleDetector(ctx, d, opts)
		}(detector)
	}
	return collectDetectionResults(ctx, results, len(detectors))
}

// runSingleDetector performs detection for a single detector
func runSingleDetector(ctx context.Context, detector Detector, opts *Options) detectionResult {
	if opts.EnableCache {
		if cached, found := getCached(detector.Transport(), opts.CacheTTL); found {
			// cached results bypass Detect, so apply IgnorePaths here
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := detector.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectionResult{err: err}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(detector.Transport(), devices)
		} else {
			// a disconnected reader must not linger until TTL expiry
			clearCacheForTransport(detector.Transport())
		}
	}

	return detectionResult{devices: devices}
}

// collectDetectionResults gathers results from all detector goroutines
func collectDetectionResults(
	ctx context.Context,
	results chan detectionResult,
	numDetectors int,
) ([]DeviceInfo, error) {
	var allDevices []DeviceInfo
	var errs []error

	for range numDetectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
			} else {
				allDevices = append(allDevices, res.devices...)
			}
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	// Return devices even if some detectors failed
	if len(allDevices) > 0 {
		return allDevices, nil
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return nil, ErrNoDevicesFound
}

// filterDevices applies IgnorePaths to a device list
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}

// ClearDetectionCacheForTransport removes cached results for a specific transport
func ClearDetectionCacheForTransport(transport string) {
	clearCacheForTransport(transport)
}
