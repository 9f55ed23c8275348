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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/broadcast"
	"github.com/ZaparooProject/go-mfrc522/broadcast/ble"
	"github.com/ZaparooProject/go-mfrc522/detection"
	_ "github.com/ZaparooProject/go-mfrc522/detection/i2c"
	_ "github.com/ZaparooProject/go-mfrc522/detection/spi"
	"github.com/ZaparooProject/go-mfrc522/indicator"
	"github.com/ZaparooProject/go-mfrc522/polling"
	"github.com/ZaparooProject/go-mfrc522/transport/i2c"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
	"github.com/ZaparooProject/go-mfrc522/transport/uart"
	"tinygo.org/x/bluetooth"
)

type config struct {
	transport  string
	devicePath string
	resetPin   string
	ledPin     string
	logDir     string
	gain       string
	interval   time.Duration
	soak       int
	noBLE      bool
	debug      bool
}

// Package-level flag variables
var (
	flagTransport  string
	flagDevicePath string
	flagResetPin   string
	flagLEDPin     string
	flagLogDir     string
	flagGain       string
	flagInterval   time.Duration
	flagSoak       int
	flagNoBLE      bool
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagTransport, "transport", "spi", "Host interface: spi, i2c or uart")
	flag.StringVar(&flagDevicePath, "device", "", "Device path, e.g. /dev/spidev0.0, /dev/i2c-1:0x28 or /dev/ttyUSB0 (auto-detect if empty)")
	flag.StringVar(&flagResetPin, "reset-pin", "", "GPIO wired to NRSTPD, e.g. GPIO25")
	flag.StringVar(&flagLEDPin, "led", "", "GPIO driving the status LED, e.g. GPIO17")
	flag.StringVar(&flagLogDir, "log-dir", "", "Write a session log file to this directory")
	flag.StringVar(&flagGain, "gain", "", "Receiver gain: 18, 23, 33, 38, 43 or 48 dB")
	flag.DurationVar(&flagInterval, "interval", 100*time.Millisecond, "Pause between presence checks")
	flag.IntVar(&flagSoak, "soak", 0, "Run this many checks, print a JSON report and exit")
	flag.BoolVar(&flagNoBLE, "no-ble", false, "Print presence changes instead of advertising them")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		transport:  flagTransport,
		devicePath: flagDevicePath,
		resetPin:   flagResetPin,
		ledPin:     flagLEDPin,
		logDir:     flagLogDir,
		gain:       flagGain,
		interval:   flagInterval,
		soak:       flagSoak,
		noBLE:      flagNoBLE,
		debug:      flagDebug,
	}

	if cfg.debug {
		mfrc522.SetDebugEnabled(true)
	}

	return cfg
}

var gains = map[string]mfrc522.AntennaGain{
	"18": mfrc522.AntennaGain18dB,
	"23": mfrc522.AntennaGain23dB,
	"33": mfrc522.AntennaGain33dB,
	"38": mfrc522.AntennaGain38dB,
	"43": mfrc522.AntennaGain43dB,
	"48": mfrc522.AntennaGain48dB,
}

func deviceOptions(cfg *config) ([]mfrc522.Option, error) {
	var opts []mfrc522.Option
	if cfg.gain != "" {
		gain, ok := gains[cfg.gain]
		if !ok {
			return nil, fmt.Errorf("unsupported gain %q", cfg.gain)
		}
		opts = append(opts, mfrc522.WithAntennaGain(gain))
	}
	return opts, nil
}

// resolveDevice returns the SPI path and reset pin to use, auto-detecting
// when no path was given
func resolveDevice(ctx context.Context, cfg *config) (path, resetPin string, err error) {
	if cfg.devicePath != "" {
		return cfg.devicePath, cfg.resetPin, nil
	}
	if cfg.transport == "uart" {
		return "", "", fmt.Errorf("-device is required for %s", cfg.transport)
	}

	if cfg.debug {
		_, _ = fmt.Println("Auto-detecting MFRC522 devices...")
	}
	opts := detection.DefaultOptions()
	opts.Transports = []string{cfg.transport}
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return "", "", fmt.Errorf("auto-detection failed: %w", err)
	}

	best := devices[0]
	for _, d := range devices[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	if cfg.debug {
		_, _ = fmt.Printf("Using %s\n", best)
	}

	resetPin = cfg.resetPin
	if resetPin == "" {
		resetPin = best.Metadata["reset_pin"]
	}
	return best.Path, resetPin, nil
}

// closableBus is a Bus the reader owns and closes on exit
type closableBus interface {
	mfrc522.Bus
	Close() error
}

func openBus(cfg *config, path, resetPin string) (closableBus, error) {
	switch cfg.transport {
	case "spi":
		var opts []spi.Option
		if resetPin != "" {
			opts = append(opts, spi.WithResetPin(resetPin))
		}
		return spi.New(path, opts...)
	case "i2c":
		return i2c.New(path)
	case "uart":
		return uart.New(path)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.transport)
	}
}

// openDevice opens the bus, initializes the chip and reports its version
func openDevice(ctx context.Context, cfg *config, path, resetPin string) (*mfrc522.Device, closableBus, error) {
	bus, err := openBus(cfg, path, resetPin)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	device, err := initDevice(ctx, cfg, bus)
	if err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return device, bus, nil
}

func initDevice(ctx context.Context, cfg *config, bus mfrc522.Bus) (*mfrc522.Device, error) {
	opts, err := deviceOptions(cfg)
	if err != nil {
		return nil, err
	}
	device, err := mfrc522.New(bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	if err := device.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize MFRC522: %w", err)
	}

	version, err := device.Version()
	if err != nil {
		// clones with odd version bytes usually still work
		_, _ = fmt.Fprintf(os.Stderr, "Warning: %v (%s)\n", err, version)
	} else if cfg.debug {
		_, _ = fmt.Printf("Chip: %s\n", version)
	}
	mfrc522.LogSessionDevice(device, version)
	return device, nil
}

// printer is the broadcaster used with -no-ble
type printer struct {
	payload broadcast.Payload
}

func (p *printer) Update(present bool, id *[4]byte) error {
	p.payload.Apply(present, id)
	_, _ = fmt.Printf("Payload: % X\n", p.payload.Bytes())
	return nil
}

func newBroadcaster(cfg *config) (polling.Broadcaster, func(), error) {
	if cfg.noBLE {
		return &printer{payload: broadcast.NewPayload()}, func() {}, nil
	}
	adv, err := ble.NewAdvertiser(bluetooth.DefaultAdapter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start advertising: %w", err)
	}
	return adv, func() {
		if err := adv.Stop(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to stop advertising: %v\n", err)
		}
	}, nil
}

func newIndicator(cfg *config) (polling.Indicator, func(), error) {
	if cfg.ledPin == "" {
		return indicator.Nop{}, func() {}, nil
	}
	led, err := indicator.New(cfg.ledPin)
	if err != nil {
		return nil, nil, err
	}
	return led, func() { _ = led.Off() }, nil
}

// serve runs the presence tracker until ctx is done
func serve(
	ctx context.Context,
	cfg *config,
	reader polling.Reader,
	broadcaster polling.Broadcaster,
	opts ...polling.TrackerOption,
) error {
	trackerCfg := polling.DefaultConfig()
	trackerCfg.PollInterval = cfg.interval

	tracker, err := polling.NewTracker(reader, broadcaster, trackerCfg, opts...)
	if err != nil {
		return err
	}
	tracker.SetOnCardDetected(func(uid mfrc522.UID) {
		_, _ = fmt.Printf("Card detected: UID=%s\n", uid)
	})
	tracker.SetOnCardRemoved(func() {
		_, _ = fmt.Println("Card removed - ready for next card...")
	})

	_, _ = fmt.Println("Watching for cards. Press Ctrl+C to stop...")
	err = tracker.Run(ctx)

	m := tracker.Metrics()
	if cfg.debug {
		_, _ = fmt.Printf("Checks: %d, detections: %d, errors: %d, broadcast failures: %d\n",
			m.Checks, m.Detections, m.Errors, m.BroadcastFailures)
	}
	return err
}

func run(ctx context.Context, cfg *config) error {
	if cfg.logDir != "" {
		path, err := mfrc522.InitSessionLog(cfg.logDir)
		if err != nil {
			return err
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = mfrc522.CloseSessionLog() }()
	}

	path, resetPin, err := resolveDevice(ctx, cfg)
	if err != nil {
		return err
	}
	device, bus, err := openDevice(ctx, cfg, path, resetPin)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close bus: %v\n", err)
		}
	}()

	if cfg.soak > 0 {
		return runSoak(ctx, device, cfg.soak, os.Stdout)
	}

	broadcaster, stopBroadcast, err := newBroadcaster(cfg)
	if err != nil {
		return err
	}
	defer stopBroadcast()

	ind, stopIndicator, err := newIndicator(cfg)
	if err != nil {
		return err
	}
	defer stopIndicator()

	// reopening keeps the original path; the old bus is closed first
	reopen := func(ctx context.Context) (*mfrc522.Device, error) {
		_ = bus.Close()
		newDevice, newBus, err := openDevice(ctx, cfg, path, resetPin)
		if err != nil {
			return nil, err
		}
		bus = newBus
		return newDevice, nil
	}
	recoverer := polling.NewDefaultRecoverer(device, reopen, 0, 0)

	return serve(ctx, cfg, device, broadcaster,
		polling.WithIndicator(ind),
		polling.WithRecoverer(recoverer))
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
