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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-mfrc522/broadcast/ble"
	"github.com/ZaparooProject/go-mfrc522/broadcast/scanlog"
	"tinygo.org/x/bluetooth"
)

type config struct {
	name     string
	logPath  string
	stations string
	debounce time.Duration
	debug    bool
	report   bool
}

// Package-level flag variables
var (
	flagName     string
	flagLog      string
	flagStations string
	flagDebounce time.Duration
	flagDebug    bool
	flagReport   bool
)

func init() {
	flag.StringVar(&flagName, "name", ble.DefaultLocalName, "Advertised local name of the readers")
	flag.DurationVar(&flagDebounce, "debounce", ble.DefaultDebounceWindow, "Suppress repeats of the same UID within this window")
	flag.BoolVar(&flagDebug, "debug", false, "Log every matching advertisement")
	flag.StringVar(&flagLog, "log", "", "Append every sighting to this JSON-lines file")
	flag.StringVar(&flagStations, "stations", "", "JSON file mapping reader MAC addresses to station names")
	flag.BoolVar(&flagReport, "report", false, "Print today's per-station counts from -log and exit")
}

func parseConfig() *config {
	return &config{
		name:     flagName,
		logPath:  flagLog,
		stations: flagStations,
		debounce: flagDebounce,
		debug:    flagDebug,
		report:   flagReport,
	}
}

func formatScan(scan ble.Scan, station string) string {
	line := fmt.Sprintf("READER DETECTED! Signal: %ddBm | UID: %s | MAC: %s",
		scan.RSSI, scan.UID, scan.Address)
	if station != "" {
		line += " | Station: " + station
	}
	return line
}

// sink prints each sighting and, with -log, appends it to the scan log
type sink struct {
	out      io.Writer
	log      *scanlog.Log
	stations *scanlog.Stations
}

func (s *sink) handle(scan ble.Scan) error {
	station := ""
	if s.stations != nil {
		station = s.stations.Lookup(scan.Address)
	}
	_, _ = fmt.Fprintf(s.out, "[%s] %s\n", scan.Time.Format(time.TimeOnly), formatScan(scan, station))

	if s.log == nil {
		return nil
	}
	return s.log.Append(scanlog.Record{
		Time:    scan.Time,
		UID:     scan.UID,
		MAC:     scan.Address,
		RSSI:    scan.RSSI,
		Station: station,
	})
}

func loadStations(cfg *config) (*scanlog.Stations, error) {
	if cfg.stations == "" {
		return nil, nil
	}
	stations, err := scanlog.LoadStations(cfg.stations)
	if err != nil {
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}
	return stations, nil
}

// report prints the per-station counts for day
func report(out io.Writer, records []scanlog.Record, stations *scanlog.Stations, day time.Time) {
	tally := stations.Count(records, day)

	_, _ = fmt.Fprintf(out, "Production for %s\n", tally.Day.Format(time.DateOnly))
	for _, station := range tally.Stations {
		marker := ""
		if station.Name == stations.Final {
			marker = " (final)"
		}
		_, _ = fmt.Fprintf(out, "  %-24s %d%s\n", station.Name, station.Count, marker)
	}
	if stations.Final == "" {
		return
	}
	_, _ = fmt.Fprintf(out, "Units finished: %d\n", tally.Finished)
	for hour, count := range tally.Hourly {
		if count > 0 {
			_, _ = fmt.Fprintf(out, "  %02d:00 %d\n", hour, count)
		}
	}
}

func runReport(cfg *config, out io.Writer, now time.Time) error {
	if cfg.logPath == "" || cfg.stations == "" {
		return errors.New("-report needs both -log and -stations")
	}
	stations, err := loadStations(cfg)
	if err != nil {
		return err
	}
	records, err := scanlog.ReadFile(cfg.logPath)
	if err != nil {
		return fmt.Errorf("failed to read scan log: %w", err)
	}
	report(out, records, stations, now)
	return nil
}

func scannerOptions(cfg *config, logOut io.Writer) []ble.ScannerOption {
	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return []ble.ScannerOption{
		ble.WithReaderName(cfg.name),
		ble.WithDebounceWindow(cfg.debounce),
		ble.WithScanLogger(logger),
	}
}

func run(ctx context.Context, cfg *config) error {
	if cfg.report {
		return runReport(cfg, os.Stdout, time.Now())
	}

	stations, err := loadStations(cfg)
	if err != nil {
		return err
	}
	out := &sink{out: os.Stdout, stations: stations}
	if cfg.logPath != "" {
		out.log, err = scanlog.Open(cfg.logPath)
		if err != nil {
			return fmt.Errorf("failed to open scan log: %w", err)
		}
		defer func() { _ = out.log.Close() }()
	}

	scanner, err := ble.NewScanner(bluetooth.DefaultAdapter, scannerOptions(cfg, os.Stderr)...)
	if err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	_, _ = fmt.Printf("Scanning for %q readers. Press Ctrl+C to stop...\n", cfg.name)
	return scanner.Run(ctx, func(scan ble.Scan) {
		if err := out.handle(scan); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	})
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
