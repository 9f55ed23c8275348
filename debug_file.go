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

package mfrc522

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Session log state
var (
	sessionLogFile   *os.File
	sessionLogWriter io.Writer
	sessionLogPath   string
	sessionLines     int
)

// InitSessionLog creates mfrc522_<timestamp>.log in dir (the working
// directory when dir is empty). Every Debugf/Debugln line is copied there
// whether or not console debug output is on. Returns the file path.
func InitSessionLog(dir string) (string, error) {
	name := fmt.Sprintf("mfrc522_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	file, err := os.Create(path) //nolint:gosec // name is built here, dir comes from the operator
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	sessionLogFile, sessionLogWriter, sessionLogPath = file, file, path
	sessionLines = 0
	writeSessionHeader(file)
	return path, nil
}

// LogSessionDevice records the reader a session runs against: the bus name,
// the VersionReg value and the timing the command engine was configured
// with. Does nothing without a session log.
func LogSessionDevice(device *Device, version ChipVersion) {
	if sessionLogWriter == nil || device == nil {
		return
	}
	cfg := device.Config()

	_, _ = fmt.Fprint(sessionLogWriter, "--- Reader ---\n")
	_, _ = fmt.Fprintf(sessionLogWriter, "Bus: %s\n", cfg.Name)
	_, _ = fmt.Fprintf(sessionLogWriter, "Chip: %s (VersionReg 0x%02X)\n", version, byte(version))
	if cfg.AntennaGain != nil {
		_, _ = fmt.Fprintf(sessionLogWriter, "RxGain: 0x%02X\n", byte(*cfg.AntennaGain))
	}
	_, _ = fmt.Fprintf(sessionLogWriter, "Command timeout: %d polls x %s\n", cfg.PollBudget, cfg.PollDelay)
	_, _ = fmt.Fprintf(sessionLogWriter, "Trace depth: %d\n", cfg.TraceSize)
	_, _ = fmt.Fprint(sessionLogWriter, "--------------\n\n")
}

// CloseSessionLog writes the footer and closes the file
func CloseSessionLog() error {
	if sessionLogFile == nil {
		return nil
	}
	_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended (%d debug lines) ===\n",
		time.Now().Format("15:04:05.000"), sessionLines)

	err := sessionLogFile.Close()
	sessionLogFile, sessionLogWriter, sessionLogPath = nil, nil, ""
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log path, "" when none
func GetSessionLogPath() string {
	return sessionLogPath
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprint(w, "=== MFRC522 Debug Session Log ===\n")
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Driver: %s\n", driverVersion())
	_, _ = fmt.Fprintf(w, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "Platform: %s/%s %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(w, "=================================\n\n")
}

// driverVersion reports this module's version from the build info
func driverVersion() string {
	const path = "github.com/ZaparooProject/go-mfrc522"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return path + " (unknown)"
	}
	if info.Main.Path == path {
		return path + " " + info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			return path + " " + dep.Version
		}
	}
	return path + " (unknown)"
}
