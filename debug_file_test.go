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
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cleanupSessionLog resets session log state.
// Must be called in test cleanup to avoid state leakage between tests.
func cleanupSessionLog(t *testing.T) {
	t.Helper()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	sessionLines = 0
}

func TestInitSessionLog_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { cleanupSessionLog(t) })

	path, err := InitSessionLog(dir)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "Log file should exist")

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^mfrc522_\d{8}_\d{6}\.log$`), filepath.Base(path))
	assert.Equal(t, path, GetSessionLogPath())
}

func TestInitSessionLog_HeaderAndFooter(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { cleanupSessionLog(t) })

	path, err := InitSessionLog(dir)
	require.NoError(t, err)

	Debugf("card %s detected", NewUID([4]byte{0x11, 0x22, 0x33, 0x44}))
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	contentStr := string(content)
	assert.Contains(t, contentStr, "=== MFRC522 Debug Session Log ===")
	assert.Contains(t, contentStr, "Driver: github.com/ZaparooProject/go-mfrc522")
	assert.Contains(t, contentStr, "PID:")
	assert.Contains(t, contentStr, "Platform:")
	assert.Contains(t, contentStr, "DEBUG: card 11223344 detected")
	assert.Contains(t, contentStr, "=== Session ended (1 debug lines) ===")
	assert.Empty(t, GetSessionLogPath())
}

func TestInitSessionLog_BadDirectory(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })

	_, err := InitSessionLog(filepath.Join(t.TempDir(), "missing", "dir"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session log")
}

func TestCloseSessionLog_NilFile(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })
	cleanupSessionLog(t)

	assert.NoError(t, CloseSessionLog())
}

func TestLogSessionDevice(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })

	path, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)

	device, err := New(namedBus{virt.NewVirtualMFRC522()},
		WithAntennaGain(AntennaGain48dB), WithPollBudget(100), WithPollDelay(20*time.Microsecond))
	require.NoError(t, err)

	LogSessionDevice(device, VersionV2)
	require.NoError(t, CloseSessionLog())

	content, err := os.ReadFile(path) //nolint:gosec // path is from InitSessionLog
	require.NoError(t, err)

	contentStr := string(content)
	assert.Contains(t, contentStr, "Bus: /dev/spidev0.0\n")
	assert.Contains(t, contentStr, "Chip: MFRC522 v2.0 (VersionReg 0x92)\n")
	assert.Contains(t, contentStr, "RxGain: 0x70\n")
	assert.Contains(t, contentStr, "Command timeout: 100 polls x 20µs\n")
	assert.Contains(t, contentStr, "Trace depth: 32\n")
}

func TestLogSessionDevice_NoSession(t *testing.T) {
	t.Cleanup(func() { cleanupSessionLog(t) })
	cleanupSessionLog(t)

	device, err := New(virt.NewVirtualMFRC522())
	require.NoError(t, err)

	assert.NotPanics(t, func() { LogSessionDevice(device, VersionV1) })
	assert.NotPanics(t, func() { LogSessionDevice(nil, VersionV1) })
}
