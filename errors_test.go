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
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("Transceive", "/dev/spidev0.0")

	assert.Equal(t, "Transceive /dev/spidev0.0: command timeout", err.Error())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, ErrorTypeTimeout, err.Type)
	assert.True(t, err.Retryable)

	noPort := NewTransportError("Init", "", ErrTransportNotReady, ErrorTypePermanent)
	assert.Equal(t, "Init: transport not ready", noPort.Error())
	assert.False(t, noPort.Retryable)
}

func TestTransportWriteError(t *testing.T) {
	t.Parallel()

	cause := errors.New("spi: tx failed")
	err := NewTransportWriteError("Tx", "spi0", cause)

	assert.ErrorIs(t, err, ErrTransportWrite)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
}

func TestChipError(t *testing.T) {
	t.Parallel()

	err := &ChipError{Command: CommandTransceive, ErrorReg: 0x18}

	assert.ErrorIs(t, err, ErrTransmission)
	assert.True(t, err.IsCollision())
	assert.True(t, err.IsBufferOverflow())
	assert.Equal(t, "Transceive error 0x18 (collision, buffer overflow)", err.Error())

	parity := &ChipError{Command: CommandTransceive, ErrorReg: 0x02}
	assert.False(t, parity.IsCollision())
	assert.Contains(t, parity.Error(), "parity error")
}

func TestErrorRegMeaning(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no error", errorRegMeaning(0x00))
	assert.Equal(t, "protocol error, parity error, collision, buffer overflow", errorRegMeaning(0x1B))
	assert.Equal(t, "temperature error, write error", errorRegMeaning(0xC0))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "Nil", err: nil, want: false},
		{name: "Timeout", err: ErrTimeout, want: true},
		{name: "Transmission", err: &ChipError{ErrorReg: 0x08}, want: true},
		{name: "Checksum", err: fmt.Errorf("%w: got 00", ErrChecksumMismatch), want: true},
		{name: "ShortResponse", err: ErrShortResponse, want: true},
		{name: "NoTag", err: ErrNoTagDetected, want: true},
		{name: "NotReady", err: NewTransportNotReadyError("Init", "spi0"), want: false},
		{name: "InvalidParameter", err: ErrInvalidParameter, want: false},
		{name: "Other", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "Nil", err: nil, want: false},
		{name: "NotReady", err: NewTransportNotReadyError("Init", "spi0"), want: true},
		{name: "Closed", err: NewTransportClosedError("Tx", "spi0"), want: true},
		{name: "ClosedSentinel", err: fmt.Errorf("tx: %w", ErrTransportClosed), want: true},
		{name: "ClosedPipe", err: io.ErrClosedPipe, want: true},
		{name: "ENODEV", err: fmt.Errorf("open: %w", syscall.ENODEV), want: true},
		{name: "EIO", err: syscall.EIO, want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: false},
		{name: "Timeout", err: NewTimeoutError("Transceive", "spi0"), want: false},
		{name: "Checksum", err: ErrChecksumMismatch, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestTraceBuffer(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("spi0", 3)
	tb.RecordTX([]byte{0x02, 0x0C}, "CommandReg")
	tb.RecordRX([]byte{0x88, 0x30}, "ComIrqReg")
	tb.RecordTX([]byte{0x12, 0x26}, "FIFODataReg")
	tb.RecordTimeout("Transceive")

	entries := tb.Entries()
	require.Len(t, entries, 3, "oldest entry evicted")
	assert.Equal(t, "ComIrqReg", entries[0].Note)
	assert.Equal(t, TraceRX, entries[2].Direction)
	assert.Nil(t, tb.WrapError(nil))

	err := tb.WrapError(ErrTimeout)
	require.ErrorIs(t, err, ErrTimeout)

	trace := GetTrace(err)
	require.NotNil(t, trace)
	assert.Equal(t, "spi0", trace.Port)
	assert.Equal(t, ErrTimeout.Error(), trace.Error())

	formatted := trace.FormatTrace()
	assert.Contains(t, formatted, "[spi0] Wire trace (3 entries):")
	assert.Contains(t, formatted, "< 88 30 (ComIrqReg)")
	assert.Contains(t, formatted, "> 12 26 (FIFODataReg)")
	assert.Contains(t, formatted, "< (empty) (TIMEOUT: Transceive)")

	tb.Clear()
	assert.Empty(t, tb.Entries())
}

func TestTraceBuffer_CopiesData(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("spi0", 0)
	data := []byte{0x02, 0x0C}
	tb.RecordTX(data, "")
	data[1] = 0xFF

	entries := tb.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []byte{0x02, 0x0C}, entries[0].Data)
	assert.Contains(t, entries[0].String(), "TX: 02 0C")
}

func TestGetTrace_NoTrace(t *testing.T) {
	t.Parallel()

	assert.Nil(t, GetTrace(ErrTimeout))
	assert.Equal(t, "[spi0] (no trace data)", (&TraceableError{Port: "spi0", Err: ErrTimeout}).FormatTrace())
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusNoTag, StatusOf(ErrNoTagDetected))
	assert.Equal(t, StatusNoTag, StatusOf(fmt.Errorf("check: %w", ErrNoTagDetected)))
	assert.Equal(t, StatusError, StatusOf(ErrTimeout))
	assert.Equal(t, StatusError, StatusOf(&ChipError{ErrorReg: 0x01}))
	assert.Equal(t, StatusError, StatusOf(ErrChecksumMismatch))

	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "NoTag", StatusNoTag.String())
	assert.Equal(t, "Error", StatusError.String())
	assert.Equal(t, "Unknown", Status(9).String())
}
