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
	"strings"
	"syscall"
	"time"
)

// Error categories
var (
	// Transport errors
	ErrTransportNotReady = errors.New("transport not ready")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportClosed   = errors.New("transport is closed")

	// Protocol errors - the polling loop recovers from these on the next cycle
	ErrTimeout          = errors.New("command timeout")
	ErrTransmission     = errors.New("transmission error")
	ErrChecksumMismatch = errors.New("UID checksum mismatch")
	ErrShortResponse    = errors.New("unexpected response length")
	ErrNoTagDetected    = errors.New("no tag detected")

	// Device errors
	ErrUnknownVersion   = errors.New("unknown chip version")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType represents the category of error for recovery decisions
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ChipError reports a fault flagged by the MFRC522 in ErrorReg after a command
// completed. It unwraps to ErrTransmission.
type ChipError struct {
	Command  Command
	ErrorReg byte
}

func (e *ChipError) Error() string {
	return fmt.Sprintf("%s error 0x%02X (%s)", e.Command, e.ErrorReg, errorRegMeaning(e.ErrorReg))
}

func (*ChipError) Unwrap() error {
	return ErrTransmission
}

// IsCollision returns true if the chip saw a bit collision
func (e *ChipError) IsCollision() bool {
	return e.ErrorReg&0x08 != 0
}

// IsBufferOverflow returns true if the FIFO overflowed
func (e *ChipError) IsBufferOverflow() bool {
	return e.ErrorReg&0x10 != 0
}

// errorRegMeaning decodes ErrorReg bits (datasheet table 9.3.1.7)
func errorRegMeaning(value byte) string {
	flags := []struct {
		name string
		bit  byte
	}{
		{"protocol error", 0x01},
		{"parity error", 0x02},
		{"CRC error", 0x04},
		{"collision", 0x08},
		{"buffer overflow", 0x10},
		{"temperature error", 0x40},
		{"write error", 0x80},
	}
	var parts []string
	for _, f := range flags {
		if value&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "no error"
	}
	return strings.Join(parts, ", ")
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransmission),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrShortResponse),
		errors.Is(err, ErrNoTagDetected):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the bus is gone and the device
// cannot be used until it is reopened
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Error constructors for consistent error creation

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for a command that never completed
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTimeout, ErrorTypeTimeout)
}

// NewTransportWriteError creates a bus write error (transient)
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransportWrite, cause), ErrorTypeTransient)
}

// NewTransportNotReadyError creates a transport not ready error (permanent)
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypePermanent)
}

// NewTransportClosedError creates a transport closed error (permanent)
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds register-level trace data in errors, allowing consumer
// applications to see the last bus transactions of a failed command.

// TraceDirection indicates the direction of a register transaction
type TraceDirection string

const (
	// TraceTX indicates a register write
	TraceTX TraceDirection = "TX"
	// TraceRX indicates a register read
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single register transaction
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with register-level trace data for debugging.
//
//	var te *mfrc522.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Port  string
	Trace []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s] Wire trace (%d entries):\n", e.Port, len(e.Trace))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", direction, formatHexBytes(entry.Data), entry.Note)
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects register transactions during a command.
// It keeps only the most recent maxSize entries.
type TraceBuffer struct {
	port    string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 32
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		port:    port,
	}
}

// RecordTX records a register write
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records a register read
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

// record adds an entry to the buffer, evicting oldest if full
func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries
func (tb *TraceBuffer) Entries() []TraceEntry {
	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)
	return entriesCopy
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:   err,
		Trace: tb.Entries(),
		Port:  tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
