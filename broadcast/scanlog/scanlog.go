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

// Package scanlog persists debounced reader sightings and maps reader
// addresses to production-line stations.
//
// The log is an append-only file with one JSON object per line, so several
// scanner runs can share it and a partially written last line never spoils
// the records before it.
package scanlog

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/ansel1/merry/v2"
)

// Record is one logged sighting
type Record struct {
	Time    time.Time `json:"timestamp"`
	UID     string    `json:"uid"`
	MAC     string    `json:"mac_address"`
	Station string    `json:"station,omitempty"`
	RSSI    int16     `json:"rssi"`
}

// Log appends records to a JSON-lines file
type Log struct {
	file *os.File
	w    *bufio.Writer
	enc  *json.Encoder
	mu   syncutil.Mutex
}

// Open opens path for appending, creating it if needed
func Open(path string) (*Log, error) {
	// #nosec G304 -- path comes from the operator
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, merry.Wrap(err, merry.AppendMessagef("open scan log %s", path))
	}
	w := bufio.NewWriter(file)
	return &Log{file: file, w: w, enc: json.NewEncoder(w)}, nil
}

// Append writes one record and flushes it to the file
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return merry.New("scan log is closed")
	}
	if err := l.enc.Encode(rec); err != nil {
		return merry.Wrap(err)
	}
	if err := l.w.Flush(); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

// Close flushes and closes the file. Safe to call twice.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	flushErr := l.w.Flush()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return merry.Wrap(flushErr)
	}
	if closeErr != nil {
		return merry.Wrap(closeErr)
	}
	return nil
}

// Read decodes every complete record in r. A malformed trailing line is
// dropped; a malformed line followed by valid ones is an error.
func Read(r io.Reader) ([]Record, error) {
	var (
		records []Record
		pending error
	)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if pending != nil {
			return nil, pending
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			pending = merry.Wrap(err, merry.AppendMessagef("scan log line %d", line))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, merry.Wrap(err)
	}
	return records, nil
}

// ReadFile reads all records from path
func ReadFile(path string) ([]Record, error) {
	// #nosec G304 -- path comes from the operator
	file, err := os.Open(path)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}
