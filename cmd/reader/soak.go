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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/polling"
)

// SoakReport summarizes a run of back-to-back presence checks. It is meant
// for judging wiring and antenna placement with a card held on the reader.
type SoakReport struct {
	UIDs         map[string]int `json:"uids"`
	FirstError   string         `json:"first_error,omitempty"`
	Duration     time.Duration  `json:"duration_ns"`
	Checks       int            `json:"checks"`
	OK           int            `json:"ok"`
	NoTag        int            `json:"no_tag"`
	Timeouts     int            `json:"timeouts"`
	Checksum     int            `json:"checksum_mismatches"`
	Transmission int            `json:"transmission_errors"`
	Short        int            `json:"short_responses"`
	OtherErrors  int            `json:"other_errors"`
}

// SuccessRate is the share of checks that read a UID
func (r *SoakReport) SuccessRate() float64 {
	if r.Checks == 0 {
		return 0
	}
	return float64(r.OK) / float64(r.Checks)
}

func (r *SoakReport) record(uid mfrc522.UID, err error) {
	r.Checks++
	switch {
	case err == nil:
		r.OK++
		r.UIDs[uid.String()]++
		return
	case errors.Is(err, mfrc522.ErrNoTagDetected):
		r.NoTag++
		return
	case errors.Is(err, mfrc522.ErrTimeout):
		r.Timeouts++
	case errors.Is(err, mfrc522.ErrChecksumMismatch):
		r.Checksum++
	case errors.Is(err, mfrc522.ErrTransmission):
		r.Transmission++
	case errors.Is(err, mfrc522.ErrShortResponse):
		r.Short++
	default:
		r.OtherErrors++
	}
	if r.FirstError == "" {
		r.FirstError = err.Error()
	}
}

// soak runs n checks, halting after every successful read like the
// tracker does. A fatal bus error ends the run early.
func soak(ctx context.Context, reader polling.Reader, n int) (*SoakReport, error) {
	report := &SoakReport{UIDs: make(map[string]int)}
	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	for range n {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		uid, err := reader.Check()
		report.record(uid, err)
		if err == nil {
			reader.Halt()
			continue
		}
		if mfrc522.IsFatal(err) {
			return report, err
		}
	}
	return report, nil
}

func runSoak(ctx context.Context, reader polling.Reader, n int, out io.Writer) error {
	_, _ = fmt.Fprintf(out, "Running %d checks...\n", n)

	report, err := soak(ctx, reader, n)

	data, jsonErr := json.MarshalIndent(report, "", "  ")
	if jsonErr != nil {
		return fmt.Errorf("failed to encode soak report: %w", jsonErr)
	}
	_, _ = fmt.Fprintf(out, "%s\n", data)
	_, _ = fmt.Fprintf(out, "Success rate: %.1f%%\n", report.SuccessRate()*100)
	return err
}
