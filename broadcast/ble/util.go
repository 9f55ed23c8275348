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

// Package ble publishes the presence payload as BLE manufacturer data and
// listens for it on the host side.
package ble

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ansel1/merry/v2"
)

func deferWrap(err *error) {
	if err != nil && *err != nil {
		*err = merry.WrapSkipping(*err, 1)
	}
}

// catchPanic turns a panic in a BLE stack call into an error
func catchPanic(op string, err *error) {
	if r := recover(); r != nil {
		*err = merry.Errorf("%s panicked: %v", op, r)
	}
}

func logHex(key string, value []byte) slog.Attr {
	return slog.String(key, strings.ToUpper(hex.EncodeToString(value)))
}

func formatCompanyID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}
