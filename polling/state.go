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

package polling

import (
	"fmt"

	"github.com/ZaparooProject/go-mfrc522"
)

// State is the tracker's belief about the field: Absent, or Present with the
// UID that was last broadcast. The zero value is Absent.
type State struct {
	uid     mfrc522.UID
	present bool
}

// Absent returns the state with no card in the field
func Absent() State {
	return State{}
}

// Present returns the state for a card with the given UID
func Present(uid mfrc522.UID) State {
	return State{uid: uid, present: true}
}

// IsPresent reports whether a card is believed to be in the field
func (s State) IsPresent() bool {
	return s.present
}

// UID returns the card's UID and whether the state is Present
func (s State) UID() (mfrc522.UID, bool) {
	return s.uid, s.present
}

// Same reports whether s is Present with the same identifier bytes as uid
func (s State) Same(uid mfrc522.UID) bool {
	return s.present && s.uid.ID() == uid.ID()
}

func (s State) String() string {
	if !s.present {
		return "Absent"
	}
	return fmt.Sprintf("Present(%s)", s.uid)
}
