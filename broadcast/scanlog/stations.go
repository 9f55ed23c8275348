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

package scanlog

import (
	"encoding/json"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ansel1/merry/v2"
)

// Unknown is reported for addresses missing from the station table
const Unknown = "Unknown"

// Stations maps reader MAC addresses to station names. Several readers may
// share a station. Final names the station whose sightings count as finished
// units; Order lists the stations in line order.
type Stations struct {
	Readers map[string]string `json:"readers"`
	Final   string            `json:"final,omitempty"`
	Order   []string          `json:"order,omitempty"`
}

// LoadStations reads a station table from a JSON file:
//
//	{
//	  "readers": {"C1:D0:91:F8:35:0C": "Station 1", "DD:05:25:D1:A1:0C": "Station 2"},
//	  "final": "Station 2",
//	  "order": ["Station 1", "Station 2"]
//	}
func LoadStations(path string) (*Stations, error) {
	// #nosec G304 -- path comes from the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	var s Stations
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, merry.Wrap(err, merry.AppendMessagef("parse stations %s", path))
	}
	if err := s.normalize(); err != nil {
		return nil, merry.Wrap(err, merry.AppendMessagef("stations %s", path))
	}
	return &s, nil
}

func (s *Stations) normalize() error {
	readers := make(map[string]string, len(s.Readers))
	for mac, name := range s.Readers {
		readers[strings.ToUpper(strings.TrimSpace(mac))] = name
	}
	s.Readers = readers

	// Order defaults to the sorted station names; any station it omits is
	// appended so counts are never hidden.
	for _, name := range s.names() {
		if !slices.Contains(s.Order, name) {
			s.Order = append(s.Order, name)
		}
	}
	if s.Final != "" && !slices.Contains(s.Order, s.Final) {
		return merry.Errorf("final station %q has no readers", s.Final)
	}
	return nil
}

func (s *Stations) names() []string {
	var names []string
	for _, name := range s.Readers {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Lookup returns the station for a reader address, Unknown if unmapped
func (s *Stations) Lookup(mac string) string {
	if s == nil {
		return Unknown
	}
	if name, ok := s.Readers[strings.ToUpper(mac)]; ok {
		return name
	}
	return Unknown
}

// FinalReaders lists the addresses mapped to the final station
func (s *Stations) FinalReaders() []string {
	if s == nil || s.Final == "" {
		return nil
	}
	var macs []string
	for mac, name := range s.Readers {
		if name == s.Final {
			macs = append(macs, mac)
		}
	}
	slices.Sort(macs)
	return macs
}

// StationCount is the sightings for one station
type StationCount struct {
	Name  string
	Count int
}

// Tally summarizes one day of sightings
type Tally struct {
	Day      time.Time
	Stations []StationCount
	// Finished counts sightings at the final station
	Finished int
	// Hourly is Finished broken down by hour of day
	Hourly [24]int
}

// Count tallies records falling on day (in day's location). Stations are
// reported in line order; records from unmapped readers are not counted.
// Station names are taken from the table, not from the record, so a log
// written before the table changed is counted against the current layout.
func (s *Stations) Count(records []Record, day time.Time) Tally {
	loc := day.Location()
	y, m, d := day.Date()
	tally := Tally{Day: time.Date(y, m, d, 0, 0, 0, 0, loc)}

	counts := make(map[string]int)
	for _, rec := range records {
		t := rec.Time.In(loc)
		if ry, rm, rd := t.Date(); ry != y || rm != m || rd != d {
			continue
		}
		name := s.Lookup(rec.MAC)
		if name == Unknown {
			continue
		}
		counts[name]++
		if s != nil && s.Final != "" && name == s.Final {
			tally.Finished++
			tally.Hourly[t.Hour()]++
		}
	}

	if s != nil {
		for _, name := range s.Order {
			tally.Stations = append(tally.Stations, StationCount{Name: name, Count: counts[name]})
		}
	}
	return tally
}
