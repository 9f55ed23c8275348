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

// Response is the result of a command that completed without a hard error
type Response struct {
	// Data holds the bytes drained from the FIFO (Transceive only)
	Data []byte
	// Bits is the number of valid received bits reported by the chip
	Bits int
	// Status is StatusOK or StatusNoTag
	Status Status
}

// Execute runs cmd on the chip with send loaded into the FIFO and waits for
// completion by polling ComIrqReg.
//
// A command that never signals completion within the poll budget returns
// ErrTimeout. A fault in ErrorReg returns a *ChipError. Both carry the
// register trace of the exchange. For any other outcome the Response reports
// StatusOK or StatusNoTag, and for Transceive holds the drained FIFO bytes.
func (d *Device) Execute(cmd Command, send []byte) (*Response, error) {
	if d.trace != nil {
		d.trace.Clear()
	}

	irqEn, waitIRq := irqMasks(cmd)

	d.WriteRegister(ComIEnReg, irqEn|comIEnIRqInv)
	d.ClearBits(ComIrqReg, comIrqSet1)
	d.SetBits(FIFOLevelReg, fifoFlush)
	d.WriteRegister(CommandReg, byte(CommandIdle))

	for _, b := range send {
		d.WriteRegister(FIFODataReg, b)
	}

	d.WriteRegister(CommandReg, byte(cmd))
	if cmd == CommandTransceive {
		d.SetBits(BitFramingReg, startSend)
	}

	irq, completed := d.waitForCompletion(waitIRq)

	d.ClearBits(BitFramingReg, startSend)

	if !completed {
		if d.trace != nil {
			d.trace.RecordTimeout(cmd.String())
		}
		Debugf("%s timed out after %d polls", cmd, d.config.PollBudget)
		return nil, d.wrapTrace(NewTimeoutError(cmd.String(), d.config.Name))
	}

	if errReg := d.ReadRegister(ErrorReg); errReg&errorMask != 0 {
		Debugf("%s failed: ErrorReg=0x%02X", cmd, errReg)
		return nil, d.wrapTrace(&ChipError{Command: cmd, ErrorReg: errReg})
	}

	resp := &Response{Status: StatusOK}
	if irq&irqEn&comIrqTimer != 0 {
		resp.Status = StatusNoTag
	}

	if cmd == CommandTransceive {
		level := d.ReadRegister(FIFOLevelReg)
		lastBits := d.ReadRegister(ControlReg) & rxLastBits
		resp.Bits = receiveBits(level, lastBits)

		resp.Data = make([]byte, drainCount(level))
		for i := range resp.Data {
			resp.Data[i] = d.ReadRegister(FIFODataReg)
		}
	}

	return resp, nil
}

// waitForCompletion reads ComIrqReg until TimerIRq or one of waitIRq is set,
// or the poll budget runs out. It returns the last value read.
func (d *Device) waitForCompletion(waitIRq byte) (irq byte, completed bool) {
	for i := 0; i < d.config.PollBudget; i++ {
		if i > 0 && d.config.PollDelay > 0 {
			d.config.Sleep(d.config.PollDelay)
		}
		irq = d.ReadRegister(ComIrqReg)
		if irq&(comIrqTimer|waitIRq) != 0 {
			return irq, true
		}
	}
	return irq, false
}

// receiveBits converts the FIFO level and RxLastBits into a bit count.
// A zero level with partial bits reports the partial bits alone.
func receiveBits(level, lastBits byte) int {
	if lastBits == 0 {
		return int(level) * 8
	}
	if level == 0 {
		return int(lastBits)
	}
	return (int(level)-1)*8 + int(lastBits)
}

// drainCount clamps the FIFO level to the bytes actually read back
func drainCount(level byte) int {
	switch {
	case level < 1:
		return 1
	case level > fifoSize:
		return fifoSize
	default:
		return int(level)
	}
}
