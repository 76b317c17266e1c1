// Intel Universal Host Controller Interface (UHCI) driver
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uhci

import (
	"encoding/binary"
)

// Frame list layout
// (p12, 3.1 Frame List Pointer, UHCI11D)
const (
	FRAME_LIST_ENTRIES = 1024
	FRAME_LIST_ALIGN   = 4096
	FRAME_LIST_SIZE    = FRAME_LIST_ENTRIES * 4
)

// initFrameList allocates the schedule frame list, terminating every slot,
// and installs it on the controller.
func (hw *UHCI) initFrameList() {
	hw.frameListAddr, hw.frameList = hw.Region.Reserve(FRAME_LIST_SIZE, FRAME_LIST_ALIGN)

	for i := 0; i < FRAME_LIST_ENTRIES; i++ {
		binary.LittleEndian.PutUint32(hw.frameList[i*4:], PTR_TERMINATE)
	}

	hw.write32(FLBASEADD, uint32(hw.frameListAddr))
}

// reserve installs a schedule entry in the first frame list slot guaranteed
// to be ahead of the controller fetch, returning the slot index.
//
// The controller may already be fetching the current or the next frame, +2
// guarantees the entry is visible before its slot is read. The FRNUM read
// and the slot write form one critical section, two submitters racing at
// the same frame would otherwise overwrite each other.
func (hw *UHCI) reserve(entry uint32) (slot uint16) {
	hw.Lock()
	defer hw.Unlock()

	slot = (hw.read16(FRNUM) + 2) & (FRAME_LIST_ENTRIES - 1)
	binary.LittleEndian.PutUint32(hw.frameList[int(slot)*4:], entry)

	return
}

// release terminates a frame list slot.
func (hw *UHCI) release(slot uint16) {
	hw.Lock()
	defer hw.Unlock()

	binary.LittleEndian.PutUint32(hw.frameList[int(slot)*4:], PTR_TERMINATE)
}
