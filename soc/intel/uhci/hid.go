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
	"errors"
	"log"
	"time"

	"github.com/usbarmory/uhci/bits"
	"github.com/usbarmory/uhci/input"
)

// Boot protocol mouse report layout
// (p61, B.2 Protocol 2 (Mouse), Device Class Definition for HID 1.11)
const (
	REPORT_BUTTONS = 0
	REPORT_X       = 1
	REPORT_Y       = 3
	REPORT_LENGTH  = 5

	BUTTON_LEFT   = 0
	BUTTON_RIGHT  = 1
	BUTTON_MIDDLE = 2
)

// absolute coordinate range upper bound
const logicalMax = 32768

// poll interval between interrupt IN transfers
const pollInterval = 10 * time.Millisecond

// Mouse represents the polling task attached to the interrupt IN endpoint
// of a boot protocol HID mouse.
//
// The task owns its transfer descriptor and report buffer for its entire
// lifetime, the frame list slot it schedules is reserved only while a
// transfer is in flight.
type Mouse struct {
	// controller
	hw *UHCI

	// assigned device address
	addr uint8
	// interrupt IN endpoint number
	endpoint int
	// endpoint maximum packet size
	size int

	// persistent transfer descriptor and report buffer
	td  *TD
	buf []byte
	ptr uint

	// cancellation signal
	exit chan struct{}

	// clock collaborator
	sleep func(time.Duration)
}

// startMouse spawns the polling task for a mouse interrupt endpoint.
func (hw *UHCI) startMouse(addr uint8, endpoint int, size int) *Mouse {
	if hw.Events == nil || hw.Resolution == nil {
		log.Printf("uhci: no event sink, not polling endpoint %d of device %d", endpoint, addr)
		return nil
	}

	m := &Mouse{
		hw:       hw,
		addr:     addr,
		endpoint: endpoint,
		size:     size,
		td:       &TD{},
		exit:     make(chan struct{}),
		sleep:    time.Sleep,
	}

	m.td.Init(hw.Region)
	m.ptr, m.buf = hw.Region.Reserve(size, 0)

	hw.mice = append(hw.mice, m)

	log.Printf("uhci: starting HID mouse driver, device %d endpoint %d", addr, endpoint)
	go m.poll()

	return m
}

// Stop cancels the polling task, its descriptor and report buffer are
// released once the in-flight transfer completes.
func (m *Mouse) Stop() {
	close(m.exit)
}

func (m *Mouse) done() bool {
	select {
	case <-m.exit:
		return true
	default:
		return false
	}
}

// poll issues periodic interrupt IN transfers on the mouse endpoint,
// decoding boot protocol reports into input events.
func (m *Mouse) poll() {
	hw := m.hw

	defer func() {
		hw.Region.Release(m.ptr)
		m.td.Destroy()
	}()

	for !m.done() {
		for i := range m.buf {
			m.buf[i] = 0
		}

		m.td.LinkPtr = PTR_TERMINATE
		m.td.CtrlSts = 0
		bits.Set(&m.td.CtrlSts, CTRL_ACTIVE)
		bits.Set(&m.td.CtrlSts, CTRL_IOC)
		m.td.Token = token(m.size, m.endpoint, m.addr, PID_IN)
		m.td.Buffer = uint32(m.ptr)
		m.td.Flush()

		slot := hw.reserve(uint32(m.td.Address()))
		err := hw.wait(m.td)
		hw.release(slot)

		switch {
		case err != nil && !errors.Is(err, ErrNAK):
			log.Printf("uhci: mouse transfer error, %v", err)
		case err == nil && m.td.ActualLength() > 0:
			m.emit()
		}

		m.sleep(pollInterval)
	}
}

// emit decodes the boot protocol report into a scaled input event.
func (m *Mouse) emit() {
	var report [REPORT_LENGTH]byte

	// endpoints with a max packet size below the report layout leave the
	// remainder zero
	copy(report[:], m.buf)

	buttons := report[REPORT_BUTTONS]
	x := int(binary.LittleEndian.Uint16(report[REPORT_X:]))
	y := int(binary.LittleEndian.Uint16(report[REPORT_Y:]))

	xres, yres := m.hw.Resolution()

	m.hw.Events.Push(input.MouseEvent{
		X:      scale(x, xres),
		Y:      scale(y, yres),
		Left:   buttons&(1<<BUTTON_LEFT) != 0,
		Middle: buttons&(1<<BUTTON_MIDDLE) != 0,
		Right:  buttons&(1<<BUTTON_RIGHT) != 0,
	})
}

// scale maps an absolute report coordinate to the display resolution.
func scale(v int, res int) int {
	v = (v * res) / logicalMax

	if v < 0 {
		v = 0
	}

	if v > res-1 {
		v = res - 1
	}

	return v
}
