// Intel Universal Host Controller Interface (UHCI) driver
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uhci implements a driver for USB 1.1 host controllers adopting the
// following reference specifications:
//   - UHCI11D - Universal Host Controller Interface Design Guide, Revision 1.1
//   - USB1.1  - Universal Serial Bus Specification, Revision 1.1
//
// The driver assumes identity mapped, DMA coherent memory for its schedule
// and transfer buffers.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=amd64` as
// supported by the TamaGo framework for bare metal Go, see
// https://github.com/usbarmory/tamago.
package uhci

import (
	"errors"
	"log"
	"sync"

	"github.com/usbarmory/uhci/dma"
	"github.com/usbarmory/uhci/input"
	"github.com/usbarmory/uhci/internal/reg"
	"github.com/usbarmory/uhci/soc/intel/pci"
)

// UHCI registers, I/O space offsets
// (p5, 2. Register Interface Overview, UHCI11D)
const (
	USBCMD      = 0x00
	CMD_GRESET  = 2
	CMD_HCRESET = 1
	CMD_RS      = 0

	USBSTS    = 0x02
	USBINTR   = 0x04
	FRNUM     = 0x06
	FLBASEADD = 0x08
	SOFMOD    = 0x0c

	PORTSC1    = 0x10
	PORTSC2    = 0x12
	PORTSC_PR  = 9
	PORTSC_PE  = 2
	PORTSC_CCS = 0
)

// ClassCode is the PCI class, subclass and programming interface of UHCI
// host controllers (serial bus, USB, UHCI).
const ClassCode = 0x0c0300

// UHCI represents a USB 1.1 host controller instance.
//
// The embedded mutex guards the frame list schedule, the FRNUM read and
// slot write of each submission form a single critical section.
type UHCI struct {
	sync.Mutex

	// I/O space base address (BAR4)
	Base uint16
	// Interrupt line
	IRQ uint8

	// DMA region for the schedule and transfer buffers, defaults to the
	// global dma region.
	Region *dma.Region

	// Events is the input event sink for attached HID devices.
	Events *input.Queue
	// Resolution returns the active display resolution, required to
	// scale absolute pointer samples.
	Resolution func() (xres int, yres int)

	// Port I/O primitives, tests may substitute the hardware
	// (default: IN/OUT instructions).
	In16  func(port uint16) uint16
	Out16 func(port uint16, val uint16)
	In32  func(port uint16) uint32
	Out32 func(port uint16, val uint32)

	// frame list schedule
	frameList     []byte
	frameListAddr uint

	// last assigned device address
	addr uint8

	// enumerated devices
	devices []*Device
	// spawned HID pollers
	mice []*Mouse
}

// Probe discovers the UHCI host controllers on a PCI bus, enabling bus
// mastering and reading their I/O space base address (BAR4) and interrupt
// line.
func Probe(bus int) (controllers []*UHCI) {
	for _, d := range pci.ProbeClass(bus, ClassCode) {
		d.SetMaster(true)

		controllers = append(controllers, &UHCI{
			Base: uint16(d.BaseAddress(4)),
			IRQ:  d.IRQ(),
		})
	}

	return
}

func (hw *UHCI) read16(off uint16) uint16 {
	return hw.In16(hw.Base + off)
}

func (hw *UHCI) write16(off uint16, val uint16) {
	hw.Out16(hw.Base+off, val)
}

func (hw *UHCI) read32(off uint16) uint32 {
	return hw.In32(hw.Base + off)
}

func (hw *UHCI) write32(off uint16, val uint32) {
	hw.Out32(hw.Base+off, val)
}

// Init initializes the USB host controller: the controller is reset, its
// schedule installed with an empty frame list and set running.
func (hw *UHCI) Init() (err error) {
	hw.Lock()
	defer hw.Unlock()

	if hw.Base == 0 {
		return errors.New("invalid UHCI controller instance")
	}

	if hw.In16 == nil {
		hw.In16 = reg.In16
	}

	if hw.Out16 == nil {
		hw.Out16 = reg.Out16
	}

	if hw.In32 == nil {
		hw.In32 = reg.In32
	}

	if hw.Out32 == nil {
		hw.Out32 = reg.Out32
	}

	if hw.Region == nil {
		hw.Region = dma.Default()
	}

	if hw.Region == nil {
		return errors.New("invalid DMA region")
	}

	log.Printf("uhci: initializing controller, base %#x IRQ %d", hw.Base, hw.IRQ)

	// host controller and global reset
	cmd := hw.read16(USBCMD)
	hw.write16(USBCMD, 1<<CMD_GRESET|1<<CMD_HCRESET)
	log.Printf("uhci: USBCMD %#x -> %#x", cmd, hw.read16(USBCMD))

	cmd = hw.read16(USBCMD)
	hw.write16(USBCMD, 0)
	log.Printf("uhci: USBCMD %#x -> %#x", cmd, hw.read16(USBCMD))

	log.Printf("uhci: USBSTS %#x, USBINTR %#x", hw.read16(USBSTS), hw.read16(USBINTR))

	// start the schedule at frame 0
	frnum := hw.read16(FRNUM)
	hw.write16(FRNUM, 0)
	log.Printf("uhci: FRNUM %#x -> %#x", frnum, hw.read16(FRNUM))

	flbase := hw.read32(FLBASEADD)
	hw.initFrameList()
	log.Printf("uhci: FLBASEADD %#x -> %#x", flbase, hw.read32(FLBASEADD))

	// run
	cmd = hw.read16(USBCMD)
	hw.write16(USBCMD, 1<<CMD_RS)
	log.Printf("uhci: USBCMD %#x -> %#x", cmd, hw.read16(USBCMD))

	return
}

// Start resumes the controller schedule.
func (hw *UHCI) Start() {
	hw.write16(USBCMD, hw.read16(USBCMD)|1<<CMD_RS)
}

// Stop halts the controller schedule.
func (hw *UHCI) Stop() {
	hw.write16(USBCMD, hw.read16(USBCMD)&^(1<<CMD_RS))
}

// ProbePorts resets the root hub ports in ascending order, enabling and
// enumerating each one with an attached device. Empty ports are left alone,
// an enumeration failure stops its own port only.
func (hw *UHCI) ProbePorts() {
	for n, off := range []uint16{PORTSC1, PORTSC2} {
		// port reset
		sc := hw.read16(off)
		hw.write16(off, 1<<PORTSC_PR)
		log.Printf("uhci: PORTSC%d %#x -> %#x", n+1, sc, hw.read16(off))

		sc = hw.read16(off)
		hw.write16(off, 0)
		log.Printf("uhci: PORTSC%d %#x -> %#x", n+1, sc, hw.read16(off))

		if sc = hw.read16(off); sc&(1<<PORTSC_CCS) == 0 {
			continue
		}

		log.Printf("uhci: port %d device found, PORTSC%d %#x", n+1, n+1, sc)

		// enable port
		hw.write16(off, 1<<PORTSC_PE)
		log.Printf("uhci: PORTSC%d %#x -> %#x", n+1, sc, hw.read16(off))

		hw.addr += 1

		if err := hw.enumerate(hw.addr); err != nil {
			log.Printf("uhci: port %d enumeration failed, %v", n+1, err)
		}
	}
}

// Devices returns the enumerated USB devices.
func (hw *UHCI) Devices() []*Device {
	return hw.devices
}

// ServiceInterrupt acknowledges the controller interrupt status, transfer
// completion is discovered by polling so no further action is taken.
func (hw *UHCI) ServiceInterrupt() {
	// write to clear
	hw.write16(USBSTS, hw.read16(USBSTS))
}
