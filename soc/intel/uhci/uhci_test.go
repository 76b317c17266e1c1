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
	"runtime"
	"sync"
	"syscall"
	"testing"
	"unsafe"

	"github.com/usbarmory/uhci/dma"
	"github.com/usbarmory/uhci/input"
	"github.com/usbarmory/uhci/internal/reg"
)

const testBase = 0x3000

// mem returns a byte slice over identity mapped memory, mimicking the host
// controller DMA access to the schedule buffers.
func mem(addr uint, size int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
}

// newTestRegion initializes a DMA region over page aligned memory mapped
// below 4GB, as descriptor words and frame list entries hold 32-bit pointers.
func newTestRegion(t *testing.T, size int) *dma.Region {
	t.Helper()

	buf, err := syscall.Mmap(-1, 0, size+FRAME_LIST_ALIGN,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_PRIVATE|syscall.MAP_ANON|syscall.MAP_32BIT)

	if err != nil {
		t.Fatal(err)
	}

	addr := uint(uintptr(unsafe.Pointer(&buf[0])))
	addr += -addr & (FRAME_LIST_ALIGN - 1)

	r, err := dma.NewRegion(addr, size, false)

	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		runtime.KeepAlive(buf)
	})

	return r
}

type capturedTD struct {
	addr  uint
	words [4]uint32
}

func (td *capturedTD) pid() uint32 {
	return td.words[2] & 0xff
}

func (td *capturedTD) maxLen() uint32 {
	return (td.words[2] >> TOKEN_MAXLEN) & 0x7ff
}

// hc mocks the UHCI register file and simulates the host controller
// schedule execution, walking the frame list and completing the transfer
// descriptors it references.
type hc struct {
	sync.Mutex

	frnum   uint16
	autoInc bool
	present [2]bool

	regs    map[uint16]uint16
	regs32  map[uint16]uint32
	writes  map[uint16][]uint16
	writes2 map[uint16][]uint32

	// captured schedule entries and their descriptor chains
	entries []uint32
	chains  [][]capturedTD
	// captured setup packets
	setups []SetupData

	// descriptor data served to control IN stages
	respond func(setup SetupData) []byte
}

func newHC() *hc {
	return &hc{
		regs:    make(map[uint16]uint16),
		regs32:  make(map[uint16]uint32),
		writes:  make(map[uint16][]uint16),
		writes2: make(map[uint16][]uint32),
	}
}

func (c *hc) in16(port uint16) uint16 {
	c.Lock()
	defer c.Unlock()

	off := port - testBase

	switch off {
	case FRNUM:
		val := c.frnum

		if c.autoInc {
			c.frnum = (c.frnum + 1) % FRAME_LIST_ENTRIES
		}

		return val
	case PORTSC1, PORTSC2:
		var sts uint16

		n := 0

		if off == PORTSC2 {
			n = 1
		}

		if c.present[n] {
			sts |= 1 << PORTSC_CCS
		}

		return sts | c.regs[off]&(1<<PORTSC_PE)
	}

	return c.regs[off]
}

func (c *hc) out16(port uint16, val uint16) {
	c.Lock()
	defer c.Unlock()

	off := port - testBase
	c.regs[off] = val
	c.writes[off] = append(c.writes[off], val)
}

func (c *hc) in32(port uint16) uint32 {
	c.Lock()
	defer c.Unlock()

	return c.regs32[port-testBase]
}

func (c *hc) out32(port uint16, val uint32) {
	c.Lock()
	defer c.Unlock()

	off := port - testBase
	c.regs32[off] = val
	c.writes2[off] = append(c.writes2[off], val)
}

// complete performs one pass over the frame list, capturing and completing
// any pending schedule entry.
func (c *hc) complete(hw *UHCI) {
	for slot := 0; slot < FRAME_LIST_ENTRIES; slot++ {
		// the hardware fetch of a schedule entry is a consistent 32-bit
		// read, modeled here by taking the frame list lock
		hw.Lock()
		entry := binary.LittleEndian.Uint32(hw.frameList[slot*4:])
		hw.Unlock()

		if entry&PTR_TERMINATE != 0 {
			continue
		}

		var tds []uint

		if entry&PTR_QH != 0 {
			qh := uint(entry) &^ 0xf
			ptr := uint(reg.Read(qh+QH_ELEMENT)) &^ 0xf

			for {
				tds = append(tds, ptr)

				link := reg.Read(ptr + TD_LINK)

				if link&PTR_TERMINATE != 0 {
					break
				}

				ptr = uint(link) &^ 0xf
			}
		} else {
			tds = append(tds, uint(entry)&^0xf)
		}

		// skip chains completed but not yet released
		if reg.Read(tds[0]+TD_CTRL_STS)&(1<<CTRL_ACTIVE) == 0 {
			continue
		}

		var chain []capturedTD
		var resp []byte

		for _, addr := range tds {
			chain = append(chain, capturedTD{
				addr: addr,
				words: [4]uint32{
					reg.Read(addr + TD_LINK),
					reg.Read(addr + TD_CTRL_STS),
					reg.Read(addr + TD_TOKEN),
					reg.Read(addr + TD_BUFFER),
				},
			})
		}

		c.Lock()
		c.entries = append(c.entries, entry)
		c.chains = append(c.chains, chain)
		c.Unlock()

		for _, td := range chain {
			size := int(td.maxLen()+1) & 0x7ff
			buffer := td.words[3]
			actual := size

			switch td.pid() {
			case PID_SETUP:
				var s SetupData

				unmarshal(mem(uint(buffer), SETUP_LENGTH), &s)

				c.Lock()
				c.setups = append(c.setups, s)
				c.Unlock()

				if c.respond != nil {
					resp = c.respond(s)
				}
			case PID_IN:
				if size > 0 && buffer != 0 {
					actual = copy(mem(uint(buffer), size), resp)
				}
			}

			sts := reg.Read(td.addr + TD_CTRL_STS)
			sts &^= 1 << CTRL_ACTIVE
			sts = (sts &^ CTRL_ACTLEN_MASK) | (uint32(actual-1) & CTRL_ACTLEN_MASK)

			reg.Write(td.addr+TD_CTRL_STS, sts)
		}
	}
}

// run simulates the host controller schedule execution until the returned
// stop function is invoked.
func (c *hc) run(hw *UHCI) (stop func()) {
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-done:
				return
			default:
			}

			c.complete(hw)
			runtime.Gosched()
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

func (c *hc) interruptEntries() (n int) {
	c.Lock()
	defer c.Unlock()

	for _, entry := range c.entries {
		if entry&PTR_QH == 0 {
			n += 1
		}
	}

	return
}

func newTestUHCI(t *testing.T) (*UHCI, *hc) {
	t.Helper()

	c := newHC()

	hw := &UHCI{
		Base:   testBase,
		Region: newTestRegion(t, 1<<16),
		Events: &input.Queue{},
		Resolution: func() (int, int) {
			return 1024, 768
		},
		In16:  c.in16,
		Out16: c.out16,
		In32:  c.in32,
		Out32: c.out32,
	}

	if err := hw.Init(); err != nil {
		t.Fatal(err)
	}

	return hw, c
}
