// Intel Universal Host Controller Interface (UHCI) driver
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uhci

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/usbarmory/uhci/bits"
	"github.com/usbarmory/uhci/dma"
	"github.com/usbarmory/uhci/internal/reg"
)

// Link pointer and frame list entry flags
// (p12, 3.1 Frame List Pointer, UHCI11D)
const (
	PTR_TERMINATE = 1 << 0
	PTR_QH        = 1 << 1
	PTR_VF        = 1 << 2
)

// USB 1.1 packet identifiers
const (
	PID_SETUP = 0x2d
	PID_IN    = 0x69
	PID_OUT   = 0xe1
)

// Transfer Descriptor layout
// (p13, 3.2 Transfer Descriptor, UHCI11D)
const (
	TD_ALIGN = 16
	TD_SIZE  = 32

	TD_LINK     = 0
	TD_CTRL_STS = 4
	TD_TOKEN    = 8
	TD_BUFFER   = 12
)

// TD control and status word bits
const (
	CTRL_IOC         = 25
	CTRL_ACTIVE      = 23
	CTRL_STALLED     = 22
	CTRL_BUFFER_ERR  = 21
	CTRL_BABBLE      = 20
	CTRL_NAK         = 19
	CTRL_CRC_TIMEOUT = 18
	CTRL_BITSTUFF    = 17

	// ActualLength, low 11 bits, encoded as n-1 (0x7ff: zero bytes)
	CTRL_ACTLEN_MASK = 0x7ff
)

// TD token word fields
const (
	// MaxLength, encoded as n-1 (0x7ff: zero bytes)
	TOKEN_MAXLEN = 21
	// Data toggle, unmanaged by this driver
	TOKEN_DT    = 19
	TOKEN_ENDPT = 15
	TOKEN_ADDR  = 8
	TOKEN_PID   = 0
)

// Queue Head layout
// (p16, 3.3 Queue Head, UHCI11D)
const (
	QH_ALIGN = 16
	QH_SIZE  = 8

	QH_HEAD    = 0
	QH_ELEMENT = 4
)

// Transfer error conditions reported in the TD control and status word
var (
	ErrStall    = errors.New("stalled")
	ErrBuffer   = errors.New("data buffer error")
	ErrBabble   = errors.New("babble detected")
	ErrNAK      = errors.New("NAK received")
	ErrCRC      = errors.New("CRC/timeout error")
	ErrBitstuff = errors.New("bitstuff error")
)

// TD represents a UHCI Transfer Descriptor.
//
// All exported fields are used one-time when building a transfer, state
// updated by the host controller is accessible through functions as it must
// be re-read from the DMA buffer on each access.
type TD struct {
	LinkPtr uint32
	CtrlSts uint32
	Token   uint32
	Buffer  uint32

	// DMA buffer
	region *dma.Region
	addr   uint
	buf    []byte
}

// Init reserves the descriptor DMA buffer, the trailing software use area is
// zeroed.
func (d *TD) Init(r *dma.Region) {
	d.region = r
	d.addr, d.buf = r.Reserve(TD_SIZE, TD_ALIGN)

	for i := range d.buf {
		d.buf[i] = 0
	}
}

// Address returns the descriptor physical address.
func (d *TD) Address() uint {
	return d.addr
}

// Bytes converts the descriptor structure to byte array format.
func (d *TD) Bytes() []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, d.LinkPtr)
	binary.Write(buf, binary.LittleEndian, d.CtrlSts)
	binary.Write(buf, binary.LittleEndian, d.Token)
	binary.Write(buf, binary.LittleEndian, d.Buffer)

	return buf.Bytes()
}

// Flush writes the descriptor structure to its DMA buffer.
func (d *TD) Flush() {
	reg.Write(d.addr+TD_LINK, d.LinkPtr)
	reg.Write(d.addr+TD_CTRL_STS, d.CtrlSts)
	reg.Write(d.addr+TD_TOKEN, d.Token)
	reg.Write(d.addr+TD_BUFFER, d.Buffer)
}

// Status returns the DMA resident control and status word.
func (d *TD) Status() uint32 {
	return reg.Read(d.addr + TD_CTRL_STS)
}

// Active returns whether the descriptor is pending execution.
func (d *TD) Active() bool {
	sts := d.Status()
	return bits.IsSet(&sts, CTRL_ACTIVE)
}

// ActualLength returns the number of bytes moved by the completed
// descriptor.
func (d *TD) ActualLength() int {
	return int((d.Status() + 1) & CTRL_ACTLEN_MASK)
}

// Err decodes the completion status of the descriptor.
func (d *TD) Err() error {
	sts := d.Status()

	switch {
	case bits.IsSet(&sts, CTRL_STALLED):
		return ErrStall
	case bits.IsSet(&sts, CTRL_BUFFER_ERR):
		return ErrBuffer
	case bits.IsSet(&sts, CTRL_BABBLE):
		return ErrBabble
	case bits.IsSet(&sts, CTRL_NAK):
		return ErrNAK
	case bits.IsSet(&sts, CTRL_CRC_TIMEOUT):
		return ErrCRC
	case bits.IsSet(&sts, CTRL_BITSTUFF):
		return ErrBitstuff
	}

	return nil
}

// Destroy releases the descriptor DMA buffer.
func (d *TD) Destroy() {
	d.region.Release(d.addr)
}

// QH represents a UHCI Queue Head.
//
// All exported fields are used one-time when building a transfer.
type QH struct {
	HeadPtr    uint32
	ElementPtr uint32

	// DMA buffer
	region *dma.Region
	addr   uint
	buf    []byte
}

// Init reserves the queue head DMA buffer.
func (q *QH) Init(r *dma.Region) {
	q.region = r
	q.addr, q.buf = r.Reserve(QH_SIZE, QH_ALIGN)
}

// Address returns the queue head physical address.
func (q *QH) Address() uint {
	return q.addr
}

// Bytes converts the queue head structure to byte array format.
func (q *QH) Bytes() []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, q.HeadPtr)
	binary.Write(buf, binary.LittleEndian, q.ElementPtr)

	return buf.Bytes()
}

// Flush writes the queue head structure to its DMA buffer.
func (q *QH) Flush() {
	reg.Write(q.addr+QH_HEAD, q.HeadPtr)
	reg.Write(q.addr+QH_ELEMENT, q.ElementPtr)
}

// Destroy releases the queue head DMA buffer.
func (q *QH) Destroy() {
	q.region.Release(q.addr)
}

// token assembles a TD token word, a zero size encodes a zero length
// packet.
func token(size int, endpoint int, addr uint8, pid uint32) (t uint32) {
	bits.SetN(&t, TOKEN_MAXLEN, 0x7ff, uint32(size-1)&0x7ff)
	bits.SetN(&t, TOKEN_ENDPT, 0xf, uint32(endpoint))
	bits.SetN(&t, TOKEN_ADDR, 0x7f, uint32(addr))
	bits.SetN(&t, TOKEN_PID, 0xff, pid)

	return
}
