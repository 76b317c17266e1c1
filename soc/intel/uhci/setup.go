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
)

// p187, Table 9-4. Standard Request Codes, USB Specification Revision 1.1
const (
	GET_STATUS        = 0
	CLEAR_FEATURE     = 1
	SET_FEATURE       = 3
	SET_ADDRESS       = 5
	GET_DESCRIPTOR    = 6
	SET_DESCRIPTOR    = 7
	GET_CONFIGURATION = 8
	SET_CONFIGURATION = 9
	GET_INTERFACE     = 10
	SET_INTERFACE     = 11
	SYNCH_FRAME       = 12
)

// p187, Table 9-5. Descriptor Types, USB Specification Revision 1.1, plus
// the HID class descriptor type
// (p49, 7.1 Standard Requests, Device Class Definition for HID 1.11)
const (
	DEVICE        = 0x1
	CONFIGURATION = 0x2
	STRING        = 0x3
	INTERFACE     = 0x4
	ENDPOINT      = 0x5
	HID           = 0x21
)

// bmRequestType direction
const (
	HOST_TO_DEVICE = 0x00
	DEVICE_TO_HOST = 0x80
)

const SETUP_LENGTH = 8

// SetupData implements
// p183, Table 9-2. Format of Setup Data, USB Specification Revision 1.1.
type SetupData struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// Bytes converts the setup packet to its wire format.
func (s *SetupData) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, s)
	return buf.Bytes()
}
