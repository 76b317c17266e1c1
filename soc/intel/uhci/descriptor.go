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

const (
	DEVICE_LENGTH        = 18
	CONFIGURATION_LENGTH = 9
	INTERFACE_LENGTH     = 9
	ENDPOINT_LENGTH      = 7
	HID_LENGTH           = 9
)

// Endpoint direction
const (
	// Host -> Device
	OUT = 0
	// Device -> Host
	IN = 1
)

// Endpoint transfer type
const (
	CONTROL     = 0
	ISOCHRONOUS = 1
	BULK        = 2
	INTERRUPT   = 3
)

// DeviceDescriptor implements
// p196, Table 9-7. Standard Device Descriptor, USB Specification Revision 1.1.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize     uint8
	VendorID          uint16
	ProductID         uint16
	Release           uint16
	Manufacturer      uint8
	Product           uint8
	SerialNumber      uint8
	NumConfigurations uint8
}

// ConfigurationDescriptor implements
// p199, Table 9-8. Standard Configuration Descriptor, USB Specification
// Revision 1.1.
type ConfigurationDescriptor struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	Configuration      uint8
	Attributes         uint8
	MaxPower           uint8
}

// InterfaceDescriptor implements
// p202, Table 9-9. Standard Interface Descriptor, USB Specification
// Revision 1.1.
type InterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	Interface         uint8
}

// HIDDescriptor implements
// p22, 6.2.1 HID Descriptor, Device Class Definition for HID 1.11.
type HIDDescriptor struct {
	Length         uint8
	DescriptorType uint8
	HIDVersion     uint16
	CountryCode    uint8
	NumDescriptors uint8
	ReportType     uint8
	ReportLength   uint16
}

// EndpointDescriptor implements
// p203, Table 9-10. Standard Endpoint Descriptor, USB Specification
// Revision 1.1.
type EndpointDescriptor struct {
	Length          uint8
	DescriptorType  uint8
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

// Number returns the endpoint number.
func (d *EndpointDescriptor) Number() int {
	return int(d.EndpointAddress & 0b1111)
}

// Direction returns the endpoint direction.
func (d *EndpointDescriptor) Direction() int {
	return int(d.EndpointAddress&0b10000000) / 0b10000000
}

// TransferType returns the endpoint transfer type.
func (d *EndpointDescriptor) TransferType() int {
	return int(d.Attributes & 0b11)
}

// unmarshal decodes a little-endian descriptor record from a descriptor
// buffer.
func unmarshal(buf []byte, d any) error {
	return binary.Read(bytes.NewReader(buf), binary.LittleEndian, d)
}
