// Intel Universal Host Controller Interface (UHCI) driver
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uhci

import (
	"fmt"
	"log"
)

// maximum configuration descriptor read, devices reporting a larger total
// length are truncated
const maxConfigLength = 1023

// Device represents an enumerated USB device.
type Device struct {
	// assigned bus address
	Address uint8
	// standard device descriptor
	Descriptor DeviceDescriptor
	// raw configuration descriptor blobs
	Configurations [][]byte
}

// enumerate brings the device answering at the default address to the
// Addressed state and walks its configuration descriptors, spawning a HID
// poller for each boot mouse interrupt endpoint.
func (hw *UHCI) enumerate(addr uint8) (err error) {
	setup := &SetupData{
		RequestType: HOST_TO_DEVICE,
		Request:     SET_ADDRESS,
		Value:       uint16(addr),
	}

	// assign the address to the device answering at default address 0
	if _, err = hw.Control(0, setup, nil, OUT); err != nil {
		return fmt.Errorf("could not set address %d, %v", addr, err)
	}

	dev := &Device{
		Address: addr,
	}

	buf := make([]byte, DEVICE_LENGTH)

	setup = &SetupData{
		RequestType: DEVICE_TO_HOST,
		Request:     GET_DESCRIPTOR,
		Value:       DEVICE << 8,
		Length:      DEVICE_LENGTH,
	}

	if _, err = hw.Control(addr, setup, buf, IN); err != nil {
		return fmt.Errorf("could not get device descriptor, %v", err)
	}

	if err = unmarshal(buf, &dev.Descriptor); err != nil {
		return
	}

	log.Printf("uhci: device %d is %04x:%04x, %d configuration(s)",
		addr, dev.Descriptor.VendorID, dev.Descriptor.ProductID,
		dev.Descriptor.NumConfigurations)

	for i := 0; i < int(dev.Descriptor.NumConfigurations); i++ {
		conf := make([]byte, maxConfigLength)

		setup = &SetupData{
			RequestType: DEVICE_TO_HOST,
			Request:     GET_DESCRIPTOR,
			Value:       CONFIGURATION<<8 | uint16(i),
			Length:      maxConfigLength,
		}

		if _, err = hw.Control(addr, setup, conf, IN); err != nil {
			return fmt.Errorf("could not get configuration %d, %v", i, err)
		}

		dev.Configurations = append(dev.Configurations, conf)

		for _, ep := range hidEndpoints(conf) {
			hw.startMouse(addr, ep.Number(), int(ep.MaxPacketSize))
		}
	}

	hw.devices = append(hw.devices, dev)

	return
}

// hidEndpoints walks a configuration descriptor blob returning the
// interrupt IN endpoints belonging to its HID interfaces.
//
// The walk is bound by the configuration total length, truncated reads stop
// at the buffer end, a zero length descriptor aborts the walk.
func hidEndpoints(buf []byte) (eps []*EndpointDescriptor) {
	var conf ConfigurationDescriptor

	if unmarshal(buf, &conf) != nil || conf.Length == 0 {
		return
	}

	total := int(conf.TotalLength)

	if total > len(buf) {
		total = len(buf)
	}

	hid := false

	for i := int(conf.Length); i+1 < total; {
		length := int(buf[i])

		if length == 0 {
			log.Printf("uhci: malformed descriptor at offset %d", i)
			break
		}

		switch buf[i+1] {
		case INTERFACE:
			var d InterfaceDescriptor

			hid = false

			if unmarshal(buf[i:min(i+length, total)], &d) == nil {
				log.Printf("uhci: interface %d, class %#x/%#x/%#x",
					d.InterfaceNumber, d.InterfaceClass,
					d.InterfaceSubClass, d.InterfaceProtocol)
			}
		case HID:
			var d HIDDescriptor

			hid = true

			if unmarshal(buf[i:min(i+length, total)], &d) == nil {
				log.Printf("uhci: HID version %#x, %d descriptor(s)",
					d.HIDVersion, d.NumDescriptors)
			}
		case ENDPOINT:
			var d EndpointDescriptor

			if unmarshal(buf[i:min(i+length, total)], &d) != nil {
				break
			}

			log.Printf("uhci: endpoint %#x, attributes %#x, max packet size %d",
				d.EndpointAddress, d.Attributes, d.MaxPacketSize)

			if hid && d.Direction() == IN && d.TransferType() == INTERRUPT {
				eps = append(eps, &d)
			}
		default:
			log.Printf("uhci: unknown descriptor type %#x, length %d", buf[i+1], length)
		}

		i += length
	}

	return
}
