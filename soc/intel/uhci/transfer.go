// Intel Universal Host Controller Interface (UHCI) driver
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uhci

import (
	"github.com/usbarmory/uhci/bits"
	"github.com/usbarmory/uhci/internal/reg"
)

// wait polls a transfer descriptor until the host controller clears its
// Active bit, yielding between polls, then decodes the completion status.
func (hw *UHCI) wait(d *TD) error {
	reg.Wait(d.addr+TD_CTRL_STS, CTRL_ACTIVE, 1, 0)
	return d.Err()
}

// Control performs a control transfer on endpoint 0 of the given device
// address.
//
// The transfer is built as a setup stage, an optional data stage in the dir
// direction covering the data buffer, and a zero length status stage in the
// opposite direction (IN when there is no data stage), executed depth first
// behind a queue head scheduled in a single frame list slot.
//
// On IN transfers the data buffer is overwritten with the received data, the
// returned length reflects the data stage ActualLength.
func (hw *UHCI) Control(addr uint8, setup *SetupData, data []byte, dir int) (n int, err error) {
	var setupTD, dataTD, statusTD TD
	var qh QH

	size := len(data)
	chain := []*TD{&setupTD}

	// The status stage acknowledges in the opposite direction of the
	// data stage, IN after OUT or no data.
	statusPID := uint32(PID_IN)

	if size > 0 && dir == IN {
		statusPID = PID_OUT
	}

	statusTD.Init(hw.Region)
	defer statusTD.Destroy()

	statusTD.LinkPtr = PTR_TERMINATE
	bits.Set(&statusTD.CtrlSts, CTRL_ACTIVE)
	statusTD.Token = token(0, 0, addr, statusPID)
	statusTD.Flush()

	link := uint32(statusTD.Address()) | PTR_VF

	if size > 0 {
		dataPID := uint32(PID_OUT)

		if dir == IN {
			dataPID = PID_IN
		}

		dataAddr := hw.Region.Alloc(data, 0)
		defer hw.Region.Free(dataAddr)

		dataTD.Init(hw.Region)
		defer dataTD.Destroy()

		dataTD.LinkPtr = link
		bits.Set(&dataTD.CtrlSts, CTRL_ACTIVE)
		dataTD.Token = token(size, 0, addr, dataPID)
		dataTD.Buffer = uint32(dataAddr)
		dataTD.Flush()

		link = uint32(dataTD.Address()) | PTR_VF
		chain = append(chain, &dataTD)

		if dir == IN {
			defer func() {
				if err == nil {
					hw.Region.Read(dataAddr, 0, data)
				}
			}()
		}
	}

	chain = append(chain, &statusTD)

	setupAddr := hw.Region.Alloc(setup.Bytes(), 0)
	defer hw.Region.Free(setupAddr)

	setupTD.Init(hw.Region)
	defer setupTD.Destroy()

	setupTD.LinkPtr = link
	bits.Set(&setupTD.CtrlSts, CTRL_ACTIVE)
	setupTD.Token = token(SETUP_LENGTH, 0, addr, PID_SETUP)
	setupTD.Buffer = uint32(setupAddr)
	setupTD.Flush()

	qh.Init(hw.Region)
	defer qh.Destroy()

	qh.HeadPtr = PTR_TERMINATE
	qh.ElementPtr = uint32(setupTD.Address())
	qh.Flush()

	slot := hw.reserve(uint32(qh.Address()) | PTR_QH)
	defer hw.release(slot)

	// await each stage in submission order
	for _, td := range chain {
		if err = hw.wait(td); err != nil {
			return
		}
	}

	if size > 0 {
		n = dataTD.ActualLength()
	}

	return
}

// InterruptIn performs a single interrupt IN transfer on the given device
// endpoint, its descriptor is scheduled raw in a frame list slot without a
// queue head. The data buffer is overwritten with the received data and the
// ActualLength returned.
func (hw *UHCI) InterruptIn(addr uint8, endpoint int, data []byte) (n int, err error) {
	var td TD

	dataAddr := hw.Region.Alloc(data, 0)
	defer hw.Region.Free(dataAddr)

	td.Init(hw.Region)
	defer td.Destroy()

	td.LinkPtr = PTR_TERMINATE
	bits.Set(&td.CtrlSts, CTRL_ACTIVE)
	bits.Set(&td.CtrlSts, CTRL_IOC)
	td.Token = token(len(data), endpoint, addr, PID_IN)
	td.Buffer = uint32(dataAddr)
	td.Flush()

	slot := hw.reserve(uint32(td.Address()))
	defer hw.release(slot)

	if err = hw.wait(&td); err != nil {
		return
	}

	n = td.ActualLength()
	hw.Region.Read(dataAddr, 0, data)

	return
}
