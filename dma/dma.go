// First-fit memory allocator for DMA buffers
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma provides primitives for direct memory allocation and alignment,
// it is primarily used in bare metal device driver operation to avoid passing
// Go pointers for DMA purposes.
package dma

import (
	"container/list"
	"errors"
	"unsafe"
)

var dma *Region

// Init initializes the global memory region for DMA buffer allocation, the
// application must guarantee that the passed memory range is never used by
// the Go runtime (defining runtime.ramStart and runtime.ramSize accordingly).
//
// The global region is used throughout this module for all DMA allocations.
//
// Separate DMA regions can be allocated in other areas (e.g. external RAM) by
// the application using NewRegion().
func Init(start uint, size int) (err error) {
	dma, err = NewRegion(start, size, false)
	return
}

// NewRegion initializes a memory region for DMA buffer allocation, a zero
// start address or an empty size are rejected as allocation addresses could
// not be told apart from unallocated buffers.
//
// The optional zero flag clears the region contents, which is required when
// the memory is not already initialized (e.g. struct alignment gaps read by
// hardware).
func NewRegion(addr uint, size int, zero bool) (r *Region, err error) {
	if addr == 0 || size <= 0 {
		return nil, errors.New("invalid DMA region")
	}

	if addr+uint(size) < addr {
		return nil, errors.New("invalid DMA region size")
	}

	r = &Region{
		start: addr,
		size:  uint(size),
	}

	if zero {
		mem := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)

		for i := range mem {
			mem[i] = 0
		}
	}

	// initialize a single block to fit all available memory
	b := &block{
		addr: r.start,
		size: r.size,
	}

	r.freeBlocks = list.New()
	r.freeBlocks.PushFront(b)

	r.usedBlocks = make(map[uint]*block)

	return
}

// Default returns the global DMA region instance.
func Default() *Region {
	return dma
}

// Reserve is the equivalent of Region.Reserve() on the global DMA region.
func Reserve(size int, align int) (addr uint, buf []byte) {
	return dma.Reserve(size, align)
}

// Reserved is the equivalent of Region.Reserved() on the global DMA region.
func Reserved(buf []byte) (res bool, addr uint) {
	return dma.Reserved(buf)
}

// Alloc is the equivalent of Region.Alloc() on the global DMA region.
func Alloc(buf []byte, align int) (addr uint) {
	return dma.Alloc(buf, align)
}

// Read is the equivalent of Region.Read() on the global DMA region.
func Read(addr uint, off int, buf []byte) {
	dma.Read(addr, off, buf)
}

// Write is the equivalent of Region.Write() on the global DMA region.
func Write(addr uint, off int, buf []byte) {
	dma.Write(addr, off, buf)
}

// Free is the equivalent of Region.Free() on the global DMA region.
func Free(addr uint) {
	dma.Free(addr)
}

// Release is the equivalent of Region.Release() on the global DMA region.
func Release(addr uint) {
	dma.Release(addr)
}
