// First-fit memory allocator for DMA buffers
// https://github.com/usbarmory/uhci
//
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

import (
	"bytes"
	"runtime"
	"testing"
	"unsafe"
)

func newTestRegion(t *testing.T, size int) *Region {
	t.Helper()

	mem := make([]byte, size+4096)
	addr := uint(uintptr(unsafe.Pointer(&mem[0])))
	addr += -addr & 4095

	r, err := NewRegion(addr, size, true)

	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		runtime.KeepAlive(mem)
	})

	return r
}

func TestReserveAlignment(t *testing.T) {
	r := newTestRegion(t, 1<<16)

	for _, align := range []int{16, 256, 4096} {
		addr, buf := r.Reserve(64, align)

		if addr == 0 || len(buf) != 64 {
			t.Fatalf("invalid reservation %#x (%d bytes)", addr, len(buf))
		}

		if addr&uint(align-1) != 0 {
			t.Errorf("address %#x is not %d byte aligned", addr, align)
		}

		// the slice must be backed by the reservation itself
		buf[0] = 0xaa

		if res, ptr := r.Reserved(buf); !res || ptr != addr {
			t.Errorf("buffer not backed by the region (%#x != %#x)", ptr, addr)
		}

		r.Release(addr)
	}
}

func TestInvalidRegion(t *testing.T) {
	for _, tt := range []struct {
		addr uint
		size int
	}{
		{0, 4096},
		{4096, 0},
		{4096, -1},
		{^uint(0) - 16, 4096},
	} {
		if r, err := NewRegion(tt.addr, tt.size, false); err == nil || r != nil {
			t.Errorf("NewRegion(%#x, %d) = %v, expected error", tt.addr, tt.size, r)
		}
	}
}

func TestAllocRoundTrip(t *testing.T) {
	r := newTestRegion(t, 1<<16)

	data := []byte{0xde, 0xad, 0xbe, 0xef}
	addr := r.Alloc(data, 4)

	got := make([]byte, len(data))
	r.Read(addr, 0, got)

	if !bytes.Equal(got, data) {
		t.Errorf("read back %x, expected %x", got, data)
	}

	r.Write(addr, 2, []byte{0xff})
	r.Read(addr, 0, got)

	if !bytes.Equal(got, []byte{0xde, 0xad, 0xff, 0xef}) {
		t.Errorf("unexpected contents %x after offset write", got)
	}

	r.Free(addr)
}

func TestExhaustion(t *testing.T) {
	r := newTestRegion(t, 4096)

	defer func() {
		if recover() == nil {
			t.Error("expected out of memory panic")
		}
	}()

	for {
		r.Reserve(4096, 0)
	}
}
