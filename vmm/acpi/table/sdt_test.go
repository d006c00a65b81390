package table

import (
	"encoding/binary"
	"testing"

	"microvm/vmm/memory"
)

// sumBytes adds up every byte of the provided buffers modulo 256.
func sumBytes(bufs ...[]byte) uint8 {
	var sum uint8
	for _, buf := range bufs {
		for _, b := range buf {
			sum += b
		}
	}
	return sum
}

func TestChecksum(t *testing.T) {
	specs := []struct {
		input  [][]byte
		expSum uint8
	}{
		{nil, 0},
		{[][]byte{{}}, 0},
		{[][]byte{{1, 2, 3}}, 250},
		{[][]byte{{1, 2, 3}, {}}, 250},
		{[][]byte{{1, 2}, {3}}, 250},
		{[][]byte{{1, 2}, {3}, {250}}, 0},
		{[][]byte{{255}}, 1},
		{[][]byte{{1, 2}, {3}, {250}, {255}}, 1},
	}

	for specIndex, spec := range specs {
		got := Checksum(spec.input...)
		if got != spec.expSum {
			t.Errorf("[spec %d] expected checksum %d; got %d", specIndex, spec.expSum, got)
		}

		// Appending the checksum must always zero the total sum.
		if total := sumBytes(spec.input...) + got; total != 0 {
			t.Errorf("[spec %d] expected total sum including checksum to be 0; got %d", specIndex, total)
		}
	}
}

func TestSDTHeaderLayout(t *testing.T) {
	hdr := newSDTHeader("APIC", 0x1234, 6, "MICROV", "TESTTBL", 7)
	b := hdr.bytes()

	if len(b) != sdtHeaderLen {
		t.Fatalf("expected header to serialize to %d bytes; got %d", sdtHeaderLen, len(b))
	}

	if got := string(b[0:4]); got != "APIC" {
		t.Errorf("expected signature APIC; got %q", got)
	}
	if got := binary.LittleEndian.Uint32(b[4:8]); got != 0x1234 {
		t.Errorf("expected length 0x1234; got 0x%x", got)
	}
	if b[8] != 6 {
		t.Errorf("expected revision 6; got %d", b[8])
	}
	if b[9] != 0 {
		t.Errorf("expected a fresh header checksum of 0; got %d", b[9])
	}
	if got := string(b[10:16]); got != "MICROV" {
		t.Errorf("expected OEM id %q; got %q", "MICROV", got)
	}
	// Short OEM table ids are space-padded to 8 bytes.
	if got := string(b[16:24]); got != "TESTTBL " {
		t.Errorf("expected OEM table id %q; got %q", "TESTTBL ", got)
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != 7 {
		t.Errorf("expected OEM revision 7; got %d", got)
	}
	if got := string(b[28:32]); got != creatorID {
		t.Errorf("expected creator id %q; got %q", creatorID, got)
	}
	if got := binary.LittleEndian.Uint32(b[32:36]); got != creatorRevision {
		t.Errorf("expected creator revision 0x%x; got 0x%x", creatorRevision, got)
	}
}

func TestCheckedAdd(t *testing.T) {
	specs := []struct {
		addr    uint64
		off     uint64
		expFail bool
	}{
		{0x1000, 0x100, false},
		{^uint64(0), 0, false},
		{^uint64(0), 1, true},
		{^uint64(0) - 10, 11, true},
	}

	for specIndex, spec := range specs {
		got, err := checkedAdd(spec.addr, spec.off)
		if gotFail := err != nil; gotFail != spec.expFail {
			t.Errorf("[spec %d] expected failure: %t; got error %v", specIndex, spec.expFail, err)
			continue
		}
		if !spec.expFail && got != spec.addr+spec.off {
			t.Errorf("[spec %d] expected 0x%x; got 0x%x", specIndex, spec.addr+spec.off, got)
		}
	}
}

// readTableBytes reads length bytes of a table back out of guest memory.
func readTableBytes(t *testing.T, guest memory.Memory, addr uint64, length int) []byte {
	t.Helper()

	buf := make([]byte, length)
	if err := guest.ReadSlice(buf, addr); err != nil {
		t.Fatalf("reading table at 0x%x: %v", addr, err)
	}
	return buf
}

// newTestRegion creates a guest memory region large enough for any table
// in these tests.
func newTestRegion(t *testing.T) *memory.Region {
	t.Helper()

	region, err := memory.NewRegion(0x10_0000, 0x4000)
	if err != nil {
		t.Fatal(err)
	}
	return region
}
