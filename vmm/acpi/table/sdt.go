// Package table implements generation of the ACPI tables that describe
// the virtual hardware to the guest: the root pointer (RSDP), the table
// of tables (XSDT), the fixed hardware description (FADT), the interrupt
// controller enumeration (MADT), the generic timer description (GTDT),
// the processor topology (PPTT) and the differentiated description
// (DSDT). Tables are serialized field by field in little-endian order and
// written into guest memory with a valid checksum; guests reject tables
// whose bytes do not sum to zero.
package table

import (
	"bytes"
	"encoding/binary"

	"microvm/vmm"
	"microvm/vmm/memory"
)

const (
	// creatorID identifies this implementation in every table header.
	creatorID = "MVAT"

	// creatorRevision is the build stamp embedded next to creatorID.
	creatorRevision uint32 = 0x20260825

	// sdtHeaderLen is the size of the common header shared by all
	// system descriptor tables.
	sdtHeaderLen = 36
)

var (
	errInvalidGuestAddress = &vmm.Error{Module: "acpi/table", Message: "invalid guest address"}
	errInvalidRegisterSize = &vmm.Error{Module: "acpi/table", Message: "invalid register size"}
)

// SDT is implemented by every generated table. Len reports the current
// total byte size (header plus payload). WriteToGuest finalizes the
// checksum over the exact final byte image and writes header then payload
// contiguously at the given guest physical address.
type SDT interface {
	Len() int
	WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error
}

// Checksum returns the byte that makes the wrapping sum of all bytes
// across bufs, including the returned byte, zero modulo 256. An empty
// input yields 0.
func Checksum(bufs ...[]byte) uint8 {
	var sum uint8
	for _, buf := range bufs {
		for _, b := range buf {
			sum += b
		}
	}

	return -sum
}

// SDTHeader is the 36-byte header shared by every system descriptor
// table except the root pointer.
type SDTHeader struct {
	Signature       [4]byte
	Length          uint32
	Revision        uint8
	Checksum        uint8
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       [4]byte
	CreatorRevision uint32
}

// newSDTHeader assembles a header with the checksum left at zero. The
// checksum is filled in by each table right before it is written.
func newSDTHeader(signature string, length uint32, revision uint8, oemID, oemTableID string, oemRevision uint32) SDTHeader {
	var hdr SDTHeader
	copyPadded(hdr.Signature[:], signature)
	copyPadded(hdr.OEMID[:], oemID)
	copyPadded(hdr.OEMTableID[:], oemTableID)
	copyPadded(hdr.CreatorID[:], creatorID)
	hdr.Length = length
	hdr.Revision = revision
	hdr.OEMRevision = oemRevision
	hdr.CreatorRevision = creatorRevision

	return hdr
}

func (h *SDTHeader) bytes() []byte {
	return mustEncode(h)
}

// copyPadded fills dst with s, space-padding on the right when s is
// shorter than dst.
func copyPadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = ' '
	}
}

// mustEncode serializes fixed-size values in declaration order using
// little-endian byte order. Encoding can only fail for types with
// non-fixed sizes, which is a programming error in this package.
func mustEncode(fields ...interface{}) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			panic("table: unencodable field: " + err.Error())
		}
	}

	return buf.Bytes()
}

// checkedAdd advances a guest address, failing instead of wrapping around
// the address space.
func checkedAdd(addr, off uint64) (uint64, *vmm.Error) {
	if addr+off < addr {
		return 0, errInvalidGuestAddress
	}

	return addr + off, nil
}

// writeSlice writes data into guest memory, wrapping any failure of the
// memory surface so callers can tell table-write failures apart from
// their own.
func writeSlice(guest memory.Memory, data []byte, addr uint64) *vmm.Error {
	if err := guest.WriteSlice(data, addr); err != nil {
		return vmm.WrapError("acpi/table", "guest memory write failed", err)
	}

	return nil
}
