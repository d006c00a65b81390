package table

import (
	"encoding/binary"

	"microvm/vmm"
	"microvm/vmm/memory"
)

// XSDT is the extended system description table: a header followed by
// the 64-bit guest addresses of every other table, in caller-supplied
// order.
type XSDT struct {
	header SDTHeader
	tables []byte
}

// NewXSDT creates the table of tables referencing the given guest
// addresses.
func NewXSDT(oemID, oemTableID string, oemRevision uint32, tables []uint64) *XSDT {
	tableBytes := make([]byte, 0, 8*len(tables))
	for _, addr := range tables {
		tableBytes = binary.LittleEndian.AppendUint64(tableBytes, addr)
	}

	return &XSDT{
		header: newSDTHeader("XSDT", uint32(sdtHeaderLen+len(tableBytes)), 1, oemID, oemTableID, oemRevision),
		tables: tableBytes,
	}
}

// Len returns the total table size.
func (x *XSDT) Len() int {
	return int(x.header.Length)
}

// WriteToGuest finalizes the checksum and writes the table at the given
// guest address.
func (x *XSDT) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	x.header.Checksum = 0
	x.header.Checksum = Checksum(x.header.bytes(), x.tables)

	if err := writeSlice(guest, x.header.bytes(), addr); err != nil {
		return err
	}

	addr, err := checkedAdd(addr, sdtHeaderLen)
	if err != nil {
		return err
	}

	return writeSlice(guest, x.tables, addr)
}
