package table

import (
	"microvm/vmm"
	"microvm/vmm/memory"
)

// DSDT is the differentiated system description table. Its payload is an
// opaque definition block serialized by the namespace-object collaborators;
// this generator only measures it for the header length and includes it in
// the checksum scope.
type DSDT struct {
	header          SDTHeader
	definitionBlock []byte
}

// NewDSDT creates the table around an already serialized definition
// block. Revision 2 selects 64-bit integer semantics for the embedded
// bytecode.
func NewDSDT(oemID, oemTableID string, oemRevision uint32, definitionBlock []byte) *DSDT {
	return &DSDT{
		header:          newSDTHeader("DSDT", uint32(sdtHeaderLen+len(definitionBlock)), 2, oemID, oemTableID, oemRevision),
		definitionBlock: definitionBlock,
	}
}

// Len returns the total table size.
func (d *DSDT) Len() int {
	return int(d.header.Length)
}

// WriteToGuest finalizes the checksum and writes header then definition
// block at the given guest address.
func (d *DSDT) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	d.header.Checksum = 0
	d.header.Checksum = Checksum(d.header.bytes(), d.definitionBlock)

	if err := writeSlice(guest, d.header.bytes(), addr); err != nil {
		return err
	}

	addr, err := checkedAdd(addr, sdtHeaderLen)
	if err != nil {
		return err
	}

	return writeSlice(guest, d.definitionBlock, addr)
}
