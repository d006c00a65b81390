package table

import (
	"microvm/vmm"
	"microvm/vmm/memory"
)

const rsdpLen = 36

// RSDP is the root system descriptor pointer, the entry point guests
// scan for when initializing ACPI. Only the extended (64-bit) chain is
// produced, so the legacy RSDT address stays zero and the revision is
// fixed at 2.
type RSDP struct {
	Signature        [8]byte
	Checksum         uint8
	OEMID            [6]byte
	Revision         uint8
	RSDTAddr         uint32
	Length           uint32
	XSDTAddr         uint64
	ExtendedChecksum uint8
	Reserved         [3]byte
}

// NewRSDP creates the root pointer referencing the XSDT at xsdtAddr.
// Both checksums are computed here; the structure is immutable
// afterwards.
func NewRSDP(oemID string, xsdtAddr uint64) *RSDP {
	rsdp := &RSDP{
		// The trailing space is part of the signature.
		Signature: [8]byte{'R', 'S', 'D', ' ', 'P', 'T', 'R', ' '},
		Revision:  2,
		Length:    rsdpLen,
		XSDTAddr:  xsdtAddr,
	}
	copyPadded(rsdp.OEMID[:], oemID)

	// The first checksum covers the ACPI 1.0 part of the structure, the
	// extended one covers all of it (including the first checksum).
	rsdp.Checksum = Checksum(rsdp.bytes()[:20])
	rsdp.ExtendedChecksum = Checksum(rsdp.bytes())

	return rsdp
}

func (r *RSDP) bytes() []byte {
	return mustEncode(r)
}

// Len returns the total size of the structure.
func (r *RSDP) Len() int {
	return rsdpLen
}

// WriteToGuest writes the root pointer at the given guest address. The
// checksums were already finalized at construction time.
func (r *RSDP) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	return writeSlice(guest, r.bytes(), addr)
}
