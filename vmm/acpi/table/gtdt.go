package table

import (
	"microvm/vmm"
	"microvm/vmm/memory"
)

// Generic timer flag bits: interrupt mode (bit 0, 0 = level triggered),
// interrupt polarity (bit 1, 0 = active high) and always-on capability
// (bit 2).
const (
	gtdtLevelTriggered uint32 = 0 << 0
	gtdtActiveHigh     uint32 = 0 << 1
	gtdtAlwaysOn       uint32 = 1 << 2
)

// Per-channel interrupt ids for the architected timers. The arm
// architecture reserves PPIs 16-31; the timer PPIs sit at 13, 14, 11 and
// 10 within that block.
const (
	gtdtSecureEL1GSIV    uint32 = 13 + 16
	gtdtNonSecureEL1GSIV uint32 = 14 + 16
	gtdtVirtualEL1GSIV   uint32 = 11 + 16
	gtdtEL2GSIV          uint32 = 10 + 16
)

// gtdtBody is the fixed-shape payload describing the four architected
// timer channels.
type gtdtBody struct {
	cntControlBase      uint64
	reserved            uint32
	secureEL1GSIV       uint32
	secureEL1Flags      uint32
	nonSecureEL1GSIV    uint32
	nonSecureEL1Flags   uint32
	virtualEL1GSIV      uint32
	virtualEL1Flags     uint32
	el2GSIV             uint32
	el2Flags            uint32
	cntReadBase         uint64
	platformTimerCount  uint32
	platformTimerOffset uint32
	virtualEL2GSIV      uint32
	virtualEL2Flags     uint32
}

// GTDT is the generic timer description table.
type GTDT struct {
	header SDTHeader
	body   gtdtBody
}

// NewGTDT creates the timer description. All four channels are level
// triggered and active high; the non-secure EL1 timer additionally
// advertises always-on capability so the guest can use it as a wakeup
// source.
func NewGTDT(oemID, oemTableID string, oemRevision uint32) *GTDT {
	body := gtdtBody{
		secureEL1GSIV:     gtdtSecureEL1GSIV,
		secureEL1Flags:    gtdtLevelTriggered | gtdtActiveHigh,
		nonSecureEL1GSIV:  gtdtNonSecureEL1GSIV,
		nonSecureEL1Flags: gtdtLevelTriggered | gtdtActiveHigh | gtdtAlwaysOn,
		virtualEL1GSIV:    gtdtVirtualEL1GSIV,
		virtualEL1Flags:   gtdtLevelTriggered | gtdtActiveHigh,
		el2GSIV:           gtdtEL2GSIV,
		el2Flags:          gtdtLevelTriggered | gtdtActiveHigh,
	}

	gtdt := &GTDT{body: body}
	gtdt.header = newSDTHeader("GTDT", uint32(sdtHeaderLen+len(gtdt.bodyBytes())), 2, oemID, oemTableID, oemRevision)

	return gtdt
}

func (g *GTDT) bodyBytes() []byte {
	return mustEncode(
		g.body.cntControlBase, g.body.reserved, g.body.secureEL1GSIV,
		g.body.secureEL1Flags, g.body.nonSecureEL1GSIV,
		g.body.nonSecureEL1Flags, g.body.virtualEL1GSIV,
		g.body.virtualEL1Flags, g.body.el2GSIV, g.body.el2Flags,
		g.body.cntReadBase, g.body.platformTimerCount,
		g.body.platformTimerOffset, g.body.virtualEL2GSIV,
		g.body.virtualEL2Flags,
	)
}

// Len returns the total table size.
func (g *GTDT) Len() int {
	return int(g.header.Length)
}

// WriteToGuest finalizes the checksum and writes header then payload at
// the given guest address.
func (g *GTDT) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	g.header.Checksum = 0
	g.header.Checksum = Checksum(g.header.bytes(), g.bodyBytes())

	if err := writeSlice(guest, g.header.bytes(), addr); err != nil {
		return err
	}

	addr, err := checkedAdd(addr, sdtHeaderLen)
	if err != nil {
		return err
	}

	return writeSlice(guest, g.bodyBytes(), addr)
}
