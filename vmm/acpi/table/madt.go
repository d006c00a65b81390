package table

import (
	"microvm/vmm"
	"microvm/vmm/memory"
)

// MADT interrupt controller entry type tags. Each entry starts with a
// one-byte tag and a one-byte length so guests can walk the sequence
// without an external count.
const (
	madtEntryLocalAPIC      uint8 = 0x00
	madtEntryIOAPIC         uint8 = 0x01
	madtEntryGICCPU         uint8 = 0x0b
	madtEntryGICDistributor uint8 = 0x0c
	madtEntryGICRedist      uint8 = 0x0e
	madtEntryGICITS         uint8 = 0x0f
)

// madtEnabledFlag marks an interrupt controller entry as usable.
const madtEnabledFlag uint32 = 1

// armAffinityMask keeps the architecturally valid affinity fields of an
// MPIDR register value: Aff0-Aff2 in bits [23:0] and Aff3 in bits
// [39:32]. Everything else must read as zero in the MADT.
const armAffinityMask uint64 = 0xff_00ff_ffff

// MADT is the multiple APIC description table. It enumerates every
// interrupt controller the guest can see as a sequence of variable-sized,
// self-describing entries.
type MADT struct {
	header               SDTHeader
	baseAddress          uint32
	flags                uint32
	interruptControllers []byte
}

// NewMADT creates an interrupt controller enumeration with no entries.
// baseAddress is the address of each CPU's local interrupt controller;
// architectures that do not use it pass zero.
func NewMADT(oemID, oemTableID string, oemRevision uint32, baseAddress uint32) *MADT {
	return &MADT{
		header:      newSDTHeader("APIC", sdtHeaderLen+8, 6, oemID, oemTableID, oemRevision),
		baseAddress: baseAddress,
	}
}

// AddInterruptController appends one serialized entry to the table. The
// header length grows by exactly the entry's byte count; the checksum is
// recomputed when the table is written, not here.
func (m *MADT) AddInterruptController(entry []byte) {
	m.interruptControllers = append(m.interruptControllers, entry...)
	m.header.Length += uint32(len(entry))
}

// Len returns the total table size.
func (m *MADT) Len() int {
	return int(m.header.Length)
}

// WriteToGuest finalizes the checksum over header, base address, flags
// and the full entry sequence, then writes the pieces contiguously at the
// given guest address.
func (m *MADT) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	m.header.Checksum = 0
	m.header.Checksum = Checksum(
		m.header.bytes(),
		mustEncode(m.baseAddress, m.flags),
		m.interruptControllers,
	)

	if err := writeSlice(guest, m.header.bytes(), addr); err != nil {
		return err
	}

	addr, err := checkedAdd(addr, sdtHeaderLen)
	if err != nil {
		return err
	}
	if err := writeSlice(guest, mustEncode(m.baseAddress, m.flags), addr); err != nil {
		return err
	}

	addr, err = checkedAdd(addr, 8)
	if err != nil {
		return err
	}

	return writeSlice(guest, m.interruptControllers, addr)
}

// LocalAPIC describes one virtual CPU and its local interrupt controller.
type LocalAPIC struct {
	entryType    uint8
	length       uint8
	processorUID uint8
	apicID       uint8
	flags        uint32
}

// NewLocalAPIC creates an enabled local controller entry for the CPU with
// the given id.
func NewLocalAPIC(cpuID uint8) LocalAPIC {
	return LocalAPIC{
		entryType:    madtEntryLocalAPIC,
		length:       8,
		processorUID: cpuID,
		apicID:       cpuID,
		flags:        madtEnabledFlag,
	}
}

// Bytes serializes the entry.
func (l LocalAPIC) Bytes() []byte {
	return mustEncode(l.entryType, l.length, l.processorUID, l.apicID, l.flags)
}

// IOAPIC describes the I/O interrupt controller.
type IOAPIC struct {
	entryType   uint8
	length      uint8
	ioapicID    uint8
	reserved    uint8
	apicAddress uint32
	gsiBase     uint32
}

// NewIOAPIC creates an I/O controller entry handling global system
// interrupts starting at 0.
func NewIOAPIC(ioapicID uint8, apicAddress uint32) IOAPIC {
	return IOAPIC{
		entryType:   madtEntryIOAPIC,
		length:      12,
		ioapicID:    ioapicID,
		apicAddress: apicAddress,
	}
}

// Bytes serializes the entry.
func (i IOAPIC) Bytes() []byte {
	return mustEncode(i.entryType, i.length, i.ioapicID, i.reserved, i.apicAddress, i.gsiBase)
}

// GICCPUInterface describes one virtual CPU's GIC CPU interface.
type GICCPUInterface struct {
	entryType            uint8
	length               uint8
	reserved0            uint16
	cpuInterfaceNumber   uint32
	uid                  uint32
	flags                uint32
	parkingVersion       uint32
	performanceInterrupt uint32
	parkedAddress        uint64
	baseAddress          uint64
	gicvBaseAddress      uint64
	gichBaseAddress      uint64
	vgicInterrupt        uint32
	gicrBaseAddress      uint64
	mpidr                uint64
	powerEffiClass       uint8
	reserved1            uint8
	speOverflowInterrupt uint16
}

// NewGICCPUInterface creates an enabled CPU interface entry. The MPIDR
// register value is reduced to its valid affinity fields.
func NewGICCPUInterface(cpuID uint8, mpidr uint64) GICCPUInterface {
	return GICCPUInterface{
		entryType:          madtEntryGICCPU,
		length:             80,
		cpuInterfaceNumber: uint32(cpuID),
		uid:                uint32(cpuID),
		flags:              madtEnabledFlag,
		mpidr:              mpidr & armAffinityMask,
	}
}

// Bytes serializes the entry.
func (g GICCPUInterface) Bytes() []byte {
	return mustEncode(
		g.entryType, g.length, g.reserved0, g.cpuInterfaceNumber, g.uid,
		g.flags, g.parkingVersion, g.performanceInterrupt,
		g.parkedAddress, g.baseAddress, g.gicvBaseAddress,
		g.gichBaseAddress, g.vgicInterrupt, g.gicrBaseAddress, g.mpidr,
		g.powerEffiClass, g.reserved1, g.speOverflowInterrupt,
	)
}

// GICDistributor describes the GICv3 distributor.
type GICDistributor struct {
	entryType     uint8
	length        uint8
	reserved0     uint16
	gicID         uint32
	baseAddress   uint64
	globalIRQBase uint32
	version       uint8
	reserved1     [3]uint8
}

// NewGICDistributor creates the distributor entry for a GICv3 at the
// given base address.
func NewGICDistributor(baseAddress uint64) GICDistributor {
	return GICDistributor{
		entryType:   madtEntryGICDistributor,
		length:      24,
		baseAddress: baseAddress,
		version:     3,
	}
}

// Bytes serializes the entry.
func (g GICDistributor) Bytes() []byte {
	return mustEncode(g.entryType, g.length, g.reserved0, g.gicID,
		g.baseAddress, g.globalIRQBase, g.version, g.reserved1)
}

// GICRedistributor describes the GIC redistributor region.
type GICRedistributor struct {
	entryType   uint8
	length      uint8
	reserved    uint16
	baseAddress uint64
	rangeLength uint32
}

// NewGICRedistributor creates the redistributor entry covering size bytes
// at the given base address.
func NewGICRedistributor(baseAddress uint64, size uint32) GICRedistributor {
	return GICRedistributor{
		entryType:   madtEntryGICRedist,
		length:      16,
		baseAddress: baseAddress,
		rangeLength: size,
	}
}

// Bytes serializes the entry.
func (g GICRedistributor) Bytes() []byte {
	return mustEncode(g.entryType, g.length, g.reserved, g.baseAddress, g.rangeLength)
}

// GICITS describes the GIC interrupt translation service.
type GICITS struct {
	entryType     uint8
	length        uint8
	reserved0     uint16
	translationID uint32
	baseAddress   uint64
	reserved1     uint32
}

// NewGICITS creates the translation service entry at the given base
// address.
func NewGICITS(baseAddress uint64) GICITS {
	return GICITS{
		entryType:   madtEntryGICITS,
		length:      20,
		baseAddress: baseAddress,
	}
}

// Bytes serializes the entry.
func (g GICITS) Bytes() []byte {
	return mustEncode(g.entryType, g.length, g.reserved0, g.translationID, g.baseAddress, g.reserved1)
}
