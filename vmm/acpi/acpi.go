// Package acpi builds the ACPI table chain that describes the virtual
// machine to the guest and places it in guest memory before the first
// vCPU starts running. The tables are built in dependency order (DSDT,
// FADT, MADT, architecture extras, XSDT, RSDP) so that every table that
// points at another one is constructed after its pointee has been
// assigned an address.
package acpi

import (
	"microvm/vmm"
	"microvm/vmm/acpi/table"
	"microvm/vmm/arch"
	"microvm/vmm/memory"
	"microvm/vmm/resource"
)

const (
	// oemID names the manufacturer of the virtual hardware in every
	// table header.
	oemID = "MICROV"

	// oemRevision is the revision of our implementation of each table.
	// A single value is used for all of them.
	oemRevision uint32 = 0

	// hypervisorVendorID is embedded in the FADT to let the guest know
	// which VMM it runs under.
	hypervisorVendorID = "MICROVMM"

	// sciInterrupt is the system control interrupt line advertised in
	// the FADT.
	sciInterrupt uint16 = 9

	// The PM1a event and control register blocks live back to back in
	// the system I/O space.
	pm1aEvtAddr uint64 = 0x500
	pm1aCntAddr uint64 = 0x504

	// tableAlignment is the placement alignment requested for every
	// table.
	tableAlignment = 64
)

// NamespaceSource is implemented by collaborators (device managers, CPU
// containers) that contribute serialized namespace objects to the DSDT.
// AppendNamespaceBytes appends the collaborator's opaque definition-block
// bytes to dst and returns the extended slice.
type NamespaceSource interface {
	AppendNamespaceBytes(dst []byte) []byte
}

// VCPU exposes the per-CPU information the table chain needs: a stable
// identifier, the affinity register value (meaningful on arm64 only) and
// the CPU's namespace presence.
type VCPU interface {
	NamespaceSource

	ID() uint8
	MPIDR() uint64
}

// GIC describes the interrupt controller regions of an arm64 VM.
type GIC interface {
	DistributorAddr() uint64
	RedistributorAddr() uint64
	RedistributorSize() uint32
	ITSAddr() uint64
}

// Variant captures the per-architecture portion of the table chain. The
// orchestrator selects one implementation when the VM is configured and
// never branches on architecture afterwards.
type Variant interface {
	// Layout returns the guest physical layout for this architecture.
	Layout() arch.Layout

	// SetupFADT applies architecture boot flags to the fixed hardware
	// description.
	SetupFADT(fadt *table.FADT)

	// SetupInterruptControllers populates the MADT entry sequence.
	SetupInterruptControllers(madt *table.MADT, vcpus []VCPU)

	// ExtraTables returns the additional tables this architecture
	// requires, in the order they should appear in the XSDT.
	ExtraTables(vcpus []VCPU) []table.SDT
}

// Manager sequences table construction for one VM. Placement addresses
// come from the shared resource allocator; the root pointer alone goes to
// the architecture's fixed address.
type Manager struct {
	res     *resource.Allocator
	variant Variant
}

// NewManager creates a table orchestrator using the given allocator and
// architecture variant.
func NewManager(res *resource.Allocator, variant Variant) *Manager {
	return &Manager{res: res, variant: variant}
}

// writeTable allocates a placement address for the finished table, writes
// it there and returns the address for use in referencing tables.
func (m *Manager) writeTable(guest memory.Memory, t table.SDT) (uint64, *vmm.Error) {
	addr, err := m.res.AllocateMemory(uint64(t.Len()), tableAlignment, resource.PolicyFirstMatch)
	if err != nil {
		return 0, err
	}

	if err := t.WriteToGuest(guest, addr); err != nil {
		return 0, err
	}

	return addr, nil
}

// buildDSDT assembles the definition block from every namespace
// collaborator and writes the differentiated description table.
func (m *Manager) buildDSDT(guest memory.Memory, vcpus []VCPU, devices []NamespaceSource) (uint64, *vmm.Error) {
	var block []byte
	for _, vcpu := range vcpus {
		block = vcpu.AppendNamespaceBytes(block)
	}
	for _, dev := range devices {
		block = dev.AppendNamespaceBytes(block)
	}

	return m.writeTable(guest, table.NewDSDT(oemID, "MVVMDSDT", oemRevision, block))
}

// buildFADT writes the fixed hardware description referencing the DSDT.
func (m *Manager) buildFADT(guest memory.Memory, dsdtAddr uint64) (uint64, *vmm.Error) {
	pm1aEvtBlk, err := table.SystemIOAddress(32, pm1aEvtAddr)
	if err != nil {
		return 0, err
	}
	pm1aCntBlk, err := table.SystemIOAddress(16, pm1aCntAddr)
	if err != nil {
		return 0, err
	}

	fadt := table.NewFADT(oemID, "MVVMFADT", oemRevision, dsdtAddr, sciInterrupt,
		pm1aEvtBlk, pm1aCntBlk, hypervisorVendorID)
	fadt.SetFlags(1<<table.FADTFlagHWReducedACPI |
		1<<table.FADTFlagPowerButton |
		1<<table.FADTFlagSleepButton)
	m.variant.SetupFADT(fadt)

	return m.writeTable(guest, fadt)
}

// buildMADT writes the interrupt controller enumeration.
func (m *Manager) buildMADT(guest memory.Memory, vcpus []VCPU) (uint64, *vmm.Error) {
	madt := table.NewMADT(oemID, "MVVMMADT", oemRevision, m.variant.Layout().APICAddr)
	m.variant.SetupInterruptControllers(madt, vcpus)

	return m.writeTable(guest, madt)
}

// CreateTables performs the full boot-time table build: every table is
// constructed, placed and written exactly once, and the root pointer is
// written last at the architecture's well-known address. The first
// failure aborts the sequence; already-written tables are left in place
// because the whole VM creation is abandoned on error.
func (m *Manager) CreateTables(guest memory.Memory, vcpus []VCPU, devices []NamespaceSource) *vmm.Error {
	dsdtAddr, err := m.buildDSDT(guest, vcpus, devices)
	if err != nil {
		return err
	}

	fadtAddr, err := m.buildFADT(guest, dsdtAddr)
	if err != nil {
		return err
	}

	madtAddr, err := m.buildMADT(guest, vcpus)
	if err != nil {
		return err
	}

	tableAddrs := []uint64{fadtAddr, madtAddr}
	for _, extra := range m.variant.ExtraTables(vcpus) {
		addr, err := m.writeTable(guest, extra)
		if err != nil {
			return err
		}
		tableAddrs = append(tableAddrs, addr)
	}

	xsdtAddr, err := m.writeTable(guest, table.NewXSDT(oemID, "MVVMXSDT", oemRevision, tableAddrs))
	if err != nil {
		return err
	}

	rsdp := table.NewRSDP(oemID, xsdtAddr)
	return rsdp.WriteToGuest(guest, m.variant.Layout().RSDPAddr)
}
