package acpi

import (
	"microvm/vmm/acpi/table"
	"microvm/vmm/arch"
)

// ARM64 is the table-chain variant for aarch64 guests: GIC interrupt
// controller entries plus the processor topology and generic timer
// tables. The GIC collaborator supplies the controller region addresses
// that the device manager negotiated with the hypervisor.
type ARM64 struct {
	GIC GIC
}

// Layout implements Variant.
func (ARM64) Layout() arch.Layout {
	return arch.ARM64
}

// SetupFADT implements Variant. The hardware-reduced profile needs no
// arch-specific FADT fields on aarch64.
func (ARM64) SetupFADT(*table.FADT) {}

// SetupInterruptControllers adds one GIC CPU interface entry per virtual
// CPU followed by the distributor, redistributor and interrupt
// translation service entries.
func (v ARM64) SetupInterruptControllers(madt *table.MADT, vcpus []VCPU) {
	for _, vcpu := range vcpus {
		madt.AddInterruptController(table.NewGICCPUInterface(vcpu.ID(), vcpu.MPIDR()).Bytes())
	}

	madt.AddInterruptController(table.NewGICDistributor(v.GIC.DistributorAddr()).Bytes())
	madt.AddInterruptController(table.NewGICRedistributor(v.GIC.RedistributorAddr(), v.GIC.RedistributorSize()).Bytes())
	madt.AddInterruptController(table.NewGICITS(v.GIC.ITSAddr()).Bytes())
}

// ExtraTables returns the processor topology and generic timer tables,
// in the order they are listed in the XSDT.
func (ARM64) ExtraTables(vcpus []VCPU) []table.SDT {
	return []table.SDT{
		table.NewPPTT(oemID, "MVVMPPTT", oemRevision, uint8(len(vcpus))),
		table.NewGTDT(oemID, "MVVMGTDT", oemRevision),
	}
}
