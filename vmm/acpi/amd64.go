package acpi

import (
	"microvm/vmm/acpi/table"
	"microvm/vmm/arch"
)

// AMD64 is the table-chain variant for x86-64 guests: local APIC and I/O
// APIC interrupt controller entries, IA-PC boot flags and no extra
// tables.
type AMD64 struct{}

// Layout implements Variant.
func (AMD64) Layout() arch.Layout {
	return arch.AMD64
}

// SetupFADT announces the absent VGA and the available MSI and PCI ASPM
// controls so the guest skips probing for legacy hardware.
func (AMD64) SetupFADT(fadt *table.FADT) {
	fadt.SetIAPCBootArch(1<<table.IAPCFlagVGANotPresent |
		1<<table.IAPCFlagMSINotPresent |
		1<<table.IAPCFlagPCIASPM)
}

// SetupInterruptControllers adds the single I/O APIC entry and one local
// APIC entry per virtual CPU.
func (AMD64) SetupInterruptControllers(madt *table.MADT, vcpus []VCPU) {
	madt.AddInterruptController(table.NewIOAPIC(0, arch.AMD64.IOAPICAddr).Bytes())
	for _, vcpu := range vcpus {
		madt.AddInterruptController(table.NewLocalAPIC(vcpu.ID()).Bytes())
	}
}

// ExtraTables implements Variant. x86-64 guests need no tables beyond
// the common set.
func (AMD64) ExtraTables([]VCPU) []table.SDT {
	return nil
}
