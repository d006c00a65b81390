// Package arch defines the guest physical memory layout constants for the
// architectures the VMM can boot.
package arch

// Layout describes the fixed guest addresses and allocation windows used
// while preparing a VM for boot on one architecture family.
type Layout struct {
	// RSDPAddr is the fixed, well-known guest address where the root
	// system descriptor pointer is written. Guests discover the ACPI
	// table chain by reading this address.
	RSDPAddr uint64

	// TableMemStart and TableMemSize bound the physical address window
	// from which table placement addresses are allocated.
	TableMemStart uint64
	TableMemSize  uint64

	// IRQBase and IRQMax bound (inclusive) the global system interrupt
	// ids available to devices.
	IRQBase uint32
	IRQMax  uint32

	// APICAddr is the base address of each CPU's local interrupt
	// controller. Unused (zero) on arm64 where the equivalent MADT
	// field is ignored by the guest.
	APICAddr uint32

	// IOAPICAddr is the address of the I/O interrupt controller.
	// Only meaningful on amd64.
	IOAPICAddr uint32
}

// AMD64 is the guest layout for x86-64 VMs. The RSDP lives in the EBDA
// area and tables are placed at the start of high memory.
var AMD64 = Layout{
	RSDPAddr:      0xe0000,
	TableMemStart: 0x10_0000,
	TableMemSize:  0x1000,
	IRQBase:       5,
	IRQMax:        23,
	APICAddr:      0xfee0_0000,
	IOAPICAddr:    0xfec0_0000,
}

// ARM64 is the guest layout for aarch64 VMs. DRAM starts at 2GiB; the
// RSDP is written at the very start of it with the table window right
// after.
var ARM64 = Layout{
	RSDPAddr:      0x8000_0000,
	TableMemStart: 0x8000_0040,
	TableMemSize:  0x1000,
	IRQBase:       32,
	IRQMax:        127,
}
