package table

import (
	"microvm/vmm"
)

// AddressSpace defines the location where a set of hardware registers
// resides.
type AddressSpace uint8

// The list of supported address space types.
const (
	AddressSpaceSysMemory AddressSpace = iota
	AddressSpaceSysIO
	AddressSpacePCI
	AddressSpaceEmbController
	AddressSpaceSMBus
	AddressSpaceSysCMOS
	AddressSpacePCIBarTarget
	AddressSpaceIPMI
	AddressSpaceGPIO
	AddressSpaceGenericSerialBus
	AddressSpacePCC
	AddressSpacePRM
	AddressSpaceFuncFixedHW AddressSpace = 0x7f
)

// GenericAddress specifies a register range located in a particular
// address space. It appears inside the FADT and encodes to 12 bytes.
type GenericAddress struct {
	Space      AddressSpace
	BitWidth   uint8
	BitOffset  uint8
	AccessSize uint8
	Address    uint64
}

// NewGenericAddress builds a register descriptor with explicit values for
// every field.
func NewGenericAddress(space AddressSpace, bitWidth, bitOffset, accessSize uint8, addr uint64) GenericAddress {
	return GenericAddress{
		Space:      space,
		BitWidth:   bitWidth,
		BitOffset:  bitOffset,
		AccessSize: accessSize,
		Address:    addr,
	}
}

// SystemIOAddress describes a register block of bitWidth bits in the
// system I/O space. The access size is derived from the register width;
// widths other than 8, 16, 32 or 64 bits are rejected.
func SystemIOAddress(bitWidth uint8, addr uint64) (GenericAddress, *vmm.Error) {
	switch bitWidth {
	case 8, 16, 32, 64:
	default:
		return GenericAddress{}, errInvalidRegisterSize
	}

	return GenericAddress{
		Space:      AddressSpaceSysIO,
		BitWidth:   bitWidth,
		AccessSize: bitWidth / 8,
		Address:    addr,
	}, nil
}

func (g GenericAddress) bytes() []byte {
	return mustEncode(g)
}
