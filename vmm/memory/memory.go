// Package memory provides the byte-addressable guest physical memory
// surface that the boot-preparation code writes firmware data into.
package memory

import (
	"microvm/vmm"
)

var (
	// ErrOutOfRange is returned when an access extends past the end of
	// the backing region or starts before it.
	ErrOutOfRange = &vmm.Error{Module: "memory", Message: "access outside guest memory region"}

	errEmptyRegion = &vmm.Error{Module: "memory", Message: "guest memory region must have a non-zero size"}
)

// Memory is implemented by objects that expose a bounded, byte-addressable
// view of guest physical memory. Implementations must fail with an error
// wrapping ErrOutOfRange when an access does not fit inside the region.
type Memory interface {
	// WriteSlice copies data into guest memory starting at the absolute
	// guest physical address addr.
	WriteSlice(data []byte, addr uint64) *vmm.Error

	// ReadSlice fills data from guest memory starting at the absolute
	// guest physical address addr.
	ReadSlice(data []byte, addr uint64) *vmm.Error
}

// Region is a Memory implementation backed by a host buffer that maps a
// contiguous guest physical range starting at a base address.
type Region struct {
	base uint64
	data []byte
}

// NewRegion creates a guest memory region of size bytes whose first byte
// corresponds to guest physical address base.
func NewRegion(base, size uint64) (*Region, *vmm.Error) {
	if size == 0 {
		return nil, errEmptyRegion
	}

	return &Region{
		base: base,
		data: make([]byte, size),
	}, nil
}

// Base returns the guest physical address of the first byte in the region.
func (r *Region) Base() uint64 { return r.base }

// Size returns the region length in bytes.
func (r *Region) Size() uint64 { return uint64(len(r.data)) }

// WriteSlice implements Memory.
func (r *Region) WriteSlice(data []byte, addr uint64) *vmm.Error {
	off, err := r.offsetFor(addr, uint64(len(data)))
	if err != nil {
		return err
	}

	copy(r.data[off:], data)
	return nil
}

// ReadSlice implements Memory.
func (r *Region) ReadSlice(data []byte, addr uint64) *vmm.Error {
	off, err := r.offsetFor(addr, uint64(len(data)))
	if err != nil {
		return err
	}

	copy(data, r.data[off:])
	return nil
}

// offsetFor maps a guest physical address to an offset into the backing
// buffer, verifying that an access of length size fits inside the region.
func (r *Region) offsetFor(addr, size uint64) (uint64, *vmm.Error) {
	if addr < r.base {
		return 0, ErrOutOfRange
	}

	off := addr - r.base
	if off >= uint64(len(r.data)) || size > uint64(len(r.data))-off {
		return 0, ErrOutOfRange
	}

	return off, nil
}
