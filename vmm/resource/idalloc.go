package resource

import (
	"microvm/vmm"
)

var (
	// ErrIDSpaceExhausted is returned when no free id remains in the
	// allocator's range.
	ErrIDSpaceExhausted = &vmm.Error{Module: "resource", Message: "interrupt id space exhausted"}

	// ErrInvalidParameters is returned when an allocation request or
	// allocator construction uses out-of-contract arguments.
	ErrInvalidParameters = &vmm.Error{Module: "resource", Message: "invalid allocator parameters"}

	errIDOutOfRange = &vmm.Error{Module: "resource", Message: "id outside allocator range"}
	errIDNotInUse   = &vmm.Error{Module: "resource", Message: "id is not currently allocated"}
)

// IDAllocator hands out integer ids from a fixed inclusive range. It is
// used to assign global system interrupt lines to devices so that no two
// devices share a line.
type IDAllocator struct {
	base uint32
	max  uint32
	used map[uint32]struct{}
}

// NewIDAllocator creates an allocator over the inclusive range [base, max].
func NewIDAllocator(base, max uint32) (*IDAllocator, *vmm.Error) {
	if max < base {
		return nil, ErrInvalidParameters
	}

	return &IDAllocator{
		base: base,
		max:  max,
		used: make(map[uint32]struct{}),
	}, nil
}

// AllocateID reserves and returns the lowest free id in the range.
func (a *IDAllocator) AllocateID() (uint32, *vmm.Error) {
	for id := a.base; id <= a.max; id++ {
		if _, inUse := a.used[id]; !inUse {
			a.used[id] = struct{}{}
			return id, nil
		}
	}

	return 0, ErrIDSpaceExhausted
}

// FreeID returns a previously allocated id to the pool.
func (a *IDAllocator) FreeID(id uint32) *vmm.Error {
	if id < a.base || id > a.max {
		return errIDOutOfRange
	}

	if _, inUse := a.used[id]; !inUse {
		return errIDNotInUse
	}

	delete(a.used, id)
	return nil
}

// FreeCount returns the number of ids still available for allocation.
func (a *IDAllocator) FreeCount() uint32 {
	return (a.max - a.base + 1) - uint32(len(a.used))
}
