package resource

import (
	"sort"

	"microvm/vmm"
)

var (
	// ErrAddressSpaceExhausted is returned when no free gap inside the
	// managed range can satisfy an allocation request.
	ErrAddressSpaceExhausted = &vmm.Error{Module: "resource", Message: "address space exhausted"}

	errUnknownPolicy = &vmm.Error{Module: "resource", Message: "unknown allocation policy"}
)

// AllocPolicy selects how the address allocator places a new allocation
// inside the free space. The set of policies is an open enumeration
// defined by the allocator contract; only PolicyFirstMatch is implemented
// and requests carrying an unknown policy fail.
type AllocPolicy uint8

const (
	// PolicyFirstMatch places the allocation at the lowest suitably
	// aligned free address.
	PolicyFirstMatch AllocPolicy = iota
)

// addrRange is one committed allocation inside the managed window.
type addrRange struct {
	start uint64
	size  uint64
}

func (r addrRange) end() uint64 { return r.start + r.size }

// AddressAllocator manages a bounded physical address range and carves
// non-overlapping sub-ranges out of it. Allocations are never returned to
// the pool; everything placed during boot preparation stays where it is
// for the lifetime of the VM.
type AddressAllocator struct {
	base uint64
	size uint64

	// allocated holds the committed ranges ordered by start address.
	allocated []addrRange
}

// NewAddressAllocator creates an allocator over [base, base+size).
func NewAddressAllocator(base, size uint64) (*AddressAllocator, *vmm.Error) {
	if size == 0 || base+size < base {
		return nil, ErrInvalidParameters
	}

	return &AddressAllocator{base: base, size: size}, nil
}

// Allocate reserves a free region of size bytes whose first byte address
// is a multiple of alignment and returns that address. Alignment must be a
// power of two; an alignment of zero is rejected.
func (a *AddressAllocator) Allocate(size, alignment uint64, policy AllocPolicy) (uint64, *vmm.Error) {
	if size == 0 || alignment == 0 || alignment&(alignment-1) != 0 {
		return 0, ErrInvalidParameters
	}
	if policy != PolicyFirstMatch {
		return 0, errUnknownPolicy
	}

	// Walk the gaps between committed ranges in address order and take
	// the first one that fits.
	next := a.base
	for _, r := range a.allocated {
		if start, ok := fitGap(next, r.start, size, alignment); ok {
			a.commit(addrRange{start: start, size: size})
			return start, nil
		}
		next = r.end()
	}

	if start, ok := fitGap(next, a.base+a.size, size, alignment); ok {
		a.commit(addrRange{start: start, size: size})
		return start, nil
	}

	return 0, ErrAddressSpaceExhausted
}

// fitGap aligns lo upwards and reports whether [start, start+size) still
// fits below hi.
func fitGap(lo, hi, size, alignment uint64) (uint64, bool) {
	start := (lo + alignment - 1) &^ (alignment - 1)
	if start < lo {
		// Aligning overflowed the address space.
		return 0, false
	}
	if start >= hi || hi-start < size {
		return 0, false
	}
	return start, true
}

// commit inserts the range keeping the allocated list sorted by start.
func (a *AddressAllocator) commit(r addrRange) {
	i := sort.Search(len(a.allocated), func(i int) bool {
		return a.allocated[i].start > r.start
	})

	a.allocated = append(a.allocated, addrRange{})
	copy(a.allocated[i+1:], a.allocated[i:])
	a.allocated[i] = r
}
