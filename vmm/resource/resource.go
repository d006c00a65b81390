// Package resource manages the two allocation domains consumed while
// preparing a VM for boot: global system interrupt ids and a physical
// address window for firmware data and device register blocks.
package resource

import (
	"sync/atomic"

	"microvm/vmm"
	"microvm/vmm/arch"
)

// ErrReentrantUse is returned when an allocation is attempted while
// another allocation on the same sub-allocator is still in flight. All
// boot-preparation code runs on a single execution context, so an in
// flight allocation can only mean a reentrant call.
var ErrReentrantUse = &vmm.Error{Module: "resource", Message: "reentrant use of allocator"}

// guard is a non-reentrant entry latch for a sub-allocator. Unlike a
// lock it never waits: a second entry while the latch is held is a
// caller bug and is reported as such.
type guard struct {
	state uint32
}

// enter latches the guard and reports whether it was free.
func (g *guard) enter() bool {
	return atomic.SwapUint32(&g.state, 1) == 0
}

// leave releases the guard.
func (g *guard) leave() {
	atomic.StoreUint32(&g.state, 0)
}

// Allocator owns the interrupt-line and physical-address allocation
// domains for one VM. It is shared by reference between the firmware
// table builder and the device managers; every mutation happens on the
// single boot-preparation execution context.
type Allocator struct {
	gsiGuard guard
	gsi      *IDAllocator

	memGuard guard
	mem      *AddressAllocator
}

// NewAllocator creates the resource allocator for a VM using the given
// architecture layout.
func NewAllocator(layout arch.Layout) (*Allocator, *vmm.Error) {
	gsi, err := NewIDAllocator(layout.IRQBase, layout.IRQMax)
	if err != nil {
		return nil, err
	}

	mem, err := NewAddressAllocator(layout.TableMemStart, layout.TableMemSize)
	if err != nil {
		return nil, err
	}

	return &Allocator{gsi: gsi, mem: mem}, nil
}

// AllocateGSIs reserves count distinct interrupt ids. If the range runs
// out mid-batch, every id reserved by this call is released again before
// the error is returned; callers never observe a partial batch.
func (a *Allocator) AllocateGSIs(count uint32) ([]uint32, *vmm.Error) {
	if count == 0 {
		return nil, ErrInvalidParameters
	}

	if !a.gsiGuard.enter() {
		return nil, ErrReentrantUse
	}
	defer a.gsiGuard.leave()

	gsis := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := a.gsi.AllocateID()
		if err != nil {
			for _, got := range gsis {
				// The id was allocated a moment ago, freeing it
				// cannot fail.
				_ = a.gsi.FreeID(got)
			}
			return nil, err
		}
		gsis = append(gsis, id)
	}

	return gsis, nil
}

// FreeGSI returns a previously reserved interrupt id to the pool.
func (a *Allocator) FreeGSI(id uint32) *vmm.Error {
	if !a.gsiGuard.enter() {
		return ErrReentrantUse
	}
	defer a.gsiGuard.leave()

	return a.gsi.FreeID(id)
}

// AllocateMemory reserves a region of size bytes with the requested
// alignment inside the VM's table window and returns its first address.
func (a *Allocator) AllocateMemory(size, alignment uint64, policy AllocPolicy) (uint64, *vmm.Error) {
	if !a.memGuard.enter() {
		return 0, ErrReentrantUse
	}
	defer a.memGuard.leave()

	return a.mem.Allocate(size, alignment, policy)
}
