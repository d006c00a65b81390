package acpi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"microvm/vmm"
	"microvm/vmm/arch"
	"microvm/vmm/memory"
	"microvm/vmm/resource"
)

// testGuest stitches multiple memory regions into one guest address
// space so tests can cover layouts where the root pointer and the table
// window live far apart.
type testGuest struct {
	regions []*memory.Region
}

func (g *testGuest) WriteSlice(data []byte, addr uint64) *vmm.Error {
	for _, region := range g.regions {
		if err := region.WriteSlice(data, addr); err == nil {
			return nil
		}
	}
	return memory.ErrOutOfRange
}

func (g *testGuest) ReadSlice(data []byte, addr uint64) *vmm.Error {
	for _, region := range g.regions {
		if err := region.ReadSlice(data, addr); err == nil {
			return nil
		}
	}
	return memory.ErrOutOfRange
}

func newTestGuest(t *testing.T, layout arch.Layout) *testGuest {
	t.Helper()

	guest := new(testGuest)
	for _, span := range [][2]uint64{
		{layout.RSDPAddr, 0x1000},
		{layout.TableMemStart, layout.TableMemSize},
	} {
		region, err := memory.NewRegion(span[0], span[1])
		if err != nil {
			t.Fatal(err)
		}
		guest.regions = append(guest.regions, region)
	}
	return guest
}

// testVCPU is a vCPU stand-in contributing a fixed namespace snippet.
type testVCPU struct {
	id    uint8
	mpidr uint64
}

func (c testVCPU) ID() uint8     { return c.id }
func (c testVCPU) MPIDR() uint64 { return c.mpidr }

func (c testVCPU) AppendNamespaceBytes(dst []byte) []byte {
	return append(dst, 0xc0+c.id, 0x01)
}

// testDevice is a device manager stand-in with its own namespace bytes.
type testDevice struct {
	ns []byte
}

func (d testDevice) AppendNamespaceBytes(dst []byte) []byte {
	return append(dst, d.ns...)
}

// testGIC reports fixed interrupt controller regions.
type testGIC struct{}

func (testGIC) DistributorAddr() uint64   { return 0x3fff_0000 }
func (testGIC) RedistributorAddr() uint64 { return 0x3ffd_0000 }
func (testGIC) RedistributorSize() uint32 { return 0x2_0000 }
func (testGIC) ITSAddr() uint64           { return 0x3ffb_0000 }

func readBytes(t *testing.T, guest memory.Memory, addr uint64, length int) []byte {
	t.Helper()

	buf := make([]byte, length)
	if err := guest.ReadSlice(buf, addr); err != nil {
		t.Fatalf("reading %d bytes at 0x%x: %v", length, addr, err)
	}
	return buf
}

// readTable reads a full system description table back out of guest
// memory using the length embedded in its header, and verifies that the
// table sums to zero.
func readTable(t *testing.T, guest memory.Memory, addr uint64) []byte {
	t.Helper()

	hdr := readBytes(t, guest, addr, 36)
	length := binary.LittleEndian.Uint32(hdr[4:8])

	b := readBytes(t, guest, addr, int(length))
	var sum uint8
	for _, v := range b {
		sum += v
	}
	if sum != 0 {
		t.Fatalf("expected table %q at 0x%x to sum to 0; got %d", hdr[0:4], addr, sum)
	}
	return b
}

// walkTableChain follows the root pointer to the XSDT and returns the
// serialized tables it references, keyed by signature order.
func walkTableChain(t *testing.T, guest memory.Memory, rsdpAddr uint64) [][]byte {
	t.Helper()

	rsdp := readBytes(t, guest, rsdpAddr, 36)
	if got := string(rsdp[0:8]); got != "RSD PTR " {
		t.Fatalf("expected the root pointer signature at 0x%x; got %q", rsdpAddr, got)
	}

	var sum uint8
	for _, v := range rsdp {
		sum += v
	}
	if sum != 0 {
		t.Fatalf("expected the root pointer to sum to 0; got %d", sum)
	}

	xsdt := readTable(t, guest, binary.LittleEndian.Uint64(rsdp[24:32]))
	if got := string(xsdt[0:4]); got != "XSDT" {
		t.Fatalf("expected the root pointer to reference an XSDT; got %q", got)
	}

	var tables [][]byte
	for off := 36; off < len(xsdt); off += 8 {
		addr := binary.LittleEndian.Uint64(xsdt[off : off+8])
		tables = append(tables, readTable(t, guest, addr))
	}
	return tables
}

func signaturesOf(tables [][]byte) []string {
	sigs := make([]string, len(tables))
	for i, b := range tables {
		sigs[i] = string(b[0:4])
	}
	return sigs
}

func TestCreateTablesAMD64(t *testing.T) {
	guest := newTestGuest(t, arch.AMD64)
	res, err := resource.NewAllocator(arch.AMD64)
	if err != nil {
		t.Fatal(err)
	}

	vcpus := []VCPU{testVCPU{id: 0}, testVCPU{id: 1}}
	devices := []NamespaceSource{testDevice{ns: []byte{0xaa, 0xbb, 0xcc}}}

	mgr := NewManager(res, AMD64{})
	if err := mgr.CreateTables(guest, vcpus, devices); err != nil {
		t.Fatalf("expected table creation to succeed; got %v", err)
	}

	tables := walkTableChain(t, guest, arch.AMD64.RSDPAddr)
	expSigs := []string{"FACP", "APIC"}
	gotSigs := signaturesOf(tables)
	if len(gotSigs) != len(expSigs) {
		t.Fatalf("expected tables %v; got %v", expSigs, gotSigs)
	}
	for i, exp := range expSigs {
		if gotSigs[i] != exp {
			t.Fatalf("expected tables %v; got %v", expSigs, gotSigs)
		}
	}

	// The fixed hardware description must reference the definition block
	// assembled from the vCPUs and devices, in contribution order.
	fadt := tables[0]
	dsdt := readTable(t, guest, binary.LittleEndian.Uint64(fadt[140:148]))
	if got := string(dsdt[0:4]); got != "DSDT" {
		t.Fatalf("expected the FADT to reference a DSDT; got %q", got)
	}
	expBlock := []byte{0xc0, 0x01, 0xc1, 0x01, 0xaa, 0xbb, 0xcc}
	if !bytes.Equal(dsdt[36:], expBlock) {
		t.Errorf("expected definition block %x; got %x", expBlock, dsdt[36:])
	}
	if got := binary.LittleEndian.Uint32(fadt[40:44]); uint64(got) != binary.LittleEndian.Uint64(fadt[140:148]) {
		t.Errorf("expected both DSDT pointer widths to agree; got legacy 0x%x", got)
	}

	// One I/O controller entry followed by one local controller per vCPU.
	madt := tables[1]
	if got := binary.LittleEndian.Uint32(madt[36:40]); got != arch.AMD64.APICAddr {
		t.Errorf("expected local controller base 0x%x; got 0x%x", arch.AMD64.APICAddr, got)
	}
	var entryTypes []uint8
	for off := 44; off < len(madt); off += int(madt[off+1]) {
		entryTypes = append(entryTypes, madt[off])
	}
	expTypes := []uint8{0x01, 0x00, 0x00}
	if len(entryTypes) != len(expTypes) {
		t.Fatalf("expected entry types %v; got %v", expTypes, entryTypes)
	}
	for i, exp := range expTypes {
		if entryTypes[i] != exp {
			t.Fatalf("expected entry types %v; got %v", expTypes, entryTypes)
		}
	}
}

func TestCreateTablesARM64(t *testing.T) {
	guest := newTestGuest(t, arch.ARM64)
	res, err := resource.NewAllocator(arch.ARM64)
	if err != nil {
		t.Fatal(err)
	}

	vcpus := []VCPU{
		testVCPU{id: 0, mpidr: 0x8000_0000_0000_0000},
		testVCPU{id: 1, mpidr: 0x8000_0000_0000_0001},
	}

	mgr := NewManager(res, ARM64{GIC: testGIC{}})
	if err := mgr.CreateTables(guest, vcpus, nil); err != nil {
		t.Fatalf("expected table creation to succeed; got %v", err)
	}

	tables := walkTableChain(t, guest, arch.ARM64.RSDPAddr)
	expSigs := []string{"FACP", "APIC", "PPTT", "GTDT"}
	gotSigs := signaturesOf(tables)
	if len(gotSigs) != len(expSigs) {
		t.Fatalf("expected tables %v; got %v", expSigs, gotSigs)
	}
	for i, exp := range expSigs {
		if gotSigs[i] != exp {
			t.Fatalf("expected tables %v; got %v", expSigs, gotSigs)
		}
	}

	// Two CPU interface entries, then distributor, redistributor and
	// translation service.
	madt := tables[1]
	var entryTypes []uint8
	for off := 44; off < len(madt); off += int(madt[off+1]) {
		entryTypes = append(entryTypes, madt[off])
	}
	expTypes := []uint8{0x0b, 0x0b, 0x0c, 0x0e, 0x0f}
	if len(entryTypes) != len(expTypes) {
		t.Fatalf("expected entry types %v; got %v", expTypes, entryTypes)
	}
	for i, exp := range expTypes {
		if entryTypes[i] != exp {
			t.Fatalf("expected entry types %v; got %v", expTypes, entryTypes)
		}
	}

	// The topology table covers every vCPU: one root plus two leaves.
	pptt := tables[2]
	if got := len(pptt); got != 36+20*3 {
		t.Errorf("expected a %d byte topology table; got %d", 36+20*3, got)
	}
}

func TestCreateTablesAllocationFailure(t *testing.T) {
	// A table window too small for even the smallest table forces the
	// build sequence to abort on its first placement.
	layout := arch.Layout{
		RSDPAddr:      arch.AMD64.RSDPAddr,
		TableMemStart: arch.AMD64.TableMemStart,
		TableMemSize:  32,
		IRQBase:       arch.AMD64.IRQBase,
		IRQMax:        arch.AMD64.IRQMax,
	}

	guest := newTestGuest(t, layout)
	res, err := resource.NewAllocator(layout)
	if err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(res, AMD64{})
	if err := mgr.CreateTables(guest, []VCPU{testVCPU{id: 0}}, nil); err == nil {
		t.Fatal("expected table creation to fail when the table window is exhausted")
	}
}

func TestCreateTablesWriteFailure(t *testing.T) {
	// The allocator window extends past the guest region, so a placement
	// succeeds but the write itself must fail and abort the build.
	guest := new(testGuest)
	region, rerr := memory.NewRegion(arch.AMD64.TableMemStart, 64)
	if rerr != nil {
		t.Fatal(rerr)
	}
	guest.regions = append(guest.regions, region)

	res, err := resource.NewAllocator(arch.AMD64)
	if err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(res, AMD64{})
	if err := mgr.CreateTables(guest, []VCPU{testVCPU{id: 0}}, nil); err == nil {
		t.Fatal("expected table creation to fail when guest memory cannot back the window")
	}
}
