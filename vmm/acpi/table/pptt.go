package table

import (
	"microvm/vmm"
	"microvm/vmm/memory"
)

// Processor hierarchy node flags: bit 1 marks the ACPI processor id as
// valid, bit 3 marks the node as a leaf.
const (
	ppttFlagProcessorIDValid uint32 = 1 << 1
	ppttFlagLeafNode         uint32 = 1 << 3
)

// processorHierarchyNode is one fixed-shape record in the topology tree.
type processorHierarchyNode struct {
	entryType            uint8
	length               uint8
	reserved             uint16
	flags                uint32
	parent               uint32
	acpiProcessorID      uint32
	privateResourceCount uint32
}

func (n processorHierarchyNode) bytes() []byte {
	return mustEncode(n.entryType, n.length, n.reserved, n.flags,
		n.parent, n.acpiProcessorID, n.privateResourceCount)
}

// PPTT is the processor properties topology table. It describes a flat
// topology: one root node with every virtual CPU as a leaf under it.
type PPTT struct {
	header SDTHeader
	nodes  []byte
}

// NewPPTT creates the topology for cpuCount virtual CPUs.
func NewPPTT(oemID, oemTableID string, oemRevision uint32, cpuCount uint8) *PPTT {
	pptt := &PPTT{
		header: newSDTHeader("PPTT", sdtHeaderLen, 2, oemID, oemTableID, oemRevision),
	}

	// The leaves reference their parent by its byte offset from the
	// start of the table; the root sits right after the header.
	rootOffset := uint32(sdtHeaderLen)
	pptt.appendNode(processorHierarchyNode{
		entryType: 0,
		length:    20,
		flags:     ppttFlagProcessorIDValid,
	})

	for cpu := uint8(0); cpu < cpuCount; cpu++ {
		pptt.appendNode(processorHierarchyNode{
			entryType:       0,
			length:          20,
			flags:           ppttFlagProcessorIDValid | ppttFlagLeafNode,
			parent:          rootOffset,
			acpiProcessorID: uint32(cpu),
		})
	}

	return pptt
}

func (p *PPTT) appendNode(node processorHierarchyNode) {
	b := node.bytes()
	p.nodes = append(p.nodes, b...)
	p.header.Length += uint32(len(b))
}

// Len returns the total table size.
func (p *PPTT) Len() int {
	return int(p.header.Length)
}

// WriteToGuest finalizes the checksum and writes header then nodes at the
// given guest address.
func (p *PPTT) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	p.header.Checksum = 0
	p.header.Checksum = Checksum(p.header.bytes(), p.nodes)

	if err := writeSlice(guest, p.header.bytes(), addr); err != nil {
		return err
	}

	addr, err := checkedAdd(addr, sdtHeaderLen)
	if err != nil {
		return err
	}

	return writeSlice(guest, p.nodes, addr)
}
