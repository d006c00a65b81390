package table

import (
	"microvm/vmm"
	"microvm/vmm/memory"
)

// fadtLen is the total size of a revision 6 FADT. The structure is fixed
// by the standard; construction verifies that the serialized image
// matches.
const fadtLen = 276

// Fixed-feature flag bit positions for the FADT Flags field. Setting the
// power/sleep button bits tells the guest that no fixed-feature button
// device exists; the hardware-reduced bit disables the legacy SMI-based
// ACPI model altogether.
const (
	FADTFlagPowerButton   = 4
	FADTFlagSleepButton   = 5
	FADTFlagHWReducedACPI = 20
)

// IA-PC boot architecture flag bit positions. Announcing absent VGA and
// present MSI/ASPM controls lets the guest skip probing for them.
const (
	IAPCFlagVGANotPresent = 2
	IAPCFlagMSINotPresent = 3
	IAPCFlagPCIASPM       = 4
)

// FADT is the fixed ACPI description table. It carries the pointers to
// the DSDT, the power-management register blocks and the fixed-feature
// flags. All fields are laid out exactly as the standard mandates for
// revision 6.
type FADT struct {
	header             SDTHeader
	firmwareControl    uint32
	dsdt               uint32
	reserved1          uint8
	preferredPMProfile uint8
	sciInt             uint16
	smiCmd             uint32
	acpiEnable         uint8
	acpiDisable        uint8
	s4BIOSReq          uint8
	pstateCnt          uint8
	pm1aEvtBlk         uint32
	pm1bEvtBlk         uint32
	pm1aCntBlk         uint32
	pm1bCntBlk         uint32
	pm2CntBlk          uint32
	pmTmrBlk           uint32
	gpe0Blk            uint32
	gpe1Blk            uint32
	pm1EvtLen          uint8
	pm1CntLen          uint8
	pm2CntLen          uint8
	pmTmrLen           uint8
	gpe0BlkLen         uint8
	gpe1BlkLen         uint8
	gpe1Base           uint8
	cstCnt             uint8
	pLvl2Lat           uint16
	pLvl3Lat           uint16
	flushSize          uint16
	flushStride        uint16
	dutyOffset         uint8
	dutyWidth          uint8
	dayAlrm            uint8
	monAlrm            uint8
	century            uint8
	iapcBootArch       uint16
	reserved2          uint8
	flags              uint32
	resetReg           GenericAddress
	resetValue         uint8
	armBootArch        uint16
	fadtMinorVersion   uint8
	xFirmwareCtrl      uint64
	xDsdt              uint64
	xPM1aEvtBlk        GenericAddress
	xPM1bEvtBlk        GenericAddress
	xPM1aCntBlk        GenericAddress
	xPM1bCntBlk        GenericAddress
	xPM2CntBlk         GenericAddress
	xPMTmrBlk          GenericAddress
	xGPE0Blk           GenericAddress
	xGPE1Blk           GenericAddress
	sleepControlReg    GenericAddress
	sleepStatusReg     GenericAddress
	hypervisorVendorID [8]byte
}

// bodyBytes serializes every field after the header in declaration
// order.
func (f *FADT) bodyBytes() []byte {
	return mustEncode(
		f.firmwareControl, f.dsdt, f.reserved1, f.preferredPMProfile,
		f.sciInt, f.smiCmd, f.acpiEnable, f.acpiDisable, f.s4BIOSReq,
		f.pstateCnt, f.pm1aEvtBlk, f.pm1bEvtBlk, f.pm1aCntBlk,
		f.pm1bCntBlk, f.pm2CntBlk, f.pmTmrBlk, f.gpe0Blk, f.gpe1Blk,
		f.pm1EvtLen, f.pm1CntLen, f.pm2CntLen, f.pmTmrLen, f.gpe0BlkLen,
		f.gpe1BlkLen, f.gpe1Base, f.cstCnt, f.pLvl2Lat, f.pLvl3Lat,
		f.flushSize, f.flushStride, f.dutyOffset, f.dutyWidth, f.dayAlrm,
		f.monAlrm, f.century, f.iapcBootArch, f.reserved2, f.flags,
		f.resetReg, f.resetValue, f.armBootArch, f.fadtMinorVersion,
		f.xFirmwareCtrl, f.xDsdt, f.xPM1aEvtBlk, f.xPM1bEvtBlk,
		f.xPM1aCntBlk, f.xPM1bCntBlk, f.xPM2CntBlk, f.xPMTmrBlk,
		f.xGPE0Blk, f.xGPE1Blk, f.sleepControlReg, f.sleepStatusReg,
		f.hypervisorVendorID,
	)
}

func (f *FADT) bytes() []byte {
	return append(f.header.bytes(), f.bodyBytes()...)
}

// NewFADT creates a revision 6 fixed hardware description pointing at the
// DSDT written at dsdtAddr. Both the legacy 32-bit and the extended
// 64-bit DSDT pointers are populated so that guests following either one
// find the table. The PM1a event and control register descriptors also
// set the corresponding legacy block lengths.
func NewFADT(oemID, oemTableID string, oemRevision uint32, dsdtAddr uint64, sciInt uint16,
	pm1aEvtBlk, pm1aCntBlk GenericAddress, hypervisorVendorID string) *FADT {
	fadt := &FADT{
		header:           newSDTHeader("FACP", fadtLen, 6, oemID, oemTableID, oemRevision),
		dsdt:             uint32(dsdtAddr),
		sciInt:           sciInt,
		fadtMinorVersion: 5,
		xDsdt:            dsdtAddr,
		xPM1aEvtBlk:      pm1aEvtBlk,
		xPM1aCntBlk:      pm1aCntBlk,
		pm1EvtLen:        pm1aEvtBlk.BitWidth / 8,
		pm1CntLen:        pm1aCntBlk.BitWidth / 8,
	}
	copyPadded(fadt.hypervisorVendorID[:], hypervisorVendorID)

	if len(fadt.bytes()) != fadtLen {
		panic("table: FADT layout does not serialize to the standard size")
	}

	return fadt
}

// SetFlags overwrites the fixed-feature flags field.
func (f *FADT) SetFlags(flags uint32) {
	f.flags = flags
}

// SetIAPCBootArch overwrites the IA-PC boot architecture flag word.
func (f *FADT) SetIAPCBootArch(flags uint16) {
	f.iapcBootArch = flags
}

// Len returns the total table size.
func (f *FADT) Len() int {
	return int(f.header.Length)
}

// WriteToGuest finalizes the checksum over the whole structure and writes
// it at the given guest address in a single slice write.
func (f *FADT) WriteToGuest(guest memory.Memory, addr uint64) *vmm.Error {
	f.header.Checksum = 0
	f.header.Checksum = Checksum(f.bytes())

	return writeSlice(guest, f.bytes(), addr)
}
