package fmc

import "fmt"

// NorsramBankCount is the number of NOR/PSRAM/SRAM chip-select banks.
const NorsramBankCount = 4

// NorsramBank indexes a chip-select bank, 0 through 3.
type NorsramBank uint8

// Valid reports whether b names an existing bank.
func (b NorsramBank) Valid() bool {
	return b < NorsramBankCount
}

// MemoryType is the BCRx.MTYP encoding.
type MemoryType uint8

const (
	MemorySRAM  MemoryType = 0x0
	MemoryPSRAM MemoryType = 0x1
	MemoryNOR   MemoryType = 0x2
)

// BusWidth is the external data bus width encoding shared by BCRx.MWID and
// SDCRx.MWID.
type BusWidth uint8

const (
	BusWidth8  BusWidth = 0x0
	BusWidth16 BusWidth = 0x1
	BusWidth32 BusWidth = 0x2
)

// AccessMode is the extended-mode access protocol, BTRx/BWTRx.ACCMOD.
type AccessMode uint8

const (
	AccessModeA AccessMode = iota
	AccessModeB
	AccessModeC
	AccessModeD
)

// BCRx fields.
var (
	bcrMuxEnable    = field{shift: 1, width: 1}
	bcrMemoryType   = field{shift: 2, width: 2}
	bcrDataWidth    = field{shift: 4, width: 2}
	bcrFlashAccess  = field{shift: 6, width: 1}
	bcrBurstAccess  = field{shift: 8, width: 1}
	bcrWaitPolarity = field{shift: 9, width: 1}
	bcrWaitTiming   = field{shift: 11, width: 1}
	bcrWriteEnable  = field{shift: 12, width: 1}
	bcrWaitEnable   = field{shift: 13, width: 1}
	bcrExtendedMode = field{shift: 14, width: 1}
	bcrAsyncWait    = field{shift: 15, width: 1}
	bcrPageSize     = field{shift: 16, width: 3}
	bcrWrapMode     = field{shift: 16, width: 1} // shares bit 16 with the page size
	bcrWriteBurst   = field{shift: 19, width: 1}
)

// bcrWritableFields covers the BCRx bits this package owns. Everything else,
// FMCEN included, is carried over from the current register value.
const bcrWritableFields uint32 = 0xFFF7F

// BTRx and BWTRx fields. BWTRx has no clock divisor or data latency.
var (
	btrAddrSetup  = field{shift: 0, width: 4}
	btrAddrHold   = field{shift: 4, width: 4}
	btrDataSetup  = field{shift: 8, width: 8}
	btrBusTurn    = field{shift: 16, width: 4}
	btrClkDiv     = field{shift: 20, width: 4}
	btrDataLat    = field{shift: 24, width: 4}
	btrAccessMode = field{shift: 28, width: 2}
)

// Minimum caller values of the pre-decremented timing fields.
const (
	MinClkDiv      = 1
	MinDataLatency = 2
)

// NorsramControl is the static configuration of one chip-select bank.
type NorsramControl struct {
	Bank                   NorsramBank
	DataAddressMux         bool
	MemoryType             MemoryType
	DataWidth              BusWidth
	WaitSignal             bool
	WaitSignalPolarity     bool // true: NWAIT active high
	WaitSignalActiveTiming bool // true: NWAIT asserted during the wait state
	WrapMode               bool
	WriteOperation         bool
	ExtendedMode           bool
	WaitAsync              bool
	AccessBurst            bool
	WriteBurst             bool
	PageSize               uint8
}

// NorsramTiming holds the bank timings in HCLK cycles. ClkDiv and DataLatency
// are the real values; the encoder stores ClkDiv-1 and DataLatency-2.
type NorsramTiming struct {
	AddrSetup     uint8
	AddrHold      uint8
	DataSetup     uint8
	BusTurnaround uint8
	ClkDiv        uint8
	DataLatency   uint8
	AccessMode    AccessMode
}

// NorsramBankParams pairs a bank's control and timing blocks.
type NorsramBankParams struct {
	Control *NorsramControl
	Timing  *NorsramTiming
}

// Validate checks that every value fits its register field.
func (c NorsramControl) Validate() error {
	if !c.Bank.Valid() {
		return fmt.Errorf("%w: NOR/SRAM bank %d, only 0-%d exist", ErrInvalidBank, c.Bank, NorsramBankCount-1)
	}
	if c.MemoryType > MemoryNOR {
		return fmt.Errorf("%w: memory type %d", ErrInvalidConfig, c.MemoryType)
	}
	if c.DataWidth > BusWidth32 {
		return fmt.Errorf("%w: data width %d", ErrInvalidConfig, c.DataWidth)
	}
	return checkFields(fieldValue{"page size", bcrPageSize, uint32(c.PageSize)})
}

// Validate checks the minimums of the pre-decremented fields and that every
// encoded value fits its register field. Values below the minimum are
// rejected, never clamped.
func (t NorsramTiming) Validate() error {
	if t.ClkDiv < MinClkDiv {
		return fmt.Errorf("%w: clock divisor %d, minimum %d", ErrInvalidConfig, t.ClkDiv, MinClkDiv)
	}
	if t.DataLatency < MinDataLatency {
		return fmt.Errorf("%w: data latency %d, minimum %d", ErrInvalidConfig, t.DataLatency, MinDataLatency)
	}
	return checkFields(
		fieldValue{"address setup", btrAddrSetup, uint32(t.AddrSetup)},
		fieldValue{"address hold", btrAddrHold, uint32(t.AddrHold)},
		fieldValue{"data setup", btrDataSetup, uint32(t.DataSetup)},
		fieldValue{"bus turnaround", btrBusTurn, uint32(t.BusTurnaround)},
		fieldValue{"clock divisor", btrClkDiv, uint32(t.ClkDiv - 1)},
		fieldValue{"data latency", btrDataLat, uint32(t.DataLatency - 2)},
		fieldValue{"access mode", btrAccessMode, uint32(t.AccessMode)},
	)
}

// Validate checks that both blocks are present and valid.
func (p NorsramBankParams) Validate() error {
	if p.Control == nil {
		return fmt.Errorf("%w: norsram control", ErrMissingParams)
	}
	if p.Timing == nil {
		return fmt.Errorf("%w: norsram timing", ErrMissingParams)
	}
	if err := p.Control.Validate(); err != nil {
		return err
	}
	return p.Timing.Validate()
}

// Word encodes BCRx without the bank enable bit and without the reserved bits
// the register currently holds. FACCEN is derived: set iff the memory is NOR.
func (c NorsramControl) Word() uint32 {
	return flag(bcrFlashAccess, c.MemoryType == MemoryNOR) |
		flag(bcrMuxEnable, c.DataAddressMux) |
		put(bcrMemoryType, c.MemoryType) |
		put(bcrDataWidth, c.DataWidth) |
		flag(bcrBurstAccess, c.AccessBurst) |
		flag(bcrWaitPolarity, c.WaitSignalPolarity) |
		flag(bcrWaitTiming, c.WaitSignalActiveTiming) |
		flag(bcrWriteEnable, c.WriteOperation) |
		flag(bcrWaitEnable, c.WaitSignal) |
		flag(bcrExtendedMode, c.ExtendedMode) |
		flag(bcrAsyncWait, c.WaitAsync) |
		flag(bcrWriteBurst, c.WriteBurst) |
		put(bcrPageSize, c.PageSize) |
		flag(bcrWrapMode, c.WrapMode)
}

// PreserveReserved merges word with the bits of current outside the writable
// field mask. BCR writes must go through it or FMCEN and the reserved bits
// are lost.
func PreserveReserved(word, current uint32) uint32 {
	return word | ^bcrWritableFields&current
}

// ReadWord encodes BTRx. Validate must have accepted t.
func (t NorsramTiming) ReadWord() uint32 {
	return put(btrAddrSetup, t.AddrSetup) |
		put(btrAddrHold, t.AddrHold) |
		put(btrDataSetup, t.DataSetup) |
		put(btrBusTurn, t.BusTurnaround) |
		put(btrClkDiv, t.ClkDiv-1) |
		put(btrDataLat, t.DataLatency-2) |
		put(btrAccessMode, t.AccessMode)
}

// WriteWord encodes BWTRx.
func (t NorsramTiming) WriteWord() uint32 {
	return put(btrAddrSetup, t.AddrSetup) |
		put(btrAddrHold, t.AddrHold) |
		put(btrDataSetup, t.DataSetup) |
		put(btrBusTurn, t.BusTurnaround) |
		put(btrAccessMode, t.AccessMode)
}

// DecodeReadTiming splits a BTRx value back into caller-facing timings.
func DecodeReadTiming(word uint32) NorsramTiming {
	return NorsramTiming{
		AddrSetup:     uint8(get(btrAddrSetup, word)),
		AddrHold:      uint8(get(btrAddrHold, word)),
		DataSetup:     uint8(get(btrDataSetup, word)),
		BusTurnaround: uint8(get(btrBusTurn, word)),
		ClkDiv:        uint8(get(btrClkDiv, word)) + 1,
		DataLatency:   uint8(get(btrDataLat, word)) + 2,
		AccessMode:    AccessMode(get(btrAccessMode, word)),
	}
}

// norsramRegs is the register triplet of one chip-select bank.
type norsramRegs struct {
	bcr, btr, bwtr uint32
}

var norsramBanks = [NorsramBankCount]norsramRegs{
	{RegBCR1, RegBTR1, RegBWTR1},
	{RegBCR2, RegBTR2, RegBWTR2},
	{RegBCR3, RegBTR3, RegBWTR3},
	{RegBCR4, RegBTR4, RegBWTR4},
}

func validateNorsram(banks []NorsramBankParams) error {
	if len(banks) > NorsramBankCount {
		return fmt.Errorf("%w: %d NOR/SRAM banks, at most %d", ErrInvalidConfig, len(banks), NorsramBankCount)
	}
	var seen [NorsramBankCount]bool
	for i, b := range banks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("norsram entry %d: %w", i, err)
		}
		if seen[b.Control.Bank] {
			return fmt.Errorf("norsram entry %d: %w: bank %d configured twice", i, ErrInvalidConfig, b.Control.Bank)
		}
		seen[b.Control.Bank] = true
	}
	return nil
}

// configureNorsram writes BCR, BTR and BWTR of one bank and sets its enable
// bit last, once every other register of the bank is settled.
func (c *Controller) configureNorsram(p NorsramBankParams) error {
	regs := norsramBanks[p.Control.Bank]

	cur, err := c.bus.Read32(regs.bcr)
	if err != nil {
		return err
	}
	bcr := PreserveReserved(p.Control.Word(), cur)
	btr := p.Timing.ReadWord()
	bwtr := p.Timing.WriteWord()

	c.logf("norsram bank %d: BCR 0x%08X BTR 0x%08X BWTR 0x%08X", p.Control.Bank, bcr, btr, bwtr)

	writes := []struct {
		off, val uint32
	}{
		{regs.bcr, bcr},
		{regs.btr, btr},
		{regs.bwtr, bwtr},
		{regs.bcr, bcr | BCRBankEnable},
	}
	for _, w := range writes {
		if err := c.bus.Write32(w.off, w.val); err != nil {
			return err
		}
	}
	return nil
}
