package fmc

import (
	"fmt"
	"time"
)

// SdramSlot selects one of the two physical SDRAM banks of the controller.
type SdramSlot uint8

const (
	SdramSlot1 SdramSlot = iota + 1
	SdramSlot2
)

// SdramSlotCount is the number of SDRAM slots.
const SdramSlotCount = 2

// Valid reports whether s names an existing slot.
func (s SdramSlot) Valid() bool {
	return s == SdramSlot1 || s == SdramSlot2
}

func (s SdramSlot) String() string {
	switch s {
	case SdramSlot1:
		return "slot 1"
	case SdramSlot2:
		return "slot 2"
	}
	return fmt.Sprintf("SdramSlot(%d)", s)
}

// commandTarget returns the SDCMR command target bit of the slot. Exactly one
// of CTB1 and CTB2 is ever set.
func (s SdramSlot) commandTarget() uint32 {
	if s == SdramSlot1 {
		return sdcmrTargetBank1
	}
	return sdcmrTargetBank2
}

// ColumnBits is the SDCRx.NC encoding.
type ColumnBits uint8

const (
	Columns8 ColumnBits = iota
	Columns9
	Columns10
	Columns11
)

// RowBits is the SDCRx.NR encoding.
type RowBits uint8

const (
	Rows11 RowBits = iota
	Rows12
	Rows13
)

// InternalBanks is the SDCRx.NB encoding.
type InternalBanks uint8

const (
	InternalBanks2 InternalBanks = 0
	InternalBanks4 InternalBanks = 1
)

// SDClock is the SDCR1.SDCLK period in HCLK cycles; zero stops the clock.
type SDClock uint8

const (
	SDClockDisabled SDClock = 0
	SDClockDiv2     SDClock = 2
	SDClockDiv3     SDClock = 3
)

// SDCRx fields.
var (
	sdcrColumns  = field{shift: 0, width: 2}
	sdcrRows     = field{shift: 2, width: 2}
	sdcrWidth    = field{shift: 4, width: 2}
	sdcrBanks    = field{shift: 6, width: 1}
	sdcrCAS      = field{shift: 7, width: 2}
	sdcrClock    = field{shift: 10, width: 2}
	sdcrBurst    = field{shift: 12, width: 1}
	sdcrReadPipe = field{shift: 13, width: 2}
)

// SDTRx fields, each holding cycles minus one.
var (
	sdtrTMRD = field{shift: 0, width: 4}
	sdtrTXSR = field{shift: 4, width: 4}
	sdtrTRAS = field{shift: 8, width: 4}
	sdtrTRC  = field{shift: 12, width: 4}
	sdtrTWR  = field{shift: 16, width: 4}
	sdtrTRP  = field{shift: 20, width: 4}
	sdtrTRCD = field{shift: 24, width: 4}
)

// SDCMR fields.
var (
	sdcmrMode         = field{shift: 0, width: 3}
	sdcmrRefreshCount = field{shift: 5, width: 4}
	sdcmrModeRegister = field{shift: 9, width: 14}
)

const (
	sdcmrTargetBank2 uint32 = 1 << 3
	sdcmrTargetBank1 uint32 = 1 << 4
)

// Mode register payload fields, loaded into the SDRAM device by CmdLoadMode.
var (
	modeBurstLength = field{shift: 0, width: 3}
	modeCAS         = field{shift: 4, width: 3}
)

const (
	modeBurstLength1 = 0
	// autoRefreshCycles is the NRFS value of the bring-up auto-refresh
	// command: 7 encodes eight consecutive refresh cycles.
	autoRefreshCycles = 7
)

// Command is the SDCMR.MODE command code.
type Command uint8

const (
	CmdNormal Command = iota
	CmdStartClock
	CmdPrecharge
	CmdAutoRefresh
	CmdLoadMode
	CmdSelfRefresh
	CmdPowerDown
)

var commandNames = map[Command]string{
	CmdNormal:      "NORMAL",
	CmdStartClock:  "START_CLOCK",
	CmdPrecharge:   "PRECHARGE",
	CmdAutoRefresh: "AUTO_REFRESH",
	CmdLoadMode:    "WRITE_MODE",
	CmdSelfRefresh: "SELF_REFRESH",
	CmdPowerDown:   "POWER_DOWN",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", c)
}

// SdramControl is the static configuration of one SDRAM device.
type SdramControl struct {
	Columns       ColumnBits
	Rows          RowBits
	MemoryWidth   BusWidth
	InternalBanks InternalBanks
	CASLatency    uint8 // 1 to 3 SDCLK cycles
	SDClock       SDClock
	ReadBurst     bool
	ReadPipeDelay uint8 // 0 to 2 HCLK cycles
}

// SdramTiming holds the device timings in SDCLK cycles minus one.
type SdramTiming struct {
	LoadModeToActive uint8 // TMRD
	ExitSelfRefresh  uint8 // TXSR
	SelfRefreshTime  uint8 // TRAS
	RowCycle         uint8 // TRC
	WriteRecovery    uint8 // TWR
	RowPrecharge     uint8 // TRP
	RowToColumn      uint8 // TRCD
}

// SdramBankParams is everything needed to bring up one SDRAM slot.
// RefreshCount is the refresh timer reload value; SDRTR receives it doubled.
type SdramBankParams struct {
	Slot         SdramSlot
	Control      *SdramControl
	Timing       *SdramTiming
	RefreshCount uint32
}

// Validate checks that every value fits its register field and names a
// defined encoding.
func (c SdramControl) Validate() error {
	if c.Rows > Rows13 {
		return fmt.Errorf("%w: row address class %d", ErrInvalidConfig, c.Rows)
	}
	if c.MemoryWidth > BusWidth32 {
		return fmt.Errorf("%w: memory width %d", ErrInvalidConfig, c.MemoryWidth)
	}
	if c.CASLatency < 1 || c.CASLatency > 3 {
		return fmt.Errorf("%w: CAS latency %d, want 1-3", ErrInvalidConfig, c.CASLatency)
	}
	if c.ReadPipeDelay > 2 {
		return fmt.Errorf("%w: read pipe delay %d, want 0-2", ErrInvalidConfig, c.ReadPipeDelay)
	}
	return checkFields(
		fieldValue{"columns", sdcrColumns, uint32(c.Columns)},
		fieldValue{"internal banks", sdcrBanks, uint32(c.InternalBanks)},
		fieldValue{"sdclk", sdcrClock, uint32(c.SDClock)},
	)
}

// Validate checks that every timing fits its 4-bit field.
func (t SdramTiming) Validate() error {
	return checkFields(
		fieldValue{"tmrd", sdtrTMRD, uint32(t.LoadModeToActive)},
		fieldValue{"txsr", sdtrTXSR, uint32(t.ExitSelfRefresh)},
		fieldValue{"tras", sdtrTRAS, uint32(t.SelfRefreshTime)},
		fieldValue{"trc", sdtrTRC, uint32(t.RowCycle)},
		fieldValue{"twr", sdtrTWR, uint32(t.WriteRecovery)},
		fieldValue{"trp", sdtrTRP, uint32(t.RowPrecharge)},
		fieldValue{"trcd", sdtrTRCD, uint32(t.RowToColumn)},
	)
}

// Validate checks the slot and both parameter blocks.
func (p SdramBankParams) Validate() error {
	if !p.Slot.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidBank, p.Slot)
	}
	if p.Control == nil {
		return fmt.Errorf("%w: sdram control", ErrMissingParams)
	}
	if p.Timing == nil {
		return fmt.Errorf("%w: sdram timing", ErrMissingParams)
	}
	if err := p.Control.Validate(); err != nil {
		return err
	}
	return p.Timing.Validate()
}

// Word encodes SDCR1, including the fields that exist only there (SDCLK,
// RBURST, RPIPE).
func (c SdramControl) Word() uint32 {
	return put(sdcrClock, c.SDClock) |
		put(sdcrCAS, c.CASLatency) |
		put(sdcrBanks, c.InternalBanks) |
		put(sdcrWidth, c.MemoryWidth) |
		put(sdcrRows, c.Rows) |
		put(sdcrColumns, c.Columns) |
		put(sdcrReadPipe, c.ReadPipeDelay) |
		flag(sdcrBurst, c.ReadBurst)
}

// SecondaryWord encodes SDCR2, which carries only the device geometry and
// CAS latency.
func (c SdramControl) SecondaryWord() uint32 {
	return put(sdcrCAS, c.CASLatency) |
		put(sdcrBanks, c.InternalBanks) |
		put(sdcrWidth, c.MemoryWidth) |
		put(sdcrRows, c.Rows) |
		put(sdcrColumns, c.Columns)
}

// ModeRegister returns the payload loaded into the device's mode register:
// burst length 1, sequential burst, CAS latency from the configuration.
func (c SdramControl) ModeRegister() uint32 {
	return put(modeBurstLength, uint32(modeBurstLength1)) | put(modeCAS, c.CASLatency)
}

// Word encodes SDTRx.
func (t SdramTiming) Word() uint32 {
	return put(sdtrTRCD, t.RowToColumn) |
		put(sdtrTRP, t.RowPrecharge) |
		put(sdtrTWR, t.WriteRecovery) |
		put(sdtrTRC, t.RowCycle) |
		put(sdtrTRAS, t.SelfRefreshTime) |
		put(sdtrTXSR, t.ExitSelfRefresh) |
		put(sdtrTMRD, t.LoadModeToActive)
}

// CommandWord encodes an SDCMR value targeting slot.
func CommandWord(cmd Command, slot SdramSlot, refreshCycles, modeRegister uint32) uint32 {
	return slot.commandTarget() |
		put(sdcmrMode, cmd) |
		put(sdcmrRefreshCount, refreshCycles) |
		put(sdcmrModeRegister, modeRegister)
}

// DecodedCommand is an SDCMR value split into its fields.
type DecodedCommand struct {
	Command       Command
	Slot1         bool
	Slot2         bool
	RefreshCycles uint32
	ModeRegister  uint32
}

// DecodeCommand splits an SDCMR value into its fields.
func DecodeCommand(word uint32) DecodedCommand {
	return DecodedCommand{
		Command:       Command(get(sdcmrMode, word)),
		Slot1:         word&sdcmrTargetBank1 != 0,
		Slot2:         word&sdcmrTargetBank2 != 0,
		RefreshCycles: get(sdcmrRefreshCount, word),
		ModeRegister:  get(sdcmrModeRegister, word),
	}
}

// RefreshTimerWord encodes SDRTR from the refresh reload value. COUNT starts at
// bit 1, so the reload value is stored doubled.
func RefreshTimerWord(count uint32) uint32 {
	return count << 1
}

// SdramStep identifies a step of the SDRAM bring-up sequence.
type SdramStep uint8

const (
	StepDisableController SdramStep = iota
	StepConfigure
	StepConfigureTiming
	StepStartClock
	StepPrecharge
	StepAutoRefresh
	StepLoadMode
	StepNormalMode
	StepRefreshTimer
	StepEnableController
)

var stepNames = map[SdramStep]string{
	StepDisableController: "disable controller",
	StepConfigure:         "configure",
	StepConfigureTiming:   "configure timing",
	StepStartClock:        "start clock",
	StepPrecharge:         "precharge all",
	StepAutoRefresh:       "auto-refresh",
	StepLoadMode:          "load mode register",
	StepNormalMode:        "normal mode",
	StepRefreshTimer:      "refresh timer",
	StepEnableController:  "enable controller",
}

func (s SdramStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SdramStep(%d)", s)
}

// commandStep issues one SDCMR command. settle is the minimum time the device
// needs before the busy flag is polled.
type commandStep struct {
	step   SdramStep
	cmd    Command
	settle time.Duration
}

// powerUpCommands is the JEDEC power-up order. Reordering or skipping an
// entry leaves the device in an undefined state.
var powerUpCommands = []commandStep{
	{StepStartClock, CmdStartClock, 200 * time.Microsecond},
	{StepPrecharge, CmdPrecharge, 100 * time.Microsecond},
	{StepAutoRefresh, CmdAutoRefresh, 100 * time.Microsecond},
	{StepLoadMode, CmdLoadMode, 100 * time.Microsecond},
	{StepNormalMode, CmdNormal, 0},
}

func (s commandStep) word(p SdramBankParams) uint32 {
	switch s.cmd {
	case CmdAutoRefresh:
		return CommandWord(s.cmd, p.Slot, autoRefreshCycles, 0)
	case CmdLoadMode:
		return CommandWord(s.cmd, p.Slot, 0, p.Control.ModeRegister())
	default:
		return CommandWord(s.cmd, p.Slot, 0, 0)
	}
}

func validateSdram(banks []SdramBankParams) error {
	if len(banks) > SdramSlotCount {
		return fmt.Errorf("%w: %d SDRAM banks, at most %d", ErrInvalidConfig, len(banks), SdramSlotCount)
	}
	seen := make(map[SdramSlot]bool, SdramSlotCount)
	for i, b := range banks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("sdram entry %d: %w", i, err)
		}
		if seen[b.Slot] {
			return fmt.Errorf("sdram entry %d: %w: %s configured twice", i, ErrInvalidConfig, b.Slot)
		}
		seen[b.Slot] = true
	}
	return nil
}

// bringUp runs the full power-up sequence of one slot. Control and timing are
// written once, then each command is issued and allowed to settle before the
// next one.
func (c *Controller) bringUp(p SdramBankParams) error {
	fail := func(step SdramStep, err error) error {
		return &SequenceError{Slot: p.Slot, Step: step, Err: err}
	}

	c.logf("sdram %s: %s", p.Slot, StepConfigure)
	if err := c.bus.Write32(RegSDCR1, p.Control.Word()); err != nil {
		return fail(StepConfigure, err)
	}
	if p.Slot == SdramSlot2 {
		if err := c.bus.Write32(RegSDCR2, p.Control.SecondaryWord()); err != nil {
			return fail(StepConfigure, err)
		}
	}

	c.logf("sdram %s: %s", p.Slot, StepConfigureTiming)
	timing := p.Timing.Word()
	if err := c.bus.Write32(RegSDTR1, timing); err != nil {
		return fail(StepConfigureTiming, err)
	}
	if p.Slot == SdramSlot2 {
		if err := c.bus.Write32(RegSDTR2, timing); err != nil {
			return fail(StepConfigureTiming, err)
		}
	}

	for _, s := range powerUpCommands {
		word := s.word(p)
		c.logf("sdram %s: %s (SDCMR 0x%08X)", p.Slot, s.step, word)
		if err := c.bus.Write32(RegSDCMR, word); err != nil {
			return fail(s.step, err)
		}
		if s.settle > 0 {
			c.delay.Delay(s.settle)
		}
		if err := c.waitIdle(); err != nil {
			return fail(s.step, err)
		}
	}

	c.logf("sdram %s: %s (count %d)", p.Slot, StepRefreshTimer, p.RefreshCount)
	if err := c.bus.Write32(RegSDRTR, RefreshTimerWord(p.RefreshCount)); err != nil {
		return fail(StepRefreshTimer, err)
	}
	return nil
}

// waitIdle makes the last command visible to the controller, then spins on
// SDSR until the busy flag clears. Without a poll timeout the spin is
// unbounded, as the hardware guarantees the flag eventually clears.
func (c *Controller) waitIdle() error {
	if err := c.bus.Barrier(); err != nil {
		return err
	}
	var deadline time.Time
	if c.pollTimeout > 0 {
		deadline = c.now().Add(c.pollTimeout)
	}
	for {
		sr, err := c.bus.Read32(RegSDSR)
		if err != nil {
			return err
		}
		if sr&SDSRBusy == 0 {
			return nil
		}
		if c.pollTimeout > 0 && c.now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrBusyTimeout, c.pollTimeout)
		}
	}
}
