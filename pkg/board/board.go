// Package board turns the FMC node of a device tree into controller
// parameters: register base, family, bank configuration and the optional
// SYSCFG memory remap.
package board

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/dts"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/fmc"
)

var (
	ErrNoController       = errors.New("board: no enabled FMC node")
	ErrMultipleController = errors.New("board: more than one enabled FMC node")
	ErrBankName           = errors.New("board: bad bank node name")
	ErrMissingProperty    = errors.New("board: missing property")
	ErrBadProperty        = errors.New("board: bad property")
)

// Property names of the FMC binding.
const (
	PropNorsramControl = "st,norsram-control"
	PropNorsramTiming  = "st,norsram-timing"
	PropSdramControl   = "st,sdram-control"
	PropSdramTiming    = "st,sdram-timing"
	PropSdramRefcount  = "st,sdram-refcount"
	PropSyscfg         = "st,syscfg"
	PropMemRemap       = "st,mem_remap"
	PropSwapFMC        = "st,swp_fmc"
)

// Byte array lengths of the bank properties.
const (
	norsramControlLen = 14
	norsramTimingLen  = 7
	sdramControlLen   = 8
	sdramTimingLen    = 7
)

// bank@N unit addresses.
const (
	unitNorsram = 0
	unitSdram1  = 1
	unitSdram2  = 2
	unitCount   = 4
)

// Board is the FMC description of one board.
type Board struct {
	Node   *dts.Node
	Family fmc.Family
	Base   uint64
	Config fmc.Config

	// Syscfg is the SYSCFG block base, zero when the node has no st,syscfg.
	// Remap is only read when Syscfg is set.
	Syscfg uint64
	Remap  fmc.Remap
}

// LoadFile parses a board device tree source with the binding constants
// predefined and loads its FMC node.
func LoadFile(path string) (*Board, error) {
	parser, err := dts.NewParser(dts.WithDefines(Bindings))
	if err != nil {
		return nil, err
	}
	tree, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Load(tree)
}

// Load finds the single enabled FMC node of the tree and loads it.
func Load(tree *dts.Tree) (*Board, error) {
	var found []*dts.Node
	tree.Walk(func(n *dts.Node) {
		if n.Enabled() && familyOf(n) != nil {
			found = append(found, n)
		}
	})
	switch len(found) {
	case 0:
		return nil, ErrNoController
	case 1:
		return LoadNode(tree, found[0])
	default:
		return nil, fmt.Errorf("%w: %s and %s", ErrMultipleController, found[0].Path(), found[1].Path())
	}
}

func familyOf(n *dts.Node) *fmc.Family {
	for _, compat := range n.Compatible() {
		if f, err := fmc.FamilyFromCompatible(compat); err == nil {
			return &f
		}
	}
	return nil
}

// LoadNode loads the given FMC node. Bank children are named bank@N with a
// decimal N: bank@0 is the NOR/SRAM bank, bank@1 and bank@2 the SDRAM slots.
// bank@3 is accepted and ignored.
func LoadNode(tree *dts.Tree, node *dts.Node) (*Board, error) {
	fam := familyOf(node)
	if fam == nil {
		return nil, fmt.Errorf("board: %s: %w: %v", node.Path(), fmc.ErrUnknownFamily, node.Compatible())
	}

	regs, err := node.Reg()
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	if err := fmc.ValidateBase(regs[0].Address); err != nil {
		return nil, fmt.Errorf("board: %s: %w", node.Path(), err)
	}

	b := &Board{Node: node, Family: *fam, Base: regs[0].Address}
	if err := b.loadSyscfg(tree); err != nil {
		return nil, err
	}

	for _, child := range node.Children {
		if err := b.loadBank(child); err != nil {
			return nil, err
		}
	}

	if err := b.Config.Validate(); err != nil {
		return nil, fmt.Errorf("board: %s: %w", node.Path(), err)
	}
	if err := b.Remap.Validate(); err != nil {
		return nil, fmt.Errorf("board: %s: %w", node.Path(), err)
	}
	return b, nil
}

func (b *Board) loadSyscfg(tree *dts.Tree) error {
	p := b.Node.Property(PropSyscfg)
	if p == nil {
		return nil
	}
	cells, err := p.Cells()
	if err != nil || len(cells) == 0 {
		return fmt.Errorf("%w: %s: %s is not a phandle", ErrBadProperty, b.Node.Path(), PropSyscfg)
	}
	syscfg, err := tree.NodeByPhandle(uint32(cells[0]))
	if err != nil {
		return fmt.Errorf("board: %s: %w", PropSyscfg, err)
	}
	regs, err := syscfg.Reg()
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}
	b.Syscfg = regs[0].Address

	if b.Remap.MemMode, err = optionalU32(b.Node, PropMemRemap); err != nil {
		return err
	}
	if b.Remap.SwapFMC, err = optionalU32(b.Node, PropSwapFMC); err != nil {
		return err
	}
	return nil
}

func optionalU32(n *dts.Node, name string) (*uint32, error) {
	p := n.Property(name)
	if p == nil {
		return nil, nil
	}
	v, err := p.Uint32()
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	return &v, nil
}

// bankUnit extracts N from a bank@N node name.
func bankUnit(n *dts.Node) (uint64, error) {
	unit, ok := n.UnitAddress()
	if !ok {
		return 0, fmt.Errorf("%w: %s: missing bank index", ErrBankName, n.Path())
	}
	idx, err := strconv.ParseUint(unit, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrBankName, n.Path(), err)
	}
	if idx >= unitCount {
		return 0, fmt.Errorf("%w: %s: bank %d, only 0-%d are supported", ErrBankName, n.Path(), idx, unitCount-1)
	}
	return idx, nil
}

func (b *Board) loadBank(n *dts.Node) error {
	idx, err := bankUnit(n)
	if err != nil {
		return err
	}

	switch idx {
	case unitNorsram:
		p, err := norsramParams(n)
		if err != nil {
			return err
		}
		b.Config.Norsram = append(b.Config.Norsram, p)
	case unitSdram1, unitSdram2:
		slot := fmc.SdramSlot1
		if idx == unitSdram2 {
			slot = fmc.SdramSlot2
		}
		p, err := sdramParams(n, slot)
		if err != nil {
			return err
		}
		b.Config.Sdram = append(b.Config.Sdram, p)
	}
	return nil
}

// byteArray reads a u8 array property of at least size bytes.
func byteArray(n *dts.Node, name string, size int) ([]byte, error) {
	p := n.Property(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s not found for %s", ErrMissingProperty, name, n.Path())
	}
	raw, err := p.Uint8s()
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	if len(raw) < size {
		return nil, fmt.Errorf("%w: %s: %s has %d bytes, want %d", ErrMissingProperty, n.Path(), name, len(raw), size)
	}
	return raw[:size], nil
}

// flags decodes 0/1 bytes into booleans.
type flags struct {
	node *dts.Node
	prop string
	err  error
}

func (f *flags) get(raw []byte, i int, what string) bool {
	switch raw[i] {
	case 0:
		return false
	case 1:
		return true
	}
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s: %s %s is %d, want 0 or 1", ErrBadProperty, f.node.Path(), f.prop, what, raw[i])
	}
	return false
}

func norsramParams(n *dts.Node) (fmc.NorsramBankParams, error) {
	ctl, err := byteArray(n, PropNorsramControl, norsramControlLen)
	if err != nil {
		return fmc.NorsramBankParams{}, err
	}
	tim, err := byteArray(n, PropNorsramTiming, norsramTimingLen)
	if err != nil {
		return fmc.NorsramBankParams{}, err
	}

	f := flags{node: n, prop: PropNorsramControl}
	control := &fmc.NorsramControl{
		Bank:                   fmc.NorsramBank(ctl[0]),
		DataAddressMux:         f.get(ctl, 1, "data/address mux"),
		MemoryType:             fmc.MemoryType(ctl[2]),
		DataWidth:              fmc.BusWidth(ctl[3]),
		WaitSignal:             f.get(ctl, 4, "wait signal"),
		WaitSignalPolarity:     f.get(ctl, 5, "wait polarity"),
		WaitSignalActiveTiming: f.get(ctl, 6, "wait timing"),
		WrapMode:               f.get(ctl, 7, "wrap mode"),
		WriteOperation:         f.get(ctl, 8, "write operation"),
		ExtendedMode:           f.get(ctl, 9, "extended mode"),
		WaitAsync:              f.get(ctl, 10, "asynchronous wait"),
		AccessBurst:            f.get(ctl, 11, "burst access"),
		WriteBurst:             f.get(ctl, 12, "write burst"),
		PageSize:               ctl[13],
	}
	if f.err != nil {
		return fmc.NorsramBankParams{}, f.err
	}

	timing := &fmc.NorsramTiming{
		AddrSetup:     tim[0],
		AddrHold:      tim[1],
		DataSetup:     tim[2],
		BusTurnaround: tim[3],
		ClkDiv:        tim[4],
		DataLatency:   tim[5],
		AccessMode:    fmc.AccessMode(tim[6]),
	}
	return fmc.NorsramBankParams{Control: control, Timing: timing}, nil
}

func sdramParams(n *dts.Node, slot fmc.SdramSlot) (fmc.SdramBankParams, error) {
	ctl, err := byteArray(n, PropSdramControl, sdramControlLen)
	if err != nil {
		return fmc.SdramBankParams{}, err
	}
	tim, err := byteArray(n, PropSdramTiming, sdramTimingLen)
	if err != nil {
		return fmc.SdramBankParams{}, err
	}

	f := flags{node: n, prop: PropSdramControl}
	control := &fmc.SdramControl{
		Columns:       fmc.ColumnBits(ctl[0]),
		Rows:          fmc.RowBits(ctl[1]),
		MemoryWidth:   fmc.BusWidth(ctl[2]),
		InternalBanks: fmc.InternalBanks(ctl[3]),
		CASLatency:    ctl[4],
		SDClock:       fmc.SDClock(ctl[5]),
		ReadBurst:     f.get(ctl, 6, "read burst"),
		ReadPipeDelay: ctl[7],
	}
	if f.err != nil {
		return fmc.SdramBankParams{}, f.err
	}

	// The binding lists TRP before TWR.
	timing := &fmc.SdramTiming{
		LoadModeToActive: tim[0],
		ExitSelfRefresh:  tim[1],
		SelfRefreshTime:  tim[2],
		RowCycle:         tim[3],
		RowPrecharge:     tim[4],
		WriteRecovery:    tim[5],
		RowToColumn:      tim[6],
	}

	refresh := uint32(fmc.DefaultRefreshCount)
	if p := n.Property(PropSdramRefcount); p != nil {
		if refresh, err = p.Uint32(); err != nil {
			return fmc.SdramBankParams{}, fmt.Errorf("board: %w", err)
		}
	}

	return fmc.SdramBankParams{
		Slot:         slot,
		Control:      control,
		Timing:       timing,
		RefreshCount: refresh,
	}, nil
}
