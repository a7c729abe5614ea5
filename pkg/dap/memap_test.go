package dap

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/regbus"
)

func connectSim(t *testing.T) (*MemAP, *SimTransport, *regbus.Sim) {
	t.Helper()
	mem := regbus.NewSim()
	sim := NewSimTransport(mem)
	ap, err := Connect(sim, 0)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return ap, sim, mem
}

func TestConnectSequence(t *testing.T) {
	ap, sim, _ := connectSim(t)

	want := []byte{
		CmdConnect,
		CmdSWJClock,
		CmdTransferConfigure,
		CmdSWJSequence, CmdSWJSequence, CmdSWJSequence, CmdSWJSequence,
		CmdTransfer, // DPIDR
		CmdTransfer, // ABORT, SELECT, CTRL/STAT
		CmdTransfer, // CTRL/STAT poll
		CmdTransfer, // CSW
	}
	got := sim.Commands()
	if string(got) != string(want) {
		t.Fatalf("commands = % X, want % X", got, want)
	}

	id := ap.DPIDR()
	if id.Raw != DefaultSimDPIDR {
		t.Errorf("DPIDR = 0x%08X, want 0x%08X", id.Raw, DefaultSimDPIDR)
	}
	if id.DesignerName() != "ARM" {
		t.Errorf("designer = %s, want ARM", id.DesignerName())
	}
	if sim.csw != cswWord32 {
		t.Errorf("CSW = 0x%08X, want 0x%08X", sim.csw, cswWord32)
	}
}

func TestMemAPReadWrite(t *testing.T) {
	ap, _, mem := connectSim(t)
	mem.Preset(0x40023800, 0x00000083)

	v, err := ap.Read32(0x40023800)
	if err != nil {
		t.Fatalf("Read32() error = %v", err)
	}
	if v != 0x83 {
		t.Errorf("Read32() = 0x%X, want 0x83", v)
	}

	if err := ap.Write32(0xA0000140, 0x39DA); err != nil {
		t.Fatalf("Write32() error = %v", err)
	}
	if err := ap.Barrier(); err != nil {
		t.Fatalf("Barrier() error = %v", err)
	}
	if got := mem.Peek(0xA0000140); got != 0x39DA {
		t.Errorf("target word = 0x%X, want 0x39DA", got)
	}

	if _, err := ap.Read32(0xA0000002); !errors.Is(err, ErrUnaligned) {
		t.Errorf("unaligned Read32() error = %v, want ErrUnaligned", err)
	}
	if err := ap.Write32(0xA0000001, 0); !errors.Is(err, ErrUnaligned) {
		t.Errorf("unaligned Write32() error = %v, want ErrUnaligned", err)
	}
}

func TestMemAPFault(t *testing.T) {
	ap, sim, _ := connectSim(t)
	sim.OnAccess = func(addr uint32) bool { return addr >= 0xE0000000 }

	if _, err := ap.Read32(0xE0042000); !errors.Is(err, ErrFault) {
		t.Fatalf("Read32() error = %v, want ErrFault", err)
	}
	if err := ap.Write32(0xE0042004, 1); !errors.Is(err, ErrFault) {
		t.Fatalf("Write32() error = %v, want ErrFault", err)
	}
	if _, err := ap.Read32(0x20000000); err != nil {
		t.Fatalf("Read32() after fault error = %v", err)
	}
}

// noSwitch drops the JTAG-to-SWD select sequence so the target stays in JTAG
// mode and never answers.
type noSwitch struct {
	*SimTransport
}

func (n noSwitch) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) >= 2 && cmd[0] == CmdSWJSequence && cmd[1] == swdSwitchSequenceLen {
		return []byte{CmdSWJSequence, StatusOK}, nil
	}
	return n.SimTransport.WriteRead(cmd)
}

func TestConnectWithoutSWDSwitch(t *testing.T) {
	_, err := Connect(noSwitch{NewSimTransport(regbus.NewSim())}, 0)
	if !errors.Is(err, ErrNoAck) {
		t.Fatalf("Connect() error = %v, want ErrNoAck", err)
	}
}

func TestConnectBadDPIDR(t *testing.T) {
	sim := NewSimTransport(regbus.NewSim())
	sim.IDR = 0x2BA01476
	if _, err := Connect(sim, 0); !errors.Is(err, ErrBadDPIDR) {
		t.Fatalf("Connect() error = %v, want ErrBadDPIDR", err)
	}
}

func TestMemAPClose(t *testing.T) {
	ap, sim, _ := connectSim(t)
	if err := ap.ResetTarget(); err != nil {
		t.Fatalf("ResetTarget() error = %v", err)
	}
	if err := ap.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sim.Closed() {
		t.Error("transport not closed")
	}
	cmds := sim.Commands()
	if cmds[len(cmds)-1] != CmdDisconnect || cmds[len(cmds)-2] != CmdResetTarget {
		t.Errorf("last commands = % X", cmds[len(cmds)-2:])
	}
	if _, err := ap.Read32(0); err == nil {
		t.Error("Read32() after Close succeeded")
	}
}

func TestQueryInfo(t *testing.T) {
	sim := NewSimTransport(regbus.NewSim())
	sim.Info.PacketSize = 512

	info, err := QueryInfo(sim)
	if err != nil {
		t.Fatalf("QueryInfo() error = %v", err)
	}
	if info.Vendor != "OpenTraceLab" || info.Serial != "SIM0001" || info.Firmware != "2.1.0" {
		t.Errorf("QueryInfo() = %+v", info)
	}
	if info.PacketSize != 512 {
		t.Errorf("PacketSize = %d, want 512", info.PacketSize)
	}
}

func TestMemAPAsRegisterWindow(t *testing.T) {
	ap, _, mem := connectSim(t)
	win := regbus.NewWindow(ap, 0xA0000000, 0x15C)

	if err := win.Write32(0x150, 0x11); err != nil {
		t.Fatalf("Write32() error = %v", err)
	}
	if got := mem.Peek(0xA0000150); got != 0x11 {
		t.Errorf("target SDCMR = 0x%X, want 0x11", got)
	}
}
