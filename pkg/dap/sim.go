package dap

import (
	"encoding/binary"
	"fmt"
)

// Memory is a 32-bit target address space.
type Memory interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr, val uint32) error
}

// DefaultSimDPIDR identifies a Cortex-M4 SW-DP (ARM, DPv1, revision 2).
const DefaultSimDPIDR = 0x2BA01477

// FaultHook lets tests make a target address answer FAULT.
type FaultHook func(addr uint32) bool

// SimTransport is an in-memory CMSIS-DAP probe attached to a simulated SW-DP
// and MEM-AP. It decodes DAP_Transfer requests and applies AP data accesses
// to Target. It is not safe for concurrent use.
type SimTransport struct {
	Target Memory
	IDR    uint32
	Info   ProbeInfo

	OnAccess FaultHook

	swd      bool
	selected bool // select sequence seen, waiting for line reset
	ctrlStat uint32
	sel      uint32
	csw      uint32
	tar      uint32
	rdbuff   uint32

	commands []byte
	closed   bool
}

// NewSimTransport returns a simulated probe with target memory mem.
func NewSimTransport(mem Memory) *SimTransport {
	return &SimTransport{
		Target: mem,
		IDR:    DefaultSimDPIDR,
		Info: ProbeInfo{
			Vendor:     "OpenTraceLab",
			Product:    "Simulated CMSIS-DAP",
			Serial:     "SIM0001",
			Firmware:   "2.1.0",
			PacketSize: DefaultPacketSize,
		},
	}
}

// Commands returns the command IDs received so far, in order.
func (s *SimTransport) Commands() []byte {
	return append([]byte(nil), s.commands...)
}

// Closed reports whether Close has been called.
func (s *SimTransport) Closed() bool {
	return s.closed
}

// PacketSize reports the simulated packet size.
func (s *SimTransport) PacketSize() int {
	return s.Info.PacketSize
}

func (s *SimTransport) Close() error {
	s.closed = true
	return nil
}

func (s *SimTransport) WriteRead(cmd []byte) ([]byte, error) {
	if s.closed {
		return nil, fmt.Errorf("dap: simulated probe closed")
	}
	if len(cmd) == 0 {
		return nil, fmt.Errorf("dap: empty command")
	}
	s.commands = append(s.commands, cmd[0])

	switch cmd[0] {
	case CmdInfo:
		return s.info(cmd)
	case CmdConnect:
		if len(cmd) < 2 {
			return nil, fmt.Errorf("dap: short DAP_Connect")
		}
		if cmd[1] == PortJTAG {
			return []byte{CmdConnect, PortDefault}, nil
		}
		return []byte{CmdConnect, PortSWD}, nil
	case CmdDisconnect, CmdSWJClock, CmdTransferConfigure:
		return []byte{cmd[0], StatusOK}, nil
	case CmdResetTarget:
		return []byte{CmdResetTarget, StatusOK, 0}, nil
	case CmdSWJSequence:
		return s.swjSequence(cmd)
	case CmdTransfer:
		return s.transfer(cmd)
	}
	return []byte{StatusError}, nil
}

func (s *SimTransport) info(cmd []byte) ([]byte, error) {
	if len(cmd) < 2 {
		return nil, fmt.Errorf("dap: short DAP_Info")
	}
	var str string
	switch cmd[1] {
	case InfoVendorID:
		str = s.Info.Vendor
	case InfoProductID:
		str = s.Info.Product
	case InfoSerialNum:
		str = s.Info.Serial
	case InfoFirmwareVer:
		str = s.Info.Firmware
	case InfoCapabilities:
		return []byte{CmdInfo, 1, 0x01}, nil // SWD only
	case InfoPacketCount:
		return []byte{CmdInfo, 1, 1}, nil
	case InfoPacketSize:
		return binary.LittleEndian.AppendUint16([]byte{CmdInfo, 2}, uint16(s.Info.PacketSize)), nil
	default:
		return []byte{CmdInfo, 0}, nil
	}
	return append([]byte{CmdInfo, byte(len(str))}, str...), nil
}

// swjSequence tracks the JTAG-to-SWD select: the link is in SWD mode once
// the select sequence has been clocked and followed by a line reset.
func (s *SimTransport) swjSequence(cmd []byte) ([]byte, error) {
	if len(cmd) < 2 {
		return nil, fmt.Errorf("dap: short DAP_SWJ_Sequence")
	}
	bits := int(cmd[1])
	if bits == 0 {
		bits = 256
	}
	data := cmd[2:]
	if len(data) < (bits+7)/8 {
		return []byte{CmdSWJSequence, StatusError}, nil
	}

	if bits == swdSwitchSequenceLen && binary.LittleEndian.Uint16(data) == swdSwitchSequence {
		s.selected = true
	} else if s.selected && bits >= 50 && allOnes(data, bits) {
		s.swd = true
		s.selected = false
	}
	return []byte{CmdSWJSequence, StatusOK}, nil
}

func allOnes(data []byte, bits int) bool {
	for i := 0; i < bits; i++ {
		if data[i/8]&(1<<(i%8)) == 0 {
			return false
		}
	}
	return true
}

func (s *SimTransport) transfer(cmd []byte) ([]byte, error) {
	if len(cmd) < 3 {
		return nil, fmt.Errorf("dap: short DAP_Transfer")
	}
	count := int(cmd[2])
	resp := []byte{CmdTransfer, 0, 0}
	offset := 3

	for i := 0; i < count; i++ {
		if offset >= len(cmd) {
			return nil, fmt.Errorf("dap: truncated DAP_Transfer")
		}
		req := TransferRequest{Request: cmd[offset]}
		offset++
		if !req.IsRead() {
			if offset+4 > len(cmd) {
				return nil, fmt.Errorf("dap: truncated DAP_Transfer data")
			}
			req.Data = binary.LittleEndian.Uint32(cmd[offset:])
			offset += 4
		}

		data, ack := s.access(req)
		resp[2] = ack
		if ack != AckOK {
			break
		}
		resp[1]++
		if req.IsRead() {
			resp = binary.LittleEndian.AppendUint32(resp, data)
		}
	}
	return resp, nil
}

func (s *SimTransport) access(req TransferRequest) (uint32, byte) {
	if !s.swd {
		return 0, AckMask // line not driven
	}
	if !req.IsAP() {
		return s.dpAccess(req), AckOK
	}
	if s.ctrlStat&ctrlPowerUpAck != ctrlPowerUpAck || s.sel != 0 {
		return 0, AckFault
	}

	switch req.Addr() {
	case APCSW:
		if req.IsRead() {
			return s.csw, AckOK
		}
		s.csw = req.Data
	case APTAR:
		if req.IsRead() {
			return s.tar, AckOK
		}
		s.tar = req.Data
	case APDRW:
		if s.OnAccess != nil && s.OnAccess(s.tar) {
			return 0, AckFault
		}
		if req.IsRead() {
			v, err := s.Target.Read32(s.tar)
			if err != nil {
				return 0, AckFault
			}
			s.rdbuff = v
			return v, AckOK
		}
		if err := s.Target.Write32(s.tar, req.Data); err != nil {
			return 0, AckFault
		}
	}
	return 0, AckOK
}

func (s *SimTransport) dpAccess(req TransferRequest) uint32 {
	switch req.Addr() {
	case DPIDRReg:
		if req.IsRead() {
			return s.IDR
		}
		// ABORT: sticky flags are never set by the model.
	case DPCtrlStat:
		if req.IsRead() {
			return s.ctrlStat
		}
		// Power domains acknowledge immediately.
		s.ctrlStat = req.Data &^ ctrlPowerUpAck
		if req.Data&CtrlCDbgPwrUpReq != 0 {
			s.ctrlStat |= CtrlCDbgPwrUpAck
		}
		if req.Data&CtrlCSysPwrUpReq != 0 {
			s.ctrlStat |= CtrlCSysPwrUpAck
		}
	case DPSelect:
		if !req.IsRead() {
			s.sel = req.Data
		}
	case DPRdBuff:
		if req.IsRead() {
			return s.rdbuff
		}
	}
	return 0
}
