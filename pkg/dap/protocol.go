package dap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CMSIS-DAP Command IDs
const (
	CmdInfo              = 0x00
	CmdConnect           = 0x02
	CmdDisconnect        = 0x03
	CmdTransferConfigure = 0x04
	CmdTransfer          = 0x05
	CmdResetTarget       = 0x0A
	CmdSWJClock          = 0x11
	CmdSWJSequence       = 0x12
)

// DAP_Info Info IDs
const (
	InfoVendorID     = 0x01
	InfoProductID    = 0x02
	InfoSerialNum    = 0x03
	InfoFirmwareVer  = 0x04
	InfoCapabilities = 0xF0
	InfoPacketCount  = 0xFE
	InfoPacketSize   = 0xFF
)

// Connection ports
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

// Status codes
const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// DAP_Transfer request bits
const (
	TransferAPnDP = 0x01
	TransferRnW   = 0x02
	TransferAddr  = 0x0C // A[3:2]
)

// DAP_Transfer acknowledge values
const (
	AckOK    = 0x01
	AckWait  = 0x02
	AckFault = 0x04
	AckMask  = 0x07
	AckError = 0x08 // SWD protocol error
)

var (
	// ErrResponse reports a malformed or mismatched probe response.
	ErrResponse = errors.New("dap: invalid response")
	// ErrWait is returned when the target keeps answering WAIT.
	ErrWait = errors.New("dap: target answered WAIT")
	// ErrFault is returned when the target answers FAULT.
	ErrFault = errors.New("dap: target answered FAULT")
	// ErrNoAck is returned when the target does not drive the acknowledge.
	ErrNoAck = errors.New("dap: no acknowledge from target")
)

// Protocol handles encoding/decoding of CMSIS-DAP commands
type Protocol struct {
	PacketSize int
}

// NewProtocol creates a new protocol handler
func NewProtocol(packetSize int) *Protocol {
	return &Protocol{
		PacketSize: packetSize,
	}
}

func checkHeader(resp []byte, cmd byte, min int) error {
	if len(resp) < min {
		return fmt.Errorf("%w: %d bytes for command 0x%02X", ErrResponse, len(resp), cmd)
	}
	if resp[0] != cmd {
		return fmt.Errorf("%w: command ID 0x%02X, want 0x%02X", ErrResponse, resp[0], cmd)
	}
	return nil
}

func checkStatus(resp []byte, cmd byte, what string) error {
	if err := checkHeader(resp, cmd, 2); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("dap: %s failed", what)
	}
	return nil
}

// EncodeInfo builds a DAP_Info command
func (p *Protocol) EncodeInfo(infoID byte) []byte {
	return []byte{CmdInfo, infoID}
}

// DecodeInfo parses a DAP_Info response carrying a string
func (p *Protocol) DecodeInfo(resp []byte) (string, error) {
	if err := checkHeader(resp, CmdInfo, 2); err != nil {
		return "", err
	}

	length := int(resp[1])
	if len(resp) < 2+length {
		return "", fmt.Errorf("%w: incomplete info string", ErrResponse)
	}

	// Strings may or may not include the NUL terminator.
	s := resp[2 : 2+length]
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s), nil
}

// DecodeInfoUint16 parses a DAP_Info response carrying a 16-bit value, such as
// the packet size
func (p *Protocol) DecodeInfoUint16(resp []byte) (uint16, error) {
	if err := checkHeader(resp, CmdInfo, 4); err != nil {
		return 0, err
	}
	if resp[1] != 2 {
		return 0, fmt.Errorf("%w: info length %d, want 2", ErrResponse, resp[1])
	}
	return binary.LittleEndian.Uint16(resp[2:4]), nil
}

// EncodeConnect builds a DAP_Connect command
func (p *Protocol) EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect parses a DAP_Connect response
func (p *Protocol) DecodeConnect(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdConnect, 2); err != nil {
		return 0, err
	}
	if resp[1] == PortDefault {
		return 0, fmt.Errorf("dap: connection failed")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command
func (p *Protocol) EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

// DecodeDisconnect parses a DAP_Disconnect response
func (p *Protocol) DecodeDisconnect(resp []byte) error {
	return checkStatus(resp, CmdDisconnect, "disconnect")
}

// EncodeSetClock builds a DAP_SWJ_Clock command
func (p *Protocol) EncodeSetClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// DecodeSetClock parses response
func (p *Protocol) DecodeSetClock(resp []byte) error {
	return checkStatus(resp, CmdSWJClock, "set clock")
}

// EncodeSWJSequence builds a DAP_SWJ_Sequence command clocking out bits of
// data on SWDIO/TMS, LSB first. A count of 256 is encoded as zero.
func (p *Protocol) EncodeSWJSequence(bits int, data []byte) ([]byte, error) {
	if bits < 1 || bits > 256 {
		return nil, fmt.Errorf("dap: SWJ sequence of %d bits, want 1-256", bits)
	}
	n := (bits + 7) / 8
	if len(data) < n {
		return nil, fmt.Errorf("dap: SWJ sequence of %d bits needs %d bytes, got %d", bits, n, len(data))
	}
	cmd := make([]byte, 2+n)
	cmd[0] = CmdSWJSequence
	cmd[1] = byte(bits) // 256 wraps to 0
	copy(cmd[2:], data[:n])
	return cmd, nil
}

// DecodeSWJSequence parses response
func (p *Protocol) DecodeSWJSequence(resp []byte) error {
	return checkStatus(resp, CmdSWJSequence, "SWJ sequence")
}

// EncodeTransferConfigure builds a DAP_TransferConfigure command
func (p *Protocol) EncodeTransferConfigure(idleCycles byte, waitRetry, matchRetry uint16) []byte {
	cmd := make([]byte, 6)
	cmd[0] = CmdTransferConfigure
	cmd[1] = idleCycles
	binary.LittleEndian.PutUint16(cmd[2:], waitRetry)
	binary.LittleEndian.PutUint16(cmd[4:], matchRetry)
	return cmd
}

// DecodeTransferConfigure parses response
func (p *Protocol) DecodeTransferConfigure(resp []byte) error {
	return checkStatus(resp, CmdTransferConfigure, "transfer configure")
}

// TransferRequest is one DP or AP register access inside a DAP_Transfer.
type TransferRequest struct {
	Request byte
	Data    uint32 // written value, ignored for reads
}

// DPRead returns a request reading the DP register at addr.
func DPRead(addr byte) TransferRequest {
	return TransferRequest{Request: TransferRnW | addr&TransferAddr}
}

// DPWrite returns a request writing v to the DP register at addr.
func DPWrite(addr byte, v uint32) TransferRequest {
	return TransferRequest{Request: addr & TransferAddr, Data: v}
}

// APRead returns a request reading the AP register at addr of the selected bank.
func APRead(addr byte) TransferRequest {
	return TransferRequest{Request: TransferAPnDP | TransferRnW | addr&TransferAddr}
}

// APWrite returns a request writing v to the AP register at addr.
func APWrite(addr byte, v uint32) TransferRequest {
	return TransferRequest{Request: TransferAPnDP | addr&TransferAddr, Data: v}
}

// IsRead reports whether the request reads a register.
func (r TransferRequest) IsRead() bool {
	return r.Request&TransferRnW != 0
}

// IsAP reports whether the request targets the access port.
func (r TransferRequest) IsAP() bool {
	return r.Request&TransferAPnDP != 0
}

// Addr returns the register address, A[3:2] as a byte offset.
func (r TransferRequest) Addr() byte {
	return r.Request & TransferAddr
}

// EncodeTransfer builds a DAP_Transfer command for DAP index 0
func (p *Protocol) EncodeTransfer(reqs []TransferRequest) ([]byte, error) {
	if len(reqs) == 0 || len(reqs) > 255 {
		return nil, fmt.Errorf("dap: %d transfers in one command, want 1-255", len(reqs))
	}
	cmd := []byte{CmdTransfer, 0, byte(len(reqs))}
	for _, r := range reqs {
		cmd = append(cmd, r.Request)
		if !r.IsRead() {
			cmd = binary.LittleEndian.AppendUint32(cmd, r.Data)
		}
	}
	if p.PacketSize > 0 && len(cmd) > p.PacketSize {
		return nil, fmt.Errorf("dap: transfer of %d bytes exceeds packet size %d", len(cmd), p.PacketSize)
	}
	return cmd, nil
}

// DecodeTransfer parses a DAP_Transfer response and returns the read data in
// request order
func (p *Protocol) DecodeTransfer(resp []byte, reqs []TransferRequest) ([]uint32, error) {
	if err := checkHeader(resp, CmdTransfer, 3); err != nil {
		return nil, err
	}

	count := int(resp[1])
	ack := resp[2]
	if count != len(reqs) || ack != AckOK {
		return nil, transferError(count, ack)
	}

	var data []uint32
	offset := 3
	for _, r := range reqs {
		if !r.IsRead() {
			continue
		}
		if offset+4 > len(resp) {
			return nil, fmt.Errorf("%w: incomplete transfer data", ErrResponse)
		}
		data = append(data, binary.LittleEndian.Uint32(resp[offset:]))
		offset += 4
	}
	return data, nil
}

func transferError(count int, ack byte) error {
	if ack&AckError != 0 {
		return fmt.Errorf("%w: SWD protocol error after %d transfers", ErrResponse, count)
	}
	switch ack & AckMask {
	case AckWait:
		return fmt.Errorf("%w after %d transfers", ErrWait, count)
	case AckFault:
		return fmt.Errorf("%w after %d transfers", ErrFault, count)
	case AckOK:
		return fmt.Errorf("%w: %d transfers completed", ErrResponse, count)
	default:
		return fmt.Errorf("%w after %d transfers", ErrNoAck, count)
	}
}

// EncodeResetTarget builds a DAP_ResetTarget command
func (p *Protocol) EncodeResetTarget() []byte {
	return []byte{CmdResetTarget}
}

// DecodeResetTarget parses response
func (p *Protocol) DecodeResetTarget(resp []byte) error {
	return checkStatus(resp, CmdResetTarget, "reset target")
}
