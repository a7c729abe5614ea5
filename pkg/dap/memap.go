package dap

import (
	"errors"
	"fmt"
	"sync"
)

// SW-DP registers
const (
	DPIDRReg   = 0x0 // read
	DPAbort    = 0x0 // write
	DPCtrlStat = 0x4
	DPSelect   = 0x8
	DPRdBuff   = 0xC
)

// MEM-AP registers, bank 0
const (
	APCSW = 0x0
	APTAR = 0x4
	APDRW = 0xC
)

// CTRL/STAT power-up handshake bits
const (
	CtrlCDbgPwrUpReq = 1 << 28
	CtrlCDbgPwrUpAck = 1 << 29
	CtrlCSysPwrUpReq = 1 << 30
	CtrlCSysPwrUpAck = 1 << 31

	ctrlPowerUpReq = CtrlCDbgPwrUpReq | CtrlCSysPwrUpReq
	ctrlPowerUpAck = CtrlCDbgPwrUpAck | CtrlCSysPwrUpAck
)

const (
	// abortClearAll clears STICKYERR, STICKYCMP, STICKYORUN and WDATAERR.
	abortClearAll = 0x1E
	// cswWord32 selects 32-bit accesses without address increment, with
	// DbgSwEnable and a privileged data access on the bus.
	cswWord32 = 0x23000002

	DefaultClockHz       = 1_000_000
	defaultPowerUpPolls  = 100
	defaultWaitRetries   = 64
	swdLineResetBytes    = 7 // 56 bits high
	swdSwitchSequence    = 0xE79E
	swdSwitchSequenceLen = 16
)

var (
	// ErrPowerUp is returned when the debug or system power domain does not
	// acknowledge the power-up request.
	ErrPowerUp = errors.New("dap: debug power-up not acknowledged")
	// ErrBadDPIDR is returned when the DPIDR read back is not a valid value.
	ErrBadDPIDR = errors.New("dap: invalid DPIDR")
	// ErrUnaligned is returned for word accesses at unaligned addresses.
	ErrUnaligned = errors.New("dap: unaligned word access")
)

// ProbeInfo is the identification a probe reports through DAP_Info.
type ProbeInfo struct {
	Vendor     string
	Product    string
	Serial     string
	Firmware   string
	PacketSize int
}

// QueryInfo reads the identification strings and packet size of a probe.
// Missing strings are left empty; only transport failures are errors.
func QueryInfo(t Transport) (ProbeInfo, error) {
	proto := NewProtocol(DefaultPacketSize)
	var info ProbeInfo

	fields := []struct {
		id  byte
		dst *string
	}{
		{InfoVendorID, &info.Vendor},
		{InfoProductID, &info.Product},
		{InfoSerialNum, &info.Serial},
		{InfoFirmwareVer, &info.Firmware},
	}
	for _, f := range fields {
		resp, err := t.WriteRead(proto.EncodeInfo(f.id))
		if err != nil {
			return info, err
		}
		*f.dst, _ = proto.DecodeInfo(resp)
	}

	resp, err := t.WriteRead(proto.EncodeInfo(InfoPacketSize))
	if err != nil {
		return info, err
	}
	size, err := proto.DecodeInfoUint16(resp)
	if err != nil || size == 0 {
		size = DefaultPacketSize
	}
	info.PacketSize = int(size)
	return info, nil
}

// MemAP reads and writes target memory through AP0 of an SW-DP. The methods
// match regbus.Bus with absolute target addresses.
type MemAP struct {
	transport Transport
	protocol  *Protocol
	dpidr     DPIDR

	mu sync.Mutex // Protect concurrent access
}

// Connect brings up the SWD link on t: selects SWD, sets the clock, switches
// the target from JTAG to SWD, reads DPIDR, powers up the debug domain and
// configures AP0 for 32-bit accesses.
func Connect(t Transport, clockHz uint32) (*MemAP, error) {
	if clockHz == 0 {
		clockHz = DefaultClockHz
	}
	size := DefaultPacketSize
	if ps, ok := t.(interface{ PacketSize() int }); ok && ps.PacketSize() > 0 {
		size = ps.PacketSize()
	}
	m := &MemAP{
		transport: t,
		protocol:  NewProtocol(size),
	}

	if err := m.connect(); err != nil {
		return nil, err
	}
	if err := m.command(m.protocol.EncodeSetClock(clockHz), m.protocol.DecodeSetClock); err != nil {
		return nil, err
	}
	if err := m.command(m.protocol.EncodeTransferConfigure(0, defaultWaitRetries, 0), m.protocol.DecodeTransferConfigure); err != nil {
		return nil, err
	}
	if err := m.switchToSWD(); err != nil {
		return nil, err
	}

	data, err := m.transfer(DPRead(DPIDRReg))
	if err != nil {
		return nil, fmt.Errorf("dap: read DPIDR: %w", err)
	}
	m.dpidr = DecodeDPIDR(data[0])
	if !m.dpidr.Valid() {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadDPIDR, data[0])
	}

	if err := m.powerUp(); err != nil {
		return nil, err
	}
	if _, err := m.transfer(APWrite(APCSW, cswWord32)); err != nil {
		return nil, fmt.Errorf("dap: configure CSW: %w", err)
	}
	return m, nil
}

// connect establishes the SWD connection
func (m *MemAP) connect() error {
	resp, err := m.transport.WriteRead(m.protocol.EncodeConnect(PortSWD))
	if err != nil {
		return err
	}
	port, err := m.protocol.DecodeConnect(resp)
	if err != nil {
		return err
	}
	if port != PortSWD {
		return fmt.Errorf("dap: failed to connect to SWD (got port %d)", port)
	}
	return nil
}

func (m *MemAP) command(cmd []byte, decode func([]byte) error) error {
	resp, err := m.transport.WriteRead(cmd)
	if err != nil {
		return err
	}
	return decode(resp)
}

func (m *MemAP) sequence(bits int, data []byte) error {
	cmd, err := m.protocol.EncodeSWJSequence(bits, data)
	if err != nil {
		return err
	}
	return m.command(cmd, m.protocol.DecodeSWJSequence)
}

// switchToSWD sends line reset, the JTAG-to-SWD select sequence, a second
// line reset and idle cycles.
func (m *MemAP) switchToSWD() error {
	reset := make([]byte, swdLineResetBytes)
	for i := range reset {
		reset[i] = 0xFF
	}
	steps := []struct {
		bits int
		data []byte
	}{
		{len(reset) * 8, reset},
		{swdSwitchSequenceLen, []byte{swdSwitchSequence & 0xFF, swdSwitchSequence >> 8}},
		{len(reset) * 8, reset},
		{8, []byte{0x00}},
	}
	for _, s := range steps {
		if err := m.sequence(s.bits, s.data); err != nil {
			return fmt.Errorf("dap: JTAG-to-SWD switch: %w", err)
		}
	}
	return nil
}

// powerUp clears sticky errors, selects AP0 bank 0 and requests debug and
// system power, polling CTRL/STAT for both acknowledges.
func (m *MemAP) powerUp() error {
	if _, err := m.transfer(
		DPWrite(DPAbort, abortClearAll),
		DPWrite(DPSelect, 0),
		DPWrite(DPCtrlStat, ctrlPowerUpReq),
	); err != nil {
		return fmt.Errorf("dap: power-up request: %w", err)
	}
	for i := 0; i < defaultPowerUpPolls; i++ {
		data, err := m.transfer(DPRead(DPCtrlStat))
		if err != nil {
			return fmt.Errorf("dap: read CTRL/STAT: %w", err)
		}
		if data[0]&ctrlPowerUpAck == ctrlPowerUpAck {
			return nil
		}
	}
	return ErrPowerUp
}

func (m *MemAP) transfer(reqs ...TransferRequest) ([]uint32, error) {
	cmd, err := m.protocol.EncodeTransfer(reqs)
	if err != nil {
		return nil, err
	}
	resp, err := m.transport.WriteRead(cmd)
	if err != nil {
		return nil, err
	}
	return m.protocol.DecodeTransfer(resp, reqs)
}

// DPIDR returns the identification read during Connect.
func (m *MemAP) DPIDR() DPIDR {
	return m.dpidr
}

// Read32 reads the word at addr.
func (m *MemAP) Read32(addr uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, fmt.Errorf("%w: 0x%08X", ErrUnaligned, addr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := m.transfer(APWrite(APTAR, addr), APRead(APDRW))
	if err != nil {
		return 0, fmt.Errorf("dap: read 0x%08X: %w", addr, err)
	}
	return data[0], nil
}

// Write32 writes v to the word at addr.
func (m *MemAP) Write32(addr, v uint32) error {
	if addr&3 != 0 {
		return fmt.Errorf("%w: 0x%08X", ErrUnaligned, addr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.transfer(APWrite(APTAR, addr), APWrite(APDRW, v)); err != nil {
		return fmt.Errorf("dap: write 0x%08X: %w", addr, err)
	}
	return nil
}

// Barrier reads RDBUFF, which completes only after every posted AP write has
// reached the target bus.
func (m *MemAP) Barrier() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.transfer(DPRead(DPRdBuff)); err != nil {
		return fmt.Errorf("dap: barrier: %w", err)
	}
	return nil
}

// ResetTarget asks the probe to reset the target through nRESET.
func (m *MemAP) ResetTarget() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.command(m.protocol.EncodeResetTarget(), m.protocol.DecodeResetTarget)
}

// Close disconnects from the target and releases the transport.
func (m *MemAP) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.command(m.protocol.EncodeDisconnect(), m.protocol.DecodeDisconnect)
	if cerr := m.transport.Close(); err == nil {
		err = cerr
	}
	return err
}
