package dap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// Raspberry Pi Debug Probe / picoprobe CMSIS-DAP identifiers
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	// Default packet size for CMSIS-DAP v1/v2
	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// Transport moves one CMSIS-DAP command packet to the probe and returns the
// response packet.
type Transport interface {
	WriteRead(cmd []byte) ([]byte, error)
	Close() error
}

// USBTransport handles USB communication with a CMSIS-DAP v2 probe over its
// vendor-class bulk interface
type USBTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

// NewUSBTransport opens the first probe matching vid:pid. A non-empty serial
// selects a specific probe.
func NewUSBTransport(vid, pid uint16, serial string) (*USBTransport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && matchSerial(d, serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("dap: USB error: %w", err)
		}
		return nil, fmt.Errorf("dap: device not found (VID:0x%04X PID:0x%04X serial %q)", vid, pid, serial)
	}

	// Not supported on every platform; claiming fails later if it mattered.
	_ = dev.SetAutoDetach(true)

	transport := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
	}

	if err := transport.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	return transport, nil
}

func matchSerial(dev *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	s, err := dev.SerialNumber()
	return err == nil && s == serial
}

// claimInterface finds and claims the CMSIS-DAP vendor interface
func (t *USBTransport) claimInterface() error {
	cfgNum, err := t.dev.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("dap: failed to get active config: %w", err)
	}
	cfgDesc, ok := t.dev.Desc.Configs[cfgNum]
	if !ok {
		return fmt.Errorf("dap: config %d has no descriptor", cfgNum)
	}

	// CMSIS-DAP v2 uses a vendor-specific class (0xFF) interface with two
	// bulk endpoints; fall back to interface 0 when no such interface exists.
	intfNum := 0
	for _, intf := range cfgDesc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = intf.Number
			break
		}
	}

	cfg, err := t.dev.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("dap: failed to open config %d: %w", cfgNum, err)
	}
	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("dap: failed to claim interface %d: %w", intfNum, err)
	}
	t.done = func() {
		intf.Close()
		cfg.Close()
	}

	if err := t.findEndpoints(intf); err != nil {
		t.done()
		t.done = nil
		return err
	}
	return nil
}

// findEndpoints discovers the bulk IN and OUT endpoints
func (t *USBTransport) findEndpoints(intf *gousb.Interface) error {
	var outAddr, inAddr int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && outAddr == 0 {
			outAddr = ep.Number
		}
		if ep.Direction == gousb.EndpointDirectionIn && inAddr == 0 {
			inAddr = ep.Number
			t.packetSize = ep.MaxPacketSize
		}
	}
	if outAddr == 0 {
		return fmt.Errorf("dap: bulk OUT endpoint not found")
	}
	if inAddr == 0 {
		return fmt.Errorf("dap: bulk IN endpoint not found")
	}

	epOut, err := intf.OutEndpoint(outAddr)
	if err != nil {
		return fmt.Errorf("dap: failed to open OUT endpoint: %w", err)
	}
	epIn, err := intf.InEndpoint(inAddr)
	if err != nil {
		return fmt.Errorf("dap: failed to open IN endpoint: %w", err)
	}
	t.epOut, t.epIn = epOut, epIn
	return nil
}

// WriteRead performs a command/response transaction
func (t *USBTransport) WriteRead(cmd []byte) ([]byte, error) {
	if len(cmd) > t.packetSize {
		return nil, fmt.Errorf("dap: command of %d bytes exceeds packet size %d", len(cmd), t.packetSize)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if _, err := t.epOut.WriteContext(ctx, cmd); err != nil {
		return nil, fmt.Errorf("dap: USB write failed: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.ReadContext(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("dap: USB read failed: %w", err)
	}
	return resp[:n], nil
}

// PacketSize returns the bulk packet size reported by the IN endpoint
func (t *USBTransport) PacketSize() int {
	return t.packetSize
}

// SetTimeout bounds each command/response transaction
func (t *USBTransport) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// Close releases USB resources
func (t *USBTransport) Close() error {
	if t.done != nil {
		t.done()
		t.done = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// DeviceInfo represents a discovered USB device
type DeviceInfo struct {
	VID          uint16
	PID          uint16
	SerialNumber string
	Description  string
}

// EnumerateProbes finds all connected probes with a known CMSIS-DAP VID:PID
func EnumerateProbes() ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := lookupKnownProbe(uint16(desc.Vendor), uint16(desc.Product))
		return ok
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("dap: failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(devs))
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		devices = append(devices, DeviceInfo{
			VID:          uint16(dev.Desc.Vendor),
			PID:          uint16(dev.Desc.Product),
			SerialNumber: serial,
			Description:  fmt.Sprintf("%s %s", manufacturer, product),
		})
		dev.Close()
	}
	return devices, nil
}
