package dap

import "fmt"

// DPIDR is a decoded SW-DP identification register.
type DPIDR struct {
	Raw      uint32
	Designer uint16 // JEP106 continuation code and identity, bits [11:1]
	Version  uint8  // DP architecture version, bits [15:12]
	MinDP    bool   // minimal debug port, bit 16
	PartNo   uint8  // bits [27:20]
	Revision uint8  // bits [31:28]
}

// DecodeDPIDR splits a raw DPIDR value into its fields.
func DecodeDPIDR(raw uint32) DPIDR {
	return DPIDR{
		Raw:      raw,
		Designer: uint16((raw >> 1) & 0x7FF),
		Version:  uint8((raw >> 12) & 0xF),
		MinDP:    raw&(1<<16) != 0,
		PartNo:   uint8((raw >> 20) & 0xFF),
		Revision: uint8((raw >> 28) & 0xF),
	}
}

// Valid reports whether bit 0, which the architecture fixes at one, is set.
func (d DPIDR) Valid() bool {
	return d.Raw&1 == 1
}

// DesignerName returns the JEP106 name of the designer.
func (d DPIDR) DesignerName() string {
	return DesignerName(d.Designer)
}

func (d DPIDR) String() string {
	return fmt.Sprintf("0x%08X (designer: %s, DPv%d, part: 0x%02X, rev: %d)",
		d.Raw, d.DesignerName(), d.Version, d.PartNo, d.Revision)
}

// designers maps 11-bit JEP106 codes, continuation count in bits [10:7] and
// the identity code without parity in bits [6:0].
var designers = map[uint16]string{
	0x015: "NXP (Philips)",
	0x017: "Texas Instruments",
	0x01F: "Atmel",
	0x020: "STMicroelectronics",
	0x029: "Microchip",
	0x23B: "ARM",
	0x244: "Nordic Semiconductor",
}

// DesignerName returns the name of a JEP106 designer code.
func DesignerName(code uint16) string {
	if name, ok := designers[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%03X)", code)
}
