package dts

import (
	"encoding/binary"
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// ValueKind identifies one comma-separated piece of a property value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueCells
	ValueBytes
	ValuePath
)

// Cell is one element of a cell list. Ref is set when the element was a
// phandle reference; Value then holds the resolved phandle.
type Cell struct {
	Value uint64
	Ref   string
}

// Value is one piece of a property value.
type Value struct {
	Kind  ValueKind
	Text  string // ValueString, and the resolved target path for ValuePath
	Bits  int    // element width of ValueCells
	Cells []Cell
	Bytes []byte
	Ref   string // reference text of ValuePath
}

// Property is one node property.
type Property struct {
	Name   string
	Labels []string
	Values []Value
	Pos    lexer.Position
}

// Empty reports whether the property has no value (a boolean property).
func (p *Property) Empty() bool {
	return len(p.Values) == 0
}

// Raw returns the property value encoded the way a flattened tree stores it.
func (p *Property) Raw() []byte {
	var out []byte
	for _, v := range p.Values {
		switch v.Kind {
		case ValueString, ValuePath:
			out = append(out, v.Text...)
			out = append(out, 0)
		case ValueBytes:
			out = append(out, v.Bytes...)
		case ValueCells:
			for _, c := range v.Cells {
				switch v.Bits {
				case 8:
					out = append(out, byte(c.Value))
				case 16:
					out = binary.BigEndian.AppendUint16(out, uint16(c.Value))
				case 64:
					out = binary.BigEndian.AppendUint64(out, c.Value)
				default:
					out = binary.BigEndian.AppendUint32(out, uint32(c.Value))
				}
			}
		}
	}
	return out
}

// Strings returns the property as a string list.
func (p *Property) Strings() ([]string, error) {
	out := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		if v.Kind != ValueString && v.Kind != ValuePath {
			return nil, p.typeError("a string list")
		}
		out = append(out, v.Text)
	}
	return out, nil
}

// Text returns the property's only string.
func (p *Property) Text() (string, error) {
	list, err := p.Strings()
	if err != nil || len(list) != 1 {
		return "", p.typeError("a single string")
	}
	return list[0], nil
}

// Cells returns all 32-bit cells of the property in order.
func (p *Property) Cells() ([]uint64, error) {
	var out []uint64
	for _, v := range p.Values {
		if v.Kind != ValueCells || v.Bits != 32 {
			return nil, p.typeError("32-bit cells")
		}
		for _, c := range v.Cells {
			out = append(out, c.Value)
		}
	}
	return out, nil
}

// Uint32 returns the property's only cell.
func (p *Property) Uint32() (uint32, error) {
	cells, err := p.Cells()
	if err != nil || len(cells) != 1 {
		return 0, p.typeError("a single cell")
	}
	return uint32(cells[0]), nil
}

// Uint8s returns a byte array written either as /bits/ 8 cells or as a
// bytestring.
func (p *Property) Uint8s() ([]byte, error) {
	for _, v := range p.Values {
		if v.Kind == ValueBytes || (v.Kind == ValueCells && v.Bits == 8) {
			continue
		}
		return nil, p.typeError("a byte array")
	}
	return p.Raw(), nil
}

// Phandles returns the reference targets of a phandle list.
func (p *Property) Phandles() ([]string, error) {
	var out []string
	for _, v := range p.Values {
		if v.Kind != ValueCells || v.Bits != 32 {
			return nil, p.typeError("a phandle list")
		}
		for _, c := range v.Cells {
			if c.Ref == "" {
				return nil, p.typeError("a phandle list")
			}
			out = append(out, c.Ref)
		}
	}
	return out, nil
}

func (p *Property) typeError(want string) error {
	return fmt.Errorf("%w: %s: %s is not %s", ErrBadValue, p.Pos, p.Name, want)
}
