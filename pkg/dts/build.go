package dts

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
)

type builder struct {
	tree   *Tree
	macros *macros
}

func build(src *Source, defines map[string]string) (*Tree, error) {
	b := &builder{
		tree: &Tree{
			Root:     &Node{Name: "/"},
			labels:   make(map[string]*Node),
			phandles: make(map[uint32]*Node),
		},
		macros: newMacros(maps.Clone(defines)),
	}

	for _, e := range src.Entries {
		if err := b.entry(e); err != nil {
			return nil, err
		}
	}
	if err := b.indexLabels(); err != nil {
		return nil, err
	}
	if err := b.resolveRefs(); err != nil {
		return nil, err
	}
	return b.tree, nil
}

func (b *builder) entry(e *Entry) error {
	switch {
	case e.Version:
	case e.Plugin:
		b.tree.Plugin = true
	case e.MemReserve != nil:
		addr, err := parseNumber(e.MemReserve.Address)
		if err != nil {
			return err
		}
		size, err := parseNumber(e.MemReserve.Size)
		if err != nil {
			return err
		}
		b.tree.Reservations = append(b.tree.Reservations, Reservation{Address: addr, Size: size})
	case e.Define != "":
		return b.macros.define(e.Define)
	case e.DeleteNode != nil:
		n, err := b.target(*e.DeleteNode)
		if err != nil {
			return err
		}
		if n.Parent == nil {
			return fmt.Errorf("%w: cannot delete the root node", ErrBadValue)
		}
		n.Parent.removeChild(n.Name)
	case e.Overlay != nil:
		n, err := b.target(e.Overlay.Target)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Overlay.Pos, err)
		}
		return b.items(n, e.Overlay.Items)
	case e.Node != nil:
		if e.Node.Name != "/" {
			return fmt.Errorf("%w: %s: top-level node %q must be /", ErrBadValue, e.Node.Pos, e.Node.Name)
		}
		b.tree.Root.addLabels(e.Node.Labels)
		return b.items(b.tree.Root, e.Node.Items)
	}
	return nil
}

// target resolves a &label or &{/path} reference against the tree built so
// far.
func (b *builder) target(ref string) (*Node, error) {
	if strings.HasPrefix(ref, "&{") {
		return findPath(b.tree.Root, strings.TrimSuffix(strings.TrimPrefix(ref, "&{"), "}"))
	}
	label := strings.TrimPrefix(ref, "&")
	var found *Node
	walk(b.tree.Root, func(n *Node) {
		for _, l := range n.Labels {
			if l == label && found == nil {
				found = n
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return found, nil
}

func (b *builder) items(n *Node, items []*NodeItem) error {
	for _, it := range items {
		switch {
		case it.DeleteProperty != nil:
			n.removeProperty(*it.DeleteProperty)
		case it.DeleteNode != nil:
			n.removeChild(*it.DeleteNode)
		case it.Node != nil:
			child := n.Child(it.Node.Name)
			if child == nil {
				child = &Node{Name: it.Node.Name, Parent: n}
				n.Children = append(n.Children, child)
			}
			child.addLabels(it.Node.Labels)
			if err := b.items(child, it.Node.Items); err != nil {
				return err
			}
		case it.Property != nil:
			p, err := b.property(it.Property)
			if err != nil {
				return err
			}
			n.setProperty(p)
		}
	}
	return nil
}

func (b *builder) property(pb *PropertyBlock) (*Property, error) {
	p := &Property{Name: pb.Name, Pos: pb.Pos}
	for _, l := range pb.Labels {
		p.Labels = append(p.Labels, strings.TrimSuffix(l, ":"))
	}
	for _, vb := range pb.Values {
		v, err := b.value(vb)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", pb.Pos, pb.Name, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

func (b *builder) value(vb *ValueBlock) (Value, error) {
	switch {
	case vb.String != nil:
		s, err := strconv.Unquote(*vb.String)
		if err != nil {
			return Value{}, fmt.Errorf("%w: string %s", ErrBadValue, *vb.String)
		}
		return Value{Kind: ValueString, Text: s}, nil
	case vb.Bytes != nil:
		digits := strings.Join(strings.Fields(strings.Trim(*vb.Bytes, "[]")), "")
		raw, err := hex.DecodeString(digits)
		if err != nil {
			return Value{}, fmt.Errorf("%w: bytestring %s", ErrBadValue, *vb.Bytes)
		}
		return Value{Kind: ValueBytes, Bytes: raw}, nil
	case vb.Ref != nil:
		return Value{Kind: ValuePath, Ref: *vb.Ref}, nil
	default:
		return b.cells(vb.Cells)
	}
}

func (b *builder) cells(cb *CellsBlock) (Value, error) {
	v := Value{Kind: ValueCells, Bits: 32}
	if cb.Bits != nil {
		bits, err := parseNumber(*cb.Bits)
		if err != nil {
			return Value{}, err
		}
		switch bits {
		case 8, 16, 32, 64:
			v.Bits = int(bits)
		default:
			return Value{}, fmt.Errorf("%w: /bits/ %d", ErrBadValue, bits)
		}
	}

	for _, c := range cb.Cells {
		var cell Cell
		switch {
		case c.Ref != nil:
			if v.Bits != 32 {
				return Value{}, fmt.Errorf("%w: reference %s in /bits/ %d cells", ErrBadValue, *c.Ref, v.Bits)
			}
			cell.Ref = *c.Ref
		case c.Macro != nil:
			n, err := b.macros.lookup(*c.Macro)
			if err != nil {
				return Value{}, err
			}
			cell.Value = n
		default:
			n, err := parseNumber(*c.Number)
			if err != nil {
				return Value{}, err
			}
			cell.Value = n
		}
		if v.Bits < 64 && cell.Value>>v.Bits != 0 {
			return Value{}, fmt.Errorf("%w: 0x%X does not fit in %d bits", ErrBadValue, cell.Value, v.Bits)
		}
		v.Cells = append(v.Cells, cell)
	}
	return v, nil
}

func (b *builder) indexLabels() error {
	var err error
	walk(b.tree.Root, func(n *Node) {
		for _, l := range n.Labels {
			if prev, dup := b.tree.labels[l]; dup && prev != n && err == nil {
				err = fmt.Errorf("%w: %s on %s and %s", ErrDuplicate, l, prev.Path(), n.Path())
			}
			b.tree.labels[l] = n
		}
	})
	return err
}

// resolveRefs assigns phandles to referenced nodes and substitutes them
// into every cell reference. Explicit phandle properties are honoured.
func (b *builder) resolveRefs() error {
	var next uint32 = 1
	var err error
	walk(b.tree.Root, func(n *Node) {
		p := n.Property("phandle")
		if p == nil {
			p = n.Property("linux,phandle")
		}
		if p == nil || err != nil {
			return
		}
		ph, perr := p.Uint32()
		if perr != nil {
			err = perr
			return
		}
		n.phandle = ph
		b.tree.phandles[ph] = n
		if ph >= next {
			next = ph + 1
		}
	})
	if err != nil {
		return err
	}

	walk(b.tree.Root, func(n *Node) {
		for _, p := range n.Properties {
			for vi := range p.Values {
				v := &p.Values[vi]
				if v.Kind == ValuePath && err == nil {
					target, terr := b.target(v.Ref)
					if terr != nil {
						err = fmt.Errorf("%s: %s: %w", p.Pos, p.Name, terr)
						continue
					}
					v.Text = target.Path()
				}
				for ci := range v.Cells {
					c := &v.Cells[ci]
					if c.Ref == "" || err != nil {
						continue
					}
					target, terr := b.target(c.Ref)
					if terr != nil {
						err = fmt.Errorf("%s: %s: %w", p.Pos, p.Name, terr)
						continue
					}
					if target.phandle == 0 {
						target.phandle = next
						b.tree.phandles[next] = target
						next++
					}
					c.Value = uint64(target.phandle)
				}
			}
		}
	})
	return err
}

func parseNumber(s string) (uint64, error) {
	digits := strings.TrimRight(s, "uUlL")
	v, err := strconv.ParseUint(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %s", ErrBadValue, s)
	}
	return v, nil
}

func (n *Node) addLabels(labels []string) {
	for _, l := range labels {
		l = strings.TrimSuffix(l, ":")
		seen := false
		for _, have := range n.Labels {
			seen = seen || have == l
		}
		if !seen {
			n.Labels = append(n.Labels, l)
		}
	}
}

func (n *Node) setProperty(p *Property) {
	for i, have := range n.Properties {
		if have.Name == p.Name {
			n.Properties[i] = p
			return
		}
	}
	n.Properties = append(n.Properties, p)
}

func (n *Node) removeProperty(name string) {
	for i, p := range n.Properties {
		if p.Name == name {
			n.Properties = append(n.Properties[:i], n.Properties[i+1:]...)
			return
		}
	}
}

func (n *Node) removeChild(name string) {
	for i, c := range n.Children {
		if c.Name == name {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}
