package dts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownLabel = errors.New("dts: unknown label")
	ErrUnknownPath  = errors.New("dts: unknown node path")
	ErrUndefined    = errors.New("dts: undefined macro")
	ErrDuplicate    = errors.New("dts: duplicate label")
	ErrBadValue     = errors.New("dts: bad value")
)

// Tree is a resolved device tree: overlays are merged, deletions applied and
// every phandle reference replaced by the target's phandle.
type Tree struct {
	Root         *Node
	Reservations []Reservation
	Plugin       bool

	labels   map[string]*Node
	phandles map[uint32]*Node
}

// Reservation is a /memreserve/ entry.
type Reservation struct {
	Address uint64
	Size    uint64
}

// Node is one device tree node.
type Node struct {
	Name       string
	Labels     []string
	Parent     *Node
	Children   []*Node
	Properties []*Property

	phandle uint32
}

// BaseName returns the node name without its unit address.
func (n *Node) BaseName() string {
	base, _, _ := strings.Cut(n.Name, "@")
	return base
}

// UnitAddress returns the text after '@' and whether the name had one.
func (n *Node) UnitAddress() (string, bool) {
	_, unit, ok := strings.Cut(n.Name, "@")
	return unit, ok
}

// Path returns the absolute path of the node.
func (n *Node) Path() string {
	if n.Parent == nil {
		return "/"
	}
	parent := n.Parent.Path()
	if parent == "/" {
		return "/" + n.Name
	}
	return parent + "/" + n.Name
}

// Phandle returns the node's phandle, or 0 when nothing references it.
func (n *Node) Phandle() uint32 {
	return n.phandle
}

// Property returns the named property or nil.
func (n *Node) Property(name string) *Property {
	for _, p := range n.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Child returns the direct child with the given full name or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Compatible returns the entries of the compatible property.
func (n *Node) Compatible() []string {
	p := n.Property("compatible")
	if p == nil {
		return nil
	}
	list, err := p.Strings()
	if err != nil {
		return nil
	}
	return list
}

// IsCompatible reports whether any of the given strings appears in the
// node's compatible list.
func (n *Node) IsCompatible(compat ...string) bool {
	for _, have := range n.Compatible() {
		for _, want := range compat {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Enabled reports whether the status property is absent, "okay" or "ok".
func (n *Node) Enabled() bool {
	p := n.Property("status")
	if p == nil {
		return true
	}
	s, err := p.Text()
	if err != nil {
		return false
	}
	return s == "okay" || s == "ok"
}

// Reg is one address/size pair from a reg property.
type Reg struct {
	Address uint64
	Size    uint64
}

// Reg decodes the node's reg property using the parent's #address-cells and
// #size-cells.
func (n *Node) Reg() ([]Reg, error) {
	p := n.Property("reg")
	if p == nil {
		return nil, fmt.Errorf("dts: %s: no reg property", n.Path())
	}
	addrCells, sizeCells := uint64(2), uint64(1)
	if n.Parent != nil {
		if c := n.Parent.Property("#address-cells"); c != nil {
			v, err := c.Uint32()
			if err != nil {
				return nil, err
			}
			addrCells = uint64(v)
		}
		if c := n.Parent.Property("#size-cells"); c != nil {
			v, err := c.Uint32()
			if err != nil {
				return nil, err
			}
			sizeCells = uint64(v)
		}
	}

	cells, err := p.Cells()
	if err != nil {
		return nil, err
	}
	stride := addrCells + sizeCells
	if stride == 0 || uint64(len(cells))%stride != 0 {
		return nil, fmt.Errorf("%w: %s: reg has %d cells, want a multiple of %d", ErrBadValue, n.Path(), len(cells), stride)
	}

	var regs []Reg
	for i := uint64(0); i < uint64(len(cells)); i += stride {
		regs = append(regs, Reg{
			Address: joinCells(cells[i : i+addrCells]),
			Size:    joinCells(cells[i+addrCells : i+stride]),
		})
	}
	return regs, nil
}

func joinCells(cells []uint64) uint64 {
	var v uint64
	for _, c := range cells {
		v = v<<32 | c
	}
	return v
}

// Label returns the node carrying the label.
func (t *Tree) Label(label string) (*Node, error) {
	n, ok := t.labels[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return n, nil
}

// Labels returns all labels in sorted order.
func (t *Tree) Labels() []string {
	names := make([]string, 0, len(t.labels))
	for l := range t.labels {
		names = append(names, l)
	}
	sort.Strings(names)
	return names
}

// Find returns the node at an absolute path. A component without a unit
// address also matches a single child of that base name.
func (t *Tree) Find(path string) (*Node, error) {
	return findPath(t.Root, path)
}

func findPath(root *Node, path string) (*Node, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	n := root
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		next := n.Child(part)
		if next == nil && !strings.Contains(part, "@") {
			for _, c := range n.Children {
				if c.BaseName() == part {
					if next != nil {
						return nil, fmt.Errorf("%w: %s is ambiguous", ErrUnknownPath, path)
					}
					next = c
				}
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
		}
		n = next
	}
	return n, nil
}

// NodeByPhandle returns the node with the given phandle.
func (t *Tree) NodeByPhandle(ph uint32) (*Node, error) {
	n, ok := t.phandles[ph]
	if !ok {
		return nil, fmt.Errorf("%w: no node with phandle %d", ErrBadValue, ph)
	}
	return n, nil
}

// FindCompatible returns every enabled node compatible with one of the given
// strings, in tree order.
func (t *Tree) FindCompatible(compat ...string) []*Node {
	var out []*Node
	t.Walk(func(n *Node) {
		if n.Enabled() && n.IsCompatible(compat...) {
			out = append(out, n)
		}
	})
	return out
}

// Walk visits every node depth first, parents before children.
func (t *Tree) Walk(fn func(*Node)) {
	walk(t.Root, fn)
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}
