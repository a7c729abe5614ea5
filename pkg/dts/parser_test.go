package dts

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sampleSource = `
/dts-v1/;
#include <dt-bindings/memory/stm32-sdram.h>
#define MY_WIDTH (2 - 1)
/memreserve/ 0x10000000 0x4000;

/ {
	#address-cells = <1>;
	#size-cells = <1>;
	model = "Test board";

	soc {
		#address-cells = <1>;
		#size-cells = <1>;

		syscfg: syscon@58000400 {
			compatible = "st,stm32-syscfg", "syscon";
			reg = <0x58000400 0x400>;
		};

		fmc: memory-controller@52004000 {
			compatible = "st,stm32h7-fmc";
			reg = <0x52004000 0x1000>;
			st,syscfg = <&syscfg>;
			status = "disabled";
			dma-coherent;

			/* SDRAM on the first slot */
			bank@1 {
				st,sdram-control = /bits/ 8 <0 1 MY_WIDTH 1 2 2 0 0>;
				st,sdram-timing = [01 05 03 06 01 01 01];
				st,sdram-refcount = <1292>; // 64ms / 4096 rows
			};
		};
	};
};

&fmc {
	status = "okay";
};
`

func parseSample(t *testing.T) *Tree {
	t.Helper()

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	tree, err := parser.ParseString(sampleSource)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	return tree
}

func TestParseSample(t *testing.T) {
	tree := parseSample(t)

	if len(tree.Reservations) != 1 || tree.Reservations[0] != (Reservation{Address: 0x10000000, Size: 0x4000}) {
		t.Errorf("Reservations = %+v", tree.Reservations)
	}

	model, err := tree.Root.Property("model").Text()
	if err != nil || model != "Test board" {
		t.Errorf("model = %q, %v", model, err)
	}

	fmc, err := tree.Label("fmc")
	if err != nil {
		t.Fatalf("Label(fmc): %v", err)
	}
	if fmc.Path() != "/soc/memory-controller@52004000" {
		t.Errorf("fmc path = %q", fmc.Path())
	}
	if !fmc.Enabled() {
		t.Error("fmc should be enabled after the overlay")
	}
	if !fmc.Property("dma-coherent").Empty() {
		t.Error("dma-coherent should be a boolean property")
	}

	regs, err := fmc.Reg()
	if err != nil {
		t.Fatalf("Reg: %v", err)
	}
	if len(regs) != 1 || regs[0] != (Reg{Address: 0x52004000, Size: 0x1000}) {
		t.Errorf("Reg = %+v", regs)
	}
}

func TestFind(t *testing.T) {
	tree := parseSample(t)
	fmc, _ := tree.Label("fmc")

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/soc/memory-controller@52004000", false},
		{"/soc/memory-controller", false},
		{"/soc/memory-controller@0", true},
		{"soc", true},
		{"/missing", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			n, err := tree.Find(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Find(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if !tt.wantErr && n != fmc {
				t.Errorf("Find(%q) = %s", tt.path, n.Path())
			}
		})
	}

	root, err := tree.Find("/")
	if err != nil || root != tree.Root {
		t.Errorf("Find(/) = %v, %v", root, err)
	}
}

func TestPhandleReference(t *testing.T) {
	tree := parseSample(t)
	fmc, _ := tree.Label("fmc")
	syscfg, _ := tree.Label("syscfg")

	cells, err := fmc.Property("st,syscfg").Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	if len(cells) != 1 || uint32(cells[0]) != syscfg.Phandle() || syscfg.Phandle() != 1 {
		t.Fatalf("st,syscfg = %v, syscfg phandle %d", cells, syscfg.Phandle())
	}

	n, err := tree.NodeByPhandle(1)
	if err != nil || n != syscfg {
		t.Errorf("NodeByPhandle(1) = %v, %v", n, err)
	}
	if _, err := tree.NodeByPhandle(9); err == nil {
		t.Error("NodeByPhandle(9) should fail")
	}

	refs, err := fmc.Property("st,syscfg").Phandles()
	if err != nil || len(refs) != 1 || refs[0] != "&syscfg" {
		t.Errorf("Phandles = %v, %v", refs, err)
	}
	if fmc.Phandle() != 0 {
		t.Errorf("unreferenced node got phandle %d", fmc.Phandle())
	}
}

func TestByteArrays(t *testing.T) {
	tree := parseSample(t)
	bank, err := tree.Find("/soc/memory-controller@52004000/bank@1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if bank.BaseName() != "bank" {
		t.Errorf("BaseName = %q", bank.BaseName())
	}
	if unit, ok := bank.UnitAddress(); !ok || unit != "1" {
		t.Errorf("UnitAddress = %q, %v", unit, ok)
	}

	control, err := bank.Property("st,sdram-control").Uint8s()
	if err != nil {
		t.Fatalf("control: %v", err)
	}
	if !bytes.Equal(control, []byte{0, 1, 1, 1, 2, 2, 0, 0}) {
		t.Errorf("control = %v", control)
	}

	timing, err := bank.Property("st,sdram-timing").Uint8s()
	if err != nil {
		t.Fatalf("timing: %v", err)
	}
	if !bytes.Equal(timing, []byte{1, 5, 3, 6, 1, 1, 1}) {
		t.Errorf("timing = %v", timing)
	}

	refcount, err := bank.Property("st,sdram-refcount").Uint32()
	if err != nil || refcount != 1292 {
		t.Errorf("refcount = %d, %v", refcount, err)
	}

	if _, err := bank.Property("st,sdram-refcount").Uint8s(); !errors.Is(err, ErrBadValue) {
		t.Errorf("Uint8s on 32-bit cells: got %v", err)
	}
}

func TestCompatible(t *testing.T) {
	tree := parseSample(t)

	nodes := tree.FindCompatible("st,stm32h7-fmc", "st,stm32-fmc")
	if len(nodes) != 1 || nodes[0].Name != "memory-controller@52004000" {
		t.Fatalf("FindCompatible = %v", nodes)
	}

	syscfg, _ := tree.Label("syscfg")
	if got := syscfg.Compatible(); len(got) != 2 || got[1] != "syscon" {
		t.Errorf("Compatible = %v", got)
	}
	if !syscfg.IsCompatible("syscon") || syscfg.IsCompatible("st,stm32h7-fmc") {
		t.Error("IsCompatible mismatch")
	}

	raw := syscfg.Property("compatible").Raw()
	if string(raw) != "st,stm32-syscfg\x00syscon\x00" {
		t.Errorf("Raw = %q", raw)
	}
}

func TestRawCells(t *testing.T) {
	parser, _ := NewParser()
	tree, err := parser.ParseString(`/ { a = <0x12345678>, /bits/ 16 <0xABCD>, [01 02], "x"; };`)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	want := []byte{0x12, 0x34, 0x56, 0x78, 0xAB, 0xCD, 0x01, 0x02, 'x', 0}
	if got := tree.Root.Property("a").Raw(); !bytes.Equal(got, want) {
		t.Errorf("Raw = % X, want % X", got, want)
	}
}

func TestMacros(t *testing.T) {
	input := `
	#define A 3
	#define B ((A << 2) | 1)
	#define C (B - A * 2)
	/ {
		v = <A B C PREDEF 0x10UL>;
	};
	`

	parser, err := NewParser(WithDefines(map[string]uint32{"PREDEF": 42}))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	tree, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	cells, err := tree.Root.Property("v").Cells()
	if err != nil {
		t.Fatalf("Cells: %v", err)
	}
	want := []uint64{3, 13, 7, 42, 16}
	if len(cells) != len(want) {
		t.Fatalf("Cells = %v, want %v", cells, want)
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cell %d = %d, want %d", i, cells[i], want[i])
		}
	}
}

func TestEdits(t *testing.T) {
	input := `
	/ {
		keep { a = <1>; b = <2>; };
		gone { };
		lbl: also-gone { };
	};
	/ {
		keep {
			/delete-property/ b;
			a = <3>;
			c;
		};
		/delete-node/ gone;
	};
	/delete-node/ &lbl;
	`

	parser, _ := NewParser()
	tree, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if len(tree.Root.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(tree.Root.Children))
	}
	keep := tree.Root.Child("keep")
	if v, _ := keep.Property("a").Uint32(); v != 3 {
		t.Errorf("a = %d, want 3", v)
	}
	if keep.Property("b") != nil {
		t.Error("b should be deleted")
	}
	if keep.Property("c") == nil {
		t.Error("c should be added")
	}
	if _, err := tree.Label("lbl"); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("deleted label still resolves: %v", err)
	}
}

func TestExplicitPhandles(t *testing.T) {
	input := `
	/ {
		a: a { phandle = <5>; };
		b { ref = <&a &c>; };
		c: c { };
		aliases { first = &a; second = &{/c}; };
	};
	`

	parser, _ := NewParser()
	tree, err := parser.ParseString(input)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	cells, _ := tree.Root.Child("b").Property("ref").Cells()
	if len(cells) != 2 || cells[0] != 5 || cells[1] != 6 {
		t.Errorf("ref = %v, want [5 6]", cells)
	}

	aliases := tree.Root.Child("aliases")
	for name, want := range map[string]string{"first": "/a", "second": "/c"} {
		if got, _ := aliases.Property(name).Text(); got != want {
			t.Errorf("alias %s = %q, want %q", name, got, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"unknown label", `/ { a = <&nope>; };`, ErrUnknownLabel},
		{"unknown overlay", `/ { }; &nope { };`, ErrUnknownLabel},
		{"undefined macro", `/ { a = <FOO>; };`, ErrUndefined},
		{"self reference", "#define X (X + 1)\n/ { a = <X>; };", ErrBadValue},
		{"cell overflow", `/ { a = /bits/ 8 <256>; };`, ErrBadValue},
		{"bad width", `/ { a = /bits/ 7 <1>; };`, ErrBadValue},
		{"odd bytestring", `/ { a = [012]; };`, ErrBadValue},
		{"non-root top level", `foo { };`, ErrBadValue},
		{"duplicate label", `/ { x: a { }; x: b { }; };`, ErrDuplicate},
		{"syntax", `/ { a = ; };`, nil},
	}

	parser, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseString(tt.input)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !strings.HasPrefix(err.Error(), "dts: ") && !strings.Contains(err.Error(), "dts: ") {
				t.Errorf("error %q lacks package prefix", err)
			}
		})
	}
}
