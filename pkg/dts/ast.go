package dts

import "github.com/alecthomas/participle/v2/lexer"

// Source is a parsed device tree source file, before labels, references and
// overlays are resolved.
type Source struct {
	Entries []*Entry `@@*`
}

// Entry is one top-level statement.
type Entry struct {
	Version    bool          `  @"/dts-v1/" ";"`
	Plugin     bool          `| @"/plugin/" ";"`
	MemReserve *MemReserve   `| @@`
	Define     string        `| @Define`
	DeleteNode *string       `| "/delete-node/" @( Ref | PathRef ) ";"`
	Overlay    *OverlayBlock `| @@`
	Node       *NodeBlock    `| @@`
}

// MemReserve represents /memreserve/ <address> <size>;
type MemReserve struct {
	Address string `"/memreserve/" @Number`
	Size    string `@Number ";"`
}

// OverlayBlock amends a labelled node: &label { ... };
type OverlayBlock struct {
	Pos    lexer.Position
	Target string      `@( Ref | PathRef )`
	Items  []*NodeItem `"{" @@* "}" ";"`
}

// NodeBlock represents a node definition
// Example: fmc: memory-controller@a0000000 { ... };
type NodeBlock struct {
	Pos    lexer.Position
	Labels []string    `@Label*`
	Name   string      `@( Name | "/" )`
	Items  []*NodeItem `"{" @@* "}" ";"`
}

// NodeItem is one statement inside a node body
type NodeItem struct {
	DeleteProperty *string        `  "/delete-property/" @Name ";"`
	DeleteNode     *string        `| "/delete-node/" @Name ";"`
	Node           *NodeBlock     `| @@`
	Property       *PropertyBlock `| @@`
}

// PropertyBlock represents a property assignment or a boolean property
// Example: st,sdram-refcount = <1292>;
type PropertyBlock struct {
	Pos    lexer.Position
	Labels []string      `@Label*`
	Name   string        `@Name`
	Values []*ValueBlock `( "=" @@ ( "," @@ )* )? ";"`
}

// ValueBlock is one comma-separated piece of a property value
type ValueBlock struct {
	String *string     `  @String`
	Cells  *CellsBlock `| @@`
	Bytes  *string     `| @Bytes`
	Ref    *string     `| @( Ref | PathRef )`
}

// CellsBlock represents <...> with an optional /bits/ element size
type CellsBlock struct {
	Bits  *string      `( "/bits/" @Number )?`
	Cells []*CellBlock `"<" @@* ">"`
}

// CellBlock is one element of a cell list
type CellBlock struct {
	Number *string `  @Number`
	Ref    *string `| @( Ref | PathRef )`
	Macro  *string `| @Name`
}
