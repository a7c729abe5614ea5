package dts

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser represents a device tree source parser
type Parser struct {
	parser  *participle.Parser[Source]
	defines map[string]string
}

// Option configures a Parser.
type Option func(*Parser)

// WithDefines predefines macros usable inside cell lists, as a binding header
// pulled in through #include would.
func WithDefines(defines map[string]uint32) Option {
	return func(p *Parser) {
		for name, v := range defines {
			p.defines[name] = fmt.Sprintf("%d", v)
		}
	}
}

// NewParser creates a new parser instance
func NewParser(opts ...Option) (*Parser, error) {
	parser, err := participle.Build[Source](
		participle.Lexer(DTSLexer),
		participle.Elide("Comment", "Whitespace", "Preproc"),
		participle.UseLookahead(4),
	)
	if err != nil {
		return nil, fmt.Errorf("dts: failed to build parser: %w", err)
	}

	p := &Parser{parser: parser, defines: make(map[string]string)}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ParseSource parses device tree source from a reader without resolving it
func (p *Parser) ParseSource(name string, r io.Reader) (*Source, error) {
	src, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("dts: parse error: %w", err)
	}
	return src, nil
}

// Parse parses and resolves device tree source from a reader
func (p *Parser) Parse(name string, r io.Reader) (*Tree, error) {
	src, err := p.ParseSource(name, r)
	if err != nil {
		return nil, err
	}
	return build(src, p.defines)
}

// ParseString parses and resolves device tree source held in a string
func (p *Parser) ParseString(input string) (*Tree, error) {
	src, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("dts: parse error: %w", err)
	}
	return build(src, p.defines)
}

// ParseFile parses and resolves a device tree source file
func (p *Parser) ParseFile(filename string) (*Tree, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("dts: failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(filename, file)
}
