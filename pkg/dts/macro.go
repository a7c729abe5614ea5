package dts

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Macro bodies are C integer expressions, e.g. "(2 - 1)" or "(1 << 3) | 2".

var macroLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Number", Pattern: `(?:0[xX][0-9a-fA-F]+|[0-9]+)[uUlL]*`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `<<|>>|[-+*|&()]`},
})

type macroOr struct {
	Head *macroAnd   `@@`
	Tail []*macroAnd `( "|" @@ )*`
}

type macroAnd struct {
	Head *macroShift   `@@`
	Tail []*macroShift `( "&" @@ )*`
}

type macroShift struct {
	Head *macroSum  `@@`
	Tail []*shiftOp `@@*`
}

type shiftOp struct {
	Op  string    `@( "<<" | ">>" )`
	Sum *macroSum `@@`
}

type macroSum struct {
	Head *macroProduct `@@`
	Tail []*sumOp      `@@*`
}

type sumOp struct {
	Op      string        `@( "+" | "-" )`
	Product *macroProduct `@@`
}

type macroProduct struct {
	Head *macroTerm   `@@`
	Tail []*macroTerm `( "*" @@ )*`
}

type macroTerm struct {
	Number *string  `  @Number`
	Name   *string  `| @Ident`
	Group  *macroOr `| "(" @@ ")"`
}

var macroParser = participle.MustBuild[macroOr](
	participle.Lexer(macroLexer),
	participle.Elide("Whitespace"),
)

// macros expands #define bodies on demand.
type macros struct {
	body   map[string]string
	value  map[string]uint64
	active map[string]bool
}

func newMacros(body map[string]string) *macros {
	return &macros{
		body:   body,
		value:  make(map[string]uint64),
		active: make(map[string]bool),
	}
}

// define records a "#define NAME body" line.
func (m *macros) define(line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#define"))
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, "/*"); i >= 0 {
		rest = rest[:i]
	}
	name, body := rest, ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		name, body = rest[:i], rest[i+1:]
	}
	if name == "" {
		return fmt.Errorf("%w: empty #define", ErrBadValue)
	}
	if strings.Contains(name, "(") {
		// function-like macros are not expanded
		return nil
	}
	m.body[name] = strings.TrimSpace(body)
	delete(m.value, name)
	return nil
}

// lookup returns the integer value of a macro.
func (m *macros) lookup(name string) (uint64, error) {
	if v, ok := m.value[name]; ok {
		return v, nil
	}
	body, ok := m.body[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUndefined, name)
	}
	if m.active[name] {
		return 0, fmt.Errorf("%w: %s expands to itself", ErrBadValue, name)
	}
	m.active[name] = true
	defer delete(m.active, name)

	expr, err := macroParser.ParseString(name, body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrBadValue, name, err)
	}
	v, err := m.evalOr(expr)
	if err != nil {
		return 0, err
	}
	m.value[name] = v
	return v, nil
}

func (m *macros) evalOr(e *macroOr) (uint64, error) {
	v, err := m.evalAnd(e.Head)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		r, err := m.evalAnd(t)
		if err != nil {
			return 0, err
		}
		v |= r
	}
	return v, nil
}

func (m *macros) evalAnd(e *macroAnd) (uint64, error) {
	v, err := m.evalShift(e.Head)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		r, err := m.evalShift(t)
		if err != nil {
			return 0, err
		}
		v &= r
	}
	return v, nil
}

func (m *macros) evalShift(e *macroShift) (uint64, error) {
	v, err := m.evalSum(e.Head)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		r, err := m.evalSum(t.Sum)
		if err != nil {
			return 0, err
		}
		if t.Op == "<<" {
			v <<= r
		} else {
			v >>= r
		}
	}
	return v, nil
}

func (m *macros) evalSum(e *macroSum) (uint64, error) {
	v, err := m.evalProduct(e.Head)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		r, err := m.evalProduct(t.Product)
		if err != nil {
			return 0, err
		}
		if t.Op == "+" {
			v += r
		} else {
			v -= r
		}
	}
	return v, nil
}

func (m *macros) evalProduct(e *macroProduct) (uint64, error) {
	v, err := m.evalTerm(e.Head)
	if err != nil {
		return 0, err
	}
	for _, t := range e.Tail {
		r, err := m.evalTerm(t)
		if err != nil {
			return 0, err
		}
		v *= r
	}
	return v, nil
}

func (m *macros) evalTerm(t *macroTerm) (uint64, error) {
	switch {
	case t.Number != nil:
		return parseNumber(*t.Number)
	case t.Name != nil:
		return m.lookup(*t.Name)
	default:
		return m.evalOr(t.Group)
	}
}
