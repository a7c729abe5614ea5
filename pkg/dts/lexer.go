package dts

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// DTSLexer defines the lexical structure of device tree source. Rules are
// tried in order, so the more specific patterns come first.
var DTSLexer = lexer.MustSimple([]lexer.SimpleRule{
	// C and C++ style comments
	{Name: "Comment", Pattern: `//[^\n]*|/\*[\s\S]*?\*/`},

	// Object-like macro definitions are kept; every other preprocessor line
	// is dropped.
	// Property names such as #address-cells must not match here.
	{Name: "Define", Pattern: `#define[ \t]+[A-Za-z_][A-Za-z0-9_]*[ \t]+[^\n]*`},
	{Name: "Preproc", Pattern: `#(?:include|define|undef|ifdef|ifndef|if|elif|else|endif)\b[^\n]*`},

	{Name: "Whitespace", Pattern: `\s+`},

	// /dts-v1/, /bits/, /delete-node/, ...
	{Name: "Directive", Pattern: `/[a-z][a-z0-9-]*/`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Bytestrings are lexed whole: their hex pairs would otherwise split into
	// numbers and names.
	{Name: "Bytes", Pattern: `\[[0-9a-fA-F\s]*\]`},

	// Phandle references, by label or by path
	{Name: "PathRef", Pattern: `&\{[^}]*\}`},
	{Name: "Ref", Pattern: `&[a-zA-Z_][a-zA-Z0-9_]*`},

	// Label definitions (e.g. "fmc:")
	{Name: "Label", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*:`},

	{Name: "Number", Pattern: `(?:0[xX][0-9a-fA-F]+|[0-9]+)[uUlL]*`},

	{Name: "Punct", Pattern: `[{}<>;=,/()]`},

	// Node and property names, and macro names inside cells
	{Name: "Name", Pattern: `[a-zA-Z0-9,._+*#?@-]+`},
})
