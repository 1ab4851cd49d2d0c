package ogm

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Selectors name properties of a type. They are used for keys, ignored
// properties, relation sides and include expressions:
//
//	Name
//	x => x.Name
//	x => new { x.A, x.B }
//	{A, B}
//	Author.Name          (two properties: Author, Name)

type selectorExpr struct {
	Param string        `parser:"( @Ident Arrow )?"`
	Body  *selectorBody `parser:"@@?"`
}

type selectorBody struct {
	Group []*selectorPath `parser:"  'new'? '{' ( @@ ( ',' @@ )* )? '}'"`
	List  []*selectorPath `parser:"| @@ ( ',' @@ )*"`
}

type selectorPath struct {
	Segments []string `parser:"@Ident ( '.' @Ident )*"`
}

var selectorLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Arrow", Pattern: `=>`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Punct", Pattern: `[{},.]`},
})

var selectorParser = participle.MustBuild[selectorExpr](
	participle.Lexer(selectorLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(3),
)

// ResolveProperties parses a selector and returns the property names it
// names, in order. Every segment of a dotted path counts as one property.
// An empty selector resolves to no properties.
func ResolveProperties(selector string) ([]string, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, nil
	}
	expr, err := selectorParser.ParseString("selector", selector)
	if err != nil {
		return nil, fmt.Errorf("parse selector %q: %w", selector, err)
	}

	if expr.Body == nil {
		return nil, nil
	}
	paths := expr.Body.Group
	if len(paths) == 0 {
		paths = expr.Body.List
	}

	var props []string
	for _, p := range paths {
		segs := p.Segments
		if expr.Param != "" && len(segs) > 1 && segs[0] == expr.Param {
			segs = segs[1:]
		}
		props = append(props, segs...)
	}
	return props, nil
}

// resolveOne resolves a selector that must name at most one property.
// It returns "" for an empty selector.
func resolveOne(op, selector string) (string, error) {
	props, err := ResolveProperties(selector)
	if err != nil {
		return "", &ArgumentError{Op: op, Message: err.Error()}
	}
	switch len(props) {
	case 0:
		return "", nil
	case 1:
		return props[0], nil
	default:
		return "", &ArgumentError{
			Op:      op,
			Message: fmt.Sprintf("selector %q names %d properties, expected one", selector, len(props)),
		}
	}
}
