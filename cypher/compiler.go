package cypher

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Compiler compiles AST nodes into Cypher text.
// It traverses the AST and generates the corresponding Cypher syntax.
type Compiler struct{}

// Compile compiles a single AST node into its Cypher string representation.
// It returns an error if the node type is unknown or if compilation fails.
func (c *Compiler) Compile(node QueryNode) (string, error) {
	switch n := node.(type) {
	case Query:
		return c.compileQuery(n)
	case Clause:
		return c.compileClause(n)
	case Pattern:
		return c.compilePattern(n)
	case RelationshipPattern:
		return c.compileRelationship(n)
	case Expr:
		return c.compileExpr(n)
	default:
		return "", fmt.Errorf("unknown node type: %T", node)
	}
}

// CompileClauses compiles a list of clauses into a single statement, one clause per line.
func (c *Compiler) CompileClauses(clauses ...Clause) (string, error) {
	return c.compileQuery(Query{Clauses: clauses})
}

func (c *Compiler) compileQuery(q Query) (string, error) {
	if len(q.Clauses) == 0 {
		return "", fmt.Errorf("empty query")
	}
	parts := make([]string, 0, len(q.Clauses))
	for _, cl := range q.Clauses {
		s, err := c.compileClause(cl)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n"), nil
}

// --- Clauses ---

func (c *Compiler) compileClause(clause Clause) (string, error) {
	switch cl := clause.(type) {
	case MatchClause:
		if len(cl.Patterns) == 0 {
			return "", fmt.Errorf("match clause without patterns")
		}
		patterns, err := c.compilePatterns(cl.Patterns)
		if err != nil {
			return "", err
		}
		kw := "MATCH "
		if cl.Optional {
			kw = "OPTIONAL MATCH "
		}
		out := kw + patterns
		if cl.Where != nil {
			where, err := c.compileExpr(cl.Where)
			if err != nil {
				return "", err
			}
			out += " WHERE " + where
		}
		return out, nil

	case MergeClause:
		p, err := c.compilePattern(cl.Pattern)
		if err != nil {
			return "", err
		}
		out := "MERGE " + p
		if len(cl.OnCreate) > 0 {
			items, err := c.compileSetItems(cl.OnCreate)
			if err != nil {
				return "", err
			}
			out += " ON CREATE SET " + items
		}
		if len(cl.OnMatch) > 0 {
			items, err := c.compileSetItems(cl.OnMatch)
			if err != nil {
				return "", err
			}
			out += " ON MATCH SET " + items
		}
		return out, nil

	case CreateClause:
		patterns, err := c.compilePatterns(cl.Patterns)
		if err != nil {
			return "", err
		}
		return "CREATE " + patterns, nil

	case SetClause:
		items, err := c.compileSetItems(cl.Items)
		if err != nil {
			return "", err
		}
		return "SET " + items, nil

	case DeleteClause:
		if len(cl.Variables) == 0 {
			return "", fmt.Errorf("delete clause without variables")
		}
		kw := "DELETE "
		if cl.Detach {
			kw = "DETACH DELETE "
		}
		return kw + strings.Join(cl.Variables, ", "), nil

	case WithClause:
		items, err := c.compileProjection(cl.Items)
		if err != nil {
			return "", err
		}
		return "WITH " + items, nil

	case ReturnClause:
		items, err := c.compileProjection(cl.Items)
		if err != nil {
			return "", err
		}
		if cl.Distinct {
			return "RETURN DISTINCT " + items, nil
		}
		return "RETURN " + items, nil

	case SchemaClause:
		return cl.Content, nil

	default:
		return "", fmt.Errorf("unknown clause type: %T", clause)
	}
}

func (c *Compiler) compilePatterns(patterns []Pattern) (string, error) {
	parts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		s, err := c.compilePattern(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

func (c *Compiler) compileSetItems(items []SetItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("set clause without items")
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		val, err := c.compileExpr(it.Value)
		if err != nil {
			return "", err
		}
		target := it.Variable
		if it.Property != "" {
			target += "." + QuoteIdent(it.Property)
		}
		op := it.Operator
		if op == "" {
			op = "="
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", target, op, val))
	}
	return strings.Join(parts, ", "), nil
}

func (c *Compiler) compileProjection(items []ProjectionItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("projection without items")
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		s, err := c.compileExpr(it.Expr)
		if err != nil {
			return "", err
		}
		if it.Alias != "" {
			s += " AS " + it.Alias
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// --- Patterns ---

func (c *Compiler) compilePattern(pattern Pattern) (string, error) {
	switch p := pattern.(type) {
	case NodePattern:
		return c.compileNode(p)

	case PathPattern:
		var b strings.Builder
		start, err := c.compileNode(p.Start)
		if err != nil {
			return "", err
		}
		b.WriteString(start)
		for _, step := range p.Steps {
			rel, err := c.compileRelationship(step.Relationship)
			if err != nil {
				return "", err
			}
			node, err := c.compileNode(step.Node)
			if err != nil {
				return "", err
			}
			b.WriteString(rel)
			b.WriteString(node)
		}
		return b.String(), nil

	default:
		return "", fmt.Errorf("unknown pattern type: %T", pattern)
	}
}

func (c *Compiler) compileNode(n NodePattern) (string, error) {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(n.Variable)
	for _, l := range n.Labels {
		b.WriteByte(':')
		b.WriteString(QuoteIdent(l))
	}
	if n.Properties != nil && len(n.Properties.Entries) > 0 {
		props, err := c.compileMap(*n.Properties)
		if err != nil {
			return "", err
		}
		if n.Variable != "" || len(n.Labels) > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(props)
	}
	b.WriteByte(')')
	return b.String(), nil
}

func (c *Compiler) compileRelationship(r RelationshipPattern) (string, error) {
	var inner strings.Builder
	inner.WriteString(r.Variable)
	if r.Type != "" {
		inner.WriteByte(':')
		inner.WriteString(QuoteIdent(r.Type))
	}
	if r.Properties != nil && len(r.Properties.Entries) > 0 {
		props, err := c.compileMap(*r.Properties)
		if err != nil {
			return "", err
		}
		if inner.Len() > 0 {
			inner.WriteByte(' ')
		}
		inner.WriteString(props)
	}
	body := "[" + inner.String() + "]"
	switch r.Direction {
	case Outgoing:
		return "-" + body + "->", nil
	case Incoming:
		return "<-" + body + "-", nil
	case Undirected:
		return "-" + body + "-", nil
	default:
		return "", fmt.Errorf("unknown relationship direction: %d", r.Direction)
	}
}

// --- Expressions ---

func (c *Compiler) compileExpr(e Expr) (string, error) {
	switch ex := e.(type) {
	case Variable:
		return ex.Name, nil

	case Parameter:
		return "$" + ex.Name, nil

	case LiteralValue:
		return FormatLiteral(ex.Val), nil

	case PropertyAccess:
		return ex.Variable + "." + QuoteIdent(ex.Property), nil

	case MapLiteral:
		return c.compileMap(ex)

	case FunctionCall:
		args := make([]string, 0, len(ex.Args))
		for _, a := range ex.Args {
			s, err := c.compileExpr(a)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
		joined := strings.Join(args, ", ")
		if ex.Distinct {
			joined = "DISTINCT " + joined
		}
		return fmt.Sprintf("%s(%s)", ex.Function, joined), nil

	case Comparison:
		left, err := c.compileExpr(ex.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compileExpr(ex.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", left, ex.Operator, right), nil

	case Arithmetic:
		left, err := c.compileExpr(ex.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compileExpr(ex.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", left, ex.Operator, right), nil

	case NullGuard:
		then, err := c.compileExpr(ex.Then)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("CASE WHEN %s IS NULL THEN NULL ELSE %s END", ex.Subject, then), nil

	default:
		return "", fmt.Errorf("unknown expression type: %T", e)
	}
}

func (c *Compiler) compileMap(m MapLiteral) (string, error) {
	parts := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		v, err := c.compileExpr(e.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, QuoteIdent(e.Key)+": "+v)
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// FormatLiteral formats a Go value as an inline Cypher literal.
// Strings are single-quoted and escaped; nil becomes null.
func FormatLiteral(value any) string {
	if value == nil {
		return "null"
	}

	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "null"
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return "'" + EscapeString(v.String()) + "'"
	case reflect.Bool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return "0.0/0.0"
		case math.IsInf(f, 1):
			return "1.0/0.0"
		case math.IsInf(f, -1):
			return "-1.0/0.0"
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case reflect.Slice, reflect.Array:
		items := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			items = append(items, FormatLiteral(v.Index(i).Interface()))
		}
		return "[" + strings.Join(items, ", ") + "]"
	default:
		return "'" + EscapeString(fmt.Sprintf("%v", value)) + "'"
	}
}

// EscapeString escapes special characters in a string for use in a
// single-quoted Cypher string literal.
func EscapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}
