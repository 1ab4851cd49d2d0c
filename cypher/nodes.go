// Package cypher defines the Abstract Syntax Tree (AST) for Cypher statements.
//
// It decouples statement construction from string formatting, providing a
// structured way to build the node and relationship patterns, clauses and
// projections emitted by the mapping layer.
package cypher

// QueryNode is the marker interface for all AST nodes.
type QueryNode interface {
	queryNode()
}

// --- Expressions ---

// Expr is the marker interface for nodes usable as a value expression.
type Expr interface {
	QueryNode
	expr()
}

// Variable references a bound variable such as n0.
type Variable struct {
	Name string
}

func (Variable) queryNode() {}
func (Variable) expr()      {}

// Parameter references a statement parameter ($name).
type Parameter struct {
	Name string
}

func (Parameter) queryNode() {}
func (Parameter) expr()      {}

// LiteralValue is an inline literal (string, number, boolean or null).
type LiteralValue struct {
	Val any
}

func (LiteralValue) queryNode() {}
func (LiteralValue) expr()      {}

// PropertyAccess reads a property of a variable (n.Name).
type PropertyAccess struct {
	Variable string
	Property string
}

func (PropertyAccess) queryNode() {}
func (PropertyAccess) expr()      {}

// MapEntry is one key/value pair of a MapLiteral.
type MapEntry struct {
	Key   string
	Value Expr
}

// MapLiteral is an inline map such as {this: n0, Chapters: a1}.
type MapLiteral struct {
	Entries []MapEntry
}

func (MapLiteral) queryNode() {}
func (MapLiteral) expr()      {}

// FunctionCall applies a function, optionally with DISTINCT on its argument
// list (collect(DISTINCT x)).
type FunctionCall struct {
	Function string
	Distinct bool
	Args     []Expr
}

func (FunctionCall) queryNode() {}
func (FunctionCall) expr()      {}

// Comparison is a binary comparison (r.Version <> $version).
type Comparison struct {
	Left     Expr
	Operator string
	Right    Expr
}

func (Comparison) queryNode() {}
func (Comparison) expr()      {}

// Arithmetic is a binary arithmetic operation (c.Count + 1).
type Arithmetic struct {
	Left     Expr
	Operator string
	Right    Expr
}

func (Arithmetic) queryNode() {}
func (Arithmetic) expr()      {}

// NullGuard yields NULL when Subject is NULL and Then otherwise:
// CASE WHEN x IS NULL THEN NULL ELSE ... END.
type NullGuard struct {
	Subject string
	Then    Expr
}

func (NullGuard) queryNode() {}
func (NullGuard) expr()      {}

// --- Patterns ---

// Pattern is the marker interface for patterns used in MATCH, MERGE and CREATE.
type Pattern interface {
	QueryNode
	pattern()
}

// NodePattern matches or creates a node: (n:Label {Key: $p}).
type NodePattern struct {
	// Variable is the optional variable bound to the node.
	Variable string
	// Labels are the node labels.
	Labels []string
	// Properties are inline property constraints.
	Properties *MapLiteral
}

func (NodePattern) queryNode() {}
func (NodePattern) pattern()   {}

// Direction is the direction of a relationship pattern, seen from its left node.
type Direction int

const (
	// Outgoing renders as -[]->.
	Outgoing Direction = iota
	// Incoming renders as <-[]-.
	Incoming
	// Undirected renders as -[]-.
	Undirected
)

// RelationshipPattern is one relationship hop: -[r:TYPE {PropertyName: 'x'}]->.
type RelationshipPattern struct {
	Variable   string
	Type       string
	Properties *MapLiteral
	Direction  Direction
}

func (RelationshipPattern) queryNode() {}

// PathStep is a relationship followed by the node it reaches.
type PathStep struct {
	Relationship RelationshipPattern
	Node         NodePattern
}

// PathPattern is a start node followed by zero or more hops.
type PathPattern struct {
	Start NodePattern
	Steps []PathStep
}

func (PathPattern) queryNode() {}
func (PathPattern) pattern()   {}

// --- Clauses ---

// Clause is the marker interface for top-level Cypher clauses.
type Clause interface {
	QueryNode
	clause()
}

// MatchClause is MATCH or OPTIONAL MATCH with an optional WHERE predicate.
type MatchClause struct {
	Optional bool
	Patterns []Pattern
	Where    Expr
}

func (MatchClause) queryNode() {}
func (MatchClause) clause()    {}

// SetItem assigns to a variable (Property empty) or to one of its properties.
// Operator is "=" or "+=".
type SetItem struct {
	Variable string
	Property string
	Operator string
	Value    Expr
}

// MergeClause is MERGE with optional ON CREATE SET / ON MATCH SET actions.
type MergeClause struct {
	Pattern  Pattern
	OnCreate []SetItem
	OnMatch  []SetItem
}

func (MergeClause) queryNode() {}
func (MergeClause) clause()    {}

// CreateClause is CREATE.
type CreateClause struct {
	Patterns []Pattern
}

func (CreateClause) queryNode() {}
func (CreateClause) clause()    {}

// SetClause is SET.
type SetClause struct {
	Items []SetItem
}

func (SetClause) queryNode() {}
func (SetClause) clause()    {}

// DeleteClause is DELETE or DETACH DELETE.
type DeleteClause struct {
	Detach    bool
	Variables []string
}

func (DeleteClause) queryNode() {}
func (DeleteClause) clause()    {}

// ProjectionItem is one item of WITH or RETURN, optionally aliased.
type ProjectionItem struct {
	Expr  Expr
	Alias string
}

// WithClause is an intermediate projection (WITH).
type WithClause struct {
	Items []ProjectionItem
}

func (WithClause) queryNode() {}
func (WithClause) clause()    {}

// ReturnClause is the final projection (RETURN).
type ReturnClause struct {
	Distinct bool
	Items    []ProjectionItem
}

func (ReturnClause) queryNode() {}
func (ReturnClause) clause()    {}

// SchemaClause is a verbatim schema command (CREATE CONSTRAINT ...).
type SchemaClause struct {
	Content string
}

func (SchemaClause) queryNode() {}
func (SchemaClause) clause()    {}

// Query is an ordered sequence of clauses forming one statement.
type Query struct {
	Clauses []Clause
}

func (Query) queryNode() {}
