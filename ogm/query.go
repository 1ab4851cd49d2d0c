package ogm

import (
	"context"
	"fmt"

	"github.com/CaliLuke/go-cypherogm/cypher"
)

// Query compiles an include tree rooted at type R into a single statement
// and maps its rows back to R values.
//
// A Query moves one way from building to compiled: the first call to
// Statement, Execute or Rows freezes the tree and further includes fail
// with ErrQueryCompiled. A Query is not safe for concurrent use.
type Query[R any] struct {
	state *includeState
}

type compiledQuery struct {
	stmt      Statement
	aggregate string
}

// NewQuery starts a query over the registered type R.
func NewQuery[R any]() (*Query[R], error) {
	desc, err := descriptorOf[R]()
	if err != nil {
		return nil, err
	}
	st := &includeState{}
	st.root = &IncludePathTree{Path: IncludePathComponent{
		Symbol: st.symbols.Next("n"),
		Target: desc,
	}}
	return &Query[R]{state: st}, nil
}

// Root returns the branch of the query's starting type.
func (q *Query[R]) Root() *Branch[R] {
	return &Branch[R]{state: q.state, node: q.state.root}
}

// Tree returns the include tree.
func (q *Query[R]) Tree() *IncludePathTree {
	return q.state.root
}

// Compiled reports whether the statement has been materialized.
func (q *Query[R]) Compiled() bool {
	return q.state.compiled != nil
}

// Statement compiles the query on first use and returns it.
//
// The root is matched, each include becomes an OPTIONAL MATCH from its
// parent's variable, and the results are folded bottom-up through WITH
// clauses: every included node becomes a map {this: node, Prop: child, ...}
// where collection children are aggregated with collect(DISTINCT ...).
// A node reached through a connection also carries its edge as "edge".
// Folding one level at a time keeps sibling one-to-many includes from
// multiplying each other's rows. The statement returns the root and, if
// anything was included, the root's aggregate map.
func (q *Query[R]) Statement() (Statement, error) {
	if q.state.compiled == nil {
		cq, err := compileTree(q.state)
		if err != nil {
			return Statement{}, fmt.Errorf("compile %s: %w", q.state.root.Path.Target.Label, err)
		}
		q.state.compiled = cq
	}
	return q.state.compiled.stmt, nil
}

// Execute runs the query and returns the hydrated roots.
func (q *Query[R]) Execute(ctx context.Context, exec Executor) ([]*R, error) {
	rows, err := q.Rows(ctx, exec)
	if err != nil {
		return nil, err
	}
	out := make([]*R, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out, nil
}

// Rows runs the query and returns the hydrated roots with the objects
// reached through anonymous-source includes.
func (q *Query[R]) Rows(ctx context.Context, exec Executor) ([]Row[R], error) {
	label := q.state.root.Path.Target.Label
	if exec == nil {
		return nil, &ArgumentError{Op: "query", Message: "executor must not be nil"}
	}
	if err := checkCtx(ctx, "query", label); err != nil {
		return nil, err
	}
	stmt, err := q.Statement()
	if err != nil {
		return nil, err
	}
	records, err := exec.Execute(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	rows, err := hydrateRows[R](q.state, records)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	return rows, nil
}

func compileTree(st *includeState) (*compiledQuery, error) {
	root := st.root
	clauses := []cypher.Clause{
		cypher.Match(cypher.Node(root.Path.Symbol, root.Path.Target.Label)),
	}

	var levels [][]*IncludePathTree
	var walk func(n *IncludePathTree, depth int)
	walk = func(n *IncludePathTree, depth int) {
		if len(levels) <= depth {
			levels = append(levels, nil)
		}
		levels[depth] = append(levels[depth], n)
		for _, b := range n.Branches {
			clauses = append(clauses, cypher.OptionalMatch(includeHop(n, b)))
			walk(b, depth+1)
		}
	}
	walk(root, 0)

	if len(root.Branches) == 0 {
		clauses = append(clauses, cypher.Return(cypher.Vars(root.Path.Symbol)...))
		text, err := compile(clauses...)
		if err != nil {
			return nil, err
		}
		return &compiledQuery{stmt: Statement{Text: text, Params: map[string]any{}, Op: OpQuery}}, nil
	}

	aggOf := make(map[*IncludePathTree]string)
	for depth := len(levels) - 1; depth >= 1; depth-- {
		var items []cypher.ProjectionItem
		for d := 0; d <= depth; d++ {
			for _, n := range levels[d] {
				items = append(items, cypher.Item(cypher.Var(n.Path.Symbol)))
				if n.Path.Edge != "" {
					items = append(items, cypher.Item(cypher.Var(n.Path.Edge)))
				}
			}
		}
		items = append(items, singleChildAggregates(levels[depth], aggOf)...)
		for _, n := range levels[depth] {
			a := st.symbols.Next("a")
			items = append(items, cypher.As(cypher.CaseNull(n.Path.Symbol, aggregateMap(n, aggOf)), a))
			aggOf[n] = a
		}
		clauses = append(clauses, cypher.With(items...))
	}

	items := []cypher.ProjectionItem{cypher.Item(cypher.Var(root.Path.Symbol))}
	items = append(items, singleChildAggregates(levels[0], aggOf)...)
	top := st.symbols.Next("a")
	items = append(items, cypher.As(aggregateMap(root, aggOf), top))
	clauses = append(clauses,
		cypher.With(items...),
		cypher.Return(cypher.Vars(root.Path.Symbol, top)...),
	)

	text, err := compile(clauses...)
	if err != nil {
		return nil, err
	}
	return &compiledQuery{
		stmt:      Statement{Text: text, Params: map[string]any{}, Op: OpQuery},
		aggregate: top,
	}, nil
}

// includeHop builds the optional pattern from parent to child across the
// edge named after the child's property.
func includeHop(parent, child *IncludePathTree) cypher.PathPattern {
	dir := cypher.Outgoing
	if child.Path.Reverse {
		dir = cypher.Incoming
	}
	return cypher.Path(
		cypher.Node(parent.Path.Symbol),
		cypher.Hop(
			cypher.Rel(child.Path.Edge, ConnectionType, dir, cypher.Entry("PropertyName", cypher.Lit(child.Path.Property))),
			cypher.Node(child.Path.Symbol, child.Path.Target.Label),
		),
	)
}

// singleChildAggregates projects the aggregates of single-valued children so
// they can be referenced as grouping keys next to collected siblings.
func singleChildAggregates(nodes []*IncludePathTree, aggOf map[*IncludePathTree]string) []cypher.ProjectionItem {
	var items []cypher.ProjectionItem
	for _, n := range nodes {
		for _, b := range n.Branches {
			if !b.Path.Collection {
				items = append(items, cypher.Item(cypher.Var(aggOf[b])))
			}
		}
	}
	return items
}

func aggregateMap(n *IncludePathTree, aggOf map[*IncludePathTree]string) cypher.MapLiteral {
	entries := []cypher.MapEntry{cypher.Entry("this", cypher.Var(n.Path.Symbol))}
	if n.Path.Edge != "" {
		entries = append(entries, cypher.Entry("edge", cypher.Var(n.Path.Edge)))
	}
	for _, b := range n.Branches {
		var val cypher.Expr = cypher.Var(aggOf[b])
		if b.Path.Collection {
			val = cypher.CollectDistinct(cypher.Var(aggOf[b]))
		}
		entries = append(entries, cypher.Entry(b.aggregateKey(), val))
	}
	return cypher.MapLit(entries...)
}
