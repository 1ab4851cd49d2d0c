package cypher

// Node creates a NodePattern with the given variable and labels.
func Node(varName string, labels ...string) NodePattern {
	return NodePattern{Variable: varName, Labels: labels}
}

// WithProps returns a copy of the node pattern carrying inline property constraints.
func (n NodePattern) WithProps(entries ...MapEntry) NodePattern {
	n.Properties = &MapLiteral{Entries: entries}
	return n
}

// Rel creates a RelationshipPattern of the given type and direction.
func Rel(varName, relType string, dir Direction, props ...MapEntry) RelationshipPattern {
	r := RelationshipPattern{Variable: varName, Type: relType, Direction: dir}
	if len(props) > 0 {
		r.Properties = &MapLiteral{Entries: props}
	}
	return r
}

// Path creates a PathPattern from a start node and alternating hops.
func Path(start NodePattern, steps ...PathStep) PathPattern {
	return PathPattern{Start: start, Steps: steps}
}

// Hop creates a PathStep.
func Hop(rel RelationshipPattern, node NodePattern) PathStep {
	return PathStep{Relationship: rel, Node: node}
}

// Match creates a MatchClause with the given patterns.
func Match(patterns ...Pattern) MatchClause {
	return MatchClause{Patterns: patterns}
}

// OptionalMatch creates an OPTIONAL MATCH clause with the given patterns.
func OptionalMatch(patterns ...Pattern) MatchClause {
	return MatchClause{Optional: true, Patterns: patterns}
}

// Filter returns a copy of the match clause with a WHERE predicate.
func (m MatchClause) Filter(pred Expr) MatchClause {
	m.Where = pred
	return m
}

// Merge creates a MergeClause for the given pattern.
func Merge(p Pattern) MergeClause {
	return MergeClause{Pattern: p}
}

// Create creates a CreateClause with the given patterns.
func Create(patterns ...Pattern) CreateClause {
	return CreateClause{Patterns: patterns}
}

// Set creates a SetClause with the given items.
func Set(items ...SetItem) SetClause {
	return SetClause{Items: items}
}

// Assign creates a SetItem assigning value to variable.property.
func Assign(variable, property string, value Expr) SetItem {
	return SetItem{Variable: variable, Property: property, Operator: "=", Value: value}
}

// MergeProps creates a SetItem merging a map into a variable (n += $props).
func MergeProps(variable string, value Expr) SetItem {
	return SetItem{Variable: variable, Operator: "+=", Value: value}
}

// Delete creates a DeleteClause for the given variables.
func Delete(variables ...string) DeleteClause {
	return DeleteClause{Variables: variables}
}

// DetachDelete creates a DETACH DELETE clause for the given variables.
func DetachDelete(variables ...string) DeleteClause {
	return DeleteClause{Detach: true, Variables: variables}
}

// With creates a WithClause with the given items.
func With(items ...ProjectionItem) WithClause {
	return WithClause{Items: items}
}

// Return creates a ReturnClause with the given items.
func Return(items ...ProjectionItem) ReturnClause {
	return ReturnClause{Items: items}
}

// Item creates an unaliased ProjectionItem.
func Item(e Expr) ProjectionItem {
	return ProjectionItem{Expr: e}
}

// As creates an aliased ProjectionItem (expr AS alias).
func As(e Expr, alias string) ProjectionItem {
	return ProjectionItem{Expr: e, Alias: alias}
}

// Vars creates unaliased projection items for the given variable names.
func Vars(names ...string) []ProjectionItem {
	items := make([]ProjectionItem, len(names))
	for i, n := range names {
		items[i] = Item(Var(n))
	}
	return items
}

// Var creates a Variable reference.
func Var(name string) Variable {
	return Variable{Name: name}
}

// Param creates a Parameter reference.
func Param(name string) Parameter {
	return Parameter{Name: name}
}

// Lit creates a LiteralValue.
func Lit(v any) LiteralValue {
	return LiteralValue{Val: v}
}

// Prop creates a PropertyAccess.
func Prop(variable, property string) PropertyAccess {
	return PropertyAccess{Variable: variable, Property: property}
}

// Entry creates a MapEntry.
func Entry(key string, value Expr) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// MapLit creates a MapLiteral from the given entries.
func MapLit(entries ...MapEntry) MapLiteral {
	return MapLiteral{Entries: entries}
}

// Func creates a FunctionCall.
func Func(name string, args ...Expr) FunctionCall {
	return FunctionCall{Function: name, Args: args}
}

// CollectDistinct creates collect(DISTINCT e).
func CollectDistinct(e Expr) FunctionCall {
	return FunctionCall{Function: "collect", Distinct: true, Args: []Expr{e}}
}

// CaseNull creates CASE WHEN subject IS NULL THEN NULL ELSE then END.
func CaseNull(subject string, then Expr) NullGuard {
	return NullGuard{Subject: subject, Then: then}
}

// Cmp creates a Comparison.
func Cmp(left Expr, operator string, right Expr) Comparison {
	return Comparison{Left: left, Operator: operator, Right: right}
}

// Add creates an addition.
func Add(left, right Expr) Arithmetic {
	return Arithmetic{Left: left, Operator: "+", Right: right}
}
