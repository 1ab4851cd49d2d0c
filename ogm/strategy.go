package ogm

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/CaliLuke/go-cypherogm/cypher"
)

// IdentityLabel is the label of the node holding the counter used to assign
// integer identifiers.
const IdentityLabel = "OgmIdentity"

// NodeStrategy builds the per-object statements of a save pass. A strategy
// is chosen once per type at registration and stored in its descriptor.
type NodeStrategy interface {
	// BuildUpsert generates the statement creating or updating the node.
	// The statement returns the stored node as "n".
	BuildUpsert(desc *TypeDescriptor, v reflect.Value) (Statement, error)
	// BuildDelete generates the statement deleting the node and its edges.
	// ok is false when the object was never stored.
	BuildDelete(desc *TypeDescriptor, v reflect.Value) (stmt Statement, ok bool, err error)
	// CopyBack copies the key properties of the stored node into v.
	CopyBack(desc *TypeDescriptor, v reflect.Value, row map[string]any) error
}

// strategyFor returns the appropriate strategy for the descriptor.
func strategyFor(desc *TypeDescriptor) NodeStrategy {
	if desc.StoreAssignedKey {
		return &assignedKeyStrategy{}
	}
	return &keyedStrategy{}
}

// --- Keyed Strategy ---

// keyedStrategy merges nodes on application-supplied key values.
type keyedStrategy struct{}

func (s *keyedStrategy) BuildUpsert(desc *TypeDescriptor, v reflect.Value) (Statement, error) {
	node, params, err := keyPattern(desc, v, "n", "key", "upsert")
	if err != nil {
		return Statement{}, err
	}
	props, err := MangleProps(desc, v, false)
	if err != nil {
		return Statement{}, err
	}
	params["props"] = props

	text, err := compile(
		cypher.Merge(node),
		cypher.Set(cypher.MergeProps("n", cypher.Param("props"))),
		cypher.Return(cypher.Item(cypher.Var("n"))),
	)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: text, Params: params, Op: OpUpsertNode}, nil
}

func (s *keyedStrategy) BuildDelete(desc *TypeDescriptor, v reflect.Value) (Statement, bool, error) {
	node, params, err := keyPattern(desc, v, "n", "key", "delete")
	if err != nil {
		return Statement{}, false, err
	}
	text, err := compile(cypher.Match(node), cypher.DetachDelete("n"))
	if err != nil {
		return Statement{}, false, err
	}
	return Statement{Text: text, Params: params, Op: OpDeleteNode}, true, nil
}

func (s *keyedStrategy) CopyBack(desc *TypeDescriptor, v reflect.Value, row map[string]any) error {
	node, ok := row["n"].(map[string]any)
	if !ok {
		return fmt.Errorf("upsert %s: no node returned", desc.Label)
	}
	for _, f := range desc.keyFields {
		raw, ok := node[f.Property]
		if !ok {
			continue
		}
		val, err := Unmangle(raw, f.FieldType)
		if err != nil {
			return &HydrationError{TypeName: desc.GoType.Name(), Field: f.FieldName, Cause: err}
		}
		v.Field(f.FieldIndex).Set(val)
	}
	return nil
}

// --- Assigned Key Strategy ---

// assignedKeyStrategy creates nodes whose Id is still zero and lets the
// store assign it: a shared counter for integers, randomUUID() for strings.
// Objects that already carry an Id are merged like keyed ones.
type assignedKeyStrategy struct {
	keyedStrategy
}

func (s *assignedKeyStrategy) BuildUpsert(desc *TypeDescriptor, v reflect.Value) (Statement, error) {
	if desc.anyKeySet(v) {
		return s.keyedStrategy.BuildUpsert(desc, v)
	}

	props, err := MangleProps(desc, v, false)
	if err != nil {
		return Statement{}, err
	}
	key := desc.keyFields[0]

	var clauses []cypher.Clause
	var assigned cypher.Expr
	if key.FieldType.Kind() == reflect.String {
		assigned = cypher.Func("randomUUID")
	} else {
		clauses = append(clauses, cypher.MergeClause{
			Pattern:  cypher.Node("c", IdentityLabel).WithProps(cypher.Entry("Scope", cypher.Lit("global"))),
			OnCreate: []cypher.SetItem{cypher.Assign("c", "Count", cypher.Lit(1))},
			OnMatch:  []cypher.SetItem{cypher.Assign("c", "Count", cypher.Add(cypher.Prop("c", "Count"), cypher.Lit(1)))},
		})
		assigned = cypher.Prop("c", "Count")
	}
	clauses = append(clauses,
		cypher.Create(cypher.Node("n", desc.Label)),
		cypher.Set(
			cypher.MergeProps("n", cypher.Param("props")),
			cypher.Assign("n", key.Property, assigned),
		),
		cypher.Return(cypher.Item(cypher.Var("n"))),
	)

	text, err := compile(clauses...)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: text, Params: map[string]any{"props": props}, Op: OpCreateNode}, nil
}

func (s *assignedKeyStrategy) BuildDelete(desc *TypeDescriptor, v reflect.Value) (Statement, bool, error) {
	if !desc.anyKeySet(v) {
		return Statement{}, false, nil
	}
	return s.keyedStrategy.BuildDelete(desc, v)
}

// --- Edges ---

// buildLink generates the statement writing one edge for the navigation
// property from owner to target, stamped with version. Non-nil edgeProps
// are merged into the edge.
func buildLink(owner *TypeDescriptor, ov reflect.Value, property string,
	target *TypeDescriptor, tv reflect.Value, edgeProps map[string]any, version int64) (Statement, error) {
	from, params, err := keyPattern(owner, ov, "a", "from", "link")
	if err != nil {
		return Statement{}, err
	}
	to, toParams, err := keyPattern(target, tv, "b", "to", "link")
	if err != nil {
		return Statement{}, err
	}
	for k, v := range toParams {
		params[k] = v
	}
	params["property"] = property
	params["version"] = version

	var set []cypher.SetItem
	if edgeProps != nil {
		params["edge"] = edgeProps
		set = append(set, cypher.MergeProps("r", cypher.Param("edge")))
	}
	set = append(set, cypher.Assign("r", "Version", cypher.Param("version")))

	text, err := compile(
		cypher.Match(from, to),
		cypher.Merge(cypher.Path(
			cypher.Node("a"),
			cypher.Hop(
				cypher.Rel("r", ConnectionType, cypher.Outgoing, cypher.Entry("PropertyName", cypher.Param("property"))),
				cypher.Node("b"),
			),
		)),
		cypher.Set(set...),
	)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: text, Params: params, Op: OpLink}, nil
}

// buildUnlinkStale generates the statement deleting every edge of the
// navigation property leaving owner that was not written by version.
func buildUnlinkStale(owner *TypeDescriptor, ov reflect.Value, property string, version int64) (Statement, error) {
	from, params, err := keyPattern(owner, ov, "a", "from", "unlink")
	if err != nil {
		return Statement{}, err
	}
	params["property"] = property
	params["version"] = version

	text, err := compile(
		cypher.Match(cypher.Path(
			from,
			cypher.Hop(
				cypher.Rel("r", ConnectionType, cypher.Outgoing, cypher.Entry("PropertyName", cypher.Param("property"))),
				cypher.Node(""),
			),
		)).Filter(cypher.Cmp(cypher.Prop("r", "Version"), "<>", cypher.Param("version"))),
		cypher.Delete("r"),
	)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: text, Params: params, Op: OpUnlinkStale}, nil
}

// --- Helpers ---

// keyPattern builds a node pattern constrained on the key properties of v,
// with one parameter per key named prefix_Property.
func keyPattern(desc *TypeDescriptor, v reflect.Value, varName, prefix, op string) (cypher.NodePattern, map[string]any, error) {
	if !desc.anyKeySet(v) {
		return cypher.NodePattern{}, nil, &KeyAttributeError{
			TypeName:  desc.GoType.Name(),
			Property:  strings.Join(desc.Key, ", "),
			Operation: op,
		}
	}
	vals, _, err := desc.keyValues(v)
	if err != nil {
		return cypher.NodePattern{}, nil, err
	}
	params := make(map[string]any, len(vals)+2)
	entries := make([]cypher.MapEntry, len(vals))
	for i, prop := range desc.Key {
		name := paramName(prefix, prop)
		params[name] = vals[i]
		entries[i] = cypher.Entry(prop, cypher.Param(name))
	}
	return cypher.Node(varName, desc.Label).WithProps(entries...), params, nil
}

// paramName derives a parameter name from a property name, replacing any
// character that is not allowed in a parameter.
func paramName(prefix, property string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('_')
	for _, r := range property {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func compile(clauses ...cypher.Clause) (string, error) {
	c := &cypher.Compiler{}
	return c.CompileClauses(clauses...)
}
