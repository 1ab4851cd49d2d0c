package ogm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/CaliLuke/go-cypherogm/cypher"
)

// IncludePathComponent is one step of an include path: the navigation
// property followed from the parent and the variable bound to its target.
type IncludePathComponent struct {
	// Property is the navigation property. For a reverse step it is the
	// property on Target pointing back at the parent.
	Property string
	// Collection is true when the step yields a list.
	Collection bool
	// Symbol is the query variable bound to the target node.
	Symbol string
	// Target describes the type reached by the step.
	Target *TypeDescriptor
	// Reverse is true when the edge is walked from its destination.
	Reverse bool
	// Via is set when the step passes through a connection, whose edge is
	// then bound to Edge.
	Via  *ConnectionDescriptor
	Edge string
}

// IncludePathTree is a node of the include tree. The root carries no
// property and stands for the query's starting type. Branches are appended
// in include order and never removed.
type IncludePathTree struct {
	Path     IncludePathComponent
	Branches []*IncludePathTree
}

// aggregateKey is the entry name under which the branch appears in its
// parent's aggregate map.
func (t *IncludePathTree) aggregateKey() string {
	if t.Path.Reverse {
		return t.Path.Symbol
	}
	return t.Path.Property
}

// includeState is shared by a Query and every Branch handed out for it.
type includeState struct {
	root     *IncludePathTree
	symbols  cypher.Symbols
	compiled *compiledQuery
}

// Branch is a position in a query's include tree whose nodes have type T.
// New includes are appended under it.
type Branch[T any] struct {
	state *includeState
	node  *IncludePathTree
}

// Path returns the include component of the branch.
func (b *Branch[T]) Path() IncludePathComponent {
	return b.node.Path
}

// Include requests the single-valued navigation property of T named by
// expr, whose type is D, and returns the branch positioned at it.
func Include[D, T any](from *Branch[T], expr string) (*Branch[D], error) {
	return include[D](from, expr, false, nil)
}

// IncludeCollection is Include for slice-valued navigation properties.
//
// An empty expr is accepted only when a relation from T to D with an
// anonymous source side is registered. The edges written by D's navigation
// property are then walked in reverse and the matches are reported on
// Row.Related. Any number of D may point at one T, so this form has no
// single-valued counterpart.
func IncludeCollection[D, T any](from *Branch[T], expr string) (*Branch[D], error) {
	return include[D](from, expr, true, nil)
}

// IncludeVia requests the navigation property of T named by expr, which
// holds a single connection of type C, and returns the branch positioned at
// the node of type D on the connection's far side. The connection is
// rebuilt from the edge properties and points at both nodes.
func IncludeVia[C, D, T any](from *Branch[T], expr string) (*Branch[D], error) {
	return include[D](from, expr, false, typeOf[C]())
}

// IncludeCollectionVia is IncludeVia for slice-valued connection properties.
// As with IncludeCollection, an empty expr walks the connections written by
// D's property from an anonymous source side; each D then holds the
// connection back to T.
func IncludeCollectionVia[C, D, T any](from *Branch[T], expr string) (*Branch[D], error) {
	return include[D](from, expr, true, typeOf[C]())
}

func include[D, T any](from *Branch[T], expr string, collection bool, via reflect.Type) (*Branch[D], error) {
	const op = "include"
	if from == nil || from.state == nil {
		return nil, &ArgumentError{Op: op, Message: "branch must not be nil"}
	}
	if from.state.compiled != nil {
		return nil, ErrQueryCompiled
	}
	target, err := descriptorOf[D]()
	if err != nil {
		return nil, err
	}
	var conn *ConnectionDescriptor
	viaName := ""
	if via != nil {
		var ok bool
		if conn, ok = LookupConnection(via); !ok {
			return nil, &UnmappedTypeError{TypeName: typeName(via)}
		}
		viaName = conn.GoType.Name()
	}
	parent := from.node.Path.Target

	comp := IncludePathComponent{Collection: collection, Target: target, Via: conn}
	if strings.TrimSpace(expr) == "" {
		binding, ok := anonymousSourceBinding(parent.Label, target.Label, viaName)
		if !ok {
			return nil, &ArgumentError{
				Op:      op,
				Message: fmt.Sprintf("empty expression needs a relation from %s to %s without a source property", parent.Label, target.Label),
			}
		}
		if !collection {
			return nil, &ArgumentError{
				Op:      op,
				Message: fmt.Sprintf("reverse include of %s.%s may match many, use %s", target.Label, binding.Destination.Property, includeName(true, conn)),
			}
		}
		comp.Property = binding.Destination.Property
		comp.Reverse = true
	} else {
		nav, err := includedNavigation(op, parent, target, conn, expr)
		if err != nil {
			return nil, err
		}
		if nav.Collection != collection {
			return nil, &ArgumentError{
				Op:      op,
				Message: fmt.Sprintf("%s.%s has the wrong cardinality, use %s", parent.Label, nav.Property, includeName(nav.Collection, conn)),
			}
		}
		comp.Property = nav.Property
	}

	comp.Symbol = from.state.symbols.Next("n")
	if conn != nil {
		comp.Edge = from.state.symbols.Next("r")
	}
	child := &IncludePathTree{Path: comp}
	from.node.Branches = append(from.node.Branches, child)
	return &Branch[D]{state: from.state, node: child}, nil
}

// includedNavigation resolves expr to the navigation property of parent
// leading to target, directly or, when conn is set, through conn.
func includedNavigation(op string, parent, target *TypeDescriptor, conn *ConnectionDescriptor, expr string) (NavInfo, error) {
	props, err := ResolveProperties(expr)
	if err != nil {
		return NavInfo{}, &ArgumentError{Op: op, Message: err.Error()}
	}
	if len(props) != 1 {
		return NavInfo{}, &ArgumentError{
			Op:      op,
			Message: fmt.Sprintf("expression %q names %d properties, expected one", expr, len(props)),
		}
	}
	nav, ok := parent.Navigation(props[0])
	if !ok || parent.IsIgnored(nav.Property) {
		return NavInfo{}, &ArgumentError{
			Op:      op,
			Message: fmt.Sprintf("%q is not a navigation property of %s", props[0], parent.Label),
		}
	}

	end, isConn := connectionEndOf(parent.Label, nav.Property)
	switch {
	case conn == nil && isConn:
		return NavInfo{}, &ArgumentError{
			Op:      op,
			Message: fmt.Sprintf("%s.%s holds %s connections, use %s", parent.Label, nav.Property, end.conn.GoType.Name(), includeName(nav.Collection, end.conn)),
		}
	case conn != nil && (!isConn || end.conn != conn):
		return NavInfo{}, &ArgumentError{
			Op:      op,
			Message: fmt.Sprintf("%s.%s does not hold %s connections", parent.Label, nav.Property, conn.GoType.Name()),
		}
	}

	reached := nav.Target
	if conn != nil {
		reached = end.far.Target
	}
	if reached != target.GoType {
		return NavInfo{}, &ArgumentError{
			Op:      op,
			Message: fmt.Sprintf("%s.%s leads to %s, not %s", parent.Label, nav.Property, reached.Name(), target.GoType.Name()),
		}
	}
	return nav, nil
}

func includeName(collection bool, conn *ConnectionDescriptor) string {
	name := "Include"
	if collection {
		name = "IncludeCollection"
	}
	if conn != nil {
		name += "Via"
	}
	return name
}
