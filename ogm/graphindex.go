package ogm

import (
	"fmt"
	"reflect"
	"slices"
)

// EdgeDescriptor records the targets of one navigation property of one
// indexed object. Owner and Targets are positions in ObjectGraphIndex.Objects.
type EdgeDescriptor struct {
	Property   string
	Owner      int
	Targets    []int
	Collection bool
	// Via is set when the property holds connections; Connections then
	// holds the connection behind each target, in target order.
	Via         *ConnectionDescriptor
	Connections []any
}

// addTarget records t once, keeping the first connection leading to it.
func (e *EdgeDescriptor) addTarget(t int, conn any) {
	if slices.Contains(e.Targets, t) {
		return
	}
	e.Targets = append(e.Targets, t)
	if e.Via != nil {
		e.Connections = append(e.Connections, conn)
	}
}

// ObjectGraphIndex is the per-save arena of every object reachable from the
// tracked set. Each distinct object (by pointer identity) has exactly one
// position; edges refer to objects by position.
type ObjectGraphIndex struct {
	Objects     []any
	Descriptors []*TypeDescriptor
	Edges       []EdgeDescriptor

	positions map[any]int
}

// BuildObjectGraphIndex walks the object graph reachable from roots depth
// first. Objects already indexed are not descended into again, so arbitrary
// reference cycles terminate. Nil navigation values are skipped and produce
// no edge descriptor; an empty non-nil slice produces one with no targets.
// Connections are not indexed themselves: the walk continues at the node on
// their far side, and a connection whose far side is nil is skipped.
func BuildObjectGraphIndex(roots []any) (*ObjectGraphIndex, error) {
	idx := &ObjectGraphIndex{positions: make(map[any]int)}
	for _, root := range roots {
		if _, err := idx.visit(root); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Position returns the arena position of obj.
func (idx *ObjectGraphIndex) Position(obj any) (int, bool) {
	p, ok := idx.positions[obj]
	return p, ok
}

func (idx *ObjectGraphIndex) visit(obj any) (int, error) {
	if p, ok := idx.positions[obj]; ok {
		return p, nil
	}
	desc, err := descriptorFor(obj)
	if err != nil {
		return 0, err
	}

	pos := len(idx.Objects)
	idx.positions[obj] = pos
	idx.Objects = append(idx.Objects, obj)
	idx.Descriptors = append(idx.Descriptors, desc)

	v := reflectValue(obj)
	for _, nav := range desc.traversable() {
		fv := v.Field(nav.FieldIndex)
		if fv.IsNil() {
			continue
		}
		end, isConn := connectionEndOf(desc.Label, nav.Property)

		// follow resolves one field value to the node it leads to, passing
		// through the connection when there is one.
		follow := func(elem reflect.Value) (target, conn any, ok bool) {
			if !isConn {
				return elem.Interface(), nil, true
			}
			far := elem.Elem().Field(end.far.FieldIndex)
			if far.IsNil() {
				return nil, nil, false
			}
			return far.Interface(), elem.Interface(), true
		}

		edge := EdgeDescriptor{Property: nav.Property, Owner: pos, Collection: nav.Collection}
		if isConn {
			edge.Via = end.conn
		}
		if nav.Collection {
			edge.Targets = make([]int, 0, fv.Len())
			for i := 0; i < fv.Len(); i++ {
				elem := fv.Index(i)
				if elem.IsNil() {
					continue
				}
				target, conn, ok := follow(elem)
				if !ok {
					continue
				}
				t, err := idx.visit(target)
				if err != nil {
					return 0, fmt.Errorf("%s.%s[%d]: %w", desc.Label, nav.Property, i, err)
				}
				edge.addTarget(t, conn)
			}
		} else {
			target, conn, ok := follow(fv)
			if !ok {
				continue
			}
			t, err := idx.visit(target)
			if err != nil {
				return 0, fmt.Errorf("%s.%s: %w", desc.Label, nav.Property, err)
			}
			edge.addTarget(t, conn)
		}
		idx.Edges = append(idx.Edges, edge)
	}
	return pos, nil
}

// validObject checks that obj is a non-nil pointer to a registered struct.
func validObject(op string, obj any) (*TypeDescriptor, error) {
	if obj == nil {
		return nil, &ArgumentError{Op: op, Message: "object must not be nil"}
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, &ArgumentError{Op: op, Message: fmt.Sprintf("object must be a non-nil pointer to struct, got %T", obj)}
	}
	return descriptorFor(obj)
}
