package ogm

import (
	"fmt"
	"reflect"
)

// ConnectionDescriptor describes a connection type: a struct whose scalar
// fields are stored as properties of the edge between two nodes and whose
// two pointer fields hold the edge's endpoints.
type ConnectionDescriptor struct {
	// GoType is the connection struct.
	GoType reflect.Type
	// Source is the field pointing at the source node.
	Source NavInfo
	// Destination is the field pointing at the destination node.
	Destination NavInfo
	// Binding is the relation realized through the connection.
	Binding RelationBinding

	edge *TypeDescriptor
}

// Fields returns the edge properties.
func (c *ConnectionDescriptor) Fields() []FieldInfo {
	return c.edge.Fields
}

// connectionEnd is a navigation property holding connections, seen from
// the node that owns it.
type connectionEnd struct {
	conn *ConnectionDescriptor
	// near points back at the owner, far at the node on the other side.
	near NavInfo
	far  NavInfo
}

// RegisterConnection records a relation from S to D whose edges carry the
// properties of the connection type C. C must not be registered as a node
// type. It needs a *S field and a *D field; when S and D are the same type
// the first such field is the source. Its other exported fields become edge
// properties.
//
// sourceProperty names a field of S holding *C or []*C, destProperty a
// field of D holding the same. Either may be empty, but not both. Each
// non-empty side writes its own edges on save.
func RegisterConnection[S, C, D any](sourceProperty, destProperty string) error {
	const op = "register connection"
	src, err := resolveOne(op, sourceProperty)
	if err != nil {
		return err
	}
	dst, err := resolveOne(op, destProperty)
	if err != nil {
		return err
	}
	if src == "" && dst == "" {
		return &ArgumentError{Op: op, Message: "both sides are anonymous"}
	}

	srcDesc, err := descriptorOf[S]()
	if err != nil {
		return err
	}
	dstDesc, err := descriptorOf[D]()
	if err != nil {
		return err
	}
	ct := typeOf[C]()
	if ct == nil || ct.Kind() != reflect.Struct {
		return &ArgumentError{Op: op, Message: "connection type parameter must be a struct"}
	}
	if _, ok := LookupType(ct); ok {
		return &ConfigurationError{TypeName: ct.Name(), Message: "connection type is registered as a node type"}
	}

	conn, err := newConnectionDescriptor(ct, srcDesc.GoType, dstDesc.GoType)
	if err != nil {
		return &ConfigurationError{TypeName: ct.Name(), Message: err.Error()}
	}
	binding := RelationBinding{
		Source:      PropertyRef{Label: srcDesc.Label},
		Destination: PropertyRef{Label: dstDesc.Label},
		Via:         ct.Name(),
	}
	if src != "" {
		nav, err := bindableNavigation(srcDesc, src, ct)
		if err != nil {
			return err
		}
		binding.Source.Property = nav.Property
	}
	if dst != "" {
		nav, err := bindableNavigation(dstDesc, dst, ct)
		if err != nil {
			return err
		}
		binding.Destination.Property = nav.Property
	}
	conn.Binding = binding

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if existing, ok := globalRegistry.connTypes[ct]; ok {
		if existing.Binding == binding {
			return nil
		}
		return &ConfigurationError{
			TypeName: ct.Name(),
			Message:  fmt.Sprintf("already connects %s", existing.Binding),
		}
	}
	if err := globalRegistry.checkBinding(binding, srcDesc, dstDesc); err != nil {
		return err
	}
	globalRegistry.relations = append(globalRegistry.relations, binding)
	globalRegistry.connTypes[ct] = conn
	if src != "" {
		globalRegistry.connEnds[binding.Source] = connectionEnd{conn: conn, near: conn.Source, far: conn.Destination}
	}
	if dst != "" {
		globalRegistry.connEnds[binding.Destination] = connectionEnd{conn: conn, near: conn.Destination, far: conn.Source}
	}
	return nil
}

func newConnectionDescriptor(ct, src, dst reflect.Type) (*ConnectionDescriptor, error) {
	edge, err := extractDescriptor(ct)
	if err != nil {
		return nil, err
	}
	edge.Label = ct.Name()

	conn := &ConnectionDescriptor{GoType: ct, edge: edge}
	var haveSource, haveDest bool
	for _, n := range edge.Navigations {
		if n.Collection {
			return nil, fmt.Errorf("endpoint field %s must be a single pointer", n.FieldName)
		}
		switch {
		case !haveSource && n.Target == src:
			conn.Source, haveSource = n, true
		case !haveDest && n.Target == dst:
			conn.Destination, haveDest = n, true
		default:
			return nil, fmt.Errorf("unexpected navigation field %s", n.FieldName)
		}
	}
	if !haveSource {
		return nil, fmt.Errorf("no *%s field for the source", src.Name())
	}
	if !haveDest {
		return nil, fmt.Errorf("no *%s field for the destination", dst.Name())
	}
	for _, f := range edge.Fields {
		if f.Tag.Key {
			return nil, fmt.Errorf("edge property %s cannot be a key", f.Property)
		}
		if f.Property == "PropertyName" || f.Property == "Version" {
			return nil, fmt.Errorf("edge property name %q is reserved", f.Property)
		}
	}
	return conn, nil
}

// LookupConnection retrieves the descriptor of a registered connection type.
func LookupConnection(t reflect.Type) (*ConnectionDescriptor, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	conn, ok := globalRegistry.connTypes[t]
	return conn, ok
}

// connectionEndOf returns the connection end for label.property, if that
// property holds connections.
func connectionEndOf(label, property string) (connectionEnd, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	end, ok := globalRegistry.connEnds[PropertyRef{Label: label, Property: property}]
	return end, ok
}

// connectionProps mangles the edge properties of conn, a *C.
func (c *ConnectionDescriptor) connectionProps(conn any) (map[string]any, error) {
	return MangleProps(c.edge, reflectValue(conn), true)
}

// assignConnection stores conn in a connection field. A collection field
// keeps one connection per far node.
func assignConnection(field reflect.Value, nav NavInfo, conn reflect.Value, far NavInfo) {
	if !nav.Collection {
		field.Set(conn)
		return
	}
	target := conn.Elem().Field(far.FieldIndex).Pointer()
	for i := 0; i < field.Len(); i++ {
		e := field.Index(i)
		if !e.IsNil() && e.Elem().Field(far.FieldIndex).Pointer() == target {
			return
		}
	}
	field.Set(reflect.Append(field, conn))
}
