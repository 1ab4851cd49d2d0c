package ogm

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Row is one hydrated query result.
type Row[R any] struct {
	Value *R
	// Related holds the objects reached through includes with an anonymous
	// source side, which have no field on their owner to live in.
	Related []Related
}

// Related lists the objects whose navigation property Property points at
// Owner, directly or through a connection.
type Related struct {
	Owner    any
	Property string
	Objects  []any
}

// hydrator maps stored nodes to objects. Nodes with the same label and key
// values map to the same object within one hydrator.
type hydrator struct {
	identities map[string]reflect.Value
}

func newHydrator() *hydrator {
	return &hydrator{identities: make(map[string]reflect.Value)}
}

func hydrateRows[R any](st *includeState, records []map[string]any) ([]Row[R], error) {
	h := newHydrator()
	root := st.root
	aggregate := ""
	if st.compiled != nil {
		aggregate = st.compiled.aggregate
	}

	var rows []Row[R]
	seen := make(map[*R]int)
	for _, rec := range records {
		raw, ok := rec[root.Path.Symbol]
		if !ok || raw == nil {
			continue
		}
		obj, err := h.materialize(root.Path.Target, raw)
		if err != nil {
			return nil, err
		}
		value, ok := obj.Interface().(*R)
		if !ok {
			return nil, fmt.Errorf("root %s hydrated as %s", root.Path.Target.Label, obj.Type())
		}

		pos, dup := seen[value]
		if !dup {
			pos = len(rows)
			seen[value] = pos
			rows = append(rows, Row[R]{Value: value})
		}

		if aggregate == "" {
			continue
		}
		agg, ok := rec[aggregate].(map[string]any)
		if !ok {
			continue
		}
		if err := h.apply(root, obj, agg, &rows[pos].Related); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// materialize returns the object for a stored node, creating and filling it
// on first sight.
func (h *hydrator) materialize(desc *TypeDescriptor, raw any) (reflect.Value, error) {
	props, ok := raw.(map[string]any)
	if !ok {
		return reflect.Value{}, &HydrationError{
			TypeName: desc.GoType.Name(),
			Field:    "",
			Cause:    fmt.Errorf("expected node properties, got %T", raw),
		}
	}

	id, identified := identityKey(desc, props)
	if identified {
		if existing, ok := h.identities[id]; ok {
			return existing, nil
		}
	}

	ptr := reflect.New(desc.GoType)
	if err := hydrateProps(desc, ptr.Elem(), props); err != nil {
		return reflect.Value{}, err
	}
	if identified {
		h.identities[id] = ptr
	}
	return ptr, nil
}

// apply fills the navigation properties of owner from its aggregate map.
func (h *hydrator) apply(node *IncludePathTree, owner reflect.Value, agg map[string]any, related *[]Related) error {
	parent := node.Path.Target
	for _, b := range node.Branches {
		entries, err := h.children(b, agg[b.aggregateKey()], related)
		if err != nil {
			return err
		}
		if b.Path.Via != nil {
			if err := h.connect(node, b, owner, entries, related); err != nil {
				return err
			}
			continue
		}
		children := make([]reflect.Value, len(entries))
		for i, e := range entries {
			children[i] = e.obj
		}

		if b.Path.Reverse {
			objs := make([]any, len(children))
			for i, c := range children {
				objs[i] = c.Interface()
				if nav, ok := b.Path.Target.Navigation(b.Path.Property); ok {
					assignNavigation(c.Elem().Field(nav.FieldIndex), nav, owner)
				}
			}
			addRelated(related, owner.Interface(), b.Path.Property, objs)
			continue
		}

		nav, ok := parent.Navigation(b.Path.Property)
		if !ok {
			continue
		}
		field := owner.Elem().Field(nav.FieldIndex)
		if nav.Collection && field.IsNil() {
			field.Set(reflect.MakeSlice(field.Type(), 0, len(children)))
		}
		for _, c := range children {
			assignNavigation(field, nav, c)
		}

		inv, ok := InverseOf(parent.Label, nav.Property)
		if !ok || inv.Label != b.Path.Target.Label {
			continue
		}
		invNav, ok := b.Path.Target.Navigation(inv.Property)
		if !ok || b.Path.Target.IsIgnored(invNav.Property) {
			continue
		}
		for _, c := range children {
			assignNavigation(c.Elem().Field(invNav.FieldIndex), invNav, owner)
		}
	}
	return nil
}

// hydratedChild is one materialized branch entry and the properties of the
// edge it was reached through, if the branch passes through a connection.
type hydratedChild struct {
	obj  reflect.Value
	edge map[string]any
}

// children materializes the entries of one branch: a list for collection
// branches, a single map or nil otherwise.
func (h *hydrator) children(b *IncludePathTree, raw any, related *[]Related) ([]hydratedChild, error) {
	if raw == nil {
		return nil, nil
	}
	var entries []any
	if list, ok := raw.([]any); ok {
		entries = list
	} else {
		entries = []any{raw}
	}

	out := make([]hydratedChild, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		m, ok := e.(map[string]any)
		if !ok {
			return nil, &HydrationError{
				TypeName: b.Path.Target.GoType.Name(),
				Field:    b.Path.Property,
				Cause:    fmt.Errorf("expected aggregate map, got %T", e),
			}
		}
		child, err := h.materialize(b.Path.Target, m["this"])
		if err != nil {
			return nil, err
		}
		if err := h.apply(b, child, m, related); err != nil {
			return nil, err
		}
		hc := hydratedChild{obj: child}
		if b.Path.Via != nil {
			if hc.edge, ok = m["edge"].(map[string]any); !ok && m["edge"] != nil {
				return nil, &HydrationError{
					TypeName: b.Path.Via.GoType.Name(),
					Field:    b.Path.Property,
					Cause:    fmt.Errorf("expected edge properties, got %T", m["edge"]),
				}
			}
		}
		out = append(out, hc)
	}
	return out, nil
}

// connect rebuilds the connections of branch b between owner and each
// entry and stores them in the navigation properties of both sides. The
// side whose property wrote the edge is the parent, or the entry when the
// branch is reversed.
func (h *hydrator) connect(node, b *IncludePathTree, owner reflect.Value, entries []hydratedChild, related *[]Related) error {
	conn := b.Path.Via
	writer := node.Path.Target
	other := b.Path.Target
	if b.Path.Reverse {
		writer, other = other, writer
	}
	end, ok := connectionEndOf(writer.Label, b.Path.Property)
	if !ok {
		return nil
	}
	nav, ok := writer.Navigation(b.Path.Property)
	if !ok {
		return nil
	}

	var invEnd connectionEnd
	var invNav NavInfo
	hasInverse := false
	if inv, ok := InverseOf(writer.Label, nav.Property); ok && inv.Label == other.Label {
		invEnd, ok = connectionEndOf(inv.Label, inv.Property)
		if ok {
			invNav, ok = other.Navigation(inv.Property)
			hasInverse = ok && !other.IsIgnored(invNav.Property)
		}
	}

	objs := make([]any, 0, len(entries))
	for _, e := range entries {
		c := reflect.New(conn.GoType)
		if err := hydrateProps(conn.edge, c.Elem(), e.edge); err != nil {
			return err
		}
		w, o := owner, e.obj
		if b.Path.Reverse {
			w, o = e.obj, owner
		}
		c.Elem().Field(end.near.FieldIndex).Set(w)
		c.Elem().Field(end.far.FieldIndex).Set(o)
		assignConnection(w.Elem().Field(nav.FieldIndex), nav, c, end.far)
		if hasInverse {
			assignConnection(o.Elem().Field(invNav.FieldIndex), invNav, c, invEnd.far)
		}
		objs = append(objs, e.obj.Interface())
	}

	if b.Path.Reverse {
		addRelated(related, owner.Interface(), b.Path.Property, objs)
		return nil
	}
	if nav.Collection {
		field := owner.Elem().Field(nav.FieldIndex)
		if field.IsNil() {
			field.Set(reflect.MakeSlice(field.Type(), 0, 0))
		}
	}
	return nil
}

// addRelated records objs under (owner, property), merging with an entry
// already recorded for an owner reached more than once.
func addRelated(related *[]Related, owner any, property string, objs []any) {
	for i := range *related {
		r := &(*related)[i]
		if r.Owner != owner || r.Property != property {
			continue
		}
		for _, o := range objs {
			if !slices.Contains(r.Objects, o) {
				r.Objects = append(r.Objects, o)
			}
		}
		return
	}
	*related = append(*related, Related{Owner: owner, Property: property, Objects: objs})
}

// assignNavigation points a single navigation field at target, or appends
// target to a collection field unless it is already present.
func assignNavigation(field reflect.Value, nav NavInfo, target reflect.Value) {
	if !nav.Collection {
		field.Set(target)
		return
	}
	for i := 0; i < field.Len(); i++ {
		if field.Index(i).Pointer() == target.Pointer() {
			return
		}
	}
	field.Set(reflect.Append(field, target))
}

// hydrateProps sets the non-ignored scalar fields of v from stored properties.
func hydrateProps(desc *TypeDescriptor, v reflect.Value, props map[string]any) error {
	for _, f := range desc.writableFields() {
		raw, ok := props[f.Property]
		if !ok || raw == nil {
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

// identityKey derives the (label, key values) identity of a stored node.
func identityKey(desc *TypeDescriptor, props map[string]any) (string, bool) {
	parts := make([]string, 0, len(desc.Key)+1)
	parts = append(parts, desc.Label)
	for _, k := range desc.Key {
		v, ok := props[k]
		if !ok || v == nil {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%T:%v", v, v))
	}
	return strings.Join(parts, "\x00"), true
}

// Hydrate fills target, a pointer to a registered struct, from stored node
// properties.
func Hydrate(target any, props map[string]any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer to struct")
	}
	desc, err := descriptorFor(target)
	if err != nil {
		return err
	}
	return hydrateProps(desc, v.Elem(), props)
}
