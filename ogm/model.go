package ogm

import (
	"fmt"
	"reflect"
	"slices"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// FieldInfo contains metadata about a scalar field of a model struct,
// mapping it to a node property.
type FieldInfo struct {
	// Tag is the parsed 'ogm' struct tag.
	Tag FieldTag
	// FieldName is the name of the field in the Go struct.
	FieldName string
	// Property is the node property name.
	Property string
	// FieldIndex is the 0-based index of the field in the Go struct.
	FieldIndex int
	// FieldType is the reflection type of the field.
	FieldType reflect.Type
}

// NavInfo describes a navigation property: a field holding another
// registered object or a slice of them.
type NavInfo struct {
	FieldName  string
	Property   string
	FieldIndex int
	// Target is the struct type the field points to.
	Target reflect.Type
	// Collection is true for slice-valued navigation properties.
	Collection bool
}

// TypeDescriptor contains the metadata of a registered type: its label,
// identity, ignored properties and mapped fields.
type TypeDescriptor struct {
	// GoType is the reflection type of the Go struct.
	GoType reflect.Type
	// Label is the node label.
	Label string
	// Key lists the identity property names, in declaration order.
	Key []string
	// StoreAssignedKey is true when the identity is the default Id field
	// whose value is generated by the store.
	StoreAssignedKey bool
	// Ignored holds property names excluded from writes, hydration and traversal.
	Ignored map[string]bool
	// Fields lists every scalar property.
	Fields []FieldInfo
	// Navigations lists every navigation property.
	Navigations []NavInfo

	keyFields []FieldInfo
	strategy  NodeStrategy
}

// Field retrieves the scalar field for a property or Go field name.
func (d *TypeDescriptor) Field(name string) (FieldInfo, bool) {
	for _, f := range d.Fields {
		if f.Property == name || f.FieldName == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// Navigation retrieves the navigation property for a property or Go field name.
func (d *TypeDescriptor) Navigation(name string) (NavInfo, bool) {
	for _, n := range d.Navigations {
		if n.Property == name || n.FieldName == name {
			return n, true
		}
	}
	return NavInfo{}, false
}

// IsKey reports whether the property is part of the identity.
func (d *TypeDescriptor) IsKey(property string) bool {
	return slices.Contains(d.Key, property)
}

// IsIgnored reports whether the property has been ignored.
func (d *TypeDescriptor) IsIgnored(property string) bool {
	return d.Ignored[property]
}

// KeyFields returns the fields forming the identity.
func (d *TypeDescriptor) KeyFields() []FieldInfo {
	return d.keyFields
}

// writableFields returns the scalar fields persisted as node properties.
func (d *TypeDescriptor) writableFields() []FieldInfo {
	out := make([]FieldInfo, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !d.Ignored[f.Property] {
			out = append(out, f)
		}
	}
	return out
}

// traversable returns the navigation properties followed on save.
func (d *TypeDescriptor) traversable() []NavInfo {
	out := make([]NavInfo, 0, len(d.Navigations))
	for _, n := range d.Navigations {
		if !d.Ignored[n.Property] {
			out = append(out, n)
		}
	}
	return out
}

// extractDescriptor analyzes a Go struct type and builds its descriptor.
// Keys are resolved separately by the registry.
func extractDescriptor(t reflect.Type) (*TypeDescriptor, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %s", t.Kind())
	}

	desc := &TypeDescriptor{
		GoType:  t,
		Label:   t.Name(),
		Ignored: make(map[string]bool),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Anonymous {
			continue
		}

		tag, err := ParseTag(field.Tag.Get("ogm"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tag.Skip {
			continue
		}
		prop := field.Name
		if tag.Name != "" {
			prop = tag.Name
		}

		if target, collection, ok := navigationTarget(field.Type); ok {
			if tag.Key {
				return nil, fmt.Errorf("field %s: navigation property cannot be a key", field.Name)
			}
			desc.Navigations = append(desc.Navigations, NavInfo{
				FieldName:  field.Name,
				Property:   prop,
				FieldIndex: i,
				Target:     target,
				Collection: collection,
			})
			continue
		}

		desc.Fields = append(desc.Fields, FieldInfo{
			Tag:        tag,
			FieldName:  field.Name,
			Property:   prop,
			FieldIndex: i,
			FieldType:  field.Type,
		})
	}
	return desc, nil
}

// navigationTarget reports whether t is *S or []*S for a struct S other
// than time.Time, returning S.
func navigationTarget(t reflect.Type) (reflect.Type, bool, bool) {
	collection := false
	if t.Kind() == reflect.Slice {
		collection = true
		t = t.Elem()
	}
	if t.Kind() != reflect.Ptr {
		return nil, false, false
	}
	t = t.Elem()
	if t.Kind() != reflect.Struct || t == timeType {
		return nil, false, false
	}
	return t, collection, true
}

// tagKeys returns the properties marked with the key tag option.
func (d *TypeDescriptor) tagKeys() []string {
	var keys []string
	for _, f := range d.Fields {
		if f.Tag.Key {
			keys = append(keys, f.Property)
		}
	}
	return keys
}

// setKey resolves the key names against the scalar fields.
func (d *TypeDescriptor) setKey(names []string, storeAssigned bool) error {
	d.Key = d.Key[:0]
	d.keyFields = d.keyFields[:0]
	for _, name := range names {
		f, ok := d.Field(name)
		if !ok {
			if _, nav := d.Navigation(name); nav {
				return fmt.Errorf("key %q is a navigation property", name)
			}
			return fmt.Errorf("key %q is not a field of %s", name, d.GoType.Name())
		}
		if slices.Contains(d.Key, f.Property) {
			continue
		}
		d.Key = append(d.Key, f.Property)
		d.keyFields = append(d.keyFields, f)
	}
	if len(d.Key) == 0 {
		return fmt.Errorf("%s has no key", d.GoType.Name())
	}
	params := make(map[string]string, len(d.Key))
	for _, prop := range d.Key {
		name := paramName("key", prop)
		if other, dup := params[name]; dup {
			return fmt.Errorf("key properties %q and %q share the parameter name %s", other, prop, name)
		}
		params[name] = prop
	}
	if storeAssigned {
		switch d.keyFields[0].FieldType.Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64, reflect.String:
		default:
			return fmt.Errorf("store-assigned key %s must be an integer or string, got %s",
				d.keyFields[0].FieldName, d.keyFields[0].FieldType)
		}
	}
	d.StoreAssignedKey = storeAssigned
	return nil
}

// reflectValue unwraps an object pointer into its addressable struct value.
func reflectValue(obj any) reflect.Value {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

// keyValues returns the mangled key values of v and whether all of them
// are non-zero.
func (d *TypeDescriptor) keyValues(v reflect.Value) ([]any, bool, error) {
	vals := make([]any, len(d.keyFields))
	allSet := true
	for i, f := range d.keyFields {
		fv := v.Field(f.FieldIndex)
		if fv.IsZero() {
			allSet = false
		}
		m, err := Mangle(fv.Interface())
		if err != nil {
			return nil, false, fmt.Errorf("key %s: %w", f.Property, err)
		}
		vals[i] = m
	}
	return vals, allSet, nil
}

// anyKeySet reports whether at least one key value is non-zero.
func (d *TypeDescriptor) anyKeySet(v reflect.Value) bool {
	for _, f := range d.keyFields {
		if !v.Field(f.FieldIndex).IsZero() {
			return true
		}
	}
	return false
}

// copyMapped copies every non-ignored scalar and navigation field of src into dst.
func (d *TypeDescriptor) copyMapped(dst, src reflect.Value) {
	for _, f := range d.writableFields() {
		dst.Field(f.FieldIndex).Set(src.Field(f.FieldIndex))
	}
	for _, n := range d.traversable() {
		dst.Field(n.FieldIndex).Set(src.Field(n.FieldIndex))
	}
}
