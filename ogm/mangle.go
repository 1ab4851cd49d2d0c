package ogm

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Mangle converts a Go value into a value the store accepts as a property
// or parameter:
//
//   - time.Time becomes int64 epoch milliseconds
//   - time.Duration becomes float64 milliseconds
//   - integer kinds, named ones included, become int64
//   - slices and arrays of values become []any
//   - nested structs become map[string]any keyed by their ogm tag names
//
// Nil pointers become nil.
func Mangle(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	return mangleValue(reflect.ValueOf(value))
}

func mangleValue(v reflect.Value) (any, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	switch v.Type() {
	case timeType:
		return v.Interface().(time.Time).UnixMilli(), nil
	case durationType:
		return float64(v.Int()) / float64(time.Millisecond), nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			m, err := mangleValue(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = m
		}
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key must be a string, got %s", v.Type().Key())
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m, err := mangleValue(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = m
		}
		return out, nil
	case reflect.Struct:
		return mangleStruct(v)
	default:
		return nil, fmt.Errorf("unsupported kind %s", v.Kind())
	}
}

// mangleStruct round-trips a nested struct through msgpack to obtain a
// map keyed by ogm tag names, then mangles the decoded values.
func mangleStruct(v reflect.Value) (any, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("ogm")
	if err := enc.Encode(v.Interface()); err != nil {
		return nil, fmt.Errorf("encode %s: %w", v.Type(), err)
	}

	dec := msgpack.NewDecoder(&buf)
	dec.UseLooseInterfaceDecoding(true)
	decoded, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", v.Type(), err)
	}
	if m, ok := decoded.(map[string]any); ok {
		durationsToMillis(m, v.Type())
	}
	return mangleValue(reflect.ValueOf(decoded))
}

// durationsToMillis rewrites the duration fields of a decoded struct map,
// which msgpack leaves as int64 nanoseconds, as float64 milliseconds.
func durationsToMillis(m map[string]any, t reflect.Type) {
	for _, f := range taggedFields(t) {
		switch raw := m[f.name].(type) {
		case int64:
			if f.typ == durationType {
				m[f.name] = float64(raw) / float64(time.Millisecond)
			}
		case uint64:
			if f.typ == durationType {
				m[f.name] = float64(raw) / float64(time.Millisecond)
			}
		case []any:
			if f.typ.Kind() == reflect.Slice && f.typ.Elem() == durationType {
				for i, e := range raw {
					if n, ok := e.(int64); ok {
						raw[i] = float64(n) / float64(time.Millisecond)
					}
				}
			}
		case map[string]any:
			if f.typ.Kind() == reflect.Struct && f.typ != timeType {
				durationsToMillis(raw, f.typ)
			}
		}
	}
}

// taggedField is an exported struct field under its ogm property name,
// with pointer types dereferenced.
type taggedField struct {
	name  string
	index int
	typ   reflect.Type
}

func taggedFields(t reflect.Type) []taggedField {
	var out []taggedField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, err := ParseTag(f.Tag.Get("ogm"))
		if err != nil || tag.Skip {
			continue
		}
		name := f.Name
		if tag.Name != "" {
			name = tag.Name
		}
		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		out = append(out, taggedField{name: name, index: i, typ: ft})
	}
	return out
}

// MangleProps returns the mangled scalar properties of a registered object,
// keyed by property name. Ignored properties are left out; when withKey is
// false so are the key properties.
func MangleProps(desc *TypeDescriptor, v reflect.Value, withKey bool) (map[string]any, error) {
	props := make(map[string]any, len(desc.Fields))
	for _, f := range desc.writableFields() {
		if !withKey && desc.IsKey(f.Property) {
			continue
		}
		m, err := Mangle(v.Field(f.FieldIndex).Interface())
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", f.Property, err)
		}
		props[f.Property] = m
	}
	return props, nil
}

// Unmangle converts a stored value back into a value of type t. It is the
// inverse of Mangle and also accepts the richer values a driver may return,
// such as time.Time for temporal properties.
func Unmangle(stored any, t reflect.Type) (reflect.Value, error) {
	if stored == nil {
		return reflect.Zero(t), nil
	}

	if t.Kind() == reflect.Ptr {
		elem, err := Unmangle(stored, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}

	switch t {
	case timeType:
		switch s := stored.(type) {
		case time.Time:
			return reflect.ValueOf(s), nil
		case int64:
			return reflect.ValueOf(time.UnixMilli(s).UTC()), nil
		case float64:
			return reflect.ValueOf(time.UnixMilli(int64(s)).UTC()), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert %T to time.Time", stored)
	case durationType:
		switch s := stored.(type) {
		case time.Duration:
			return reflect.ValueOf(s), nil
		case float64:
			return reflect.ValueOf(time.Duration(s * float64(time.Millisecond))), nil
		case int64:
			return reflect.ValueOf(time.Duration(s) * time.Millisecond), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert %T to time.Duration", stored)
	}

	sv := reflect.ValueOf(stored)
	switch t.Kind() {
	case reflect.Bool, reflect.String:
		if sv.Kind() != t.Kind() {
			return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", stored, t)
		}
		return sv.Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if !isNumeric(sv.Kind()) {
			return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", stored, t)
		}
		return sv.Convert(t), nil
	case reflect.Slice:
		if b, ok := stored.([]byte); ok && t.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf(b).Convert(t), nil
		}
		if sv.Kind() != reflect.Slice {
			return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", stored, t)
		}
		out := reflect.MakeSlice(t, sv.Len(), sv.Len())
		for i := 0; i < sv.Len(); i++ {
			elem, err := Unmangle(sv.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case reflect.Map:
		m, ok := stored.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", stored, t)
		}
		out := reflect.MakeMapWithSize(t, len(m))
		for k, raw := range m {
			elem, err := Unmangle(raw, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("key %s: %w", k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
		return out, nil
	case reflect.Struct:
		m, ok := stored.(map[string]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", stored, t)
		}
		return unmangleStruct(m, t)
	case reflect.Interface:
		if !sv.Type().AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", stored, t)
		}
		out := reflect.New(t).Elem()
		out.Set(sv)
		return out, nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

// unmangleStruct restores temporal fields to their msgpack-friendly form and
// decodes the map into a new t through msgpack.
func unmangleStruct(m map[string]any, t reflect.Type) (reflect.Value, error) {
	prepared, err := prepareForStruct(m, t)
	if err != nil {
		return reflect.Value{}, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(prepared); err != nil {
		return reflect.Value{}, fmt.Errorf("encode %s: %w", t, err)
	}
	out := reflect.New(t)
	dec := msgpack.NewDecoder(&buf)
	dec.SetCustomStructTag("ogm")
	if err := dec.Decode(out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode %s: %w", t, err)
	}
	return out.Elem(), nil
}

func prepareForStruct(m map[string]any, t reflect.Type) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, f := range taggedFields(t) {
		raw, ok := out[f.name]
		if !ok || raw == nil {
			continue
		}
		switch {
		case f.typ == timeType || f.typ == durationType,
			f.typ.Kind() == reflect.Slice && f.typ.Elem() == durationType:
			conv, err := Unmangle(raw, f.typ)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", t.Field(f.index).Name, err)
			}
			out[f.name] = conv.Interface()
		case f.typ.Kind() == reflect.Struct:
			if nested, ok := raw.(map[string]any); ok {
				p, err := prepareForStruct(nested, f.typ)
				if err != nil {
					return nil, err
				}
				out[f.name] = p
			}
		}
	}
	return out, nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
