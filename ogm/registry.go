package ogm

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/CaliLuke/go-cypherogm/cypher"
)

// defaultKey is the identity field used when a type declares no key.
const defaultKey = "Id"

var (
	globalRegistry = &Registry{
		byLabel:   make(map[string]*TypeDescriptor),
		byType:    make(map[reflect.Type]*TypeDescriptor),
		connTypes: make(map[reflect.Type]*ConnectionDescriptor),
		connEnds:  make(map[PropertyRef]connectionEnd),
	}
)

// Registry maintains the mapping between Go struct types, node labels,
// relation bindings and connection types. It is populated during start-up and read by the
// synchronization engine and the query compiler.
type Registry struct {
	mu        sync.RWMutex
	byLabel   map[string]*TypeDescriptor
	byType    map[reflect.Type]*TypeDescriptor
	relations []RelationBinding
	connTypes map[reflect.Type]*ConnectionDescriptor
	connEnds  map[PropertyRef]connectionEnd
}

type typeOptions struct {
	keySelector string
	hasKey      bool
	label       string
}

// TypeOption configures Register.
type TypeOption func(*typeOptions)

// WithKey sets the identity properties with a selector such as
// "x => new { x.Isbn, x.Edition }". Keys given this way are supplied by the
// application, not the store.
func WithKey(selector string) TypeOption {
	return func(o *typeOptions) {
		o.keySelector = selector
		o.hasKey = true
	}
}

// WithLabel overrides the node label, which defaults to the Go type name.
func WithLabel(label string) TypeOption {
	return func(o *typeOptions) {
		o.label = label
	}
}

func typeOf[T any]() reflect.Type {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Register adds the struct type T to the global registry.
//
// Without WithKey the identity comes from fields tagged `ogm:",key"`, or
// else from the field Id, whose value is assigned by the store on first save.
// Registering T again with the same key is a no-op that keeps the ignored
// properties and relation bindings recorded so far.
func Register[T any](opts ...TypeOption) error {
	t := typeOf[T]()
	if t == nil {
		return &ArgumentError{Op: "register", Message: "type parameter must be a struct"}
	}
	o := typeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	desc, err := extractDescriptor(t)
	if err != nil {
		return fmt.Errorf("registering %s: %w", t.Name(), err)
	}
	if o.label != "" {
		desc.Label = o.label
	}
	if err := cypher.ValidateIdentifier(desc.Label, "label"); err != nil {
		return &ConfigurationError{TypeName: t.Name(), Message: err.Error()}
	}

	var keys []string
	storeAssigned := false
	switch {
	case o.hasKey:
		keys, err = ResolveProperties(o.keySelector)
		if err != nil {
			return &ArgumentError{Op: "register " + t.Name(), Message: err.Error()}
		}
		if len(keys) == 0 {
			return &ArgumentError{Op: "register " + t.Name(), Message: "key selector names no property"}
		}
	case len(desc.tagKeys()) > 0:
		keys = desc.tagKeys()
	default:
		keys = []string{defaultKey}
		storeAssigned = true
	}
	if err := desc.setKey(keys, storeAssigned); err != nil {
		return &ConfigurationError{TypeName: t.Name(), Message: err.Error()}
	}
	desc.strategy = strategyFor(desc)

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if existing, ok := globalRegistry.byType[t]; ok {
		if !slices.Equal(existing.Key, desc.Key) || existing.StoreAssignedKey != desc.StoreAssignedKey {
			return &ConfigurationError{
				TypeName: t.Name(),
				Message: fmt.Sprintf("already registered with key (%s), got (%s)",
					strings.Join(existing.Key, ", "), strings.Join(desc.Key, ", ")),
			}
		}
		if existing.Label != desc.Label {
			return &ConfigurationError{
				TypeName: t.Name(),
				Message:  fmt.Sprintf("already registered with label %q", existing.Label),
			}
		}
		return nil
	}
	if other, ok := globalRegistry.byLabel[desc.Label]; ok {
		return &ConfigurationError{
			TypeName: t.Name(),
			Message:  fmt.Sprintf("label %q already registered to %s", desc.Label, other.GoType.Name()),
		}
	}

	globalRegistry.byLabel[desc.Label] = desc
	globalRegistry.byType[t] = desc
	return nil
}

// MustRegister is a helper that calls Register and panics if an error occurs.
// It is intended for use during application initialization.
func MustRegister[T any](opts ...TypeOption) {
	if err := Register[T](opts...); err != nil {
		panic(err)
	}
}

// Ignore excludes the properties named by selector from writes, hydration
// and traversal. Naming a key property is a ConfigurationError.
func Ignore[T any](selector string) error {
	t := typeOf[T]()
	props, err := ResolveProperties(selector)
	if err != nil {
		return &ArgumentError{Op: "ignore", Message: err.Error()}
	}
	if len(props) == 0 {
		return &ArgumentError{Op: "ignore", Message: "selector names no property"}
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	desc, ok := globalRegistry.byType[t]
	if !ok {
		return &UnmappedTypeError{TypeName: typeName(t)}
	}
	resolved := make([]string, 0, len(props))
	for _, p := range props {
		name := p
		if f, ok := desc.Field(p); ok {
			name = f.Property
		} else if n, ok := desc.Navigation(p); ok {
			name = n.Property
		} else {
			return &ConfigurationError{TypeName: t.Name(), Message: fmt.Sprintf("no property %q", p)}
		}
		if desc.IsKey(name) {
			return &ConfigurationError{TypeName: t.Name(), Message: fmt.Sprintf("cannot ignore key property %q", name)}
		}
		resolved = append(resolved, name)
	}
	for _, name := range resolved {
		desc.Ignored[name] = true
	}
	return nil
}

// Lookup retrieves the descriptor registered under a node label.
func Lookup(label string) (*TypeDescriptor, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	desc, ok := globalRegistry.byLabel[label]
	return desc, ok
}

// LookupType retrieves the descriptor for a given Go reflect.Type.
func LookupType(t reflect.Type) (*TypeDescriptor, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	desc, ok := globalRegistry.byType[t]
	return desc, ok
}

// descriptorOf returns the descriptor for T or an UnmappedTypeError.
func descriptorOf[T any]() (*TypeDescriptor, error) {
	t := typeOf[T]()
	desc, ok := LookupType(t)
	if !ok {
		return nil, &UnmappedTypeError{TypeName: typeName(t)}
	}
	return desc, nil
}

// descriptorFor returns the descriptor for the dynamic type of obj.
func descriptorFor(obj any) (*TypeDescriptor, error) {
	t := reflect.TypeOf(obj)
	desc, ok := LookupType(t)
	if !ok {
		return nil, &UnmappedTypeError{TypeName: typeName(t)}
	}
	return desc, nil
}

// RegisteredTypes returns every registered descriptor ordered by label.
func RegisteredTypes() []*TypeDescriptor {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	result := make([]*TypeDescriptor, 0, len(globalRegistry.byType))
	for _, desc := range globalRegistry.byType {
		result = append(result, desc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Label < result[j].Label })
	return result
}

// ClearRegistry resets the global registry, removing all registered types
// and relations. This is primarily used for testing purposes.
func ClearRegistry() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.byLabel = make(map[string]*TypeDescriptor)
	globalRegistry.byType = make(map[reflect.Type]*TypeDescriptor)
	globalRegistry.relations = nil
	globalRegistry.connTypes = make(map[reflect.Type]*ConnectionDescriptor)
	globalRegistry.connEnds = make(map[PropertyRef]connectionEnd)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
