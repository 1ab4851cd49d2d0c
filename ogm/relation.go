package ogm

import (
	"fmt"
	"reflect"
)

// ConnectionType is the relationship type of every edge written for a
// navigation property. The owning property is stored on the edge as
// PropertyName and the pass that wrote it as Version.
const ConnectionType = "Connection"

// PropertyRef names one side of a relation: a label and, unless the side is
// anonymous, the navigation property on that type.
type PropertyRef struct {
	Label    string
	Property string
}

// Anonymous reports whether the side has no navigation property.
func (p PropertyRef) Anonymous() bool {
	return p.Property == ""
}

// RelationBinding links the navigation property on the source type to the
// inverse navigation property on the destination type.
type RelationBinding struct {
	Source      PropertyRef
	Destination PropertyRef
	// Via names the connection type whose properties the edges carry,
	// or is empty for a plain relation.
	Via string
}

// String returns a human-readable form such as Book.Chapters <-> Chapter.Book
// or Reader.Ratings <-> Book via Rating.
func (b RelationBinding) String() string {
	side := func(p PropertyRef) string {
		if p.Anonymous() {
			return p.Label
		}
		return p.Label + "." + p.Property
	}
	s := side(b.Source) + " <-> " + side(b.Destination)
	if b.Via != "" {
		s += " via " + b.Via
	}
	return s
}

// RegisterRelation records that the navigation property named by
// sourceProperty on S and the one named by destProperty on D are the two
// ends of one relation. Either side may be empty when that type has no
// navigation property for the relation, but not both.
//
// A destination property already bound to a different source is a
// ConfigurationError; registering an identical binding again is a no-op.
func RegisterRelation[S, D any](sourceProperty, destProperty string) error {
	src, err := resolveOne("register relation", sourceProperty)
	if err != nil {
		return err
	}
	dst, err := resolveOne("register relation", destProperty)
	if err != nil {
		return err
	}
	if src == "" && dst == "" {
		return &ArgumentError{Op: "register relation", Message: "both sides are anonymous"}
	}

	srcDesc, err := descriptorOf[S]()
	if err != nil {
		return err
	}
	dstDesc, err := descriptorOf[D]()
	if err != nil {
		return err
	}

	binding := RelationBinding{
		Source:      PropertyRef{Label: srcDesc.Label},
		Destination: PropertyRef{Label: dstDesc.Label},
	}
	if src != "" {
		nav, err := bindableNavigation(srcDesc, src, dstDesc.GoType)
		if err != nil {
			return err
		}
		binding.Source.Property = nav.Property
	}
	if dst != "" {
		nav, err := bindableNavigation(dstDesc, dst, srcDesc.GoType)
		if err != nil {
			return err
		}
		binding.Destination.Property = nav.Property
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	for _, existing := range globalRegistry.relations {
		if existing == binding {
			return nil
		}
	}
	if err := globalRegistry.checkBinding(binding, srcDesc, dstDesc); err != nil {
		return err
	}
	globalRegistry.relations = append(globalRegistry.relations, binding)
	return nil
}

// checkBinding rejects a binding whose named sides are already bound
// elsewhere. The caller holds the registry lock.
func (r *Registry) checkBinding(binding RelationBinding, srcDesc, dstDesc *TypeDescriptor) error {
	for _, existing := range r.relations {
		if !binding.Destination.Anonymous() && existing.Destination == binding.Destination {
			return &ConfigurationError{
				TypeName: dstDesc.GoType.Name(),
				Message: fmt.Sprintf("%s.%s is already bound to %s",
					binding.Destination.Label, binding.Destination.Property, existing),
			}
		}
		if !binding.Source.Anonymous() && existing.Source == binding.Source {
			return &ConfigurationError{
				TypeName: srcDesc.GoType.Name(),
				Message: fmt.Sprintf("%s.%s is already bound to %s",
					binding.Source.Label, binding.Source.Property, existing),
			}
		}
	}
	return nil
}

func bindableNavigation(desc *TypeDescriptor, name string, target reflect.Type) (NavInfo, error) {
	nav, ok := desc.Navigation(name)
	if !ok {
		return NavInfo{}, &ConfigurationError{
			TypeName: desc.GoType.Name(),
			Message:  fmt.Sprintf("%q is not a navigation property", name),
		}
	}
	if nav.Target != target {
		return NavInfo{}, &ConfigurationError{
			TypeName: desc.GoType.Name(),
			Message:  fmt.Sprintf("%s targets %s, not %s", nav.Property, nav.Target.Name(), target.Name()),
		}
	}
	return nav, nil
}

// Relations returns the bindings in which d takes part on either side.
func (d *TypeDescriptor) Relations() []RelationBinding {
	return RelationsOf(d.Label)
}

// RelationsOf returns the bindings in which the label takes part on either side.
func RelationsOf(label string) []RelationBinding {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	var out []RelationBinding
	for _, b := range globalRegistry.relations {
		if b.Source.Label == label || b.Destination.Label == label {
			out = append(out, b)
		}
	}
	return out
}

// InverseOf returns the navigation property at the other end of the relation
// bound to label.property, if that end is not anonymous.
func InverseOf(label, property string) (PropertyRef, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	ref := PropertyRef{Label: label, Property: property}
	for _, b := range globalRegistry.relations {
		switch {
		case b.Source == ref && !b.Destination.Anonymous():
			return b.Destination, true
		case b.Destination == ref && !b.Source.Anonymous():
			return b.Source, true
		}
	}
	return PropertyRef{}, false
}

// anonymousSourceBinding finds the binding through via whose source side is
// the anonymous label src and whose destination is a navigation property on
// dst. via is empty for plain relations.
func anonymousSourceBinding(src, dst, via string) (RelationBinding, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	var found []RelationBinding
	for _, b := range globalRegistry.relations {
		if b.Source.Label == src && b.Source.Anonymous() && b.Destination.Label == dst && b.Via == via {
			found = append(found, b)
		}
	}
	if len(found) != 1 {
		return RelationBinding{}, false
	}
	return found[0], true
}
