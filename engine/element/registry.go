package element

import "fmt"

// Class is a named element archetype. Attributes are defaults copied
// onto each instance; a non-nil Visibility becomes the instance's
// explicit descriptor at creation.
type Class struct {
	Name       string
	Kind       Kind
	Attributes map[string]any
	Visibility *Visibility
}

// Registry maps class names to definitions. It is per-game-instance
// state, constructed alongside the tree and serialized with it — never
// a process-wide singleton, so concurrently running games cannot leak
// classes into each other.
type Registry struct {
	classes map[string]Class
	order   []string
}

// NewRegistry creates a registry seeded with the built-in structural
// classes every tree uses for its root and sink.
func NewRegistry() *Registry {
	r := &Registry{classes: map[string]Class{}}
	r.classes[RootClass] = Class{Name: RootClass, Kind: KindSpace}
	r.classes[SinkClass] = Class{Name: SinkClass, Kind: KindSpace}
	r.order = append(r.order, RootClass, SinkClass)
	return r
}

// Register adds a class definition. Classes are registered incrementally
// as a game definition declares them; duplicate names are an authoring
// error.
func (r *Registry) Register(c Class) error {
	if c.Name == "" {
		return fmt.Errorf("element: class name is required")
	}
	if _, exists := r.classes[c.Name]; exists {
		return fmt.Errorf("element: class %q already registered", c.Name)
	}
	r.classes[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// Lookup resolves a class name.
func (r *Registry) Lookup(name string) (Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Names returns registered class names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
