package matcher

// Registry is the fixed, ordered list of registered parsers (§4.4
// "order is fixed at process start"). The concrete domain parsers (VASP,
// FHI-aims, exciting, ...) are external collaborators per spec §1 scope;
// Registry only holds the matching metadata needed to dispatch to them by
// id, not their implementation.
type Registry struct {
	specs []ParserSpec
}

// NewRegistry builds a Registry from an explicit, ordered spec list. The
// order is significant: "first positive match wins" (§4.4 step 5).
func NewRegistry(specs []ParserSpec) *Registry {
	cp := make([]ParserSpec, len(specs))
	copy(cp, specs)
	return &Registry{specs: cp}
}

// Specs returns the registered parsers in match order.
func (r *Registry) Specs() []ParserSpec { return r.specs }
