package lifecycle

import "fmt"

// Factory constructs a fresh, not-yet-registered Instance for the Catalog.
type Factory func() Instance

// Catalog is the named construction entry point: a symbol table mapping type
// identifiers to factories. Non-factory values may share the table (the host
// object model stores types and plain values in one namespace); constructing
// from one yields absence, not an error.
//
// Expected usage:
//
//	cat := lifecycle.NewCatalog(reg).
//	    Provide("widget", lifecycle.Factory(func() lifecycle.Instance { return &Widget{} }))
//	inst, err := cat.Construct("widget", lifecycle.Params{"label": "a"})
type Catalog struct {
	reg     *Registry
	symbols map[string]any
}

// NewCatalog creates an empty Catalog constructing into reg.
func NewCatalog(reg *Registry) *Catalog {
	return &Catalog{reg: reg, symbols: make(map[string]any)}
}

// Provide stores a value under a name and returns the catalog for chaining.
func (c *Catalog) Provide(name string, val any) *Catalog {
	c.symbols[name] = val
	return c
}

// Get returns the symbol if present (no panic).
func (c *Catalog) Get(name string) (any, bool) {
	v, ok := c.symbols[name]
	return v, ok
}

// MustGet returns the symbol or panics with a helpful message.
// Useful in examples/tests where missing symbols should fail fast.
func (c *Catalog) MustGet(name string) any {
	v, ok := c.symbols[name]
	if !ok {
		panic(fmt.Errorf("lifecycle: catalog missing symbol %q", name))
	}
	return v
}

// Construct resolves name, builds an instance through its factory, and runs
// the full construction protocol with the catalog's registry. The hook's
// namespace is preset to name.
//
// A name that is unbound, or bound to a non-factory value (a string, a
// slice, a config blob), yields a nil Instance and no error: callers check
// for absence rather than catching anything. An initializer failure returns
// the instance together with the error; it is still registered at that
// point, so cleanup-minded callers destroy it explicitly.
func (c *Catalog) Construct(name string, params Params) (Instance, error) {
	v, ok := c.symbols[name]
	if !ok {
		return nil, nil
	}

	var build Factory
	switch fn := v.(type) {
	case Factory:
		build = fn
	case func() Instance:
		build = fn
	default:
		return nil, nil
	}

	inst := build()
	if isNil(inst) {
		return nil, nil
	}
	inst.hook().namespace = name

	if err := Construct(c.reg, inst, params); err != nil {
		return inst, err
	}
	return inst, nil
}
