package variable

import (
	"github.com/iancoleman/orderedmap"
)

// AttrProxy is the mutation-tracking cache over one object's attribute
// namespace. Once a value has a proxy, the proxy is the single source of
// truth for that object's attributes for the rest of the trace: reads
// populate it lazily through the loader, writes land in it, and every
// mutation registers an undo so a graph rollback restores both content and
// insertion order exactly.
type AttrProxy struct {
	attrs  *orderedmap.OrderedMap
	load   AttrLoader
	record func(undo func())
}

// NewAttrProxy builds a proxy. record is called with an undo closure for
// every mutation; the graph owns the journal and runs undos on restore.
func NewAttrProxy(load AttrLoader, record func(undo func())) *AttrProxy {
	return &AttrProxy{attrs: orderedmap.New(), load: load, record: record}
}

// Get reads an attribute, loading and caching it on first access.
func (p *AttrProxy) Get(name string) (Variable, error) {
	if v, ok := p.attrs.Get(name); ok {
		return v.(Variable), nil
	}
	v, err := p.load(name)
	if err != nil {
		return nil, err
	}
	p.attrs.Set(name, v)
	p.record(func() { p.attrs.Delete(name) })
	return v, nil
}

// Set writes an attribute. New names append; existing names keep their
// position, and the undo restores the previous value.
func (p *AttrProxy) Set(name string, v Variable) {
	if prev, ok := p.attrs.Get(name); ok {
		p.attrs.Set(name, v)
		p.record(func() { p.attrs.Set(name, prev) })
		return
	}
	p.attrs.Set(name, v)
	p.record(func() { p.attrs.Delete(name) })
}

// Has reports whether the name is cached, without loading.
func (p *AttrProxy) Has(name string) bool {
	_, ok := p.attrs.Get(name)
	return ok
}

// Keys lists cached names in insertion order.
func (p *AttrProxy) Keys() []string {
	return p.attrs.Keys()
}
