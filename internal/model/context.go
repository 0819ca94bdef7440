package model

import "sort"

// Context is a typed, keyed collection of examples describing one scenario:
// a query, a synthesized proof neighborhood, or the whole example store.
// Entries reference each other by (type, id).
type Context map[string]map[string]*Example

// Get returns the object with the given type and id
func (c Context) Get(typ, id string) (*Example, bool) {
	objects, ok := c[typ]
	if !ok {
		return nil, false
	}
	obj, ok := objects[id]
	return obj, ok
}

// Put inserts an object under its own type and id
func (c Context) Put(obj *Example) {
	if _, ok := c[obj.Type]; !ok {
		c[obj.Type] = make(map[string]*Example)
	}
	c[obj.Type][obj.ID] = obj
}

// Len returns the number of objects in the context
func (c Context) Len() int {
	n := 0
	for _, objects := range c {
		n += len(objects)
	}
	return n
}

// Types returns the type keys in sorted order
func (c Context) Types() []string {
	types := make([]string, 0, len(c))
	for typ := range c {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// IDs returns the ids of the given type in sorted order
func (c Context) IDs(typ string) []string {
	ids := make([]string, 0, len(c[typ]))
	for id := range c[typ] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Objects returns every object ordered by type, then id
func (c Context) Objects() []*Example {
	objects := make([]*Example, 0, c.Len())
	for _, typ := range c.Types() {
		for _, id := range c.IDs(typ) {
			objects = append(objects, c[typ][id])
		}
	}
	return objects
}

// Clone returns a deep copy, so deductions on it never touch the original
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for typ, objects := range c {
		out[typ] = make(map[string]*Example, len(objects))
		for id, obj := range objects {
			out[typ][id] = obj.Clone()
		}
	}
	return out
}
