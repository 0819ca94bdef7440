package book

import (
	"fmt"
	"strings"

	"github.com/ppiankov/lemma/internal/model"
)

// splitPath turns ".source.target" into ["source", "target"]; "" is the subject
func splitPath(path string) ([]string, bool) {
	if path == "" {
		return nil, true
	}
	if !strings.HasPrefix(path, ".") {
		return nil, false
	}
	steps := strings.Split(path[1:], ".")
	for _, step := range steps {
		if step == "" {
			return nil, false
		}
	}
	return steps, true
}

// ResolvePathType walks a path over the schema and returns the type it ends on
func (b *Book) ResolvePathType(typ, path string) (string, error) {
	steps, ok := splitPath(path)
	if !ok {
		return "", &UnresolvablePathError{Path: path, Type: typ, Reason: "malformed path"}
	}
	current := typ
	for _, step := range steps {
		t, ok := b.types[current]
		if !ok {
			return "", &UnresolvablePathError{Path: path, Type: typ, Reason: fmt.Sprintf("unknown type '%s'", current)}
		}
		next, ok := t.Parameter(step)
		if !ok {
			return "", &UnresolvablePathError{Path: path, Type: typ, Reason: fmt.Sprintf("type '%s' has no parameter '%s'", current, step)}
		}
		current = next
	}
	if _, ok := b.types[current]; !ok {
		return "", &UnresolvablePathError{Path: path, Type: typ, Reason: fmt.Sprintf("unknown type '%s'", current)}
	}
	return current, nil
}

// ResolvePath walks a path from an object through its arguments in ctx
func (b *Book) ResolvePath(ctx model.Context, obj *model.Example, path string) (*model.Example, error) {
	if obj == nil {
		return nil, &UnresolvablePathError{Path: path, Reason: "no starting object"}
	}
	fail := func(format string, args ...any) error {
		return &UnresolvablePathError{Path: path, Type: obj.Type, Object: obj.ID, Reason: fmt.Sprintf(format, args...)}
	}

	steps, ok := splitPath(path)
	if !ok {
		return nil, fail("malformed path")
	}
	current := obj
	for _, step := range steps {
		t, ok := b.types[current.Type]
		if !ok {
			return nil, fail("unknown type '%s'", current.Type)
		}
		argType, ok := t.Parameter(step)
		if !ok {
			return nil, fail("type '%s' has no parameter '%s'", current.Type, step)
		}
		argID, ok := current.Args[step]
		if !ok {
			return nil, fail("missing argument '%s' on '%s'", step, current.ID)
		}
		next, ok := ctx.Get(argType, argID)
		if !ok {
			return nil, fail("missing object '%s' of type '%s'", argID, argType)
		}
		current = next
	}
	return current, nil
}

// CreateContextFromType synthesizes a generic instance of a type: the root
// object plus one placeholder per parameter, recursively, with ids "id.param".
func (b *Book) CreateContextFromType(typ, id string) (model.Context, error) {
	t, ok := b.types[typ]
	if !ok {
		return nil, fmt.Errorf("create context for '%s': %w '%s'", id, ErrUnknownType, typ)
	}
	ctx := make(model.Context)
	if err := b.synthesize(ctx, typ, id, t.Name, nil); err != nil {
		return nil, err
	}
	return ctx, nil
}

// synthesize adds a placeholder of typ; stack holds the types on the current path
func (b *Book) synthesize(ctx model.Context, typ, id, name string, stack []string) error {
	for i, seen := range stack {
		if seen == typ {
			cycle := append(append([]string(nil), stack[i:]...), typ)
			return &CyclicTypeError{Cycle: cycle}
		}
	}
	t, ok := b.types[typ]
	if !ok {
		return fmt.Errorf("synthesize '%s': %w '%s'", id, ErrUnknownType, typ)
	}

	obj := model.NewExample(typ, id, name)
	stack = append(stack, typ)
	for _, p := range t.Parameters {
		argID := id + "." + p.Name
		if err := b.synthesize(ctx, p.Type, argID, p.Name, stack); err != nil {
			return err
		}
		obj.Args[p.Name] = argID
	}
	ctx.Put(obj)
	return nil
}
