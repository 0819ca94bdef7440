package assistant

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/model"
)

// Search finds every embedding of query into the book's example store
func (a *Assistant) Search(query model.Context) ([]model.Context, error) {
	return a.SearchIn(query, a.book.Examples())
}

// SearchIn finds every embedding of query into target. Each result maps the
// query's types and ids to copies of the bound target objects. Results are
// unique and sorted by their bindings. If the visit budget runs out, the
// results found so far are returned with ErrSearchBudgetExceeded.
func (a *Assistant) SearchIn(query, target model.Context) ([]model.Context, error) {
	// 1. Validate the query
	if err := a.ValidateQuery(query); err != nil {
		return nil, err
	}

	// 2-3. Leaf-first order over the argument graph
	order, err := a.leafFirstOrder(query)
	if err != nil {
		return nil, err
	}

	// 4. Backtrack
	s := &searchState{
		order:  order,
		target: target,
		budget: a.budget,
		seen:   make(map[string]bool),
	}
	a.backtrack(s, 0, NewMatcher(a.book, query, target))

	// 5. Collect
	sort.Slice(s.results, func(i, j int) bool { return s.results[i].key < s.results[j].key })
	results := make([]model.Context, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, bindingsContext(r.bindings, target))
	}

	a.logger.Debug("search finished",
		zap.Int("objects", len(order)),
		zap.Int("visits", s.visits),
		zap.Int("results", len(results)))

	if s.exhausted {
		return results, fmt.Errorf("after %d visits: %w", s.visits, ErrSearchBudgetExceeded)
	}
	return results, nil
}

type searchResult struct {
	key      string
	bindings map[string]map[string]string
}

type searchState struct {
	order     []*model.Example
	target    model.Context
	budget    int
	visits    int
	exhausted bool
	seen      map[string]bool
	results   []searchResult
}

// backtrack extends the partial match m from order[index] onwards
func (a *Assistant) backtrack(s *searchState, index int, m *Matcher) {
	if s.exhausted {
		return
	}
	if index == len(s.order) {
		bindings := m.Bindings()
		key := bindingKey(bindings)
		if !s.seen[key] {
			s.seen[key] = true
			s.results = append(s.results, searchResult{key: key, bindings: bindings})
		}
		return
	}

	obj := s.order[index]
	if _, ok := m.Bound(obj); ok {
		a.backtrack(s, index+1, m)
		return
	}

	for _, id := range s.target.IDs(obj.Type) {
		if s.budget > 0 && s.visits >= s.budget {
			s.exhausted = true
			return
		}
		s.visits++

		candidate := s.target[obj.Type][id]
		if !m.CanBind(obj, candidate) {
			continue
		}
		next := m.Clone()
		if next.Match(obj, candidate) {
			a.backtrack(s, index+1, next)
		}
	}
}

// ValidateQuery checks that every query object has a known type and that its
// arguments are declared and present in the query
func (a *Assistant) ValidateQuery(query model.Context) error {
	for _, typ := range query.Types() {
		ids := query.IDs(typ)
		t, ok := a.book.Type(typ)
		if !ok {
			if len(ids) > 0 {
				return &QueryError{Type: typ, ID: ids[0], Reason: "unknown type"}
			}
			continue
		}
		for _, id := range ids {
			obj := query[typ][id]
			if obj.Type != typ || obj.ID != id {
				return &QueryError{Type: typ, ID: id, Reason: fmt.Sprintf("stored as '%s' of type '%s'", obj.ID, obj.Type)}
			}
			for _, param := range sortedArgs(obj) {
				argType, ok := t.Parameter(param)
				if !ok {
					return &QueryError{Type: typ, ID: id, Reason: fmt.Sprintf("undeclared argument '%s'", param)}
				}
				if _, ok := query.Get(argType, obj.Args[param]); !ok {
					return &QueryError{Type: typ, ID: id, Reason: fmt.Sprintf("argument '%s' refers to missing object '%s' of type '%s'", param, obj.Args[param], argType)}
				}
			}
		}
	}
	return nil
}

// leafFirstOrder orders query objects so that arguments come before the
// objects that reference them. Ties break by type, then id.
func (a *Assistant) leafFirstOrder(query model.Context) ([]*model.Example, error) {
	objects := query.Objects()
	pending := make(map[string]int, len(objects)) // outstanding argument count
	dependents := make(map[string][]string)

	for _, obj := range objects {
		key := objectKey(obj.Type, obj.ID)
		seen := make(map[string]bool)
		for _, param := range sortedArgs(obj) {
			arg, ok := a.argObject(query, obj, param)
			if !ok {
				continue
			}
			argKey := objectKey(arg.Type, arg.ID)
			if seen[argKey] {
				continue
			}
			seen[argKey] = true
			pending[key]++
			dependents[argKey] = append(dependents[argKey], key)
		}
	}

	byKey := make(map[string]*model.Example, len(objects))
	var ready []string
	for _, obj := range objects {
		key := objectKey(obj.Type, obj.ID)
		byKey[key] = obj
		if pending[key] == 0 {
			ready = append(ready, key)
		}
	}

	order := make([]*model.Example, 0, len(objects))
	for len(ready) > 0 {
		sort.Strings(ready)
		key := ready[0]
		ready = ready[1:]
		order = append(order, byKey[key])
		for _, dep := range dependents[key] {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(objects) {
		var stuck []string
		for _, obj := range objects {
			if pending[objectKey(obj.Type, obj.ID)] > 0 {
				stuck = append(stuck, obj.Type+"/"+obj.ID)
			}
		}
		return nil, &CyclicDependencyError{Objects: stuck}
	}
	return order, nil
}

// argObject looks up the query object bound to a parameter of obj
func (a *Assistant) argObject(query model.Context, obj *model.Example, param string) (*model.Example, bool) {
	t, ok := a.book.Type(obj.Type)
	if !ok {
		return nil, false
	}
	argType, ok := t.Parameter(param)
	if !ok {
		return nil, false
	}
	return query.Get(argType, obj.Args[param])
}

func sortedArgs(obj *model.Example) []string {
	params := make([]string, 0, len(obj.Args))
	for p := range obj.Args {
		params = append(params, p)
	}
	sort.Strings(params)
	return params
}

// objectKey sorts by type then id
func objectKey(typ, id string) string {
	return typ + "\x00" + id
}

func bindingKey(bindings map[string]map[string]string) string {
	var parts []string
	for typ, ids := range bindings {
		for src, tgt := range ids {
			parts = append(parts, typ+"\x00"+src+"\x00"+tgt)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x01")
}

// bindingsContext builds a result: query type -> query id -> copy of the target
func bindingsContext(bindings map[string]map[string]string, target model.Context) model.Context {
	out := make(model.Context, len(bindings))
	for typ, ids := range bindings {
		for src, tgt := range ids {
			obj, ok := target.Get(typ, tgt)
			if !ok {
				continue
			}
			if out[typ] == nil {
				out[typ] = make(map[string]*model.Example)
			}
			out[typ][src] = obj.Clone()
		}
	}
	return out
}

// ResultBindings extracts query id -> target id per type from a search result
func ResultBindings(result model.Context) map[string]map[string]string {
	out := make(map[string]map[string]string, len(result))
	for typ, objects := range result {
		out[typ] = make(map[string]string, len(objects))
		for src, obj := range objects {
			out[typ][src] = obj.ID
		}
	}
	return out
}
