package book

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/lemma/internal/model"
)

var wordPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsWord reports whether s is a valid id or key
func IsWord(s string) bool {
	return wordPattern.MatchString(s)
}

// Kind discriminates the four record categories of a book
type Kind int

const (
	KindType Kind = iota
	KindAdjective
	KindTheorem
	KindExample
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindAdjective:
		return "adjective"
	case KindTheorem:
		return "theorem"
	case KindExample:
		return "example"
	default:
		return "record"
	}
}

// Record is a classified book entry ready for insertion
type Record interface {
	Kind() Kind
	RecordID() string
}

// TypeRecord declares a type. Name defaults to the id, Parameters to none.
type TypeRecord struct {
	Type        model.Type
	Description string
}

// AdjectiveRecord declares an adjective. Name defaults to the id.
type AdjectiveRecord struct {
	Adjective   model.Adjective
	Description string
}

// TheoremRecord declares a theorem. Name defaults to the id, Conditions to
// none, Converse to false.
type TheoremRecord struct {
	Theorem     model.Theorem
	Description string
}

// ExampleRecord declares an example. Name defaults to the id, Args,
// Adjectives and Proofs to empty.
type ExampleRecord struct {
	Example     model.Example
	Description string
}

func (r *TypeRecord) Kind() Kind      { return KindType }
func (r *AdjectiveRecord) Kind() Kind { return KindAdjective }
func (r *TheoremRecord) Kind() Kind   { return KindTheorem }
func (r *ExampleRecord) Kind() Kind   { return KindExample }

func (r *TypeRecord) RecordID() string      { return r.Type.ID }
func (r *AdjectiveRecord) RecordID() string { return r.Adjective.ID }
func (r *TheoremRecord) RecordID() string   { return r.Theorem.ID }
func (r *ExampleRecord) RecordID() string   { return r.Example.ID }

// Classify parses a decoded record into its typed form. The "type" field
// discriminates: "type", "theorem", "<type> adjective", or a bare type id
// for examples.
func Classify(id string, data map[string]any) (Record, error) {
	if !IsWord(id) {
		return nil, fmt.Errorf("%w: '%s'", ErrMalformedID, id)
	}

	discriminator, ok := data["type"].(string)
	if !ok {
		return nil, structural("record", id, "missing field 'type'")
	}

	name := id
	if v, ok := data["name"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, structural("record", id, "field 'name' must be a string")
		}
		name = s
	}
	description, err := optionalString(data, "description")
	if err != nil {
		return nil, structural("record", id, "%v", err)
	}

	switch {
	case discriminator == "type":
		params, err := parseParameters(id, data["parameters"])
		if err != nil {
			return nil, err
		}
		return &TypeRecord{
			Type:        model.Type{ID: id, Name: name, Parameters: params},
			Description: description,
		}, nil

	case discriminator == "theorem":
		thm, err := parseTheorem(id, name, data)
		if err != nil {
			return nil, err
		}
		return &TheoremRecord{Theorem: *thm, Description: description}, nil

	case strings.HasSuffix(discriminator, " adjective"):
		typ := strings.TrimSuffix(discriminator, " adjective")
		if !IsWord(typ) {
			return nil, structural("adjective", id, "invalid type '%s'", typ)
		}
		adj := model.Adjective{ID: id, Type: typ, Name: name}
		if v, ok := data["verb"]; ok {
			verb, err := parseVerb(id, v)
			if err != nil {
				return nil, err
			}
			adj.Verb = verb
		}
		return &AdjectiveRecord{Adjective: adj, Description: description}, nil

	case IsWord(discriminator):
		ex, err := parseExample(id, discriminator, name, data)
		if err != nil {
			return nil, err
		}
		return &ExampleRecord{Example: *ex, Description: description}, nil

	default:
		return nil, structural("record", id, "invalid type '%s'", discriminator)
	}
}

func optionalString(data map[string]any, key string) (string, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field '%s' must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

// parseParameters accepts a mapping (ordered by name) or a list of
// single-entry mappings (ordered as given).
func parseParameters(id string, v any) ([]model.Parameter, error) {
	var params []model.Parameter
	add := func(name string, typ any) error {
		s, ok := typ.(string)
		if !ok || !IsWord(name) || !IsWord(s) {
			return structural("type", id, "invalid parameter '%s'", name)
		}
		for _, p := range params {
			if p.Name == name {
				return structural("type", id, "duplicate parameter '%s'", name)
			}
		}
		params = append(params, model.Parameter{Name: name, Type: s})
		return nil
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		for _, name := range sortedKeys(val) {
			if err := add(name, val[name]); err != nil {
				return nil, err
			}
		}
	case []any:
		for _, item := range val {
			entry, ok := item.(map[string]any)
			if !ok || len(entry) != 1 {
				return nil, structural("type", id, "parameters must be single-entry mappings")
			}
			for name, typ := range entry {
				if err := add(name, typ); err != nil {
					return nil, err
				}
			}
		}
	default:
		return nil, structural("type", id, "invalid field 'parameters'")
	}
	return params, nil
}

func parseVerb(id string, v any) (*model.Verb, error) {
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		return nil, structural("adjective", id, "field 'verb' must be a pair of strings")
	}
	aff, ok1 := list[0].(string)
	neg, ok2 := list[1].(string)
	if !ok1 || !ok2 {
		return nil, structural("adjective", id, "field 'verb' must be a pair of strings")
	}
	return &model.Verb{Affirmative: aff, Negative: neg}, nil
}

func parseTheorem(id, name string, data map[string]any) (*model.Theorem, error) {
	given, ok := data["given"].(string)
	if !ok {
		return nil, structural("theorem", id, "missing field 'given'")
	}
	parts := strings.Split(given, " ")
	if len(parts) != 2 || !IsWord(parts[0]) || !IsWord(parts[1]) {
		return nil, structural("theorem", id, "field 'given' must be '<type> <subject>', got '%s'", given)
	}
	thm := &model.Theorem{ID: id, Name: name, Type: parts[0], Subject: parts[1]}

	conditions, err := statements(id, "if", data["if"], false)
	if err != nil {
		return nil, err
	}
	if thm.Conditions, err = parseStatements(id, thm.Subject, "condition", conditions); err != nil {
		return nil, err
	}

	then, ok := data["then"]
	if !ok {
		return nil, structural("theorem", id, "missing field 'then'")
	}
	conclusions, err := statements(id, "then", then, true)
	if err != nil {
		return nil, err
	}
	if thm.Conclusions, err = parseStatements(id, thm.Subject, "conclusion", conclusions); err != nil {
		return nil, err
	}

	if v, ok := data["converse"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, structural("theorem", id, "field 'converse' must be a boolean")
		}
		thm.Converse = b
	}
	return thm, nil
}

// statements normalizes a string-or-list field into a list of strings
func statements(id, field string, v any, required bool) ([]string, error) {
	switch val := v.(type) {
	case nil:
		if required {
			return nil, structural("theorem", id, "missing field '%s'", field)
		}
		return nil, nil
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, structural("theorem", id, "invalid entry '%v' in field '%s'", item, field)
			}
			out = append(out, s)
		}
		if required && len(out) == 0 {
			return nil, structural("theorem", id, "field '%s' is empty", field)
		}
		return out, nil
	default:
		return nil, structural("theorem", id, "invalid field '%s'", field)
	}
}

// parseStatements parses "<path> <adjective>" and "<path> not <adjective>"
func parseStatements(id, subject, kind string, exprs []string) (model.Conditions, error) {
	out := make(model.Conditions)
	for _, expr := range exprs {
		parts := strings.Split(expr, " ")
		var fullPath, adjective string
		value := true
		switch {
		case len(parts) == 2:
			fullPath, adjective = parts[0], parts[1]
		case len(parts) == 3 && parts[1] == "not":
			fullPath, adjective, value = parts[0], parts[2], false
		default:
			return nil, structural("theorem", id, "invalid %s '%s'", kind, expr)
		}
		if !IsWord(adjective) {
			return nil, structural("theorem", id, "invalid adjective '%s' in %s '%s'", adjective, kind, expr)
		}
		path, ok := relativePath(subject, fullPath)
		if !ok {
			return nil, structural("theorem", id, "invalid path '%s' (should start with '%s')", fullPath, subject)
		}
		if _, ok := out[path]; !ok {
			out[path] = make(map[string]bool)
		}
		if _, dup := out[path][adjective]; dup {
			return nil, structural("theorem", id, "multiple %ss on adjective '%s' of '%s'", kind, adjective, fullPath)
		}
		out[path][adjective] = value
	}
	return out, nil
}

// relativePath strips the subject from "X.source.target", giving ".source.target"
func relativePath(subject, fullPath string) (string, bool) {
	if fullPath == subject {
		return "", true
	}
	if !strings.HasPrefix(fullPath, subject+".") {
		return "", false
	}
	rest := fullPath[len(subject):]
	for _, step := range strings.Split(rest[1:], ".") {
		if !IsWord(step) {
			return "", false
		}
	}
	return rest, true
}

func parseExample(id, typ, name string, data map[string]any) (*model.Example, error) {
	ex := model.NewExample(typ, id, name)

	if v, ok := data["with"]; ok && v != nil {
		args, ok := v.(map[string]any)
		if !ok {
			return nil, structural("example", id, "field 'with' must be a mapping")
		}
		for key, arg := range args {
			s, ok := arg.(string)
			if !ok || !IsWord(key) || !IsWord(s) {
				return nil, structural("example", id, "invalid argument '%s'", key)
			}
			ex.Args[key] = s
		}
	}

	if v, ok := data["adjectives"]; ok && v != nil {
		adjs, ok := v.(map[string]any)
		if !ok {
			return nil, structural("example", id, "field 'adjectives' must be a mapping")
		}
		for key, raw := range adjs {
			if !IsWord(key) {
				return nil, structural("example", id, "invalid adjective '%s'", key)
			}
			switch val := raw.(type) {
			case bool:
				ex.Adjectives[key] = val
			case []any:
				b, ok := firstBool(val)
				if !ok {
					return nil, structural("example", id, "invalid value for adjective '%s'", key)
				}
				ex.Adjectives[key] = b
				if len(val) == 2 {
					text, ok := val[1].(string)
					if !ok {
						return nil, structural("example", id, "invalid proof for adjective '%s'", key)
					}
					ex.Proofs[key] = model.Proof{Text: strings.TrimSpace(text)}
				}
			default:
				return nil, structural("example", id, "invalid value for adjective '%s'", key)
			}
		}
	}

	if v, ok := data["proofs"]; ok && v != nil {
		proofs, ok := v.(map[string]any)
		if !ok {
			return nil, structural("example", id, "field 'proofs' must be a mapping")
		}
		for key, raw := range proofs {
			if !IsWord(key) {
				return nil, structural("example", id, "invalid proof key '%s'", key)
			}
			proof, err := parseProof(raw)
			if err != nil {
				return nil, structural("example", id, "invalid proof for adjective '%s': %v", key, err)
			}
			ex.Proofs[key] = proof
		}
	}
	return ex, nil
}

func firstBool(list []any) (bool, bool) {
	if len(list) != 1 && len(list) != 2 {
		return false, false
	}
	b, ok := list[0].(bool)
	return b, ok
}

func parseProof(raw any) (model.Proof, error) {
	switch val := raw.(type) {
	case string:
		return model.Proof{Text: strings.TrimSpace(val)}, nil
	case map[string]any:
		typ, ok1 := val["type"].(string)
		thm, ok2 := val["theorem"].(string)
		subject, ok3 := val["subject"].(string)
		if !ok1 || !ok2 || !ok3 {
			return model.Proof{}, fmt.Errorf("structured proofs need 'type', 'theorem' and 'subject'")
		}
		proof := model.Proof{Type: typ, Theorem: thm, Subject: subject}
		if c, ok := val["converse"].(bool); ok {
			proof.Converse = c
		}
		if n, ok := val["negated"].(map[string]any); ok {
			path, _ := n["path"].(string)
			adj, ok := n["adjective"].(string)
			if !ok {
				return model.Proof{}, fmt.Errorf("negated marker needs 'adjective'")
			}
			proof.Negated = &model.Negation{Path: path, Adjective: adj}
		}
		return proof, nil
	default:
		return model.Proof{}, fmt.Errorf("expected text or mapping")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
