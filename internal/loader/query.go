package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lemma/internal/book"
	"github.com/ppiankov/lemma/internal/model"
)

// ParseQuery decodes a query context written as
// {<type>: {<id>: {with: {...}, adjectives: {...}}}} in YAML or JSON.
// Types and arguments are checked against the book by the search, not here.
func ParseQuery(data []byte) (model.Context, error) {
	var raw map[string]map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}

	ctx := make(model.Context)
	for typ, objects := range raw {
		if !book.IsWord(typ) {
			return nil, fmt.Errorf("query: %w: type '%s'", book.ErrMalformedID, typ)
		}
		for id, fields := range objects {
			data := make(map[string]any, len(fields)+1)
			for k, v := range fields {
				data[k] = v
			}
			data["type"] = typ

			rec, err := book.Classify(id, data)
			if err != nil {
				return nil, fmt.Errorf("query object '%s': %w", id, err)
			}
			ex, ok := rec.(*book.ExampleRecord)
			if !ok {
				return nil, fmt.Errorf("query object '%s': not an object of type '%s'", id, typ)
			}
			obj := ex.Example
			ctx.Put(&obj)
		}
	}
	return ctx, nil
}

// ReadQuery reads and parses a query file
func ReadQuery(path string) (model.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}
	return ParseQuery(data)
}

type queryObject struct {
	Name       string            `json:"name,omitempty"`
	With       map[string]string `json:"with,omitempty"`
	Adjectives map[string]bool   `json:"adjectives,omitempty"`
}

// EncodeQuery renders a context in query form. The encoding is canonical:
// equal contexts encode to equal bytes.
func EncodeQuery(ctx model.Context) ([]byte, error) {
	out := make(map[string]map[string]queryObject, len(ctx))
	for _, obj := range ctx.Objects() {
		if out[obj.Type] == nil {
			out[obj.Type] = make(map[string]queryObject)
		}
		q := queryObject{With: obj.Args, Adjectives: obj.Adjectives}
		if obj.Name != obj.ID {
			q.Name = obj.Name
		}
		out[obj.Type][obj.ID] = q
	}
	return json.Marshal(out)
}
