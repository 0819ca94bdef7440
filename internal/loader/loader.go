// Package loader reads book records from a data directory of YAML files,
// and writes and reads the JSON summary the directory compiles to.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/lemma/internal/book"
)

// File is one decoded record file. The record id is the file name without
// its extension.
type File struct {
	Path   string
	ID     string
	Record book.Record
}

// IsRecordFile reports whether path names a record file
func IsRecordFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// ReadDir decodes and classifies every record file under dir, parsing up to
// workers files at a time. Files are returned sorted by path.
func ReadDir(ctx context.Context, dir string, workers int) ([]File, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsRecordFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	if workers <= 0 {
		workers = 1
	}
	files := make([]File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := ReadFile(path)
			if err != nil {
				return err
			}
			files[i] = *f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// ReadFile decodes and classifies a single record file
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raw, err := DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec, err := book.Classify(id, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Path: path, ID: id, Record: rec}, nil
}

// LoadDir builds an unverified book from a data directory, inserting types,
// adjectives, theorems, then examples.
func LoadDir(ctx context.Context, dir string, workers int) (*book.Book, error) {
	files, err := ReadDir(ctx, dir, workers)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Record.Kind() < files[j].Record.Kind()
	})

	b := book.New()
	for _, f := range files {
		if err := b.Insert(f.Record); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
	}
	return b, nil
}

// DecodeRecord decodes one YAML record. Type parameters keep their written
// order: a parameters mapping becomes a list of single-entry mappings.
func DecodeRecord(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("record must be a mapping")
	}

	out := make(map[string]any, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if key == "parameters" && value.Kind == yaml.MappingNode {
			var params []any
			for j := 0; j+1 < len(value.Content); j += 2 {
				var typ any
				if err := value.Content[j+1].Decode(&typ); err != nil {
					return nil, fmt.Errorf("decode parameter '%s': %w", value.Content[j].Value, err)
				}
				params = append(params, map[string]any{value.Content[j].Value: typ})
			}
			out[key] = params
			continue
		}
		var v any
		if err := value.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode field '%s': %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}
