package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/lemma/internal/book"
)

// ReadSummary builds an unverified book from a JSON summary file
func ReadSummary(path string) (*book.Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}
	var contents book.Contents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	b, err := book.FromContents(contents)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	return b, nil
}

// WriteSummary serializes the book to path. The file is replaced atomically.
func WriteSummary(path string, b *book.Book) error {
	data, err := json.MarshalIndent(b.Serialize(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
