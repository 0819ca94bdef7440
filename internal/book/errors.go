package book

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedID is returned when an id is not made of [A-Za-z0-9_-]
	ErrMalformedID = errors.New("malformed id")

	// ErrDuplicateID is returned when an id already exists in its scope
	ErrDuplicateID = errors.New("duplicate id")

	// ErrFrozen is returned when adding to a verified book
	ErrFrozen = errors.New("book is frozen")

	// ErrUnknownType is returned when a type id is not registered
	ErrUnknownType = errors.New("unknown type")
)

// StructuralError reports a malformed record body passed to Add
type StructuralError struct {
	ID     string // Record id
	Kind   string // "type", "adjective", "theorem", "example" or "record"
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Kind, e.ID, e.Reason)
}

func structural(kind, id, format string, args ...any) *StructuralError {
	return &StructuralError{ID: id, Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// ReferenceError reports a cross-reference violation found by Verify
type ReferenceError struct {
	Kind   string // Kind of the offending record
	Type   string // Type scope of the record, empty for types
	ID     string
	Reason string
}

func (e *ReferenceError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s '%s': %s", e.Kind, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s '%s' of type '%s': %s", e.Kind, e.ID, e.Type, e.Reason)
}

// UnresolvablePathError reports a path that cannot be walked
type UnresolvablePathError struct {
	Path   string
	Type   string // Type the walk started from
	Object string // Object the walk started from, empty for type-level walks
	Reason string
}

func (e *UnresolvablePathError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("cannot resolve path '%s' from type '%s': %s", e.Path, e.Type, e.Reason)
	}
	return fmt.Sprintf("cannot resolve path '%s' on object '%s' of type '%s': %s", e.Path, e.Object, e.Type, e.Reason)
}

// CyclicTypeError reports a self-referential parameter graph
type CyclicTypeError struct {
	Cycle []string // Type ids, first and last equal
}

func (e *CyclicTypeError) Error() string {
	return fmt.Sprintf("cyclic type parameters: %s", strings.Join(e.Cycle, " -> "))
}

// ProofError reports malformed provenance met while tracing a proof
type ProofError struct {
	Type      string
	Object    string
	Adjective string
	Reason    string
}

func (e *ProofError) Error() string {
	return fmt.Sprintf("proof of '%s' on '%s' of type '%s': %s", e.Adjective, e.Object, e.Type, e.Reason)
}
