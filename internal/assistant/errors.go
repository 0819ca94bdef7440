package assistant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/lemma/internal/model"
)

var (
	// ErrSearchBudgetExceeded is returned with partial results when the
	// backtracking visit budget runs out
	ErrSearchBudgetExceeded = errors.New("search budget exceeded")

	// ErrNotConverse is returned when applying a one-way theorem backwards
	ErrNotConverse = errors.New("theorem has no converse")
)

// ContradictionError carries both sides of a contradiction: the asserting
// theorem application and the proof of the value already known.
type ContradictionError struct {
	Object    *model.Example // Object in the deduced context, left unmodified
	Adjective string
	Value     bool        // Value the theorem asserts
	Theorem   string      // Asserting theorem id
	Proof     model.Proof // Asserting application
	Prior     model.Proof // Proof of the opposite value
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("contradiction: theorem '%s' asserts '%s' = %t on '%s' of type '%s', already known %t",
		e.Theorem, e.Adjective, e.Value, e.Object.ID, e.Object.Type, !e.Value)
}

// CyclicDependencyError reports query objects whose arguments form a cycle
type CyclicDependencyError struct {
	Objects []string // "type/id" of every object left unordered
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic argument dependencies between %s", strings.Join(e.Objects, ", "))
}

// QueryError reports a malformed search query
type QueryError struct {
	Type   string
	ID     string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query object '%s' of type '%s': %s", e.ID, e.Type, e.Reason)
}
