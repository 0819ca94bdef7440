package assistant

import (
	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/book"
)

// Assistant searches and deduces over a verified book
type Assistant struct {
	book   *book.Book
	logger *zap.Logger
	budget int // Max candidate visits per search, 0 = unbounded
}

// Option configures an Assistant
type Option func(*Assistant)

// WithLogger sets the logger used for deduction tracing
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSearchBudget bounds the candidate visits of a single search
func WithSearchBudget(visits int) Option {
	return func(a *Assistant) {
		if visits > 0 {
			a.budget = visits
		}
	}
}

// New creates an assistant over b. b should have passed Verify.
func New(b *book.Book, opts ...Option) *Assistant {
	a := &Assistant{
		book:   b,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Book returns the book the assistant works on
func (a *Assistant) Book() *book.Book {
	return a.book
}
