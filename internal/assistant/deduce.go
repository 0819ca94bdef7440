package assistant

import (
	"go.uber.org/zap"

	"github.com/ppiankov/lemma/internal/model"
)

// DeduceOptions restricts a deduction. Empty fields mean no restriction.
type DeduceOptions struct {
	Types           []string // Subject types to apply theorems to
	IDs             []string // Subject ids to apply theorems to
	ExcludeTheorems []string // Theorem ids never applied
}

func (o DeduceOptions) allows(obj *model.Example) bool {
	return (len(o.Types) == 0 || contains(o.Types, obj.Type)) &&
		(len(o.IDs) == 0 || contains(o.IDs, obj.ID))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Deduce applies every theorem to every object in scope, forward and (for
// bidirectional theorems) converse, until a full pass asserts nothing. It
// mutates ctx. A *ContradictionError aborts immediately; the facts asserted
// before it are returned alongside.
func (a *Assistant) Deduce(ctx model.Context, opts DeduceOptions) ([]model.Conclusion, error) {
	var all []model.Conclusion
	passes := 0

	for {
		passes++
		progress := false

		for _, obj := range ctx.Objects() {
			if !opts.allows(obj) {
				continue
			}
			for _, thm := range a.book.Theorems(obj.Type) {
				if contains(opts.ExcludeTheorems, thm.ID) {
					continue
				}

				directions := []bool{false}
				if thm.Converse {
					directions = append(directions, true)
				}
				for _, converse := range directions {
					conclusions, err := a.ApplyTheorem(thm, ctx, obj.ID, converse)
					if err != nil {
						a.logger.Debug("deduction aborted", zap.Int("passes", passes), zap.Error(err))
						return all, err
					}
					if len(conclusions) > 0 {
						progress = true
						all = append(all, conclusions...)
					}
				}
			}
		}

		if !progress {
			break
		}
	}

	a.logger.Debug("deduction finished", zap.Int("passes", passes), zap.Int("conclusions", len(all)))
	return all, nil
}
