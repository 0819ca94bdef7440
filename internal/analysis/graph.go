package analysis

import (
	"sort"

	"go.uber.org/zap"
)

// Graph maps each adjective to the adjectives it implies directly
type Graph map[string][]string

// AdjectiveGraph computes the implication graph between the adjectives of
// typ, transitively reduced. Contradictory adjectives have no edges.
func (an *Analyzer) AdjectiveGraph(typ string) (Graph, error) {
	graph := make(Graph)
	for _, adj := range an.book.Adjectives(typ) {
		ctx, subject, err := an.assume(typ, map[string]map[string]bool{"": {adj: true}})
		if err != nil {
			return nil, err
		}
		contradiction, err := an.deduce(ctx, noOptions)
		if err != nil {
			return nil, err
		}
		graph[adj] = []string{}
		if contradiction {
			an.logger.Warn("adjective is contradictory on its own", zap.String("type", typ), zap.String("adjective", adj))
			continue
		}
		for _, other := range sortedKeys(subject.Adjectives) {
			if other != adj && subject.Adjectives[other] {
				graph[adj] = append(graph[adj], other)
			}
		}
	}
	return Minimize(graph), nil
}

// Minimize drops A => C whenever it factors as A => B => C
func Minimize(graph Graph) Graph {
	out := make(Graph, len(graph))
	for a, targets := range graph {
		implied := make(map[string]bool)
		for _, b := range targets {
			for _, c := range graph[b] {
				if c != b && c != a {
					implied[c] = true
				}
			}
		}
		kept := []string{}
		for _, c := range targets {
			if !implied[c] {
				kept = append(kept, c)
			}
		}
		sort.Strings(kept)
		out[a] = kept
	}
	return out
}

// Layers orders the graph top-down: each layer holds the adjectives not
// implied by any adjective still unplaced. Mutually implied adjectives that
// block each other end up together in the last layer.
func Layers(graph Graph) [][]string {
	keys := sortedKeys(graph)
	var layers [][]string
	for len(keys) > 0 {
		remaining := make(map[string]bool, len(keys))
		for _, k := range keys {
			remaining[k] = true
		}
		incoming := make(map[string]bool)
		for _, b := range keys {
			for _, a := range graph[b] {
				if remaining[a] && a != b {
					incoming[a] = true
				}
			}
		}

		var layer, rest []string
		for _, k := range keys {
			if incoming[k] {
				rest = append(rest, k)
			} else {
				layer = append(layer, k)
			}
		}
		if len(layer) == 0 {
			layers = append(layers, rest)
			break
		}
		layers = append(layers, layer)
		keys = rest
	}
	return layers
}
