// Package retrieval ranks stored work items and notes against a query vector.
package retrieval

import (
	"sort"
	"time"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
)

// Candidate is anything with a stored embedding that can be ranked.
type Candidate interface {
	RankKey() string
	RankVector() []float32
	RankTime() time.Time
}

// Options bounds one ranking pass.
type Options struct {
	Threshold float64 // minimum cosine similarity, inclusive
	Limit     int     // 0 = unlimited
}

// Scored pairs a candidate with its similarity to the query.
type Scored[T Candidate] struct {
	Item  T
	Score float64
}

// Rank scores every candidate that has a vector, keeps those at or above the
// threshold and returns them best first. Equal scores order by most recent
// RankTime, then by key, so the result is deterministic.
func Rank[T Candidate](query []float32, pool []T, opts Options) []Scored[T] {
	if len(query) == 0 {
		return nil
	}

	var scored []Scored[T]
	for _, c := range pool {
		vec := c.RankVector()
		if len(vec) == 0 {
			continue
		}
		s := embedding.Cosine(query, vec)
		if s < opts.Threshold {
			continue
		}
		scored = append(scored, Scored[T]{Item: c, Score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ta, tb := a.Item.RankTime(), b.Item.RankTime()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.Item.RankKey() < b.Item.RankKey()
	})

	if opts.Limit > 0 && len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored
}

// Items strips the scores.
func Items[T Candidate](scored []Scored[T]) []T {
	out := make([]T, len(scored))
	for i, s := range scored {
		out[i] = s.Item
	}
	return out
}
