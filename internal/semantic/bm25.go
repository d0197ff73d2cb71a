package semantic

import (
	"math"
	"sort"
	"strings"
)

// BM25 Okapi parameters. Standard values, not worth configuring.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
	rrfK   = 60
)

func tokenize(text string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// bm25Scores computes Okapi BM25 scores of query against the corpus. The
// corpus here is the dense candidate pool (tens of docs), so building the
// index per query is cheap.
func bm25Scores(query string, corpus []string) []float64 {
	tokenized := make([][]string, len(corpus))
	totalLen := 0
	nonEmpty := false
	for i, doc := range corpus {
		tokenized[i] = tokenize(doc)
		totalLen += len(tokenized[i])
		if len(tokenized[i]) > 0 {
			nonEmpty = true
		}
	}
	if !nonEmpty {
		return make([]float64, len(corpus))
	}
	avgLen := float64(totalLen) / float64(len(corpus))

	// Document frequency per term.
	df := make(map[string]int)
	for _, toks := range tokenized {
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	n := float64(len(corpus))
	idf := func(term string) float64 {
		d := float64(df[term])
		return math.Log((n-d+0.5)/(d+0.5) + 1)
	}

	scores := make([]float64, len(corpus))
	queryTokens := tokenize(query)
	for i, toks := range tokenized {
		if len(toks) == 0 {
			continue
		}
		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		docLen := float64(len(toks))
		for _, qt := range queryTokens {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			scores[i] += idf(qt) * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
	}
	return scores
}

// sparseSearch ranks the candidate pool by BM25 and returns the top k.
func sparseSearch(query string, pool []Doc, k int) []Doc {
	if len(pool) == 0 || k <= 0 {
		return nil
	}
	corpus := make([]string, len(pool))
	for i, d := range pool {
		corpus[i] = d.Text
	}
	scores := bm25Scores(query, corpus)

	ranked := make([]Doc, len(pool))
	copy(ranked, pool)
	for i := range ranked {
		ranked[i].Score = scores[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// fuseRRF merges the dense and sparse rankings with Reciprocal Rank Fusion:
// score(d) = sum over rankings of 1/(rrfK + rank).
func fuseRRF(dense, sparse []Doc, k int) []Doc {
	type slot struct {
		doc   Doc
		score float64
		order int
	}
	acc := make(map[string]*slot)
	next := 0
	add := func(docs []Doc) {
		for rank, d := range docs {
			key := d.ChunkID
			s, ok := acc[key]
			if !ok {
				s = &slot{doc: d, order: next}
				next++
				acc[key] = s
			}
			s.score += 1.0 / float64(rrfK+rank+1)
		}
	}
	add(dense)
	add(sparse)

	slots := make([]*slot, 0, len(acc))
	for _, s := range acc {
		slots = append(slots, s)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].score != slots[j].score {
			return slots[i].score > slots[j].score
		}
		return slots[i].order < slots[j].order
	})

	if k <= 0 {
		k = 1
	}
	out := make([]Doc, 0, k)
	for _, s := range slots {
		d := s.doc
		d.Score = s.score
		out = append(out, d)
		if len(out) >= k {
			break
		}
	}
	return out
}
