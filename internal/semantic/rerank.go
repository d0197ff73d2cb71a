package semantic

import (
	"sort"
	"strings"
)

// rerankDocs reorders candidates with a lexical cross-score between the
// query and each document: token overlap weighted by inverse document
// frequency over the pool, plus a bigram bonus for phrase matches. It is a
// cheap stand-in for a cross-encoder that runs in-process without a model
// server.
func rerankDocs(query string, docs []Doc, topN int) []Doc {
	if len(docs) == 0 {
		return nil
	}
	if topN <= 0 {
		topN = 1
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		if len(docs) > topN {
			return docs[:topN]
		}
		return docs
	}

	df := make(map[string]int)
	tokenized := make([][]string, len(docs))
	for i, d := range docs {
		tokenized[i] = tokenize(d.Text)
		seen := make(map[string]struct{}, len(tokenized[i]))
		for _, t := range tokenized[i] {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	queryBigrams := bigrams(queryTokens)

	ranked := make([]Doc, len(docs))
	copy(ranked, docs)
	for i := range ranked {
		docSet := make(map[string]struct{}, len(tokenized[i]))
		for _, t := range tokenized[i] {
			docSet[t] = struct{}{}
		}

		score := 0.0
		for _, qt := range queryTokens {
			if _, ok := docSet[qt]; ok {
				// Rarer terms in the pool carry more signal.
				score += 1.0 / float64(df[qt])
			}
		}
		lower := strings.ToLower(ranked[i].Text)
		for _, bg := range queryBigrams {
			if strings.Contains(lower, bg) {
				score += 0.5
			}
		}
		ranked[i].Score = score
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func bigrams(tokens []string) []string {
	if len(tokens) < 2 {
		return nil
	}
	out := make([]string, 0, len(tokens)-1)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}
