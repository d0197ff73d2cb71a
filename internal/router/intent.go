// Package router classifies queries into pipeline routes using keyword
// patterns. Routing is deterministic and never calls an LLM.
package router

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"akademik-ai/internal/cache"
)

// Route names the pipeline a query should take.
type Route string

const (
	// RouteAnalyticalTabular sends the query to the structured analytics
	// pipeline over row chunks.
	RouteAnalyticalTabular Route = "analytical_tabular"
	// RouteSemanticPolicy sends the query to semantic retrieval over
	// policy and guideline documents.
	RouteSemanticPolicy Route = "semantic_policy"
	// RouteOutOfDomain marks queries outside the academic assistant scope.
	RouteOutOfDomain Route = "out_of_domain"
	// RouteDefaultRAG is the fallback semantic retrieval route.
	RouteDefaultRAG Route = "default_rag"
)

// Result carries the route with the patterns that matched.
type Result struct {
	Route   Route
	Reason  string
	Matched []string
}

var analyticalPatterns = compileAll(
	`\brekap\b`,
	`\bringkas\b`,
	`\brangkum\b`,
	`\bhasil studi\b`,
	`\breview hasil studi\b`,
	`\bnilai rendah\b`,
	`\bmatakuliah.*rendah\b`,
	`\bjadwal hari\b`,
	`\bhari ini\b`,
	`\bkhs\b`,
	`\bkrs\b`,
	`\btranskrip\b`,
	`\bips\b`,
	`\bipk\b`,
)

var semanticPolicyPatterns = compileAll(
	`\baturan\b`,
	`\bsyarat lulus\b`,
	`\bcara cuti\b`,
	`\bpedoman\b`,
	`\bkebijakan\b`,
	`\bperaturan\b`,
	`\bskripsi\b.*\bsyarat\b`,
	`\bregistrasi\b.*\baturan\b`,
)

var outOfDomainPatterns = compileAll(
	`\bresep\b`,
	`\bcuaca\b`,
	`\bcrypto\b`,
	`\bsaham\b`,
	`\bprediksi skor\b`,
	`\bbola\b`,
	`\bgaming\b`,
	`\bfilm\b`,
	`\blagu\b`,
	`\bdrama korea\b`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

func matchAny(text string, patterns []*regexp.Regexp) []string {
	var hits []string
	for _, p := range patterns {
		if p.MatchString(text) {
			hits = append(hits, p.String())
		}
	}
	return hits
}

// Classify routes a query by keyword groups. Analytical keywords win over
// policy keywords, which win over out-of-domain markers.
func Classify(query string) Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return Result{Route: RouteDefaultRAG, Reason: "empty_query"}
	}
	ql := strings.ToLower(q)

	if hits := matchAny(ql, analyticalPatterns); len(hits) > 0 {
		return Result{Route: RouteAnalyticalTabular, Reason: "matched_analytical_keywords", Matched: hits}
	}
	if hits := matchAny(ql, semanticPolicyPatterns); len(hits) > 0 {
		return Result{Route: RouteSemanticPolicy, Reason: "matched_semantic_policy_keywords", Matched: hits}
	}
	if hits := matchAny(ql, outOfDomainPatterns); len(hits) > 0 {
		return Result{Route: RouteOutOfDomain, Reason: "matched_out_of_domain_keywords", Matched: hits}
	}

	return Result{Route: RouteDefaultRAG, Reason: "no_route_match"}
}

// Router wraps Classify with a short TTL cache keyed by the user and the
// normalized query, so bursts of identical queries skip the pattern scan.
type Router struct {
	enabled bool
	cache   cache.Store
	ttl     time.Duration
}

// New creates a Router. When enabled is false every query takes the
// default route.
func New(enabled bool, c cache.Store, ttl time.Duration) *Router {
	return &Router{enabled: enabled, cache: c, ttl: ttl}
}

// Resolve returns the cached route for a user's query, classifying on miss.
func (r *Router) Resolve(userID int64, query string) Result {
	if !r.enabled {
		return Result{Route: RouteDefaultRAG, Reason: "router_disabled"}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || r.ttl <= 0 {
		return Classify(query)
	}

	sum := md5.Sum([]byte(q))
	key := "rag:route:v1:" + strconv.FormatInt(userID, 10) + ":" + hex.EncodeToString(sum[:])
	if cached, ok := r.cache.Get(key); ok {
		if res, ok := cached.(Result); ok {
			return res
		}
	}

	out := Classify(query)
	r.cache.Set(key, out, r.ttl)
	return out
}
