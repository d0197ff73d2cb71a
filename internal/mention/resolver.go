// Package mention extracts @document references from queries and resolves
// them against the user's uploaded documents.
package mention

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"akademik-ai/internal/cache"
	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/storage"
	"akademik-ai/internal/textutil"
)

var (
	// Filename-style mentions may contain spaces, so they are matched first
	// and stripped before the bare-token pass runs.
	extMentionPattern   = regexp.MustCompile(`(?i)@([A-Za-z0-9._\- ]+?\.(?:pdf|xlsx|xls|csv|md|txt))\b`)
	tokenMentionPattern = regexp.MustCompile(`@([A-Za-z0-9._\-]{2,120})`)
	extSuffixPattern    = regexp.MustCompile(`\.(pdf|xlsx|xls|csv|md|txt)$`)
	nonAlnumPattern     = regexp.MustCompile(`[^a-z0-9]+`)
	multiSpacePattern   = regexp.MustCompile(`\s{2,}`)
)

// Extract pulls @mentions out of a query and returns the cleaned query plus
// the mention list in order of first appearance, deduplicated.
func Extract(query string) (string, []string) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", nil
	}

	var mentions []string
	for _, m := range extMentionPattern.FindAllStringSubmatch(q, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			mentions = append(mentions, v)
		}
	}
	clean := extMentionPattern.ReplaceAllString(q, "")

	if extra := tokenMentionPattern.FindAllStringSubmatch(clean, -1); len(extra) > 0 {
		for _, m := range extra {
			if v := strings.TrimSpace(m[1]); v != "" {
				mentions = append(mentions, v)
			}
		}
		clean = tokenMentionPattern.ReplaceAllString(clean, "")
	}

	clean = strings.TrimSpace(multiSpacePattern.ReplaceAllString(clean, " "))
	return clean, dedupe(mentions)
}

// normalizeDocKey reduces a mention or title to a comparable key: lowercase,
// extension stripped, punctuation collapsed to single spaces.
func normalizeDocKey(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = extSuffixPattern.ReplaceAllString(t, "")
	t = nonAlnumPattern.ReplaceAllString(t, " ")
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(t, " "))
}

// Resolution is the outcome of matching mentions against the user's
// document titles.
type Resolution struct {
	ResolvedDocIDs []string
	ResolvedTitles []string
	Unresolved     []string
	Ambiguous      []string
}

// Resolver matches mentions to documents, caching lookups per user.
type Resolver struct {
	docs        storage.DocumentStore
	cache       cache.Store
	mentionTTL  time.Duration
	userDocsTTL time.Duration
}

// NewResolver creates a mention resolver. Pass cache.Nop{} to disable
// caching in tests.
func NewResolver(docs storage.DocumentStore, c cache.Store, mentionTTL, userDocsTTL time.Duration) *Resolver {
	return &Resolver{
		docs:        docs,
		cache:       c,
		mentionTTL:  mentionTTL,
		userDocsTTL: userDocsTTL,
	}
}

// Resolve maps mentions to document IDs. Exact normalized-title matches win;
// otherwise a single containment match resolves, multiple matches are
// ambiguous and none are unresolved.
func (r *Resolver) Resolve(ctx context.Context, userID int64, mentions []string) (Resolution, error) {
	if len(mentions) == 0 {
		return Resolution{}, nil
	}

	key := r.cacheKey(userID, mentions)
	if key != "" {
		if cached, ok := r.cache.Get(key); ok {
			if res, ok := cached.(Resolution); ok {
				return res, nil
			}
		}
	}

	res, err := r.resolve(ctx, userID, mentions)
	if err != nil {
		return Resolution{}, err
	}

	if key != "" {
		r.cache.Set(key, res, r.mentionTTL)
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, userID int64, mentions []string) (Resolution, error) {
	docs, err := r.docs.ListByUser(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to list documents for mention resolution: %w", err)
	}
	if len(docs) == 0 {
		return Resolution{Unresolved: mentions}, nil
	}

	type normDoc struct {
		id    string
		title string
		key   string
	}
	normed := make([]normDoc, 0, len(docs))
	for _, d := range docs {
		normed = append(normed, normDoc{id: d.ID, title: d.Title, key: normalizeDocKey(d.Title)})
	}

	var res Resolution
	for _, m := range mentions {
		mk := normalizeDocKey(m)
		if mk == "" {
			res.Unresolved = append(res.Unresolved, m)
			continue
		}

		var exact []normDoc
		for _, d := range normed {
			if d.key == mk {
				exact = append(exact, d)
			}
		}
		if len(exact) == 1 {
			res.ResolvedDocIDs = append(res.ResolvedDocIDs, exact[0].id)
			res.ResolvedTitles = append(res.ResolvedTitles, exact[0].title)
			continue
		}
		if len(exact) > 1 {
			res.Ambiguous = append(res.Ambiguous, m)
			continue
		}

		var contains []normDoc
		for _, d := range normed {
			if strings.Contains(d.key, mk) || strings.Contains(mk, d.key) {
				contains = append(contains, d)
			}
		}
		switch len(contains) {
		case 1:
			res.ResolvedDocIDs = append(res.ResolvedDocIDs, contains[0].id)
			res.ResolvedTitles = append(res.ResolvedTitles, contains[0].title)
		case 0:
			res.Unresolved = append(res.Unresolved, m)
		default:
			res.Ambiguous = append(res.Ambiguous, m)
		}
	}

	res.ResolvedDocIDs = dedupe(res.ResolvedDocIDs)
	res.ResolvedTitles = dedupe(res.ResolvedTitles)
	return res, nil
}

// HasDocuments reports whether the user has any indexed documents. A cached
// negative is re-checked against the store so a fresh upload becomes visible
// immediately; a cached positive is trusted for the TTL.
func (r *Resolver) HasDocuments(ctx context.Context, userID int64) bool {
	logger := contextutil.LoggerFromContext(ctx)
	key := fmt.Sprintf("rag:user_has_docs:%d", userID)

	if cached, ok := r.cache.Get(key); ok {
		if has, ok := cached.(bool); ok {
			if has {
				return true
			}
			hasNow, err := r.docs.ExistsByUser(ctx, userID)
			if err != nil {
				logger.WarnContext(ctx, "failed to re-check user documents", "user_id", userID, "error", err)
				return false
			}
			if hasNow {
				r.cache.Set(key, true, r.userDocsTTL)
			}
			return hasNow
		}
	}

	has, err := r.docs.ExistsByUser(ctx, userID)
	if err != nil {
		logger.WarnContext(ctx, "failed to check user documents", "user_id", userID, "error", err)
		return false
	}
	r.cache.Set(key, has, r.userDocsTTL)
	return has
}

func (r *Resolver) cacheKey(userID int64, mentions []string) string {
	parts := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if v := strings.ToLower(strings.TrimSpace(m)); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 || r.mentionTTL <= 0 {
		return ""
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("rag:mention:v1:%d:%s", userID, hex.EncodeToString(sum[:]))
}

// AmbiguousAnswer builds the canned response asking the user to spell out
// an ambiguous document reference.
func AmbiguousAnswer(mentions []string) string {
	shown := mentions
	if len(shown) > 3 {
		shown = shown[:3]
	}
	quoted := make([]string, len(shown))
	for i, m := range shown {
		quoted[i] = "`@" + m + "`"
	}

	answer := "## Ringkasan\n" +
		"Aku menemukan rujukan dokumen yang ambigu: " + strings.Join(quoted, ", ") + ". Biar akurat, tolong tulis nama file lebih spesifik.\n\n" +
		"## Opsi Lanjut\n" +
		"- Tulis ulang dengan nama file lebih lengkap (contoh: `@Jadwal Mata Kuliah Semester GANJIL TA.2024-2025.pdf`).\n" +
		"- Atau lanjut tanpa rujukan dokumen, nanti Aku jawab secara umum dulu."
	return textutil.Tidy(answer)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
