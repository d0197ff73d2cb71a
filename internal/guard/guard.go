// Package guard screens incoming queries before any retrieval work runs.
// Decisions are pure pattern checks, so a blocked query never reaches the
// vector store or an LLM.
package guard

import (
	"regexp"
	"strings"

	"akademik-ai/internal/textutil"
)

// Decision is the outcome of the safety screen.
type Decision string

const (
	// DecisionAllow lets the query continue into the pipeline.
	DecisionAllow Decision = "allow"
	// DecisionRefuseCrime blocks requests for illegal or harmful help.
	DecisionRefuseCrime Decision = "refuse_crime"
	// DecisionRefusePolitical blocks political persuasion requests.
	DecisionRefusePolitical Decision = "refuse_political"
	// DecisionRedirectWeird redirects superstition-style queries back to
	// academic topics.
	DecisionRedirectWeird Decision = "redirect_weird"
)

// Classification carries the decision with the patterns that triggered it.
type Classification struct {
	Decision Decision
	Reason   string
	Tags     []string
}

var crimePatterns = compileAll(
	`\bjudi\b`,
	`\bjudi online\b`,
	`\bslot\b`,
	`\btaruhan\b`,
	`\bphishing\b`,
	`\bcarding\b`,
	`\bscam\b`,
	`\bpenipuan\b`,
	`\bhack(?:ing)?\b`,
	`\bmeretas?\b`,
	`\bbobol\b`,
	`\bbypass\b`,
	`\bexploit\b`,
	`\bnarkoba\b`,
)

var politicalPatterns = compileAll(
	`\bkampanye\b`,
	`\bpropaganda\b`,
	`\bmanipulasi opini\b`,
	`\bblack campaign\b`,
	`\bmenangkan calon\b`,
	`\bserang lawan politik\b`,
)

var weirdMarkers = []string{
	"ramalan hoki",
	"cara jadi dukun",
	"santet",
	"pesugihan",
	"cara hipnotis orang",
}

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

// Classify screens a query. An empty query is allowed; emptiness is handled
// by input validation, not by the guard.
func Classify(query string) Classification {
	q := strings.TrimSpace(query)
	if q == "" {
		return Classification{Decision: DecisionAllow, Reason: "empty_query"}
	}
	ql := strings.ToLower(q)

	if hits := matchAny(ql, crimePatterns); len(hits) > 0 {
		return Classification{Decision: DecisionRefuseCrime, Reason: "crime_or_harmful_request", Tags: hits}
	}
	if hits := matchAny(ql, politicalPatterns); len(hits) > 0 {
		return Classification{Decision: DecisionRefusePolitical, Reason: "political_persuasion_request", Tags: hits}
	}
	for _, marker := range weirdMarkers {
		if strings.Contains(ql, marker) {
			return Classification{Decision: DecisionRedirectWeird, Reason: "out_of_scope_weird_query", Tags: weirdMarkers}
		}
	}

	return Classification{Decision: DecisionAllow, Reason: "safe"}
}

// Answer returns the canned refusal or redirect for a blocking decision.
func Answer(decision Decision) string {
	var answer string
	switch decision {
	case DecisionRedirectWeird:
		answer = "## Ringkasan\n" +
			"Pertanyaan tadi agak di luar fokus akademik kampus. Biar tetap berguna, Aku bantu arahkan ke hal yang lebih relevan untuk kuliah dan karier Kamu.\n\n" +
			"- Kita bisa ubah jadi pertanyaan yang hasilnya benar-benar kepakai.\n" +
			"- Aku siap bantu dengan jawaban yang ringkas dan konkret.\n\n" +
			"## Opsi Lanjut\n" +
			"- Mau Aku bantu pilih jurusan sesuai minat dan target kerja?\n" +
			"- Atau Aku buatin rencana belajar singkat biar IPK dan skill kamu naik?"
	case DecisionRefuseCrime:
		answer = "## Ringkasan\n" +
			"Aku paham Kamu lagi cari arah, dan itu valid. Tapi Aku tidak bisa bantu hal yang melanggar hukum atau berpotensi membahayakan.\n\n" +
			"- Aku bisa bantu Kamu cari jalur akademik yang legal dan tetap realistis buat masa depan.\n" +
			"- Kita bisa ubah fokus ke skill yang benar-benar kepakai di dunia kerja.\n\n" +
			"## Opsi Lanjut\n" +
			"- Kalau goal Kamu di HR/Tech/Bisnis, Aku bisa rekomendasikan jurusan dan roadmap skill yang valid.\n" +
			"- Aku juga bisa bantu rencana semester singkat 3-6 bulan biar progres kamu jelas.\n" +
			"- Kalau mau, kirim target kariermu, nanti Aku bikinin langkah konkretnya."
	default:
		answer = "## Ringkasan\n" +
			"Aku tidak bisa bantu strategi propaganda atau manipulasi politik praktis. Namun, Aku tetap bisa bantu dari sisi akademik yang netral dan edukatif.\n\n" +
			"- Fokusku adalah membantu Kamu memahami topik secara objektif.\n" +
			"- Kita tetap bisa bahas jalur studi dan prospek karier yang relevan.\n\n" +
			"## Opsi Lanjut\n" +
			"- Aku bisa jelaskan jurusan Ilmu Politik, Hukum, Administrasi Publik, dan prospek kariernya.\n" +
			"- Aku juga bisa bantu ringkas konsep sistem politik secara objektif untuk belajar."
	}
	return textutil.Tidy(answer)
}

// OutOfDomainAnswer returns the canned response for queries outside the
// academic domain.
func OutOfDomainAnswer() string {
	answer := "## Ringkasan\n" +
		"Maaf, saya hanya asisten akademik kampus.\n\n" +
		"## Opsi Lanjut\n" +
		"- Saya bisa bantu jadwal kuliah, rekap nilai, KRS/KHS, dan strategi studi.\n" +
		"- Coba tulis ulang pertanyaan dalam konteks akademik."
	return textutil.Tidy(answer)
}
