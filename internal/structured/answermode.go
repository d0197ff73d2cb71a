package structured

import "strings"

// Answer modes for transcript queries. Evaluative wins over factual when a
// query carries both kinds of marker.
const (
	AnswerModeEvaluative = "evaluative"
	AnswerModeFactual    = "factual"
	AnswerModeGeneral    = "general"
)

var evaluativeMarkers = []string{
	"bagaimana",
	"gimana",
	"evaluasi",
	"analisis",
	"progress",
	"perkembangan",
	"saran",
	"rekomendasi",
	"kelebihan",
	"kekurangan",
	"perbaiki",
	"strategi",
}

var factualMarkers = []string{
	"berapa",
	"nilai",
	"ipk",
	"ips",
	"sks",
	"semester",
	"daftar",
	"rekap",
	"matakuliah",
	"mata kuliah",
	"khs",
	"transkrip",
}

// ClassifyAnswerMode decides how much interpretation the answer may carry:
// evaluative queries want commentary, factual queries want numbers as-is.
func ClassifyAnswerMode(query string) string {
	ql := strings.ToLower(query)
	for _, m := range evaluativeMarkers {
		if strings.Contains(ql, m) {
			return AnswerModeEvaluative
		}
	}
	for _, m := range factualMarkers {
		if strings.Contains(ql, m) {
			return AnswerModeFactual
		}
	}
	return AnswerModeGeneral
}
