package semantic

import "strings"

var personalMarkers = []string{
	"saya",
	"aku",
	"punya saya",
	"milik saya",
	"ipk saya",
	"ips saya",
	"transkrip saya",
	"jadwal saya",
	"nilai saya",
}

// IsPersonalDocumentQuery reports whether the query asks about the user's
// own records rather than general academic knowledge.
func IsPersonalDocumentQuery(query string) bool {
	ql := strings.ToLower(query)
	for _, m := range personalMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

// InferDocType guesses which document type a query is about. Returns ""
// when the query implies neither.
func InferDocType(query string) string {
	ql := strings.ToLower(query)
	for _, k := range []string{"jadwal", "jam", "hari", "ruang", "kelas"} {
		if strings.Contains(ql, k) {
			return "schedule"
		}
	}
	for _, k := range []string{"transkrip", "nilai", "grade", "bobot", "ipk", "ips"} {
		if strings.Contains(ql, k) {
			return "transcript"
		}
	}
	if strings.Contains(ql, "krs") {
		return "schedule"
	}
	return ""
}

// ShouldAbstainNoGrounding decides that answering would be guessing: a
// personal question about grades or schedules with zero retrieved evidence
// must be refused rather than improvised.
func ShouldAbstainNoGrounding(docsCount int, docType string, isPersonal bool) bool {
	if docsCount > 0 || !isPersonal {
		return false
	}
	return docType == "schedule" || docType == "transcript"
}

// NoGroundingAnswer is the canned refusal for ungrounded personal queries.
func NoGroundingAnswer() string {
	return "## Ringkasan\n" +
		"Aku belum menemukan data dokumen yang cukup untuk menjawab pertanyaan personalmu secara akurat.\n\n" +
		"## Opsi Lanjut\n" +
		"- Pastikan dokumen KHS/Transkrip/Jadwal sudah terunggah dan berhasil diproses.\n" +
		"- Jika dokumen sudah ada, coba sebutkan nama file dengan `@nama_file` agar pencarian lebih presisi.\n" +
		"- Kamu juga bisa ulang pertanyaan dengan detail semester atau mata kuliah."
}
