package structured

import (
	"regexp"
	"strings"
	"time"
)

// gradePriority ranks letter grades for dedup: when a course appears twice
// in the same semester, the better grade wins (retake scenario).
var gradePriority = map[string]int{
	"A":  100,
	"A-": 96,
	"AB": 94,
	"B+": 90,
	"B":  86,
	"B-": 82,
	"BC": 80,
	"C+": 76,
	"C":  72,
	"C-": 68,
	"CD": 66,
	"D+": 62,
	"D":  58,
	"D-": 54,
	"E":  0,
}

// DedupeTranscriptLatest keeps one row per course: the highest semester,
// and within a semester the best grade.
func DedupeTranscriptLatest(rows []TranscriptRow) []TranscriptRow {
	slot := make(map[string]TranscriptRow)
	var order []string
	for _, row := range rows {
		key := strings.ToLower(strings.TrimSpace(row.MataKuliah))
		if key == "" {
			continue
		}
		current, ok := slot[key]
		if !ok {
			slot[key] = row
			order = append(order, key)
			continue
		}
		if row.Semester > current.Semester {
			slot[key] = row
			continue
		}
		if row.Semester == current.Semester {
			newScore, okNew := gradePriority[row.NilaiHuruf]
			oldScore, okOld := gradePriority[current.NilaiHuruf]
			if !okNew {
				newScore = -1
			}
			if !okOld {
				oldScore = -1
			}
			if newScore > oldScore {
				slot[key] = row
			}
		}
	}

	out := make([]TranscriptRow, 0, len(slot))
	for _, key := range order {
		out = append(out, slot[key])
	}
	return out
}

var lowGradeMarkers = []string{
	"nilai rendah",
	"nilai jelek",
	"yang rendah",
	"tidak lulus",
	"ngulang",
	"ulang matkul",
}

// IsLowGradeQuery reports whether the user asks specifically about low or
// failing grades.
func IsLowGradeQuery(query string) bool {
	ql := strings.ToLower(query)
	for _, m := range lowGradeMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

var recapMarkers = []string{"rekap", "ringkas", "rangkum", "semua", "daftar"}

// IsCourseRecapQuery reports whether the query asks for a course listing
// rather than a single value.
func IsCourseRecapQuery(query string) bool {
	ql := strings.ToLower(query)
	if strings.Contains(ql, "mata kuliah") || strings.Contains(ql, "matakuliah") {
		return true
	}
	for _, m := range recapMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

// IsFullRecapRequested reports whether the query explicitly asks for the
// whole list, which disables course-term narrowing.
func IsFullRecapRequested(query string) bool {
	ql := strings.ToLower(query)
	for _, m := range recapMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

var weekdays = []string{"Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu", "Minggu"}

// ExtractDayFilter finds an explicit day name in the query, or resolves
// "hari ini"/"today" against the configured timezone. When several days are
// named, the one mentioned first wins.
func ExtractDayFilter(query string, loc *time.Location, now func() time.Time) string {
	ql := strings.ToLower(query)
	earliest := -1
	day := ""
	for raw, canon := range dayCanon {
		if idx := strings.Index(ql, raw); idx >= 0 && (earliest < 0 || idx < earliest) {
			earliest = idx
			day = canon
		}
	}
	if day != "" {
		return day
	}
	if strings.Contains(ql, "hari ini") || strings.Contains(ql, "today") {
		if loc == nil || now == nil {
			return ""
		}
		// time.Weekday starts at Sunday; the canonical week starts at Senin.
		idx := (int(now().In(loc).Weekday()) + 6) % 7
		return weekdays[idx]
	}
	return ""
}

var semesterPattern = regexp.MustCompile(`\bsemester\s*(\d{1,2})\b`)

// ExtractSemesterFilter pulls an explicit semester number from the query.
func ExtractSemesterFilter(query string) (int, bool) {
	m := semesterPattern.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return 0, false
	}
	n, ok := toInt(m[1])
	return n, ok
}

var (
	quotedTermPattern = regexp.MustCompile(`['"]([^'"]{3,120})['"]`)
	courseTermPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:nilai|matakuliah|mata kuliah|mk)\s+(?:untuk|dari|pada)?\s*([a-z0-9 .\-]{4,120})`),
		regexp.MustCompile(`(?i)(?:bagaimana|gimana|rekap)\s+(?:nilai|hasil)\s+([a-z0-9 .\-]{4,120})`),
	}
	courseTermPrefix = regexp.MustCompile(`(?i)^(mata\s+kuliah|matakuliah)\s+`)
)

var courseTermStopSuffixes = []string{
	" saya berapa",
	" berapa",
	" saya",
	" ku",
	" ini",
	" dong",
	" ya",
	" sekarang",
	" ?",
	",",
}

// ExtractCourseQueryTerm pulls a course name out of the query, preferring a
// quoted phrase. Returns "" when nothing usable is found.
func ExtractCourseQueryTerm(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return ""
	}

	if m := quotedTermPattern.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1])
	}

	ql := strings.ToLower(q)
	for _, p := range courseTermPatterns {
		m := p.FindStringSubmatch(ql)
		if m == nil {
			continue
		}
		term := strings.TrimSpace(m[1])
		if term == "" {
			continue
		}
		for _, suffix := range courseTermStopSuffixes {
			term = strings.TrimSpace(strings.TrimSuffix(term, suffix))
		}
		term = strings.TrimSpace(courseTermPrefix.ReplaceAllString(term, ""))
		if len(term) >= 4 {
			return term
		}
	}
	return ""
}
