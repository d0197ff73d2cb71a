// Package structured answers tabular queries (grades, schedules) directly
// from indexed row chunks, without going through the vector index or an LLM
// for the facts themselves.
package structured

import (
	"regexp"
	"strconv"
	"strings"
)

// dayCanon maps lowercase day spellings (Indonesian and English) to the
// canonical Indonesian form used in answers.
var dayCanon = map[string]string{
	"senin":     "Senin",
	"selasa":    "Selasa",
	"rabu":      "Rabu",
	"kamis":     "Kamis",
	"jumat":     "Jumat",
	"sabtu":     "Sabtu",
	"minggu":    "Minggu",
	"monday":    "Senin",
	"tuesday":   "Selasa",
	"wednesday": "Rabu",
	"thursday":  "Kamis",
	"friday":    "Jumat",
	"saturday":  "Sabtu",
	"sunday":    "Minggu",
}

// TranscriptRow is one normalized grade entry.
type TranscriptRow struct {
	Semester   int
	MataKuliah string
	SKS        int
	NilaiHuruf string
	Source     string
	Page       int
}

// ScheduleRow is one normalized class meeting.
type ScheduleRow struct {
	Hari       string
	JamMulai   string
	JamSelesai string
	MataKuliah string
	Ruangan    string
	Semester   int // 0 when unknown
	Source     string
	Page       int
}

var (
	nonLetterPattern = regexp.MustCompile(`[^a-z]+`)
	hhmmPattern      = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	timeRangePattern = regexp.MustCompile(`(\d{1,2}[:.]\d{2})\s*-\s*(\d{1,2}[:.]\d{2})`)
)

func toInt(value string) (int, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// normalizeDay canonicalizes a day name, tolerating OCR-reversed words
// (e.g. "nineS" for "Senin").
func normalizeDay(value string) string {
	raw := strings.ToLower(strings.TrimSpace(value))
	letters := nonLetterPattern.ReplaceAllString(raw, "")
	if letters == "" {
		return strings.TrimSpace(value)
	}
	if day, ok := dayCanon[letters]; ok {
		return day
	}
	if day, ok := dayCanon[reverse(letters)]; ok {
		return day
	}
	return strings.TrimSpace(value)
}

func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// normalizeHHMM extracts a zero-padded HH:MM from free-form time text.
// Dots are accepted as separators. Returns "" when no valid time is found.
func normalizeHHMM(value string) string {
	txt := strings.ReplaceAll(strings.TrimSpace(value), ".", ":")
	m := hhmmPattern.FindStringSubmatch(txt)
	if m == nil {
		return ""
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return ""
	}
	return twoDigits(hh) + ":" + twoDigits(mm)
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// parseKeyValueChunk splits a "key=value | key=value" row serialization
// into a map. An optional "label:" prefix before the first pair is dropped.
func parseKeyValueChunk(text string) map[string]string {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil
	}
	body := raw
	if idx := strings.Index(raw, ":"); idx >= 0 && !strings.Contains(raw[:idx], "=") {
		body = raw[idx+1:]
	}

	out := make(map[string]string)
	for _, part := range strings.Split(body, "|") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		if key != "" {
			out[key] = strings.TrimSpace(v)
		}
	}
	return out
}

// NormalizeTranscriptRow parses a transcript row chunk. Rows missing any of
// the required fields are dropped rather than guessed at.
func NormalizeTranscriptRow(text, source string, page int) (TranscriptRow, bool) {
	kv := parseKeyValueChunk(text)

	semester, okSem := toInt(kv["semester"])
	course := kv["mata_kuliah"]
	if course == "" {
		course = kv["matakuliah"]
	}
	sks, okSKS := toInt(kv["sks"])
	grade := strings.ToUpper(strings.TrimSpace(kv["nilai_huruf"]))

	if course == "" || !okSem || !okSKS || grade == "" {
		return TranscriptRow{}, false
	}
	if source == "" {
		source = "unknown"
	}
	return TranscriptRow{
		Semester:   semester,
		MataKuliah: course,
		SKS:        sks,
		NilaiHuruf: grade,
		Source:     source,
		Page:       page,
	}, true
}

// NormalizeScheduleRow parses a schedule row chunk. A combined "jam" range
// is accepted when jam_mulai/jam_selesai are absent.
func NormalizeScheduleRow(text, source string, page int) (ScheduleRow, bool) {
	kv := parseKeyValueChunk(text)

	day := kv["hari"]
	if day == "" {
		day = kv["day"]
	}
	hari := normalizeDay(day)

	course := kv["mata_kuliah"]
	if course == "" {
		course = kv["matakuliah"]
	}
	room := kv["ruangan"]
	if room == "" {
		room = kv["ruang"]
	}
	if room == "" {
		room = kv["room"]
	}
	semester, _ := toInt(kv["semester"])

	jamMulai := normalizeHHMM(kv["jam_mulai"])
	jamSelesai := normalizeHHMM(kv["jam_selesai"])
	if jamMulai == "" || jamSelesai == "" {
		if m := timeRangePattern.FindStringSubmatch(kv["jam"]); m != nil {
			jamMulai = normalizeHHMM(m[1])
			jamSelesai = normalizeHHMM(m[2])
		}
	}

	if course == "" || hari == "" || jamMulai == "" || jamSelesai == "" {
		return ScheduleRow{}, false
	}
	if source == "" {
		source = "unknown"
	}
	return ScheduleRow{
		Hari:       hari,
		JamMulai:   jamMulai,
		JamSelesai: jamSelesai,
		MataKuliah: course,
		Ruangan:    room,
		Semester:   semester,
		Source:     source,
		Page:       page,
	}, true
}
