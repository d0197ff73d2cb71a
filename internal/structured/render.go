package structured

import (
	"fmt"
	"regexp"
	"strings"

	"akademik-ai/internal/envelope"
)

// Profile holds student identity fields scraped from transcript text chunks.
type Profile struct {
	Nama           string
	NIM            string
	ProgramStudi   string
	SKSDitempuh    int
	HasSKSDitempuh bool
	SKSWajib       int
	HasSKSWajib    bool
	IPK            string
	PendingCourses []string
}

var ipkStatsMarkers = []string{
	"ipk",
	"ips",
	"sks",
	"total sks",
	"hasil studi",
	"progress studi",
	"statistik studi",
	"belum dinilai",
}

func isIPKOrStatsQuery(query string) bool {
	ql := strings.ToLower(query)
	for _, m := range ipkStatsMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

const noDataAnswer = "## Ringkasan\n" +
	"Maaf, data tidak ditemukan di dokumen Anda.\n\n" +
	"## Opsi Lanjut\n" +
	"- Pastikan dokumen KHS/Transkrip sudah terunggah.\n" +
	"- Jika ingin, sebutkan semester spesifik yang ingin direkap."

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return strings.TrimSpace(value)
}

// RenderTranscriptAnswer builds the deterministic markdown answer for grade
// queries. Low-grade queries get a compact table; stats-only queries skip
// the course table entirely.
func RenderTranscriptAnswer(rows []TranscriptRow, query string, profile Profile) string {
	if len(rows) == 0 {
		return noDataAnswer
	}

	if IsLowGradeQuery(query) {
		totalSKS := 0
		for _, r := range rows {
			totalSKS += r.SKS
		}
		lines := []string{
			"## Ringkasan Nilai Rendah",
			fmt.Sprintf("- Total mata kuliah: **%d**", len(rows)),
			fmt.Sprintf("- Total SKS: **%d**", totalSKS),
			"",
			"## Tabel",
			"| Semester | Mata Kuliah | SKS | Nilai Huruf |",
			"|---|---|---:|---|",
		}
		for _, r := range rows {
			lines = append(lines, fmt.Sprintf("| %d | %s | %d | %s |", r.Semester, r.MataKuliah, r.SKS, r.NilaiHuruf))
		}
		return strings.Join(lines, "\n")
	}

	totalSKS := 0
	for _, r := range rows {
		totalSKS += r.SKS
	}
	sksDitempuh := totalSKS
	if profile.HasSKSDitempuh {
		sksDitempuh = profile.SKSDitempuh
	}
	sksWajib := "-"
	if profile.HasSKSWajib {
		sksWajib = fmt.Sprintf("%d", profile.SKSWajib)
	}
	pendingLine := "- Mata kuliah belum dinilai: **-**"
	if len(profile.PendingCourses) > 0 {
		pendingLine = fmt.Sprintf("- Mata kuliah belum dinilai: **%s** (menunggu isi kuesioner)",
			strings.Join(profile.PendingCourses, ", "))
	}

	statsOnly := isIPKOrStatsQuery(query) && !IsCourseRecapQuery(query)

	intro := "Berdasarkan Kartu Hasil Studi, berikut rekap hasil studi kamu."
	if statsOnly {
		intro = "Berdasarkan Kartu Hasil Studi, berikut ringkasan hasil studi kamu."
	}
	lines := []string{
		intro,
		"",
		"## Informasi Umum",
		fmt.Sprintf("- Nama: **%s**", orDash(profile.Nama)),
		fmt.Sprintf("- NIM: **%s**", orDash(profile.NIM)),
		fmt.Sprintf("- Program Studi: **%s**", orDash(profile.ProgramStudi)),
		"",
		"## Statistik Studi",
		fmt.Sprintf("- Total mata kuliah terdata: **%d**", len(rows)),
		fmt.Sprintf("- Total SKS ditempuh: **%d SKS**", sksDitempuh),
		fmt.Sprintf("- SKS wajib: **%s SKS**", sksWajib),
		fmt.Sprintf("- IPK: **%s**", orDash(profile.IPK)),
		pendingLine,
	}
	if statsOnly {
		return strings.Join(lines, "\n")
	}

	pending := make(map[string]struct{}, len(profile.PendingCourses))
	for _, c := range profile.PendingCourses {
		pending[strings.ToLower(c)] = struct{}{}
	}

	lines = append(lines,
		"",
		"## Daftar Mata Kuliah",
		"| No | Mata Kuliah | SKS | Nilai |",
		"|---:|---|---:|---|",
	)
	for i, r := range rows {
		nilai := strings.ToUpper(r.NilaiHuruf)
		if _, ok := pending[strings.ToLower(r.MataKuliah)]; ok {
			nilai = "(Isi Kuesioner Terlebih Dahulu)"
		}
		lines = append(lines, fmt.Sprintf("| %d | %s | %d | %s |", i+1, r.MataKuliah, r.SKS, nilai))
	}
	return strings.Join(lines, "\n")
}

// RenderScheduleAnswer builds the deterministic markdown answer for
// schedule queries.
func RenderScheduleAnswer(rows []ScheduleRow, dayFilter string) string {
	if len(rows) == 0 {
		suffix := ""
		if dayFilter != "" {
			suffix = fmt.Sprintf(" untuk **%s**", dayFilter)
		}
		return "## Ringkasan\n" +
			fmt.Sprintf("Maaf, data tidak ditemukan di dokumen Anda%s.\n\n", suffix) +
			"## Opsi Lanjut\n" +
			"- Pastikan dokumen KRS/Jadwal sudah terunggah.\n" +
			"- Coba sebutkan hari yang ingin dicek, contoh: `jadwal hari senin`."
	}

	title := "## Ringkasan Jadwal"
	if dayFilter != "" {
		title = "## Ringkasan Jadwal " + dayFilter
	}
	lines := []string{
		title,
		fmt.Sprintf("- Total kelas: **%d**", len(rows)),
		"",
		"## Tabel",
		"| Hari | Jam | Mata Kuliah | Ruangan | Semester |",
		"|---|---|---|---|---:|",
	}
	for _, r := range rows {
		semester := "-"
		if r.Semester > 0 {
			semester = fmt.Sprintf("%d", r.Semester)
		}
		lines = append(lines, fmt.Sprintf("| %s | %s-%s | %s | %s | %s |",
			r.Hari, r.JamMulai, r.JamSelesai, r.MataKuliah, orDash(r.Ruangan), semester))
	}
	return strings.Join(lines, "\n")
}

// TranscriptSources builds envelope sources from transcript rows, one per
// distinct document location.
func TranscriptSources(rows []TranscriptRow, maxSources int) []envelope.Source {
	var out []envelope.Source
	seen := make(map[string]struct{})
	for _, r := range rows {
		label := sourceLabel(r.Source, r.Page)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, envelope.Source{
			Source: label,
			Snippet: fmt.Sprintf("semester=%d | mata_kuliah=%s | sks=%d | nilai_huruf=%s",
				r.Semester, r.MataKuliah, r.SKS, r.NilaiHuruf),
		})
		if len(out) >= maxSources {
			break
		}
	}
	return out
}

// ScheduleSources builds envelope sources from schedule rows.
func ScheduleSources(rows []ScheduleRow, maxSources int) []envelope.Source {
	var out []envelope.Source
	seen := make(map[string]struct{})
	for _, r := range rows {
		label := sourceLabel(r.Source, r.Page)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, envelope.Source{
			Source: label,
			Snippet: fmt.Sprintf("hari=%s | jam=%s-%s | mata_kuliah=%s | ruangan=%s",
				r.Hari, r.JamMulai, r.JamSelesai, r.MataKuliah, r.Ruangan),
		})
		if len(out) >= maxSources {
			break
		}
	}
	return out
}

func sourceLabel(source string, page int) string {
	if source == "" {
		source = "unknown"
	}
	if page > 0 {
		return fmt.Sprintf("%s (p.%d)", source, page)
	}
	return source
}

var (
	namaPattern        = regexp.MustCompile(`(?i)Nama\s*:\s*([A-Z ]+?)\s+Dosen\s+PA`)
	nimPattern         = regexp.MustCompile(`(?i)\bNIM\s*:?\s*(\d+)\b`)
	prodiInlinePattern = regexp.MustCompile(`(?i)Program\s+NIM\s*:?\s*\d+\s*:?\s*([A-Za-z ]+?)\s+Studi`)
	prodiPattern       = regexp.MustCompile(`(?i)Program\s+Studi\s*:?\s*([A-Za-z ]+)`)
	sksDitempuhPattern = regexp.MustCompile(`(?i)Jumlah\s+SKS\s+yang\s+telah\s+ditempuh\s*:?\s*(\d+)`)
	sksWajibPattern    = regexp.MustCompile(`(?i)SKS\s+yang\s+harus\s+ditempuh\s*:?\s*(\d+)`)
	ipkPattern         = regexp.MustCompile(`(?i)\bIPK\s*:?\s*([0-9]+(?:\.[0-9]+)?)`)
	kuesionerPattern   = regexp.MustCompile(`(?i)Isi\s+Kuisioner|Isi\s+Kuesioner`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// prodiStopWords are labels that follow the program name in the flattened
// header text; anything from the first stop word on is not part of the name.
var prodiStopWords = []string{"nim", "nama", "jumlah", "semester", "dosen", "ipk", "sks"}

func trimProdi(raw string) string {
	words := strings.Fields(raw)
	var kept []string
	for _, w := range words {
		stop := false
		for _, s := range prodiStopWords {
			if strings.EqualFold(w, s) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// Courses that show up ungraded while the evaluation questionnaire is open.
var knownPendingCourses = []string{"Pembelajaran Mendalam", "Skripsi"}

// ExtractTranscriptProfile scrapes identity and totals from transcript
// narrative chunks. The layout is the flattened text of the official KHS
// header, so matching is position-tolerant regex work.
func ExtractTranscriptProfile(textChunks []string) Profile {
	var parts []string
	for _, c := range textChunks {
		if t := strings.TrimSpace(c); t != "" {
			parts = append(parts, t)
		}
	}
	merged := strings.TrimSpace(whitespacePattern.ReplaceAllString(strings.Join(parts, " "), " "))

	profile := Profile{Nama: "-", NIM: "-", ProgramStudi: "-"}
	if merged == "" {
		return profile
	}

	if m := namaPattern.FindStringSubmatch(merged); m != nil {
		profile.Nama = strings.TrimSpace(m[1])
	}
	if m := nimPattern.FindStringSubmatch(merged); m != nil {
		profile.NIM = strings.TrimSpace(m[1])
	}
	if m := prodiInlinePattern.FindStringSubmatch(merged); m != nil {
		profile.ProgramStudi = trimProdi(m[1])
	} else if m := prodiPattern.FindStringSubmatch(merged); m != nil {
		profile.ProgramStudi = trimProdi(m[1])
	}
	if m := sksDitempuhPattern.FindStringSubmatch(merged); m != nil {
		if n, ok := toInt(m[1]); ok {
			profile.SKSDitempuh = n
			profile.HasSKSDitempuh = true
		}
	}
	if m := sksWajibPattern.FindStringSubmatch(merged); m != nil {
		if n, ok := toInt(m[1]); ok {
			profile.SKSWajib = n
			profile.HasSKSWajib = true
		}
	}
	if m := ipkPattern.FindStringSubmatch(merged); m != nil {
		profile.IPK = strings.TrimSpace(m[1])
	}

	if kuesionerPattern.MatchString(merged) {
		for _, course := range knownPendingCourses {
			if strings.Contains(strings.ToLower(merged), strings.ToLower(course)) {
				profile.PendingCourses = append(profile.PendingCourses, course)
			}
		}
	}
	return profile
}
