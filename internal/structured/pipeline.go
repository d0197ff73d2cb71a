package structured

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
	"akademik-ai/internal/router"
	"akademik-ai/internal/storage"
)

// Request carries everything the analytics pipeline needs for one query.
type Request struct {
	UserID             int64
	Query              string
	IntentRoute        router.Route
	HasDocuments       bool
	ResolvedDocIDs     []string
	ResolvedTitles     []string
	UnresolvedMentions []string
}

// Options tune pipeline behavior; zero values disable the optional stages.
type Options struct {
	Enabled                 bool
	StrictTranscriptEnabled bool
	LowGrades               []string
	Timezone                *time.Location
	MaxSources              int
}

// Pipeline answers tabular queries straight from stored row chunks.
type Pipeline struct {
	chunks    storage.ChunkStore
	docs      storage.DocumentStore
	polisher  *Polisher
	opts      Options
	lowGrades map[string]struct{}
	now       func() time.Time
}

func NewPipeline(chunks storage.ChunkStore, docs storage.DocumentStore, polisher *Polisher, opts Options) *Pipeline {
	if opts.MaxSources <= 0 {
		opts.MaxSources = 8
	}
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if len(opts.LowGrades) == 0 {
		opts.LowGrades = []string{"C", "D", "E", "CD", "D+", "D-"}
	}
	lowGrades := make(map[string]struct{}, len(opts.LowGrades))
	for _, g := range opts.LowGrades {
		if v := strings.ToUpper(strings.TrimSpace(g)); v != "" {
			lowGrades[v] = struct{}{}
		}
	}
	return &Pipeline{
		chunks:    chunks,
		docs:      docs,
		polisher:  polisher,
		opts:      opts,
		lowGrades: lowGrades,
		now:       time.Now,
	}
}

var scheduleQueryMarkers = []string{"jadwal", "krs", "hari"}

var strictTranscriptMarkers = []string{"transkrip", "khs", "tabel mentah", "data mentah"}

// IsStrictTranscriptMode reports whether the user asked for raw transcript
// data, which pins the answer to the deterministic table and forbids any
// fallback to semantic retrieval.
func (p *Pipeline) IsStrictTranscriptMode(query, docType string) bool {
	if !p.opts.StrictTranscriptEnabled || docType != "transcript" {
		return false
	}
	ql := strings.ToLower(query)
	for _, m := range strictTranscriptMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

var gradeQueryMarkers = []string{"nilai", "grade", "bobot", "mutu", "ipk", "ips"}

func wantsGrade(query string) bool {
	ql := strings.ToLower(query)
	for _, m := range gradeQueryMarkers {
		if strings.Contains(ql, m) {
			return true
		}
	}
	return false
}

// Run executes the structured analytics pipeline. A nil envelope with a nil
// error means the query is not for this pipeline and the caller should fall
// through to semantic retrieval.
func (p *Pipeline) Run(ctx context.Context, req Request) (*envelope.Envelope, error) {
	if !p.opts.Enabled || req.IntentRoute != router.RouteAnalyticalTabular || !req.HasDocuments {
		return nil, nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	ql := strings.ToLower(req.Query)
	docType := "transcript"
	for _, m := range scheduleQueryMarkers {
		if strings.Contains(ql, m) {
			docType = "schedule"
			break
		}
	}

	lowGrade := IsLowGradeQuery(req.Query)
	courseRecap := IsCourseRecapQuery(req.Query)

	rowChunks, err := p.chunks.ListRows(ctx, req.UserID, docType, req.ResolvedDocIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s row chunks: %w", docType, err)
	}

	// A grade question against a schedule-only corpus switches the table; a
	// full-recap question without transcript rows can still answer from the
	// schedule.
	if docType == "transcript" && len(rowChunks) == 0 && !lowGrade && courseRecap {
		fallback, err := p.chunks.ListRows(ctx, req.UserID, "schedule", req.ResolvedDocIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to list fallback schedule chunks: %w", err)
		}
		if len(fallback) > 0 {
			logger.InfoContext(ctx, "no transcript rows, answering recap from schedule",
				"schedule_rows", len(fallback),
			)
			docType = "schedule"
			rowChunks = fallback
		}
	}

	if len(rowChunks) == 0 {
		if p.IsStrictTranscriptMode(req.Query, docType) {
			return p.strictNoDataEnvelope(req), nil
		}
		if guard := p.columnGuardEnvelope(ctx, req); guard != nil {
			return guard, nil
		}
		logger.InfoContext(ctx, "no row chunks, deferring to semantic retrieval", "doc_type", docType)
		return nil, nil
	}

	sourceByDoc, err := p.sourceLabels(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if docType == "transcript" {
		return p.runTranscript(ctx, req, rowChunks, sourceByDoc)
	}
	return p.runSchedule(ctx, req, rowChunks, sourceByDoc)
}

// sourceLabels maps doc IDs to their display source (original filename,
// falling back to title).
func (p *Pipeline) sourceLabels(ctx context.Context, userID int64) (map[string]string, error) {
	docs, err := p.docs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for source labels: %w", err)
	}
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		label := d.Source
		if label == "" {
			label = d.Title
		}
		out[d.ID] = label
	}
	return out, nil
}

func (p *Pipeline) runTranscript(ctx context.Context, req Request, rowChunks []storage.ChunkRecord, sourceByDoc map[string]string) (*envelope.Envelope, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var rows []TranscriptRow
	for _, c := range rowChunks {
		if row, ok := NormalizeTranscriptRow(c.Text, sourceByDoc[c.DocID], c.Page); ok {
			rows = append(rows, row)
		}
	}
	deduped := DedupeTranscriptLatest(rows)
	filtered := deduped

	if semester, ok := ExtractSemesterFilter(req.Query); ok {
		filtered = filterTranscript(filtered, func(r TranscriptRow) bool { return r.Semester == semester })
	}
	if IsLowGradeQuery(req.Query) {
		filtered = filterTranscript(filtered, func(r TranscriptRow) bool {
			_, low := p.lowGrades[strings.ToUpper(r.NilaiHuruf)]
			return low
		})
	}
	if term := ExtractCourseQueryTerm(req.Query); term != "" && !IsFullRecapRequested(req.Query) {
		termLC := strings.ToLower(term)
		byCourse := filterTranscript(filtered, func(r TranscriptRow) bool {
			return strings.Contains(strings.ToLower(r.MataKuliah), termLC)
		})
		// An unmatched course term keeps the wider set instead of going empty.
		if len(byCourse) > 0 {
			filtered = byCourse
		}
	}

	textChunks, err := p.chunks.ListTexts(ctx, req.UserID, "transcript", req.ResolvedDocIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript text chunks: %w", err)
	}
	texts := make([]string, 0, len(textChunks))
	for _, c := range textChunks {
		texts = append(texts, c.Text)
	}
	profile := ExtractTranscriptProfile(texts)

	answer := RenderTranscriptAnswer(filtered, req.Query, profile)
	sourceRows := filtered
	if len(sourceRows) == 0 {
		sourceRows = deduped
	}

	answerMode := ClassifyAnswerMode(req.Query)
	validation := envelope.ValidationSkipped
	if p.IsStrictTranscriptMode(req.Query, "transcript") {
		validation = envelope.ValidationSkippedStrict
	} else if p.polisher != nil {
		facts := make([]Fact, 0, len(filtered))
		for _, r := range filtered {
			facts = append(facts, Fact{Course: r.MataKuliah, Detail: r.NilaiHuruf})
		}
		answer, validation = p.polisher.Polish(ctx, req.Query, answer, facts)
	}
	answer = appendUnresolvedNote(answer, req.UnresolvedMentions)

	logger.InfoContext(ctx, "structured transcript answer built",
		"raw", len(rows),
		"deduped", len(deduped),
		"returned", len(filtered),
		"validation", validation,
	)

	env := &envelope.Envelope{
		Answer:  answer,
		Sources: TranscriptSources(sourceRows, p.opts.MaxSources),
		Meta: envelope.Meta{
			Mode:                "structured_transcript",
			Pipeline:            envelope.PipelineStructuredAnalytics,
			IntentRoute:         string(req.IntentRoute),
			Validation:          validation,
			AnswerMode:          answerMode,
			AnalyticsStats:      envelope.AnalyticsStats{Raw: len(rows), Deduped: len(deduped), Returned: len(filtered)},
			ReferencedDocuments: req.ResolvedTitles,
			UnresolvedMentions:  req.UnresolvedMentions,
			RetrievalDocsCount:  len(filtered),
			StructuredReturned:  len(filtered),
		},
	}
	env.Normalize()
	return env, nil
}

func (p *Pipeline) runSchedule(ctx context.Context, req Request, rowChunks []storage.ChunkRecord, sourceByDoc map[string]string) (*envelope.Envelope, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var rows []ScheduleRow
	for _, c := range rowChunks {
		if row, ok := NormalizeScheduleRow(c.Text, sourceByDoc[c.DocID], c.Page); ok {
			rows = append(rows, row)
		}
	}

	dayFilter := ExtractDayFilter(req.Query, p.opts.Timezone, p.now)
	filtered := rows
	if dayFilter != "" {
		filtered = nil
		for _, r := range rows {
			if strings.EqualFold(r.Hari, dayFilter) {
				filtered = append(filtered, r)
			}
		}
	}
	sortScheduleRows(filtered)

	answer := RenderScheduleAnswer(filtered, dayFilter)
	sourceRows := filtered
	if len(sourceRows) == 0 {
		sourceRows = rows
	}

	validation := envelope.ValidationSkipped
	if p.polisher != nil {
		facts := make([]Fact, 0, len(filtered))
		for _, r := range filtered {
			facts = append(facts, Fact{Course: r.MataKuliah, Detail: r.Hari})
		}
		answer, validation = p.polisher.Polish(ctx, req.Query, answer, facts)
	}
	answer = appendUnresolvedNote(answer, req.UnresolvedMentions)

	logger.InfoContext(ctx, "structured schedule answer built",
		"raw", len(rows),
		"returned", len(filtered),
		"day_filter", dayFilter,
		"validation", validation,
	)

	env := &envelope.Envelope{
		Answer:  answer,
		Sources: ScheduleSources(sourceRows, p.opts.MaxSources),
		Meta: envelope.Meta{
			Mode:                "structured_schedule",
			Pipeline:            envelope.PipelineStructuredAnalytics,
			IntentRoute:         string(req.IntentRoute),
			Validation:          validation,
			AnswerMode:          AnswerModeFactual,
			AnalyticsStats:      envelope.AnalyticsStats{Raw: len(rows), Deduped: len(rows), Returned: len(filtered)},
			ReferencedDocuments: req.ResolvedTitles,
			UnresolvedMentions:  req.UnresolvedMentions,
			RetrievalDocsCount:  len(filtered),
			StructuredReturned:  len(filtered),
		},
	}
	env.Normalize()
	return env, nil
}

func filterTranscript(rows []TranscriptRow, keep func(TranscriptRow) bool) []TranscriptRow {
	var out []TranscriptRow
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

var weekdayOrder = map[string]int{
	"Senin": 0, "Selasa": 1, "Rabu": 2, "Kamis": 3, "Jumat": 4, "Sabtu": 5, "Minggu": 6,
}

func sortScheduleRows(rows []ScheduleRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, okI := weekdayOrder[rows[i].Hari]
		dj, okJ := weekdayOrder[rows[j].Hari]
		if !okI {
			di = len(weekdayOrder)
		}
		if !okJ {
			dj = len(weekdayOrder)
		}
		if di != dj {
			return di < dj
		}
		if rows[i].JamMulai != rows[j].JamMulai {
			return rows[i].JamMulai < rows[j].JamMulai
		}
		return rows[i].MataKuliah < rows[j].MataKuliah
	})
}

func appendUnresolvedNote(answer string, unresolved []string) string {
	if len(unresolved) == 0 {
		return answer
	}
	tagged := make([]string, len(unresolved))
	for i, m := range unresolved {
		tagged[i] = "@" + m
	}
	return strings.TrimSpace(answer) + "\n\n" +
		fmt.Sprintf("Catatan rujukan: ada file yang tidak ditemukan (%s).", strings.Join(tagged, ", "))
}

// strictNoDataEnvelope is the answer when raw transcript data was demanded
// but no transcript rows exist. Strict mode never falls back to semantic
// retrieval, so the miss is reported as-is.
func (p *Pipeline) strictNoDataEnvelope(req Request) *envelope.Envelope {
	env := &envelope.Envelope{
		Answer: "## Ringkasan\n" +
			"Maaf, data tidak ditemukan di dokumen Anda.\n\n" +
			"## Opsi Lanjut\n" +
			"- Pastikan dokumen KHS/Transkrip sudah terunggah.\n" +
			"- Jika sudah, coba unggah ulang dokumen lalu ulangi pertanyaan.",
		Meta: envelope.Meta{
			Mode:                "structured_transcript",
			Pipeline:            envelope.PipelineStructuredAnalytics,
			IntentRoute:         string(req.IntentRoute),
			Validation:          envelope.ValidationStrictNoFallback,
			ReferencedDocuments: req.ResolvedTitles,
			UnresolvedMentions:  req.UnresolvedMentions,
		},
	}
	env.Normalize()
	return env
}

var gradeColumns = map[string]struct{}{
	"grade": {}, "bobot": {}, "nilai": {}, "nilai_huruf": {},
}

// columnGuardEnvelope catches grade questions against documents that carry
// no grade column at all, instead of letting the LLM hallucinate a recap.
// Returns nil when the guard does not apply.
func (p *Pipeline) columnGuardEnvelope(ctx context.Context, req Request) *envelope.Envelope {
	if !wantsGrade(req.Query) {
		return nil
	}
	docs, err := p.docs.ListByUser(ctx, req.UserID)
	if err != nil || len(docs) == 0 {
		return nil
	}

	var allowedCols []string
	seen := make(map[string]struct{})
	for _, d := range docs {
		for _, col := range d.Columns {
			if _, ok := gradeColumns[strings.ToLower(strings.TrimSpace(col))]; ok {
				return nil
			}
			if _, dup := seen[col]; !dup {
				seen[col] = struct{}{}
				allowedCols = append(allowedCols, col)
			}
		}
	}
	if len(allowedCols) == 0 {
		return nil
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "grade requested but no grade column available",
		"columns", strings.Join(allowedCols, ","),
	)

	env := &envelope.Envelope{
		Answer: "## Ringkasan\n" +
			"Aku menemukan data mata kuliah/jadwal dari dokumen kamu, tapi **data nilai (Grade/Bobot) tidak ada** di dokumen yang terunggah.\n\n" +
			"## Tabel\n" +
			"_Aku belum bisa menampilkan rekap nilai karena kolom nilai tidak tersedia di dokumen._\n\n" +
			"## Insight Singkat\n" +
			fmt.Sprintf("- Kolom yang tersedia saat ini: **%s**\n", strings.Join(allowedCols, ", ")) +
			"- Jika kamu upload transkrip/KHS yang memuat nilai huruf/bobot, aku bisa rekap nilai dari semester awal sampai akhir.\n\n" +
			"## Pertanyaan Lanjutan\n" +
			"Kamu mau aku rekap apa dulu berdasarkan data yang ada?\n\n" +
			"## Opsi Cepat\n" +
			"- [Rekap mata kuliah per semester]\n" +
			"- [Hitung total SKS]",
		Meta: envelope.Meta{
			Mode:                "structured_transcript",
			Pipeline:            envelope.PipelineStructuredAnalytics,
			IntentRoute:         string(req.IntentRoute),
			Validation:          envelope.ValidationNoGroundingEvidence,
			AnswerMode:          AnswerModeFactual,
			ReferencedDocuments: req.ResolvedTitles,
			UnresolvedMentions:  req.UnresolvedMentions,
		},
	}
	env.Normalize()
	return env
}
