package semantic

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/llm"
	"akademik-ai/internal/textutil"
)

// Invoker is the LLM surface the answer stage needs.
type Invoker interface {
	InvokeMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Result, error)
}

// Answerer turns retrieved context into a grounded answer.
type Answerer struct {
	llm                Invoker
	maxContextChars    int
	maxContextDocs     int
	citationEnrichment bool
}

func NewAnswerer(invoker Invoker, maxContextChars int, citationEnrichment bool) *Answerer {
	if maxContextChars <= 0 {
		maxContextChars = 6000
	}
	return &Answerer{
		llm:                invoker,
		maxContextChars:    maxContextChars,
		maxContextDocs:     8,
		citationEnrichment: citationEnrichment,
	}
}

// AnswerResult is the outcome of the answer stage.
type AnswerResult struct {
	Text         string
	Model        string
	FallbackUsed bool
	LLMMs        int64
}

// BuildPrompt assembles the grounded QA prompt: numbered context blocks
// capped by character budget, then the question.
func (a *Answerer) BuildPrompt(query string, docs []Doc) string {
	var blocks []string
	total := 0
	for i, d := range docs {
		if i >= a.maxContextDocs {
			break
		}
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		remaining := a.maxContextChars - total
		if remaining <= 0 {
			break
		}
		if len(text) > remaining {
			// Back off to a rune boundary so the cut never splits UTF-8.
			cut := remaining
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		blocks = append(blocks, fmt.Sprintf("[DOC %d]\n%s", i+1, text))
		total += len(text)
	}

	contextBlock := strings.TrimSpace(strings.Join(blocks, "\n\n"))
	if contextBlock == "" {
		contextBlock = "(kosong)"
	}
	return "Anda adalah asisten akademik. Jawab ringkas, akurat, dan hanya berdasarkan konteks.\n" +
		"Jika konteks tidak cukup, katakan data tidak cukup.\n\n" +
		fmt.Sprintf("Pertanyaan:\n%s\n\nKonteks:\n%s\n\nJawaban:", query, contextBlock)
}

var semesterRangePattern = regexp.MustCompile(`semester\s*\d+\s*(?:-|s/d|sd|sampai|to)\s*\d+`)

// isMultiSemesterRecapQuery detects recap-across-semesters questions, which
// get extra instructions so the model does not drop or shuffle rows.
func isMultiSemesterRecapQuery(query string) bool {
	ql := strings.ToLower(query)
	if !strings.Contains(ql, "semester") {
		return false
	}
	hasRecap := false
	for _, k := range []string{"rekap", "ringkas", "rangkum", "semua", "keseluruhan"} {
		if strings.Contains(ql, k) {
			hasRecap = true
			break
		}
	}
	hasRange := semesterRangePattern.MatchString(ql)
	hasWords := false
	for _, k := range []string{"awal sampai akhir", "semua semester", "dari semester"} {
		if strings.Contains(ql, k) {
			hasWords = true
			break
		}
	}
	hasCourseFocus := false
	for _, k := range []string{"mata kuliah", "sks", "transkrip", "khs", "krs"} {
		if strings.Contains(ql, k) {
			hasCourseFocus = true
			break
		}
	}
	return (hasRecap || hasRange || hasWords) && hasCourseFocus
}

// BuildPromptQuery augments the user question with referenced-document
// priority and, for multi-semester recaps, strict tabular instructions.
func BuildPromptQuery(query string, resolvedTitles []string) string {
	q := strings.TrimSpace(query)
	if len(resolvedTitles) > 0 {
		q = q + "\n\n" +
			fmt.Sprintf("[Referenced Documents]\n%s\n", strings.Join(resolvedTitles, ", ")) +
			"Instruksi: prioritaskan dokumen rujukan ini sebagai sumber utama; " +
			"jika tidak cukup, jelaskan batasannya lalu beri fallback umum."
	}
	if isMultiSemesterRecapQuery(q) {
		q = q + "\n\n" +
			"[Instruksi Rekap Ketat]\n" +
			"- Gunakan HANYA data di context.\n" +
			"- Jangan hilangkan baris mata kuliah jika ada di context.\n" +
			"- Jangan menukar semester antar mata kuliah.\n" +
			"- Jika kolom kosong, tulis '-'.\n" +
			"- Jangan hitung total SKS jika tidak diminta eksplisit.\n"
	}
	return q
}

func hasCitation(text string) bool {
	return strings.Contains(strings.ToLower(text), "[source:")
}

func buildCitationPrompt(answer string) string {
	return "Perbaiki jawaban agar setiap klaim faktual spesifik menyertakan sitasi `[source: ...]` " +
		"berdasarkan konteks yang sama. Jangan tambah fakta baru.\n\n" +
		"Jawaban saat ini:\n" + answer
}

// Answer runs the grounded QA call, then optional citation enrichment, and
// finishes with the contextual notes every semantic answer carries.
func (a *Answerer) Answer(ctx context.Context, query string, docs []Doc, mode string, resolvedTitles, unresolvedMentions []string) (*AnswerResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	prompt := a.BuildPrompt(BuildPromptQuery(query, resolvedTitles), docs)
	result, err := a.llm.InvokeMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.ChatParams{})
	if err != nil {
		return nil, err
	}

	answer := strings.TrimSpace(result.Text)
	if answer == "" {
		answer = "Maaf, tidak ada jawaban."
	}
	llmMs := result.Duration.Milliseconds()

	if len(docs) > 0 && !hasCitation(answer) && a.citationEnrichment {
		cited, err := a.llm.InvokeMessages(ctx,
			[]llm.Message{{Role: "user", Content: buildCitationPrompt(answer)}},
			llm.ChatParams{Model: result.Model},
		)
		if err != nil {
			logger.WarnContext(ctx, "citation enrichment failed, keeping uncited answer", "error", err)
		} else if text := strings.TrimSpace(cited.Text); text != "" && hasCitation(text) {
			answer = text
			llmMs += cited.Duration.Milliseconds()
		}
	}

	if mode == ModeDocReferenced && len(docs) == 0 {
		answer = strings.TrimSpace(answer) + "\n\n" +
			"Catatan: Aku belum menemukan konteks kuat dari file rujukan, jadi jawaban ini " +
			"lebih bersifat panduan umum."
	}
	if len(unresolvedMentions) > 0 {
		tagged := make([]string, len(unresolvedMentions))
		for i, m := range unresolvedMentions {
			tagged[i] = "@" + m
		}
		answer = strings.TrimSpace(answer) + "\n\n" +
			fmt.Sprintf("Catatan rujukan: ada file yang tidak ditemukan (%s).", strings.Join(tagged, ", "))
	}
	answer = textutil.Tidy(answer)

	return &AnswerResult{
		Text:         answer,
		Model:        result.Model,
		FallbackUsed: result.FallbackUsed,
		LLMMs:        llmMs,
	}, nil
}
