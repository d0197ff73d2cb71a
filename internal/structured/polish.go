package structured

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"akademik-ai/internal/contextutil"
	"akademik-ai/internal/envelope"
	"akademik-ai/internal/llm"
)

// Invoker is the LLM surface the polish stage needs.
type Invoker interface {
	InvokeMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (llm.Result, error)
}

// Fact is one deterministic statement the polished answer must preserve.
type Fact struct {
	Course string
	Detail string
}

// Polisher rewrites a deterministic answer into friendlier prose while a
// validator guarantees no fact is dropped or invented.
type Polisher struct {
	llm         Invoker
	model       string
	temperature float64
	validate    bool
}

func NewPolisher(invoker Invoker, model string, temperature float64, validate bool) *Polisher {
	return &Polisher{llm: invoker, model: model, temperature: temperature, validate: validate}
}

const polishSystemPrompt = "Kamu adalah asisten akademik. Tugasmu menyusun ulang jawaban " +
	"agar lebih enak dibaca TANPA mengubah satu pun angka, nilai, nama mata kuliah, " +
	"atau jumlah baris data. Dilarang menambah data baru. Pertahankan tabel markdown " +
	"apa adanya bila ada. Jawab dalam Bahasa Indonesia."

// Polish runs the draft answer through the LLM and validates the result.
// It returns the answer to use plus the validation state for the envelope.
func (p *Polisher) Polish(ctx context.Context, query, draft string, facts []Fact) (string, string) {
	if p == nil || p.llm == nil {
		return draft, envelope.ValidationSkipped
	}
	logger := contextutil.LoggerFromContext(ctx)

	prompt := fmt.Sprintf(
		"Pertanyaan pengguna:\n%s\n\nJawaban dasar (fakta sudah final):\n%s\n\n"+
			"Susun ulang jawaban di atas agar ramah dan terstruktur. "+
			"Jangan mengubah, menambah, atau menghapus fakta apa pun.",
		query, draft,
	)
	messages := []llm.Message{
		{Role: "system", Content: polishSystemPrompt},
		{Role: "user", Content: prompt},
	}

	result, err := p.llm.InvokeMessages(ctx, messages, llm.ChatParams{
		Model:       p.model,
		Temperature: p.temperature,
	})
	if err != nil {
		logger.WarnContext(ctx, "polish call failed, keeping draft answer", "error", err)
		return draft, envelope.ValidationFailedFallback
	}

	polished := strings.TrimSpace(result.Text)
	if polished == "" {
		return draft, envelope.ValidationFailedFallback
	}
	if !p.validate {
		return polished, envelope.ValidationSkipped
	}
	if err := ValidatePolished(draft, polished, facts); err != nil {
		logger.WarnContext(ctx, "polished answer failed validation, keeping draft",
			"reason", err.Error(),
		)
		return draft, envelope.ValidationFailedFallback
	}
	return polished, envelope.ValidationPassed
}

// ValidatePolished checks that a polished answer still carries every fact
// from the draft and nothing more: each course name must survive verbatim
// (case-insensitive), any markdown table must have exactly one data row per
// fact, no numeric token absent from the draft may appear, and a factless
// answer must still admit that no data was found.
func ValidatePolished(draft, polished string, facts []Fact) error {
	lower := strings.ToLower(polished)

	if len(facts) == 0 {
		if !strings.Contains(lower, "data tidak ditemukan di dokumen anda") {
			return fmt.Errorf("empty fact set but answer does not state missing data")
		}
		return nil
	}

	for _, f := range facts {
		course := strings.ToLower(strings.TrimSpace(f.Course))
		if course == "" {
			continue
		}
		if !strings.Contains(lower, course) {
			return fmt.Errorf("course %q missing from polished answer", f.Course)
		}
	}

	dataRows, hasTable := countTableDataRows(polished)
	if hasTable && dataRows != len(facts) {
		return fmt.Errorf("table has %d data rows, want %d", dataRows, len(facts))
	}

	allowed := numericTokens(draft)
	for tok := range numericTokens(polished) {
		if _, ok := allowed[tok]; !ok {
			return fmt.Errorf("numeric token %q absent from draft answer", tok)
		}
	}
	return nil
}

var numericTokenPattern = regexp.MustCompile(`\d+(?:[.,:]\d+)*`)

// numericTokens extracts the set of numbers (grades, semesters, SKS counts,
// clock times) from an answer. Polishing may drop a number but never mint
// one.
func numericTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range numericTokenPattern.FindAllString(s, -1) {
		out[tok] = struct{}{}
	}
	return out
}

// countTableDataRows parses the markdown and counts data rows across all
// tables. Returns hasTable=false when no table node exists.
func countTableDataRows(markdown string) (int, bool) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	rows := 0
	hasTable := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *east.Table:
			hasTable = true
		case *east.TableRow:
			// Header rows are TableHeader nodes, so every TableRow is data.
			rows++
		}
		return ast.WalkContinue, nil
	})
	return rows, hasTable
}
