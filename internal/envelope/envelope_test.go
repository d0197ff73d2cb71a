package envelope

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	env := &Envelope{
		Answer: "jawaban",
		Meta: Meta{
			Mode:       "guard",
			Pipeline:   PipelineRouteGuard,
			Validation: ValidationNotApplicable,
		},
	}
	env.Normalize()

	if env.Sources == nil || env.Meta.ReferencedDocuments == nil ||
		env.Meta.UnresolvedMentions == nil || env.Meta.AmbiguousMentions == nil {
		t.Error("Normalize() left a nil slice")
	}
	if env.Meta.AnswerMode != "factual" {
		t.Errorf("answer_mode = %q, want factual default", env.Meta.AnswerMode)
	}
}

func TestNormalize_KeepsExplicitAnswerMode(t *testing.T) {
	env := &Envelope{Meta: Meta{AnswerMode: "evaluative"}}
	env.Normalize()
	if env.Meta.AnswerMode != "evaluative" {
		t.Errorf("answer_mode = %q, want evaluative", env.Meta.AnswerMode)
	}
}

func TestEnvelope_JSONShapeIsStable(t *testing.T) {
	env := &Envelope{Answer: "jawaban"}
	env.Normalize()

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(raw)

	// Every meta key must appear on every route, even when zero-valued.
	for _, key := range []string{
		`"answer"`, `"sources"`, `"meta"`,
		`"mode"`, `"pipeline"`, `"intent_route"`, `"validation"`, `"answer_mode"`,
		`"retrieval_docs_count"`, `"top_score"`, `"structured_returned"`,
	} {
		if !strings.Contains(body, key) {
			t.Errorf("encoded envelope missing %s:\n%s", key, body)
		}
	}
	if strings.Contains(body, "null") {
		t.Errorf("encoded envelope carries null:\n%s", body)
	}
}
