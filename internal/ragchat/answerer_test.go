package ragchat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"prospector/pkg/clients/wikipedia"
	"prospector/pkg/llm"
	"prospector/pkg/search"
)

type fakeKnowledge struct {
	matches []KnowledgeMatch
	err     error
}

func (f *fakeKnowledge) Search(_ context.Context, _ string, _ int) ([]KnowledgeMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeEncyclopedia struct {
	summary wikipedia.Summary
	err     error
}

func (f *fakeEncyclopedia) Summary(_ context.Context, _ string) (wikipedia.Summary, error) {
	if f.err != nil {
		return wikipedia.Summary{}, f.err
	}
	return f.summary, nil
}

type fakeWebSearch struct {
	results []search.Result
	err     error
}

func (f *fakeWebSearch) Search(_ context.Context, _ string, _ search.SearchOptions) ([]search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

const planResponse = `{"reasoning": "look it up", "steps": ["search"], "search_queries": ["Nordhavn Logistics sale"]}`

func groundedVerdict(grounded bool, claims ...string) string {
	var quoted []string
	for _, c := range claims {
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}
	return fmt.Sprintf(`{"is_grounded": %t, "unsupported_claims": [%s]}`, grounded, strings.Join(quoted, ", "))
}

// newAnswerer wires an answerer where the planner, synthesizer, and verifier
// share one scripted provider: call 1 plans, call 2 synthesizes, call 3
// verifies.
func newAnswerer(provider llm.Provider, assembler *Assembler) *Answerer {
	if assembler == nil {
		assembler = NewAssembler(AssemblerConfig{
			Knowledge: &fakeKnowledge{matches: []KnowledgeMatch{
				{Title: "Deal memo", Text: "Nordhavn Logistics was sold in 2024.", Similarity: 0.92},
			}},
			Encyclopedia: &fakeEncyclopedia{err: wikipedia.ErrNotFound},
			Search:       &fakeWebSearch{},
		})
	}
	return NewAnswerer(AnswererConfig{
		Planner:     NewPlanner(provider, nil),
		Assembler:   assembler,
		Synthesizer: NewSynthesizer(provider),
		Verifier:    NewVerifier(provider),
	})
}

func TestAnswer_GroundedAnswerPassesThrough(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		planResponse,
		"Nordhavn Logistics was sold in 2024 [KB].",
		groundedVerdict(true),
	}}
	a := newAnswerer(provider, nil)

	result, err := a.Answer(context.Background(), userTurn("When was Nordhavn Logistics sold?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "Nordhavn Logistics was sold in 2024 [KB]." {
		t.Fatalf("answer altered: %q", result.Answer)
	}
	if !strings.Contains(result.Thoughts, "grounded") {
		t.Fatalf("thoughts missing verification trace: %q", result.Thoughts)
	}
}

func TestAnswer_UngroundedAnswerIsExactRefusal(t *testing.T) {
	candidate := "Nordhavn Logistics was sold for exactly one billion euros [KB]."
	provider := &fakeProvider{responses: []string{
		planResponse,
		candidate,
		groundedVerdict(false, "sold for exactly one billion euros"),
	}}
	a := newAnswerer(provider, nil)

	result, err := a.Answer(context.Background(), userTurn("How much was it sold for?"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != RefusalSentence {
		t.Fatalf("refusal must be the literal sentence, got %q", result.Answer)
	}
	if strings.Contains(result.Answer, "billion") {
		t.Fatal("fragments of the discarded answer leaked into the refusal")
	}
}

func TestAnswer_UnverifiableAnswerAlsoRefused(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		planResponse,
		"Some candidate answer [KB].",
		"the verifier returned prose instead of JSON",
	}}
	a := newAnswerer(provider, nil)

	result, err := a.Answer(context.Background(), userTurn("question"))
	if err != nil {
		t.Fatalf("verification failure must not surface as an error: %v", err)
	}
	if result.Answer != RefusalSentence {
		t.Fatalf("expected the refusal sentence, got %q", result.Answer)
	}
}

func TestAnswer_PlanFailureIsHardError(t *testing.T) {
	provider := &fakeProvider{responses: []string{"no plan here", "irrelevant"}}
	a := newAnswerer(provider, nil)

	if _, err := a.Answer(context.Background(), userTurn("question")); err == nil {
		t.Fatal("expected hard error when planning fails")
	}
}

func TestAssemble_EmptySourcesRenderAsNone(t *testing.T) {
	assembler := NewAssembler(AssemblerConfig{
		Knowledge:    &fakeKnowledge{},
		Encyclopedia: &fakeEncyclopedia{err: wikipedia.ErrNotFound},
		Search:       &fakeWebSearch{err: fmt.Errorf("search down")},
	})

	assembled := assembler.Assemble(context.Background(), Plan{Queries: []string{"q"}})

	for _, section := range []string{"=== KNOWLEDGE BASE ===\nNone", "=== ENCYCLOPEDIA ===\nNone", "=== WEB SEARCH ===\nNone"} {
		if !strings.Contains(assembled.Text, section) {
			t.Fatalf("missing explicit None section %q in:\n%s", section, assembled.Text)
		}
	}
	if assembled.KnowledgeHit || assembled.Encyclopedia || assembled.WebHit {
		t.Fatalf("empty sources flagged as hits: %+v", assembled)
	}
}

func TestAssemble_LabelsAllThreeSources(t *testing.T) {
	assembler := NewAssembler(AssemblerConfig{
		Knowledge: &fakeKnowledge{matches: []KnowledgeMatch{
			{Title: "Deal memo", Text: "Sold in 2024.", Similarity: 0.9},
		}},
		Encyclopedia: &fakeEncyclopedia{summary: wikipedia.Summary{
			Title:   "Nordhavn Logistics",
			Extract: "A Danish logistics company.",
			Type:    "standard",
		}},
		Search: &fakeWebSearch{results: []search.Result{
			{Title: "News", Content: "The sale closed last month."},
		}},
	})

	assembled := assembler.Assemble(context.Background(), Plan{Queries: []string{"Nordhavn Logistics"}})

	if !strings.Contains(assembled.Text, "Similarity: 0.90") {
		t.Fatalf("knowledge similarity missing:\n%s", assembled.Text)
	}
	if !strings.Contains(assembled.Text, "Quality: standard") {
		t.Fatalf("encyclopedia quality tag missing:\n%s", assembled.Text)
	}
	if !assembled.KnowledgeHit || !assembled.Encyclopedia || !assembled.WebHit {
		t.Fatalf("hit flags wrong: %+v", assembled)
	}
}
