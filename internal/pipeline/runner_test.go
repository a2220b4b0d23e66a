package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"prospector/internal/assess"
	"prospector/internal/models"
	"prospector/internal/opportunity"
	"prospector/internal/research"
	"prospector/internal/triage"
	"prospector/pkg/clients/wikipedia"
	"prospector/pkg/llm"
	"prospector/pkg/retry"
	"prospector/pkg/search"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu            sync.Mutex
	articles      map[string]models.Article
	opportunities []models.Opportunity
	watchlist     []models.WatchlistEntity
}

func newFakeStore() *fakeStore {
	return &fakeStore{articles: make(map[string]models.Article)}
}

func (f *fakeStore) UpsertArticle(_ context.Context, article models.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles[article.Link] = article
	return nil
}

func (f *fakeStore) IsArticleAssessed(_ context.Context, link string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	article, ok := f.articles[link]
	return ok && article.Status != models.StatusNew, nil
}

func (f *fakeStore) UpsertOpportunities(_ context.Context, opportunities []models.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opportunities = opportunities
	return nil
}

func (f *fakeStore) LoadOpportunities(_ context.Context) ([]models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opportunities, nil
}

func (f *fakeStore) LoadWatchlist(_ context.Context) ([]models.WatchlistEntity, error) {
	return f.watchlist, nil
}

// routedProvider returns responses keyed by a marker found in the last
// message, so one provider can serve every pipeline stage.
type routedProvider struct {
	mu     sync.Mutex
	routes map[string]string
}

func (p *routedProvider) Complete(_ context.Context, messages []llm.Message, _ []llm.Tool) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	system := messages[0].Content
	for marker, response := range p.routes {
		if strings.Contains(system, marker) {
			return &routedStream{content: response}, nil
		}
	}
	return nil, fmt.Errorf("no route for system prompt %.40q", system)
}

type routedStream struct {
	content  string
	consumed bool
}

func (s *routedStream) Recv() (llm.Chunk, error) {
	if s.consumed {
		return llm.Chunk{}, io.EOF
	}
	s.consumed = true
	return llm.Chunk{Content: s.content}, nil
}

func (s *routedStream) Close() error { return nil }

type stubSearch struct{}

func (stubSearch) Search(_ context.Context, _ string, _ search.SearchOptions) ([]search.Result, error) {
	return []search.Result{{Title: "Coverage", Content: "Per Jensen built Nordhavn Logistics over 20 years."}}, nil
}

type stubEncyclopedia struct{}

func (stubEncyclopedia) Summary(_ context.Context, _ string) (wikipedia.Summary, error) {
	return wikipedia.Summary{}, wikipedia.ErrNotFound
}

func newTestRunner(store *fakeStore) *Runner {
	provider := &routedProvider{routes: map[string]string{
		// Triage prompt mentions headline scoring.
		"assess news headlines": `{"assessments": [{"id": "ART", "relevance": 90, "rationale": "explicit sale"}]}`,
		// Deep assessment prompt mentions full-article analysis.
		"analyse one full news article": `{
			"event_type": "company_sale",
			"is_liquidity_event": true,
			"relevance": 88,
			"rationale": "Per Jensen sold Nordhavn Logistics.",
			"individuals": [{"name": "Per Jensen", "role": "founder", "company": "Nordhavn Logistics", "contact_or_null": null}]
		}`,
		"fact-dense profile":        "Per Jensen founded and sold Nordhavn Logistics.",
		"wealth-opportunity record": `{"reach_out_to": "Per Jensen", "profile": {"biography": "Founder of Nordhavn Logistics.", "wealth_estimate": "DKK 400m"}}`,
	}}

	fastRetry := retry.NewPolicy(retry.Config{MaxRetries: 1, Delay: time.Millisecond})
	return NewRunner(Config{
		Classifier: triage.NewClassifier(triage.Config{Provider: provider, Retry: fastRetry}),
		Assessor:   assess.NewAssessor(assess.Config{Provider: provider, Retry: fastRetry}),
		Research: research.NewOrchestrator(research.Config{
			Search:     stubSearch{},
			Wikipedia:  stubEncyclopedia{},
			Summarizer: research.NewSummarizer(research.SummarizerConfig{Provider: provider, Deadline: time.Second}),
		}),
		Synthesizer: opportunity.NewSynthesizer(opportunity.Config{Provider: provider}),
		Store:       store,
	})
}

func ingested() []models.Article {
	return []models.Article{{
		ID:        "ART",
		Headline:  "Per Jensen sells Nordhavn Logistics",
		Body:      "Per Jensen, founder of Nordhavn Logistics, sold the company today.",
		Country:   "DK",
		Newspaper: "Borsen",
		Link:      "https://example.com/nordhavn-sale",
		Status:    models.StatusNew,
	}}
}

func TestRun_EndToEnd(t *testing.T) {
	store := newFakeStore()
	runner := newTestRunner(store)

	report, err := runner.Run(context.Background(), ingested())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RunID == "" {
		t.Fatal("run id missing")
	}
	if report.Accepted != 1 || report.DeepAssessed != 1 || report.Opportunities != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	article, ok := store.articles["https://example.com/nordhavn-sale"]
	if !ok {
		t.Fatal("article not persisted")
	}
	if article.Status != models.StatusDeepAssessed || article.ArticleScore != 88 {
		t.Fatalf("article state wrong: %+v", article)
	}
	if len(article.StageTrace) == 0 {
		t.Fatal("stage trace missing")
	}

	if len(store.opportunities) != 1 || store.opportunities[0].ReachOutTo != "Per Jensen" {
		t.Fatalf("opportunity not persisted: %+v", store.opportunities)
	}
	if store.opportunities[0].EventKey != "https://example.com/nordhavn-sale" {
		t.Fatalf("opportunity not tied to its event: %+v", store.opportunities[0])
	}
}

func TestRun_IsIdempotentAcrossRepeats(t *testing.T) {
	store := newFakeStore()
	runner := newTestRunner(store)

	if _, err := runner.Run(context.Background(), ingested()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := runner.Run(context.Background(), ingested())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	// The link was already assessed, so deep assessment is skipped and no
	// duplicate records appear.
	if report.DeepAssessed != 0 {
		t.Fatalf("second run re-assessed the same link: %+v", report)
	}
	if len(store.opportunities) != 1 {
		t.Fatalf("repeat run duplicated opportunities: %d", len(store.opportunities))
	}
	if len(store.articles) != 1 {
		t.Fatalf("repeat run duplicated articles: %d", len(store.articles))
	}
}

func TestRun_BelowThresholdStopsAtTriage(t *testing.T) {
	store := newFakeStore()
	provider := &routedProvider{routes: map[string]string{
		"assess news headlines": `{"assessments": [{"id": "ART", "relevance": 5, "rationale": "sports"}]}`,
	}}
	fastRetry := retry.NewPolicy(retry.Config{MaxRetries: 1, Delay: time.Millisecond})
	runner := NewRunner(Config{
		Classifier: triage.NewClassifier(triage.Config{Provider: provider, Retry: fastRetry}),
		Assessor:   assess.NewAssessor(assess.Config{Provider: provider, Retry: fastRetry}),
		Research: research.NewOrchestrator(research.Config{
			Search:    stubSearch{},
			Wikipedia: stubEncyclopedia{},
		}),
		Synthesizer: opportunity.NewSynthesizer(opportunity.Config{Provider: provider}),
		Store:       store,
	})

	report, err := runner.Run(context.Background(), ingested())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Accepted != 0 || report.DeepAssessed != 0 {
		t.Fatalf("irrelevant article advanced past triage: %+v", report)
	}
	article := store.articles["https://example.com/nordhavn-sale"]
	if article.Status != models.StatusAssessed || article.HeadlineScore != 5 {
		t.Fatalf("triage outcome not persisted: %+v", article)
	}
}

func TestRun_WatchlistHitEscalatesAmbiguousHeadline(t *testing.T) {
	store := newFakeStore()
	store.watchlist = []models.WatchlistEntity{{
		Name:        "Nordhavn",
		SearchTerms: []string{"nordhavn"},
		Active:      true,
	}}
	runner := newTestRunner(store)

	report, err := runner.Run(context.Background(), ingested())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Accepted != 1 {
		t.Fatalf("watched headline not accepted: %+v", report)
	}
	article := store.articles["https://example.com/nordhavn-sale"]
	if len(article.WatchlistHits) == 0 {
		t.Fatalf("watchlist hit not recorded: %+v", article)
	}
}
