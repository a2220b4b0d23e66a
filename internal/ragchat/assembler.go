package ragchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"prospector/internal/metering"
	"prospector/pkg/clients/wikipedia"
	"prospector/pkg/logging"
	"prospector/pkg/search"
)

const (
	knowledgeLimit      = 5
	webLimit            = 5
	maxSnippetRuneCount = 320
)

// KnowledgeMatch is one scored result from the internal similarity search.
type KnowledgeMatch struct {
	Title      string
	Text       string
	Similarity float64
}

// KnowledgeSearcher is the internal similarity search, an opaque external
// service returning scored matches.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]KnowledgeMatch, error)
}

// Encyclopedia looks up a condensed page summary for a topic. Satisfied by
// *wikipedia.Client.
type Encyclopedia interface {
	Summary(ctx context.Context, topic string) (wikipedia.Summary, error)
}

// AssembledContext is the combined retrieval context for one turn, plus the
// trace of what each source returned.
type AssembledContext struct {
	Text         string
	KnowledgeHit bool
	Encyclopedia bool
	WebHit       bool
}

// AssemblerConfig configures the assembler.
type AssemblerConfig struct {
	Knowledge    KnowledgeSearcher
	Encyclopedia Encyclopedia
	Search       search.Provider
	Rewriter     *QueryRewriter
	Logger       logging.Logger
}

// Assembler gathers the three retrieval sources for a plan's queries and
// renders them as one labeled context block. Sources fail independently; a
// source with zero results renders as an explicit "None" section so the
// synthesizer can reason about absence.
type Assembler struct {
	knowledge    KnowledgeSearcher
	encyclopedia Encyclopedia
	search       search.Provider
	rewriter     *QueryRewriter
	logger       logging.Logger
}

func NewAssembler(cfg AssemblerConfig) *Assembler {
	return &Assembler{
		knowledge:    cfg.Knowledge,
		encyclopedia: cfg.Encyclopedia,
		search:       cfg.Search,
		rewriter:     cfg.Rewriter,
		logger:       cfg.Logger,
	}
}

// Assemble retrieves context for every plan query across all three sources.
func (a *Assembler) Assemble(ctx context.Context, plan Plan) AssembledContext {
	var (
		wg        sync.WaitGroup
		kbText    string
		encycText string
		webText   string
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		kbText = a.searchKnowledge(ctx, plan.Queries)
	}()
	go func() {
		defer wg.Done()
		encycText = a.lookupEncyclopedia(ctx, plan.Queries)
	}()
	go func() {
		defer wg.Done()
		webText = a.searchWeb(ctx, plan.Queries)
	}()
	wg.Wait()

	var b strings.Builder
	writeSection(&b, "KNOWLEDGE BASE", kbText)
	b.WriteString("\n\n")
	writeSection(&b, "ENCYCLOPEDIA", encycText)
	b.WriteString("\n\n")
	writeSection(&b, "WEB SEARCH", webText)

	return AssembledContext{
		Text:         b.String(),
		KnowledgeHit: kbText != "",
		Encyclopedia: encycText != "",
		WebHit:       webText != "",
	}
}

func writeSection(b *strings.Builder, label, content string) {
	fmt.Fprintf(b, "=== %s ===\n", label)
	if content == "" {
		b.WriteString("None")
		return
	}
	b.WriteString(content)
}

func (a *Assembler) searchKnowledge(ctx context.Context, queries []string) string {
	if a.knowledge == nil {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, query := range queries {
		matches, err := a.knowledge.Search(ctx, query, knowledgeLimit)
		if err != nil {
			retrievalFailuresTotal.WithLabelValues("knowledge").Inc()
			if a.logger != nil {
				a.logger.WithError(err).WithField("query", query).Warn("Knowledge search failed")
			}
			continue
		}
		metering.RecordSearchQuery(ctx)
		for _, match := range matches {
			if strings.TrimSpace(match.Text) == "" {
				continue
			}
			n++
			fmt.Fprintf(&b, "[%d. %s | Similarity: %.2f]\n%s\n", n, strings.TrimSpace(match.Title), match.Similarity, strings.TrimSpace(match.Text))
		}
	}
	return strings.TrimSpace(b.String())
}

func (a *Assembler) lookupEncyclopedia(ctx context.Context, queries []string) string {
	if a.encyclopedia == nil || len(queries) == 0 {
		return ""
	}
	summary, err := a.encyclopedia.Summary(ctx, queries[0])
	if err != nil {
		if !errors.Is(err, wikipedia.ErrNotFound) {
			retrievalFailuresTotal.WithLabelValues("encyclopedia").Inc()
			if a.logger != nil {
				a.logger.WithError(err).Warn("Encyclopedia lookup failed")
			}
		}
		return ""
	}
	quality := summary.Type
	if quality == "" {
		quality = "standard"
	}
	return strings.TrimSpace(fmt.Sprintf("[%s | Quality: %s]\n%s", summary.Title, quality, summary.Extract))
}

func (a *Assembler) searchWeb(ctx context.Context, queries []string) string {
	if a.search == nil {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, query := range queries {
		// Rewrite conversational phrasing before hitting the web provider.
		query = a.rewriter.Rewrite(ctx, query)
		results, err := a.search.Search(ctx, query, search.SearchOptions{Limit: webLimit})
		if err != nil {
			retrievalFailuresTotal.WithLabelValues("web").Inc()
			if a.logger != nil {
				a.logger.WithError(err).WithField("query", query).Warn("Web search failed")
			}
			continue
		}
		metering.RecordSearchQuery(ctx)
		for _, result := range results {
			snippet := snippetFromContent(result.Content)
			if snippet == "" {
				continue
			}
			n++
			fmt.Fprintf(&b, "%d. %s\n%s\n", n, strings.TrimSpace(result.Title), snippet)
		}
	}
	return strings.TrimSpace(b.String())
}

func snippetFromContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= maxSnippetRuneCount {
		return content
	}
	return string(runes[:maxSnippetRuneCount-1]) + "…"
}
