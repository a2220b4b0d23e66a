// Package research fans out per-individual background research with a hard
// concurrency cap and summarizes the gathered context under a deadline.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"prospector/internal/metering"
	"prospector/internal/models"
	"prospector/pkg/clients/wikipedia"
	"prospector/pkg/logging"
	"prospector/pkg/search"
)

// maxConcurrentIndividuals bounds the number of research tasks in flight at
// any instant, regardless of how many individuals a scan surfaces.
const maxConcurrentIndividuals = 2

const (
	webResultLimit      = 5
	maxSnippetRuneCount = 320
)

// Subject is one individual queued for research, tied to the event that
// surfaced them.
type Subject struct {
	Individual   models.Individual
	EventKey     string
	EventSummary string
}

// Context is the research outcome for one subject. When every lookup and
// the orchestration itself failed, Err is set and Text carries an error
// marker instead of gathered facts.
type Context struct {
	Subject Subject
	Text    string
	Err     error
}

// Encyclopedia looks up a condensed page summary for a topic. Satisfied by
// *wikipedia.Client.
type Encyclopedia interface {
	Summary(ctx context.Context, topic string) (wikipedia.Summary, error)
}

// Config configures the orchestrator.
type Config struct {
	Search     search.Provider
	Wikipedia  Encyclopedia
	Summarizer *Summarizer
	Logger     logging.Logger
}

// Orchestrator researches subjects with a global concurrency cap. Each
// subject's web search and encyclopedia lookup run in parallel and fail
// independently; one subject's total failure never aborts the batch.
type Orchestrator struct {
	search     search.Provider
	wikipedia  Encyclopedia
	summarizer *Summarizer
	logger     logging.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		search:     cfg.Search,
		wikipedia:  cfg.Wikipedia,
		summarizer: cfg.Summarizer,
		logger:     cfg.Logger,
	}
}

// ResearchAll researches every subject and returns one Context per subject,
// in input order. Results are produced into per-subject slots, so the
// concurrent tasks share nothing until the final collect.
func (o *Orchestrator) ResearchAll(ctx context.Context, subjects []Subject) []Context {
	contexts := make([]Context, len(subjects))
	sem := semaphore.NewWeighted(maxConcurrentIndividuals)
	var wg sync.WaitGroup

	for i, subject := range subjects {
		if err := sem.Acquire(ctx, 1); err != nil {
			contexts[i] = errorContext(subject, fmt.Errorf("acquire research slot: %w", err))
			continue
		}
		wg.Add(1)
		go func(slot int, subject Subject) {
			defer wg.Done()
			defer sem.Release(1)
			contexts[slot] = o.researchOne(ctx, subject)
		}(i, subject)
	}

	wg.Wait()
	return contexts
}

func (o *Orchestrator) researchOne(ctx context.Context, subject Subject) (result Context) {
	// A panic in one subject's task must not take down the batch.
	defer func() {
		if r := recover(); r != nil {
			researchFailuresTotal.Inc()
			result = errorContext(subject, fmt.Errorf("research panic: %v", r))
		}
	}()

	var (
		wg         sync.WaitGroup
		webText    string
		webErr     error
		summary    wikipedia.Summary
		summaryErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		webText, webErr = o.searchWeb(ctx, subject)
	}()
	go func() {
		defer wg.Done()
		summary, summaryErr = o.lookupEncyclopedia(ctx, subject)
	}()
	wg.Wait()

	if webErr != nil {
		lookupFailuresTotal.WithLabelValues("web").Inc()
		if o.logger != nil {
			o.logger.WithError(webErr).WithField("subject", subject.Individual.Name).Warn("Web lookup failed")
		}
	}
	if summaryErr != nil && !errors.Is(summaryErr, wikipedia.ErrNotFound) {
		lookupFailuresTotal.WithLabelValues("encyclopedia").Inc()
		if o.logger != nil {
			o.logger.WithError(summaryErr).WithField("subject", subject.Individual.Name).Warn("Encyclopedia lookup failed")
		}
	}

	if summaryErr != nil {
		summary = wikipedia.Summary{}
	}
	text := assembleContext(subject, webText, summary)
	if webErr != nil && summaryErr != nil && strings.TrimSpace(subject.EventSummary) == "" {
		researchFailuresTotal.Inc()
		return errorContext(subject, fmt.Errorf("all lookups failed: web: %v; encyclopedia: %v", webErr, summaryErr))
	}

	if o.summarizer != nil {
		text = o.summarizer.Summarize(ctx, subject.Individual.Name, text)
	}
	return Context{Subject: subject, Text: text}
}

// searchQueries builds 1-2 targeted queries for a subject.
func searchQueries(subject Subject) []string {
	name := strings.TrimSpace(subject.Individual.Name)
	queries := []string{name + " wealth net worth"}
	if company := strings.TrimSpace(subject.Individual.Company); company != "" {
		queries = append(queries, fmt.Sprintf("%s %s ownership", name, company))
	}
	return queries
}

func (o *Orchestrator) searchWeb(ctx context.Context, subject Subject) (string, error) {
	if o.search == nil {
		return "", errors.New("search provider is required")
	}

	var b strings.Builder
	var lastErr error
	found := 0
	for _, query := range searchQueries(subject) {
		results, err := o.search.Search(ctx, query, search.SearchOptions{Limit: webResultLimit})
		if err != nil {
			lastErr = err
			continue
		}
		metering.RecordSearchQuery(ctx)
		for _, result := range results {
			snippet := snippetFromContent(result.Content)
			if snippet == "" {
				continue
			}
			found++
			fmt.Fprintf(&b, "%d. %s\n%s\n", found, strings.TrimSpace(result.Title), snippet)
		}
	}
	if found == 0 && lastErr != nil {
		return "", lastErr
	}
	return strings.TrimSpace(b.String()), nil
}

func (o *Orchestrator) lookupEncyclopedia(ctx context.Context, subject Subject) (wikipedia.Summary, error) {
	if o.wikipedia == nil {
		return wikipedia.Summary{}, errors.New("encyclopedia client is required")
	}
	return o.wikipedia.Summary(ctx, subject.Individual.Name)
}

// assembleContext concatenates the gathered blocks with explicit section
// labels so provenance is never ambiguous downstream.
func assembleContext(subject Subject, webText string, summary wikipedia.Summary) string {
	var b strings.Builder

	b.WriteString("=== EVENT SUMMARY ===\n")
	if event := strings.TrimSpace(subject.EventSummary); event != "" {
		b.WriteString(event)
	} else {
		b.WriteString("None")
	}

	if webText != "" {
		b.WriteString("\n\n=== WEB SEARCH SNIPPETS ===\n")
		b.WriteString(webText)
	}

	if strings.TrimSpace(summary.Extract) != "" {
		b.WriteString("\n\n=== ENCYCLOPEDIA SUMMARY ===\n")
		b.WriteString(strings.TrimSpace(summary.Extract))
	}

	return b.String()
}

func errorContext(subject Subject, err error) Context {
	return Context{
		Subject: subject,
		Text:    fmt.Sprintf("=== RESEARCH ERROR ===\n%v", err),
		Err:     err,
	}
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
