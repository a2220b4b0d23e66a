// Package pipeline runs one scan end to end: triage, re-assessment, deep
// assessment, research, opportunity synthesis, and persistence.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"prospector/internal/assess"
	"prospector/internal/metering"
	"prospector/internal/models"
	"prospector/internal/opportunity"
	"prospector/internal/research"
	"prospector/internal/triage"
	"prospector/internal/watchlist"
	"prospector/pkg/logging"
)

// Stage names used for usage metering and article traces.
const (
	StageTriage      = "triage"
	StageReassess    = "reassess"
	StageAssess      = "assess"
	StageResearch    = "research"
	StageOpportunity = "opportunity"
)

// Store is the persistence surface the runner needs. Implemented by
// *store.Store.
type Store interface {
	UpsertArticle(ctx context.Context, article models.Article) error
	IsArticleAssessed(ctx context.Context, link string) (bool, error)
	UpsertOpportunities(ctx context.Context, opportunities []models.Opportunity) error
	LoadOpportunities(ctx context.Context) ([]models.Opportunity, error)
	LoadWatchlist(ctx context.Context) ([]models.WatchlistEntity, error)
}

// Config configures the runner.
type Config struct {
	Classifier  *triage.Classifier
	Assessor    *assess.Assessor
	Research    *research.Orchestrator
	Synthesizer *opportunity.Synthesizer
	Store       Store
	Tracker     *metering.Tracker
	Logger      logging.Logger

	// AcceptThreshold is the relevance score an article needs to advance
	// past triage. Zero means the default.
	AcceptThreshold int
}

// Report summarizes one scan run.
type Report struct {
	RunID         string `json:"run_id"`
	Ingested      int    `json:"ingested"`
	Accepted      int    `json:"accepted"`
	DeepAssessed  int    `json:"deep_assessed"`
	Researched    int    `json:"researched"`
	Opportunities int    `json:"opportunities"`
}

// Runner executes scan runs. All stages operate on idempotent upserts, so a
// run can be safely repeated over the same input.
type Runner struct {
	classifier  *triage.Classifier
	assessor    *assess.Assessor
	research    *research.Orchestrator
	synthesizer *opportunity.Synthesizer
	store       Store
	tracker     *metering.Tracker
	logger      logging.Logger
	threshold   int
}

func NewRunner(cfg Config) *Runner {
	threshold := cfg.AcceptThreshold
	if threshold <= 0 {
		threshold = triage.DefaultAcceptThreshold
	}
	return &Runner{
		classifier:  cfg.Classifier,
		assessor:    cfg.Assessor,
		research:    cfg.Research,
		synthesizer: cfg.Synthesizer,
		store:       cfg.Store,
		tracker:     cfg.Tracker,
		logger:      cfg.Logger,
		threshold:   threshold,
	}
}

// Run scans a batch of ingested articles.
func (r *Runner) Run(ctx context.Context, articles []models.Article) (Report, error) {
	report := Report{RunID: uuid.NewString(), Ingested: len(articles)}

	entities, err := r.store.LoadWatchlist(ctx)
	if err != nil {
		return report, fmt.Errorf("load watchlist: %w", err)
	}

	articles = r.triageArticles(ctx, articles, entities)

	var accepted []models.Article
	for i := range articles {
		if articles[i].HeadlineScore >= r.threshold {
			accepted = append(accepted, articles[i])
			continue
		}
		// Below the cut: persist the triage outcome and stop here.
		articles[i].Status = models.StatusAssessed
		if err := r.store.UpsertArticle(ctx, articles[i]); err != nil && r.logger != nil {
			r.logger.WithError(err).WithField("link", articles[i].Link).Error("Persist article failed")
		}
	}
	report.Accepted = len(accepted)

	assessed := r.deepAssess(ctx, accepted)
	report.DeepAssessed = len(assessed)

	subjects := researchSubjects(assessed)
	report.Researched = len(subjects)

	researchCtx := metering.WithContext(ctx, &metering.Context{Stage: StageResearch, Tracker: r.tracker})
	contexts := r.research.ResearchAll(researchCtx, subjects)

	synthCtx := metering.WithContext(ctx, &metering.Context{Stage: StageOpportunity, Tracker: r.tracker})
	incoming := r.synthesizer.SynthesizeAll(synthCtx, contexts)

	existing, err := r.store.LoadOpportunities(ctx)
	if err != nil {
		return report, fmt.Errorf("load opportunities: %w", err)
	}
	merged := models.MergeOpportunities(existing, incoming)
	if err := r.store.UpsertOpportunities(ctx, merged); err != nil {
		return report, fmt.Errorf("persist opportunities: %w", err)
	}
	report.Opportunities = len(incoming)

	if r.logger != nil {
		r.logger.WithFields(logging.Fields{
			"run_id":        report.RunID,
			"ingested":      report.Ingested,
			"accepted":      report.Accepted,
			"deep_assessed": report.DeepAssessed,
			"researched":    report.Researched,
			"opportunities": report.Opportunities,
		}).Info("Scan run complete")
	}
	return report, nil
}

// triageArticles classifies headlines, applies watchlist boosts, and
// escalates ambiguous items once.
func (r *Runner) triageArticles(ctx context.Context, articles []models.Article, entities []models.WatchlistEntity) []models.Article {
	items := make([]triage.Item, len(articles))
	hitsByID := make(map[string]bool, len(articles))
	for i := range articles {
		items[i] = triage.Item{ID: articles[i].ID, Text: articles[i].Headline}
		hits := watchlist.Match(articles[i].Headline, articles[i].Country, entities)
		articles[i].WatchlistHits = hits
		if len(hits) > 0 {
			hitsByID[articles[i].ID] = true
		}
	}

	triageCtx := metering.WithContext(ctx, &metering.Context{Stage: StageTriage, Tracker: r.tracker})
	results := r.classifier.ClassifyAll(triageCtx, items)

	for i := range results {
		results[i].Score = triage.BoostForWatchlistHits(results[i].Score, len(articles[i].WatchlistHits))
	}

	reassessCtx := metering.WithContext(ctx, &metering.Context{Stage: StageReassess, Tracker: r.tracker})
	results = r.classifier.Reassess(reassessCtx, items, results, hitsByID, r.threshold)

	for i := range articles {
		articles[i].HeadlineScore = results[i].Score
		articles[i].HeadlineRationale = results[i].Rationale
		articles[i].Touch(StageTriage)
	}
	return articles
}

// deepAssess runs structured extraction on accepted articles, skipping
// links an earlier run already processed and items whose extraction fails
// validation.
func (r *Runner) deepAssess(ctx context.Context, articles []models.Article) []models.Article {
	assessCtx := metering.WithContext(ctx, &metering.Context{Stage: StageAssess, Tracker: r.tracker})

	var assessed []models.Article
	for i := range articles {
		article := articles[i]

		done, err := r.store.IsArticleAssessed(ctx, article.Link)
		if err != nil && r.logger != nil {
			r.logger.WithError(err).WithField("link", article.Link).Warn("Assessed check failed, processing anyway")
		}
		if done {
			continue
		}

		judgment, err := r.assessor.Assess(assessCtx, article)
		if err != nil {
			if r.logger != nil {
				r.logger.WithError(err).WithField("link", article.Link).Warn("Deep assessment failed, skipping article")
			}
			article.Status = models.StatusAssessed
			_ = r.store.UpsertArticle(ctx, article)
			continue
		}

		article.Status = models.StatusDeepAssessed
		article.ArticleScore = judgment.Score
		article.ArticleRationale = judgment.Rationale
		article.EventType = judgment.EventType
		article.IsLiquidityEvent = judgment.IsLiquidityEvent
		article.Individuals = judgment.Individuals
		article.Touch(StageAssess)

		if err := r.store.UpsertArticle(ctx, article); err != nil && r.logger != nil {
			r.logger.WithError(err).WithField("link", article.Link).Error("Persist article failed")
		}
		assessed = append(assessed, article)
	}
	return assessed
}

// researchSubjects collects the individuals worth researching from
// liquidity-event articles, deduplicated by lowercased name.
func researchSubjects(articles []models.Article) []research.Subject {
	var subjects []research.Subject
	seen := make(map[string]bool)
	for _, article := range articles {
		if !article.IsLiquidityEvent {
			continue
		}
		for _, individual := range article.Individuals {
			key := strings.ToLower(strings.TrimSpace(individual.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			subjects = append(subjects, research.Subject{
				Individual:   individual,
				EventKey:     article.Link,
				EventSummary: article.ArticleRationale,
			})
		}
	}
	return subjects
}
