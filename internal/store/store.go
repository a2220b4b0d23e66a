// Package store persists articles, opportunities, and the watchlist in
// Postgres. Every write is an idempotent upsert keyed by a stable natural
// key, so pipeline runs can be safely repeated.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prospector/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertArticle writes one assessed article, keyed by its link. Re-running
// a scan over the same sources overwrites the previous assessment instead
// of duplicating the article.
func (s *Store) UpsertArticle(ctx context.Context, article models.Article) error {
	if strings.TrimSpace(article.Link) == "" {
		return errors.New("article link is required")
	}

	individuals, err := json.Marshal(article.Individuals)
	if err != nil {
		return fmt.Errorf("encode individuals: %w", err)
	}
	hits, err := json.Marshal(article.WatchlistHits)
	if err != nil {
		return fmt.Errorf("encode watchlist hits: %w", err)
	}
	trace, err := json.Marshal(article.StageTrace)
	if err != nil {
		return fmt.Errorf("encode stage trace: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO prospector.articles (
			id,
			headline,
			body,
			country,
			newspaper,
			link,
			status,
			headline_relevance,
			article_relevance,
			headline_rationale,
			article_rationale,
			event_type,
			is_liquidity_event,
			individuals,
			watchlist_hits,
			stage_trace
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (link) DO UPDATE SET
			headline = EXCLUDED.headline,
			body = EXCLUDED.body,
			status = EXCLUDED.status,
			headline_relevance = EXCLUDED.headline_relevance,
			article_relevance = EXCLUDED.article_relevance,
			headline_rationale = EXCLUDED.headline_rationale,
			article_rationale = EXCLUDED.article_rationale,
			event_type = EXCLUDED.event_type,
			is_liquidity_event = EXCLUDED.is_liquidity_event,
			individuals = EXCLUDED.individuals,
			watchlist_hits = EXCLUDED.watchlist_hits,
			stage_trace = EXCLUDED.stage_trace,
			updated_at = NOW()
	`,
		article.ID,
		article.Headline,
		article.Body,
		article.Country,
		article.Newspaper,
		article.Link,
		string(article.Status),
		article.HeadlineScore,
		article.ArticleScore,
		article.HeadlineRationale,
		article.ArticleRationale,
		article.EventType,
		article.IsLiquidityEvent,
		individuals,
		hits,
		trace,
	); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

// IsArticleAssessed reports whether a link was already processed by an
// earlier run, so subsequent scans can skip it.
func (s *Store) IsArticleAssessed(ctx context.Context, link string) (bool, error) {
	if strings.TrimSpace(link) == "" {
		return false, errors.New("article link is required")
	}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM prospector.articles WHERE link = $1
	`, link).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check article: %w", err)
	}
	return status != string(models.StatusNew), nil
}

// UpsertOpportunities writes merged opportunities in one transaction, each
// keyed by the lowercased reach-out name. A colliding key fully replaces
// the stored record.
func (s *Store) UpsertOpportunities(ctx context.Context, opportunities []models.Opportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prospector.opportunities (
			reach_out_key,
			reach_out_to,
			event_key,
			profile
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (reach_out_key) DO UPDATE SET
			reach_out_to = EXCLUDED.reach_out_to,
			event_key = EXCLUDED.event_key,
			profile = EXCLUDED.profile,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, opp := range opportunities {
		if opp.Key() == "" {
			return errors.New("opportunity reach-out name is required")
		}
		profile, err := json.Marshal(opp.Profile)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, opp.Key(), opp.ReachOutTo, opp.EventKey, profile); err != nil {
			return fmt.Errorf("upsert opportunity %q: %w", opp.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadOpportunities returns every stored opportunity.
func (s *Store) LoadOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reach_out_to, event_key, profile
		FROM prospector.opportunities
		ORDER BY reach_out_key
	`)
	if err != nil {
		return nil, fmt.Errorf("load opportunities: %w", err)
	}
	defer rows.Close()

	var opportunities []models.Opportunity
	for rows.Next() {
		var opp models.Opportunity
		var profile []byte
		if err := rows.Scan(&opp.ReachOutTo, &opp.EventKey, &profile); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		if len(profile) > 0 {
			if err := json.Unmarshal(profile, &opp.Profile); err != nil {
				return nil, fmt.Errorf("decode profile: %w", err)
			}
		}
		opportunities = append(opportunities, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunities: %w", err)
	}
	return opportunities, nil
}

// LoadWatchlist returns the active watchlist entities. The watchlist is
// owned by an external administrative surface; this read is the only
// access the pipeline has.
func (s *Store) LoadWatchlist(ctx context.Context) ([]models.WatchlistEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, search_terms, COALESCE(country, ''), active
		FROM prospector.watchlist
		WHERE active = TRUE
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	defer rows.Close()

	var entities []models.WatchlistEntity
	for rows.Next() {
		var entity models.WatchlistEntity
		var terms []byte
		if err := rows.Scan(&entity.Name, &terms, &entity.Country, &entity.Active); err != nil {
			return nil, fmt.Errorf("scan watchlist entity: %w", err)
		}
		if len(terms) > 0 {
			if err := json.Unmarshal(terms, &entity.SearchTerms); err != nil {
				return nil, fmt.Errorf("decode search terms: %w", err)
			}
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}
	return entities, nil
}
