// Package retrieval ranks stored chunks against a free-text question using
// substring keyword overlap plus metadata bonuses.
package retrieval

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docchat/backend/internal/metrics"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/config"
	"github.com/docchat/backend/pkg/logger"
	"github.com/docchat/backend/pkg/utils"
)

// ChunkSource is the read side of the document store.
type ChunkSource interface {
	ListChunks(ctx context.Context) ([]models.Chunk, error)
}

// Cache stores ranked results by query hash. Generation must change on every
// invalidation. Implementations must tolerate concurrent use.
type Cache interface {
	GetQuery(ctx context.Context, queryHash string, response any) (bool, error)
	SetQuery(ctx context.Context, queryHash string, response any, ttl time.Duration) error
	Generation(ctx context.Context) (int64, error)
}

type Result struct {
	Chunk models.Chunk `json:"chunk"`
	Score int          `json:"score"`
}

type Retriever struct {
	source ChunkSource
	cache  Cache
	cfg    config.RetrievalConfig
}

// DefaultConfig is the revised ranking policy: fifteen results and no period
// bonus.
func DefaultConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopK:             15,
		MinTermLength:    3,
		TermWeight:       1,
		CaseNameBonus:    3,
		DescriptionBonus: 2,
		PeriodBonus:      2,
		CacheTTLSeconds:  300,
	}
}

// New builds a Retriever. cache may be nil.
func New(source ChunkSource, cache Cache, cfg config.RetrievalConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.MinTermLength <= 0 {
		cfg.MinTermLength = DefaultConfig().MinTermLength
	}
	return &Retriever{source: source, cache: cache, cfg: cfg}
}

// Search returns up to TopK chunks with a positive score, best first. Ties
// keep store scan order. A category filter other than General excludes every
// chunk of another category.
func (r *Retriever) Search(ctx context.Context, query string, category models.Category) ([]Result, error) {
	start := time.Now()

	terms := r.terms(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	// The generation is read before the chunks so a scan that races an
	// invalidation is stored under a key no later search asks for.
	cacheKey, cached := r.cacheKey(ctx, query, category)
	if cached {
		if results, ok := r.fromCache(ctx, cacheKey); ok {
			return results, nil
		}
	}

	chunks, err := r.source.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	lowered := strings.ToLower(query)
	filtered := category != "" && category != models.CategoryGeneral

	results := make([]Result, 0)
	for _, chunk := range chunks {
		if filtered && chunk.Category != category {
			continue
		}
		if score := r.score(lowered, terms, chunk); score > 0 {
			results = append(results, Result{Chunk: chunk, Score: score})
		}
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return b.Score - a.Score
	})
	if len(results) > r.cfg.TopK {
		results = results[:r.cfg.TopK]
	}

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchResultsCount.Observe(float64(len(results)))
	logger.Debug("Search completed",
		zap.String("query", query),
		zap.String("category", string(category)),
		zap.Int("scanned", len(chunks)),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)

	if cached {
		r.toCache(ctx, cacheKey, results)
	}
	return results, nil
}

// Score exposes the ranking function for a single chunk.
func (r *Retriever) Score(query string, chunk models.Chunk) int {
	terms := r.terms(query)
	if len(terms) == 0 {
		return 0
	}
	return r.score(strings.ToLower(query), terms, chunk)
}

func (r *Retriever) terms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(t) >= r.cfg.MinTermLength {
			terms = append(terms, t)
		}
	}
	return terms
}

func (r *Retriever) score(loweredQuery string, terms []string, chunk models.Chunk) int {
	content := strings.ToLower(chunk.Content)

	score := 0
	for _, term := range terms {
		if strings.Contains(content, term) {
			score += r.cfg.TermWeight
		}
	}
	if contains(loweredQuery, chunk.CaseName) {
		score += r.cfg.CaseNameBonus
	}
	if contains(loweredQuery, chunk.Description) {
		score += r.cfg.DescriptionBonus
	}
	if r.cfg.PeriodBonusEnabled && contains(loweredQuery, chunk.Period) {
		score += r.cfg.PeriodBonus
	}
	return score
}

func contains(loweredQuery, field string) bool {
	field = strings.ToLower(strings.TrimSpace(field))
	return field != "" && strings.Contains(loweredQuery, field)
}

func (r *Retriever) cacheKey(ctx context.Context, query string, category models.Category) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	gen, err := r.cache.Generation(ctx)
	if err != nil {
		logger.Warn("Search cache generation unavailable", zap.Error(err))
		return "", false
	}
	return utils.HashKey(
		strings.ToLower(strings.TrimSpace(query)),
		string(category),
		strconv.Itoa(r.cfg.TopK),
		strconv.FormatInt(gen, 10),
	), true
}

func (r *Retriever) fromCache(ctx context.Context, key string) ([]Result, bool) {
	var results []Result
	found, err := r.cache.GetQuery(ctx, key, &results)
	if err != nil {
		logger.Warn("Search cache read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		metrics.CacheMisses.WithLabelValues("search").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("search").Inc()
	if results == nil {
		results = []Result{}
	}
	return results, true
}

func (r *Retriever) toCache(ctx context.Context, key string, results []Result) {
	ttl := time.Duration(r.cfg.CacheTTLSeconds) * time.Second
	if err := r.cache.SetQuery(ctx, key, results, ttl); err != nil {
		logger.Warn("Search cache write failed", zap.Error(err))
	}
}
