package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docchat/backend/internal/retrieval"
	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/logger"
)

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("query is empty")

const (
	blockSeparator = "\n\n---\n\n"
	noContext      = "No relevant documents were found for this question."
)

type Searcher interface {
	Search(ctx context.Context, query string, category models.Category) ([]retrieval.Result, error)
}

// AnswerGenerator streams an answer built from a question and a rendered
// context block.
type AnswerGenerator interface {
	StreamAnswer(ctx context.Context, question, contextBlock string, onDelta func(string) error) error
}

type Engine struct {
	searcher  Searcher
	generator AnswerGenerator
}

type QueryRequest struct {
	Query    string
	Category models.Category
}

type QueryResponse struct {
	ID        string   `json:"id"`
	Query     string   `json:"query"`
	Response  string   `json:"response"`
	Sources   []Source `json:"sources"`
	LatencyMS int      `json:"latencyMs"`
}

type Source struct {
	ChunkID    string `json:"chunkId"`
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	Period     string `json:"period,omitempty"`
	Score      int    `json:"score"`
}

func NewEngine(searcher Searcher, generator AnswerGenerator) *Engine {
	return &Engine{searcher: searcher, generator: generator}
}

// Stream retrieves context for req, streams the generated answer through
// onDelta and returns the accumulated response.
func (e *Engine) Stream(ctx context.Context, req QueryRequest, onDelta func(string) error) (*QueryResponse, error) {
	startTime := time.Now()
	queryID := uuid.New().String()

	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("query", req.Query),
		zap.String("category", string(req.Category)),
	)

	results, err := e.searcher.Search(ctx, req.Query, req.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	var answer strings.Builder
	err = e.generator.StreamAnswer(ctx, req.Query, FormatContext(results), func(delta string) error {
		answer.WriteString(delta)
		if onDelta != nil {
			return onDelta(delta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			FileName:   r.Chunk.FileName,
			Period:     r.Chunk.Period,
			Score:      r.Score,
		})
	}

	latency := int(time.Since(startTime).Milliseconds())
	logger.Info("Query processed successfully",
		zap.String("query_id", queryID),
		zap.Int("sources", len(sources)),
		zap.Int("latency_ms", latency),
	)

	return &QueryResponse{
		ID:        queryID,
		Query:     req.Query,
		Response:  answer.String(),
		Sources:   sources,
		LatencyMS: latency,
	}, nil
}

// Answer is Stream without a fragment callback.
func (e *Engine) Answer(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	return e.Stream(ctx, req, nil)
}

// FormatContext renders ranked chunks as provenance-labelled blocks in rank
// order.
func FormatContext(results []retrieval.Result) string {
	if len(results) == 0 {
		return noContext
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[Source %d]\n", i+1)
		fmt.Fprintf(&b, "File: %s\n", r.Chunk.FileName)
		writeLabel(&b, "Origin", r.Chunk.Source)
		writeLabel(&b, "Indicator", r.Chunk.CaseName)
		writeLabel(&b, "Period", r.Chunk.Period)
		writeLabel(&b, "Description", r.Chunk.Description)
		b.WriteString("Content:\n")
		b.WriteString(r.Chunk.Content)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, blockSeparator)
}

func writeLabel(b *strings.Builder, label, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
