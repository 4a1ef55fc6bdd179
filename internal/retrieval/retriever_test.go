package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat/backend/internal/storage/models"
	"github.com/docchat/backend/pkg/config"
)

type fakeSource struct {
	chunks    []models.Chunk
	err       error
	calls     int
	afterList func()
}

func (f *fakeSource) ListChunks(context.Context) ([]models.Chunk, error) {
	f.calls++
	chunks := f.chunks
	if f.afterList != nil {
		f.afterList()
	}
	return chunks, f.err
}

type mapCache struct {
	entries map[string][]byte
	gen     int64
}

func (m *mapCache) Generation(context.Context) (int64, error) {
	return m.gen, nil
}

func (m *mapCache) invalidate() {
	m.gen++
	m.entries = map[string][]byte{}
}

func (m *mapCache) GetQuery(_ context.Context, key string, response any) (bool, error) {
	data, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, response)
}

func (m *mapCache) SetQuery(_ context.Context, key string, response any, _ time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

func dengueChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "d2_0", DocumentID: "d2", Content: "Orçamento escolar do município", Category: models.CategoryEducation},
		{ID: "d1_0", DocumentID: "d1", Content: "Total de casos confirmados por bairro", CaseName: "Dengue", Period: "2023", Category: models.CategoryHealth},
	}
}

func TestSearch_Scenario(t *testing.T) {
	src := &fakeSource{chunks: dengueChunks()}

	t.Run("period bonus disabled", func(t *testing.T) {
		results, err := New(src, nil, DefaultConfig()).Search(context.Background(), "dengue casos 2023", "")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "d1_0", results[0].Chunk.ID)
		assert.Equal(t, 4, results[0].Score)
	})

	t.Run("period bonus enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.PeriodBonusEnabled = true
		results, err := New(src, nil, cfg).Search(context.Background(), "dengue casos 2023", "")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 6, results[0].Score)
	})
}

func TestScore_Components(t *testing.T) {
	r := New(&fakeSource{}, nil, DefaultConfig())
	chunk := models.Chunk{
		Content:     "Casos de DENGUE e casos de zika",
		CaseName:    "Dengue",
		Description: "Boletim semanal",
	}

	tests := []struct {
		query    string
		expected int
	}{
		{"casos", 1},
		{"casos casos", 2},
		{"casos zika", 2},
		{"dengue", 1 + 3},
		{"boletim semanal de casos", 1 + 2},
		{"de e a", 0},
		{"chikungunya", 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.expected, r.Score(tc.query, chunk))
		})
	}
}

func TestSearch_CategoryFilter(t *testing.T) {
	var chunks []models.Chunk
	for i, c := range models.Categories {
		chunks = append(chunks, models.Chunk{ID: fmt.Sprintf("c_%d", i), Content: "relatório anual", Category: c})
	}
	r := New(&fakeSource{chunks: chunks}, nil, DefaultConfig())

	for _, filter := range models.Categories {
		t.Run(string(filter), func(t *testing.T) {
			results, err := r.Search(context.Background(), "relatório", filter)
			require.NoError(t, err)

			if filter == models.CategoryGeneral {
				assert.Len(t, results, len(models.Categories))
				return
			}
			require.Len(t, results, 1)
			assert.Equal(t, filter, results[0].Chunk.Category)
		})
	}
}

func TestSearch_StableOrderAndTopK(t *testing.T) {
	var chunks []models.Chunk
	for i := 0; i < 20; i++ {
		content := "saúde"
		if i%5 == 0 {
			content = "saúde pública"
		}
		chunks = append(chunks, models.Chunk{ID: fmt.Sprintf("c_%02d", i), Content: content})
	}

	cfg := DefaultConfig()
	cfg.TopK = 6
	results, err := New(&fakeSource{chunks: chunks}, nil, cfg).Search(context.Background(), "saúde pública", "")
	require.NoError(t, err)
	require.Len(t, results, 6)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Chunk.ID)
	}
	assert.Equal(t, []string{"c_00", "c_05", "c_10", "c_15", "c_01", "c_02"}, ids)
}

func TestSearch_Monotonicity(t *testing.T) {
	r := New(&fakeSource{}, nil, DefaultConfig())
	query := "vacinação cobertura infantil municipal"

	chunk := models.Chunk{Content: "dados gerais"}
	prev := r.Score(query, chunk)
	for _, term := range []string{"vacinação", "cobertura", "infantil", "municipal"} {
		chunk.Content += " " + term
		next := r.Score(query, chunk)
		assert.GreaterOrEqual(t, next, prev)
		prev = next
	}
	assert.Equal(t, 4, prev)
}

func TestSearch_EmptyCases(t *testing.T) {
	ctx := context.Background()

	results, err := New(&fakeSource{}, nil, DefaultConfig()).Search(ctx, "dengue", "")
	require.NoError(t, err)
	assert.Empty(t, results)

	src := &fakeSource{chunks: dengueChunks()}
	results, err = New(src, nil, DefaultConfig()).Search(ctx, "a de em", "")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, src.calls)
}

func TestSearch_SourceError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := New(&fakeSource{err: boom}, nil, DefaultConfig()).Search(context.Background(), "dengue", "")
	assert.ErrorIs(t, err, boom)
}

func TestSearch_UsesCache(t *testing.T) {
	src := &fakeSource{chunks: dengueChunks()}
	cache := &mapCache{entries: map[string][]byte{}}
	r := New(src, cache, DefaultConfig())
	ctx := context.Background()

	first, err := r.Search(ctx, "Dengue casos", "")
	require.NoError(t, err)
	second, err := r.Search(ctx, "  dengue CASOS ", "")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.Len(t, cache.entries, 1)

	_, err = r.Search(ctx, "dengue casos", models.CategoryHealth)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestSearch_StaleScanNotServedAfterInvalidation(t *testing.T) {
	src := &fakeSource{chunks: dengueChunks()}
	cache := &mapCache{entries: map[string][]byte{}}
	r := New(src, cache, DefaultConfig())
	ctx := context.Background()

	// A document lands and the cache is invalidated after the scan read the
	// old chunk list but before its results are cached.
	src.afterList = func() {
		src.chunks = append(slices.Clone(src.chunks), models.Chunk{
			ID: "d3_0", DocumentID: "d3", Content: "Novos casos em 2024", Category: models.CategoryHealth,
		})
		cache.invalidate()
		src.afterList = nil
	}

	stale, err := r.Search(ctx, "dengue casos", "")
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	fresh, err := r.Search(ctx, "dengue casos", "")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	require.Len(t, fresh, 2)
	assert.Equal(t, "d1_0", fresh[0].Chunk.ID)
	assert.Equal(t, "d3_0", fresh[1].Chunk.ID)

	_, err = r.Search(ctx, "dengue casos", "")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

type brokenGenerationCache struct{ mapCache }

func (b *brokenGenerationCache) Generation(context.Context) (int64, error) {
	return 0, errors.New("redis down")
}

func TestSearch_GenerationErrorBypassesCache(t *testing.T) {
	src := &fakeSource{chunks: dengueChunks()}
	cache := &brokenGenerationCache{mapCache{entries: map[string][]byte{}}}
	r := New(src, cache, DefaultConfig())

	for i := 0; i < 2; i++ {
		results, err := r.Search(context.Background(), "dengue casos", "")
		require.NoError(t, err)
		assert.Len(t, results, 1)
	}
	assert.Equal(t, 2, src.calls)
	assert.Empty(t, cache.entries)
}

func TestNew_FillsZeroLimits(t *testing.T) {
	r := New(&fakeSource{}, nil, config.RetrievalConfig{TermWeight: 1})
	assert.Equal(t, 15, r.cfg.TopK)
	assert.Equal(t, 3, r.cfg.MinTermLength)
}
