package chromemdb

import (
	"context"
	"fmt"
	"strings"

	"document-qa/internal/embedding"
	"document-qa/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

const (
	collectionName = "chunks"
	// vectors are precomputed, so insertion stays sequential and keeps IDs ordered
	addConcurrency = 1
)

// Builder creates in-memory chromem indexes, one database per upload batch
type Builder struct {
	embedder embeddings.Embedder
}

func NewBuilder(embedder embeddings.Embedder) *Builder {
	return &Builder{embedder: embedder}
}

// Build embeds every chunk and loads them into a fresh collection. Nothing is
// kept if any chunk fails.
func (b *Builder) Build(ctx context.Context, chunks []models.Chunk) (models.Index, error) {
	m, err := NewVectorDBManager(b.embedder)
	if err != nil {
		return nil, err
	}
	if err := m.AddChunks(ctx, chunks); err != nil {
		_ = m.Close()
		return nil, err
	}
	log.Debug().Int("chunks", m.Len()).Int("documents", len(m.docs)).Msg("built in-memory index")
	return m, nil
}

// VectorDBManager encapsulates one chromem-go database holding a single batch
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder

	// insertion order, used for bulk fetches
	chunks []models.Chunk
	docs   []models.Document
}

// NewVectorDBManager initializes an empty in-memory collection
func NewVectorDBManager(embedder embeddings.Embedder) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, EmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{
		db:         db,
		collection: c,
		embedder:   embedder,
	}, nil
}

// AddChunks embeds and stores chunks
func (m *VectorDBManager) AddChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", embedding.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", embedding.ErrEmbedding, len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("%s-%d", c.DocID, c.Position),
			Content:   c.Content,
			Metadata:  c.Metadata(),
			Embedding: vectors[i],
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, addConcurrency); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	m.chunks = append(m.chunks, chunks...)
	m.docs = models.DocumentsOf(m.chunks)
	return nil
}

// Query returns the k chunks most similar to query. An empty query returns
// the first k chunks in insertion order.
func (m *VectorDBManager) Query(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}

	if strings.TrimSpace(query) == "" {
		n := min(k, len(m.chunks))
		return append([]models.Chunk(nil), m.chunks[:n]...), nil
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbedding, err)
	}

	n := min(k, m.collection.Count())
	results, err := m.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.Chunk, len(results))
	for i, r := range results {
		out[i] = models.ChunkFromMetadata(r.Content, r.Metadata)
	}
	return out, nil
}

func (m *VectorDBManager) Documents() []models.Document {
	return append([]models.Document(nil), m.docs...)
}

func (m *VectorDBManager) Len() int {
	return len(m.chunks)
}

// Close drops the collection
func (m *VectorDBManager) Close() error {
	if m.collection == nil {
		return nil
	}
	err := m.db.DeleteCollection(m.collection.Name)
	m.collection = nil
	m.chunks = nil
	m.docs = nil
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// EmbeddingFunc adapts a langchaingo embedder to chromem
func EmbeddingFunc(embedder embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}
