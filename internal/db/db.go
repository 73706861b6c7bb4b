package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/models"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// ChunkRow is one embedded chunk of an upload batch
type ChunkRow struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	BatchID       string          `bun:"batch_id,notnull"`
	Seq           int             `bun:"seq,notnull"`
	DocID         string          `bun:"doc_id,notnull"`
	Source        string          `bun:"source,notnull"`
	Page          int             `bun:"page,notnull"`
	Position      int             `bun:"position,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

func (r ChunkRow) chunk() models.Chunk {
	return models.Chunk{
		Content:  r.Content,
		DocID:    r.DocID,
		Source:   r.Source,
		Page:     r.Page,
		Position: r.Position,
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// InitDB creates the pgvector extension and the chunks table
func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*ChunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ChunkRow)(nil)).
		Index("document_chunks_batch_idx").
		IfNotExists().
		Column("batch_id", "seq").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create batch index: %w", err)
	}
	return nil
}

// Store builds indexes backed by a shared Postgres table. Each batch is
// isolated by its batch id.
type Store struct {
	db         *bun.DB
	embedder   embeddings.Embedder
	vectorSize int
}

// Open connects to Postgres and prepares the schema
func Open(ctx context.Context, cfg config.DatabaseConfig, embedder embeddings.Embedder) (*Store, error) {
	db := NewDB(ConnectDB(cfg.URL), cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := InitDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, embedder: embedder, vectorSize: cfg.VectorSize}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Build embeds chunks and inserts them in a single transaction
func (s *Store) Build(ctx context.Context, chunks []models.Chunk) (models.Index, error) {
	batchID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	idx := &Index{store: s, batchID: batchID, docs: models.DocumentsOf(chunks), n: len(chunks)}
	if len(chunks) == 0 {
		return idx, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", embedding.ErrEmbedding, len(vectors), len(chunks))
	}

	rows := make([]ChunkRow, len(chunks))
	for i, c := range chunks {
		if s.vectorSize > 0 && len(vectors[i]) != s.vectorSize {
			return nil, fmt.Errorf("%w: vector size %d, expected %d", embedding.ErrEmbedding, len(vectors[i]), s.vectorSize)
		}
		rows[i] = ChunkRow{
			BatchID:   batchID,
			Seq:       i,
			DocID:     c.DocID,
			Source:    c.Source,
			Page:      c.Page,
			Position:  c.Position,
			Content:   c.Content,
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	log.Debug().Str("batch", batchID).Int("chunks", len(rows)).Msg("stored chunks in postgres")
	return idx, nil
}

// Index is the view of one batch inside the chunks table
type Index struct {
	store   *Store
	batchID string
	docs    []models.Document
	n       int
}

func (i *Index) Query(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 || i.n == 0 {
		return nil, nil
	}

	var vector []float32
	if strings.TrimSpace(query) != "" {
		var err error
		vector, err = i.store.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", embedding.ErrEmbedding, err)
		}
	}

	var rows []ChunkRow
	if err := i.selectQuery(&rows, vector, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	chunks := make([]models.Chunk, len(rows))
	for j, r := range rows {
		chunks[j] = r.chunk()
	}
	return chunks, nil
}

// selectQuery orders the batch by distance to vector, or by insertion order
// when vector is nil
func (i *Index) selectQuery(rows *[]ChunkRow, vector []float32, k int) *bun.SelectQuery {
	q := i.store.db.NewSelect().
		Model(rows).
		Column("doc_id", "source", "page", "position", "content").
		Where("batch_id = ?", i.batchID).
		Limit(min(k, i.n))

	if vector == nil {
		return q.Order("seq")
	}
	return q.OrderExpr("embedding <=> ?", pgvector.NewVector(vector))
}

func (i *Index) Documents() []models.Document {
	return append([]models.Document(nil), i.docs...)
}

func (i *Index) Len() int {
	return i.n
}

// Close deletes the batch rows
func (i *Index) Close() error {
	if i.n == 0 {
		return nil
	}
	_, err := i.store.db.NewDelete().
		Model((*ChunkRow)(nil)).
		Where("batch_id = ?", i.batchID).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to delete batch %s: %w", i.batchID, err)
	}
	i.n = 0
	i.docs = nil
	return nil
}
