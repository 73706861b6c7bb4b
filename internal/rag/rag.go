package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"

	"github.com/rs/zerolog/log"
)

const DefaultTopK = 5

var (
	// ErrNoIndex is returned when asking before any batch was processed
	ErrNoIndex = errors.New(models.ProcessFirstMessage)
	// ErrNoText is returned when a batch yields no extractable text
	ErrNoText = errors.New("no extractable text in the uploaded PDFs")
	// ErrEmptyQuestion is returned for blank questions
	ErrEmptyQuestion = errors.New("question is empty")
)

// ChunkParser turns files into ordered chunks
type ChunkParser interface {
	ParseFiles(paths []string) ([]models.Chunk, error)
}

type Options struct {
	TopK int
}

// Session owns one index, its conversation turns and the gateway used to
// answer. Operations on a session are serialized.
type Session struct {
	mu      sync.Mutex
	parser  ChunkParser
	builder models.IndexBuilder
	gateway llmservice.Gateway
	topK    int

	index models.Index
	turns []models.Turn
}

// IngestResult describes the batch that became the current index
type IngestResult struct {
	Documents []models.Document `json:"documents"`
	Chunks    int               `json:"chunks"`
	Message   string            `json:"message"`
}

func NewSession(parser ChunkParser, builder models.IndexBuilder, gateway llmservice.Gateway, opts Options) *Session {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Session{
		parser:  parser,
		builder: builder,
		gateway: gateway,
		topK:    opts.TopK,
	}
}

// Ingest parses and indexes paths as one batch. The new index replaces the
// current one and clears the history only if every step succeeds.
func (s *Session) Ingest(ctx context.Context, paths []string) (*IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, err := s.parser.ParseFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoText
	}

	idx, err := s.builder.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}

	old := s.index
	s.index = idx
	s.turns = nil
	if old != nil {
		if err := old.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close previous index")
		}
	}

	log.Info().Int("files", len(paths)).Int("chunks", len(chunks)).Msg("batch indexed")
	return &IngestResult{
		Documents: idx.Documents(),
		Chunks:    len(chunks),
		Message:   models.ProcessedMessage,
	}, nil
}

// Ask answers question from the top-K chunks and the conversation so far
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return "", ErrNoIndex
	}
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	chunks, err := s.index.Query(ctx, question, s.topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	prompt := fmt.Sprintf(models.ChatPromptTemplate, formatHistory(s.turns), question, formatContext(chunks))
	answer, err := s.gateway.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	s.turns = append(s.turns,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	)
	log.Debug().Int("context_chunks", len(chunks)).Int("turns", len(s.turns)).Msg("question answered")
	return answer, nil
}

// WithIndex runs fn against the current index while holding the session
func (s *Session) WithIndex(fn func(models.Index) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return ErrNoIndex
	}
	return fn(s.index)
}

func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.turns...)
}

// Documents lists the documents of the current batch
func (s *Session) Documents() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	return s.index.Documents()
}

func (s *Session) HasIndex() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index != nil
}

// Reset drops the index and the history
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func formatHistory(turns []models.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteByte('\n')
		switch t.Role {
		case models.RoleUser:
			b.WriteString("Human: ")
		default:
			b.WriteString("AI: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

func formatContext(chunks []models.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return strings.Join(texts, "\n\n")
}
