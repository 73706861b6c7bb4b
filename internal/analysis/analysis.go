package analysis

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultFetchLimit          = 100
	DefaultClassificationLimit = 2000
	DefaultSummaryLimit        = 4000
	DefaultComparisonLimit     = 2000
)

type Options struct {
	FetchLimit          int
	ClassificationLimit int
	SummaryLimit        int
	ComparisonLimit     int
	Topics              []string
}

// Analyzer runs the read-only document operations against an index
type Analyzer struct {
	gateway llmservice.Gateway
	opts    Options
}

// Classification is the topic assigned to one document
type Classification struct {
	DocumentID string `json:"document_id"`
	Document   string `json:"document"`
	Topic      string `json:"topic"`
}

func New(gateway llmservice.Gateway, opts Options) *Analyzer {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.ClassificationLimit <= 0 {
		opts.ClassificationLimit = DefaultClassificationLimit
	}
	if opts.SummaryLimit <= 0 {
		opts.SummaryLimit = DefaultSummaryLimit
	}
	if opts.ComparisonLimit <= 0 {
		opts.ComparisonLimit = DefaultComparisonLimit
	}
	if len(opts.Topics) == 0 {
		opts.Topics = models.DefaultTopics
	}
	return &Analyzer{gateway: gateway, opts: opts}
}

// fetch is the bulk read shared by every operation
func (a *Analyzer) fetch(ctx context.Context, index models.Index) ([]models.Chunk, error) {
	chunks, err := index.Query(ctx, "", a.opts.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks: %w", err)
	}
	return chunks, nil
}

// DocumentSources lists the distinct documents present in the bulk fetch
func (a *Analyzer) DocumentSources(ctx context.Context, index models.Index) ([]models.Document, error) {
	chunks, err := a.fetch(ctx, index)
	if err != nil {
		return nil, err
	}
	return models.DocumentsOf(chunks), nil
}

// Classify assigns one configured topic to every fetched document
func (a *Analyzer) Classify(ctx context.Context, index models.Index) ([]Classification, error) {
	chunks, err := a.fetch(ctx, index)
	if err != nil {
		return nil, err
	}

	topicList := strings.Join(a.opts.Topics, ", ")
	var results []Classification
	for _, doc := range models.DocumentsOf(chunks) {
		text := truncate(joinText(chunks, func(c models.Chunk) bool { return c.DocID == doc.ID }), a.opts.ClassificationLimit)

		reply, err := a.gateway.Generate(ctx, fmt.Sprintf(models.TopicPromptTemplate, topicList, text))
		if err != nil {
			return nil, err
		}
		topic := NormalizeTopic(reply, a.opts.Topics)
		log.Debug().Str("doc", doc.Name).Str("reply", reply).Str("topic", topic).Msg("document classified")

		results = append(results, Classification{DocumentID: doc.ID, Document: doc.Name, Topic: topic})
	}
	return results, nil
}

// Summarize summarizes the document referenced by name or ID
func (a *Analyzer) Summarize(ctx context.Context, index models.Index, doc string) (string, error) {
	chunks, err := a.fetch(ctx, index)
	if err != nil {
		return "", err
	}

	text := truncate(joinText(chunks, matches(doc)), a.opts.SummaryLimit)
	if text == "" {
		return models.DocumentNotFound(doc), nil
	}

	reply, err := a.gateway.Generate(ctx, fmt.Sprintf(models.SummaryPromptTemplate, text))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// Compare describes similarities and differences between two documents
func (a *Analyzer) Compare(ctx context.Context, index models.Index, doc1, doc2 string) (string, error) {
	chunks, err := a.fetch(ctx, index)
	if err != nil {
		return "", err
	}

	text1 := truncate(joinText(chunks, matches(doc1)), a.opts.ComparisonLimit)
	text2 := truncate(joinText(chunks, matches(doc2)), a.opts.ComparisonLimit)
	if text1 == "" || text2 == "" {
		return models.DocumentNotFound(doc1 + models.ComparisonNotFoundJoiner + doc2), nil
	}

	reply, err := a.gateway.Generate(ctx, fmt.Sprintf(models.ComparisonPromptTemplate, text1, text2))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// matches selects the chunks of a document given its ID or base name
func matches(ref string) func(models.Chunk) bool {
	return func(c models.Chunk) bool {
		return c.DocID == ref || c.Source == ref
	}
}

func joinText(chunks []models.Chunk, keep func(models.Chunk) bool) string {
	var parts []string
	for _, c := range chunks {
		if keep(c) {
			parts = append(parts, c.Content)
		}
	}
	return strings.Join(parts, " ")
}

// truncate keeps at most limit characters
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// NormalizeTopic maps a model reply onto one of topics, ignoring case,
// accents and quoting. Replies matching nothing get the last topic.
func NormalizeTopic(reply string, topics []string) string {
	if len(topics) == 0 {
		return strings.TrimSpace(reply)
	}
	folded := fold(reply)
	for _, t := range topics {
		if folded == fold(t) {
			return t
		}
	}
	for _, t := range topics {
		if ft := fold(t); ft != "" && strings.Contains(folded, ft) {
			return t
		}
	}
	return topics[len(topics)-1]
}

func fold(s string) string {
	// transformers are stateful, build one per call
	accents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(accents, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	out = strings.TrimPrefix(strings.TrimSpace(out), "tema:")
	return strings.Trim(out, " \t\n'\"`*.«»")
}
