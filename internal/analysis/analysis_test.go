package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceIndex struct {
	chunks []models.Chunk
	err    error
	k      int
}

func (s *sliceIndex) Query(_ context.Context, query string, k int) ([]models.Chunk, error) {
	s.k = k
	if s.err != nil {
		return nil, s.err
	}
	if query != "" {
		return nil, errors.New("unexpected similarity query")
	}
	return s.chunks[:min(k, len(s.chunks))], nil
}

func (s *sliceIndex) Documents() []models.Document { return models.DocumentsOf(s.chunks) }
func (s *sliceIndex) Len() int                     { return len(s.chunks) }
func (s *sliceIndex) Close() error                 { return nil }

func twoDocs() *sliceIndex {
	return &sliceIndex{chunks: []models.Chunk{
		{Content: "quarterly revenue grew", DocID: "1", Source: "finance.pdf"},
		{Content: "new vaccine trial", DocID: "2", Source: "health.pdf"},
		{Content: "profit margins improved", DocID: "1", Source: "finance.pdf", Position: 1},
	}}
}

func TestClassify(t *testing.T) {
	gw := &testutil.Gateway{Reply: func(p string) string {
		if strings.Contains(p, "revenue") {
			return " Negocios y Finanzas \n"
		}
		return "'salud y medicina'"
	}}
	idx := twoDocs()

	got, err := New(gw, Options{}).Classify(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, []Classification{
		{DocumentID: "1", Document: "finance.pdf", Topic: "Negocios y Finanzas"},
		{DocumentID: "2", Document: "health.pdf", Topic: "Salud y Medicina"},
	}, got)
	assert.Equal(t, DefaultFetchLimit, idx.k)

	require.Len(t, gw.Prompts, 2)
	assert.Contains(t, gw.Prompts[0], "Texto: 'quarterly revenue grew profit margins improved'")
	assert.Contains(t, gw.Prompts[0], strings.Join(models.DefaultTopics, ", "))
	assert.Contains(t, gw.Prompts[0], "crecimiento del 5%.")
}

func TestClassifyTruncates(t *testing.T) {
	gw := &testutil.Gateway{}
	idx := &sliceIndex{chunks: []models.Chunk{
		{Content: strings.Repeat("ñ", 50), DocID: "1", Source: "a.pdf"},
	}}

	_, err := New(gw, Options{ClassificationLimit: 10}).Classify(context.Background(), idx)
	require.NoError(t, err)
	assert.Contains(t, gw.LastPrompt(), "Texto: '"+strings.Repeat("ñ", 10)+"'")
}

func TestClassifyGroupsSameNameByID(t *testing.T) {
	gw := &testutil.Gateway{}
	idx := &sliceIndex{chunks: []models.Chunk{
		{Content: "one", DocID: "1", Source: "same.pdf"},
		{Content: "two", DocID: "2", Source: "same.pdf"},
	}}

	got, err := New(gw, Options{}).Classify(context.Background(), idx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Otros", got[0].Topic)
	assert.Len(t, gw.Prompts, 2)
}

func TestNormalizeTopic(t *testing.T) {
	topics := models.DefaultTopics
	for reply, want := range map[string]string{
		"Arte y Cultura":                 "Arte y Cultura",
		"ciencia y tecnologia":           "Ciencia y Tecnología",
		"Tema: 'Política y Sociedad'":    "Política y Sociedad",
		"**Salud y Medicina**.":          "Salud y Medicina",
		"El tema es Negocios y Finanzas": "Negocios y Finanzas",
		"Deportes":                       "Otros",
		"":                               "Otros",
	} {
		assert.Equal(t, want, NormalizeTopic(reply, topics), reply)
	}
	assert.Equal(t, "raw", NormalizeTopic(" raw ", nil))
}

func TestSummarize(t *testing.T) {
	gw := &testutil.Gateway{Reply: func(string) string { return "  resumen  " }}
	a := New(gw, Options{SummaryLimit: 30})

	got, err := a.Summarize(context.Background(), twoDocs(), "finance.pdf")
	require.NoError(t, err)
	assert.Equal(t, "resumen", got)
	assert.Equal(t, fmt.Sprintf(models.SummaryPromptTemplate, "quarterly revenue grew profit "), gw.LastPrompt())

	got, err = a.Summarize(context.Background(), twoDocs(), "2")
	require.NoError(t, err)
	assert.Equal(t, "resumen", got)
	assert.Contains(t, gw.LastPrompt(), "new vaccine trial")
}

func TestSummarizeNotFound(t *testing.T) {
	gw := &testutil.Gateway{}
	got, err := New(gw, Options{}).Summarize(context.Background(), twoDocs(), "missing.pdf")
	require.NoError(t, err)
	assert.Equal(t, "No se pudo encontrar el contenido del documento 'missing.pdf'.", got)
	assert.Empty(t, gw.Prompts)
}

func TestCompare(t *testing.T) {
	gw := &testutil.Gateway{Reply: func(string) string { return "comparación\n" }}
	got, err := New(gw, Options{}).Compare(context.Background(), twoDocs(), "finance.pdf", "health.pdf")
	require.NoError(t, err)
	assert.Equal(t, "comparación", got)
	assert.Equal(t, fmt.Sprintf(models.ComparisonPromptTemplate,
		"quarterly revenue grew profit margins improved", "new vaccine trial"), gw.LastPrompt())
}

func TestCompareNotFound(t *testing.T) {
	gw := &testutil.Gateway{}
	got, err := New(gw, Options{}).Compare(context.Background(), twoDocs(), "finance.pdf", "x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "No se pudo encontrar el contenido del documento 'finance.pdf o x.pdf'.", got)
	assert.Empty(t, gw.Prompts)
}

func TestCompareSameDocumentIsAllowed(t *testing.T) {
	gw := &testutil.Gateway{}
	_, err := New(gw, Options{}).Compare(context.Background(), twoDocs(), "health.pdf", "health.pdf")
	require.NoError(t, err)
	assert.Len(t, gw.Prompts, 1)
}

func TestDocumentSources(t *testing.T) {
	got, err := New(&testutil.Gateway{}, Options{}).DocumentSources(context.Background(), twoDocs())
	require.NoError(t, err)
	assert.Equal(t, []models.Document{{ID: "1", Name: "finance.pdf"}, {ID: "2", Name: "health.pdf"}}, got)
}

func TestFetchLimit(t *testing.T) {
	idx := twoDocs()
	got, err := New(&testutil.Gateway{}, Options{FetchLimit: 1}).DocumentSources(context.Background(), idx)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.k)
	assert.Len(t, got, 1)
}

func TestErrorsPropagate(t *testing.T) {
	idx := &sliceIndex{err: errors.New("index down")}
	_, err := New(&testutil.Gateway{}, Options{}).Classify(context.Background(), idx)
	assert.Error(t, err)

	gw := &testutil.Gateway{Err: &llmservice.APIError{StatusCode: 503}}
	_, err = New(gw, Options{}).Summarize(context.Background(), twoDocs(), "finance.pdf")
	assert.ErrorIs(t, err, llmservice.ErrAPI)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 3))
	assert.Equal(t, "áé", truncate("áéí", 2))
	assert.Equal(t, "", truncate("", 3))
}
