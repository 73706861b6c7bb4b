package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"document-qa/internal/chromemdb"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingParser struct {
	*parser.Parser
	paths []string
}

func (p *recordingParser) ParseFiles(paths []string) ([]models.Chunk, error) {
	p.paths = append([]string(nil), paths...)
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	return p.Parser.ParseFiles(paths)
}

func newTestSession(gw llmservice.Gateway) (*Session, *recordingParser) {
	p := &recordingParser{Parser: parser.New(1000, 200)}
	return NewSession(p, chromemdb.NewBuilder(&testutil.Embedder{}), gw, Options{}), p
}

func TestAskWithoutIndex(t *testing.T) {
	gw := &testutil.Gateway{}
	s, _ := newTestSession(gw)

	_, err := s.Ask(context.Background(), "hola")
	assert.ErrorIs(t, err, ErrNoIndex)
	assert.Equal(t, models.ProcessFirstMessage, err.Error())
	assert.Empty(t, gw.Prompts)
	assert.Empty(t, s.History())
}

func TestIngestAndAsk(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", "The invoice total is 500 euros.")
	b := testutil.WritePDF(t, dir, "b.pdf", "The meeting is on Monday at noon.")

	gw := &testutil.Gateway{Reply: func(string) string { return "500 euros" }}
	s, _ := newTestSession(gw)

	res, err := s.Ingest(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, models.ProcessedMessage, res.Message)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "a.pdf", res.Documents[0].Name)
	assert.Equal(t, "b.pdf", res.Documents[1].Name)

	answer, err := s.Ask(context.Background(), "What is the invoice total?")
	require.NoError(t, err)
	assert.Equal(t, "500 euros", answer)

	prompt := gw.LastPrompt()
	assert.Contains(t, prompt, "Pregunta: What is the invoice total?")
	assert.Contains(t, prompt, "The invoice total is 500 euros.")
	assert.Contains(t, prompt, "The meeting is on Monday at noon.")
	assert.Contains(t, prompt, "Responde siempre en español.")

	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Content: "What is the invoice total?"},
		{Role: models.RoleAssistant, Content: "500 euros"},
	}, s.History())

	_, err = s.Ask(context.Background(), "And the meeting?")
	require.NoError(t, err)
	assert.Contains(t, gw.LastPrompt(), "Human: What is the invoice total?\nAI: 500 euros")
	assert.Len(t, s.History(), 4)
}

func TestAskRetrievesFromRelevantDocument(t *testing.T) {
	dir := t.TempDir()
	var invoicePages, meetingPages []string
	for i := 1; i <= 8; i++ {
		invoicePages = append(invoicePages, fmt.Sprintf("Invoice %d total amount due 500 euros", i))
		meetingPages = append(meetingPages, fmt.Sprintf("Weekly standup happens Monday morning in room %d", i))
	}
	invoice := testutil.WritePDF(t, dir, "invoice.pdf", invoicePages...)
	meeting := testutil.WritePDF(t, dir, "meeting.pdf", meetingPages...)

	gw := &testutil.Gateway{}
	s, _ := newTestSession(gw)
	res, err := s.Ingest(context.Background(), []string{invoice, meeting})
	require.NoError(t, err)
	require.Equal(t, 16, res.Chunks)

	_, err = s.Ask(context.Background(), "What is the invoice total amount?")
	require.NoError(t, err)

	retrieved := strings.SplitN(gw.LastPrompt(), "Contexto: ", 2)[1]
	assert.Contains(t, retrieved, "Invoice")
	assert.Equal(t, DefaultTopK, strings.Count(retrieved, "total amount due 500 euros"))
	for _, page := range meetingPages {
		assert.NotContains(t, retrieved, page)
	}
	assert.NotContains(t, retrieved, "standup")
}

func TestTopKLimitsContext(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"1.pdf", "2.pdf", "3.pdf"} {
		paths = append(paths, testutil.WritePDF(t, dir, name, "text of "+name, "second page of "+name))
	}

	gw := &testutil.Gateway{}
	s := NewSession(parser.New(1000, 200), chromemdb.NewBuilder(&testutil.Embedder{}), gw, Options{TopK: 2})
	_, err := s.Ingest(context.Background(), paths)
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), "page")
	require.NoError(t, err)
	retrieved := strings.SplitN(gw.LastPrompt(), "Contexto: ", 2)[1]
	assert.Equal(t, 1, strings.Count(retrieved, "\n\n"))
}

func TestIngestReplacesIndexAndClearsHistory(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", "alpha content")
	b := testutil.WritePDF(t, dir, "b.pdf", "beta content")

	gw := &testutil.Gateway{}
	s, _ := newTestSession(gw)

	_, err := s.Ingest(context.Background(), []string{a})
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "alpha?")
	require.NoError(t, err)
	require.Len(t, s.History(), 2)

	_, err = s.Ingest(context.Background(), []string{b})
	require.NoError(t, err)
	assert.Empty(t, s.History())
	assert.Equal(t, []string{"b.pdf"}, names(s.Documents()))

	_, err = s.Ask(context.Background(), "content")
	require.NoError(t, err)
	assert.NotContains(t, gw.LastPrompt(), "alpha content")
}

func TestFailedIngestKeepsState(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", "alpha content")
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o600))

	s, _ := newTestSession(&testutil.Gateway{})
	_, err := s.Ingest(context.Background(), []string{a})
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "alpha?")
	require.NoError(t, err)

	_, err = s.Ingest(context.Background(), []string{a, bad})
	assert.ErrorIs(t, err, parser.ErrParse)
	assert.Equal(t, []string{"a.pdf"}, names(s.Documents()))
	assert.Len(t, s.History(), 2)
}

func TestAskGatewayErrorAppendsNothing(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", "alpha content")

	gw := &testutil.Gateway{Err: &llmservice.APIError{StatusCode: 500}}
	s, _ := newTestSession(gw)
	_, err := s.Ingest(context.Background(), []string{a})
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), "alpha?")
	assert.ErrorIs(t, err, llmservice.ErrAPI)
	assert.Empty(t, s.History())
}

func TestIngestNoText(t *testing.T) {
	dir := t.TempDir()
	blank := testutil.WritePDF(t, dir, "blank.pdf", "")

	s, _ := newTestSession(&testutil.Gateway{})
	_, err := s.Ingest(context.Background(), []string{blank})
	assert.ErrorIs(t, err, ErrNoText)
	assert.False(t, s.HasIndex())
}

func TestCheckBatch(t *testing.T) {
	var warning *BatchWarning

	err := CheckBatch(nil)
	require.True(t, errors.As(err, &warning))
	assert.Equal(t, models.NoFilesMessage, warning.Message)

	err = CheckBatch([]string{"1.pdf", "2.pdf", "3.pdf", "4.pdf", "5.pdf", "6.pdf"})
	require.True(t, errors.As(err, &warning))
	assert.Equal(t, models.TooManyFilesMessage, warning.Message)

	err = CheckBatch([]string{"a.pdf", "notes.txt"})
	require.True(t, errors.As(err, &warning))
	assert.Equal(t, models.OnlyPDFMessage, warning.Message)

	assert.NoError(t, CheckBatch([]string{"a.pdf", "B.PDF", "c.pdf", "d.pdf", "e.pdf"}))
}

func TestIngestUploadsRemovesTempDir(t *testing.T) {
	s, p := newTestSession(&testutil.Gateway{})

	res, err := s.IngestUploads(context.Background(), []Upload{
		{Name: "report.pdf", Reader: bytes.NewReader(testutil.PDF("quarterly report"))},
		{Name: "report.pdf", Reader: bytes.NewReader(testutil.PDF("another report"))},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"report.pdf", "report.pdf"}, names(res.Documents))
	assert.NotEqual(t, res.Documents[0].ID, res.Documents[1].ID)

	require.Len(t, p.paths, 2)
	for _, path := range p.paths {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "upload %s should be removed", path)
	}
}

func TestIngestUploadsFailureRemovesTempDir(t *testing.T) {
	s, p := newTestSession(&testutil.Gateway{})

	_, err := s.IngestUploads(context.Background(), []Upload{
		{Name: "bad.pdf", Reader: strings.NewReader("garbage")},
	})
	assert.ErrorIs(t, err, parser.ErrParse)
	require.Len(t, p.paths, 1)
	_, statErr := os.Stat(p.paths[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestUploadsRejectsBatch(t *testing.T) {
	s, p := newTestSession(&testutil.Gateway{})

	_, err := s.IngestUploads(context.Background(), []Upload{{Name: "x.docx", Reader: strings.NewReader("")}})
	var warning *BatchWarning
	require.True(t, errors.As(err, &warning))
	assert.Equal(t, models.OnlyPDFMessage, warning.Message)
	assert.Nil(t, p.paths)
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", "alpha content")

	s, _ := newTestSession(&testutil.Gateway{})
	_, err := s.Ingest(context.Background(), []string{a})
	require.NoError(t, err)

	require.NoError(t, s.Reset())
	assert.False(t, s.HasIndex())
	_, err = s.Ask(context.Background(), "alpha?")
	assert.ErrorIs(t, err, ErrNoIndex)
}

func names(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}
