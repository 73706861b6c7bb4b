package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

var (
	ErrParse             = errors.New("failed to parse document")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
)

// Parser turns PDF files into overlapping chunks
type Parser struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.TextSplitter
}

// New creates a parser. Non-positive sizes fall back to the defaults and an
// overlap that is not smaller than the chunk size is halved.
func New(chunkSize, chunkOverlap int) *Parser {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}

	return &Parser{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

func (p *Parser) ChunkSize() int    { return p.chunkSize }
func (p *Parser) ChunkOverlap() int { return p.chunkOverlap }

// ParseFiles parses every file in order. Any failure aborts the whole batch.
func (p *Parser) ParseFiles(paths []string) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, path := range paths {
		docChunks, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, docChunks...)
	}
	return chunks, nil
}

// ParseFile extracts and chunks a single PDF. Every call assigns a fresh
// document ID, so the same file parsed twice yields two documents.
func (p *Parser) ParseFile(path string) ([]models.Chunk, error) {
	name := filepath.Base(path)
	if ext := strings.ToLower(filepath.Ext(path)); ext != models.PDFExtension {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	pages, err := ExtractPages(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrParse, name, err)
	}

	docID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	for i, text := range pages {
		splits, err := p.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("%w %s: page %d: %v", ErrParse, name, i+1, err)
		}
		for _, s := range splits {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Content:  s,
				DocID:    docID,
				Source:   name,
				Page:     i + 1,
				Position: len(chunks),
			})
		}
	}

	log.Debug().Str("file", name).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Parsed document")
	return chunks, nil
}

// ExtractPages returns the plain text of every page, index 0 being page 1
func ExtractPages(path string) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("invalid pdf: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return pages, nil
}
