package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkMetadataRoundTrip(t *testing.T) {
	c := Chunk{Content: "texto", DocID: "id-1", Source: "a.pdf", Page: 3, Position: 12}

	meta := c.Metadata()
	assert.Equal(t, map[string]string{
		MetaDocID:    "id-1",
		MetaSource:   "a.pdf",
		MetaPage:     "3",
		MetaPosition: "12",
	}, meta)
	assert.Equal(t, c, ChunkFromMetadata("texto", meta))
}

func TestChunkFromMetadataMalformedNumbers(t *testing.T) {
	c := ChunkFromMetadata("x", map[string]string{MetaSource: "a.pdf", MetaPage: "dos"})
	assert.Equal(t, Chunk{Content: "x", Source: "a.pdf"}, c)
}

func TestDocumentsOf(t *testing.T) {
	docs := DocumentsOf([]Chunk{
		{DocID: "2", Source: "b.pdf"},
		{DocID: "1", Source: "a.pdf"},
		{DocID: "2", Source: "b.pdf"},
	})
	assert.Equal(t, []Document{{ID: "2", Name: "b.pdf"}, {ID: "1", Name: "a.pdf"}}, docs)
}
