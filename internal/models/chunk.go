package models

import (
	"context"
	"strconv"
)

// Chunk represents a bounded span of extracted document text with its origin
type Chunk struct {
	Content  string `json:"content"`
	DocID    string `json:"doc_id"`
	Source   string `json:"source"`
	Page     int    `json:"page"`
	Position int    `json:"position"`
}

// Document identifies one uploaded file. ID is unique per upload, Name is the
// base file name shown to users and may collide across uploads.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message of the conversation history
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Index is a queryable collection of chunks built from one upload batch.
//
// An empty query is the bulk-fetch idiom: it returns up to k chunks
// regardless of relevance instead of failing.
type Index interface {
	Query(ctx context.Context, query string, k int) ([]Chunk, error)
	Documents() []Document
	Len() int
	Close() error
}

// IndexBuilder creates a fresh Index from a batch of chunks. A failed build
// leaves nothing behind.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []Chunk) (Index, error)
}

// DocumentsOf returns the distinct documents of chunks in first-seen order
func DocumentsOf(chunks []Chunk) []Document {
	seen := make(map[string]bool)
	var docs []Document
	for _, c := range chunks {
		if seen[c.DocID] {
			continue
		}
		seen[c.DocID] = true
		docs = append(docs, Document{ID: c.DocID, Name: c.Source})
	}
	return docs
}

// Metadata flattens chunk attributes into string metadata for vector stores
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaDocID:    c.DocID,
		MetaSource:   c.Source,
		MetaPage:     strconv.Itoa(c.Page),
		MetaPosition: strconv.Itoa(c.Position),
	}
}

// ChunkFromMetadata rebuilds a chunk from content and metadata written by Metadata
func ChunkFromMetadata(content string, meta map[string]string) Chunk {
	// missing or malformed numbers read as 0
	page, _ := strconv.Atoi(meta[MetaPage])
	position, _ := strconv.Atoi(meta[MetaPosition])
	return Chunk{
		Content:  content,
		DocID:    meta[MetaDocID],
		Source:   meta[MetaSource],
		Page:     page,
		Position: position,
	}
}
