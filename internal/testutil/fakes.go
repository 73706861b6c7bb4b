package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// ErrFake is returned by fakes configured to fail
var ErrFake = errors.New("fake failure")

// Embedder is a deterministic bag-of-words embedder. Texts sharing words get
// similar vectors; no vector is ever zero.
type Embedder struct {
	Dim int
	// FailOn makes any text containing it fail to embed
	FailOn string

	mu    sync.Mutex
	Calls int
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.Calls++
	e.mu.Unlock()

	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, ErrFake
	}
	dim := e.Dim
	if dim <= 1 {
		dim = 64
	}
	v := make([]float32, dim)
	v[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[1+int(h.Sum32()%uint32(dim-1))]++
	}
	return v, nil
}

// Gateway records prompts and answers with Reply (or a fixed string)
type Gateway struct {
	Reply func(prompt string) string
	Err   error

	mu      sync.Mutex
	Prompts []string
}

func (g *Gateway) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.Prompts = append(g.Prompts, prompt)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	if g.Reply != nil {
		return g.Reply(prompt), nil
	}
	return "respuesta", nil
}

// LastPrompt returns the most recent prompt or ""
func (g *Gateway) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Prompts) == 0 {
		return ""
	}
	return g.Prompts[len(g.Prompts)-1]
}
