package server

import (
	"errors"
	"fmt"
	"net/http"

	"document-qa/internal/analysis"
	"document-qa/internal/embedding"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type SummaryRequest struct {
	Document string `json:"document" binding:"required"`
}

type CompareRequest struct {
	Document1 string `json:"document1" binding:"required"`
	Document2 string `json:"document2" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	OK(c, gin.H{"status": "ok"})
}

func (s *Server) createSession(c *gin.Context) {
	id, err := s.create()
	if err != nil {
		Error(c, http.StatusInternalServerError, CodeInternalServer, "create session failed")
		return
	}
	OK(c, gin.H{"id": id})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.remove(id); err != nil {
		writeError(c, err)
		return
	}
	OK(c, gin.H{"deleted_session_id": id})
}

func (s *Server) session(c *gin.Context) (*rag.Session, bool) {
	sess, err := s.get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) uploadDocuments(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid multipart form")
		return
	}

	var uploads []rag.Upload
	if form != nil {
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				Error(c, http.StatusBadRequest, CodeBadRequest, "invalid upload "+fh.Filename)
				return
			}
			defer f.Close()
			uploads = append(uploads, rag.Upload{Name: fh.Filename, Reader: f})
		}
	}

	result, err := sess.IngestUploads(c.Request.Context(), uploads)
	if err != nil {
		writeProcessingError(c, err)
		return
	}
	OK(c, result)
}

func (s *Server) listDocuments(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	docs := []models.Document{}
	err := sess.WithIndex(func(idx models.Index) error {
		found, err := s.analyzer.DocumentSources(c.Request.Context(), idx)
		if err != nil {
			return err
		}
		docs = append(docs, found...)
		return nil
	})
	if err != nil && !errors.Is(err, rag.ErrNoIndex) {
		writeError(c, err)
		return
	}
	OK(c, docs)
}

func (s *Server) ask(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := sess.Ask(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	OK(c, gin.H{"answer": answer, "answer_html": renderOrEmpty(answer)})
}

func (s *Server) messages(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	turns := sess.History()
	if turns == nil {
		turns = []models.Turn{}
	}
	OK(c, turns)
}

func (s *Server) classify(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var results []analysis.Classification
	err := sess.WithIndex(func(idx models.Index) error {
		var err error
		results, err = s.analyzer.Classify(c.Request.Context(), idx)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	OK(c, results)
}

func (s *Server) summary(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}

	var summary string
	err := sess.WithIndex(func(idx models.Index) error {
		var err error
		summary, err = s.analyzer.Summarize(c.Request.Context(), idx, req.Document)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	OK(c, gin.H{
		"document":     req.Document,
		"summary":      summary,
		"summary_html": renderOrEmpty(summary),
	})
}

func (s *Server) compare(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}
	if req.Document1 == req.Document2 {
		Error(c, http.StatusBadRequest, CodeBadRequest, models.SameDocumentsMessage)
		return
	}

	var comparison string
	err := sess.WithIndex(func(idx models.Index) error {
		var err error
		comparison, err = s.analyzer.Compare(c.Request.Context(), idx, req.Document1, req.Document2)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	OK(c, gin.H{
		"document1":       req.Document1,
		"document2":       req.Document2,
		"comparison":      comparison,
		"comparison_html": renderOrEmpty(comparison),
	})
}

func renderOrEmpty(text string) string {
	out, err := RenderMarkdown(text)
	if err != nil {
		log.Warn().Err(err).Msg("failed to render markdown")
		return ""
	}
	return out
}

func writeError(c *gin.Context, err error) {
	var warning *rag.BatchWarning
	if errors.As(err, &warning) {
		Error(c, http.StatusBadRequest, CodeBadRequest, warning.Message)
		return
	}
	status, code := errorStatus(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	Error(c, status, code, err.Error())
}

// writeProcessingError reports a failed upload with the user-facing message
func writeProcessingError(c *gin.Context, err error) {
	var warning *rag.BatchWarning
	if errors.As(err, &warning) || errors.Is(err, ErrSessionNotFound) {
		writeError(c, err)
		return
	}
	status, code := errorStatus(err)
	log.Error().Err(err).Msg("failed to process upload")
	Error(c, status, code, fmt.Sprintf(models.ProcessingErrorMessage, err))
}

func errorStatus(err error) (int, int) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, CodeSessionNotFound
	case errors.Is(err, rag.ErrNoIndex):
		return http.StatusConflict, CodeNoIndex
	case errors.Is(err, rag.ErrEmptyQuestion):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, parser.ErrParse), errors.Is(err, parser.ErrUnsupportedFormat), errors.Is(err, rag.ErrNoText):
		return http.StatusUnprocessableEntity, CodeProcessing
	case errors.Is(err, llmservice.ErrAPI), errors.Is(err, embedding.ErrEmbedding):
		return http.StatusBadGateway, CodeUpstream
	default:
		return http.StatusInternalServerError, CodeInternalServer
	}
}
