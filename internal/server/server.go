package server

import (
	"errors"
	"sync"

	"document-qa/internal/analysis"
	"document-qa/internal/helper"
	"document-qa/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrSessionNotFound = errors.New("session not found")

const maxMultipartMemory = 32 << 20

// Server exposes sessions over HTTP. Each session owns its own index and
// history.
type Server struct {
	newSession func() *rag.Session
	analyzer   *analysis.Analyzer

	mu       sync.Mutex
	sessions map[string]*rag.Session
}

func New(newSession func() *rag.Session, analyzer *analysis.Analyzer) *Server {
	return &Server{
		newSession: newSession,
		analyzer:   analyzer,
		sessions:   make(map[string]*rag.Session),
	}
}

func (s *Server) NewRouter(ginMode string) *gin.Engine {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(RequestLogger(), gin.Recovery())

	router.GET("/healthz", s.health)

	v1 := router.Group("/api/v1")
	v1.POST("/sessions", s.createSession)

	sessions := v1.Group("/sessions/:id")
	sessions.DELETE("", s.deleteSession)
	sessions.POST("/documents", s.uploadDocuments)
	sessions.GET("/documents", s.listDocuments)
	sessions.POST("/ask", s.ask)
	sessions.GET("/messages", s.messages)
	sessions.POST("/classify", s.classify)
	sessions.POST("/summary", s.summary)
	sessions.POST("/compare", s.compare)

	return router
}

func (s *Server) create() (string, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sessions[id] = s.newSession()
	s.mu.Unlock()
	return id, nil
}

func (s *Server) get(id string) (*rag.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Server) remove(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return sess.Reset()
}

// Close releases every session index
func (s *Server) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*rag.Session)
	s.mu.Unlock()

	for id, sess := range sessions {
		if err := sess.Reset(); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to release session")
		}
	}
}
