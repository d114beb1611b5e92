// Package server exposes the retrieval and generation pipeline over HTTP.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/grantlab/grantrag/internal/models"
	"github.com/grantlab/grantrag/pkg/pipeline"
)

type Config struct {
	Port      string
	StaticDir string
	TopK      int
}

type Server struct {
	config   Config
	pipeline *pipeline.Pipeline
}

func New(config Config, p *pipeline.Pipeline) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.StaticDir == "" {
		config.StaticDir = "./build"
	}
	if config.TopK == 0 {
		config.TopK = 3
	}
	return &Server{
		config:   config,
		pipeline: p,
	}
}

// Router builds the API routes plus static file serving.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/eligibility", s.handleEligibility).Methods(http.MethodPost)
	api.HandleFunc("/questions", s.handleQuestions).Methods(http.MethodPost)
	api.HandleFunc("/answer", s.handleAnswer).Methods(http.MethodPost)
	api.HandleFunc("/generate_proposal", s.handleProposal).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.PathPrefix("/").HandlerFunc(s.handleStatic)

	return r
}

// ListenAndServe blocks serving the API on the configured port.
func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Router())
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResult struct {
	ProgramName    string  `json:"program_name"`
	ProgramStatus  string  `json:"program_status"`
	Location       string  `json:"location"`
	Country        string  `json:"country"`
	MainIndustry   string  `json:"main_industry"`
	TargetAudience string  `json:"target_audience"`
	ContentPreview string  `json:"content_preview"`
	RelevanceScore float32 `json:"relevance_score"`
	FullContent    string  `json:"full_content"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "No query provided")
		return
	}
	if req.K == 0 {
		req.K = s.config.TopK
	}
	if req.K < 0 {
		writeError(w, http.StatusBadRequest, "k must be positive")
		return
	}

	results, err := s.pipeline.Search(r.Context(), req.Query, req.K)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	formatted := make([]searchResult, 0, len(results))
	for _, res := range results {
		formatted = append(formatted, searchResult{
			ProgramName:    metaOr(res.Chunk.Metadata, "program_name"),
			ProgramStatus:  metaOr(res.Chunk.Metadata, "program_status"),
			Location:       metaOr(res.Chunk.Metadata, "location"),
			Country:        metaOr(res.Chunk.Metadata, "country"),
			MainIndustry:   metaOr(res.Chunk.Metadata, "main_industry"),
			TargetAudience: metaOr(res.Chunk.Metadata, "target_audience"),
			ContentPreview: preview(res.Chunk.Text, 500),
			RelevanceScore: res.Score,
			FullContent:    res.Chunk.Text,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": formatted})
}

type contentRequest struct {
	GrantContent string `json:"grant_content"`
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GrantContent == "" {
		writeError(w, http.StatusBadRequest, "No grant content provided")
		return
	}

	points, grantType := s.pipeline.ExtractEligibility(r.Context(), req.GrantContent)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eligibility_points": points,
		"grant_type":         grantType,
	})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GrantContent == "" {
		writeError(w, http.StatusBadRequest, "No grant content provided")
		return
	}

	questions, grantType := s.pipeline.GenerateQuestions(r.Context(), req.GrantContent)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"questions":  questions,
		"grant_type": grantType,
	})
}

type answerRequest struct {
	Question string `json:"question"`
}

type relevantGrant struct {
	ProgramName   string `json:"program_name"`
	ProgramStatus string `json:"program_status"`
	Location      string `json:"location"`
	Country       string `json:"country"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}

	answer, results, err := s.pipeline.AnswerQuestion(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	grants := make([]relevantGrant, 0, len(results))
	for _, res := range results {
		grants = append(grants, relevantGrant{
			ProgramName:   metaOr(res.Chunk.Metadata, "program_name"),
			ProgramStatus: metaOr(res.Chunk.Metadata, "program_status"),
			Location:      metaOr(res.Chunk.Metadata, "location"),
			Country:       metaOr(res.Chunk.Metadata, "country"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"answer":          answer,
		"relevant_grants": grants,
	})
}

type proposalRequest struct {
	GrantContent string            `json:"grant_content"`
	UserInputs   map[string]string `json:"user_inputs"`
	GrantType    string            `json:"grant_type"`
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GrantContent == "" {
		writeError(w, http.StatusBadRequest, "No grant content provided")
		return
	}
	if len(req.UserInputs) == 0 {
		writeError(w, http.StatusBadRequest, "No user inputs provided")
		return
	}

	grantType := models.GrantType(req.GrantType)
	if grantType != models.GrantTypeIndividual {
		grantType = models.GrantTypeOrganization
	}

	proposal := s.pipeline.GenerateProposal(r.Context(), req.GrantContent, req.UserInputs, grantType)
	writeJSON(w, http.StatusOK, map[string]interface{}{"proposal": proposal})
}

// handleStatic serves the frontend build, falling back to index.html for
// client-side routes.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.config.StaticDir, filepath.Clean(r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "index.html"))
}

func metaOr(metadata map[string]string, key string) string {
	if metadata == nil || metadata[key] == "" {
		return "N/A"
	}
	return metadata[key]
}

func preview(text string, max int) string {
	if len(text) <= max {
		return text
	}
	// Back the cut up to a rune boundary so the preview stays valid UTF-8.
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
