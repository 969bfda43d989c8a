package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// QuestionService is the submitQuestion entry point of the core.
type QuestionService interface {
	SubmitQuestion(ctx context.Context, ownerID, documentID, question string, tier models.Tier) (string, error)
}

// NamespaceService is the ensureNamespace entry point of the core.
type NamespaceService interface {
	EnsureNamespace(ctx context.Context, documentID string) error
}

type Config struct {
	Addr           string
	RequestTimeout time.Duration
}

type Server struct {
	config     Config
	questions  QuestionService
	namespaces NamespaceService
	transcript types.TranscriptStore
}

// wsMessage is the envelope for the interactive chat endpoint.
type wsMessage struct {
	Type       string `json:"type"`
	DocumentID string `json:"document_id,omitempty"`
	Content    string `json:"content"`
}

type questionRequest struct {
	Question string `json:"question"`
}

type questionResponse struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer,omitempty"`
	Message string `json:"message,omitempty"`
}

func New(config Config, questions QuestionService, namespaces NamespaceService, transcript types.TranscriptStore) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 2 * time.Minute
	}

	return &Server{
		config:     config,
		questions:  questions,
		namespaces: namespaces,
		transcript: transcript,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents/{id}/ingest", s.handleIngest)
	mux.HandleFunc("POST /api/documents/{id}/questions", s.handleQuestion)
	mux.HandleFunc("GET /api/documents/{id}/messages", s.handleMessages)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

// owner reads the identity the auth layer attached to the request. The
// core trusts these values and does not authenticate.
func owner(r *http.Request) (string, models.Tier) {
	ownerID := r.Header.Get("X-Owner-Id")
	tier := models.Tier(r.Header.Get("X-Owner-Tier"))
	if tier != models.TierPaid {
		tier = models.TierFree
	}
	return ownerID, tier
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	if err := s.namespaces.EnsureNamespace(ctx, documentID); err != nil {
		log.Printf("ingest failed for document %s: %v", documentID, err)
		writeJSON(w, http.StatusBadGateway, map[string]bool{"completed": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"completed": true})
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	ownerID, tier := owner(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id header", http.StatusBadRequest)
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	answer, err := s.questions.SubmitQuestion(ctx, ownerID, documentID, req.Question, tier)
	if err != nil {
		s.writeQuestionFailure(w, documentID, err)
		return
	}

	writeJSON(w, http.StatusOK, questionResponse{Success: true, Answer: answer})
}

func (s *Server) writeQuestionFailure(w http.ResponseWriter, documentID string, err error) {
	var quota *models.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		// A business outcome, not a fault: name the ceiling for the user.
		writeJSON(w, http.StatusOK, questionResponse{Success: false, Message: quota.Error()})
	case errors.Is(err, models.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, questionResponse{
			Success: false,
			Message: "another question for this document is still being answered, try again shortly",
		})
	default:
		log.Printf("question failed for document %s: %v", documentID, err)
		writeJSON(w, http.StatusBadGateway, questionResponse{
			Success: false,
			Message: "could not answer your question, please try again",
		})
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	ownerID, _ := owner(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id header", http.StatusBadRequest)
		return
	}

	messages, err := s.transcript.Messages(r.Context(), ownerID, documentID)
	if err != nil {
		log.Printf("listing messages failed for document %s: %v", documentID, err)
		http.Error(w, "could not load messages", http.StatusInternalServerError)
		return
	}

	type messageJSON struct {
		ID        string    `json:"id"`
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}

	out := make([]messageJSON, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageJSON{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ownerID, tier := owner(r)
	if ownerID == "" {
		http.Error(w, "missing X-Owner-Id header", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendWS(conn, wsMessage{Type: "error", Content: "invalid message"})
			continue
		}

		switch msg.Type {
		case "question":
			s.answerOverWS(conn, ownerID, tier, msg)
		default:
			s.sendWS(conn, wsMessage{Type: "error", Content: "unknown message type"})
		}
	}
}

func (s *Server) answerOverWS(conn *websocket.Conn, ownerID string, tier models.Tier, msg wsMessage) {
	if msg.DocumentID == "" || msg.Content == "" {
		s.sendWS(conn, wsMessage{Type: "error", Content: "document_id and content are required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
	defer cancel()

	answer, err := s.questions.SubmitQuestion(ctx, ownerID, msg.DocumentID, msg.Content, tier)
	if err != nil {
		var quota *models.QuotaExceededError
		if errors.As(err, &quota) {
			s.sendWS(conn, wsMessage{Type: "quota", DocumentID: msg.DocumentID, Content: quota.Error()})
			return
		}
		log.Printf("question failed for document %s: %v", msg.DocumentID, err)
		s.sendWS(conn, wsMessage{Type: "error", DocumentID: msg.DocumentID,
			Content: "could not answer your question, please try again"})
		return
	}

	s.sendWS(conn, wsMessage{Type: "answer", DocumentID: msg.DocumentID, Content: answer})
}

func (s *Server) sendWS(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
