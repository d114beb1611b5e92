package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the websocket frame exchanged with the frontend.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// handleWebSocket answers free-text eligibility questions over a websocket,
// one question per inbound message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		if msg.Content == "" {
			s.sendMessage(conn, Message{Type: "error", Content: "No question provided"})
			continue
		}

		s.sendMessage(conn, Message{Type: "status", Content: "Searching grants..."})

		answer, results, err := s.pipeline.AnswerQuestion(r.Context(), msg.Content)
		if err != nil {
			s.sendMessage(conn, Message{Type: "error", Content: err.Error()})
			continue
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

		s.sendMessage(conn, Message{Type: "response", Content: answer, Data: grants})
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
