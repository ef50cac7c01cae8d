package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/psytechlab/teplo/internal/archive"
	"github.com/psytechlab/teplo/internal/config"
	"github.com/psytechlab/teplo/internal/memory"
	"github.com/psytechlab/teplo/internal/observability"
)

// Engine is the conversation core the API exposes.
type Engine interface {
	HandleTurn(ctx context.Context, userID int64, text string) (string, memory.Mode)
	EnterChat(userID int64)
	ExitChat(userID int64)
	HistorySnapshot(userID int64) memory.Snapshot
	ArchivedTurns(ctx context.Context, userID int64, limit int) ([]archive.TurnRecord, error)
	ArchiveEnabled() bool
}

type Server struct {
	cfg      config.Config
	engine   Engine
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, engine Engine, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up; this surface is meant
				// for localhost debugging.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat/session", s.handleEnterChat)
	r.Post("/v1/chat/session/end", s.handleExitChat)
	r.Post("/v1/chat/turn", s.handleTurn)
	r.Get("/v1/chat/history/{userID}", s.handleHistory)
	r.Get("/v1/chat/archive/{userID}", s.handleArchive)
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"archive_enabled": s.engine.ArchiveEnabled(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type sessionRequest struct {
	UserID int64 `json:"user_id"`
}

type sessionResponse struct {
	UserID int64       `json:"user_id"`
	Mode   memory.Mode `json:"mode"`
}

func (s *Server) handleEnterChat(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.engine.EnterChat(req.UserID)
	respondJSON(w, http.StatusCreated, sessionResponse{UserID: req.UserID, Mode: memory.ModeChatting})
}

func (s *Server) handleExitChat(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.engine.ExitChat(req.UserID)
	respondJSON(w, http.StatusOK, sessionResponse{UserID: req.UserID, Mode: memory.ModeIdle})
}

type turnRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type turnResponse struct {
	Reply string      `json:"reply"`
	Mode  memory.Mode `json:"mode"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text must not be empty")
		return
	}

	reply, mode := s.engine.HandleTurn(r.Context(), req.UserID, req.Text)
	respondJSON(w, http.StatusOK, turnResponse{Reply: reply, Mode: mode})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.engine.HistorySnapshot(userID))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if !s.engine.ArchiveEnabled() {
		respondError(w, http.StatusNotFound, "archive_disabled", "no transcript archive configured")
		return
	}
	userID, err := userIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
	}

	records, err := s.engine.ArchivedTurns(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": records})
}

type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wsOutbound struct {
	Type string      `json:"type"`
	Text string      `json:"text"`
	Mode memory.Mode `json:"mode"`
}

// handleChatWS runs a debug chat over a websocket: the client sends
// {"type":"user_text","text":...} frames and receives assistant replies.
// The connection enters chat mode on open and leaves it on close.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("user_id")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id query parameter is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.engine.EnterChat(userID)
	defer s.engine.ExitChat(userID)

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Type != "user_text" || strings.TrimSpace(in.Text) == "" {
			continue
		}

		reply, mode := s.engine.HandleTurn(r.Context(), userID, in.Text)
		out := wsOutbound{Type: "assistant_text", Text: reply, Mode: mode}
		if err := conn.WriteJSON(out); err != nil {
			return
		}
		if mode != memory.ModeChatting {
			return
		}
	}
}

func userIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("userID must be an integer")
	}
	return id, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
