package status

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/chatsync/internal/store"
)

// TypingNotifier sends throttled outbound typing pings.
type TypingNotifier interface {
	NotifyTyping(channelID, parentID string, memberCount int) bool
}

type Server struct {
	store     *store.Store
	typing    TypingNotifier
	connected func() bool
	reconnect func() error
	logger    *zap.Logger
	startedAt time.Time
}

// NewServer builds the status handlers. connected reports the live stream
// state, which can lead the cache while a resync is running. reconnect
// closes the stream and dials it again with a full resync pending; nil
// disables POST /reconnect.
func NewServer(st *store.Store, typing TypingNotifier, connected func() bool, reconnect func() error, logger *zap.Logger) *Server {
	return &Server{
		store:     st,
		typing:    typing,
		connected: connected,
		reconnect: reconnect,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	StreamConnected  bool         `json:"stream_connected"`
	CacheConnected   bool         `json:"cache_connected"`
	LastConnectAt    int64        `json:"last_connect_at,omitempty"`
	LastDisconnectAt int64        `json:"last_disconnect_at,omitempty"`
	RetryFailed      bool         `json:"retry_failed"`
	CurrentUserID    string       `json:"current_user_id,omitempty"`
	CurrentTeamID    string       `json:"current_team_id,omitempty"`
	CurrentChannelID string       `json:"current_channel_id,omitempty"`
	Counts           store.Counts `json:"counts"`
	Uptime           string       `json:"uptime"`
}

type typingRequest struct {
	ChannelID string `json:"channel_id"`
	ParentID  string `json:"parent_id"`
}

type typingResponse struct {
	Sent bool `json:"sent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn := s.store.Connection()
	resp := StatusResponse{
		StreamConnected:  s.connected(),
		CacheConnected:   conn.Connected,
		LastConnectAt:    conn.LastConnectAt,
		LastDisconnectAt: conn.LastDisconnectAt,
		RetryFailed:      conn.RetryFailed,
		CurrentUserID:    s.store.CurrentUserID(),
		CurrentTeamID:    s.store.CurrentTeamID(),
		CurrentChannelID: s.store.CurrentChannelID(),
		Counts:           s.store.Counts(),
		Uptime:           time.Since(s.startedAt).Round(time.Second).String(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleTyping forwards a typing ping through the throttle using the
// channel's cached member count.
func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.ChannelID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "channel_id is required"})
		return
	}

	ch, ok := s.store.Channel(req.ChannelID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown channel " + req.ChannelID})
		return
	}

	sent := s.typing.NotifyTyping(req.ChannelID, req.ParentID, int(ch.MemberCount))
	s.writeJSON(w, http.StatusOK, typingResponse{Sent: sent})
}

type reconnectResponse struct {
	Connected bool `json:"connected"`
}

// handleReconnect forces a full resync by restarting the stream.
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	if s.reconnect == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "reconnect not available"})
		return
	}
	if err := s.reconnect(); err != nil {
		s.logger.Warn("forced reconnect failed", zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, reconnectResponse{Connected: s.connected()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
