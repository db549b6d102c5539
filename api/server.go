package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"queuebot/audio"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server is the read-mostly status API over the player.
type Server struct {
	player        *audio.Service
	hub           *Hub
	allowedOrigin string
	upgrader      websocket.Upgrader
	log           *zap.Logger
}

func NewServer(player *audio.Service, hub *Hub, allowedOrigin string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	s := &Server{
		player:        player,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		log:           log,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.allowedOrigin))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws", s.handleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/ping", s.handlePing)
			r.Get("/guilds/with_queues", s.handleGuilds)
			r.Get("/queues/queue/{guildID}", s.handleQueue)
			r.Post("/queues/queue/{guildID}/add-song", s.handleAddSong)
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "owo"})
}

func (s *Server) handleGuilds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Guilds())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.player.Tracks(chi.URLParam(r, "guildID"))
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTracks(tracks))
}

func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req addSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.TrackURL) == "" {
		writeError(w, http.StatusBadRequest, "track_url is required")
		return
	}

	guildID := chi.URLParam(r, "guildID")
	h, err := s.player.EnqueueFromLocator(r.Context(), guildID, req.TrackURL)
	if err != nil {
		s.log.Info("add-song failed", zap.String("guild", guildID), zap.Error(err))
		s.writePlayerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTrack(h.Track))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("ws upgrade", zap.Error(err))
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	welcome := map[string]any{
		"type": "welcome",
		"now":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}
	if !s.hub.Register(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.allowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.allowedOrigin
}

func (s *Server) writePlayerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, audio.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, audio.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
