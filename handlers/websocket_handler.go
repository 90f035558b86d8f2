package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *brackets.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler accepts connections from the listed origins. An empty
// list or "*" allows any origin.
func NewWebSocketHandler(hub *brackets.Hub, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWs subscribes the client to the events of one tournament.
// Клиент должен подключаться к /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		http.Error(w, "Missing tournamentID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту
		h.logger.Warn("websocket upgrade failed", slog.String("tournament_id", tournamentID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: brackets.RoomForTournament(tournamentID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client subscribed", slog.String("room", client.Room))
}
