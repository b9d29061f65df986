// Package api provides the HTTP and WebSocket surface: REST reads of
// genomes/trades/treasury, a prometheus /metrics endpoint, and a
// WebSocket hub fanning out the internal event bus to subscribed
// browser clients. Grounded on the teacher's internal/api/server.go
// mux.Router + gorilla/websocket Client/Hub shape, generalized from
// backtest-specific routes to this domain's read model and from a
// single shared broadcast to topic-filtered subscriptions.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/internal/storage"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	reg   *registry.Registry
	trsy  *treasury.Manager
	store *storage.Store
	bus   *events.Bus

	clients map[string]*Client
}

// Client is a connected WebSocket subscriber. Topics is the set of UI
// fan-out topics ("trades", "evolution", "strategies", "prices",
// "positions", "treasury", "all") it asked to receive; empty means all.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	Topics map[string]bool
}

// WSMessage is the envelope every server->client frame uses.
type WSMessage struct {
	Topic     string      `json:"topic"`
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp int64       `json:"timestamp"`
}

// NewServer constructs the API server and registers its routes.
func NewServer(logger *zap.Logger, cfg types.ServerConfig, reg *registry.Registry, trsy *treasury.Manager, store *storage.Store, bus *events.Bus) *Server {
	s := &Server{
		logger:  logger,
		config:  cfg,
		router:  mux.NewRouter(),
		reg:     reg,
		trsy:    trsy,
		store:   store,
		bus:     bus,
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/strategies", s.handleListStrategies).Methods("GET")
	s.router.HandleFunc("/api/v1/strategies/{id}", s.handleGetStrategy).Methods("GET")
	s.router.HandleFunc("/api/v1/trades/open", s.handleOpenTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/treasury", s.handleTreasury).Methods("GET")

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	path := s.config.WebSocketPath
	if path == "" {
		path = "/ws"
	}
	s.router.HandleFunc(path, s.handleWebSocket)
}

// Start launches the fan-out pump loop in its own goroutine, then
// serves HTTP; ListenAndServe blocks the caller until Stop shuts it down.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go s.pumpBusEvents(ctx)

	s.logger.Info("starting api server", zap.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes every WebSocket connection and shuts down the HTTP
// server within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy", "time": time.Now().Unix()})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.All())
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	g, ok := s.reg.Get(id)
	if !ok {
		http.Error(w, "strategy not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleOpenTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.OpenTrades(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.trsy.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleWebSocket upgrades the connection and registers a client whose
// topic subscriptions come from the "topics" query parameter
// (comma-separated; absent or "all" means everything).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Topics: parseTopics(r.URL.Query().Get("topics")),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	s.logger.Info("websocket client connected", zap.String("id", client.ID))
	go s.readPump(client)
	go s.writePump(client)
}

func parseTopics(raw string) map[string]bool {
	topics := make(map[string]bool)
	if raw == "" || raw == "all" {
		return topics
	}
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				topics[raw[start:i]] = true
			}
			start = i + 1
		}
	}
	return topics
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.ID)
		s.mu.Unlock()
		client.Conn.Close()
		s.logger.Info("websocket client disconnected", zap.String("id", client.ID))
	}()

	client.Conn.SetReadLimit(512 * 1024)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pumpBusEvents subscribes once to every event kind and fans each one
// out to clients whose topic set matches (or who asked for "all").
func (s *Server) pumpBusEvents(ctx context.Context) {
	sub := s.bus.Subscribe(512)
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.broadcast(topicFor(ev.Kind), ev)
		}
	}
}

func topicFor(kind events.Kind) string {
	switch kind {
	case events.KindTradeOpened, events.KindTradeClosed:
		return "trades"
	case events.KindEvolutionStarted, events.KindEvolutionBirths, events.KindEvolutionDeaths, events.KindEvolutionDone, events.KindEvolutionError:
		return "evolution"
	case events.KindStrategiesLoaded:
		return "strategies"
	case events.KindTokenDiscovered:
		return "prices"
	case events.KindPositionUpdated:
		return "positions"
	case events.KindTreasuryUpdated:
		return "treasury"
	default:
		return "all"
	}
}

func (s *Server) broadcast(topic string, ev events.Event) {
	msg := WSMessage{Topic: topic, Kind: string(ev.Kind), Payload: ev.Payload, Timestamp: ev.Timestamp.UnixMilli()}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal websocket event", zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if len(c.Topics) > 0 && !c.Topics[topic] && !c.Topics["all"] {
			continue
		}
		select {
		case c.Send <- data:
		default:
			s.logger.Warn("websocket client send buffer full, dropping event", zap.String("id", c.ID))
		}
	}
}
