package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"escuela-digital/internal/config"
	"escuela-digital/internal/email"
	"escuela-digital/internal/feed"
	"escuela-digital/internal/identity"
	"escuela-digital/internal/push"
	"escuela-digital/internal/session"
	"escuela-digital/internal/store"
	"escuela-digital/internal/workers"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// --- ESTRUTURAS CORE ---

type FeedServer struct {
	upgrader websocket.Upgrader
	clients  map[string]*FeedClient
	mu       sync.RWMutex
	cfg      *config.Config
	store    store.Store
	registry *push.TokenRegistry
}

type FeedClient struct {
	Conn    *websocket.Conn
	ID      string
	Actor   identity.Actor
	Session *session.Session
	SendCh  chan []byte
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

var (
	docStore    store.Store
	pushService *push.FirebaseService
	feedServer  *FeedServer
	startTime   time.Time
	serverLogs  []string
	logsMutex   sync.RWMutex
)

const maxLogs = 100

type logWriter struct{}

func (lw logWriter) Write(p []byte) (n int, err error) {
	logsMutex.Lock()
	defer logsMutex.Unlock()

	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}

	timestamp := time.Now().Format("15:04:05")
	logEntry := fmt.Sprintf("[%s] %s", timestamp, msg)

	serverLogs = append(serverLogs, logEntry)
	if len(serverLogs) > maxLogs {
		serverLogs = serverLogs[1:]
	}

	// Imprimir no console também
	fmt.Println(logEntry)

	return len(p), nil
}

// --- FUNÇÕES DE LOG ---

func addServerLog(msg string) {
	log.Println(msg)
}

// --- INICIALIZAÇÃO ---

func NewFeedServer(cfg *config.Config, st store.Store, registry *push.TokenRegistry) *FeedServer {
	return &FeedServer{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients:  make(map[string]*FeedClient),
		cfg:      cfg,
		store:    st,
		registry: registry,
	}
}

func main() {
	log.SetFlags(0)
	log.SetOutput(logWriter{})

	startTime = time.Now()
	addServerLog("🚀 Iniciando Servidor Escuela Digital...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Erro config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Erro config: %v", err)
	}

	fsStore, err := store.NewFirestoreStore(context.Background(), cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID, cfg.AppID)
	if err != nil {
		log.Fatalf("❌ Erro Firestore: %v", err)
	}
	defer fsStore.Close()
	docStore = fsStore

	if cfg.EnablePush {
		pushService, err = push.NewFirebaseService(cfg.FirebaseCredentialsPath)
		if err != nil {
			addServerLog(fmt.Sprintf("⚠️ Aviso: Falha ao carregar Firebase messaging: %v", err))
			pushService = nil
		}
	}

	registry := push.NewTokenRegistry(docStore)
	feedServer = NewFeedServer(cfg, docStore, registry)

	var emailService *email.EmailService
	if cfg.EnableEmailFallback {
		emailService, err = email.NewEmailService(cfg)
		if err != nil {
			addServerLog(fmt.Sprintf("⚠️ Email service not configured: %v", err))
			emailService = nil
		} else {
			addServerLog("✅ Email service initialized")
		}
	}

	manager := workers.NewWorkerManager()
	if pushService != nil {
		manager.RegisterWorker(workers.NewReminderPushWorker(
			docStore, pushService, time.Duration(cfg.ReminderWorkerInterval)*time.Minute))
		manager.RegisterWorker(workers.NewTokenSweepWorker(
			docStore, pushService, registry, time.Duration(cfg.TokenSweepInterval)*time.Hour))
	}
	if pushService != nil || emailService != nil {
		var sender workers.RequestSender
		if pushService != nil {
			sender = pushService
		}
		var emailer workers.RequestEmailer
		if emailService != nil {
			emailer = emailService
		}
		manager.RegisterWorker(workers.NewRequestAlertWorker(
			docStore, sender, emailer, cfg.DirectorEmails,
			time.Duration(cfg.ReminderWorkerInterval)*time.Minute))
	}
	manager.Start()
	defer manager.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/wss", feedServer.HandleWebSocket)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", statsHandler).Methods("GET")
	api.HandleFunc("/health", healthCheckHandler).Methods("GET")
	api.HandleFunc("/logs", logsHandler).Methods("GET")

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	addServerLog(fmt.Sprintf("✅ Servidor pronto na porta %s", port))
	log.Fatal(http.ListenAndServe(":"+port, corsMiddleware(router)))
}

// --- WEBSOCKET ---

func (s *FeedServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		addServerLog(fmt.Sprintf("❌ Erro upgrade: %v", err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &FeedClient{
		Conn:   conn,
		ID:     uuid.NewString(),
		SendCh: make(chan []byte, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	go s.handleClientSend(client)
	s.handleClientMessages(client)
}

type clientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	ID       string `json:"id,omitempty"`
}

func (s *FeedServer) handleClientMessages(client *FeedClient) {
	defer s.cleanupClient(client)

	for {
		msgType, message, err := client.Conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "login":
			s.loginClient(client, msg.Username, msg.Password)
		case "register_token":
			if client.Session == nil {
				s.sendJSON(client, map[string]string{"type": "error", "message": "Inicie sesión primero"})
				continue
			}
			if err := s.registry.RegisterToken(client.ctx, client.Actor.ID, msg.Token); err != nil {
				// Push é melhor esforço: nunca vira erro para o usuário
				addServerLog(fmt.Sprintf("⚠️ Falha ao registrar token de %s: %v", client.Actor.Username, err))
			}
		case "dismiss_alert":
			if client.Session == nil {
				s.sendJSON(client, map[string]string{"type": "error", "message": "Inicie sesión primero"})
				continue
			}
			if err := client.Session.DismissAlert(client.ctx, msg.ID); err != nil {
				s.sendJSON(client, map[string]string{"type": "error", "message": "No se pudo descartar la solicitud"})
			}
		case "logout":
			return
		}
	}
}

func (s *FeedServer) loginClient(client *FeedClient, username, password string) {
	actor, err := identity.Authenticate(client.ctx, s.store, username, password)
	if err != nil {
		addServerLog(fmt.Sprintf("❌ Login recusado: %s", username))
		s.sendJSON(client, map[string]string{"type": "error", "message": "Usuario o contraseña incorrectos"})
		return
	}

	client.Actor = actor
	sess := session.New(s.store, actor, client)
	sess.OnUpdate(func(notifs []feed.Notification) {
		payload, err := json.Marshal(map[string]interface{}{
			"type":          "feed",
			"notifications": notifs,
		})
		if err != nil {
			return
		}
		client.push(payload)
	})

	if err := sess.Start(client.ctx); err != nil {
		addServerLog(fmt.Sprintf("❌ Erro ao iniciar sessão: %v", err))
		s.sendJSON(client, map[string]string{"type": "error", "message": "Error de conexión. Intente nuevamente."})
		return
	}
	client.Session = sess

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	s.sendJSON(client, map[string]string{
		"type": "logged_in",
		"role": string(actor.Role),
		"tier": actor.Tier.String(),
	})
	addServerLog(fmt.Sprintf("✅ Cliente logado: %s", username))
}

// Notify implementa feed.Notifier: a notificação local do lembrete do dia é
// delegada ao dispositivo do cliente.
func (c *FeedClient) Notify(title, body string) {
	payload, err := json.Marshal(map[string]string{
		"type":  "local_notification",
		"title": title,
		"body":  body,
	})
	if err != nil {
		return
	}
	c.push(payload)
}

func (c *FeedClient) push(payload []byte) {
	select {
	case c.SendCh <- payload:
	case <-c.ctx.Done():
	default:
		addServerLog("⚠️ Cliente lento, mensagem de feed descartada")
	}
}

func (s *FeedServer) handleClientSend(client *FeedClient) {
	for {
		select {
		case <-client.ctx.Done():
			return
		case payload := <-client.SendCh:
			client.mu.Lock()
			err := client.Conn.WriteMessage(websocket.TextMessage, payload)
			client.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *FeedServer) GetActiveClientsCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *FeedServer) cleanupClient(client *FeedClient) {
	client.cancel()
	if client.Session != nil {
		client.Session.Close()
	}
	s.mu.Lock()
	delete(s.clients, client.ID)
	s.mu.Unlock()
	client.Conn.Close()
	addServerLog(fmt.Sprintf("🔌 Cliente desconectado: %s", client.Actor.Username))
}

func (s *FeedServer) sendJSON(c *FeedClient, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.WriteJSON(v)
}

// --- API HANDLERS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept")

		// Responde preflight imediatamente
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	storeStatus := false
	if docStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := docStore.Query(ctx, store.CollectionUsers, store.Filter{Field: "username", Value: "__ping__"}); err == nil {
			storeStatus = true
		}
	}

	response := map[string]interface{}{
		"active_clients": feedServer.GetActiveClientsCount(),
		"uptime":         formatDuration(time.Since(startTime)),
		"store_status":   storeStatus,
		"push_ok":        pushService != nil,
		"timestamp":      time.Now().Unix(),
	}

	json.NewEncoder(w).Encode(response)
}

func logsHandler(w http.ResponseWriter, r *http.Request) {
	logsMutex.RLock()
	defer logsMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"logs": serverLogs,
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
