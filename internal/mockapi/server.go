// Package mockapi is an in-memory stand-in for the OmniBot backend, used
// for local development and as the fixture the API client is tested
// against. It implements the same REST and event-stream contract the
// production backend owns.
package mockapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"omnibot-console/internal/api"
	"omnibot-console/internal/flow"
)

// StreamInterval is the cadence at which the conversation stream emits
// simulated inbound messages.
const StreamInterval = 2 * time.Second

type Server struct {
	mu            sync.Mutex
	tokens        map[string]string // token -> user id
	users         map[string]api.User
	bots          []api.Bot
	numbers       []api.Number
	whatsapp      map[string]api.WhatsAppSession
	flows         map[string]flow.Graph
	conversations []api.Conversation
	messages      map[string][]api.Message
	workspaces    []api.Workspace
	members       map[string][]api.Member
	usage         map[string]api.Usage

	streamInterval time.Duration
}

func New() *Server {
	s := &Server{
		tokens:         make(map[string]string),
		users:          make(map[string]api.User),
		whatsapp:       make(map[string]api.WhatsAppSession),
		flows:          make(map[string]flow.Graph),
		messages:       make(map[string][]api.Message),
		members:        make(map[string][]api.Member),
		usage:          make(map[string]api.Usage),
		streamInterval: StreamInterval,
	}
	s.seed()
	return s
}

func (s *Server) seed() {
	user := api.User{ID: "u-1", Email: "admin@omnibot.dev", Name: "Workspace Admin", CreatedAt: time.Now().UTC()}
	s.users[user.ID] = user

	ws := api.Workspace{ID: "ws-1", Name: "Acme Support", Plan: "starter"}
	s.workspaces = []api.Workspace{ws}
	s.members[ws.ID] = []api.Member{{UserID: user.ID, Email: user.Email, Role: "owner"}}
	s.usage[ws.ID] = api.Usage{MessagesUsed: 1240, MessageLimit: 5000, PeriodEnd: time.Now().UTC().AddDate(0, 1, 0)}

	bot := api.Bot{ID: "bot-1", Name: "Suporte", Channel: "whatsapp", Status: "active", WorkspaceID: ws.ID, CreatedAt: time.Now().UTC()}
	s.bots = []api.Bot{bot}
	s.flows[bot.ID] = flow.Empty(bot.ID)

	s.numbers = []api.Number{{ID: "num-1", Phone: "+55 11 91234-5678", Status: "disconnected", BotID: bot.ID}}

	conv := api.Conversation{ID: "conv-1", BotID: bot.ID, Contact: "+55 11 98888-0001", Channel: "whatsapp", LastMessageAt: time.Now().UTC(), Unread: 1}
	s.conversations = []api.Conversation{conv}
	s.messages[conv.ID] = []api.Message{
		{ID: "msg-1", ConversationID: conv.ID, Sender: "contact", Content: "Oi, preciso de ajuda com meu pedido.", CreatedAt: time.Now().UTC().Add(-time.Minute)},
		{ID: "msg-2", ConversationID: conv.ID, Sender: "bot", Content: "Olá! Pode me passar o número do pedido?", CreatedAt: time.Now().UTC()},
	}
}

// Router builds the chi handler for the mock backend.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", s.handleLogin)
		auth.Post("/register", s.handleRegister)
		auth.Post("/dev-token", s.handleDevToken)
		auth.Post("/reset-password", s.handleResetPassword)
	})

	r.Group(func(protected chi.Router) {
		protected.Use(s.requireAuth)

		protected.Get("/users/me", s.handleMe)

		protected.Get("/bots", s.handleListBots)
		protected.Post("/bots", s.handleCreateBot)

		protected.Get("/numbers", s.handleListNumbers)
		protected.Post("/numbers/{numberID}/whatsapp/session", s.handleWhatsAppInit)
		protected.Get("/numbers/{numberID}/whatsapp/status", s.handleWhatsAppStatus)
		protected.Post("/numbers/{numberID}/whatsapp/mock-scan", s.handleWhatsAppMockScan)

		protected.Get("/bot_flows/{botID}", s.handleGetFlow)
		protected.Post("/bot_flows/{botID}", s.handleSaveFlow)
		protected.Post("/bot_flows/{botID}/publish", s.handlePublishFlow)

		protected.Get("/conversations", s.handleListConversations)
		protected.Get("/conversations/{conversationID}/messages", s.handleListMessages)
		protected.Get("/conversations/{conversationID}/stream", s.handleStream)

		protected.Get("/workspaces", s.handleListWorkspaces)
		protected.Get("/workspaces/{workspaceID}/members", s.handleMembers)
		protected.Get("/workspaces/{workspaceID}/plan", s.handlePlan)
		protected.Get("/workspaces/{workspaceID}/usage", s.handleUsage)
		protected.Post("/workspaces/{workspaceID}/checkout", s.handleCheckout)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s.mu.Lock()
		_, ok := s.tokens[auth[len(prefix):]]
		s.mu.Unlock()
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) issueToken(userID string) string {
	tok := "mock-" + uuid.NewString()
	s.mu.Lock()
	s.tokens[tok] = userID
	s.mu.Unlock()
	return tok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if creds.Password == "wrong" {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": s.issueToken("u-1")})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user := api.User{ID: "u-" + uuid.NewString()[:8], Email: creds.Email, Name: creds.Email, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	respondJSON(w, http.StatusCreated, map[string]string{"token": s.issueToken(user.ID)})
}

func (s *Server) handleDevToken(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"token": s.issueToken("u-1")})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	tok := r.Header.Get("Authorization")[len("Bearer "):]
	s.mu.Lock()
	userID := s.tokens[tok]
	user, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		user = s.users["u-1"]
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleListBots(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]api.Bot(nil), s.bots...)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if body.Channel == "" {
		body.Channel = "whatsapp"
	}

	bot := api.Bot{
		ID:          "bot-" + uuid.NewString()[:8],
		Name:        body.Name,
		Channel:     body.Channel,
		Status:      "draft",
		WorkspaceID: "ws-1",
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.bots = append(s.bots, bot)
	s.flows[bot.ID] = flow.Empty(bot.ID)
	s.mu.Unlock()
	respondJSON(w, http.StatusCreated, bot)
}

func (s *Server) handleListNumbers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]api.Number(nil), s.numbers...)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) findNumber(id string) (api.Number, bool) {
	for _, n := range s.numbers {
		if n.ID == id {
			return n, true
		}
	}
	return api.Number{}, false
}

func (s *Server) handleWhatsAppInit(w http.ResponseWriter, r *http.Request) {
	numberID := chi.URLParam(r, "numberID")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.findNumber(numberID); !ok {
		respondError(w, http.StatusNotFound, "number not found")
		return
	}
	ws := api.WhatsAppSession{
		NumberID: numberID,
		Status:   "waiting_scan",
		QRCode:   "omnibot-qr-" + uuid.NewString(),
	}
	s.whatsapp[numberID] = ws
	respondJSON(w, http.StatusCreated, ws)
}

func (s *Server) handleWhatsAppStatus(w http.ResponseWriter, r *http.Request) {
	numberID := chi.URLParam(r, "numberID")
	s.mu.Lock()
	ws, ok := s.whatsapp[numberID]
	s.mu.Unlock()
	if !ok {
		ws = api.WhatsAppSession{NumberID: numberID, Status: "disconnected"}
	}
	respondJSON(w, http.StatusOK, ws)
}

func (s *Server) handleWhatsAppMockScan(w http.ResponseWriter, r *http.Request) {
	numberID := chi.URLParam(r, "numberID")
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.whatsapp[numberID]
	if !ok || ws.Status != "waiting_scan" {
		respondError(w, http.StatusConflict, "no pairing session to scan")
		return
	}
	ws.Status = "connected"
	ws.QRCode = ""
	s.whatsapp[numberID] = ws
	for i, n := range s.numbers {
		if n.ID == numberID {
			s.numbers[i].Status = "connected"
		}
	}
	respondJSON(w, http.StatusOK, ws)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	s.mu.Lock()
	g, ok := s.flows[botID]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "flow not found")
		return
	}
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) handleSaveFlow(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	var g flow.Graph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		respondError(w, http.StatusBadRequest, "invalid flow payload")
		return
	}
	g.BotID = botID
	s.mu.Lock()
	g.Version = s.flows[botID].Version + 1
	g.Published = false
	s.flows[botID] = g
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) handlePublishFlow(w http.ResponseWriter, r *http.Request) {
	botID := chi.URLParam(r, "botID")
	s.mu.Lock()
	g, ok := s.flows[botID]
	if ok {
		g.Published = true
		s.flows[botID] = g
	}
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "flow not found")
		return
	}
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) handleListConversations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]api.Conversation(nil), s.conversations...)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	s.mu.Lock()
	msgs, ok := s.messages[conversationID]
	out := append([]api.Message(nil), msgs...)
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// handleStream emits simulated inbound messages as server-sent events
// until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	s.mu.Lock()
	_, ok := s.messages[conversationID]
	interval := s.streamInterval
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			n++
			msg := api.Message{
				ID:             "msg-" + uuid.NewString()[:8],
				ConversationID: conversationID,
				Sender:         "contact",
				Content:        fmt.Sprintf("Mensagem simulada #%d", n),
				CreatedAt:      time.Now().UTC(),
			}
			s.mu.Lock()
			s.messages[conversationID] = append(s.messages[conversationID], msg)
			s.mu.Unlock()
			if err := sendSSEEvent(w, flusher, "message", msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]api.Workspace(nil), s.workspaces...)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	s.mu.Lock()
	out := append([]api.Member(nil), s.members[workspaceID]...)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ws := range s.workspaces {
		if ws.ID == workspaceID {
			respondJSON(w, http.StatusOK, planByName(ws.Plan))
			return
		}
	}
	respondError(w, http.StatusNotFound, "workspace not found")
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	s.mu.Lock()
	u, ok := s.usage[workspaceID]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "workspace not found")
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	var body struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Plan == "" {
		respondError(w, http.StatusBadRequest, "plan is required")
		return
	}
	respondJSON(w, http.StatusCreated, api.CheckoutSession{
		URL: "https://billing.omnibot.dev/checkout/" + workspaceID + "/" + body.Plan,
	})
}

func planByName(name string) api.Plan {
	switch name {
	case "pro":
		return api.Plan{Name: "pro", PriceCents: 14900, MessageLimit: 50000}
	default:
		return api.Plan{Name: "starter", PriceCents: 4900, MessageLimit: 5000}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("mockapi: encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	flusher.Flush()
	return nil
}
