package api

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Bot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status"`
	WorkspaceID string    `json:"workspaceId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Number struct {
	ID     string `json:"id"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
	BotID  string `json:"botId,omitempty"`
}

// WhatsAppSession reports pairing state for a number: the backend returns
// a QR payload while the session is waiting to be scanned.
type WhatsAppSession struct {
	NumberID string `json:"numberId"`
	Status   string `json:"status"`
	QRCode   string `json:"qrCode,omitempty"`
}

type Conversation struct {
	ID            string    `json:"id"`
	BotID         string    `json:"botId"`
	Contact       string    `json:"contact"`
	Channel       string    `json:"channel"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	Unread        int       `json:"unread"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"` // contact, bot or agent
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan"`
}

type Member struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Plan struct {
	Name         string `json:"name"`
	PriceCents   int    `json:"priceCents"`
	MessageLimit int    `json:"messageLimit"`
}

type Usage struct {
	MessagesUsed int       `json:"messagesUsed"`
	MessageLimit int       `json:"messageLimit"`
	PeriodEnd    time.Time `json:"periodEnd"`
}

type CheckoutSession struct {
	URL string `json:"url"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// StreamEvent is one server-sent event on a conversation stream.
type StreamEvent struct {
	Event   string
	Message Message
}
