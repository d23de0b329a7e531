package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/upscpath/prep-platform/internal/goroutine"
	"github.com/upscpath/prep-platform/internal/logger"
	"github.com/upscpath/prep-platform/internal/service"
)

// Hub управляет подписчиками на статус сессий верификации. Клиенты
// подписываются по sessionKey и получают снимок статуса после каждого
// подтверждения кода или повторной отправки.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	ctx        context.Context
}

type message struct {
	sessionKey string
	payload    []byte
}

// NewHub создаёт новый хаб.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		ctx:        ctx,
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.sessionKey, msg.payload)
		}
	}
}

// Register добавляет подписчика.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет подписчика.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// PublishStatus рассылает снимок статуса всем подписчикам sessionKey.
// Реализует service.StatusNotifier; вызовы не блокируют бизнес-логику.
func (h *Hub) PublishStatus(sessionKey string, status *service.SessionStatus) {
	payload := map[string]any{
		"type": "session_status",
		"data": status,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.WithComponent("ws").WithError(err).Error("не удалось сериализовать статус сессии")
		return
	}

	select {
	case h.broadcast <- message{sessionKey: sessionKey, payload: raw}:
	case <-h.ctx.Done():
	}
}

// Broadcast отправляет произвольное событие подписчикам sessionKey.
func (h *Hub) Broadcast(sessionKey, event string, data any) error {
	payload := map[string]any{
		"type": event,
		"data": data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	h.broadcast <- message{sessionKey: sessionKey, payload: raw}
	return nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.sessionKey]; !ok {
		h.clients[client.sessionKey] = make(map[*Client]struct{})
	}
	h.clients[client.sessionKey][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.sessionKey]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.sessionKey)
		}
	}
}

func (h *Hub) send(sessionKey string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionKey] {
		select {
		case client.send <- payload:
		default:
			// Медленного подписчика отключаем, не задерживая остальных.
			goroutine.SafeGo(client.Close)
		}
	}
}
