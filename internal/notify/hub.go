// hub.go — рассылка событий подписчикам по WebSocket.
//
// Клиент подключается к каналу (например, admin_approval) и получает
// JSON-сообщения {"event": ..., "data": ...}. Медленный клиент,
// у которого переполнен буфер отправки, отключается.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// writeWait — таймаут записи одного сообщения
	writeWait = 10 * time.Second
	// pongWait — сколько ждём pong от клиента
	pongWait = 60 * time.Second
	// pingPeriod — период ping; меньше pongWait
	pingPeriod = pongWait * 9 / 10
	// sendBuffer — размер буфера исходящих сообщений клиента
	sendBuffer = 32
	// maxMessageSize — лимит входящего сообщения (клиенты только слушают)
	maxMessageSize = 4096
)

// wsClients — текущее число подключённых клиентов по каналам.
var wsClients = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "capy_ws_clients",
		Help: "Количество подключённых WebSocket-клиентов",
	},
	[]string{"channel"},
)

// Message — формат сообщения для подписчиков.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn    *websocket.Conn
	channel string
	send    chan []byte
	done    chan struct{}
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub — реестр WebSocket-клиентов, сгруппированных по каналам.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub создаёт пустой Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger.With(slog.String("component", "ws_hub")),
	}
}

// ServeWS переводит соединение в WebSocket и подписывает его на channel.
// Блокируется до отключения клиента.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, channel string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("ошибка upgrade WebSocket: %w", err)
	}

	c := &client{
		conn:    conn,
		channel: channel,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// Broadcast отправляет событие всем клиентам канала.
// Не блокируется: клиент с переполненным буфером отключается.
func (h *Hub) Broadcast(_ context.Context, channel, event string, payload any) error {
	msg, err := json.Marshal(Message{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("ошибка сериализации события %s: %w", event, err)
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		case <-c.done:
		default:
			h.logger.Warn("Медленный WebSocket-клиент отключён",
				slog.String("channel", channel),
				slog.String("remote", c.conn.RemoteAddr().String()),
			)
			c.close()
		}
	}

	h.logger.Debug("Событие разослано",
		slog.String("channel", channel),
		slog.String("event", event),
		slog.Int("clients", len(clients)),
	)
	return nil
}

// Clients возвращает число клиентов в канале.
func (h *Hub) Clients(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Close отключает всех клиентов.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, set := range h.channels {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.channels[c.channel]
	if !ok {
		set = make(map[*client]struct{})
		h.channels[c.channel] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	wsClients.WithLabelValues(c.channel).Inc()
	h.logger.Debug("WebSocket-клиент подключён", slog.String("channel", c.channel))
}

func (h *Hub) unregister(c *client) {
	c.close()

	h.mu.Lock()
	if set, ok := h.channels[c.channel]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			wsClients.WithLabelValues(c.channel).Dec()
		}
		if len(set) == 0 {
			delete(h.channels, c.channel)
		}
	}
	h.mu.Unlock()

	h.logger.Debug("WebSocket-клиент отключён", slog.String("channel", c.channel))
}

// readPump читает входящие кадры до ошибки; нужен для обработки pong и close.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
