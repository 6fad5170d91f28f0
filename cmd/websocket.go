package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"kostBack/internal/models"
)

const (
	readLimit     = 4 << 10
	readDeadline  = 120 * time.Second // extended by every pong
	writeDeadline = 5 * time.Second
	pingInterval  = 15 * time.Second
	eventBuffer   = 64
)

// WebSocketManager fans listing change events out to every connected
// admin client. All access to clients happens inside Run.
type WebSocketManager struct {
	log        *logrus.Logger
	clients    map[*websocket.Conn]struct{}
	broadcast  chan models.ListingEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	count      chan chan int
	stopped    chan struct{}
}

func NewWebSocketManager(logger *logrus.Logger) *WebSocketManager {
	return &WebSocketManager{
		log:        logger,
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan models.ListingEvent, eventBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		count:      make(chan chan int),
		stopped:    make(chan struct{}),
	}
}

func (ws *WebSocketManager) Run(ctx context.Context) {
	defer close(ws.stopped)
	for {
		select {
		case <-ctx.Done():
			for conn := range ws.clients {
				_ = writeClose(conn, websocket.CloseGoingAway, "server shutdown")
				_ = conn.Close()
				delete(ws.clients, conn)
			}
			return

		case conn := <-ws.register:
			ws.clients[conn] = struct{}{}
			ws.log.WithField("remote", conn.RemoteAddr().String()).Debug("ws register")

		case conn := <-ws.unregister:
			if _, ok := ws.clients[conn]; ok {
				_ = conn.Close()
				delete(ws.clients, conn)
				ws.log.WithField("remote", conn.RemoteAddr().String()).Debug("ws unregister")
			}

		case event := <-ws.broadcast:
			for conn := range ws.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteJSON(event); err != nil {
					ws.log.WithError(err).Warn("ws broadcast failed, dropping client")
					_ = conn.Close()
					delete(ws.clients, conn)
				}
			}

		case reply := <-ws.count:
			reply <- len(ws.clients)
		}
	}
}

// Publish never blocks a request; events are dropped when the buffer is full.
func (ws *WebSocketManager) Publish(event models.ListingEvent) {
	select {
	case ws.broadcast <- event:
	default:
		ws.log.WithFields(logrus.Fields{"type": event.Type, "listing_id": event.ID}).Warn("ws event dropped")
	}
}

// Clients reports the number of connected subscribers.
func (ws *WebSocketManager) Clients(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case ws.count <- reply:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeHTTP subscribes the caller to the listing feed. Client frames are read
// only to notice disconnects.
func (ws *WebSocketManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	select {
	case ws.register <- conn:
	case <-ws.stopped:
		_ = conn.Close()
		return
	}
	done := make(chan struct{})
	go ws.pingLoop(conn, done)
	go ws.readLoop(conn, done)
}

func (ws *WebSocketManager) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (ws *WebSocketManager) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer func() {
		close(done)
		select {
		case ws.unregister <- conn:
		case <-ws.stopped:
		}
	}()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) error {
	return conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeDeadline),
	)
}
