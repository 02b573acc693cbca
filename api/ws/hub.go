// Package ws streams executed trades to WebSocket subscribers.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clob/domain/book"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

// TradeMessage is the wire format pushed to subscribers. Prices are in
// minor units.
type TradeMessage struct {
	Type     string `json:"type"`
	BuyerID  uint64 `json:"buyer_id"`
	SellerID uint64 `json:"seller_id"`
	Price    uint64 `json:"price"`
	Quantity uint32 `json:"quantity"`
	Time     int64  `json:"time"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans trades out to connected clients. Slow clients are
// disconnected rather than allowed to stall the feed.
type Hub struct {
	upgrader   websocket.Upgrader
	log        *zap.Logger
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:        logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Publish queues a trade for broadcast. It never blocks the caller; if
// the hub is saturated the message is dropped.
func (h *Hub) Publish(tr book.Trade) {
	msg, err := json.Marshal(TradeMessage{
		Type:     "trade",
		BuyerID:  tr.BuyerID,
		SellerID: tr.SellerID,
		Price:    tr.Price,
		Quantity: tr.Quantity,
		Time:     tr.Time.UnixNano(),
	})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("trade feed saturated, dropping message")
	}
}

// Run owns the client set. It exits when ctx is cancelled, closing
// every connection.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	defer func() {
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					delete(clients, c)
					close(c.send)
				}
			}
		}
	}
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

// readPump discards inbound frames; the feed is one-way. It detects
// disconnects and deregisters the client.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
