package inmemory

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/connection"
)

const (
	defaultSendBuffer = 256
	defaultWriteWait  = 10 * time.Second
	defaultPingPeriod = 30 * time.Second
)

type Config struct {
	SendBuffer int
	WriteWait  time.Duration
	PingPeriod time.Duration
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// repo owns every live websocket and is the only writer to it. Messages are
// queued per connection and written by one pump goroutine each, so delivery
// order per connection equals Send order.
type repo struct {
	clients map[string]*client
	mu      sync.RWMutex
	cfg     Config
	logger  *slog.Logger
}

func NewRepo(cfg *Config, logger *slog.Logger) *repo {
	c := Config{
		SendBuffer: defaultSendBuffer,
		WriteWait:  defaultWriteWait,
		PingPeriod: defaultPingPeriod,
	}
	if cfg != nil {
		if cfg.SendBuffer > 0 {
			c.SendBuffer = cfg.SendBuffer
		}
		if cfg.WriteWait > 0 {
			c.WriteWait = cfg.WriteWait
		}
		if cfg.PingPeriod > 0 {
			c.PingPeriod = cfg.PingPeriod
		}
	}

	return &repo{
		clients: make(map[string]*client),
		cfg:     c,
		logger:  logger,
	}
}

func (r *repo) Add(connId string, conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("connection.inmemory.Add", "conn_id", connId)
	if _, ok := r.clients[connId]; ok {
		return connection.ErrAlreadyExists
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, r.cfg.SendBuffer),
	}
	r.clients[connId] = c

	go r.writePump(connId, c)

	return nil
}

// Remove stops the write pump after it drains queued messages. The pump then
// closes the socket.
func (r *repo) Remove(connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("connection.inmemory.Remove", "conn_id", connId)
	c, ok := r.clients[connId]
	if !ok {
		return connection.ErrNotFound
	}

	delete(r.clients, connId)
	close(c.send)

	return nil
}

// Send queues msg for connId without blocking. A connection whose queue is
// full is closed; its read loop then fails and the disconnect path runs.
func (r *repo) Send(connId string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[connId]
	if !ok {
		return connection.ErrNotFound
	}

	select {
	case c.send <- data:
		return nil
	default:
		r.logger.Warn("dropping slow connection", "conn_id", connId)
		c.conn.Close()
		return connection.ErrSlowConsumer
	}
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

func (r *repo) writePump(connId string, c *client) {
	ticker := time.NewTicker(r.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				r.logger.Debug("failed to write message", "conn_id", connId, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
