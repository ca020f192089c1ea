package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrInvalidPayload     = errors.New("invalid payload")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives every error returned by a handler or produced while
// decoding a message. It must not write to conn directly if writes are owned
// by another goroutine.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes       map[string]HandlerFunc[json.RawMessage]
	middlewares  []Middleware
	errorHandler ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]HandlerFunc[json.RawMessage]),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) OnError(h ErrorHandler) {
	r.errorHandler = h
}

// Handle registers a handler whose payload is decoded into T. An absent or
// null payload leaves T at its zero value.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) error {
		var payload T
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
			}
		}

		return handler(ctx, conn, payload)
	}
}

func (r *WSRouter) chain(route HandlerFunc[json.RawMessage]) HandlerFunc[any] {
	h := HandlerFunc[any](func(ctx context.Context, conn *websocket.Conn, payload any) error {
		raw, _ := payload.(json.RawMessage)
		return route(ctx, conn, raw)
	})

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		h = r.middlewares[i](h)
	}

	return h
}

// ServeConn reads messages from conn until a read fails and dispatches each
// one to its handler. Handlers run sequentially in arrival order.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			r.errorHandler(ctx, conn, ErrInvalidMessage)
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)

		route, exists := r.routes[msg.Type]
		if !exists {
			r.errorHandler(msgCtx, conn, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type))
			continue
		}

		if err := r.chain(route)(msgCtx, conn, msg.Payload); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
