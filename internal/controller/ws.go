package controller

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

const EventConnected = "connected"

type connectedPayload struct {
	SocketId string `json:"socketId"`
}

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	socketId := uuid.NewString()
	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("socket_id", socketId))
	ctx = context.WithValue(ctx, connStateCtxKey, &connState{socketId: socketId})

	if err := c.roomService.ConnectMember(ctx, &room.ConnectMemberParams{
		Conn:   conn,
		ConnId: socketId,
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to connect member", "error", err)
		conn.Close()
		return
	}
	defer c.roomService.DisconnectMember(context.WithoutCancel(ctx), &room.DisconnectMemberParams{ConnId: socketId})

	c.roomService.Notify(ctx, socketId, EventConnected, connectedPayload{SocketId: socketId})

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !errors.Is(err, net.ErrClosed) {
			c.logger.InfoContext(ctx, "websocket closed", "error", err)
			return
		}
		c.logger.DebugContext(ctx, "websocket closed", "error", err)
	}
}
