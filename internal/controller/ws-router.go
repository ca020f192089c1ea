package controller

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())
	mux.OnError(c.handleWSError)

	// membership
	wsrouter.Handle(mux, "join-room", c.handleJoinRoom)

	// player
	wsrouter.Handle(mux, "host-play", c.hostEventHandler(room.PlayerEventPlay))
	wsrouter.Handle(mux, "host-pause", c.hostEventHandler(room.PlayerEventPause))
	wsrouter.Handle(mux, "host-seek", c.hostEventHandler(room.PlayerEventSeek))
	wsrouter.Handle(mux, "host-state", c.handleHostState)
	wsrouter.Handle(mux, "request-sync", c.handleRequestSync)

	// chat
	wsrouter.Handle(mux, "chat-message", c.handleChatMessage)

	// call
	wsrouter.Handle(mux, "voice-join", c.handleVoiceJoin)
	wsrouter.Handle(mux, "voice-leave", c.handleVoiceLeave)
	wsrouter.Handle(mux, room.SignalOffer, c.signalHandler(room.SignalOffer))
	wsrouter.Handle(mux, room.SignalAnswer, c.signalHandler(room.SignalAnswer))
	wsrouter.Handle(mux, room.SignalIceCandidate, c.signalHandler(room.SignalIceCandidate))

	wsrouter.Handle(mux, "ping", c.handlePing)

	return mux
}

// handleWSError reports malformed messages back to the client. Handler
// errors were already logged by loggerWSMw and stay silent on the wire.
func (c controller) handleWSError(ctx context.Context, _ *websocket.Conn, err error) {
	switch {
	case errors.Is(err, wsrouter.ErrInvalidMessage),
		errors.Is(err, wsrouter.ErrUnknownMessageType),
		errors.Is(err, wsrouter.ErrInvalidPayload):
		c.logger.DebugContext(ctx, "rejected websocket message", "error", err)
		c.roomService.Notify(ctx, c.getSocketIdFromCtx(ctx), EventError, errorPayload{Message: err.Error()})
	}
}
