package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/service/account"
	"github.com/sharetube/watchparty/internal/service/room"
)

const (
	EventError = "error"
	EventPong  = "pong"
)

type errorPayload struct {
	Message string `json:"message"`
}

type EmptyInput struct{}

type JoinRoomInput struct {
	RoomId    string `json:"roomId"`
	Name      string `json:"name"`
	AuthToken string `json:"authToken"`
}

func (c controller) handleJoinRoom(ctx context.Context, _ *websocket.Conn, input JoinRoomInput) error {
	state := c.getConnStateFromCtx(ctx)

	name := input.Name
	if token := strings.TrimSpace(input.AuthToken); token != "" {
		user, err := c.accountService.GetUserByToken(ctx, token)
		if err != nil {
			c.logger.InfoContext(ctx, "failed to resolve auth token", "error", err)
		} else {
			state.userId = user.Id
			if strings.TrimSpace(name) == "" {
				name = user.DisplayName
			}
		}
	}

	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnId:   state.socketId,
		RoomId:   input.RoomId,
		Username: name,
	})
	if err != nil {
		c.roomService.Notify(ctx, state.socketId, EventError, errorPayload{Message: err.Error()})
		return fmt.Errorf("failed to join room: %w", err)
	}
	state.roomId = joinRoomResp.RoomId

	if state.userId != "" {
		go c.touchRoomHistory(context.WithoutCancel(ctx), state.userId, joinRoomResp.RoomId)
	}

	return nil
}

// touchRoomHistory records the visit in the account's room history. Failures are
// only logged.
func (c controller) touchRoomHistory(ctx context.Context, userId, roomId string) {
	if err := c.accountService.TouchRoom(ctx, &account.TouchRoomParams{
		UserId: userId,
		RoomId: roomId,
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to touch room", "error", err)
	}
}

type HostTimeInput struct {
	Time float64 `json:"time"`
}

func (c controller) hostEventHandler(event string) func(context.Context, *websocket.Conn, HostTimeInput) error {
	return func(ctx context.Context, _ *websocket.Conn, input HostTimeInput) error {
		if _, err := c.roomService.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
			ConnId:      c.getSocketIdFromCtx(ctx),
			Event:       event,
			CurrentTime: input.Time,
		}); err != nil {
			return fmt.Errorf("failed to update player state: %w", err)
		}

		return nil
	}
}

type HostStateInput struct {
	Time      float64 `json:"time"`
	IsPlaying *bool   `json:"isPlaying"`
}

func (c controller) handleHostState(ctx context.Context, _ *websocket.Conn, input HostStateInput) error {
	if _, err := c.roomService.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
		ConnId:      c.getSocketIdFromCtx(ctx),
		Event:       room.PlayerEventState,
		CurrentTime: input.Time,
		IsPlaying:   input.IsPlaying,
	}); err != nil {
		return fmt.Errorf("failed to update player state: %w", err)
	}

	return nil
}

func (c controller) handleRequestSync(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.RequestSync(ctx, &room.RequestSyncParams{
		ConnId: c.getSocketIdFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to request sync: %w", err)
	}

	return nil
}

type ChatMessageInput struct {
	Message string `json:"message"`
}

func (c controller) handleChatMessage(ctx context.Context, _ *websocket.Conn, input ChatMessageInput) error {
	if _, err := c.roomService.SendChatMessage(ctx, &room.SendChatMessageParams{
		ConnId:  c.getSocketIdFromCtx(ctx),
		Message: input.Message,
	}); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	return nil
}

func (c controller) handleVoiceJoin(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if _, err := c.roomService.JoinCall(ctx, &room.JoinCallParams{
		ConnId: c.getSocketIdFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to join call: %w", err)
	}

	return nil
}

func (c controller) handleVoiceLeave(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.LeaveCall(ctx, &room.LeaveCallParams{
		ConnId: c.getSocketIdFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to leave call: %w", err)
	}

	return nil
}

type SignalInput struct {
	TargetId string          `json:"targetId"`
	Payload  json.RawMessage `json:"payload"`
}

func (c controller) signalHandler(kind string) func(context.Context, *websocket.Conn, SignalInput) error {
	return func(ctx context.Context, _ *websocket.Conn, input SignalInput) error {
		if err := c.roomService.RelaySignal(ctx, &room.RelaySignalParams{
			Kind:     kind,
			FromId:   c.getSocketIdFromCtx(ctx),
			TargetId: input.TargetId,
			Payload:  input.Payload,
		}); err != nil {
			return fmt.Errorf("failed to relay %s: %w", kind, err)
		}

		return nil
	}
}

func (c controller) handlePing(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	c.roomService.Notify(ctx, c.getSocketIdFromCtx(ctx), EventPong, nil)
	return nil
}
