package room

import (
	"context"
	"crypto/rand"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

const maxChatMessageLen = 500

type SendChatMessageParams struct {
	ConnId  string
	Message string
}

type SendChatMessageResponse struct {
	Message ChatMessage
}

// SendChatMessage records a message and broadcasts it to the whole room,
// sender included. Blank messages are rejected.
func (s *service) SendChatMessage(ctx context.Context, params *SendChatMessageParams) (SendChatMessageResponse, error) {
	text := strings.TrimSpace(params.Message)
	if text == "" {
		return SendChatMessageResponse{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxChatMessageLen {
		text = string([]rune(text)[:maxChatMessageLen])
	}

	r, err := s.lockMemberRoom(params.ConnId)
	if err != nil {
		return SendChatMessageResponse{}, err
	}
	defer r.mu.Unlock()

	now := s.now()
	msg := ChatMessage{
		Id:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		SenderId:   params.ConnId,
		SenderName: s.uploaderName(r, params.ConnId),
		Message:    text,
		SentAt:     now.UnixMilli(),
	}

	r.chat = append(r.chat, msg)
	if over := len(r.chat) - s.chatLimit; over > 0 {
		r.chat = append(r.chat[:0:0], r.chat[over:]...)
	}

	s.broadcast(ctx, r, EventChatMessage, msg)

	return SendChatMessageResponse{Message: msg}, nil
}
