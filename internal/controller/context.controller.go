package controller

import "context"

type contextKey int

const (
	connStateCtxKey contextKey = iota
)

// connState lives for one websocket connection. Messages on a connection are
// handled sequentially, so its fields need no locking.
type connState struct {
	socketId string
	userId   string
	roomId   string
}

func (c controller) getConnStateFromCtx(ctx context.Context) *connState {
	state, ok := ctx.Value(connStateCtxKey).(*connState)
	if !ok {
		return &connState{}
	}

	return state
}

func (c controller) getSocketIdFromCtx(ctx context.Context) string {
	return c.getConnStateFromCtx(ctx).socketId
}
