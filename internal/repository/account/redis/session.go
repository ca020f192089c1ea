package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/account"
)

func (r repo) getSessionKey(sessionId string) string {
	return "session:" + sessionId
}

func (r repo) SetSession(ctx context.Context, params *account.SetSessionParams) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": params.UserId,
		"ttl":     params.TTL.String(),
	})

	return r.rc.Set(ctx, r.getSessionKey(params.SessionId), params.UserId, params.TTL).Err()
}

func (r repo) GetSessionUserId(ctx context.Context, sessionId string) (string, error) {
	userId, err := r.rc.Get(ctx, r.getSessionKey(sessionId)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", account.ErrSessionNotFound
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return userId, nil
}

func (r repo) RemoveSession(ctx context.Context, sessionId string) error {
	r.logger.DebugContext(ctx, "called")

	res, err := r.rc.Del(ctx, r.getSessionKey(sessionId)).Result()
	if err != nil {
		return err
	}
	if res == 0 {
		return account.ErrSessionNotFound
	}

	return nil
}
