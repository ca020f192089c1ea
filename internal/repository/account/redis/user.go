package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/account"
)

func (r repo) getUserKey(userId string) string {
	return "user:" + userId
}

func (r repo) getUsernameKey(username string) string {
	return "username:" + username
}

// CreateUser reserves the username first so two concurrent registrations of
// the same name cannot both succeed.
func (r repo) CreateUser(ctx context.Context, params *account.CreateUserParams) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id":  params.UserId,
		"username": params.Username,
	})

	ok, err := r.rc.SetNX(ctx, r.getUsernameKey(params.Username), params.UserId, 0).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", account.ErrUsernameTaken)
		return account.ErrUsernameTaken
	}

	user := account.User{
		Username:     params.Username,
		DisplayName:  params.DisplayName,
		PasswordHash: params.PasswordHash,
		CreatedAt:    params.CreatedAt,
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getUserKey(params.UserId), user)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.rc.Del(ctx, r.getUsernameKey(params.Username))
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetUserIdByUsername(ctx context.Context, username string) (string, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"username": username,
	})

	userId, err := r.rc.Get(ctx, r.getUsernameKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", account.ErrUserNotFound
		}
		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return userId, nil
}

func (r repo) GetUser(ctx context.Context, userId string) (account.User, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": userId,
	})

	var user account.User
	if err := r.rc.HGetAll(ctx, r.getUserKey(userId)).Scan(&user); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return account.User{}, err
	}

	if user.Username == "" {
		r.logger.DebugContext(ctx, "returned", "error", account.ErrUserNotFound)
		return account.User{}, account.ErrUserNotFound
	}

	return user, nil
}

func (r repo) UpdateUserDisplayName(ctx context.Context, userId, displayName string) error {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id":      userId,
		"display_name": displayName,
	})

	userKey := r.getUserKey(userId)
	exists, err := r.rc.Exists(ctx, userKey).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return account.ErrUserNotFound
	}

	return r.rc.HSet(ctx, userKey, "display_name", displayName).Err()
}
