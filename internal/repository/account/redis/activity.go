package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/account"
)

func (r repo) getRoomsKey(userId string) string {
	return "user:" + userId + ":rooms"
}

func (r repo) getHistoryKey(userId string) string {
	return "user:" + userId + ":history"
}

// TouchRoom records a visit and keeps only the most recent Limit rooms.
func (r repo) TouchRoom(ctx context.Context, params *account.TouchRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	roomsKey := r.getRoomsKey(params.UserId)
	pipe.ZAdd(ctx, roomsKey, redis.Z{Score: float64(params.JoinedAt), Member: params.RoomId})
	if params.Limit > 0 {
		pipe.ZRemRangeByRank(ctx, roomsKey, 0, int64(-params.Limit-1))
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// GetRooms returns visits newest first.
func (r repo) GetRooms(ctx context.Context, userId string, limit int) ([]account.RoomVisit, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": userId,
		"limit":   limit,
	})

	zs, err := r.rc.ZRevRangeWithScores(ctx, r.getRoomsKey(userId), 0, int64(limit-1)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	visits := make([]account.RoomVisit, 0, len(zs))
	for _, z := range zs {
		roomId, _ := z.Member.(string)
		visits = append(visits, account.RoomVisit{
			RoomId:       roomId,
			LastJoinedAt: int64(z.Score),
		})
	}

	return visits, nil
}

func (r repo) AddHistory(ctx context.Context, params *account.AddHistoryParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	data, err := json.Marshal(params.Entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	pipe := r.rc.TxPipeline()
	historyKey := r.getHistoryKey(params.UserId)
	pipe.LPush(ctx, historyKey, data)
	if params.Limit > 0 {
		pipe.LTrim(ctx, historyKey, 0, int64(params.Limit-1))
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// GetHistory returns entries newest first.
func (r repo) GetHistory(ctx context.Context, userId string, limit int) ([]account.HistoryEntry, error) {
	r.logger.DebugContext(ctx, "called", "params", map[string]any{
		"user_id": userId,
		"limit":   limit,
	})

	items, err := r.rc.LRange(ctx, r.getHistoryKey(userId), 0, int64(limit-1)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	entries := make([]account.HistoryEntry, 0, len(items))
	for _, item := range items {
		var entry account.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed history entry", "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
