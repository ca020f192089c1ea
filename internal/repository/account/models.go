package account

import "time"

type User struct {
	Username     string `redis:"username"`
	DisplayName  string `redis:"display_name"`
	PasswordHash string `redis:"password_hash"`
	CreatedAt    int64  `redis:"created_at"`
}

type RoomVisit struct {
	RoomId       string
	LastJoinedAt int64
}

type HistoryEntry struct {
	RoomId    string `json:"roomId"`
	MediaType string `json:"mediaType"`
	Title     string `json:"title"`
	MediaId   string `json:"mediaId"`
	WatchedAt int64  `json:"watchedAt"`
}

type CreateUserParams struct {
	UserId       string
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    int64
}

type SetSessionParams struct {
	SessionId string
	UserId    string
	TTL       time.Duration
}

type TouchRoomParams struct {
	UserId   string
	RoomId   string
	JoinedAt int64
	Limit    int
}

type AddHistoryParams struct {
	UserId string
	Entry  HistoryEntry
	Limit  int
}
