package account

type User struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

type RoomVisit struct {
	RoomId       string `json:"roomId"`
	LastJoinedAt int64  `json:"lastJoinedAt"`
}

type HistoryEntry struct {
	RoomId    string `json:"roomId"`
	MediaType string `json:"mediaType"`
	Title     string `json:"title"`
	MediaId   string `json:"mediaId"`
	WatchedAt int64  `json:"watchedAt"`
}

type Dashboard struct {
	User           User           `json:"user"`
	Rooms          []RoomVisit    `json:"rooms"`
	WatchHistory   []HistoryEntry `json:"watchHistory"`
	SavedPlaylists []any          `json:"savedPlaylists"`
}
