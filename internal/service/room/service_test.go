package room

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/blob"
	blobfs "github.com/sharetube/watchparty/internal/repository/blob/fs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	connId string
	event  Event
}

type fakeConnRepo struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeConnRepo) Add(string, *websocket.Conn) error { return nil }

func (f *fakeConnRepo) Remove(string) error { return nil }

func (f *fakeConnRepo) Send(connId string, msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, sentEvent{connId: connId, event: msg.(Event)})
	return nil
}

func (f *fakeConnRepo) eventsFor(connId string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []Event
	for _, e := range f.events {
		if e.connId == connId {
			events = append(events, e.event)
		}
	}
	return events
}

func (f *fakeConnRepo) typesFor(connId string) []string {
	var types []string
	for _, e := range f.eventsFor(connId) {
		types = append(types, e.Type)
	}
	return types
}

func (f *fakeConnRepo) lastOf(connId, eventType string) (Event, bool) {
	events := f.eventsFor(connId)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i], true
		}
	}
	return Event{}, false
}

func (f *fakeConnRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.events)
}

func (f *fakeConnRepo) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type testEnv struct {
	service *service
	conns   *fakeConnRepo
	clock   *fakeClock
	store   *blobfs.Store
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	slog.SetLogLoggerLevel(slog.LevelDebug)

	env := &testEnv{
		conns: &fakeConnRepo{},
		clock: &fakeClock{t: time.UnixMilli(1_700_000_000_000)},
		store: blobfs.NewStore(afero.NewMemMapFs(), slog.Default()),
	}

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Now == nil {
		cfg.Now = env.clock.Now
	}
	env.service = NewService(env.conns, env.store, cfg, slog.Default())

	return env
}

func (env *testEnv) join(t *testing.T, connId, roomId, name string) JoinRoomResponse {
	t.Helper()

	resp, err := env.service.JoinRoom(context.Background(), &JoinRoomParams{
		ConnId:   connId,
		RoomId:   roomId,
		Username: name,
	})
	require.NoError(t, err)
	return resp
}

func (env *testEnv) upload(t *testing.T, roomId, senderId, fileName string) Video {
	t.Helper()

	resp, err := env.service.UploadVideo(context.Background(), &UploadVideoParams{
		RoomId:      roomId,
		SenderId:    senderId,
		FileName:    fileName,
		ContentType: "video/mp4",
		Body:        strings.NewReader("video-bytes"),
	})
	require.NoError(t, err)
	env.clock.Advance(time.Millisecond)
	return resp.Video
}

func (env *testEnv) room(t *testing.T, roomId string) *roomState {
	t.Helper()

	r, ok := env.service.registry.lookup(roomId)
	require.True(t, ok, "room %s must exist", roomId)
	return r
}

func (env *testEnv) listScope(t *testing.T, scope string) []blob.Object {
	t.Helper()

	objects, err := env.store.List(context.Background(), scope)
	require.NoError(t, err)
	return objects
}

func TestNormalizeRoomId(t *testing.T) {
	assert.Equal(t, "movie-night_1", NormalizeRoomId("  Movie-Night_1 "))
	assert.Equal(t, "demo", NormalizeRoomId("De mo!!"))
	assert.Equal(t, "main-room", NormalizeRoomId("!!!"))
	assert.Equal(t, "main-room", NormalizeRoomId(""))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Guest", SanitizeName("   "))
	assert.Equal(t, "Alice Smith", SanitizeName("  Alice \t  Smith "))
	assert.Equal(t, 32, len([]rune(SanitizeName(strings.Repeat("é", 40)))))
}
