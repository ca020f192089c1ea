package room

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sharetube/watchparty/internal/repository/blob"
	blobfs "github.com/sharetube/watchparty/internal/repository/blob/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookStore runs a one-shot callback around a storage call so tests can
// interleave room operations with storage I/O that is still in flight.
type hookStore struct {
	*blobfs.Store
	afterPut     func()
	afterCopy    func()
	afterList    func()
	beforeDelete func()
}

func runOnce(f *func()) {
	if *f == nil {
		return
	}
	hook := *f
	*f = nil
	hook()
}

func (h *hookStore) Put(ctx context.Context, scope, name string, r io.Reader, contentType string) (blob.Ref, error) {
	ref, err := h.Store.Put(ctx, scope, name, r, contentType)
	runOnce(&h.afterPut)
	return ref, err
}

func (h *hookStore) Copy(ctx context.Context, src blob.Ref, dstScope string) (blob.Ref, error) {
	ref, err := h.Store.Copy(ctx, src, dstScope)
	runOnce(&h.afterCopy)
	return ref, err
}

func (h *hookStore) List(ctx context.Context, scope string) ([]blob.Object, error) {
	objects, err := h.Store.List(ctx, scope)
	runOnce(&h.afterList)
	return objects, err
}

func (h *hookStore) Delete(ctx context.Context, ref blob.Ref) error {
	runOnce(&h.beforeDelete)
	return h.Store.Delete(ctx, ref)
}

func newHookEnv(t *testing.T, cfg *Config) (*testEnv, *hookStore) {
	t.Helper()

	env := newTestEnv(t, cfg)
	store := &hookStore{Store: env.store}
	env.service.blobStore = store

	return env, store
}

func joinedPlaylist(t *testing.T, env *testEnv, connId string) []Video {
	t.Helper()

	e, ok := env.conns.lastOf(connId, EventRoomState)
	require.True(t, ok)
	return e.Payload.(RoomState).Playlist
}

func TestUploadRacingJoinListing(t *testing.T) {
	env, store := newHookEnv(t, nil)

	env.join(t, "x", "demo", "X")
	store.afterPut = func() { env.join(t, "y", "demo", "Y") }

	video := env.upload(t, "demo", "x", "a.mp4")

	assert.Empty(t, joinedPlaylist(t, env, "y"), "a listing skips blobs still being uploaded")

	r := env.room(t, "demo")
	require.Len(t, r.playlist, 1)
	assert.Equal(t, video.Id, r.playlist[0].Id)
	assert.Equal(t, "X", r.playlist[0].UploadedByName)
	assert.Empty(t, env.service.blobs.writing)

	z := env.join(t, "z", "demo", "Z")
	require.Len(t, z.State.Playlist, 1, "later listings keep the committed item once")
	assert.Equal(t, "X", z.State.Playlist[0].UploadedByName)
}

func TestApproveRacingJoinListing(t *testing.T) {
	ctx := context.Background()
	env, store := newHookEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Yasmin")
	req, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "y", FileName: "clip.mp4", Body: strings.NewReader("clip")})
	require.NoError(t, err)

	store.afterCopy = func() { env.join(t, "z", "demo", "Z") }

	resp, err := env.service.ProcessRequest(ctx, &ProcessRequestParams{RoomId: "demo", SenderId: "x", RequestId: req.Request.Id, Action: RequestActionApprove})
	require.NoError(t, err)

	assert.Empty(t, joinedPlaylist(t, env, "z"))
	require.Len(t, resp.Playlist, 1)
	assert.Equal(t, "Yasmin", resp.Playlist[0].UploadedByName)
	assert.Len(t, env.room(t, "demo").playlist, 1)
}

func TestDeleteRacingJoinListing(t *testing.T) {
	ctx := context.Background()

	t.Run("listing during delete", func(t *testing.T) {
		env, store := newHookEnv(t, nil)

		env.join(t, "x", "demo", "X")
		video := env.upload(t, "demo", "x", "a.mp4")

		store.beforeDelete = func() { env.join(t, "y", "demo", "Y") }
		require.NoError(t, env.service.DeleteVideo(ctx, &DeleteVideoParams{RoomId: "demo", SenderId: "x", VideoId: video.Id}))

		assert.Empty(t, joinedPlaylist(t, env, "y"), "a deleted video does not come back")
		r := env.room(t, "demo")
		assert.Empty(t, r.playlist)
		assert.Equal(t, EmptyMedia{}, r.media)
		assert.Empty(t, env.listScope(t, "demo/playlist"))
	})

	t.Run("listing taken before delete", func(t *testing.T) {
		env, store := newHookEnv(t, nil)

		env.join(t, "x", "demo", "X")
		video := env.upload(t, "demo", "x", "a.mp4")

		store.afterList = func() {
			require.NoError(t, env.service.DeleteVideo(ctx, &DeleteVideoParams{RoomId: "demo", SenderId: "x", VideoId: video.Id}))
		}
		env.join(t, "y", "demo", "Y")

		assert.Empty(t, joinedPlaylist(t, env, "y"), "a stale listing does not restore the video")
		assert.Empty(t, env.room(t, "demo").playlist)

		env.clock.Advance(time.Millisecond)
		env.join(t, "z", "demo", "Z")
		assert.Empty(t, env.service.blobs.deleted, "finished deletes are forgotten once storage agrees")
	})
}

func TestRequestUploadRequesterLeft(t *testing.T) {
	ctx := context.Background()
	env, store := newHookEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	store.afterPut = func() { env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "y"}) }

	_, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "y", FileName: "a.mp4", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, ErrNotJoined)

	assert.Empty(t, env.room(t, "demo").pendingRequests)
	assert.Empty(t, env.listScope(t, "demo/requests"), "the orphaned blob is discarded")
}

func TestRequestUploadRoomRecreated(t *testing.T) {
	ctx := context.Background()
	env, store := newHookEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	store.afterPut = func() {
		env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "x"})
		env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "y"})
		env.join(t, "z", "demo", "Z")
		env.conns.reset()
	}

	_, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "y", FileName: "a.mp4", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	assert.Empty(t, env.room(t, "demo").pendingRequests, "the new room does not inherit the request")
	assert.Equal(t, 0, env.conns.count())
	assert.Empty(t, env.listScope(t, "demo/requests"))
}

func TestApproveAfterDemotion(t *testing.T) {
	ctx := context.Background()
	env, store := newHookEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	env.join(t, "z", "demo", "Z")
	_, err := env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "y", Action: RoleActionPromote})
	require.NoError(t, err)
	req, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "z", FileName: "a.mp4", Body: strings.NewReader("a")})
	require.NoError(t, err)

	store.afterCopy = func() {
		_, err := env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "y", Action: RoleActionDemote})
		require.NoError(t, err)
		env.conns.reset()
	}

	_, err = env.service.ProcessRequest(ctx, &ProcessRequestParams{RoomId: "demo", SenderId: "y", RequestId: req.Request.Id, Action: RequestActionApprove})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	r := env.room(t, "demo")
	require.Len(t, r.pendingRequests, 1)
	assert.Equal(t, req.Request.Id, r.pendingRequests[0].Id)
	assert.Empty(t, r.playlist)
	assert.Equal(t, 0, env.conns.count(), "a rejected commit broadcasts nothing")
	assert.Empty(t, env.listScope(t, "demo/playlist"), "the copy is discarded")
	assert.Len(t, env.listScope(t, "demo/requests"), 1)
}

func TestConcurrentApprovalsRespectPlaylistLimit(t *testing.T) {
	ctx := context.Background()
	env, store := newHookEnv(t, &Config{PlaylistLimit: 1})

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	first, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "y", FileName: "a.mp4", Body: strings.NewReader("a")})
	require.NoError(t, err)
	second, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "y", FileName: "b.mp4", Body: strings.NewReader("b")})
	require.NoError(t, err)

	store.afterCopy = func() {
		_, err := env.service.ProcessRequest(ctx, &ProcessRequestParams{RoomId: "demo", SenderId: "x", RequestId: second.Request.Id, Action: RequestActionApprove})
		require.NoError(t, err)
	}

	_, err = env.service.ProcessRequest(ctx, &ProcessRequestParams{RoomId: "demo", SenderId: "x", RequestId: first.Request.Id, Action: RequestActionApprove})
	assert.ErrorIs(t, err, ErrPlaylistLimitReached)

	r := env.room(t, "demo")
	require.Len(t, r.playlist, 1)
	assert.Equal(t, "b.mp4", r.playlist[0].FileName)
	require.Len(t, r.pendingRequests, 1)
	assert.Equal(t, first.Request.Id, r.pendingRequests[0].Id)
	assert.Len(t, env.listScope(t, "demo/playlist"), 1)
}

func TestApproveRoomRecreated(t *testing.T) {
	ctx := context.Background()
	env, store := newHookEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	req, err := env.service.RequestUpload(ctx, &RequestUploadParams{RoomId: "demo", SenderId: "y", FileName: "a.mp4", Body: strings.NewReader("a")})
	require.NoError(t, err)

	store.afterCopy = func() {
		env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "x"})
		env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "y"})
		env.join(t, "z", "demo", "Z")
	}

	_, err = env.service.ProcessRequest(ctx, &ProcessRequestParams{RoomId: "demo", SenderId: "x", RequestId: req.Request.Id, Action: RequestActionApprove})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	assert.Empty(t, joinedPlaylist(t, env, "z"))
	assert.Empty(t, env.room(t, "demo").playlist)
	assert.Empty(t, env.listScope(t, "demo/playlist"))
	assert.Empty(t, env.listScope(t, "demo/requests"))
}
