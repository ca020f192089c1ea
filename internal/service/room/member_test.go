package room

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRoom(t *testing.T) {
	env := newTestEnv(t, nil)

	x := env.join(t, "x", "Demo", "Xavier")
	assert.Equal(t, "demo", x.RoomId)
	assert.Equal(t, RoleHost, x.Role, "first member becomes host")
	assert.Equal(t, "x", x.State.HostId)

	y := env.join(t, "y", "demo", "")
	assert.Equal(t, RoleViewer, y.Role)
	assert.Equal(t, "Guest", y.Name)
	assert.Equal(t, "x", y.State.HostId)
	assert.Len(t, y.State.Members, 2)
	assert.Equal(t, syncTolerance, y.State.SyncTolerance)

	assert.Equal(t, []string{EventRoomState, EventRoomMembers, EventRoomMembers}, env.conns.typesFor("x"))
	assert.Equal(t, []string{EventRoomState, EventRoomMembers}, env.conns.typesFor("y"))

	members, ok := env.conns.lastOf("x", EventRoomMembers)
	require.True(t, ok)
	assert.Equal(t, RoomMembersPayload{
		HostId: "x",
		Members: []Member{
			{Id: "x", Name: "Xavier", Role: RoleHost},
			{Id: "y", Name: "Guest", Role: RoleViewer},
		},
	}, members.Payload)

	_, err := env.service.JoinRoom(context.Background(), &JoinRoomParams{ConnId: "x", RoomId: "other"})
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestJoinRoomFull(t *testing.T) {
	env := newTestEnv(t, &Config{MembersLimit: 1})
	env.join(t, "x", "demo", "X")

	_, err := env.service.JoinRoom(context.Background(), &JoinRoomParams{ConnId: "y", RoomId: "demo"})
	assert.ErrorIs(t, err, ErrRoomFull)

	_, ok := env.service.getSession("y")
	assert.False(t, ok, "rejected joiner has no session")
}

func TestLeaveRoomFailover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	env.join(t, "z", "demo", "Z")

	_, err := env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "y", Action: RoleActionPromote})
	require.NoError(t, err)
	env.conns.reset()

	resp, err := env.service.LeaveRoom(ctx, &LeaveRoomParams{ConnId: "x"})
	require.NoError(t, err)
	assert.Equal(t, "y", resp.HostId, "earliest remaining member becomes host")
	assert.False(t, resp.IsRoomDeleted)

	r := env.room(t, "demo")
	assert.False(t, r.isCoHost("y"), "new host loses its co-host grant")

	assert.Equal(t, []string{EventHostChanged, EventRoomMembers, EventQueueUpdated}, env.conns.typesFor("z"))
	hostChanged, _ := env.conns.lastOf("z", EventHostChanged)
	assert.Equal(t, HostChangedPayload{HostId: "y"}, hostChanged.Payload)
	assert.Empty(t, env.conns.eventsFor("x"), "leaver gets nothing")

	_, err = env.service.LeaveRoom(ctx, &LeaveRoomParams{ConnId: "x"})
	assert.ErrorIs(t, err, ErrNotJoined, "leave runs once per connection")

	env.conns.reset()
	_, err = env.service.LeaveRoom(ctx, &LeaveRoomParams{ConnId: "z"})
	require.NoError(t, err)
	assert.Equal(t, []string{EventRoomMembers, EventQueueUpdated}, env.conns.typesFor("y"), "no host-changed when a viewer leaves")

	resp, err = env.service.LeaveRoom(ctx, &LeaveRoomParams{ConnId: "y"})
	require.NoError(t, err)
	assert.True(t, resp.IsRoomDeleted)
	assert.Equal(t, 0, env.service.RoomsCount())
}

func TestRoomRecreatedAfterTeardown(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	env.join(t, "x", "demo", "X")
	_, err := env.service.SetYoutube(ctx, &SetYoutubeParams{RoomId: "demo", SenderId: "x", URL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "x"})

	y := env.join(t, "y", "demo", "Y")
	assert.Equal(t, RoleHost, y.Role)
	assert.Nil(t, y.State.Media, "a recreated room starts empty")
}

func TestUpdateMemberRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	env.conns.reset()

	_, err := env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "y", TargetId: "y", Action: RoleActionPromote})
	assert.ErrorIs(t, err, ErrForbidden, "only the host changes roles")

	_, err = env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "nobody", Action: RoleActionPromote})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "x", Action: RoleActionDemote})
	assert.ErrorIs(t, err, ErrHostRoleImmutable)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "y", Action: "crown"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "missing", SenderId: "x", TargetId: "y", Action: RoleActionPromote})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	assert.Equal(t, 0, env.conns.count(), "failed role changes broadcast nothing")

	for i := 0; i < 2; i++ {
		resp, err := env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "y", Action: RoleActionPromote})
		require.NoError(t, err)
		assert.Equal(t, RoleCoHost, resp.Members[1].Role)
	}

	resp, err := env.service.UpdateMemberRole(ctx, &UpdateMemberRoleParams{RoomId: "demo", SenderId: "x", TargetId: "y", Action: RoleActionDemote})
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, resp.Members[1].Role)

	members, ok := env.conns.lastOf("y", EventRoomMembers)
	require.True(t, ok)
	assert.Equal(t, RoleViewer, members.Payload.(RoomMembersPayload).Members[1].Role)
}

func TestConcurrentJoinLeave(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connId := fmt.Sprintf("c%d", i)
			_, err := env.service.JoinRoom(ctx, &JoinRoomParams{ConnId: connId, RoomId: "busy"})
			assert.NoError(t, err)
			if i%2 == 0 {
				env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: connId})
			}
		}(i)
	}
	wg.Wait()

	r := env.room(t, "busy")
	r.mu.Lock()
	assert.Len(t, r.memberIds, n/2)
	assert.True(t, r.hasMember(r.hostId), "host is always a current member")
	r.mu.Unlock()

	for i := 1; i < n; i += 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: fmt.Sprintf("c%d", i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, env.service.RoomsCount())
}
