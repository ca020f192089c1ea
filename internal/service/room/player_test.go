package room

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioSeekAndRequestSync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	env.conns.reset()

	_, err := env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventSeek, CurrentTime: 42.0})
	require.NoError(t, err)

	syncState, ok := env.conns.lastOf("y", EventSyncState)
	require.True(t, ok)
	assert.Equal(t, 42.0, syncState.Payload.(SyncState).CurrentTime)
	assert.Empty(t, env.conns.eventsFor("x"), "the host does not receive its own sync")

	env.conns.reset()
	require.NoError(t, env.service.RequestSync(ctx, &RequestSyncParams{ConnId: "y"}))
	assert.Empty(t, env.conns.eventsFor("x"), "request-sync is unicast")
	syncState, ok = env.conns.lastOf("y", EventSyncState)
	require.True(t, ok)
	assert.Equal(t, SyncState{CurrentTime: 42.0, IsPlaying: false, SentAt: env.clock.Now().UnixMilli()}, syncState.Payload)

	_, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "y", Event: PlayerEventPlay, CurrentTime: 1})
	assert.ErrorIs(t, err, ErrForbidden, "non-host playback events are ignored")

	assert.ErrorIs(t, env.service.RequestSync(ctx, &RequestSyncParams{ConnId: "stranger"}), ErrNotJoined)
}

func TestPlaybackEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")

	resp, err := env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventPlay, CurrentTime: 10})
	require.NoError(t, err)
	assert.True(t, resp.State.IsPlaying)

	env.clock.Advance(5 * time.Second)
	require.NoError(t, env.service.RequestSync(ctx, &RequestSyncParams{ConnId: "y"}))
	syncState, _ := env.conns.lastOf("y", EventSyncState)
	assert.InDelta(t, 15.0, syncState.Payload.(SyncState).CurrentTime, 0.001, "position advances while playing")

	_, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventPause, CurrentTime: 15})
	require.NoError(t, err)
	env.clock.Advance(5 * time.Second)
	require.NoError(t, env.service.RequestSync(ctx, &RequestSyncParams{ConnId: "y"}))
	syncState, _ = env.conns.lastOf("y", EventSyncState)
	assert.Equal(t, 15.0, syncState.Payload.(SyncState).CurrentTime, "position holds while paused")

	playing := true
	resp, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventState, CurrentTime: 20, IsPlaying: &playing})
	require.NoError(t, err)
	assert.True(t, resp.State.IsPlaying)

	resp, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventState, CurrentTime: math.NaN()})
	require.NoError(t, err)
	assert.False(t, resp.State.IsPlaying, "missing isPlaying means paused")
	assert.Equal(t, 0.0, resp.State.CurrentTime, "non-finite time is clamped")

	resp, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventSeek, CurrentTime: -3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.State.CurrentTime)
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &Config{HeartbeatInterval: 10 * time.Millisecond, Now: time.Now})

	env.join(t, "x", "demo", "X")
	env.join(t, "y", "demo", "Y")
	env.conns.reset()

	_, err := env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventPlay, CurrentTime: 1})
	require.NoError(t, err)

	countSyncs := func(connId string) int {
		n := 0
		for _, ev := range env.conns.eventsFor(connId) {
			if ev.Type == EventSyncState {
				n++
			}
		}
		return n
	}

	require.Eventually(t, func() bool { return countSyncs("y") >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, countSyncs("x"), "heartbeats go to followers only")

	_, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventPause, CurrentTime: 2})
	require.NoError(t, err)

	r := env.room(t, "demo")
	r.mu.Lock()
	assert.Nil(t, r.heartbeat, "pausing stops the heartbeat")
	r.mu.Unlock()

	settled := countSyncs("y")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, countSyncs("y"), "no heartbeats while paused")

	_, err = env.service.UpdatePlayerState(ctx, &UpdatePlayerStateParams{ConnId: "x", Event: PlayerEventPlay, CurrentTime: 2})
	require.NoError(t, err)
	env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "y"})
	env.service.DisconnectMember(ctx, &DisconnectMemberParams{ConnId: "x"})

	r.mu.Lock()
	assert.Nil(t, r.heartbeat, "teardown stops the heartbeat")
	r.mu.Unlock()
}
