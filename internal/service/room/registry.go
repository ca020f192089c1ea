package room

import (
	"context"
	"strings"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/blob"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultRoomId   = "main-room"
	maxRoomIdLen    = 64
	teardownWorkers = 4
)

type registry struct {
	rooms map[string]*roomState
	mu    sync.RWMutex
}

func newRegistry() *registry {
	return &registry{rooms: make(map[string]*roomState)}
}

// NormalizeRoomId lowercases raw and keeps only [a-z0-9-_]. An id that ends
// up empty becomes "main-room".
func NormalizeRoomId(raw string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(strings.TrimSpace(raw)) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			b.WriteRune(c)
			if b.Len() >= maxRoomIdLen {
				break
			}
		}
	}

	if b.Len() == 0 {
		return defaultRoomId
	}
	return b.String()
}

// resolve returns the live room for id, creating it when absent.
func (g *registry) resolve(id string) *roomState {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		return r
	}
	r = newRoomState(id)
	g.rooms[id] = r

	return r
}

func (g *registry) lookup(id string) (*roomState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.rooms[id]
	return r, ok
}

// remove drops r only if it is still the registered instance for its id.
func (g *registry) remove(r *roomState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rooms[r.id] == r {
		delete(g.rooms, r.id)
	}
}

func (g *registry) len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.rooms)
}

// destroyIfEmpty tears the room down once its last member is gone. Must be
// called with the room locked; blob cleanup runs in the background.
func (s *service) destroyIfEmpty(ctx context.Context, r *roomState) bool {
	if len(r.memberIds) > 0 {
		return false
	}

	r.closed = true
	s.stopHeartbeat(r)
	s.registry.remove(r)

	refs := make([]blob.Ref, 0, len(r.playlist)+len(r.pendingRequests))
	for _, v := range r.playlist {
		refs = append(refs, v.StorageRef)
	}
	for _, req := range r.pendingRequests {
		refs = append(refs, req.StorageRef)
	}
	r.playlist = nil
	r.pendingRequests = nil
	s.blobs.deleteStarted(refs...)

	s.logger.InfoContext(ctx, "room destroyed", "room_id", r.id, "blobs", len(refs))

	if len(refs) > 0 {
		go s.releaseStorage(context.WithoutCancel(ctx), r.id, refs)
	}

	return true
}

func (s *service) releaseStorage(ctx context.Context, roomId string, refs []blob.Ref) {
	p := pool.New().WithMaxGoroutines(teardownWorkers)
	for _, ref := range refs {
		p.Go(func() {
			err := s.blobStore.Delete(ctx, ref)
			s.blobs.deleteDone(ref, s.nowMillis())
			s.bestEffort(ctx, "failed to delete blob", err, "room_id", roomId, "ref", ref)
		})
	}
	p.Wait()
}
