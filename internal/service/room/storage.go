package room

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sharetube/watchparty/internal/repository/blob"
	"golang.org/x/exp/slices"
)

const (
	scopePlaylist   = "playlist"
	scopeRequests   = "requests"
	maxFileNameLen  = 120
	unknownUploader = "Unknown"
	// finished deletes are forgotten after this long even if no listing
	// of their scope comes along
	tombstoneTTL    = time.Minute
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func storageScope(roomId, kind string) string {
	return roomId + "/" + kind
}

// safeFileName reduces name to [a-zA-Z0-9._-] so it can be used as the last
// element of a blob ref.
func safeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_")
	if len(name) > maxFileNameLen {
		name = name[len(name)-maxFileNameLen:]
	}
	if name == "" || name == "." || name == ".." {
		return "video"
	}

	return name
}

// displayFileName keeps the uploader's name readable for listings.
func displayFileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "video"
	}
	if utf8.RuneCountInString(name) > maxFileNameLen {
		name = string([]rune(name)[:maxFileNameLen])
	}
	return name
}

func storedName(now time.Time, fileName string) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), safeFileName(fileName))
}

// videoIdFromRef derives the playlist id from the storage location so that
// the same object always maps to the same id.
func videoIdFromRef(ref blob.Ref) string {
	sum := sha1.Sum([]byte(ref))
	return "blob_" + hex.EncodeToString(sum[:])
}

// fileNameFromRef strips the "<ms>_" prefix added by storedName.
func fileNameFromRef(ref blob.Ref) string {
	name := ref.Name()
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return name
	}
	for _, c := range name[:i] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[i+1:]
}

func (s *service) fileURL(ref blob.Ref) string {
	return strings.TrimRight(s.mediaBaseURL, "/") + "/" + ref.String()
}

func storageError(err error) error {
	if errors.Is(err, blob.ErrUnavailable) {
		return ErrStorageUnavailable
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// blobTracker remembers blobs whose storage I/O is still running, so
// playlist listings taken in the meantime neither pick up a half-committed
// upload nor bring back a deleted video.
type blobTracker struct {
	mu      sync.Mutex
	writing map[blob.Ref]struct{}
	// deleted maps a ref to the time its delete returned, 0 while it runs.
	deleted map[blob.Ref]int64
}

func newBlobTracker() *blobTracker {
	return &blobTracker{
		writing: make(map[blob.Ref]struct{}),
		deleted: make(map[blob.Ref]int64),
	}
}

// writeStarted registers the ref a Put or Copy is about to create. Put may
// add an extension, so refs continuing with "." match as well.
func (t *blobTracker) writeStarted(ref blob.Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writing[ref] = struct{}{}
}

func (t *blobTracker) writeDone(ref blob.Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.writing, ref)
}

// deleteStarted hides refs from playlist listings. Other scopes are never
// listed and are not tracked.
func (t *blobTracker) deleteStarted(refs ...blob.Ref) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ref := range refs {
		if strings.HasSuffix(ref.Scope(), "/"+scopePlaylist) {
			t.deleted[ref] = 0
		}
	}
}

func (t *blobTracker) deleteDone(ref blob.Ref, at int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.deleted[ref]; ok {
		t.deleted[ref] = at
	}
	t.sweep(at)
}

// sweep must be called with t.mu held.
func (t *blobTracker) sweep(now int64) {
	for ref, doneAt := range t.deleted {
		if doneAt != 0 && now-doneAt > tombstoneTTL.Milliseconds() {
			delete(t.deleted, ref)
		}
	}
}

// hidden reports whether a listed object must stay out of playlists.
func (t *blobTracker) hidden(ref blob.Ref) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.deleted[ref]; ok {
		return true
	}
	for w := range t.writing {
		if ref == w || strings.HasPrefix(string(ref), string(w)+".") {
			return true
		}
	}
	return false
}

// prune forgets deletions in scope that finished before a listing started
// at listedAt and no longer show up in it.
func (t *blobTracker) prune(scope string, listed map[blob.Ref]struct{}, listedAt int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ref, doneAt := range t.deleted {
		if doneAt == 0 || doneAt >= listedAt || ref.Scope() != scope {
			continue
		}
		if _, ok := listed[ref]; !ok {
			delete(t.deleted, ref)
		}
	}
	t.sweep(listedAt)
}

// discardBlob deletes a blob that is no longer part of room state.
func (s *service) discardBlob(ctx context.Context, ref blob.Ref) {
	s.blobs.deleteStarted(ref)
	err := s.blobStore.Delete(ctx, ref)
	s.blobs.deleteDone(ref, s.nowMillis())

	s.bestEffort(ctx, "failed to discard blob", err, "ref", ref)
}

// applyListing rebuilds the playlist from a storage listing taken at
// listedAt. Items committed after the listing started are kept. Objects
// still being written or deleted are skipped. Must be called with the room
// locked.
func (s *service) applyListing(ctx context.Context, r *roomState, objects []blob.Object, listedAt int64, forceBroadcast bool) {
	known := make(map[string]Video, len(r.playlist))
	for _, v := range r.playlist {
		known[v.Id] = v
	}

	rebuilt := make([]Video, 0, len(objects))
	seen := make(map[string]struct{}, len(objects))
	listed := make(map[blob.Ref]struct{}, len(objects))
	for _, obj := range objects {
		listed[obj.Ref] = struct{}{}

		id := videoIdFromRef(obj.Ref)
		if _, dup := seen[id]; dup {
			continue
		}

		if v, ok := known[id]; ok {
			seen[id] = struct{}{}
			rebuilt = append(rebuilt, v)
			continue
		}
		if s.blobs.hidden(obj.Ref) {
			continue
		}
		seen[id] = struct{}{}
		rebuilt = append(rebuilt, Video{
			Id:             id,
			FileName:       fileNameFromRef(obj.Ref),
			FileURL:        s.fileURL(obj.Ref),
			UploadedAt:     obj.LastModified.UnixMilli(),
			UploadedByName: unknownUploader,
			StorageRef:     obj.Ref,
		})
	}

	for _, v := range r.playlist {
		if _, ok := seen[v.Id]; !ok && v.UploadedAt >= listedAt {
			rebuilt = append(rebuilt, v)
		}
	}

	s.blobs.prune(storageScope(r.id, scopePlaylist), listed, listedAt)

	changed := !slices.EqualFunc(r.playlist, rebuilt, func(a, b Video) bool { return a.Id == b.Id })
	r.playlist = rebuilt
	repaired := s.repairSelection(r)

	if changed || forceBroadcast {
		s.broadcastPlaylist(ctx, r)
	}
	if repaired {
		s.broadcastMedia(ctx, r)
	}
}

// repairSelection restores the blob selection invariant after the playlist
// changed and reports whether the selection moved.
func (s *service) repairSelection(r *roomState) bool {
	m, ok := r.media.(BlobMedia)
	if !ok || r.videoIndex(m.VideoId) >= 0 {
		return false
	}

	if len(r.playlist) > 0 {
		r.media = BlobMedia{VideoId: r.playlist[0].Id}
	} else {
		r.media = EmptyMedia{}
	}
	s.resetPlayback(r)

	return true
}

func (s *service) broadcastPlaylist(ctx context.Context, r *roomState) {
	s.broadcast(ctx, r, EventPlaylistUpdated, PlaylistUpdatedPayload{
		Playlist:       slices.Clone(r.playlist),
		CurrentVideoId: r.currentVideoId(),
	})
}

func (s *service) broadcastQueue(ctx context.Context, r *roomState) {
	s.broadcast(ctx, r, EventQueueUpdated, QueueUpdatedPayload{
		PendingRequests: slices.Clone(r.pendingRequests),
	})
}

// broadcastMedia announces the current selection with a fresh state.
func (s *service) broadcastMedia(ctx context.Context, r *roomState) {
	state := s.syncState(r)

	switch r.media.(type) {
	case EmptyMedia:
		s.broadcast(ctx, r, EventMediaCleared, MediaClearedPayload{State: state})
	case BlobMedia, YoutubeMedia, ExternalMedia:
		s.broadcast(ctx, r, EventMediaChanged, MediaChangedPayload{Media: r.mediaPayload(), State: state})
	default:
		panic("room: unknown media variant")
	}
}
