package room

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/repository/blob"
	"github.com/sharetube/watchparty/pkg/ytvideodata"
	"golang.org/x/exp/slices"
)

type UploadVideoParams struct {
	RoomId      string
	SenderId    string
	FileName    string
	ContentType string
	Body        io.Reader
}

type UploadVideoResponse struct {
	Video    Video
	Playlist []Video
	Media    *MediaPayload
}

// UploadVideo stores a file sent by the host, appends it to the playlist and
// selects it.
func (s *service) UploadVideo(ctx context.Context, params *UploadVideoParams) (UploadVideoResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return UploadVideoResponse{}, err
	}
	if params.SenderId == "" || params.SenderId != r.hostId {
		r.mu.Unlock()
		return UploadVideoResponse{}, ErrPermissionDenied
	}
	if len(r.playlist) >= s.playlistLimit {
		r.mu.Unlock()
		return UploadVideoResponse{}, ErrPlaylistLimitReached
	}
	scope := storageScope(r.id, scopePlaylist)
	name := storedName(s.now(), params.FileName)
	s.blobs.writeStarted(blob.Join(scope, name))
	defer s.blobs.writeDone(blob.Join(scope, name))
	r.mu.Unlock()

	ref, err := s.blobStore.Put(ctx, scope, name, params.Body, params.ContentType)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to store upload", "error", err)
		return UploadVideoResponse{}, storageError(err)
	}

	if err := s.relock(r); err != nil {
		s.discardBlob(ctx, ref)
		return UploadVideoResponse{}, err
	}

	id := videoIdFromRef(ref)
	var commitErr error
	switch {
	case params.SenderId != r.hostId:
		commitErr = ErrPermissionDenied
	case r.videoIndex(id) < 0 && len(r.playlist) >= s.playlistLimit:
		commitErr = ErrPlaylistLimitReached
	}
	if commitErr != nil {
		r.mu.Unlock()
		s.discardBlob(ctx, ref)
		return UploadVideoResponse{}, commitErr
	}
	defer r.mu.Unlock()

	video := Video{
		Id:             id,
		FileName:       displayFileName(params.FileName),
		FileURL:        s.fileURL(ref),
		UploadedAt:     s.nowMillis(),
		UploadedByName: s.uploaderName(r, params.SenderId),
		StorageRef:     ref,
	}
	r.putVideo(video)
	r.media = BlobMedia{VideoId: video.Id}
	s.resetPlayback(r)

	s.broadcastPlaylist(ctx, r)
	s.broadcastMedia(ctx, r)

	return UploadVideoResponse{
		Video:    video,
		Playlist: slices.Clone(r.playlist),
		Media:    r.mediaPayload(),
	}, nil
}

type RequestUploadParams struct {
	RoomId      string
	SenderId    string
	FileName    string
	ContentType string
	Body        io.Reader
}

type RequestUploadResponse struct {
	Request Request
}

// RequestUpload queues a file from a non-host member for approval.
func (s *service) RequestUpload(ctx context.Context, params *RequestUploadParams) (RequestUploadResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return RequestUploadResponse{}, err
	}
	if err := checkRequester(r, params.SenderId); err != nil {
		r.mu.Unlock()
		return RequestUploadResponse{}, err
	}
	scope := storageScope(r.id, scopeRequests)
	requesterName := s.uploaderName(r, params.SenderId)
	r.mu.Unlock()

	ref, err := s.blobStore.Put(ctx, scope, storedName(s.now(), params.FileName), params.Body, params.ContentType)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to store upload request", "error", err)
		return RequestUploadResponse{}, storageError(err)
	}

	if err := s.relock(r); err != nil {
		s.discardBlob(ctx, ref)
		return RequestUploadResponse{}, err
	}
	if err := checkRequester(r, params.SenderId); err != nil {
		r.mu.Unlock()
		s.discardBlob(ctx, ref)
		return RequestUploadResponse{}, err
	}
	defer r.mu.Unlock()

	req := Request{
		Id:              uuid.NewString(),
		FileName:        displayFileName(params.FileName),
		RequestedByName: requesterName,
		RequestedAt:     s.nowMillis(),
		RequestedById:   params.SenderId,
		StorageRef:      ref,
	}
	r.pendingRequests = append(r.pendingRequests, req)

	s.broadcastQueue(ctx, r)

	return RequestUploadResponse{Request: req}, nil
}

func checkRequester(r *roomState, connId string) error {
	if !r.hasMember(connId) {
		return ErrNotJoined
	}
	if connId == r.hostId {
		return ErrHostMustUploadDirect
	}
	return nil
}

const (
	RequestActionApprove = "approve"
	RequestActionReject  = "reject"
)

type ProcessRequestParams struct {
	RoomId    string
	SenderId  string
	RequestId string
	Action    string
}

type ProcessRequestResponse struct {
	Playlist        []Video
	PendingRequests []Request
}

// ProcessRequest approves or rejects a pending upload. The request is taken
// out of the queue before any storage work. If that work fails, or the
// sender may no longer act on it, the request is put back where it was and
// nothing is broadcast. The request blob is deleted after the commit.
func (s *service) ProcessRequest(ctx context.Context, params *ProcessRequestParams) (ProcessRequestResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return ProcessRequestResponse{}, err
	}
	approve := params.Action == RequestActionApprove
	if !r.canManageMedia(params.SenderId) {
		r.mu.Unlock()
		return ProcessRequestResponse{}, ErrPermissionDenied
	}
	if !approve && params.Action != RequestActionReject {
		r.mu.Unlock()
		return ProcessRequestResponse{}, ErrInvalidAction
	}
	idx := r.requestIndex(params.RequestId)
	if idx < 0 {
		r.mu.Unlock()
		return ProcessRequestResponse{}, ErrRequestNotFound
	}
	if approve && len(r.playlist) >= s.playlistLimit {
		r.mu.Unlock()
		return ProcessRequestResponse{}, ErrPlaylistLimitReached
	}
	req := r.pendingRequests[idx]
	r.pendingRequests = slices.Delete(r.pendingRequests, idx, idx+1)

	var target blob.Ref
	if approve {
		target = blob.Join(storageScope(r.id, scopePlaylist), req.StorageRef.Name())
		s.blobs.writeStarted(target)
		defer s.blobs.writeDone(target)
	}
	r.mu.Unlock()

	var newRef blob.Ref
	if approve {
		newRef, err = s.blobStore.Copy(ctx, req.StorageRef, target.Scope())
		if err != nil {
			s.logger.InfoContext(ctx, "failed to copy request blob", "error", err)
			if s.relock(r) != nil {
				s.discardBlob(ctx, req.StorageRef)
			} else {
				r.putBackRequest(req, idx)
				r.mu.Unlock()
			}
			return ProcessRequestResponse{}, storageError(err)
		}
	}

	if err := s.relock(r); err != nil {
		if newRef != "" {
			s.discardBlob(ctx, newRef)
		}
		s.discardBlob(ctx, req.StorageRef)
		return ProcessRequestResponse{}, err
	}

	var commitErr error
	switch {
	case !r.canManageMedia(params.SenderId):
		commitErr = ErrPermissionDenied
	case approve && r.videoIndex(videoIdFromRef(newRef)) < 0 && len(r.playlist) >= s.playlistLimit:
		commitErr = ErrPlaylistLimitReached
	}
	if commitErr != nil {
		r.putBackRequest(req, idx)
		r.mu.Unlock()
		if newRef != "" {
			s.discardBlob(ctx, newRef)
		}
		return ProcessRequestResponse{}, commitErr
	}

	if approve {
		r.putVideo(Video{
			Id:             videoIdFromRef(newRef),
			FileName:       req.FileName,
			FileURL:        s.fileURL(newRef),
			UploadedAt:     s.nowMillis(),
			UploadedByName: req.RequestedByName,
			StorageRef:     newRef,
		})
		s.broadcastPlaylist(ctx, r)
	}
	s.broadcastQueue(ctx, r)

	resp := ProcessRequestResponse{
		Playlist:        slices.Clone(r.playlist),
		PendingRequests: slices.Clone(r.pendingRequests),
	}
	r.mu.Unlock()

	s.discardBlob(ctx, req.StorageRef)

	return resp, nil
}

type SelectVideoParams struct {
	RoomId   string
	SenderId string
	VideoId  string
}

type SetMediaResponse struct {
	Media *MediaPayload
}

func (s *service) SelectVideo(ctx context.Context, params *SelectVideoParams) (SetMediaResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return SetMediaResponse{}, err
	}
	defer r.mu.Unlock()

	if !r.canManageMedia(params.SenderId) {
		return SetMediaResponse{}, ErrPermissionDenied
	}
	if r.videoIndex(params.VideoId) < 0 {
		return SetMediaResponse{}, ErrVideoNotFound
	}

	r.media = BlobMedia{VideoId: params.VideoId}
	s.resetPlayback(r)

	s.broadcastPlaylist(ctx, r)
	s.broadcastMedia(ctx, r)

	return SetMediaResponse{Media: r.mediaPayload()}, nil
}

type DeleteVideoParams struct {
	RoomId   string
	SenderId string
	VideoId  string
}

// DeleteVideo removes a playlist item. Room state is committed first; the
// blob is deleted afterwards and a failure there is only logged.
func (s *service) DeleteVideo(ctx context.Context, params *DeleteVideoParams) error {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return err
	}

	if !r.canManageMedia(params.SenderId) {
		r.mu.Unlock()
		return ErrPermissionDenied
	}
	idx := r.videoIndex(params.VideoId)
	if idx < 0 {
		r.mu.Unlock()
		return ErrVideoNotFound
	}

	ref := s.removeVideo(ctx, r, idx)
	r.mu.Unlock()

	s.discardBlob(ctx, ref)

	return nil
}

// removeVideo drops the item at idx, repairs the selection and broadcasts
// playlist-updated followed by any media event. Must be called with the
// room locked.
func (s *service) removeVideo(ctx context.Context, r *roomState, idx int) blob.Ref {
	ref := r.playlist[idx].StorageRef
	s.blobs.deleteStarted(ref)
	r.playlist = slices.Delete(r.playlist, idx, idx+1)
	repaired := s.repairSelection(r)

	s.broadcastPlaylist(ctx, r)
	if repaired {
		s.broadcastMedia(ctx, r)
	}

	return ref
}

type ClearMediaParams struct {
	RoomId   string
	SenderId string
}

// ClearMedia stops whatever is selected. Clearing a blob selection deletes
// that item, like DeleteVideo.
func (s *service) ClearMedia(ctx context.Context, params *ClearMediaParams) error {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return err
	}

	if !r.canManageMedia(params.SenderId) {
		r.mu.Unlock()
		return ErrPermissionDenied
	}

	var ref blob.Ref
	switch m := r.media.(type) {
	case EmptyMedia:
	case YoutubeMedia, ExternalMedia:
		r.media = EmptyMedia{}
		s.resetPlayback(r)
		s.broadcastPlaylist(ctx, r)
		s.broadcastMedia(ctx, r)
	case BlobMedia:
		if idx := r.videoIndex(m.VideoId); idx >= 0 {
			ref = s.removeVideo(ctx, r, idx)
		} else {
			r.media = EmptyMedia{}
			s.resetPlayback(r)
			s.broadcastPlaylist(ctx, r)
			s.broadcastMedia(ctx, r)
		}
	default:
		panic("room: unknown media variant")
	}
	r.mu.Unlock()

	if ref != "" {
		s.discardBlob(ctx, ref)
	}

	return nil
}

type SetYoutubeParams struct {
	RoomId   string
	SenderId string
	URL      string
	// Title overrides the default "YouTube: <id>" title when set.
	Title string
}

func (s *service) SetYoutube(ctx context.Context, params *SetYoutubeParams) (SetMediaResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return SetMediaResponse{}, err
	}
	defer r.mu.Unlock()

	if !r.canManageMedia(params.SenderId) {
		return SetMediaResponse{}, ErrPermissionDenied
	}

	youtubeId, ok := ytvideodata.ParseID(params.URL)
	if !ok {
		return SetMediaResponse{}, ErrInvalidYoutubeURL
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = "YouTube: " + youtubeId
	}

	r.media = YoutubeMedia{
		YoutubeId: youtubeId,
		URL:       strings.TrimSpace(params.URL),
		Title:     title,
	}
	s.resetPlayback(r)

	s.broadcastPlaylist(ctx, r)
	s.broadcastMedia(ctx, r)

	return SetMediaResponse{Media: r.mediaPayload()}, nil
}

type SetExternalParams struct {
	RoomId   string
	SenderId string
	URL      string
}

func (s *service) SetExternal(ctx context.Context, params *SetExternalParams) (SetMediaResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return SetMediaResponse{}, err
	}
	defer r.mu.Unlock()

	if !r.canManageMedia(params.SenderId) {
		return SetMediaResponse{}, ErrPermissionDenied
	}

	raw := strings.TrimSpace(params.URL)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return SetMediaResponse{}, ErrInvalidURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	r.media = ExternalMedia{
		URL:      u.String(),
		Title:    host,
		Provider: providerInsight(host),
	}
	s.resetPlayback(r)

	s.broadcastPlaylist(ctx, r)
	s.broadcastMedia(ctx, r)

	return SetMediaResponse{Media: r.mediaPayload()}, nil
}

type SyncPlaylistParams struct {
	RoomId   string
	SenderId string
}

type SyncPlaylistResponse struct {
	Playlist []Video
}

// SyncPlaylist rebuilds the playlist from storage. Host only.
func (s *service) SyncPlaylist(ctx context.Context, params *SyncPlaylistParams) (SyncPlaylistResponse, error) {
	r, err := s.lockRoom(params.RoomId)
	if err != nil {
		return SyncPlaylistResponse{}, err
	}
	scope := storageScope(r.id, scopePlaylist)
	if params.SenderId == "" || params.SenderId != r.hostId {
		r.mu.Unlock()
		return SyncPlaylistResponse{}, ErrPermissionDenied
	}
	r.mu.Unlock()

	listedAt := s.nowMillis()
	objects, err := s.blobStore.List(ctx, scope)
	if err != nil {
		s.logger.InfoContext(ctx, "failed to list playlist", "error", err)
		return SyncPlaylistResponse{}, storageError(err)
	}

	if err := s.relock(r); err != nil {
		return SyncPlaylistResponse{}, err
	}
	defer r.mu.Unlock()

	if params.SenderId != r.hostId {
		return SyncPlaylistResponse{}, ErrPermissionDenied
	}

	s.applyListing(ctx, r, objects, listedAt, true)

	return SyncPlaylistResponse{Playlist: slices.Clone(r.playlist)}, nil
}
