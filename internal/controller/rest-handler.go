package controller

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/rest"
	"github.com/sharetube/watchparty/pkg/ytvideodata"
)

const (
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
	uploadFieldName   = "video"
)

// readBody decodes and validates a JSON request body. It writes the error
// response itself and reports whether the handler should continue.
func (c controller) readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := rest.ReadJSON(r, dst); err != nil {
		c.logger.DebugContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.DebugContext(r.Context(), "failed to validate body", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": ErrValidationError.Error(), "errors": validationErrors})
		return false
	}

	return true
}

type upload struct {
	socketId    string
	file        multipart.File
	fileName    string
	contentType string
}

// readUpload parses a multipart body carrying a "video" file and a socketId
// field. The caller must close the returned file.
func (c controller) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return upload{}, ErrFileTooLarge
		}
		return upload{}, fmt.Errorf("%w: %w", ErrValidationError, err)
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		return upload{}, ErrMissingFile
	}
	if header.Size > c.maxUploadBytes {
		file.Close()
		return upload{}, ErrFileTooLarge
	}

	return upload{
		socketId:    r.FormValue("socketId"),
		file:        file,
		fileName:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
	}, nil
}

func roomIdParam(r *http.Request) string {
	return chi.URLParam(r, "room-id")
}

func (c controller) uploadVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer cleanupMultipart(r)

	u, err := c.readUpload(w, r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	defer u.file.Close()

	uploadVideoResp, err := c.roomService.UploadVideo(ctx, &room.UploadVideoParams{
		RoomId:      roomIdParam(r),
		SenderId:    u.socketId,
		FileName:    u.fileName,
		ContentType: u.contentType,
		Body:        u.file,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{
		"video":    uploadVideoResp.Video,
		"playlist": uploadVideoResp.Playlist,
		"media":    uploadVideoResp.Media,
	})
}

func (c controller) requestUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer cleanupMultipart(r)

	u, err := c.readUpload(w, r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	defer u.file.Close()

	requestUploadResp, err := c.roomService.RequestUpload(ctx, &room.RequestUploadParams{
		RoomId:      roomIdParam(r),
		SenderId:    u.socketId,
		FileName:    u.fileName,
		ContentType: u.contentType,
		Body:        u.file,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"request": requestUploadResp.Request})
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

type processRequestInput struct {
	SocketId  string `json:"socketId"`
	RequestId string `json:"requestId" validate:"required"`
	Action    string `json:"action" validate:"required"`
}

func (c controller) processRequest(w http.ResponseWriter, r *http.Request) {
	var input processRequestInput
	if !c.readBody(w, r, &input) {
		return
	}

	processRequestResp, err := c.roomService.ProcessRequest(r.Context(), &room.ProcessRequestParams{
		RoomId:    roomIdParam(r),
		SenderId:  input.SocketId,
		RequestId: input.RequestId,
		Action:    input.Action,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{
		"playlist":        processRequestResp.Playlist,
		"pendingRequests": processRequestResp.PendingRequests,
	})
}

type setYoutubeInput struct {
	SocketId string `json:"socketId"`
	URL      string `json:"url" validate:"required,max=2048"`
}

func (c controller) setYoutube(w http.ResponseWriter, r *http.Request) {
	var input setYoutubeInput
	if !c.readBody(w, r, &input) {
		return
	}

	setYoutubeResp, err := c.roomService.SetYoutube(r.Context(), &room.SetYoutubeParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
		URL:      input.URL,
		Title:    c.lookupYoutubeTitle(r.Context(), input.URL),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"media": setYoutubeResp.Media})
}

// lookupYoutubeTitle returns the video title when lookups are enabled. Any
// failure yields "" so the service falls back to its default title.
func (c controller) lookupYoutubeTitle(ctx context.Context, rawURL string) string {
	if c.ytClient == nil {
		return ""
	}

	videoId, ok := ytvideodata.ParseID(rawURL)
	if !ok {
		return ""
	}

	videoData, err := c.ytClient.Get(ctx, videoId)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to look up youtube title", "video_id", videoId, "error", err)
		return ""
	}

	return videoData.Title
}

type setExternalInput struct {
	SocketId string `json:"socketId"`
	URL      string `json:"url" validate:"required,max=2048"`
}

func (c controller) setExternal(w http.ResponseWriter, r *http.Request) {
	var input setExternalInput
	if !c.readBody(w, r, &input) {
		return
	}

	setExternalResp, err := c.roomService.SetExternal(r.Context(), &room.SetExternalParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
		URL:      input.URL,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"media": setExternalResp.Media})
}

type videoInput struct {
	SocketId string `json:"socketId"`
	VideoId  string `json:"videoId" validate:"required"`
}

func (c controller) selectVideo(w http.ResponseWriter, r *http.Request) {
	var input videoInput
	if !c.readBody(w, r, &input) {
		return
	}

	selectVideoResp, err := c.roomService.SelectVideo(r.Context(), &room.SelectVideoParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
		VideoId:  input.VideoId,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"media": selectVideoResp.Media})
}

func (c controller) deleteVideo(w http.ResponseWriter, r *http.Request) {
	var input videoInput
	if !c.readBody(w, r, &input) {
		return
	}

	if err := c.roomService.DeleteVideo(r.Context(), &room.DeleteVideoParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
		VideoId:  input.VideoId,
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, nil)
}

type socketInput struct {
	SocketId string `json:"socketId"`
}

func (c controller) clearMedia(w http.ResponseWriter, r *http.Request) {
	var input socketInput
	if !c.readBody(w, r, &input) {
		return
	}

	if err := c.roomService.ClearMedia(r.Context(), &room.ClearMediaParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, nil)
}

func (c controller) syncPlaylist(w http.ResponseWriter, r *http.Request) {
	var input socketInput
	if !c.readBody(w, r, &input) {
		return
	}

	syncPlaylistResp, err := c.roomService.SyncPlaylist(r.Context(), &room.SyncPlaylistParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"playlist": syncPlaylistResp.Playlist})
}

type updateMemberRoleInput struct {
	SocketId       string `json:"socketId"`
	TargetSocketId string `json:"targetSocketId" validate:"required"`
	Action         string `json:"action" validate:"required"`
}

func (c controller) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	var input updateMemberRoleInput
	if !c.readBody(w, r, &input) {
		return
	}

	updateMemberRoleResp, err := c.roomService.UpdateMemberRole(r.Context(), &room.UpdateMemberRoleParams{
		RoomId:   roomIdParam(r),
		SenderId: input.SocketId,
		TargetId: input.TargetSocketId,
		Action:   input.Action,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"members": updateMemberRoleResp.Members})
}
