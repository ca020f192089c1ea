package room

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the service wraps exactly one of
// them; callers map kinds to transport statuses with errors.Is.
var (
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalid            = errors.New("invalid request")
	ErrStorageUnavailable = errors.New("storage is not configured")
	ErrStorage            = errors.New("storage operation failed")
)

var (
	ErrPermissionDenied     = fmt.Errorf("permission denied: %w", ErrForbidden)
	ErrNotJoined            = fmt.Errorf("join room first: %w", ErrForbidden)
	ErrHostRoleImmutable    = fmt.Errorf("host role cannot be changed: %w", ErrForbidden)
	ErrRoomNotFound         = fmt.Errorf("room not found: %w", ErrNotFound)
	ErrMemberNotFound       = fmt.Errorf("member not found: %w", ErrNotFound)
	ErrVideoNotFound        = fmt.Errorf("video not found: %w", ErrNotFound)
	ErrRequestNotFound      = fmt.Errorf("request not found: %w", ErrNotFound)
	ErrAlreadyJoined        = fmt.Errorf("connection already joined a room: %w", ErrInvalid)
	ErrRoomFull             = fmt.Errorf("room is full: %w", ErrInvalid)
	ErrPlaylistLimitReached = fmt.Errorf("playlist limit reached: %w", ErrInvalid)
	ErrInvalidURL           = fmt.Errorf("invalid url: %w", ErrInvalid)
	ErrInvalidYoutubeURL    = fmt.Errorf("invalid youtube url: %w", ErrInvalid)
	ErrInvalidAction        = fmt.Errorf("invalid action: %w", ErrInvalid)
	ErrHostMustUploadDirect = fmt.Errorf("host must upload directly: %w", ErrInvalid)
	ErrEmptyMessage         = fmt.Errorf("empty message: %w", ErrInvalid)
	ErrNotInCall            = fmt.Errorf("not in call: %w", ErrForbidden)
)
