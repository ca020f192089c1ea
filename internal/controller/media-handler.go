package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sharetube/watchparty/internal/repository/blob"
	"github.com/sharetube/watchparty/pkg/rest"
)

// serveMedia streams a stored blob. http.ServeContent handles range and
// conditional requests.
func (c controller) serveMedia(w http.ResponseWriter, r *http.Request) {
	ref := blob.Ref(chi.URLParam(r, "*"))

	f, obj, err := c.mediaStore.Open(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidRef):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "media not found"})
		case errors.Is(err, blob.ErrUnavailable):
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "storage is not configured"})
		default:
			c.logger.WarnContext(r.Context(), "failed to open media", "ref", ref, "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal server error"})
		}
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, obj.Ref.Name(), obj.LastModified, f)
}

func (c controller) getRTCConfig(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"iceServers": c.iceServers})
}

func (c controller) healthz(w http.ResponseWriter, r *http.Request) {
	c.writeOK(w, rest.Envelope{"rooms": c.roomService.RoomsCount()})
}
